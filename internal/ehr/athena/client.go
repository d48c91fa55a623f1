// Package athena integrates with the athenahealth REST API.
package athena

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/ehrbridge/internal/ehr"
	"github.com/ehr/ehrbridge/internal/ehr/credential"
)

// DefaultTimeout bounds every athena request.
const DefaultTimeout = 30 * time.Second

// Auth modes.
const (
	AuthOAuth = "oauth"
	AuthBasic = "basic"
)

type Config struct {
	BaseURL        string
	SandboxBaseURL string
	PracticeID     string
	// TokenURL defaults to {base}/oauth/token.
	TokenURL     string
	AuthMode     string
	ClientID     string
	ClientSecret string
	// Username, Password and APIKey are used in basic mode.
	Username   string
	Password   string
	APIKey     string
	UseSandbox bool
	Timeout    time.Duration
	// Location is the practice time zone for appointment dates; UTC when nil.
	Location *time.Location
}

func (c Config) Validate() error {
	if c.baseURL() == "" {
		return fmt.Errorf("athena: base url is required")
	}
	if c.PracticeID == "" {
		return fmt.Errorf("athena: practice id is required")
	}
	switch c.mode() {
	case AuthOAuth:
		if c.ClientID == "" || c.ClientSecret == "" {
			return fmt.Errorf("athena: client id and secret are required")
		}
	case AuthBasic:
		if c.Username == "" {
			return fmt.Errorf("athena: username is required for basic auth")
		}
	default:
		return fmt.Errorf("athena: unknown auth mode %q", c.AuthMode)
	}
	return nil
}

func (c Config) mode() string {
	if c.AuthMode == "" {
		return AuthOAuth
	}
	return strings.ToLower(c.AuthMode)
}

func (c Config) baseURL() string {
	if c.UseSandbox && c.SandboxBaseURL != "" {
		return strings.TrimRight(c.SandboxBaseURL, "/")
	}
	return strings.TrimRight(c.BaseURL, "/")
}

// Root is the practice-scoped API root, {base}/v1/{practiceId}.
func (c Config) Root() string {
	return c.baseURL() + "/v1/" + url.PathEscape(c.PracticeID)
}

func (c Config) tokenURL() string {
	if c.TokenURL != "" {
		return c.TokenURL
	}
	return c.baseURL() + "/oauth/token"
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

func (c Config) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// Client talks to one athena practice. In basic mode tokens is nil.
type Client struct {
	cfg       Config
	tokens    *credential.Cache
	transport *ehr.Transport
	loc       *time.Location
	logger    zerolog.Logger
	now       func() time.Time
}

type Option func(*options)

type options struct {
	httpClient *http.Client
	store      credential.Store
	userID     string
	logger     zerolog.Logger
	now        func() time.Time
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithTokenStore binds the token slot to a user's persisted token row.
// Ignored in basic mode.
func WithTokenStore(store credential.Store, userID string) Option {
	return func(o *options) {
		o.store = store
		o.userID = userID
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func New(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{logger: zerolog.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = ehr.NewHTTPClient(cfg.timeout())
	}
	logger := o.logger.With().Str("vendor", ehr.VendorAthena).Logger()

	c := &Client{
		cfg:    cfg,
		loc:    cfg.location(),
		logger: logger,
		now:    o.now,
	}
	if cfg.mode() == AuthOAuth {
		fetcher := &credential.ClientCredentials{
			Vendor:       ehr.VendorAthena,
			TokenURL:     cfg.tokenURL(),
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scope:        "athena/service/Athenanet.MDP.*",
			BasicAuth:    true,
			HTTP:         o.httpClient,
		}
		cacheOpts := []credential.Option{credential.WithClock(o.now), credential.WithLogger(logger)}
		if o.store != nil {
			cacheOpts = append(cacheOpts, credential.WithStore(o.store, ehr.VendorAthena, o.userID))
		}
		c.tokens = credential.NewCache(fetcher, cacheOpts...)
	}
	c.transport = ehr.NewTransport(ehr.VendorAthena, cfg.Root(), cfg.timeout(),
		ehr.WithHTTPClient(o.httpClient),
		ehr.WithLogger(logger),
		ehr.WithDecorator(c.authorize),
	)
	return c, nil
}

var _ ehr.Client = (*Client)(nil)

func (c *Client) Vendor() string { return ehr.VendorAthena }

func (c *Client) authorize(ctx context.Context, req *http.Request) error {
	if c.tokens == nil {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
		if c.cfg.APIKey != "" {
			req.Header.Set("x-api-key", c.cfg.APIKey)
		}
		return nil
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

// Authenticate acquires a token. Basic mode has nothing to acquire; its
// credentials are checked by the first request.
func (c *Client) Authenticate(ctx context.Context) error {
	if c.tokens == nil {
		return nil
	}
	_, err := c.tokens.Token(ctx)
	return err
}

func (c *Client) TestConnection(ctx context.Context) bool {
	var list PatientList
	err := c.do(ctx, ehr.Call{
		Op:       "test connection",
		Resource: "patients",
		Method:   http.MethodGet,
		Path:     "patients",
		Query:    url.Values{"limit": {"1"}},
		Out:      &list,
	})
	if err != nil {
		c.logger.Warn().Err(err).Bool("origin_restricted", ehr.IsOriginRestricted(err)).Msg("connection test failed")
		return false
	}
	return true
}

func (c *Client) do(ctx context.Context, call ehr.Call) error {
	err := c.transport.Do(ctx, call)
	var apiErr *ehr.APIError
	if c.tokens != nil && errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
		c.tokens.Invalidate()
	}
	return err
}
