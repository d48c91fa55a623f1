// Package modmed integrates with the ModMed FHIR API.
package modmed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/ehrbridge/internal/ehr"
	"github.com/ehr/ehrbridge/internal/ehr/credential"
	"github.com/ehr/ehrbridge/internal/platform/fhir"
)

// DefaultTimeout bounds every ModMed request.
const DefaultTimeout = 15 * time.Second

// Config holds the connection settings for one ModMed firm.
type Config struct {
	BaseURL        string
	SandboxBaseURL string
	FirmPrefix     string
	APIKey         string
	// Username and Password select the password grant.
	Username string
	Password string
	// ClientID and ClientSecret select the client-credentials grant when no
	// username is configured.
	ClientID     string
	ClientSecret string
	UseSandbox   bool
	Timeout      time.Duration
}

func (c Config) Validate() error {
	if c.baseURL() == "" {
		return fmt.Errorf("modmed: base url is required")
	}
	if c.FirmPrefix == "" {
		return fmt.Errorf("modmed: firm prefix is required")
	}
	if c.Username == "" && c.ClientID == "" {
		return fmt.Errorf("modmed: username or client id is required")
	}
	return nil
}

func (c Config) baseURL() string {
	if c.UseSandbox && c.SandboxBaseURL != "" {
		return c.SandboxBaseURL
	}
	return c.BaseURL
}

// Root is the firm-scoped API root, {base}/{firmPrefix}.
func (c Config) Root() string {
	return strings.TrimRight(c.baseURL(), "/") + "/" + strings.Trim(c.FirmPrefix, "/")
}

// TokenURL is the firm's OAuth token endpoint.
func (c Config) TokenURL() string {
	return c.Root() + "/oauth2/token"
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

// Client talks FHIR to one ModMed firm with its own token slot.
type Client struct {
	cfg       Config
	tokens    *credential.Cache
	transport *ehr.Transport
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

// WithHTTPClient shares a pooled HTTP client across clients.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithTokenStore binds the token slot to a user's persisted token row.
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

// New validates cfg and builds a client.
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
	logger := o.logger.With().Str("vendor", ehr.VendorModMed).Logger()

	header := http.Header{}
	if cfg.APIKey != "" {
		header.Set("x-api-key", cfg.APIKey)
	}

	var fetcher credential.Fetcher
	if cfg.Username != "" {
		fetcher = &credential.Password{
			Vendor:       ehr.VendorModMed,
			TokenURL:     cfg.TokenURL(),
			Username:     cfg.Username,
			Password:     cfg.Password,
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Header:       header,
			HTTP:         o.httpClient,
		}
	} else {
		fetcher = &credential.ClientCredentials{
			Vendor:       ehr.VendorModMed,
			TokenURL:     cfg.TokenURL(),
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Header:       header,
			HTTP:         o.httpClient,
		}
	}

	cacheOpts := []credential.Option{credential.WithClock(o.now), credential.WithLogger(logger)}
	if o.store != nil {
		cacheOpts = append(cacheOpts, credential.WithStore(o.store, ehr.VendorModMed, o.userID))
	}

	c := &Client{
		cfg:    cfg,
		tokens: credential.NewCache(fetcher, cacheOpts...),
		logger: logger,
		now:    o.now,
	}
	c.transport = ehr.NewTransport(ehr.VendorModMed, cfg.Root(), cfg.timeout(),
		ehr.WithHTTPClient(o.httpClient),
		ehr.WithMediaType(fhir.MediaType),
		ehr.WithLogger(logger),
		ehr.WithDecorator(c.authorize),
	)
	return c, nil
}

var _ ehr.Client = (*Client)(nil)

func (c *Client) Vendor() string { return ehr.VendorModMed }

func (c *Client) authorize(ctx context.Context, req *http.Request) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if c.cfg.APIKey != "" {
		req.Header.Set("x-api-key", c.cfg.APIKey)
	}
	req.Header.Set("Prefer", "return=representation")
	return nil
}

func (c *Client) Authenticate(ctx context.Context) error {
	_, err := c.tokens.Token(ctx)
	return err
}

// TestConnection reads a single patient. Any failure, including an
// unauthorised origin, reports false.
func (c *Client) TestConnection(ctx context.Context) bool {
	var bundle fhir.Bundle
	err := c.do(ctx, ehr.Call{
		Op:       "test connection",
		Resource: "Patient",
		Method:   http.MethodGet,
		Path:     "Patient",
		Query:    map[string][]string{"_count": {"1"}},
		Out:      &bundle,
	})
	if err != nil {
		c.logger.Warn().Err(err).Bool("origin_restricted", ehr.IsOriginRestricted(err)).Msg("connection test failed")
		return false
	}
	return true
}

// do runs a call and drops the cached token when the vendor rejects it, so
// the next operation re-authenticates.
func (c *Client) do(ctx context.Context, call ehr.Call) error {
	err := c.transport.Do(ctx, call)
	var apiErr *ehr.APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusUnauthorized {
			c.tokens.Invalidate()
		}
		if diag := fhir.ParseOutcome([]byte(apiErr.Body)); diag != "" {
			c.logger.Debug().Int("status", apiErr.StatusCode).Str("outcome", diag).Msg("vendor operation outcome")
		}
	}
	return err
}

// idFromLocation extracts the logical id from a Location such as
// {root}/Patient/123/_history/1.
func idFromLocation(location, resourceType string) string {
	marker := "/" + resourceType + "/"
	i := strings.LastIndex(location, marker)
	if i < 0 {
		return ""
	}
	rest := location[i+len(marker):]
	if j := strings.Index(rest, "/"); j >= 0 {
		rest = rest[:j]
	}
	return rest
}
