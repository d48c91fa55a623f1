// Package credential caches vendor bearer tokens and refreshes them through
// OAuth token grants.
package credential

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultMargin is subtracted from a token's expiry to force an early refresh.
const DefaultMargin = 30 * time.Second

// Credential is a bearer token with its absolute expiry.
type Credential struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Valid reports whether the token may still be presented at now.
func (c *Credential) Valid(now time.Time, margin time.Duration) bool {
	return c != nil && c.AccessToken != "" && now.Before(c.ExpiresAt.Add(-margin))
}

// Fetcher exchanges configured material for a new token.
type Fetcher interface {
	Fetch(ctx context.Context) (*Grant, error)
}

// Store persists credentials per vendor and dashboard user.
type Store interface {
	Load(ctx context.Context, vendor, userID string) (*Credential, error)
	Save(ctx context.Context, vendor, userID string, cred Credential) error
}

// Cache holds a single token slot. The lock covers slot access only, so two
// callers hitting an expired slot at once may both refresh.
type Cache struct {
	fetcher Fetcher
	store   Store
	vendor  string
	userID  string
	margin  time.Duration
	now     func() time.Time
	logger  zerolog.Logger

	mu     sync.Mutex
	cred   *Credential
	loaded bool
}

type Option func(*Cache)

// WithStore seeds the slot from, and writes refreshes back to, a persisted
// per-user row.
func WithStore(store Store, vendor, userID string) Option {
	return func(c *Cache) {
		c.store = store
		c.vendor = vendor
		c.userID = userID
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func WithMargin(d time.Duration) Option {
	return func(c *Cache) { c.margin = d }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

func NewCache(fetcher Fetcher, opts ...Option) *Cache {
	c := &Cache{
		fetcher: fetcher,
		margin:  DefaultMargin,
		now:     time.Now,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns a token valid for at least the margin, refreshing when the
// slot is empty or inside the margin.
func (c *Cache) Token(ctx context.Context) (string, error) {
	c.seed(ctx)

	c.mu.Lock()
	cred := c.cred
	c.mu.Unlock()
	if cred.Valid(c.now(), c.margin) {
		return cred.AccessToken, nil
	}

	grant, err := c.fetcher.Fetch(ctx)
	if err != nil {
		return "", err
	}
	fresh := &Credential{
		AccessToken: grant.AccessToken,
		ExpiresAt:   c.now().Add(grant.Lifetime()),
	}

	c.mu.Lock()
	c.cred = fresh
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Save(ctx, c.vendor, c.userID, *fresh); err != nil {
			c.logger.Warn().Err(err).Str("vendor", c.vendor).Str("user_id", c.userID).Msg("persist token")
		}
	}
	return fresh.AccessToken, nil
}

// Set replaces the slot.
func (c *Cache) Set(cred Credential) {
	c.mu.Lock()
	c.cred = &cred
	c.loaded = true
	c.mu.Unlock()
}

// Invalidate empties the slot so the next Token call refreshes.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.cred = nil
	c.loaded = true
	c.mu.Unlock()
}

func (c *Cache) seed(ctx context.Context) {
	c.mu.Lock()
	if c.loaded || c.store == nil {
		c.mu.Unlock()
		return
	}
	c.loaded = true
	c.mu.Unlock()

	cred, err := c.store.Load(ctx, c.vendor, c.userID)
	if err != nil {
		c.logger.Warn().Err(err).Str("vendor", c.vendor).Str("user_id", c.userID).Msg("load persisted token")
		return
	}
	if cred == nil {
		return
	}

	c.mu.Lock()
	if c.cred == nil {
		c.cred = cred
	}
	c.mu.Unlock()
}
