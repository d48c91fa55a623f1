package athena

import (
	"github.com/rs/zerolog"

	"github.com/ehr/ehrbridge/internal/ehr"
	"github.com/ehr/ehrbridge/internal/ehr/credential"
)

// NewProvider hands out one client per dashboard user over a shared pooled
// HTTP client. Dashboard credentials always use OAuth mode.
func NewProvider(cfg Config, store credential.Store, logger zerolog.Logger) *ehr.CachingProvider {
	httpClient := ehr.NewHTTPClient(cfg.timeout())

	forUser := func(userID string) (ehr.Client, error) {
		opts := []Option{WithHTTPClient(httpClient), WithLogger(logger)}
		if store != nil {
			opts = append(opts, WithTokenStore(store, userID))
		}
		return New(cfg, opts...)
	}

	withCreds := func(creds ehr.Credentials) (ehr.Client, error) {
		adhoc := cfg
		adhoc.AuthMode = AuthOAuth
		adhoc.ClientID = creds.ClientID
		adhoc.ClientSecret = creds.ClientSecret
		adhoc.UseSandbox = creds.UseSandbox
		return New(adhoc, WithHTTPClient(httpClient), WithLogger(logger))
	}

	return ehr.NewProvider(ehr.VendorAthena, forUser, withCreds)
}
