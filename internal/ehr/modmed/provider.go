package modmed

import (
	"github.com/rs/zerolog"

	"github.com/ehr/ehrbridge/internal/ehr"
	"github.com/ehr/ehrbridge/internal/ehr/credential"
)

// NewProvider hands out one client per dashboard user. All clients share a
// single pooled HTTP client.
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
		adhoc.Username = ""
		adhoc.Password = ""
		adhoc.ClientID = creds.ClientID
		adhoc.ClientSecret = creds.ClientSecret
		adhoc.UseSandbox = creds.UseSandbox
		return New(adhoc, WithHTTPClient(httpClient), WithLogger(logger))
	}

	return ehr.NewProvider(ehr.VendorModMed, forUser, withCreds)
}
