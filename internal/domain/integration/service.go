// Package integration covers the cross-vendor surface: probing dashboard
// credentials and searching every configured vendor at once.
package integration

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ehr/ehrbridge/internal/ehr"
	"github.com/ehr/ehrbridge/internal/platform/middleware"
)

// Connection test messages.
const (
	MsgAuthFailed       = "Authentication failed"
	MsgConnectionFailed = "Connection test failed"
)

// ConnectionResult is always rendered with 200.
type ConnectionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// SearchOutcome holds one vendor's page or its error message.
type SearchOutcome struct {
	Page  *ehr.PatientPage
	Error string
}

type Service struct {
	logger zerolog.Logger
}

func NewService(logger zerolog.Logger) *Service {
	return &Service{logger: logger}
}

// TestConnection authenticates with creds and performs one lightweight read.
// Nothing is persisted.
func (s *Service) TestConnection(ctx context.Context, provider ehr.Provider, creds ehr.Credentials) ConnectionResult {
	log := s.logger.With().Str("vendor", provider.Vendor()).Bool("sandbox", creds.UseSandbox).Logger()

	client, err := provider.WithCredentials(creds)
	if err != nil {
		log.Warn().Err(err).Msg("build client for connection test")
		return ConnectionResult{Message: MsgConnectionFailed}
	}
	if err := client.Authenticate(ctx); err != nil {
		log.Warn().Err(err).Msg("connection test authentication")
		if errors.Is(err, ehr.ErrUnauthenticated) {
			return ConnectionResult{Message: MsgAuthFailed}
		}
		return ConnectionResult{Message: MsgConnectionFailed}
	}
	if !client.TestConnection(ctx) {
		return ConnectionResult{Message: MsgConnectionFailed}
	}
	return ConnectionResult{
		Success: true,
		Message: "Successfully connected to " + ehr.DisplayName(provider.Vendor()) + " API",
	}
}

// Search queries every provider concurrently for userID. A failing vendor
// never fails the others.
func (s *Service) Search(ctx context.Context, providers []ehr.Provider, userID string, q ehr.PatientQuery) map[string]SearchOutcome {
	var (
		mu  sync.Mutex
		out = make(map[string]SearchOutcome, len(providers))
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range providers {
		p := p
		g.Go(func() error {
			outcome := s.searchOne(gctx, p, userID, q)
			mu.Lock()
			out[p.Vendor()] = outcome
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (s *Service) searchOne(ctx context.Context, p ehr.Provider, userID string, q ehr.PatientQuery) SearchOutcome {
	client, err := p.ClientFor(ctx, userID)
	if err == nil {
		var page *ehr.PatientPage
		page, err = client.ListPatients(ctx, q.Normalize())
		if err == nil {
			return SearchOutcome{Page: page}
		}
	}
	s.logger.Warn().Err(err).Str("vendor", p.Vendor()).Msg("patient search failed")
	msg, _ := middleware.VendorError(err, "search patients", "").Message.(string)
	return SearchOutcome{Error: msg}
}
