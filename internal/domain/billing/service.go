// Package billing lists and submits claims through the vendors.
package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ehr/ehrbridge/internal/ehr"
)

var ErrInvalidServiceDate = errors.New("serviceDate must be YYYY-MM-DD")

type Service struct{}

func NewService() *Service {
	return &Service{}
}

func (s *Service) ListClaims(ctx context.Context, client ehr.Client, q ehr.ClaimQuery) ([]ehr.BillingClaim, error) {
	claims, err := client.ListClaims(ctx, q)
	if err != nil {
		return nil, err
	}
	if claims == nil {
		claims = []ehr.BillingClaim{}
	}
	return claims, nil
}

// SubmitClaim sends a new claim; an unset status is sent as pending.
func (s *Service) SubmitClaim(ctx context.Context, client ehr.Client, c *ehr.BillingClaim) (*ehr.BillingClaim, error) {
	if _, err := time.Parse("2006-01-02", c.ServiceDate); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidServiceDate, c.ServiceDate)
	}
	c.ID = ""
	if c.Status == "" {
		c.Status = ehr.ClaimPending
	}
	return client.SubmitClaim(ctx, c)
}
