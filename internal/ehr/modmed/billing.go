package modmed

import (
	"context"
	"net/http"
	"net/url"

	"github.com/ehr/ehrbridge/internal/ehr"
	"github.com/ehr/ehrbridge/internal/platform/fhir"
)

// ListClaims filters by practice billing status after translation, since
// FHIR Claim.status does not carry it.
func (c *Client) ListClaims(ctx context.Context, q ehr.ClaimQuery) ([]ehr.BillingClaim, error) {
	query := url.Values{}
	if q.PatientID != "" {
		query.Set("patient", q.PatientID)
	}

	var bundle fhir.Bundle
	if err := c.do(ctx, ehr.Call{
		Op: "list", Resource: "Claim",
		Method: http.MethodGet, Path: "Claim", Query: query,
		Out: &bundle,
	}); err != nil {
		return nil, err
	}
	resources, err := fhir.Resources[Claim](&bundle, "Claim")
	if err != nil {
		return nil, err
	}
	out := make([]ehr.BillingClaim, 0, len(resources))
	for i := range resources {
		claim := ClaimFromFHIR(&resources[i])
		if q.Status != "" && string(claim.Status) != q.Status {
			continue
		}
		out = append(out, claim)
	}
	return out, nil
}

func (c *Client) SubmitClaim(ctx context.Context, claim *ehr.BillingClaim) (*ehr.BillingClaim, error) {
	in := *claim
	in.ID = ""
	if in.Status == "" || in.Status == ehr.ClaimPending {
		in.Status = ehr.ClaimSubmitted
	}
	body := ClaimToFHIR(&in)

	var (
		out      Claim
		location string
	)
	if err := c.do(ctx, ehr.Call{
		Op: "submit", Resource: "Claim",
		Method: http.MethodPost, Path: "Claim",
		Body: body, Out: &out, Location: &location,
	}); err != nil {
		return nil, err
	}
	r := &out
	if r.ResourceType == "" {
		r = &body
	}
	result := ClaimFromFHIR(r)
	if result.ID == "" {
		result.ID = idFromLocation(location, "Claim")
	}
	return &result, nil
}
