package athena

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/ehr/ehrbridge/internal/ehr"
)

func (c *Client) ListClaims(ctx context.Context, q ehr.ClaimQuery) ([]ehr.BillingClaim, error) {
	query := url.Values{}
	if q.PatientID != "" {
		query.Set("patientid", q.PatientID)
	}
	if q.Status != "" {
		query.Set("claimstatus", strings.ToUpper(q.Status))
	}

	var list ClaimList
	if err := c.do(ctx, ehr.Call{
		Op: "list", Resource: "claims",
		Method: http.MethodGet, Path: "claims", Query: query,
		Out: &list,
	}); err != nil {
		return nil, err
	}
	out := make([]ehr.BillingClaim, 0, len(list.Claims))
	for i := range list.Claims {
		out = append(out, ClaimFromAthena(&list.Claims[i]))
	}
	return out, nil
}

func (c *Client) SubmitClaim(ctx context.Context, claim *ehr.BillingClaim) (*ehr.BillingClaim, error) {
	in := *claim
	in.ID = ""
	if in.Status == "" || in.Status == ehr.ClaimPending {
		in.Status = ehr.ClaimSubmitted
	}
	body := ClaimToAthena(&in)

	var raw json.RawMessage
	if err := c.do(ctx, ehr.Call{
		Op: "submit", Resource: "claims",
		Method: http.MethodPost, Path: "claims",
		Body: body, Out: &raw,
	}); err != nil {
		return nil, err
	}
	var created Claim
	if _, err := decodeFirst(raw, &created); err != nil {
		return nil, err
	}
	if created.PatientID == "" {
		id := created.ClaimID
		created = body
		created.ClaimID = id
	}
	out := ClaimFromAthena(&created)
	return &out, nil
}
