package modmed

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ehr/ehrbridge/internal/ehr"
	"github.com/ehr/ehrbridge/internal/platform/fhir"
)

func (c *Client) ListPatients(ctx context.Context, q ehr.PatientQuery) (*ehr.PatientPage, error) {
	q = q.Normalize()
	query := url.Values{
		"_count":  {strconv.Itoa(q.Limit)},
		"_offset": {strconv.Itoa(q.Offset())},
		"_total":  {"accurate"},
	}
	if q.Search != "" {
		query.Set("name", q.Search)
	}

	var bundle fhir.Bundle
	if err := c.do(ctx, ehr.Call{
		Op: "list", Resource: "Patient",
		Method: http.MethodGet, Path: "Patient", Query: query,
		Out: &bundle,
	}); err != nil {
		return nil, err
	}

	resources, err := fhir.Resources[Patient](&bundle, "Patient")
	if err != nil {
		return nil, err
	}
	page := &ehr.PatientPage{
		Data:  make([]ehr.Patient, 0, len(resources)),
		Total: bundle.TotalOr(len(resources)),
		Page:  q.Page,
		Limit: q.Limit,
	}
	for i := range resources {
		page.Data = append(page.Data, PatientFromFHIR(&resources[i]))
	}
	return page, nil
}

func (c *Client) GetPatient(ctx context.Context, id string) (*ehr.Patient, error) {
	var r Patient
	if err := c.do(ctx, ehr.Call{
		Op: "get", Resource: "Patient",
		Method: http.MethodGet, Path: "Patient/" + url.PathEscape(id),
		Out: &r,
	}); err != nil {
		return nil, err
	}
	p := PatientFromFHIR(&r)
	return &p, nil
}

func (c *Client) CreatePatient(ctx context.Context, p *ehr.Patient) (*ehr.Patient, error) {
	in := *p
	in.ID = ""
	body := PatientToFHIR(&in)

	var (
		out      Patient
		location string
	)
	if err := c.do(ctx, ehr.Call{
		Op: "create", Resource: "Patient",
		Method: http.MethodPost, Path: "Patient",
		Body: body, Out: &out, Location: &location,
	}); err != nil {
		return nil, err
	}
	return c.patientResult(&body, &out, location), nil
}

func (c *Client) UpdatePatient(ctx context.Context, id string, p *ehr.Patient) (*ehr.Patient, error) {
	in := *p
	in.ID = id
	body := PatientToFHIR(&in)

	var out Patient
	if err := c.do(ctx, ehr.Call{
		Op: "update", Resource: "Patient",
		Method: http.MethodPut, Path: "Patient/" + url.PathEscape(id),
		Body: body, Out: &out,
	}); err != nil {
		return nil, err
	}
	return c.patientResult(&body, &out, ""), nil
}

func (c *Client) DeletePatient(ctx context.Context, id string) error {
	return c.do(ctx, ehr.Call{
		Op: "delete", Resource: "Patient",
		Method: http.MethodDelete, Path: "Patient/" + url.PathEscape(id),
	})
}

// patientResult prefers the server representation and falls back to what
// was sent when the server answered without a body.
func (c *Client) patientResult(sent, got *Patient, location string) *ehr.Patient {
	r := got
	if r.ResourceType == "" {
		r = sent
	}
	p := PatientFromFHIR(r)
	if p.ID == "" {
		p.ID = idFromLocation(location, "Patient")
	}
	return &p
}
