package athena

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ehr/ehrbridge/internal/ehr"
)

func (c *Client) ListPatients(ctx context.Context, q ehr.PatientQuery) (*ehr.PatientPage, error) {
	q = q.Normalize()
	query := url.Values{
		"limit":  {strconv.Itoa(q.Limit)},
		"offset": {strconv.Itoa(q.Offset())},
	}
	if q.Search != "" {
		query.Set("search", q.Search)
	}

	var list PatientList
	if err := c.do(ctx, ehr.Call{
		Op: "list", Resource: "patients",
		Method: http.MethodGet, Path: "patients", Query: query,
		Out: &list,
	}); err != nil {
		return nil, err
	}
	page := &ehr.PatientPage{
		Data:  make([]ehr.Patient, 0, len(list.Patients)),
		Total: list.TotalCount,
		Page:  q.Page,
		Limit: q.Limit,
	}
	for i := range list.Patients {
		page.Data = append(page.Data, PatientFromAthena(&list.Patients[i]))
	}
	if page.Total == 0 {
		page.Total = q.Offset() + len(page.Data)
	}
	return page, nil
}

// GetPatient accepts the single-element array athena returns for a lookup.
func (c *Client) GetPatient(ctx context.Context, id string) (*ehr.Patient, error) {
	var raw json.RawMessage
	if err := c.do(ctx, ehr.Call{
		Op: "get", Resource: "patients",
		Method: http.MethodGet, Path: "patients/" + url.PathEscape(id),
		Out: &raw,
	}); err != nil {
		return nil, err
	}
	var r Patient
	ok, err := decodeFirst(raw, &r)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ehr.ErrNotFound
	}
	p := PatientFromAthena(&r)
	if p.ID == "" {
		p.ID = id
	}
	return &p, nil
}

// CreatePatient returns the submitted patient with the vendor-assigned id.
func (c *Client) CreatePatient(ctx context.Context, p *ehr.Patient) (*ehr.Patient, error) {
	in := *p
	in.ID = ""
	body := PatientToAthena(&in)

	var raw json.RawMessage
	if err := c.do(ctx, ehr.Call{
		Op: "create", Resource: "patients",
		Method: http.MethodPost, Path: "patients",
		Body: body, Out: &raw,
	}); err != nil {
		return nil, err
	}
	var created Patient
	if _, err := decodeFirst(raw, &created); err != nil {
		return nil, err
	}
	if created.FirstName == "" && created.LastName == "" {
		id := created.PatientID
		created = body
		created.PatientID = id
	}
	out := PatientFromAthena(&created)
	return &out, nil
}

func (c *Client) UpdatePatient(ctx context.Context, id string, p *ehr.Patient) (*ehr.Patient, error) {
	in := *p
	in.ID = id
	body := PatientToAthena(&in)
	if err := c.do(ctx, ehr.Call{
		Op: "update", Resource: "patients",
		Method: http.MethodPut, Path: "patients/" + url.PathEscape(id),
		Body: body,
	}); err != nil {
		return nil, err
	}
	out := PatientFromAthena(&body)
	return &out, nil
}

func (c *Client) DeletePatient(ctx context.Context, id string) error {
	return c.do(ctx, ehr.Call{
		Op: "delete", Resource: "patients",
		Method: http.MethodDelete, Path: "patients/" + url.PathEscape(id),
	})
}
