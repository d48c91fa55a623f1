package modmed

import (
	"context"
	"net/http"
	"net/url"

	"github.com/ehr/ehrbridge/internal/ehr"
	"github.com/ehr/ehrbridge/internal/platform/fhir"
)

func (c *Client) ListAppointments(ctx context.Context, q ehr.AppointmentQuery) ([]ehr.Appointment, error) {
	query := url.Values{}
	if q.PatientID != "" {
		query.Set("patient", q.PatientID)
	}
	if q.ProviderID != "" {
		query.Set("practitioner", q.ProviderID)
	}
	if q.Date != "" {
		query.Set("date", q.Date)
	}
	if q.Status != "" {
		if status, ok := appointmentStatusToFHIR[ehr.AppointmentStatus(q.Status)]; ok {
			query.Set("status", status)
		} else {
			query.Set("status", q.Status)
		}
	}

	var bundle fhir.Bundle
	if err := c.do(ctx, ehr.Call{
		Op: "list", Resource: "Appointment",
		Method: http.MethodGet, Path: "Appointment", Query: query,
		Out: &bundle,
	}); err != nil {
		return nil, err
	}
	resources, err := fhir.Resources[Appointment](&bundle, "Appointment")
	if err != nil {
		return nil, err
	}
	out := make([]ehr.Appointment, 0, len(resources))
	for i := range resources {
		out = append(out, AppointmentFromFHIR(&resources[i]))
	}
	return out, nil
}

func (c *Client) CreateAppointment(ctx context.Context, a *ehr.Appointment) (*ehr.Appointment, error) {
	in := *a
	in.ID = ""
	body, err := AppointmentToFHIR(&in)
	if err != nil {
		return nil, err
	}

	var (
		out      Appointment
		location string
	)
	if err := c.do(ctx, ehr.Call{
		Op: "create", Resource: "Appointment",
		Method: http.MethodPost, Path: "Appointment",
		Body: body, Out: &out, Location: &location,
	}); err != nil {
		return nil, err
	}
	return appointmentResult(&body, &out, location), nil
}

func (c *Client) UpdateAppointment(ctx context.Context, id string, a *ehr.Appointment) (*ehr.Appointment, error) {
	in := *a
	in.ID = id
	body, err := AppointmentToFHIR(&in)
	if err != nil {
		return nil, err
	}
	return c.putAppointment(ctx, "update", body)
}

// CancelAppointment reads the current resource and writes it back cancelled.
func (c *Client) CancelAppointment(ctx context.Context, id, reason string) (*ehr.Appointment, error) {
	var current Appointment
	if err := c.do(ctx, ehr.Call{
		Op: "get", Resource: "Appointment",
		Method: http.MethodGet, Path: "Appointment/" + url.PathEscape(id),
		Out: &current,
	}); err != nil {
		return nil, err
	}
	current.ID = id
	current.Status = "cancelled"
	if reason != "" {
		current.CancelationReason = &fhir.CodeableConcept{Text: reason}
	}
	return c.putAppointment(ctx, "cancel", current)
}

func (c *Client) putAppointment(ctx context.Context, op string, body Appointment) (*ehr.Appointment, error) {
	var out Appointment
	if err := c.do(ctx, ehr.Call{
		Op: op, Resource: "Appointment",
		Method: http.MethodPut, Path: "Appointment/" + url.PathEscape(body.ID),
		Body: body, Out: &out,
	}); err != nil {
		return nil, err
	}
	return appointmentResult(&body, &out, ""), nil
}

func appointmentResult(sent, got *Appointment, location string) *ehr.Appointment {
	r := got
	if r.ResourceType == "" {
		r = sent
	}
	a := AppointmentFromFHIR(r)
	if a.ID == "" {
		a.ID = idFromLocation(location, "Appointment")
	}
	return &a
}
