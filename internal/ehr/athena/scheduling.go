package athena

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/ehr/ehrbridge/internal/ehr"
)

func (c *Client) ListAppointments(ctx context.Context, q ehr.AppointmentQuery) ([]ehr.Appointment, error) {
	query := url.Values{}
	if q.PatientID != "" {
		query.Set("patientid", q.PatientID)
	}
	if q.ProviderID != "" {
		query.Set("providerid", q.ProviderID)
	}
	if q.Date != "" {
		d := toAthenaDate(q.Date)
		query.Set("startdate", d)
		query.Set("enddate", d)
	}
	if q.Status != "" {
		if s, ok := appointmentStatusToAthena[ehr.AppointmentStatus(q.Status)]; ok {
			query.Set("appointmentstatus", s)
		}
	}

	var list AppointmentList
	if err := c.do(ctx, ehr.Call{
		Op: "list", Resource: "appointments",
		Method: http.MethodGet, Path: "appointments/booked", Query: query,
		Out: &list,
	}); err != nil {
		return nil, err
	}
	out := make([]ehr.Appointment, 0, len(list.Appointments))
	for i := range list.Appointments {
		out = append(out, AppointmentFromAthena(&list.Appointments[i], c.loc))
	}
	return out, nil
}

func (c *Client) CreateAppointment(ctx context.Context, a *ehr.Appointment) (*ehr.Appointment, error) {
	in := *a
	in.ID = ""
	if in.Status == "" {
		in.Status = ehr.AppointmentScheduled
	}
	body, err := AppointmentToAthena(&in, c.loc)
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := c.do(ctx, ehr.Call{
		Op: "create", Resource: "appointments",
		Method: http.MethodPost, Path: "appointments",
		Body: body, Out: &raw,
	}); err != nil {
		return nil, err
	}
	return c.appointmentResult(raw, body)
}

func (c *Client) UpdateAppointment(ctx context.Context, id string, a *ehr.Appointment) (*ehr.Appointment, error) {
	in := *a
	in.ID = id
	body, err := AppointmentToAthena(&in, c.loc)
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := c.do(ctx, ehr.Call{
		Op: "update", Resource: "appointments",
		Method: http.MethodPut, Path: "appointments/" + url.PathEscape(id),
		Body: body, Out: &raw,
	}); err != nil {
		return nil, err
	}
	return c.appointmentResult(raw, body)
}

// CancelAppointment uses the dedicated cancel endpoint and reads the
// appointment back when the vendor answers without a body.
func (c *Client) CancelAppointment(ctx context.Context, id, reason string) (*ehr.Appointment, error) {
	var raw json.RawMessage
	if err := c.do(ctx, ehr.Call{
		Op: "cancel", Resource: "appointments",
		Method: http.MethodPut, Path: "appointments/" + url.PathEscape(id) + "/cancel",
		Body: map[string]string{"cancellationreason": reason},
		Out:  &raw,
	}); err != nil {
		return nil, err
	}
	var r Appointment
	ok, err := decodeFirst(raw, &r)
	if err != nil {
		return nil, err
	}
	if !ok || r.Date == "" {
		raw, r = nil, Appointment{}
		if err := c.do(ctx, ehr.Call{
			Op: "get", Resource: "appointments",
			Method: http.MethodGet, Path: "appointments/" + url.PathEscape(id),
			Out: &raw,
		}); err != nil {
			return nil, err
		}
		if _, err := decodeFirst(raw, &r); err != nil {
			return nil, err
		}
	}
	out := AppointmentFromAthena(&r, c.loc)
	if out.ID == "" {
		out.ID = id
	}
	out.Status = ehr.AppointmentCancelled
	return &out, nil
}

// appointmentResult prefers the vendor's echo of the appointment and falls
// back to what was sent, keeping any id the vendor assigned.
func (c *Client) appointmentResult(raw json.RawMessage, sent Appointment) (*ehr.Appointment, error) {
	var r Appointment
	if _, err := decodeFirst(raw, &r); err != nil {
		return nil, err
	}
	if r.Date == "" {
		id := r.AppointmentID
		r = sent
		if id != "" {
			r.AppointmentID = id
		}
	}
	out := AppointmentFromAthena(&r, c.loc)
	return &out, nil
}
