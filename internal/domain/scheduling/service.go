// Package scheduling books and manages appointments on the vendor side.
// Appointments are not mirrored locally.
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ehr/ehrbridge/internal/ehr"
)

// ErrInvalidDateTime rejects a dateTime that is not RFC 3339.
var ErrInvalidDateTime = errors.New("dateTime must be an RFC 3339 timestamp")

type Service struct{}

func NewService() *Service {
	return &Service{}
}

func (s *Service) ListAppointments(ctx context.Context, client ehr.Client, q ehr.AppointmentQuery) ([]ehr.Appointment, error) {
	appts, err := client.ListAppointments(ctx, q)
	if err != nil {
		return nil, err
	}
	if appts == nil {
		appts = []ehr.Appointment{}
	}
	return appts, nil
}

// CreateAppointment books a new appointment; new bookings start scheduled.
func (s *Service) CreateAppointment(ctx context.Context, client ehr.Client, a *ehr.Appointment) (*ehr.Appointment, error) {
	if err := checkDateTime(a.DateTime); err != nil {
		return nil, err
	}
	a.ID = ""
	if a.Status == "" {
		a.Status = ehr.AppointmentScheduled
	}
	return client.CreateAppointment(ctx, a)
}

func (s *Service) UpdateAppointment(ctx context.Context, client ehr.Client, id string, a *ehr.Appointment) (*ehr.Appointment, error) {
	if err := checkDateTime(a.DateTime); err != nil {
		return nil, err
	}
	return client.UpdateAppointment(ctx, id, a)
}

func (s *Service) CancelAppointment(ctx context.Context, client ehr.Client, id, reason string) (*ehr.Appointment, error) {
	return client.CancelAppointment(ctx, id, reason)
}

func checkDateTime(v string) error {
	if _, err := time.Parse(time.RFC3339, v); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDateTime, v)
	}
	return nil
}
