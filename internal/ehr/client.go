package ehr

import "context"

// Client is the operation set shared by every vendor integration. Every call
// obtains a fresh-enough token first and performs exactly one vendor request
// attempt.
type Client interface {
	Vendor() string

	// Authenticate forces a credential check, refreshing when the cached
	// token is missing or near expiry.
	Authenticate(ctx context.Context) error
	// TestConnection performs a lightweight read and never returns an error.
	TestConnection(ctx context.Context) bool

	ListPatients(ctx context.Context, q PatientQuery) (*PatientPage, error)
	GetPatient(ctx context.Context, id string) (*Patient, error)
	CreatePatient(ctx context.Context, p *Patient) (*Patient, error)
	UpdatePatient(ctx context.Context, id string, p *Patient) (*Patient, error)
	DeletePatient(ctx context.Context, id string) error

	ListAppointments(ctx context.Context, q AppointmentQuery) ([]Appointment, error)
	CreateAppointment(ctx context.Context, a *Appointment) (*Appointment, error)
	UpdateAppointment(ctx context.Context, id string, a *Appointment) (*Appointment, error)
	CancelAppointment(ctx context.Context, id, reason string) (*Appointment, error)

	GetVitals(ctx context.Context, patientID string) ([]VitalSigns, error)
	RecordVitals(ctx context.Context, v *VitalSigns) (*VitalSigns, error)
	GetConditions(ctx context.Context, patientID string) ([]Condition, error)
	GetMedications(ctx context.Context, patientID string) ([]Medication, error)
	UpdateMedication(ctx context.Context, patientID, id string, m *Medication) (*Medication, error)

	ListClaims(ctx context.Context, q ClaimQuery) ([]BillingClaim, error)
	SubmitClaim(ctx context.Context, c *BillingClaim) (*BillingClaim, error)
}

// Provider hands out clients for one vendor.
type Provider interface {
	Vendor() string
	// ClientFor returns the client bound to a dashboard user's persisted
	// token.
	ClientFor(ctx context.Context, userID string) (Client, error)
	// WithCredentials builds a throwaway client from supplied credentials.
	WithCredentials(creds Credentials) (Client, error)
}

// DisplayName returns the human-facing vendor name used in messages.
func DisplayName(vendor string) string {
	switch vendor {
	case VendorModMed:
		return "ModMed"
	case VendorAthena:
		return "athenahealth"
	default:
		return vendor
	}
}
