// Package ehr defines the vendor-agnostic practice data model and the client
// contract every EHR vendor integration implements.
package ehr

import "strings"

// Vendor names. They double as route prefixes and as the vendor column of the
// local mirror.
const (
	VendorModMed = "modmed"
	VendorAthena = "athena"
)

type PatientStatus string

const (
	PatientActive   PatientStatus = "active"
	PatientInactive PatientStatus = "inactive"
)

// Patient is the internal patient shape. ID holds the vendor-assigned
// identifier, never the local mirror key.
type Patient struct {
	ID          string        `json:"id,omitempty"`
	ExternalID  string        `json:"externalId,omitempty"`
	FirstName   string        `json:"firstName" validate:"required"`
	LastName    string        `json:"lastName" validate:"required"`
	DateOfBirth string        `json:"dateOfBirth,omitempty"`
	Gender      string        `json:"gender,omitempty"`
	Email       string        `json:"email,omitempty" validate:"omitempty,email"`
	Phone       string        `json:"phone,omitempty"`
	Address     *Address      `json:"address,omitempty"`
	Insurance   *Insurance    `json:"insurance,omitempty"`
	Allergies   []string      `json:"allergies,omitempty"`
	Medications []string      `json:"medications,omitempty"`
	Status      PatientStatus `json:"status,omitempty" validate:"omitempty,oneof=active inactive"`
}

type Address struct {
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	ZipCode string `json:"zipCode,omitempty"`
}

// IsZero reports whether every address field is empty.
func (a *Address) IsZero() bool {
	return a == nil || (a.Street == "" && a.City == "" && a.State == "" && a.ZipCode == "")
}

type Insurance struct {
	Provider    string `json:"provider,omitempty"`
	MemberID    string `json:"memberId,omitempty"`
	GroupNumber string `json:"groupNumber,omitempty"`
}

// PatientQuery carries the list parameters accepted by the dashboard. Page is
// 1-based.
type PatientQuery struct {
	Page   int
	Limit  int
	Search string
}

// Patient list bounds.
const (
	DefaultPatientLimit = 10
	MaxPatientLimit     = 100
)

// Normalize fills defaults and clamps the limit.
func (q PatientQuery) Normalize() PatientQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = DefaultPatientLimit
	}
	if q.Limit > MaxPatientLimit {
		q.Limit = MaxPatientLimit
	}
	return q
}

// Offset converts the page number into a zero-based record offset.
func (q PatientQuery) Offset() int {
	if q.Page <= 1 {
		return 0
	}
	return (q.Page - 1) * q.Limit
}

type PatientPage struct {
	Data  []Patient `json:"data"`
	Total int       `json:"total"`
	Page  int       `json:"page"`
	Limit int       `json:"limit"`
}

type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "scheduled"
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

// DefaultAppointmentMinutes applies when an appointment carries no duration.
const DefaultAppointmentMinutes = 30

type Appointment struct {
	ID         string            `json:"id,omitempty"`
	PatientID  string            `json:"patientId" validate:"required"`
	ProviderID string            `json:"providerId,omitempty"`
	DateTime   string            `json:"dateTime" validate:"required"`
	Duration   int               `json:"duration,omitempty" validate:"gte=0"`
	Type       string            `json:"type,omitempty"`
	Status     AppointmentStatus `json:"status,omitempty" validate:"omitempty,oneof=scheduled confirmed completed cancelled"`
	Reason     string            `json:"reason,omitempty"`
	Notes      string            `json:"notes,omitempty"`
}

// Minutes returns the appointment length, falling back to the default.
func (a *Appointment) Minutes() int {
	if a.Duration <= 0 {
		return DefaultAppointmentMinutes
	}
	return a.Duration
}

type AppointmentQuery struct {
	PatientID  string
	ProviderID string
	Date       string
	Status     string
}

// VitalSigns holds optional readings. A nil pointer means the reading was not
// taken and must not be sent to a vendor.
type VitalSigns struct {
	ID               string         `json:"id,omitempty"`
	PatientID        string         `json:"patientId"`
	RecordedAt       string         `json:"recordedAt,omitempty"`
	BloodPressure    *BloodPressure `json:"bloodPressure,omitempty"`
	HeartRate        *float64       `json:"heartRate,omitempty"`
	Temperature      *float64       `json:"temperature,omitempty"`
	Weight           *float64       `json:"weight,omitempty"`
	Height           *float64       `json:"height,omitempty"`
	RespiratoryRate  *float64       `json:"respiratoryRate,omitempty"`
	OxygenSaturation *float64       `json:"oxygenSaturation,omitempty"`
}

type BloodPressure struct {
	Systolic  *float64 `json:"systolic,omitempty"`
	Diastolic *float64 `json:"diastolic,omitempty"`
}

// Complete reports whether both pressures are present.
func (bp *BloodPressure) Complete() bool {
	return bp != nil && bp.Systolic != nil && bp.Diastolic != nil
}

type Condition struct {
	ID             string `json:"id"`
	PatientID      string `json:"patientId"`
	Code           string `json:"code,omitempty"`
	CodeSystem     string `json:"codeSystem,omitempty"`
	Display        string `json:"display,omitempty"`
	ClinicalStatus string `json:"clinicalStatus,omitempty"`
	OnsetDate      string `json:"onsetDate,omitempty"`
	RecordedDate   string `json:"recordedDate,omitempty"`
}

type Medication struct {
	ID         string `json:"id,omitempty"`
	PatientID  string `json:"patientId"`
	Name       string `json:"name" validate:"required"`
	Code       string `json:"code,omitempty"`
	Dosage     string `json:"dosage,omitempty"`
	Status     string `json:"status,omitempty"`
	AuthoredOn string `json:"authoredOn,omitempty"`
}

type ClaimStatus string

const (
	ClaimPending   ClaimStatus = "pending"
	ClaimSubmitted ClaimStatus = "submitted"
	ClaimApproved  ClaimStatus = "approved"
	ClaimDenied    ClaimStatus = "denied"
	ClaimPaid      ClaimStatus = "paid"
)

type BillingClaim struct {
	ID               string      `json:"id,omitempty"`
	PatientID        string      `json:"patientId" validate:"required"`
	Amount           float64     `json:"amount" validate:"gte=0"`
	Status           ClaimStatus `json:"status,omitempty" validate:"omitempty,oneof=pending submitted approved denied paid"`
	ServiceDate      string      `json:"serviceDate" validate:"required"`
	Description      string      `json:"description,omitempty"`
	InsuranceClaimID string      `json:"insuranceClaimId,omitempty"`
}

type ClaimQuery struct {
	PatientID string
	Status    string
}

// Credentials are dashboard-supplied client credentials used to test a
// vendor before they are saved.
type Credentials struct {
	ClientID     string `json:"clientId" validate:"required"`
	ClientSecret string `json:"clientSecret" validate:"required"`
	UseSandbox   bool   `json:"useSandbox"`
}

// NormalizeGender maps free-form gender values onto the administrative
// gender vocabulary shared by both vendors.
func NormalizeGender(g string) string {
	switch strings.ToLower(strings.TrimSpace(g)) {
	case "male", "m":
		return "male"
	case "female", "f":
		return "female"
	case "other", "o":
		return "other"
	default:
		return "unknown"
	}
}

// Float returns a pointer to v; handy for building vitals.
func Float(v float64) *float64 { return &v }
