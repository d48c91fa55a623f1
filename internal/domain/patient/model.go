// Package patient keeps the local patient mirror in step with the vendors.
package patient

import (
	"time"

	"github.com/google/uuid"

	"github.com/ehr/ehrbridge/internal/ehr"
)

// Record is one mirror row. ID is the local key; VendorPatientID is the
// identifier the vendor assigned.
type Record struct {
	ID              uuid.UUID         `json:"id"`
	Vendor          string            `json:"vendor"`
	VendorPatientID string            `json:"vendorPatientId"`
	ExternalID      string            `json:"externalId,omitempty"`
	FirstName       string            `json:"firstName"`
	LastName        string            `json:"lastName"`
	DateOfBirth     string            `json:"dateOfBirth,omitempty"`
	Gender          string            `json:"gender,omitempty"`
	Email           string            `json:"email,omitempty"`
	Phone           string            `json:"phone,omitempty"`
	Address         *ehr.Address      `json:"address,omitempty"`
	Insurance       *ehr.Insurance    `json:"insurance,omitempty"`
	Allergies       []string          `json:"allergies,omitempty"`
	Medications     []string          `json:"medications,omitempty"`
	Status          ehr.PatientStatus `json:"status"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// RecordFrom copies p into a mirror row for vendor. The vendor id is taken
// from p.ID.
func RecordFrom(vendor string, p *ehr.Patient) *Record {
	r := &Record{
		Vendor:          vendor,
		VendorPatientID: p.ID,
		ExternalID:      p.ExternalID,
		FirstName:       p.FirstName,
		LastName:        p.LastName,
		DateOfBirth:     p.DateOfBirth,
		Gender:          p.Gender,
		Email:           p.Email,
		Phone:           p.Phone,
		Allergies:       p.Allergies,
		Medications:     p.Medications,
		Status:          p.Status,
	}
	if !p.Address.IsZero() {
		addr := *p.Address
		r.Address = &addr
	}
	if p.Insurance != nil {
		ins := *p.Insurance
		r.Insurance = &ins
	}
	return r
}

// Patient converts the row back to the internal shape, vendor id first.
func (r *Record) Patient() ehr.Patient {
	return ehr.Patient{
		ID:          r.VendorPatientID,
		ExternalID:  r.ExternalID,
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		DateOfBirth: r.DateOfBirth,
		Gender:      r.Gender,
		Email:       r.Email,
		Phone:       r.Phone,
		Address:     r.Address,
		Insurance:   r.Insurance,
		Allergies:   r.Allergies,
		Medications: r.Medications,
		Status:      r.Status,
	}
}

// OutboxOp names the deferred mirror mutation.
type OutboxOp string

const (
	OpUpsert     OutboxOp = "upsert"
	OpDeactivate OutboxOp = "deactivate"
)

// OutboxEntry is a mirror write that failed after its vendor write
// succeeded. Payload is nil for deactivations.
type OutboxEntry struct {
	ID              uuid.UUID
	Op              OutboxOp
	Vendor          string
	VendorPatientID string
	Payload         *Record
	Attempts        int
	LastError       string
	CreatedAt       time.Time
	AppliedAt       *time.Time
	// DecodeErr is set when the stored payload could not be read back.
	// Payload is nil and the entry is failed without being applied.
	DecodeErr error
}
