package modmed

import "github.com/ehr/ehrbridge/internal/platform/fhir"

// FHIR resources as exchanged with the ModMed API. Field order fixes the
// encoded key order.

type Patient struct {
	ResourceType string              `json:"resourceType"`
	ID           string              `json:"id,omitempty"`
	Identifier   []fhir.Identifier   `json:"identifier,omitempty"`
	Active       *bool               `json:"active,omitempty"`
	Name         []fhir.HumanName    `json:"name,omitempty"`
	Telecom      []fhir.ContactPoint `json:"telecom,omitempty"`
	Gender       string              `json:"gender"`
	BirthDate    string              `json:"birthDate,omitempty"`
	Address      []fhir.Address      `json:"address,omitempty"`
}

type Appointment struct {
	ResourceType      string                   `json:"resourceType"`
	ID                string                   `json:"id,omitempty"`
	Status            string                   `json:"status"`
	CancelationReason *fhir.CodeableConcept    `json:"cancelationReason,omitempty"`
	AppointmentType   *fhir.CodeableConcept    `json:"appointmentType,omitempty"`
	Description       string                   `json:"description,omitempty"`
	Start             string                   `json:"start"`
	End               string                   `json:"end"`
	MinutesDuration   int                      `json:"minutesDuration"`
	Comment           string                   `json:"comment,omitempty"`
	Participant       []AppointmentParticipant `json:"participant"`
}

type AppointmentParticipant struct {
	Actor    *fhir.Reference `json:"actor"`
	Required string          `json:"required"`
	Status   string          `json:"status"`
}

type Observation struct {
	ResourceType      string                 `json:"resourceType"`
	ID                string                 `json:"id,omitempty"`
	Status            string                 `json:"status"`
	Category          []fhir.CodeableConcept `json:"category"`
	Code              fhir.CodeableConcept   `json:"code"`
	Subject           *fhir.Reference        `json:"subject"`
	EffectiveDateTime string                 `json:"effectiveDateTime"`
	ValueQuantity     *fhir.Quantity         `json:"valueQuantity,omitempty"`
	Component         []ObservationComponent `json:"component"`
}

type ObservationComponent struct {
	Code          fhir.CodeableConcept `json:"code"`
	ValueQuantity *fhir.Quantity       `json:"valueQuantity,omitempty"`
}

type Condition struct {
	ResourceType   string                `json:"resourceType"`
	ID             string                `json:"id,omitempty"`
	ClinicalStatus *fhir.CodeableConcept `json:"clinicalStatus,omitempty"`
	Code           *fhir.CodeableConcept `json:"code,omitempty"`
	Subject        *fhir.Reference       `json:"subject,omitempty"`
	OnsetDateTime  string                `json:"onsetDateTime,omitempty"`
	RecordedDate   string                `json:"recordedDate,omitempty"`
}

type MedicationRequest struct {
	ResourceType              string                `json:"resourceType"`
	ID                        string                `json:"id,omitempty"`
	Status                    string                `json:"status"`
	Intent                    string                `json:"intent"`
	MedicationCodeableConcept *fhir.CodeableConcept `json:"medicationCodeableConcept,omitempty"`
	Subject                   *fhir.Reference       `json:"subject"`
	AuthoredOn                string                `json:"authoredOn,omitempty"`
	DosageInstruction         []Dosage              `json:"dosageInstruction,omitempty"`
}

type Dosage struct {
	Text string `json:"text,omitempty"`
}

type Claim struct {
	ResourceType   string               `json:"resourceType"`
	ID             string               `json:"id,omitempty"`
	Extension      []fhir.Extension     `json:"extension,omitempty"`
	Identifier     []fhir.Identifier    `json:"identifier,omitempty"`
	Status         string               `json:"status"`
	Type           fhir.CodeableConcept `json:"type"`
	Use            string               `json:"use"`
	Patient        *fhir.Reference      `json:"patient"`
	Created        string               `json:"created,omitempty"`
	BillablePeriod *fhir.Period         `json:"billablePeriod,omitempty"`
	Total          *fhir.Money          `json:"total,omitempty"`
	Item           []ClaimItem          `json:"item,omitempty"`
}

type ClaimItem struct {
	Sequence         int                  `json:"sequence"`
	ProductOrService fhir.CodeableConcept `json:"productOrService"`
	ServicedDate     string               `json:"servicedDate,omitempty"`
	Net              *fhir.Money          `json:"net,omitempty"`
}
