package athena

import (
	"bytes"
	"encoding/json"
)

// Wire shapes of the athenahealth REST API.

type Patient struct {
	PatientID   string      `json:"patientid,omitempty"`
	ExternalID  string      `json:"externalid,omitempty"`
	FirstName   string      `json:"firstname"`
	LastName    string      `json:"lastname"`
	DOB         string      `json:"dob,omitempty"`
	Sex         string      `json:"sex,omitempty"`
	Email       string      `json:"email,omitempty"`
	MobilePhone string      `json:"mobilephone,omitempty"`
	Address1    string      `json:"address1,omitempty"`
	City        string      `json:"city,omitempty"`
	State       string      `json:"state,omitempty"`
	Zip         string      `json:"zip,omitempty"`
	Status      string      `json:"status,omitempty"`
	Insurances  []Insurance `json:"insurances,omitempty"`
	Allergies   []Allergy   `json:"allergies,omitempty"`
	Medications []string    `json:"medications,omitempty"`
}

type Insurance struct {
	InsurancePlanName string `json:"insuranceplanname,omitempty"`
	InsuranceIDNumber string `json:"insuranceidnumber,omitempty"`
	PolicyNumber      string `json:"policynumber,omitempty"`
}

type Allergy struct {
	AllergenName string `json:"allergenname"`
}

type PatientList struct {
	Patients   []Patient `json:"patients"`
	TotalCount int       `json:"totalcount"`
}

type Appointment struct {
	AppointmentID      string `json:"appointmentid,omitempty"`
	PatientID          string `json:"patientid"`
	ProviderID         string `json:"providerid,omitempty"`
	Date               string `json:"date"`
	StartTime          string `json:"starttime"`
	Duration           int    `json:"duration"`
	AppointmentType    string `json:"appointmenttype,omitempty"`
	AppointmentStatus  string `json:"appointmentstatus,omitempty"`
	Reason             string `json:"reason,omitempty"`
	Notes              string `json:"notes,omitempty"`
	CancellationReason string `json:"cancellationreason,omitempty"`
}

type AppointmentList struct {
	Appointments []Appointment `json:"appointments"`
}

type Vitals struct {
	VitalID      string    `json:"vitalid,omitempty"`
	PatientID    string    `json:"patientid,omitempty"`
	ReadingTaken string    `json:"readingtaken"`
	Readings     []Reading `json:"readings"`
}

type Reading struct {
	ClinicalElementID string `json:"clinicalelementid"`
	Value             string `json:"value"`
}

type VitalsList struct {
	Vitals []Vitals `json:"vitals"`
}

type Problem struct {
	ProblemID  string `json:"problemid"`
	Code       string `json:"code,omitempty"`
	CodeSystem string `json:"codeset,omitempty"`
	Name       string `json:"name,omitempty"`
	Status     string `json:"status,omitempty"`
	OnsetDate  string `json:"onsetdate,omitempty"`
	EnteredOn  string `json:"lastmodifieddatetime,omitempty"`
}

type ProblemList struct {
	Problems []Problem `json:"problems"`
}

type Medication struct {
	MedicationEntryID string `json:"medicationentryid,omitempty"`
	Medication        string `json:"medication"`
	RxNorm            string `json:"rxnorm,omitempty"`
	Sig               string `json:"sig,omitempty"`
	Status            string `json:"status,omitempty"`
	CreatedDate       string `json:"createddate,omitempty"`
}

type MedicationList struct {
	Medications []Medication `json:"medications"`
}

type Claim struct {
	ClaimID          string  `json:"claimid,omitempty"`
	PatientID        string  `json:"patientid"`
	TotalCharge      float64 `json:"totalcharge"`
	ClaimStatus      string  `json:"claimstatus,omitempty"`
	ServiceDate      string  `json:"servicedate"`
	Description      string  `json:"description,omitempty"`
	InsuranceClaimID string  `json:"insuranceclaimid,omitempty"`
}

type ClaimList struct {
	Claims []Claim `json:"claims"`
}

// decodeFirst decodes raw into out, accepting either an object or the
// single-element array athena returns from several endpoints. It reports
// false when raw is empty.
func decodeFirst(raw json.RawMessage, out interface{}) (bool, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return false, nil
	}
	if raw[0] != '[' {
		return true, json.Unmarshal(raw, out)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return false, err
	}
	if len(items) == 0 {
		return false, nil
	}
	return true, json.Unmarshal(items[0], out)
}
