package modmed

import (
	"fmt"
	"time"

	"github.com/ehr/ehrbridge/internal/ehr"
	"github.com/ehr/ehrbridge/internal/platform/fhir"
)

const (
	externalIDSystem     = "urn:ehrbridge:external-id"
	insuranceClaimSystem = "urn:ehrbridge:insurance-claim"
	claimStatusExtension = "urn:ehrbridge:claim-status"
	rxNormSystem         = "http://www.nlm.nih.gov/research/umls/rxnorm"
	vitalSignsPanelCode  = "85353-1"
	vitalSignsPanelName  = "Vital signs, weight, height, head circumference, oxygen saturation and BMI panel"
)

type vital struct {
	code    string
	display string
	unit    string
	ucum    string
}

var (
	vitalSystolic    = vital{"8480-6", "Systolic blood pressure", "mmHg", "mm[Hg]"}
	vitalDiastolic   = vital{"8462-4", "Diastolic blood pressure", "mmHg", "mm[Hg]"}
	vitalHeartRate   = vital{"8867-4", "Heart rate", "beats/minute", "/min"}
	vitalTemperature = vital{"8310-5", "Body temperature", "degF", "[degF]"}
	vitalWeight      = vital{"29463-7", "Body weight", "lb", "[lb_av]"}
	vitalHeight      = vital{"8302-2", "Body height", "in", "[in_i]"}
	vitalRespiratory = vital{"9279-1", "Respiratory rate", "breaths/minute", "/min"}
	vitalOxygen      = vital{"59408-5", "Oxygen saturation in Arterial blood by Pulse oximetry", "%", "%"}
)

func (v vital) component(value float64) ObservationComponent {
	return ObservationComponent{
		Code: fhir.CodeableConcept{
			Coding: []fhir.Coding{{System: fhir.SystemLOINC, Code: v.code, Display: v.display}},
		},
		ValueQuantity: &fhir.Quantity{Value: &value, Unit: v.unit, System: fhir.SystemUCUM, Code: v.ucum},
	}
}

var appointmentStatusToFHIR = map[ehr.AppointmentStatus]string{
	ehr.AppointmentScheduled: "pending",
	ehr.AppointmentConfirmed: "booked",
	ehr.AppointmentCompleted: "fulfilled",
	ehr.AppointmentCancelled: "cancelled",
}

var appointmentStatusFromFHIR = map[string]ehr.AppointmentStatus{
	"proposed":         ehr.AppointmentScheduled,
	"pending":          ehr.AppointmentScheduled,
	"waitlist":         ehr.AppointmentScheduled,
	"booked":           ehr.AppointmentConfirmed,
	"arrived":          ehr.AppointmentConfirmed,
	"checked-in":       ehr.AppointmentConfirmed,
	"fulfilled":        ehr.AppointmentCompleted,
	"cancelled":        ehr.AppointmentCancelled,
	"noshow":           ehr.AppointmentCancelled,
	"entered-in-error": ehr.AppointmentCancelled,
}

// PatientToFHIR converts an internal patient. Absent contact and address
// fields are left out of the resource entirely.
func PatientToFHIR(p *ehr.Patient) Patient {
	active := p.Status != ehr.PatientInactive
	r := Patient{
		ResourceType: "Patient",
		ID:           p.ID,
		Active:       &active,
		Name: []fhir.HumanName{{
			Use:    "official",
			Family: p.LastName,
			Given:  givenNames(p.FirstName),
		}},
		Gender:    ehr.NormalizeGender(p.Gender),
		BirthDate: p.DateOfBirth,
	}
	if p.ExternalID != "" {
		r.Identifier = []fhir.Identifier{{Use: "secondary", System: externalIDSystem, Value: p.ExternalID}}
	}
	if p.Phone != "" {
		r.Telecom = append(r.Telecom, fhir.ContactPoint{System: "phone", Value: p.Phone, Use: "mobile"})
	}
	if p.Email != "" {
		r.Telecom = append(r.Telecom, fhir.ContactPoint{System: "email", Value: p.Email})
	}
	if !p.Address.IsZero() {
		addr := fhir.Address{
			Use:        "home",
			City:       p.Address.City,
			State:      p.Address.State,
			PostalCode: p.Address.ZipCode,
		}
		if p.Address.Street != "" {
			addr.Line = []string{p.Address.Street}
		}
		r.Address = []fhir.Address{addr}
	}
	return r
}

func givenNames(first string) []string {
	if first == "" {
		return nil
	}
	return []string{first}
}

// PatientFromFHIR converts a vendor Patient into the internal shape.
func PatientFromFHIR(r *Patient) ehr.Patient {
	p := ehr.Patient{
		ID:          r.ID,
		Gender:      r.Gender,
		DateOfBirth: r.BirthDate,
		Status:      ehr.PatientActive,
	}
	// active is optional in FHIR; only an explicit false deactivates.
	if r.Active != nil && !*r.Active {
		p.Status = ehr.PatientInactive
	}

	if name := officialName(r.Name); name != nil {
		p.LastName = name.Family
		if len(name.Given) > 0 {
			p.FirstName = name.Given[0]
		}
	}
	for _, id := range r.Identifier {
		if id.System == externalIDSystem {
			p.ExternalID = id.Value
		}
	}
	for _, t := range r.Telecom {
		switch t.System {
		case "phone":
			if p.Phone == "" {
				p.Phone = t.Value
			}
		case "email":
			if p.Email == "" {
				p.Email = t.Value
			}
		}
	}
	if len(r.Address) > 0 {
		a := r.Address[0]
		p.Address = &ehr.Address{City: a.City, State: a.State, ZipCode: a.PostalCode}
		if len(a.Line) > 0 {
			p.Address.Street = a.Line[0]
		}
	}
	return p
}

func officialName(names []fhir.HumanName) *fhir.HumanName {
	for i := range names {
		if names[i].Use == "official" {
			return &names[i]
		}
	}
	if len(names) > 0 {
		return &names[0]
	}
	return nil
}

// AppointmentToFHIR converts an internal appointment. The end time is the
// start plus the duration, 30 minutes when unset.
func AppointmentToFHIR(a *ehr.Appointment) (Appointment, error) {
	start, err := time.Parse(time.RFC3339, a.DateTime)
	if err != nil {
		return Appointment{}, fmt.Errorf("appointment dateTime %q: %w", a.DateTime, err)
	}
	minutes := a.Minutes()

	status := appointmentStatusToFHIR[a.Status]
	if status == "" {
		status = appointmentStatusToFHIR[ehr.AppointmentScheduled]
	}

	r := Appointment{
		ResourceType:    "Appointment",
		ID:              a.ID,
		Status:          status,
		Description:     a.Reason,
		Start:           start.Format(time.RFC3339),
		End:             start.Add(time.Duration(minutes) * time.Minute).Format(time.RFC3339),
		MinutesDuration: minutes,
		Comment:         a.Notes,
		Participant: []AppointmentParticipant{{
			Actor:    fhir.NewReference("Patient", a.PatientID),
			Required: "required",
			Status:   "accepted",
		}},
	}
	if a.Type != "" {
		r.AppointmentType = &fhir.CodeableConcept{Text: a.Type}
	}
	if a.ProviderID != "" {
		r.Participant = append(r.Participant, AppointmentParticipant{
			Actor:    fhir.NewReference("Practitioner", a.ProviderID),
			Required: "optional",
			Status:   "accepted",
		})
	}
	return r, nil
}

func AppointmentFromFHIR(r *Appointment) ehr.Appointment {
	a := ehr.Appointment{
		ID:       r.ID,
		DateTime: r.Start,
		Duration: r.MinutesDuration,
		Status:   appointmentStatusFromFHIR[r.Status],
		Reason:   r.Description,
		Notes:    r.Comment,
	}
	if a.Status == "" {
		a.Status = ehr.AppointmentScheduled
	}
	if a.Duration == 0 {
		start, errStart := time.Parse(time.RFC3339, r.Start)
		end, errEnd := time.Parse(time.RFC3339, r.End)
		if errStart == nil && errEnd == nil && end.After(start) {
			a.Duration = int(end.Sub(start) / time.Minute)
		}
	}
	if r.AppointmentType != nil {
		a.Type = r.AppointmentType.Text
		if a.Type == "" {
			a.Type = r.AppointmentType.FirstCoding().Display
		}
	}
	for _, p := range r.Participant {
		switch p.Actor.ResourceType() {
		case "Patient":
			a.PatientID = p.Actor.ID()
		case "Practitioner":
			a.ProviderID = p.Actor.ID()
		}
	}
	return a
}

// VitalsToObservation converts a vitals reading. Only readings present in v
// become components; blood pressure requires both values. now is used only
// when v carries no recordedAt.
func VitalsToObservation(v *ehr.VitalSigns, now time.Time) Observation {
	effective := v.RecordedAt
	if effective == "" {
		effective = now.UTC().Format(time.RFC3339)
	}

	components := make([]ObservationComponent, 0, 7)
	if v.BloodPressure.Complete() {
		components = append(components,
			vitalSystolic.component(*v.BloodPressure.Systolic),
			vitalDiastolic.component(*v.BloodPressure.Diastolic),
		)
	}
	for _, reading := range []struct {
		def   vital
		value *float64
	}{
		{vitalHeartRate, v.HeartRate},
		{vitalTemperature, v.Temperature},
		{vitalWeight, v.Weight},
		{vitalHeight, v.Height},
		{vitalRespiratory, v.RespiratoryRate},
		{vitalOxygen, v.OxygenSaturation},
	} {
		if reading.value != nil {
			components = append(components, reading.def.component(*reading.value))
		}
	}

	return Observation{
		ResourceType: "Observation",
		ID:           v.ID,
		Status:       "final",
		Category: []fhir.CodeableConcept{{
			Coding: []fhir.Coding{{System: fhir.SystemObservationCategory, Code: "vital-signs", Display: "Vital Signs"}},
		}},
		Code: fhir.CodeableConcept{
			Coding: []fhir.Coding{{System: fhir.SystemLOINC, Code: vitalSignsPanelCode, Display: vitalSignsPanelName}},
		},
		Subject:           fhir.NewReference("Patient", v.PatientID),
		EffectiveDateTime: effective,
		Component:         components,
	}
}

// VitalsFromObservation reads a panel observation or a single-value vital
// observation back into the internal shape.
func VitalsFromObservation(o *Observation) ehr.VitalSigns {
	v := ehr.VitalSigns{
		ID:         o.ID,
		PatientID:  o.Subject.ID(),
		RecordedAt: o.EffectiveDateTime,
	}
	var systolic, diastolic *float64

	assign := func(code fhir.CodeableConcept, q *fhir.Quantity) {
		if q == nil || q.Value == nil {
			return
		}
		val := *q.Value
		switch {
		case code.HasCode(fhir.SystemLOINC, vitalSystolic.code):
			systolic = &val
		case code.HasCode(fhir.SystemLOINC, vitalDiastolic.code):
			diastolic = &val
		case code.HasCode(fhir.SystemLOINC, vitalHeartRate.code):
			v.HeartRate = &val
		case code.HasCode(fhir.SystemLOINC, vitalTemperature.code):
			v.Temperature = &val
		case code.HasCode(fhir.SystemLOINC, vitalWeight.code):
			v.Weight = &val
		case code.HasCode(fhir.SystemLOINC, vitalHeight.code):
			v.Height = &val
		case code.HasCode(fhir.SystemLOINC, vitalRespiratory.code):
			v.RespiratoryRate = &val
		case code.HasCode(fhir.SystemLOINC, vitalOxygen.code):
			v.OxygenSaturation = &val
		}
	}

	assign(o.Code, o.ValueQuantity)
	for _, c := range o.Component {
		assign(c.Code, c.ValueQuantity)
	}
	if systolic != nil || diastolic != nil {
		v.BloodPressure = &ehr.BloodPressure{Systolic: systolic, Diastolic: diastolic}
	}
	return v
}

func ConditionFromFHIR(c *Condition) ehr.Condition {
	out := ehr.Condition{
		ID:           c.ID,
		PatientID:    c.Subject.ID(),
		OnsetDate:    c.OnsetDateTime,
		RecordedDate: c.RecordedDate,
	}
	if c.Code != nil {
		coding := c.Code.FirstCoding()
		out.Code = coding.Code
		out.CodeSystem = coding.System
		out.Display = coding.Display
		if out.Display == "" {
			out.Display = c.Code.Text
		}
	}
	if c.ClinicalStatus != nil {
		out.ClinicalStatus = c.ClinicalStatus.FirstCoding().Code
	}
	return out
}

func MedicationToFHIR(m *ehr.Medication) MedicationRequest {
	status := m.Status
	if status == "" {
		status = "active"
	}
	concept := &fhir.CodeableConcept{Text: m.Name}
	if m.Code != "" {
		concept.Coding = []fhir.Coding{{System: rxNormSystem, Code: m.Code, Display: m.Name}}
	}
	r := MedicationRequest{
		ResourceType:              "MedicationRequest",
		ID:                        m.ID,
		Status:                    status,
		Intent:                    "order",
		MedicationCodeableConcept: concept,
		Subject:                   fhir.NewReference("Patient", m.PatientID),
		AuthoredOn:                m.AuthoredOn,
	}
	if m.Dosage != "" {
		r.DosageInstruction = []Dosage{{Text: m.Dosage}}
	}
	return r
}

func MedicationFromFHIR(r *MedicationRequest) ehr.Medication {
	m := ehr.Medication{
		ID:         r.ID,
		PatientID:  r.Subject.ID(),
		Status:     r.Status,
		AuthoredOn: r.AuthoredOn,
	}
	if r.MedicationCodeableConcept != nil {
		m.Name = r.MedicationCodeableConcept.Text
		coding := r.MedicationCodeableConcept.FirstCoding()
		m.Code = coding.Code
		if m.Name == "" {
			m.Name = coding.Display
		}
	}
	if len(r.DosageInstruction) > 0 {
		m.Dosage = r.DosageInstruction[0].Text
	}
	return m
}

// claimStatusToFHIR collapses practice billing states onto FHIR Claim.status.
// The practice state itself rides along in an extension.
func claimStatusToFHIR(s ehr.ClaimStatus) string {
	switch s {
	case "", ehr.ClaimPending:
		return "draft"
	default:
		return "active"
	}
}

func ClaimToFHIR(c *ehr.BillingClaim) Claim {
	status := c.Status
	if status == "" {
		status = ehr.ClaimPending
	}
	r := Claim{
		ResourceType: "Claim",
		ID:           c.ID,
		Extension:    []fhir.Extension{{URL: claimStatusExtension, ValueCode: string(status)}},
		Status:       claimStatusToFHIR(status),
		Type: fhir.CodeableConcept{
			Coding: []fhir.Coding{{System: fhir.SystemClaimType, Code: "professional"}},
		},
		Use:            "claim",
		Patient:        fhir.NewReference("Patient", c.PatientID),
		Created:        c.ServiceDate,
		BillablePeriod: &fhir.Period{Start: c.ServiceDate},
		Total:          &fhir.Money{Value: c.Amount, Currency: "USD"},
		Item: []ClaimItem{{
			Sequence:         1,
			ProductOrService: fhir.CodeableConcept{Text: c.Description},
			ServicedDate:     c.ServiceDate,
			Net:              &fhir.Money{Value: c.Amount, Currency: "USD"},
		}},
	}
	if c.InsuranceClaimID != "" {
		r.Identifier = []fhir.Identifier{{System: insuranceClaimSystem, Value: c.InsuranceClaimID}}
	}
	return r
}

func ClaimFromFHIR(r *Claim) ehr.BillingClaim {
	c := ehr.BillingClaim{
		ID:        r.ID,
		PatientID: r.Patient.ID(),
	}
	for _, ext := range r.Extension {
		if ext.URL == claimStatusExtension {
			c.Status = ehr.ClaimStatus(ext.ValueCode)
		}
	}
	if c.Status == "" {
		switch r.Status {
		case "draft":
			c.Status = ehr.ClaimPending
		case "cancelled", "entered-in-error":
			c.Status = ehr.ClaimDenied
		default:
			c.Status = ehr.ClaimSubmitted
		}
	}
	for _, id := range r.Identifier {
		if id.System == insuranceClaimSystem {
			c.InsuranceClaimID = id.Value
		}
	}
	if r.Total != nil {
		c.Amount = r.Total.Value
	}
	if len(r.Item) > 0 {
		c.Description = r.Item[0].ProductOrService.Text
		c.ServiceDate = r.Item[0].ServicedDate
	}
	if c.ServiceDate == "" && r.BillablePeriod != nil {
		c.ServiceDate = r.BillablePeriod.Start
	}
	if c.ServiceDate == "" {
		c.ServiceDate = r.Created
	}
	return c
}
