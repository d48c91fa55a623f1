package athena

import (
	"strconv"
	"strings"
	"time"

	"github.com/ehr/ehrbridge/internal/ehr"
)

const (
	athenaDate = "01/02/2006"
	athenaTime = "15:04"
	isoDate    = "2006-01-02"
)

// Clinical element ids used in vitals readings.
const (
	elementSystolic    = "VITALS.BLOODPRESSURE.SYSTOLIC"
	elementDiastolic   = "VITALS.BLOODPRESSURE.DIASTOLIC"
	elementHeartRate   = "VITALS.HEARTRATE"
	elementTemperature = "VITALS.TEMPERATURE"
	elementWeight      = "VITALS.WEIGHT"
	elementHeight      = "VITALS.HEIGHT"
	elementRespiration = "VITALS.RESPIRATIONRATE"
	elementSpO2        = "VITALS.INHALEDO2CONCENTRATION"
)

// toAthenaDate converts YYYY-MM-DD to MM/DD/YYYY. Values that do not parse
// are passed through so the vendor can reject them.
func toAthenaDate(s string) string {
	if s == "" {
		return ""
	}
	t, err := time.Parse(isoDate, s)
	if err != nil {
		return s
	}
	return t.Format(athenaDate)
}

func fromAthenaDate(s string) string {
	if s == "" {
		return ""
	}
	t, err := time.Parse(athenaDate, s)
	if err != nil {
		return s
	}
	return t.Format(isoDate)
}

func toSex(gender string) string {
	switch ehr.NormalizeGender(gender) {
	case "male":
		return "M"
	case "female":
		return "F"
	default:
		return ""
	}
}

func fromSex(sex string) string {
	if sex == "" {
		return ""
	}
	return ehr.NormalizeGender(sex)
}

func PatientToAthena(p *ehr.Patient) Patient {
	out := Patient{
		PatientID:   p.ID,
		ExternalID:  p.ExternalID,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		DOB:         toAthenaDate(p.DateOfBirth),
		Sex:         toSex(p.Gender),
		Email:       p.Email,
		MobilePhone: p.Phone,
		Status:      string(p.Status),
		Medications: p.Medications,
	}
	if a := p.Address; !a.IsZero() {
		out.Address1 = a.Street
		out.City = a.City
		out.State = a.State
		out.Zip = a.ZipCode
	}
	if ins := p.Insurance; ins != nil {
		out.Insurances = []Insurance{{
			InsurancePlanName: ins.Provider,
			InsuranceIDNumber: ins.MemberID,
			PolicyNumber:      ins.GroupNumber,
		}}
	}
	for _, a := range p.Allergies {
		out.Allergies = append(out.Allergies, Allergy{AllergenName: a})
	}
	return out
}

// patientStatusFromAthena folds athena registration statuses such as
// prospective or deleted onto active/inactive. Empty stays empty so the
// mirrored status is kept.
func patientStatusFromAthena(s string) ehr.PatientStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return ""
	case "deleted", "inactive":
		return ehr.PatientInactive
	default:
		return ehr.PatientActive
	}
}

func PatientFromAthena(r *Patient) ehr.Patient {
	p := ehr.Patient{
		ID:          r.PatientID,
		ExternalID:  r.ExternalID,
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		DateOfBirth: fromAthenaDate(r.DOB),
		Gender:      fromSex(r.Sex),
		Email:       r.Email,
		Phone:       r.MobilePhone,
		Medications: r.Medications,
		Status:      patientStatusFromAthena(r.Status),
	}
	addr := &ehr.Address{Street: r.Address1, City: r.City, State: r.State, ZipCode: r.Zip}
	if !addr.IsZero() {
		p.Address = addr
	}
	if len(r.Insurances) > 0 {
		ins := r.Insurances[0]
		p.Insurance = &ehr.Insurance{
			Provider:    ins.InsurancePlanName,
			MemberID:    ins.InsuranceIDNumber,
			GroupNumber: ins.PolicyNumber,
		}
	}
	for _, a := range r.Allergies {
		p.Allergies = append(p.Allergies, a.AllergenName)
	}
	return p
}

var (
	appointmentStatusToAthena = map[ehr.AppointmentStatus]string{
		ehr.AppointmentScheduled: "f",
		ehr.AppointmentConfirmed: "2",
		ehr.AppointmentCompleted: "3",
		ehr.AppointmentCancelled: "x",
	}
	appointmentStatusFromAthena = map[string]ehr.AppointmentStatus{
		"o": ehr.AppointmentScheduled,
		"f": ehr.AppointmentScheduled,
		"2": ehr.AppointmentConfirmed,
		"3": ehr.AppointmentCompleted,
		"4": ehr.AppointmentCompleted,
		"x": ehr.AppointmentCancelled,
	}
)

// AppointmentToAthena splits an RFC 3339 instant into the practice-local
// date and start time.
func AppointmentToAthena(a *ehr.Appointment, loc *time.Location) (Appointment, error) {
	start, err := time.Parse(time.RFC3339, a.DateTime)
	if err != nil {
		return Appointment{}, err
	}
	start = start.In(loc)
	out := Appointment{
		AppointmentID:   a.ID,
		PatientID:       a.PatientID,
		ProviderID:      a.ProviderID,
		Date:            start.Format(athenaDate),
		StartTime:       start.Format(athenaTime),
		Duration:        a.Minutes(),
		AppointmentType: a.Type,
		Reason:          a.Reason,
		Notes:           a.Notes,
	}
	if a.Status != "" {
		out.AppointmentStatus = appointmentStatusToAthena[a.Status]
	}
	return out, nil
}

func AppointmentFromAthena(r *Appointment, loc *time.Location) ehr.Appointment {
	a := ehr.Appointment{
		ID:         r.AppointmentID,
		PatientID:  r.PatientID,
		ProviderID: r.ProviderID,
		Duration:   r.Duration,
		Type:       r.AppointmentType,
		Status:     appointmentStatusFromAthena[r.AppointmentStatus],
		Reason:     r.Reason,
		Notes:      r.Notes,
	}
	if start, err := time.ParseInLocation(athenaDate+" "+athenaTime, r.Date+" "+r.StartTime, loc); err == nil {
		a.DateTime = start.UTC().Format(time.RFC3339)
	}
	return a
}

func formatReading(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// VitalsToAthena emits one reading per present value. Blood pressure is sent
// only when both pressures are known.
func VitalsToAthena(v *ehr.VitalSigns, now time.Time) Vitals {
	taken := v.RecordedAt
	if taken == "" {
		taken = now.UTC().Format(time.RFC3339)
	}
	out := Vitals{PatientID: v.PatientID, ReadingTaken: taken, Readings: []Reading{}}
	add := func(element string, value *float64) {
		if value != nil {
			out.Readings = append(out.Readings, Reading{ClinicalElementID: element, Value: formatReading(*value)})
		}
	}
	if v.BloodPressure.Complete() {
		add(elementSystolic, v.BloodPressure.Systolic)
		add(elementDiastolic, v.BloodPressure.Diastolic)
	}
	add(elementHeartRate, v.HeartRate)
	add(elementTemperature, v.Temperature)
	add(elementWeight, v.Weight)
	add(elementHeight, v.Height)
	add(elementRespiration, v.RespiratoryRate)
	add(elementSpO2, v.OxygenSaturation)
	return out
}

// VitalsFromAthena ignores readings whose value is not numeric.
func VitalsFromAthena(r *Vitals) ehr.VitalSigns {
	v := ehr.VitalSigns{ID: r.VitalID, PatientID: r.PatientID, RecordedAt: r.ReadingTaken}
	bp := &ehr.BloodPressure{}
	for _, reading := range r.Readings {
		f, err := strconv.ParseFloat(strings.TrimSpace(reading.Value), 64)
		if err != nil {
			continue
		}
		val := ehr.Float(f)
		switch reading.ClinicalElementID {
		case elementSystolic:
			bp.Systolic = val
		case elementDiastolic:
			bp.Diastolic = val
		case elementHeartRate:
			v.HeartRate = val
		case elementTemperature:
			v.Temperature = val
		case elementWeight:
			v.Weight = val
		case elementHeight:
			v.Height = val
		case elementRespiration:
			v.RespiratoryRate = val
		case elementSpO2:
			v.OxygenSaturation = val
		}
	}
	if bp.Systolic != nil || bp.Diastolic != nil {
		v.BloodPressure = bp
	}
	return v
}

func ConditionFromAthena(patientID string, r *Problem) ehr.Condition {
	return ehr.Condition{
		ID:             r.ProblemID,
		PatientID:      patientID,
		Code:           r.Code,
		CodeSystem:     r.CodeSystem,
		Display:        r.Name,
		ClinicalStatus: strings.ToLower(r.Status),
		OnsetDate:      fromAthenaDate(r.OnsetDate),
		RecordedDate:   r.EnteredOn,
	}
}

func MedicationToAthena(m *ehr.Medication) Medication {
	return Medication{
		MedicationEntryID: m.ID,
		Medication:        m.Name,
		RxNorm:            m.Code,
		Sig:               m.Dosage,
		Status:            m.Status,
		CreatedDate:       toAthenaDate(m.AuthoredOn),
	}
}

func MedicationFromAthena(patientID string, r *Medication) ehr.Medication {
	return ehr.Medication{
		ID:         r.MedicationEntryID,
		PatientID:  patientID,
		Name:       r.Medication,
		Code:       r.RxNorm,
		Dosage:     r.Sig,
		Status:     strings.ToLower(r.Status),
		AuthoredOn: fromAthenaDate(r.CreatedDate),
	}
}

func ClaimToAthena(c *ehr.BillingClaim) Claim {
	return Claim{
		ClaimID:          c.ID,
		PatientID:        c.PatientID,
		TotalCharge:      c.Amount,
		ClaimStatus:      strings.ToUpper(string(c.Status)),
		ServiceDate:      toAthenaDate(c.ServiceDate),
		Description:      c.Description,
		InsuranceClaimID: c.InsuranceClaimID,
	}
}

func ClaimFromAthena(r *Claim) ehr.BillingClaim {
	return ehr.BillingClaim{
		ID:               r.ClaimID,
		PatientID:        r.PatientID,
		Amount:           r.TotalCharge,
		Status:           ehr.ClaimStatus(strings.ToLower(r.ClaimStatus)),
		ServiceDate:      fromAthenaDate(r.ServiceDate),
		Description:      r.Description,
		InsuranceClaimID: r.InsuranceClaimID,
	}
}
