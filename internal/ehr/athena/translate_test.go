package athena

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/ehr/ehrbridge/internal/ehr"
)

func TestPatientToAthena_Formats(t *testing.T) {
	got := PatientToAthena(&ehr.Patient{
		FirstName:   "Jane",
		LastName:    "Doe",
		DateOfBirth: "1990-05-15",
		Gender:      "female",
		Phone:       "555-0100",
		Address:     &ehr.Address{Street: "1 Main", City: "Boston", State: "MA", ZipCode: "02101"},
		Insurance:   &ehr.Insurance{Provider: "Acme", MemberID: "M1", GroupNumber: "G1"},
		Allergies:   []string{"penicillin"},
	})
	if got.DOB != "05/15/1990" {
		t.Errorf("expected MM/DD/YYYY dob, got %q", got.DOB)
	}
	if got.Sex != "F" || got.MobilePhone != "555-0100" || got.Zip != "02101" {
		t.Errorf("unexpected patient %+v", got)
	}
	if len(got.Insurances) != 1 || got.Insurances[0].InsuranceIDNumber != "M1" {
		t.Errorf("unexpected insurances %+v", got.Insurances)
	}
	if len(got.Allergies) != 1 || got.Allergies[0].AllergenName != "penicillin" {
		t.Errorf("unexpected allergies %+v", got.Allergies)
	}
}

func TestPatientToAthena_OmitsAbsent(t *testing.T) {
	b, err := json.Marshal(PatientToAthena(&ehr.Patient{FirstName: "A", LastName: "B", Gender: "unknown"}))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, key := range []string{"dob", "sex", "address1", "insurances", "null"} {
		if strings.Contains(string(b), key) {
			t.Errorf("expected %q to be omitted: %s", key, b)
		}
	}
}

func TestPatient_RoundTrip(t *testing.T) {
	in := ehr.Patient{
		ID:          "123",
		FirstName:   "Jane",
		LastName:    "Doe",
		DateOfBirth: "1990-05-15",
		Gender:      "male",
		Email:       "j@example.com",
		Address:     &ehr.Address{Street: "1 Main", City: "Boston"},
		Status:      ehr.PatientActive,
	}
	r := PatientToAthena(&in)
	out := PatientFromAthena(&r)
	if out.ID != in.ID || out.DateOfBirth != in.DateOfBirth || out.Gender != "male" || out.Email != in.Email {
		t.Errorf("round trip mismatch: %+v", out)
	}
	if out.Address == nil || out.Address.City != "Boston" {
		t.Errorf("expected address, got %+v", out.Address)
	}
	if out.Status != ehr.PatientActive {
		t.Errorf("expected active, got %q", out.Status)
	}
}

func TestAppointmentToAthena_SplitsDateTime(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	got, err := AppointmentToAthena(&ehr.Appointment{
		PatientID: "p1",
		DateTime:  "2024-01-20T15:00:00Z",
		Status:    ehr.AppointmentConfirmed,
	}, loc)
	if err != nil {
		t.Fatalf("AppointmentToAthena: %v", err)
	}
	if got.Date != "01/20/2024" || got.StartTime != "10:00" {
		t.Errorf("unexpected date/time %q %q", got.Date, got.StartTime)
	}
	if got.Duration != ehr.DefaultAppointmentMinutes {
		t.Errorf("expected default duration, got %d", got.Duration)
	}
	if got.AppointmentStatus != "2" {
		t.Errorf("expected status 2, got %q", got.AppointmentStatus)
	}

	back := AppointmentFromAthena(&got, loc)
	if back.DateTime != "2024-01-20T15:00:00Z" || back.Status != ehr.AppointmentConfirmed {
		t.Errorf("unexpected round trip %+v", back)
	}
}

func TestAppointmentToAthena_InvalidDateTime(t *testing.T) {
	if _, err := AppointmentToAthena(&ehr.Appointment{PatientID: "p1", DateTime: "tomorrow"}, time.UTC); err == nil {
		t.Error("expected error for invalid dateTime")
	}
}

func TestAppointmentStatusFromAthena(t *testing.T) {
	tests := []struct {
		in   string
		want ehr.AppointmentStatus
	}{
		{"f", ehr.AppointmentScheduled},
		{"o", ehr.AppointmentScheduled},
		{"2", ehr.AppointmentConfirmed},
		{"3", ehr.AppointmentCompleted},
		{"4", ehr.AppointmentCompleted},
		{"x", ehr.AppointmentCancelled},
		{"?", ""},
	}
	for _, tt := range tests {
		got := AppointmentFromAthena(&Appointment{AppointmentStatus: tt.in}, time.UTC)
		if got.Status != tt.want {
			t.Errorf("status %q: expected %q, got %q", tt.in, tt.want, got.Status)
		}
	}
}

func TestVitalsToAthena_OnlyPresentReadings(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	got := VitalsToAthena(&ehr.VitalSigns{
		PatientID:     "p1",
		HeartRate:     ehr.Float(72),
		BloodPressure: &ehr.BloodPressure{Systolic: ehr.Float(120)},
	}, now)
	if len(got.Readings) != 1 || got.Readings[0].ClinicalElementID != elementHeartRate || got.Readings[0].Value != "72" {
		t.Errorf("unexpected readings %+v", got.Readings)
	}
	if got.ReadingTaken != "2024-03-01T12:00:00Z" {
		t.Errorf("expected default reading time, got %q", got.ReadingTaken)
	}

	empty := VitalsToAthena(&ehr.VitalSigns{PatientID: "p1"}, now)
	b, _ := json.Marshal(empty)
	if !strings.Contains(string(b), `"readings":[]`) {
		t.Errorf("expected empty readings array: %s", b)
	}
}

func TestVitals_RoundTrip(t *testing.T) {
	in := ehr.VitalSigns{
		PatientID:        "p1",
		RecordedAt:       "2024-03-01T12:00:00Z",
		BloodPressure:    &ehr.BloodPressure{Systolic: ehr.Float(120), Diastolic: ehr.Float(80)},
		Temperature:      ehr.Float(98.6),
		OxygenSaturation: ehr.Float(97),
	}
	r := VitalsToAthena(&in, time.Time{})
	out := VitalsFromAthena(&r)
	if !out.BloodPressure.Complete() || *out.BloodPressure.Diastolic != 80 {
		t.Errorf("expected blood pressure, got %+v", out.BloodPressure)
	}
	if out.Temperature == nil || *out.Temperature != 98.6 {
		t.Errorf("expected temperature, got %v", out.Temperature)
	}
	if out.OxygenSaturation == nil || out.HeartRate != nil {
		t.Errorf("unexpected readings %+v", out)
	}
}

func TestVitalsFromAthena_SkipsNonNumeric(t *testing.T) {
	out := VitalsFromAthena(&Vitals{Readings: []Reading{{ClinicalElementID: elementWeight, Value: "n/a"}}})
	if out.Weight != nil {
		t.Errorf("expected weight to be skipped, got %v", *out.Weight)
	}
}

func TestClaim_RoundTrip(t *testing.T) {
	in := ehr.BillingClaim{PatientID: "p1", Amount: 150.5, Status: ehr.ClaimSubmitted, ServiceDate: "2024-02-01"}
	r := ClaimToAthena(&in)
	if r.ClaimStatus != "SUBMITTED" || r.ServiceDate != "02/01/2024" {
		t.Errorf("unexpected claim %+v", r)
	}
	out := ClaimFromAthena(&r)
	if out.Status != ehr.ClaimSubmitted || out.ServiceDate != "2024-02-01" || out.Amount != 150.5 {
		t.Errorf("unexpected round trip %+v", out)
	}
}

func TestDecodeFirst(t *testing.T) {
	var p Patient
	ok, err := decodeFirst(json.RawMessage(`[{"patientid":"9"}]`), &p)
	if err != nil || !ok || p.PatientID != "9" {
		t.Errorf("array: ok=%v err=%v p=%+v", ok, err, p)
	}
	p = Patient{}
	ok, err = decodeFirst(json.RawMessage(`{"patientid":"8"}`), &p)
	if err != nil || !ok || p.PatientID != "8" {
		t.Errorf("object: ok=%v err=%v p=%+v", ok, err, p)
	}
	if ok, _ = decodeFirst(json.RawMessage(`[]`), &p); ok {
		t.Error("expected empty array to report false")
	}
	if ok, _ = decodeFirst(nil, &p); ok {
		t.Error("expected empty body to report false")
	}
}

func TestPatientFromAthena_Status(t *testing.T) {
	tests := []struct {
		in   string
		want ehr.PatientStatus
	}{
		{"active", ehr.PatientActive},
		{"ACTIVE", ehr.PatientActive},
		{"prospective", ehr.PatientActive},
		{"partial", ehr.PatientActive},
		{"inactive", ehr.PatientInactive},
		{"deleted", ehr.PatientInactive},
		{" Deleted ", ehr.PatientInactive},
		{"", ""},
	}
	for _, tt := range tests {
		got := PatientFromAthena(&Patient{PatientID: "1", Status: tt.in})
		if got.Status != tt.want {
			t.Errorf("status %q: expected %q, got %q", tt.in, tt.want, got.Status)
		}
	}
}
