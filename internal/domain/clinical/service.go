// Package clinical reads and records chart data held by the vendors:
// vitals, problems and medications.
package clinical

import (
	"context"
	"errors"

	"github.com/ehr/ehrbridge/internal/ehr"
)

// ErrIncompleteBloodPressure rejects a reading with only one pressure.
var ErrIncompleteBloodPressure = errors.New("bloodPressure needs both systolic and diastolic")

type Service struct{}

func NewService() *Service {
	return &Service{}
}

func (s *Service) GetVitals(ctx context.Context, client ehr.Client, patientID string) ([]ehr.VitalSigns, error) {
	v, err := client.GetVitals(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if v == nil {
		v = []ehr.VitalSigns{}
	}
	return v, nil
}

// RecordVitals sends only the readings that were taken.
func (s *Service) RecordVitals(ctx context.Context, client ehr.Client, patientID string, v *ehr.VitalSigns) (*ehr.VitalSigns, error) {
	if bp := v.BloodPressure; bp != nil {
		switch {
		case bp.Systolic == nil && bp.Diastolic == nil:
			v.BloodPressure = nil
		case !bp.Complete():
			return nil, ErrIncompleteBloodPressure
		}
	}
	v.ID = ""
	v.PatientID = patientID
	return client.RecordVitals(ctx, v)
}

func (s *Service) GetConditions(ctx context.Context, client ehr.Client, patientID string) ([]ehr.Condition, error) {
	conds, err := client.GetConditions(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if conds == nil {
		conds = []ehr.Condition{}
	}
	return conds, nil
}

func (s *Service) GetMedications(ctx context.Context, client ehr.Client, patientID string) ([]ehr.Medication, error) {
	meds, err := client.GetMedications(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if meds == nil {
		meds = []ehr.Medication{}
	}
	return meds, nil
}

func (s *Service) UpdateMedication(ctx context.Context, client ehr.Client, patientID, id string, m *ehr.Medication) (*ehr.Medication, error) {
	m.ID = id
	m.PatientID = patientID
	return client.UpdateMedication(ctx, patientID, id, m)
}
