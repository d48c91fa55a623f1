package modmed

import (
	"context"
	"net/http"
	"net/url"

	"github.com/ehr/ehrbridge/internal/ehr"
	"github.com/ehr/ehrbridge/internal/platform/fhir"
)

func (c *Client) GetVitals(ctx context.Context, patientID string) ([]ehr.VitalSigns, error) {
	var bundle fhir.Bundle
	if err := c.do(ctx, ehr.Call{
		Op: "list", Resource: "Observation",
		Method: http.MethodGet, Path: "Observation",
		Query: url.Values{
			"patient":  {patientID},
			"category": {"vital-signs"},
			"_sort":    {"-date"},
		},
		Out: &bundle,
	}); err != nil {
		return nil, err
	}
	resources, err := fhir.Resources[Observation](&bundle, "Observation")
	if err != nil {
		return nil, err
	}
	out := make([]ehr.VitalSigns, 0, len(resources))
	for i := range resources {
		v := VitalsFromObservation(&resources[i])
		if v.PatientID == "" {
			v.PatientID = patientID
		}
		out = append(out, v)
	}
	return out, nil
}

func (c *Client) RecordVitals(ctx context.Context, v *ehr.VitalSigns) (*ehr.VitalSigns, error) {
	in := *v
	in.ID = ""
	body := VitalsToObservation(&in, c.now())

	var (
		out      Observation
		location string
	)
	if err := c.do(ctx, ehr.Call{
		Op: "record", Resource: "Observation",
		Method: http.MethodPost, Path: "Observation",
		Body: body, Out: &out, Location: &location,
	}); err != nil {
		return nil, err
	}

	r := &out
	if r.ResourceType == "" {
		r = &body
	}
	result := VitalsFromObservation(r)
	if result.ID == "" {
		result.ID = idFromLocation(location, "Observation")
	}
	return &result, nil
}

func (c *Client) GetConditions(ctx context.Context, patientID string) ([]ehr.Condition, error) {
	var bundle fhir.Bundle
	if err := c.do(ctx, ehr.Call{
		Op: "list", Resource: "Condition",
		Method: http.MethodGet, Path: "Condition",
		Query: url.Values{"patient": {patientID}},
		Out:   &bundle,
	}); err != nil {
		return nil, err
	}
	resources, err := fhir.Resources[Condition](&bundle, "Condition")
	if err != nil {
		return nil, err
	}
	out := make([]ehr.Condition, 0, len(resources))
	for i := range resources {
		cond := ConditionFromFHIR(&resources[i])
		if cond.PatientID == "" {
			cond.PatientID = patientID
		}
		out = append(out, cond)
	}
	return out, nil
}

func (c *Client) GetMedications(ctx context.Context, patientID string) ([]ehr.Medication, error) {
	var bundle fhir.Bundle
	if err := c.do(ctx, ehr.Call{
		Op: "list", Resource: "MedicationRequest",
		Method: http.MethodGet, Path: "MedicationRequest",
		Query: url.Values{"patient": {patientID}},
		Out:   &bundle,
	}); err != nil {
		return nil, err
	}
	resources, err := fhir.Resources[MedicationRequest](&bundle, "MedicationRequest")
	if err != nil {
		return nil, err
	}
	out := make([]ehr.Medication, 0, len(resources))
	for i := range resources {
		m := MedicationFromFHIR(&resources[i])
		if m.PatientID == "" {
			m.PatientID = patientID
		}
		out = append(out, m)
	}
	return out, nil
}

func (c *Client) UpdateMedication(ctx context.Context, patientID, id string, m *ehr.Medication) (*ehr.Medication, error) {
	in := *m
	in.ID = id
	in.PatientID = patientID
	body := MedicationToFHIR(&in)

	var out MedicationRequest
	if err := c.do(ctx, ehr.Call{
		Op: "update", Resource: "MedicationRequest",
		Method: http.MethodPut, Path: "MedicationRequest/" + url.PathEscape(id),
		Body: body, Out: &out,
	}); err != nil {
		return nil, err
	}
	r := &out
	if r.ResourceType == "" {
		r = &body
	}
	result := MedicationFromFHIR(r)
	return &result, nil
}
