package athena

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/ehr/ehrbridge/internal/ehr"
)

func patientPath(patientID, rest string) string {
	return "patients/" + url.PathEscape(patientID) + "/" + rest
}

func (c *Client) GetVitals(ctx context.Context, patientID string) ([]ehr.VitalSigns, error) {
	var list VitalsList
	if err := c.do(ctx, ehr.Call{
		Op: "get", Resource: "vitals",
		Method: http.MethodGet, Path: patientPath(patientID, "vitals"),
		Out: &list,
	}); err != nil {
		return nil, err
	}
	out := make([]ehr.VitalSigns, 0, len(list.Vitals))
	for i := range list.Vitals {
		v := VitalsFromAthena(&list.Vitals[i])
		if v.PatientID == "" {
			v.PatientID = patientID
		}
		out = append(out, v)
	}
	return out, nil
}

func (c *Client) RecordVitals(ctx context.Context, v *ehr.VitalSigns) (*ehr.VitalSigns, error) {
	patientID := v.PatientID
	body := VitalsToAthena(v, c.now())

	var raw json.RawMessage
	if err := c.do(ctx, ehr.Call{
		Op: "record", Resource: "vitals",
		Method: http.MethodPost, Path: patientPath(patientID, "vitals"),
		Body: body, Out: &raw,
	}); err != nil {
		return nil, err
	}
	var created Vitals
	if _, err := decodeFirst(raw, &created); err != nil {
		return nil, err
	}
	if len(created.Readings) == 0 {
		id := created.VitalID
		created = body
		created.VitalID = id
	}
	out := VitalsFromAthena(&created)
	out.PatientID = patientID
	return &out, nil
}

func (c *Client) GetConditions(ctx context.Context, patientID string) ([]ehr.Condition, error) {
	var list ProblemList
	if err := c.do(ctx, ehr.Call{
		Op: "get", Resource: "problems",
		Method: http.MethodGet, Path: patientPath(patientID, "problems"),
		Out: &list,
	}); err != nil {
		return nil, err
	}
	out := make([]ehr.Condition, 0, len(list.Problems))
	for i := range list.Problems {
		out = append(out, ConditionFromAthena(patientID, &list.Problems[i]))
	}
	return out, nil
}

func (c *Client) GetMedications(ctx context.Context, patientID string) ([]ehr.Medication, error) {
	var list MedicationList
	if err := c.do(ctx, ehr.Call{
		Op: "get", Resource: "medications",
		Method: http.MethodGet, Path: patientPath(patientID, "medications"),
		Out: &list,
	}); err != nil {
		return nil, err
	}
	out := make([]ehr.Medication, 0, len(list.Medications))
	for i := range list.Medications {
		out = append(out, MedicationFromAthena(patientID, &list.Medications[i]))
	}
	return out, nil
}

func (c *Client) UpdateMedication(ctx context.Context, patientID, medicationID string, m *ehr.Medication) (*ehr.Medication, error) {
	in := *m
	in.ID = medicationID
	body := MedicationToAthena(&in)
	if err := c.do(ctx, ehr.Call{
		Op: "update", Resource: "medications",
		Method: http.MethodPut, Path: patientPath(patientID, "medications/"+url.PathEscape(medicationID)),
		Body: body,
	}); err != nil {
		return nil, err
	}
	out := MedicationFromAthena(patientID, &body)
	return &out, nil
}
