// Package ehrtest provides in-memory ehr.Client and ehr.Provider fakes for
// handler and service tests.
package ehrtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/ehr/ehrbridge/internal/ehr"
)

// Client is a configurable fake. Each Func field, when set, answers the
// matching call; otherwise Err is returned, or a zero result when Err is nil.
// Calls records the operation names in order.
type Client struct {
	Name        string
	Err         error
	AuthErr     error
	Connected   bool
	mu          sync.Mutex
	Calls       []string
	Patients    map[string]*ehr.Patient
	nextPatient int

	ListPatientsFunc      func(q ehr.PatientQuery) (*ehr.PatientPage, error)
	ListAppointmentsFunc  func(q ehr.AppointmentQuery) ([]ehr.Appointment, error)
	CreateAppointmentFunc func(a *ehr.Appointment) (*ehr.Appointment, error)
	CancelAppointmentFunc func(id, reason string) (*ehr.Appointment, error)
	GetVitalsFunc         func(patientID string) ([]ehr.VitalSigns, error)
	RecordVitalsFunc      func(v *ehr.VitalSigns) (*ehr.VitalSigns, error)
	GetConditionsFunc     func(patientID string) ([]ehr.Condition, error)
	GetMedicationsFunc    func(patientID string) ([]ehr.Medication, error)
	ListClaimsFunc        func(q ehr.ClaimQuery) ([]ehr.BillingClaim, error)
	SubmitClaimFunc       func(c *ehr.BillingClaim) (*ehr.BillingClaim, error)
}

// NewClient returns a fake for vendor with an empty patient store.
func NewClient(vendor string) *Client {
	return &Client{Name: vendor, Connected: true, Patients: map[string]*ehr.Patient{}}
}

var _ ehr.Client = (*Client)(nil)

func (c *Client) record(op string) {
	c.mu.Lock()
	c.Calls = append(c.Calls, op)
	c.mu.Unlock()
}

// CallCount returns how many times op was invoked.
func (c *Client) CallCount(op string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, call := range c.Calls {
		if call == op {
			n++
		}
	}
	return n
}

func (c *Client) Vendor() string { return c.Name }

func (c *Client) Authenticate(ctx context.Context) error {
	c.record("Authenticate")
	return c.AuthErr
}

func (c *Client) TestConnection(ctx context.Context) bool {
	c.record("TestConnection")
	return c.Connected
}

func (c *Client) ListPatients(ctx context.Context, q ehr.PatientQuery) (*ehr.PatientPage, error) {
	c.record("ListPatients")
	if c.ListPatientsFunc != nil {
		return c.ListPatientsFunc(q)
	}
	if c.Err != nil {
		return nil, c.Err
	}
	q = q.Normalize()
	c.mu.Lock()
	defer c.mu.Unlock()
	page := &ehr.PatientPage{Data: []ehr.Patient{}, Total: len(c.Patients), Page: q.Page, Limit: q.Limit}
	for _, p := range c.Patients {
		page.Data = append(page.Data, *p)
	}
	return page, nil
}

func (c *Client) GetPatient(ctx context.Context, id string) (*ehr.Patient, error) {
	c.record("GetPatient")
	if c.Err != nil {
		return nil, c.Err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.Patients[id]
	if !ok {
		return nil, ehr.ErrNotFound
	}
	out := *p
	return &out, nil
}

// CreatePatient assigns ids of the form <vendor>-<n>.
func (c *Client) CreatePatient(ctx context.Context, p *ehr.Patient) (*ehr.Patient, error) {
	c.record("CreatePatient")
	if c.Err != nil {
		return nil, c.Err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextPatient++
	out := *p
	out.ID = fmt.Sprintf("%s-%d", c.Name, c.nextPatient)
	c.Patients[out.ID] = &out
	ret := out
	return &ret, nil
}

func (c *Client) UpdatePatient(ctx context.Context, id string, p *ehr.Patient) (*ehr.Patient, error) {
	c.record("UpdatePatient")
	if c.Err != nil {
		return nil, c.Err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.Patients[id]; !ok {
		return nil, ehr.ErrNotFound
	}
	out := *p
	out.ID = id
	c.Patients[id] = &out
	ret := out
	return &ret, nil
}

func (c *Client) DeletePatient(ctx context.Context, id string) error {
	c.record("DeletePatient")
	if c.Err != nil {
		return c.Err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.Patients[id]; !ok {
		return ehr.ErrNotFound
	}
	delete(c.Patients, id)
	return nil
}

func (c *Client) ListAppointments(ctx context.Context, q ehr.AppointmentQuery) ([]ehr.Appointment, error) {
	c.record("ListAppointments")
	if c.ListAppointmentsFunc != nil {
		return c.ListAppointmentsFunc(q)
	}
	return []ehr.Appointment{}, c.Err
}

func (c *Client) CreateAppointment(ctx context.Context, a *ehr.Appointment) (*ehr.Appointment, error) {
	c.record("CreateAppointment")
	if c.CreateAppointmentFunc != nil {
		return c.CreateAppointmentFunc(a)
	}
	if c.Err != nil {
		return nil, c.Err
	}
	out := *a
	out.ID = c.Name + "-appt"
	return &out, nil
}

func (c *Client) UpdateAppointment(ctx context.Context, id string, a *ehr.Appointment) (*ehr.Appointment, error) {
	c.record("UpdateAppointment")
	if c.Err != nil {
		return nil, c.Err
	}
	out := *a
	out.ID = id
	return &out, nil
}

func (c *Client) CancelAppointment(ctx context.Context, id, reason string) (*ehr.Appointment, error) {
	c.record("CancelAppointment")
	if c.CancelAppointmentFunc != nil {
		return c.CancelAppointmentFunc(id, reason)
	}
	if c.Err != nil {
		return nil, c.Err
	}
	return &ehr.Appointment{ID: id, Status: ehr.AppointmentCancelled, Notes: reason}, nil
}

func (c *Client) GetVitals(ctx context.Context, patientID string) ([]ehr.VitalSigns, error) {
	c.record("GetVitals")
	if c.GetVitalsFunc != nil {
		return c.GetVitalsFunc(patientID)
	}
	return []ehr.VitalSigns{}, c.Err
}

func (c *Client) RecordVitals(ctx context.Context, v *ehr.VitalSigns) (*ehr.VitalSigns, error) {
	c.record("RecordVitals")
	if c.RecordVitalsFunc != nil {
		return c.RecordVitalsFunc(v)
	}
	if c.Err != nil {
		return nil, c.Err
	}
	out := *v
	out.ID = c.Name + "-vitals"
	return &out, nil
}

func (c *Client) GetConditions(ctx context.Context, patientID string) ([]ehr.Condition, error) {
	c.record("GetConditions")
	if c.GetConditionsFunc != nil {
		return c.GetConditionsFunc(patientID)
	}
	return []ehr.Condition{}, c.Err
}

func (c *Client) GetMedications(ctx context.Context, patientID string) ([]ehr.Medication, error) {
	c.record("GetMedications")
	if c.GetMedicationsFunc != nil {
		return c.GetMedicationsFunc(patientID)
	}
	return []ehr.Medication{}, c.Err
}

func (c *Client) UpdateMedication(ctx context.Context, patientID, id string, m *ehr.Medication) (*ehr.Medication, error) {
	c.record("UpdateMedication")
	if c.Err != nil {
		return nil, c.Err
	}
	out := *m
	out.ID = id
	out.PatientID = patientID
	return &out, nil
}

func (c *Client) ListClaims(ctx context.Context, q ehr.ClaimQuery) ([]ehr.BillingClaim, error) {
	c.record("ListClaims")
	if c.ListClaimsFunc != nil {
		return c.ListClaimsFunc(q)
	}
	return []ehr.BillingClaim{}, c.Err
}

func (c *Client) SubmitClaim(ctx context.Context, claim *ehr.BillingClaim) (*ehr.BillingClaim, error) {
	c.record("SubmitClaim")
	if c.SubmitClaimFunc != nil {
		return c.SubmitClaimFunc(claim)
	}
	if c.Err != nil {
		return nil, c.Err
	}
	out := *claim
	out.ID = c.Name + "-claim"
	if out.Status == "" || out.Status == ehr.ClaimPending {
		out.Status = ehr.ClaimSubmitted
	}
	return &out, nil
}

// Provider returns the same Client for every user. WithCredentials returns
// Supplied when set.
type Provider struct {
	Client   *Client
	Supplied *Client
	Err      error
	mu       sync.Mutex
	creds    []ehr.Credentials
	callers  []string
}

func NewProvider(c *Client) *Provider {
	return &Provider{Client: c}
}

var _ ehr.Provider = (*Provider)(nil)

func (p *Provider) Vendor() string { return p.Client.Name }

func (p *Provider) ClientFor(ctx context.Context, userID string) (ehr.Client, error) {
	p.mu.Lock()
	p.callers = append(p.callers, userID)
	p.mu.Unlock()
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Client, nil
}

func (p *Provider) WithCredentials(creds ehr.Credentials) (ehr.Client, error) {
	p.mu.Lock()
	p.creds = append(p.creds, creds)
	p.mu.Unlock()
	if p.Err != nil {
		return nil, p.Err
	}
	if p.Supplied != nil {
		return p.Supplied, nil
	}
	return p.Client, nil
}

// Callers returns the user ids ClientFor was called with.
func (p *Provider) Callers() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.callers...)
}

// SuppliedCredentials returns the credentials WithCredentials was called with.
func (p *Provider) SuppliedCredentials() []ehr.Credentials {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ehr.Credentials(nil), p.creds...)
}
