package athena

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ehr/ehrbridge/internal/ehr"
)

type fakeAthena struct {
	t          *testing.T
	tokenCalls int32
	handler    http.HandlerFunc
}

func (f *fakeAthena) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/oauth/token" {
		atomic.AddInt32(&f.tokenCalls, 1)
		if id, secret, ok := r.BasicAuth(); !ok || id != "cid" || secret != "secret" {
			f.t.Errorf("expected basic client auth, got %q %q", id, secret)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"ath-tok","expires_in":"3600"}`))
		return
	}
	if got := r.Header.Get("Authorization"); got != "Bearer ath-tok" {
		f.t.Errorf("expected bearer token, got %q", got)
	}
	f.handler(w, r)
}

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *fakeAthena) {
	t.Helper()
	fake := &fakeAthena{t: t, handler: h}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := New(Config{
		BaseURL:      srv.URL,
		PracticeID:   "195900",
		ClientID:     "cid",
		ClientSecret: "secret",
		Timeout:      2 * time.Second,
	}, WithClock(func() time.Time { return time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC) }))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, fake
}

func TestNew_ValidatesConfig(t *testing.T) {
	cases := map[string]Config{
		"no base url":   {PracticeID: "1", ClientID: "a", ClientSecret: "b"},
		"no practice":   {BaseURL: "http://x", ClientID: "a", ClientSecret: "b"},
		"no secret":     {BaseURL: "http://x", PracticeID: "1", ClientID: "a"},
		"basic no user": {BaseURL: "http://x", PracticeID: "1", AuthMode: AuthBasic},
		"unknown mode":  {BaseURL: "http://x", PracticeID: "1", AuthMode: "saml"},
	}
	for name, cfg := range cases {
		if _, err := New(cfg); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestConfig_Root(t *testing.T) {
	cfg := Config{BaseURL: "https://api.athenahealth.com/", SandboxBaseURL: "https://api.preview.platform.athenahealth.com", PracticeID: "195900", UseSandbox: true}
	if got := cfg.Root(); got != "https://api.preview.platform.athenahealth.com/v1/195900" {
		t.Errorf("unexpected root %q", got)
	}
	if got := cfg.tokenURL(); got != "https://api.preview.platform.athenahealth.com/oauth/token" {
		t.Errorf("unexpected token url %q", got)
	}
}

func TestClient_ListPatients(t *testing.T) {
	c, fake := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/195900/patients" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("limit") != "5" || q.Get("offset") != "5" || q.Get("search") != "doe" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"totalcount":6,"patients":[{"patientid":"6","firstname":"Jon","lastname":"Doe","dob":"01/02/1980","sex":"M"}]}`))
	})

	page, err := c.ListPatients(context.Background(), ehr.PatientQuery{Page: 2, Limit: 5, Search: "doe"})
	if err != nil {
		t.Fatalf("ListPatients: %v", err)
	}
	if page.Total != 6 || page.Page != 2 || len(page.Data) != 1 {
		t.Fatalf("unexpected page %+v", page)
	}
	if p := page.Data[0]; p.DateOfBirth != "1980-01-02" || p.Gender != "male" {
		t.Errorf("unexpected patient %+v", p)
	}
	if _, err := c.ListPatients(context.Background(), ehr.PatientQuery{Page: 2, Limit: 5, Search: "doe"}); err != nil {
		t.Fatalf("ListPatients: %v", err)
	}
	if n := atomic.LoadInt32(&fake.tokenCalls); n != 1 {
		t.Errorf("expected one token request, got %d", n)
	}
}

func TestClient_GetPatient_Array(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"patientid":"7","firstname":"A","lastname":"B"}]`))
	})
	p, err := c.GetPatient(context.Background(), "7")
	if err != nil {
		t.Fatalf("GetPatient: %v", err)
	}
	if p.ID != "7" || p.FirstName != "A" {
		t.Errorf("unexpected patient %+v", p)
	}
}

func TestClient_GetPatient_Empty(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	if _, err := c.GetPatient(context.Background(), "7"); !errors.Is(err, ehr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestClient_CreatePatient_IDOnlyResponse(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body Patient
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
			return
		}
		if body.DOB != "05/15/1990" {
			t.Errorf("expected athena dob, got %q", body.DOB)
		}
		w.Write([]byte(`[{"patientid":"42"}]`))
	})
	p, err := c.CreatePatient(context.Background(), &ehr.Patient{FirstName: "Jane", LastName: "Doe", DateOfBirth: "1990-05-15"})
	if err != nil {
		t.Fatalf("CreatePatient: %v", err)
	}
	if p.ID != "42" || p.FirstName != "Jane" || p.DateOfBirth != "1990-05-15" {
		t.Errorf("unexpected patient %+v", p)
	}
}

func TestClient_CancelAppointment(t *testing.T) {
	var calls []string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		switch r.Method {
		case http.MethodPut:
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			if body["cancellationreason"] != "sick" {
				t.Errorf("unexpected body %v", body)
			}
			w.Write([]byte(`{"status":"ok"}`))
		case http.MethodGet:
			w.Write([]byte(`[{"appointmentid":"a1","patientid":"p1","date":"01/20/2024","starttime":"10:00","duration":30,"appointmentstatus":"x"}]`))
		}
	})
	a, err := c.CancelAppointment(context.Background(), "a1", "sick")
	if err != nil {
		t.Fatalf("CancelAppointment: %v", err)
	}
	if len(calls) != 2 || calls[0] != "PUT /v1/195900/appointments/a1/cancel" || calls[1] != "GET /v1/195900/appointments/a1" {
		t.Errorf("unexpected calls %v", calls)
	}
	if a.Status != ehr.AppointmentCancelled || a.PatientID != "p1" || a.DateTime != "2024-01-20T10:00:00Z" {
		t.Errorf("unexpected appointment %+v", a)
	}
}

func TestClient_RecordVitals(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/195900/patients/p1/vitals" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body Vitals
		json.NewDecoder(r.Body).Decode(&body)
		if body.ReadingTaken != "2024-03-01T09:00:00Z" || len(body.Readings) != 1 {
			t.Errorf("unexpected vitals body %+v", body)
		}
		w.Write([]byte(`{"vitalid":"v9"}`))
	})
	v, err := c.RecordVitals(context.Background(), &ehr.VitalSigns{PatientID: "p1", HeartRate: ehr.Float(70)})
	if err != nil {
		t.Fatalf("RecordVitals: %v", err)
	}
	if v.ID != "v9" || v.HeartRate == nil || *v.HeartRate != 70 || v.PatientID != "p1" {
		t.Errorf("unexpected vitals %+v", v)
	}
}

func TestClient_ListClaims_StatusFilter(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("claimstatus") != "PAID" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"claims":[{"claimid":"c1","patientid":"p1","totalcharge":99.5,"claimstatus":"PAID","servicedate":"02/01/2024"}]}`))
	})
	claims, err := c.ListClaims(context.Background(), ehr.ClaimQuery{Status: "paid"})
	if err != nil {
		t.Fatalf("ListClaims: %v", err)
	}
	if len(claims) != 1 || claims[0].Status != ehr.ClaimPaid || claims[0].ServiceDate != "2024-02-01" {
		t.Errorf("unexpected claims %+v", claims)
	}
}

func TestClient_BasicAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/token" {
			t.Error("basic mode must not request a token")
		}
		if u, p, ok := r.BasicAuth(); !ok || u != "svc" || p != "pw" {
			t.Errorf("expected basic auth, got %q %q", u, p)
		}
		if r.Header.Get("x-api-key") != "k" {
			t.Errorf("expected api key header")
		}
		w.Write([]byte(`{"patients":[]}`))
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, PracticeID: "1", AuthMode: AuthBasic, Username: "svc", Password: "pw", APIKey: "k"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Authenticate(context.Background()); err != nil {
		t.Errorf("Authenticate: %v", err)
	}
	if !c.TestConnection(context.Background()) {
		t.Error("expected connection test to succeed")
	}
}

func TestClient_TestConnection_Forbidden(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "1" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.WriteHeader(http.StatusForbidden)
	})
	if c.TestConnection(context.Background()) {
		t.Error("expected connection test to fail")
	}
}

func TestClient_Unauthorized_DropsToken(t *testing.T) {
	var n int32
	c, fake := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&n, 1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"problems":[]}`))
	})
	_, err := c.GetConditions(context.Background(), "p1")
	if ehr.StatusCode(err) != http.StatusUnauthorized {
		t.Fatalf("expected 401 error, got %v", err)
	}
	if atomic.LoadInt32(&n) != 1 {
		t.Errorf("expected no retry")
	}
	if _, err := c.GetConditions(context.Background(), "p1"); err != nil {
		t.Fatalf("GetConditions: %v", err)
	}
	if got := atomic.LoadInt32(&fake.tokenCalls); got != 2 {
		t.Errorf("expected re-authentication, got %d token calls", got)
	}
}
