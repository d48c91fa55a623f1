package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/ehr/ehrbridge/internal/ehr"
)

func TestRequestValidator(t *testing.T) {
	v := NewRequestValidator()

	tests := []struct {
		name string
		in   interface{}
		msg  string
	}{
		{"valid", &ehr.Patient{FirstName: "A", LastName: "B"}, ""},
		{"missing first name", &ehr.Patient{LastName: "B"}, "firstName is required"},
		{"bad email", &ehr.Patient{FirstName: "A", LastName: "B", Email: "nope"}, "email must be a valid email address"},
		{"bad status", &ehr.Patient{FirstName: "A", LastName: "B", Status: "gone"}, "status must be one of: active inactive"},
		{"negative amount", &ehr.BillingClaim{PatientID: "p", ServiceDate: "2024-01-01", Amount: -1}, "amount must be at least 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.in)
			if tt.msg == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			he, ok := err.(*echo.HTTPError)
			if !ok {
				t.Fatalf("expected echo.HTTPError, got %T", err)
			}
			if he.Code != http.StatusBadRequest || he.Message != tt.msg {
				t.Errorf("expected 400 %q, got %d %v", tt.msg, he.Code, he.Message)
			}
		})
	}
}

func TestBindAndValidate(t *testing.T) {
	e := echo.New()
	e.Validator = NewRequestValidator()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"firstName":"A"`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())
	var p ehr.Patient
	err := BindAndValidate(c, &p)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest || he.Message != "invalid request body" {
		t.Errorf("expected invalid body error, got %v", err)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"firstName":"A","lastName":"B"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c = e.NewContext(req, httptest.NewRecorder())
	p = ehr.Patient{}
	if err := BindAndValidate(c, &p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.FirstName != "A" || p.LastName != "B" {
		t.Errorf("unexpected patient %+v", p)
	}
}

func TestBindAndValidate_KeepsBodyLimit(t *testing.T) {
	e := echo.New()
	e.Validator = NewRequestValidator()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"firstName":"`+strings.Repeat("a", 64)+`","lastName":"B"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.ContentLength = -1
	c := e.NewContext(req, httptest.NewRecorder())

	var p ehr.Patient
	err := BodyLimit("16")(func(c echo.Context) error {
		return BindAndValidate(c, &p)
	})(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %v", err)
	}
}
