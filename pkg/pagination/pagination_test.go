package pagination

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func newContext(target string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	return e.NewContext(req, httptest.NewRecorder())
}

func TestFromContext_Defaults(t *testing.T) {
	p := FromContext(newContext("/"))

	if p.Limit != DefaultLimit {
		t.Errorf("expected default limit %d, got %d", DefaultLimit, p.Limit)
	}
	if p.Offset != 0 {
		t.Errorf("expected default offset 0, got %d", p.Offset)
	}
}

func TestFromContext_CustomValues(t *testing.T) {
	p := FromContext(newContext("/?limit=50&offset=10"))

	if p.Limit != 50 {
		t.Errorf("expected limit 50, got %d", p.Limit)
	}
	if p.Offset != 10 {
		t.Errorf("expected offset 10, got %d", p.Offset)
	}
}

func TestFromContext_Page(t *testing.T) {
	tests := []struct {
		target string
		offset int
	}{
		{"/?page=3&limit=10", 20},
		{"/?page=1&limit=10", 0},
		{"/?page=0", 0},
		{"/?page=3&limit=10&offset=5", 5},
	}
	for _, tt := range tests {
		p := FromContext(newContext(tt.target))
		if p.Offset != tt.offset {
			t.Errorf("%s: expected offset %d, got %d", tt.target, tt.offset, p.Offset)
		}
	}
}

func TestFromContext_MaxLimit(t *testing.T) {
	p := FromContext(newContext("/?limit=500"))

	if p.Limit != MaxLimit {
		t.Errorf("expected max limit %d, got %d", MaxLimit, p.Limit)
	}
}

func TestFromContext_NegativeOffset(t *testing.T) {
	p := FromContext(newContext("/?offset=-5"))

	if p.Offset != 0 {
		t.Errorf("expected offset 0 for negative input, got %d", p.Offset)
	}
}

func TestNewResponse(t *testing.T) {
	data := []string{"a", "b"}
	resp := NewResponse(data, 10, Params{Limit: 2, Offset: 0})

	if resp.Total != 10 {
		t.Errorf("expected total 10, got %d", resp.Total)
	}
	if !resp.HasMore {
		t.Error("expected HasMore to be true")
	}

	resp = NewResponse(data, 2, Params{Limit: 2, Offset: 0})
	if resp.HasMore {
		t.Error("expected HasMore to be false")
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]interface{}
	json.Unmarshal(raw, &m)
	for _, k := range []string{"data", "total", "limit", "offset", "has_more"} {
		if _, ok := m[k]; !ok {
			t.Errorf("expected key %q in %s", k, raw)
		}
	}
}

func TestParams_HasNext(t *testing.T) {
	tests := []struct {
		name   string
		params Params
		total  int
		want   bool
	}{
		{"first page with more", Params{Limit: 10, Offset: 0}, 25, true},
		{"middle page", Params{Limit: 10, Offset: 10}, 25, true},
		{"last page", Params{Limit: 10, Offset: 20}, 25, false},
		{"exact boundary", Params{Limit: 10, Offset: 10}, 20, false},
		{"empty", Params{Limit: 10, Offset: 0}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.params.HasNext(tt.total); got != tt.want {
				t.Errorf("HasNext(%d) = %v, want %v", tt.total, got, tt.want)
			}
		})
	}
}
