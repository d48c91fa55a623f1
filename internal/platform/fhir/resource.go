// Package fhir holds the FHIR R4 datatypes exchanged with FHIR-speaking
// vendors.
package fhir

import (
	"encoding/json"
	"strings"
)

// Media type for FHIR JSON payloads.
const MediaType = "application/fhir+json"

// Code systems referenced by outbound resources.
const (
	SystemLOINC               = "http://loinc.org"
	SystemUCUM                = "http://unitsofmeasure.org"
	SystemObservationCategory = "http://terminology.hl7.org/CodeSystem/observation-category"
	SystemConditionClinical   = "http://terminology.hl7.org/CodeSystem/condition-clinical"
	SystemClaimType           = "http://terminology.hl7.org/CodeSystem/claim-type"
)

type Meta struct {
	VersionID   string   `json:"versionId,omitempty"`
	LastUpdated string   `json:"lastUpdated,omitempty"`
	Profile     []string `json:"profile,omitempty"`
}

type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

// FirstCoding returns the first coding, or a zero Coding.
func (cc *CodeableConcept) FirstCoding() Coding {
	if cc == nil || len(cc.Coding) == 0 {
		return Coding{}
	}
	return cc.Coding[0]
}

// HasCode reports whether any coding matches system and code.
func (cc *CodeableConcept) HasCode(system, code string) bool {
	if cc == nil {
		return false
	}
	for _, c := range cc.Coding {
		if c.System == system && c.Code == code {
			return true
		}
	}
	return false
}

type Reference struct {
	Reference string `json:"reference,omitempty"`
	Type      string `json:"type,omitempty"`
	Display   string `json:"display,omitempty"`
}

// NewReference builds a relative literal reference such as Patient/123.
func NewReference(resourceType, id string) *Reference {
	return &Reference{Reference: resourceType + "/" + id}
}

// ID returns the id portion of a relative reference.
func (r *Reference) ID() string {
	if r == nil {
		return ""
	}
	if i := strings.LastIndex(r.Reference, "/"); i >= 0 {
		return r.Reference[i+1:]
	}
	return r.Reference
}

// ResourceType returns the type portion of a relative reference.
func (r *Reference) ResourceType() string {
	if r == nil {
		return ""
	}
	if r.Type != "" {
		return r.Type
	}
	if i := strings.Index(r.Reference, "/"); i > 0 {
		return r.Reference[:i]
	}
	return ""
}

type Identifier struct {
	Use    string `json:"use,omitempty"`
	System string `json:"system,omitempty"`
	Value  string `json:"value,omitempty"`
}

type HumanName struct {
	Use    string   `json:"use,omitempty"`
	Family string   `json:"family,omitempty"`
	Given  []string `json:"given,omitempty"`
}

type Address struct {
	Use        string   `json:"use,omitempty"`
	Line       []string `json:"line,omitempty"`
	City       string   `json:"city,omitempty"`
	State      string   `json:"state,omitempty"`
	PostalCode string   `json:"postalCode,omitempty"`
	Country    string   `json:"country,omitempty"`
}

type ContactPoint struct {
	System string `json:"system,omitempty"`
	Value  string `json:"value,omitempty"`
	Use    string `json:"use,omitempty"`
}

type Period struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

type Quantity struct {
	Value  *float64 `json:"value,omitempty"`
	Unit   string   `json:"unit,omitempty"`
	System string   `json:"system,omitempty"`
	Code   string   `json:"code,omitempty"`
}

type Money struct {
	Value    float64 `json:"value"`
	Currency string  `json:"currency,omitempty"`
}

type Annotation struct {
	Text string `json:"text"`
}

type Extension struct {
	URL       string `json:"url"`
	ValueCode string `json:"valueCode,omitempty"`
}

// Bundle is a searchset response. Entries keep the raw resource so callers
// decode into their own resource type.
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	Type         string        `json:"type,omitempty"`
	Total        *int          `json:"total,omitempty"`
	Link         []BundleLink  `json:"link,omitempty"`
	Entry        []BundleEntry `json:"entry,omitempty"`
}

type BundleLink struct {
	Relation string `json:"relation"`
	URL      string `json:"url"`
}

type BundleEntry struct {
	FullURL  string          `json:"fullUrl,omitempty"`
	Resource json.RawMessage `json:"resource,omitempty"`
}

// Resources decodes every entry whose resourceType matches into T. Entries of
// other types, such as included OperationOutcomes, are skipped.
func Resources[T any](b *Bundle, resourceType string) ([]T, error) {
	out := make([]T, 0, len(b.Entry))
	for _, e := range b.Entry {
		if len(e.Resource) == 0 {
			continue
		}
		var head struct {
			ResourceType string `json:"resourceType"`
		}
		if err := json.Unmarshal(e.Resource, &head); err != nil {
			return nil, err
		}
		if head.ResourceType != resourceType {
			continue
		}
		var r T
		if err := json.Unmarshal(e.Resource, &r); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// TotalOr returns the bundle total, or fallback when the server omitted it.
func (b *Bundle) TotalOr(fallback int) int {
	if b.Total == nil {
		return fallback
	}
	return *b.Total
}

// OperationOutcome represents a FHIR OperationOutcome for errors.
type OperationOutcome struct {
	ResourceType string                  `json:"resourceType"`
	Issue        []OperationOutcomeIssue `json:"issue"`
}

type OperationOutcomeIssue struct {
	Severity    string           `json:"severity"`
	Code        string           `json:"code"`
	Details     *CodeableConcept `json:"details,omitempty"`
	Diagnostics string           `json:"diagnostics,omitempty"`
}

// ParseOutcome extracts diagnostics from an OperationOutcome body. It returns
// "" when body is not an outcome.
func ParseOutcome(body []byte) string {
	var oo OperationOutcome
	if err := json.Unmarshal(body, &oo); err != nil || oo.ResourceType != "OperationOutcome" {
		return ""
	}
	msgs := make([]string, 0, len(oo.Issue))
	for _, issue := range oo.Issue {
		switch {
		case issue.Diagnostics != "":
			msgs = append(msgs, issue.Diagnostics)
		case issue.Details != nil && issue.Details.Text != "":
			msgs = append(msgs, issue.Details.Text)
		default:
			msgs = append(msgs, issue.Code)
		}
	}
	return strings.Join(msgs, "; ")
}
