package ehr

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnauthenticated matches every failure to obtain vendor credentials.
var ErrUnauthenticated = errors.New("ehr: unauthenticated")

// ErrNotFound is returned by local lookups that find no row.
var ErrNotFound = errors.New("ehr: not found")

// AuthError describes a failed token exchange.
type AuthError struct {
	Vendor     string
	StatusCode int
	Err        error
}

func (e *AuthError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: authenticate: status %d", e.Vendor, e.StatusCode)
	}
	return fmt.Sprintf("%s: authenticate: %v", e.Vendor, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

func (e *AuthError) Is(target error) bool { return target == ErrUnauthenticated }

// APIError is a non-2xx answer from a vendor resource endpoint. Body is kept
// for logs only and is never rendered to callers.
type APIError struct {
	Vendor     string
	Op         string
	Resource   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s %s: status %d", e.Vendor, e.Op, e.Resource, e.StatusCode)
}

// OriginRestricted reports whether the vendor refused the call because it did
// not come from an allow-listed network.
func (e *APIError) OriginRestricted() bool {
	return e.StatusCode == http.StatusForbidden
}

// IsOriginRestricted reports whether err wraps a vendor 403.
func IsOriginRestricted(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.OriginRestricted()
}

// StatusCode extracts the vendor status from err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
