package patient

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists mirror rows keyed by (vendor, vendor_patient_id).
type Repository interface {
	// Upsert inserts or overwrites the row and fills in ID and timestamps.
	// An empty Status keeps the stored one; a new row defaults to active.
	Upsert(ctx context.Context, r *Record) error
	// Deactivate marks the row inactive. A missing row is not an error.
	Deactivate(ctx context.Context, vendor, vendorPatientID string) error
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	GetByVendorID(ctx context.Context, vendor, vendorPatientID string) (*Record, error)
	// List filters by vendor when it is non-empty.
	List(ctx context.Context, vendor string, limit, offset int) ([]*Record, int, error)
}

type OutboxRepository interface {
	Enqueue(ctx context.Context, e *OutboxEntry) error
	// Pending returns unapplied entries with fewer than maxAttempts, oldest
	// first. An unreadable payload sets DecodeErr on its entry only.
	Pending(ctx context.Context, limit, maxAttempts int) ([]*OutboxEntry, error)
	MarkApplied(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, cause string) error
}
