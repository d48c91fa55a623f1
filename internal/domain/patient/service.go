package patient

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/ehrbridge/internal/ehr"
)

// SyncResult pairs a vendor write with its mirror row. Pending is set when
// the mirror write was deferred to the outbox; Local is nil then.
type SyncResult struct {
	Remote  *ehr.Patient
	Local   *Record
	Pending bool
}

// Service writes to the vendor first and mirrors the outcome locally.
type Service struct {
	repo   Repository
	outbox OutboxRepository
	logger zerolog.Logger
}

func NewService(repo Repository, outbox OutboxRepository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, outbox: outbox, logger: logger}
}

// ListPatients returns the vendor page after mirroring every patient on it.
// Mirror failures are deferred and never fail the listing.
func (s *Service) ListPatients(ctx context.Context, client ehr.Client, q ehr.PatientQuery) (*ehr.PatientPage, error) {
	page, err := client.ListPatients(ctx, q.Normalize())
	if err != nil {
		return nil, err
	}
	for i := range page.Data {
		p := &page.Data[i]
		if p.ID == "" {
			continue
		}
		s.mirror(ctx, OpUpsert, RecordFrom(client.Vendor(), p))
	}
	return page, nil
}

func (s *Service) GetPatient(ctx context.Context, client ehr.Client, id string) (*ehr.Patient, error) {
	return client.GetPatient(ctx, id)
}

// CreatePatient mirrors the request fields under the vendor-assigned id.
func (s *Service) CreatePatient(ctx context.Context, client ehr.Client, p *ehr.Patient) (*SyncResult, error) {
	p.ID = ""
	remote, err := client.CreatePatient(ctx, p)
	if err != nil {
		return nil, err
	}
	if remote.ID == "" {
		return nil, fmt.Errorf("%s: create patient: response carried no id", client.Vendor())
	}

	rec := RecordFrom(client.Vendor(), p)
	rec.VendorPatientID = remote.ID
	rec.Status = ehr.PatientActive
	local, pending := s.mirror(ctx, OpUpsert, rec)
	return &SyncResult{Remote: remote, Local: local, Pending: pending}, nil
}

// UpdatePatient mirrors the request fields under the path id. An empty
// status keeps the mirrored one.
func (s *Service) UpdatePatient(ctx context.Context, client ehr.Client, id string, p *ehr.Patient) (*SyncResult, error) {
	remote, err := client.UpdatePatient(ctx, id, p)
	if err != nil {
		return nil, err
	}

	rec := RecordFrom(client.Vendor(), p)
	rec.VendorPatientID = id
	local, pending := s.mirror(ctx, OpUpsert, rec)
	return &SyncResult{Remote: remote, Local: local, Pending: pending}, nil
}

// DeletePatient soft-deletes the mirror row; rows are never removed. It
// reports whether the deactivation was deferred.
func (s *Service) DeletePatient(ctx context.Context, client ehr.Client, id string) (bool, error) {
	if err := client.DeletePatient(ctx, id); err != nil {
		return false, err
	}
	_, pending := s.mirror(ctx, OpDeactivate, &Record{Vendor: client.Vendor(), VendorPatientID: id})
	return pending, nil
}

func (s *Service) GetRecord(ctx context.Context, id uuid.UUID) (*Record, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListRecords(ctx context.Context, vendor string, limit, offset int) ([]*Record, int, error) {
	return s.repo.List(ctx, vendor, limit, offset)
}

// mirror applies op locally. On failure it enqueues the mutation and
// reports pending.
func (s *Service) mirror(ctx context.Context, op OutboxOp, rec *Record) (*Record, bool) {
	err := apply(ctx, s.repo, op, rec)
	if err == nil {
		if op == OpDeactivate {
			return nil, false
		}
		return rec, false
	}

	log := s.logger.With().
		Str("vendor", rec.Vendor).
		Str("vendor_patient_id", rec.VendorPatientID).
		Str("op", string(op)).
		Logger()
	log.Warn().Err(err).Msg("mirror write failed, deferring to outbox")

	entry := &OutboxEntry{Op: op, Vendor: rec.Vendor, VendorPatientID: rec.VendorPatientID}
	if op == OpUpsert {
		entry.Payload = rec
	}
	if err := s.outbox.Enqueue(ctx, entry); err != nil {
		log.Error().Err(err).Msg("enqueue mirror outbox failed; mirror row is stale")
	}
	return nil, true
}

func apply(ctx context.Context, repo Repository, op OutboxOp, rec *Record) error {
	switch op {
	case OpUpsert:
		return repo.Upsert(ctx, rec)
	case OpDeactivate:
		return repo.Deactivate(ctx, rec.Vendor, rec.VendorPatientID)
	default:
		return fmt.Errorf("unknown outbox op %q", op)
	}
}
