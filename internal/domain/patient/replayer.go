package patient

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultReplayBatch       = 50
	DefaultReplayMaxAttempts = 10
)

// TxFunc runs fn in a transaction; db.InTx bound to a pool fits.
type TxFunc func(ctx context.Context, fn func(ctx context.Context) error) error

// ReplayStats counts the outcome of one pass.
type ReplayStats struct {
	Applied int
	Failed  int
}

// Replayer drains the mirror outbox. It never calls a vendor.
type Replayer struct {
	repo        Repository
	outbox      OutboxRepository
	inTx        TxFunc
	batch       int
	maxAttempts int
	logger      zerolog.Logger
}

type ReplayerOption func(*Replayer)

func WithTx(fn TxFunc) ReplayerOption {
	return func(r *Replayer) { r.inTx = fn }
}

func WithBatchSize(n int) ReplayerOption {
	return func(r *Replayer) {
		if n > 0 {
			r.batch = n
		}
	}
}

// WithMaxAttempts bounds retries; exhausted entries stay for inspection.
func WithMaxAttempts(n int) ReplayerOption {
	return func(r *Replayer) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

func NewReplayer(repo Repository, outbox OutboxRepository, logger zerolog.Logger, opts ...ReplayerOption) *Replayer {
	r := &Replayer{
		repo:        repo,
		outbox:      outbox,
		batch:       DefaultReplayBatch,
		maxAttempts: DefaultReplayMaxAttempts,
		logger:      logger,
		inTx: func(ctx context.Context, fn func(ctx context.Context) error) error {
			return fn(ctx)
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReplayOnce applies one batch. Each entry is applied and marked in its own
// transaction; a failed entry has its attempts bumped. Entries whose payload
// could not be decoded are failed without touching the mirror.
func (r *Replayer) ReplayOnce(ctx context.Context) (ReplayStats, error) {
	var stats ReplayStats
	entries, err := r.outbox.Pending(ctx, r.batch, r.maxAttempts)
	if err != nil {
		return stats, fmt.Errorf("load pending outbox: %w", err)
	}

	for _, e := range entries {
		err := e.DecodeErr
		if err == nil {
			err = r.inTx(ctx, func(ctx context.Context) error {
				if err := r.applyEntry(ctx, e); err != nil {
					return err
				}
				return r.outbox.MarkApplied(ctx, e.ID)
			})
		}
		if err == nil {
			stats.Applied++
			continue
		}

		stats.Failed++
		r.logger.Error().Err(err).
			Str("outbox_id", e.ID.String()).
			Str("vendor", e.Vendor).
			Str("vendor_patient_id", e.VendorPatientID).
			Int("attempts", e.Attempts+1).
			Msg("outbox replay failed")
		if err := r.outbox.MarkFailed(ctx, e.ID, err.Error()); err != nil {
			return stats, fmt.Errorf("record outbox failure: %w", err)
		}
	}
	return stats, nil
}

func (r *Replayer) applyEntry(ctx context.Context, e *OutboxEntry) error {
	rec := e.Payload
	if rec == nil {
		if e.Op == OpUpsert {
			return fmt.Errorf("outbox %s: upsert without payload", e.ID)
		}
		rec = &Record{}
	}
	rec.Vendor = e.Vendor
	rec.VendorPatientID = e.VendorPatientID
	return apply(ctx, r.repo, e.Op, rec)
}

// Run replays every interval until ctx is cancelled.
func (r *Replayer) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats, err := r.ReplayOnce(ctx)
			if err != nil {
				r.logger.Error().Err(err).Msg("outbox replay pass failed")
				continue
			}
			if stats.Applied > 0 || stats.Failed > 0 {
				r.logger.Info().Int("applied", stats.Applied).Int("failed", stats.Failed).Msg("outbox replay pass")
			}
		}
	}
}
