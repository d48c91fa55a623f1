package patient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/ehrbridge/internal/ehr"
	"github.com/ehr/ehrbridge/internal/platform/db"
)

// -- Mirror Repository --

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const recordCols = `id, vendor, vendor_patient_id, COALESCE(external_id, ''),
	first_name, last_name, COALESCE(date_of_birth, ''), COALESCE(gender, ''),
	COALESCE(email, ''), COALESCE(phone, ''), address, insurance, allergies, medications,
	status, created_at, updated_at`

func scanRecord(row pgx.Row) (*Record, error) {
	var r Record
	err := row.Scan(&r.ID, &r.Vendor, &r.VendorPatientID, &r.ExternalID,
		&r.FirstName, &r.LastName, &r.DateOfBirth, &r.Gender,
		&r.Email, &r.Phone, &r.Address, &r.Insurance, &r.Allergies, &r.Medications,
		&r.Status, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r *repoPG) Upsert(ctx context.Context, rec *Record) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	// $15 is NULL for an empty status so the stored value survives.
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO patient_mirror (
			id, vendor, vendor_patient_id, external_id, first_name, last_name,
			date_of_birth, gender, email, phone, address, insurance, allergies, medications,
			status
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,
			COALESCE($15::text, 'active')
		)
		ON CONFLICT (vendor, vendor_patient_id) DO UPDATE SET
			external_id = EXCLUDED.external_id,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			date_of_birth = EXCLUDED.date_of_birth,
			gender = EXCLUDED.gender,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			address = EXCLUDED.address,
			insurance = EXCLUDED.insurance,
			allergies = EXCLUDED.allergies,
			medications = EXCLUDED.medications,
			status = COALESCE($15::text, patient_mirror.status),
			updated_at = NOW()
		RETURNING id, status, created_at, updated_at`,
		rec.ID, rec.Vendor, rec.VendorPatientID, nullable(rec.ExternalID), rec.FirstName, rec.LastName,
		nullable(rec.DateOfBirth), nullable(rec.Gender), nullable(rec.Email), nullable(rec.Phone),
		rec.Address, rec.Insurance, rec.Allergies, rec.Medications,
		nullable(string(rec.Status)),
	).Scan(&rec.ID, &rec.Status, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert patient mirror %s/%s: %w", rec.Vendor, rec.VendorPatientID, err)
	}
	return nil
}

func (r *repoPG) Deactivate(ctx context.Context, vendor, vendorPatientID string) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE patient_mirror SET status = 'inactive', updated_at = NOW()
		WHERE vendor = $1 AND vendor_patient_id = $2`,
		vendor, vendorPatientID,
	)
	if err != nil {
		return fmt.Errorf("deactivate patient mirror %s/%s: %w", vendor, vendorPatientID, err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	rec, err := scanRecord(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+recordCols+` FROM patient_mirror WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ehr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get patient mirror %s: %w", id, err)
	}
	return rec, nil
}

func (r *repoPG) GetByVendorID(ctx context.Context, vendor, vendorPatientID string) (*Record, error) {
	rec, err := scanRecord(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+recordCols+` FROM patient_mirror WHERE vendor = $1 AND vendor_patient_id = $2`,
		vendor, vendorPatientID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ehr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get patient mirror %s/%s: %w", vendor, vendorPatientID, err)
	}
	return rec, nil
}

func (r *repoPG) List(ctx context.Context, vendor string, limit, offset int) ([]*Record, int, error) {
	conn := db.Conn(ctx, r.pool)

	var total int
	if err := conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM patient_mirror WHERE ($1 = '' OR vendor = $1)`, vendor,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count patient mirror: %w", err)
	}

	rows, err := conn.Query(ctx, `SELECT `+recordCols+` FROM patient_mirror
		WHERE ($1 = '' OR vendor = $1)
		ORDER BY last_name, first_name, id
		LIMIT $2 OFFSET $3`, vendor, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list patient mirror: %w", err)
	}
	defer rows.Close()

	var items []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan patient mirror: %w", err)
		}
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate patient mirror: %w", err)
	}
	return items, total, nil
}

// -- Outbox Repository --

// PayloadSealer encrypts outbox payloads at rest; *hipaa.Sealer satisfies it.
type PayloadSealer interface {
	EncryptJSON(v interface{}) (string, error)
	DecryptJSON(blob string, out interface{}) error
}

type outboxPG struct {
	pool   *pgxpool.Pool
	sealer PayloadSealer
}

// NewOutboxRepo stores payloads as plain JSON when sealer is nil.
func NewOutboxRepo(pool *pgxpool.Pool, sealer PayloadSealer) OutboxRepository {
	return &outboxPG{pool: pool, sealer: sealer}
}

func (o *outboxPG) encode(rec *Record) (*string, error) {
	if rec == nil {
		return nil, nil
	}
	if o.sealer != nil {
		blob, err := o.sealer.EncryptJSON(rec)
		if err != nil {
			return nil, err
		}
		return &blob, nil
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	s := string(raw)
	return &s, nil
}

func (o *outboxPG) decode(blob string) (*Record, error) {
	var rec Record
	var err error
	if o.sealer != nil {
		err = o.sealer.DecryptJSON(blob, &rec)
	} else {
		err = json.Unmarshal([]byte(blob), &rec)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (o *outboxPG) Enqueue(ctx context.Context, e *OutboxEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	payload, err := o.encode(e.Payload)
	if err != nil {
		return fmt.Errorf("encode outbox payload: %w", err)
	}
	err = db.Conn(ctx, o.pool).QueryRow(ctx, `
		INSERT INTO mirror_outbox (id, op, vendor, vendor_patient_id, payload)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		e.ID, string(e.Op), e.Vendor, e.VendorPatientID, payload,
	).Scan(&e.CreatedAt)
	if err != nil {
		return fmt.Errorf("enqueue mirror outbox: %w", err)
	}
	return nil
}

func (o *outboxPG) Pending(ctx context.Context, limit, maxAttempts int) ([]*OutboxEntry, error) {
	rows, err := db.Conn(ctx, o.pool).Query(ctx, `
		SELECT id, op, vendor, vendor_patient_id, payload, attempts, COALESCE(last_error, ''), created_at
		FROM mirror_outbox
		WHERE applied_at IS NULL AND attempts < $1
		ORDER BY created_at
		LIMIT $2`, maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("query mirror outbox: %w", err)
	}
	defer rows.Close()

	var entries []*OutboxEntry
	for rows.Next() {
		var (
			e       OutboxEntry
			op      string
			payload *string
		)
		if err := rows.Scan(&e.ID, &op, &e.Vendor, &e.VendorPatientID, &payload, &e.Attempts, &e.LastError, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan mirror outbox: %w", err)
		}
		e.Op = OutboxOp(op)
		if payload != nil {
			rec, err := o.decode(*payload)
			if err != nil {
				e.DecodeErr = fmt.Errorf("decode outbox payload %s: %w", e.ID, err)
			} else {
				e.Payload = rec
			}
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mirror outbox: %w", err)
	}
	return entries, nil
}

func (o *outboxPG) MarkApplied(ctx context.Context, id uuid.UUID) error {
	_, err := db.Conn(ctx, o.pool).Exec(ctx,
		`UPDATE mirror_outbox SET applied_at = NOW(), last_error = NULL WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark outbox %s applied: %w", id, err)
	}
	return nil
}

func (o *outboxPG) MarkFailed(ctx context.Context, id uuid.UUID, cause string) error {
	_, err := db.Conn(ctx, o.pool).Exec(ctx,
		`UPDATE mirror_outbox SET attempts = attempts + 1, last_error = $2 WHERE id = $1`, id, cause)
	if err != nil {
		return fmt.Errorf("mark outbox %s failed: %w", id, err)
	}
	return nil
}
