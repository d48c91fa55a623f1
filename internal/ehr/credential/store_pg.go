package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/ehrbridge/internal/platform/db"
)

// Sealer protects token values at rest.
type Sealer interface {
	Seal(plaintext []byte) (string, error)
	Open(blob string) ([]byte, error)
}

// PGStore keeps one token row per (user, vendor) in oauth_token.
type PGStore struct {
	pool   *pgxpool.Pool
	sealer Sealer
}

// NewPGStore returns a token store. A nil sealer stores tokens as given.
func NewPGStore(pool *pgxpool.Pool, sealer Sealer) *PGStore {
	return &PGStore{pool: pool, sealer: sealer}
}

func (s *PGStore) Load(ctx context.Context, vendor, userID string) (*Credential, error) {
	var (
		token     string
		expiresAt time.Time
	)
	err := db.Conn(ctx, s.pool).QueryRow(ctx,
		`SELECT access_token, expires_at FROM oauth_token WHERE user_id = $1 AND vendor = $2`,
		userID, vendor,
	).Scan(&token, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load oauth token: %w", err)
	}

	if s.sealer != nil {
		plain, err := s.sealer.Open(token)
		if err != nil {
			return nil, fmt.Errorf("open oauth token: %w", err)
		}
		token = string(plain)
	}
	return &Credential{AccessToken: token, ExpiresAt: expiresAt}, nil
}

func (s *PGStore) Save(ctx context.Context, vendor, userID string, cred Credential) error {
	token := cred.AccessToken
	if s.sealer != nil {
		sealed, err := s.sealer.Seal([]byte(token))
		if err != nil {
			return fmt.Errorf("seal oauth token: %w", err)
		}
		token = sealed
	}

	_, err := db.Conn(ctx, s.pool).Exec(ctx, `
		INSERT INTO oauth_token (user_id, vendor, access_token, expires_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (user_id, vendor) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			expires_at = EXCLUDED.expires_at,
			updated_at = NOW()`,
		userID, vendor, token, cred.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("save oauth token: %w", err)
	}
	return nil
}
