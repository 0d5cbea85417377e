package profile

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore looks up caller profiles from a Postgres table:
//
//	CREATE TABLE caller_profiles (
//	    caller_phone TEXT PRIMARY KEY,
//	    profile      JSONB NOT NULL,
//	    updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore connects a pooled Postgres store. Callers should prefer
// NewNoop when PROFILE_DATABASE_URL is unset; this constructor assumes
// connStr is non-empty.
func NewPGStore(ctx context.Context, connStr string) (*PGStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("profile: connecting to profile database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("profile: pinging profile database: %w", err)
	}
	return &PGStore{pool: pool}, nil
}

// Lookup fetches the profile JSON for a caller phone number. A missing
// row is not an error: it reports (nil, nil).
func (s *PGStore) Lookup(ctx context.Context, callerPhone string) (map[string]interface{}, error) {
	if s == nil || s.pool == nil {
		return nil, errNotConfigured
	}
	if callerPhone == "" {
		return nil, nil
	}

	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT profile FROM caller_profiles WHERE caller_phone = $1`,
		callerPhone,
	).Scan(&raw)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("profile: querying caller_profiles: %w", err)
	}

	var profile map[string]interface{}
	if err := json.Unmarshal(raw, &profile); err != nil {
		return nil, fmt.Errorf("profile: decoding stored profile JSON: %w", err)
	}
	return profile, nil
}

// Close releases the pool.
func (s *PGStore) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}
