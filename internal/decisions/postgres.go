package decisions

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS animal_decisions (
	session_id UUID        NOT NULL,
	animal_id  TEXT        NOT NULL,
	decision   TEXT        NOT NULL CHECK (decision IN ('yes', 'maybe', 'no')),
	decided_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (session_id, animal_id)
)`

// PostgresStore persists decisions in Postgres
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the decisions table if it does not exist
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create animal_decisions: %w", err)
	}
	return nil
}

func (s *PostgresStore) Set(ctx context.Context, session uuid.UUID, animalID string, d Decision) error {
	if animalID == "" {
		return errors.New("animal id is required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO animal_decisions (session_id, animal_id, decision)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_id, animal_id)
		DO UPDATE SET decision = EXCLUDED.decision, decided_at = now()`,
		session, animalID, string(d))
	if err != nil {
		return fmt.Errorf("upsert decision: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, session uuid.UUID) (map[string]Decision, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT animal_id, decision FROM animal_decisions WHERE session_id = $1`, session)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}

	type row struct {
		AnimalID string
		Decision string
	}
	list, err := pgx.CollectRows(rows, pgx.RowToStructByPos[row])
	if err != nil {
		return nil, fmt.Errorf("scan decisions: %w", err)
	}

	out := make(map[string]Decision, len(list))
	for _, r := range list {
		out[r.AnimalID] = Decision(r.Decision)
	}
	return out, nil
}

func (s *PostgresStore) Clear(ctx context.Context, session uuid.UUID) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM animal_decisions WHERE session_id = $1`, session); err != nil {
		return fmt.Errorf("clear decisions: %w", err)
	}
	return nil
}
