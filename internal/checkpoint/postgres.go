package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/studypal/studypal/internal/state"
)

// PostgresStore persists checkpoints in a JSONB column, one row per thread.
//
// PostgresStore is safe for concurrent use by multiple goroutines; the facade
// additionally serializes writers per thread, so the upsert here never races
// against itself for the same thread_id.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresStore creates a checkpoint store backed by pool.
func NewPostgresStore(pool *pgxpool.Pool, logger *slog.Logger) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{pool: pool, logger: logger.With("component", "checkpoint")}, nil
}

// Load implements Store.
func (s *PostgresStore) Load(ctx context.Context, threadID string) (*state.State, error) {
	if threadID == "" {
		return nil, fmt.Errorf("thread ID is required")
	}

	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT state FROM checkpoints WHERE thread_id = $1`,
		threadID,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading checkpoint %s: %w", threadID, err)
	}

	var st state.State
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decoding checkpoint %s: %w", threadID, err)
	}
	return &st, nil
}

// Save implements Store. The upsert replaces the whole state document so a
// reader never observes a half-written turn.
func (s *PostgresStore) Save(ctx context.Context, threadID string, st *state.State) error {
	if threadID == "" {
		return fmt.Errorf("thread ID is required")
	}
	if st == nil {
		return fmt.Errorf("state is required")
	}

	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encoding checkpoint %s: %w", threadID, err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO checkpoints (thread_id, user_id, state, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (thread_id)
		 DO UPDATE SET state = EXCLUDED.state, updated_at = now()`,
		threadID, st.UserID, raw,
	)
	if err != nil {
		return fmt.Errorf("saving checkpoint %s: %w", threadID, err)
	}

	s.logger.Debug("checkpoint saved",
		"thread_id", threadID,
		"messages", len(st.Messages))
	return nil
}

// Delete removes a thread's checkpoint. Used by maintenance tooling;
// missing rows are not an error.
func (s *PostgresStore) Delete(ctx context.Context, threadID string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM checkpoints WHERE thread_id = $1`, threadID)
	if err != nil {
		return fmt.Errorf("deleting checkpoint %s: %w", threadID, err)
	}
	return nil
}
