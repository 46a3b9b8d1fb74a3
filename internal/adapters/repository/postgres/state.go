package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ttmouse/node-banana/internal/core/graph"
	"github.com/ttmouse/node-banana/pkg/serialization"
)

// StateStore keeps the stripped working copy in one row per key
type StateStore struct {
	pool       *pgxpool.Pool
	serializer *serialization.Serializer
	tableName  string
	key        string
}

// NewStateStore creates a state store. A nil serializer selects JSON+zstd.
func NewStateStore(pool *pgxpool.Pool, serializer *serialization.Serializer) *StateStore {
	if serializer == nil {
		serializer, _ = serialization.StateSerializer(serialization.CompressionZstd, nil)
	}
	return &StateStore{
		pool:       pool,
		serializer: serializer,
		tableName:  "local_state",
		key:        "default",
	}
}

// WithKey selects the row used
func (s *StateStore) WithKey(key string) *StateStore {
	if key != "" {
		s.key = key
	}
	return s
}

// SaveState replaces the stored working copy
func (s *StateStore) SaveState(ctx context.Context, state *serialization.LocalState) error {
	if state == nil {
		return graph.ErrGraphNotFound
	}
	data, err := s.serializer.Serialize(state)
	if err != nil {
		return fmt.Errorf("serialize state: %w", err)
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (key, state, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET
			state = EXCLUDED.state,
			updated_at = EXCLUDED.updated_at
	`, s.tableName)
	if _, err := s.pool.Exec(ctx, query, s.key, data, time.Now().UTC()); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// LoadState returns the stored working copy or graph.ErrGraphNotFound
func (s *StateStore) LoadState(ctx context.Context) (*serialization.LocalState, error) {
	query := fmt.Sprintf(`SELECT state FROM %s WHERE key = $1`, s.tableName)

	var data []byte
	err := s.pool.QueryRow(ctx, query, s.key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, graph.ErrGraphNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	var state serialization.LocalState
	if err := s.serializer.Deserialize(data, &state); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return &state, nil
}

// CreateTables creates the necessary tables
func (s *StateStore) CreateTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			key VARCHAR(255) PRIMARY KEY,
			state BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)
	`, s.tableName)
	_, err := s.pool.Exec(ctx, query)
	return err
}
