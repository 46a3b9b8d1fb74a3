package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ttmouse/node-banana/internal/core/graph"
	"github.com/ttmouse/node-banana/pkg/serialization"
)

// StateStore keeps the stripped working copy in a single keyed row. It
// satisfies the store's state repository.
type StateStore struct {
	db         *sql.DB
	serializer *serialization.Serializer
	tableName  string
	key        string
}

// NewStateStore creates a state store. A nil serializer selects JSON+zstd.
func NewStateStore(db *sql.DB, serializer *serialization.Serializer) *StateStore {
	if serializer == nil {
		serializer, _ = serialization.StateSerializer(serialization.CompressionZstd, nil)
	}
	return &StateStore{
		db:         db,
		serializer: serializer,
		tableName:  "local_state",
		key:        "default",
	}
}

// WithTableName overrides the default table name. Unsafe names are ignored.
func (s *StateStore) WithTableName(name string) *StateStore {
	if isSafeIdent(name) {
		s.tableName = name
	}
	return s
}

// WithKey selects the row used, so several workflows can share a table.
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
		INSERT OR REPLACE INTO %s (key, state, updated_at)
		VALUES (?, ?, ?)`, s.tableName)
	if _, err := s.db.ExecContext(ctx, query, s.key, data, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// LoadState returns the stored working copy or graph.ErrGraphNotFound
func (s *StateStore) LoadState(ctx context.Context) (*serialization.LocalState, error) {
	query := fmt.Sprintf(`SELECT state FROM %s WHERE key = ?`, s.tableName)

	var data []byte
	err := s.db.QueryRowContext(ctx, query, s.key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
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
			key TEXT PRIMARY KEY,
			state BLOB NOT NULL,
			updated_at INTEGER NOT NULL
		)`, s.tableName)
	_, err := s.db.ExecContext(ctx, query)
	return err
}
