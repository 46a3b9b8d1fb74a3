package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ttmouse/node-banana/internal/core/cache"
	"github.com/ttmouse/node-banana/pkg/serialization"
)

// ImageCache implements cache.Store for SQLite
type ImageCache struct {
	db         *sql.DB
	serializer *serialization.Serializer
	tableName  string
}

// NewImageCache creates a new SQLite image cache
func NewImageCache(db *sql.DB, serializer *serialization.Serializer) *ImageCache {
	if serializer == nil {
		serializer = serialization.DefaultSerializer()
	}
	return &ImageCache{
		db:         db,
		serializer: serializer,
		tableName:  "image_cache",
	}
}

// WithTableName overrides the default table name. Unsafe names are ignored.
func (c *ImageCache) WithTableName(name string) *ImageCache {
	if isSafeIdent(name) {
		c.tableName = name
	}
	return c
}

// Save stores the payload for a node
func (c *ImageCache) Save(ctx context.Context, nodeID string, payload *cache.Payload) error {
	if nodeID == "" {
		return cache.ErrInvalidNodeID
	}
	if err := payload.Validate(); err != nil {
		return err
	}
	data, err := c.serializer.Serialize(payload)
	if err != nil {
		return fmt.Errorf("%w: %w", cache.ErrSaveFailed, err)
	}

	query := fmt.Sprintf(`
		INSERT OR REPLACE INTO %s (node_id, node_type, payload, updated_at)
		VALUES (?, ?, ?, ?)`, c.tableName)
	_, err = c.db.ExecContext(ctx, query, nodeID, string(payload.NodeType), data, payload.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("%w: %w", cache.ErrSaveFailed, err)
	}
	return nil
}

// Load retrieves the payload for a node
func (c *ImageCache) Load(ctx context.Context, nodeID string) (*cache.Payload, error) {
	if nodeID == "" {
		return nil, cache.ErrInvalidNodeID
	}
	query := fmt.Sprintf(`SELECT payload FROM %s WHERE node_id = ?`, c.tableName)

	var data []byte
	err := c.db.QueryRowContext(ctx, query, nodeID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cache.ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", cache.ErrLoadFailed, err)
	}
	return c.decode(data)
}

// LoadAll retrieves every payload present for the given ids in one query
func (c *ImageCache) LoadAll(ctx context.Context, nodeIDs []string) (map[string]*cache.Payload, error) {
	out := make(map[string]*cache.Payload, len(nodeIDs))
	if len(nodeIDs) == 0 {
		return out, nil
	}
	args := make([]any, len(nodeIDs))
	for i, id := range nodeIDs {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(nodeIDs)), ",")
	query := fmt.Sprintf(`SELECT node_id, payload FROM %s WHERE node_id IN (%s)`, c.tableName, placeholders)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", cache.ErrLoadFailed, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id   string
			data []byte
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("%w: %w", cache.ErrLoadFailed, err)
		}
		p, err := c.decode(data)
		if err != nil {
			return nil, err
		}
		out[id] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", cache.ErrLoadFailed, err)
	}
	return out, nil
}

// Delete removes the entry for a node
func (c *ImageCache) Delete(ctx context.Context, nodeID string) error {
	if nodeID == "" {
		return cache.ErrInvalidNodeID
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE node_id = ?`, c.tableName)
	if _, err := c.db.ExecContext(ctx, query, nodeID); err != nil {
		return fmt.Errorf("%w: %w", cache.ErrDeleteFailed, err)
	}
	return nil
}

// Clear removes every entry
func (c *ImageCache) Clear(ctx context.Context) error {
	query := fmt.Sprintf(`DELETE FROM %s`, c.tableName)
	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("%w: %w", cache.ErrDeleteFailed, err)
	}
	return nil
}

// CreateTables creates the necessary tables
func (c *ImageCache) CreateTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			node_id TEXT PRIMARY KEY,
			node_type TEXT NOT NULL,
			payload BLOB NOT NULL,
			updated_at INTEGER NOT NULL
		)`, c.tableName)
	_, err := c.db.ExecContext(ctx, query)
	return err
}

// Close closes the database connection
func (c *ImageCache) Close() error {
	return c.db.Close()
}

func (c *ImageCache) decode(data []byte) (*cache.Payload, error) {
	var p cache.Payload
	if err := c.serializer.Deserialize(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %w", cache.ErrLoadFailed, err)
	}
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

// compile-time check
var _ cache.Store = (*ImageCache)(nil)
