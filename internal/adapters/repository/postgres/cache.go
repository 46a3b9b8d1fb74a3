package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ttmouse/node-banana/internal/core/cache"
	"github.com/ttmouse/node-banana/pkg/serialization"
)

// ImageCache implements cache.Store for PostgreSQL
type ImageCache struct {
	pool       *pgxpool.Pool
	serializer *serialization.Serializer
	tableName  string
}

// NewImageCache creates a new PostgreSQL image cache
func NewImageCache(pool *pgxpool.Pool, serializer *serialization.Serializer) *ImageCache {
	if serializer == nil {
		serializer = serialization.DefaultSerializer()
	}
	return &ImageCache{
		pool:       pool,
		serializer: serializer,
		tableName:  "image_cache",
	}
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
		INSERT INTO %s (node_id, node_type, payload, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (node_id) DO UPDATE SET
			node_type = EXCLUDED.node_type,
			payload = EXCLUDED.payload,
			updated_at = EXCLUDED.updated_at
	`, c.tableName)
	if _, err := c.pool.Exec(ctx, query, nodeID, string(payload.NodeType), data, payload.UpdatedAt); err != nil {
		return fmt.Errorf("%w: %w", cache.ErrSaveFailed, err)
	}
	return nil
}

// Load retrieves the payload for a node
func (c *ImageCache) Load(ctx context.Context, nodeID string) (*cache.Payload, error) {
	if nodeID == "" {
		return nil, cache.ErrInvalidNodeID
	}
	query := fmt.Sprintf(`SELECT payload FROM %s WHERE node_id = $1`, c.tableName)

	var data []byte
	err := c.pool.QueryRow(ctx, query, nodeID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, cache.ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", cache.ErrLoadFailed, err)
	}
	return c.decode(data)
}

// LoadAll retrieves every payload present for the given ids
func (c *ImageCache) LoadAll(ctx context.Context, nodeIDs []string) (map[string]*cache.Payload, error) {
	out := make(map[string]*cache.Payload, len(nodeIDs))
	if len(nodeIDs) == 0 {
		return out, nil
	}
	query := fmt.Sprintf(`SELECT node_id, payload FROM %s WHERE node_id = ANY($1)`, c.tableName)

	rows, err := c.pool.Query(ctx, query, nodeIDs)
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
	query := fmt.Sprintf(`DELETE FROM %s WHERE node_id = $1`, c.tableName)
	if _, err := c.pool.Exec(ctx, query, nodeID); err != nil {
		return fmt.Errorf("%w: %w", cache.ErrDeleteFailed, err)
	}
	return nil
}

// Clear removes every entry
func (c *ImageCache) Clear(ctx context.Context) error {
	query := fmt.Sprintf(`TRUNCATE %s`, c.tableName)
	if _, err := c.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("%w: %w", cache.ErrDeleteFailed, err)
	}
	return nil
}

// CreateTables creates the necessary tables
func (c *ImageCache) CreateTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			node_id VARCHAR(255) PRIMARY KEY,
			node_type VARCHAR(64) NOT NULL,
			payload BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)
	`, c.tableName)
	_, err := c.pool.Exec(ctx, query)
	return err
}

// Close closes the connection pool
func (c *ImageCache) Close() {
	c.pool.Close()
}

func (c *ImageCache) decode(data []byte) (*cache.Payload, error) {
	var p cache.Payload
	if err := c.serializer.Deserialize(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %w", cache.ErrLoadFailed, err)
	}
	return &p, nil
}

var _ cache.Store = (*ImageCache)(nil)
