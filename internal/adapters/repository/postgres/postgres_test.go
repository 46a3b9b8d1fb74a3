package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ttmouse/node-banana/internal/core/cache"
	"github.com/ttmouse/node-banana/internal/core/graph"
	"github.com/ttmouse/node-banana/pkg/serialization"
)

func TestPostgresImageCache(t *testing.T) {
	url := os.Getenv("NODE_BANANA_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("Integration test requires NODE_BANANA_TEST_DATABASE_URL")
	}
	ctx := context.Background()
	pool, err := Connect(ctx, url)
	require.NoError(t, err)
	defer pool.Close()

	c := NewImageCache(pool, nil)
	require.NoError(t, c.CreateTables(ctx))
	require.NoError(t, c.Clear(ctx))

	p := &cache.Payload{
		NodeType:  graph.NodeTypeOutput,
		Fields:    graph.ImageFields{"image": {"data:image/png;base64,AAAA"}},
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, c.Save(ctx, "output-1", p))
	require.NoError(t, c.Save(ctx, "output-1", p))

	got, err := c.Load(ctx, "output-1")
	require.NoError(t, err)
	assert.Equal(t, p.Fields, got.Fields)

	all, err := c.LoadAll(ctx, []string{"output-1", "missing"})
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, c.Delete(ctx, "output-1"))
	_, err = c.Load(ctx, "output-1")
	assert.ErrorIs(t, err, cache.ErrEntryNotFound)

	s := NewStateStore(pool, nil).WithKey("test")
	require.NoError(t, s.CreateTables(ctx))
	require.NoError(t, s.SaveState(ctx, serialization.NewLocalState(graph.New(), graph.EdgeStyleAngular)))
	state, err := s.LoadState(ctx)
	require.NoError(t, err)
	assert.Equal(t, graph.EdgeStyleAngular, state.EdgeStyle)
}

func TestPostgresImageCache_Errors(t *testing.T) {
	ctx := context.Background()

	// Operations that reach the pool would fail; argument checks come first.
	c := NewImageCache(nil, serialization.DefaultSerializer())

	assert.ErrorIs(t, c.Save(ctx, "", &cache.Payload{}), cache.ErrInvalidNodeID)
	assert.ErrorIs(t, c.Save(ctx, "n", nil), cache.ErrNilPayload)
	_, err := c.Load(ctx, "")
	assert.ErrorIs(t, err, cache.ErrInvalidNodeID)
	assert.ErrorIs(t, c.Delete(ctx, ""), cache.ErrInvalidNodeID)

	all, err := c.LoadAll(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, all)

	s := NewStateStore(nil, nil)
	assert.ErrorIs(t, s.SaveState(ctx, nil), graph.ErrGraphNotFound)
}
