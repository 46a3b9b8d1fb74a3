package sqlite

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ttmouse/node-banana/internal/core/cache"
	"github.com/ttmouse/node-banana/internal/core/graph"
	"github.com/ttmouse/node-banana/pkg/serialization"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLiteImageCache(t *testing.T) {
	ctx := context.Background()
	c := NewImageCache(openTestDB(t), serialization.DefaultSerializer())
	require.NoError(t, c.CreateTables(ctx))

	p := &cache.Payload{
		NodeType:  graph.NodeTypeAnnotation,
		Fields:    graph.ImageFields{"sourceImage": {"data:src"}, "outputImage": {"data:out"}},
		UpdatedAt: time.UnixMilli(1700000000000).UTC(),
	}
	require.NoError(t, c.Save(ctx, "annotation-1", p))

	got, err := c.Load(ctx, "annotation-1")
	require.NoError(t, err)
	assert.Equal(t, p.NodeType, got.NodeType)
	assert.Equal(t, p.Fields, got.Fields)
	assert.True(t, p.UpdatedAt.Equal(got.UpdatedAt))

	// Replace in place.
	p.Fields = graph.ImageFields{"sourceImage": {"data:new"}}
	require.NoError(t, c.Save(ctx, "annotation-1", p))
	got, err = c.Load(ctx, "annotation-1")
	require.NoError(t, err)
	assert.Equal(t, p.Fields, got.Fields)

	_, err = c.Load(ctx, "missing")
	assert.ErrorIs(t, err, cache.ErrEntryNotFound)

	require.NoError(t, c.Save(ctx, "output-2", &cache.Payload{
		NodeType: graph.NodeTypeOutput,
		Fields:   graph.ImageFields{"image": {"data:o"}},
	}))
	all, err := c.LoadAll(ctx, []string{"annotation-1", "output-2", "missing"})
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, graph.NodeTypeOutput, all["output-2"].NodeType)

	empty, err := c.LoadAll(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, c.Delete(ctx, "annotation-1"))
	_, err = c.Load(ctx, "annotation-1")
	assert.ErrorIs(t, err, cache.ErrEntryNotFound)

	require.NoError(t, c.Clear(ctx))
	all, err = c.LoadAll(ctx, []string{"output-2"})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSQLiteImageCache_Errors(t *testing.T) {
	ctx := context.Background()
	c := NewImageCache(openTestDB(t), nil)
	require.NoError(t, c.CreateTables(ctx))

	assert.ErrorIs(t, c.Save(ctx, "", &cache.Payload{}), cache.ErrInvalidNodeID)
	assert.ErrorIs(t, c.Save(ctx, "n", nil), cache.ErrNilPayload)
	_, err := c.Load(ctx, "")
	assert.ErrorIs(t, err, cache.ErrInvalidNodeID)
	assert.ErrorIs(t, c.Delete(ctx, ""), cache.ErrInvalidNodeID)

	t.Run("missing table", func(t *testing.T) {
		other := NewImageCache(openTestDB(t), nil)
		_, err := other.Load(ctx, "n")
		assert.ErrorIs(t, err, cache.ErrLoadFailed)
	})
}

func TestWithTableName(t *testing.T) {
	db := openTestDB(t)
	assert.Equal(t, "custom_cache", NewImageCache(db, nil).WithTableName("custom_cache").tableName)
	assert.Equal(t, "image_cache", NewImageCache(db, nil).WithTableName("x; DROP TABLE y").tableName)
	assert.Equal(t, "local_state", NewStateStore(db, nil).WithTableName("").tableName)
}

func TestSQLiteStateStore(t *testing.T) {
	ctx := context.Background()
	s := NewStateStore(openTestDB(t), nil)
	require.NoError(t, s.CreateTables(ctx))

	_, err := s.LoadState(ctx)
	assert.ErrorIs(t, err, graph.ErrGraphNotFound)

	g := graph.New()
	p, err := graph.NewNode("prompt-1", graph.NodeTypePrompt, graph.Position{X: 10})
	require.NoError(t, err)
	p.Data = graph.PromptData{Prompt: "a cat"}
	in, err := graph.NewNode("imageInput-2", graph.NodeTypeImageInput, graph.Position{})
	require.NoError(t, err)
	in.Data = graph.ImageInputData{Image: "data:image/png;base64,AAAA", ImageName: "cat.png"}
	gen, err := graph.NewNode("nanoBanana-3", graph.NodeTypeNanoBanana, graph.Position{X: 400})
	require.NoError(t, err)
	for _, n := range []*graph.Node{p, in, gen} {
		require.NoError(t, g.AddNode(n))
	}
	e, err := graph.NewEdge(graph.Connection{
		Source: "prompt-1", SourceHandle: graph.HandleText,
		Target: "nanoBanana-3", TargetHandle: graph.HandleText,
	})
	require.NoError(t, err)
	_, err = g.AddEdge(e)
	require.NoError(t, err)

	require.NoError(t, s.SaveState(ctx, serialization.NewLocalState(g, graph.EdgeStyleCurved)))

	got, err := s.LoadState(ctx)
	require.NoError(t, err)
	assert.Equal(t, graph.EdgeStyleCurved, got.EdgeStyle)
	restored := got.Graph()
	require.Len(t, restored.Nodes, 3)
	require.Len(t, restored.Edges, 1)
	assert.Equal(t, "a cat", restored.Node("prompt-1").Data.(graph.PromptData).Prompt)

	img, ok := restored.Node("imageInput-2").Data.(graph.ImageInputData)
	require.True(t, ok)
	assert.Empty(t, img.Image, "binary fields never reach local state")
	assert.Equal(t, "cat.png", img.ImageName)

	t.Run("keys are independent", func(t *testing.T) {
		other := NewStateStore(s.db, nil).WithKey("second")
		_, err := other.LoadState(ctx)
		assert.ErrorIs(t, err, graph.ErrGraphNotFound)
	})
}
