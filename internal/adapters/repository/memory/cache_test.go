package memory

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ttmouse/node-banana/internal/core/cache"
	"github.com/ttmouse/node-banana/internal/core/graph"
	"github.com/ttmouse/node-banana/pkg/serialization"
)

func imagePayload(image string) *cache.Payload {
	return &cache.Payload{
		NodeType:  graph.NodeTypeImageInput,
		Fields:    graph.ImageFields{"image": {image}},
		UpdatedAt: time.Now().UTC(),
	}
}

func TestImageCache(t *testing.T) {
	ctx := context.Background()
	c := NewImageCache(Config{})

	require.NoError(t, c.Save(ctx, "imageInput-1", imagePayload("data:image/png;base64,AAAA")))

	got, err := c.Load(ctx, "imageInput-1")
	require.NoError(t, err)
	assert.Equal(t, graph.NodeTypeImageInput, got.NodeType)
	assert.Equal(t, graph.ImageFields{"image": {"data:image/png;base64,AAAA"}}, got.Fields)

	_, err = c.Load(ctx, "missing")
	assert.ErrorIs(t, err, cache.ErrEntryNotFound)

	require.NoError(t, c.Save(ctx, "output-2", imagePayload("data:b")))
	all, err := c.LoadAll(ctx, []string{"imageInput-1", "output-2", "missing"})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, c.Delete(ctx, "imageInput-1"))
	require.NoError(t, c.Delete(ctx, "imageInput-1"))
	_, err = c.Load(ctx, "imageInput-1")
	assert.ErrorIs(t, err, cache.ErrEntryNotFound)

	require.NoError(t, c.Clear(ctx))
	assert.Equal(t, Stats{}, c.Stats())
}

func TestImageCache_Errors(t *testing.T) {
	ctx := context.Background()
	c := NewImageCache(Config{})

	assert.ErrorIs(t, c.Save(ctx, "", imagePayload("x")), cache.ErrInvalidNodeID)
	assert.ErrorIs(t, c.Save(ctx, "n", nil), cache.ErrNilPayload)
	_, err := c.Load(ctx, "")
	assert.ErrorIs(t, err, cache.ErrInvalidNodeID)
	assert.ErrorIs(t, c.Delete(ctx, ""), cache.ErrInvalidNodeID)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, c.Save(cancelled, "n", imagePayload("x")), context.Canceled)
}

func TestImageCache_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	plain, err := serialization.NewSerializer(serialization.SerializationConfig{
		Codec:       serialization.NewMsgPackCodec(),
		Compression: serialization.CompressionNone,
	})
	require.NoError(t, err)
	c := NewImageCache(Config{MaxMemoryMB: 1, Serializer: plain})

	big := strings.Repeat("a", 400*1024)
	require.NoError(t, c.Save(ctx, "a", imagePayload(big)))
	require.NoError(t, c.Save(ctx, "b", imagePayload(big)))

	_, err = c.Load(ctx, "a")
	require.NoError(t, err)
	require.NoError(t, c.Save(ctx, "c", imagePayload(big)))

	_, err = c.Load(ctx, "b")
	assert.ErrorIs(t, err, cache.ErrEntryNotFound, "b was least recently used")
	_, err = c.Load(ctx, "a")
	assert.NoError(t, err)
	assert.Equal(t, 2, c.Stats().Entries)
	assert.LessOrEqual(t, c.Stats().Bytes, c.Stats().MaxBytes)

	tooBig := strings.Repeat("a", 2*1024*1024)
	assert.ErrorIs(t, c.Save(ctx, "d", imagePayload(tooBig)), cache.ErrSaveFailed)
}
