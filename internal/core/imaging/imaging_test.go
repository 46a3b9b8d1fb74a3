package imaging

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return EncodeDataURL("image/png", buf.Bytes())
}

func TestParseDataURL(t *testing.T) {
	d, err := ParseDataURL("data:image/png;base64,AAA=")
	require.NoError(t, err)
	assert.Equal(t, "image/png", d.MimeType)
	assert.Equal(t, "png", d.Extension())
	assert.Equal(t, "data:image/png;base64,AAA=", d.String())

	for _, bad := range []string{"", "http://x", "data:image/png,raw", "data:image/png;base64,%%%"} {
		_, err := ParseDataURL(bad)
		assert.ErrorIs(t, err, ErrInvalidDataURL, bad)
	}
}

// onePixelWebP is a lossless 1x1 WebP image.
const onePixelWebP = "data:image/webp;base64,UklGRhoAAABXRUJQVlA4TA0AAAAvAAAAEAcQERGIiP4HAA=="

func TestParseDataURL_Lenient(t *testing.T) {
	for _, s := range []string{
		"data:image/png;base64,AAA",
		"data:image/png;base64,AA\nA=",
		"data:image/png;base64, AAA= \r\n",
	} {
		d, err := ParseDataURL(s)
		require.NoError(t, err, s)
		assert.Equal(t, []byte{0, 0}, d.Data, s)
	}
}

func TestDimensions(t *testing.T) {
	w, h, err := Dimensions(testImage(t, 7, 5))
	require.NoError(t, err)
	assert.Equal(t, 7, w)
	assert.Equal(t, 5, h)

	w, h, err = Dimensions(onePixelWebP)
	require.NoError(t, err)
	assert.Equal(t, 1, w)
	assert.Equal(t, 1, h)
}

func TestSplitGrid_WebP(t *testing.T) {
	tiles, err := SplitGrid(context.Background(), onePixelWebP, 1, 1)
	require.NoError(t, err)
	require.Len(t, tiles, 1)
	assert.Equal(t, 1, tiles[0].Width)
	assert.Equal(t, 1, tiles[0].Height)
	assert.Contains(t, tiles[0].DataURL, "data:image/png;base64,")
}

func TestSplitGrid(t *testing.T) {
	src := testImage(t, 10, 9)

	tiles, err := SplitGrid(context.Background(), src, 2, 3)
	require.NoError(t, err)
	require.Len(t, tiles, 6)

	assert.Equal(t, Tile{Row: 0, Col: 0, DataURL: tiles[0].DataURL, Width: 3, Height: 4}, tiles[0])
	last := tiles[5]
	assert.Equal(t, 1, last.Row)
	assert.Equal(t, 2, last.Col)
	assert.Equal(t, 4, last.Width)
	assert.Equal(t, 5, last.Height)

	t.Run("invalid grid", func(t *testing.T) {
		_, err := SplitGrid(context.Background(), src, 0, 2)
		assert.ErrorIs(t, err, ErrInvalidGrid)
		_, err = SplitGrid(context.Background(), src, 20, 2)
		assert.ErrorIs(t, err, ErrInvalidGrid)
	})
}
