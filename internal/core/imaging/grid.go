package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/image/draw"
)

// Tile is one cell of a split image.
type Tile struct {
	Row     int
	Col     int
	DataURL string
	Width   int
	Height  int
}

// SplitGrid slices a data URL image into rows x cols PNG tiles in row-major
// order. Remainder pixels go to the last row and column.
func SplitGrid(ctx context.Context, src string, rows, cols int) ([]Tile, error) {
	if rows <= 0 || cols <= 0 {
		return nil, ErrInvalidGrid
	}
	d, err := ParseDataURL(src)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(d.Data))
	if err != nil {
		return nil, fmt.Errorf("decode source image: %w", err)
	}

	b := img.Bounds()
	cellW, cellH := b.Dx()/cols, b.Dy()/rows
	if cellW == 0 || cellH == 0 {
		return nil, fmt.Errorf("%w: image %dx%d too small for %dx%d grid", ErrInvalidGrid, b.Dx(), b.Dy(), rows, cols)
	}

	tiles := make([]Tile, 0, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			x0, y0 := b.Min.X+c*cellW, b.Min.Y+r*cellH
			x1, y1 := x0+cellW, y0+cellH
			if c == cols-1 {
				x1 = b.Max.X
			}
			if r == rows-1 {
				y1 = b.Max.Y
			}
			tile, err := crop(img, image.Rect(x0, y0, x1, y1))
			if err != nil {
				return nil, err
			}
			w, h, err := Dimensions(tile)
			if err != nil {
				return nil, err
			}
			tiles = append(tiles, Tile{Row: r, Col: c, DataURL: tile, Width: w, Height: h})
		}
	}
	return tiles, nil
}

func crop(img image.Image, rect image.Rectangle) (string, error) {
	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(dst, dst.Bounds(), img, rect.Min, draw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return "", fmt.Errorf("encode tile: %w", err)
	}
	return EncodeDataURL("image/png", buf.Bytes()), nil
}
