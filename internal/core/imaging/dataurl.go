// Package imaging handles data URL images: decoding, encoding and slicing
// them into grid tiles.
package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"strings"

	// Registered decoders for data URLs produced by backends and uploads.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

var (
	ErrInvalidDataURL = errors.New("invalid data URL")
	ErrInvalidGrid    = errors.New("grid rows and cols must be positive")
)

// DataURL is a decoded "data:<mime>;base64,<payload>" value.
type DataURL struct {
	MimeType string
	Data     []byte
}

// ParseDataURL decodes a base64 data URL.
func ParseDataURL(s string) (*DataURL, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return nil, ErrInvalidDataURL
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, ErrInvalidDataURL
	}
	mime, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return nil, fmt.Errorf("%w: only base64 payloads are supported", ErrInvalidDataURL)
	}
	// Accept unpadded and line-wrapped payloads.
	payload = strings.TrimRight(strings.Join(strings.Fields(payload), ""), "=")
	data, err := base64.RawStdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	return &DataURL{MimeType: mime, Data: data}, nil
}

// String encodes the data URL.
func (d *DataURL) String() string {
	return EncodeDataURL(d.MimeType, d.Data)
}

// Extension returns a file extension for the mime type.
func (d *DataURL) Extension() string {
	switch d.MimeType {
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	}
	return "png"
}

// EncodeDataURL builds a base64 data URL.
func EncodeDataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// Dimensions reads the pixel size of a data URL image without decoding it
// fully.
func Dimensions(s string) (width, height int, err error) {
	d, err := ParseDataURL(s)
	if err != nil {
		return 0, 0, err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(d.Data))
	if err != nil {
		return 0, 0, fmt.Errorf("decode image config: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}
