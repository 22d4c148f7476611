// Package codec provides the RAW decoding and JPEG encoding backends used by
// the conversion pipeline. Decoding shells out to dcraw; encoding uses the
// standard JPEG encoder with optional ICC profile embedding.
package codec

import (
	"context"
	"errors"
	"image"
)

// DecodeParams controls how a RAW file is rendered to pixel data.
// The zero value requests camera white balance at full resolution.
type DecodeParams struct {
	UseCameraWB        bool    `mapstructure:"useCameraWB"`
	UseAutoWB          bool    `mapstructure:"useAutoWB"`
	Brightness         float64 `mapstructure:"brightness"`
	HalfSize           bool    `mapstructure:"halfSize"`
	PreserveHighlights bool    `mapstructure:"preserveHighlights"`
	FourColorRGB       bool    `mapstructure:"fourColorRGB"`
}

// Metadata holds camera identification extracted from a RAW file header.
type Metadata struct {
	Make  string
	Model string
}

// Decoder renders RAW files to in-memory images and extracts camera metadata.
// Implementations must be safe for concurrent use by multiple workers.
type Decoder interface {
	// Decode renders the RAW file at path into an image. The context bounds
	// the external decoder process.
	Decode(ctx context.Context, path string, params DecodeParams) (image.Image, error)
	// Identify reads camera make and model without rendering pixel data.
	Identify(ctx context.Context, path string) (Metadata, error)
}

// Encoder writes an image as an encoded byte stream.
type Encoder interface {
	// Encode serializes img at the given quality (1-100).
	Encode(img image.Image, quality int) ([]byte, error)
	// EncodeWithProfile serializes img and embeds the given ICC profile.
	// A nil or empty profile behaves like Encode.
	EncodeWithProfile(img image.Image, quality int, iccProfile []byte) ([]byte, error)
}

// ErrUnsupportedFormat indicates the decoder rejected the file as not being a
// RAW format it understands.
var ErrUnsupportedFormat = errors.New("unsupported raw format")
