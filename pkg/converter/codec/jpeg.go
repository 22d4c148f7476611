package codec

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
)

// JPEGEncoder implements Encoder using the standard JPEG encoder, with ICC
// profiles embedded by splicing APP2 marker segments into the encoded stream.
type JPEGEncoder struct{}

// NewJPEGEncoder creates a JPEG encoder.
func NewJPEGEncoder() *JPEGEncoder {
	return &JPEGEncoder{}
}

// Encode serializes img as JPEG at the given quality.
func (e *JPEGEncoder) Encode(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("jpeg encode: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeWithProfile serializes img as JPEG and embeds iccProfile as APP2
// segments per the ICC specification. A nil or empty profile behaves like
// Encode.
func (e *JPEGEncoder) EncodeWithProfile(img image.Image, quality int, iccProfile []byte) ([]byte, error) {
	encoded, err := e.Encode(img, quality)
	if err != nil {
		return nil, err
	}
	if len(iccProfile) == 0 {
		return encoded, nil
	}
	return spliceICCProfile(encoded, iccProfile)
}

// iccChunkPayload is the maximum profile bytes per APP2 segment: a segment
// payload holds at most 65533 bytes, minus the 12-byte "ICC_PROFILE\x00"
// identifier and 2 chunk index bytes.
const iccChunkPayload = 65533 - 12 - 2

var iccIdentifier = []byte("ICC_PROFILE\x00")

// spliceICCProfile inserts APP2 ICC segments immediately after the SOI
// marker (and any APP0 segment) of an encoded JPEG stream.
func spliceICCProfile(encoded, profile []byte) ([]byte, error) {
	if len(encoded) < 2 || encoded[0] != 0xFF || encoded[1] != 0xD8 {
		return nil, fmt.Errorf("icc splice: not a jpeg stream")
	}

	// Insert after SOI, or after APP0 if one directly follows it, so that
	// JFIF streams keep their APP0 first as the format expects.
	insertAt := 2
	if len(encoded) >= 4 && encoded[2] == 0xFF && encoded[3] == 0xE0 {
		if len(encoded) < 6 {
			return nil, fmt.Errorf("icc splice: truncated app0 segment")
		}
		segLen := int(encoded[4])<<8 | int(encoded[5])
		insertAt = 4 + segLen
		if insertAt > len(encoded) {
			return nil, fmt.Errorf("icc splice: app0 length exceeds stream")
		}
	}

	chunkCount := (len(profile) + iccChunkPayload - 1) / iccChunkPayload
	if chunkCount > 255 {
		return nil, fmt.Errorf("icc splice: profile too large (%d bytes)", len(profile))
	}

	var segments bytes.Buffer
	for i := 0; i < chunkCount; i++ {
		start := i * iccChunkPayload
		end := start + iccChunkPayload
		if end > len(profile) {
			end = len(profile)
		}
		chunk := profile[start:end]

		segLen := 2 + len(iccIdentifier) + 2 + len(chunk)
		segments.WriteByte(0xFF)
		segments.WriteByte(0xE2)
		segments.WriteByte(byte(segLen >> 8))
		segments.WriteByte(byte(segLen & 0xFF))
		segments.Write(iccIdentifier)
		segments.WriteByte(byte(i + 1))
		segments.WriteByte(byte(chunkCount))
		segments.Write(chunk)
	}

	out := make([]byte, 0, len(encoded)+segments.Len())
	out = append(out, encoded[:insertAt]...)
	out = append(out, segments.Bytes()...)
	out = append(out, encoded[insertAt:]...)
	return out, nil
}
