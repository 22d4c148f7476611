package codec

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: uint8(y * 8), B: 128, A: 255})
		}
	}
	return img
}

func TestEncode(t *testing.T) {
	enc := NewJPEGEncoder()
	data, err := enc.Encode(testImage(32, 32), 90)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	// Output must round-trip through the standard decoder.
	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 32, img.Bounds().Dx())
	assert.Equal(t, 32, img.Bounds().Dy())
}

func TestEncodeQualityAffectsSize(t *testing.T) {
	enc := NewJPEGEncoder()
	low, err := enc.Encode(testImage(64, 64), 10)
	require.NoError(t, err)
	high, err := enc.Encode(testImage(64, 64), 100)
	require.NoError(t, err)
	assert.Less(t, len(low), len(high))
}

func TestEncodeWithProfileEmpty(t *testing.T) {
	enc := NewJPEGEncoder()
	plain, err := enc.Encode(testImage(16, 16), 90)
	require.NoError(t, err)
	withNil, err := enc.EncodeWithProfile(testImage(16, 16), 90, nil)
	require.NoError(t, err)
	assert.Equal(t, plain, withNil)
}

func TestEncodeWithProfileEmbedsSegment(t *testing.T) {
	enc := NewJPEGEncoder()
	profile := bytes.Repeat([]byte{0xAB}, 512)

	data, err := enc.EncodeWithProfile(testImage(16, 16), 90, profile)
	require.NoError(t, err)

	assert.True(t, bytes.Contains(data, iccIdentifier), "APP2 ICC identifier missing")
	assert.True(t, bytes.Contains(data, profile), "profile bytes missing from stream")

	// The stream must remain decodable with the segment in place.
	_, err = jpeg.Decode(bytes.NewReader(data))
	assert.NoError(t, err)
}

func TestEncodeWithProfileMultiChunk(t *testing.T) {
	enc := NewJPEGEncoder()
	// Two chunks worth of profile data.
	profile := bytes.Repeat([]byte{0x01}, iccChunkPayload+100)

	data, err := enc.EncodeWithProfile(testImage(16, 16), 90, profile)
	require.NoError(t, err)

	assert.Equal(t, 2, bytes.Count(data, iccIdentifier))

	_, err = jpeg.Decode(bytes.NewReader(data))
	assert.NoError(t, err)
}

func TestSpliceICCProfileRejectsNonJPEG(t *testing.T) {
	_, err := spliceICCProfile([]byte("not a jpeg"), []byte{0x01})
	assert.Error(t, err)
}
