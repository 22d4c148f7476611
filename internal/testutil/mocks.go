// Package testutil provides mock implementations for the interfaces defined
// in the rawbatch core library (pkg/converter and subpackages). These mocks
// facilitate unit testing by isolating components from the external decoder
// and the filesystem.
package testutil

import (
	"context"
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/rawbatch/rawbatch/pkg/converter"
	"github.com/rawbatch/rawbatch/pkg/converter/camera"
	"github.com/rawbatch/rawbatch/pkg/converter/codec"
	"github.com/rawbatch/rawbatch/pkg/converter/profile"
)

// TestImage returns a small deterministic image for decoder stubs.
func TestImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 32), G: uint8(y * 32), B: 64, A: 255})
		}
	}
	return img
}

// MockDecoder provides a mock implementation of the codec.Decoder interface.
// Configure expectations using testify/mock methods (e.g., .On("Decode", ...).Return(...)).
type MockDecoder struct {
	mock.Mock
}

// Decode mocks the Decode method.
func (m *MockDecoder) Decode(ctx context.Context, path string, params codec.DecodeParams) (image.Image, error) {
	args := m.Called(ctx, path, params)
	img, _ := args.Get(0).(image.Image)
	return img, args.Error(1)
}

// Identify mocks the Identify method.
func (m *MockDecoder) Identify(ctx context.Context, path string) (codec.Metadata, error) {
	args := m.Called(ctx, path)
	meta, _ := args.Get(0).(codec.Metadata)
	return meta, args.Error(1)
}

// MockEncoder provides a mock implementation of the codec.Encoder interface.
type MockEncoder struct {
	mock.Mock
}

// Encode mocks the Encode method.
func (m *MockEncoder) Encode(img image.Image, quality int) ([]byte, error) {
	args := m.Called(img, quality)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

// EncodeWithProfile mocks the EncodeWithProfile method.
func (m *MockEncoder) EncodeWithProfile(img image.Image, quality int, iccProfile []byte) ([]byte, error) {
	args := m.Called(img, quality, iccProfile)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

// MockProfileResolver provides a mock implementation of converter.ProfileResolver.
type MockProfileResolver struct {
	mock.Mock
}

// Resolve mocks the Resolve method.
func (m *MockProfileResolver) Resolve(brand, model, scene string, strict bool) (profile.Entry, bool) {
	args := m.Called(brand, model, scene, strict)
	entry, _ := args.Get(0).(profile.Entry)
	ok, _ := args.Get(1).(bool)
	return entry, ok
}

// Load mocks the Load method.
func (m *MockProfileResolver) Load(entry profile.Entry) ([]byte, error) {
	args := m.Called(entry)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

// Stats mocks the Stats method.
func (m *MockProfileResolver) Stats() profile.CacheStats {
	args := m.Called()
	stats, _ := args.Get(0).(profile.CacheStats)
	return stats
}

// MockDetector provides a mock implementation of converter.CameraDetector.
type MockDetector struct {
	mock.Mock
}

// Detect mocks the Detect method.
func (m *MockDetector) Detect(meta codec.Metadata, ext string) camera.Info {
	args := m.Called(meta, ext)
	info, _ := args.Get(0).(camera.Info)
	return info
}

// StatusEvent captures one OnFileStatusUpdate invocation.
type StatusEvent struct {
	Path    string
	Status  converter.Status
	Message string
}

// RecordingHooks implements converter.Hooks, recording every callback in a
// thread-safe way for later assertions.
type RecordingHooks struct {
	mu         sync.Mutex
	Discovered []string
	Updates    []StatusEvent
	Completed  []converter.Report
}

// OnFileDiscovered implements converter.Hooks.
func (h *RecordingHooks) OnFileDiscovered(path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Discovered = append(h.Discovered, path)
	return nil
}

// OnFileStatusUpdate implements converter.Hooks.
func (h *RecordingHooks) OnFileStatusUpdate(path string, status converter.Status, message string, duration time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Updates = append(h.Updates, StatusEvent{Path: path, Status: status, Message: message})
	return nil
}

// OnRunComplete implements converter.Hooks.
func (h *RecordingHooks) OnRunComplete(report converter.Report) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Completed = append(h.Completed, report)
	return nil
}

// DiscoveredPaths returns a copy of the discovery log.
func (h *RecordingHooks) DiscoveredPaths() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.Discovered...)
}

// UpdatesFor returns the status events recorded for a path, in order.
func (h *RecordingHooks) UpdatesFor(path string) []StatusEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	var events []StatusEvent
	for _, ev := range h.Updates {
		if ev.Path == path {
			events = append(events, ev)
		}
	}
	return events
}

// Reports returns a copy of the completed run reports.
func (h *RecordingHooks) Reports() []converter.Report {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]converter.Report(nil), h.Completed...)
}
