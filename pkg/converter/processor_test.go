package converter_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rawbatch/rawbatch/internal/testutil"
	"github.com/rawbatch/rawbatch/pkg/converter"
	"github.com/rawbatch/rawbatch/pkg/converter/camera"
	"github.com/rawbatch/rawbatch/pkg/converter/codec"
	"github.com/rawbatch/rawbatch/pkg/converter/profile"
)

type processorFixture struct {
	opts    *converter.Options
	decoder *testutil.MockDecoder
	hooks   *testutil.RecordingHooks
	task    converter.FileTask
}

// newProcessorFixture lays out one RAW file in a temp tree and wires mock
// identification plus a real JPEG encoder.
func newProcessorFixture(t *testing.T) *processorFixture {
	t.Helper()
	inputDir := t.TempDir()
	outputDir := t.TempDir()
	srcPath := filepath.Join(inputDir, "shot.nef")
	testutil.CreateDummyFile(t, srcPath, "raw-bytes")

	decoder := &testutil.MockDecoder{}
	hooks := &testutil.RecordingHooks{}

	opts := &converter.Options{
		InputPath:  inputDir,
		OutputPath: outputDir,
		Quality:    90,
		EventHooks: hooks,
		Logger:     discardHandler(),
		Decoder:    decoder,
		Encoder:    codec.NewJPEGEncoder(),
		Detector:   camera.NewDetector("", ""),
	}
	return &processorFixture{
		opts:    opts,
		decoder: decoder,
		hooks:   hooks,
		task:    converter.FileTask{AbsPath: srcPath, RelPath: "shot.nef", Ext: "nef"},
	}
}

func TestProcessFileSuccess(t *testing.T) {
	f := newProcessorFixture(t)
	f.decoder.On("Identify", mock.Anything, f.task.AbsPath).
		Return(codec.Metadata{Make: "NIKON CORPORATION", Model: "NIKON D750"}, nil)
	f.decoder.On("Decode", mock.Anything, f.task.AbsPath, codec.DecodeParams{}).
		Return(testutil.TestImage(), nil)

	p := converter.NewFileProcessor(f.opts, discardHandler())
	rec, err := p.ProcessFile(context.Background(), f.task)
	require.NoError(t, err)

	assert.Equal(t, converter.StatusSuccess, rec.Status)
	assert.Equal(t, "Nikon", rec.CameraBrand)
	assert.Equal(t, "D750", rec.CameraModel)
	assert.Positive(t, rec.OutputBytes)

	data, readErr := os.ReadFile(rec.OutputPath)
	require.NoError(t, readErr)
	assert.Equal(t, int64(len(data)), rec.OutputBytes)

	// Status hooks: processing first, success last.
	events := f.hooks.UpdatesFor("shot.nef")
	require.Len(t, events, 2)
	assert.Equal(t, converter.StatusProcessing, events[0].Status)
	assert.Equal(t, converter.StatusSuccess, events[1].Status)
}

func TestProcessFilePreservesSubdirectories(t *testing.T) {
	f := newProcessorFixture(t)
	srcPath := filepath.Join(f.opts.InputPath, "sub", "deep.nef")
	testutil.CreateDummyFile(t, srcPath, "raw")
	task := converter.FileTask{AbsPath: srcPath, RelPath: "sub/deep.nef", Ext: "nef"}

	f.decoder.On("Identify", mock.Anything, srcPath).Return(codec.Metadata{}, nil)
	f.decoder.On("Decode", mock.Anything, srcPath, codec.DecodeParams{}).
		Return(testutil.TestImage(), nil)

	p := converter.NewFileProcessor(f.opts, discardHandler())
	rec, err := p.ProcessFile(context.Background(), task)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(f.opts.OutputPath, "sub", "deep.jpg"), rec.OutputPath)
	_, statErr := os.Stat(rec.OutputPath)
	assert.NoError(t, statErr)
}

func TestProcessFileDecodeFailure(t *testing.T) {
	f := newProcessorFixture(t)
	f.decoder.On("Identify", mock.Anything, f.task.AbsPath).Return(codec.Metadata{}, nil)
	f.decoder.On("Decode", mock.Anything, f.task.AbsPath, codec.DecodeParams{}).
		Return(nil, errors.New("corrupt data"))

	p := converter.NewFileProcessor(f.opts, discardHandler())
	rec, err := p.ProcessFile(context.Background(), f.task)

	require.Error(t, err)
	assert.ErrorIs(t, err, converter.ErrDecodeFailed)
	assert.Equal(t, converter.StatusFailed, rec.Status)
	assert.Contains(t, rec.Error, "corrupt data")

	// No output file may exist for a failed conversion.
	_, statErr := os.Stat(rec.OutputPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestProcessFileIdentifyFailureIsNotFatal(t *testing.T) {
	f := newProcessorFixture(t)
	f.decoder.On("Identify", mock.Anything, f.task.AbsPath).
		Return(codec.Metadata{}, errors.New("no exif block"))
	f.decoder.On("Decode", mock.Anything, f.task.AbsPath, codec.DecodeParams{}).
		Return(testutil.TestImage(), nil)

	p := converter.NewFileProcessor(f.opts, discardHandler())
	rec, err := p.ProcessFile(context.Background(), f.task)
	require.NoError(t, err)

	assert.Equal(t, converter.StatusSuccess, rec.Status)
	// Brand falls back to the vendor extension mapping.
	assert.Equal(t, "Nikon", rec.CameraBrand)
}

func TestProcessFileSkipExisting(t *testing.T) {
	f := newProcessorFixture(t)
	f.opts.SkipExisting = true

	// Output newer than the source.
	outPath := filepath.Join(f.opts.OutputPath, "shot.jpg")
	testutil.Touch(t, f.task.AbsPath, time.Now().Add(-time.Hour))
	testutil.Touch(t, outPath, time.Now())

	p := converter.NewFileProcessor(f.opts, discardHandler())
	rec, err := p.ProcessFile(context.Background(), f.task)
	require.NoError(t, err)

	assert.Equal(t, converter.StatusSkipped, rec.Status)
	assert.Equal(t, converter.SkipReasonUpToDate, rec.Reason)
	f.decoder.AssertNotCalled(t, "Decode", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessFileStaleOutputConverts(t *testing.T) {
	f := newProcessorFixture(t)
	f.opts.SkipExisting = true

	// Output older than the source gets regenerated.
	outPath := filepath.Join(f.opts.OutputPath, "shot.jpg")
	testutil.Touch(t, outPath, time.Now().Add(-time.Hour))
	testutil.Touch(t, f.task.AbsPath, time.Now())

	f.decoder.On("Identify", mock.Anything, f.task.AbsPath).Return(codec.Metadata{}, nil)
	f.decoder.On("Decode", mock.Anything, f.task.AbsPath, codec.DecodeParams{}).
		Return(testutil.TestImage(), nil)

	p := converter.NewFileProcessor(f.opts, discardHandler())
	rec, err := p.ProcessFile(context.Background(), f.task)
	require.NoError(t, err)
	assert.Equal(t, converter.StatusSuccess, rec.Status)
}

func TestProcessFileEmbedsProfile(t *testing.T) {
	f := newProcessorFixture(t)
	profileBytes := bytes.Repeat([]byte{0x42}, 128)
	entry := profile.Entry{Brand: "Nikon", Model: "D750", Scene: "standard", Path: "ignored"}

	profiles := &testutil.MockProfileResolver{}
	profiles.On("Resolve", "Nikon", "D750", "", false).Return(entry, true)
	profiles.On("Load", entry).Return(profileBytes, nil)
	f.opts.Profiles = profiles

	f.decoder.On("Identify", mock.Anything, f.task.AbsPath).
		Return(codec.Metadata{Make: "NIKON", Model: "NIKON D750"}, nil)
	f.decoder.On("Decode", mock.Anything, f.task.AbsPath, codec.DecodeParams{}).
		Return(testutil.TestImage(), nil)

	p := converter.NewFileProcessor(f.opts, discardHandler())
	rec, err := p.ProcessFile(context.Background(), f.task)
	require.NoError(t, err)

	assert.Equal(t, "Nikon/D750/standard", rec.IccProfile)
	data, readErr := os.ReadFile(rec.OutputPath)
	require.NoError(t, readErr)
	assert.True(t, bytes.Contains(data, profileBytes), "ICC profile bytes missing from output")
}

func TestProcessFileStrictProfileMiss(t *testing.T) {
	f := newProcessorFixture(t)
	f.opts.StrictProfile = true

	profiles := &testutil.MockProfileResolver{}
	profiles.On("Resolve", mock.Anything, mock.Anything, mock.Anything, true).
		Return(profile.Entry{}, false)
	f.opts.Profiles = profiles

	f.decoder.On("Identify", mock.Anything, f.task.AbsPath).
		Return(codec.Metadata{Make: "SONY", Model: "ILCE-1"}, nil)

	p := converter.NewFileProcessor(f.opts, discardHandler())
	rec, err := p.ProcessFile(context.Background(), f.task)

	require.Error(t, err)
	assert.ErrorIs(t, err, converter.ErrProfileNotFound)
	assert.Equal(t, converter.StatusFailed, rec.Status)
	f.decoder.AssertNotCalled(t, "Decode", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessFileLenientProfileMiss(t *testing.T) {
	f := newProcessorFixture(t)
	profiles := &testutil.MockProfileResolver{}
	profiles.On("Resolve", mock.Anything, mock.Anything, mock.Anything, false).
		Return(profile.Entry{}, false)
	f.opts.Profiles = profiles

	f.decoder.On("Identify", mock.Anything, f.task.AbsPath).Return(codec.Metadata{}, nil)
	f.decoder.On("Decode", mock.Anything, f.task.AbsPath, codec.DecodeParams{}).
		Return(testutil.TestImage(), nil)

	p := converter.NewFileProcessor(f.opts, discardHandler())
	rec, err := p.ProcessFile(context.Background(), f.task)
	require.NoError(t, err)
	assert.Equal(t, converter.StatusSuccess, rec.Status)
	assert.Empty(t, rec.IccProfile)
}

func TestProcessFileMissingSource(t *testing.T) {
	f := newProcessorFixture(t)
	task := converter.FileTask{
		AbsPath: filepath.Join(f.opts.InputPath, "gone.nef"),
		RelPath: "gone.nef",
		Ext:     "nef",
	}

	p := converter.NewFileProcessor(f.opts, discardHandler())
	rec, err := p.ProcessFile(context.Background(), task)

	require.Error(t, err)
	assert.ErrorIs(t, err, converter.ErrStatFailed)
	assert.Equal(t, converter.StatusFailed, rec.Status)
}

func TestProcessFileCancelledDuringDecode(t *testing.T) {
	f := newProcessorFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	f.decoder.On("Identify", mock.Anything, f.task.AbsPath).Return(codec.Metadata{}, nil)
	f.decoder.On("Decode", mock.Anything, f.task.AbsPath, codec.DecodeParams{}).
		Run(func(args mock.Arguments) { cancel() }).
		Return(nil, context.Canceled)

	p := converter.NewFileProcessor(f.opts, discardHandler())
	rec, err := p.ProcessFile(ctx, f.task)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, converter.StatusSkipped, rec.Status)
	assert.Equal(t, converter.SkipReasonCancelled, rec.Reason)
}

func TestProcessFileEncodeFailure(t *testing.T) {
	f := newProcessorFixture(t)

	encoder := &testutil.MockEncoder{}
	detector := &testutil.MockDetector{}
	f.opts.Encoder = encoder
	f.opts.Detector = detector

	f.decoder.On("Identify", mock.Anything, f.task.AbsPath).
		Return(codec.Metadata{Make: "SONY", Model: "ILCE-7M3"}, nil)
	f.decoder.On("Decode", mock.Anything, f.task.AbsPath, codec.DecodeParams{}).
		Return(testutil.TestImage(), nil)
	detector.On("Detect", codec.Metadata{Make: "SONY", Model: "ILCE-7M3"}, "nef").
		Return(camera.Info{Brand: "Sony", Model: "ILCE-7M3"})
	encoder.On("EncodeWithProfile", mock.Anything, 90, mock.Anything).
		Return(nil, errors.New("broken pipe"))

	p := converter.NewFileProcessor(f.opts, discardHandler())
	rec, err := p.ProcessFile(context.Background(), f.task)

	require.Error(t, err)
	assert.ErrorIs(t, err, converter.ErrEncodeFailed)
	assert.Equal(t, converter.StatusFailed, rec.Status)
	assert.Equal(t, "Sony", rec.CameraBrand)
	encoder.AssertExpectations(t)
	detector.AssertExpectations(t)
}

func TestProcessFileBlockedOutputKeepsCause(t *testing.T) {
	f := newProcessorFixture(t)
	srcPath := filepath.Join(f.opts.InputPath, "sub", "deep.nef")
	testutil.CreateDummyFile(t, srcPath, "raw")
	task := converter.FileTask{AbsPath: srcPath, RelPath: "sub/deep.nef", Ext: "nef"}

	// A regular file where the output subdirectory must go blocks the write.
	testutil.CreateDummyFile(t, filepath.Join(f.opts.OutputPath, "sub"), "in the way")

	f.decoder.On("Identify", mock.Anything, srcPath).Return(codec.Metadata{}, nil)
	f.decoder.On("Decode", mock.Anything, srcPath, codec.DecodeParams{}).
		Return(testutil.TestImage(), nil)

	p := converter.NewFileProcessor(f.opts, discardHandler())
	rec, err := p.ProcessFile(context.Background(), task)

	require.Error(t, err)
	assert.ErrorIs(t, err, converter.ErrMkdirFailed)
	// The filesystem errno must survive the wrap so the engine can tell
	// unusable-output conditions apart from ordinary per-file failures.
	assert.ErrorIs(t, err, syscall.ENOTDIR)
	assert.Equal(t, converter.StatusFailed, rec.Status)
}
