package converter_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rawbatch/rawbatch/internal/testutil"
	"github.com/rawbatch/rawbatch/pkg/converter"
)

func TestConvertNilLogger(t *testing.T) {
	_, err := converter.Convert(context.Background(), converter.Options{})
	assert.ErrorIs(t, err, converter.ErrConfigValidation)
}

func TestConvertRunsEngine(t *testing.T) {
	inputDir := t.TempDir()
	outputDir := t.TempDir()
	testutil.CreateDummyFile(t, filepath.Join(inputDir, "a.dng"), "raw")

	report, err := converter.Convert(context.Background(),
		engineOpts(inputDir, outputDir, &fakeDecoder{}, nil))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Summary.SuccessCount)
}

func TestConvertPropagatesValidationError(t *testing.T) {
	opts := engineOpts(filepath.Join(t.TempDir(), "absent"), t.TempDir(), &fakeDecoder{}, nil)
	_, err := converter.Convert(context.Background(), opts)
	assert.ErrorIs(t, err, converter.ErrInputPathNotFound)
}
