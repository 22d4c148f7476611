package codec

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"

	"golang.org/x/image/tiff"
)

const (
	// maxStderrBytes limits the decoder stderr captured for logs and errors.
	maxStderrBytes = 16 * 1024
)

// DcrawDecoder implements Decoder by shelling out to the dcraw binary.
// Pixel data is requested as TIFF on stdout and decoded in-process, so no
// intermediate file is ever written. Safe for concurrent use; each call runs
// its own process.
type DcrawDecoder struct {
	binPath string
	logger  *slog.Logger
}

// NewDcrawDecoder creates a decoder backed by the dcraw binary at binPath.
// An empty binPath resolves "dcraw" via PATH.
func NewDcrawDecoder(binPath string, loggerHandler slog.Handler) *DcrawDecoder {
	if binPath == "" {
		binPath = "dcraw"
	}
	if loggerHandler == nil {
		loggerHandler = slog.NewTextHandler(io.Discard, nil)
	}
	logger := slog.New(loggerHandler).With(slog.String("component", "dcraw"))
	return &DcrawDecoder{binPath: binPath, logger: logger}
}

// Available checks whether the decoder binary can be located.
func (d *DcrawDecoder) Available() error {
	if _, err := exec.LookPath(d.binPath); err != nil {
		return fmt.Errorf("locate decoder binary %q: %w", d.binPath, err)
	}
	return nil
}

// Decode renders the RAW file at path to an image via `dcraw -c -T`.
func (d *DcrawDecoder) Decode(ctx context.Context, path string, params DecodeParams) (image.Image, error) {
	args := d.decodeArgs(path, params)
	d.logger.Debug("Invoking decoder", slog.String("path", path), slog.Any("args", args))

	cmd := exec.CommandContext(ctx, d.binPath, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = newCappedWriter(&stderr, maxStderrBytes)

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		d.logger.Error("Decoder process failed",
			slog.String("path", path),
			slog.String("stderr", msg),
			slog.Any("error", err))
		if msg != "" {
			return nil, fmt.Errorf("dcraw failed for %s: %w: %s", path, err, msg)
		}
		return nil, fmt.Errorf("dcraw failed for %s: %w", path, err)
	}

	img, err := tiff.Decode(bytes.NewReader(stdout.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("decode tiff output for %s: %w", path, err)
	}
	return img, nil
}

// Identify reads camera metadata via `dcraw -i -v` without rendering pixels.
func (d *DcrawDecoder) Identify(ctx context.Context, path string) (Metadata, error) {
	cmd := exec.CommandContext(ctx, d.binPath, "-i", "-v", path)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = newCappedWriter(&stderr, maxStderrBytes)

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return Metadata{}, ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if strings.Contains(msg, "Cannot decode") || strings.Contains(msg, "no thanks") {
			return Metadata{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
		}
		if msg != "" {
			return Metadata{}, fmt.Errorf("dcraw identify failed for %s: %w: %s", path, err, msg)
		}
		return Metadata{}, fmt.Errorf("dcraw identify failed for %s: %w", path, err)
	}

	meta := parseIdentifyOutput(stdout.String())
	d.logger.Debug("Identified camera",
		slog.String("path", path),
		slog.String("make", meta.Make),
		slog.String("model", meta.Model))
	return meta, nil
}

// decodeArgs maps DecodeParams onto dcraw command-line flags. Output is
// always 8-bit TIFF on stdout.
func (d *DcrawDecoder) decodeArgs(path string, params DecodeParams) []string {
	args := []string{"-c", "-T"}
	if params.UseCameraWB {
		args = append(args, "-w")
	}
	if params.UseAutoWB {
		args = append(args, "-a")
	}
	if params.Brightness > 0 && params.Brightness != 1.0 {
		args = append(args, "-b", strconv.FormatFloat(params.Brightness, 'f', -1, 64))
	}
	if params.HalfSize {
		args = append(args, "-h")
	}
	if params.PreserveHighlights {
		args = append(args, "-H", "2")
	}
	if params.FourColorRGB {
		args = append(args, "-f")
	}
	return append(args, path)
}

// parseIdentifyOutput extracts make and model from `dcraw -i -v` output.
// The relevant line reads "Camera: <Make> <Model...>" where make is the
// first whitespace-separated token.
func parseIdentifyOutput(out string) Metadata {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		val, ok := strings.CutPrefix(line, "Camera:")
		if !ok {
			continue
		}
		fields := strings.Fields(val)
		if len(fields) == 0 {
			return Metadata{}
		}
		return Metadata{
			Make:  fields[0],
			Model: strings.Join(fields[1:], " "),
		}
	}
	return Metadata{}
}

// cappedWriter discards writes beyond a fixed budget so a noisy decoder
// cannot grow the captured stderr unboundedly.
type cappedWriter struct {
	dst *bytes.Buffer
	max int
}

func newCappedWriter(dst *bytes.Buffer, max int) *cappedWriter {
	return &cappedWriter{dst: dst, max: max}
}

func (w *cappedWriter) Write(p []byte) (int, error) {
	remaining := w.max - w.dst.Len()
	if remaining > 0 {
		if len(p) > remaining {
			w.dst.Write(p[:remaining])
		} else {
			w.dst.Write(p)
		}
	}
	return len(p), nil
}
