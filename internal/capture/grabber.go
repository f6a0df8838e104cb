// Package capture orchestrates grabbing the instrument display, running the
// post-processing pipeline, and encoding the finished bitmap.
package capture

import (
	"bytes"
	"context"
	"image"
	"image/draw"
	"image/png"
	"strings"
	"time"

	"github.com/corona10/goimagehash"
	"github.com/nfnt/resize"
	"golang.org/x/image/bmp"

	apperrors "github.com/scopegrab/scopegrab/internal/errors"
	"github.com/scopegrab/scopegrab/internal/render"
	"github.com/scopegrab/scopegrab/internal/trace"
)

// Instrument is the slice of the SCPI client the grabber depends on.
type Instrument interface {
	DisplayData(ctx context.Context, format string) ([]byte, error)
	ActiveSources(ctx context.Context) ([]string, error)
	PrepareWaveform(ctx context.Context) error
	WaveformPoints(ctx context.Context, src string) ([]string, error)
}

// Grabber ties the instrument to the post-processor. One capture is
// processed fully before the next begins; Grabber is not safe for
// concurrent use.
type Grabber struct {
	inst       Instrument
	proc       *render.Processor
	wireFormat string
	lastHash   *goimagehash.ImageHash
}

// New creates a grabber requesting display data in wireFormat (PNG or BMP24).
func New(inst Instrument, proc *render.Processor, wireFormat string) *Grabber {
	return &Grabber{inst: inst, proc: proc, wireFormat: wireFormat}
}

// Result is one finished capture.
type Result struct {
	Image   *image.RGBA
	TakenAt time.Time
	Hash    *goimagehash.ImageHash
}

// Screenshot fetches the display, post-processes it, and hashes the result
// for change detection. An unset spec.Timestamp defaults to the capture moment.
func (g *Grabber) Screenshot(ctx context.Context, spec render.Spec, opts render.Options) (*Result, error) {
	ctx, span := trace.StartSpan(ctx, "screenshot")
	defer span.End()
	log := trace.Logger(ctx)

	taken := time.Now()
	if spec.Timestamp.IsZero() {
		spec.Timestamp = taken
	}

	raw, err := g.inst.DisplayData(ctx, g.wireFormat)
	if err != nil {
		return nil, err
	}
	span.SetAttr("bytes", len(raw))

	decoded, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.CodeDecodeFailed, "decode %d-byte %s display dump", len(raw), g.wireFormat)
	}
	log.Debug("display data decoded", "format", format, "bounds", decoded.Bounds())

	out, err := g.proc.Process(toRGBA(decoded), spec, opts)
	if err != nil {
		return nil, err
	}

	res := &Result{Image: out, TakenAt: taken}
	if hash, err := goimagehash.PerceptionHash(out); err == nil {
		res.Hash = hash
	} else {
		log.Debug("perceptual hash failed", "error", err)
	}
	return res, nil
}

// Changed reports whether res differs from the previous capture by more
// than maxDistance pHash bits. The first capture always counts as changed.
func (g *Grabber) Changed(res *Result, maxDistance int) bool {
	if res.Hash == nil {
		return true
	}
	if g.lastHash == nil {
		g.lastHash = res.Hash
		return true
	}
	dist, err := g.lastHash.Distance(res.Hash)
	if err == nil && dist <= maxDistance {
		return false
	}
	g.lastHash = res.Hash
	return true
}

// Encode serializes the finished bitmap as the given output format.
func Encode(img image.Image, format string) ([]byte, error) {
	var buf bytes.Buffer
	switch strings.ToLower(format) {
	case "png":
		if err := png.Encode(&buf, img); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInternal, "encode png")
		}
	case "bmp":
		if err := bmp.Encode(&buf, img); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInternal, "encode bmp")
		}
	default:
		return nil, apperrors.Newf(apperrors.CodeConfigInvalid, "unsupported output format %q", format)
	}
	return buf.Bytes(), nil
}

// Thumbnail returns a Lanczos-resampled copy, width pixels wide with the
// aspect ratio preserved.
func Thumbnail(img image.Image, width int) image.Image {
	return resize.Resize(uint(width), 0, img, resize.Lanczos3)
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	out := image.NewRGBA(img.Bounds())
	draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Src)
	return out
}
