// Package imaging fetches photos from the object store and shrinks them to fit
// the AI endpoint's payload budget.
package imaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"log/slog"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	shared "github.com/ripixel/fitglue-vision/pkg"
	apperrors "github.com/ripixel/fitglue-vision/pkg/errors"
)

const OutputMediaType = "image/jpeg"

// Options controls the resize and recompression passes.
type Options struct {
	MaxDimension int // Longest edge after resize, in pixels
	MaxBytes     int // Byte budget for the encoded payload
	Quality      int // JPEG quality for the first pass
	MinQuality   int // Quality floor for the second pass
	// SecondPassScale shrinks the first-pass dimensions when the budget is still exceeded.
	SecondPassScale float64
}

// DefaultOptions returns the standard budget: 1024px box, 1 MiB, quality 80.
func DefaultOptions() Options {
	return Options{
		MaxDimension:    1024,
		MaxBytes:        1 << 20,
		Quality:         80,
		MinQuality:      30,
		SecondPassScale: 0.8,
	}
}

// ProcessedImage is owned by a single extraction call and never shared.
type ProcessedImage struct {
	Data         []byte
	MediaType    string
	ByteSize     int
	OriginalSize int
	Width        int
	Height       int
	// Reencoded is false when the original bytes were passed through.
	Reencoded bool
}

type encodeFunc func(img image.Image, quality int) ([]byte, error)

// Preprocessor resolves a locator, downloads the object and recompresses it.
type Preprocessor struct {
	store  shared.BlobStore
	opts   Options
	logger *slog.Logger
	encode encodeFunc
}

func NewPreprocessor(store shared.BlobStore, opts Options, logger *slog.Logger) *Preprocessor {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultOptions()
	if opts.MaxDimension <= 0 {
		opts.MaxDimension = def.MaxDimension
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = def.MaxBytes
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = def.Quality
	}
	if opts.MinQuality < def.MinQuality {
		opts.MinQuality = def.MinQuality
	}
	if opts.SecondPassScale <= 0 || opts.SecondPassScale >= 1 {
		opts.SecondPassScale = def.SecondPassScale
	}
	return &Preprocessor{
		store:  store,
		opts:   opts,
		logger: logger.With("component", "imaging"),
		encode: encodeJPEG,
	}
}

// Process fetches and shrinks the referenced image. It fails only when the
// locator is unsupported, the object is missing or unreadable, or the bytes
// are not a decodable image. Encoder failures degrade to the original bytes.
func (p *Preprocessor) Process(ctx context.Context, ref string) (*ProcessedImage, error) {
	loc, err := ParseLocator(ref)
	if err != nil {
		return nil, err
	}

	raw, err := p.store.Read(ctx, loc.Bucket, loc.Object)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, apperrors.ErrImageNotFound.WithCause(err).WithMetadata("object", loc.String())
		}
		return nil, apperrors.ErrImageRead.WithCause(err).WithMetadata("object", loc.String())
	}
	if len(raw) == 0 {
		return nil, apperrors.ErrImageUndecodable.WithMessage("image object is empty").WithMetadata("object", loc.String())
	}

	mediaType := mimetype.Detect(raw).String()
	if !strings.HasPrefix(mediaType, "image/") {
		return nil, apperrors.ErrImageUndecodable.
			WithCause(fmt.Errorf("detected media type %s", mediaType)).
			WithMetadata("object", loc.String())
	}

	src, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, apperrors.ErrImageUndecodable.WithCause(err).WithMetadata("object", loc.String())
	}

	b := src.Bounds()
	w, h := FitWithin(b.Dx(), b.Dy(), p.opts.MaxDimension)

	out, err := p.encode(resize(src, w, h), p.opts.Quality)
	if err != nil {
		return p.passthrough(raw, mediaType, b, err), nil
	}

	if len(out) > p.opts.MaxBytes {
		w2, h2 := scale(w, h, p.opts.SecondPassScale)
		q2 := secondPassQuality(p.opts.Quality, p.opts.MinQuality)
		p.logger.Debug("Image over budget, running second pass",
			"size_bytes", len(out), "budget_bytes", p.opts.MaxBytes, "width", w2, "height", h2, "quality", q2)

		second, err := p.encode(resize(src, w2, h2), q2)
		if err != nil {
			return p.passthrough(raw, mediaType, b, err), nil
		}
		out, w, h = second, w2, h2
		if len(out) > p.opts.MaxBytes {
			p.logger.Warn("Image still over budget after second pass, sending anyway",
				"original_bytes", len(raw), "processed_bytes", len(out), "budget_bytes", p.opts.MaxBytes)
		}
	}

	p.logger.Debug("Image processed",
		"format", format,
		"original_bytes", len(raw),
		"processed_bytes", len(out),
		"width", w,
		"height", h)

	return &ProcessedImage{
		Data:         out,
		MediaType:    OutputMediaType,
		ByteSize:     len(out),
		OriginalSize: len(raw),
		Width:        w,
		Height:       h,
		Reencoded:    true,
	}, nil
}

func (p *Preprocessor) passthrough(raw []byte, mediaType string, b image.Rectangle, cause error) *ProcessedImage {
	p.logger.Warn("Re-encode failed, passing original bytes through", "error", cause, "size_bytes", len(raw))
	return &ProcessedImage{
		Data:         raw,
		MediaType:    mediaType,
		ByteSize:     len(raw),
		OriginalSize: len(raw),
		Width:        b.Dx(),
		Height:       b.Dy(),
	}
}

// FitWithin scales (w, h) down to fit a square of side box, preserving aspect ratio.
// It never upscales.
func FitWithin(w, h, box int) (int, int) {
	if w <= 0 || h <= 0 || box <= 0 {
		return w, h
	}
	if w <= box && h <= box {
		return w, h
	}
	if w >= h {
		nh := h * box / w
		if nh < 1 {
			nh = 1
		}
		return box, nh
	}
	nw := w * box / h
	if nw < 1 {
		nw = 1
	}
	return nw, box
}

func scale(w, h int, f float64) (int, int) {
	nw, nh := int(float64(w)*f), int(float64(h)*f)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	return nw, nh
}

func secondPassQuality(q, floor int) int {
	q2 := q - 30
	if q2 < floor {
		q2 = floor
	}
	return q2
}

// resize scales src to w x h over a white background. JPEG has no alpha, so
// transparent pixels must be flattened here or they encode as black.
func resize(src image.Image, w, h int) image.Image {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	if b.Dx() == w && b.Dy() == h {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
		return dst
	}
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
