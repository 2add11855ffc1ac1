package compose

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	// Decoders for every image type in the upload allow-list.
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/webp"

	dErrors "cvintake/pkg/domain-errors"
)

// Quality selects the JPEG compression tier for the composite output.
type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
)

// jpegQuality maps tiers onto encoder quality percentages.
func (q Quality) jpegQuality() int {
	switch q {
	case QualityLow:
		return 60
	case QualityHigh:
		return 95
	default:
		return 80
	}
}

// File is an image payload entering or leaving the engine.
type File struct {
	Name string
	MIME string
	Data []byte
}

// ErrInsufficientSelection is returned when fewer than two image files are
// selected for composition.
var ErrInsufficientSelection = dErrors.New(dErrors.CodeBadRequest, "composition requires at least 2 images")

// DecodeError reports which source image failed to decode within the bounded
// wait. A single failure aborts the whole composition.
type DecodeError struct {
	Filename string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Filename, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Observer receives composition outcomes for metrics.
type Observer interface {
	RecordComposition(outcome string)
}

// Engine rasterizes a set of images into one vertically stacked composite.
type Engine struct {
	decodeTimeout time.Duration
	now           func() time.Time
	observer      Observer
}

// Option configures an Engine.
type Option func(*Engine)

// WithDecodeTimeout overrides the per-image decode bound (default 10s).
func WithDecodeTimeout(d time.Duration) Option {
	return func(e *Engine) { e.decodeTimeout = d }
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithObserver records one outcome per composition attempt.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// NewEngine creates a composition engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		decodeTimeout: 10 * time.Second,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Compose decodes every source concurrently, stacks them vertically in input
// order with each image horizontally centered, and encodes one JPEG at the
// requested quality tier. Output width is the max source width; output
// height is the sum of source heights. Any decode failure or timeout aborts
// the whole attempt; sources are never mutated.
func (e *Engine) Compose(ctx context.Context, files []File, quality Quality) (out File, err error) {
	defer func() {
		if err != nil {
			e.observe("error")
		} else {
			e.observe("success")
		}
	}()

	if len(files) < 2 {
		return File{}, ErrInsufficientSelection
	}
	for _, f := range files {
		if !strings.HasPrefix(f.MIME, "image/") {
			return File{}, ErrInsufficientSelection
		}
	}

	decoded := make([]image.Image, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			img, err := e.decodeBounded(gctx, f)
			if err != nil {
				return &DecodeError{Filename: f.Name, Err: err}
			}
			decoded[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return File{}, err
	}

	maxWidth, totalHeight := 0, 0
	for _, img := range decoded {
		b := img.Bounds()
		if b.Dx() > maxWidth {
			maxWidth = b.Dx()
		}
		totalHeight += b.Dy()
	}

	canvas := image.NewRGBA(image.Rect(0, 0, maxWidth, totalHeight))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)

	y := 0
	for _, img := range decoded {
		b := img.Bounds()
		x := (maxWidth - b.Dx()) / 2
		target := image.Rect(x, y, x+b.Dx(), y+b.Dy())
		draw.Draw(canvas, target, img, b.Min, draw.Src)
		y += b.Dy()
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: quality.jpegQuality()}); err != nil {
		return File{}, fmt.Errorf("encode composite: %w", err)
	}

	timestamp := e.now().UTC().Format("2006-01-02T15-04-05")
	return File{
		Name: fmt.Sprintf("merged-cv-%s.jpg", timestamp),
		MIME: "image/jpeg",
		Data: buf.Bytes(),
	}, nil
}

func (e *Engine) observe(outcome string) {
	if e.observer != nil {
		e.observer.RecordComposition(outcome)
	}
}

// decodeBounded decodes one image within the per-image time budget. The
// decode goroutine owns its reader and buffered result; whichever path wins,
// nothing is leaked past the select.
func (e *Engine) decodeBounded(ctx context.Context, f File) (image.Image, error) {
	type result struct {
		img image.Image
		err error
	}
	done := make(chan result, 1)
	go func() {
		img, _, err := image.Decode(bytes.NewReader(f.Data))
		done <- result{img: img, err: err}
	}()

	timer := time.NewTimer(e.decodeTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, fmt.Errorf("decode timed out after %s", e.decodeTimeout)
	case res := <-done:
		if res.err != nil {
			return nil, res.err
		}
		return res.img, nil
	}
}
