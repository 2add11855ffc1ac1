package capture

import (
	"context"
	"image"
)

// FacingMode selects which camera to request. Constraints are best-effort:
// the device decides what it can actually provide.
type FacingMode string

const (
	FacingEnvironment FacingMode = "environment"
	FacingUser        FacingMode = "user"
)

// Constraints describe the preferred stream. The granted stream may differ;
// consumers must read actual dimensions from the stream, never from here.
type Constraints struct {
	Facing FacingMode
	Width  int
	Height int
}

// Device opens camera streams. Implementations wrap real capture hardware;
// tests use a fake.
type Device interface {
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// Stream is a live camera feed. It owns the underlying hardware tracks until
// Close releases them.
type Stream interface {
	// Frame returns the current video frame.
	Frame() (image.Image, error)
	// Bounds reports the actual stream dimensions.
	Bounds() image.Rectangle
	// Close stops all underlying tracks. Must be safe to call once.
	Close() error
}
