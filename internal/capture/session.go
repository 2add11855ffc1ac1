package capture

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"sync"
	"time"

	dErrors "cvintake/pkg/domain-errors"
)

// State tracks where the session is in its lifecycle.
type State string

const (
	StateIdle      State = "idle"
	StateStarting  State = "starting"
	StateLive      State = "live"
	StateCapturing State = "capturing"
)

// captureQuality is the JPEG quality for captured stills.
const captureQuality = 90

// Errors surfaced by session operations.
var (
	// ErrCaptureUnavailable means Capture was called while not live.
	ErrCaptureUnavailable = dErrors.New(dErrors.CodeInvalidState, "capture requires a live camera session")
)

// Photo is a still produced by Capture, shaped for staging.
type Photo struct {
	Name string
	MIME string
	Data []byte
}

// Session owns at most one live camera stream. Start claims the hardware,
// Capture grabs stills, Stop releases the tracks. Stop is idempotent and
// safe from any state, including after a failed start; the hardware is
// released exactly once per claim.
type Session struct {
	device Device
	now    func() time.Time

	mu     sync.Mutex
	state  State
	stream Stream
}

// NewSession creates an idle capture session over the given device.
func NewSession(device Device) *Session {
	return &Session{
		device: device,
		now:    time.Now,
		state:  StateIdle,
	}
}

// State reports the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start requests a rear-facing stream at the preferred resolution. A denied
// or unsupported device returns the session to idle with an error. Starting
// while a stream is live stops the previous stream first so the hardware is
// never claimed twice.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.stream != nil {
		s.releaseLocked()
	}
	s.state = StateStarting
	s.mu.Unlock()

	stream, err := s.device.Open(ctx, Constraints{
		Facing: FacingEnvironment,
		Width:  1920,
		Height: 1080,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = StateIdle
		return dErrors.Wrap(dErrors.CodeUnavailable, "unable to access camera", err)
	}
	// Stop may have raced the open; the granted stream must not outlive it.
	if s.state != StateStarting {
		_ = stream.Close()
		return dErrors.New(dErrors.CodeInvalidState, "camera session stopped while starting")
	}
	s.stream = stream
	s.state = StateLive
	return nil
}

// Capture grabs the current frame at the stream's actual dimensions and
// encodes it as a JPEG still named from the capture timestamp. Fails unless
// the session is live.
func (s *Session) Capture(ctx context.Context) (Photo, error) {
	s.mu.Lock()
	if s.state != StateLive || s.stream == nil {
		s.mu.Unlock()
		return Photo{}, ErrCaptureUnavailable
	}
	stream := s.stream
	s.state = StateCapturing
	s.mu.Unlock()

	frame, err := stream.Frame()

	s.mu.Lock()
	// Stop may have raced the frame read; only return to live if this
	// session still owns the stream.
	if s.stream == stream {
		s.state = StateLive
	}
	s.mu.Unlock()

	if err != nil {
		return Photo{}, fmt.Errorf("read camera frame: %w", err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: captureQuality}); err != nil {
		return Photo{}, fmt.Errorf("encode captured frame: %w", err)
	}

	timestamp := s.now().UTC().Format("2006-01-02T15-04-05.000Z")
	return Photo{
		Name: fmt.Sprintf("camera-capture-%s.jpg", timestamp),
		MIME: "image/jpeg",
		Data: buf.Bytes(),
	}, nil
}

// Stop releases the hardware stream. Idempotent: repeated calls, calls
// before Start, and calls after a failed start are all safe no-ops.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked()
	s.state = StateIdle
}

// releaseLocked closes the stream exactly once. Must be called while
// holding s.mu.
func (s *Session) releaseLocked() {
	if s.stream == nil {
		return
	}
	_ = s.stream.Close()
	s.stream = nil
}
