package models

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the upload lifecycle state of a staged file. Transitions are
// strictly pending → uploading → success|error; success and error are
// terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusUploading Status = "uploading"
	StatusSuccess   Status = "success"
	StatusError     Status = "error"
)

// Terminal reports whether no further automatic transition occurs.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusError
}

// StagedFile is a file added to an upload session but not yet (or already)
// submitted. The payload is owned exclusively by the staging session until
// submission.
type StagedFile struct {
	ID      string
	Name    string
	MIME    string
	Size    int64
	Data    []byte
	Status  Status
	Error   string
	AddedAt time.Time

	// Preview is set for images only; the session releases it when the
	// entry is removed or the session is torn down.
	Preview *Preview
}

// NewStagedFile stages a payload with a fresh identity and pending status.
func NewStagedFile(name, mime string, data []byte, now time.Time) *StagedFile {
	return &StagedFile{
		ID:      uuid.NewString(),
		Name:    name,
		MIME:    mime,
		Size:    int64(len(data)),
		Data:    data,
		Status:  StatusPending,
		AddedAt: now,
	}
}

// IsImage reports whether the staged file is image-typed.
func (f *StagedFile) IsImage() bool {
	return strings.HasPrefix(f.MIME, "image/")
}

// Preview is a revocable reference to rendered thumbnail data. Release is
// safe to call more than once; the underlying resource is freed exactly
// once.
type Preview struct {
	Ref     string
	once    sync.Once
	release func()
}

// NewPreview wraps a preview reference with its release function.
func NewPreview(ref string, release func()) *Preview {
	return &Preview{Ref: ref, release: release}
}

// Release frees the preview resource.
func (p *Preview) Release() {
	p.once.Do(func() {
		if p.release != nil {
			p.release()
		}
	})
}
