package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Type classifies a notification for rendering and routing.
type Type string

const (
	TypeCVAnalysis Type = "cv_analysis"
	TypeFileUpload Type = "file_upload"
	TypeSystem     Type = "system"
	TypeSuccess    Type = "success"
	TypeError      Type = "error"
	TypeWarning    Type = "warning"
	TypeInfo       Type = "info"
)

// Priority orders notifications for display emphasis.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Notification is a user-facing event. Ingress-sourced entries carry a
// webhook_ prefixed ID assigned by the ingress layer; locally created entries
// get a notification_ prefixed ID on first add.
type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      Type      `json:"type"`
	Priority  Priority  `json:"priority"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
	Candidate string    `json:"candidate,omitempty"`
	CanHide   bool      `json:"canHide,omitempty"`

	// Persistent entries survive restarts subject to the retention window.
	Persistent bool `json:"persistent,omitempty"`

	// AutoClose entries remove themselves after Duration elapses.
	AutoClose bool          `json:"autoClose,omitempty"`
	Duration  time.Duration `json:"duration,omitempty"`

	// OriginalMessage preserves the raw webhook message when the title and
	// message were derived from the candidate name.
	OriginalMessage string `json:"originalMessage,omitempty"`
}

// NewLocalID mints an identifier for a locally created notification.
func NewLocalID(now time.Time) string {
	return fmt.Sprintf("notification_%d_%s", now.UnixMilli(), randSuffix())
}

// NewIngressID mints an identifier for an ingress-sourced notification.
func NewIngressID(now time.Time) string {
	return fmt.Sprintf("webhook_%d_%s", now.UnixMilli(), randSuffix())
}

func randSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
}
