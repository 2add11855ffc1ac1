package handler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"cvintake/internal/intake"
	"cvintake/internal/platform/middleware"
	"cvintake/internal/webhook"
	dErrors "cvintake/pkg/domain-errors"
	"cvintake/pkg/platform/httputil"
)

// Forwarder submits validated files to the external analysis webhook.
type Forwarder interface {
	Forward(ctx context.Context, files []webhook.File) (*webhook.Result, error)
}

// Observer receives upload outcomes and forward durations for metrics.
type Observer interface {
	RecordUpload(outcome string)
	ObserveForward(start time.Time)
}

// Handler accepts multipart CV uploads, re-validates them server-side, and
// forwards them to the analysis webhook. Client-side validation is advisory
// only; the same allow-list and size policy are enforced here before
// anything leaves the service.
type Handler struct {
	logger    *slog.Logger
	validator *intake.Validator
	forwarder Forwarder
	observer  Observer
}

// New creates an upload Handler. Observer may be nil.
func New(logger *slog.Logger, validator *intake.Validator, forwarder Forwarder, observer Observer) *Handler {
	return &Handler{
		logger:    logger,
		validator: validator,
		forwarder: forwarder,
		observer:  observer,
	}
}

// Register mounts the upload route.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/upload", h.handleUpload)
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	// Bound the parse buffer, not the file size; size policy is checked
	// per file below so each rejection names its file.
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid multipart payload"))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	var files []webhook.File
	for _, headers := range r.MultipartForm.File {
		for _, header := range headers {
			mime := header.Header.Get("Content-Type")
			if err := h.validator.Validate(header.Filename, mime, header.Size); err != nil {
				h.logger.WarnContext(ctx, "rejected upload file",
					"request_id", requestID,
					"file_name", header.Filename,
					"error", err.Error(),
				)
				httputil.WriteError(w, err)
				return
			}

			part, err := header.Open()
			if err != nil {
				httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to read upload"))
				return
			}
			data, err := io.ReadAll(part)
			part.Close()
			if err != nil {
				httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to read upload"))
				return
			}

			files = append(files, webhook.File{
				ID:   uuid.NewString(),
				Name: header.Filename,
				MIME: mime,
				Size: header.Size,
				Data: data,
			})
		}
	}

	if len(files) == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "no file provided"))
		return
	}

	start := time.Now()
	result, err := h.forwarder.Forward(ctx, files)
	if h.observer != nil {
		h.observer.ObserveForward(start)
	}
	if err != nil {
		if h.observer != nil {
			h.observer.RecordUpload("error")
		}
		h.logger.ErrorContext(ctx, "webhook forward failed",
			"request_id", requestID,
			"file_count", len(files),
			"error", err.Error(),
		)
		httputil.WriteJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"message": "Webhook error: " + err.Error(),
		})
		return
	}
	if h.observer != nil {
		h.observer.RecordUpload("success")
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("Successfully uploaded %d file(s)", len(files)),
		"data":    result,
	})
}
