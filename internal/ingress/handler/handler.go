package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"cvintake/internal/ingress/mailbox"
	"cvintake/internal/notify/models"
	"cvintake/internal/platform/middleware"
	"cvintake/pkg/platform/httputil"
)

// Observer receives ingress traffic counts for metrics.
type Observer interface {
	IngressAccepted()
}

// Handler receives completion callbacks from the external analysis service
// and serves the retained list to pollers.
type Handler struct {
	logger   *slog.Logger
	mailbox  mailbox.Mailbox
	observer Observer
	now      func() time.Time
}

// New creates an ingress Handler. Observer may be nil.
func New(logger *slog.Logger, box mailbox.Mailbox, observer Observer) *Handler {
	return &Handler{
		logger:   logger,
		mailbox:  box,
		observer: observer,
		now:      time.Now,
	}
}

// Register mounts the ingress routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/webhook", h.handleReceive)
	r.Get("/api/webhook", h.handleList)
}

// completionPayload is what the analysis service posts back.
type completionPayload struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Candidate string `json:"candidate"`
}

func (h *Handler) handleReceive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	var payload completionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.logger.WarnContext(ctx, "invalid webhook payload",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"message": "Webhook processing failed",
		})
		return
	}

	// Payloads without the analysis shape are acknowledged but not retained,
	// matching how unknown webhook formats are treated.
	if payload.Status == "" || payload.Message == "" {
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": "Webhook received successfully",
		})
		return
	}

	n := h.normalize(payload)
	if err := h.mailbox.Append(ctx, n); err != nil {
		h.logger.ErrorContext(ctx, "failed to retain webhook notification",
			"request_id", requestID,
			"error", err.Error(),
		)
		httputil.WriteJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"message": "Webhook processing failed",
		})
		return
	}
	if h.observer != nil {
		h.observer.IngressAccepted()
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Webhook processed successfully",
		"notification": map[string]any{
			"title":     n.Title,
			"message":   n.Message,
			"type":      n.Type,
			"priority":  n.Priority,
			"candidate": n.Candidate,
		},
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	notifications, err := h.mailbox.List(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list ingress notifications",
			"request_id", middleware.GetRequestID(r.Context()),
			"error", err.Error(),
		)
		httputil.WriteJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"message": "Failed to list notifications",
		})
		return
	}
	if notifications == nil {
		notifications = []models.Notification{}
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"notifications": notifications,
	})
}

// normalize maps an analysis completion onto the notification shape. The
// status drives type and priority; candidate presence drives title/message.
func (h *Handler) normalize(p completionPayload) models.Notification {
	var typ models.Type
	var priority models.Priority
	switch p.Status {
	case "success":
		typ, priority = models.TypeCVAnalysis, models.PriorityMedium
	case "error":
		typ, priority = models.TypeError, models.PriorityHigh
	case "warning":
		typ, priority = models.TypeWarning, models.PriorityMedium
	default:
		typ, priority = models.TypeInfo, models.PriorityLow
	}

	now := h.now()
	title := "CV Analysis Update"
	message := p.Message
	if p.Candidate != "" {
		title = "CV Analysis: " + p.Candidate
		message = "Analysis completed for " + p.Candidate
	}

	return models.Notification{
		ID:              models.NewIngressID(now),
		Title:           title,
		Message:         message,
		Type:            typ,
		Priority:        priority,
		Timestamp:       now,
		Candidate:       p.Candidate,
		CanHide:         true,
		OriginalMessage: p.Message,
	}
}
