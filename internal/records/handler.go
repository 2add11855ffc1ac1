package records

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"cvintake/internal/platform/middleware"
	dErrors "cvintake/pkg/domain-errors"
	"cvintake/pkg/platform/httputil"
	"cvintake/pkg/platform/sentinel"
)

// Lister queries the record store.
type Lister interface {
	List(ctx context.Context, params SearchParams) (*Page, error)
}

// Handler serves the dashboard's record queries.
type Handler struct {
	logger *slog.Logger
	lister Lister
}

// NewHandler creates a records Handler.
func NewHandler(logger *slog.Logger, lister Lister) *Handler {
	return &Handler{logger: logger, lister: lister}
}

// Register mounts the records route.
func (h *Handler) Register(r chi.Router) {
	r.Get("/api/cv", h.handleList)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	params := SearchParams{
		Search:        q.Get("search"),
		SortBy:        SortField(q.Get("sortBy")),
		SortDirection: SortDirection(q.Get("sortDirection")),
		Page:          atoiOr(q.Get("page"), 1),
		PageSize:      atoiOr(q.Get("pageSize"), 10),
	}

	page, err := h.lister.List(ctx, params)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to fetch CV records",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		if errors.Is(err, sentinel.ErrUnavailable) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeUnavailable, "record store unavailable"))
			return
		}
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to fetch CV records"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, page)
}

func atoiOr(s string, fallback int) int {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return fallback
}
