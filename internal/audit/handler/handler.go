// Package handler serves the administrator's read-only view of the audit
// trail.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	dErrors "github.com/LeandroAbranti/sistema-de-abordagem/pkg/domain-errors"
	audit "github.com/LeandroAbranti/sistema-de-abordagem/pkg/platform/audit"
	"github.com/LeandroAbranti/sistema-de-abordagem/pkg/platform/httputil"
	"github.com/LeandroAbranti/sistema-de-abordagem/pkg/requestcontext"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

type Querier interface {
	Query(ctx context.Context, filter audit.Filter) ([]audit.Event, error)
}

type Handler struct {
	events Querier
	logger *slog.Logger
}

func New(events Querier, logger *slog.Logger) *Handler {
	return &Handler{events: events, logger: logger}
}

// Register mounts GET /audit on a router that already requires the
// administrator role.
func (h *Handler) Register(r chi.Router) {
	r.Get("/audit", h.handleQuery)
}

type queryResponse struct {
	Events []audit.Event `json:"events"`
	Total  int           `json:"total"`
}

func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	filter := audit.Filter{
		Category: audit.EventCategory(q.Get("category")),
		Kind:     audit.Kind(q.Get("kind")),
		Actor:    q.Get("actor"),
		Limit:    defaultLimit,
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxLimit {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "limit must be between 1 and 1000"))
			return
		}
		filter.Limit = n
	}

	events, err := h.events.Query(ctx, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "audit query failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "query audit trail"))
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	httputil.WriteJSON(w, http.StatusOK, queryResponse{Events: events, Total: len(events)})
}
