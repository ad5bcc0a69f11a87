package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/LeandroAbranti/sistema-de-abordagem/internal/access"
	"github.com/LeandroAbranti/sistema-de-abordagem/internal/approach/models"
	checkpointmodels "github.com/LeandroAbranti/sistema-de-abordagem/internal/checkpoint/models"
	dErrors "github.com/LeandroAbranti/sistema-de-abordagem/pkg/domain-errors"
	"github.com/LeandroAbranti/sistema-de-abordagem/pkg/platform/httputil"
	"github.com/LeandroAbranti/sistema-de-abordagem/pkg/requestcontext"
)

type Service interface {
	Record(ctx context.Context, p access.Principal, in models.RecordInput) (*models.Approach, error)
	Get(ctx context.Context, p access.Principal, id string) (*models.Approach, error)
	ListByCheckpoint(ctx context.Context, p access.Principal, checkpointID string) (*checkpointmodels.Checkpoint, []*models.Approach, error)
	ListMine(ctx context.Context, principalID string) ([]*models.Approach, error)
}

type Handler struct {
	svc    Service
	logger *slog.Logger
}

func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Register mounts the routes on r, which must already authenticate requests.
func (h *Handler) Register(r chi.Router) {
	r.Route("/approaches", func(r chi.Router) {
		r.Post("/", h.handleRecord)
		r.Get("/mine", h.handleListMine)
		r.Get("/checkpoint/{checkpointID}", h.handleListByCheckpoint)
		r.Get("/{id}", h.handleGet)
	})
}

type listResponse struct {
	Checkpoint *checkpointmodels.View `json:"checkpoint,omitempty"`
	Approaches []*models.Approach     `json:"approaches"`
	Total      int                    `json:"total"`
}

func (h *Handler) handleRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, _ := access.FromContext(ctx)
	var in models.RecordInput
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.WriteError(w, err)
		return
	}
	a, err := h.svc.Record(ctx, p, in)
	if err != nil {
		h.fail(ctx, w, "record approach", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, a)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, _ := access.FromContext(ctx)
	a, err := h.svc.Get(ctx, p, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(ctx, w, "get approach", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, a)
}

func (h *Handler) handleListByCheckpoint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, _ := access.FromContext(ctx)
	c, all, err := h.svc.ListByCheckpoint(ctx, p, chi.URLParam(r, "checkpointID"))
	if err != nil {
		h.fail(ctx, w, "list approaches", err)
		return
	}
	view := c.View()
	httputil.WriteJSON(w, http.StatusOK, listResponse{Checkpoint: &view, Approaches: nonNil(all), Total: len(all)})
}

func (h *Handler) handleListMine(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, _ := access.FromContext(ctx)
	all, err := h.svc.ListMine(ctx, p.ID)
	if err != nil {
		h.fail(ctx, w, "list own approaches", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{Approaches: nonNil(all), Total: len(all)})
}

func nonNil(all []*models.Approach) []*models.Approach {
	if all == nil {
		return []*models.Approach{}
	}
	return all
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, op string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, op+" failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	httputil.WriteError(w, err)
}
