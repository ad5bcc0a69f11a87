package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/LeandroAbranti/sistema-de-abordagem/internal/access"
	"github.com/LeandroAbranti/sistema-de-abordagem/internal/checkpoint/models"
	dErrors "github.com/LeandroAbranti/sistema-de-abordagem/pkg/domain-errors"
	"github.com/LeandroAbranti/sistema-de-abordagem/pkg/platform/httputil"
	"github.com/LeandroAbranti/sistema-de-abordagem/pkg/requestcontext"
)

// Service defines the checkpoint operations exposed over HTTP.
type Service interface {
	Create(ctx context.Context, in models.CreateInput) (*models.Checkpoint, error)
	Close(ctx context.Context, id string) (*models.Checkpoint, error)
	Get(ctx context.Context, p access.Principal, id string) (*models.Checkpoint, error)
	List(ctx context.Context) ([]*models.Checkpoint, error)
	ListForParticipant(ctx context.Context, principalID string) ([]*models.Checkpoint, error)
	IsParticipant(ctx context.Context, principalID, id string) (bool, error)
}

type Handler struct {
	svc       Service
	adminOnly func(http.Handler) http.Handler
	logger    *slog.Logger
}

// New builds the handler. adminOnly guards the creation and close routes.
func New(svc Service, adminOnly func(http.Handler) http.Handler, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, adminOnly: adminOnly, logger: logger}
}

// Register mounts the routes on r, which must already authenticate requests.
func (h *Handler) Register(r chi.Router) {
	r.Route("/checkpoints", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.With(h.adminOnly).Post("/", h.handleCreate)
		r.Get("/{id}", h.handleGet)
		r.Get("/{id}/participation", h.handleParticipation)
		r.With(h.adminOnly).Post("/{id}/close", h.handleClose)
	})
}

type listResponse struct {
	Checkpoints []models.View `json:"checkpoints"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := access.FromContext(ctx)
	if !ok {
		httputil.WriteError(w, access.ErrUnauthenticated)
		return
	}

	var (
		all []*models.Checkpoint
		err error
	)
	if p.IsAdmin() {
		all, err = h.svc.List(ctx)
	} else {
		all, err = h.svc.ListForParticipant(ctx, p.ID)
	}
	if err != nil {
		h.fail(ctx, w, "list checkpoints", err)
		return
	}
	resp := listResponse{Checkpoints: make([]models.View, 0, len(all))}
	for _, c := range all {
		resp.Checkpoints = append(resp.Checkpoints, c.View())
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var in models.CreateInput
	if err := httputil.DecodeJSON(r, &in); err != nil {
		httputil.WriteError(w, err)
		return
	}
	c, err := h.svc.Create(ctx, in)
	if err != nil {
		h.fail(ctx, w, "create checkpoint", err)
		return
	}
	h.logger.InfoContext(ctx, "checkpoint created",
		"checkpoint_id", c.ID,
		"participants", len(c.Participants),
		"request_id", requestcontext.RequestID(ctx),
	)
	httputil.WriteJSON(w, http.StatusCreated, c.View())
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, _ := access.FromContext(ctx)
	c, err := h.svc.Get(ctx, p, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(ctx, w, "get checkpoint", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c.View())
}

func (h *Handler) handleParticipation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, _ := access.FromContext(ctx)
	ok, err := h.svc.IsParticipant(ctx, p.ID, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(ctx, w, "check participation", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"participant": ok})
}

func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c, err := h.svc.Close(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(ctx, w, "close checkpoint", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c.View())
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
