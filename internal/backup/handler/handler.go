package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/LeandroAbranti/sistema-de-abordagem/internal/backup"
	"github.com/LeandroAbranti/sistema-de-abordagem/pkg/platform/httputil"
	"github.com/LeandroAbranti/sistema-de-abordagem/pkg/requestcontext"
)

type Manager interface {
	CreateBackup(ctx context.Context, reason string) (backup.SnapshotRef, error)
	ListBackups(ctx context.Context) ([]backup.SnapshotRef, error)
	PruneRetention(ctx context.Context, keep int) ([]string, error)
	RestoreBackup(ctx context.Context, name string) (backup.SnapshotRef, error)
	Retention() int
}

type Handler struct {
	manager Manager
	logger  *slog.Logger
}

func New(manager Manager, logger *slog.Logger) *Handler {
	return &Handler{manager: manager, logger: logger}
}

// Register mounts the backup routes. r must already require an administrator.
func (h *Handler) Register(r chi.Router) {
	r.Route("/backups", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Post("/{name}/restore", h.handleRestore)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	refs, err := h.manager.ListBackups(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"backups":   refs,
		"retention": h.manager.Retention(),
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ref, err := h.manager.CreateBackup(ctx, "manual")
	if err != nil {
		h.logger.ErrorContext(ctx, "manual backup failed", "error", err, "request_id", requestcontext.RequestID(ctx))
		httputil.WriteError(w, err)
		return
	}
	removed, err := h.manager.PruneRetention(ctx, h.manager.Retention())
	if err != nil {
		h.logger.WarnContext(ctx, "pruning after manual backup incomplete", "error", err)
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]any{
		"backup": ref,
		"pruned": len(removed),
	})
}

func (h *Handler) handleRestore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "name")
	safety, err := h.manager.RestoreBackup(ctx, name)
	if err != nil {
		h.logger.ErrorContext(ctx, "restore failed",
			"snapshot", name,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"restored":        name,
		"safety_snapshot": safety.Name,
	})
}
