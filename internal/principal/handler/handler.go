// Package handler exposes login, token verification, logout, and the
// administrator's principal management over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/LeandroAbranti/sistema-de-abordagem/internal/access"
	"github.com/LeandroAbranti/sistema-de-abordagem/internal/principal/models"
	dErrors "github.com/LeandroAbranti/sistema-de-abordagem/pkg/domain-errors"
	"github.com/LeandroAbranti/sistema-de-abordagem/pkg/platform/httputil"
	"github.com/LeandroAbranti/sistema-de-abordagem/pkg/requestcontext"
)

type Service interface {
	Authenticate(ctx context.Context, id, secret string) (*models.Principal, error)
	Logout(ctx context.Context, principalID string)
	Create(ctx context.Context, in models.CreateInput) (*models.Principal, error)
	Get(ctx context.Context, id string) (*models.Principal, error)
	List(ctx context.Context) ([]*models.Principal, error)
	Disable(ctx context.Context, id string) error
}

type TokenIssuer interface {
	Issue(principalID string, role models.Role) (string, time.Time, error)
}

type Handler struct {
	svc    Service
	tokens TokenIssuer
	logger *slog.Logger
}

func New(svc Service, tokens TokenIssuer, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, tokens: tokens, logger: logger}
}

// RegisterAuth mounts /auth. loginLimit wraps the login route only;
// requireAuth guards verify and logout.
func (h *Handler) RegisterAuth(r chi.Router, loginLimit, requireAuth func(http.Handler) http.Handler) {
	r.Route("/auth", func(r chi.Router) {
		r.With(loginLimit).Post("/login", h.handleLogin)
		r.With(requireAuth).Get("/verify", h.handleVerify)
		r.With(requireAuth).Post("/logout", h.handleLogout)
	})
}

// RegisterAdmin mounts /principals on a router that already requires the
// administrator role.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Route("/principals", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleCreate)
		r.Get("/{id}", h.handleGet)
		r.Post("/{id}/disable", h.handleDisable)
	})
}

// loginRequest names the principal by identifier; id is still read for
// older clients.
type loginRequest struct {
	Identifier string `json:"identifier"`
	ID         string `json:"id"`
	Secret     string `json:"secret"`
}

func (r loginRequest) principalID() string {
	if id := strings.TrimSpace(r.Identifier); id != "" {
		return id
	}
	return strings.TrimSpace(r.ID)
}

type loginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	Principal models.View `json:"principal"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req loginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	id := req.principalID()
	if id == "" || req.Secret == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "identifier and secret are required"))
		return
	}

	p, err := h.svc.Authenticate(ctx, id, req.Secret)
	if err != nil {
		h.fail(ctx, w, "login", err)
		return
	}
	token, expiresAt, err := h.tokens.Issue(p.ID, p.Role)
	if err != nil {
		h.fail(ctx, w, "issue token", dErrors.Wrap(err, dErrors.CodeInternal, "issue token"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		Principal: p.View(),
	})
}

type verifyResponse struct {
	Valid     bool            `json:"valid"`
	Principal principalClaims `json:"principal"`
}

type principalClaims struct {
	ID   string      `json:"id"`
	Role models.Role `json:"role"`
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	p, ok := access.FromContext(r.Context())
	if !ok {
		httputil.WriteError(w, access.ErrUnauthenticated)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, verifyResponse{
		Valid:     true,
		Principal: principalClaims{ID: p.ID, Role: p.Role},
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := access.FromContext(ctx)
	if !ok {
		httputil.WriteError(w, access.ErrUnauthenticated)
		return
	}
	h.svc.Logout(ctx, p.ID)
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

type listResponse struct {
	Principals []models.View `json:"principals"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	all, err := h.svc.List(ctx)
	if err != nil {
		h.fail(ctx, w, "list principals", err)
		return
	}
	resp := listResponse{Principals: make([]models.View, 0, len(all))}
	for _, p := range all {
		resp.Principals = append(resp.Principals, p.View())
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
	p, err := h.svc.Create(ctx, in)
	if err != nil {
		h.fail(ctx, w, "create principal", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, p.View())
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := h.svc.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(ctx, w, "get principal", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p.View())
}

func (h *Handler) handleDisable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	if err := h.svc.Disable(ctx, id); err != nil {
		h.fail(ctx, w, "disable principal", err)
		return
	}
	h.logger.InfoContext(ctx, "principal disabled",
		"principal_id", id,
		"request_id", requestcontext.RequestID(ctx),
	)
	w.WriteHeader(http.StatusNoContent)
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
