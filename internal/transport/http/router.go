// Package httptransport assembles the HTTP surface: the middleware chain,
// the /api route tree, health and metrics.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	ratelimitmodels "github.com/LeandroAbranti/sistema-de-abordagem/internal/ratelimit/models"
	dErrors "github.com/LeandroAbranti/sistema-de-abordagem/pkg/domain-errors"
	"github.com/LeandroAbranti/sistema-de-abordagem/pkg/platform/httputil"
	"github.com/LeandroAbranti/sistema-de-abordagem/pkg/platform/middleware/cors"
	"github.com/LeandroAbranti/sistema-de-abordagem/pkg/platform/middleware/metadata"
	"github.com/LeandroAbranti/sistema-de-abordagem/pkg/platform/middleware/request"
	"github.com/LeandroAbranti/sistema-de-abordagem/pkg/platform/middleware/requesttime"
	"github.com/LeandroAbranti/sistema-de-abordagem/pkg/platform/middleware/secure"
)

// Registrar mounts a feature's routes.
type Registrar interface {
	Register(r chi.Router)
}

type PrincipalRoutes interface {
	RegisterAuth(r chi.Router, loginLimit, requireAuth func(http.Handler) http.Handler)
	RegisterAdmin(r chi.Router)
}

type Authenticator interface {
	RequireAuth(next http.Handler) http.Handler
	RequireAdmin(next http.Handler) http.Handler
}

type Limiter interface {
	Limit(policy ratelimitmodels.Policy) func(http.Handler) http.Handler
}

type HealthChecker interface {
	Health(ctx context.Context) error
	InMaintenance() bool
}

type MetricsHandler interface {
	Handler() http.Handler
	cors.Metrics
}

type Deps struct {
	Logger         *slog.Logger
	Now            func() time.Time
	AllowedOrigins []string
	HTTPSRedirect  bool
	Auditor        cors.SecurityAuditor
	Metrics        MetricsHandler

	Gate        Authenticator
	Limiter     Limiter
	Store       HealthChecker
	Principals  PrincipalRoutes
	Checkpoints Registrar
	Approaches  Registrar
	Backups     Registrar
	Audit       Registrar
}

var errRouteNotFound = dErrors.New(dErrors.CodeNotFound, "route not found")

// NewRouter wires every route behind the shared middleware chain. /api/health
// and /metrics are exempt from rate limiting and authentication.
func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = slog.New(slog.DiscardHandler)
	}
	corsCfg := cors.Config{
		AllowedOrigins: d.AllowedOrigins,
		Auditor:        d.Auditor,
		Logger:         d.Logger,
	}
	if d.Metrics != nil {
		corsCfg.Metrics = d.Metrics
	}

	r := chi.NewRouter()
	r.Use(request.Recovery(d.Logger))
	r.Use(secure.HTTPSRedirect(d.HTTPSRedirect))
	r.Use(request.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware(d.Now))
	r.Use(request.Logger(d.Logger))
	r.Use(secure.Headers)
	r.Use(cors.Middleware(corsCfg))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteError(w, errRouteNotFound)
	})
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", healthHandler(d.Store))

		r.Group(func(r chi.Router) {
			r.Use(d.Limiter.Limit(ratelimitmodels.APIPolicy))
			d.Principals.RegisterAuth(r, d.Limiter.Limit(ratelimitmodels.LoginPolicy), d.Gate.RequireAuth)

			r.Group(func(r chi.Router) {
				r.Use(d.Gate.RequireAuth)
				d.Checkpoints.Register(r)
				d.Approaches.Register(r)

				r.Route("/admin", func(r chi.Router) {
					r.Use(d.Gate.RequireAdmin)
					d.Principals.RegisterAdmin(r)
					d.Backups.Register(r)
					d.Audit.Register(r)
				})
			})
		})
	})
	return r
}

type healthResponse struct {
	Status      string    `json:"status"`
	Database    string    `json:"database"`
	Maintenance bool      `json:"maintenance"`
	Time        time.Time `json:"time"`
}

// healthHandler reports the records store. A store held for backup or
// restore is healthy but in maintenance; an unreachable one is a 503.
func healthHandler(store HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "OK", Database: "ok", Time: time.Now().UTC()}
		if store.InMaintenance() {
			resp.Status = "maintenance"
			resp.Maintenance = true
			httputil.WriteJSON(w, http.StatusOK, resp)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := store.Health(ctx); err != nil {
			resp.Status = "degraded"
			resp.Database = "unavailable"
			httputil.WriteJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, resp)
	}
}
