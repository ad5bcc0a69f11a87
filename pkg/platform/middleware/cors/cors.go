// Package cors enforces an exact-match origin allow-list. Requests without an
// Origin header (curl, mobile clients) pass untouched.
package cors

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"

	dErrors "github.com/LeandroAbranti/sistema-de-abordagem/pkg/domain-errors"
	audit "github.com/LeandroAbranti/sistema-de-abordagem/pkg/platform/audit"
	"github.com/LeandroAbranti/sistema-de-abordagem/pkg/platform/httputil"
	"github.com/LeandroAbranti/sistema-de-abordagem/pkg/requestcontext"
)

var ErrOriginNotAllowed = dErrors.New(dErrors.CodeForbidden, "origin not allowed")

var (
	allowedMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}
	allowedHeaders = []string{"Content-Type", "Authorization", "X-Requested-With", "X-Request-ID"}
)

const maxAge = 24 * 60 * 60

type SecurityAuditor interface {
	EmitSecurity(ctx context.Context, event audit.Event) error
}

type Metrics interface {
	IncCORSRejected()
}

type Config struct {
	AllowedOrigins []string
	Auditor        SecurityAuditor
	Metrics        Metrics
	Logger         *slog.Logger
}

// Middleware rejects cross-origin requests from unknown origins with 403 and
// records a cors_violation event. Preflights from allowed origins get 204.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	methods := strings.Join(allowedMethods, ", ")
	headers := strings.Join(allowedHeaders, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Add("Vary", "Origin")

			if !slices.Contains(cfg.AllowedOrigins, origin) {
				ctx := r.Context()
				logger.WarnContext(ctx, "cors violation",
					"origin", origin,
					"path", r.URL.Path,
					"request_id", requestcontext.RequestID(ctx),
				)
				if cfg.Metrics != nil {
					cfg.Metrics.IncCORSRejected()
				}
				if cfg.Auditor != nil {
					_ = cfg.Auditor.EmitSecurity(ctx, audit.Event{
						Kind:     audit.KindCORSViolation,
						Outcome:  audit.OutcomeDenied,
						Severity: audit.SeverityWarning,
						Resource: r.Method + " " + r.URL.Path,
						Reason:   "origin_not_allowed",
						Metadata: map[string]string{"origin": origin},
					})
				}
				httputil.WriteError(w, ErrOriginNotAllowed)
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Access-Control-Allow-Methods", methods)
				h.Set("Access-Control-Allow-Headers", headers)
				h.Set("Access-Control-Max-Age", strconv.Itoa(maxAge))
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
