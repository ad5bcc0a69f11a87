// Package middleware applies rate limit policies to HTTP routes, keyed by
// client IP. A failing shared store trips a circuit breaker and checks are
// served from process memory until it recovers.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/LeandroAbranti/sistema-de-abordagem/internal/ratelimit/models"
	"github.com/LeandroAbranti/sistema-de-abordagem/internal/ratelimit/store/bucket"
	audit "github.com/LeandroAbranti/sistema-de-abordagem/pkg/platform/audit"
	"github.com/LeandroAbranti/sistema-de-abordagem/pkg/platform/circuit"
	"github.com/LeandroAbranti/sistema-de-abordagem/pkg/platform/httputil"
	"github.com/LeandroAbranti/sistema-de-abordagem/pkg/platform/privacy"
	"github.com/LeandroAbranti/sistema-de-abordagem/pkg/requestcontext"
)

// HeaderStatus is set to "degraded" while the fallback store answers.
const HeaderStatus = "X-RateLimit-Status"

type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error)
}

type SecurityAuditor interface {
	EmitSecurity(ctx context.Context, event audit.Event) error
}

type Metrics interface {
	IncRateLimited(policy string)
	IncRateLimitFallback()
}

type Middleware struct {
	store    Store
	fallback Store
	breaker  *circuit.Breaker
	auditor  SecurityAuditor
	metrics  Metrics
	logger   *slog.Logger
	disabled bool
}

type Option func(*Middleware)

// WithDisabled turns every policy into a pass-through.
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

// WithFallback sets the store used while the breaker is open.
func WithFallback(s Store) Option {
	return func(m *Middleware) {
		m.fallback = s
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(m *Middleware) {
		m.breaker = b
	}
}

func WithAuditor(a SecurityAuditor) Option {
	return func(m *Middleware) {
		m.auditor = a
	}
}

func WithMetrics(mt Metrics) Option {
	return func(m *Middleware) {
		m.metrics = mt
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Middleware) {
		m.logger = logger
	}
}

func New(store Store, opts ...Option) *Middleware {
	m := &Middleware{
		store:  store,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.fallback == nil {
		m.fallback = bucket.NewInMemoryBucketStore()
	}
	if m.breaker == nil {
		m.breaker = circuit.New("ratelimit")
	}
	if m.disabled {
		m.logger.Info("rate limiting disabled")
	}
	return m
}

// Limit enforces policy per client IP. Store errors never block traffic:
// the fallback answers instead, and if that fails too the request passes.
func (m *Middleware) Limit(policy models.Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			ip := requestcontext.ClientIP(ctx)
			result, degraded, err := m.check(ctx, policy.Key(ip), policy)
			if err != nil {
				m.logger.ErrorContext(ctx, "rate limit check failed",
					"policy", policy.Name,
					"ip_prefix", privacy.AnonymizeIP(ip),
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				next.ServeHTTP(w, r)
				return
			}

			addRateLimitHeaders(w, result)
			if degraded {
				w.Header().Set(HeaderStatus, "degraded")
			}
			if !result.Allowed {
				m.rejected(ctx, r, policy, ip, result)
				writeRateLimitExceeded(w, policy, result)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m *Middleware) check(ctx context.Context, key string, policy models.Policy) (*models.Result, bool, error) {
	if !m.breaker.Allow() {
		return m.fromFallback(ctx, key, policy)
	}
	result, err := m.store.Allow(ctx, key, policy.Limit, policy.Window)
	if err != nil {
		if _, change := m.breaker.RecordFailure(); change.Opened {
			m.logger.WarnContext(ctx, "rate limit store unavailable, using in-memory fallback", "error", err)
		}
		return m.fromFallback(ctx, key, policy)
	}
	if usePrimary, change := m.breaker.RecordSuccess(); change.Closed {
		m.logger.InfoContext(ctx, "rate limit store recovered")
	} else if !usePrimary {
		// probe succeeded but the breaker is still half-open; the fallback
		// keeps counting so the two stores do not drift apart
		_, _, _ = m.fromFallback(ctx, key, policy)
	}
	return result, false, nil
}

func (m *Middleware) fromFallback(ctx context.Context, key string, policy models.Policy) (*models.Result, bool, error) {
	if m.metrics != nil {
		m.metrics.IncRateLimitFallback()
	}
	result, err := m.fallback.Allow(ctx, key, policy.Limit, policy.Window)
	return result, true, err
}

func (m *Middleware) rejected(ctx context.Context, r *http.Request, policy models.Policy, ip string, result *models.Result) {
	if m.metrics != nil {
		m.metrics.IncRateLimited(policy.Name)
	}
	m.logger.WarnContext(ctx, "rate limit exceeded",
		"policy", policy.Name,
		"ip_prefix", privacy.AnonymizeIP(ip),
		"path", r.URL.Path,
		"request_id", requestcontext.RequestID(ctx),
	)
	if m.auditor == nil {
		return
	}
	err := m.auditor.EmitSecurity(ctx, audit.Event{
		Kind:     audit.KindRateLimit,
		Outcome:  audit.OutcomeDenied,
		Severity: audit.SeverityWarning,
		Resource: r.Method + " " + r.URL.Path,
		Reason:   policy.Name,
		Metadata: map[string]string{
			"limit":       strconv.Itoa(policy.Limit),
			"window":      policy.Window.String(),
			"retry_after": strconv.Itoa(result.RetryAfter),
		},
	})
	if err != nil {
		m.logger.WarnContext(ctx, "audit emit failed", "kind", audit.KindRateLimit, "error", err)
	}
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, policy models.Policy, result *models.Result) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	msg := "Too many requests from this IP address. Please try again later."
	if policy.Name == models.LoginPolicy.Name {
		msg = "Too many login attempts. Please try again later."
	}
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.ExceededResponse{
		Error:      "rate_limit_exceeded",
		Message:    msg,
		RetryAfter: result.RetryAfter,
	})
}
