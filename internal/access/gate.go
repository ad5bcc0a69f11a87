// Package access authenticates bearer credentials and authorizes principals
// by role and by membership in a resource's participant set. Every failure
// is written to the security audit stream; successes are not.
//
// Role checks use the claim embedded in the credential, not the live
// principal record, so a principal disabled after issuance stays authorized
// until the credential expires.
package access

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	jwttoken "github.com/LeandroAbranti/sistema-de-abordagem/internal/jwt_token"
	"github.com/LeandroAbranti/sistema-de-abordagem/internal/principal/models"
	dErrors "github.com/LeandroAbranti/sistema-de-abordagem/pkg/domain-errors"
	audit "github.com/LeandroAbranti/sistema-de-abordagem/pkg/platform/audit"
	"github.com/LeandroAbranti/sistema-de-abordagem/pkg/platform/httputil"
	"github.com/LeandroAbranti/sistema-de-abordagem/pkg/requestcontext"
)

var (
	ErrUnauthenticated   = dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	ErrInvalidCredential = dErrors.New(dErrors.CodeUnauthorized, "invalid or expired credential")
	ErrForbidden         = dErrors.New(dErrors.CodeForbidden, "insufficient privileges")
	ErrNotParticipant    = dErrors.New(dErrors.CodeForbidden, "not a participant of this checkpoint")
)

// Denial reasons recorded in the audit trail.
const (
	ReasonMissingToken = "missing_token"
	ReasonInvalidToken = "invalid_token"
	ReasonExpiredToken = "expired_token"
	ReasonRoleRequired = "role_required"
	ReasonNotMember    = "not_participant"
	ReasonNoPrincipal  = "no_principal"
	bearerPrefix       = "Bearer "
)

// Principal is the identity asserted by a verified credential.
type Principal struct {
	ID   string
	Role models.Role
}

func (p Principal) IsAdmin() bool { return p.Role == models.RoleAdmin }

// Resource is anything guarded by a participant set.
type Resource interface {
	ResourceID() string
	HasParticipant(principalID string) bool
}

type TokenVerifier interface {
	Verify(token string) (*jwttoken.Identity, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Metrics interface {
	IncAccessDenied(reason string)
}

type Gate struct {
	verifier TokenVerifier
	auditor  AuditPublisher
	metrics  Metrics
	logger   *slog.Logger
}

type Option func(*Gate)

func WithAuditPublisher(p AuditPublisher) Option {
	return func(g *Gate) {
		g.auditor = p
	}
}

func WithMetrics(m Metrics) Option {
	return func(g *Gate) {
		g.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

func New(verifier TokenVerifier, opts ...Option) (*Gate, error) {
	if verifier == nil {
		return nil, errors.New("token verifier is required")
	}
	g := &Gate{
		verifier: verifier,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Authenticate extracts and verifies the bearer credential.
func (g *Gate) Authenticate(r *http.Request) (Principal, error) {
	ctx := r.Context()
	resource := r.Method + " " + r.URL.Path

	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
	token = strings.TrimSpace(token)
	if !ok || token == "" {
		g.deny(ctx, audit.KindAuthFailed, "", resource, ReasonMissingToken)
		return Principal{}, ErrUnauthenticated
	}

	id, err := g.verifier.Verify(token)
	if err != nil {
		reason := ReasonInvalidToken
		if errors.Is(err, jwttoken.ErrExpiredToken) {
			reason = ReasonExpiredToken
		}
		g.deny(ctx, audit.KindAuthFailed, "", resource, reason)
		return Principal{}, ErrInvalidCredential
	}
	return Principal{ID: id.PrincipalID, Role: id.Role}, nil
}

// RequireRole checks the role claim. Administrators satisfy every role.
func (g *Gate) RequireRole(ctx context.Context, p Principal, role models.Role) error {
	if p.Role == role || p.IsAdmin() {
		return nil
	}
	g.deny(ctx, audit.KindAccessDenied, p.ID, "role:"+string(role), ReasonRoleRequired)
	return ErrForbidden
}

// RequireMembership checks that p is in the resource's participant set.
func (g *Gate) RequireMembership(ctx context.Context, p Principal, res Resource) error {
	if res.HasParticipant(p.ID) {
		return nil
	}
	g.deny(ctx, audit.KindAccessDenied, p.ID, res.ResourceID(), ReasonNotMember)
	return ErrNotParticipant
}

func (g *Gate) deny(ctx context.Context, kind audit.Kind, actor, resource, reason string) {
	if g.metrics != nil {
		g.metrics.IncAccessDenied(reason)
	}
	g.logger.WarnContext(ctx, "access denied",
		"actor", actor,
		"resource", resource,
		"reason", reason,
		"request_id", requestcontext.RequestID(ctx),
	)
	if g.auditor == nil {
		return
	}
	_ = g.auditor.Emit(ctx, audit.Event{
		Kind:     kind,
		Outcome:  audit.OutcomeDenied,
		Severity: audit.SeverityWarning,
		Actor:    actor,
		Resource: resource,
		Reason:   reason,
	})
}

// FromContext returns the principal placed in ctx by RequireAuth.
func FromContext(ctx context.Context) (Principal, bool) {
	id := requestcontext.PrincipalID(ctx)
	if id == "" {
		return Principal{}, false
	}
	return Principal{ID: id, Role: models.Role(requestcontext.Role(ctx))}, true
}

// RequireAuth rejects requests without a valid credential and stores the
// principal in the request context.
func (g *Gate) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := g.Authenticate(r)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		ctx := requestcontext.WithPrincipal(r.Context(), p.ID, string(p.Role))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin must run after RequireAuth.
func (g *Gate) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p, ok := FromContext(ctx)
		if !ok {
			g.deny(ctx, audit.KindAuthFailed, "", r.Method+" "+r.URL.Path, ReasonNoPrincipal)
			httputil.WriteError(w, ErrUnauthenticated)
			return
		}
		if err := g.RequireRole(ctx, p, models.RoleAdmin); err != nil {
			httputil.WriteError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}
