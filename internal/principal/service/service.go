// Package service is the credential store: principal registration, lookup,
// soft disable, and secret verification at login.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/LeandroAbranti/sistema-de-abordagem/internal/principal/models"
	"github.com/LeandroAbranti/sistema-de-abordagem/internal/principal/secrets"
	dErrors "github.com/LeandroAbranti/sistema-de-abordagem/pkg/domain-errors"
	audit "github.com/LeandroAbranti/sistema-de-abordagem/pkg/platform/audit"
	"github.com/LeandroAbranti/sistema-de-abordagem/pkg/platform/middleware/metadata"
	"github.com/LeandroAbranti/sistema-de-abordagem/pkg/platform/sentinel"
	"github.com/LeandroAbranti/sistema-de-abordagem/pkg/requestcontext"
)

// ErrInvalidCredentials is the only login failure a caller ever sees.
var ErrInvalidCredentials = dErrors.New(dErrors.CodeUnauthorized, "invalid identifier or secret")

type Store interface {
	Create(ctx context.Context, p *models.Principal) error
	FindByID(ctx context.Context, id string) (*models.Principal, error)
	List(ctx context.Context) ([]*models.Principal, error)
	SetEnabled(ctx context.Context, id string, enabled bool) error
	Count(ctx context.Context) (int, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// LoginMetrics receives login outcome counters.
type LoginMetrics interface {
	IncLogin(outcome string)
}

type Service struct {
	store   Store
	hasher  *secrets.Hasher
	auditor AuditPublisher
	metrics LoginMetrics
	logger  *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) {
		s.auditor = p
	}
}

func WithMetrics(m LoginMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithHashCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func WithHashCost(cost int) Option {
	return func(s *Service) {
		s.hasher = secrets.NewHasher(cost)
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("principal store is required")
	}
	s := &Service{
		store:  store,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.hasher == nil {
		s.hasher = secrets.NewHasher(secrets.DefaultCost)
	}
	return s, nil
}

// Create registers a principal on behalf of an administrator.
func (s *Service) Create(ctx context.Context, in models.CreateInput) (*models.Principal, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.Name = strings.TrimSpace(in.Name)
	if in.Role == "" {
		in.Role = models.RoleStandard
	}
	switch {
	case !models.ValidID(in.ID):
		return nil, dErrors.New(dErrors.CodeValidation, "id must be 1-32 letters, digits, '.', '_' or '-'")
	case in.Name == "":
		return nil, dErrors.New(dErrors.CodeValidation, "name is required")
	case len(in.Secret) < 6:
		return nil, dErrors.New(dErrors.CodeValidation, "secret must have at least 6 characters")
	case !in.Role.Valid():
		return nil, dErrors.New(dErrors.CodeValidation, "role must be admin or standard")
	}

	hash, err := s.hasher.Hash(in.Secret)
	if err != nil {
		return nil, err
	}
	p := &models.Principal{
		ID:         in.ID,
		Name:       in.Name,
		SecretHash: hash,
		Role:       in.Role,
		Enabled:    true,
		CreatedAt:  requestcontext.Now(ctx),
	}
	if err := s.store.Create(ctx, p); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "a principal with this id already exists")
		}
		return nil, translateStoreErr(err, "create principal")
	}

	s.emit(ctx, audit.Event{
		Kind:     audit.KindAdminAction,
		Actor:    requestcontext.PrincipalID(ctx),
		Resource: "principal:" + p.ID,
		Reason:   "principal_created",
		Metadata: map[string]string{"role": string(p.Role)},
	})
	return p, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Principal, error) {
	p, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "principal not found")
		}
		return nil, translateStoreErr(err, "find principal")
	}
	return p, nil
}

func (s *Service) List(ctx context.Context) ([]*models.Principal, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, translateStoreErr(err, "list principals")
	}
	return all, nil
}

// Disable soft-deletes a principal. Tokens already issued stay valid until
// they expire.
func (s *Service) Disable(ctx context.Context, id string) error {
	actor := requestcontext.PrincipalID(ctx)
	if id == actor {
		return dErrors.New(dErrors.CodeValidation, "administrators cannot disable themselves")
	}
	if err := s.store.SetEnabled(ctx, id, false); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "principal not found")
		}
		return translateStoreErr(err, "disable principal")
	}
	s.emit(ctx, audit.Event{
		Kind:     audit.KindAdminAction,
		Actor:    actor,
		Resource: "principal:" + id,
		Reason:   "principal_disabled",
		Severity: audit.SeverityWarning,
	})
	return nil
}

// ResolveEnabled returns the ids from the list that do not name an existing,
// enabled principal.
func (s *Service) ResolveEnabled(ctx context.Context, ids []string) ([]string, error) {
	var unknown []string
	for _, id := range ids {
		p, err := s.store.FindByID(ctx, id)
		if errors.Is(err, sentinel.ErrNotFound) {
			unknown = append(unknown, id)
			continue
		}
		if err != nil {
			return nil, translateStoreErr(err, "resolve participants")
		}
		if !p.Enabled {
			unknown = append(unknown, id)
		}
	}
	return unknown, nil
}

// Authenticate verifies a login. Every failure returns ErrInvalidCredentials;
// the precise reason only reaches the audit trail.
func (s *Service) Authenticate(ctx context.Context, id, secret string) (*models.Principal, error) {
	id = strings.TrimSpace(id)
	p, err := s.store.FindByID(ctx, id)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		s.hasher.Burn(secret)
		s.loginFailed(ctx, id, models.ReasonNotFound)
		return nil, ErrInvalidCredentials
	case err != nil:
		return nil, translateStoreErr(err, "find principal")
	}

	if err := s.hasher.Verify(secret, p.SecretHash); err != nil {
		if !errors.Is(err, secrets.ErrMismatch) {
			s.logger.ErrorContext(ctx, "secret verification failed",
				"principal_id", id,
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		s.loginFailed(ctx, id, models.ReasonInvalidPassword)
		return nil, ErrInvalidCredentials
	}
	if !p.Enabled {
		s.loginFailed(ctx, id, models.ReasonDisabled)
		return nil, ErrInvalidCredentials
	}

	if s.metrics != nil {
		s.metrics.IncLogin(string(audit.OutcomeSuccess))
	}
	s.emit(ctx, audit.Event{
		Kind:     audit.KindLogin,
		Actor:    p.ID,
		Outcome:  audit.OutcomeSuccess,
		Metadata: loginMetadata(ctx, p.Role),
	})
	return p, nil
}

// Logout records the end of a session. Credentials are stateless, so the
// token stays valid until it expires; clients discard it.
func (s *Service) Logout(ctx context.Context, principalID string) {
	s.emit(ctx, audit.Event{
		Kind:     audit.KindLogout,
		Actor:    principalID,
		Metadata: loginMetadata(ctx, ""),
	})
}

func (s *Service) loginFailed(ctx context.Context, id, reason string) {
	if s.metrics != nil {
		s.metrics.IncLogin(string(audit.OutcomeFailure))
	}
	s.emit(ctx, audit.Event{
		Kind:     audit.KindAuthFailed,
		Actor:    id,
		Outcome:  audit.OutcomeFailure,
		Severity: audit.SeverityWarning,
		Reason:   reason,
		Metadata: loginMetadata(ctx, ""),
	})
}

func loginMetadata(ctx context.Context, role models.Role) map[string]string {
	md := map[string]string{}
	if device := metadata.DeviceSummary(requestcontext.UserAgent(ctx)); device != "" {
		md["device"] = device
	}
	if role != "" {
		md["role"] = string(role)
	}
	return md
}

// EnsureDefaultAdmin creates the bootstrap administrator when the store is
// empty. It is a no-op once any principal exists.
func (s *Service) EnsureDefaultAdmin(ctx context.Context, secret string) (bool, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		return false, fmt.Errorf("count principals: %w", err)
	}
	if n > 0 {
		return false, nil
	}
	_, err = s.Create(ctx, models.CreateInput{
		ID:     models.DefaultAdminID,
		Name:   "Administrador",
		Secret: secret,
		Role:   models.RoleAdmin,
	})
	if err != nil {
		return false, fmt.Errorf("create default admin: %w", err)
	}
	s.logger.InfoContext(ctx, "default administrator created", "principal_id", models.DefaultAdminID)
	return true, nil
}

type seedFile struct {
	Principals []models.CreateInput `yaml:"principals"`
}

// SeedFromFile registers every principal listed in a YAML file that does not
// exist yet. Entries with an empty id or secret are skipped.
func (s *Service) SeedFromFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read seed file: %w", err)
	}
	var sf seedFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return 0, fmt.Errorf("parse seed file: %w", err)
	}

	created := 0
	for _, in := range sf.Principals {
		if in.ID == "" || in.Secret == "" {
			continue
		}
		if _, err := s.store.FindByID(ctx, in.ID); err == nil {
			continue
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return created, translateStoreErr(err, "seed principal")
		}
		if _, err := s.Create(ctx, in); err != nil {
			return created, fmt.Errorf("seed principal %s: %w", in.ID, err)
		}
		created++
	}
	return created, nil
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed",
			"kind", event.Kind,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
}

// translateStoreErr keeps coded errors (maintenance, cancelled reads) and
// hides everything else behind an internal error.
func translateStoreErr(err error, op string) error {
	if dErrors.CodeOf(err) != dErrors.CodeInternal {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, op)
}
