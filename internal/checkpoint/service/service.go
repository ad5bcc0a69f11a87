// Package service implements the checkpoint lifecycle: creation with a
// validated, frozen participant set, a single irreversible close, and the
// write guard every participant-scoped mutation goes through.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/LeandroAbranti/sistema-de-abordagem/internal/access"
	"github.com/LeandroAbranti/sistema-de-abordagem/internal/checkpoint/models"
	principalmodels "github.com/LeandroAbranti/sistema-de-abordagem/internal/principal/models"
	dErrors "github.com/LeandroAbranti/sistema-de-abordagem/pkg/domain-errors"
	audit "github.com/LeandroAbranti/sistema-de-abordagem/pkg/platform/audit"
	"github.com/LeandroAbranti/sistema-de-abordagem/pkg/platform/sentinel"
	platformstrings "github.com/LeandroAbranti/sistema-de-abordagem/pkg/platform/strings"
	"github.com/LeandroAbranti/sistema-de-abordagem/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, c *models.Checkpoint) error
	Close(ctx context.Context, id, actor string, at time.Time) error
	FindByID(ctx context.Context, id string) (*models.Checkpoint, error)
	List(ctx context.Context) ([]*models.Checkpoint, error)
	ListActiveForParticipant(ctx context.Context, principalID string) ([]*models.Checkpoint, error)
}

// ParticipantResolver returns the ids that do not name an enabled principal.
type ParticipantResolver interface {
	ResolveEnabled(ctx context.Context, ids []string) ([]string, error)
}

// MembershipChecker is satisfied by *access.Gate.
type MembershipChecker interface {
	RequireMembership(ctx context.Context, p access.Principal, res access.Resource) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	store     Store
	resolver  ParticipantResolver
	gate      MembershipChecker
	auditor   AuditPublisher
	logger    *slog.Logger
	newID     func() string
	maxPeople int
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

// WithIDGenerator replaces the random checkpoint id source.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		s.newID = fn
	}
}

func New(store Store, resolver ParticipantResolver, gate MembershipChecker, opts ...Option) (*Service, error) {
	switch {
	case store == nil:
		return nil, errors.New("checkpoint store is required")
	case resolver == nil:
		return nil, errors.New("participant resolver is required")
	case gate == nil:
		return nil, errors.New("membership checker is required")
	}
	s := &Service{
		store:     store,
		resolver:  resolver,
		gate:      gate,
		logger:    slog.New(slog.DiscardHandler),
		newID:     uuid.NewString,
		maxPeople: 50,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Create registers a checkpoint. Every participant must resolve to an
// enabled principal; the set cannot change afterwards.
func (s *Service) Create(ctx context.Context, in models.CreateInput) (*models.Checkpoint, error) {
	in.Location = strings.TrimSpace(in.Location)
	participants := platformstrings.SortedSet(in.Participants)
	switch {
	case in.Location == "":
		return nil, dErrors.New(dErrors.CodeValidation, "location is required")
	case len(in.Location) > 200:
		return nil, dErrors.New(dErrors.CodeValidation, "location must have at most 200 characters")
	case in.ScheduledAt.IsZero():
		return nil, dErrors.New(dErrors.CodeValidation, "scheduled_at is required")
	case len(participants) == 0:
		return nil, dErrors.New(dErrors.CodeValidation, "at least one participant is required")
	case len(participants) > s.maxPeople:
		return nil, dErrors.New(dErrors.CodeValidation, "too many participants")
	}
	for _, id := range participants {
		if !principalmodels.ValidID(id) {
			return nil, models.UnknownParticipants([]string{id})
		}
	}

	unknown, err := s.resolver.ResolveEnabled(ctx, participants)
	if err != nil {
		return nil, err
	}
	if len(unknown) > 0 {
		return nil, models.UnknownParticipants(unknown)
	}

	c := &models.Checkpoint{
		ID:           s.newID(),
		Location:     in.Location,
		ScheduledAt:  in.ScheduledAt.UTC(),
		Participants: participants,
		Status:       models.StatusActive,
		CreatedBy:    requestcontext.PrincipalID(ctx),
		CreatedAt:    requestcontext.Now(ctx),
	}
	if err := s.store.Create(ctx, c); err != nil {
		return nil, translateStoreErr(err, "create checkpoint")
	}
	s.emit(ctx, audit.Event{
		Kind:     audit.KindAdminAction,
		Actor:    c.CreatedBy,
		Resource: c.ResourceID(),
		Reason:   "checkpoint_created",
		Metadata: map[string]string{"participants": strings.Join(participants, ",")},
	})
	return c, nil
}

// Close performs the single Active to Closed transition. A second call fails
// with ErrAlreadyClosed and leaves the recorded closure untouched.
func (s *Service) Close(ctx context.Context, id string) (*models.Checkpoint, error) {
	actor := requestcontext.PrincipalID(ctx)
	err := s.store.Close(ctx, id, actor, requestcontext.Now(ctx))
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return nil, models.ErrNotFound
	case errors.Is(err, sentinel.ErrInvalidState):
		s.emit(ctx, audit.Event{
			Kind:     audit.KindLifecycle,
			Actor:    actor,
			Outcome:  audit.OutcomeDenied,
			Severity: audit.SeverityWarning,
			Resource: "checkpoint:" + id,
			Reason:   "already_closed",
		})
		return nil, models.ErrAlreadyClosed
	case err != nil:
		return nil, translateStoreErr(err, "close checkpoint")
	}

	s.emit(ctx, audit.Event{
		Kind:     audit.KindAdminAction,
		Actor:    actor,
		Resource: "checkpoint:" + id,
		Reason:   "checkpoint_closed",
	})
	return s.find(ctx, id)
}

// Get returns a checkpoint. Standard principals must be participants;
// administrators may read any checkpoint.
func (s *Service) Get(ctx context.Context, p access.Principal, id string) (*models.Checkpoint, error) {
	c, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.IsAdmin() {
		return c, nil
	}
	if err := s.gate.RequireMembership(ctx, p, c); err != nil {
		return nil, err
	}
	return c, nil
}

// IsParticipant reports membership without auditing a denial.
func (s *Service) IsParticipant(ctx context.Context, principalID, id string) (bool, error) {
	c, err := s.find(ctx, id)
	if err != nil {
		return false, err
	}
	return c.HasParticipant(principalID), nil
}

func (s *Service) List(ctx context.Context) ([]*models.Checkpoint, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, translateStoreErr(err, "list checkpoints")
	}
	return all, nil
}

// ListForParticipant returns the active checkpoints principalID belongs to.
func (s *Service) ListForParticipant(ctx context.Context, principalID string) ([]*models.Checkpoint, error) {
	all, err := s.store.ListActiveForParticipant(ctx, principalID)
	if err != nil {
		return nil, translateStoreErr(err, "list checkpoints")
	}
	return all, nil
}

// AssertWritable loads the checkpoint and checks that it accepts a mutation
// from p. Status is checked first, so a closed checkpoint reports
// ErrResourceClosed to members and non-members alike. Administrators get no
// bypass here.
func (s *Service) AssertWritable(ctx context.Context, p access.Principal, id string) (*models.Checkpoint, error) {
	c, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.IsClosed() {
		s.emit(ctx, audit.Event{
			Kind:     audit.KindLifecycle,
			Actor:    p.ID,
			Outcome:  audit.OutcomeDenied,
			Severity: audit.SeverityWarning,
			Resource: c.ResourceID(),
			Reason:   "resource_closed",
		})
		return nil, models.ErrResourceClosed
	}
	if err := s.gate.RequireMembership(ctx, p, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) find(ctx context.Context, id string) (*models.Checkpoint, error) {
	c, err := s.store.FindByID(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, translateStoreErr(err, "find checkpoint")
	}
	return c, nil
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

func translateStoreErr(err error, op string) error {
	if dErrors.CodeOf(err) != dErrors.CodeInternal {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, op)
}
