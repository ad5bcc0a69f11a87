// Package service records vehicle approaches against checkpoints. Recording is
// the participant-scoped mutation: it only succeeds on an active checkpoint
// the caller participates in.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/LeandroAbranti/sistema-de-abordagem/internal/access"
	"github.com/LeandroAbranti/sistema-de-abordagem/internal/approach/models"
	checkpointmodels "github.com/LeandroAbranti/sistema-de-abordagem/internal/checkpoint/models"
	dErrors "github.com/LeandroAbranti/sistema-de-abordagem/pkg/domain-errors"
	"github.com/LeandroAbranti/sistema-de-abordagem/pkg/platform/sentinel"
	"github.com/LeandroAbranti/sistema-de-abordagem/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, a *models.Approach) error
	FindByID(ctx context.Context, id string) (*models.Approach, error)
	ListByCheckpoint(ctx context.Context, checkpointID string) ([]*models.Approach, error)
	ListByRecorder(ctx context.Context, principalID string) ([]*models.Approach, error)
}

// Checkpoints is the subset of the checkpoint service used here.
type Checkpoints interface {
	AssertWritable(ctx context.Context, p access.Principal, id string) (*checkpointmodels.Checkpoint, error)
	Get(ctx context.Context, p access.Principal, id string) (*checkpointmodels.Checkpoint, error)
}

type Service struct {
	store       Store
	checkpoints Checkpoints
	logger      *slog.Logger
	newID       func() string
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		s.newID = fn
	}
}

func New(store Store, checkpoints Checkpoints, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("approach store is required")
	}
	if checkpoints == nil {
		return nil, errors.New("checkpoint service is required")
	}
	s := &Service{
		store:       store,
		checkpoints: checkpoints,
		logger:      slog.New(slog.DiscardHandler),
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Record validates the input, checks the checkpoint accepts writes from p,
// and stores the approach.
func (s *Service) Record(ctx context.Context, p access.Principal, in models.RecordInput) (*models.Approach, error) {
	in, err := in.Normalize()
	if err != nil {
		return nil, err
	}
	if _, err := s.checkpoints.AssertWritable(ctx, p, in.CheckpointID); err != nil {
		return nil, err
	}

	a := &models.Approach{
		ID:             s.newID(),
		CheckpointID:   in.CheckpointID,
		RecordedBy:     p.ID,
		Plate:          in.Plate,
		CPF:            in.CPF,
		CNH:            in.CNH,
		Breathalyzer:   in.Breathalyzer,
		VehicleRemoved: in.VehicleRemoved,
		Citation:       in.Citation,
		Articles:       in.Articles,
		Observations:   in.Observations,
		CreatedAt:      requestcontext.Now(ctx),
	}
	if err := s.store.Create(ctx, a); err != nil {
		return nil, translateCreateErr(err)
	}
	s.logger.InfoContext(ctx, "approach recorded",
		"approach_id", a.ID,
		"checkpoint_id", a.CheckpointID,
		"principal_id", p.ID,
		"request_id", requestcontext.RequestID(ctx),
	)
	return a, nil
}

// Get returns one approach if p may read its checkpoint.
func (s *Service) Get(ctx context.Context, p access.Principal, id string) (*models.Approach, error) {
	a, err := s.store.FindByID(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, translateStoreErr(err, "find approach")
	}
	if _, err := s.checkpoints.Get(ctx, p, a.CheckpointID); err != nil {
		return nil, err
	}
	return a, nil
}

// ListByCheckpoint returns the checkpoint together with its approaches.
func (s *Service) ListByCheckpoint(ctx context.Context, p access.Principal, checkpointID string) (*checkpointmodels.Checkpoint, []*models.Approach, error) {
	c, err := s.checkpoints.Get(ctx, p, checkpointID)
	if err != nil {
		return nil, nil, err
	}
	all, err := s.store.ListByCheckpoint(ctx, checkpointID)
	if err != nil {
		return nil, nil, translateStoreErr(err, "list approaches")
	}
	return c, all, nil
}

// ListMine returns the approaches recorded by principalID.
func (s *Service) ListMine(ctx context.Context, principalID string) ([]*models.Approach, error) {
	all, err := s.store.ListByRecorder(ctx, principalID)
	if err != nil {
		return nil, translateStoreErr(err, "list approaches")
	}
	return all, nil
}

// translateCreateErr maps the store's own guard, which re-checks the
// checkpoint inside the insert transaction, onto the errors AssertWritable
// returns.
func translateCreateErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrInvalidState):
		return checkpointmodels.ErrResourceClosed
	case errors.Is(err, sentinel.ErrNotMember):
		return access.ErrNotParticipant
	case errors.Is(err, sentinel.ErrNotFound):
		return checkpointmodels.ErrNotFound
	}
	return translateStoreErr(err, "record approach")
}

func translateStoreErr(err error, op string) error {
	if dErrors.CodeOf(err) != dErrors.CodeInternal {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, op)
}
