package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store,Checkpoints

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/LeandroAbranti/sistema-de-abordagem/internal/access"
	"github.com/LeandroAbranti/sistema-de-abordagem/internal/approach/models"
	"github.com/LeandroAbranti/sistema-de-abordagem/internal/approach/service/mocks"
	checkpointmodels "github.com/LeandroAbranti/sistema-de-abordagem/internal/checkpoint/models"
	"github.com/LeandroAbranti/sistema-de-abordagem/internal/platform/sqlite"
	principalmodels "github.com/LeandroAbranti/sistema-de-abordagem/internal/principal/models"
	dErrors "github.com/LeandroAbranti/sistema-de-abordagem/pkg/domain-errors"
	"github.com/LeandroAbranti/sistema-de-abordagem/pkg/platform/sentinel"
	"github.com/LeandroAbranti/sistema-de-abordagem/pkg/requestcontext"
)

var agent = access.Principal{ID: "310", Role: principalmodels.RoleStandard}

type ServiceSuite struct {
	suite.Suite
	ctrl        *gomock.Controller
	store       *mocks.MockStore
	checkpoints *mocks.MockCheckpoints
	service     *Service
	ctx         context.Context
	now         time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = mocks.NewMockStore(s.ctrl)
	s.checkpoints = mocks.NewMockCheckpoints(s.ctrl)
	s.now = time.Date(2024, 9, 1, 23, 40, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	svc, err := New(s.store, s.checkpoints, WithIDGenerator(func() string { return "a-1" }))
	s.Require().NoError(err)
	s.service = svc
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceSuite) input() models.RecordInput {
	return models.RecordInput{CheckpointID: "cp-1", Plate: "abc1d23", CNH: "123 456 789 01"}
}

func (s *ServiceSuite) TestRecord() {
	s.Run("writable checkpoint stores normalized approach", func() {
		s.checkpoints.EXPECT().AssertWritable(gomock.Any(), agent, "cp-1").Return(&checkpointmodels.Checkpoint{ID: "cp-1"}, nil)
		s.store.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, a *models.Approach) error {
				s.Equal("a-1", a.ID)
				s.Equal("310", a.RecordedBy)
				s.Equal("ABC1D23", a.Plate)
				s.Equal("12345678901", a.CNH)
				s.Equal(s.now, a.CreatedAt)
				return nil
			})

		a, err := s.service.Record(s.ctx, agent, s.input())
		s.Require().NoError(err)
		s.Equal("cp-1", a.CheckpointID)
	})

	s.Run("invalid input never reaches the checkpoint guard", func() {
		in := s.input()
		in.Plate = "123"
		_, err := s.service.Record(s.ctx, agent, in)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("closed checkpoint is a lifecycle violation", func() {
		s.checkpoints.EXPECT().AssertWritable(gomock.Any(), agent, "cp-1").Return(nil, checkpointmodels.ErrResourceClosed)
		_, err := s.service.Record(s.ctx, agent, s.input())
		s.ErrorIs(err, checkpointmodels.ErrResourceClosed)
	})

	s.Run("non participant is forbidden", func() {
		s.checkpoints.EXPECT().AssertWritable(gomock.Any(), agent, "cp-1").Return(nil, access.ErrNotParticipant)
		_, err := s.service.Record(s.ctx, agent, s.input())
		s.ErrorIs(err, access.ErrNotParticipant)
	})

	s.Run("store guard catches a close that landed after the check", func() {
		s.checkpoints.EXPECT().AssertWritable(gomock.Any(), agent, "cp-1").Return(&checkpointmodels.Checkpoint{ID: "cp-1"}, nil)
		s.store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(sentinel.ErrInvalidState)
		_, err := s.service.Record(s.ctx, agent, s.input())
		s.ErrorIs(err, checkpointmodels.ErrResourceClosed)
	})

	s.Run("store guard catches a recorder outside the participant set", func() {
		s.checkpoints.EXPECT().AssertWritable(gomock.Any(), agent, "cp-1").Return(&checkpointmodels.Checkpoint{ID: "cp-1"}, nil)
		s.store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(sentinel.ErrNotMember)
		_, err := s.service.Record(s.ctx, agent, s.input())
		s.ErrorIs(err, access.ErrNotParticipant)
	})

	s.Run("maintenance surfaces as unavailable", func() {
		s.checkpoints.EXPECT().AssertWritable(gomock.Any(), agent, "cp-1").Return(&checkpointmodels.Checkpoint{ID: "cp-1"}, nil)
		s.store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(sqlite.ErrMaintenance)
		_, err := s.service.Record(s.ctx, agent, s.input())
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	})
}

func (s *ServiceSuite) TestGet() {
	s.Run("requires access to the checkpoint", func() {
		s.store.EXPECT().FindByID(gomock.Any(), "a-1").Return(&models.Approach{ID: "a-1", CheckpointID: "cp-1"}, nil)
		s.checkpoints.EXPECT().Get(gomock.Any(), agent, "cp-1").Return(nil, access.ErrNotParticipant)
		_, err := s.service.Get(s.ctx, agent, "a-1")
		s.ErrorIs(err, access.ErrNotParticipant)
	})

	s.Run("missing", func() {
		s.store.EXPECT().FindByID(gomock.Any(), "zz").Return(nil, sentinel.ErrNotFound)
		_, err := s.service.Get(s.ctx, agent, "zz")
		s.ErrorIs(err, models.ErrNotFound)
	})
}

func (s *ServiceSuite) TestListByCheckpoint() {
	c := &checkpointmodels.Checkpoint{ID: "cp-1"}
	s.checkpoints.EXPECT().Get(gomock.Any(), agent, "cp-1").Return(c, nil)
	s.store.EXPECT().ListByCheckpoint(gomock.Any(), "cp-1").Return([]*models.Approach{{ID: "a-1"}}, nil)

	got, all, err := s.service.ListByCheckpoint(s.ctx, agent, "cp-1")
	s.Require().NoError(err)
	s.Equal(c, got)
	s.Len(all, 1)
}

func (s *ServiceSuite) TestListMine() {
	s.store.EXPECT().ListByRecorder(gomock.Any(), "310").Return(nil, nil)
	all, err := s.service.ListMine(s.ctx, "310")
	s.NoError(err)
	s.Empty(all)
}
