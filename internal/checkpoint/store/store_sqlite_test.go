package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/LeandroAbranti/sistema-de-abordagem/internal/checkpoint/models"
	"github.com/LeandroAbranti/sistema-de-abordagem/internal/platform/sqlite"
	principalmodels "github.com/LeandroAbranti/sistema-de-abordagem/internal/principal/models"
	principalstore "github.com/LeandroAbranti/sistema-de-abordagem/internal/principal/store"
	"github.com/LeandroAbranti/sistema-de-abordagem/internal/storage"
	"github.com/LeandroAbranti/sistema-de-abordagem/pkg/platform/sentinel"
)

type SQLiteStoreSuite struct {
	suite.Suite
	ctx   context.Context
	db    *sqlite.Store
	store *SQLiteStore
	when  time.Time
}

func TestSQLiteStoreSuite(t *testing.T) {
	suite.Run(t, new(SQLiteStoreSuite))
}

func (s *SQLiteStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.when = time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)
	db, err := sqlite.Open(s.ctx, filepath.Join(s.T().TempDir(), "records.sqlite"), sqlite.WithMigrations(storage.Migrations()))
	s.Require().NoError(err)
	s.db = db
	s.store = NewSQLiteStore(db)

	principals := principalstore.NewSQLiteStore(db)
	for _, id := range []string{"257", "310", "411"} {
		s.Require().NoError(principals.Create(s.ctx, &principalmodels.Principal{
			ID: id, Name: id, SecretHash: "h", Role: principalmodels.RoleStandard, Enabled: true, CreatedAt: s.when,
		}))
	}
}

func (s *SQLiteStoreSuite) TearDownTest() {
	s.NoError(s.db.Close())
}

func (s *SQLiteStoreSuite) checkpoint(id string, scheduled time.Time, participants ...string) *models.Checkpoint {
	return &models.Checkpoint{
		ID:           id,
		Location:     "Av. Brasil " + id,
		ScheduledAt:  scheduled,
		Participants: participants,
		Status:       models.StatusActive,
		CreatedBy:    "257",
		CreatedAt:    s.when,
	}
}

func (s *SQLiteStoreSuite) TestCreateAndFind() {
	s.Require().NoError(s.store.Create(s.ctx, s.checkpoint("a", s.when, "310", "257")))

	got, err := s.store.FindByID(s.ctx, "a")
	s.Require().NoError(err)
	s.Equal([]string{"257", "310"}, got.Participants)
	s.Equal(models.StatusActive, got.Status)
	s.True(got.ScheduledAt.Equal(s.when))
	s.Nil(got.ClosedAt)
	s.Empty(got.ClosedBy)
}

func (s *SQLiteStoreSuite) TestUnknownParticipantViolatesForeignKey() {
	err := s.store.Create(s.ctx, s.checkpoint("a", s.when, "999"))
	s.Error(err)

	_, err = s.store.FindByID(s.ctx, "a")
	s.ErrorIs(err, sentinel.ErrNotFound, "failed insert must roll back the checkpoint row")
}

func (s *SQLiteStoreSuite) TestCloseOnce() {
	s.Require().NoError(s.store.Create(s.ctx, s.checkpoint("a", s.when, "310")))
	closedAt := s.when.Add(3 * time.Hour)

	s.Require().NoError(s.store.Close(s.ctx, "a", "257", closedAt))
	s.ErrorIs(s.store.Close(s.ctx, "a", "411", closedAt.Add(time.Hour)), sentinel.ErrInvalidState)

	got, err := s.store.FindByID(s.ctx, "a")
	s.Require().NoError(err)
	s.Equal(models.StatusClosed, got.Status)
	s.Equal("257", got.ClosedBy)
	s.Require().NotNil(got.ClosedAt)
	s.True(got.ClosedAt.Equal(closedAt))
}

func (s *SQLiteStoreSuite) TestCloseMissing() {
	s.ErrorIs(s.store.Close(s.ctx, "nope", "257", s.when), sentinel.ErrNotFound)
}

func (s *SQLiteStoreSuite) TestListings() {
	s.Require().NoError(s.store.Create(s.ctx, s.checkpoint("old", s.when, "310")))
	s.Require().NoError(s.store.Create(s.ctx, s.checkpoint("new", s.when.Add(24*time.Hour), "310", "411")))
	s.Require().NoError(s.store.Create(s.ctx, s.checkpoint("other", s.when.Add(time.Hour), "411")))
	s.Require().NoError(s.store.Close(s.ctx, "old", "257", s.when))

	all, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	s.Equal("new", all[0].ID)
	s.Equal("old", all[2].ID)

	mine, err := s.store.ListActiveForParticipant(s.ctx, "310")
	s.Require().NoError(err)
	s.Require().Len(mine, 1)
	s.Equal("new", mine[0].ID)
	s.Equal([]string{"310", "411"}, mine[0].Participants)
}
