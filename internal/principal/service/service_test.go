package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store,AuditPublisher,LoginMetrics

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
	"golang.org/x/crypto/bcrypt"

	"github.com/LeandroAbranti/sistema-de-abordagem/internal/principal/models"
	"github.com/LeandroAbranti/sistema-de-abordagem/internal/principal/secrets"
	"github.com/LeandroAbranti/sistema-de-abordagem/internal/principal/service/mocks"
	dErrors "github.com/LeandroAbranti/sistema-de-abordagem/pkg/domain-errors"
	audit "github.com/LeandroAbranti/sistema-de-abordagem/pkg/platform/audit"
	"github.com/LeandroAbranti/sistema-de-abordagem/pkg/platform/sentinel"
	"github.com/LeandroAbranti/sistema-de-abordagem/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	store   *mocks.MockStore
	auditor *mocks.MockAuditPublisher
	metrics *mocks.MockLoginMetrics
	service *Service
	ctx     context.Context
	now     time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = mocks.NewMockStore(s.ctrl)
	s.auditor = mocks.NewMockAuditPublisher(s.ctrl)
	s.metrics = mocks.NewMockLoginMetrics(s.ctrl)
	s.now = time.Date(2024, 2, 10, 9, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(requestcontext.WithPrincipal(context.Background(), "257", "admin"), s.now)

	svc, err := New(s.store,
		WithAuditPublisher(s.auditor),
		WithMetrics(s.metrics),
		WithHashCost(bcrypt.MinCost),
	)
	s.Require().NoError(err)
	s.service = svc
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceSuite) storedPrincipal(id, secret string, enabled bool) *models.Principal {
	hash, err := secrets.NewHasher(bcrypt.MinCost).Hash(secret)
	s.Require().NoError(err)
	return &models.Principal{ID: id, Name: "Agent " + id, SecretHash: hash, Role: models.RoleStandard, Enabled: enabled}
}

func (s *ServiceSuite) TestNew() {
	s.Run("nil store returns error", func() {
		_, err := New(nil)
		s.ErrorContains(err, "principal store is required")
	})
}

func (s *ServiceSuite) TestCreate() {
	s.Run("valid input stores hashed secret and audits", func() {
		var stored *models.Principal
		s.store.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, p *models.Principal) error {
				stored = p
				return nil
			})
		s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, e audit.Event) error {
				s.Equal(audit.KindAdminAction, e.Kind)
				s.Equal("257", e.Actor)
				s.Equal("principal:310", e.Resource)
				return nil
			})

		p, err := s.service.Create(s.ctx, models.CreateInput{ID: " 310 ", Name: "Silva", Secret: "agent-secret"})
		s.Require().NoError(err)
		s.Equal("310", p.ID)
		s.Equal(models.RoleStandard, p.Role)
		s.True(p.Enabled)
		s.Equal(s.now, p.CreatedAt)
		s.NotEqual("agent-secret", stored.SecretHash)
	})

	s.Run("duplicate id is a conflict", func() {
		s.store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(sentinel.ErrConflict)
		_, err := s.service.Create(s.ctx, models.CreateInput{ID: "310", Name: "Silva", Secret: "agent-secret"})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("invalid input never reaches the store", func() {
		cases := []models.CreateInput{
			{ID: "", Name: "x", Secret: "secret1"},
			{ID: "bad id", Name: "x", Secret: "secret1"},
			{ID: "311", Name: " ", Secret: "secret1"},
			{ID: "311", Name: "x", Secret: "short"},
			{ID: "311", Name: "x", Secret: "secret1", Role: "root"},
		}
		for _, in := range cases {
			_, err := s.service.Create(s.ctx, in)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation), "%+v", in)
		}
	})
}

func (s *ServiceSuite) TestAuthenticate() {
	s.Run("correct secret succeeds", func() {
		s.store.EXPECT().FindByID(gomock.Any(), "310").Return(s.storedPrincipal("310", "agent-secret", true), nil)
		s.metrics.EXPECT().IncLogin("success")
		s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, e audit.Event) error {
				s.Equal(audit.KindLogin, e.Kind)
				s.Equal(audit.OutcomeSuccess, e.Outcome)
				return nil
			})

		p, err := s.service.Authenticate(s.ctx, "310", "agent-secret")
		s.Require().NoError(err)
		s.Equal("310", p.ID)
	})

	failures := []struct {
		name   string
		setup  func()
		secret string
		reason string
	}{
		{
			name:   "unknown principal",
			setup:  func() { s.store.EXPECT().FindByID(gomock.Any(), "310").Return(nil, sentinel.ErrNotFound) },
			secret: "agent-secret",
			reason: models.ReasonNotFound,
		},
		{
			name: "disabled principal",
			setup: func() {
				s.store.EXPECT().FindByID(gomock.Any(), "310").Return(s.storedPrincipal("310", "agent-secret", false), nil)
			},
			secret: "agent-secret",
			reason: models.ReasonDisabled,
		},
		{
			name: "wrong secret",
			setup: func() {
				s.store.EXPECT().FindByID(gomock.Any(), "310").Return(s.storedPrincipal("310", "agent-secret", true), nil)
			},
			secret: "nope",
			reason: models.ReasonInvalidPassword,
		},
	}
	for _, tc := range failures {
		s.Run(tc.name+" yields uniform error with precise audit reason", func() {
			tc.setup()
			s.metrics.EXPECT().IncLogin("failure")
			s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(
				func(_ context.Context, e audit.Event) error {
					s.Equal(audit.KindAuthFailed, e.Kind)
					s.Equal(tc.reason, e.Reason)
					s.Equal("310", e.Actor)
					return nil
				})

			_, err := s.service.Authenticate(s.ctx, "310", tc.secret)
			s.ErrorIs(err, ErrInvalidCredentials)
		})
	}

	s.Run("store failure is internal, not a login failure", func() {
		s.store.EXPECT().FindByID(gomock.Any(), "310").Return(nil, errors.New("disk"))
		_, err := s.service.Authenticate(s.ctx, "310", "agent-secret")
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *ServiceSuite) TestLogout() {
	s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, e audit.Event) error {
			s.Equal(audit.KindLogout, e.Kind)
			s.Equal("310", e.Actor)
			return nil
		})
	s.service.Logout(s.ctx, "310")
}

func (s *ServiceSuite) TestDisable() {
	s.Run("soft disables and audits", func() {
		s.store.EXPECT().SetEnabled(gomock.Any(), "310", false).Return(nil)
		s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)
		s.NoError(s.service.Disable(s.ctx, "310"))
	})

	s.Run("cannot disable self", func() {
		err := s.service.Disable(s.ctx, "257")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("missing principal", func() {
		s.store.EXPECT().SetEnabled(gomock.Any(), "404", false).Return(sentinel.ErrNotFound)
		err := s.service.Disable(s.ctx, "404")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestResolveEnabled() {
	s.store.EXPECT().FindByID(gomock.Any(), "257").Return(&models.Principal{ID: "257", Enabled: true}, nil)
	s.store.EXPECT().FindByID(gomock.Any(), "310").Return(&models.Principal{ID: "310", Enabled: false}, nil)
	s.store.EXPECT().FindByID(gomock.Any(), "999").Return(nil, sentinel.ErrNotFound)

	unknown, err := s.service.ResolveEnabled(s.ctx, []string{"257", "310", "999"})
	s.Require().NoError(err)
	s.Equal([]string{"310", "999"}, unknown)
}

func (s *ServiceSuite) TestEnsureDefaultAdmin() {
	s.Run("creates 257 when store is empty", func() {
		s.store.EXPECT().Count(gomock.Any()).Return(0, nil)
		s.store.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, p *models.Principal) error {
				s.Equal(models.DefaultAdminID, p.ID)
				s.Equal(models.RoleAdmin, p.Role)
				return nil
			})
		s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

		created, err := s.service.EnsureDefaultAdmin(context.Background(), "TempAdmin123!")
		s.Require().NoError(err)
		s.True(created)
	})

	s.Run("no-op when principals exist", func() {
		s.store.EXPECT().Count(gomock.Any()).Return(3, nil)
		created, err := s.service.EnsureDefaultAdmin(context.Background(), "TempAdmin123!")
		s.Require().NoError(err)
		s.False(created)
	})
}

func (s *ServiceSuite) TestSeedFromFile() {
	path := filepath.Join(s.T().TempDir(), "principals.yaml")
	s.Require().NoError(os.WriteFile(path, []byte(`principals:
  - id: "310"
    name: Silva
    secret: agent-secret
  - id: "257"
    name: Admin
    secret: admin-secret
    role: admin
  - id: "000"
    name: Missing secret
`), 0o600))

	s.store.EXPECT().FindByID(gomock.Any(), "310").Return(nil, sentinel.ErrNotFound)
	s.store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
	s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)
	s.store.EXPECT().FindByID(gomock.Any(), "257").Return(&models.Principal{ID: "257"}, nil)

	created, err := s.service.SeedFromFile(s.ctx, path)
	s.Require().NoError(err)
	s.Equal(1, created)
}
