package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/LeandroAbranti/sistema-de-abordagem/internal/access"
	"github.com/LeandroAbranti/sistema-de-abordagem/internal/checkpoint/handler/mocks"
	"github.com/LeandroAbranti/sistema-de-abordagem/internal/checkpoint/models"
	principalmodels "github.com/LeandroAbranti/sistema-de-abordagem/internal/principal/models"
	"github.com/LeandroAbranti/sistema-de-abordagem/pkg/platform/httputil"
	"github.com/LeandroAbranti/sistema-de-abordagem/pkg/requestcontext"
)

type HandlerSuite struct {
	suite.Suite
	svc    *mocks.MockService
	router chi.Router
	when   time.Time
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

// asPrincipal stands in for the authentication middleware.
func asPrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Test-Principal")
		role := r.Header.Get("X-Test-Role")
		next.ServeHTTP(w, r.WithContext(requestcontext.WithPrincipal(r.Context(), id, role)))
	})
}

func adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, _ := access.FromContext(r.Context()); !p.IsAdmin() {
			httputil.WriteError(w, access.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *HandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.svc = mocks.NewMockService(ctrl)
	s.when = time.Date(2024, 6, 1, 7, 0, 0, 0, time.UTC)

	r := chi.NewRouter()
	r.Use(asPrincipal)
	New(s.svc, adminOnly, slog.New(slog.DiscardHandler)).Register(r)
	s.router = r
}

func (s *HandlerSuite) do(method, path, id string, role principalmodels.Role, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("X-Test-Principal", id)
	req.Header.Set("X-Test-Role", string(role))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) checkpoint() *models.Checkpoint {
	return &models.Checkpoint{
		ID: "cp-1", Location: "Centro", ScheduledAt: s.when,
		Participants: []string{"257", "310"}, Status: models.StatusActive, CreatedBy: "257",
	}
}

func (s *HandlerSuite) TestListByRole() {
	s.Run("administrator sees every checkpoint", func() {
		s.svc.EXPECT().List(gomock.Any()).Return([]*models.Checkpoint{s.checkpoint()}, nil)
		rec := s.do(http.MethodGet, "/checkpoints", "257", principalmodels.RoleAdmin, "")
		s.Equal(http.StatusOK, rec.Code)

		var resp listResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.Len(resp.Checkpoints, 1)
	})

	s.Run("standard principal sees own active checkpoints", func() {
		s.svc.EXPECT().ListForParticipant(gomock.Any(), "310").Return(nil, nil)
		rec := s.do(http.MethodGet, "/checkpoints", "310", principalmodels.RoleStandard, "")
		s.Equal(http.StatusOK, rec.Code)
		s.JSONEq(`{"checkpoints":[]}`, rec.Body.String())
	})
}

func (s *HandlerSuite) TestCreate() {
	s.Run("administrator creates", func() {
		s.svc.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ any, in models.CreateInput) (*models.Checkpoint, error) {
				s.Equal([]string{"257", "310"}, in.Participants)
				return s.checkpoint(), nil
			})
		rec := s.do(http.MethodPost, "/checkpoints", "257", principalmodels.RoleAdmin,
			`{"location":"Centro","scheduled_at":"2024-06-01T07:00:00Z","participants":["257","310"]}`)
		s.Equal(http.StatusCreated, rec.Code)
	})

	s.Run("standard principal is forbidden", func() {
		rec := s.do(http.MethodPost, "/checkpoints", "310", principalmodels.RoleStandard, `{}`)
		s.Equal(http.StatusForbidden, rec.Code)
	})

	s.Run("unknown participant is a 400", func() {
		s.svc.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil, models.UnknownParticipants([]string{"999"}))
		rec := s.do(http.MethodPost, "/checkpoints", "257", principalmodels.RoleAdmin,
			`{"location":"Centro","scheduled_at":"2024-06-01T07:00:00Z","participants":["999"]}`)
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Contains(rec.Body.String(), "999")
	})

	s.Run("malformed body", func() {
		rec := s.do(http.MethodPost, "/checkpoints", "257", principalmodels.RoleAdmin, `{`)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) TestClose() {
	s.svc.EXPECT().Close(gomock.Any(), "cp-1").Return(nil, models.ErrAlreadyClosed)
	rec := s.do(http.MethodPost, "/checkpoints/cp-1/close", "257", principalmodels.RoleAdmin, "")
	s.Equal(http.StatusConflict, rec.Code)
	s.Contains(rec.Body.String(), "lifecycle_violation")
}

func (s *HandlerSuite) TestGetAndParticipation() {
	s.svc.EXPECT().Get(gomock.Any(), access.Principal{ID: "999", Role: principalmodels.RoleStandard}, "cp-1").
		Return(nil, access.ErrNotParticipant)
	rec := s.do(http.MethodGet, "/checkpoints/cp-1", "999", principalmodels.RoleStandard, "")
	s.Equal(http.StatusForbidden, rec.Code)

	s.svc.EXPECT().IsParticipant(gomock.Any(), "999", "cp-1").Return(false, nil)
	rec = s.do(http.MethodGet, "/checkpoints/cp-1/participation", "999", principalmodels.RoleStandard, "")
	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"participant":false}`, rec.Body.String())
}

func (s *HandlerSuite) TestNotFound() {
	s.svc.EXPECT().Get(gomock.Any(), gomock.Any(), "nope").Return(nil, models.ErrNotFound)
	rec := s.do(http.MethodGet, "/checkpoints/nope", "257", principalmodels.RoleAdmin, "")
	s.Equal(http.StatusNotFound, rec.Code)
}
