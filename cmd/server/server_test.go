package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"github.com/LeandroAbranti/sistema-de-abordagem/internal/platform/clock"
	"github.com/LeandroAbranti/sistema-de-abordagem/internal/platform/config"
	"github.com/LeandroAbranti/sistema-de-abordagem/pkg/platform/audit"
	"github.com/LeandroAbranti/sistema-de-abordagem/pkg/testutil"
)

type ServerSuite struct {
	suite.Suite
	app   *app
	clock *clock.Fake
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerSuite))
}

func (s *ServerSuite) SetupTest() {
	dir := s.T().TempDir()
	env := map[string]string{
		"APP_ENV":             "development",
		"DATABASE_PATH":       filepath.Join(dir, "data", "records.sqlite"),
		"AUDIT_DATABASE_PATH": filepath.Join(dir, "logs", "audit.db"),
		"LOG_DIR":             filepath.Join(dir, "logs"),
		"BACKUP_DIR":          filepath.Join(dir, "backups"),
	}
	cfg, err := config.FromLookup(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	s.Require().NoError(err)

	s.clock = clock.NewFake(time.Date(2024, 6, 1, 7, 0, 0, 0, time.UTC))
	ctx := context.Background()
	s.app, err = build(ctx, cfg, slog.New(slog.DiscardHandler), buildOptions{clock: s.clock, hashCost: bcrypt.MinCost})
	s.Require().NoError(err)
	s.Require().NoError(seed(ctx, s.app, slog.New(slog.DiscardHandler)))
}

func (s *ServerSuite) TearDownTest() {
	s.NoError(s.app.Close())
}

func (s *ServerSuite) do(method, path, token string, body any) *httptest.ResponseRecorder {
	req := testutil.WithBearer(testutil.NewJSONRequest(s.T(), method, path, body), token)
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	return testutil.DoRequest(s.app.handler, req)
}

func (s *ServerSuite) login(id, secret string) string {
	rec := s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"identifier": id, "secret": secret})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	return testutil.UnmarshalResponse[struct {
		Token string `json:"token"`
	}](s.T(), rec).Token
}

func (s *ServerSuite) createPrincipal(adminToken, id string) {
	rec := s.do(http.MethodPost, "/api/admin/principals", adminToken, map[string]string{
		"id": id, "name": "Agente " + id, "secret": "segredo-" + id, "role": "standard",
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
}

func approach(checkpointID string) map[string]any {
	return map[string]any{
		"checkpoint_id": checkpointID,
		"plate":         "abc-1d23",
		"cpf":           "123.456.789-01",
		"breathalyzer":  true,
		"articles":      []string{"165"},
		"observations":  "<b>condutor</b> colaborativo",
	}
}

func (s *ServerSuite) TestCheckpointLifecycle() {
	admin := s.login("257", config.DevAdminPassword)
	s.createPrincipal(admin, "310")
	s.createPrincipal(admin, "999")

	rec := s.do(http.MethodPost, "/api/checkpoints", admin, map[string]any{
		"location":     "BR-101 km 12",
		"scheduled_at": s.clock.Now().Add(time.Hour),
		"participants": []string{"257", "310"},
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var checkpoint struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &checkpoint))
	s.Equal("active", checkpoint.Status)

	outsider := s.login("999", "segredo-999")
	rec = s.do(http.MethodPost, "/api/approaches", outsider, approach(checkpoint.ID))
	testutil.AssertStatusAndError(s.T(), rec, http.StatusForbidden, "forbidden")

	agent := s.login("310", "segredo-310")
	rec = s.do(http.MethodPost, "/api/approaches", agent, approach(checkpoint.ID))
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var recorded struct {
		Plate        string `json:"plate"`
		CPF          string `json:"cpf"`
		RecordedBy   string `json:"recorded_by"`
		Observations string `json:"observations"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &recorded))
	s.Equal("ABC1D23", recorded.Plate)
	s.Equal("12345678901", recorded.CPF)
	s.Equal("310", recorded.RecordedBy)
	s.Equal("condutor colaborativo", recorded.Observations)

	rec = s.do(http.MethodPost, "/api/checkpoints/"+checkpoint.ID+"/close", agent, nil)
	s.Equal(http.StatusForbidden, rec.Code, "only admins close checkpoints")

	rec = s.do(http.MethodPost, "/api/checkpoints/"+checkpoint.ID+"/close", admin, nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/api/approaches", agent, approach(checkpoint.ID))
	testutil.AssertStatusAndError(s.T(), rec, http.StatusConflict, "lifecycle_violation")

	rec = s.do(http.MethodGet, "/api/approaches/checkpoint/"+checkpoint.ID, agent, nil)
	s.Equal(http.StatusOK, rec.Code, "closed checkpoints stay readable")

	rec = s.do(http.MethodGet, "/api/admin/audit?kind="+string(audit.KindAccessDenied), admin, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var trail struct {
		Events []audit.Event `json:"events"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &trail))
	actors := make([]string, 0, len(trail.Events))
	for _, e := range trail.Events {
		actors = append(actors, e.Actor)
	}
	s.Contains(actors, "999")
	s.Contains(actors, "310")
}

func (s *ServerSuite) TestAdminRoutesRequireAdminRole() {
	admin := s.login("257", config.DevAdminPassword)
	s.createPrincipal(admin, "310")
	agent := s.login("310", "segredo-310")

	s.Equal(http.StatusForbidden, s.do(http.MethodGet, "/api/admin/principals", agent, nil).Code)
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/api/admin/principals", admin, nil).Code)
	s.Equal(http.StatusUnauthorized, s.do(http.MethodGet, "/api/checkpoints", "", nil).Code)
	s.Equal(http.StatusUnauthorized, s.do(http.MethodGet, "/api/checkpoints", "garbage", nil).Code)
}

func (s *ServerSuite) TestBackupRoundTrip() {
	admin := s.login("257", config.DevAdminPassword)

	rec := s.do(http.MethodPost, "/api/admin/backups", admin, nil)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Backup struct {
			Name string `json:"name"`
		} `json:"backup"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &created))
	s.NotEmpty(created.Backup.Name)

	s.createPrincipal(admin, "310")
	s.clock.Advance(time.Second)

	rec = s.do(http.MethodPost, "/api/admin/backups/"+created.Backup.Name+"/restore", admin, nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	// The principal created after the snapshot is gone; the admin token
	// still verifies because tokens are not stored.
	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/api/admin/principals/310", admin, nil).Code)

	rec = s.do(http.MethodGet, "/api/admin/backups", admin, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var listed struct {
		Backups []struct {
			Name string `json:"name"`
		} `json:"backups"`
	}
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &listed))
	s.Len(listed.Backups, 2, "restore keeps a safety snapshot of the replaced state")
}

func (s *ServerSuite) TestLoginRateLimit() {
	for range 5 {
		rec := s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"identifier": "257", "secret": "wrong"})
		s.Equal(http.StatusUnauthorized, rec.Code)
	}
	rec := s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"identifier": "257", "secret": config.DevAdminPassword})
	s.Equal(http.StatusTooManyRequests, rec.Code)
	s.NotEmpty(rec.Header().Get("Retry-After"))

	s.clock.Advance(15*time.Minute + time.Second)
	s.login("257", config.DevAdminPassword)
}

func (s *ServerSuite) TestHealthAndUnknownRoutes() {
	rec := s.do(http.MethodGet, "/api/health", "", nil)
	s.Equal(http.StatusOK, rec.Code)
	health := testutil.UnmarshalResponse[struct {
		Status      string `json:"status"`
		Maintenance bool   `json:"maintenance"`
	}](s.T(), rec)
	s.Equal("OK", health.Status)
	s.False(health.Maintenance)

	testutil.AssertStatusAndError(s.T(), s.do(http.MethodGet, "/api/nope", "", nil), http.StatusNotFound, "not_found")
}

func (s *ServerSuite) TestCORSRejectsUnknownOrigin() {
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	s.app.handler.ServeHTTP(rec, req)
	s.Equal(http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec = httptest.NewRecorder()
	s.app.handler.ServeHTTP(rec, req)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}
