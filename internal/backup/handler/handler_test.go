package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeandroAbranti/sistema-de-abordagem/internal/backup"
	"github.com/LeandroAbranti/sistema-de-abordagem/internal/platform/clock"
	"github.com/LeandroAbranti/sistema-de-abordagem/internal/platform/sqlite"
	"github.com/LeandroAbranti/sistema-de-abordagem/internal/storage"
	audit "github.com/LeandroAbranti/sistema-de-abordagem/pkg/platform/audit"
	"github.com/LeandroAbranti/sistema-de-abordagem/pkg/platform/audit/store/memory"
	"github.com/LeandroAbranti/sistema-de-abordagem/pkg/requestcontext"
)

type auditSink struct{ store *memory.InMemoryStore }

func (a auditSink) Emit(ctx context.Context, e audit.Event) error {
	return a.store.Append(ctx, e.Normalize(time.Now()))
}

func newRouter(t *testing.T) (http.Handler, *clock.Fake) {
	h, fake, _ := newAuditedRouter(t)
	return h, fake
}

func newAuditedRouter(t *testing.T) (http.Handler, *clock.Fake, *memory.InMemoryStore) {
	t.Helper()
	root := t.TempDir()
	db, err := sqlite.Open(context.Background(), filepath.Join(root, "records.sqlite"), sqlite.WithMigrations(storage.Migrations()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	fake := clock.NewFake(time.Date(2024, 11, 1, 12, 0, 0, 0, time.UTC))
	events := memory.NewInMemoryStore()
	m, err := backup.New(db, filepath.Join(root, "backups"),
		backup.WithClock(fake),
		backup.WithRetention(2),
		backup.WithAuditPublisher(auditSink{events}),
	)
	require.NoError(t, err)

	r := chi.NewRouter()
	New(m, slog.New(slog.DiscardHandler)).Register(r)
	return r, fake, events
}

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestCreateListRestore(t *testing.T) {
	h, fake := newRouter(t)

	for range 3 {
		rec := serve(h, http.MethodPost, "/backups")
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		fake.Advance(time.Minute)
	}

	rec := serve(h, http.MethodGet, "/backups")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"retention":2`)
	assert.Contains(t, rec.Body.String(), "database_backup_2024-11-01T12-02-00-000Z.sqlite")
	assert.NotContains(t, rec.Body.String(), "database_backup_2024-11-01T12-00-00-000Z.sqlite", "pruned")

	rec = serve(h, http.MethodPost, "/backups/database_backup_2024-11-01T12-02-00-000Z.sqlite/restore")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"safety_snapshot":"database_backup_2024-11-01T12-03-00-000Z.sqlite"`)
}

func TestRestoreErrors(t *testing.T) {
	h, _ := newRouter(t)

	rec := serve(h, http.MethodPost, "/backups/database_backup_2000-01-01T00-00-00-000Z.sqlite/restore")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(h, http.MethodPost, "/backups/records.sqlite/restore")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListIsAuditedWithActor(t *testing.T) {
	h, _, events := newAuditedRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/backups", nil)
	req = req.WithContext(requestcontext.WithPrincipal(req.Context(), "257", "admin"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	listed, err := events.Query(context.Background(), audit.Filter{Kind: audit.KindAdminAction})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "257", listed[0].Actor)
	assert.Equal(t, "backups_listed", listed[0].Reason)
}
