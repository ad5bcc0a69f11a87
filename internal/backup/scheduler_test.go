package backup

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeandroAbranti/sistema-de-abordagem/internal/platform/clock"
	"github.com/LeandroAbranti/sistema-de-abordagem/internal/platform/sqlite"
	"github.com/LeandroAbranti/sistema-de-abordagem/internal/storage"
)

func TestScheduleAutomatic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	root := t.TempDir()
	db, err := sqlite.Open(ctx, filepath.Join(root, "records.sqlite"), sqlite.WithMigrations(storage.Migrations()))
	require.NoError(t, err)
	defer db.Close()

	fake := clock.NewFake(time.Date(2024, 10, 2, 0, 0, 0, 0, time.UTC))
	m, err := New(db, filepath.Join(root, "backups"), WithClock(fake), WithRetention(2))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- m.ScheduleAutomatic(ctx, time.Hour, time.Minute) }()

	count := func() int {
		refs, err := m.ListBackups(ctx)
		require.NoError(t, err)
		return len(refs)
	}

	fake.BlockUntil(1)
	fake.Advance(59 * time.Second)
	assert.Equal(t, 0, count(), "nothing runs during the grace period")

	for want := 1; want <= 4; want++ {
		if want == 1 {
			fake.Advance(time.Second)
		} else {
			fake.BlockUntil(1)
			fake.Advance(time.Hour)
		}
		expected := min(want, 2)
		assert.Eventually(t, func() bool { return count() == expected && fake.Waiters() == 1 },
			2*time.Second, 5*time.Millisecond, "run %d", want)
	}

	cancel()
	require.NoError(t, <-done)
}

func TestScheduleAutomaticDisabled(t *testing.T) {
	m, err := New(pathStore{}, t.TempDir())
	require.NoError(t, err)
	assert.NoError(t, m.ScheduleAutomatic(context.Background(), 0, 0))
}
