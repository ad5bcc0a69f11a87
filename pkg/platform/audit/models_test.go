package audit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "github.com/LeandroAbranti/sistema-de-abordagem/pkg/platform/audit"
	"github.com/LeandroAbranti/sistema-de-abordagem/pkg/platform/audit/store/memory"
)

type brokenStore struct{}

func (brokenStore) Append(context.Context, audit.Event) error { return errors.New("disk full") }

func TestNormalizeDefaults(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	e := audit.Event{Kind: audit.KindAccessDenied}.Normalize(now)

	assert.Equal(t, now, e.Timestamp)
	assert.Equal(t, audit.CategorySecurity, e.Category)
	assert.Equal(t, audit.SeverityInfo, e.Severity)
	assert.Equal(t, audit.OutcomeSuccess, e.Outcome)
	assert.True(t, e.IsSecurity())
}

func TestCriticalEventsAreSecurity(t *testing.T) {
	e := audit.Event{Kind: audit.KindBackup, Severity: audit.SeverityCritical}.Normalize(time.Now())
	assert.NotEqual(t, audit.CategorySecurity, e.Category)
	assert.True(t, e.IsSecurity())
}

func TestFilterMatches(t *testing.T) {
	e := audit.Event{Kind: audit.KindLogin, Actor: "310"}.Normalize(time.Now())
	assert.True(t, audit.Filter{}.Matches(e))
	assert.True(t, audit.Filter{Kind: audit.KindLogin, Actor: "310"}.Matches(e))
	assert.False(t, audit.Filter{Actor: "257"}.Matches(e))
	assert.False(t, audit.Filter{Category: audit.CategorySecurity}.Matches(e))
}

func TestMultiStore(t *testing.T) {
	ctx := context.Background()
	a, b := memory.NewInMemoryStore(), memory.NewInMemoryStore()
	m := audit.MultiStore{brokenStore{}, a, b}

	err := m.Append(ctx, audit.Event{Kind: audit.KindLogin}.Normalize(time.Now()))
	require.ErrorContains(t, err, "disk full")
	assert.Len(t, a.All(), 1, "a failing store does not stop the others")
	assert.Len(t, b.All(), 1)

	got, err := m.Query(ctx, audit.Filter{Kind: audit.KindLogin})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = audit.MultiStore{brokenStore{}}.Query(ctx, audit.Filter{})
	assert.Error(t, err)
}
