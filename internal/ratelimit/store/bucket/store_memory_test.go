package bucket

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/LeandroAbranti/sistema-de-abordagem/internal/platform/clock"
	"github.com/LeandroAbranti/sistema-de-abordagem/internal/ratelimit/models"
)

const (
	testLimit  = 5
	testWindow = 15 * time.Minute
)

type InMemoryBucketStoreSuite struct {
	suite.Suite
	clk   *clock.Fake
	store *InMemoryBucketStore
	ctx   context.Context
}

func TestInMemoryBucketStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryBucketStoreSuite))
}

func (s *InMemoryBucketStoreSuite) SetupTest() {
	s.clk = clock.NewFake(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))
	s.store = NewInMemoryBucketStore(WithClock(s.clk.Now))
	s.ctx = context.Background()
}

func (s *InMemoryBucketStoreSuite) TestAllow() {
	s.Run("first request allowed", func() {
		result, err := s.store.Allow(s.ctx, "test:first", testLimit, testWindow)
		s.Require().NoError(err)
		s.True(result.Allowed)
		s.Equal(testLimit, result.Limit)
		s.Equal(testLimit-1, result.Remaining)
		s.Equal(s.clk.Now().Add(testWindow), result.ResetAt)
	})

	s.Run("requests up to limit allowed", func() {
		var result *models.Result
		var err error
		for range testLimit {
			result, err = s.store.Allow(s.ctx, "test:limit", testLimit, testWindow)
		}
		s.Require().NoError(err)
		s.True(result.Allowed)
		s.Equal(0, result.Remaining)
	})

	s.Run("request over limit denied with retry after", func() {
		for range testLimit {
			_, err := s.store.Allow(s.ctx, "test:over", testLimit, testWindow)
			require.NoError(s.T(), err)
		}
		s.clk.Advance(5 * time.Minute)

		result, err := s.store.Allow(s.ctx, "test:over", testLimit, testWindow)
		s.Require().NoError(err)
		s.False(result.Allowed)
		s.Equal(0, result.Remaining)
		s.Equal(int((10 * time.Minute).Seconds()), result.RetryAfter)
	})

	s.Run("window slides", func() {
		for range testLimit {
			_, err := s.store.Allow(s.ctx, "test:slide", testLimit, testWindow)
			require.NoError(s.T(), err)
		}
		s.clk.Advance(testWindow)

		result, err := s.store.Allow(s.ctx, "test:slide", testLimit, testWindow)
		s.Require().NoError(err)
		s.True(result.Allowed)
		s.Equal(testLimit-1, result.Remaining)
	})
}

func (s *InMemoryBucketStoreSuite) TestKeysAreIndependent() {
	for range testLimit {
		_, err := s.store.Allow(s.ctx, "test:a", testLimit, testWindow)
		s.Require().NoError(err)
	}
	result, err := s.store.Allow(s.ctx, "test:b", testLimit, testWindow)
	s.Require().NoError(err)
	s.True(result.Allowed)
}

func (s *InMemoryBucketStoreSuite) TestReset() {
	for range testLimit {
		_, err := s.store.Allow(s.ctx, "test:reset", testLimit, testWindow)
		s.Require().NoError(err)
	}
	s.Require().NoError(s.store.Reset(s.ctx, "test:reset"))

	count, err := s.store.GetCurrentCount(s.ctx, "test:reset")
	s.Require().NoError(err)
	s.Zero(count)
}

func (s *InMemoryBucketStoreSuite) TestGetCurrentCountExpires() {
	_, err := s.store.Allow(s.ctx, "test:count", testLimit, testWindow)
	s.Require().NoError(err)

	count, err := s.store.GetCurrentCount(s.ctx, "test:count")
	s.Require().NoError(err)
	s.Equal(1, count)

	s.clk.Advance(testWindow + time.Second)
	count, err = s.store.GetCurrentCount(s.ctx, "test:count")
	s.Require().NoError(err)
	s.Zero(count)
}

func (s *InMemoryBucketStoreSuite) TestConcurrent() {
	limit := 100
	key := "test:concurrent"
	var wg sync.WaitGroup
	var mu sync.Mutex
	allowedCount := 0

	for range 200 {
		wg.Go(func() {
			result, err := s.store.Allow(s.ctx, key, limit, testWindow)
			if err != nil || !result.Allowed {
				return
			}
			mu.Lock()
			allowedCount++
			mu.Unlock()
		})
	}

	wg.Wait()
	s.Equal(limit, allowedCount)
}
