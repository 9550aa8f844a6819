package service

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parkingreserve/internal/entities"
)

func exerciseStatsRecorder(t *testing.T, s StatsRecorder) {
	t.Helper()
	ctx := context.Background()
	now := time.Date(2030, time.June, 1, 10, 0, 0, 0, time.UTC)

	for _, outcome := range []entities.AdmissionOutcome{
		entities.OutcomeCreated, entities.OutcomeCreated, entities.OutcomeCapacityExceeded,
	} {
		require.NoError(t, s.Record(ctx, entities.AdmissionEvent{Outcome: outcome, At: now}))
	}
	require.NoError(t, s.RecordOccupancy(ctx, entities.OccupancySnapshot{
		WindowStart: now, BookedSpaces: 12, CapacityLimit: 80, TotalSpaces: 100,
	}))

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), snap.Totals[entities.OutcomeCreated])
	assert.Equal(t, int64(1), snap.Totals[entities.OutcomeCapacityExceeded])
	assert.Zero(t, snap.Totals[entities.OutcomeNoSpace])
	require.NotNil(t, snap.LastOccupancy)
	assert.Equal(t, 12, snap.LastOccupancy.BookedSpaces)
	assert.True(t, snap.LastOccupancy.WindowStart.Equal(now))
}

func TestMemoryStatsStore(t *testing.T) {
	s := NewMemoryStatsStore()

	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Totals)
	assert.Nil(t, snap.LastOccupancy)

	exerciseStatsRecorder(t, s)
}

func TestRedisStatsStore(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { rdb.Close() })

	prefix := "parking:test:" + uuid.NewString()
	t.Cleanup(func() {
		ctx := context.Background()
		keys, _ := rdb.Keys(ctx, prefix+":*").Result()
		if len(keys) > 0 {
			rdb.Del(ctx, keys...)
		}
	})

	exerciseStatsRecorder(t, NewRedisStatsStore(rdb, WithStatsPrefix(prefix), WithStatsTTL(time.Minute)))
}
