package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"parkingreserve/internal/entities"
)

// StatsRecorder persists admission outcomes and occupancy samples. Callers treat failures as
// best-effort: a stats error never fails a reservation.
type StatsRecorder interface {
	Record(ctx context.Context, ev entities.AdmissionEvent) error
	RecordOccupancy(ctx context.Context, snap entities.OccupancySnapshot) error
	Snapshot(ctx context.Context) (entities.AdmissionStats, error)
}

type MemoryStatsStore struct {
	mu            sync.Mutex
	totals        map[entities.AdmissionOutcome]int64
	lastOccupancy *entities.OccupancySnapshot
}

func NewMemoryStatsStore() *MemoryStatsStore {
	return &MemoryStatsStore{totals: make(map[entities.AdmissionOutcome]int64)}
}

func (s *MemoryStatsStore) Record(_ context.Context, ev entities.AdmissionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totals[ev.Outcome]++
	return nil
}

func (s *MemoryStatsStore) RecordOccupancy(_ context.Context, snap entities.OccupancySnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastOccupancy = &snap
	return nil
}

func (s *MemoryStatsStore) Snapshot(_ context.Context) (entities.AdmissionStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := entities.AdmissionStats{Totals: make(map[entities.AdmissionOutcome]int64, len(s.totals))}
	for k, v := range s.totals {
		out.Totals[k] = v
	}
	if s.lastOccupancy != nil {
		snap := *s.lastOccupancy
		out.LastOccupancy = &snap
	}
	return out, nil
}

// RedisStatsStore keeps cumulative totals in one hash plus per-minute bucket hashes that expire.
type RedisStatsStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.prefix = strings.Trim(prefix, ":") }
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

func NewRedisStatsStore(rdb *redis.Client, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "parking:stats",
		ttl:    24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStatsStore) Record(ctx context.Context, ev entities.AdmissionEvent) error {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	field := string(ev.Outcome)
	bucketKey := fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504"))

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.prefix+":total", field, 1)
	pipe.HIncrBy(ctx, bucketKey, field, 1)
	if s.ttl > 0 {
		pipe.Expire(ctx, bucketKey, s.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStatsStore) RecordOccupancy(ctx context.Context, snap entities.OccupancySnapshot) error {
	return s.rdb.HSet(ctx, s.prefix+":occupancy",
		"window_start", snap.WindowStart.UTC().Format(time.RFC3339),
		"booked", snap.BookedSpaces,
		"limit", snap.CapacityLimit,
		"total", snap.TotalSpaces,
	).Err()
}

func (s *RedisStatsStore) Snapshot(ctx context.Context) (entities.AdmissionStats, error) {
	out := entities.AdmissionStats{Totals: make(map[entities.AdmissionOutcome]int64)}

	totals, err := s.rdb.HGetAll(ctx, s.prefix+":total").Result()
	if err != nil {
		return out, fmt.Errorf("reading admission totals: %w", err)
	}
	for field, raw := range totals {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return out, fmt.Errorf("parsing admission total %q: %w", field, err)
		}
		out.Totals[entities.AdmissionOutcome(field)] = n
	}

	occ, err := s.rdb.HGetAll(ctx, s.prefix+":occupancy").Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return out, fmt.Errorf("reading occupancy: %w", err)
	}
	if len(occ) > 0 {
		snap := entities.OccupancySnapshot{}
		snap.WindowStart, _ = time.Parse(time.RFC3339, occ["window_start"])
		snap.BookedSpaces, _ = strconv.Atoi(occ["booked"])
		snap.CapacityLimit, _ = strconv.Atoi(occ["limit"])
		snap.TotalSpaces, _ = strconv.Atoi(occ["total"])
		out.LastOccupancy = &snap
	}
	return out, nil
}
