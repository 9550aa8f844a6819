package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parkingreserve/internal/db"
	"parkingreserve/internal/entities"
	"parkingreserve/internal/repository"
)

var fixedNow = time.Date(2030, time.June, 1, 8, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return time.Date(2030, time.June, 1, hour, minute, 0, 0, time.UTC)
}

func firstFree(available []int) int { return available[0] }

func newTestService(t *testing.T, repo repository.ReservationRepository, n int, threshold float64, opts ...Option) *ReservationService {
	t.Helper()
	logger, _ := test.NewNullLogger()
	base := []Option{WithClock(func() time.Time { return fixedNow }), WithLogger(logger)}
	svc, err := NewReservationService(repo, n, threshold, append(base, opts...)...)
	require.NoError(t, err)
	return svc
}

func request(plate string, start time.Time) entities.ReservationRequest {
	return entities.ReservationRequest{LicensePlate: plate, StartTime: start}
}

// countingRepo counts writes and can override the window count or occupancy.
type countingRepo struct {
	*repository.MemoryReservationRepository
	mu          sync.Mutex
	saves       int
	deletes     int
	countResult *int
	occupied    []db.Reservation
}

func newCountingRepo() *countingRepo {
	return &countingRepo{MemoryReservationRepository: repository.NewMemoryReservationRepository()}
}

func (r *countingRepo) Save(ctx context.Context, res *db.Reservation) (*db.Reservation, error) {
	r.mu.Lock()
	r.saves++
	r.mu.Unlock()
	return r.MemoryReservationRepository.Save(ctx, res)
}

func (r *countingRepo) Delete(ctx context.Context, res *db.Reservation) error {
	r.mu.Lock()
	r.deletes++
	r.mu.Unlock()
	return r.MemoryReservationRepository.Delete(ctx, res)
}

func (r *countingRepo) CountByTimeRange(ctx context.Context, start, end time.Time) (int, error) {
	if r.countResult != nil {
		return *r.countResult, nil
	}
	return r.MemoryReservationRepository.CountByTimeRange(ctx, start, end)
}

func (r *countingRepo) FindAllByTimeRange(ctx context.Context, start, end time.Time) ([]db.Reservation, error) {
	if r.occupied != nil {
		return r.occupied, nil
	}
	return r.MemoryReservationRepository.FindAllByTimeRange(ctx, start, end)
}

func (r *countingRepo) writes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves + r.deletes
}

type failingRepo struct {
	*repository.MemoryReservationRepository
}

func (failingRepo) CountByTimeRange(context.Context, time.Time, time.Time) (int, error) {
	return 0, errors.New("connection reset")
}

func TestCapacityLimit(t *testing.T) {
	assert.Equal(t, 80, capacityLimit(100, 0.8))
	assert.Equal(t, 29, capacityLimit(100, 0.29))
	assert.Equal(t, 57, capacityLimit(100, 0.57))
	assert.Equal(t, 100, capacityLimit(100, 1))
	assert.Equal(t, 0, capacityLimit(1, 0.5))
	assert.Equal(t, 8, capacityLimit(10, 0.8))
}

func TestNewReservationService_RejectsBadConfig(t *testing.T) {
	repo := repository.NewMemoryReservationRepository()

	_, err := NewReservationService(repo, 0, 0.8)
	assert.Error(t, err)
	_, err = NewReservationService(repo, 10, 0)
	assert.Error(t, err)
	_, err = NewReservationService(repo, 10, 1.5)
	assert.Error(t, err)

	svc, err := NewReservationService(repo, 100, 0.8)
	require.NoError(t, err)
	assert.Equal(t, 100, svc.TotalSpaces())
	assert.Equal(t, 80, svc.CapacityLimit())
}

func TestCreateReservation_Success(t *testing.T) {
	svc := newTestService(t, repository.NewMemoryReservationRepository(), 100, 0.8)

	res, err := svc.CreateReservation(context.Background(), entities.ReservationRequest{
		LicensePlate: "  abc123 ",
		StartTime:    at(10, 0),
		ContactEmail: "driver@example.com",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, res.ID)
	assert.Equal(t, "ABC123", res.LicensePlate)
	assert.True(t, res.StartTime.Equal(at(10, 0)))
	assert.True(t, res.EndTime.Equal(at(11, 0)))
	assert.GreaterOrEqual(t, res.SpaceID, 1)
	assert.LessOrEqual(t, res.SpaceID, 100)
	assert.Equal(t, "driver@example.com", res.ContactEmail)

	got, err := svc.GetReservation(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, res.SpaceID, got.SpaceID)
}

func TestCreateReservation_Validation(t *testing.T) {
	repo := newCountingRepo()
	svc := newTestService(t, repo, 100, 0.8)
	ctx := context.Background()

	cases := []struct {
		name    string
		req     entities.ReservationRequest
		field   string
		message string
	}{
		{"empty plate", request("   ", at(10, 0)), "licensePlate", "License plate is required"},
		{"plate with symbols", request("AB-123", at(10, 0)), "licensePlate", "License plate format is invalid"},
		{"plate too long", request("ABCDEFGHIJK", at(10, 0)), "licensePlate", "License plate format is invalid"},
		{"missing start", request("ABC123", time.Time{}), "startTime", "Start time is required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateReservation(ctx, tc.req)
			require.ErrorIs(t, err, ErrInvalidRequest)

			var resErr *ReservationError
			require.True(t, errors.As(err, &resErr))
			assert.Equal(t, tc.message, resErr.Fields[tc.field])
		})
	}

	_, err := svc.CreateReservation(ctx, request("ABC123", fixedNow))
	require.ErrorIs(t, err, ErrInvalidRequest)
	assert.EqualError(t, err, "Reservation time must be in the future")

	_, err = svc.CreateReservation(ctx, request("ABC123", fixedNow.Add(-time.Hour)))
	require.ErrorIs(t, err, ErrInvalidRequest)

	_, err = svc.CreateReservation(ctx, request("ABC123", fixedNow.Add(time.Microsecond)))
	require.NoError(t, err)

	// sub-microsecond future starts pass the check before being truncated for storage
	res, err := svc.CreateReservation(ctx, request("XYZ9", fixedNow.Add(500*time.Nanosecond)))
	require.NoError(t, err)
	assert.True(t, res.StartTime.Equal(fixedNow))

	assert.Equal(t, 2, repo.writes())
}

func TestCreateReservation_SamePlateScenario(t *testing.T) {
	repo := newCountingRepo()
	svc := newTestService(t, repo, 100, 0.8)
	ctx := context.Background()

	_, err := svc.CreateReservation(ctx, request("ABC123", at(10, 0)))
	require.NoError(t, err)
	require.Equal(t, 1, repo.writes())

	// rejections are repeatable and never write
	for i := 0; i < 2; i++ {
		_, err = svc.CreateReservation(ctx, request("ABC123", at(10, 0)))
		require.ErrorIs(t, err, ErrReservationConflict)
		assert.EqualError(t, err, "You already have a reservation at this exact time for license plate: ABC123")

		_, err = svc.CreateReservation(ctx, request("abc123", at(10, 30)))
		require.ErrorIs(t, err, ErrReservationConflict)
		assert.EqualError(t, err, "You already have an overlapping reservation in this time range for license plate: ABC123")
	}
	assert.Equal(t, 1, repo.writes())

	_, err = svc.CreateReservation(ctx, request("ABC123", at(9, 1)))
	require.ErrorIs(t, err, ErrReservationConflict)

	_, err = svc.CreateReservation(ctx, request("ABC123", at(11, 0)))
	require.NoError(t, err)

	_, err = svc.CreateReservation(ctx, request("ABC123", at(9, 0)))
	require.NoError(t, err)

	all, err := svc.ListReservations(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestCreateReservation_NoSpaceOverlap(t *testing.T) {
	svc := newTestService(t, repository.NewMemoryReservationRepository(), 2, 1, WithSpacePicker(firstFree))
	ctx := context.Background()

	a, err := svc.CreateReservation(ctx, request("CAR1", at(10, 0)))
	require.NoError(t, err)
	b, err := svc.CreateReservation(ctx, request("CAR2", at(10, 30)))
	require.NoError(t, err)
	assert.NotEqual(t, a.SpaceID, b.SpaceID)

	// adjacent to a on the same space
	c, err := svc.CreateReservation(ctx, request("CAR3", at(11, 0)))
	require.NoError(t, err)
	assert.Equal(t, a.SpaceID, c.SpaceID)

	_, err = svc.CreateReservation(ctx, request("CAR4", at(11, 15)))
	require.ErrorIs(t, err, ErrCapacityExceeded)

	all, err := svc.ListReservations(ctx)
	require.NoError(t, err)
	for i := range all {
		for j := i + 1; j < len(all); j++ {
			if all[i].SpaceID == all[j].SpaceID {
				assert.False(t, all[i].Overlaps(all[j].StartTime, all[j].EndTime), "space %d double booked", all[i].SpaceID)
			}
		}
	}
}

func TestCreateReservation_CapacityCap(t *testing.T) {
	repo := newCountingRepo()
	svc := newTestService(t, repo, 10, 0.8)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		_, err := svc.CreateReservation(ctx, request(fmt.Sprintf("CAR%d", i), at(10, 0)))
		require.NoError(t, err)
	}
	_, err := svc.CreateReservation(ctx, request("LATE1", at(10, 45)))
	require.ErrorIs(t, err, ErrCapacityExceeded)
	assert.EqualError(t, err, "Parking has reached maximum capacity for this time slot")
	assert.Equal(t, 8, repo.writes())

	// the cap is per window, so the next hour is free again
	_, err = svc.CreateReservation(ctx, request("LATE1", at(11, 0)))
	require.NoError(t, err)
}

func TestCreateReservation_CapacityBoundary(t *testing.T) {
	repo := newCountingRepo()
	svc := newTestService(t, repo, 100, 0.8)
	ctx := context.Background()

	count := 79
	repo.countResult = &count
	_, err := svc.CreateReservation(ctx, request("EDGE79", at(10, 0)))
	require.NoError(t, err)

	count = 80
	_, err = svc.CreateReservation(ctx, request("EDGE80", at(10, 0)))
	require.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Equal(t, 1, repo.writes())
}

func TestCreateReservation_NoSpaceAvailableUnderCap(t *testing.T) {
	repo := newCountingRepo()
	svc := newTestService(t, repo, 100, 0.8)

	count := 79
	repo.countResult = &count
	for id := 1; id <= 100; id++ {
		repo.occupied = append(repo.occupied, db.Reservation{
			ID:        fmt.Sprintf("r%d", id),
			SpaceID:   id,
			StartTime: at(10, 0),
			EndTime:   at(11, 0),
		})
	}

	_, err := svc.CreateReservation(context.Background(), request("FULL1", at(10, 0)))
	require.ErrorIs(t, err, ErrNoSpaceAvailable)
	assert.NotErrorIs(t, err, ErrCapacityExceeded)
	assert.EqualError(t, err, "No parking spaces available for this time slot")
	assert.Equal(t, 0, repo.writes())
}

func TestCreateReservation_ConcurrentAdmission(t *testing.T) {
	repo := newCountingRepo()
	svc := newTestService(t, repo, 10, 0.8)
	ctx := context.Background()

	const workers = 50
	var wg sync.WaitGroup
	results := make(chan *db.Reservation, workers)
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := svc.CreateReservation(ctx, request(fmt.Sprintf("RACE%d", i), at(10, 0)))
			if err != nil {
				errs <- err
				return
			}
			results <- res
		}(i)
	}
	wg.Wait()
	close(results)
	close(errs)

	spaces := map[int]bool{}
	for res := range results {
		assert.False(t, spaces[res.SpaceID], "space %d allocated twice", res.SpaceID)
		spaces[res.SpaceID] = true
	}
	assert.Len(t, spaces, 8)
	for err := range errs {
		assert.ErrorIs(t, err, ErrCapacityExceeded)
	}
	assert.Equal(t, 8, repo.writes())
}

func TestCreateReservation_PickOutsidePool(t *testing.T) {
	repo := newCountingRepo()
	svc := newTestService(t, repo, 5, 1, WithSpacePicker(func([]int) int { return 6 }))

	_, err := svc.CreateReservation(context.Background(), request("ABC123", at(10, 0)))
	require.Error(t, err)
	assert.ErrorContains(t, err, "outside pool")
	assert.Equal(t, 0, repo.writes())
}

func TestCreateReservation_StoreFailure(t *testing.T) {
	svc := newTestService(t, failingRepo{repository.NewMemoryReservationRepository()}, 10, 0.8)

	_, err := svc.CreateReservation(context.Background(), request("ABC123", at(10, 0)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, entities.OutcomeInternal, outcomeFor(err))
}

func TestCancelReservation(t *testing.T) {
	repo := newCountingRepo()
	svc := newTestService(t, repo, 100, 0.8)
	ctx := context.Background()

	res, err := svc.CreateReservation(ctx, request("ABC123", at(10, 0)))
	require.NoError(t, err)

	require.NoError(t, svc.CancelReservation(ctx, res.ID))

	_, err = svc.GetReservation(ctx, res.ID)
	require.ErrorIs(t, err, ErrNotFound)
	assert.EqualError(t, err, "Reservation not found with ID: "+res.ID)

	err = svc.CancelReservation(ctx, res.ID)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 2, repo.writes())

	// the plate may book the same slot again once cancelled
	_, err = svc.CreateReservation(ctx, request("ABC123", at(10, 0)))
	require.NoError(t, err)
}

func TestAvailability(t *testing.T) {
	svc := newTestService(t, repository.NewMemoryReservationRepository(), 4, 0.5)
	ctx := context.Background()

	avail, err := svc.Availability(ctx, at(10, 0))
	require.NoError(t, err)
	assert.Equal(t, 4, avail.TotalSpaces)
	assert.Equal(t, 2, avail.CapacityLimit)
	assert.Equal(t, 0, avail.BookedSpaces)
	assert.Equal(t, 4, avail.FreeSpaces)
	assert.True(t, avail.IsAvailable)

	for _, plate := range []string{"A1", "B2"} {
		_, err := svc.CreateReservation(ctx, request(plate, at(10, 0)))
		require.NoError(t, err)
	}

	avail, err = svc.Availability(ctx, at(10, 30))
	require.NoError(t, err)
	assert.Equal(t, 2, avail.BookedSpaces)
	assert.Equal(t, 2, avail.FreeSpaces)
	assert.False(t, avail.IsAvailable)
	assert.True(t, avail.EndTime.Equal(at(11, 30)))

	avail, err = svc.Availability(ctx, at(11, 0))
	require.NoError(t, err)
	assert.True(t, avail.IsAvailable)

	_, err = svc.Availability(ctx, time.Time{})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []entities.ReservationEvent
}

func (p *recordingPublisher) Publish(ev entities.ReservationEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

type recordingNotifier struct {
	mu       sync.Mutex
	statuses []string
}

func (n *recordingNotifier) Name() string { return "recording" }

func (n *recordingNotifier) Notify(_ context.Context, _ db.Reservation, status string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statuses = append(n.statuses, status)
	return nil
}

func TestReservationService_SideEffects(t *testing.T) {
	logger, _ := test.NewNullLogger()
	stats := NewMemoryStatsStore()
	publisher := &recordingPublisher{}
	notifier := &recordingNotifier{}
	dispatcher := NewNotificationDispatcher(logger, notifier)

	svc := newTestService(t, repository.NewMemoryReservationRepository(), 100, 0.8,
		WithStats(stats), WithEventPublisher(publisher), WithNotifications(dispatcher))
	ctx := context.Background()

	res, err := svc.CreateReservation(ctx, request("ABC123", at(10, 0)))
	require.NoError(t, err)
	_, err = svc.CreateReservation(ctx, request("ABC123", at(10, 0)))
	require.Error(t, err)
	_, err = svc.CreateReservation(ctx, request("??", at(10, 0)))
	require.Error(t, err)
	require.NoError(t, svc.CancelReservation(ctx, res.ID))
	require.Error(t, svc.CancelReservation(ctx, res.ID))
	dispatcher.Wait()

	snap, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap.Totals[entities.OutcomeCreated])
	assert.Equal(t, int64(1), snap.Totals[entities.OutcomeConflict])
	assert.Equal(t, int64(1), snap.Totals[entities.OutcomeInvalid])
	assert.Equal(t, int64(1), snap.Totals[entities.OutcomeCancelled])
	assert.Equal(t, int64(1), snap.Totals[entities.OutcomeNotFound])

	require.Len(t, publisher.events, 2)
	assert.Equal(t, entities.EventReservationCreated, publisher.events[0].Type)
	assert.Equal(t, entities.EventReservationCancelled, publisher.events[1].Type)
	assert.Equal(t, res.ID, publisher.events[1].Reservation.ReservationID)

	assert.ElementsMatch(t, []string{statusConfirmed, statusCancelled}, notifier.statuses)
}

func TestReservationService_LogsCreation(t *testing.T) {
	logger, hook := test.NewNullLogger()
	svc := newTestService(t, repository.NewMemoryReservationRepository(), 10, 0.8, WithLogger(logger))

	res, err := svc.CreateReservation(context.Background(), request("LOG1", at(10, 0)))
	require.NoError(t, err)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "reservation created", entry.Message)
	assert.Equal(t, res.ID, entry.Data["reservation_id"])
}
