package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"parkingreserve/internal/db"
	"parkingreserve/internal/entities"
	"parkingreserve/internal/repository"
	"parkingreserve/internal/utils"
)

// EventPublisher receives reservation lifecycle events once the admission lock is released.
type EventPublisher interface {
	Publish(ev entities.ReservationEvent)
}

// ReservationService is the admission controller. Create and cancel run their whole
// read-check-write sequence under the exclusive lock; reads share it.
type ReservationService struct {
	mu    sync.RWMutex
	repo  repository.ReservationRepository
	pool  *SpacePool
	limit int

	now    func() time.Time
	pick   func(available []int) int
	newID  func() string
	stats  StatsRecorder
	events EventPublisher
	notify *NotificationDispatcher
	log    logrus.FieldLogger
}

type Option func(*ReservationService)

func WithClock(now func() time.Time) Option {
	return func(s *ReservationService) { s.now = now }
}

// WithSpacePicker replaces the uniform random choice among free spaces.
func WithSpacePicker(pick func(available []int) int) Option {
	return func(s *ReservationService) { s.pick = pick }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *ReservationService) { s.newID = newID }
}

func WithStats(stats StatsRecorder) Option {
	return func(s *ReservationService) { s.stats = stats }
}

func WithEventPublisher(events EventPublisher) Option {
	return func(s *ReservationService) { s.events = events }
}

func WithNotifications(d *NotificationDispatcher) Option {
	return func(s *ReservationService) { s.notify = d }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(s *ReservationService) { s.log = log }
}

func NewReservationService(repo repository.ReservationRepository, totalSpaces int, threshold float64, opts ...Option) (*ReservationService, error) {
	pool, err := NewSpacePool(totalSpaces)
	if err != nil {
		return nil, err
	}
	if threshold <= 0 || threshold > 1 {
		return nil, fmt.Errorf("capacity threshold must be in (0, 1], got %v", threshold)
	}

	s := &ReservationService{
		repo:  repo,
		pool:  pool,
		limit: capacityLimit(totalSpaces, threshold),
		now:   time.Now,
		pick: func(available []int) int {
			return available[rand.Intn(len(available))]
		},
		newID: uuid.NewString,
		log:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// capacityLimit is floor(n*threshold); the epsilon absorbs float error such as 0.29*100 = 28.999...
func capacityLimit(n int, threshold float64) int {
	return int(math.Floor(float64(n)*threshold + 1e-9))
}

func (s *ReservationService) TotalSpaces() int { return s.pool.Size() }

func (s *ReservationService) CapacityLimit() int { return s.limit }

func (s *ReservationService) CreateReservation(ctx context.Context, req entities.ReservationRequest) (*db.Reservation, error) {
	plate, start, err := s.validate(req)
	if err != nil {
		s.record(ctx, entities.OutcomeInvalid)
		return nil, err
	}

	res, err := s.admit(ctx, req, plate, start)
	if err != nil {
		s.record(ctx, outcomeFor(err))
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"reservation_id": res.ID,
		"space_id":       res.SpaceID,
		"license_plate":  res.LicensePlate,
		"start_time":     res.StartTime,
	}).Info("reservation created")
	s.record(ctx, entities.OutcomeCreated)
	s.publish(entities.EventReservationCreated, *res)
	if s.notify != nil {
		s.notify.Dispatch(*res, statusConfirmed)
	}
	return res, nil
}

func (s *ReservationService) validate(req entities.ReservationRequest) (string, time.Time, error) {
	fields := map[string]string{}
	plate := utils.NormalizeLicensePlate(req.LicensePlate)
	switch {
	case plate == "":
		fields["licensePlate"] = "License plate is required"
	case !utils.ValidLicensePlate(plate):
		fields["licensePlate"] = "License plate format is invalid"
	}
	if req.StartTime.IsZero() {
		fields["startTime"] = "Start time is required"
	}
	if len(fields) > 0 {
		return "", time.Time{}, newValidationError(fields)
	}

	if !req.StartTime.After(s.now()) {
		return "", time.Time{}, newError(ErrInvalidRequest, msgReservationFuture)
	}
	return plate, req.StartTime.UTC().Truncate(time.Microsecond), nil
}

func (s *ReservationService) admit(ctx context.Context, req entities.ReservationRequest, plate string, start time.Time) (*db.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	end := start.Add(db.ReservationDuration)

	sameStart, err := s.repo.FindByLicensePlateAndExactStart(ctx, plate, start)
	if err != nil {
		return nil, fmt.Errorf("checking plate start conflicts: %w", err)
	}
	if len(sameStart) > 0 {
		return nil, newError(ErrReservationConflict, fmt.Sprintf(msgSameStart, plate))
	}

	overlapping, err := s.repo.FindOverlappingByLicensePlate(ctx, plate, start, end)
	if err != nil {
		return nil, fmt.Errorf("checking plate overlaps: %w", err)
	}
	if len(overlapping) > 0 {
		return nil, newError(ErrReservationConflict, fmt.Sprintf(msgOverlap, plate))
	}

	booked, err := s.repo.CountByTimeRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("counting reservations in window: %w", err)
	}
	if booked >= s.limit {
		return nil, newError(ErrCapacityExceeded, msgMaxCapacity)
	}

	available, err := s.availableSpaces(ctx, start, end)
	if err != nil {
		return nil, err
	}
	if len(available) == 0 {
		return nil, newError(ErrNoSpaceAvailable, msgNoSpace)
	}

	spaceID := s.pick(available)
	if !s.pool.Contains(spaceID) {
		return nil, fmt.Errorf("picked space %d outside pool of %d", spaceID, s.pool.Size())
	}
	clash, err := s.repo.FindAllBySpaceAndTimeRange(ctx, spaceID, start, end)
	if err != nil {
		return nil, fmt.Errorf("re-checking space %d: %w", spaceID, err)
	}
	if len(clash) > 0 {
		return nil, fmt.Errorf("space %d already booked for %s", spaceID, start.Format(time.RFC3339))
	}

	res := &db.Reservation{
		ID:           s.newID(),
		SpaceID:      spaceID,
		StartTime:    start,
		EndTime:      end,
		LicensePlate: plate,
		ContactEmail: req.ContactEmail,
		ContactPhone: req.ContactPhone,
		Language:     req.Language,
		CreatedAt:    s.now().UTC(),
	}
	saved, err := s.repo.Save(ctx, res)
	if err != nil {
		return nil, fmt.Errorf("saving reservation: %w", err)
	}
	return saved, nil
}

// availableSpaces must be called with the lock held.
func (s *ReservationService) availableSpaces(ctx context.Context, start, end time.Time) ([]int, error) {
	inWindow, err := s.repo.FindAllByTimeRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("loading reservations in window: %w", err)
	}
	occupied := make(map[int]struct{}, len(inWindow))
	for _, r := range inWindow {
		occupied[r.SpaceID] = struct{}{}
	}
	return s.pool.Available(occupied), nil
}

func (s *ReservationService) CancelReservation(ctx context.Context, id string) error {
	res, err := s.remove(ctx, id)
	if err != nil {
		s.record(ctx, outcomeFor(err))
		return err
	}

	s.log.WithFields(logrus.Fields{
		"reservation_id": res.ID,
		"space_id":       res.SpaceID,
	}).Info("reservation cancelled")
	s.record(ctx, entities.OutcomeCancelled)
	s.publish(entities.EventReservationCancelled, *res)
	if s.notify != nil {
		s.notify.Dispatch(*res, statusCancelled)
	}
	return nil
}

func (s *ReservationService) remove(ctx context.Context, id string) (*db.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, newError(ErrNotFound, msgNotFound+id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading reservation %s: %w", id, err)
	}
	if err := s.repo.Delete(ctx, res); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newError(ErrNotFound, msgNotFound+id)
		}
		return nil, fmt.Errorf("deleting reservation %s: %w", id, err)
	}
	return res, nil
}

func (s *ReservationService) GetReservation(ctx context.Context, id string) (*db.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res, err := s.repo.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, newError(ErrNotFound, msgNotFound+id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading reservation %s: %w", id, err)
	}
	return res, nil
}

func (s *ReservationService) ListReservations(ctx context.Context) ([]db.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing reservations: %w", err)
	}
	return all, nil
}

// Availability reports occupancy for the one-hour window starting at start.
func (s *ReservationService) Availability(ctx context.Context, start time.Time) (*entities.AvailabilityResponse, error) {
	if start.IsZero() {
		return nil, newValidationError(map[string]string{"start": "Start time is required"})
	}
	start = start.UTC().Truncate(time.Microsecond)
	end := start.Add(db.ReservationDuration)

	s.mu.RLock()
	defer s.mu.RUnlock()

	booked, err := s.repo.CountByTimeRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("counting reservations in window: %w", err)
	}
	free, err := s.availableSpaces(ctx, start, end)
	if err != nil {
		return nil, err
	}

	return &entities.AvailabilityResponse{
		StartTime:     start,
		EndTime:       end,
		TotalSpaces:   s.pool.Size(),
		CapacityLimit: s.limit,
		BookedSpaces:  booked,
		FreeSpaces:    len(free),
		IsAvailable:   booked < s.limit && len(free) > 0,
	}, nil
}

// Stats returns the recorded admission totals, or an empty set when no recorder is wired.
func (s *ReservationService) Stats(ctx context.Context) (entities.AdmissionStats, error) {
	if s.stats == nil {
		return entities.AdmissionStats{Totals: map[entities.AdmissionOutcome]int64{}}, nil
	}
	return s.stats.Snapshot(ctx)
}

func (s *ReservationService) record(ctx context.Context, outcome entities.AdmissionOutcome) {
	if s.stats == nil {
		return
	}
	if err := s.stats.Record(ctx, entities.AdmissionEvent{Outcome: outcome, At: s.now()}); err != nil {
		s.log.WithError(err).WithField("outcome", outcome).Warn("failed to record admission stats")
	}
}

func (s *ReservationService) publish(eventType string, res db.Reservation) {
	if s.events == nil {
		return
	}
	s.events.Publish(entities.ReservationEvent{
		Type:        eventType,
		Reservation: entities.NewReservationResponse(res),
		At:          s.now().UTC(),
	})
}

func outcomeFor(err error) entities.AdmissionOutcome {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return entities.OutcomeInvalid
	case errors.Is(err, ErrReservationConflict):
		return entities.OutcomeConflict
	case errors.Is(err, ErrCapacityExceeded):
		return entities.OutcomeCapacityExceeded
	case errors.Is(err, ErrNoSpaceAvailable):
		return entities.OutcomeNoSpace
	case errors.Is(err, ErrNotFound):
		return entities.OutcomeNotFound
	default:
		return entities.OutcomeInternal
	}
}
