package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"parkingreserve/internal/db"
)

// MemoryReservationRepository keeps reservations in insertion order in a guarded slice.
type MemoryReservationRepository struct {
	mu           sync.RWMutex
	reservations []db.Reservation
}

func NewMemoryReservationRepository() *MemoryReservationRepository {
	return &MemoryReservationRepository{}
}

func (r *MemoryReservationRepository) Save(ctx context.Context, res *db.Reservation) (*db.Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.reservations {
		if existing.ID == res.ID {
			return nil, fmt.Errorf("%w: reservation %s", ErrDuplicateEntry, res.ID)
		}
	}
	r.reservations = append(r.reservations, *res)
	saved := *res
	return &saved, nil
}

func (r *MemoryReservationRepository) FindByID(ctx context.Context, id string) (*db.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, res := range r.reservations {
		if res.ID == id {
			found := res
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryReservationRepository) Delete(ctx context.Context, res *db.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.reservations {
		if existing.ID == res.ID {
			r.reservations = append(r.reservations[:i], r.reservations[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (r *MemoryReservationRepository) FindAll(ctx context.Context) ([]db.Reservation, error) {
	return r.filter(func(db.Reservation) bool { return true }), nil
}

func (r *MemoryReservationRepository) FindAllByTimeRange(ctx context.Context, start, end time.Time) ([]db.Reservation, error) {
	return r.filter(func(res db.Reservation) bool {
		return res.Overlaps(start, end)
	}), nil
}

func (r *MemoryReservationRepository) FindAllBySpaceAndTimeRange(ctx context.Context, spaceID int, start, end time.Time) ([]db.Reservation, error) {
	return r.filter(func(res db.Reservation) bool {
		return res.SpaceID == spaceID && res.Overlaps(start, end)
	}), nil
}

func (r *MemoryReservationRepository) CountByTimeRange(ctx context.Context, start, end time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, res := range r.reservations {
		if res.Overlaps(start, end) {
			count++
		}
	}
	return count, nil
}

func (r *MemoryReservationRepository) FindByLicensePlateAndExactStart(ctx context.Context, plate string, start time.Time) ([]db.Reservation, error) {
	return r.filter(func(res db.Reservation) bool {
		return res.LicensePlate == plate && res.StartTime.Equal(start)
	}), nil
}

func (r *MemoryReservationRepository) FindOverlappingByLicensePlate(ctx context.Context, plate string, start, end time.Time) ([]db.Reservation, error) {
	return r.filter(func(res db.Reservation) bool {
		return res.LicensePlate == plate && res.Overlaps(start, end)
	}), nil
}

func (r *MemoryReservationRepository) filter(keep func(db.Reservation) bool) []db.Reservation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []db.Reservation
	for _, res := range r.reservations {
		if keep(res) {
			out = append(out, res)
		}
	}
	return out
}
