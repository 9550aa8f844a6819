package repository

import (
	"context"
	"errors"
	"time"

	"parkingreserve/internal/db"
)

var ErrNotFound = errors.New("record not found")
var ErrDuplicateEntry = errors.New("record already exists")

// ReservationRepository is the store the admission controller works against. Every time range
// lookup uses half-open overlap semantics: start_time < end AND end_time > start.
type ReservationRepository interface {
	Save(ctx context.Context, res *db.Reservation) (*db.Reservation, error)
	FindByID(ctx context.Context, id string) (*db.Reservation, error)
	Delete(ctx context.Context, res *db.Reservation) error
	FindAll(ctx context.Context) ([]db.Reservation, error)
	FindAllByTimeRange(ctx context.Context, start, end time.Time) ([]db.Reservation, error)
	FindAllBySpaceAndTimeRange(ctx context.Context, spaceID int, start, end time.Time) ([]db.Reservation, error)
	CountByTimeRange(ctx context.Context, start, end time.Time) (int, error)
	FindByLicensePlateAndExactStart(ctx context.Context, plate string, start time.Time) ([]db.Reservation, error)
	FindOverlappingByLicensePlate(ctx context.Context, plate string, start, end time.Time) ([]db.Reservation, error)
}
