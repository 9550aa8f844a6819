package db

import "time"

// ReservationDuration is the fixed length of every reservation slot.
const ReservationDuration = time.Hour

type Reservation struct {
	ID           string
	SpaceID      int
	StartTime    time.Time
	EndTime      time.Time
	LicensePlate string
	ContactEmail string
	ContactPhone string
	Language     string
	CreatedAt    time.Time
}

// Overlaps reports whether r intersects the half-open window [start, end).
func (r Reservation) Overlaps(start, end time.Time) bool {
	return r.StartTime.Before(end) && r.EndTime.After(start)
}
