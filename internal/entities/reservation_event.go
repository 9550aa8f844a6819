package entities

import "time"

const (
	EventReservationCreated   = "reservation.created"
	EventReservationCancelled = "reservation.cancelled"
)

type ReservationEvent struct {
	Type        string              `json:"type"`
	Reservation ReservationResponse `json:"reservation"`
	At          time.Time           `json:"at"`
}
