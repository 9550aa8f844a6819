package entities

import (
	"time"

	"parkingreserve/internal/db"
)

type ReservationResponse struct {
	ReservationID string    `json:"reservationId"`
	SpaceID       int       `json:"spaceId"`
	StartTime     time.Time `json:"startTime"`
	EndTime       time.Time `json:"endTime"`
	LicensePlate  string    `json:"licensePlate"`
}

type ReservationsList struct {
	Reservations    []ReservationResponse `json:"reservations"`
	Total           int                   `json:"total"`
	AvailableSpaces int                   `json:"availableSpaces"`
}

type SpacesSummary struct {
	TotalSpaces   int `json:"totalSpaces"`
	CapacityLimit int `json:"capacityLimit"`
}

func NewReservationResponse(res db.Reservation) ReservationResponse {
	return ReservationResponse{
		ReservationID: res.ID,
		SpaceID:       res.SpaceID,
		StartTime:     res.StartTime,
		EndTime:       res.EndTime,
		LicensePlate:  res.LicensePlate,
	}
}

// NewReservationsList builds the list view; AvailableSpaces is the pool size minus the number of
// reservations returned, regardless of their windows, floored at zero.
func NewReservationsList(reservations []db.Reservation, totalSpaces int) ReservationsList {
	items := make([]ReservationResponse, 0, len(reservations))
	for _, r := range reservations {
		items = append(items, NewReservationResponse(r))
	}
	return ReservationsList{
		Reservations:    items,
		Total:           len(items),
		AvailableSpaces: max(totalSpaces-len(items), 0),
	}
}
