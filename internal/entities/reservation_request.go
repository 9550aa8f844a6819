package entities

import "time"

type ReservationRequest struct {
	StartTime    time.Time `json:"startTime"`
	LicensePlate string    `json:"licensePlate"`
	ContactEmail string    `json:"contactEmail,omitempty"`
	ContactPhone string    `json:"contactPhone,omitempty"`
	Language     string    `json:"language,omitempty"` // en, es or it; used for notifications only
}
