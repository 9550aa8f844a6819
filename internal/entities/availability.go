package entities

import "time"

type AvailabilityResponse struct {
	StartTime     time.Time `json:"startTime"`
	EndTime       time.Time `json:"endTime"`
	TotalSpaces   int       `json:"totalSpaces"`
	CapacityLimit int       `json:"capacityLimit"`
	BookedSpaces  int       `json:"bookedSpaces"`
	FreeSpaces    int       `json:"freeSpaces"`
	IsAvailable   bool      `json:"isAvailable"`
}
