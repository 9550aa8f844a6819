package entities

import "time"

type AdmissionOutcome string

const (
	OutcomeCreated          AdmissionOutcome = "created"
	OutcomeCancelled        AdmissionOutcome = "cancelled"
	OutcomeInvalid          AdmissionOutcome = "invalid"
	OutcomeConflict         AdmissionOutcome = "conflict"
	OutcomeCapacityExceeded AdmissionOutcome = "capacity_exceeded"
	OutcomeNoSpace          AdmissionOutcome = "no_space"
	OutcomeNotFound         AdmissionOutcome = "not_found"
	OutcomeInternal         AdmissionOutcome = "internal"
)

type AdmissionEvent struct {
	Outcome AdmissionOutcome
	At      time.Time
}

type AdmissionStats struct {
	Totals        map[AdmissionOutcome]int64 `json:"totals"`
	LastOccupancy *OccupancySnapshot        `json:"lastOccupancy,omitempty"`
}

type OccupancySnapshot struct {
	WindowStart   time.Time `json:"windowStart"`
	BookedSpaces  int       `json:"bookedSpaces"`
	CapacityLimit int       `json:"capacityLimit"`
	TotalSpaces   int       `json:"totalSpaces"`
}
