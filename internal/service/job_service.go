package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"parkingreserve/internal/entities"
)

type JobService struct {
	reservations *ReservationService
	stats        StatsRecorder
	log          logrus.FieldLogger
}

func NewJobService(reservations *ReservationService, stats StatsRecorder, log logrus.FieldLogger) *JobService {
	return &JobService{reservations: reservations, stats: stats, log: log.WithField("job", "occupancy_report")}
}

// ReportOccupancy samples the current hour window and stores it as the latest occupancy gauge.
func (s *JobService) ReportOccupancy(ctx context.Context) error {
	windowStart := s.reservations.now().UTC().Truncate(time.Hour)

	avail, err := s.reservations.Availability(ctx, windowStart)
	if err != nil {
		return fmt.Errorf("cron job: failed to read occupancy: %w", err)
	}

	snap := entities.OccupancySnapshot{
		WindowStart:   avail.StartTime,
		BookedSpaces:  avail.BookedSpaces,
		CapacityLimit: avail.CapacityLimit,
		TotalSpaces:   avail.TotalSpaces,
	}
	s.log.WithFields(logrus.Fields{
		"window_start":   snap.WindowStart,
		"booked_spaces":  snap.BookedSpaces,
		"capacity_limit": snap.CapacityLimit,
		"total_spaces":   snap.TotalSpaces,
	}).Info("occupancy report")

	if s.stats == nil {
		return nil
	}
	if err := s.stats.RecordOccupancy(ctx, snap); err != nil {
		return fmt.Errorf("cron job: failed to store occupancy: %w", err)
	}
	return nil
}

// Schedule registers ReportOccupancy on c with a cron spec such as "@every 5m".
func (s *JobService) Schedule(ctx context.Context, c *cron.Cron, spec string) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		if err := s.ReportOccupancy(ctx); err != nil {
			s.log.WithError(err).Error("occupancy report failed")
		}
	})
}
