// Package jobs holds the scheduled background work that keeps batches moving
// without operator input.
package jobs

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"

	"fbrgate/internal/domain"
	"fbrgate/internal/port"
	"fbrgate/internal/service"
)

const sweepBatchLimit = 20

// RetrySweeper periodically re-drives batches whose rows failed transiently,
// so an FBR outage heals without anyone clicking retry.
type RetrySweeper struct {
	scheduler gocron.Scheduler
	batches   port.BatchRepository
	svc       service.BatchService
	interval  time.Duration
}

// NewRetrySweeper creates a RetrySweeper that sweeps at the given interval.
func NewRetrySweeper(batches port.BatchRepository, svc service.BatchService, interval time.Duration) (*RetrySweeper, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &RetrySweeper{
		scheduler: scheduler,
		batches:   batches,
		svc:       svc,
		interval:  interval,
	}, nil
}

// Start schedules the sweep and begins running it.
func (s *RetrySweeper) Start() error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(s.sweep),
	)
	if err != nil {
		return err
	}
	s.scheduler.Start()
	log.Printf("retrySweeper: sweeping every %s", s.interval)
	return nil
}

// Stop shuts the scheduler down, waiting for a running sweep to finish.
func (s *RetrySweeper) Stop() error {
	return s.scheduler.Shutdown()
}

func (s *RetrySweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	batches, err := s.batches.ListWithRetryableRows(ctx, sweepBatchLimit)
	if err != nil {
		log.Printf("retrySweeper: listing retryable batches: %v", err)
		return
	}
	if len(batches) == 0 {
		return
	}
	log.Printf("retrySweeper: re-driving %d batch(es)", len(batches))

	for _, batch := range batches {
		if ctx.Err() != nil {
			return
		}
		_, err := s.svc.RetryFailedRows(ctx, batch.BusinessID, batch.ID)
		if err != nil && !errors.Is(err, domain.ErrBatchNotRetryable) {
			log.Printf("retrySweeper: batch %s: %v", batch.ID, err)
		}
	}
}
