package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/duoquiz/duo-server/internal/config"
)

// RoomSweeper hard-deletes rooms whose expiry has passed.
type RoomSweeper interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// CleanupJob stands in for a storage TTL index: it sweeps expired rooms on
// start and then once per interval.
type CleanupJob struct {
	rooms    RoomSweeper
	interval time.Duration
	timeout  time.Duration
	done     chan struct{}
	stopped  chan struct{}
}

func NewCleanupJob(rooms RoomSweeper, interval time.Duration) *CleanupJob {
	if interval <= 0 {
		interval = config.CleanupJobInterval
	}
	return &CleanupJob{
		rooms:    rooms,
		interval: interval,
		timeout:  config.CleanupJobTimeout,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("cleanup job started")
}

// Stop signals the loop to exit and waits for an in-flight sweep to finish.
func (j *CleanupJob) Stop() {
	close(j.done)
	<-j.stopped
	log.Info().Msg("cleanup job stopped")
}

func (j *CleanupJob) run() {
	defer close(j.stopped)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.cleanup()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.cleanup()
		}
	}
}

func (j *CleanupJob) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	j.runCleanup(ctx, "expired rooms", j.rooms.DeleteExpired)
}

func (j *CleanupJob) runCleanup(ctx context.Context, name string, fn func(context.Context) (int64, error)) {
	count, err := fn(ctx)
	if err != nil {
		log.Error().Err(err).Msgf("failed to cleanup %s", name)
	} else if count > 0 {
		log.Info().Int64("count", count).Msgf("cleaned up %s", name)
	}
}
