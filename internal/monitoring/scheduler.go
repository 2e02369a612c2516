package monitoring

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/s-hosono/stamprally/internal/services"
)

// Scheduler runs data backups on a cron schedule.
type Scheduler struct {
	backupSvc services.BackupServiceProvider
	schedule  cron.Schedule
	interval  time.Duration
	timeout   time.Duration
	nextRun   time.Time
	now       func() time.Time
	done      chan struct{}
	stopped   chan struct{}
}

// NewScheduler creates a scheduler for the given standard cron expression.
func NewScheduler(backupSvc services.BackupServiceProvider, cronExpr string) (*Scheduler, error) {
	schedule, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}
	return &Scheduler{
		backupSvc: backupSvc,
		schedule:  schedule,
		interval:  time.Minute,
		timeout:   2 * time.Minute,
		now:       time.Now,
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}, nil
}

// NextRun returns the time of the next scheduled backup.
func (s *Scheduler) NextRun() time.Time {
	return s.nextRun
}

// Run starts the scheduler's ticking loop. It returns after Stop.
func (s *Scheduler) Run() {
	defer close(s.stopped)

	s.nextRun = s.schedule.Next(s.now())
	log.Info().Time("next_run", s.nextRun).Msg("Starting backup scheduler")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			log.Info().Msg("Stopping backup scheduler")
			return
		case <-ticker.C:
			s.checkAndRun()
		}
	}
}

// Stop halts the scheduler and waits for a running backup to finish.
func (s *Scheduler) Stop() {
	close(s.done)
	<-s.stopped
}

// checkAndRun takes a backup if the next run time has passed.
func (s *Scheduler) checkAndRun() {
	now := s.now()
	if now.Before(s.nextRun) {
		return
	}
	s.nextRun = s.schedule.Next(now)

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	backup, err := s.backupSvc.CreateBackup(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Scheduled backup failed")
		return
	}
	log.Info().Str("backup", backup.Name).Int64("size", backup.Size).Time("next_run", s.nextRun).Msg("Scheduled backup created")
}
