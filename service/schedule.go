package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ghostbadfame/CRM-Chase-local/utils"

	cronlib "github.com/robfig/cron/v3"
)

const (
	rolloverLockName = "rollover"
	rolloverLockTTL  = 10 * time.Minute
	rolloverTimeout  = 5 * time.Minute
)

// Locker grants a named exclusive lock across instances.
// repository.RedisLocker satisfies it.
type Locker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (release func(context.Context), ok bool, err error)
}

// RolloverScheduler fires the rollover on a cron schedule evaluated in UTC.
// With a Locker only one instance runs each firing.
type RolloverScheduler struct {
	rollover *RolloverService
	locker   Locker
	cron     *cronlib.Cron
}

// NewRolloverScheduler parses schedule (standard 5-field cron or a descriptor
// such as "@daily"). locker may be nil.
func NewRolloverScheduler(rollover *RolloverService, schedule string, locker Locker) (*RolloverScheduler, error) {
	s := &RolloverScheduler{
		rollover: rollover,
		locker:   locker,
		cron:     cronlib.New(cronlib.WithLocation(time.UTC)),
	}
	if _, err := s.cron.AddFunc(schedule, s.fire); err != nil {
		return nil, fmt.Errorf("invalid rollover schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start runs the cron loop in the background.
func (s *RolloverScheduler) Start() {
	s.cron.Start()
	for _, entry := range s.cron.Entries() {
		utils.Logger.Info().Time("next", entry.Next).Msg("rollover scheduled")
	}
}

// Stop halts the schedule and waits for a running job to finish or ctx to end.
func (s *RolloverScheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		utils.Logger.Warn().Msg("rollover still running at shutdown")
	}
}

func (s *RolloverScheduler) fire() {
	ctx, cancel := context.WithTimeout(context.Background(), rolloverTimeout)
	defer cancel()

	if _, err := s.RunOnce(ctx); err != nil {
		utils.Logger.Error().Err(err).Msg("scheduled rollover failed")
	}
}

// RunOnce runs the rollover now, guarded by the lock when one is configured.
// It returns a nil result and nil error when another instance held the lock.
func (s *RolloverScheduler) RunOnce(ctx context.Context) (*RolloverResult, error) {
	if s.locker != nil {
		release, ok, err := s.locker.TryLock(ctx, rolloverLockName, rolloverLockTTL)
		if err != nil {
			return nil, err
		}
		if !ok {
			utils.Logger.Info().Msg("rollover lock held elsewhere, skipping")
			return nil, nil
		}
		defer release(context.Background())
	}

	result := s.rollover.Run(ctx)
	return result, result.Err()
}
