package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ghostbadfame/CRM-Chase-local/models"
	"github.com/ghostbadfame/CRM-Chase-local/repository"
	"github.com/ghostbadfame/CRM-Chase-local/utils"
)

// RolloverOutcome summarises a rollover run.
type RolloverOutcome string

const (
	RolloverSucceeded RolloverOutcome = "succeeded"
	RolloverPartial   RolloverOutcome = "partial"
	RolloverFailed    RolloverOutcome = "failed"
)

// RolloverResult reports what each step changed. A failed step leaves its
// count at zero and records its error; the other step still runs.
type RolloverResult struct {
	RunAt         time.Time       `json:"runAt"`
	Recycled      int64           `json:"recycled"`
	ForwardFilled int64           `json:"forwardFilled"`
	RecycleErr    error           `json:"-"`
	ForwardErr    error           `json:"-"`
	Outcome       RolloverOutcome `json:"outcome"`
}

// Err joins the step errors, or returns nil when both steps succeeded.
func (r *RolloverResult) Err() error {
	return errors.Join(r.RecycleErr, r.ForwardErr)
}

// Succeeded reports whether both steps completed.
func (r *RolloverResult) Succeeded() bool {
	return r.Outcome == RolloverSucceeded
}

// RolloverService runs the daily lead rollover.
type RolloverService struct {
	leads   repository.LeadStore
	clock   utils.Clock
	metrics *utils.Metrics
}

// NewRolloverService wires the job. clock defaults to the wall clock.
func NewRolloverService(leads repository.LeadStore, clock utils.Clock, metrics *utils.Metrics) *RolloverService {
	if clock == nil {
		clock = utils.SystemClock{}
	}
	return &RolloverService{leads: leads, clock: clock, metrics: metrics}
}

// Run reads the clock once and applies both steps against that instant:
//
//   - recycle: done leads followed up today (and not Lost) go back to pending,
//     assigned for tomorrow.
//   - forward-fill: pending leads whose follow-up is before today (and not
//     Lost) move their follow-up and assignment to tomorrow.
//
// Running it twice on the same day is not a no-op: the second run no longer
// finds the recycled leads as done, but any lead marked done since then is
// recycled.
func (s *RolloverService) Run(ctx context.Context) *RolloverResult {
	now := s.clock.Now()
	today := utils.StartOfDay(now)
	endOfToday := utils.EndOfDay(now)
	tomorrow := utils.StartOfNextDay(now)

	result := &RolloverResult{RunAt: now}

	pending := models.LeadStatusPending
	recycled, err := s.leads.BulkUpdateLeads(ctx,
		models.LeadFilter{
			Status:              models.LeadStatusDone,
			ExcludeClientStatus: models.ClientStatusLost,
			FollowupFrom:        &today,
			FollowupTo:          &endOfToday,
		},
		models.LeadPatch{Status: &pending, AssignToDate: &tomorrow},
	)
	if err != nil {
		result.RecycleErr = fmt.Errorf("recycle done leads: %w", err)
		utils.Logger.Error().Err(err).Msg("rollover recycle step failed")
	} else {
		result.Recycled = recycled
	}

	forwarded, err := s.leads.BulkUpdateLeads(ctx,
		models.LeadFilter{
			Status:              models.LeadStatusPending,
			ExcludeClientStatus: models.ClientStatusLost,
			FollowupBefore:      &today,
		},
		models.LeadPatch{FollowupDate: &tomorrow, AssignToDate: &tomorrow},
	)
	if err != nil {
		result.ForwardErr = fmt.Errorf("forward-fill stale leads: %w", err)
		utils.Logger.Error().Err(err).Msg("rollover forward-fill step failed")
	} else {
		result.ForwardFilled = forwarded
	}

	switch {
	case result.RecycleErr == nil && result.ForwardErr == nil:
		result.Outcome = RolloverSucceeded
	case result.RecycleErr != nil && result.ForwardErr != nil:
		result.Outcome = RolloverFailed
	default:
		result.Outcome = RolloverPartial
	}

	s.metrics.ObserveRollover(string(result.Outcome), result.Recycled, result.ForwardFilled)
	utils.Logger.Info().
		Time("runAt", now).
		Int64("recycled", result.Recycled).
		Int64("forwardFilled", result.ForwardFilled).
		Str("outcome", string(result.Outcome)).
		Msg("rollover finished")
	return result
}
