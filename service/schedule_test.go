package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ghostbadfame/CRM-Chase-local/repository"
	"github.com/ghostbadfame/CRM-Chase-local/service"
	"github.com/ghostbadfame/CRM-Chase-local/utils"
)

type fakeLocker struct {
	held     bool
	err      error
	acquired int
	released int
}

func (l *fakeLocker) TryLock(ctx context.Context, name string, ttl time.Duration) (func(context.Context), bool, error) {
	if l.err != nil {
		return nil, false, l.err
	}
	if l.held {
		return nil, false, nil
	}
	l.acquired++
	return func(context.Context) { l.released++ }, true, nil
}

func newScheduler(t *testing.T, store *repository.MemoryStore, locker service.Locker) *service.RolloverScheduler {
	t.Helper()
	job := service.NewRolloverService(store, utils.FixedClock{At: rolloverNow}, nil)
	scheduler, err := service.NewRolloverScheduler(job, "@daily", locker)
	if err != nil {
		t.Fatalf("NewRolloverScheduler() error: %v", err)
	}
	return scheduler
}

func TestNewRolloverSchedulerRejectsBadSchedule(t *testing.T) {
	job := service.NewRolloverService(repository.NewMemoryStore(), nil, nil)
	if _, err := service.NewRolloverScheduler(job, "every morning", nil); err == nil {
		t.Error("NewRolloverScheduler() accepted an invalid schedule")
	}
	if _, err := service.NewRolloverScheduler(job, "5 0 * * *", nil); err != nil {
		t.Errorf("NewRolloverScheduler(5-field) error: %v", err)
	}
}

func TestRunOnceHoldsLockForTheRun(t *testing.T) {
	store := repository.NewMemoryStore()
	seedLeads(t, store, leadFixture{no: "LD001", status: "done", followup: today.Add(9 * time.Hour)})
	locker := &fakeLocker{}

	result, err := newScheduler(t, store, locker).RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error: %v", err)
	}
	if result == nil || result.Recycled != 1 {
		t.Fatalf("RunOnce() = %+v, want one recycled lead", result)
	}
	if locker.acquired != 1 || locker.released != 1 {
		t.Errorf("lock acquired %d released %d, want 1 and 1", locker.acquired, locker.released)
	}
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	store := repository.NewMemoryStore()
	seedLeads(t, store, leadFixture{no: "LD001", status: "done", followup: today.Add(9 * time.Hour)})

	result, err := newScheduler(t, store, &fakeLocker{held: true}).RunOnce(context.Background())
	if result != nil || err != nil {
		t.Fatalf("RunOnce() = %+v, %v, want nil, nil", result, err)
	}
	if lead := mustLead(t, store, "LD001"); lead.Status != "done" {
		t.Errorf("lead changed while another instance held the lock: %+v", lead)
	}
}

func TestRunOnceLockError(t *testing.T) {
	lockErr := errors.New("redis down")
	result, err := newScheduler(t, repository.NewMemoryStore(), &fakeLocker{err: lockErr}).RunOnce(context.Background())
	if result != nil || !errors.Is(err, lockErr) {
		t.Fatalf("RunOnce() = %+v, %v, want nil, %v", result, err, lockErr)
	}
}

func TestRunOnceWithoutLocker(t *testing.T) {
	result, err := newScheduler(t, repository.NewMemoryStore(), nil).RunOnce(context.Background())
	if err != nil || result == nil || !result.Succeeded() {
		t.Fatalf("RunOnce() = %+v, %v", result, err)
	}
}

func TestSchedulerStartStop(t *testing.T) {
	scheduler := newScheduler(t, repository.NewMemoryStore(), nil)
	scheduler.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	scheduler.Stop(ctx)
}
