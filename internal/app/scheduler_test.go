package app

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestScheduler_RunsJobsOnInterval(t *testing.T) {
	s := NewScheduler(nil)
	var fast, slow atomic.Int32
	if err := s.Add(Job{ID: "fast", Interval: 10 * time.Millisecond, Run: func(ctx context.Context) { fast.Add(1) }}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := s.Add(Job{ID: "slow", Interval: time.Hour, Run: func(ctx context.Context) { slow.Add(1) }}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitFor(t, func() bool { return fast.Load() >= 3 })
	s.Stop()

	if slow.Load() != 0 {
		t.Errorf("hourly job must not have run, ran %d times", slow.Load())
	}
	after := fast.Load()
	time.Sleep(30 * time.Millisecond)
	if fast.Load() != after {
		t.Error("jobs must not run after Stop")
	}
}

func TestScheduler_StopWaitsForInFlightRuns(t *testing.T) {
	s := NewScheduler(nil)
	started := make(chan struct{}, 1)
	var finished atomic.Bool
	_ = s.Add(Job{ID: "long", Interval: 5 * time.Millisecond, Run: func(ctx context.Context) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		finished.Store(true)
	}})

	_ = s.Start(context.Background())
	<-started
	s.Stop()

	if !finished.Load() {
		t.Error("Stop returned before the in-flight run finished")
	}
	if s.Running() {
		t.Error("expected scheduler stopped")
	}
}

func TestScheduler_DisabledAndDuplicateJobs(t *testing.T) {
	s := NewScheduler(nil)
	if err := s.Add(Job{ID: "off", Interval: 0, Run: func(context.Context) {}}); err != nil {
		t.Fatalf("disabled job must not be an error: %v", err)
	}
	if len(s.Jobs()) != 0 {
		t.Error("disabled job must not be registered")
	}
	if err := s.Add(Job{ID: "a", Interval: time.Hour, Run: func(context.Context) {}}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := s.Add(Job{ID: "a", Interval: time.Minute, Run: func(context.Context) {}}); err == nil {
		t.Error("expected duplicate job id to be rejected")
	}
	if err := s.Add(Job{ID: "", Interval: time.Minute, Run: func(context.Context) {}}); err == nil {
		t.Error("expected job without id to be rejected")
	}
}

func TestScheduler_JobsSortedByNextRun(t *testing.T) {
	s := NewScheduler(nil)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	_ = s.Add(Job{ID: "weekly", Interval: 7 * 24 * time.Hour, Run: func(context.Context) {}})
	_ = s.Add(Job{ID: "daily", Interval: 24 * time.Hour, Run: func(context.Context) {}})

	jobs := s.Jobs()
	if len(jobs) != 2 || jobs[0].ID != "daily" || !jobs[0].NextRun.Equal(base.Add(24*time.Hour)) {
		t.Errorf("unexpected jobs: %+v", jobs)
	}
}

func TestScheduler_PanickingJobDoesNotStopLoop(t *testing.T) {
	s := NewScheduler(nil)
	var runs atomic.Int32
	_ = s.Add(Job{ID: "boom", Interval: 5 * time.Millisecond, Run: func(context.Context) {
		runs.Add(1)
		panic("boom")
	}})
	_ = s.Start(context.Background())
	defer s.Stop()

	waitFor(t, func() bool { return runs.Load() >= 2 })
}
