package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jchvetzoff-lab/agents-metiers-sub000/internal/logbook"
)

// ErrSchedulerRunning is returned by Start on a running scheduler.
var ErrSchedulerRunning = errors.New("scheduler already running")

// Job is a periodic unit of work triggered on a wall-clock interval.
type Job struct {
	ID       string
	Interval time.Duration
	Run      func(ctx context.Context)
}

// JobInfo describes a registered job.
type JobInfo struct {
	ID       string
	Interval time.Duration
	NextRun  time.Time
}

type scheduledJob struct {
	Job
	next time.Time
}

// Scheduler triggers jobs from one loop goroutine. Each triggered run gets
// its own goroutine, so independent jobs overlap freely; overlap of the same
// job is left to the job itself.
type Scheduler struct {
	mu      sync.Mutex
	jobs    []*scheduledJob
	now     func() time.Time
	wake    chan struct{}
	cancel  context.CancelFunc
	loopEnd chan struct{}
	running bool
	wg      sync.WaitGroup
	log     *logbook.Logbook
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(log *logbook.Logbook) *Scheduler {
	return &Scheduler{
		now:  time.Now,
		wake: make(chan struct{}, 1),
		log:  log.With("scheduler"),
	}
}

// Add registers job. A job with a non-positive interval is disabled and
// not registered. The first run is one interval after registration.
func (s *Scheduler) Add(job Job) error {
	if job.ID == "" || job.Run == nil {
		return fmt.Errorf("scheduler: job needs an id and a run func")
	}
	if job.Interval <= 0 {
		s.log.Info("job %s disabled", job.ID)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.ID == job.ID {
			return fmt.Errorf("scheduler: duplicate job %q", job.ID)
		}
	}
	s.jobs = append(s.jobs, &scheduledJob{Job: job, next: s.now().Add(job.Interval)})
	s.signal()
	return nil
}

// RemoveAll unregisters every job.
func (s *Scheduler) RemoveAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = nil
	s.signal()
}

// Start launches the loop. Runs are cancelled through ctx or Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrSchedulerRunning
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.loopEnd = make(chan struct{})
	s.running = true
	go s.loop(ctx, s.loopEnd)
	s.log.Info("started with %d jobs", len(s.jobs))
	return nil
}

// Stop cancels the loop and in-flight runs, then waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	loopEnd := s.loopEnd
	s.mu.Unlock()

	<-loopEnd
	s.wg.Wait()
	s.log.Info("stopped")
}

// Running reports whether the loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Jobs returns the registered jobs ordered by next run.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobInfo, len(s.jobs))
	for i, j := range s.jobs {
		out[i] = JobInfo{ID: j.ID, Interval: j.Interval, NextRun: j.next}
	}
	sort.Slice(out, func(i, k int) bool {
		if out[i].NextRun.Equal(out[k].NextRun) {
			return out[i].ID < out[k].ID
		}
		return out[i].NextRun.Before(out[k].NextRun)
	})
	return out
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		wait, ok := s.dispatchDue(ctx)
		if !ok {
			wait = time.Hour
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		case <-timer.C:
		}
	}
}

// dispatchDue starts every due job and returns the wait until the next one.
func (s *Scheduler) dispatchDue(ctx context.Context) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var earliest time.Time
	for _, j := range s.jobs {
		if !j.next.After(now) {
			s.launch(ctx, j.Job)
			j.next = now.Add(j.Interval)
		}
		if earliest.IsZero() || j.next.Before(earliest) {
			earliest = j.next
		}
	}
	if earliest.IsZero() {
		return 0, false
	}
	return earliest.Sub(now), true
}

func (s *Scheduler) launch(ctx context.Context, job Job) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("job %s panicked: %v", job.ID, r)
			}
		}()
		s.log.Info("job %s triggered", job.ID)
		job.Run(ctx)
	}()
}
