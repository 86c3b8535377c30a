// Package poll runs a fixed-cadence background refresh for a set of named
// targets. Each target gets one foreground initial load; its interval job
// is scheduled once that load returns and runs until Stop.
package poll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// FetchFunc loads one target. background is false only for the initial
// load after Start.
type FetchFunc func(ctx context.Context, background bool) error

// Target is one periodically refreshed collection.
type Target struct {
	Name     string
	Interval time.Duration
	Fetch    FetchFunc
}

// Phase is a target's lifecycle position.
type Phase int

const (
	Idle Phase = iota
	InitialLoading
	Steady
)

func (p Phase) String() string {
	switch p {
	case InitialLoading:
		return "initial-loading"
	case Steady:
		return "steady"
	default:
		return "idle"
	}
}

// ErrUnknownTarget is returned by Trigger for a name that was never added.
var ErrUnknownTarget = errors.New("poll: unknown target")

// Scheduler owns the periodic jobs for its targets.
type Scheduler struct {
	log     *slog.Logger
	targets []Target
	opts    []gocron.SchedulerOption

	mu      sync.Mutex
	sched   gocron.Scheduler
	phases  map[string]Phase
	gen     uint64
	running bool
	initial *sync.WaitGroup
	ctx     context.Context
}

// New returns a stopped Scheduler for targets. opts are passed through to
// gocron.
func New(log *slog.Logger, targets []Target, opts ...gocron.SchedulerOption) *Scheduler {
	phases := make(map[string]Phase, len(targets))
	for _, t := range targets {
		phases[t.Name] = Idle
	}
	return &Scheduler{
		log:     log,
		targets: targets,
		opts:    opts,
		phases:  phases,
		initial: &sync.WaitGroup{},
	}
}

// Start runs the initial load of every target once and schedules the
// background fetches. Calling Start on a running Scheduler does nothing.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	sched, err := gocron.NewScheduler(s.opts...)
	if err != nil {
		return fmt.Errorf("creating scheduler: %w", err)
	}

	s.gen++
	gen := s.gen
	s.ctx = ctx
	s.sched = sched
	s.initial = &sync.WaitGroup{}

	for _, t := range s.targets {
		s.phases[t.Name] = InitialLoading
		s.initial.Add(1)
		go s.initialLoad(ctx, t, gen, s.initial)
	}

	sched.Start()
	s.running = true
	s.log.Info("poll scheduler started", "targets", len(s.targets))
	return nil
}

// Stop cancels every scheduled fetch. No fetch starts after Stop returns;
// fetches already in flight finish on their own.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.gen++
	for name := range s.phases {
		s.phases[name] = Idle
	}
	sched := s.sched
	s.sched = nil
	s.mu.Unlock()

	// Shutdown waits for running jobs; do not make the caller wait on them.
	go func() {
		if err := sched.Shutdown(); err != nil {
			s.log.Warn("poll scheduler shutdown", "error", err)
		}
	}()
	s.log.Info("poll scheduler stopped")
}

// Trigger starts an immediate background fetch of name on its own
// goroutine. It does not go through the interval job, so a tick already in
// flight never swallows it.
func (s *Scheduler) Trigger(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.target(name)
	if !ok {
		return ErrUnknownTarget
	}
	if !s.running {
		return nil
	}
	go s.task(t, s.gen)()
	return nil
}

func (s *Scheduler) target(name string) (Target, bool) {
	for _, t := range s.targets {
		if t.Name == name {
			return t, true
		}
	}
	return Target{}, false
}

// Phase reports where name is in its lifecycle.
func (s *Scheduler) Phase(name string) Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phases[name]
}

// Loading reports whether name is still in its initial load.
func (s *Scheduler) Loading(name string) bool {
	return s.Phase(name) == InitialLoading
}

// Running reports whether the scheduler is started.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Wait blocks until every initial load of the current run has finished.
func (s *Scheduler) Wait(ctx context.Context) error {
	s.mu.Lock()
	wg := s.initial
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running && s.gen == gen
}

// initialLoad runs t's foreground load, then schedules its interval job so
// the first tick lands one interval after the load returned.
func (s *Scheduler) initialLoad(ctx context.Context, t Target, gen uint64, wg *sync.WaitGroup) {
	defer wg.Done()
	s.run(ctx, t, false)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || s.gen != gen {
		return
	}
	_, err := s.sched.NewJob(
		gocron.DurationJob(t.Interval),
		gocron.NewTask(s.task(t, gen)),
		gocron.WithName(t.Name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		s.log.Error("scheduling poll target", "target", t.Name, "error", err)
	}
	s.phases[t.Name] = Steady
}

// task is the gocron entry point for t.
func (s *Scheduler) task(t Target, gen uint64) func() {
	return func() {
		if !s.current(gen) {
			return
		}
		s.mu.Lock()
		ctx := s.ctx
		s.mu.Unlock()
		s.run(ctx, t, true)
	}
}

func (s *Scheduler) run(ctx context.Context, t Target, background bool) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic recovered in poll fetch",
				"target", t.Name,
				"panic", r,
				"stacktrace", string(debug.Stack()),
			)
		}
	}()

	if err := t.Fetch(ctx, background); err != nil {
		level := slog.LevelWarn
		if background {
			level = slog.LevelDebug
		}
		s.log.Log(ctx, level, "poll fetch failed", "target", t.Name, "background", background, "error", err)
	}
}

// Target names used by the dashboard.
const (
	TargetAlerts    = "alerts"
	TargetIndices   = "indices"
	TargetPortfolio = "portfolio"
)
