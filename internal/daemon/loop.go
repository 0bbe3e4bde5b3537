// Package daemon repeats purge cycles on an interval or cron schedule and
// exposes their progress to the dashboard.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// CycleFunc runs a single purge cycle.
// Injected from the CLI layer so the loop stays unaware of purge options.
type CycleFunc func(ctx context.Context) error

// LoopConfig holds configuration for the purge loop.
type LoopConfig struct {
	Interval time.Duration // sleep between cycles
	Schedule string        // standard 5-field cron expression
	State    *State        // optional; created when nil
	Cycle    CycleFunc
}

// Loop is the continuous purge daemon: purge → wait → repeat.
type Loop struct {
	cfg      LoopConfig
	state    *State
	schedule cron.Schedule
}

// NewLoop validates cfg and creates a loop.
func NewLoop(cfg LoopConfig) (*Loop, error) {
	if cfg.Cycle == nil {
		return nil, errors.New("cycle function is required")
	}
	if cfg.Interval > 0 && cfg.Schedule != "" {
		return nil, errors.New("loop interval and cron schedule are mutually exclusive")
	}
	if cfg.Interval <= 0 && cfg.Schedule == "" {
		return nil, errors.New("either a loop interval or a cron schedule is required")
	}

	l := &Loop{cfg: cfg, state: cfg.State}
	if l.state == nil {
		l.state = NewState()
	}
	if cfg.Schedule != "" {
		sched, err := cron.ParseStandard(cfg.Schedule)
		if err != nil {
			return nil, fmt.Errorf("invalid cron schedule %q: %w", cfg.Schedule, err)
		}
		l.schedule = sched
	}
	return l, nil
}

// State returns the shared state for TUI consumption.
func (l *Loop) State() *State {
	return l.state
}

// Run starts the loop. Blocks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	if l.schedule != nil {
		return l.runCron(ctx)
	}
	return l.runInterval(ctx)
}

func (l *Loop) runInterval(ctx context.Context) error {
	slog.Info("purge loop started", "interval", l.cfg.Interval)

	for ctx.Err() == nil {
		l.runCycle(ctx)
		if ctx.Err() != nil {
			break
		}

		l.state.SetPhase(PhaseWaiting, fmt.Sprintf("next cycle in %s", l.cfg.Interval))
		l.state.SetNextRunAt(time.Now().Add(l.cfg.Interval))

		select {
		case <-ctx.Done():
		case <-time.After(l.cfg.Interval):
		}
	}

	l.state.SetPhase(PhaseIdle, "stopped")
	slog.Info("purge loop stopped")
	return nil
}

func (l *Loop) runCron(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	c.Schedule(l.schedule, cron.FuncJob(func() {
		l.runCycle(ctx)
		l.waitForNext()
	}))

	c.Start()
	l.waitForNext()
	slog.Info("purge scheduler started", "schedule", l.cfg.Schedule)

	<-ctx.Done()
	stopped := c.Stop()
	<-stopped.Done()

	l.state.SetPhase(PhaseIdle, "stopped")
	slog.Info("purge scheduler stopped")
	return nil
}

func (l *Loop) waitForNext() {
	next := l.schedule.Next(time.Now())
	l.state.SetPhase(PhaseWaiting, "next cycle at "+next.Format(time.DateTime))
	l.state.SetNextRunAt(next)
}

// runCycle runs one cycle; errors are logged and the loop carries on.
func (l *Loop) runCycle(ctx context.Context) {
	if err := l.cfg.Cycle(ctx); err != nil && ctx.Err() == nil {
		slog.Warn("purge cycle failed", "error", err)
	}
}
