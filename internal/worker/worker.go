// Package worker runs the menu check on a cron schedule.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "menucal/internal/log"
	"menucal/internal/menu"
	"menucal/internal/model"
)

// Checker is satisfied by *menu.Service.
type Checker interface {
	Today() time.Time
	CheckAndSend(ctx context.Context, today time.Time) (menu.Outcome, error)
}

type Worker struct {
	cron    *cron.Cron
	checker Checker
	spec    string
	timeout time.Duration

	// mu serializes scheduled and manual runs.
	mu  sync.Mutex
	ctx context.Context
	// startup tracks the check launched by Start, which cron does not know about.
	startup sync.WaitGroup
}

// New schedules checker on spec (standard five-field cron) in loc.
func New(spec string, loc *time.Location, checker Checker) (*Worker, error) {
	if loc == nil {
		loc = time.UTC
	}
	w := &Worker{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		checker: checker,
		spec:    spec,
		timeout: 5 * time.Minute,
		ctx:     context.Background(),
	}
	if _, err := w.cron.AddFunc(spec, w.runScheduled); err != nil {
		return nil, fmt.Errorf("worker: invalid check_cron %q: %w", spec, err)
	}
	return w, nil
}

// Start runs one check immediately in the background and then follows the
// schedule. ctx bounds every scheduled run.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	w.ctx = ctx
	w.mu.Unlock()

	w.cron.Start()
	appLog.Info("menu worker started", "check_cron", w.spec, "next", w.Next().Format(time.RFC3339))
	w.startup.Add(1)
	go func() {
		defer w.startup.Done()
		w.runScheduled()
	}()
}

// Stop halts the schedule and waits for running checks, including the
// start-up check, up to ctx.
func (w *Worker) Stop(ctx context.Context) error {
	done := w.cron.Stop()
	finished := make(chan struct{})
	go func() {
		<-done.Done()
		w.startup.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		appLog.Info("menu worker stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next is the next scheduled check, or zero when the worker is not running.
func (w *Worker) Next() time.Time {
	for _, e := range w.cron.Entries() {
		return e.Next
	}
	return time.Time{}
}

// RunOnce performs a single check for today.
func (w *Worker) RunOnce(ctx context.Context) (menu.Outcome, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	today := w.checker.Today()
	started := time.Now()
	out, err := w.checker.CheckAndSend(ctx, today)
	if err != nil {
		appLog.Error("menu check failed", err, "today", today.Format(model.DateLayout))
		return out, err
	}
	appLog.Info("menu check completed",
		"today", today.Format(model.DateLayout),
		"outcome", out,
		"duration", time.Since(started).Round(time.Millisecond),
	)
	return out, nil
}

func (w *Worker) runScheduled() {
	w.mu.Lock()
	parent := w.ctx
	w.mu.Unlock()

	ctx, cancel := context.WithTimeout(parent, w.timeout)
	defer cancel()
	_, _ = w.RunOnce(ctx)
}
