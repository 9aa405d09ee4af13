// Package notify fans service events out to the activity log and optional
// alert channels (Slack, SMS, admin email).
package notify

import (
	"context"
	"errors"

	appLog "menucal/internal/log"
	"menucal/internal/model"
)

// Event is one thing worth recording: a send, a skipped check, a failure.
type Event struct {
	Action  string
	Details string
	Status  model.ActivityStatus
	// Routine marks periodic no-op outcomes that belong in the activity log
	// but not in chat or SMS.
	Routine bool
}

type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Func adapts a plain function to Notifier.
type Func func(ctx context.Context, ev Event) error

func (f Func) Notify(ctx context.Context, ev Event) error { return f(ctx, ev) }

// Multi delivers to every notifier. Failures are logged and never block
// the remaining channels or the caller.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, ev Event) error {
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, ev); err != nil {
			appLog.Error("notify channel failed", err, "action", ev.Action)
		}
	}
	return nil
}

var severity = map[model.ActivityStatus]int{
	model.StatusSuccess: 0,
	model.StatusWarning: 1,
	model.StatusError:   2,
}

// Filter forwards events at or above Min, skipping routine ones.
type Filter struct {
	Next Notifier
	Min  model.ActivityStatus
}

func (f Filter) Notify(ctx context.Context, ev Event) error {
	if ev.Routine || severity[ev.Status] < severity[f.Min] {
		return nil
	}
	return f.Next.Notify(ctx, ev)
}

// ActivityStore is the part of the store the activity log needs.
type ActivityStore interface {
	LogActivity(ctx context.Context, a *model.Activity) error
}

// ActivityLog writes every event to the dashboard activity log.
type ActivityLog struct {
	Store ActivityStore
}

func (l ActivityLog) Notify(ctx context.Context, ev Event) error {
	if l.Store == nil {
		return errors.New("notify: activity log has no store")
	}
	status := ev.Status
	if status == "" {
		status = model.StatusSuccess
	}
	return l.Store.LogActivity(ctx, &model.Activity{
		Action:  ev.Action,
		Details: ev.Details,
		Status:  status,
	})
}

func statusIcon(s model.ActivityStatus) string {
	switch s {
	case model.StatusError:
		return ":x:"
	case model.StatusWarning:
		return ":warning:"
	default:
		return ":white_check_mark:"
	}
}
