package menu

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	appLog "menucal/internal/log"
	"menucal/internal/mailer"
	"menucal/internal/model"
	"menucal/internal/notify"
	"menucal/internal/period"
)

// Outcome is the result of one check-and-send cycle.
type Outcome string

const (
	OutcomePaused        Outcome = "paused"
	OutcomeNotConfigured Outcome = "not_configured"
	OutcomeMissing       Outcome = "templates_missing"
	OutcomeNotDue        Outcome = "not_due"
	OutcomeAlreadySent   Outcome = "already_sent"
	OutcomeSent          Outcome = "sent"
	OutcomeFailed        Outcome = "failed"
)

// CheckAndSend runs one scheduled cycle for today. It sends the next
// period once its send date has been reached and it has not gone out yet;
// in debug mode it sends on every check.
func (s *Service) CheckAndSend(ctx context.Context, today time.Time) (Outcome, error) {
	today = model.CivilDate(today)

	active, err := s.store.ServiceActive(ctx)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("menu: read service state: %w", err)
	}
	if !active {
		appLog.Debug("menu check skipped, service paused", "today", today.Format(model.DateLayout))
		return OutcomePaused, nil
	}
	debug, err := s.store.DebugMode(ctx)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("menu: read debug mode: %w", err)
	}

	next, err := s.NextMenu(ctx, today)
	if errors.Is(err, period.ErrNotConfigured) {
		s.report(ctx, notify.Event{
			Action:  ActionCheck,
			Details: "No schedule saved yet; configure the anchor date and season",
			Status:  model.StatusWarning,
			Routine: true,
		})
		return OutcomeNotConfigured, nil
	}
	if err != nil {
		s.report(ctx, notify.Event{Action: ActionCheck, Details: err.Error(), Status: model.StatusError})
		return OutcomeFailed, err
	}

	p := next.Period
	due := !today.Before(p.SendDate)
	if len(next.Missing) > 0 {
		s.report(ctx, notify.Event{
			Action:  ActionCheck,
			Details: fmt.Sprintf("Cannot send %s menu: missing %s", p.MenuType(), strings.Join(next.Missing, ", ")),
			Status:  model.StatusWarning,
			Routine: !due && !debug,
		})
		return OutcomeMissing, nil
	}

	if debug {
		if err := s.send(ctx, next, true); err != nil {
			return OutcomeFailed, err
		}
		return OutcomeSent, nil
	}

	if !due {
		s.report(ctx, notify.Event{
			Action: ActionCheck,
			Details: fmt.Sprintf("No menu due today; next send date %s for %s",
				p.SendDate.Format(model.DateLayout), p.MenuType()),
			Status:  model.StatusSuccess,
			Routine: true,
		})
		return OutcomeNotDue, nil
	}

	sent, err := s.store.WasSent(ctx, p.PeriodStart)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("menu: read send log: %w", err)
	}
	if sent {
		appLog.Debug("menu already sent", "period_start", p.PeriodStart.Format(model.DateLayout))
		return OutcomeAlreadySent, nil
	}

	if err := s.send(ctx, next, false); err != nil {
		return OutcomeFailed, err
	}
	return OutcomeSent, nil
}

// ForceSend mails the next period now, whatever its send date. The
// scheduled send still happens on the send date.
func (s *Service) ForceSend(ctx context.Context, today time.Time) (model.MenuPeriod, error) {
	next, err := s.NextMenu(ctx, today)
	if err != nil {
		return model.MenuPeriod{}, err
	}
	if len(next.Missing) > 0 {
		return next.Period, &MissingTemplatesError{Labels: next.Missing}
	}
	return next.Period, s.send(ctx, next, true)
}

func (s *Service) send(ctx context.Context, next *Next, forced bool) error {
	p := next.Period
	err := s.deliver(ctx, next)
	if err != nil {
		s.report(ctx, notify.Event{
			Action:  ActionSendFailed,
			Details: fmt.Sprintf("%s menu for %s: %v", p.MenuType(), mailer.DateRange(p), err),
			Status:  model.StatusError,
		})
		return err
	}

	// The mail is out, so the record must land even if ctx was cancelled
	// during delivery; otherwise the next start sends the period again.
	ctx = context.WithoutCancel(ctx)
	if err := s.store.MarkSent(ctx, p, len(next.Recipients), forced); err != nil {
		appLog.Error("record menu send", err, "period_start", p.PeriodStart.Format(model.DateLayout))
	}

	details := fmt.Sprintf("Sent %s menu for %s to %d recipient(s)", p.MenuType(), mailer.DateRange(p), len(next.Recipients))
	if forced {
		details += " (forced)"
	}
	s.report(ctx, notify.Event{Action: ActionSent, Details: details, Status: model.StatusSuccess})
	return nil
}

func (s *Service) deliver(ctx context.Context, next *Next) error {
	if s.mail == nil {
		return ErrMailDisabled
	}
	if len(next.Recipients) == 0 {
		return mailer.ErrNoRecipients
	}
	images, err := s.Build(ctx, next.Period)
	if err != nil {
		return err
	}
	return s.mail.SendMenu(ctx, mailer.Menu{
		Period:     next.Period,
		Recipients: next.Recipients,
		Images:     images,
	})
}
