// Package menu runs the send cycle: work out the next period, stamp the
// dates header onto its two templates and mail the result.
package menu

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"menucal/internal/composite"
	appLog "menucal/internal/log"
	"menucal/internal/mailer"
	"menucal/internal/model"
	"menucal/internal/notify"
	"menucal/internal/period"
	"menucal/internal/store"
)

// Activity log actions.
const (
	ActionCheck      = "menu_check"
	ActionSent       = "menu_sent"
	ActionSendFailed = "menu_send_failed"
	ActionPreview    = "menu_preview"
	ActionSettings   = "settings_saved"
)

// ErrMailDisabled is returned when a send is attempted without SMTP settings.
var ErrMailDisabled = errors.New("menu: smtp is not configured")

// Clock allows mocking time in tests.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the system time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// Store is the persistence the service needs; *store.Store satisfies it.
type Store interface {
	TemplateStore
	LatestSettings(ctx context.Context) (*model.Settings, error)
	SaveSettings(ctx context.Context, st *model.Settings) error
	ServiceActive(ctx context.Context) (bool, error)
	DebugMode(ctx context.Context) (bool, error)
	WasSent(ctx context.Context, start time.Time) (bool, error)
	MarkSent(ctx context.Context, p model.MenuPeriod, recipients int, forced bool) error
}

type TemplateStore interface {
	GetTemplate(ctx context.Context, season string, week int) (*model.Template, error)
}

// Blobs loads template images and keeps merged artifacts; *asset.Blobs
// satisfies it.
type Blobs interface {
	Load(ctx context.Context, ref string) ([]byte, error)
	PutArtifact(data []byte) (string, error)
}

// HeaderSource produces the dates header image for one template week.
type HeaderSource interface {
	RenderHeader(ctx context.Context, weekStart time.Time, week int) ([]byte, error)
}

// Sender delivers a composed menu; *mailer.Mailer satisfies it.
type Sender interface {
	SendMenu(ctx context.Context, m mailer.Menu) error
}

// MissingTemplatesError lists template slots that have nothing uploaded.
type MissingTemplatesError struct {
	Labels []string
}

func (e *MissingTemplatesError) Error() string {
	return "menu: missing templates: " + strings.Join(e.Labels, ", ")
}

func templateLabel(season string, week int) string {
	if season == model.DatesSeason {
		return "dates header"
	}
	return fmt.Sprintf("%s week %d", season, week)
}

// Next is the upcoming period and what is needed to send it.
type Next struct {
	Period     model.MenuPeriod `json:"period"`
	EndDate    time.Time        `json:"end_date"`
	MenuType   string           `json:"menu_type"`
	Recipients []string         `json:"recipients"`
	// Missing names template slots that must be uploaded before sending.
	Missing       []string `json:"missing_templates"`
	SendOverdue   bool     `json:"send_overdue"`
	DaysUntilSend int      `json:"days_until_send"`
}

// Options wires a Service. Store, Blobs and Header are required.
type Options struct {
	Store    Store
	Blobs    Blobs
	Header   HeaderSource
	Mail     Sender
	Notifier notify.Notifier
	Clock    Clock
	Location *time.Location
	// Proportion is the header band share; zero means composite.DefaultProportion.
	Proportion float64
}

type Service struct {
	store      Store
	blobs      Blobs
	header     HeaderSource
	mail       Sender
	notifier   notify.Notifier
	clock      Clock
	loc        *time.Location
	proportion float64
}

func New(o Options) *Service {
	s := &Service{
		store:      o.Store,
		blobs:      o.Blobs,
		header:     o.Header,
		mail:       o.Mail,
		notifier:   o.Notifier,
		clock:      o.Clock,
		loc:        o.Location,
		proportion: o.Proportion,
	}
	if s.notifier == nil {
		s.notifier = notify.Func(func(context.Context, notify.Event) error { return nil })
	}
	if s.clock == nil {
		s.clock = RealClock{}
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.proportion == 0 {
		s.proportion = composite.DefaultProportion
	}
	return s
}

// Today is the current civil date in the service's timezone.
func (s *Service) Today() time.Time {
	return model.CivilDate(s.clock.Now().In(s.loc))
}

// Schedule loads and validates the saved schedule.
func (s *Service) Schedule(ctx context.Context) (*model.ScheduleConfig, *model.Settings, error) {
	st, err := s.store.LatestSettings(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, period.ErrNotConfigured
	}
	if err != nil {
		return nil, nil, err
	}
	cfg, err := period.ParseConfig(st.Schedule)
	if err != nil {
		return nil, st, err
	}
	return cfg, st, nil
}

// NextMenu resolves the period that follows today along with its
// recipients and any missing templates.
func (s *Service) NextMenu(ctx context.Context, today time.Time) (*Next, error) {
	today = model.CivilDate(today)
	cfg, st, err := s.Schedule(ctx)
	if err != nil {
		return nil, err
	}
	p, err := period.NextPeriod(today, cfg)
	if err != nil {
		return nil, err
	}
	missing, err := s.TemplatesMissing(ctx, p)
	if err != nil {
		return nil, err
	}
	return &Next{
		Period:        p,
		EndDate:       p.EndDate(),
		MenuType:      p.MenuType(),
		Recipients:    st.Recipients,
		Missing:       missing,
		SendOverdue:   p.SendOverdue(today),
		DaysUntilSend: period.DaysBetween(today, p.SendDate),
	}, nil
}

// availabilityChecker is implemented by header sources that depend on an
// uploaded asset.
type availabilityChecker interface {
	Available(ctx context.Context) (bool, error)
}

// TemplatesMissing lists the template slots p needs that are not uploaded.
func (s *Service) TemplatesMissing(ctx context.Context, p model.MenuPeriod) ([]string, error) {
	var missing []string
	for _, week := range p.WeekPair.Weeks() {
		_, err := s.store.GetTemplate(ctx, string(p.Season), week)
		if errors.Is(err, store.ErrNotFound) {
			missing = append(missing, templateLabel(string(p.Season), week))
			continue
		}
		if err != nil {
			return nil, err
		}
	}
	if c, ok := s.header.(availabilityChecker); ok {
		ok, err := c.Available(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			missing = append(missing, templateLabel(model.DatesSeason, 0))
		}
	}
	return missing, nil
}

// UpdateSettings validates and saves a new schedule and recipient list.
func (s *Service) UpdateSettings(ctx context.Context, raw model.RawSchedule, recipients []string) (*model.Settings, error) {
	cfg, err := period.ParseConfig(raw)
	if err != nil {
		return nil, err
	}
	clean, err := ValidateRecipients(recipients)
	if err != nil {
		return nil, err
	}

	raw.AnchorDate = cfg.AnchorDate.Format(model.DateLayout)
	raw.Season = string(cfg.Season)
	raw.SeasonChangeDate = ""
	if cfg.SeasonChangeDate != nil {
		raw.SeasonChangeDate = cfg.SeasonChangeDate.Format(model.DateLayout)
	}

	st := &model.Settings{Schedule: raw, Recipients: clean}
	if err := s.store.SaveSettings(ctx, st); err != nil {
		return nil, err
	}
	s.report(ctx, notify.Event{
		Action:  ActionSettings,
		Details: fmt.Sprintf("anchor %s, %s, lead %d days, %d recipient(s)", raw.AnchorDate, raw.Season, raw.LeadDays, len(clean)),
		Status:  model.StatusSuccess,
		Routine: true,
	})
	return st, nil
}

// Preview merges one template week with the header for weekStart and keeps
// the result as an artifact.
func (s *Service) Preview(ctx context.Context, season model.Season, week int, weekStart time.Time) (string, []byte, error) {
	if week < 1 || week > 4 {
		return "", nil, fmt.Errorf("menu: week %d out of range 1-4", week)
	}
	png, err := s.mergeWeek(ctx, season, week, model.CivilDate(weekStart))
	if err != nil {
		return "", nil, err
	}
	ref, err := s.blobs.PutArtifact(png)
	if err != nil {
		return "", nil, fmt.Errorf("menu: store preview: %w", err)
	}
	appLog.Info("preview generated", "season", season, "week", week, "ref", ref)
	return ref, png, nil
}

// Build merges both weeks of p.
func (s *Service) Build(ctx context.Context, p model.MenuPeriod) ([]mailer.WeekImage, error) {
	weeks := p.WeekPair.Weeks()
	out := make([]mailer.WeekImage, 0, len(weeks))
	for _, week := range weeks {
		png, err := s.mergeWeek(ctx, p.Season, week, p.WeekStart(week))
		if err != nil {
			return nil, err
		}
		out = append(out, mailer.WeekImage{Week: week, PNG: png})
	}
	return out, nil
}

func (s *Service) mergeWeek(ctx context.Context, season model.Season, week int, weekStart time.Time) ([]byte, error) {
	tpl, err := s.store.GetTemplate(ctx, string(season), week)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &MissingTemplatesError{Labels: []string{templateLabel(string(season), week)}}
	}
	if err != nil {
		return nil, err
	}
	tplData, err := s.blobs.Load(ctx, tpl.Ref)
	if err != nil {
		return nil, fmt.Errorf("menu: load %s: %w", templateLabel(string(season), week), err)
	}
	header, err := s.header.RenderHeader(ctx, weekStart, week)
	if err != nil {
		return nil, fmt.Errorf("menu: header for week %d: %w", week, err)
	}
	return composite.MergeBytes(header, tplData, s.proportion)
}

func (s *Service) report(ctx context.Context, ev notify.Event) {
	switch ev.Status {
	case model.StatusError:
		appLog.Error("menu event", errors.New(ev.Details), "action", ev.Action)
	case model.StatusWarning:
		appLog.Warn("menu event", "action", ev.Action, "details", ev.Details)
	default:
		appLog.Info("menu event", "action", ev.Action, "details", ev.Details)
	}
	if err := s.notifier.Notify(ctx, ev); err != nil {
		appLog.Error("record menu event", err, "action", ev.Action)
	}
}
