package model

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format for civil dates (settings, query params, ICS export).
const DateLayout = "2006-01-02"

// Season selects which template family a period uses.
type Season string

const (
	SeasonSummer Season = "summer"
	SeasonWinter Season = "winter"
)

// DatesSeason is the pseudo-season under which the dates-header asset is
// stored (week 0).
const DatesSeason = "dates"

// ParseSeason accepts "summer" / "winter" in any case.
func ParseSeason(s string) (Season, error) {
	switch Season(strings.ToLower(strings.TrimSpace(s))) {
	case SeasonSummer:
		return SeasonSummer, nil
	case SeasonWinter:
		return SeasonWinter, nil
	default:
		return "", fmt.Errorf("unknown season %q", s)
	}
}

func (s Season) Flip() Season {
	if s == SeasonSummer {
		return SeasonWinter
	}
	return SeasonSummer
}

// Title is the display form, e.g. "Summer".
func (s Season) Title() string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

// WeekPair labels which half of the four-week template rotation a period uses.
type WeekPair string

const (
	WeekPairFirst  WeekPair = "1&2"
	WeekPairSecond WeekPair = "3&4"
)

// Weeks returns the two template week numbers covered by the pair.
func (p WeekPair) Weeks() [2]int {
	if p == WeekPairSecond {
		return [2]int{3, 4}
	}
	return [2]int{1, 2}
}

// CivilDate drops the clock and zone of t, keeping its calendar date as
// midnight UTC. All period arithmetic happens on these values.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a "YYYY-MM-DD" civil date.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
}

// RawSchedule is the schedule as stored and submitted by the dashboard.
type RawSchedule struct {
	AnchorDate       string `json:"anchor_date"`
	LeadDays         int    `json:"lead_days"`
	Season           string `json:"season"`
	SeasonChangeDate string `json:"season_change_date,omitempty"`
}

// ScheduleConfig is the validated input to the period scheduler.
type ScheduleConfig struct {
	AnchorDate       time.Time
	LeadDays         int
	Season           Season
	SeasonChangeDate *time.Time
}

// MenuPeriod is one two-week menu period. It is derived on demand and
// never persisted.
type MenuPeriod struct {
	PeriodStart time.Time `json:"period_start"`
	SendDate    time.Time `json:"send_date"`
	WeekPair    WeekPair  `json:"week_pair"`
	Season      Season    `json:"season"`
	// Index counts whole periods since the anchor date.
	Index int `json:"index"`
}

// EndDate is the last day of the period (start + 13 days).
func (p MenuPeriod) EndDate() time.Time {
	return p.PeriodStart.AddDate(0, 0, 13)
}

// SendOverdue reports whether the lead time already ran out before today.
func (p MenuPeriod) SendOverdue(today time.Time) bool {
	return p.SendDate.Before(CivilDate(today))
}

// WeekStart returns the first day covered by the given template week.
func (p MenuPeriod) WeekStart(week int) time.Time {
	first := p.WeekPair.Weeks()[0]
	return p.PeriodStart.AddDate(0, 0, 7*(week-first))
}

// MenuType is the human label, e.g. "Summer Weeks 1&2".
func (p MenuPeriod) MenuType() string {
	return p.Season.Title() + " Weeks " + string(p.WeekPair)
}

// Settings is one saved row of the schedule settings; the newest wins.
type Settings struct {
	ID         int64       `json:"id"`
	Schedule   RawSchedule `json:"schedule"`
	Recipients []string    `json:"recipients"`
	CreatedAt  time.Time   `json:"created_at"`
}

// Template points at a stored menu template image.
type Template struct {
	ID     int64  `json:"id"`
	Season string `json:"season"`
	Week   int    `json:"week"`
	// Ref is a blob name inside the data dir or an http(s) URL.
	Ref       string    `json:"ref"`
	CreatedAt time.Time `json:"created_at"`
}

type ActivityStatus string

const (
	StatusSuccess ActivityStatus = "success"
	StatusWarning ActivityStatus = "warning"
	StatusError   ActivityStatus = "error"
)

// Activity is one entry of the dashboard activity log.
type Activity struct {
	ID        int64          `json:"id"`
	Action    string         `json:"action"`
	Details   string         `json:"details"`
	Status    ActivityStatus `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
}
