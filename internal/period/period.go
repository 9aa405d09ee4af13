// Package period computes the two-week menu rotation: which period comes
// next, when its menu must be mailed, which template week pair and season it
// uses.
//
// Everything here is pure date arithmetic on civil dates (midnight UTC). No
// I/O, no logging, no clock access; callers pass "today" explicitly.
package period

import (
	"time"

	"menucal/internal/model"
)

// PeriodDays is the length of one menu period.
const PeriodDays = 14

const secondsPerDay = 24 * 60 * 60

// NextPeriod returns the first menu period that starts strictly after today.
//
// A period starting exactly today is considered already too late to prepare
// and the following one is returned instead. The send date is the period
// start minus the configured lead days; it may lie before today when the
// lead time exceeds the distance to the next period (see
// model.MenuPeriod.SendOverdue).
func NextPeriod(today time.Time, cfg *model.ScheduleConfig) (model.MenuPeriod, error) {
	if cfg == nil {
		return model.MenuPeriod{}, ErrNotConfigured
	}
	if err := Validate(cfg); err != nil {
		return model.MenuPeriod{}, err
	}

	anchor := model.CivilDate(cfg.AnchorDate)
	day := model.CivilDate(today)

	elapsedDays := DaysBetween(anchor, day)
	elapsedWeeks := floorDiv(elapsedDays, 7)
	elapsed := floorDiv(elapsedWeeks, 2)

	start := anchor.AddDate(0, 0, elapsed*PeriodDays)
	if !day.Before(start) {
		start = start.AddDate(0, 0, PeriodDays)
		elapsed++
	}

	return periodAt(cfg, start, elapsed), nil
}

// periodAt fills in the derived fields for the period with the given index.
func periodAt(cfg *model.ScheduleConfig, start time.Time, index int) model.MenuPeriod {
	pair := model.WeekPairFirst
	if index%2 != 0 {
		pair = model.WeekPairSecond
	}

	season := cfg.Season
	if cfg.SeasonChangeDate != nil && !start.Before(model.CivilDate(*cfg.SeasonChangeDate)) {
		season = season.Flip()
	}

	return model.MenuPeriod{
		PeriodStart: start,
		SendDate:    start.AddDate(0, 0, -cfg.LeadDays),
		WeekPair:    pair,
		Season:      season,
		Index:       index,
	}
}

// DaysBetween counts whole civil days from a to b. Unix seconds are used
// rather than time.Duration, which overflows past roughly 292 years.
func DaysBetween(a, b time.Time) int {
	return int((model.CivilDate(b).Unix() - model.CivilDate(a).Unix()) / secondsPerDay)
}

// floorDiv rounds toward negative infinity so dates before the anchor still
// land on the 14-day grid.
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
