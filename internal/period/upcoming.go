package period

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"menucal/internal/model"
)

const maxUpcoming = 104

// Upcoming lists count consecutive periods starting with NextPeriod(today).
// Period starts are generated as a DAILY;INTERVAL=14 recurrence rooted at
// the next period start.
func Upcoming(today time.Time, cfg *model.ScheduleConfig, count int) ([]model.MenuPeriod, error) {
	first, err := NextPeriod(today, cfg)
	if err != nil {
		return nil, err
	}
	if count <= 0 {
		return []model.MenuPeriod{}, nil
	}
	if count > maxUpcoming {
		count = maxUpcoming
	}

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:     rrule.DAILY,
		Interval: PeriodDays,
		Dtstart:  first.PeriodStart,
		Count:    count,
	})
	if err != nil {
		return nil, fmt.Errorf("period: build recurrence: %w", err)
	}

	starts := rule.All()
	out := make([]model.MenuPeriod, 0, len(starts))
	for i, start := range starts {
		out = append(out, periodAt(cfg, model.CivilDate(start), first.Index+i))
	}
	return out, nil
}
