// Package feed publishes upcoming menu periods as an iCalendar feed.
package feed

import (
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"

	"menucal/internal/mailer"
	"menucal/internal/model"
)

const (
	categoryPeriod = "MENU-PERIOD"
	categorySend   = "MENU-SEND"
	uidDomain      = "@menucal"
)

// Build renders one all-day event per period spanning its fourteen days and
// one all-day event on each send date. stamp becomes every DTSTAMP.
func Build(periods []model.MenuPeriod, stamp time.Time) string {
	cal := ical.NewCalendarFor("menucal")
	cal.SetMethod(ical.MethodPublish)
	cal.SetName("Menu rotation")
	cal.SetXWRCalName("Menu rotation")
	cal.SetCalscale("GREGORIAN")

	for _, p := range periods {
		start := p.PeriodStart.Format(model.DateLayout)

		ev := cal.AddEvent("period-" + start + uidDomain)
		ev.SetDtStampTime(stamp)
		ev.SetAllDayStartAt(p.PeriodStart)
		ev.SetAllDayEndAt(p.PeriodStart.AddDate(0, 0, 14))
		ev.SetSummary(fmt.Sprintf("%s menu weeks %s", p.Season.Title(), p.WeekPair))
		ev.SetDescription(fmt.Sprintf("%s (%s)", p.MenuType(), mailer.DateRange(p)))
		ev.AddCategory(categoryPeriod)

		send := cal.AddEvent("send-" + start + uidDomain)
		send.SetDtStampTime(stamp)
		send.SetAllDayStartAt(p.SendDate)
		send.SetAllDayEndAt(p.SendDate.AddDate(0, 0, 1))
		send.SetSummary("Send menu for " + mailer.DateRange(p))
		send.SetDescription(p.MenuType())
		send.AddCategory(categorySend)
	}

	return cal.Serialize()
}
