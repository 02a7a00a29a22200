package calendar

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-ical"
)

const icsProductID = "-//HMS//Doctor Calendar//EN"

// EncodeICS writes events as an iCalendar document. All-day events use DATE
// values with an exclusive end day; timed events use UTC DATE-TIME values.
func EncodeICS(w io.Writer, events []Event, stamp time.Time) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, icsProductID)

	for _, e := range events {
		cal.Children = append(cal.Children, eventToICS(e, stamp).Component)
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("encode calendar: %w", err)
	}
	return nil
}

func eventToICS(e Event, stamp time.Time) *ical.Event {
	vevent := ical.NewEvent()
	vevent.Props.SetText(ical.PropUID, e.ID+"@hms")
	vevent.Props.SetText(ical.PropSummary, strings.TrimSpace(e.Emoji+" "+e.Title))
	if e.Category != "" {
		vevent.Props.SetText(ical.PropCategories, string(e.Category))
	}
	vevent.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())

	start, end := e.Range()
	if e.AllDay() {
		vevent.Props.SetDate(ical.PropDateTimeStart, start)
		vevent.Props.SetDate(ical.PropDateTimeEnd, end)
		return vevent
	}

	from := atClock(start, e.StartTime)
	to := end
	if e.EndTime != "" {
		if t := atClock(AddDays(end, -1), e.EndTime); t.After(from) {
			to = t
		}
	}
	vevent.Props.SetDateTime(ical.PropDateTimeStart, from)
	vevent.Props.SetDateTime(ical.PropDateTimeEnd, to)
	return vevent
}

// atClock places an "HH:MM" time of day on a civil date.
func atClock(day time.Time, hhmm string) time.Time {
	parts := strings.SplitN(hhmm, ":", 2)
	if len(parts) != 2 {
		return day
	}
	h, _ := strconv.Atoi(parts[0])
	m, _ := strconv.Atoi(parts[1])
	return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}
