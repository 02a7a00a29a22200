package calendar

import (
	"math/rand"
	"testing"
	"time"
)

func ev(id string, y int, m time.Month, d, duration int, start string) Event {
	return Event{
		ID: id, Year: y, Month: int(m) - 1, Day: d, DurationDays: duration,
		StartTime: start, Title: id, Category: CategoryWork,
	}
}

func ids(events []Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.ID
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestMonthView_MultiDayEvent(t *testing.T) {
	events := []Event{ev("workshop", 2025, time.May, 7, 2, "")}
	days := EventsByDay(EventsForView(events, ViewMonth, day(2025, 5, 1)), 2025, 4)

	for _, d := range []int{7, 8} {
		if len(days[d]) != 1 {
			t.Errorf("expected the event on day %d, got %v", d, ids(days[d]))
		}
	}
	if len(days[9]) != 0 {
		t.Errorf("event must not appear on day 9, got %v", ids(days[9]))
	}
	if len(days[6]) != 0 {
		t.Errorf("event must not appear on day 6, got %v", ids(days[6]))
	}
}

func TestListView_ExcludesEventStartedBeforeMonth(t *testing.T) {
	events := []Event{
		ev("spill", 2025, time.April, 30, 2, ""), // active Apr 30 and May 1
		ev("first", 2025, time.May, 1, 1, ""),
	}
	got := ids(EventsForView(events, ViewList, day(2025, 5, 1)))
	if !equalIDs(got, []string{"first"}) {
		t.Errorf("list view should drop events starting before the month, got %v", got)
	}

	// Every other view keeps it.
	for _, v := range []View{ViewMonth, ViewWeek, ViewDay} {
		got := ids(EventsForView(events, v, day(2025, 5, 1)))
		if len(got) != 2 {
			t.Errorf("%s view should keep the overlapping event, got %v", v, got)
		}
	}
}

func TestListView_IsUnboundedAndSorted(t *testing.T) {
	events := []Event{
		ev("late", 2026, time.January, 3, 1, "08:00"),
		ev("b", 2025, time.May, 20, 1, "10:00"),
		ev("a", 2025, time.May, 20, 1, ""),
		ev("c", 2025, time.May, 2, 1, "23:00"),
	}
	got := ids(EventsForView(events, ViewList, day(2025, 5, 14)))
	if !equalIDs(got, []string{"c", "a", "b", "late"}) {
		t.Errorf("unexpected list order %v", got)
	}
}

func TestWeekView_SortsAllDayAsMidnight(t *testing.T) {
	events := []Event{
		ev("nine", 2025, time.May, 6, 1, "09:00"),
		ev("allday", 2025, time.May, 8, 1, ""),
		ev("midnight", 2025, time.May, 5, 1, "00:00"),
		ev("early", 2025, time.May, 7, 1, "07:15"),
	}
	got := ids(EventsForView(events, ViewWeek, day(2025, 5, 7)))
	// "allday" and "midnight" share the 00:00 key and keep input order.
	if !equalIDs(got, []string{"allday", "midnight", "early", "nine"}) {
		t.Errorf("unexpected week order %v", got)
	}
}

func TestDayView_AllDayFirst(t *testing.T) {
	events := []Event{
		ev("nine", 2025, time.May, 7, 1, "09:00"),
		ev("allday", 2025, time.May, 7, 1, ""),
	}
	got := ids(EventsForView(events, ViewDay, day(2025, 5, 7)))
	if !equalIDs(got, []string{"allday", "nine"}) {
		t.Errorf("all-day event should sort first, got %v", got)
	}
}

func TestSortIsStable(t *testing.T) {
	events := []Event{
		ev("x1", 2025, time.May, 7, 1, "09:00"),
		ev("y1", 2025, time.May, 7, 1, ""),
		ev("x2", 2025, time.May, 7, 1, "09:00"),
		ev("y2", 2025, time.May, 7, 1, ""),
		ev("x3", 2025, time.May, 7, 1, "09:00"),
	}
	got := ids(EventsForView(events, ViewDay, day(2025, 5, 7)))
	if !equalIDs(got, []string{"y1", "y2", "x1", "x2", "x3"}) {
		t.Errorf("day sort not stable: %v", got)
	}
	cells := EventsByDay(events, 2025, 4)
	if !equalIDs(ids(cells[7]), []string{"y1", "y2", "x1", "x2", "x3"}) {
		t.Errorf("month cell sort not stable: %v", ids(cells[7]))
	}
}

func TestFilterCategory(t *testing.T) {
	events := []Event{
		{ID: "w", Category: CategoryWork},
		{ID: "p", Category: CategoryPersonal},
		{ID: "a", Category: CategoryAppointments},
		{ID: "x", Category: "custom"},
	}
	if got := FilterCategory(events, CategoryAll); len(got) != 4 {
		t.Errorf("all should keep everything, got %v", ids(got))
	}
	if got := FilterCategory(events, ""); len(got) != 4 {
		t.Errorf("empty should keep everything, got %v", ids(got))
	}
	if got := ids(FilterCategory(events, CategoryAppointments)); !equalIDs(got, []string{"a"}) {
		t.Errorf("expected only appointments, got %v", got)
	}
	if got := ids(FilterCategory(events, "custom")); !equalIDs(got, []string{"x"}) {
		t.Errorf("open categories should filter too, got %v", got)
	}
}

func TestEventsForView_DoesNotModifyInput(t *testing.T) {
	events := []Event{
		ev("b", 2025, time.May, 7, 1, "10:00"),
		ev("a", 2025, time.May, 7, 1, "08:00"),
	}
	EventsForView(events, ViewDay, day(2025, 5, 7))
	if events[0].ID != "b" {
		t.Error("input slice was reordered")
	}
}

func TestIsTodayInView_Week(t *testing.T) {
	ref := day(2025, 5, 7) // week of Sun May 4 .. Sat May 10
	for d := 4; d <= 10; d++ {
		if !IsTodayInView(ViewWeek, ref, day(2025, 5, d)) {
			t.Errorf("May %d should be in view", d)
		}
	}
	if IsTodayInView(ViewWeek, ref, day(2025, 5, 11)) {
		t.Error("the day after the week must not be in view")
	}
	if IsTodayInView(ViewWeek, ref, day(2025, 5, 3)) {
		t.Error("the day before the week must not be in view")
	}
}

func TestIsTodayInView(t *testing.T) {
	ref := day(2025, 5, 14)
	tests := []struct {
		name  string
		view  View
		today time.Time
		want  bool
	}{
		{"month same month", ViewMonth, day(2025, 5, 31), true},
		{"month other year", ViewMonth, day(2024, 5, 14), false},
		{"day same", ViewDay, ref.Add(15 * time.Hour), true},
		{"day next", ViewDay, day(2025, 5, 15), false},
		{"list later", ViewList, day(2027, 1, 1), true},
		{"list first", ViewList, day(2025, 5, 1), true},
		{"list before", ViewList, day(2025, 4, 30), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTodayInView(tt.view, ref, tt.today); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNavigation(t *testing.T) {
	ref := day(2025, 5, 14)
	tests := []struct {
		view       View
		next, prev time.Time
	}{
		{ViewMonth, day(2025, 6, 1), day(2025, 4, 1)},
		{ViewList, day(2025, 6, 1), day(2025, 4, 1)},
		{ViewWeek, day(2025, 5, 21), day(2025, 5, 7)},
		{ViewDay, day(2025, 5, 15), day(2025, 5, 13)},
	}
	for _, tt := range tests {
		t.Run(string(tt.view), func(t *testing.T) {
			if got := Next(tt.view, ref); !got.Equal(tt.next) {
				t.Errorf("next = %s, want %s", got.Format(DateLayout), tt.next.Format(DateLayout))
			}
			if got := Previous(tt.view, ref); !got.Equal(tt.prev) {
				t.Errorf("previous = %s, want %s", got.Format(DateLayout), tt.prev.Format(DateLayout))
			}
		})
	}
}

func TestNavigation_RoundTrip(t *testing.T) {
	refs := []time.Time{day(2025, 5, 1), day(2025, 1, 1), day(2024, 12, 1), day(2024, 2, 1)}
	for _, v := range []View{ViewMonth, ViewWeek, ViewDay, ViewList} {
		for _, ref := range refs {
			if got := Previous(v, Next(v, ref)); !got.Equal(ref) {
				t.Errorf("%s: next then previous from %s gave %s", v, ref.Format(DateLayout), got.Format(DateLayout))
			}
			if got := Next(v, Previous(v, ref)); !got.Equal(ref) {
				t.Errorf("%s: previous then next from %s gave %s", v, ref.Format(DateLayout), got.Format(DateLayout))
			}
		}
	}
	// Week and day views round-trip from any day.
	mid := day(2025, 3, 31)
	for _, v := range []View{ViewWeek, ViewDay} {
		if got := Previous(v, Next(v, mid)); !got.Equal(mid) {
			t.Errorf("%s: round trip from %s gave %s", v, mid.Format(DateLayout), got.Format(DateLayout))
		}
	}
}

func randomEvent(r *rand.Rand, id string) Event {
	start := day(2025, 1, 1).AddDate(0, 0, r.Intn(365))
	dur := 1
	if r.Intn(3) == 0 {
		dur = 1 + r.Intn(40)
	}
	var clock string
	if r.Intn(2) == 0 {
		clock = time.Date(0, 1, 1, r.Intn(24), r.Intn(4)*15, 0, 0, time.UTC).Format("15:04")
	}
	return Event{
		ID: id, Year: start.Year(), Month: int(start.Month()) - 1, Day: start.Day(),
		DurationDays: dur, StartTime: clock, Category: EventCategories[r.Intn(len(EventCategories))],
	}
}

// activeInWindow enumerates the window day by day as an independent oracle.
func activeInWindow(e Event, w Window) bool {
	for d := w.Start; d.Before(*w.End); d = AddDays(d, 1) {
		if e.ActiveOn(d) {
			return true
		}
	}
	return false
}

func TestEventsForView_Property(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for iter := 0; iter < 200; iter++ {
		events := make([]Event, 30)
		for i := range events {
			events[i] = randomEvent(r, string(rune('a'+i)))
		}
		ref := day(2025, 1, 1).AddDate(0, 0, r.Intn(365))

		for _, v := range []View{ViewMonth, ViewWeek, ViewDay} {
			w := WindowFor(v, ref)
			got := make(map[string]bool)
			for _, e := range EventsForView(events, v, ref) {
				got[e.ID] = true
			}
			for _, e := range events {
				start, end := e.Range()
				want := start.Before(*w.End) && end.After(w.Start)
				if got[e.ID] != want {
					t.Fatalf("%s view ref %s: event %+v included=%v want %v", v, ref.Format(DateLayout), e, got[e.ID], want)
				}
				if want != activeInWindow(e, w) {
					t.Fatalf("overlap predicate disagrees with day enumeration for %+v", e)
				}
			}
		}

		list := EventsForView(events, ViewList, ref)
		first := FirstOfMonth(ref)
		for _, e := range list {
			if start, _ := e.Range(); start.Before(first) {
				t.Fatalf("list view included %+v starting before %s", e, first.Format(DateLayout))
			}
		}
	}
}

func TestEventsByDay_Property(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for iter := 0; iter < 100; iter++ {
		events := make([]Event, 25)
		for i := range events {
			events[i] = randomEvent(r, string(rune('A'+i)))
		}
		ref := day(2025, time.Month(1+r.Intn(12)), 1)
		year, month := ref.Year(), int(ref.Month())-1
		visible := EventsForView(events, ViewMonth, ref)
		days := EventsByDay(visible, year, month)

		union := make(map[string]bool)
		for d, cell := range days {
			if d < 1 || d > DaysInMonth(year, month) {
				t.Fatalf("day %d outside month", d)
			}
			for _, e := range cell {
				if !e.ActiveOn(Date(year, month, d)) {
					t.Fatalf("event %s shown on day %d outside its range", e.ID, d)
				}
				union[e.ID] = true
			}
		}
		if len(union) != len(visible) {
			t.Fatalf("union of day cells has %d events, month view has %d", len(union), len(visible))
		}
		for _, e := range visible {
			if !union[e.ID] {
				t.Fatalf("event %s missing from day cells", e.ID)
			}
		}
	}
}
