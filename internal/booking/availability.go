package booking

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	MinServiceDuration = 15
	MaxServiceDuration = 480
	MinLeadTimeHours   = 1
	MaxLeadTimeHours   = 168

	dateLayout = "2006-01-02"
	endOfDay   = TimeOfDay(24 * 60)
)

// TimeOfDay is a wall clock time as minutes after midnight. 24:00 is allowed
// as a closing time.
type TimeOfDay int

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("time %q must be HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 24 {
		return 0, fmt.Errorf("time %q has an invalid hour", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("time %q has an invalid minute", s)
	}
	if len(parts) == 3 {
		if sec, err := strconv.Atoi(parts[2]); err != nil || sec != 0 {
			return 0, fmt.Errorf("time %q must fall on a whole minute", s)
		}
	}
	t := TimeOfDay(h*60 + m)
	if t > endOfDay {
		return 0, fmt.Errorf("time %q is past midnight", s)
	}
	return t, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// On returns the instant t on the calendar day of date, in date's location.
func (t TimeOfDay) On(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, int(t)/60, int(t)%60, 0, 0, date.Location())
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*t = 0
		return nil
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// DaySchedule is one weekday's window. Start and End mean nothing when
// Available is false.
type DaySchedule struct {
	Available bool      `json:"available"`
	Start     TimeOfDay `json:"start"`
	End       TimeOfDay `json:"end"`
}

var weekdayOrder = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday,
}

func WeekdayName(d time.Weekday) string {
	return strings.ToLower(d.String())
}

func ParseWeekday(name string) (time.Weekday, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, d := range weekdayOrder {
		if WeekdayName(d) == n {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", name)
}

// WorkingHours maps a weekday to its window. Missing days are closed.
type WorkingHours map[time.Weekday]DaySchedule

func (w WorkingHours) Clone() WorkingHours {
	out := make(WorkingHours, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// WorkingDays is derived from the per day flags, Monday first.
func (w WorkingHours) WorkingDays() []string {
	days := make([]string, 0, len(w))
	for _, d := range weekdayOrder {
		if w[d].Available {
			days = append(days, WeekdayName(d))
		}
	}
	return days
}

func (w WorkingHours) MarshalJSON() ([]byte, error) {
	out := make(map[string]DaySchedule, len(weekdayOrder))
	for _, d := range weekdayOrder {
		out[WeekdayName(d)] = w[d]
	}
	return json.Marshal(out)
}

func (w *WorkingHours) UnmarshalJSON(b []byte) error {
	var raw map[string]DaySchedule
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make(WorkingHours, len(raw))
	for name, ds := range raw {
		d, err := ParseWeekday(name)
		if err != nil {
			return err
		}
		out[d] = ds
	}
	*w = out
	return nil
}

// DayEntry is the wire form of one weekday row as the admin form submits it.
type DayEntry struct {
	Day       string
	Available bool
	Start     string
	End       string
}

// ParseWorkingHours converts form rows into WorkingHours. Closed days may
// leave their times blank.
func ParseWorkingHours(entries []DayEntry) (WorkingHours, error) {
	problems := &ScheduleError{}
	out := make(WorkingHours, len(entries))

	for i, e := range entries {
		field := fmt.Sprintf("working_hours[%d]", i)
		d, err := ParseWeekday(e.Day)
		if err != nil {
			problems.add(field+".day", err.Error())
			continue
		}
		field = "working_hours." + WeekdayName(d)
		if _, dup := out[d]; dup {
			problems.add(field, "day listed more than once")
			continue
		}

		ds := DaySchedule{Available: e.Available}
		if e.Available || e.Start != "" {
			if ds.Start, err = ParseTimeOfDay(e.Start); err != nil && e.Available {
				problems.add(field+".start", err.Error())
			}
		}
		if e.Available || e.End != "" {
			if ds.End, err = ParseTimeOfDay(e.End); err != nil && e.Available {
				problems.add(field+".end", err.Error())
			}
		}
		out[d] = ds
	}

	if err := problems.orNil(); err != nil {
		return nil, err
	}
	return out, nil
}

// Availability is a provider's recurring weekly capacity.
type Availability struct {
	WorkingHours           WorkingHours
	AvgServiceDuration     int // minutes
	MinAdvanceBookingHours int
	Location               *time.Location
}

func (a Availability) Validate() error {
	problems := &ScheduleError{}

	for _, d := range weekdayOrder {
		ds, ok := a.WorkingHours[d]
		if !ok || !ds.Available {
			continue
		}
		if ds.Start >= ds.End {
			problems.add("working_hours."+WeekdayName(d), fmt.Sprintf("start %s must be before end %s", ds.Start, ds.End))
		}
	}
	if a.AvgServiceDuration < MinServiceDuration || a.AvgServiceDuration > MaxServiceDuration {
		problems.add("avg_service_duration",
			fmt.Sprintf("must be between %d and %d minutes", MinServiceDuration, MaxServiceDuration))
	}
	if a.MinAdvanceBookingHours < MinLeadTimeHours || a.MinAdvanceBookingHours > MaxLeadTimeHours {
		problems.add("min_advance_booking_hours",
			fmt.Sprintf("must be between %d and %d hours", MinLeadTimeHours, MaxLeadTimeHours))
	}

	return problems.orNil()
}

func (a Availability) location() *time.Location {
	if a.Location == nil {
		return time.UTC
	}
	return a.Location
}

func (a Availability) ServiceDuration() time.Duration {
	return time.Duration(a.AvgServiceDuration) * time.Minute
}

func (a Availability) LeadTime() time.Duration {
	return time.Duration(a.MinAdvanceBookingHours) * time.Hour
}

// EarliestStart is the first instant a slot may start when asked at now.
func (a Availability) EarliestStart(now time.Time) time.Time {
	return now.Add(a.LeadTime()).In(a.location())
}

// IsOpen resolves date, taken in the model's location, to its weekday window.
func (a Availability) IsOpen(date time.Time) (DaySchedule, bool) {
	ds, ok := a.WorkingHours[date.In(a.location()).Weekday()]
	if !ok || !ds.Available || ds.Start >= ds.End {
		return DaySchedule{}, false
	}
	return ds, true
}

// DateOf truncates t to midnight of its calendar day in loc.
func DateOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// CalendarDate keeps t's year, month and day and places midnight of that
// day in loc. Dates parsed without a zone are moved onto the provider's
// calendar this way.
func CalendarDate(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(dateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q must be YYYY-MM-DD", s)
	}
	return t, nil
}

// daysBetween counts calendar days from a to b. Elapsed hours would be off
// by one across a DST change.
func daysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	from := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	to := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from) / (24 * time.Hour))
}

func dateKey(t time.Time) string {
	return t.Format(dateLayout)
}

func sameDate(a, b time.Time) bool {
	return dateKey(a) == dateKey(b)
}
