package booking

import (
	"iter"
	"time"
)

// Window is a slot expressed in wall clock minutes.
type Window struct {
	Start TimeOfDay
	End   TimeOfDay
}

func (w Window) Label() string {
	return w.Start.String() + "-" + w.End.String()
}

// Slot is a concrete candidate. It is computed per query and never stored.
type Slot struct {
	Date   time.Time // midnight in the provider location
	Start  time.Time
	End    time.Time
	Window Window
}

// Label is the wall clock window, so a slot closing at midnight reads
// "23:00-24:00".
func (s Slot) Label() string {
	return s.Window.Label()
}

func (s Slot) Interval() Interval {
	return Interval{Start: s.Start, End: s.End}
}

// Generate yields contiguous windows of length duration from day.Start. A
// trailing remainder shorter than duration is not offered.
func Generate(day DaySchedule, duration time.Duration) iter.Seq[Window] {
	step := TimeOfDay(duration / time.Minute)
	return func(yield func(Window) bool) {
		if !day.Available || step <= 0 || day.Start >= day.End {
			return
		}
		for s := day.Start; s+step <= day.End; s += step {
			if !yield(Window{Start: s, End: s + step}) {
				return
			}
		}
	}
}

// GenerateRange walks from..to inclusive in the model's location and yields
// every slot on open days. Each range over the result starts afresh.
func GenerateRange(model Availability, from, to time.Time) iter.Seq[Slot] {
	loc := model.location()
	first := DateOf(from, loc)
	last := DateOf(to, loc)
	duration := model.ServiceDuration()

	return func(yield func(Slot) bool) {
		for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
			ds, ok := model.IsOpen(day)
			if !ok {
				continue
			}
			for w := range Generate(ds, duration) {
				slot, ok := slotOn(day, w, duration)
				if !ok {
					continue
				}
				if !yield(slot) {
					return
				}
			}
		}
	}
}

// SlotAt finds the generated slot on date matching start and end exactly.
func SlotAt(model Availability, date time.Time, start, end TimeOfDay) (Slot, bool) {
	day := DateOf(date, model.location())
	ds, ok := model.IsOpen(day)
	if !ok {
		return Slot{}, false
	}
	duration := model.ServiceDuration()
	for w := range Generate(ds, duration) {
		if w.Start == start && w.End == end {
			return slotOn(day, w, duration)
		}
		if w.Start > start {
			break
		}
	}
	return Slot{}, false
}

// slotOn places w on day. The end is start plus duration, so every slot has
// the full length even across a DST change. A start that falls in a
// spring-forward gap does not exist on that day and is not offered.
func slotOn(day time.Time, w Window, duration time.Duration) (Slot, bool) {
	start := w.Start.On(day)
	if TimeOfDay(start.Hour()*60+start.Minute()) != w.Start {
		return Slot{}, false
	}
	return Slot{Date: day, Start: start, End: start.Add(duration), Window: w}, true
}
