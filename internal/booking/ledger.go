package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Interval is a half-open span [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two half-open intervals share any instant.
// Touching intervals do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

func OverlapsAny(candidate Interval, occupied []Interval) bool {
	for _, o := range occupied {
		if Overlaps(candidate, o) {
			return true
		}
	}
	return false
}

// OccupiedIntervals keeps the bookings that still hold their slot.
func OccupiedIntervals(bookings []Booking) []Interval {
	out := make([]Interval, 0, len(bookings))
	for i := range bookings {
		if bookings[i].Status.Active() {
			out = append(out, bookings[i].Interval())
		}
	}
	return out
}

// CountTowardsCap counts bookings that are not cancelled.
func CountTowardsCap(bookings []Booking) int {
	n := 0
	for i := range bookings {
		if bookings[i].Status != StatusCancelled {
			n++
		}
	}
	return n
}

// Ledger answers occupancy questions for one provider from the booking store.
type Ledger struct {
	repo Repository
}

func NewLedger(repo Repository) *Ledger {
	return &Ledger{repo: repo}
}

func (l *Ledger) OccupiedSlots(ctx context.Context, providerID uuid.UUID, date time.Time) ([]Interval, error) {
	bookings, err := l.repo.ListBookings(ctx, providerID, date, date)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return OccupiedIntervals(bookings), nil
}

func (l *Ledger) DailyCount(ctx context.Context, providerID uuid.UUID, date time.Time) (int, error) {
	bookings, err := l.repo.ListBookings(ctx, providerID, date, date)
	if err != nil {
		return 0, fmt.Errorf("list bookings: %w", err)
	}
	return CountTowardsCap(bookings), nil
}

// Snapshot reads a date range once and groups it by service date.
func (l *Ledger) Snapshot(ctx context.Context, providerID uuid.UUID, from, to time.Time) (Snapshot, error) {
	bookings, err := l.repo.ListBookings(ctx, providerID, from, to)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list bookings: %w", err)
	}
	return NewSnapshot(bookings), nil
}

type Snapshot struct {
	occupied map[string][]Interval
	counts   map[string]int
}

func NewSnapshot(bookings []Booking) Snapshot {
	s := Snapshot{
		occupied: make(map[string][]Interval),
		counts:   make(map[string]int),
	}
	for i := range bookings {
		b := &bookings[i]
		key := dateKey(b.ServiceDate)
		if b.Status != StatusCancelled {
			s.counts[key]++
		}
		if b.Status.Active() {
			s.occupied[key] = append(s.occupied[key], b.Interval())
		}
	}
	return s
}

func (s Snapshot) Occupied(date time.Time) []Interval {
	return s.occupied[dateKey(date)]
}

func (s Snapshot) Count(date time.Time) int {
	return s.counts[dateKey(date)]
}
