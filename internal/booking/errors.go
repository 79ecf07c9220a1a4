package booking

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	ErrInvalidSchedule   = errors.New("invalid schedule")
	ErrSlotUnavailable   = errors.New("slot unavailable")
	ErrCapacityExceeded  = errors.New("daily capacity exceeded")
	ErrLeadTimeViolation = errors.New("booking is inside the minimum lead time")
	ErrInvalidTransition = errors.New("invalid status transition")

	ErrInvalidRange  = errors.New("invalid date range")
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
)

// ScheduleError collects every problem found in an availability input, keyed
// by field name.
type ScheduleError struct {
	Fields map[string]string
}

func (e *ScheduleError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid schedule: " + strings.Join(parts, "; ")
}

func (e *ScheduleError) Unwrap() error { return ErrInvalidSchedule }

func (e *ScheduleError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, seen := e.Fields[field]; !seen {
		e.Fields[field] = msg
	}
}

func (e *ScheduleError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

type CapacityError struct {
	Date           time.Time
	MaxDailyOrders int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("daily capacity of %d bookings reached for %s", e.MaxDailyOrders, e.Date.Format(dateLayout))
}

func (e *CapacityError) Unwrap() error { return ErrCapacityExceeded }

type LeadTimeError struct {
	MinAdvanceBookingHours int
	EarliestStart          time.Time
}

func (e *LeadTimeError) Error() string {
	return fmt.Sprintf("bookings need at least %dh notice, earliest start is %s",
		e.MinAdvanceBookingHours, e.EarliestStart.Format(time.RFC3339))
}

func (e *LeadTimeError) Unwrap() error { return ErrLeadTimeViolation }

type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move booking from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

func slotUnavailable(reason string) error {
	return fmt.Errorf("%w: %s", ErrSlotUnavailable, reason)
}
