package booking

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Active bookings hold their slot.
func (s Status) Active() bool {
	return s == StatusScheduled || s == StatusInProgress
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type AvailabilityStatus string

const (
	ProviderAvailable AvailabilityStatus = "available"
	ProviderBusy      AvailabilityStatus = "busy"
	ProviderOffline   AvailabilityStatus = "offline"
)

func (s AvailabilityStatus) Valid() bool {
	switch s {
	case ProviderAvailable, ProviderBusy, ProviderOffline:
		return true
	}
	return false
}

type Provider struct {
	ID                     uuid.UUID
	Name                   string
	Category               string
	City                   string
	Area                   string
	ServiceCharge          decimal.Decimal
	MaxDailyOrders         int
	DailyOrdersCount       int
	DailyOrdersDate        time.Time
	TotalOrdersCompleted   int
	RatedOrders            int
	Rating                 decimal.Decimal
	AvailabilityStatus     AvailabilityStatus
	WorkingHours           WorkingHours
	AvgServiceDuration     int
	MinAdvanceBookingHours int
	Timezone               string
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

func (p *Provider) Location() *time.Location {
	if p.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (p *Provider) Availability() Availability {
	return Availability{
		WorkingHours:           p.WorkingHours,
		AvgServiceDuration:     p.AvgServiceDuration,
		MinAdvanceBookingHours: p.MinAdvanceBookingHours,
		Location:               p.Location(),
	}
}

func (p *Provider) WorkingDays() []string {
	return p.WorkingHours.WorkingDays()
}

type Booking struct {
	ID           uuid.UUID
	ProviderID   uuid.UUID
	ServiceID    *uuid.UUID
	OrderRef     *string
	ServiceDate  time.Time
	StartTime    time.Time
	EndTime      time.Time
	TimeSlot     string
	Status       Status
	Notes        *string
	CountedOn    *time.Time // daily counter date this booking was added to
	Rating       *int
	CancelReason *string
	StartedAt    *time.Time
	CompletedAt  *time.Time
	CancelledAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (b *Booking) Interval() Interval {
	return Interval{Start: b.StartTime, End: b.EndTime}
}

type EventLog struct {
	ID         int64
	EventType  string
	ProviderID *uuid.UUID
	BookingID  *uuid.UUID
	Payload    []byte
	CreatedAt  time.Time
}

const (
	EventBookingScheduled      = "BOOKING_SCHEDULED"
	EventBookingStarted        = "BOOKING_STARTED"
	EventBookingCompleted      = "BOOKING_COMPLETED"
	EventBookingCancelled      = "BOOKING_CANCELLED"
	EventWorkingHoursUpdated   = "WORKING_HOURS_UPDATED"
	EventProviderStatusChanged = "PROVIDER_STATUS_CHANGED"
	EventProviderCreated       = "PROVIDER_CREATED"
	EventProviderDeleted       = "PROVIDER_DELETED"
)

// RunningRating folds one more score into an average over rated bookings.
func RunningRating(current decimal.Decimal, rated, score int) decimal.Decimal {
	total := current.Mul(decimal.NewFromInt(int64(rated))).Add(decimal.NewFromInt(int64(score)))
	return total.Div(decimal.NewFromInt(int64(rated + 1))).Round(2)
}
