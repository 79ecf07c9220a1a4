package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrProviderNotFound = errors.New("provider not found")
	ErrBookingNotFound  = errors.New("booking not found")
)

type ProviderFilter struct {
	City     string
	Category string
	Limit    int
	Offset   int
}

type ScheduleUpdate struct {
	WorkingHours           WorkingHours
	AvgServiceDuration     int
	MinAdvanceBookingHours int
}

// ClaimParams describes one slot claim. CountOn is the provider's "today"
// when the slot falls on it, nil otherwise.
type ClaimParams struct {
	ProviderID  uuid.UUID
	ServiceDate time.Time
	Start       time.Time
	End         time.Time
	TimeSlot    string
	OrderRef    *string
	ServiceID   *uuid.UUID
	Notes       *string
	CountOn     *time.Time
}

type TransitionParams struct {
	BookingID uuid.UUID
	From      Status
	To        Status
	At        time.Time
	Rating    *int
	Reason    *string
}

// Repository contains all storage interactions needed by the service.
type Repository interface {
	GetProvider(ctx context.Context, id uuid.UUID) (*Provider, error)
	ListProviders(ctx context.Context, filter ProviderFilter) ([]Provider, error)
	CreateProvider(ctx context.Context, p Provider) (*Provider, error)
	DeleteProvider(ctx context.Context, id uuid.UUID) error
	UpdateSchedule(ctx context.Context, id uuid.UUID, upd ScheduleUpdate) (*Provider, error)
	UpdateAvailabilityStatus(ctx context.Context, id uuid.UUID, status AvailabilityStatus) (*Provider, error)

	GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error)
	// ListBookings returns every booking whose service date falls in
	// [from, to], ordered by start.
	ListBookings(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]Booking, error)

	// ClaimBooking checks the daily cap and overlap, inserts a scheduled
	// booking and bumps the daily counter as one atomic unit.
	ClaimBooking(ctx context.Context, p ClaimParams) (*Booking, error)
	// TransitionBooking moves a booking from p.From to p.To only if it is
	// still in p.From, applying provider counter effects atomically.
	TransitionBooking(ctx context.Context, p TransitionParams) (*Booking, error)

	// ResetDailyCounters zeroes counters whose date is before the
	// provider's local date at now.
	ResetDailyCounters(ctx context.Context, now time.Time) (int64, error)

	InsertEvent(ctx context.Context, ev EventLog) error
}
