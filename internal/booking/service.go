package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/hackgods/service-provider-scheduling/internal/config"
	"github.com/hackgods/service-provider-scheduling/internal/metrics"
	redisclient "github.com/hackgods/service-provider-scheduling/internal/redis"
)

var schedulingTracer = otel.Tracer("boilerparts.internal.booking")

const maxScheduleRangeDays = 366

type Service struct {
	repo    Repository
	ledger  *Ledger
	locker  redisclient.Locker
	cfg     config.Config
	logger  *zap.Logger
	metrics *metrics.SchedulingMetrics
	now     func() time.Time
}

type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithMetrics(m *metrics.SchedulingMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock replaces time.Now, mostly for tests around lead time.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func NewService(repo Repository, locker redisclient.Locker, cfg config.Config, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		ledger: NewLedger(repo),
		locker: locker,
		cfg:    cfg,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewProvider is the admin input for registering a provider.
type NewProvider struct {
	Name                   string
	Category               string
	City                   string
	Area                   string
	ServiceCharge          decimal.Decimal
	MaxDailyOrders         int
	Timezone               string
	WorkingHours           []DayEntry
	AvgServiceDuration     int
	MinAdvanceBookingHours int
}

func (s *Service) CreateProvider(ctx context.Context, in NewProvider) (*Provider, error) {
	problems := &ScheduleError{}

	tz := strings.TrimSpace(in.Timezone)
	if tz == "" {
		tz = s.cfg.DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		problems.add("timezone", fmt.Sprintf("unknown time zone %q", tz))
		loc = time.UTC
	}
	if in.MaxDailyOrders < 1 {
		problems.add("max_daily_orders", "must be at least 1")
	}
	if in.ServiceCharge.IsNegative() {
		problems.add("service_charge", "must not be negative")
	}

	hours, err := ParseWorkingHours(in.WorkingHours)
	mergeScheduleError(problems, err)
	if err == nil {
		model := Availability{
			WorkingHours:           hours,
			AvgServiceDuration:     in.AvgServiceDuration,
			MinAdvanceBookingHours: in.MinAdvanceBookingHours,
			Location:               loc,
		}
		mergeScheduleError(problems, model.Validate())
	}
	if err := problems.orNil(); err != nil {
		return nil, err
	}

	created, err := s.repo.CreateProvider(ctx, Provider{
		Name:                   strings.TrimSpace(in.Name),
		Category:               strings.TrimSpace(in.Category),
		City:                   strings.TrimSpace(in.City),
		Area:                   strings.TrimSpace(in.Area),
		ServiceCharge:          in.ServiceCharge,
		MaxDailyOrders:         in.MaxDailyOrders,
		AvailabilityStatus:     ProviderAvailable,
		WorkingHours:           hours,
		AvgServiceDuration:     in.AvgServiceDuration,
		MinAdvanceBookingHours: in.MinAdvanceBookingHours,
		Timezone:               tz,
	})
	if err != nil {
		return nil, fmt.Errorf("create provider: %w", err)
	}

	s.logEvent(ctx, EventProviderCreated, &created.ID, nil, map[string]any{
		"name":     created.Name,
		"category": created.Category,
	})
	return created, nil
}

func (s *Service) GetProvider(ctx context.Context, id uuid.UUID) (*Provider, error) {
	p, err := s.repo.GetProvider(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get provider: %w", err)
	}
	return p, nil
}

func (s *Service) ListProviders(ctx context.Context, filter ProviderFilter) ([]Provider, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20 // default
	}
	if filter.Limit > 100 {
		filter.Limit = 100 // max
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	providers, err := s.repo.ListProviders(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	return providers, nil
}

func (s *Service) DeleteProvider(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteProvider(ctx, id); err != nil {
		return fmt.Errorf("delete provider: %w", err)
	}
	s.logEvent(ctx, EventProviderDeleted, &id, nil, map[string]any{})
	return nil
}

// WorkingHoursInput mirrors the admin working hours form. WorkingDays is
// accepted for compatibility and ignored; it is always derived.
type WorkingHoursInput struct {
	WorkingHours           []DayEntry
	WorkingDays            []string
	AvgServiceDuration     int
	MinAdvanceBookingHours int
}

func (s *Service) UpdateWorkingHours(ctx context.Context, id uuid.UUID, in WorkingHoursInput) (*Provider, error) {
	current, err := s.repo.GetProvider(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get provider: %w", err)
	}

	hours, err := ParseWorkingHours(in.WorkingHours)
	if err != nil {
		return nil, err
	}
	model := Availability{
		WorkingHours:           hours,
		AvgServiceDuration:     in.AvgServiceDuration,
		MinAdvanceBookingHours: in.MinAdvanceBookingHours,
		Location:               current.Location(),
	}
	if err := model.Validate(); err != nil {
		return nil, err
	}

	derived := hours.WorkingDays()
	if in.WorkingDays != nil && !sameDays(in.WorkingDays, derived) {
		s.logger.Warn("submitted working_days disagree with working_hours, using derived days",
			zap.String("provider_id", id.String()),
			zap.Strings("submitted", in.WorkingDays),
			zap.Strings("derived", derived),
		)
	}

	updated, err := s.repo.UpdateSchedule(ctx, id, ScheduleUpdate{
		WorkingHours:           hours,
		AvgServiceDuration:     in.AvgServiceDuration,
		MinAdvanceBookingHours: in.MinAdvanceBookingHours,
	})
	if err != nil {
		return nil, fmt.Errorf("update schedule: %w", err)
	}

	s.logEvent(ctx, EventWorkingHoursUpdated, &id, nil, map[string]any{
		"working_days":              derived,
		"avg_service_duration":      in.AvgServiceDuration,
		"min_advance_booking_hours": in.MinAdvanceBookingHours,
	})
	return updated, nil
}

func (s *Service) SetAvailabilityStatus(ctx context.Context, id uuid.UUID, status AvailabilityStatus) (*Provider, error) {
	if !status.Valid() {
		return nil, &ScheduleError{Fields: map[string]string{
			"availability_status": "must be one of available, busy, offline",
		}}
	}
	updated, err := s.repo.UpdateAvailabilityStatus(ctx, id, status)
	if err != nil {
		return nil, fmt.Errorf("update availability status: %w", err)
	}
	s.logEvent(ctx, EventProviderStatusChanged, &id, nil, map[string]any{"availability_status": status})
	return updated, nil
}

// FreeSlots lists the slots between from and to (calendar dates, inclusive)
// that a claim made now could win.
func (s *Service) FreeSlots(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]Slot, error) {
	ctx, span := schedulingTracer.Start(ctx, "booking.free_slots",
		trace.WithAttributes(attribute.String("provider.id", providerID.String())))
	defer span.End()

	started := time.Now()
	defer func() { s.metrics.ObserveFreeSlots(time.Since(started).Seconds()) }()

	provider, err := s.repo.GetProvider(ctx, providerID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("get provider: %w", err)
	}

	model := provider.Availability()
	first, last, err := s.dateRange(from, to, model.location(), s.cfg.MaxSlotRangeDays)
	if err != nil {
		return nil, err
	}

	slots := []Slot{}
	if provider.AvailabilityStatus == ProviderOffline {
		return slots, nil
	}

	snap, err := s.ledger.Snapshot(ctx, providerID, first, last)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	earliest := model.EarliestStart(s.now())
	for slot := range GenerateRange(model, first, last) {
		if slot.Start.Before(earliest) {
			continue
		}
		if provider.MaxDailyOrders > 0 && snap.Count(slot.Date) >= provider.MaxDailyOrders {
			continue
		}
		if OverlapsAny(slot.Interval(), snap.Occupied(slot.Date)) {
			continue
		}
		slots = append(slots, slot)
	}

	span.SetAttributes(attribute.Int("slots.free", len(slots)))
	return slots, nil
}

// SlotRequest names one slot of a provider by calendar date and wall clock
// window.
type SlotRequest struct {
	ProviderID uuid.UUID
	Date       time.Time
	Start      TimeOfDay
	End        TimeOfDay
}

// CheckAvailability runs the claim checks without writing. A nil error means
// a claim made now would be accepted, barring a race.
func (s *Service) CheckAvailability(ctx context.Context, req SlotRequest) error {
	provider, slot, err := s.resolveSlot(ctx, req)
	if err != nil {
		return err
	}

	snap, err := s.ledger.Snapshot(ctx, provider.ID, slot.Date, slot.Date)
	if err != nil {
		return err
	}
	if provider.MaxDailyOrders > 0 && snap.Count(slot.Date) >= provider.MaxDailyOrders {
		return &CapacityError{Date: slot.Date, MaxDailyOrders: provider.MaxDailyOrders}
	}
	if OverlapsAny(slot.Interval(), snap.Occupied(slot.Date)) {
		return slotUnavailable("overlaps an existing booking")
	}
	return nil
}

type ClaimRequest struct {
	SlotRequest
	OrderRef  *string
	ServiceID *uuid.UUID
	Notes     *string
}

// ClaimSlot books a slot. The capacity check, overlap check, insert and
// counter update happen as one unit in the repository; the slot lock only
// turns identical concurrent claims away early.
func (s *Service) ClaimSlot(ctx context.Context, req ClaimRequest) (*Booking, error) {
	ctx, span := schedulingTracer.Start(ctx, "booking.claim_slot",
		trace.WithAttributes(attribute.String("provider.id", req.ProviderID.String())))
	defer span.End()

	created, err := s.claim(ctx, req)
	result := resultLabel(err)
	s.metrics.ObserveClaim(result)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, result)
		return nil, err
	}

	span.SetAttributes(attribute.String("booking.id", created.ID.String()))
	s.logEvent(ctx, EventBookingScheduled, &created.ProviderID, &created.ID, map[string]any{
		"service_date": dateKey(created.ServiceDate),
		"time_slot":    created.TimeSlot,
		"order_ref":    created.OrderRef,
	})
	return created, nil
}

func (s *Service) claim(ctx context.Context, req ClaimRequest) (*Booking, error) {
	provider, slot, err := s.resolveSlot(ctx, req.SlotRequest)
	if err != nil {
		return nil, err
	}

	params := ClaimParams{
		ProviderID:  provider.ID,
		ServiceDate: slot.Date,
		Start:       slot.Start,
		End:         slot.End,
		TimeSlot:    slot.Label(),
		OrderRef:    req.OrderRef,
		ServiceID:   req.ServiceID,
		Notes:       req.Notes,
	}
	if today := DateOf(s.now(), slot.Date.Location()); sameDate(slot.Date, today) {
		params.CountOn = &today
	}

	if s.locker == nil {
		return s.repo.ClaimBooking(ctx, params)
	}

	var created *Booking
	key := redisclient.SlotKey{ProviderID: provider.ID, Start: slot.Start}
	err = s.locker.WithSlotLock(ctx, key, func(lockCtx context.Context) error {
		b, err := s.repo.ClaimBooking(lockCtx, params)
		if err != nil {
			return err
		}
		created = b
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, slotUnavailable("another claim for this slot is in progress")
		}
		return nil, err
	}
	return created, nil
}

// resolveSlot loads the provider and checks that the requested window is one
// of its generated slots and outside the lead time.
func (s *Service) resolveSlot(ctx context.Context, req SlotRequest) (*Provider, Slot, error) {
	provider, err := s.repo.GetProvider(ctx, req.ProviderID)
	if err != nil {
		return nil, Slot{}, fmt.Errorf("get provider: %w", err)
	}
	if provider.AvailabilityStatus == ProviderOffline {
		return nil, Slot{}, slotUnavailable("provider is offline")
	}

	model := provider.Availability()
	date := CalendarDate(req.Date, model.location())
	slot, ok := SlotAt(model, date, req.Start, req.End)
	if !ok {
		label := Window{Start: req.Start, End: req.End}.Label()
		return nil, Slot{}, slotUnavailable(fmt.Sprintf("%s on %s is not a bookable slot", label, dateKey(date)))
	}

	earliest := model.EarliestStart(s.now())
	if slot.Start.Before(earliest) {
		return nil, Slot{}, &LeadTimeError{
			MinAdvanceBookingHours: model.MinAdvanceBookingHours,
			EarliestStart:          earliest,
		}
	}
	return provider, slot, nil
}

func (s *Service) GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	b, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

// Schedule returns every booking of a provider between two calendar dates.
func (s *Service) Schedule(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]Booking, error) {
	provider, err := s.repo.GetProvider(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("get provider: %w", err)
	}
	first, last, err := s.dateRange(from, to, provider.Location(), maxScheduleRangeDays)
	if err != nil {
		return nil, err
	}
	bookings, err := s.repo.ListBookings(ctx, providerID, first, last)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return bookings, nil
}

func (s *Service) StartBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return s.transition(ctx, id, StatusInProgress, nil, nil)
}

// CompleteBooking finishes a booking. A non-nil rating (1-5) is folded into
// the provider's running average.
func (s *Service) CompleteBooking(ctx context.Context, id uuid.UUID, rating *int) (*Booking, error) {
	if rating != nil && (*rating < 1 || *rating > 5) {
		return nil, ErrInvalidRating
	}
	return s.transition(ctx, id, StatusCompleted, rating, nil)
}

func (s *Service) CancelBooking(ctx context.Context, id uuid.UUID, reason *string) (*Booking, error) {
	return s.transition(ctx, id, StatusCancelled, nil, reason)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, to Status, rating *int, reason *string) (*Booking, error) {
	ctx, span := schedulingTracer.Start(ctx, "booking.transition")
	defer span.End()
	span.SetAttributes(
		attribute.String("booking.id", id.String()),
		attribute.String("booking.to", string(to)),
	)

	updated, err := s.applyTransition(ctx, id, to, rating, reason)
	s.metrics.ObserveTransition(string(to), resultLabel(err))
	if err != nil {
		span.RecordError(err)
		var te *TransitionError
		if errors.As(err, &te) {
			s.logger.Warn("rejected booking transition",
				zap.String("booking_id", id.String()),
				zap.String("from", string(te.From)),
				zap.String("to", string(te.To)),
			)
		}
		return nil, err
	}

	payload := map[string]any{"status": updated.Status}
	if rating != nil {
		payload["rating"] = *rating
	}
	if reason != nil {
		payload["reason"] = *reason
	}
	s.logEvent(ctx, eventForStatus(to), &updated.ProviderID, &updated.ID, payload)
	return updated, nil
}

func (s *Service) applyTransition(ctx context.Context, id uuid.UUID, to Status, rating *int, reason *string) (*Booking, error) {
	current, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load booking: %w", err)
	}
	if err := Transition(current.Status, to); err != nil {
		return nil, err
	}

	updated, err := s.repo.TransitionBooking(ctx, TransitionParams{
		BookingID: id,
		From:      current.Status,
		To:        to,
		At:        s.now().UTC(),
		Rating:    rating,
		Reason:    reason,
	})
	if err != nil {
		var te *TransitionError
		if errors.As(err, &te) {
			return nil, err
		}
		return nil, fmt.Errorf("transition booking: %w", err)
	}
	return updated, nil
}

// ResetDailyCounters is called by the counter worker periodically.
func (s *Service) ResetDailyCounters(ctx context.Context) (int64, error) {
	n, err := s.repo.ResetDailyCounters(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("reset daily counters: %w", err)
	}
	s.metrics.ObserveCountersReset(n)
	return n, nil
}

func (s *Service) dateRange(from, to time.Time, loc *time.Location, maxDays int) (time.Time, time.Time, error) {
	first := CalendarDate(from, loc)
	last := CalendarDate(to, loc)
	if last.Before(first) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: end date %s is before start date %s",
			ErrInvalidRange, dateKey(last), dateKey(first))
	}
	if days := daysBetween(first, last) + 1; days > maxDays {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %d days requested, at most %d allowed",
			ErrInvalidRange, days, maxDays)
	}
	return first, last, nil
}

func (s *Service) logEvent(ctx context.Context, eventType string, providerID, bookingID *uuid.UUID, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("failed to marshal event payload", zap.String("event", eventType), zap.Error(err))
		data = nil
	}

	ev := EventLog{
		EventType:  eventType,
		ProviderID: providerID,
		BookingID:  bookingID,
		Payload:    data,
		CreatedAt:  s.now().UTC(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.logger.Error("failed to insert event log", zap.String("event", eventType), zap.Error(err))
	}
}

func eventForStatus(to Status) string {
	switch to {
	case StatusInProgress:
		return EventBookingStarted
	case StatusCompleted:
		return EventBookingCompleted
	default:
		return EventBookingCancelled
	}
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrSlotUnavailable):
		return "slot_unavailable"
	case errors.Is(err, ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, ErrLeadTimeViolation):
		return "lead_time_violation"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrProviderNotFound), errors.Is(err, ErrBookingNotFound):
		return "not_found"
	default:
		return "error"
	}
}

func mergeScheduleError(into *ScheduleError, err error) {
	var se *ScheduleError
	if errors.As(err, &se) {
		for k, v := range se.Fields {
			into.add(k, v)
		}
	}
}

func sameDays(submitted, derived []string) bool {
	norm := make([]string, 0, len(submitted))
	for _, d := range submitted {
		if wd, err := ParseWeekday(d); err == nil {
			norm = append(norm, WeekdayName(wd))
		}
	}
	slices.Sort(norm)
	norm = slices.Compact(norm)
	sorted := slices.Clone(derived)
	slices.Sort(sorted)
	return slices.Equal(norm, sorted)
}
