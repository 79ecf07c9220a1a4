package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/hackgods/service-provider-scheduling/internal/db"
)

type PgRepository struct {
	pool db.Pool
}

func NewPgRepository(pool db.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const providerColumns = `
	id, name, category, city, area, service_charge::text, max_daily_orders,
	daily_orders_count, daily_orders_date, total_orders_completed, rated_orders,
	rating::text, availability_status, working_hours, avg_service_duration,
	min_advance_booking_hours, timezone, created_at, updated_at`

const bookingColumns = `
	id, provider_id, service_id, order_ref, service_date, start_at, end_at,
	time_slot, status, notes, counted_on, rating, cancel_reason,
	started_at, completed_at, cancelled_at, created_at, updated_at`

// Helpers

func scanProvider(row pgx.Row) (*Provider, error) {
	var (
		p      Provider
		charge string
		rating string
		status string
		hours  []byte
	)

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Category,
		&p.City,
		&p.Area,
		&charge,
		&p.MaxDailyOrders,
		&p.DailyOrdersCount,
		&p.DailyOrdersDate,
		&p.TotalOrdersCompleted,
		&p.RatedOrders,
		&rating,
		&status,
		&hours,
		&p.AvgServiceDuration,
		&p.MinAdvanceBookingHours,
		&p.Timezone,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProviderNotFound
		}
		return nil, err
	}

	if p.ServiceCharge, err = decimal.NewFromString(charge); err != nil {
		return nil, fmt.Errorf("parse service_charge %q: %w", charge, err)
	}
	if p.Rating, err = decimal.NewFromString(rating); err != nil {
		return nil, fmt.Errorf("parse rating %q: %w", rating, err)
	}
	p.AvailabilityStatus = AvailabilityStatus(status)
	p.WorkingHours = WorkingHours{}
	if len(hours) > 0 {
		if err := json.Unmarshal(hours, &p.WorkingHours); err != nil {
			return nil, fmt.Errorf("decode working_hours: %w", err)
		}
	}
	return &p, nil
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var (
		b      Booking
		status string
	)

	err := row.Scan(
		&b.ID,
		&b.ProviderID,
		&b.ServiceID,
		&b.OrderRef,
		&b.ServiceDate,
		&b.StartTime,
		&b.EndTime,
		&b.TimeSlot,
		&status,
		&b.Notes,
		&b.CountedOn,
		&b.Rating,
		&b.CancelReason,
		&b.StartedAt,
		&b.CompletedAt,
		&b.CancelledAt,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	b.Status = Status(status)
	return &b, nil
}

// Interface methods

func (r *PgRepository) GetProvider(ctx context.Context, id uuid.UUID) (*Provider, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+providerColumns+`
		FROM service_providers
		WHERE id = $1 AND deleted_at IS NULL
	`, id)
	return scanProvider(row)
}

func (r *PgRepository) ListProviders(ctx context.Context, filter ProviderFilter) ([]Provider, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+providerColumns+`
		FROM service_providers
		WHERE deleted_at IS NULL
		  AND ($1 = '' OR lower(city) = lower($1))
		  AND ($2 = '' OR lower(category) = lower($2))
		ORDER BY created_at, id
		LIMIT $3 OFFSET $4
	`, filter.City, filter.Category, filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("query providers: %w", err)
	}
	defer rows.Close()

	out := []Provider{}
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *PgRepository) CreateProvider(ctx context.Context, p Provider) (*Provider, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.AvailabilityStatus == "" {
		p.AvailabilityStatus = ProviderAvailable
	}
	hours, err := json.Marshal(p.WorkingHours)
	if err != nil {
		return nil, fmt.Errorf("encode working_hours: %w", err)
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO service_providers (
			id, name, category, city, area, service_charge, max_daily_orders,
			daily_orders_count, daily_orders_date, availability_status, working_hours,
			avg_service_duration, min_advance_booking_hours, timezone, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, 0, (now() AT TIME ZONE $12)::date, $8, $9, $10, $11, $12, now(), now())
		RETURNING `+providerColumns,
		p.ID, p.Name, p.Category, p.City, p.Area, p.ServiceCharge.String(), p.MaxDailyOrders,
		string(p.AvailabilityStatus), hours, p.AvgServiceDuration, p.MinAdvanceBookingHours, p.Timezone,
	)
	return scanProvider(row)
}

func (r *PgRepository) DeleteProvider(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE service_providers
		SET deleted_at = now(), updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
	`, id)
	if err != nil {
		return fmt.Errorf("soft delete provider: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProviderNotFound
	}
	return nil
}

func (r *PgRepository) UpdateSchedule(ctx context.Context, id uuid.UUID, upd ScheduleUpdate) (*Provider, error) {
	hours, err := json.Marshal(upd.WorkingHours)
	if err != nil {
		return nil, fmt.Errorf("encode working_hours: %w", err)
	}
	row := r.pool.QueryRow(ctx, `
		UPDATE service_providers
		SET working_hours = $2, avg_service_duration = $3, min_advance_booking_hours = $4, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING `+providerColumns,
		id, hours, upd.AvgServiceDuration, upd.MinAdvanceBookingHours,
	)
	return scanProvider(row)
}

func (r *PgRepository) UpdateAvailabilityStatus(ctx context.Context, id uuid.UUID, status AvailabilityStatus) (*Provider, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE service_providers
		SET availability_status = $2, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING `+providerColumns,
		id, string(status),
	)
	return scanProvider(row)
}

func (r *PgRepository) GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM provider_bookings
		WHERE id = $1
	`, id)
	return scanBooking(row)
}

func (r *PgRepository) ListBookings(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM provider_bookings
		WHERE provider_id = $1 AND service_date BETWEEN $2::date AND $3::date
		ORDER BY start_at
	`, providerID, dateKey(from), dateKey(to))
	if err != nil {
		return nil, fmt.Errorf("query bookings: %w", err)
	}
	defer rows.Close()

	out := []Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// ClaimBooking serializes claims per provider by locking the provider row.
// The exclusion constraint on provider_bookings backs up the overlap check.
func (r *PgRepository) ClaimBooking(ctx context.Context, p ClaimParams) (*Booking, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin claim: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var maxDaily int
	err = tx.QueryRow(ctx, `
		SELECT max_daily_orders
		FROM service_providers
		WHERE id = $1 AND deleted_at IS NULL
		FOR UPDATE
	`, p.ProviderID).Scan(&maxDaily)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProviderNotFound
		}
		return nil, fmt.Errorf("lock provider: %w", err)
	}

	day := dateKey(p.ServiceDate)

	var count int
	err = tx.QueryRow(ctx, `
		SELECT count(*)
		FROM provider_bookings
		WHERE provider_id = $1 AND service_date = $2::date AND status <> 'cancelled'
	`, p.ProviderID, day).Scan(&count)
	if err != nil {
		return nil, fmt.Errorf("count daily bookings: %w", err)
	}
	if maxDaily > 0 && count >= maxDaily {
		return nil, &CapacityError{Date: p.ServiceDate, MaxDailyOrders: maxDaily}
	}

	var taken bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM provider_bookings
			WHERE provider_id = $1
			  AND status IN ('scheduled', 'in_progress')
			  AND start_at < $3 AND end_at > $2
		)
	`, p.ProviderID, p.Start, p.End).Scan(&taken)
	if err != nil {
		return nil, fmt.Errorf("check overlap: %w", err)
	}
	if taken {
		return nil, slotUnavailable("overlaps an existing booking")
	}

	var countedOn *string
	if p.CountOn != nil {
		k := dateKey(*p.CountOn)
		countedOn = &k
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO provider_bookings (
			id, provider_id, service_id, order_ref, service_date, start_at, end_at,
			time_slot, status, notes, counted_on, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5::date, $6, $7, $8, 'scheduled', $9, $10::date, now(), now())
		RETURNING `+bookingColumns,
		uuid.New(), p.ProviderID, p.ServiceID, p.OrderRef, day, p.Start, p.End,
		p.TimeSlot, p.Notes, countedOn,
	)
	created, err := scanBooking(row)
	if err != nil {
		if db.IsConflict(err) {
			return nil, slotUnavailable("overlaps an existing booking")
		}
		return nil, fmt.Errorf("insert booking: %w", err)
	}

	if countedOn != nil {
		_, err = tx.Exec(ctx, `
			UPDATE service_providers
			SET daily_orders_count = CASE WHEN daily_orders_date = $2::date THEN daily_orders_count + 1 ELSE 1 END,
			    daily_orders_date = $2::date,
			    updated_at = now()
			WHERE id = $1
		`, p.ProviderID, *countedOn)
		if err != nil {
			return nil, fmt.Errorf("bump daily counter: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		if db.IsConflict(err) {
			return nil, slotUnavailable("overlaps an existing booking")
		}
		return nil, fmt.Errorf("commit claim: %w", err)
	}
	return created, nil
}

var transitionQueries = map[Status]string{
	StatusInProgress: `
		UPDATE provider_bookings
		SET status = $3, started_at = $4, updated_at = $4
		WHERE id = $1 AND status = $2
		RETURNING ` + bookingColumns,
	StatusCompleted: `
		UPDATE provider_bookings
		SET status = $3, completed_at = $4, rating = $5, updated_at = $4
		WHERE id = $1 AND status = $2
		RETURNING ` + bookingColumns,
	StatusCancelled: `
		UPDATE provider_bookings
		SET status = $3, cancelled_at = $4, cancel_reason = $5, updated_at = $4
		WHERE id = $1 AND status = $2
		RETURNING ` + bookingColumns,
}

// TransitionBooking locks the owning provider row first, the same order a
// claim takes its locks in.
func (r *PgRepository) TransitionBooking(ctx context.Context, p TransitionParams) (*Booking, error) {
	if err := Transition(p.From, p.To); err != nil {
		return nil, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transition: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var providerID uuid.UUID
	err = tx.QueryRow(ctx, `
		SELECT p.id
		FROM service_providers p
		JOIN provider_bookings b ON b.provider_id = p.id
		WHERE b.id = $1
		FOR UPDATE OF p
	`, p.BookingID).Scan(&providerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("lock provider: %w", err)
	}

	var extra any
	switch p.To {
	case StatusCompleted:
		extra = p.Rating
	case StatusCancelled:
		extra = p.Reason
	}
	args := []any{p.BookingID, string(p.From), string(p.To), p.At}
	if p.To != StatusInProgress {
		args = append(args, extra)
	}

	updated, err := scanBooking(tx.QueryRow(ctx, transitionQueries[p.To], args...))
	if errors.Is(err, ErrBookingNotFound) {
		var current string
		if err := tx.QueryRow(ctx, `SELECT status FROM provider_bookings WHERE id = $1`, p.BookingID).Scan(&current); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrBookingNotFound
			}
			return nil, fmt.Errorf("load booking status: %w", err)
		}
		return nil, &TransitionError{From: Status(current), To: p.To}
	}
	if err != nil {
		return nil, fmt.Errorf("update booking status: %w", err)
	}

	switch p.To {
	case StatusCompleted:
		_, err = tx.Exec(ctx, `
			UPDATE service_providers
			SET total_orders_completed = total_orders_completed + 1,
			    rating = CASE WHEN $2::int IS NULL THEN rating
			                  ELSE round((rating * rated_orders + $2::int) / (rated_orders + 1), 2) END,
			    rated_orders = rated_orders + CASE WHEN $2::int IS NULL THEN 0 ELSE 1 END,
			    updated_at = $3
			WHERE id = $1
		`, providerID, p.Rating, p.At)
	case StatusCancelled:
		if updated.CountedOn != nil {
			_, err = tx.Exec(ctx, `
				UPDATE service_providers
				SET daily_orders_count = GREATEST(daily_orders_count - 1, 0), updated_at = $3
				WHERE id = $1 AND daily_orders_date = $2::date
			`, providerID, dateKey(*updated.CountedOn), p.At)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("update provider counters: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transition: %w", err)
	}
	return updated, nil
}

func (r *PgRepository) ResetDailyCounters(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE service_providers
		SET daily_orders_count = 0,
		    daily_orders_date = ($1::timestamptz AT TIME ZONE timezone)::date,
		    updated_at = now()
		WHERE deleted_at IS NULL
		  AND daily_orders_date < ($1::timestamptz AT TIME ZONE timezone)::date
	`, now)
	if err != nil {
		return 0, fmt.Errorf("reset daily counters: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, provider_id, booking_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, ev.EventType, ev.ProviderID, ev.BookingID, ev.Payload, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}
