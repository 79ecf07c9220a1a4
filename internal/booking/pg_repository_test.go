package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*PgRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(mock.Close)
	return NewPgRepository(mock), mock
}

var providerRowColumns = []string{
	"id", "name", "category", "city", "area", "service_charge", "max_daily_orders",
	"daily_orders_count", "daily_orders_date", "total_orders_completed", "rated_orders",
	"rating", "availability_status", "working_hours", "avg_service_duration",
	"min_advance_booking_hours", "timezone", "created_at", "updated_at",
}

var bookingRowColumns = []string{
	"id", "provider_id", "service_id", "order_ref", "service_date", "start_at", "end_at",
	"time_slot", "status", "notes", "counted_on", "rating", "cancel_reason",
	"started_at", "completed_at", "cancelled_at", "created_at", "updated_at",
}

func TestPgGetProviderDecodesRow(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()
	created := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery("FROM service_providers").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(providerRowColumns).AddRow(
			id, "Ada Heating", "boiler-installation", "Leeds", "Headingley", "85.00", 5,
			2, monday, 14, 10,
			"4.35", "busy", []byte(`{"monday":{"available":true,"start":"09:00","end":"18:00"}}`), 60,
			24, "Europe/London", created, created,
		))

	p, err := repo.GetProvider(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Ada Heating", p.Name)
	assert.Equal(t, "85", p.ServiceCharge.String())
	assert.Equal(t, "4.35", p.Rating.StringFixed(2))
	assert.Equal(t, ProviderBusy, p.AvailabilityStatus)
	assert.Equal(t, []string{"monday"}, p.WorkingDays())
	assert.Equal(t, TimeOfDay(1080), p.WorkingHours[time.Monday].End)
	assert.Equal(t, "Europe/London", p.Location().String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgGetProviderNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("FROM service_providers").
		WillReturnRows(pgxmock.NewRows(providerRowColumns))

	_, err := repo.GetProvider(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrProviderNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func claimParams() ClaimParams {
	return ClaimParams{
		ProviderID:  uuid.New(),
		ServiceDate: monday,
		Start:       at(10, 0),
		End:         at(11, 0),
		TimeSlot:    "10:00-11:00",
	}
}

func TestPgClaimStopsAtCapacity(t *testing.T) {
	repo, mock := newMockRepo(t)
	p := claimParams()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT max_daily_orders").
		WithArgs(p.ProviderID).
		WillReturnRows(pgxmock.NewRows([]string{"max_daily_orders"}).AddRow(5))
	mock.ExpectQuery("SELECT count").
		WithArgs(p.ProviderID, "2025-01-13").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(5))
	mock.ExpectRollback()

	_, err := repo.ClaimBooking(context.Background(), p)
	var ce *CapacityError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 5, ce.MaxDailyOrders)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgClaimRejectsOverlap(t *testing.T) {
	repo, mock := newMockRepo(t)
	p := claimParams()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT max_daily_orders").
		WillReturnRows(pgxmock.NewRows([]string{"max_daily_orders"}).AddRow(5))
	mock.ExpectQuery("SELECT count").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(p.ProviderID, p.Start, p.End).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	_, err := repo.ClaimBooking(context.Background(), p)
	assert.ErrorIs(t, err, ErrSlotUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgClaimMapsExclusionViolation(t *testing.T) {
	repo, mock := newMockRepo(t)
	p := claimParams()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT max_daily_orders").
		WillReturnRows(pgxmock.NewRows([]string{"max_daily_orders"}).AddRow(5))
	mock.ExpectQuery("SELECT count").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("INSERT INTO provider_bookings").
		WillReturnError(&pgconn.PgError{Code: "23P01", ConstraintName: "provider_bookings_no_overlap"})
	mock.ExpectRollback()

	_, err := repo.ClaimBooking(context.Background(), p)
	assert.ErrorIs(t, err, ErrSlotUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgClaimUnknownProvider(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT max_daily_orders").
		WillReturnRows(pgxmock.NewRows([]string{"max_daily_orders"}))
	mock.ExpectRollback()

	_, err := repo.ClaimBooking(context.Background(), claimParams())
	assert.ErrorIs(t, err, ErrProviderNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

// bookingRow returns a provider_bookings row in bookingRowColumns order.
func bookingRow(id, providerID uuid.UUID, status Status, countedOn *time.Time, rating *int, reason *string) []any {
	var (
		noTime *time.Time
		noText *string
	)
	created := at(9, 0)
	return []any{
		id, providerID, (*uuid.UUID)(nil), noText, monday, at(10, 0), at(11, 0),
		"10:00-11:00", string(status), noText, countedOn, rating, reason,
		noTime, noTime, noTime, created, created,
	}
}

func TestPgClaimInsertsAndBumpsCounter(t *testing.T) {
	repo, mock := newMockRepo(t)
	p := claimParams()
	today := monday
	p.CountOn = &today
	ref := "ORD-1001"
	p.OrderRef = &ref
	day := "2025-01-13"
	bookingID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT max_daily_orders").
		WithArgs(p.ProviderID).
		WillReturnRows(pgxmock.NewRows([]string{"max_daily_orders"}).AddRow(5))
	mock.ExpectQuery("SELECT count").
		WithArgs(p.ProviderID, day).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(p.ProviderID, p.Start, p.End).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("INSERT INTO provider_bookings").
		WithArgs(pgxmock.AnyArg(), p.ProviderID, p.ServiceID, p.OrderRef, day, p.Start, p.End,
			"10:00-11:00", p.Notes, &day).
		WillReturnRows(pgxmock.NewRows(bookingRowColumns).
			AddRow(bookingRow(bookingID, p.ProviderID, StatusScheduled, &today, nil, nil)...))
	mock.ExpectExec(`(?s)UPDATE service_providers.*CASE WHEN daily_orders_date = \$2::date THEN daily_orders_count \+ 1 ELSE 1 END`).
		WithArgs(p.ProviderID, day).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	b, err := repo.ClaimBooking(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, bookingID, b.ID)
	assert.Equal(t, StatusScheduled, b.Status)
	require.NotNil(t, b.CountedOn)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgClaimFutureDateLeavesCounterAlone(t *testing.T) {
	repo, mock := newMockRepo(t)
	p := claimParams()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT max_daily_orders").
		WillReturnRows(pgxmock.NewRows([]string{"max_daily_orders"}).AddRow(5))
	mock.ExpectQuery("SELECT count").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("INSERT INTO provider_bookings").
		WithArgs(pgxmock.AnyArg(), p.ProviderID, p.ServiceID, p.OrderRef, "2025-01-13", p.Start, p.End,
			"10:00-11:00", p.Notes, (*string)(nil)).
		WillReturnRows(pgxmock.NewRows(bookingRowColumns).
			AddRow(bookingRow(uuid.New(), p.ProviderID, StatusScheduled, nil, nil, nil)...))
	mock.ExpectCommit()

	b, err := repo.ClaimBooking(context.Background(), p)
	require.NoError(t, err)
	assert.Nil(t, b.CountedOn)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgCompleteUpdatesRatingAndTotals(t *testing.T) {
	repo, mock := newMockRepo(t)
	bookingID := uuid.New()
	providerID := uuid.New()
	when := at(12, 0)
	score := 4

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE OF p").
		WithArgs(bookingID).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(providerID))
	mock.ExpectQuery("UPDATE provider_bookings").
		WithArgs(bookingID, "in_progress", "completed", when, &score).
		WillReturnRows(pgxmock.NewRows(bookingRowColumns).
			AddRow(bookingRow(bookingID, providerID, StatusCompleted, nil, &score, nil)...))
	mock.ExpectExec(`(?s)UPDATE service_providers.*total_orders_completed = total_orders_completed \+ 1.*round\(\(rating \* rated_orders \+ \$2::int\) / \(rated_orders \+ 1\), 2\).*rated_orders = rated_orders \+`).
		WithArgs(providerID, &score, when).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	b, err := repo.TransitionBooking(context.Background(), TransitionParams{
		BookingID: bookingID,
		From:      StatusInProgress,
		To:        StatusCompleted,
		At:        when,
		Rating:    &score,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, b.Status)
	require.NotNil(t, b.Rating)
	assert.Equal(t, 4, *b.Rating)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgCancelDecrementsCountedDay(t *testing.T) {
	repo, mock := newMockRepo(t)
	bookingID := uuid.New()
	providerID := uuid.New()
	when := at(12, 0)
	reason := "customer rescheduled"
	counted := monday

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE OF p").
		WithArgs(bookingID).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(providerID))
	mock.ExpectQuery("UPDATE provider_bookings").
		WithArgs(bookingID, "scheduled", "cancelled", when, &reason).
		WillReturnRows(pgxmock.NewRows(bookingRowColumns).
			AddRow(bookingRow(bookingID, providerID, StatusCancelled, &counted, nil, &reason)...))
	mock.ExpectExec(`(?s)UPDATE service_providers.*GREATEST\(daily_orders_count - 1, 0\).*daily_orders_date = \$2::date`).
		WithArgs(providerID, "2025-01-13", when).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	b, err := repo.TransitionBooking(context.Background(), TransitionParams{
		BookingID: bookingID,
		From:      StatusScheduled,
		To:        StatusCancelled,
		At:        when,
		Reason:    &reason,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, b.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgTransitionLostRace(t *testing.T) {
	repo, mock := newMockRepo(t)
	bookingID := uuid.New()
	providerID := uuid.New()
	when := at(12, 0)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE OF p").
		WithArgs(bookingID).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(providerID))
	mock.ExpectQuery("UPDATE provider_bookings").
		WithArgs(bookingID, "scheduled", "cancelled", when, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(bookingRowColumns))
	mock.ExpectQuery("SELECT status FROM provider_bookings").
		WithArgs(bookingID).
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("in_progress"))
	mock.ExpectRollback()

	_, err := repo.TransitionBooking(context.Background(), TransitionParams{
		BookingID: bookingID,
		From:      StatusScheduled,
		To:        StatusCancelled,
		At:        when,
	})
	var te *TransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, StatusInProgress, te.From)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgTransitionRejectsIllegalMoveWithoutQuerying(t *testing.T) {
	repo, mock := newMockRepo(t)

	_, err := repo.TransitionBooking(context.Background(), TransitionParams{
		BookingID: uuid.New(),
		From:      StatusCompleted,
		To:        StatusCancelled,
	})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgTransitionUnknownBooking(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE OF p").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	_, err := repo.TransitionBooking(context.Background(), TransitionParams{
		BookingID: uuid.New(),
		From:      StatusScheduled,
		To:        StatusInProgress,
		At:        at(9, 0),
	})
	assert.ErrorIs(t, err, ErrBookingNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgResetDailyCounters(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := at(0, 5)

	mock.ExpectExec("UPDATE service_providers").
		WithArgs(now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	n, err := repo.ResetDailyCounters(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgDeleteProviderNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectExec("SET deleted_at").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	assert.ErrorIs(t, repo.DeleteProvider(context.Background(), id), ErrProviderNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgInsertEvent(t *testing.T) {
	repo, mock := newMockRepo(t)
	providerID := uuid.New()
	ev := EventLog{
		EventType:  EventProviderCreated,
		ProviderID: &providerID,
		Payload:    []byte(`{"name":"Ada Heating"}`),
		CreatedAt:  at(9, 0),
	}

	mock.ExpectExec("INSERT INTO event_logs").
		WithArgs(ev.EventType, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), ev.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.InsertEvent(context.Background(), ev))
	require.NoError(t, mock.ExpectationsWereMet())
}
