package booking

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(h, m int) time.Time {
	return time.Date(2025, 1, 13, h, m, 0, 0, time.UTC)
}

func TestOverlapsIsHalfOpen(t *testing.T) {
	nineToTen := Interval{Start: at(9, 0), End: at(10, 0)}

	assert.False(t, Overlaps(nineToTen, Interval{Start: at(10, 0), End: at(11, 0)}), "touching after")
	assert.False(t, Overlaps(nineToTen, Interval{Start: at(8, 0), End: at(9, 0)}), "touching before")
	assert.True(t, Overlaps(nineToTen, Interval{Start: at(9, 30), End: at(10, 30)}))
	assert.True(t, Overlaps(nineToTen, Interval{Start: at(8, 0), End: at(12, 0)}), "containing")
	assert.True(t, Overlaps(nineToTen, nineToTen))
}

func TestSnapshotIgnoresCancelled(t *testing.T) {
	bookings := []Booking{
		{ServiceDate: monday, StartTime: at(9, 0), EndTime: at(10, 0), Status: StatusScheduled},
		{ServiceDate: monday, StartTime: at(10, 0), EndTime: at(11, 0), Status: StatusCancelled},
		{ServiceDate: monday, StartTime: at(11, 0), EndTime: at(12, 0), Status: StatusCompleted},
		{ServiceDate: monday, StartTime: at(12, 0), EndTime: at(13, 0), Status: StatusInProgress},
	}

	snap := NewSnapshot(bookings)
	assert.Equal(t, 3, snap.Count(monday))
	assert.Len(t, snap.Occupied(monday), 2)
	assert.Zero(t, snap.Count(monday.AddDate(0, 0, 1)))

	assert.Equal(t, 3, CountTowardsCap(bookings))
	assert.Len(t, OccupiedIntervals(bookings), 2)
}

func TestLedgerReadsFromRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	p, err := repo.CreateProvider(ctx, Provider{
		Name:               "Ledger Test",
		ServiceCharge:      decimal.NewFromInt(50),
		MaxDailyOrders:     5,
		WorkingHours:       weekdayModel(t, "09:00", "18:00", 60).WorkingHours,
		AvgServiceDuration: 60,
		Timezone:           "UTC",
	})
	require.NoError(t, err)

	_, err = repo.ClaimBooking(ctx, ClaimParams{
		ProviderID:  p.ID,
		ServiceDate: monday,
		Start:       at(9, 0),
		End:         at(10, 0),
		TimeSlot:    "09:00-10:00",
	})
	require.NoError(t, err)

	ledger := NewLedger(repo)
	occupied, err := ledger.OccupiedSlots(ctx, p.ID, monday)
	require.NoError(t, err)
	require.Len(t, occupied, 1)
	assert.Equal(t, at(9, 0), occupied[0].Start)

	count, err := ledger.DailyCount(ctx, p.ID, monday)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = ledger.OccupiedSlots(ctx, uuid.New(), monday)
	assert.ErrorIs(t, err, ErrProviderNotFound)
}
