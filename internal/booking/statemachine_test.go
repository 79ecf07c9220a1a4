package booking

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionTable(t *testing.T) {
	all := []Status{StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled}
	allowed := map[[2]Status]bool{
		{StatusScheduled, StatusInProgress}: true,
		{StatusScheduled, StatusCancelled}:  true,
		{StatusInProgress, StatusCompleted}: true,
		{StatusInProgress, StatusCancelled}: true,
	}

	for _, from := range all {
		for _, to := range all {
			err := Transition(from, to)
			if allowed[[2]Status{from, to}] {
				assert.NoError(t, err, "%s -> %s", from, to)
				continue
			}
			var te *TransitionError
			require.True(t, errors.As(err, &te), "%s -> %s", from, to)
			assert.Equal(t, from, te.From)
			assert.Equal(t, to, te.To)
			assert.ErrorIs(t, err, ErrInvalidTransition)
		}
	}
}

func TestTerminalStatusesAreFinal(t *testing.T) {
	for _, from := range []Status{StatusCompleted, StatusCancelled} {
		assert.True(t, from.Terminal())
		for _, to := range []Status{StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled} {
			assert.False(t, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
	assert.False(t, StatusScheduled.Terminal())
	assert.False(t, StatusInProgress.Terminal())
}

func TestBookingLifecycle(t *testing.T) {
	b := &Booking{Status: StatusScheduled}
	require.NoError(t, b.Start())
	require.NoError(t, b.Complete())
	assert.Equal(t, StatusCompleted, b.Status)

	err := b.Cancel()
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StatusCompleted, b.Status, "failed transition leaves status alone")
}

func TestScheduledCannotCompleteDirectly(t *testing.T) {
	b := &Booking{Status: StatusScheduled}
	assert.ErrorIs(t, b.Complete(), ErrInvalidTransition)
	assert.Equal(t, StatusScheduled, b.Status)
}

func TestRunningRating(t *testing.T) {
	r := RunningRating(decimal.Zero, 0, 4)
	assert.True(t, r.Equal(decimal.NewFromInt(4)))

	r = RunningRating(r, 1, 5)
	assert.True(t, r.Equal(decimal.RequireFromString("4.5")))

	r = RunningRating(r, 2, 3)
	assert.True(t, r.Equal(decimal.NewFromInt(4)))

	r = RunningRating(decimal.RequireFromString("4.67"), 3, 1)
	assert.Equal(t, "3.75", r.StringFixed(2))
}
