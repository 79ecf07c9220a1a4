package booking

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	cases := []struct {
		in      string
		want    TimeOfDay
		wantErr bool
	}{
		{in: "09:00", want: 540},
		{in: "17:30:00", want: 1050},
		{in: "24:00", want: 1440},
		{in: "00:00", want: 0},
		{in: "24:01", wantErr: true},
		{in: "9", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "12:00:30", wantErr: true},
		{in: "ab:cd", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseTimeOfDay(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseWorkingHoursReportsEveryProblem(t *testing.T) {
	_, err := ParseWorkingHours([]DayEntry{
		{Day: "monday", Available: true, Start: "09:00", End: "18:00"},
		{Day: "Monday", Available: true, Start: "10:00", End: "12:00"},
		{Day: "funday", Available: true, Start: "09:00", End: "18:00"},
		{Day: "tuesday", Available: true, Start: "9am", End: "18:00"},
		{Day: "sunday", Available: false},
	})

	var se *ScheduleError
	require.True(t, errors.As(err, &se))
	assert.ErrorIs(t, err, ErrInvalidSchedule)
	assert.Contains(t, se.Fields, "working_hours.monday")
	assert.Contains(t, se.Fields, "working_hours[2].day")
	assert.Contains(t, se.Fields, "working_hours.tuesday.start")
	assert.NotContains(t, se.Fields, "working_hours.sunday")
}

func TestAvailabilityValidate(t *testing.T) {
	valid := weekdayModel(t, "09:00", "18:00", 60)
	require.NoError(t, valid.Validate())

	broken := weekdayModel(t, "09:00", "18:00", 10)
	broken.MinAdvanceBookingHours = 200
	broken.WorkingHours[time.Wednesday] = DaySchedule{Available: true, Start: tod(t, "18:00"), End: tod(t, "09:00")}

	var se *ScheduleError
	require.True(t, errors.As(broken.Validate(), &se))
	assert.Len(t, se.Fields, 3)
	assert.Contains(t, se.Fields, "avg_service_duration")
	assert.Contains(t, se.Fields, "min_advance_booking_hours")
	assert.Contains(t, se.Fields, "working_hours.wednesday")
}

func TestAvailabilityIgnoresTimesOfClosedDays(t *testing.T) {
	model := weekdayModel(t, "09:00", "18:00", 60)
	model.WorkingHours[time.Sunday] = DaySchedule{Available: false, Start: tod(t, "18:00"), End: tod(t, "09:00")}

	assert.NoError(t, model.Validate())
	_, open := model.IsOpen(monday.AddDate(0, 0, 6))
	assert.False(t, open)
}

func TestWorkingDaysDerivedFromFlags(t *testing.T) {
	hours := WorkingHours{
		time.Sunday:    {Available: true, Start: 600, End: 900},
		time.Monday:    {Available: true, Start: 540, End: 1080},
		time.Wednesday: {Available: false},
	}
	assert.Equal(t, []string{"monday", "sunday"}, hours.WorkingDays())
}

func TestWorkingHoursJSONUsesDayNames(t *testing.T) {
	hours := WorkingHours{time.Monday: {Available: true, Start: 540, End: 1080}}

	raw, err := json.Marshal(hours)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"monday":{"available":true,"start":"09:00","end":"18:00"}`)

	var back WorkingHours
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, hours[time.Monday], back[time.Monday])
	assert.False(t, back[time.Tuesday].Available)
}

func TestEarliestStartAddsLeadTime(t *testing.T) {
	model := weekdayModel(t, "09:00", "18:00", 60)
	now := time.Date(2025, 1, 13, 10, 15, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2025, 1, 14, 10, 15, 0, 0, time.UTC), model.EarliestStart(now))
}

func TestCalendarDateKeepsDayAcrossZones(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	d := CalendarDate(time.Date(2025, 1, 13, 0, 0, 0, 0, time.UTC), loc)
	assert.Equal(t, "2025-01-13", dateKey(d))
	assert.Equal(t, loc, d.Location())

	// 20:00 UTC on the 13th is already the 14th in Tokyo.
	assert.Equal(t, "2025-01-14", dateKey(DateOf(time.Date(2025, 1, 13, 20, 0, 0, 0, time.UTC), loc)))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-01-13", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, monday, d)

	_, err = ParseDate("13/01/2025", time.UTC)
	assert.Error(t, err)
}
