package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v4"

	"parking-lifecycle-backend/internal/model"
)

var ist = time.FixedZone("IST", 5*3600+1800)

func at(hour, minute int) time.Time {
	return time.Date(2024, 3, 15, hour, minute, 0, 0, ist)
}

func carBooking() model.Booking {
	return model.Booking{
		BookingID:     "b-1",
		StationName:   "City Center",
		VehicleType:   "car",
		BookingDate:   "2024-03-15",
		StartTime:     "14:00",
		EndTime:       null.StringFrom("15:00"),
		BookingStatus: model.BookingConfirmed,
		ParkingStatus: model.ParkingParked,
	}
}

func TestComputeWindow(t *testing.T) {
	t.Run("same day window", func(t *testing.T) {
		w, err := ComputeWindow(carBooking(), ist)
		require.NoError(t, err)
		assert.True(t, at(14, 0).Equal(w.Start))
		assert.True(t, at(15, 0).Equal(w.End))
		assert.True(t, at(15, 15).Equal(w.GraceEnd))
	})

	t.Run("end crossing midnight is clamped to end of booking date", func(t *testing.T) {
		for _, end := range []string{"01:00", "00:00", "22:00"} {
			b := carBooking()
			b.StartTime = "22:00"
			b.EndTime = null.StringFrom(end)

			w, err := ComputeWindow(b, ist)
			require.NoError(t, err)
			expected := time.Date(2024, 3, 15, 23, 59, 59, int(999*time.Millisecond), ist)
			assert.True(t, expected.Equal(w.End), "end %s: got %v", end, w.End)
			assert.True(t, expected.Add(GracePeriod).Equal(w.GraceEnd))
		}
	})

	t.Run("open ended booking has no end", func(t *testing.T) {
		b := carBooking()
		b.EndTime = null.String{}

		w, err := ComputeWindow(b, ist)
		require.NoError(t, err)
		assert.False(t, w.HasEnd())
		assert.True(t, w.GraceEnd.IsZero())
	})

	t.Run("malformed fields", func(t *testing.T) {
		bad := []func(*model.Booking){
			func(b *model.Booking) { b.BookingDate = "" },
			func(b *model.Booking) { b.StartTime = "2pm" },
			func(b *model.Booking) { b.EndTime = null.StringFrom("25:00") },
		}
		for _, mutate := range bad {
			b := carBooking()
			mutate(&b)
			_, err := ComputeWindow(b, ist)
			assert.ErrorIs(t, err, ErrMalformedWindow)
		}
	})
}

func TestClassify(t *testing.T) {
	b := carBooking()
	w, err := ComputeWindow(b, ist)
	require.NoError(t, err)

	testCases := []struct {
		name     string
		mutate   func(*model.Booking)
		now      time.Time
		expected State
	}{
		{name: "11 minutes before start", now: at(13, 49), expected: StateScheduled},
		{name: "11 minutes before start, pending", mutate: func(b *model.Booking) { b.BookingStatus = model.BookingPending }, now: at(13, 49), expected: StatePendingConfirmation},
		{name: "exactly 10 minutes before start", now: at(13, 50), expected: StateUpcoming},
		{name: "5 minutes before start", now: at(13, 55), expected: StateUpcoming},
		{name: "at start", now: at(14, 0), expected: StateActive},
		{name: "at end", now: at(15, 0), expected: StateActive},
		{name: "1 minute after end", now: at(15, 1), expected: StateInGracePeriod},
		{name: "end of grace", now: at(15, 15), expected: StateInGracePeriod},
		{name: "16 minutes after end", now: at(15, 16), expected: StateOverstayed},
		{name: "past grace without check-in", mutate: func(b *model.Booking) { b.ParkingStatus = "" }, now: at(15, 16), expected: StateExpired},
		{name: "checked out while overstayed", mutate: func(b *model.Booking) { b.ParkingStatus = model.ParkingUnparked }, now: at(18, 0), expected: StateCheckedOut},
		{name: "checked out before start", mutate: func(b *model.Booking) { b.ParkingStatus = model.ParkingUnparked }, now: at(13, 0), expected: StateCheckedOut},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			booking := b
			if tc.mutate != nil {
				tc.mutate(&booking)
			}
			assert.Equal(t, tc.expected, Classify(booking, w, tc.now))
		})
	}

	t.Run("open ended booking stays active", func(t *testing.T) {
		open := carBooking()
		open.EndTime = null.String{}
		ow, err := ComputeWindow(open, ist)
		require.NoError(t, err)
		assert.Equal(t, StateActive, Classify(open, ow, at(23, 0)))
	})
}

func TestEvaluate_Scenarios(t *testing.T) {
	rates := DefaultRates()

	testCases := []struct {
		name    string
		mutate  func(*model.Booking)
		now     time.Time
		state   State
		minutes int64
		hours   int64
		amount  float64
	}{
		{name: "A: at start", now: at(14, 0), state: StateActive},
		{name: "B: inside grace", now: at(15, 20), state: StateInGracePeriod},
		{name: "C: 55 minutes past grace", now: at(16, 10), state: StateOverstayed, minutes: 55, hours: 1, amount: 25},
		{name: "D: over two hours past grace", now: at(17, 20), state: StateOverstayed, minutes: 125, hours: 3, amount: 75},
		{name: "E: checked out in overstay territory", mutate: func(b *model.Booking) { b.ParkingStatus = model.ParkingUnparked }, now: at(17, 20), state: StateCheckedOut},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b := carBooking()
			if tc.mutate != nil {
				tc.mutate(&b)
			}
			ev, err := Evaluate(b, ist, tc.now, rates)
			require.NoError(t, err)
			assert.Equal(t, tc.state, ev.State)
			assert.Equal(t, tc.minutes, ev.Overtime.Minutes)
			assert.Equal(t, tc.hours, ev.Overtime.Hours)
			assert.Equal(t, tc.amount, ev.Overtime.Amount)
		})
	}
}

func TestComputeOvertime(t *testing.T) {
	b := carBooking()
	w, err := ComputeWindow(b, ist)
	require.NoError(t, err)

	t.Run("partial minutes round up", func(t *testing.T) {
		ot := ComputeOvertime(b, w, at(15, 15).Add(30*time.Second), DefaultRates())
		assert.Equal(t, int64(1), ot.Minutes)
		assert.Equal(t, int64(1), ot.Hours)
	})

	t.Run("monotonic past grace end", func(t *testing.T) {
		prev := 0.0
		for m := 1; m <= 600; m += 7 {
			ot := ComputeOvertime(b, w, at(15, 15).Add(time.Duration(m)*time.Minute), DefaultRates())
			assert.GreaterOrEqual(t, ot.Amount, prev)
			prev = ot.Amount
		}
	})

	t.Run("vehicle type lookup is case-insensitive with car fallback", func(t *testing.T) {
		bus := b
		bus.VehicleType = "Bus"
		assert.Equal(t, 50.0, ComputeOvertime(bus, w, at(16, 10), DefaultRates()).Amount)

		tractor := b
		tractor.VehicleType = "tractor"
		assert.Equal(t, 25.0, ComputeOvertime(tractor, w, at(16, 10), DefaultRates()).Amount)
	})

	t.Run("overrides replace entries", func(t *testing.T) {
		rates := DefaultRates().WithOverrides(map[string]float64{"CAR": 40})
		assert.Equal(t, 40.0, rates.Rate("car"))
		assert.Equal(t, 40.0, rates.Rate("spaceship"))
		assert.Equal(t, 25.0, DefaultRates().Rate("car"))
	})

	t.Run("no charge unless overstayed", func(t *testing.T) {
		assert.Zero(t, ComputeOvertime(b, w, at(15, 10), DefaultRates()).Amount)
		never := b
		never.ParkingStatus = ""
		assert.Zero(t, ComputeOvertime(never, w, at(18, 0), DefaultRates()).Amount)
	})
}

func TestAlertFor(t *testing.T) {
	expected := map[State]AlertKind{
		StateUpcoming:      AlertUpcoming,
		StateActive:        AlertArrived,
		StateInGracePeriod: AlertCompleted,
		StateOverstayed:    AlertCompleted,
		StateExpired:       AlertExpired,
	}
	for state, kind := range expected {
		got, ok := AlertFor(state)
		assert.True(t, ok, state)
		assert.Equal(t, kind, got, state)
	}
	for _, state := range []State{StatePendingConfirmation, StateScheduled, StateCheckedOut} {
		_, ok := AlertFor(state)
		assert.False(t, ok, state)
	}
}
