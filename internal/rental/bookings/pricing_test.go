package bookings

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

var base = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func spanFrom(start time.Time, d time.Duration) Interval { return Interval{Start: start, End: start.Add(d)} }

func intPtr(v int) *int { return &v }

func TestQuoteThreeDays(t *testing.T) {
	q := QuoteFor(1000, spanFrom(base, 3*day), 0)
	assert.Equal(t, 3, q.TotalDays)
	assert.Equal(t, 3000.0, q.TotalAmount)
	assert.Equal(t, 600.0, q.Deposit)
}

func TestQuoteRoundsPartialDaysUp(t *testing.T) {
	assert.Equal(t, 1, QuoteFor(1000, spanFrom(base, time.Hour), 0).TotalDays)
	assert.Equal(t, 2, QuoteFor(1000, spanFrom(base, day+time.Nanosecond), 0).TotalDays)
	assert.Equal(t, 1, QuoteFor(1000, spanFrom(base, day), 0).TotalDays)
}

func TestQuoteDepositOverride(t *testing.T) {
	assert.Equal(t, 5000.0, QuoteFor(1000, spanFrom(base, 2*day), 5000).Deposit)
	// non-positive override falls back to 20%
	assert.Equal(t, 400.0, QuoteFor(1000, spanFrom(base, 2*day), -1).Deposit)
}

func TestSettleReturnLate(t *testing.T) {
	end := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	b := Booking{Interval: Interval{Start: end.Add(-5 * day), End: end}, DailyRate: 500, Deposit: 500}

	s := SettleReturn(b, end.Add(3*day), nil)
	assert.Equal(t, 3, s.LateDays)
	assert.Equal(t, 750.0, s.LateFee)
	assert.Equal(t, 0.0, s.DamageFee)
	// late fee is billed on top, the deposit is refunded in full
	assert.Equal(t, 500.0, s.RefundAmount)

	onTime := SettleReturn(b, end, nil)
	assert.Equal(t, 0, onTime.LateDays)
	assert.Equal(t, 0.0, onTime.LateFee)

	justOver := SettleReturn(b, end.Add(time.Minute), nil)
	assert.Equal(t, 1, justOver.LateDays)
	assert.Equal(t, 250.0, justOver.LateFee)
}

func TestSettleReturnDamage(t *testing.T) {
	b := Booking{Interval: spanFrom(base, 3*day), DailyRate: 1000, Deposit: 600}

	s := SettleReturn(b, base.Add(2*day), intPtr(2))
	assert.Equal(t, 300.0, s.DamageFee)
	assert.Equal(t, 300.0, s.RefundAmount)

	for _, rating := range []int{3, 4, 5} {
		s := SettleReturn(b, base.Add(2*day), intPtr(rating))
		assert.Equal(t, 0.0, s.DamageFee, "rating %d", rating)
		assert.Equal(t, 600.0, s.RefundAmount)
	}
	assert.Equal(t, 0.0, SettleReturn(b, base.Add(2*day), nil).DamageFee)
}

func TestQuoteProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		rate := float64(rapid.IntRange(1, 100000).Draw(t, "rate"))
		a := time.Duration(rapid.Int64Range(1, int64(400*day)).Draw(t, "a"))
		extra := time.Duration(rapid.Int64Range(0, int64(30*day)).Draw(t, "extra"))

		qa := QuoteFor(rate, spanFrom(base, a), 0)
		qb := QuoteFor(rate, spanFrom(base, a+extra), 0)

		want := int(a / day)
		if a%day != 0 {
			want++
		}
		if qa.TotalDays != want {
			t.Fatalf("days for %v = %d, want %d", a, qa.TotalDays, want)
		}
		if qa.TotalDays < 1 {
			t.Fatalf("positive interval billed %d days", qa.TotalDays)
		}
		if qb.TotalDays < qa.TotalDays {
			t.Fatalf("days not monotonic: %d then %d", qa.TotalDays, qb.TotalDays)
		}
		if qa.TotalAmount != rate*float64(qa.TotalDays) {
			t.Fatalf("amount %v != %v*%d", qa.TotalAmount, rate, qa.TotalDays)
		}
	})
}

func TestSettleReturnProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		deposit := float64(rapid.IntRange(0, 1000000).Draw(t, "deposit")) / 100
		rating := rapid.IntRange(1, 5).Draw(t, "rating")
		offset := time.Duration(rapid.Int64Range(-int64(10*day), int64(60*day)).Draw(t, "offset"))

		b := Booking{Interval: spanFrom(base, 4*day), DailyRate: 1200, Deposit: deposit}
		s := SettleReturn(b, b.Interval.End.Add(offset), &rating)

		if s.LateFee < 0 || s.DamageFee < 0 || s.RefundAmount < 0 {
			t.Fatalf("negative amount: %+v", s)
		}
		if offset <= 0 && s.LateFee != 0 {
			t.Fatalf("on-time return charged %v", s.LateFee)
		}
		if s.RefundAmount > deposit {
			t.Fatalf("refund %v exceeds deposit %v", s.RefundAmount, deposit)
		}
	})
}
