package bookings

import (
	"math"
	"time"
)

const (
	defaultDepositRate = 0.2
	lateFeeRate        = 0.5 // 日額に対する延滞料の割合
	damageDepositRate  = 0.5
	damageRatingBelow  = 3
)

type Quote struct {
	DailyRate   float64 `json:"daily_rate"`
	TotalDays   int     `json:"total_days"`
	TotalAmount float64 `json:"total_amount"`
	Deposit     float64 `json:"deposit"`
}

// QuoteFor prices an interval. depositOverride wins when it is positive.
func QuoteFor(dailyRate float64, iv Interval, depositOverride float64) Quote {
	days := iv.Days()
	total := roundMoney(dailyRate * float64(days))
	deposit := depositOverride
	if deposit <= 0 {
		deposit = roundMoney(total * defaultDepositRate)
	}
	return Quote{
		DailyRate:   dailyRate,
		TotalDays:   days,
		TotalAmount: total,
		Deposit:     deposit,
	}
}

type Settlement struct {
	LateDays     int     `json:"late_days"`
	LateFee      float64 `json:"late_fee"`
	DamageFee    float64 `json:"damage_fee"`
	RefundAmount float64 `json:"refund_amount"`
}

// SettleReturn computes the fees owed when b comes back at returnedAt.
// The late fee is charged on top and never reduces the deposit refund.
func SettleReturn(b Booking, returnedAt time.Time, rating *int) Settlement {
	var s Settlement
	if returnedAt.After(b.Interval.End) {
		s.LateDays = ceilDays(returnedAt.Sub(b.Interval.End))
		s.LateFee = roundMoney(float64(s.LateDays) * b.DailyRate * lateFeeRate)
	}
	if rating != nil && *rating < damageRatingBelow {
		s.DamageFee = roundMoney(b.Deposit * damageDepositRate)
	}
	s.RefundAmount = math.Max(0, roundMoney(b.Deposit-s.DamageFee))
	return s
}

func roundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}
