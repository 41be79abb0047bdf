package bookings

import "time"

const day = 24 * time.Hour

// Interval is half-open: [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

func (iv Interval) Validate() error {
	if iv.Start.IsZero() || iv.End.IsZero() {
		return ErrInvalidInterval("start_date and end_date are required")
	}
	if !iv.End.After(iv.Start) {
		return ErrInvalidInterval("end date must be after start date")
	}
	return nil
}

func (iv Interval) Overlaps(o Interval) bool {
	return iv.Start.Before(o.End) && o.Start.Before(iv.End)
}

// ceilDays rounds a positive duration up to whole days.
func ceilDays(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	n := int(d / day)
	if d%day != 0 {
		n++
	}
	return n
}

// Days is the number of billable days; partial days count as full ones.
func (iv Interval) Days() int { return ceilDays(iv.End.Sub(iv.Start)) }
