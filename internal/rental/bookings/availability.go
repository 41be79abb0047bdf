package bookings

import (
	"context"
	"time"
)

// OverlapFinder is the read the availability check needs. Both the
// Repository and the Tx handed out by InProductTx satisfy it.
type OverlapFinder interface {
	FindOverlapping(ctx context.Context, q OverlapQuery) ([]Booking, error)
}

type OverlapQuery struct {
	ProductID uint64
	Interval  Interval
	Statuses  []Status
	ExcludeID uint64 // 0 = none
	// CreatedSince, when set, ignores rows created before it.
	CreatedSince *time.Time
}

// Checker answers whether a product is free over an interval.
// It never writes.
type Checker struct {
	finder OverlapFinder
}

func NewChecker(f OverlapFinder) Checker { return Checker{finder: f} }

// Conflicts lists confirmed or active bookings of productID overlapping iv.
func (c Checker) Conflicts(ctx context.Context, productID uint64, iv Interval, excludeID uint64) ([]Booking, error) {
	if err := iv.Validate(); err != nil {
		return nil, err
	}
	rows, err := c.finder.FindOverlapping(ctx, OverlapQuery{
		ProductID: productID,
		Interval:  iv,
		Statuses:  blockingStatuses,
		ExcludeID: excludeID,
	})
	if err != nil {
		return nil, err
	}
	return overlapping(rows, iv, excludeID), nil
}

func (c Checker) IsAvailable(ctx context.Context, productID uint64, iv Interval, excludeID uint64) (bool, error) {
	conflicts, err := c.Conflicts(ctx, productID, iv, excludeID)
	if err != nil {
		return false, err
	}
	return len(conflicts) == 0, nil
}

// HeldBy returns pending bookings created at or after since that overlap iv.
// A fresh pending booking holds its slot against other new requests for a
// short window; it never blocks confirmation of someone else.
func (c Checker) HeldBy(ctx context.Context, productID uint64, iv Interval, since time.Time) ([]Booking, error) {
	rows, err := c.finder.FindOverlapping(ctx, OverlapQuery{
		ProductID:    productID,
		Interval:     iv,
		Statuses:     []Status{StatusPending},
		CreatedSince: &since,
	})
	if err != nil {
		return nil, err
	}
	return overlapping(rows, iv, 0), nil
}

// overlapping re-applies the half-open rule to what the store returned.
func overlapping(rows []Booking, iv Interval, excludeID uint64) []Booking {
	out := rows[:0:0]
	for _, b := range rows {
		if excludeID != 0 && b.BookingID == excludeID {
			continue
		}
		if b.Interval.Overlaps(iv) {
			out = append(out, b)
		}
	}
	return out
}
