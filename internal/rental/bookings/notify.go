package bookings

import (
	"context"
	"log/slog"
)

// LogNotifier writes lifecycle events to the structured log. Mail and push
// delivery hang off the same interface.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(ctx context.Context, ev NotifyEvent, b Booking) {
	n.Logger.InfoContext(ctx, "booking event",
		slog.String("event", string(ev)),
		slog.Uint64("booking_id", b.BookingID),
		slog.String("booking_number", b.BookingNumber),
		slog.Uint64("product_id", b.ProductID),
		slog.String("customer_id", b.CustomerID),
		slog.String("status", string(b.Status)),
	)
}
