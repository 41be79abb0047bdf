package bookings

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// SweepOverdue flags active bookings whose end has passed. Each booking is
// flagged and notified at most once, so running it again is harmless.
func (s *Service) SweepOverdue(ctx context.Context) (res SweepResult, err error) {
	ctx, span := s.start(ctx, "bookings.sweep_overdue")
	defer func() { err = finish(span, err) }()

	now := s.clock.Now()
	for {
		candidates, err := s.repo.ListOverdueCandidates(ctx, now, sweepBatchSize)
		if err != nil {
			return res, err
		}
		flaggedThisRound := 0
		for i := range candidates {
			b := candidates[i]
			if _, err := Next(b.Status, EventMarkOverdue); err != nil {
				continue
			}
			ok, err := s.repo.FlagOverdue(ctx, b.BookingID, now)
			if err != nil {
				return res, err
			}
			if !ok {
				// 他のスイープが先に処理済み
				continue
			}
			b.OverdueFlaggedAt = &now
			res.Flagged++
			flaggedThisRound++
			s.notifier.Notify(ctx, NotifyOverdue, b)
		}
		if len(candidates) < sweepBatchSize || flaggedThisRound == 0 {
			break
		}
	}

	span.SetAttributes(attribute.Int("flagged", res.Flagged))
	return res, nil
}

// RunSweeper calls SweepOverdue every interval until ctx is done.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			res, err := s.SweepOverdue(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "overdue sweep failed", "error", err)
				continue
			}
			if res.Flagged > 0 {
				logger.InfoContext(ctx, "overdue sweep", "flagged", res.Flagged)
			}
		}
	}
}
