package bookings

import (
	"context"
	"crypto/rand"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	ulid "github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// -------------- Collaborators --------------

type Clock interface{ Now() time.Time }
type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

type IDGen interface{ NewULID(t time.Time) string }
type ulidGen struct{}

func (ulidGen) NewULID(t time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// Tx is the unit of work handed out by InTx / InProductTx.
type Tx interface {
	OverlapFinder
	// LockByID reads a booking and holds its row until the Tx ends.
	LockByID(ctx context.Context, id uint64) (*Booking, error)
	// Insert stores b and fills in b.BookingID.
	Insert(ctx context.Context, b *Booking) error
	Update(ctx context.Context, b *Booking) error
}

type Repository interface {
	OverlapFinder
	// InProductTx serializes fn against every other InProductTx for the same product.
	InProductTx(ctx context.Context, productID uint64, fn func(ctx context.Context, tx Tx) error) error
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	FindByID(ctx context.Context, id uint64) (*Booking, error)
	FindByNumber(ctx context.Context, number string) (*Booking, error)
	List(ctx context.Context, f Filter, p Page) ([]Booking, int64, error)
	Stats(ctx context.Context, f Filter) ([]StatusStat, error)

	// Overdue sweep
	ListOverdueCandidates(ctx context.Context, now time.Time, limit int) ([]Booking, error)
	FlagOverdue(ctx context.Context, id uint64, at time.Time) (bool, error)
}

type RentalInfo struct {
	IsRentable     bool
	DailyRate      float64
	WeeklyRate     float64
	MonthlyRate    float64
	DepositDefault float64
}

// Catalog returns ErrProductNotFound when the product does not exist.
type Catalog interface {
	GetRentalInfo(ctx context.Context, productID uint64) (RentalInfo, error)
}

var ErrProductNotFound = errors.New("product not found")

type NotifyEvent string

const (
	NotifyCreated   NotifyEvent = "booking.created"
	NotifyConfirmed NotifyEvent = "booking.confirmed"
	NotifyActivated NotifyEvent = "booking.activated"
	NotifyReturned  NotifyEvent = "booking.returned"
	NotifyCancelled NotifyEvent = "booking.cancelled"
	NotifyOverdue   NotifyEvent = "booking.overdue"
	NotifyPayment   NotifyEvent = "booking.payment_updated"
)

// Notifier must not block; failures are its own business.
type Notifier interface {
	Notify(ctx context.Context, ev NotifyEvent, b Booking)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, NotifyEvent, Booking) {}

// -------------- Service --------------

const (
	bookingNumberPrefix = "RNT-"
	sweepBatchSize      = 200
	exportPageSize      = 500
)

var validate = validator.New()

type Service struct {
	repo     Repository
	catalog  Catalog
	notifier Notifier
	clock    Clock
	id       IDGen
	hold     time.Duration
	tracer   trace.Tracer
}

type Option func(*Service)

func WithClock(c Clock) Option       { return func(s *Service) { s.clock = c } }
func WithIDGen(g IDGen) Option       { return func(s *Service) { s.id = g } }
func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }

// WithPendingHold sets how long a new pending booking keeps other new
// requests off its dates. Zero disables the hold.
func WithPendingHold(d time.Duration) Option { return func(s *Service) { s.hold = d } }

func NewService(repo Repository, catalog Catalog, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		catalog:  catalog,
		notifier: nopNotifier{},
		clock:    realClock{},
		id:       ulidGen{},
		hold:     30 * time.Minute,
		tracer:   otel.Tracer("rental-backend/bookings"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// finish records err on the span and returns it mapped to the public taxonomy.
func finish(span trace.Span, err error) error {
	defer span.End()
	err = translate(err)
	if err == nil {
		return nil
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	var api *APIError
	if !errors.As(err, &api) {
		slog.Error("bookings: unexpected error", "error", err)
	}
	return err
}

func validationError(err error) error {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		fe := ve[0]
		return ErrInvalid(strings.ToLower(fe.Namespace()) + " failed on " + fe.Tag())
	}
	return ErrInvalid(err.Error())
}

// 予約作成
func (s *Service) CreateBooking(ctx context.Context, caller Caller, in CreateBookingRequest) (resp BookingResponse, err error) {
	ctx, span := s.start(ctx, "bookings.create", attribute.Int64("product_id", int64(in.ProductID)))
	defer func() { err = finish(span, err) }()

	if caller.ID == "" {
		return resp, ErrUnauthorized("caller is required")
	}
	iv := Interval{Start: in.StartDate.UTC(), End: in.EndDate.UTC()}
	if err := iv.Validate(); err != nil {
		return resp, err
	}
	if err := validate.Struct(in); err != nil {
		return resp, validationError(err)
	}
	now := s.clock.Now()
	if iv.Start.Before(now) {
		return resp, ErrInvalidInterval("start date cannot be in the past")
	}

	info, err := s.rentalInfo(ctx, in.ProductID)
	if err != nil {
		return resp, err
	}

	q := QuoteFor(info.DailyRate, iv, info.DepositDefault)
	b := &Booking{
		BookingNumber:   bookingNumberPrefix + s.id.NewULID(now),
		ProductID:       in.ProductID,
		CustomerID:      caller.ID,
		Interval:        iv,
		DailyRate:       q.DailyRate,
		TotalDays:       q.TotalDays,
		TotalAmount:     q.TotalAmount,
		Deposit:         q.Deposit,
		Status:          StatusPending,
		PaymentStatus:   PaymentPending,
		DeliveryAddress: in.DeliveryAddress,
		Notes:           in.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	// Check and insert under the product lock
	err = s.repo.InProductTx(ctx, in.ProductID, func(ctx context.Context, tx Tx) error {
		chk := NewChecker(tx)
		conflicts, err := chk.Conflicts(ctx, in.ProductID, iv, 0)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return ErrSlotUnavailable("product is not available for the selected dates")
		}
		if s.hold > 0 {
			held, err := chk.HeldBy(ctx, in.ProductID, iv, now.Add(-s.hold))
			if err != nil {
				return err
			}
			if len(held) > 0 {
				return ErrSlotUnavailable("the selected dates are held by another pending booking")
			}
		}
		return tx.Insert(ctx, b)
	})
	if err != nil {
		return resp, err
	}

	span.SetAttributes(attribute.String("booking_number", b.BookingNumber))
	s.notifier.Notify(ctx, NotifyCreated, *b)
	return toResponse(b, now), nil
}

func (s *Service) rentalInfo(ctx context.Context, productID uint64) (RentalInfo, error) {
	if productID == 0 {
		return RentalInfo{}, ErrInvalid("product_id is required")
	}
	info, err := s.catalog.GetRentalInfo(ctx, productID)
	if errors.Is(err, ErrProductNotFound) {
		return info, ErrNotFound("product not found")
	}
	if err != nil {
		return info, err
	}
	if !info.IsRentable || info.DailyRate <= 0 {
		return info, ErrProductNotRentable(productID)
	}
	return info, nil
}

// 予約確定（管理者）。確定時に自分以外の確定済み予約と再照合する
func (s *Service) ConfirmBooking(ctx context.Context, caller Caller, id uint64) (resp BookingResponse, err error) {
	ctx, span := s.start(ctx, "bookings.confirm", attribute.Int64("booking_id", int64(id)))
	defer func() { err = finish(span, err) }()

	if !caller.Admin {
		return resp, ErrUnauthorized("admin role required")
	}
	cur, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return resp, err
	}

	now := s.clock.Now()
	var b *Booking
	err = s.repo.InProductTx(ctx, cur.ProductID, func(ctx context.Context, tx Tx) error {
		locked, err := tx.LockByID(ctx, id)
		if err != nil {
			return err
		}
		b = locked
		to, err := Next(b.Status, EventConfirm)
		if err != nil {
			return err
		}
		ok, err := NewChecker(tx).IsAvailable(ctx, b.ProductID, b.Interval, b.BookingID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrSlotUnavailable("another booking was confirmed for these dates")
		}
		b.Status = to
		b.UpdatedAt = now
		return tx.Update(ctx, b)
	})
	if err != nil {
		return resp, err
	}

	s.notifier.Notify(ctx, NotifyConfirmed, *b)
	return toResponse(b, now), nil
}

// 受け渡し（管理者）
func (s *Service) ActivateBooking(ctx context.Context, caller Caller, id uint64, in ActivateBookingRequest) (resp BookingResponse, err error) {
	ctx, span := s.start(ctx, "bookings.activate", attribute.Int64("booking_id", int64(id)))
	defer func() { err = finish(span, err) }()

	if !caller.Admin {
		return resp, ErrUnauthorized("admin role required")
	}
	if err := validate.Struct(in); err != nil {
		return resp, validationError(err)
	}

	now := s.clock.Now()
	b, err := s.transition(ctx, id, func(b *Booking) error {
		to, err := Next(b.Status, EventActivate)
		if err != nil {
			return err
		}
		b.Status = to
		if in.Condition != nil {
			b.ConditionAtPickup = in.Condition
		}
		if in.AdminNotes != nil {
			b.AdminNotes = in.AdminNotes
		}
		b.UpdatedAt = now
		return nil
	})
	if err != nil {
		return resp, err
	}

	s.notifier.Notify(ctx, NotifyActivated, *b)
	return toResponse(b, now), nil
}

// 返却。料金精算はここで一度だけ行う
func (s *Service) ReturnBooking(ctx context.Context, caller Caller, id uint64, in ReturnBookingRequest) (resp ReturnResponse, err error) {
	ctx, span := s.start(ctx, "bookings.return", attribute.Int64("booking_id", int64(id)))
	defer func() { err = finish(span, err) }()

	if err := validate.Struct(in); err != nil {
		return resp, validationError(err)
	}
	now := s.clock.Now()
	returnedAt := now
	if in.ActualReturnAt != nil {
		if !caller.Admin {
			return resp, ErrUnauthorized("only admins can set actual_return_at")
		}
		returnedAt = in.ActualReturnAt.UTC()
		if returnedAt.After(now) {
			return resp, ErrInvalid("actual_return_at cannot be in the future")
		}
	}

	var fees Settlement
	b, err := s.transition(ctx, id, func(b *Booking) error {
		if !caller.Admin && !b.OwnedBy(caller) {
			return ErrUnauthorized("not your booking")
		}
		to, err := Next(b.Status, EventReturn)
		if err != nil {
			return err
		}
		// 早期受け渡し後の前倒し返却は可。指定時刻だけ開始前を弾く
		if in.ActualReturnAt != nil && returnedAt.Before(b.Interval.Start) {
			return ErrInvalid("actual_return_at is before the rental start")
		}

		var rating *int
		if in.Condition != nil {
			rating = &in.Condition.Rating
			b.ConditionAtReturn = in.Condition
		}
		fees = SettleReturn(*b, returnedAt, rating)

		b.Status = to
		b.ActualReturnAt = &returnedAt
		b.LateFee = fees.LateFee
		b.DamageFee = fees.DamageFee
		b.RefundAmount = fees.RefundAmount
		b.UpdatedAt = now
		return nil
	})
	if err != nil {
		return resp, err
	}

	span.SetAttributes(attribute.Int("late_days", fees.LateDays))
	s.notifier.Notify(ctx, NotifyReturned, *b)
	return ReturnResponse{Booking: toResponse(b, now), Fees: fees}, nil
}

// キャンセル（本人または管理者）
func (s *Service) CancelBooking(ctx context.Context, caller Caller, id uint64, in CancelBookingRequest) (resp BookingResponse, err error) {
	ctx, span := s.start(ctx, "bookings.cancel", attribute.Int64("booking_id", int64(id)))
	defer func() { err = finish(span, err) }()

	if err := validate.Struct(in); err != nil {
		return resp, validationError(err)
	}

	now := s.clock.Now()
	b, err := s.transition(ctx, id, func(b *Booking) error {
		if !caller.Admin && !b.OwnedBy(caller) {
			return ErrUnauthorized("not your booking")
		}
		to, err := Next(b.Status, EventCancel)
		if err != nil {
			return err
		}
		b.Status = to
		if reason := strings.TrimSpace(in.Reason); reason != "" {
			b.CancelReason = &reason
		}
		b.UpdatedAt = now
		return nil
	})
	if err != nil {
		return resp, err
	}

	s.notifier.Notify(ctx, NotifyCancelled, *b)
	return toResponse(b, now), nil
}

// 決済サービスからのステータス通知
func (s *Service) RecordPayment(ctx context.Context, caller Caller, id uint64, in RecordPaymentRequest) (resp BookingResponse, err error) {
	ctx, span := s.start(ctx, "bookings.record_payment", attribute.Int64("booking_id", int64(id)))
	defer func() { err = finish(span, err) }()

	if !caller.Admin {
		return resp, ErrUnauthorized("admin role required")
	}
	if !in.PaymentStatus.Valid() {
		return resp, ErrInvalid("payment_status must be one of pending, deposit_paid, fully_paid, refunded")
	}

	now := s.clock.Now()
	b, err := s.transition(ctx, id, func(b *Booking) error {
		b.PaymentStatus = in.PaymentStatus
		b.UpdatedAt = now
		return nil
	})
	if err != nil {
		return resp, err
	}

	s.notifier.Notify(ctx, NotifyPayment, *b)
	return toResponse(b, now), nil
}

// transition locks one booking, lets mutate change it and writes it back.
func (s *Service) transition(ctx context.Context, id uint64, mutate func(b *Booking) error) (*Booking, error) {
	var b *Booking
	err := s.repo.InTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		b, err = tx.LockByID(ctx, id)
		if err != nil {
			return err
		}
		if err := mutate(b); err != nil {
			return err
		}
		return tx.Update(ctx, b)
	})
	return b, err
}

// 空き状況照会（公開）
func (s *Service) CheckAvailability(ctx context.Context, productID uint64, iv Interval) (resp AvailabilityResponse, err error) {
	ctx, span := s.start(ctx, "bookings.check_availability", attribute.Int64("product_id", int64(productID)))
	defer func() { err = finish(span, err) }()

	iv = Interval{Start: iv.Start.UTC(), End: iv.End.UTC()}
	if err := iv.Validate(); err != nil {
		return resp, err
	}
	info, err := s.rentalInfo(ctx, productID)
	if err != nil {
		return resp, err
	}
	conflicts, err := NewChecker(s.repo).Conflicts(ctx, productID, iv, 0)
	if err != nil {
		return resp, err
	}

	resp = AvailabilityResponse{
		ProductID:           productID,
		StartDate:           iv.Start,
		EndDate:             iv.End,
		Available:           len(conflicts) == 0,
		ConflictingBookings: len(conflicts),
	}
	if s.hold > 0 {
		held, err := NewChecker(s.repo).HeldBy(ctx, productID, iv, s.clock.Now().Add(-s.hold))
		if err != nil {
			return resp, err
		}
		resp.HeldByPending = len(held)
	}
	if resp.Available {
		q := QuoteFor(info.DailyRate, iv, info.DepositDefault)
		resp.Pricing = &q
	}
	return resp, nil
}

// GetBooking accepts either the numeric id or the RNT- booking number.
func (s *Service) GetBooking(ctx context.Context, caller Caller, key string) (resp BookingResponse, err error) {
	ctx, span := s.start(ctx, "bookings.get", attribute.String("key", key))
	defer func() { err = finish(span, err) }()

	var b *Booking
	if id, perr := strconv.ParseUint(key, 10, 64); perr == nil {
		b, err = s.repo.FindByID(ctx, id)
	} else if strings.HasPrefix(key, bookingNumberPrefix) {
		b, err = s.repo.FindByNumber(ctx, key)
	} else {
		return resp, ErrInvalid("key must be a booking id or booking number")
	}
	if err != nil {
		return resp, err
	}
	if !caller.Admin && !b.OwnedBy(caller) {
		return resp, ErrUnauthorized("not your booking")
	}
	return toResponse(b, s.clock.Now()), nil
}

func (s *Service) ListMyBookings(ctx context.Context, caller Caller, status *Status, p Page) (res ListBookingsResult, err error) {
	ctx, span := s.start(ctx, "bookings.list_mine")
	defer func() { err = finish(span, err) }()

	if caller.ID == "" {
		return res, ErrUnauthorized("caller is required")
	}
	return s.list(ctx, Filter{CustomerID: &caller.ID, Status: status}, p)
}

// 管理者向け一覧＋ステータス別集計
func (s *Service) ListBookings(ctx context.Context, caller Caller, f Filter, p Page) (res AdminListResult, err error) {
	ctx, span := s.start(ctx, "bookings.list")
	defer func() { err = finish(span, err) }()

	if !caller.Admin {
		return res, ErrUnauthorized("admin role required")
	}
	if f.Overdue {
		f.OverdueAt = s.clock.Now()
	}
	list, err := s.list(ctx, f, p)
	if err != nil {
		return res, err
	}
	stats, err := s.repo.Stats(ctx, Filter{})
	if err != nil {
		return res, err
	}
	return AdminListResult{ListBookingsResult: list, Stats: stats}, nil
}

func (s *Service) list(ctx context.Context, f Filter, p Page) (ListBookingsResult, error) {
	p = normalizePage(p)
	rows, total, err := s.repo.List(ctx, f, p)
	if err != nil {
		return ListBookingsResult{}, err
	}
	now := s.clock.Now()
	items := make([]BookingResponse, 0, len(rows))
	for i := range rows {
		items = append(items, toResponse(&rows[i], now))
	}
	return ListBookingsResult{Items: items, Total: total, NextOffset: nextOffset(p, len(items), total)}, nil
}

func normalizePage(p Page) Page {
	if p.Limit <= 0 || p.Limit > 200 {
		p.Limit = 50
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Order != "asc" {
		p.Order = "desc"
	}
	return p
}
