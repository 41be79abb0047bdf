package bookings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"RENTAL-backend/internal/platform/db"
)

// Store is the MySQL Repository.
//
// Per-product serialization: every product gets one row in rental_locks and
// InProductTx holds it with SELECT ... FOR UPDATE for the whole transaction,
// so availability reads and booking writes for a product never interleave
// across processes.
type Store struct {
	db     *sql.DB
	tracer trace.Tracer
}

func NewStore(conn *sql.DB) *Store {
	return &Store{db: conn, tracer: otel.Tracer("rental-backend/bookings/store")}
}

const bookingCols = `
	booking_id, booking_number, product_id, customer_id, start_at, end_at,
	daily_rate, total_days, total_amount, deposit, late_fee, damage_fee, refund_amount,
	actual_return_at, status, payment_status,
	condition_at_pickup, condition_at_return, delivery_address,
	notes, cancel_reason, admin_notes, overdue_flagged_at, created_at, updated_at`

var txOpts = &sql.TxOptions{Isolation: sql.LevelReadCommitted}

func (s *Store) span(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("db.system", "mysql"))
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...), trace.WithSpanKind(trace.SpanKindClient))
}

// ===== Transactions =====

func (s *Store) InProductTx(ctx context.Context, productID uint64, fn func(ctx context.Context, tx Tx) error) error {
	ctx, span := s.span(ctx, "store.in_product_tx", attribute.Int64("product_id", int64(productID)))
	defer span.End()

	// ロック行は初回だけ作る（トランザクション外で確定させる）
	const qEnsure = `INSERT IGNORE INTO rental_locks (product_id, created_at) VALUES (?, UTC_TIMESTAMP(6))`
	if _, err := s.db.ExecContext(ctx, qEnsure, productID); err != nil {
		return classify(err)
	}

	err := db.RunInTx(ctx, s.db, txOpts, func(ctx context.Context, q db.DBTX) error {
		const qLock = `SELECT product_id FROM rental_locks WHERE product_id = ? FOR UPDATE`
		var locked uint64
		if err := q.QueryRowContext(ctx, qLock, productID).Scan(&locked); err != nil {
			return err
		}
		return fn(ctx, sqlTx{q: q})
	})
	if err != nil {
		span.RecordError(err)
	}
	return classify(err)
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	ctx, span := s.span(ctx, "store.in_tx")
	defer span.End()

	err := db.RunInTx(ctx, s.db, txOpts, func(ctx context.Context, q db.DBTX) error {
		return fn(ctx, sqlTx{q: q})
	})
	if err != nil {
		span.RecordError(err)
	}
	return classify(err)
}

// classify turns driver errors into the Repository sentinels.
func classify(err error) error {
	var api *APIError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &api):
		return err
	case errors.Is(err, sql.ErrNoRows):
		return ErrRecordNotFound
	case db.IsWriteConflict(err):
		return fmt.Errorf("%w: %v", ErrWriteConflict, err)
	case db.IsDuplicate(err):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	case db.IsMissingReference(err):
		// rental_bookings.product_id の参照先が消えている
		return fmt.Errorf("%w: %v", ErrProductNotFound, err)
	case db.IsUnavailable(err):
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	default:
		return err
	}
}

type sqlTx struct{ q db.DBTX }

func (t sqlTx) FindOverlapping(ctx context.Context, oq OverlapQuery) ([]Booking, error) {
	return findOverlapping(ctx, t.q, oq)
}

func (t sqlTx) LockByID(ctx context.Context, id uint64) (*Booking, error) {
	q := `SELECT ` + bookingCols + ` FROM rental_bookings WHERE booking_id = ? FOR UPDATE`
	return scanBooking(t.q.QueryRowContext(ctx, q, id))
}

func (t sqlTx) Insert(ctx context.Context, b *Booking) error {
	const q = `
		INSERT INTO rental_bookings
		  (booking_number, product_id, customer_id, start_at, end_at,
		   daily_rate, total_days, total_amount, deposit, late_fee, damage_fee, refund_amount,
		   actual_return_at, status, payment_status,
		   condition_at_pickup, condition_at_return, delivery_address,
		   notes, cancel_reason, admin_notes, overdue_flagged_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	pickup, ret, addr, err := encodeJSONCols(b)
	if err != nil {
		return err
	}
	res, err := t.q.ExecContext(ctx, q,
		b.BookingNumber, b.ProductID, b.CustomerID, b.Interval.Start, b.Interval.End,
		b.DailyRate, b.TotalDays, b.TotalAmount, b.Deposit, b.LateFee, b.DamageFee, b.RefundAmount,
		nullTime(b.ActualReturnAt), string(b.Status), string(b.PaymentStatus),
		pickup, ret, addr,
		toNullString(b.Notes), toNullString(b.CancelReason), toNullString(b.AdminNotes),
		nullTime(b.OverdueFlaggedAt), b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.BookingID = uint64(id)
	return nil
}

// Update writes the mutable columns. Dates and quoted prices never change.
func (t sqlTx) Update(ctx context.Context, b *Booking) error {
	const q = `
		UPDATE rental_bookings SET
		  status = ?, payment_status = ?,
		  late_fee = ?, damage_fee = ?, refund_amount = ?, actual_return_at = ?,
		  condition_at_pickup = ?, condition_at_return = ?,
		  cancel_reason = ?, admin_notes = ?, overdue_flagged_at = ?, updated_at = ?
		WHERE booking_id = ?`

	pickup, ret, _, err := encodeJSONCols(b)
	if err != nil {
		return err
	}
	res, err := t.q.ExecContext(ctx, q,
		string(b.Status), string(b.PaymentStatus),
		b.LateFee, b.DamageFee, b.RefundAmount, nullTime(b.ActualReturnAt),
		pickup, ret,
		toNullString(b.CancelReason), toNullString(b.AdminNotes), nullTime(b.OverdueFlaggedAt), b.UpdatedAt,
		b.BookingID,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// 値が同一でも MySQL は 0 を返すので存在確認だけする
		var one int
		if err := t.q.QueryRowContext(ctx, `SELECT 1 FROM rental_bookings WHERE booking_id = ?`, b.BookingID).Scan(&one); err != nil {
			return err
		}
	}
	return nil
}

// ===== Reads =====

func (s *Store) FindOverlapping(ctx context.Context, oq OverlapQuery) ([]Booking, error) {
	ctx, span := s.span(ctx, "store.find_overlapping", attribute.Int64("product_id", int64(oq.ProductID)))
	defer span.End()
	rows, err := findOverlapping(ctx, s.db, oq)
	return rows, classify(err)
}

func findOverlapping(ctx context.Context, q db.DBTX, oq OverlapQuery) ([]Booking, error) {
	if len(oq.Statuses) == 0 {
		return nil, nil
	}
	var sb strings.Builder
	args := []any{oq.ProductID, oq.Interval.End, oq.Interval.Start}
	sb.WriteString(`SELECT ` + bookingCols + ` FROM rental_bookings
		WHERE product_id = ? AND start_at < ? AND end_at > ?`)

	sb.WriteString(" AND status IN (?" + strings.Repeat(", ?", len(oq.Statuses)-1) + ")")
	for _, st := range oq.Statuses {
		args = append(args, string(st))
	}
	if oq.ExcludeID != 0 {
		sb.WriteString(" AND booking_id <> ?")
		args = append(args, oq.ExcludeID)
	}
	if oq.CreatedSince != nil {
		sb.WriteString(" AND created_at >= ?")
		args = append(args, *oq.CreatedSince)
	}
	sb.WriteString(" ORDER BY start_at")

	return queryBookings(ctx, q, sb.String(), args...)
}

func (s *Store) FindByID(ctx context.Context, id uint64) (*Booking, error) {
	ctx, span := s.span(ctx, "store.find_by_id", attribute.Int64("booking_id", int64(id)))
	defer span.End()
	q := `SELECT ` + bookingCols + ` FROM rental_bookings WHERE booking_id = ?`
	b, err := scanBooking(s.db.QueryRowContext(ctx, q, id))
	return b, classify(err)
}

func (s *Store) FindByNumber(ctx context.Context, number string) (*Booking, error) {
	ctx, span := s.span(ctx, "store.find_by_number")
	defer span.End()
	q := `SELECT ` + bookingCols + ` FROM rental_bookings WHERE booking_number = ?`
	b, err := scanBooking(s.db.QueryRowContext(ctx, q, number))
	return b, classify(err)
}

func whereClause(f Filter) (string, []any) {
	var sb strings.Builder
	args := []any{}
	sb.WriteString(" WHERE 1=1")
	if f.CustomerID != nil {
		sb.WriteString(" AND customer_id = ?")
		args = append(args, *f.CustomerID)
	}
	if f.ProductID != nil {
		sb.WriteString(" AND product_id = ?")
		args = append(args, *f.ProductID)
	}
	if f.Status != nil {
		sb.WriteString(" AND status = ?")
		args = append(args, string(*f.Status))
	}
	if f.Overdue {
		sb.WriteString(" AND status = 'active' AND end_at < ?")
		args = append(args, f.OverdueAt)
	}
	if f.From != nil {
		sb.WriteString(" AND start_at >= ?")
		args = append(args, *f.From)
	}
	if f.To != nil {
		sb.WriteString(" AND start_at < ?")
		args = append(args, *f.To)
	}
	return sb.String(), args
}

func (s *Store) List(ctx context.Context, f Filter, p Page) (list []Booking, total int64, err error) {
	ctx, span := s.span(ctx, "store.list")
	defer span.End()

	where, args := whereClause(f)
	order := "DESC"
	if strings.ToLower(p.Order) == "asc" {
		order = "ASC"
	}
	if p.Limit <= 0 {
		p.Limit = 50
	}
	if p.Offset < 0 {
		p.Offset = 0
	}

	// 一覧と件数を同じスナップショットで取る
	err = db.ReadOnly(ctx, s.db, func(ctx context.Context, q db.DBTX) error {
		query := `SELECT ` + bookingCols + ` FROM rental_bookings` + where +
			` ORDER BY created_at ` + order + `, booking_id ` + order + ` LIMIT ? OFFSET ?`
		list, err = queryBookings(ctx, q, query, append(args, p.Limit, p.Offset)...)
		if err != nil {
			return err
		}
		return q.QueryRowContext(ctx, `SELECT COUNT(*) FROM rental_bookings`+where, args...).Scan(&total)
	})
	if err != nil {
		return nil, 0, classify(err)
	}
	return list, total, nil
}

func (s *Store) Stats(ctx context.Context, f Filter) ([]StatusStat, error) {
	ctx, span := s.span(ctx, "store.stats")
	defer span.End()

	where, args := whereClause(f)
	q := `SELECT status, COUNT(*), COALESCE(SUM(total_amount), 0) FROM rental_bookings` + where +
		` GROUP BY status ORDER BY status`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	stats := []StatusStat{}
	for rows.Next() {
		var st StatusStat
		var status string
		if err := rows.Scan(&status, &st.Count, &st.TotalRevenue); err != nil {
			return nil, err
		}
		st.Status = Status(status)
		stats = append(stats, st)
	}
	return stats, classify(rows.Err())
}

// ===== Overdue sweep =====

func (s *Store) ListOverdueCandidates(ctx context.Context, now time.Time, limit int) ([]Booking, error) {
	ctx, span := s.span(ctx, "store.list_overdue_candidates")
	defer span.End()
	q := `SELECT ` + bookingCols + ` FROM rental_bookings
		WHERE status = 'active' AND end_at < ? AND overdue_flagged_at IS NULL
		ORDER BY end_at LIMIT ?`
	rows, err := queryBookings(ctx, s.db, q, now, limit)
	return rows, classify(err)
}

// FlagOverdue stamps overdue_flagged_at only if nobody did it before.
// It reports whether this call was the one that set it.
func (s *Store) FlagOverdue(ctx context.Context, id uint64, at time.Time) (bool, error) {
	ctx, span := s.span(ctx, "store.flag_overdue", attribute.Int64("booking_id", int64(id)))
	defer span.End()
	const q = `
		UPDATE rental_bookings SET overdue_flagged_at = ?, updated_at = ?
		WHERE booking_id = ? AND status = 'active' AND overdue_flagged_at IS NULL`
	res, err := s.db.ExecContext(ctx, q, at, at, id)
	if err != nil {
		return false, classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ===== Scanning =====

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(r rowScanner) (*Booking, error) {
	var (
		b                               Booking
		status, payment                 string
		actualReturn, overdueFlagged    sql.NullTime
		pickup, ret, addr               []byte
		notes, cancelReason, adminNotes sql.NullString
	)
	err := r.Scan(
		&b.BookingID, &b.BookingNumber, &b.ProductID, &b.CustomerID, &b.Interval.Start, &b.Interval.End,
		&b.DailyRate, &b.TotalDays, &b.TotalAmount, &b.Deposit, &b.LateFee, &b.DamageFee, &b.RefundAmount,
		&actualReturn, &status, &payment,
		&pickup, &ret, &addr,
		&notes, &cancelReason, &adminNotes, &overdueFlagged, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.Status = Status(status)
	b.PaymentStatus = PaymentStatus(payment)
	b.ActualReturnAt = timePtr(actualReturn)
	b.OverdueFlaggedAt = timePtr(overdueFlagged)
	b.Notes = nullToPtr(notes)
	b.CancelReason = nullToPtr(cancelReason)
	b.AdminNotes = nullToPtr(adminNotes)

	if b.ConditionAtPickup, err = decodeJSON[Condition](pickup); err != nil {
		return nil, err
	}
	if b.ConditionAtReturn, err = decodeJSON[Condition](ret); err != nil {
		return nil, err
	}
	if b.DeliveryAddress, err = decodeJSON[DeliveryAddress](addr); err != nil {
		return nil, err
	}
	return &b, nil
}

func queryBookings(ctx context.Context, q db.DBTX, query string, args ...any) ([]Booking, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *b)
	}
	return list, rows.Err()
}

// ===== helpers =====

func encodeJSONCols(b *Booking) (pickup, ret, addr any, err error) {
	if pickup, err = encodeJSON(b.ConditionAtPickup); err != nil {
		return
	}
	if ret, err = encodeJSON(b.ConditionAtReturn); err != nil {
		return
	}
	addr, err = encodeJSON(b.DeliveryAddress)
	return
}

// encodeJSON returns nil (SQL NULL) for a nil pointer.
func encodeJSON[T any](v *T) (any, error) {
	if v == nil {
		return nil, nil
	}
	buf, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

func decodeJSON[T any](raw []byte) (*T, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func toNullString(s *string) (ns sql.NullString) {
	if s != nil && strings.TrimSpace(*s) != "" {
		ns.Valid, ns.String = true, *s
	}
	return
}

func nullToPtr(ns sql.NullString) *string {
	if ns.Valid {
		v := ns.String
		return &v
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if nt.Valid {
		t := nt.Time.UTC()
		return &t
	}
	return nil
}
