package bookings

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

type CSVEncoding string

const (
	CSVUTF8     CSVEncoding = "utf-8"
	CSVShiftJIS CSVEncoding = "shift_jis"
)

func ParseCSVEncoding(s string) (CSVEncoding, error) {
	switch strings.ToLower(strings.ReplaceAll(s, "-", "_")) {
	case "", "utf_8", "utf8":
		return CSVUTF8, nil
	case "shift_jis", "sjis", "cp932":
		return CSVShiftJIS, nil
	}
	return "", ErrInvalid("encoding must be utf-8 or shift_jis")
}

func (e CSVEncoding) ContentType() string {
	if e == CSVShiftJIS {
		return "text/csv; charset=Shift_JIS"
	}
	return "text/csv; charset=utf-8"
}

var csvHeader = []string{
	"booking_number", "product_id", "customer_id", "start_date", "end_date",
	"status", "effective_status", "payment_status",
	"daily_rate", "total_days", "total_amount", "deposit",
	"late_fee", "damage_fee", "refund_amount", "actual_return_at",
	"delivery_name", "delivery_city", "cancel_reason", "created_at",
}

// ExportBookingsCSV writes every booking matching f (admin only).
func (s *Service) ExportBookingsCSV(ctx context.Context, caller Caller, f Filter, enc CSVEncoding) (out []byte, err error) {
	ctx, span := s.start(ctx, "bookings.export_csv")
	defer func() { err = finish(span, err) }()

	if !caller.Admin {
		return nil, ErrUnauthorized("admin role required")
	}
	now := s.clock.Now()
	if f.Overdue {
		f.OverdueAt = now
	}

	var all []Booking
	p := Page{Limit: exportPageSize, Order: "asc"}
	for {
		rows, total, err := s.repo.List(ctx, f, p)
		if err != nil {
			return nil, err
		}
		all = append(all, rows...)
		p.Offset += len(rows)
		if len(rows) == 0 || int64(p.Offset) >= total {
			break
		}
	}

	var b bytes.Buffer
	if err := writeBookingsCSV(&b, all, now, enc); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func writeBookingsCSV(dst io.Writer, rows []Booking, now time.Time, enc CSVEncoding) error {
	var tw io.WriteCloser
	if enc == CSVShiftJIS {
		// Windows の Excel でそのまま開けるよう CP932 で出力
		tw = transform.NewWriter(dst, encoding.ReplaceUnsupported(japanese.ShiftJIS.NewEncoder()))
	} else {
		tw = nopCloser{dst}
	}

	w := csv.NewWriter(tw)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for i := range rows {
		if err := w.Write(csvRecord(&rows[i], now)); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return tw.Close()
}

func csvRecord(b *Booking, now time.Time) []string {
	money := func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }
	ts := func(t time.Time) string { return t.UTC().Format(time.RFC3339) }

	returned := ""
	if b.ActualReturnAt != nil {
		returned = ts(*b.ActualReturnAt)
	}
	var name, city string
	if b.DeliveryAddress != nil {
		name, city = b.DeliveryAddress.Name, b.DeliveryAddress.City
	}
	reason := ""
	if b.CancelReason != nil {
		reason = *b.CancelReason
	}

	return []string{
		b.BookingNumber,
		strconv.FormatUint(b.ProductID, 10),
		b.CustomerID,
		ts(b.Interval.Start),
		ts(b.Interval.End),
		string(b.Status),
		string(b.EffectiveStatus(now)),
		string(b.PaymentStatus),
		money(b.DailyRate),
		strconv.Itoa(b.TotalDays),
		money(b.TotalAmount),
		money(b.Deposit),
		money(b.LateFee),
		money(b.DamageFee),
		money(b.RefundAmount),
		returned,
		name,
		city,
		reason,
		ts(b.CreatedAt),
	}
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
