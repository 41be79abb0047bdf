package bookings

import "time"

// ===== Requests =====

type CreateBookingRequest struct {
	ProductID       uint64           `json:"product_id" validate:"required"`
	StartDate       time.Time        `json:"start_date" validate:"required"`
	EndDate         time.Time        `json:"end_date" validate:"required"`
	DeliveryAddress *DeliveryAddress `json:"delivery_address,omitempty" validate:"omitempty"`
	Notes           *string          `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

type ActivateBookingRequest struct {
	Condition  *Condition `json:"condition,omitempty" validate:"omitempty"`
	AdminNotes *string    `json:"admin_notes,omitempty" validate:"omitempty,max=2000"`
}

type ReturnBookingRequest struct {
	// 管理者のみ指定可。未指定なら現在時刻
	ActualReturnAt *time.Time `json:"actual_return_at,omitempty"`
	Condition      *Condition `json:"condition,omitempty" validate:"omitempty"`
}

type CancelBookingRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

type RecordPaymentRequest struct {
	PaymentStatus PaymentStatus `json:"payment_status" validate:"required"`
}

// ===== Responses =====

type BookingResponse struct {
	BookingID       uint64           `json:"booking_id"`
	BookingNumber   string           `json:"booking_number"`
	ProductID       uint64           `json:"product_id"`
	CustomerID      string           `json:"customer_id"`
	StartDate       time.Time        `json:"start_date"`
	EndDate         time.Time        `json:"end_date"`
	DailyRate       float64          `json:"daily_rate"`
	TotalDays       int              `json:"total_days"`
	TotalAmount     float64          `json:"total_amount"`
	Deposit         float64          `json:"deposit"`
	LateFee         float64          `json:"late_fee"`
	DamageFee       float64          `json:"damage_fee"`
	RefundAmount    float64          `json:"refund_amount"`
	ActualReturnAt  *time.Time       `json:"actual_return_at,omitempty"`
	Status          Status           `json:"status"`
	EffectiveStatus Status           `json:"effective_status"`
	PaymentStatus   PaymentStatus    `json:"payment_status"`
	DeliveryAddress *DeliveryAddress `json:"delivery_address,omitempty"`
	PickupCondition *Condition       `json:"condition_at_pickup,omitempty"`
	ReturnCondition *Condition       `json:"condition_at_return,omitempty"`
	Notes           *string          `json:"notes,omitempty"`
	CancelReason    *string          `json:"cancel_reason,omitempty"`
	AdminNotes      *string          `json:"admin_notes,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

type ReturnResponse struct {
	Booking BookingResponse `json:"booking"`
	Fees    Settlement      `json:"fees"`
}

// AvailabilityResponse.HeldByPending counts fresh pending bookings on the
// dates. Available only reflects confirmed and active ones, so while it is
// above zero a new booking request still fails with SLOT_UNAVAILABLE.
type AvailabilityResponse struct {
	ProductID           uint64    `json:"product_id"`
	StartDate           time.Time `json:"start_date"`
	EndDate             time.Time `json:"end_date"`
	Available           bool      `json:"available"`
	ConflictingBookings int       `json:"conflicting_bookings"`
	HeldByPending       int       `json:"held_by_pending"`
	Pricing             *Quote    `json:"pricing"`
}

type ListBookingsResult struct {
	Items      []BookingResponse `json:"items"`
	Total      int64             `json:"total"`
	NextOffset *int              `json:"next_offset,omitempty"`
}

type AdminListResult struct {
	ListBookingsResult
	Stats []StatusStat `json:"stats"`
}

type SweepResult struct {
	Flagged int `json:"flagged"`
}

func toResponse(b *Booking, now time.Time) BookingResponse {
	return BookingResponse{
		BookingID:       b.BookingID,
		BookingNumber:   b.BookingNumber,
		ProductID:       b.ProductID,
		CustomerID:      b.CustomerID,
		StartDate:       b.Interval.Start,
		EndDate:         b.Interval.End,
		DailyRate:       b.DailyRate,
		TotalDays:       b.TotalDays,
		TotalAmount:     b.TotalAmount,
		Deposit:         b.Deposit,
		LateFee:         b.LateFee,
		DamageFee:       b.DamageFee,
		RefundAmount:    b.RefundAmount,
		ActualReturnAt:  b.ActualReturnAt,
		Status:          b.Status,
		EffectiveStatus: b.EffectiveStatus(now),
		PaymentStatus:   b.PaymentStatus,
		DeliveryAddress: b.DeliveryAddress,
		PickupCondition: b.ConditionAtPickup,
		ReturnCondition: b.ConditionAtReturn,
		Notes:           b.Notes,
		CancelReason:    b.CancelReason,
		AdminNotes:      b.AdminNotes,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

func nextOffset(p Page, n int, total int64) *int {
	if next := p.Offset + n; n > 0 && int64(next) < total {
		return &next
	}
	return nil
}
