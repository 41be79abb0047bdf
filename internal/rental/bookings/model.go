package bookings

import "time"

type PaymentStatus string

const (
	PaymentPending     PaymentStatus = "pending"
	PaymentDepositPaid PaymentStatus = "deposit_paid"
	PaymentFullyPaid   PaymentStatus = "fully_paid"
	PaymentRefunded    PaymentStatus = "refunded"
)

func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentPending, PaymentDepositPaid, PaymentFullyPaid, PaymentRefunded:
		return true
	}
	return false
}

// Condition is the assessment recorded at pickup and at return.
type Condition struct {
	Rating           int      `json:"rating" validate:"required,min=1,max=5"`
	Notes            *string  `json:"notes,omitempty" validate:"omitempty,max=2000"`
	Images           []string `json:"images,omitempty" validate:"omitempty,max=10,dive,url"`
	DamageAssessment *string  `json:"damage_assessment,omitempty" validate:"omitempty,max=2000"`
}

type DeliveryAddress struct {
	Name    string `json:"name" validate:"required,max=100"`
	Phone   string `json:"phone" validate:"required,max=32"`
	Address string `json:"address" validate:"required,max=255"`
	City    string `json:"city" validate:"required,max=100"`
	ZipCode string `json:"zip_code" validate:"required,max=16"`
}

type Booking struct {
	BookingID     uint64
	BookingNumber string
	ProductID     uint64
	CustomerID    string
	Interval      Interval

	DailyRate    float64
	TotalDays    int
	TotalAmount  float64
	Deposit      float64
	LateFee      float64
	DamageFee    float64
	RefundAmount float64

	ActualReturnAt *time.Time
	Status         Status
	PaymentStatus  PaymentStatus

	ConditionAtPickup *Condition
	ConditionAtReturn *Condition
	DeliveryAddress   *DeliveryAddress

	Notes            *string
	CancelReason     *string
	AdminNotes       *string
	OverdueFlaggedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// EffectiveStatus reports overdue for an active booking whose end has passed.
// The stored status stays active.
func (b *Booking) EffectiveStatus(now time.Time) Status {
	if b.Status == StatusActive && now.After(b.Interval.End) {
		return StatusOverdue
	}
	return b.Status
}

func (b *Booking) OwnedBy(c Caller) bool {
	return b.CustomerID == c.ID
}

// Caller is who is acting on a booking.
type Caller struct {
	ID    string
	Admin bool
}

type Page struct {
	Limit  int
	Offset int
	Order  string // "asc" or "desc"
}

type Filter struct {
	CustomerID *string
	ProductID  *uint64
	Status     *Status
	// Overdue: active and past end at OverdueAt
	Overdue   bool
	OverdueAt time.Time
	From      *time.Time // start_at >= From
	To        *time.Time // start_at < To
}

type StatusStat struct {
	Status       Status  `json:"status"`
	Count        int64   `json:"count"`
	TotalRevenue float64 `json:"total_revenue"`
}
