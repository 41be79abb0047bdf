package products

import "time"

// ===== Requests =====

type CreateProductRequest struct {
	Name           string   `json:"name" binding:"required,max=200"`
	Description    *string  `json:"description,omitempty"`
	IsRentable     bool     `json:"is_rentable"`
	DailyRate      float64  `json:"daily_rate" binding:"gte=0"`
	WeeklyRate     *float64 `json:"weekly_rate,omitempty" binding:"omitempty,gte=0"`
	MonthlyRate    *float64 `json:"monthly_rate,omitempty" binding:"omitempty,gte=0"`
	DepositDefault *float64 `json:"deposit_default,omitempty" binding:"omitempty,gte=0"`
}

type UpdateProductRequest struct {
	Name           *string  `json:"name,omitempty" binding:"omitempty,max=200"`
	Description    *string  `json:"description,omitempty"`
	IsRentable     *bool    `json:"is_rentable,omitempty"`
	DailyRate      *float64 `json:"daily_rate,omitempty" binding:"omitempty,gte=0"`
	WeeklyRate     *float64 `json:"weekly_rate,omitempty" binding:"omitempty,gte=0"`
	MonthlyRate    *float64 `json:"monthly_rate,omitempty" binding:"omitempty,gte=0"`
	DepositDefault *float64 `json:"deposit_default,omitempty" binding:"omitempty,gte=0"`
}

// ===== Responses =====

type ProductResponse struct {
	ProductID      uint64    `json:"product_id"`
	Name           string    `json:"name"`
	Description    *string   `json:"description,omitempty"`
	IsRentable     bool      `json:"is_rentable"`
	DailyRate      float64   `json:"daily_rate"`
	WeeklyRate     *float64  `json:"weekly_rate,omitempty"`
	MonthlyRate    *float64  `json:"monthly_rate,omitempty"`
	DepositDefault *float64  `json:"deposit_default,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type ListProductsResult struct {
	Items      []ProductResponse `json:"items"`
	Total      int64             `json:"total"`
	NextOffset *int              `json:"next_offset,omitempty"`
}

// ===== Listing helpers =====

type Page struct {
	Limit  int
	Offset int
	Order  string // "asc" or "desc"
}

type SearchQuery struct {
	Name         *string // 部分一致
	RentableOnly bool
}
