package products

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

const productCols = `product_id, name, description, is_rentable, daily_rate, weekly_rate, monthly_rate, deposit_default, created_at, updated_at`

func (s *Store) Insert(ctx context.Context, in CreateProductRequest) (uint64, error) {
	const q = `
		INSERT INTO products
		  (name, description, is_rentable, daily_rate, weekly_rate, monthly_rate, deposit_default, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, UTC_TIMESTAMP(6), UTC_TIMESTAMP(6))`
	res, err := s.db.ExecContext(ctx, q,
		in.Name, in.Description, in.IsRentable, in.DailyRate, in.WeeklyRate, in.MonthlyRate, in.DepositDefault)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	return uint64(id), err
}

func (s *Store) GetByID(ctx context.Context, id uint64) (*ProductResponse, error) {
	q := `SELECT ` + productCols + ` FROM products WHERE product_id = ?`
	p, err := scanProduct(s.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoProduct
	}
	return p, err
}

func (s *Store) Update(ctx context.Context, id uint64, in UpdateProductRequest) error {
	// 動的アップデート
	sets := []string{}
	args := []any{}
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if in.Name != nil {
		add("name", strings.TrimSpace(*in.Name))
	}
	if in.Description != nil {
		add("description", *in.Description)
	}
	if in.IsRentable != nil {
		add("is_rentable", *in.IsRentable)
	}
	if in.DailyRate != nil {
		add("daily_rate", *in.DailyRate)
	}
	if in.WeeklyRate != nil {
		add("weekly_rate", *in.WeeklyRate)
	}
	if in.MonthlyRate != nil {
		add("monthly_rate", *in.MonthlyRate)
	}
	if in.DepositDefault != nil {
		add("deposit_default", *in.DepositDefault)
	}
	if len(sets) == 0 {
		// 変更なし
		return nil
	}
	sets = append(sets, "updated_at = UTC_TIMESTAMP(6)")
	args = append(args, id)

	q := fmt.Sprintf(`UPDATE products SET %s WHERE product_id = ?`, strings.Join(sets, ", "))
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	if aff, _ := res.RowsAffected(); aff == 0 {
		return ErrNoProduct
	}
	return nil
}

func (s *Store) List(ctx context.Context, sq SearchQuery, p Page) ([]ProductResponse, int64, error) {
	var where strings.Builder
	args := []any{}
	where.WriteString(" WHERE 1=1")
	if sq.Name != nil && *sq.Name != "" {
		where.WriteString(" AND name LIKE ?")
		args = append(args, "%"+*sq.Name+"%")
	}
	if sq.RentableOnly {
		where.WriteString(" AND is_rentable = 1")
	}

	order := "DESC"
	if strings.ToLower(p.Order) == "asc" {
		order = "ASC"
	}
	q := `SELECT ` + productCols + ` FROM products` + where.String() +
		` ORDER BY created_at ` + order + ` LIMIT ? OFFSET ?`

	rows, err := s.db.QueryContext(ctx, q, append(args, p.Limit, p.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	list := []ProductResponse{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`+where.String(), args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

type rowScanner interface{ Scan(dest ...any) error }

func scanProduct(r rowScanner) (*ProductResponse, error) {
	var (
		p                        ProductResponse
		desc                     sql.NullString
		weekly, monthly, deposit sql.NullFloat64
	)
	if err := r.Scan(&p.ProductID, &p.Name, &desc, &p.IsRentable, &p.DailyRate,
		&weekly, &monthly, &deposit, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if desc.Valid {
		p.Description = &desc.String
	}
	p.WeeklyRate = floatPtr(weekly)
	p.MonthlyRate = floatPtr(monthly)
	p.DepositDefault = floatPtr(deposit)
	return &p, nil
}

func floatPtr(n sql.NullFloat64) *float64 {
	if n.Valid {
		v := n.Float64
		return &v
	}
	return nil
}
