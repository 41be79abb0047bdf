package bookings

import (
	"context"
	"errors"

	"RENTAL-backend/internal/catalog/products"
)

// ProductGetter is the part of the product service the rental side reads.
type ProductGetter interface {
	GetProduct(ctx context.Context, id uint64) (products.ProductResponse, error)
}

type productCatalog struct{ products ProductGetter }

func NewProductCatalog(p ProductGetter) Catalog { return productCatalog{products: p} }

func (c productCatalog) GetRentalInfo(ctx context.Context, productID uint64) (RentalInfo, error) {
	p, err := c.products.GetProduct(ctx, productID)
	if err != nil {
		var api *products.APIError
		if errors.As(err, &api) && api.Code == products.CodeNotFound {
			return RentalInfo{}, ErrProductNotFound
		}
		return RentalInfo{}, err
	}
	return RentalInfo{
		IsRentable:     p.IsRentable,
		DailyRate:      p.DailyRate,
		WeeklyRate:     deref(p.WeeklyRate),
		MonthlyRate:    deref(p.MonthlyRate),
		DepositDefault: deref(p.DepositDefault),
	}, nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
