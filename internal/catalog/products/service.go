package products

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// -------------- Error model --------------

type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeInternal        Code = "INTERNAL"
)

type APIError struct {
	Code    Code
	Message string
}

func (e *APIError) Error() string      { return fmt.Sprintf("%s: %s", e.Code, e.Message) }
func ErrInvalid(msg string) *APIError  { return &APIError{Code: CodeInvalidArgument, Message: msg} }
func ErrNotFound(msg string) *APIError { return &APIError{Code: CodeNotFound, Message: msg} }

func toHTTPStatus(err error) int {
	var api *APIError
	if errors.As(err, &api) {
		switch api.Code {
		case CodeInvalidArgument:
			return http.StatusBadRequest
		case CodeNotFound:
			return http.StatusNotFound
		}
	}
	return http.StatusInternalServerError
}

// ErrNoProduct is what the Repository returns for a missing row.
var ErrNoProduct = errors.New("product does not exist")

type Repository interface {
	Insert(ctx context.Context, in CreateProductRequest) (uint64, error)
	GetByID(ctx context.Context, id uint64) (*ProductResponse, error)
	Update(ctx context.Context, id uint64, in UpdateProductRequest) error
	List(ctx context.Context, q SearchQuery, p Page) ([]ProductResponse, int64, error)
}

// -------------- Service --------------

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func (s *Service) CreateProduct(ctx context.Context, in CreateProductRequest) (ProductResponse, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return ProductResponse{}, ErrInvalid("name is required")
	}
	if in.IsRentable && in.DailyRate <= 0 {
		return ProductResponse{}, ErrInvalid("rentable products need a daily_rate > 0")
	}
	id, err := s.repo.Insert(ctx, in)
	if err != nil {
		return ProductResponse{}, err
	}
	return s.GetProduct(ctx, id)
}

func (s *Service) GetProduct(ctx context.Context, id uint64) (ProductResponse, error) {
	out, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrNoProduct) {
		return ProductResponse{}, ErrNotFound("product not found")
	}
	if err != nil {
		return ProductResponse{}, err
	}
	return *out, nil
}

// 部分更新。変更後も貸出可能なら日額は正であること
func (s *Service) UpdateProduct(ctx context.Context, id uint64, in UpdateProductRequest) (ProductResponse, error) {
	cur, err := s.GetProduct(ctx, id)
	if err != nil {
		return ProductResponse{}, err
	}
	rentable, rate := cur.IsRentable, cur.DailyRate
	if in.IsRentable != nil {
		rentable = *in.IsRentable
	}
	if in.DailyRate != nil {
		rate = *in.DailyRate
	}
	if rentable && rate <= 0 {
		return ProductResponse{}, ErrInvalid("rentable products need a daily_rate > 0")
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return ProductResponse{}, ErrInvalid("name cannot be empty")
	}

	if err := s.repo.Update(ctx, id, in); err != nil {
		if errors.Is(err, ErrNoProduct) {
			return ProductResponse{}, ErrNotFound("product not found")
		}
		return ProductResponse{}, err
	}
	return s.GetProduct(ctx, id)
}

func (s *Service) ListProducts(ctx context.Context, q SearchQuery, p Page) (ListProductsResult, error) {
	if p.Limit <= 0 || p.Limit > 200 {
		p.Limit = 50
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	items, total, err := s.repo.List(ctx, q, p)
	if err != nil {
		return ListProductsResult{}, err
	}
	res := ListProductsResult{Items: items, Total: total}
	if next := p.Offset + len(items); len(items) > 0 && int64(next) < total {
		res.NextOffset = &next
	}
	return res, nil
}
