package products

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	next uint64
	rows map[uint64]*ProductResponse
}

func newMemRepo() *memRepo { return &memRepo{rows: map[uint64]*ProductResponse{}} }

func (m *memRepo) Insert(_ context.Context, in CreateProductRequest) (uint64, error) {
	m.next++
	now := time.Now().UTC()
	m.rows[m.next] = &ProductResponse{
		ProductID: m.next, Name: in.Name, Description: in.Description, IsRentable: in.IsRentable,
		DailyRate: in.DailyRate, WeeklyRate: in.WeeklyRate, MonthlyRate: in.MonthlyRate,
		DepositDefault: in.DepositDefault, CreatedAt: now, UpdatedAt: now,
	}
	return m.next, nil
}

func (m *memRepo) GetByID(_ context.Context, id uint64) (*ProductResponse, error) {
	p, ok := m.rows[id]
	if !ok {
		return nil, ErrNoProduct
	}
	cp := *p
	return &cp, nil
}

func (m *memRepo) Update(_ context.Context, id uint64, in UpdateProductRequest) error {
	p, ok := m.rows[id]
	if !ok {
		return ErrNoProduct
	}
	if in.Name != nil {
		p.Name = *in.Name
	}
	if in.IsRentable != nil {
		p.IsRentable = *in.IsRentable
	}
	if in.DailyRate != nil {
		p.DailyRate = *in.DailyRate
	}
	if in.DepositDefault != nil {
		p.DepositDefault = in.DepositDefault
	}
	return nil
}

func (m *memRepo) List(_ context.Context, q SearchQuery, p Page) ([]ProductResponse, int64, error) {
	out := []ProductResponse{}
	for id := uint64(1); id <= m.next; id++ {
		r, ok := m.rows[id]
		if !ok || (q.RentableOnly && !r.IsRentable) {
			continue
		}
		out = append(out, *r)
	}
	total := int64(len(out))
	if p.Offset >= len(out) {
		return []ProductResponse{}, total, nil
	}
	end := p.Offset + p.Limit
	if end > len(out) {
		end = len(out)
	}
	return out[p.Offset:end], total, nil
}

func TestCreateProduct(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemRepo())

	_, err := svc.CreateProduct(ctx, CreateProductRequest{Name: "  "})
	assert.Equal(t, http.StatusBadRequest, toHTTPStatus(err))

	_, err = svc.CreateProduct(ctx, CreateProductRequest{Name: "Tent", IsRentable: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "daily_rate")

	p, err := svc.CreateProduct(ctx, CreateProductRequest{Name: "Tent", IsRentable: true, DailyRate: 1000})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), p.ProductID)
	assert.True(t, p.IsRentable)
}

func TestUpdateProduct(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemRepo())
	p, err := svc.CreateProduct(ctx, CreateProductRequest{Name: "Kayak", IsRentable: false})
	require.NoError(t, err)

	yes := true
	_, err = svc.UpdateProduct(ctx, p.ProductID, UpdateProductRequest{IsRentable: &yes})
	require.Error(t, err, "rentable without a rate")

	rate := 2500.0
	got, err := svc.UpdateProduct(ctx, p.ProductID, UpdateProductRequest{IsRentable: &yes, DailyRate: &rate})
	require.NoError(t, err)
	assert.Equal(t, 2500.0, got.DailyRate)

	_, err = svc.UpdateProduct(ctx, 99, UpdateProductRequest{DailyRate: &rate})
	assert.Equal(t, http.StatusNotFound, toHTTPStatus(err))
}

func TestListProductsPaging(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemRepo())
	for i := 0; i < 3; i++ {
		_, err := svc.CreateProduct(ctx, CreateProductRequest{Name: "Bike", IsRentable: true, DailyRate: 800})
		require.NoError(t, err)
	}

	res, err := svc.ListProducts(ctx, SearchQuery{}, Page{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, res.Items, 2)
	assert.Equal(t, int64(3), res.Total)
	require.NotNil(t, res.NextOffset)
	assert.Equal(t, 2, *res.NextOffset)

	res, err = svc.ListProducts(ctx, SearchQuery{}, Page{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, res.Items, 1)
	assert.Nil(t, res.NextOffset)
}

func TestProductHandlers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := NewService(newMemRepo())
	r := gin.New()
	RegisterRoutes(r, svc)
	RegisterAdminRoutes(r, svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(`{"name":"Camera","is_rentable":true,"daily_rate":1200}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "/api/v1/products/1", w.Header().Get("Location"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/products/1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"daily_rate":1200`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/products/42", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":{"code":"NOT_FOUND","message":"product not found"}}`, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/products/abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
