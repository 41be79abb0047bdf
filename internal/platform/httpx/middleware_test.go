package httpx

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestIDAndLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	r := gin.New()
	r.Use(RequestID(), StructuredLogger(logger))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	req := httptest.NewRequest(http.MethodGet, "/ping?x=1", nil)
	req.Header.Set("X-Request-ID", "req-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))
	assert.Contains(t, buf.String(), `"request_id":"req-123"`)
	assert.Contains(t, buf.String(), `"path":"/ping?x=1"`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Len(t, w.Header().Get("X-Request-ID"), 36)
}

func TestRateLimiter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	lim := NewRateLimiter(1, 2)

	r := gin.New()
	r.POST("/bookings", lim.Middleware(), func(c *gin.Context) { c.Status(http.StatusCreated) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/bookings", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusCreated, http.StatusCreated, http.StatusTooManyRequests}, codes)

	// other clients have their own bucket
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/bookings", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestRateLimiterEvictsIdleKeys(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	lim := NewRateLimiter(1, 1)
	lim.now = func() time.Time { return now }

	assert.True(t, lim.Allow("alice"))
	assert.False(t, lim.Allow("alice"))
	now = now.Add(5 * time.Minute)
	assert.True(t, lim.Allow("bob"))
	require.Equal(t, 2, lim.Len())

	now = now.Add(8 * time.Minute)
	assert.Equal(t, 1, lim.Evict(10*time.Minute))
	assert.Equal(t, 1, lim.Len())

	// evicted keys come back with a fresh bucket
	assert.True(t, lim.Allow("alice"))
	assert.Equal(t, 2, lim.Len())

	now = now.Add(time.Hour)
	assert.Equal(t, 2, lim.Evict(10*time.Minute))
	assert.Equal(t, 0, lim.Len())
}
