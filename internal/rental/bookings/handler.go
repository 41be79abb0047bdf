package bookings

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"RENTAL-backend/internal/platform/auth"
)

type Handler struct{ svc *Service }

// RegisterRoutes mounts the customer routes. r must already carry RequireAuth.
// createMW runs in front of booking creation only (rate limiting).
func RegisterRoutes(r gin.IRoutes, svc *Service, createMW ...gin.HandlerFunc) {
	h := &Handler{svc: svc}
	r.POST("/bookings", append(createMW, h.CreateBooking)...)
	r.GET("/bookings", h.ListMyBookings)
	// :id は数値IDでも予約番号(RNT-...)でも可
	r.GET("/bookings/:id", h.GetBooking)
	r.POST("/bookings/:id/return", h.ReturnBooking)
	r.POST("/bookings/:id/cancel", h.CancelBooking)
}

func RegisterPublicRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}
	r.GET("/availability/:product_id", h.CheckAvailability)
}

// RegisterAdminRoutes expects r to be guarded by RequireRole("admin").
func RegisterAdminRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}
	r.GET("/bookings", h.ListBookings)
	r.GET("/bookings/export", h.ExportBookings)
	r.POST("/bookings/sweep-overdue", h.SweepOverdue)
	r.POST("/bookings/:id/confirm", h.ConfirmBooking)
	r.POST("/bookings/:id/activate", h.ActivateBooking)
	r.POST("/bookings/:id/payment", h.RecordPayment)
}

// ---------- handlers ----------

// POST /bookings
func (h *Handler) CreateBooking(c *gin.Context) {
	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json or missing required fields"))
		return
	}
	res, err := h.svc.CreateBooking(c.Request.Context(), callerFrom(c), req)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.Header("Location", "/api/v1/bookings/"+res.BookingNumber)
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) GetBooking(c *gin.Context) {
	res, err := h.svc.GetBooking(c.Request.Context(), callerFrom(c), c.Param("id"))
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ListMyBookings(c *gin.Context) {
	var status *Status
	if v := c.Query("status"); v != "" {
		st, err := ParseStatus(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, err.Error()))
			return
		}
		status = &st
	}
	res, err := h.svc.ListMyBookings(c.Request.Context(), callerFrom(c), status, pageFrom(c))
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

// POST /bookings/:id/return
func (h *Handler) ReturnBooking(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	var req ReturnBookingRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	res, err := h.svc.ReturnBooking(c.Request.Context(), callerFrom(c), id, req)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

// POST /bookings/:id/cancel
func (h *Handler) CancelBooking(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	var req CancelBookingRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	res, err := h.svc.CancelBooking(c.Request.Context(), callerFrom(c), id, req)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /availability/:product_id?start=...&end=...
func (h *Handler) CheckAvailability(c *gin.Context) {
	pid, err := strconv.ParseUint(c.Param("product_id"), 10, 64)
	if err != nil || pid == 0 {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "product_id must be a positive integer"))
		return
	}
	start, err1 := parseTimeParam(c.Query("start"))
	end, err2 := parseTimeParam(c.Query("end"))
	if err1 != nil || err2 != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidInterval, "start and end are required (RFC3339 or YYYY-MM-DD)"))
		return
	}
	res, err := h.svc.CheckAvailability(c.Request.Context(), pid, Interval{Start: start, End: end})
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

// ----- admin -----

func (h *Handler) ConfirmBooking(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	res, err := h.svc.ConfirmBooking(c.Request.Context(), callerFrom(c), id)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ActivateBooking(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	var req ActivateBookingRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	res, err := h.svc.ActivateBooking(c.Request.Context(), callerFrom(c), id, req)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) RecordPayment(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	var req RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json"))
		return
	}
	res, err := h.svc.RecordPayment(c.Request.Context(), callerFrom(c), id, req)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) SweepOverdue(c *gin.Context) {
	res, err := h.svc.SweepOverdue(c.Request.Context())
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) ListBookings(c *gin.Context) {
	f, ok := filterFrom(c)
	if !ok {
		return
	}
	res, err := h.svc.ListBookings(c.Request.Context(), callerFrom(c), f, pageFrom(c))
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /admin/bookings/export?encoding=shift_jis
func (h *Handler) ExportBookings(c *gin.Context) {
	f, ok := filterFrom(c)
	if !ok {
		return
	}
	enc, err := ParseCSVEncoding(c.Query("encoding"))
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	body, err := h.svc.ExportBookingsCSV(c.Request.Context(), callerFrom(c), f, enc)
	if err != nil {
		c.JSON(ToHTTPStatus(err), errorFromErr(err))
		return
	}
	name := "bookings-" + time.Now().UTC().Format("20060102") + ".csv"
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, enc.ContentType(), body)
}

// ---------- helpers ----------

func callerFrom(c *gin.Context) Caller {
	ac, ok := auth.CallerFrom(c)
	if !ok {
		return Caller{}
	}
	return Caller{ID: ac.ID, Admin: ac.IsAdmin()}
}

func bookingID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "id must be a positive integer"))
		return 0, false
	}
	return id, true
}

// 本文なしも許可する
func bindOptionalJSON(c *gin.Context, dst any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, "invalid json"))
		return false
	}
	return true
}

func parseTimeParam(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}

func pageFrom(c *gin.Context) Page {
	return Page{
		Limit:  parseIntDefault(c.Query("limit"), 50),
		Offset: parseIntDefault(c.Query("offset"), 0),
		Order:  strings.ToLower(c.DefaultQuery("order", "desc")),
	}
}

func filterFrom(c *gin.Context) (Filter, bool) {
	var f Filter
	if v := c.Query("status"); v != "" {
		st, err := ParseStatus(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, err.Error()))
			return f, false
		}
		f.Status = &st
	}
	bad := func(msg string) (Filter, bool) {
		c.JSON(http.StatusBadRequest, errorBody(CodeInvalidArgument, msg))
		return f, false
	}
	if v := c.Query("product_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil || id == 0 {
			return bad("product_id must be a positive integer")
		}
		f.ProductID = &id
	}
	if v := c.Query("customer_id"); v != "" {
		f.CustomerID = &v
	}
	if v := c.Query("overdue"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return bad("overdue must be true or false")
		}
		f.Overdue = b
	}
	if v := c.Query("from"); v != "" {
		t, err := parseTimeParam(v)
		if err != nil {
			return bad("from must be RFC3339 or YYYY-MM-DD")
		}
		f.From = &t
	}
	if v := c.Query("to"); v != "" {
		t, err := parseTimeParam(v)
		if err != nil {
			return bad("to must be RFC3339 or YYYY-MM-DD")
		}
		f.To = &t
	}
	return f, true
}

func parseIntDefault(s string, d int) int {
	if s == "" {
		return d
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return d
	}
	return n
}

type errorDTO struct {
	Error struct {
		Code    Code   `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func errorBody(code Code, msg string) errorDTO {
	var e errorDTO
	e.Error.Code = code
	e.Error.Message = msg
	return e
}

// Unexpected errors were already logged by the service; the body stays generic.
func errorFromErr(err error) errorDTO {
	if api, ok := err.(*APIError); ok {
		return errorBody(api.Code, api.Message)
	}
	return errorBody(CodeInternal, "internal error")
}
