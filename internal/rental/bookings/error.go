package bookings

import (
	"errors"
	"fmt"
	"net/http"
)

// -------------- Error model & mapping --------------

type Code string

const (
	CodeNotFound           Code = "NOT_FOUND"
	CodeInvalidInterval    Code = "INVALID_INTERVAL"
	CodeProductNotRentable Code = "PRODUCT_NOT_RENTABLE"
	CodeSlotUnavailable    Code = "SLOT_UNAVAILABLE"
	CodeInvalidTransition  Code = "INVALID_TRANSITION"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeConflict           Code = "CONFLICT"
	CodeInvalidArgument    Code = "INVALID_ARGUMENT"
	CodeUnavailable        Code = "UNAVAILABLE" // ストア到達不可。呼び出し側でリトライ
	CodeInternal           Code = "INTERNAL"
)

type APIError struct {
	Code    Code
	Message string
}

func (e *APIError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

func ErrInvalid(msg string) *APIError         { return &APIError{Code: CodeInvalidArgument, Message: msg} }
func ErrNotFound(msg string) *APIError        { return &APIError{Code: CodeNotFound, Message: msg} }
func ErrInvalidInterval(msg string) *APIError { return &APIError{Code: CodeInvalidInterval, Message: msg} }
func ErrSlotUnavailable(msg string) *APIError { return &APIError{Code: CodeSlotUnavailable, Message: msg} }
func ErrUnauthorized(msg string) *APIError    { return &APIError{Code: CodeUnauthorized, Message: msg} }
func ErrConflict(msg string) *APIError        { return &APIError{Code: CodeConflict, Message: msg} }
func ErrUnavailable(msg string) *APIError     { return &APIError{Code: CodeUnavailable, Message: msg} }
func ErrInternal(msg string) *APIError        { return &APIError{Code: CodeInternal, Message: msg} }

func ErrProductNotRentable(productID uint64) *APIError {
	return &APIError{Code: CodeProductNotRentable, Message: fmt.Sprintf("product %d is not available for rental", productID)}
}

func ErrInvalidTransition(from Status, ev Event) *APIError {
	return &APIError{
		Code:    CodeInvalidTransition,
		Message: fmt.Sprintf("cannot %s a booking in status %q", ev, from),
	}
}

// Store-level failures. The Repository returns these (possibly wrapped);
// the Service turns them into APIError.
var (
	ErrRecordNotFound   = errors.New("record not found")
	ErrWriteConflict    = errors.New("write conflict")
	ErrDuplicate        = errors.New("duplicate key")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// translate maps store errors onto the public taxonomy. A write conflict is
// reported as SlotUnavailable so that a race lost at commit time looks the
// same to callers as one caught by the pre-check.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var api *APIError
	switch {
	case errors.As(err, &api):
		return api
	case errors.Is(err, ErrRecordNotFound):
		return ErrNotFound("booking not found")
	case errors.Is(err, ErrProductNotFound):
		return ErrNotFound("product not found")
	case errors.Is(err, ErrWriteConflict):
		return ErrSlotUnavailable("the selected dates were just booked by someone else")
	case errors.Is(err, ErrDuplicate):
		return ErrConflict("booking already exists")
	case errors.Is(err, ErrStoreUnavailable):
		return ErrUnavailable("booking store is unreachable, retry later")
	default:
		return err
	}
}

func ToHTTPStatus(err error) int {
	var api *APIError
	if errors.As(err, &api) {
		switch api.Code {
		case CodeInvalidArgument, CodeInvalidInterval:
			return http.StatusBadRequest
		case CodeNotFound:
			return http.StatusNotFound
		case CodeProductNotRentable:
			return http.StatusUnprocessableEntity
		case CodeSlotUnavailable, CodeInvalidTransition, CodeConflict:
			return http.StatusConflict
		case CodeUnauthorized:
			return http.StatusForbidden
		case CodeUnavailable:
			return http.StatusServiceUnavailable
		default:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}
