// Package errors contains the service error type shared by every HTTP-facing service.
// A ServiceError carries a Category that decides the HTTP status and a Message
// that is safe to show to the client; the wrapped Err is only logged.
package errors

import (
	"errors"
	"net/http"
	"time"
)

// Category defines error category
type Category int

const (
	// CategoryGeneralError The service failed in an unexpected way
	CategoryGeneralError Category = iota
	// CategoryDataError The client sent invalid data in the payload or parameters
	CategoryDataError
	// CategoryUnauthorized The caller could not be authenticated
	CategoryUnauthorized
	// CategoryForbidden The caller may not perform the operation in its current state
	CategoryForbidden
	// CategoryResourceNotFound The requested resource does not exist
	CategoryResourceNotFound
	// CategoryDataConflict The request conflicts with existing data
	CategoryDataConflict
	// CategoryTooEarly The request is valid but may only be repeated after a wait
	CategoryTooEarly
	// CategoryPaymentRequired The request depends on a payment that could not be verified
	CategoryPaymentRequired
	// CategoryDependencyFailure A dependent service is failing
	CategoryDependencyFailure
	// CategoryRecovering The service is failing but is expected to recover
	CategoryRecovering
)

type categoryInfo struct {
	name     string
	status   int
	fallback string
	internal bool
}

var categories = map[Category]categoryInfo{
	CategoryGeneralError:      {"CategoryGeneralError", http.StatusInternalServerError, "internal server error", true},
	CategoryDataError:         {"CategoryDataError", http.StatusBadRequest, "bad request", false},
	CategoryUnauthorized:      {"CategoryUnauthorized", http.StatusUnauthorized, "unauthorized", false},
	CategoryForbidden:         {"CategoryForbidden", http.StatusForbidden, "request forbidden", false},
	CategoryResourceNotFound:  {"CategoryResourceNotFound", http.StatusNotFound, "resource not found", false},
	CategoryDataConflict:      {"CategoryDataConflict", http.StatusConflict, "conflict", false},
	CategoryTooEarly:          {"CategoryTooEarly", http.StatusTooEarly, "too early", false},
	CategoryPaymentRequired:   {"CategoryPaymentRequired", http.StatusPaymentRequired, "payment required", false},
	CategoryDependencyFailure: {"CategoryDependencyFailure", http.StatusBadGateway, "dependency failure", true},
	CategoryRecovering:        {"CategoryRecovering", http.StatusServiceUnavailable, "recovering", true},
}

func (c Category) info() categoryInfo {
	if info, ok := categories[c]; ok {
		return info
	}
	return categories[CategoryGeneralError]
}

func (c Category) String() string {
	return c.info().name
}

// ServiceError represents service specific type that
// is used all over the services.
type ServiceError struct {
	Category Category
	Message  string
	Err      error
	// RetryAfter tells the client when the request may succeed. Zero means unknown.
	RetryAfter time.Duration
}

// Error method to comply with error interface
func (err ServiceError) Error() string {
	if err.Err != nil {
		return err.Err.Error()
	}
	return err.Message
}

// Unwrap returns the underlying error
func (err ServiceError) Unwrap() error {
	return err.Err
}

// Is matches a target whose text equals the client message
func (err ServiceError) Is(target error) bool {
	return target != nil && err.Message == target.Error()
}

// StatusCode returns the HTTP status code for the error category
func (err ServiceError) StatusCode() int {
	return err.Category.info().status
}

// Is checks that provided error is a ServiceError with desired Category
func Is(err error, cat Category) bool {
	var svcErr *ServiceError
	return errors.As(err, &svcErr) && svcErr.Category == cat
}

// IsInternalError reports whether err is a server-side failure.
// Errors that are not a ServiceError count as internal.
func IsInternalError(err error) bool {
	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		return true
	}
	return svcErr.Category.info().internal
}

func newError(cat Category, err error, message string) *ServiceError {
	if err == nil {
		err = errors.New(cat.info().fallback + ": " + message)
	}
	return &ServiceError{Category: cat, Message: message, Err: err}
}

// GeneralError hides err behind "Internal Server Error"; err is only logged
func GeneralError(err error) error {
	return newError(CategoryGeneralError, err, "Internal Server Error")
}

// ResourceNotFoundError returns an error with category ResourceNotFound
func ResourceNotFoundError(err error, message string) error {
	return newError(CategoryResourceNotFound, err, message)
}

// BadRequestError returns an error with category DataError
func BadRequestError(err error, message string) error {
	return newError(CategoryDataError, err, message)
}

// ForbiddenError returns an error with category Forbidden
func ForbiddenError(err error, message string) error {
	return newError(CategoryForbidden, err, message)
}

// UnAuthorizedError returns an error with category Unauthorized
func UnAuthorizedError(err error, message string) error {
	return newError(CategoryUnauthorized, err, message)
}

// ConflictError returns an error with category DataConflict
func ConflictError(err error, message string) error {
	return newError(CategoryDataConflict, err, message)
}

// TooEarlyError returns an error with category TooEarly.
// retryAfter is sent to the client as the Retry-After header.
func TooEarlyError(err error, message string, retryAfter time.Duration) error {
	e := newError(CategoryTooEarly, err, message)
	e.RetryAfter = retryAfter
	return e
}

// PaymentRequiredError returns an error with category PaymentRequired
func PaymentRequiredError(err error, message string) error {
	return newError(CategoryPaymentRequired, err, message)
}

// DependencyFailureError returns an error with category DependencyFailure
func DependencyFailureError(err error, message string) error {
	return newError(CategoryDependencyFailure, err, message)
}

// RecoveringError returns an error with category Recovering.
// The client is expected to retry.
func RecoveringError(err error, message string) error {
	return newError(CategoryRecovering, err, message)
}

// WithRetryAfter sets RetryAfter on a ServiceError and returns it.
// Other errors are returned unchanged.
func WithRetryAfter(err error, d time.Duration) error {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		svcErr.RetryAfter = d
	}
	return err
}
