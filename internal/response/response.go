// Package response renders the JSON envelope shared by every endpoint:
// {"success": true, "message": ..., "data": ...} on success and
// {"success": false, "message": ..., "code": ..., "errors": [...]} on failure.
package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/nestegg-app/nestegg/internal/validation"
)

// Machine readable failure codes.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeDeviceRequired     = "DEVICE_ID_REQUIRED"
	CodeDeviceNotVerified  = "DEVICE_NOT_VERIFIED"
	CodeInsufficientFunds  = "INSUFFICIENT_FUNDS"
	CodeTransactionAborted = "TRANSACTION_ABORTED"
)

func init() {
	// Balances and amounts are rendered as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// Envelope is the body of every response.
type Envelope struct {
	Success  bool                    `json:"success"`
	Message  string                  `json:"message,omitempty"`
	Code     string                  `json:"code,omitempty"`
	Data     any                     `json:"data,omitempty"`
	Errors   []validation.FieldError `json:"errors,omitempty"`
	DeviceID string                  `json:"deviceId,omitempty"`
}

// Error is a failure that already knows its HTTP status and user-facing message.
type Error struct {
	Status   int
	Message  string
	Code     string
	DeviceID string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds an Error without a machine readable code.
func NewError(status int, message string, cause error) *Error {
	return &Error{Status: status, Message: message, Err: cause}
}

// OK writes a success envelope.
func OK(c *fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(Envelope{Success: true, Message: message, Data: data})
}

// ErrorHandler renders every error returned from handlers and middleware as
// a failure envelope. Unexpected errors become a generic 500.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		body := Envelope{Success: false}
		status := http.StatusInternalServerError

		var (
			appErr   *Error
			fiberErr *fiber.Error
			valErr   *validation.Error
		)
		switch {
		case errors.As(err, &appErr):
			status = appErr.Status
			body.Message = appErr.Message
			body.Code = appErr.Code
			body.DeviceID = appErr.DeviceID
		case errors.As(err, &valErr):
			status = http.StatusBadRequest
			body.Message = "Validation error"
			body.Code = CodeValidation
			body.Errors = valErr.Fields
		case errors.As(err, &fiberErr):
			status = fiberErr.Code
			body.Message = fiberErr.Message
		default:
			body.Message = "Internal server error"
		}

		if status >= http.StatusInternalServerError && logger != nil {
			logger.Error("request failed",
				slog.String("method", c.Method()),
				slog.String("path", c.Path()),
				slog.Int("status", status),
				slog.Any("error", err),
			)
		}

		return c.Status(status).JSON(body)
	}
}
