package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"docvault/internal/errs"
	"docvault/internal/http/middleware"
	"docvault/internal/repository"
	"docvault/internal/scan"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
	// CreatedIDs lists documents a failed batch upload saved before it stopped.
	CreatedIDs []string `json:"created_ids,omitempty"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// writeError writes a standardized JSON error response without leaking internal errors.
//
// Parameters:
// - status: HTTP status code to return
// - code: machine-readable short error code (e.g., "INVALID_REQUEST", "NOT_FOUND")
// - message: human-readable safe message (no internal details)
// - field: the offending input field, if any
func writeError(c *fiber.Ctx, status int, code, message, field string) error {
	res := errorPayload{
		RequestID: middleware.RequestIDFrom(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
			Field:   field,
		},
	}
	return c.Status(status).JSON(res)
}

// writeServiceError maps a service failure onto the error envelope. Only
// InvalidRequest failures expose their message, since those describe client input.
func writeServiceError(c *fiber.Ctx, err error, createdIDs ...string) error {
	status, env := classify(err)
	return c.Status(status).JSON(errorPayload{
		RequestID:  middleware.RequestIDFrom(c),
		Error:      env,
		CreatedIDs: createdIDs,
	})
}

func classify(err error) (int, errorEnvelope) {
	switch {
	case errors.Is(err, scan.ErrMalicious):
		return fiber.StatusBadRequest, errorEnvelope{Code: "MALICIOUS_CONTENT", Message: "file was rejected by the content scanner", Field: errs.FieldOf(err)}
	case errors.Is(err, errs.InvalidRequest):
		return fiber.StatusBadRequest, errorEnvelope{Code: "INVALID_REQUEST", Message: errs.Message(err), Field: errs.FieldOf(err)}
	case errors.Is(err, errs.NotFound):
		return fiber.StatusNotFound, errorEnvelope{Code: "NOT_FOUND", Message: "document not found"}
	case errors.Is(err, errs.Forbidden):
		return fiber.StatusForbidden, errorEnvelope{Code: "FORBIDDEN", Message: "access denied"}
	case errors.Is(err, errs.StorageFailure):
		return fiber.StatusBadGateway, errorEnvelope{Code: "STORAGE_UNAVAILABLE", Message: "object storage unavailable"}
	case errors.Is(err, repository.ErrConflict):
		return fiber.StatusConflict, errorEnvelope{Code: "CONFLICT", Message: "document was modified concurrently, retry"}
	default:
		return fiber.StatusInternalServerError, errorEnvelope{Code: "INTERNAL_ERROR", Message: "internal server error"}
	}
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request", "")
		case fiber.StatusUnauthorized:
			return writeError(c, status, "UNAUTHORIZED", "authentication required", "")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found", "")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed", "")
		case fiber.StatusRequestEntityTooLarge:
			return writeError(c, status, "PAYLOAD_TOO_LARGE", "request body too large", "")
		default:
			return writeError(c, status, "INTERNAL_ERROR", "internal server error", "")
		}
	}
}
