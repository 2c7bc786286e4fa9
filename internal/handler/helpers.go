package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/agentgauge/agentgauge/internal/pkg/errors"
)

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// errorResponse creates a standardized JSON error response.
func errorResponse(c *fiber.Ctx, statusCode int, message string) error {
	errorName := "Error"
	switch statusCode {
	case fiber.StatusBadRequest:
		errorName = "Bad Request"
	case fiber.StatusUnauthorized:
		errorName = "Unauthorized"
	case fiber.StatusForbidden:
		errorName = "Forbidden"
	case fiber.StatusNotFound:
		errorName = "Not Found"
	case fiber.StatusConflict:
		errorName = "Conflict"
	case fiber.StatusUnprocessableEntity:
		errorName = "Unprocessable Entity"
	case fiber.StatusBadGateway:
		errorName = "Bad Gateway"
	case fiber.StatusInternalServerError:
		errorName = "Internal Server Error"
	}

	return c.Status(statusCode).JSON(ErrorResponse{
		Error:   errorName,
		Message: message,
	})
}

// appErrorResponse translates a service error into the standard JSON
// shape. AppErrors carry their own status code and a client-safe message;
// anything else becomes an opaque 500 so internals never leak.
func appErrorResponse(c *fiber.Ctx, err error, fallback string) error {
	if appErr := apperrors.GetAppError(err); appErr != nil {
		return errorResponse(c, appErr.StatusCode, appErr.Message)
	}
	return errorResponse(c, fiber.StatusInternalServerError, fallback)
}

// parseQueryInt parses an integer query parameter with a default value.
func parseQueryInt(c *fiber.Ctx, key string, defaultValue int) int {
	val := c.Query(key)
	if val == "" {
		return defaultValue
	}
	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return intVal
}

// parseQueryFloat parses a float query parameter with a default value.
func parseQueryFloat(c *fiber.Ctx, key string, defaultValue float64) float64 {
	val := c.Query(key)
	if val == "" {
		return defaultValue
	}
	floatVal, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultValue
	}
	return floatVal
}
