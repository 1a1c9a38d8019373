package errors

import (
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/shippingcomps/backend/pkg/models"
)

// Helpers for the standard error responses. Internal error detail is logged
// server-side; clients get a stable error code and a safe message.

// ValidationError responds 400 for malformed or incomplete input
func ValidationError(c echo.Context, err error) error {
	log.Printf("[VALIDATION ERROR] %s %s: %v", c.Request().Method, c.Request().URL.Path, err)
	return c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error:   "validation_error",
		Details: "The request is missing required fields or contains invalid values.",
	})
}

// NotFoundError responds 404 for a missing resource
func NotFoundError(c echo.Context, resource string) error {
	return c.JSON(http.StatusNotFound, models.ErrorResponse{
		Error:   "not_found",
		Details: resource + " not found",
	})
}

// PaymentRequiredError responds 402 when the user has no tokens left
func PaymentRequiredError(c echo.Context) error {
	return c.JSON(http.StatusPaymentRequired, models.ErrorResponse{
		Error:   "insufficient_tokens",
		Details: "Your token balance is empty. Purchase a token pack to run more analyses.",
	})
}

// DatabaseError responds 500 for persistence failures without leaking detail
func DatabaseError(c echo.Context, err error) error {
	log.Printf("[DATABASE ERROR] %s %s: %v", c.Request().Method, c.Request().URL.Path, err)
	return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Error:   "internal_error",
		Details: "Something went wrong. Please try again.",
	})
}

// InternalError responds 500 for any other server-side failure
func InternalError(c echo.Context, err error) error {
	log.Printf("[INTERNAL ERROR] %s %s: %v", c.Request().Method, c.Request().URL.Path, err)
	return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Error:   "internal_error",
		Details: "Something went wrong. Please try again.",
	})
}

// AnalysisError responds 500 for a failed analysis run. The elapsed time is
// included so clients can show how long the attempt took.
func AnalysisError(c echo.Context, details string, elapsedMs int64) error {
	log.Printf("[ANALYSIS ERROR] %s %s: %s", c.Request().Method, c.Request().URL.Path, details)
	return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Error:          "analysis_failed",
		Details:        details,
		AnalysisTimeMs: elapsedMs,
	})
}
