package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/octobees/enrichment-pipeline/internal/requestid"
)

// APIResponse is the envelope every endpoint answers with. RequestID echoes the
// X-Request-ID assigned by the middleware so clients can quote it in reports.
type APIResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Data      any    `json:"data,omitempty"`
}

// Success writes data under a "success" envelope. A zero status means 200.
func Success(c echo.Context, status int, message string, data any) error {
	if status == 0 {
		status = http.StatusOK
	}
	return c.JSON(status, envelope(c, "success", message, data))
}

// Error writes an "error" envelope without data. A zero status means 500.
func Error(c echo.Context, status int, message string) error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return c.JSON(status, envelope(c, "error", message, nil))
}

func envelope(c echo.Context, status, message string, data any) APIResponse {
	return APIResponse{
		Status:    status,
		Message:   message,
		RequestID: requestid.FromContext(c.Request().Context()),
		Data:      data,
	}
}
