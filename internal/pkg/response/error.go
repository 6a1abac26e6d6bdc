package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nekogravitycat/port-booking-backend/internal/pkg/apperror"
)

// ErrorResponse defines the JSON structure for error responses.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Kind    string         `json:"kind"`
	Details map[string]any `json:"details,omitempty"`
}

// detailer is implemented by typed errors that carry structured context,
// such as the window of a conflicting booking.
type detailer interface {
	Details() map[string]any
}

// Error sends a JSON error response.
// It checks if the error is an AppError to determine the status code.
// If it's not an AppError, it defaults to 500 Internal Server Error.
func Error(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		resp := ErrorResponse{Error: err.Error(), Kind: string(appErr.Kind)}
		var d detailer
		if errors.As(err, &d) {
			resp.Details = d.Details()
		}
		c.JSON(appErr.Code, resp)
		return
	}

	// Default to 500 for unknown errors
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Kind: string(apperror.KindInternal)})
}
