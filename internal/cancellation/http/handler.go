package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/port-booking-backend/internal/auth"
	"github.com/nekogravitycat/port-booking-backend/internal/cancellation"
	"github.com/nekogravitycat/port-booking-backend/internal/pkg/request"
	"github.com/nekogravitycat/port-booking-backend/internal/pkg/response"
)

type Handler struct {
	service cancellation.Service
}

func NewHandler(service cancellation.Service) *Handler {
	return &Handler{service: service}
}

// Preview shows what cancelling now would refund, without changing anything.
func (h *Handler) Preview(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	p, err := h.service.PreviewRefund(c.Request.Context(), uri.ID, auth.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewPreviewResponse(p))
}

func (h *Handler) Cancel(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	// The body is optional.
	var body CancelBookingRequest
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	res, err := h.service.Cancel(c.Request.Context(), cancellation.Request{
		BookingID:   uri.ID,
		RequesterID: auth.GetUserID(c),
		Reason:      body.Reason,
		Security: cancellation.SecurityContext{
			ClientAmount: body.ClientAmount,
			IPAddress:    c.ClientIP(),
			UserAgent:    c.Request.UserAgent(),
		},
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewCancelResponse(res))
}
