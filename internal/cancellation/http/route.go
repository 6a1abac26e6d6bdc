package http

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware ...gin.HandlerFunc) {
	group := g.Group("/bookings")

	// === Authenticated Routes ===
	group.Use(authMiddleware...)
	{
		group.GET("/:id/refund-preview", h.Preview) // Refund breakdown if cancelled now
		group.POST("/:id/cancel", h.Cancel)         // Cancel and initiate refund
	}
}
