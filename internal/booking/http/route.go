package http

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware ...gin.HandlerFunc) {
	// === Public Routes ===
	g.GET("/stations/:id/availability", h.Availability)

	group := g.Group("/bookings")

	// === Authenticated Routes ===
	group.Use(authMiddleware...)
	{
		group.GET("", h.List)                   // List own bookings
		group.POST("", h.Create)                // Create booking
		group.GET("/:id", h.Get)                // Get booking details
		group.POST("/:id/extend", h.Extend)     // Extend booking
		group.POST("/:id/check-in", h.CheckIn)  // Start session
		group.POST("/:id/complete", h.Complete) // Finish session early
	}
}
