package api

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nekogravitycat/port-booking-backend/internal/auth"
	"github.com/nekogravitycat/port-booking-backend/internal/booking"
	bookingHttp "github.com/nekogravitycat/port-booking-backend/internal/booking/http"
	"github.com/nekogravitycat/port-booking-backend/internal/cancellation"
	cancelHttp "github.com/nekogravitycat/port-booking-backend/internal/cancellation/http"
	"github.com/nekogravitycat/port-booking-backend/internal/logger"
	"github.com/nekogravitycat/port-booking-backend/internal/user"
)

// Config holds the services the router exposes.
type Config struct {
	IsProduction  bool
	ProdOrigins   string
	Logger        *zap.Logger
	JWTManager    *auth.JWTManager
	Users         user.Repository
	Bookings      booking.Service
	Availability  booking.AvailabilityService
	Cancellations cancellation.Service
}

// NewRouter initializes the HTTP router engine.
// It is responsible for assembling middleware (CORS, Logger, Auth) and registering routes for various modules.
func NewRouter(cfg Config) *gin.Engine {
	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global Middleware:
	// - Logger: One structured line per request.
	// - Recovery: Captures panics to prevent server crashes and returns a 500 error.
	r.Use(logger.GinMiddleware(cfg.Logger), gin.Recovery())

	// Configure CORS (Cross-Origin Resource Sharing).
	config := cors.DefaultConfig()
	config.AllowOrigins = []string{
		"http://localhost:8081", // Swagger
	}
	if cfg.IsProduction && cfg.ProdOrigins != "" {
		config.AllowOrigins = strings.Split(cfg.ProdOrigins, ",")
	}
	config.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	r.Use(cors.New(config))

	// authMiddleware: Validates the JWT, then rejects unknown or disabled accounts.
	// Registered as separate handlers so the account check runs before the route.
	authMiddleware := []gin.HandlerFunc{auth.AuthRequired(cfg.JWTManager), RequireActiveUser(cfg.Users)}

	// Initialize HTTP Handlers for each module (injecting Service dependencies).
	bookingHandler := bookingHttp.NewHandler(cfg.Bookings, cfg.Availability)
	cancelHandler := cancelHttp.NewHandler(cfg.Cancellations)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Register API routes under /v1
	v1 := r.Group("/v1")
	{
		bookingHttp.RegisterRoutes(v1, bookingHandler, authMiddleware...)
		cancelHttp.RegisterRoutes(v1, cancelHandler, authMiddleware...)
	}

	return r
}
