package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/port-booking-backend/internal/auth"
	"github.com/nekogravitycat/port-booking-backend/internal/pkg/response"
	"github.com/nekogravitycat/port-booking-backend/internal/user"
)

// RequireActiveUser ensures the token subject is a known, active account.
// It MUST be used after auth.AuthRequired middleware.
func RequireActiveUser(users user.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := auth.GetUserID(c)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.ErrorResponse{Error: "unauthorized", Kind: "unauthorized"})
			return
		}

		u, err := users.GetByID(c.Request.Context(), userID)
		if errors.Is(err, user.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.ErrorResponse{Error: "user not found", Kind: "unauthorized"})
			return
		}
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		if !u.IsActive {
			response.Error(c, user.ErrInactiveUser)
			c.Abort()
			return
		}
	}
}
