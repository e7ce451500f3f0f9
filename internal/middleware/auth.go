package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"studybuddy-chat/internal/models"
)

type authenticator interface {
	Authenticate(ctx context.Context, authField, header string) (models.User, error)
}

// AuthMiddleware resolves the bearer token in the Authorization header to a
// user and stores it as "user", with its id under "userID".
func AuthMiddleware(auth authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := auth.Authenticate(c.Request.Context(), "", c.GetHeader("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		c.Set("userID", user.ID)
		c.Set("user", user)
		c.Next()
	}
}
