package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"rconbridge/internal/auth"
)

const ownerIDContextKey = "ownerID"

func OwnerIDFromContext(c *gin.Context) (int64, bool) {
	value, ok := c.Get(ownerIDContextKey)
	if !ok {
		return 0, false
	}
	ownerID, ok := value.(int64)
	return ownerID, ok && ownerID > 0
}

func RequireAuth(cfg auth.TokenConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
			c.Abort()
			return
		}

		claims, err := auth.VerifyToken(parts[1], cfg)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
			c.Abort()
			return
		}

		c.Set(ownerIDContextKey, claims.OwnerID)
		c.Next()
	}
}
