package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"storefront-system/internal/domain"
	"storefront-system/internal/utils"
)

const actorKey = "actor"

func abortJSON(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{
		"success": false,
		"message": message,
	})
}

// JWTAuth requires a valid bearer token and stores the caller as a domain.Actor.
func JWTAuth(jwt *utils.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortJSON(c, http.StatusUnauthorized, "Authentication credentials were not provided.")
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortJSON(c, http.StatusUnauthorized, "Authorization header must be Bearer token")
			return
		}

		claims, err := jwt.ParseToken(strings.TrimSpace(parts[1]))
		if err != nil {
			abortJSON(c, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		c.Set(actorKey, claims.Actor())
		c.Next()
	}
}

func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok {
			abortJSON(c, http.StatusUnauthorized, "Authentication credentials were not provided.")
			return
		}
		if !actor.IsAdmin() {
			abortJSON(c, http.StatusForbidden, domain.MsgAdminOnly)
			return
		}
		c.Next()
	}
}

func ActorFrom(c *gin.Context) (domain.Actor, bool) {
	value, ok := c.Get(actorKey)
	if !ok {
		return domain.Actor{}, false
	}
	actor, ok := value.(domain.Actor)
	return actor, ok
}
