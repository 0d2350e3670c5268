package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/lexdesk/internal/pkg/errcode"
	"github.com/xxxsen/lexdesk/internal/pkg/jwt"
	"github.com/xxxsen/lexdesk/internal/pkg/response"
)

const ContextUserIDKey = "user_id"

// Identity resolves the calling user. With a secret it requires a bearer
// token; without one the user comes from the X-User-Id header or the user_id
// query parameter.
func Identity(secret []byte) gin.HandlerFunc {
	if len(secret) > 0 {
		return JWTAuth(secret)
	}
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader("X-User-Id"))
		if userID == "" {
			userID = strings.TrimSpace(c.Query("user_id"))
		}
		if userID == "" {
			response.Abort(c, errcode.ErrUnauthorized, "user_id is required")
			return
		}
		c.Set(ContextUserIDKey, userID)
		c.Next()
	}
}

func JWTAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Abort(c, errcode.ErrUnauthorized, "missing authorization")
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Abort(c, errcode.ErrUnauthorized, "invalid authorization")
			return
		}
		claims, err := jwt.ParseToken(parts[1], secret)
		if err != nil {
			response.Abort(c, errcode.ErrUnauthorized, "invalid token")
			return
		}
		c.Set(ContextUserIDKey, claims.UserID)
		c.Next()
	}
}
