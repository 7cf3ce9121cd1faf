package middleware

import (
	"context"
	"net/http"
	"strings"

	"designlens/internal/services"
	"designlens/internal/transport/httpdto"
	"designlens/pkg/logger"

	"github.com/gin-gonic/gin"
)

const accountIDKey = "account_id"

type TokenParser interface {
	Parse(token string) (services.AccountClaims, error)
}

// AccountMiddleware authenticates the bearer token and stores the account id on the
// gin context and the request context. Websocket clients may pass ?token= instead.
func AccountMiddleware(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearer(c)
		if token == "" {
			token = strings.TrimSpace(c.Query("token"))
		}
		claims, err := tokens.Parse(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
			c.Abort()
			return
		}

		accountID := claims.AccountID()
		c.Set(accountIDKey, accountID)
		ctx := context.WithValue(c.Request.Context(), logger.AccountIdKey, accountID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// AccountID returns the authenticated account for the request.
func AccountID(c *gin.Context) (string, bool) {
	v, ok := c.Get(accountIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

func extractBearer(c *gin.Context) string {
	value := c.GetHeader("Authorization")
	parts := strings.SplitN(value, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
