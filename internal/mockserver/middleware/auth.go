package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"supplier-conformance/internal/contract"
	"supplier-conformance/internal/transport"
)

// RequireAPIKey enforces the protocol's fixed auth contract: the API-Key
// header must equal the configured secret, otherwise a plain-text 403 with
// the exact documented body.
func RequireAPIKey(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader(transport.HeaderAPIKey) != apiKey {
			c.String(http.StatusForbidden, contract.ForbiddenBody)
			c.Abort()
			return
		}
		c.Next()
	}
}
