package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/liezira/simutbk-backend/internal/response"
)

// HeaderOpsToken carries the operator shared secret.
const HeaderOpsToken = "X-Ops-Token"

// RequireOpsToken gates operator-only routes behind a shared secret. An empty
// secret means the deployment never configured one, so the route answers 404
// rather than advertising itself.
func RequireOpsToken(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			response.AbortFail(c, http.StatusNotFound, response.ErrNotFound)
			return
		}
		given := c.GetHeader(HeaderOpsToken)
		if subtle.ConstantTimeCompare([]byte(given), []byte(secret)) != 1 {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}
		c.Next()
	}
}
