package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CORS returns a middleware that stamps the wildcard-origin header on every
// response of its route group and short-circuits preflights.
//
// The contract for preflights is specific: an OPTIONS request answers 200
// with an empty body and this handler group's own method list — not a global
// one — which is why each group gets its own instance instead of one
// router-wide CORS layer. allowHeaders differs per group too (the auth
// surface does not accept X-User-Id).
func CORS(allowMethods, allowHeaders string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")

		if c.Request.Method == http.MethodOptions {
			c.Header("Access-Control-Allow-Methods", allowMethods)
			c.Header("Access-Control-Allow-Headers", allowHeaders)
			c.Header("Access-Control-Max-Age", "86400")
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	}
}

// Preflight is the route handler registered for OPTIONS paths. The CORS
// middleware has already written the response and aborted by the time the
// chain would reach it; it exists so the route matches at all.
func Preflight(c *gin.Context) {}
