package middleware

import (
	"github.com/gin-gonic/gin"
)

// Response header values shared by every route.
const (
	AllowOrigin  = "*"
	AllowMethods = "GET"
	PoweredBy    = "Christian Elías"
	JSONType     = "application/json"
)

// ResponseHeaders stamps the public CORS policy, the attribution header and the
// JSON content type on every response before the handler runs, redirects included.
func ResponseHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", AllowOrigin)
		h.Set("Access-Control-Allow-Methods", AllowMethods)
		h.Set("X-Powered-By", PoweredBy)
		h.Set("Content-Type", JSONType)

		c.Next()
	}
}
