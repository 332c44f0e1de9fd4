package cors

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

var (
	allowedHeaders = []string{"Authorization", "Content-Type", "X-Requested-With", "X-Request-ID"}
	allowedMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	// Downloads need the filename header visible to browsers.
	exposedHeaders = []string{"Content-Disposition", "X-Request-ID"}
)

// New returns a CORS middleware. An empty origin list allows every origin.
func New(allowedOrigins []string) gin.HandlerFunc {
	origins := lo.Map(allowedOrigins, func(o string, _ int) string { return strings.TrimRight(o, "/") })
	allowAll := len(origins) == 0

	return func(c *gin.Context) {
		h := c.Writer.Header()
		origin := c.GetHeader("Origin")
		switch {
		case origin != "" && (allowAll || lo.Contains(origins, strings.TrimRight(origin, "/"))):
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
		case origin == "" && allowAll:
			h.Set("Access-Control-Allow-Origin", "*")
		}

		h.Set("Vary", "Origin")
		h.Set("Access-Control-Allow-Headers", strings.Join(allowedHeaders, ", "))
		h.Set("Access-Control-Allow-Methods", strings.Join(allowedMethods, ", "))
		h.Set("Access-Control-Expose-Headers", strings.Join(exposedHeaders, ", "))
		h.Set("Access-Control-Max-Age", "600")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
