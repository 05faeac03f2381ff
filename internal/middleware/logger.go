package middleware

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestID tags every request with an id for log correlation. An id set by
// an upstream proxy is honored; otherwise one is minted here. The id is
// echoed back in the response so callers can quote it in support requests.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// probePaths are polled by orchestrators and scrapers; logging them would
// drown the lines that matter.
var probePaths = map[string]bool{
	"/healthz": true,
	"/readyz":  true,
	"/metrics": true,
}

// Logger writes one line per request in the service's component-prefixed
// log format, carrying the request id from RequestID.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		if probePaths[c.Request.URL.Path] {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		requestID, _ := c.Get("request_id")
		log.Printf("http: [%v] %s %s -> %d in %s (%d bytes)",
			requestID,
			c.Request.Method,
			c.Request.URL.Path,
			c.Writer.Status(),
			time.Since(start),
			c.Writer.Size(),
		)
	}
}

// Recovery converts panics into 500 responses so one bad request cannot take
// the process down.
func Recovery() gin.HandlerFunc {
	return gin.Recovery()
}
