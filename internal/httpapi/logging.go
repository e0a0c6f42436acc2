package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func logEvent(c *gin.Context, latency time.Duration) {
	log.Info().
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Int("status", c.Writer.Status()).
		Dur("latency", latency).
		Str("client_ip", c.ClientIP()).
		Msg("request")
}
