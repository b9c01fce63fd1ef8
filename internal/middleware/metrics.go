package middleware

import (
	"strconv"
	"time"

	appmetrics "orientia/backend/pkg/metrics"

	"github.com/gin-gonic/gin"
)

// Metrics colecciona métricas Prometheus por request HTTP.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		method := c.Request.Method

		// FullPath devuelve el template de la ruta: mejor cardinalidad de labels.
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		latency := time.Since(start)
		if appmetrics.HTTPRequestCounter != nil {
			appmetrics.HTTPRequestCounter.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
		}
		if appmetrics.HTTPRequestDuration != nil {
			appmetrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(latency.Seconds())
		}
	}
}
