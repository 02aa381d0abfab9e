package httpapi

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/leadloop/internal/metrics"
)

const unmatchedRoutePath = "unmatched"

func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(context *gin.Context) {
		start := time.Now()
		context.Next()
		logger.Info("http",
			zap.String("method", context.Request.Method),
			zap.String("path", context.Request.URL.Path),
			zap.Int("status", context.Writer.Status()),
			zap.Duration("dur", time.Since(start)),
			zap.String("ip", context.ClientIP()),
			zap.String("ua", context.Request.UserAgent()),
		)
	}
}

// RequestMetrics records every request against its route template.
func RequestMetrics() gin.HandlerFunc {
	return func(context *gin.Context) {
		start := time.Now()
		context.Next()
		routePath := context.FullPath()
		if routePath == "" {
			routePath = unmatchedRoutePath
		}
		metrics.ObserveHTTPRequest(context.Request.Method, routePath, strconv.Itoa(context.Writer.Status()), time.Since(start))
	}
}
