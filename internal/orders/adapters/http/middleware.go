package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dejobratic/storefront/internal/telemetry"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func recovery(logger *slog.Logger, development bool) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.ErrorContext(c.Request.Context(), "panic recovered",
			"error", recovered,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
		)
		body := errorBody{Error: "internal server error", Code: "internal"}
		if development {
			body.Details = map[string]any{"panic": fmt.Sprint(recovered)}
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, body)
	})
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, "http request",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("route", c.FullPath()),
			slog.Int("status", status),
			slog.Duration("duration", time.Since(start)),
			slog.String("client_ip", c.ClientIP()),
		)
	}
}

func instrument(m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		start := time.Now()
		m.RequestStarted(ctx)
		defer m.RequestFinished(ctx)

		c.Next()

		m.RecordRequest(ctx, c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start).Seconds())
		telemetry.AddSpanAttributes(trace.SpanFromContext(ctx), attribute.String("http.route", c.FullPath()))
	}
}
