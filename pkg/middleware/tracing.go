package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/richxcame/traffic-api/pkg/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// TracingMiddleware opens a server span per request and exposes its trace ID
func TracingMiddleware(serviceName string) gin.HandlerFunc {
	tracer := otel.Tracer(serviceName)

	return func(c *gin.Context) {
		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		route := c.FullPath()
		spanName := c.Request.Method + " " + route
		if route == "" {
			spanName = c.Request.Method + " unmatched"
		}

		ctx, span := tracer.Start(ctx, spanName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				tracing.HTTPMethodKey.String(c.Request.Method),
				tracing.HTTPURLKey.String(c.Request.URL.String()),
				tracing.HTTPRouteKey.String(route),
				tracing.HTTPUserAgentKey.String(c.Request.UserAgent()),
				tracing.HTTPClientIPKey.String(c.ClientIP()),
			),
		)
		defer span.End()

		c.Request = c.Request.WithContext(ctx)

		if traceID := tracing.GetTraceID(ctx); traceID != "" {
			c.Header("X-Trace-ID", traceID)
		}

		if requestID := c.GetString(CorrelationIDKey); requestID != "" {
			span.SetAttributes(tracing.HTTPRequestIDKey.String(requestID))
		}

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(
			tracing.HTTPStatusKey.Int(status),
			attribute.Int("http.response_size", c.Writer.Size()),
		)

		switch {
		case len(c.Errors) > 0:
			span.SetStatus(codes.Error, c.Errors.String())
			for _, err := range c.Errors {
				span.RecordError(err.Err)
			}
		case status >= 500:
			span.SetStatus(codes.Error, "Internal Server Error")
		default:
			span.SetStatus(codes.Ok, "")
		}
	}
}
