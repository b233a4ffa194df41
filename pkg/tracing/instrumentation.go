package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// HTTP span attributes
const (
	HTTPMethodKey    = attribute.Key("http.method")
	HTTPURLKey       = attribute.Key("http.url")
	HTTPStatusKey    = attribute.Key("http.status_code")
	HTTPRouteKey     = attribute.Key("http.route")
	HTTPClientIPKey  = attribute.Key("http.client_ip")
	HTTPUserAgentKey = attribute.Key("http.user_agent")
	HTTPRequestIDKey = attribute.Key("http.request_id")
)

// Traffic lookup span attributes
const (
	LocationLatitudeKey  = attribute.Key("location.latitude")
	LocationLongitudeKey = attribute.Key("location.longitude")
	LocationCellKey      = attribute.Key("location.h3_cell")
	LookupStatusKey      = attribute.Key("traffic.status")
	LookupCauseKey       = attribute.Key("traffic.failure_cause")
	LookupSourceKey      = attribute.Key("traffic.source")
	BrowserStageKey      = attribute.Key("browser.stage")
	CacheHitKey          = attribute.Key("cache.hit")
)

// RecordError marks the span in ctx as failed
func RecordError(ctx context.Context, err error, attrs ...attribute.KeyValue) {
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.RecordError(err, trace.WithAttributes(attrs...))
		span.SetStatus(codes.Error, err.Error())
	}
}

// TraceStage wraps one step of a browser lookup in a child span
func TraceStage(ctx context.Context, tracerName, stage string, fn func(context.Context) error) error {
	ctx, span := StartSpan(ctx, tracerName, fmt.Sprintf("browser.%s", stage),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(BrowserStageKey.String(stage)),
	)
	defer span.End()

	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return err
}

// LocationAttributes describes the queried point
func LocationAttributes(latitude, longitude float64, cell string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		LocationLatitudeKey.Float64(latitude),
		LocationLongitudeKey.Float64(longitude),
	}
	if cell != "" {
		attrs = append(attrs, LocationCellKey.String(cell))
	}
	return attrs
}
