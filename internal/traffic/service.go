package traffic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/richxcame/traffic-api/pkg/cache"
	"github.com/richxcame/traffic-api/pkg/eventbus"
	"github.com/richxcame/traffic-api/pkg/geo"
	"github.com/richxcame/traffic-api/pkg/logger"
	"github.com/richxcame/traffic-api/pkg/resilience"
	"github.com/richxcame/traffic-api/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	tracerName  = "traffic"
	eventSource = "traffic-api"

	// DefaultTimeout bounds a whole browser lookup, queueing included.
	DefaultTimeout = 30 * time.Second

	sideEffectTimeout = 2 * time.Second
)

// Service classifies traffic around a point by reading the directions page
type Service struct {
	loader   ColorLoader
	timeout  time.Duration
	cache    ResultCache
	cacheTTL time.Duration
	breaker  *resilience.CircuitBreaker
	limiter  *SessionLimiter
	events   EventPublisher
}

// NewService creates a new traffic service backed by loader
func NewService(loader ColorLoader) *Service {
	return &Service{loader: loader, timeout: DefaultTimeout}
}

// SetTimeout changes the per-lookup deadline. Non-positive values are ignored.
func (s *Service) SetTimeout(timeout time.Duration) {
	if timeout > 0 {
		s.timeout = timeout
	}
}

// SetCache enables result caching for ttl.
func (s *Service) SetCache(cache ResultCache, ttl time.Duration) {
	s.cache = cache
	s.cacheTTL = ttl
}

// SetCircuitBreaker guards browser sessions with cb.
func (s *Service) SetCircuitBreaker(cb *resilience.CircuitBreaker) {
	s.breaker = cb
}

// SetLimiter caps concurrent browser sessions.
func (s *Service) SetLimiter(limiter *SessionLimiter) {
	s.limiter = limiter
}

// SetEventPublisher enables lookup events.
func (s *Service) SetEventPublisher(publisher EventPublisher) {
	s.events = publisher
}

// lookup carries what is known about one Classify call for logs and events.
type lookup struct {
	origin   Coordinate
	route    Route
	cell     string
	started  time.Time
	cacheHit bool
}

// Classify returns the congestion level around origin. On failure the status is
// StatusError and err says why; callers still answer with the status.
func (s *Service) Classify(ctx context.Context, origin Coordinate) (Status, error) {
	l := lookup{
		origin:  origin,
		route:   NewRoute(origin),
		cell:    geo.CellFor(origin.Latitude, origin.Longitude),
		started: time.Now(),
	}

	ctx, span := tracing.StartSpan(ctx, tracerName, "traffic.classify",
		trace.WithAttributes(tracing.LocationAttributes(origin.Latitude, origin.Longitude, l.cell)...),
	)
	defer span.End()

	if status, ok := s.cached(ctx, origin); ok {
		l.cacheHit = true
		lookupsTotal.WithLabelValues(string(status), sourceCache).Inc()
		span.SetAttributes(
			tracing.CacheHitKey.Bool(true),
			tracing.LookupSourceKey.String(sourceCache),
			tracing.LookupStatusKey.String(string(status)),
		)
		s.publish(ctx, l, status, nil)
		return status, nil
	}

	color, err := s.loadColor(ctx, l.route)
	if err != nil {
		cause := Cause(err)
		lookupsTotal.WithLabelValues(string(StatusError), sourceBrowser).Inc()
		lookupFailuresTotal.WithLabelValues(cause).Inc()
		tracing.RecordError(ctx, err, tracing.LookupCauseKey.String(cause))
		span.SetAttributes(tracing.LookupStatusKey.String(string(StatusError)))

		logger.WarnContext(ctx, "traffic lookup failed",
			zap.String("cause", cause),
			zap.Float64("latitude", origin.Latitude),
			zap.Float64("longitude", origin.Longitude),
			zap.Duration("elapsed", time.Since(l.started)),
			zap.Error(err),
		)
		s.publish(ctx, l, StatusError, err)
		return StatusError, err
	}

	status := ClassifyColor(color)
	lookupsTotal.WithLabelValues(string(status), sourceBrowser).Inc()
	span.SetAttributes(
		tracing.CacheHitKey.Bool(false),
		tracing.LookupSourceKey.String(sourceBrowser),
		tracing.LookupStatusKey.String(string(status)),
	)

	logger.DebugContext(ctx, "traffic classified",
		zap.String("status", string(status)),
		zap.String("color", color),
		zap.String("h3_cell", l.cell),
		zap.Duration("elapsed", time.Since(l.started)),
	)

	s.store(ctx, origin, status)
	s.publish(ctx, l, status, nil)
	return status, nil
}

// loadColor runs one browser session for route under the lookup deadline.
func (s *Service) loadColor(ctx context.Context, route Route) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	queued := time.Now()
	if err := s.limiter.Acquire(ctx); err != nil {
		if ctx.Err() != nil {
			return "", contextError(ctx, err)
		}
		return "", NewLookupError(ErrBrowserUnavailable, err)
	}
	defer s.limiter.Release()
	waited := time.Since(queued)
	sessionWait.Observe(waited.Seconds())
	tracing.AddSpanEvent(ctx, "browser.session.admitted", attribute.Int64("wait_ms", waited.Milliseconds()))

	sessionsInFlight.Inc()
	defer sessionsInFlight.Dec()

	started := time.Now()
	result, err := s.breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		color, err := s.load(ctx, route.NavigationURL())
		if err != nil {
			return nil, contextError(ctx, err)
		}
		return color, nil
	})

	outcome := "ok"
	if err != nil {
		outcome = Cause(err)
	}
	sessionDuration.WithLabelValues(outcome).Observe(time.Since(started).Seconds())

	if errors.Is(err, resilience.ErrCircuitOpen) {
		return "", NewLookupError(ErrBrowserUnavailable, err)
	}
	if err != nil {
		return "", err
	}

	color, ok := result.(string)
	if !ok {
		return "", NewLookupError(ErrEvaluation, fmt.Errorf("unexpected result type %T", result))
	}
	return color, nil
}

// load calls the loader and turns a panic into an error.
func (s *Service) load(ctx context.Context, url string) (color string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewLookupError(ErrLookupPanic, fmt.Errorf("%v", r))
		}
	}()
	return s.loader.LoadColorAt(ctx, url, LabelSelector)
}

// contextError reclassifies err as a timeout or cancellation when ctx is done.
func contextError(ctx context.Context, err error) error {
	switch ctxErr := ctx.Err(); {
	case ctxErr == nil:
		return err
	case errors.Is(ctxErr, context.DeadlineExceeded):
		if errors.Is(err, ErrLookupTimeout) {
			return err
		}
		return NewLookupError(ErrLookupTimeout, err)
	default:
		if errors.Is(err, ErrLookupCanceled) {
			return err
		}
		return NewLookupError(ErrLookupCanceled, err)
	}
}

func (s *Service) cached(ctx context.Context, origin Coordinate) (Status, bool) {
	if s.cache == nil {
		return "", false
	}

	ctx, cancel := context.WithTimeout(ctx, sideEffectTimeout)
	defer cancel()

	var entry StatusResponse
	if err := s.cache.Get(ctx, cacheKey(origin), &entry); err != nil {
		return "", false
	}
	switch entry.Status {
	case StatusLow, StatusMedium, StatusHigh:
		return entry.Status, true
	default:
		return "", false
	}
}

// store caches a successful status. Errors are never cached.
func (s *Service) store(ctx context.Context, origin Coordinate, status Status) {
	if s.cache == nil || status == StatusError {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	if err := s.cache.Set(ctx, cacheKey(origin), StatusResponse{Status: status}, s.cacheTTL); err != nil {
		logger.WarnContext(ctx, "failed to cache traffic status", zap.Error(err))
	}
}

func (s *Service) publish(ctx context.Context, l lookup, status Status, lookupErr error) {
	if s.events == nil {
		return
	}

	data := eventbus.TrafficClassifiedData{
		Latitude:  l.origin.Latitude,
		Longitude: l.origin.Longitude,
		Cell:      l.cell,
		RouteDistanceKm: geo.Haversine(
			l.route.Initial.Latitude, l.route.Initial.Longitude,
			l.route.Final.Latitude, l.route.Final.Longitude,
		),
		Status:       string(status),
		Cause:        Cause(lookupErr),
		CacheHit:     l.cacheHit,
		DurationMs:   time.Since(l.started).Milliseconds(),
		ClassifiedAt: time.Now().UTC(),
	}

	event, err := eventbus.NewEvent(eventbus.SubjectTrafficClassified, eventSource, data)
	if err != nil {
		logger.WarnContext(ctx, "failed to build traffic event", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	if err := s.events.Publish(ctx, eventbus.SubjectTrafficClassified, event); err != nil {
		logger.WarnContext(ctx, "failed to publish traffic event", zap.Error(err))
	}
}

func cacheKey(origin Coordinate) string {
	return cache.Keys.TrafficStatus(origin.Latitude, origin.Longitude)
}
