package traffic

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/richxcame/traffic-api/pkg/cache"
	"github.com/richxcame/traffic-api/pkg/eventbus"
	"github.com/richxcame/traffic-api/pkg/logger"
	"github.com/richxcame/traffic-api/pkg/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var mexicoCity = Coordinate{Latitude: 19.4326, Longitude: -99.1332}

func observeLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	original := logger.Get()
	logger.Set(zap.New(core))
	t.Cleanup(func() { logger.Set(original) })
	return logs
}

func newTestBreaker(name string) *resilience.CircuitBreaker {
	return resilience.NewCircuitBreaker(resilience.Settings{
		Name:             name,
		Timeout:          time.Minute,
		Interval:         time.Minute,
		FailureThreshold: 1,
		SuccessThreshold: 1,
		IsFailure:        CountsAgainstBrowser,
	}, nil)
}

func decodeEvent(t *testing.T, event *eventbus.Event) eventbus.TrafficClassifiedData {
	t.Helper()
	var data eventbus.TrafficClassifiedData
	require.NoError(t, json.Unmarshal(event.Data, &data))
	return data
}

func TestService_Classify_Statuses(t *testing.T) {
	tests := []struct {
		color string
		want  Status
	}{
		{ColorHigh, StatusHigh},
		{ColorMedium, StatusMedium},
		{"rgb(24, 128, 56)", StatusLow},
	}

	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			loader := new(MockColorLoader)
			loader.On("LoadColorAt", mock.Anything, NewRoute(mexicoCity).NavigationURL(), LabelSelector).
				Return(tt.color, nil).Once()
			before := testutil.ToFloat64(lookupsTotal.WithLabelValues(string(tt.want), sourceBrowser))

			status, err := NewService(loader).Classify(context.Background(), mexicoCity)

			require.NoError(t, err)
			assert.Equal(t, tt.want, status)
			assert.Equal(t, before+1, testutil.ToFloat64(lookupsTotal.WithLabelValues(string(tt.want), sourceBrowser)))
			loader.AssertExpectations(t)
		})
	}
}

func TestService_Classify_AppliesDeadline(t *testing.T) {
	loader := new(MockColorLoader)
	loader.On("LoadColorAt", mock.MatchedBy(func(ctx context.Context) bool {
		deadline, ok := ctx.Deadline()
		return ok && time.Until(deadline) <= 5*time.Second
	}), mock.Anything, LabelSelector).Return(ColorHigh, nil)

	service := NewService(loader)
	service.SetTimeout(5 * time.Second)
	service.SetTimeout(0)

	status, err := service.Classify(context.Background(), mexicoCity)

	require.NoError(t, err)
	assert.Equal(t, StatusHigh, status)
	loader.AssertExpectations(t)
}

func TestService_Classify_LoaderFailure(t *testing.T) {
	logs := observeLogs(t)
	loader := new(MockColorLoader)
	loader.On("LoadColorAt", mock.Anything, mock.Anything, LabelSelector).
		Return("", NewLookupError(ErrSelectorWait, errors.New("node not found")))
	before := testutil.ToFloat64(lookupFailuresTotal.WithLabelValues("selector_wait"))

	status, err := NewService(loader).Classify(context.Background(), mexicoCity)

	assert.Equal(t, StatusError, status)
	assert.ErrorIs(t, err, ErrSelectorWait)
	assert.Equal(t, before+1, testutil.ToFloat64(lookupFailuresTotal.WithLabelValues("selector_wait")))

	warnings := logs.FilterMessage("traffic lookup failed").All()
	require.Len(t, warnings, 1)
	assert.Equal(t, zapcore.WarnLevel, warnings[0].Level)
	assert.Equal(t, "selector_wait", warnings[0].ContextMap()["cause"])
}

func TestService_Classify_RecoversPanic(t *testing.T) {
	loader := new(MockColorLoader)
	loader.On("LoadColorAt", mock.Anything, mock.Anything, LabelSelector).
		Run(func(mock.Arguments) { panic("target closed") }).
		Return("", nil)

	status, err := NewService(loader).Classify(context.Background(), mexicoCity)

	assert.Equal(t, StatusError, status)
	assert.ErrorIs(t, err, ErrLookupPanic)
	assert.Contains(t, err.Error(), "target closed")
}

func TestService_Classify_Timeout(t *testing.T) {
	loader := new(MockColorLoader)
	loader.On("LoadColorAt", mock.Anything, mock.Anything, LabelSelector).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return("", NewLookupError(ErrNavigation, errors.New("page load interrupted")))

	service := NewService(loader)
	service.SetTimeout(20 * time.Millisecond)

	status, err := service.Classify(context.Background(), mexicoCity)

	assert.Equal(t, StatusError, status)
	assert.ErrorIs(t, err, ErrLookupTimeout)
	assert.Equal(t, "timeout", Cause(err))
}

func TestService_Classify_CallerCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	loader := new(MockColorLoader)
	loader.On("LoadColorAt", mock.Anything, mock.Anything, LabelSelector).Return("", context.Canceled)

	status, err := NewService(loader).Classify(ctx, mexicoCity)

	assert.Equal(t, StatusError, status)
	assert.ErrorIs(t, err, ErrLookupCanceled)
}

func TestService_Classify_QueueTimeout(t *testing.T) {
	loader := new(MockColorLoader)
	limiter := NewSessionLimiter(1)
	require.NoError(t, limiter.Acquire(context.Background()))
	defer limiter.Release()

	service := NewService(loader)
	service.SetLimiter(limiter)
	service.SetTimeout(20 * time.Millisecond)

	status, err := service.Classify(context.Background(), mexicoCity)

	assert.Equal(t, StatusError, status)
	assert.Equal(t, "timeout", Cause(err))
	loader.AssertNotCalled(t, "LoadColorAt", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Classify_ReleasesLimiterSlot(t *testing.T) {
	loader := new(MockColorLoader)
	loader.On("LoadColorAt", mock.Anything, mock.Anything, LabelSelector).
		Return("", NewLookupError(ErrNavigation, errors.New("dns"))).Once()
	loader.On("LoadColorAt", mock.Anything, mock.Anything, LabelSelector).
		Return(ColorMedium, nil).Once()

	service := NewService(loader)
	service.SetLimiter(NewSessionLimiter(1))
	service.SetTimeout(time.Second)

	_, err := service.Classify(context.Background(), mexicoCity)
	require.Error(t, err)

	status, err := service.Classify(context.Background(), mexicoCity)
	require.NoError(t, err)
	assert.Equal(t, StatusMedium, status)
}

func TestService_Classify_OpenBreaker(t *testing.T) {
	loader := new(MockColorLoader)
	loader.On("LoadColorAt", mock.Anything, mock.Anything, LabelSelector).
		Return("", NewLookupError(ErrNavigation, errors.New("net::ERR_CONNECTION_RESET")))

	service := NewService(loader)
	breaker := newTestBreaker("test-open-breaker")
	service.SetCircuitBreaker(breaker)

	_, err := service.Classify(context.Background(), mexicoCity)
	require.ErrorIs(t, err, ErrNavigation)
	require.Equal(t, "open", breaker.State())

	status, err := service.Classify(context.Background(), mexicoCity)

	assert.Equal(t, StatusError, status)
	assert.ErrorIs(t, err, ErrBrowserUnavailable)
	assert.Equal(t, "browser_unavailable", Cause(err))
	loader.AssertNumberOfCalls(t, "LoadColorAt", 1)
}

func TestService_Classify_CancellationDoesNotTripBreaker(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	loader := new(MockColorLoader)
	loader.On("LoadColorAt", mock.Anything, mock.Anything, LabelSelector).Return("", context.Canceled)

	service := NewService(loader)
	breaker := newTestBreaker("test-cancel-breaker")
	service.SetCircuitBreaker(breaker)

	_, err := service.Classify(ctx, mexicoCity)

	require.ErrorIs(t, err, ErrLookupCanceled)
	assert.Equal(t, "closed", breaker.State())
}

func TestService_Classify_CacheHit(t *testing.T) {
	resultCache := newMemoryCache()
	resultCache.entries[cache.Keys.TrafficStatus(mexicoCity.Latitude, mexicoCity.Longitude)] = StatusResponse{Status: StatusMedium}
	publisher := &recordingPublisher{}
	loader := new(MockColorLoader)

	service := NewService(loader)
	service.SetCache(resultCache, time.Minute)
	service.SetEventPublisher(publisher)

	status, err := service.Classify(context.Background(), mexicoCity)

	require.NoError(t, err)
	assert.Equal(t, StatusMedium, status)
	loader.AssertNotCalled(t, "LoadColorAt", mock.Anything, mock.Anything, mock.Anything)

	events := publisher.published()
	require.Len(t, events, 1)
	assert.True(t, decodeEvent(t, events[0]).CacheHit)
}

func TestService_Classify_StoresSuccessfulStatus(t *testing.T) {
	resultCache := newMemoryCache()
	loader := new(MockColorLoader)
	loader.On("LoadColorAt", mock.Anything, mock.Anything, LabelSelector).Return(ColorHigh, nil).Once()

	service := NewService(loader)
	service.SetCache(resultCache, 45*time.Second)

	status, err := service.Classify(context.Background(), mexicoCity)
	require.NoError(t, err)
	assert.Equal(t, StatusHigh, status)

	key := cache.Keys.TrafficStatus(mexicoCity.Latitude, mexicoCity.Longitude)
	assert.Equal(t, StatusResponse{Status: StatusHigh}, resultCache.entries[key])
	assert.Equal(t, 45*time.Second, resultCache.ttls[key])

	status, err = service.Classify(context.Background(), mexicoCity)
	require.NoError(t, err)
	assert.Equal(t, StatusHigh, status)
	loader.AssertNumberOfCalls(t, "LoadColorAt", 1)
}

func TestService_Classify_NeverCachesErrors(t *testing.T) {
	resultCache := newMemoryCache()
	loader := new(MockColorLoader)
	loader.On("LoadColorAt", mock.Anything, mock.Anything, LabelSelector).
		Return("", NewLookupError(ErrEvaluation, errors.New("script threw")))

	service := NewService(loader)
	service.SetCache(resultCache, time.Minute)

	status, _ := service.Classify(context.Background(), mexicoCity)

	assert.Equal(t, StatusError, status)
	assert.Zero(t, resultCache.len())
}

func TestService_Classify_IgnoresCachedError(t *testing.T) {
	resultCache := newMemoryCache()
	resultCache.entries[cache.Keys.TrafficStatus(mexicoCity.Latitude, mexicoCity.Longitude)] = StatusResponse{Status: StatusError}
	loader := new(MockColorLoader)
	loader.On("LoadColorAt", mock.Anything, mock.Anything, LabelSelector).Return(ColorMedium, nil)

	service := NewService(loader)
	service.SetCache(resultCache, time.Minute)

	status, err := service.Classify(context.Background(), mexicoCity)

	require.NoError(t, err)
	assert.Equal(t, StatusMedium, status)
}

func TestService_Classify_CacheFailuresAreNotFatal(t *testing.T) {
	logs := observeLogs(t)
	resultCache := newMemoryCache()
	resultCache.getErr = errors.New("connection refused")
	resultCache.setErr = errors.New("connection refused")
	loader := new(MockColorLoader)
	loader.On("LoadColorAt", mock.Anything, mock.Anything, LabelSelector).Return(ColorHigh, nil)

	service := NewService(loader)
	service.SetCache(resultCache, time.Minute)

	status, err := service.Classify(context.Background(), mexicoCity)

	require.NoError(t, err)
	assert.Equal(t, StatusHigh, status)
	assert.Equal(t, 1, logs.FilterMessage("failed to cache traffic status").Len())
}

func TestService_Classify_PublishesEvent(t *testing.T) {
	publisher := &recordingPublisher{}
	loader := new(MockColorLoader)
	loader.On("LoadColorAt", mock.Anything, mock.Anything, LabelSelector).Return(ColorHigh, nil)

	service := NewService(loader)
	service.SetEventPublisher(publisher)

	_, err := service.Classify(context.Background(), mexicoCity)
	require.NoError(t, err)

	events := publisher.published()
	require.Len(t, events, 1)
	assert.Equal(t, eventbus.SubjectTrafficClassified, events[0].Type)
	assert.Equal(t, eventSource, events[0].Source)

	data := decodeEvent(t, events[0])
	assert.Equal(t, mexicoCity.Latitude, data.Latitude)
	assert.Equal(t, mexicoCity.Longitude, data.Longitude)
	assert.Equal(t, string(StatusHigh), data.Status)
	assert.Empty(t, data.Cause)
	assert.False(t, data.CacheHit)
	assert.NotEmpty(t, data.Cell)
	assert.InDelta(t, 0.111, data.RouteDistanceKm, 0.001)
	assert.False(t, data.ClassifiedAt.IsZero())
}

func TestService_Classify_PublishesFailureCause(t *testing.T) {
	publisher := &recordingPublisher{}
	loader := new(MockColorLoader)
	loader.On("LoadColorAt", mock.Anything, mock.Anything, LabelSelector).
		Return("", NewLookupError(ErrSessionLaunch, errors.New("exec: not found")))

	service := NewService(loader)
	service.SetEventPublisher(publisher)

	_, err := service.Classify(context.Background(), mexicoCity)
	require.Error(t, err)

	events := publisher.published()
	require.Len(t, events, 1)
	data := decodeEvent(t, events[0])
	assert.Equal(t, string(StatusError), data.Status)
	assert.Equal(t, "session_launch", data.Cause)
}

func TestService_Classify_PublishFailureIsNotFatal(t *testing.T) {
	logs := observeLogs(t)
	publisher := &recordingPublisher{err: errors.New("nats: no responders")}
	loader := new(MockColorLoader)
	loader.On("LoadColorAt", mock.Anything, mock.Anything, LabelSelector).Return(ColorMedium, nil)

	service := NewService(loader)
	service.SetEventPublisher(publisher)

	status, err := service.Classify(context.Background(), mexicoCity)

	require.NoError(t, err)
	assert.Equal(t, StatusMedium, status)
	assert.Equal(t, 1, logs.FilterMessage("failed to publish traffic event").Len())
}
