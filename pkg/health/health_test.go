package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func probe(t *testing.T, checks map[string]Checker) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/health/ready", ReadinessProbe("traffic-api", "1.0.0", checks))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	var response Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return w, response
}

func TestReadinessProbe_AllHealthy(t *testing.T) {
	w, response := probe(t, map[string]Checker{
		"redis":   func(context.Context) error { return nil },
		"browser": func(context.Context) error { return nil },
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ready", response.Status)
	assert.Equal(t, "traffic-api", response.Service)
	assert.Len(t, response.Checks, 2)
	assert.Equal(t, "healthy", response.Checks["redis"].Status)
}

func TestReadinessProbe_NoChecks(t *testing.T) {
	w, response := probe(t, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ready", response.Status)
	assert.Empty(t, response.Checks)
}

func TestReadinessProbe_FailingCheck(t *testing.T) {
	w, response := probe(t, map[string]Checker{
		"redis":   func(context.Context) error { return nil },
		"browser": func(context.Context) error { return errors.New("browser executable not found") },
	})

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "not ready", response.Status)
	assert.Equal(t, "unhealthy", response.Checks["browser"].Status)
	assert.Equal(t, "browser executable not found", response.Checks["browser"].Message)
	assert.Equal(t, "healthy", response.Checks["redis"].Status)
}

func TestPingChecker(t *testing.T) {
	ok := PingChecker("redis", PingerFunc(func(context.Context) error { return nil }))
	assert.NoError(t, ok(context.Background()))

	failing := PingChecker("nats", PingerFunc(func(context.Context) error { return errors.New("disconnected") }))
	err := failing(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nats ping failed")

	missing := PingChecker("redis", nil)
	assert.EqualError(t, missing(context.Background()), "redis is not configured")
}

func TestWithTimeout(t *testing.T) {
	slow := WithTimeout(func(context.Context) error {
		time.Sleep(200 * time.Millisecond)
		return nil
	}, 10*time.Millisecond)

	err := slow(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}
