package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Response is the readiness probe body
type Response struct {
	Status    string                 `json:"status"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version"`
	Timestamp string                 `json:"timestamp"`
	Uptime    string                 `json:"uptime,omitempty"`
	Checks    map[string]CheckStatus `json:"checks,omitempty"`
}

// CheckStatus represents the status of a single health check
type CheckStatus struct {
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
	Duration string `json:"duration,omitempty"`
}

var startTime = time.Now()

// ReadinessProbe runs every check in parallel and answers 503 if any fails
func ReadinessProbe(serviceName, version string, checks map[string]Checker) gin.HandlerFunc {
	return func(c *gin.Context) {
		results := Run(c.Request.Context(), checks)

		status, statusCode := "ready", http.StatusOK
		for _, result := range results {
			if result.Status != "healthy" {
				status, statusCode = "not ready", http.StatusServiceUnavailable
				break
			}
		}

		c.JSON(statusCode, Response{
			Status:    status,
			Service:   serviceName,
			Version:   version,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Uptime:    time.Since(startTime).Round(time.Second).String(),
			Checks:    results,
		})
	}
}

// Run executes checks concurrently and collects their outcome by name
func Run(ctx context.Context, checks map[string]Checker) map[string]CheckStatus {
	type checkResult struct {
		name     string
		err      error
		duration time.Duration
	}

	resultChan := make(chan checkResult, len(checks))
	var wg sync.WaitGroup

	for name, check := range checks {
		wg.Add(1)
		go func(n string, check Checker) {
			defer wg.Done()
			start := time.Now()
			err := check(ctx)
			resultChan <- checkResult{name: n, err: err, duration: time.Since(start)}
		}(name, check)
	}

	wg.Wait()
	close(resultChan)

	results := make(map[string]CheckStatus, len(checks))
	for result := range resultChan {
		status := CheckStatus{Status: "healthy", Duration: result.duration.String()}
		if result.err != nil {
			status.Status = "unhealthy"
			status.Message = result.err.Error()
		}
		results[result.name] = status
	}
	return results
}
