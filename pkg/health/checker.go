package health

import (
	"context"
	"fmt"
	"time"
)

// Checker is a health check function that returns an error if unhealthy
type Checker func(ctx context.Context) error

// DefaultTimeout bounds a single check
const DefaultTimeout = 2 * time.Second

// Pinger is implemented by dependencies that can verify their own connection
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a plain function to Pinger
type PingerFunc func(ctx context.Context) error

// Ping calls f(ctx)
func (f PingerFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// PingChecker returns a checker that pings p under DefaultTimeout
func PingChecker(name string, p Pinger) Checker {
	return WithTimeout(func(ctx context.Context) error {
		if p == nil {
			return fmt.Errorf("%s is not configured", name)
		}
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
		return nil
	}, DefaultTimeout)
}

// WithTimeout runs checker with its own deadline and gives up when it passes,
// even if checker ignores ctx
func WithTimeout(checker Checker, timeout time.Duration) Checker {
	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		errChan := make(chan error, 1)
		go func() {
			errChan <- checker(ctx)
		}()

		select {
		case err := <-errChan:
			return err
		case <-ctx.Done():
			return fmt.Errorf("health check timeout after %v", timeout)
		}
	}
}
