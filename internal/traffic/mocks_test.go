package traffic

import (
	"context"
	"sync"
	"time"

	"github.com/richxcame/traffic-api/pkg/eventbus"
	"github.com/stretchr/testify/mock"
)

// MockColorLoader is a testify mock for ColorLoader
type MockColorLoader struct {
	mock.Mock
}

func (m *MockColorLoader) LoadColorAt(ctx context.Context, url, selector string) (string, error) {
	args := m.Called(ctx, url, selector)
	return args.String(0), args.Error(1)
}

// MockClassifier is a testify mock for Classifier
type MockClassifier struct {
	mock.Mock
}

func (m *MockClassifier) Classify(ctx context.Context, origin Coordinate) (Status, error) {
	args := m.Called(ctx, origin)
	return args.Get(0).(Status), args.Error(1)
}

// memoryCache is a ResultCache kept in a map
type memoryCache struct {
	mu      sync.Mutex
	entries map[string]StatusResponse
	ttls    map[string]time.Duration
	getErr  error
	setErr  error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{
		entries: make(map[string]StatusResponse),
		ttls:    make(map[string]time.Duration),
	}
}

func (c *memoryCache) Get(ctx context.Context, key string, result interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.getErr != nil {
		return c.getErr
	}
	entry, ok := c.entries[key]
	if !ok {
		return errCacheMiss
	}
	*result.(*StatusResponse) = entry
	return nil
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.setErr != nil {
		return c.setErr
	}
	c.entries[key] = value.(StatusResponse)
	c.ttls[key] = ttl
	return nil
}

func (c *memoryCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

type cacheMissError struct{}

func (cacheMissError) Error() string { return "miss" }

var errCacheMiss error = cacheMissError{}

// recordingPublisher keeps every published event
type recordingPublisher struct {
	mu     sync.Mutex
	events []*eventbus.Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, subject string, event *eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) published() []*eventbus.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*eventbus.Event(nil), p.events...)
}
