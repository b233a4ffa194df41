package traffic

import (
	"context"
	"time"

	"github.com/richxcame/traffic-api/pkg/eventbus"
)

// ColorLoader renders a page and returns the computed foreground color of the
// first element matching selector. Implementations must release every browser
// resource they acquire before returning, on success and on failure.
type ColorLoader interface {
	LoadColorAt(ctx context.Context, url, selector string) (string, error)
}

// ResultCache stores recent lookup results.
type ResultCache interface {
	Get(ctx context.Context, key string, result interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// EventPublisher publishes lookup outcomes for downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, event *eventbus.Event) error
}

// Classifier is what the HTTP layer needs from the service.
type Classifier interface {
	Classify(ctx context.Context, origin Coordinate) (Status, error)
}
