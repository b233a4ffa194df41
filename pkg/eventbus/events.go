package eventbus

import "time"

// TrafficClassifiedData is emitted after every traffic lookup, failed ones included.
type TrafficClassifiedData struct {
	Latitude        float64   `json:"latitude"`
	Longitude       float64   `json:"longitude"`
	Cell            string    `json:"h3_cell,omitempty"`
	RouteDistanceKm float64   `json:"route_distance_km"`
	Status          string    `json:"status"`
	Cause           string    `json:"cause,omitempty"`
	CacheHit        bool      `json:"cache_hit"`
	DurationMs      int64     `json:"duration_ms"`
	ClassifiedAt    time.Time `json:"classified_at"`
}
