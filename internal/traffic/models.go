package traffic

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Status is the congestion level inferred for a point.
type Status string

const (
	StatusLow    Status = "low"
	StatusMedium Status = "medium"
	StatusHigh   Status = "high"
	StatusError  Status = "error"
)

// Calibrated against the rendering of the directions page. Do not tune without
// re-checking the page.
const (
	// LatitudeOffset is the northward step from the origin to the route end.
	LatitudeOffset = 0.001
	// LongitudeOffset is the eastward step from the origin to the route end.
	LongitudeOffset = 0.0

	// ColorMedium is the label color shown for moderate delays.
	ColorMedium = "rgb(176, 91, 0)"
	// ColorHigh is the label color shown for heavy delays.
	ColorHigh = "rgb(217, 48, 37)"

	// LabelSelector matches the travel time headline on the directions page.
	LabelSelector = ".fontHeadlineSmall"

	directionsBaseURL = "https://www.google.com/maps/dir/"
	directionsParams  = "data=!3m1!4b1!4m2!4m1!3e0?entry=ttu"
)

// Coordinate is a WGS84 point in degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Route is the short driving segment sampled for a lookup.
type Route struct {
	Initial  Coordinate
	Midpoint Coordinate
	Final    Coordinate
}

// StatusResponse is the body of every /traffic reply.
type StatusResponse struct {
	Status Status `json:"status"`
}

// NewRoute derives the sampled segment from an origin point.
func NewRoute(origin Coordinate) Route {
	final := Coordinate{
		Latitude:  origin.Latitude + LatitudeOffset,
		Longitude: origin.Longitude + LongitudeOffset,
	}
	return Route{
		Initial: origin,
		Midpoint: Coordinate{
			Latitude:  (origin.Latitude + final.Latitude) / 2,
			Longitude: (origin.Longitude + final.Longitude) / 2,
		},
		Final: final,
	}
}

// NavigationURL renders the directions page address for the route.
func (r Route) NavigationURL() string {
	var b strings.Builder
	b.WriteString(directionsBaseURL)
	b.WriteString(formatPoint(r.Initial))
	b.WriteByte('/')
	b.WriteString(formatPoint(r.Midpoint))
	b.WriteString("/@")
	b.WriteString(formatPoint(r.Final))
	b.WriteByte('/')
	b.WriteString(directionsParams)
	return b.String()
}

// ParseCoordinate reads raw lat/lon query values. Anything unparsable becomes 0.
func ParseCoordinate(rawLat, rawLon string) Coordinate {
	return Coordinate{
		Latitude:  parseDegrees(rawLat),
		Longitude: parseDegrees(rawLon),
	}
}

var leadingNumber = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// parseDegrees accepts the longest numeric prefix of raw, so "12.5abc" is 12.5.
// Empty, non-numeric and non-finite input yields 0, and so does negative zero.
func parseDegrees(raw string) float64 {
	match := leadingNumber.FindString(strings.TrimSpace(raw))
	if match == "" {
		return 0
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v == 0 {
		return 0
	}
	return v
}

func formatPoint(c Coordinate) string {
	return formatDegrees(c.Latitude) + "," + formatDegrees(c.Longitude)
}

// formatDegrees prints the shortest decimal that round-trips, switching to
// exponent form only for very small or very large magnitudes.
func formatDegrees(v float64) string {
	if v == 0 {
		return "0"
	}
	abs := math.Abs(v)
	if abs >= 1e-6 && abs < 1e21 {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	s := strconv.FormatFloat(v, 'e', -1, 64)
	mantissa, exp, _ := strings.Cut(s, "e")
	sign := exp[:1]
	digits := strings.TrimLeft(exp[1:], "0")
	if digits == "" {
		digits = "0"
	}
	return mantissa + "e" + sign + digits
}
