package traffic

// ClassifyColor maps the computed label color to a congestion level. Only the
// two calibrated delay colors are recognised; every other value, including the
// free-flow green and malformed strings, reads as low.
func ClassifyColor(color string) Status {
	switch color {
	case ColorMedium:
		return StatusMedium
	case ColorHigh:
		return StatusHigh
	default:
		return StatusLow
	}
}
