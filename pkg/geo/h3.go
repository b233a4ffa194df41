package geo

import (
	"github.com/uber/h3-go/v4"
)

// CellResolution is the H3 resolution used to tag lookups (~175m edge), fine
// enough that neighbouring streets land in different cells.
const CellResolution = 9

// CellFor returns the H3 cell index, as a hex string, containing the point.
// Out-of-range input yields an empty string.
func CellFor(lat, lng float64) string {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return ""
	}
	cell, err := h3.LatLngToCell(h3.NewLatLng(lat, lng), CellResolution)
	if err != nil || cell == 0 {
		return ""
	}
	return cell.String()
}
