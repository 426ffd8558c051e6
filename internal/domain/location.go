package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Location is a point for which climate is requested. ElevationM may be NaN when unknown.
type Location struct {
	LatitudeDeg  float64
	LongitudeDeg float64
	ElevationM   float64
}

// NewLocation returns a Location without elevation.
func NewLocation(lat, lon float64) Location {
	return Location{LatitudeDeg: lat, LongitudeDeg: lon, ElevationM: math.NaN()}
}

// HasElevation reports whether the elevation is defined.
func (l Location) HasElevation() bool {
	return !math.IsNaN(l.ElevationM)
}

// Validate checks that the coordinates are finite and inside WGS-84 bounds.
func (l Location) Validate() error {
	if math.IsNaN(l.LatitudeDeg) || l.LatitudeDeg < -90 || l.LatitudeDeg > 90 {
		return fmt.Errorf("%w: latitude %v out of range [-90, 90]", ErrValidation, l.LatitudeDeg)
	}
	if math.IsNaN(l.LongitudeDeg) || l.LongitudeDeg < -180 || l.LongitudeDeg > 180 {
		return fmt.Errorf("%w: longitude %v out of range [-180, 180]", ErrValidation, l.LongitudeDeg)
	}
	if math.IsInf(l.ElevationM, 0) {
		return fmt.Errorf("%w: elevation must be finite or NaN", ErrValidation)
	}
	return nil
}

// String renders the location as lat_lon_elev.
func (l Location) String() string {
	return formatCoord(l.LatitudeDeg) + "_" + formatCoord(l.LongitudeDeg) + "_" + l.ElevationText()
}

// ElevationText is the wire form of the elevation ("NaN" when undefined).
func (l Location) ElevationText() string {
	if !l.HasElevation() {
		return "NaN"
	}
	return formatCoord(l.ElevationM)
}

// MarshalJSON encodes an undefined elevation as null.
func (l Location) MarshalJSON() ([]byte, error) {
	var elev *float64
	if l.HasElevation() {
		elev = &l.ElevationM
	}
	return json.Marshal(struct {
		Lat  float64  `json:"lat"`
		Lon  float64  `json:"lon"`
		Elev *float64 `json:"elev"`
	}{l.LatitudeDeg, l.LongitudeDeg, elev})
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// LocationResult pairs a requested location with the dataset returned for it.
type LocationResult struct {
	Location Location `json:"location"`
	Data     *Dataset `json:"data"`
}
