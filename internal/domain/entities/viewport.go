package entities

import (
	"fmt"
	"math"

	"github.com/golang/geo/r1"
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// Viewport is a geographic bounding box reported by the map on pan/zoom.
// West may be greater than East when the box crosses the antimeridian.
type Viewport struct {
	South float64 `json:"south"`
	North float64 `json:"north"`
	West  float64 `json:"west"`
	East  float64 `json:"east"`
}

// Default map centre (Queens, NY) and the span shown at the initial zoom.
const (
	DefaultCenterLatitude  = 40.730610
	DefaultCenterLongitude = -73.935242
	DefaultLatitudeSpan    = 0.27
	DefaultLongitudeSpan   = 0.35
)

// DefaultViewport returns the box the map opens on.
func DefaultViewport() Viewport {
	return ViewportAround(DefaultCenterLatitude, DefaultCenterLongitude, DefaultLatitudeSpan, DefaultLongitudeSpan)
}

// ViewportAround builds a box centred on a point with the given half spans.
func ViewportAround(lat, lon, latSpan, lonSpan float64) Viewport {
	return Viewport{
		South: math.Max(lat-latSpan, -90),
		North: math.Min(lat+latSpan, 90),
		West:  wrapLongitude(lon - lonSpan),
		East:  wrapLongitude(lon + lonSpan),
	}
}

// Validate checks the box is well formed.
func (v Viewport) Validate() error {
	if v.South < -90 || v.North > 90 || v.South > v.North {
		return fmt.Errorf("invalid latitude range [%f, %f]", v.South, v.North)
	}
	if v.West < -180 || v.West > 180 || v.East < -180 || v.East > 180 {
		return fmt.Errorf("invalid longitude range [%f, %f]", v.West, v.East)
	}
	return nil
}

// CrossesAntimeridian reports whether the box wraps past 180°.
func (v Viewport) CrossesAntimeridian() bool {
	return v.West > v.East
}

// Equal reports whether two viewports describe the same box.
func (v Viewport) Equal(other Viewport) bool {
	return v == other
}

// Rect converts the viewport into an s2 lat/lng rectangle.
func (v Viewport) Rect() s2.Rect {
	return s2.Rect{
		Lat: r1.Interval{Lo: (s1.Angle(v.South) * s1.Degree).Radians(), Hi: (s1.Angle(v.North) * s1.Degree).Radians()},
		Lng: s1.IntervalFromEndpoints((s1.Angle(v.West) * s1.Degree).Radians(), (s1.Angle(v.East) * s1.Degree).Radians()),
	}
}

// Contains reports whether a coordinate lies inside the box, edges included.
func (v Viewport) Contains(c Coordinates) bool {
	return v.Rect().ContainsLatLng(s2.LatLngFromDegrees(c.Latitude, c.Longitude))
}

// Polygon returns the box corners as (lat, lng) pairs, counter-clockwise from
// the south-west corner.
func (v Viewport) Polygon() [][2]float64 {
	return [][2]float64{
		{v.South, v.West},
		{v.South, v.East},
		{v.North, v.East},
		{v.North, v.West},
	}
}

func (v Viewport) String() string {
	return fmt.Sprintf("[%.5f,%.5f,%.5f,%.5f]", v.South, v.West, v.North, v.East)
}

func wrapLongitude(lon float64) float64 {
	for lon > 180 {
		lon -= 360
	}
	for lon < -180 {
		lon += 360
	}
	return lon
}
