package entities

import "time"

// PointFeature is the marker data the map layer renders for one vendor.
type PointFeature struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Price     Price   `json:"price"`
	Category  string  `json:"category"`
	Color     string  `json:"color"`
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// PointFeatureFor builds a marker for a vendor. Vendors without usable
// coordinates (none, or the geocoding sentinel) have no marker.
func PointFeatureFor(v *Vendor) (PointFeature, bool) {
	if !v.HasCoordinates() || v.Coordinates.IsSentinel() {
		return PointFeature{}, false
	}
	return PointFeature{
		ID:        v.ID,
		Name:      v.Name,
		Price:     v.Price,
		Category:  v.TopLevelCategory(),
		Color:     CategoryColor(v.Category),
		Longitude: v.Coordinates.Longitude,
		Latitude:  v.Coordinates.Latitude,
	}, true
}

// GeoJSONFeatureCollection is the source payload for the map's marker layer.
type GeoJSONFeatureCollection struct {
	Type     string           `json:"type"`
	Features []GeoJSONFeature `json:"features"`
}

// GeoJSONFeature is a single point in a feature collection.
type GeoJSONFeature struct {
	Type       string          `json:"type"`
	Geometry   GeoJSONGeometry `json:"geometry"`
	Properties PointFeature    `json:"properties"`
}

// GeoJSONGeometry holds [longitude, latitude] for a point.
type GeoJSONGeometry struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// MarkerUpdate is pushed to the map layer whenever the committed set changes.
type MarkerUpdate struct {
	SessionID string                   `json:"session_id"`
	Viewport  Viewport                 `json:"viewport"`
	Features  GeoJSONFeatureCollection `json:"data"`
	Timestamp time.Time                `json:"timestamp"`
}

// NewMarkerUpdate wraps point features into a GeoJSON update.
func NewMarkerUpdate(sessionID string, viewport Viewport, features []PointFeature) *MarkerUpdate {
	collection := GeoJSONFeatureCollection{Type: "FeatureCollection", Features: make([]GeoJSONFeature, 0, len(features))}
	for _, f := range features {
		collection.Features = append(collection.Features, GeoJSONFeature{
			Type:       "Feature",
			Geometry:   GeoJSONGeometry{Type: "Point", Coordinates: [2]float64{f.Longitude, f.Latitude}},
			Properties: f,
		})
	}
	return &MarkerUpdate{
		SessionID: sessionID,
		Viewport:  viewport,
		Features:  collection,
		Timestamp: time.Now(),
	}
}
