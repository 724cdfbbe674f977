package models

import "math"

// GeoJSON represents a GeoJSON Point for MongoDB 2dsphere queries.
type GeoJSON struct {
	Type        string    `bson:"type" json:"type"`               // Always "Point"
	Coordinates []float64 `bson:"coordinates" json:"coordinates"` // [longitude, latitude]
}

// NewGeoPoint builds a GeoJSON Point from latitude/longitude.
func NewGeoPoint(lat, lon float64) *GeoJSON {
	return &GeoJSON{
		Type:        "Point",
		Coordinates: []float64{lon, lat},
	}
}

// Lat returns the latitude of the point, 0 for a malformed point.
func (g *GeoJSON) Lat() float64 {
	if g == nil || len(g.Coordinates) != 2 {
		return 0
	}
	return g.Coordinates[1]
}

// Lon returns the longitude of the point, 0 for a malformed point.
func (g *GeoJSON) Lon() float64 {
	if g == nil || len(g.Coordinates) != 2 {
		return 0
	}
	return g.Coordinates[0]
}

const earthRadiusKM = 6371.0

// HaversineKM computes the great-circle distance between two points in km.
func HaversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKM * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// NearbyUser is a profile annotated with its distance from the requester.
type NearbyUser struct {
	Profile    Profile `json:"profile"`
	DistanceKM float64 `json:"distance_km"`
}
