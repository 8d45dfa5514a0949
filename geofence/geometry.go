// Package geofence decides zone membership for geographic points.
//
// Polygon containment uses planar ray casting with latitude as the x axis
// and longitude as the y axis. This is not geodesic containment: it is
// accurate for small zones and drifts for zones spanning wide longitude
// ranges at high latitude.
package geofence

import (
	"math"

	"guardforce-cctv/be/models"
)

// EarthRadiusMeters is the mean Earth radius used by HaversineDistance.
const EarthRadiusMeters = 6371 * 1000.0

type ShapeKind int

const (
	ShapeDegenerate ShapeKind = iota
	ShapeCircle
	ShapePolygon
)

func (k ShapeKind) String() string {
	switch k {
	case ShapeCircle:
		return "circle"
	case ShapePolygon:
		return "polygon"
	}
	return "degenerate"
}

// Shape classifies a zone. A radius always wins over coordinates.
func Shape(zone models.GeofenceZone) ShapeKind {
	if zone.Radius != nil {
		if zone.Center == nil {
			return ShapeDegenerate
		}
		return ShapeCircle
	}
	if len(zone.Coordinates) >= 3 {
		return ShapePolygon
	}
	return ShapeDegenerate
}

// IsPointInZone reports whether point lies inside zone. Degenerate zones
// contain no point.
func IsPointInZone(point models.LatLng, zone models.GeofenceZone) bool {
	switch Shape(zone) {
	case ShapeCircle:
		return HaversineDistance(point, *zone.Center) <= *zone.Radius
	case ShapePolygon:
		return PointInPolygon(point, zone.Coordinates)
	}
	return false
}

// HaversineDistance returns the great-circle distance in meters.
func HaversineDistance(a, b models.LatLng) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusMeters * c
}

// PointInPolygon is the even-odd ray casting test. Vertices are visited in
// order and the last one wraps to the first. Fewer than three vertices
// never contain a point.
func PointInPolygon(p models.LatLng, polygon []models.LatLng) bool {
	if len(polygon) < 3 {
		return false
	}
	x, y := p.Lat, p.Lng
	inside := false
	for i, j := 0, len(polygon)-1; i < len(polygon); j, i = i, i+1 {
		xi, yi := polygon[i].Lat, polygon[i].Lng
		xj, yj := polygon[j].Lat, polygon[j].Lng

		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// ZonesContaining returns the zones that contain point, in input order.
func ZonesContaining(point models.LatLng, zones []models.GeofenceZone, activeOnly bool) []models.GeofenceZone {
	var out []models.GeofenceZone
	for _, z := range zones {
		if activeOnly && !z.IsActive {
			continue
		}
		if IsPointInZone(point, z) {
			out = append(out, z)
		}
	}
	return out
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
