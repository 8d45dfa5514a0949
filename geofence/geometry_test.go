package geofence

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"guardforce-cctv/be/models"
)

func ptr(v float64) *float64 { return &v }

func circle(lat, lng, radius float64) models.GeofenceZone {
	return models.GeofenceZone{
		ID:       "circle",
		Center:   &models.LatLng{Lat: lat, Lng: lng},
		Radius:   ptr(radius),
		IsActive: true,
	}
}

func unitSquare() models.GeofenceZone {
	return models.GeofenceZone{
		ID: "square",
		Coordinates: []models.LatLng{
			{Lat: 0, Lng: 0},
			{Lat: 1, Lng: 0},
			{Lat: 1, Lng: 1},
			{Lat: 0, Lng: 1},
		},
		IsActive: true,
	}
}

func TestIsPointInZone_Circle(t *testing.T) {
	zone := circle(0, 0, 1000)

	assert.True(t, IsPointInZone(models.LatLng{Lat: 0, Lng: 0}, zone))
	// 0.02 degrees of longitude at the equator is about 2.2 km.
	assert.False(t, IsPointInZone(models.LatLng{Lat: 0, Lng: 0.02}, zone))
	// about 890 m north
	assert.True(t, IsPointInZone(models.LatLng{Lat: 0.008, Lng: 0}, zone))
}

func TestIsPointInZone_Polygon(t *testing.T) {
	zone := unitSquare()

	assert.True(t, IsPointInZone(models.LatLng{Lat: 0.5, Lng: 0.5}, zone))
	assert.False(t, IsPointInZone(models.LatLng{Lat: 2, Lng: 2}, zone))
	assert.False(t, IsPointInZone(models.LatLng{Lat: -0.5, Lng: 0.5}, zone))
}

func TestIsPointInZone_ConcavePolygon(t *testing.T) {
	// U shape opening towards increasing latitude.
	zone := models.GeofenceZone{Coordinates: []models.LatLng{
		{Lat: 0, Lng: 0},
		{Lat: 3, Lng: 0},
		{Lat: 3, Lng: 1},
		{Lat: 1, Lng: 1},
		{Lat: 1, Lng: 2},
		{Lat: 3, Lng: 2},
		{Lat: 3, Lng: 3},
		{Lat: 0, Lng: 3},
	}}

	assert.True(t, IsPointInZone(models.LatLng{Lat: 0.5, Lng: 1.5}, zone))
	assert.True(t, IsPointInZone(models.LatLng{Lat: 2, Lng: 0.5}, zone))
	assert.False(t, IsPointInZone(models.LatLng{Lat: 2, Lng: 1.5}, zone))
}

func TestIsPointInZone_VertexIsDeterministic(t *testing.T) {
	zone := unitSquare()
	vertex := models.LatLng{Lat: 0, Lng: 0}

	first := IsPointInZone(vertex, zone)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, IsPointInZone(vertex, zone))
	}
}

func TestIsPointInZone_Degenerate(t *testing.T) {
	tests := []struct {
		name string
		zone models.GeofenceZone
	}{
		{"no shape", models.GeofenceZone{}},
		{"two points", models.GeofenceZone{Coordinates: []models.LatLng{{Lat: 0, Lng: 0}, {Lat: 1, Lng: 1}}}},
		{"radius without center", models.GeofenceZone{Radius: ptr(500)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, ShapeDegenerate, Shape(tt.zone))
			assert.False(t, IsPointInZone(models.LatLng{Lat: 0, Lng: 0}, tt.zone))
			assert.False(t, IsPointInZone(models.LatLng{Lat: 0.5, Lng: 0.5}, tt.zone))
		})
	}
}

func TestShape_RadiusWinsOverCoordinates(t *testing.T) {
	zone := unitSquare()
	zone.Center = &models.LatLng{Lat: 10, Lng: 10}
	zone.Radius = ptr(100)

	assert.Equal(t, ShapeCircle, Shape(zone))
	assert.False(t, IsPointInZone(models.LatLng{Lat: 0.5, Lng: 0.5}, zone))
	assert.True(t, IsPointInZone(models.LatLng{Lat: 10, Lng: 10}, zone))
	assert.Equal(t, "circle", Shape(zone).String())
}

func TestHaversineDistance(t *testing.T) {
	assert.Equal(t, 0.0, HaversineDistance(models.LatLng{Lat: 1, Lng: 1}, models.LatLng{Lat: 1, Lng: 1}))

	// one degree along the equator
	d := HaversineDistance(models.LatLng{Lat: 0, Lng: 0}, models.LatLng{Lat: 0, Lng: 1})
	assert.InDelta(t, 111195, d, 1)

	a := models.LatLng{Lat: -6.2, Lng: 106.8}
	b := models.LatLng{Lat: -6.3, Lng: 106.9}
	assert.InDelta(t, HaversineDistance(a, b), HaversineDistance(b, a), 1e-9)
}

func TestZonesContaining(t *testing.T) {
	inactive := unitSquare()
	inactive.ID = "inactive"
	inactive.IsActive = false

	zones := []models.GeofenceZone{unitSquare(), circle(50, 50, 10), inactive}
	p := models.LatLng{Lat: 0.5, Lng: 0.5}

	got := ZonesContaining(p, zones, true)
	if assert.Len(t, got, 1) {
		assert.Equal(t, "square", got[0].ID)
	}

	got = ZonesContaining(p, zones, false)
	if assert.Len(t, got, 2) {
		assert.Equal(t, "square", got[0].ID)
		assert.Equal(t, "inactive", got[1].ID)
	}
}
