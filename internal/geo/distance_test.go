package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceZeroForIdenticalPoints(t *testing.T) {
	assert.Equal(t, 0.0, Distance(0, 0, 0, 0))
	assert.Equal(t, 0.0, Distance(40.7128, -74.0060, 40.7128, -74.0060))
}

func TestDistanceSymmetric(t *testing.T) {
	d1 := Distance(40.7128, -74.0060, 34.0522, -118.2437)
	d2 := Distance(34.0522, -118.2437, 40.7128, -74.0060)
	assert.Equal(t, d1, d2)
}

func TestDistanceOneDegreeLatitude(t *testing.T) {
	// One degree of latitude is about 111.2 km
	d := Distance(0, 0, 1, 0)
	assert.InDelta(t, 111.2, d, 0.1)
}

func TestDistanceKnownReference(t *testing.T) {
	// New York -> Los Angeles is roughly 3936 km great-circle
	d := Distance(40.7128, -74.0060, 34.0522, -118.2437)
	assert.InDelta(t, 3936, d, 5)
}

func TestDistanceMonotonicWithSeparation(t *testing.T) {
	prev := 0.0
	for deg := 1.0; deg <= 10; deg++ {
		d := Distance(0, 0, deg, 0)
		assert.Greater(t, d, prev, "distance should grow with angular separation")
		prev = d
	}
}

func TestDistanceRoundedToOneDecimal(t *testing.T) {
	d := Distance(12.34, 56.78, 23.45, 67.89)
	assert.Equal(t, d, float64(int(d*10))/10)
}

func TestCoordinatesValid(t *testing.T) {
	assert.True(t, Coordinates{Lat: 0, Lng: 0}.Valid())
	assert.True(t, Coordinates{Lat: -90, Lng: 180}.Valid())
	assert.False(t, Coordinates{Lat: 91, Lng: 0}.Valid())
	assert.False(t, Coordinates{Lat: 0, Lng: -181}.Valid())
}

func TestLocationHelpers(t *testing.T) {
	lat, lng := 10.0, 20.0

	assert.True(t, Location{Lat: &lat, Lng: &lng}.HasCoordinates())
	assert.False(t, Location{Lat: &lat}.HasCoordinates())
	assert.True(t, Location{}.IsEmpty())
	assert.False(t, Location{City: "Austin"}.IsEmpty())
	assert.False(t, Location{Zip: "78701"}.IsEmpty())
}
