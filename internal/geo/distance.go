package geo

import "math"

// earthRadiusKM is the mean Earth radius used by the Haversine formula.
const earthRadiusKM = 6371.0

// Coordinates is a lat/lng pair in decimal degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the coordinates are inside the WGS84 envelope.
func (c Coordinates) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// Location is a partially-specified place: stored coordinates when the
// client captured them, otherwise whatever address fields it had.
type Location struct {
	Lat   *float64 `json:"lat,omitempty"`
	Lng   *float64 `json:"lng,omitempty"`
	City  string   `json:"city,omitempty"`
	State string   `json:"state,omitempty"`
	Zip   string   `json:"zip,omitempty"`
}

// HasCoordinates reports whether the location carries stored coordinates.
func (l Location) HasCoordinates() bool {
	return l.Lat != nil && l.Lng != nil
}

// IsEmpty reports whether nothing at all is known about the location.
func (l Location) IsEmpty() bool {
	return !l.HasCoordinates() && l.City == "" && l.Zip == ""
}

// Distance returns the great-circle distance in kilometers between two
// points, rounded to one decimal place.
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLng := toRadians(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return math.Round(earthRadiusKM*c*10) / 10
}

// DistanceBetween is Distance over Coordinates values.
func DistanceBetween(a, b Coordinates) float64 {
	return Distance(a.Lat, a.Lng, b.Lat, b.Lng)
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
