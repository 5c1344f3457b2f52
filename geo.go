package gtfsrttrigger

import (
	"math"

	"github.com/theoremus-urban-solutions/gtfsrt-trigger/rules"
)

const earthRadiusMeters = 6371000

// haversineMeters returns the great-circle distance between two coordinates.
func haversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

// withinRadius reports whether a position lies inside one geofence circle.
// A zero radius matches only exact coincidence.
func withinRadius(lat, lon float64, p rules.GeoPoint) bool {
	return haversineMeters(lat, lon, p.Lat, p.Lon) <= p.RadiusMeters
}

// withinAnyRadius reports whether a position lies inside any listed circle.
func withinAnyRadius(lat, lon float64, points []rules.GeoPoint) bool {
	for _, p := range points {
		if withinRadius(lat, lon, p) {
			return true
		}
	}
	return false
}
