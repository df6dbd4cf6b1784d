package geo

import (
	"math"

	"github.com/example/party-rides/internal/models"
)

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0

// DefaultMaxDetourRatio allows a route up to 50% longer than the direct trip.
const DefaultMaxDetourRatio = 1.5

// DistanceKm returns the haversine distance between a and b in kilometres.
func DistanceKm(a, b models.Coordinates) float64 {
	return Haversine(a.Lat, a.Lng, b.Lat, b.Lng)
}

// Haversine distance in kilometres
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	// rounding can push a just past 1 for near-antipodal points
	a = math.Min(1, math.Max(0, a))
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// IsDetourAcceptable reports whether going start -> pickup -> destination is
// at most maxRatio times the direct start -> destination distance.
// A non-positive maxRatio falls back to DefaultMaxDetourRatio.
func IsDetourAcceptable(start, pickup, destination models.Coordinates, maxRatio float64) bool {
	if maxRatio <= 0 {
		maxRatio = DefaultMaxDetourRatio
	}
	viaPickup := DistanceKm(start, pickup) + DistanceKm(pickup, destination)
	return viaPickup <= maxRatio*DistanceKm(start, destination)
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }
