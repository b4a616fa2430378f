package scoring

import (
	"fmt"
	"math"

	"github.com/okian/stratowatch/internal/domain/model"
)

// DistanceMode selects how divergence between two points is measured.
type DistanceMode string

// Distance modes.
const (
	// ModeApproximate treats a degree of latitude and of longitude as the same
	// fixed number of kilometers and takes the planar norm. It ignores the
	// cos(lat) shrink of longitude degrees, so it is only meaningful for
	// regional baselines of tens to low hundreds of kilometers.
	ModeApproximate DistanceMode = "approximate"
	// ModeHaversine is the great-circle distance on a spherical Earth.
	ModeHaversine DistanceMode = "haversine"
)

// Earth constants.
const (
	DefaultKmPerDegree = 111.0
	EarthRadiusKm      = 6371.0
)

// ParseDistanceMode maps a config string to a DistanceMode.
func ParseDistanceMode(s string) (DistanceMode, error) {
	switch DistanceMode(s) {
	case ModeApproximate, "":
		return ModeApproximate, nil
	case ModeHaversine:
		return ModeHaversine, nil
	default:
		return "", fmt.Errorf("unknown distance mode %q", s)
	}
}

// approximateKm is the equirectangular shortcut: sqrt(dLat²+dLon²)·kmPerDegree.
func approximateKm(a, b model.GeoPoint, kmPerDegree float64) float64 {
	return math.Hypot(a.Lat-b.Lat, a.Lon-b.Lon) * kmPerDegree
}

func haversineKm(a, b model.GeoPoint) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := lat2 - lat1
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}
