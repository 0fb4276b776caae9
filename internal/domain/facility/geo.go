package facility

import (
	"fmt"
	"math"
	"sort"

	"github.com/itsaddyon/MediBridge/internal/platform/apperr"
)

const (
	earthRadiusKm = 6371.0
	DefaultLimit  = 5
)

// ValidateCoordinates rejects non-finite or out-of-range positions.
func ValidateCoordinates(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) ||
		lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return fmt.Errorf("(%v, %v): %w", lat, lng, apperr.ErrInvalidCoordinates)
	}
	return nil
}

// HaversineKm is the great-circle distance between two points.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Nearest ranks facilities by distance from (lat, lng). Ties keep input
// order. A nil filter keeps every type; limit <= 0 means DefaultLimit.
func Nearest(facilities []Facility, lat, lng float64, filter *Type, limit int) ([]Ranked, error) {
	if err := ValidateCoordinates(lat, lng); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	ranked := make([]Ranked, 0, len(facilities))
	for _, f := range facilities {
		if filter != nil && f.Type != *filter {
			continue
		}
		ranked = append(ranked, Ranked{Facility: f, DistanceKm: HaversineKm(lat, lng, f.Lat, f.Lng)})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].DistanceKm < ranked[j].DistanceKm })

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}
