package core

import (
	"math"
	"sort"

	"demand_service/internal/domain/model"
)

const earthRadiusKm = 6371

// DistanceKm is the great-circle distance between two points.
func DistanceKm(a, b model.Coordinates) float64 {
	return haversine(a.Lat, a.Lng, b.Lat, b.Lng)
}

func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// destination returns the point reached by travelling distKm from origin on the given bearing.
func destination(origin model.Coordinates, bearingDeg, distKm float64) model.Coordinates {
	lat1 := origin.Lat * math.Pi / 180
	lon1 := origin.Lng * math.Pi / 180
	brg := bearingDeg * math.Pi / 180
	d := distKm / earthRadiusKm

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(d) + math.Cos(lat1)*math.Sin(d)*math.Cos(brg))
	lon2 := lon1 + math.Atan2(
		math.Sin(brg)*math.Sin(d)*math.Cos(lat1),
		math.Cos(d)-math.Sin(lat1)*math.Sin(lat2),
	)

	return model.Coordinates{
		Lat: lat2 * 180 / math.Pi,
		Lng: math.Mod(lon2*180/math.Pi+540, 360) - 180,
	}
}

// median of the values; 0 for an empty slice. The input is not modified.
func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func roundTo(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
