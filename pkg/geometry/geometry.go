package geometry

import (
	"math"
)

// --- Geometry Helpers ---

func DistNM(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 3440.06
	r1, r2 := lat1*math.Pi/180, lat2*math.Pi/180

	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	// --- handle dateline crossing ---
	for dLon > math.Pi {
		dLon -= 2 * math.Pi
	}
	for dLon < -math.Pi {
		dLon += 2 * math.Pi
	}

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(r1)*math.Cos(r2)*math.Sin(dLon/2)*math.Sin(dLon/2)

	return R * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// BearingDeg returns the initial great-circle bearing from point 1 to
// point 2, in degrees clockwise from true north [0, 360).
func BearingDeg(lat1, lon1, lat2, lon2 float64) float64 {
	r1, r2 := lat1*math.Pi/180, lat2*math.Pi/180
	dLon := (lon2 - lon1) * math.Pi / 180

	y := math.Sin(dLon) * math.Cos(r2)
	x := math.Cos(r1)*math.Sin(r2) - math.Sin(r1)*math.Cos(r2)*math.Cos(dLon)

	deg := math.Atan2(y, x) * 180 / math.Pi
	// normalize to compass range
	deg = math.Mod(deg+360, 360)
	return deg
}

var compassPoints = [...]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// Cardinal maps a bearing in degrees to an eight-point compass direction.
func Cardinal(bearingDeg float64) string {
	b := math.Mod(bearingDeg, 360)
	if b < 0 {
		b += 360
	}
	idx := int((b+22.5)/45) % 8
	return compassPoints[idx]
}
