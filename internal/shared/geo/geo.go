package geo

import "math"

const earthRadiusM = 6371008.8

// Coordinate is a WGS84 latitude/longitude pair in degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// DistanceM returns the great-circle distance between a and b in meters.
func DistanceM(a, b Coordinate) float64 {
	lat1 := toRad(a.Lat)
	lat2 := toRad(b.Lat)
	dLat := lat2 - lat1
	dLng := toRad(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusM * math.Asin(math.Min(1, math.Sqrt(h)))
}

func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	return DistanceM(Coordinate{Lat: lat1, Lng: lng1}, Coordinate{Lat: lat2, Lng: lng2}) / 1000
}

// BearingDeg returns the initial bearing from a to b, normalized to [0, 360).
func BearingDeg(a, b Coordinate) float64 {
	lat1 := toRad(a.Lat)
	lat2 := toRad(b.Lat)
	dLng := toRad(b.Lng - a.Lng)

	y := math.Sin(dLng) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLng)
	deg := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}

// Lerp interpolates linearly between a and b. f is clamped to [0, 1].
func Lerp(a, b Coordinate, f float64) Coordinate {
	if f <= 0 {
		return a
	}
	if f >= 1 {
		return b
	}
	return Coordinate{
		Lat: a.Lat + (b.Lat-a.Lat)*f,
		Lng: a.Lng + (b.Lng-a.Lng)*f,
	}
}

// PathLengthM sums the leg distances of an ordered polyline.
func PathLengthM(path []Coordinate) float64 {
	total := 0.0
	for i := 1; i < len(path); i++ {
		total += DistanceM(path[i-1], path[i])
	}
	return total
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
