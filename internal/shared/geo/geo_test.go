package geo

import (
	"math"
	"testing"
)

func TestHaversineKm(t *testing.T) {
	// Jakarta (-6.2, 106.816) to Bandung (-6.9175, 107.6191) ~ 115-120 km
	d := HaversineKm(-6.2, 106.816, -6.9175, 107.6191)
	if d < 100 || d > 140 {
		t.Fatalf("unexpected distance: %v", d)
	}
}

func TestDistanceMZeroAndSymmetric(t *testing.T) {
	a := Coordinate{Lat: 52.52, Lng: 13.405}
	b := Coordinate{Lat: 52.5251, Lng: 13.3694}
	if DistanceM(a, a) != 0 {
		t.Fatalf("expected zero distance for identical points")
	}
	if math.Abs(DistanceM(a, b)-DistanceM(b, a)) > 1e-9 {
		t.Fatalf("distance not symmetric")
	}
}

func TestDistanceMOneDegreeLatitude(t *testing.T) {
	d := DistanceM(Coordinate{Lat: 0, Lng: 0}, Coordinate{Lat: 1, Lng: 0})
	if math.Abs(d-111195) > 10 {
		t.Fatalf("unexpected one degree distance: %v", d)
	}
}

func TestBearingDeg(t *testing.T) {
	origin := Coordinate{Lat: 0, Lng: 0}
	cases := []struct {
		to   Coordinate
		want float64
	}{
		{Coordinate{Lat: 1, Lng: 0}, 0},
		{Coordinate{Lat: 0, Lng: 1}, 90},
		{Coordinate{Lat: -1, Lng: 0}, 180},
		{Coordinate{Lat: 0, Lng: -1}, 270},
	}
	for _, tc := range cases {
		got := BearingDeg(origin, tc.to)
		if math.Abs(got-tc.want) > 1e-6 {
			t.Fatalf("bearing to %+v: got %v want %v", tc.to, got, tc.want)
		}
	}
}

func TestLerp(t *testing.T) {
	a := Coordinate{Lat: 10, Lng: 20}
	b := Coordinate{Lat: 20, Lng: 40}

	mid := Lerp(a, b, 0.5)
	if mid.Lat != 15 || mid.Lng != 30 {
		t.Fatalf("unexpected midpoint: %+v", mid)
	}
	if Lerp(a, b, -1) != a {
		t.Fatalf("expected clamp to a")
	}
	if Lerp(a, b, 2) != b {
		t.Fatalf("expected clamp to b")
	}
}

func TestPathLengthM(t *testing.T) {
	if PathLengthM(nil) != 0 {
		t.Fatalf("expected zero for empty path")
	}
	a := Coordinate{Lat: 0, Lng: 0}
	b := Coordinate{Lat: 0, Lng: 0.01}
	got := PathLengthM([]Coordinate{a, b, a})
	if math.Abs(got-2*DistanceM(a, b)) > 1e-9 {
		t.Fatalf("unexpected loop length: %v", got)
	}
}
