package geo

import (
	"math"
	"testing"
)

func TestDistanceKmKnownPairs(t *testing.T) {
	cases := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		wantKm                 float64
		tolKm                  float64
	}{
		{"same point", 37.5665, 126.9780, 37.5665, 126.9780, 0, 0},
		{"seoul city hall to gangnam station", 37.5663, 126.9779, 37.4979, 127.0276, 8.8, 0.3},
		{"seoul to busan", 37.5665, 126.9780, 35.1796, 129.0756, 325.1, 1.5},
		{"across equator", -0.5, 10, 0.5, 10, 110.6, 0.5},
	}
	for _, c := range cases {
		got := DistanceKm(c.lat1, c.lon1, c.lat2, c.lon2)
		if math.Abs(got-c.wantKm) > c.tolKm {
			t.Fatalf("%s: distance = %.3f km, want %.1f±%.1f", c.name, got, c.wantKm, c.tolKm)
		}
	}
}

func TestDistanceKmSymmetry(t *testing.T) {
	a := DistanceKm(37.5665, 126.9780, 35.1796, 129.0756)
	b := DistanceKm(35.1796, 129.0756, 37.5665, 126.9780)
	if math.Abs(a-b) > 1e-6 {
		t.Fatalf("distance not symmetric: %v vs %v", a, b)
	}
}
