package domain

import "testing"

func TestDiscountRate(t *testing.T) {
	cases := []struct {
		original, discounted float64
		want                 int
	}{
		{100, 80, 20},
		{100, 100, 0},
		{100, 120, 0},
		{0, 80, 0},
		{3, 2, 33},
		{3, 1, 67},
	}
	for _, c := range cases {
		if got := DiscountRate(c.original, c.discounted); got != c.want {
			t.Fatalf("DiscountRate(%v, %v) = %d, want %d", c.original, c.discounted, got, c.want)
		}
	}
}

func TestDistanceDiscountScoreMonotonicity(t *testing.T) {
	// Identical discount: strictly closer never scores lower.
	if near, far := DistanceDiscountScore(1, 30), DistanceDiscountScore(5, 30); near < far {
		t.Fatalf("closer product scored lower: %v < %v", near, far)
	}
	// Identical distance: higher discount never scores lower.
	if hi, lo := DistanceDiscountScore(3, 50), DistanceDiscountScore(3, 10); hi < lo {
		t.Fatalf("deeper discount scored lower: %v < %v", hi, lo)
	}
	// Beyond the cap, distance no longer differentiates.
	if a, b := DistanceDiscountScore(10, 20), DistanceDiscountScore(25, 20); a != b {
		t.Fatalf("distance cap not applied: %v != %v", a, b)
	}
}

func TestDistanceDiscountScoreBounds(t *testing.T) {
	if got := DistanceDiscountScore(0, 100); got != 1.0 {
		t.Fatalf("best case score = %v, want 1.0", got)
	}
	if got := DistanceDiscountScore(50, 0); got != 0.0 {
		t.Fatalf("worst case score = %v, want 0.0", got)
	}
}
