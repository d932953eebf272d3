package tiling

import (
	"math"
	"testing"
)

func TestForTile(t *testing.T) {
	gt := GeoTransform{500000, 0.5, 0.01, 4000000, 0.02, -0.5}
	got := gt.ForTile(488, 512)
	want := GeoTransform{500000 + 488*0.5, 0.5, 0.01, 4000000 - 512*0.5, 0.02, -0.5}
	if got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
	if gt.ForTile(0, 0) != gt {
		t.Fatal("zero offset must keep the transform")
	}
}

func TestInvert(t *testing.T) {
	gt := GeoTransform{120.5, 0.001, 0.0002, 31.25, -0.0001, -0.001}
	inv, ok := gt.Invert()
	if !ok {
		t.Fatal("invert failed")
	}
	for _, p := range [][2]float64{{0, 0}, {10.5, 3}, {1000, 2000}} {
		x, y := gt.Apply(p[0], p[1])
		px, py := inv.Apply(x, y)
		if math.Abs(px-p[0]) > 1e-6 || math.Abs(py-p[1]) > 1e-6 {
			t.Errorf("round trip %v -> %v,%v", p, px, py)
		}
	}
	if _, ok = (GeoTransform{0, 1, 1, 0, 1, 1}).Invert(); ok {
		t.Error("degenerate transform must not invert")
	}
}
