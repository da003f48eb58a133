package geo

import (
	"math"
	"testing"
)

func TestDistanceZero(t *testing.T) {
	p := Point{Lat: 52.52, Lon: 13.405}
	if d := Distance(p, p); d != 0 {
		t.Fatalf("distance to self should be 0, got %f", d)
	}
}

func TestDistanceSymmetric(t *testing.T) {
	a := Point{Lat: 52.52, Lon: 13.405}
	b := Point{Lat: 48.1374, Lon: 11.5755}
	if da, db := Distance(a, b), Distance(b, a); da != db {
		t.Fatalf("distance should be symmetric: %f != %f", da, db)
	}
}

func TestDistanceKnownValues(t *testing.T) {
	cases := []struct {
		name string
		a, b Point
		want float64 // meters
		tol  float64
	}{
		{
			name: "berlin to munich",
			a:    Point{Lat: 52.52, Lon: 13.405},
			b:    Point{Lat: 48.1374, Lon: 11.5755},
			want: 504400,
			tol:  1500,
		},
		{
			name: "one degree of latitude",
			a:    Point{Lat: 52.0, Lon: 13.0},
			b:    Point{Lat: 53.0, Lon: 13.0},
			want: 111195,
			tol:  50,
		},
		{
			name: "short hop",
			a:    Point{Lat: 52.5200, Lon: 13.4050},
			b:    Point{Lat: 52.5206, Lon: 13.4050},
			want: 66.7,
			tol:  0.5,
		},
	}
	for _, tc := range cases {
		got := Distance(tc.a, tc.b)
		if math.Abs(got-tc.want) > tc.tol {
			t.Fatalf("%s: expected ~%f m, got %f m", tc.name, tc.want, got)
		}
	}
}

func TestDistanceNonNegative(t *testing.T) {
	a := Point{Lat: -33.8688, Lon: 151.2093}
	b := Point{Lat: 40.7128, Lon: -74.006}
	if d := Distance(a, b); d <= 0 {
		t.Fatalf("expected positive distance, got %f", d)
	}
}
