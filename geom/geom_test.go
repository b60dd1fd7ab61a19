package geom

import (
	"math"
	"testing"
)

func TestMatrixInverseRoundTrip(t *testing.T) {
	m := Rotate90(90, 612, 792).Multiply(Scale(1.5, 1.5)).Multiply(Translate(40, -12))
	inv, err := m.Inverse()
	if err != nil {
		t.Fatalf("Inverse() error = %v", err)
	}
	pts := []Point{{0, 0}, {612, 792}, {100.5, 33.25}, {-7, 9}}
	for _, p := range pts {
		got := inv.Transform(m.Transform(p))
		if math.Abs(got.X-p.X) > 1e-9 || math.Abs(got.Y-p.Y) > 1e-9 {
			t.Fatalf("round trip of %v: got %v", p, got)
		}
	}
}

func TestMatrixSingular(t *testing.T) {
	if _, err := Scale(0, 1).Inverse(); err == nil {
		t.Fatalf("expected error for singular matrix")
	}
}

func TestRotate90Quadrants(t *testing.T) {
	const w, h = 100.0, 200.0
	cases := []struct {
		deg  int
		in   Point
		want Point
	}{
		{0, Point{10, 20}, Point{10, 20}},
		{90, Point{10, 20}, Point{180, 10}},
		{180, Point{10, 20}, Point{90, 180}},
		{270, Point{10, 20}, Point{20, 90}},
		{360, Point{10, 20}, Point{10, 20}},
		{-90, Point{10, 20}, Point{20, 90}},
	}
	for _, c := range cases {
		got := Rotate90(c.deg, w, h).Transform(c.in)
		if math.Abs(got.X-c.want.X) > 1e-9 || math.Abs(got.Y-c.want.Y) > 1e-9 {
			t.Fatalf("Rotate90(%d) of %v = %v, want %v", c.deg, c.in, got, c.want)
		}
	}
}

func TestSegmentDistance(t *testing.T) {
	a, b := Point{0, 0}, Point{10, 0}
	if d := SegmentDistance(Point{5, 0}, a, b); d != 0 {
		t.Fatalf("midpoint distance = %v, want 0", d)
	}
	if d := SegmentDistance(Point{5, 3}, a, b); math.Abs(d-3) > 1e-9 {
		t.Fatalf("perpendicular distance = %v, want 3", d)
	}
	// Beyond the endpoint the projection clamps.
	if d := SegmentDistance(Point{13, 4}, a, b); math.Abs(d-5) > 1e-9 {
		t.Fatalf("clamped distance = %v, want 5", d)
	}
	// Degenerate segment.
	if d := SegmentDistance(Point{3, 4}, a, a); math.Abs(d-5) > 1e-9 {
		t.Fatalf("point distance = %v, want 5", d)
	}
}

func TestRectAndBounds(t *testing.T) {
	r := Rect{X1: 1, Y1: 2}.Union(Rect{X0: -1, Y0: -1, X1: 0, Y1: 0})
	if r.X0 != -1 || r.Y0 != -1 || r.X1 != 1 || r.Y1 != 2 {
		t.Fatalf("unexpected union: %+v", r)
	}
	if !r.Contains(Point{0, 0}) || r.Contains(Point{2, 0}) {
		t.Fatalf("containment wrong for %+v", r)
	}
	n := Rect{X0: 5, Y0: 6, X1: 1, Y1: 2}.Normalize()
	if n.X0 != 1 || n.Y0 != 2 || n.X1 != 5 || n.Y1 != 6 {
		t.Fatalf("unexpected normalize: %+v", n)
	}
	b := Bounds([]Point{{1, 1}, {4, -2}, {0, 3}})
	want := Rect{X0: 0, Y0: -2, X1: 4, Y1: 3}
	if b != want {
		t.Fatalf("Bounds = %+v, want %+v", b, want)
	}
}
