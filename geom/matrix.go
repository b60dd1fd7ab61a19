package geom

import (
	"errors"
	"math"
)

// Matrix is an affine transform [a b c d e f] applied as
// (x, y) -> (a*x + c*y + e, b*x + d*y + f).
type Matrix [6]float64

func Identity() Matrix { return Matrix{1, 0, 0, 1, 0, 0} }

// Multiply returns the transform that applies m first, then o.
func (m Matrix) Multiply(o Matrix) Matrix {
	return Matrix{
		m[0]*o[0] + m[1]*o[2],
		m[0]*o[1] + m[1]*o[3],
		m[2]*o[0] + m[3]*o[2],
		m[2]*o[1] + m[3]*o[3],
		m[4]*o[0] + m[5]*o[2] + o[4],
		m[4]*o[1] + m[5]*o[3] + o[5],
	}
}

func (m Matrix) Transform(p Point) Point {
	return Point{X: m[0]*p.X + m[2]*p.Y + m[4], Y: m[1]*p.X + m[3]*p.Y + m[5]}
}

func (m Matrix) Inverse() (Matrix, error) {
	det := m[0]*m[3] - m[1]*m[2]
	if math.Abs(det) < 1e-10 {
		return Matrix{}, errors.New("matrix singular")
	}
	return Matrix{
		m[3] / det,
		-m[1] / det,
		-m[2] / det,
		m[0] / det,
		(m[2]*m[5] - m[3]*m[4]) / det,
		(m[1]*m[4] - m[0]*m[5]) / det,
	}, nil
}

func Translate(tx, ty float64) Matrix { return Matrix{1, 0, 0, 1, tx, ty} }
func Scale(sx, sy float64) Matrix     { return Matrix{sx, 0, 0, sy, 0, 0} }

// Rotate90 maps a w-by-h page rotated clockwise by a multiple of 90 degrees
// into the positive quadrant of the rotated frame. Angles are normalized
// mod 360; non-multiples of 90 are rounded down to the nearest quadrant.
func Rotate90(deg int, w, h float64) Matrix {
	deg = ((deg % 360) + 360) % 360
	switch deg / 90 {
	case 1:
		return Matrix{0, 1, -1, 0, h, 0}
	case 2:
		return Matrix{-1, 0, 0, -1, w, h}
	case 3:
		return Matrix{0, -1, 1, 0, 0, w}
	default:
		return Identity()
	}
}
