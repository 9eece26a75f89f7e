/*package geom contains the planar bounding regions used to partition the
simulation domain.
*/
package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Square represents an axis-aligned square in the x-y plane. Only the X and Y
// components of a position are considered when testing for containment.
type Square struct {
	Origin [2]float64
	Length float64
}

// NewSquare returns a square whose lowermost corner is (x, y).
func NewSquare(x, y, length float64) Square {
	return Square{Origin: [2]float64{x, y}, Length: length}
}

// Centered returns a square of the given side length centered on the
// coordinate origin.
func Centered(length float64) Square {
	h := 0.5 * length
	return NewSquare(-h, -h, length)
}

// Opposite returns the uppermost corner of the square.
func (sq Square) Opposite() [2]float64 {
	return [2]float64{sq.Origin[0] + sq.Length, sq.Origin[1] + sq.Length}
}

// Center returns the midpoint of the square.
func (sq Square) Center() [2]float64 {
	h := 0.5 * sq.Length
	return [2]float64{sq.Origin[0] + h, sq.Origin[1] + h}
}

// Contains returns true if the planar projection of p lies within sq. Both the
// lower and upper edges are inclusive, so a point on an edge shared by two
// squares is contained by both of them.
func (sq Square) Contains(p r3.Vec) bool {
	op := sq.Opposite()
	return p.X >= sq.Origin[0] && p.X <= op[0] &&
		p.Y >= sq.Origin[1] && p.Y <= op[1]
}

// Quadrant returns the i-th quadrant of sq. Quadrant 0 shares sq's origin,
// quadrant 1 is offset along +x, quadrant 2 along +x and +y, and quadrant 3
// along +y.
func (sq Square) Quadrant(i int) Square {
	nl := 0.5 * sq.Length
	x, y := sq.Origin[0], sq.Origin[1]

	switch i {
	case 0:
		return NewSquare(x, y, nl)
	case 1:
		return NewSquare(x+nl, y, nl)
	case 2:
		return NewSquare(x+nl, y+nl, nl)
	case 3:
		return NewSquare(x, y+nl, nl)
	}
	panic("Quadrant index must be in the range [0, 4).")
}

// Quadrants returns all four quadrants of sq in traversal order.
func (sq Square) Quadrants() [4]Square {
	return [4]Square{
		sq.Quadrant(0), sq.Quadrant(1), sq.Quadrant(2), sq.Quadrant(3),
	}
}

// Finite returns true if every component of v is neither infinite nor NaN.
func Finite(v r3.Vec) bool {
	return !(math.IsNaN(v.X) || math.IsNaN(v.Y) || math.IsNaN(v.Z) ||
		math.IsInf(v.X, 0) || math.IsInf(v.Y, 0) || math.IsInf(v.Z, 0))
}
