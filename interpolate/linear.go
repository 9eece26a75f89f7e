/*package interpolate interpolates tabulated functions of one variable.*/
package interpolate

import (
	"fmt"
)

// Linear is a linear interpolator for a table sorted in x.
type Linear struct {
	xs, ys []float64
	incr bool

	// Usually the input data is uniform. This is our estimate of the point
	// spacing.
	dx float64
}

// NewLinear creates an interpolator for a table of x and y values. The xs must
// be strictly increasing or strictly decreasing.
//
// xs and ys must not be modified throughout the lifetime of the Linear.
func NewLinear(xs, ys []float64) *Linear {
	if len(xs) != len(ys) {
		panic(fmt.Sprintf(
			"Table given to NewLinear() has len(xs) = %d but len(ys) = %d.",
			len(xs), len(ys),
		))
	} else if len(xs) <= 1 {
		panic(fmt.Sprintf(
			"Table given to NewLinear() has length of %d.", len(xs),
		))
	}

	lin := &Linear{ xs: xs, ys: ys, incr: xs[0] < xs[1] }
	for i := 0; i < len(xs)-1; i++ {
		if (xs[i+1] > xs[i]) != lin.incr || xs[i+1] == xs[i] {
			panic("Table given to NewLinear() not strictly sorted.")
		}
	}
	lin.dx = (xs[len(xs)-1] - xs[0]) / float64(len(xs)-1)

	return lin
}

// Eval returns the interpolated value at x. Points outside of the table take
// the value of the nearest end point.
func (lin *Linear) Eval(x float64) float64 {
	n := len(lin.xs)
	first, last := lin.xs[0], lin.xs[n-1]
	if lin.incr {
		if x <= first { return lin.ys[0] }
		if x >= last { return lin.ys[n-1] }
	} else {
		if x >= first { return lin.ys[0] }
		if x <= last { return lin.ys[n-1] }
	}

	lo := lin.bsearch(x)
	x1, x2 := lin.xs[lo], lin.xs[lo+1]
	y1, y2 := lin.ys[lo], lin.ys[lo+1]
	return ((y2 - y1) / (x2 - x1)) * (x - x1) + y1
}

// EvalAll evaluates the interpolator at all the given x values. If an output
// array is given, the output is written to that array (the array is still
// returned as a convenience).
func (lin *Linear) EvalAll(xs []float64, out ...[]float64) []float64 {
	if len(out) == 0 { out = [][]float64{ make([]float64, len(xs)) } }
	for i, x := range xs { out[0][i] = lin.Eval(x) }
	return out[0]
}

// bsearch returns the index of the last element in xs which does not lie
// past x.
func (lin *Linear) bsearch(x float64) int {
	// Guess under the assumption of uniform spacing.
	guess := int((x - lin.xs[0]) / lin.dx)
	if guess >= 0 && guess < len(lin.xs)-1 &&
		(lin.xs[guess] <= x == lin.incr) &&
		(lin.xs[guess+1] >= x == lin.incr) {

		return guess
	}

	// Binary search.
	lo, hi := 0, len(lin.xs)-1
	for hi-lo > 1 {
		mid := (lo + hi) / 2
		if lin.incr == (x >= lin.xs[mid]) {
			lo = mid
		} else {
			hi = mid
		}
	}
	return lo
}
