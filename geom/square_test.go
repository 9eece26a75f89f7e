package geom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestContains(t *testing.T) {
	sq := NewSquare(-1, -1, 2)

	table := []struct {
		p   r3.Vec
		res bool
	}{
		{r3.Vec{X: 0, Y: 0}, true},
		{r3.Vec{X: -1, Y: -1}, true},
		{r3.Vec{X: 1, Y: 1}, true},
		{r3.Vec{X: 1, Y: -1, Z: 100}, true},
		{r3.Vec{X: 1.0000001, Y: 0}, false},
		{r3.Vec{X: 0, Y: -1.0000001}, false},
		{r3.Vec{X: math.NaN(), Y: 0}, false},
	}

	for i, test := range table {
		if res := sq.Contains(test.p); res != test.res {
			t.Errorf(
				"%d) Expected Contains(%v) = %v, got %v", i, test.p, test.res, res,
			)
		}
	}
}

func TestQuadrants(t *testing.T) {
	sq := NewSquare(2, 4, 8)
	qs := sq.Quadrants()

	assert.Equal(t, NewSquare(2, 4, 4), qs[0])
	assert.Equal(t, NewSquare(6, 4, 4), qs[1])
	assert.Equal(t, NewSquare(6, 8, 4), qs[2])
	assert.Equal(t, NewSquare(2, 8, 4), qs[3])

	assert.Equal(t, [2]float64{10, 12}, sq.Opposite())
	assert.Equal(t, [2]float64{6, 8}, sq.Center())
	assert.Panics(t, func() { sq.Quadrant(4) })
}

func TestSharedEdgeFirstQuadrantWins(t *testing.T) {
	sq := Centered(2)
	p := r3.Vec{X: 0, Y: 0}

	first := -1
	n := 0
	for i, q := range sq.Quadrants() {
		if q.Contains(p) {
			n++
			if first == -1 {
				first = i
			}
		}
	}

	assert.Equal(t, 4, n, "center is on every quadrant's edge")
	assert.Equal(t, 0, first)
}

func TestFinite(t *testing.T) {
	assert.True(t, Finite(r3.Vec{X: 1, Y: 2, Z: 3}))
	assert.False(t, Finite(r3.Vec{X: math.Inf(1)}))
	assert.False(t, Finite(r3.Vec{Z: math.NaN()}))
}
