package solver

import (
	"time"

	"github.com/phil-mansfield/galaxy/model"
	"github.com/phil-mansfield/galaxy/pool"
	"github.com/phil-mansfield/galaxy/tree"
	"go.uber.org/atomic"
	"gonum.org/v1/gonum/spatial/r3"
)

// BruteforceSolver sums the softened acceleration between every pair of
// active particles.
type BruteforceSolver struct {
	base

	particles atomic.Int64
	solveTime atomic.Duration
}

var _ Solver = &BruteforceSolver{}

// NewBruteforce returns a BruteforceSolver over u.
func NewBruteforce(
	u *model.Universe, p *pool.Pool, c Config,
) (*BruteforceSolver, error) {
	b, err := newBase(u, p, c)
	if err != nil { return nil, err }
	return &BruteforceSolver{ base: b }, nil
}

func (s *BruteforceSolver) Kind() Kind { return Bruteforce }

func (s *BruteforceSolver) Initialize(dt float64) error {
	return s.integ.Initialize(s, dt)
}

func (s *BruteforceSolver) SolveForces() error { return s.Forces() }

func (s *BruteforceSolver) Solve(dt float64) error {
	// The particle list may be stale if this solver was just selected.
	s.collect()
	return s.integ.Step(s, dt)
}

// Forces writes the acceleration of every active particle.
func (s *BruteforceSolver) Forces() error {
	s.collect()
	start := time.Now()

	ps, G, eps2 := s.ps, s.con.G, s.con.Softening*s.con.Softening
	s.p.Run(len(ps), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			a, pos := r3.Vec{}, ps[i].Position
			for j := range ps {
				if j == i { continue }
				a = r3.Add(a, tree.GravityAcceleration(
					r3.Sub(ps[j].Position, pos), ps[j].Mass, G, eps2,
				))
			}
			ps[i].Acceleration = a
		}
	})

	s.particles.Store(int64(len(ps)))
	s.solveTime.Store(time.Since(start))
	return nil
}

func (s *BruteforceSolver) Diagnostics() Diagnostics {
	return Diagnostics{
		Kind: Bruteforce,
		Particles: int(s.particles.Load()),
		SolveTime: s.solveTime.Load(),
	}
}
