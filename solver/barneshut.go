package solver

import (
	"fmt"
	"sync"
	"time"

	"github.com/phil-mansfield/galaxy/geom"
	"github.com/phil-mansfield/galaxy/model"
	"github.com/phil-mansfield/galaxy/pool"
	"github.com/phil-mansfield/galaxy/tree"
	"go.uber.org/atomic"
	"golang.org/x/time/rate"
	"k8s.io/klog/v2"
)

// BarnesHutSolver rebuilds a quadtree over the active particles every time
// forces are needed and evaluates each particle's acceleration against it.
//
// The tree is guarded by a read-write lock: it is write-locked while it is
// rebuilt and read-locked while forces are evaluated, so Snapshot and WithTree
// may be called from other goroutines at any time.
type BarnesHutSolver struct {
	base

	mu sync.RWMutex
	t *tree.Tree

	particles, nodes, dropped, outside atomic.Int64
	buildTime, solveTime atomic.Duration

	warn rate.Sometimes
}

var _ Solver = &BarnesHutSolver{}

// NewBarnesHut returns a BarnesHutSolver over u whose tree covers a square of
// side c.UniverseSize centered on the origin.
func NewBarnesHut(
	u *model.Universe, p *pool.Pool, c Config,
) (*BarnesHutSolver, error) {
	b, err := newBase(u, p, c)
	if err != nil { return nil, err }

	t := tree.New(geom.Centered(c.UniverseSize))
	t.Theta, t.G = c.OpeningAngle, c.G
	return &BarnesHutSolver{
		base: b, t: t, warn: rate.Sometimes{ Interval: 10 * time.Second },
	}, nil
}

func (s *BarnesHutSolver) Kind() Kind { return BarnesHut }

func (s *BarnesHutSolver) Initialize(dt float64) error {
	return s.integ.Initialize(s, dt)
}

func (s *BarnesHutSolver) SolveForces() error { return s.Forces() }

func (s *BarnesHutSolver) Solve(dt float64) error {
	// The particle list may be stale if this solver was just selected.
	s.collect()
	return s.integ.Step(s, dt)
}

// Forces rebuilds the tree and writes the acceleration of every active
// particle.
func (s *BarnesHutSolver) Forces() error {
	s.collect()

	if err := s.build(); err != nil { return err }

	start := time.Now()
	s.mu.RLock()
	t, refs, ps, eps := s.t, s.refs, s.ps, s.con.Softening
	s.p.Run(len(ps), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			ps[i].Acceleration = t.ComputeAcceleration(tree.Body{
				Ref: refs[i], Position: ps[i].Position, Mass: ps[i].Mass,
			}, eps)
		}
	})
	s.mu.RUnlock()
	s.solveTime.Store(time.Since(start))

	return nil
}

func (s *BarnesHutSolver) build() error {
	start := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	s.t.Reset()
	for i, p := range s.ps {
		err := s.t.Insert(tree.Body{
			Ref: s.refs[i], Position: p.Position, Mass: p.Mass,
		})
		if err != nil {
			return fmt.Errorf("Could not build tree: %w", err)
		}
	}

	nodes := 0
	s.t.Walk(func(tree.NodeID, *tree.Node, int) bool {
		nodes++
		return true
	})

	dropped, outside := s.t.Dropped(), s.t.Outside()
	if dropped > 0 || outside > 0 {
		s.warn.Do(func() {
			klog.Warningf(
				"%d particles were dropped below tree level %d and %d lie "+
					"outside of the %g-wide domain; their mass is ignored.",
				dropped, tree.MaxLevel, outside, s.con.UniverseSize,
			)
		})
	}

	s.particles.Store(int64(len(s.ps)))
	s.nodes.Store(int64(nodes))
	s.dropped.Store(int64(dropped))
	s.outside.Store(int64(outside))
	s.buildTime.Store(time.Since(start))
	return nil
}

func (s *BarnesHutSolver) Diagnostics() Diagnostics {
	return Diagnostics{
		Kind: BarnesHut,
		Particles: int(s.particles.Load()),
		BuildTime: s.buildTime.Load(),
		SolveTime: s.solveTime.Load(),
		Nodes: int(s.nodes.Load()),
		Dropped: int(s.dropped.Load()),
		Outside: int(s.outside.Load()),
	}
}

// Snapshot returns the bounds of every node of the most recently built tree.
// The returned slice is owned by the caller.
func (s *BarnesHutSolver) Snapshot() []geom.Square {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.t.Squares(nil)
}

// WithTree calls fn with the tree while holding the read lock. fn must not
// retain the tree or modify it.
func (s *BarnesHutSolver) WithTree(fn func(t *tree.Tree)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.t)
}
