/*package tree implements a Barnes-Hut region quadtree over the x-y plane.

Nodes live in a single arena owned by the Tree and refer to each other by
index. Children are allocated in blocks of four the first time a node splits
and are reset, not reallocated, when the tree is rebuilt, so a tree which is
reset and refilled every tick stops allocating once it has grown to the size
of the particle distribution.

Leaves hold at most one Body. A Body is a copy of a particle's position and
mass tagged with the particle's model.Ref; it is only meaningful until the
next Reset.
*/
package tree

import (
	"errors"
	"fmt"
	"math"

	"github.com/phil-mansfield/galaxy/geom"
	"github.com/phil-mansfield/galaxy/model"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// MaxLevel is the deepest level at which a body can be inserted. Bodies
	// which would need to be placed deeper are dropped.
	MaxLevel = 50
	// DefaultOpeningAngle is the default Barnes-Hut opening angle.
	DefaultOpeningAngle = 0.7

	// Root is the ID of a tree's root node.
	Root NodeID = 0
	noNode NodeID = -1
	noBody int32 = -1
)

// ErrInvalidBody is returned (wrapped) when a body with a non-positive mass or
// a non-finite position is inserted.
var ErrInvalidBody = errors.New("invalid body")

// NodeID indexes a node within its tree's arena.
type NodeID int32

// Body is the view of a particle held by a leaf.
type Body struct {
	Ref model.Ref
	Position r3.Vec
	Mass float64
}

// Node is a square region of the plane. Leaves store at most one body;
// internal nodes have exactly four children and aggregate the mass and
// mass-weighted centroid of everything inserted beneath them. A leaf holding
// a body reports that body's mass and position as its aggregates.
type Node struct {
	Bounds geom.Square
	Leaf bool
	TotalMass float64
	MassCenter r3.Vec

	body int32
	children NodeID
}

// HasBody returns true if n is a leaf which holds a body.
func (n *Node) HasBody() bool { return n.Leaf && n.body != noBody }

// Child returns the ID of n's i-th quadrant. It must only be called on
// internal nodes.
func (n *Node) Child(i int) NodeID { return n.children + NodeID(i) }

// Tree is a Barnes-Hut quadtree. A Tree is not safe for concurrent mutation,
// but any number of goroutines may call ComputeAcceleration concurrently
// while no goroutine is mutating it.
type Tree struct {
	// Theta is the opening angle: nodes whose side length divided by their
	// distance to the query point is below Theta are treated as point masses.
	Theta float64
	// G is the gravitational constant in code units.
	G float64

	nodes []Node
	bodies []Body
	dropped, outside int
}

// New returns an empty tree covering bounds.
func New(bounds geom.Square) *Tree {
	t := &Tree{ Theta: DefaultOpeningAngle, G: 1 }
	t.nodes = []Node{ emptyNode(bounds) }
	return t
}

func emptyNode(bounds geom.Square) Node {
	return Node{ Bounds: bounds, Leaf: true, body: noBody, children: noNode }
}

// Reset clears the tree back to an empty root leaf. Previously allocated
// nodes are kept for reuse.
func (t *Tree) Reset() {
	t.ResetNode(Root)
	t.bodies = t.bodies[:0]
	t.dropped, t.outside = 0, 0
}

// ResetNode clears the subtree rooted at id back to an empty leaf without
// releasing its children.
func (t *Tree) ResetNode(id NodeID) {
	n := &t.nodes[id]
	n.Leaf = true
	n.body = noBody
	n.TotalMass = 0
	n.MassCenter = r3.Vec{}
}

// Bounds returns the square covered by the root.
func (t *Tree) Bounds() geom.Square { return t.nodes[Root].Bounds }

// Insert inserts b below the root.
func (t *Tree) Insert(b Body) error { return t.InsertAt(Root, b, 0) }

// InsertAt inserts b into the subtree rooted at id, which is at the given
// level of the tree. Bodies outside of the node's bounds are ignored, and
// bodies which would need to be stored below MaxLevel are dropped. Neither
// case is an error: both are counted and reported by Outside and Dropped.
func (t *Tree) InsertAt(id NodeID, b Body, level int) error {
	if !(b.Mass > 0) || math.IsInf(b.Mass, 0) {
		return fmt.Errorf(
			"%w: particle %v has mass %g", ErrInvalidBody, b.Ref, b.Mass,
		)
	} else if !geom.Finite(b.Position) {
		return fmt.Errorf(
			"%w: particle %v has position %v", ErrInvalidBody, b.Ref, b.Position,
		)
	}

	t.bodies = append(t.bodies, b)
	t.insert(id, int32(len(t.bodies) - 1), level)
	return nil
}

func (t *Tree) insert(id NodeID, bi int32, level int) {
	b := &t.bodies[bi]
	if !t.nodes[id].Bounds.Contains(b.Position) {
		t.outside++
		return
	}
	if level > MaxLevel {
		t.dropped++
		return
	}

	n := &t.nodes[id]
	if n.Leaf {
		if n.body == noBody {
			n.body = bi
			n.TotalMass, n.MassCenter = b.Mass, b.Position
			return
		}

		// An occupied leaf becomes an internal node and pushes both bodies
		// down a level.
		old := n.body
		n.Leaf, n.body = false, noBody
		if n.children == noNode {
			t.split(id)
		} else {
			for i := 0; i < 4; i++ { t.ResetNode(n.Child(i)) }
		}

		t.route(id, old, level + 1)
		t.route(id, bi, level + 1)

		ob, nb := &t.bodies[old], &t.bodies[bi]
		n = &t.nodes[id]
		n.TotalMass = ob.Mass + nb.Mass
		n.MassCenter = r3.Scale(1/n.TotalMass, r3.Add(
			r3.Scale(nb.Mass, nb.Position), r3.Scale(ob.Mass, ob.Position),
		))
		return
	}

	total := n.TotalMass + b.Mass
	n.MassCenter = r3.Scale(1/total, r3.Add(
		r3.Scale(n.TotalMass, n.MassCenter), r3.Scale(b.Mass, b.Position),
	))
	n.TotalMass = total

	t.route(id, bi, level + 1)
}

// route inserts a body into the first of id's children which contains it.
func (t *Tree) route(id NodeID, bi int32, level int) {
	pos := t.bodies[bi].Position
	for i := 0; i < 4; i++ {
		c := t.nodes[id].Child(i)
		if t.nodes[c].Bounds.Contains(pos) {
			t.insert(c, bi, level)
			return
		}
	}
	t.outside++
}

// split allocates the four children of id.
func (t *Tree) split(id NodeID) {
	first := NodeID(len(t.nodes))
	qs := t.nodes[id].Bounds.Quadrants()
	for i := range qs {
		t.nodes = append(t.nodes, emptyNode(qs[i]))
	}
	t.nodes[id].children = first
}

// ComputeAcceleration returns the acceleration on b due to every body in the
// tree except b itself. Identity is decided by b.Ref, not by position.
func (t *Tree) ComputeAcceleration(b Body, softening float64) r3.Vec {
	return t.acceleration(Root, &b, softening*softening)
}

func (t *Tree) acceleration(id NodeID, b *Body, eps2 float64) r3.Vec {
	n := &t.nodes[id]

	if n.Leaf {
		if n.body == noBody { return r3.Vec{} }
		other := &t.bodies[n.body]
		if other.Ref == b.Ref { return r3.Vec{} }
		return GravityAcceleration(
			r3.Sub(other.Position, b.Position), other.Mass, t.G, eps2,
		)
	}

	d := r3.Sub(n.MassCenter, b.Position)
	if theta := n.Bounds.Length / r3.Norm(d); theta < t.Theta {
		return GravityAcceleration(d, n.TotalMass, t.G, eps2)
	}

	acc := r3.Vec{}
	for i := 0; i < 4; i++ {
		acc = r3.Add(acc, t.acceleration(n.Child(i), b, eps2))
	}
	return acc
}

// GravityAcceleration returns the softened acceleration toward a point mass m
// displaced by d from the point being accelerated:
//
//	a = G m d / (|d|^2 + eps^2)^(3/2)
//
// eps2 is the square of the softening length.
func GravityAcceleration(d r3.Vec, m, G, eps2 float64) r3.Vec {
	r2 := r3.Norm2(d) + eps2
	if r2 == 0 { return r3.Vec{} }
	return r3.Scale(G*m/(r2*math.Sqrt(r2)), d)
}

// Node returns a copy of the node with the given ID.
func (t *Tree) Node(id NodeID) Node { return t.nodes[id] }

// Body returns the body held by the leaf id, if there is one.
func (t *Tree) Body(id NodeID) (Body, bool) {
	n := &t.nodes[id]
	if !n.HasBody() { return Body{}, false }
	return t.bodies[n.body], true
}

// Walk visits every node reachable from the root in depth-first order,
// children in quadrant order. If fn returns false the node's children are
// skipped.
func (t *Tree) Walk(fn func(id NodeID, n *Node, level int) bool) {
	t.walk(Root, 0, fn)
}

func (t *Tree) walk(id NodeID, level int, fn func(NodeID, *Node, int) bool) {
	n := &t.nodes[id]
	if !fn(id, n, level) || n.Leaf { return }
	for i := 0; i < 4; i++ {
		t.walk(n.Child(i), level + 1, fn)
	}
}

// Squares appends the bounds of every reachable node to buf and returns it.
func (t *Tree) Squares(buf []geom.Square) []geom.Square {
	t.Walk(func(_ NodeID, n *Node, _ int) bool {
		buf = append(buf, n.Bounds)
		return true
	})
	return buf
}

// Len returns the number of bodies inserted since the last Reset, including
// those which were dropped or ignored.
func (t *Tree) Len() int { return len(t.bodies) }

// Dropped returns the number of insertions dropped for exceeding MaxLevel
// since the last Reset.
func (t *Tree) Dropped() int { return t.dropped }

// Outside returns the number of insertions ignored since the last Reset
// because the body lay outside of the target node.
func (t *Tree) Outside() int { return t.outside }

// Allocated returns the number of nodes in the arena, reachable or not.
func (t *Tree) Allocated() int { return len(t.nodes) }
