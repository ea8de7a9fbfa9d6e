package spatial

const (
	// DefaultCapacity is the number of items a node holds before it
	// subdivides.
	DefaultCapacity = 4

	// DefaultMaxDepth bounds subdivision regardless of item count.
	DefaultMaxDepth = 10
)

// Item is a stored box with its payload.
type Item struct {
	Box  AABB
	Data any
}

// Quadtree recursively partitions a rectangular domain into four
// quadrants. Each node exclusively owns its children; items stay at a
// node only when no single child fully contains them, so a box is
// stored exactly once.
type Quadtree struct {
	boundary AABB
	capacity int
	depth    int
	maxDepth int

	items   []Item
	divided bool
	nw      *Quadtree
	ne      *Quadtree
	sw      *Quadtree
	se      *Quadtree
}

// NewQuadtree returns a tree over the given boundary. A capacity or
// maxDepth of 0 selects the default.
func NewQuadtree(boundary AABB, capacity, maxDepth int) *Quadtree {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	return &Quadtree{
		boundary: boundary,
		capacity: capacity,
		maxDepth: maxDepth,
	}
}

func (q *Quadtree) child(boundary AABB) *Quadtree {
	return &Quadtree{
		boundary: boundary,
		capacity: q.capacity,
		depth:    q.depth + 1,
		maxDepth: q.maxDepth,
	}
}

// Boundary returns the domain covered by this node.
func (q *Quadtree) Boundary() AABB {
	return q.boundary
}

func (q *Quadtree) subdivide() {
	mx := (q.boundary.X0 + q.boundary.X1) / 2
	my := (q.boundary.Y0 + q.boundary.Y1) / 2

	q.nw = q.child(AABB{X0: q.boundary.X0, Y0: q.boundary.Y0, X1: mx, Y1: my})
	q.ne = q.child(AABB{X0: mx, Y0: q.boundary.Y0, X1: q.boundary.X1, Y1: my})
	q.sw = q.child(AABB{X0: q.boundary.X0, Y0: my, X1: mx, Y1: q.boundary.Y1})
	q.se = q.child(AABB{X0: mx, Y0: my, X1: q.boundary.X1, Y1: q.boundary.Y1})
	q.divided = true
}

// childFor returns the single child whose boundary fully contains the
// box, or nil when the box straddles more than one child.
func (q *Quadtree) childFor(box AABB) *Quadtree {
	if !q.divided {
		return nil
	}
	for _, c := range []*Quadtree{q.nw, q.ne, q.sw, q.se} {
		if c.boundary.Contains(box) {
			return c
		}
	}
	return nil
}

// maybeSplitAndPushDown subdivides an over-capacity node and pushes
// every item a single child fully contains into that child. Straddling
// items stay at this node so they are never lost or duplicated.
func (q *Quadtree) maybeSplitAndPushDown() {
	if q.divided || len(q.items) <= q.capacity || q.depth >= q.maxDepth {
		return
	}

	q.subdivide()

	kept := q.items[:0]
	for _, it := range q.items {
		if c := q.childFor(it.Box); c != nil {
			c.Insert(it.Box, it.Data)
		} else {
			kept = append(kept, it)
		}
	}
	q.items = kept
}

// Insert stores the box with its payload. It reports false when the box
// lies entirely outside the node's boundary.
func (q *Quadtree) Insert(box AABB, data any) bool {
	if !q.boundary.Intersects(box) && !q.boundary.Contains(box) {
		return false
	}

	if q.divided {
		if c := q.childFor(box); c != nil {
			return c.Insert(box, data)
		}
	}

	q.items = append(q.items, Item{Box: box, Data: data})
	q.maybeSplitAndPushDown()
	return true
}

// Query returns every stored item whose box intersects the range.
func (q *Quadtree) Query(rng AABB) []Item {
	return q.query(rng, nil)
}

func (q *Quadtree) query(rng AABB, found []Item) []Item {
	if !q.boundary.Intersects(rng) {
		return found
	}

	for _, it := range q.items {
		if it.Box.Intersects(rng) {
			found = append(found, it)
		}
	}

	if q.divided {
		found = q.nw.query(rng, found)
		found = q.ne.query(rng, found)
		found = q.sw.query(rng, found)
		found = q.se.query(rng, found)
	}
	return found
}

// QueryPoint returns every stored item whose box contains the point.
func (q *Quadtree) QueryPoint(x, y float64) []Item {
	return q.queryPoint(x, y, nil)
}

func (q *Quadtree) queryPoint(x, y float64, found []Item) []Item {
	if !q.boundary.ContainsPoint(x, y) {
		return found
	}

	for _, it := range q.items {
		if it.Box.ContainsPoint(x, y) {
			found = append(found, it)
		}
	}

	if q.divided {
		found = q.nw.queryPoint(x, y, found)
		found = q.ne.queryPoint(x, y, found)
		found = q.sw.queryPoint(x, y, found)
		found = q.se.queryPoint(x, y, found)
	}
	return found
}

// Len returns the number of items stored in the subtree.
func (q *Quadtree) Len() int {
	n := len(q.items)
	if q.divided {
		n += q.nw.Len() + q.ne.Len() + q.sw.Len() + q.se.Len()
	}
	return n
}
