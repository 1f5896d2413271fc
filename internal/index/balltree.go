package index

import (
	"context"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"newsrec/internal/domain"
)

const defaultLeafSize = 40

// pruneSlack keeps nodes whose bound is within rounding error of the current worst,
// so equal-distance rows are still reached and tie order matches Flat.
const pruneSlack = 1e-12

// BallTree is an exact index over unit-normalized rows. On the unit sphere
// |u-v|² = 2·(1-cos), so Euclidean ball bounds give cosine-distance bounds.
// Leaf distances use the same cosine formula as Flat.
type BallTree struct {
	base
	unit     [][]float64
	perm     []int
	nodes    []ballNode
	zeroRows []int
	leafSize int
}

type ballNode struct {
	center      []float64
	radius      float64
	start, end  int // range in perm
	left, right int // child node ids, -1 for leaves
}

// NewBallTree builds a ball tree over m. m must not be modified afterwards.
func NewBallTree(m *mat.Dense, opts Options) *BallTree {
	t := &BallTree{base: newBase(m, opts), leafSize: opts.LeafSize}
	if t.leafSize <= 0 {
		t.leafSize = defaultLeafSize
	}
	t.unit = make([][]float64, t.rows)
	t.perm = make([]int, 0, t.rows)
	for i := 0; i < t.rows; i++ {
		if t.norms[i] == 0 {
			// zero rows sit at distance 1 from everything and are scanned separately
			t.zeroRows = append(t.zeroRows, i)
			continue
		}
		u := make([]float64, t.dim)
		floats.ScaleTo(u, 1/t.norms[i], m.RawRowView(i))
		t.unit[i] = u
		t.perm = append(t.perm, i)
	}
	if len(t.perm) > 0 {
		t.build(0, len(t.perm))
	}
	return t
}

// Name returns the identifier of this index implementation.
func (t *BallTree) Name() string { return TypeBallTree }

func (t *BallTree) build(start, end int) int {
	id := len(t.nodes)
	center := make([]float64, t.dim)
	for _, p := range t.perm[start:end] {
		floats.Add(center, t.unit[p])
	}
	floats.Scale(1/float64(end-start), center)
	radius := 0.0
	for _, p := range t.perm[start:end] {
		radius = math.Max(radius, floats.Distance(center, t.unit[p], 2))
	}
	t.nodes = append(t.nodes, ballNode{center: center, radius: radius, start: start, end: end, left: -1, right: -1})

	if end-start <= t.leafSize {
		return id
	}
	axis := t.widestAxis(start, end)
	seg := t.perm[start:end]
	sort.Slice(seg, func(i, j int) bool {
		a, b := t.unit[seg[i]][axis], t.unit[seg[j]][axis]
		if a != b {
			return a < b
		}
		return seg[i] < seg[j]
	})
	mid := start + (end-start)/2
	left := t.build(start, mid)
	right := t.build(mid, end)
	t.nodes[id].left, t.nodes[id].right = left, right
	return id
}

func (t *BallTree) widestAxis(start, end int) int {
	best, spread := 0, -1.0
	for d := 0; d < t.dim; d++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, p := range t.perm[start:end] {
			v := t.unit[p][d]
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		if hi-lo > spread {
			best, spread = d, hi-lo
		}
	}
	return best
}

// Query returns the k rows nearest to row.
// The tree walk is short, so ctx is only checked before it starts.
func (t *BallTree) Query(ctx context.Context, row, k int) ([]domain.Neighbor, error) {
	q, skip, err := t.queryRow(row)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.search(q, t.limit(k, skip), skip), nil
}

// QueryVector returns the k rows nearest to vector.
func (t *BallTree) QueryVector(ctx context.Context, vector []float64, k int) ([]domain.Neighbor, error) {
	if err := t.checkVector(vector); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.search(vector, t.limit(k, -1), -1), nil
}

func (t *BallTree) search(q []float64, k, skip int) []domain.Neighbor {
	if k <= 0 {
		return []domain.Neighbor{}
	}
	best := newTopK(k)
	qnorm := floats.Norm(q, 2)
	if qnorm == 0 {
		// every distance is 1; nearest are simply the lowest rows
		for i := 0; i < t.rows && !best.full(); i++ {
			if i != skip {
				best.offer(domain.Neighbor{Row: i, Distance: 1})
			}
		}
		return best.sorted()
	}
	for _, z := range t.zeroRows {
		if z != skip {
			best.offer(domain.Neighbor{Row: z, Distance: 1})
		}
	}
	if len(t.nodes) > 0 {
		u := make([]float64, t.dim)
		floats.ScaleTo(u, 1/qnorm, q)
		t.visit(0, u, q, qnorm, skip, best)
	}
	return best.sorted()
}

func (t *BallTree) visit(id int, u, q []float64, qnorm float64, skip int, best *topK) {
	n := &t.nodes[id]
	if best.full() && lowerBound(n, u) > best.worst().Distance+pruneSlack {
		return
	}
	if n.left < 0 {
		for _, p := range t.perm[n.start:n.end] {
			if p != skip {
				best.offer(domain.Neighbor{Row: p, Distance: t.distance(p, q, qnorm)})
			}
		}
		return
	}
	first, second := n.left, n.right
	if floats.Distance(u, t.nodes[second].center, 2) < floats.Distance(u, t.nodes[first].center, 2) {
		first, second = second, first
	}
	t.visit(first, u, q, qnorm, skip, best)
	t.visit(second, u, q, qnorm, skip, best)
}

// lowerBound is the smallest cosine distance any point inside n can have from unit vector u.
func lowerBound(n *ballNode, u []float64) float64 {
	d := floats.Distance(u, n.center, 2) - n.radius
	if d <= 0 {
		return 0
	}
	return d * d / 2
}
