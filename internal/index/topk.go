package index

import (
	"container/heap"
	"sort"

	"newsrec/internal/domain"
)

// less orders neighbors by distance, then row.
func less(a, b domain.Neighbor) bool {
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	return a.Row < b.Row
}

// topK keeps the k best neighbors seen so far in a max-heap whose root is the worst kept.
type topK struct {
	k     int
	items []domain.Neighbor
}

func newTopK(k int) *topK {
	return &topK{k: k, items: make([]domain.Neighbor, 0, k)}
}

func (t *topK) Len() int           { return len(t.items) }
func (t *topK) Less(i, j int) bool { return less(t.items[j], t.items[i]) }
func (t *topK) Swap(i, j int)      { t.items[i], t.items[j] = t.items[j], t.items[i] }
func (t *topK) Push(x any)         { t.items = append(t.items, x.(domain.Neighbor)) }
func (t *topK) Pop() any {
	n := len(t.items)
	x := t.items[n-1]
	t.items = t.items[:n-1]
	return x
}

func (t *topK) full() bool { return len(t.items) >= t.k }

// worst is the distance a candidate must beat once the collector is full.
func (t *topK) worst() domain.Neighbor { return t.items[0] }

func (t *topK) offer(n domain.Neighbor) {
	if t.k <= 0 {
		return
	}
	if !t.full() {
		heap.Push(t, n)
		return
	}
	if less(n, t.items[0]) {
		t.items[0] = n
		heap.Fix(t, 0)
	}
}

// sorted returns the kept neighbors nearest first. The collector must not be reused.
func (t *topK) sorted() []domain.Neighbor {
	out := t.items
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}
