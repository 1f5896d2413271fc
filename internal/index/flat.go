package index

import (
	"context"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"newsrec/internal/domain"
)

// parallelThreshold is the row count below which a scan stays on one goroutine.
const parallelThreshold = 4096

// cancelCheckRows is how often a scan polls its context.
const cancelCheckRows = 1024

// Flat is a brute-force index: every query computes the distance to every row.
type Flat struct {
	base
	workers int
}

// NewFlat builds a brute-force index over m. m must not be modified afterwards.
func NewFlat(m *mat.Dense, opts Options) *Flat {
	return &Flat{base: newBase(m, opts), workers: defaultWorkers(opts.Workers)}
}

// Name returns the identifier of this index implementation.
func (f *Flat) Name() string { return TypeFlat }

// Query returns the k rows nearest to row.
func (f *Flat) Query(ctx context.Context, row, k int) ([]domain.Neighbor, error) {
	q, skip, err := f.queryRow(row)
	if err != nil {
		return nil, err
	}
	return f.search(ctx, q, f.limit(k, skip), skip)
}

// QueryVector returns the k rows nearest to vector.
func (f *Flat) QueryVector(ctx context.Context, vector []float64, k int) ([]domain.Neighbor, error) {
	if err := f.checkVector(vector); err != nil {
		return nil, err
	}
	return f.search(ctx, vector, f.limit(k, -1), -1)
}

func (f *Flat) search(ctx context.Context, q []float64, k, skip int) ([]domain.Neighbor, error) {
	if k <= 0 {
		return []domain.Neighbor{}, nil
	}
	qnorm := floats.Norm(q, 2)
	if f.rows < parallelThreshold || f.workers < 2 {
		best, err := f.scan(ctx, q, qnorm, k, skip, 0, f.rows)
		if err != nil {
			return nil, err
		}
		return best.sorted(), nil
	}

	chunk := (f.rows + f.workers - 1) / f.workers
	partial := make([]*topK, 0, f.workers)
	for start := 0; start < f.rows; start += chunk {
		partial = append(partial, nil)
	}
	// the first cancelled chunk stops the others
	g, gctx := errgroup.WithContext(ctx)
	for w := range partial {
		start := w * chunk
		end := min(start+chunk, f.rows)
		g.Go(func() error {
			best, err := f.scan(gctx, q, qnorm, k, skip, start, end)
			partial[w] = best
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := newTopK(k)
	for _, p := range partial {
		for _, n := range p.items {
			merged.offer(n)
		}
	}
	return merged.sorted(), nil
}

func (f *Flat) scan(ctx context.Context, q []float64, qnorm float64, k, skip, start, end int) (*topK, error) {
	best := newTopK(k)
	for i := start; i < end; i++ {
		if (i-start)%cancelCheckRows == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if i == skip {
			continue
		}
		best.offer(domain.Neighbor{Row: i, Distance: f.distance(i, q, qnorm)})
	}
	return best, nil
}
