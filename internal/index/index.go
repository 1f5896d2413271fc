// Package index answers cosine nearest-neighbor queries over a fixed embedding matrix.
//
// Distances are 1 - a·b/(|a||b|). A zero-norm vector has similarity 0 with everything,
// so its distance to any vector is 1. Results are ordered by ascending distance with
// ties broken by ascending row.
package index

import (
	"errors"
	"fmt"
	"math"
	"runtime"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"newsrec/internal/domain"
)

var (
	ErrRowOutOfRange     = errors.New("row out of range")
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrUnknownType       = errors.New("unknown index type")
)

const (
	TypeFlat     = "flat"
	TypeBallTree = "balltree"
)

// Options tunes index construction. The zero value is valid.
type Options struct {
	// ExcludeSelf drops the query row from Query results.
	ExcludeSelf bool
	// Workers bounds the goroutines used by the flat scan; 0 means GOMAXPROCS.
	Workers int
	// LeafSize is the maximum number of points in a ball-tree leaf; 0 means 40.
	LeafSize int
}

// New builds the index implementation named by kind.
func New(kind string, m *mat.Dense, opts Options) (domain.Index, error) {
	switch kind {
	case TypeFlat, "":
		return NewFlat(m, opts), nil
	case TypeBallTree:
		return NewBallTree(m, opts), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, kind)
	}
}

// base holds the matrix and per-row norms shared by all implementations.
type base struct {
	data        *mat.Dense
	rows, dim   int
	norms       []float64
	excludeSelf bool
}

func newBase(m *mat.Dense, opts Options) base {
	rows, dim := m.Dims()
	norms := make([]float64, rows)
	for i := 0; i < rows; i++ {
		norms[i] = floats.Norm(m.RawRowView(i), 2)
	}
	return base{data: m, rows: rows, dim: dim, norms: norms, excludeSelf: opts.ExcludeSelf}
}

func (b *base) Len() int       { return b.rows }
func (b *base) Dimension() int { return b.dim }

// distance computes the cosine distance between row and q, clamped to [0, 2].
func (b *base) distance(row int, q []float64, qnorm float64) float64 {
	n := b.norms[row]
	if n == 0 || qnorm == 0 {
		return 1
	}
	d := 1 - floats.Dot(b.data.RawRowView(row), q)/(n*qnorm)
	switch {
	case d < 0:
		return 0
	case d > 2:
		return 2
	}
	return d
}

// queryRow validates row and returns its vector and the row to skip (-1 for none).
func (b *base) queryRow(row int) ([]float64, int, error) {
	if row < 0 || row >= b.rows {
		return nil, -1, fmt.Errorf("%w: %d not in [0,%d)", ErrRowOutOfRange, row, b.rows)
	}
	skip := -1
	if b.excludeSelf {
		skip = row
	}
	return b.data.RawRowView(row), skip, nil
}

func (b *base) checkVector(v []float64) error {
	if len(v) != b.dim {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(v), b.dim)
	}
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("%w: non-finite component", ErrDimensionMismatch)
		}
	}
	return nil
}

// limit returns how many results a query for k neighbors yields.
func (b *base) limit(k, skip int) int {
	avail := b.rows
	if skip >= 0 {
		avail--
	}
	if k > avail {
		return avail
	}
	return k
}

func defaultWorkers(n int) int {
	if n > 0 {
		return n
	}
	return runtime.GOMAXPROCS(0)
}
