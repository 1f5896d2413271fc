// Package artifacts reads the precomputed article metadata and embedding matrix.
package artifacts

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/goccy/go-json"
	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"newsrec/internal/domain"
)

// ErrLoad is wrapped by every loader failure.
var ErrLoad = errors.New("artifact load failed")

// Corpus is the loaded article sequence with its aligned embedding matrix.
// Row i of Embeddings belongs to Articles[i].
type Corpus struct {
	Articles   []domain.Article
	Embeddings *mat.Dense
}

// Load reads both artifacts and checks that they describe the same number of articles.
func Load(metaPath, embeddingsPath string) (*Corpus, error) {
	articles, err := LoadArticles(metaPath)
	if err != nil {
		return nil, err
	}
	emb, err := LoadEmbeddings(embeddingsPath)
	if err != nil {
		return nil, err
	}
	if rows, _ := emb.Dims(); rows != len(articles) {
		return nil, fmt.Errorf("%w: %s has %d rows but %s has %d articles",
			ErrLoad, embeddingsPath, rows, metaPath, len(articles))
	}
	return &Corpus{Articles: articles, Embeddings: emb}, nil
}

// LoadArticles reads a newline-delimited JSON file of article objects.
func LoadArticles(path string) ([]domain.Article, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}
	defer f.Close()
	articles, err := ReadArticles(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return articles, nil
}

// ReadArticles decodes one JSON object per line, skipping blank lines.
// The original bytes of each object are kept in Article.Raw.
func ReadArticles(r io.Reader) ([]domain.Article, error) {
	br := bufio.NewReader(r)
	var articles []domain.Article
	for lineNo := 1; ; lineNo++ {
		line, err := br.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: line %d: %v", ErrLoad, lineNo, err)
		}
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			a, perr := parseArticle(trimmed)
			if perr != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrLoad, lineNo, perr)
			}
			articles = append(articles, a)
		}
		if errors.Is(err, io.EOF) {
			break
		}
	}
	return articles, nil
}

func parseArticle(line []byte) (domain.Article, error) {
	if line[0] != '{' || !json.Valid(line) {
		return domain.Article{}, errors.New("not a JSON object")
	}
	var head struct {
		Title string `json:"title"`
		URL   string `json:"url"`
	}
	if err := json.Unmarshal(line, &head); err != nil {
		return domain.Article{}, err
	}
	return domain.Article{Title: head.Title, URL: head.URL, Raw: json.RawMessage(line)}, nil
}

// LoadEmbeddings reads a 2-D float32 or float64 .npy file.
func LoadEmbeddings(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}
	defer f.Close()
	m, err := ReadEmbeddings(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// ReadEmbeddings decodes an .npy stream into a row-major dense matrix.
func ReadEmbeddings(r io.Reader) (*mat.Dense, error) {
	npy, err := npyio.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: npy header: %v", ErrLoad, err)
	}
	shape := npy.Header.Descr.Shape
	if len(shape) != 2 {
		return nil, fmt.Errorf("%w: expected a 2-D matrix, got shape %v", ErrLoad, shape)
	}
	rows, cols := shape[0], shape[1]
	if rows == 0 || cols == 0 {
		return nil, fmt.Errorf("%w: empty matrix with shape %v", ErrLoad, shape)
	}

	var data []float64
	switch npy.Header.Descr.Type {
	case "<f8":
		data = make([]float64, rows*cols)
		if err := npy.Read(&data); err != nil {
			return nil, fmt.Errorf("%w: npy data: %v", ErrLoad, err)
		}
	case "<f4":
		raw := make([]float32, rows*cols)
		if err := npy.Read(&raw); err != nil {
			return nil, fmt.Errorf("%w: npy data: %v", ErrLoad, err)
		}
		data = make([]float64, len(raw))
		for i, v := range raw {
			data[i] = float64(v)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported dtype %q", ErrLoad, npy.Header.Descr.Type)
	}
	if len(data) != rows*cols {
		return nil, fmt.Errorf("%w: expected %d values, read %d", ErrLoad, rows*cols, len(data))
	}

	out := mat.NewDense(rows, cols, data)
	if npy.Header.Descr.Fortran {
		// column-major on disk: read as the transpose and flip it back
		colMajor := mat.NewDense(cols, rows, data)
		out = mat.NewDense(rows, cols, nil)
		out.Copy(colMajor.T())
	}
	if err := checkFinite(out); err != nil {
		return nil, err
	}
	return out, nil
}

// checkFinite rejects NaN and ±Inf, which have no cosine distance.
func checkFinite(m *mat.Dense) error {
	rows, _ := m.Dims()
	for r := 0; r < rows; r++ {
		row := m.RawRowView(r)
		if floats.HasNaN(row) {
			return fmt.Errorf("%w: non-finite value at row %d", ErrLoad, r)
		}
		for _, v := range row {
			if math.IsInf(v, 0) {
				return fmt.Errorf("%w: non-finite value at row %d", ErrLoad, r)
			}
		}
	}
	return nil
}
