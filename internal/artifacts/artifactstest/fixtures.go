// Package artifactstest writes small metadata and .npy fixtures for tests.
package artifactstest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

// Corpus describes a generated fixture on disk.
type Corpus struct {
	MetaPath       string
	EmbeddingsPath string
	Articles       []map[string]any
	Vectors        [][]float64
}

// WriteCorpus writes n articles with dim-dimensional float64 embeddings to dir.
// Vectors are deterministic and pairwise distinct in direction.
func WriteCorpus(t testing.TB, dir string, n, dim int) Corpus {
	t.Helper()
	articles := make([]map[string]any, n)
	vectors := make([][]float64, n)
	for i := 0; i < n; i++ {
		articles[i] = map[string]any{
			"title":   fmt.Sprintf("Article %d", i),
			"url":     fmt.Sprintf("https://news.example.com/a/%d", i),
			"source":  "wire",
			"summary": fmt.Sprintf("Summary of story number %d", i),
			"rank":    i,
		}
		v := make([]float64, dim)
		for j := range v {
			v[j] = math.Sin(float64(i*dim+j)+0.5) + float64((i+j)%3)
		}
		vectors[i] = v
	}
	meta := filepath.Join(dir, "articles_meta.jsonl")
	emb := filepath.Join(dir, "article_embeddings.npy")
	WriteJSONL(t, meta, articles)
	WriteNPY(t, emb, vectors)
	return Corpus{MetaPath: meta, EmbeddingsPath: emb, Articles: articles, Vectors: vectors}
}

// WriteJSONL writes one JSON object per line.
func WriteJSONL(t testing.TB, path string, records []map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	for _, r := range records {
		line, err := json.Marshal(r)
		if err != nil {
			t.Fatalf("marshal fixture: %v", err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteNPY writes rows as a C-order little-endian float64 .npy file.
func WriteNPY(t testing.TB, path string, rows [][]float64) {
	t.Helper()
	cols := 0
	if len(rows) > 0 {
		cols = len(rows[0])
	}
	var data bytes.Buffer
	for _, r := range rows {
		for _, v := range r {
			_ = binary.Write(&data, binary.LittleEndian, v)
		}
	}
	WriteRawNPY(t, path, "<f8", false, []int{len(rows), cols}, data.Bytes())
}

// WriteRawNPY writes a version 1.0 .npy file with the given header fields and payload.
func WriteRawNPY(t testing.TB, path, descr string, fortran bool, shape []int, payload []byte) {
	t.Helper()
	dims := make([]string, len(shape))
	for i, d := range shape {
		dims[i] = fmt.Sprint(d)
	}
	shapeStr := "(" + strings.Join(dims, ", ")
	if len(shape) == 1 {
		shapeStr += ","
	}
	shapeStr += ")"
	order := "False"
	if fortran {
		order = "True"
	}
	header := fmt.Sprintf("{'descr': '%s', 'fortran_order': %s, 'shape': %s, }", descr, order, shapeStr)
	// magic(6) + version(2) + header length(2) + header must be a multiple of 64
	total := 10 + len(header) + 1
	if pad := total % 64; pad != 0 {
		header += strings.Repeat(" ", 64-pad)
	}
	header += "\n"

	var buf bytes.Buffer
	buf.WriteString("\x93NUMPY")
	buf.Write([]byte{1, 0})
	_ = binary.Write(&buf, binary.LittleEndian, uint16(len(header)))
	buf.WriteString(header)
	buf.Write(payload)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
