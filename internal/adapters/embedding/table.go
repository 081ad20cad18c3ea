package embedding

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"

	"github.com/okian/bookrec/internal/domain/model"
)

// weightsFile is the on-disk layout of the embedding table.
type weightsFile struct {
	Dim     int         `json:"dim"`
	Vectors [][]float32 `json:"vectors"`
}

// Table is a pretrained token embedding table. Row i holds the vector of
// token index i. The encoding of a sequence is the mean of the rows of its
// non-padding tokens.
type Table struct {
	dim  int
	rows [][]float32
}

// NewTable validates rows and builds a table.
func NewTable(dim int, rows [][]float32) (*Table, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", ErrLoadModel, dim)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%w: table needs a padding row and at least one token", ErrLoadModel)
	}
	for i, r := range rows {
		if len(r) != dim {
			return nil, fmt.Errorf("%w: row %d has width %d, want %d", ErrLoadModel, i, len(r), dim)
		}
	}
	return &Table{dim: dim, rows: rows}, nil
}

// LoadTable reads {"dim": D, "vectors": [[...], ...]} from path.
func LoadTable(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read weights: %w", ErrLoadModel, err)
	}
	var wf weightsFile
	if err := json.Unmarshal(raw, &wf); err != nil {
		return nil, fmt.Errorf("%w: decode weights: %w", ErrLoadModel, err)
	}
	return NewTable(wf.Dim, wf.Vectors)
}

// Dimensions returns the output width.
func (t *Table) Dimensions() int { return t.dim }

// Rows returns the number of token rows including padding.
func (t *Table) Rows() int { return len(t.rows) }

// Encode mean-pools the rows of the non-padding tokens of seq.
// An all-padding sequence encodes to the zero vector.
func (t *Table) Encode(seq []int) model.Embedding {
	sum := make([]float64, t.dim)
	n := 0
	for _, idx := range seq {
		if idx == Padding || idx < 0 || idx >= len(t.rows) {
			continue
		}
		for i, v := range t.rows[idx] {
			sum[i] += float64(v)
		}
		n++
	}
	out := make(model.Embedding, t.dim)
	if n == 0 {
		return out
	}
	for i, s := range sum {
		out[i] = float32(s / float64(n))
	}
	return out
}
