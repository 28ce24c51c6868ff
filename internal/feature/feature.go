// Package feature holds feature vectors and the feature matrix assembled
// from many inputs, along with their on-disk formats.
package feature

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Vector holds one score per reference region, in reference order.
type Vector []float64

// Zeros returns a zero vector of length n.
func Zeros(n int) Vector {
	return make(Vector, n)
}

// IsZero reports whether every element is zero.
func (v Vector) IsZero() bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// Series is a vector labelled with reference region names.
type Series struct {
	Index  []string
	Values Vector
}

// Matrix is a feature table: rows are reference regions, columns are inputs.
// Column j always corresponds to the j-th input of the batch.
type Matrix struct {
	rows []string
	cols []string
	data *mat.Dense // nil when the matrix has no rows or no columns
}

// NewMatrix creates a zero matrix with the given row and column labels.
func NewMatrix(rows, cols []string) *Matrix {
	m := &Matrix{rows: rows, cols: cols}
	if len(rows) > 0 && len(cols) > 0 {
		m.data = mat.NewDense(len(rows), len(cols), nil)
	}
	return m
}

// FromColumns builds a matrix from per-input vectors.
func FromColumns(rows, cols []string, columns []Vector) (*Matrix, error) {
	if len(cols) != len(columns) {
		return nil, fmt.Errorf("feature matrix: %d column labels for %d columns", len(cols), len(columns))
	}
	m := NewMatrix(rows, cols)
	for j, v := range columns {
		if err := m.SetColumn(j, v); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Dims returns the number of rows and columns.
func (m *Matrix) Dims() (r, c int) {
	return len(m.rows), len(m.cols)
}

// RowNames returns the reference region labels.
func (m *Matrix) RowNames() []string {
	return m.rows
}

// ColNames returns the input labels.
func (m *Matrix) ColNames() []string {
	return m.cols
}

// SetColumn stores v as column j.
func (m *Matrix) SetColumn(j int, v Vector) error {
	if j < 0 || j >= len(m.cols) {
		return fmt.Errorf("feature matrix: column %d out of range [0, %d)", j, len(m.cols))
	}
	if len(v) != len(m.rows) {
		return fmt.Errorf("feature matrix: column %q has %d values, want %d", m.cols[j], len(v), len(m.rows))
	}
	if m.data != nil {
		m.data.SetCol(j, v)
	}
	return nil
}

// Column returns a copy of column j.
func (m *Matrix) Column(j int) Vector {
	v := make(Vector, len(m.rows))
	if m.data != nil {
		mat.Col(v, j, m.data)
	}
	return v
}

// At returns the score of row i in column j.
func (m *Matrix) At(i, j int) float64 {
	if m.data == nil {
		panic(fmt.Sprintf("feature matrix: index (%d, %d) out of range", i, j))
	}
	return m.data.At(i, j)
}

// Dense returns the backing matrix, or nil for an empty matrix.
func (m *Matrix) Dense() *mat.Dense {
	return m.data
}

// RowMajor returns the scores as a row-major slice.
func (m *Matrix) RowMajor() []float64 {
	r, c := m.Dims()
	out := make([]float64, 0, r*c)
	for i := 0; i < r && m.data != nil; i++ {
		out = append(out, m.data.RawRowView(i)...)
	}
	return out
}
