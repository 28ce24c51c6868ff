package feature

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kshedden/gonpy"
)

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// WriteNPY writes the scores of m as a row-major float64 NumPy array of shape
// [rows, cols]. Labels are not part of the array; see SaveNPY.
func WriteNPY(w io.Writer, m *Matrix) error {
	bufw := bufio.NewWriter(w)
	npw, err := gonpy.NewWriter(nopCloser{bufw})
	if err != nil {
		return fmt.Errorf("create npy writer: %w", err)
	}
	r, c := m.Dims()
	npw.Shape = []int{r, c}
	if err := npw.WriteFloat64(m.RowMajor()); err != nil {
		return fmt.Errorf("write npy: %w", err)
	}
	return bufw.Flush()
}

// ReadNPY reads an array written by WriteNPY and attaches the given labels.
func ReadNPY(r io.Reader, rows, cols []string) (*Matrix, error) {
	npr, err := gonpy.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("open npy: %w", err)
	}
	if len(npr.Shape) != 2 || npr.Shape[0] != len(rows) || npr.Shape[1] != len(cols) {
		return nil, fmt.Errorf("npy shape %v does not match %d rows x %d cols", npr.Shape, len(rows), len(cols))
	}
	data, err := npr.GetFloat64()
	if err != nil {
		return nil, fmt.Errorf("read npy: %w", err)
	}

	m := NewMatrix(rows, cols)
	for i := range rows {
		for j := range cols {
			var v float64
			if npr.ColumnMajor {
				v = data[j*len(rows)+i]
			} else {
				v = data[i*len(cols)+j]
			}
			m.data.Set(i, j, v)
		}
	}
	return m, nil
}

// SaveNPY writes {prefix}.npy plus {prefix}.rows.txt and {prefix}.cols.txt
// holding one label per line.
func SaveNPY(prefix string, m *Matrix) error {
	f, err := os.Create(prefix + ".npy")
	if err != nil {
		return fmt.Errorf("create npy file: %w", err)
	}
	if err := WriteNPY(f, m); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close npy file: %w", err)
	}

	if err := writeLabels(prefix+".rows.txt", m.RowNames()); err != nil {
		return err
	}
	return writeLabels(prefix+".cols.txt", m.ColNames())
}

func writeLabels(path string, labels []string) error {
	var b strings.Builder
	for _, l := range labels {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("write labels: %w", err)
	}
	return nil
}
