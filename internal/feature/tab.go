package feature

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// TabWriter writes a feature matrix in tab-delimited format. The header is
// "region" followed by the column labels; each row starts with the region name.
type TabWriter struct {
	w *bufio.Writer
}

// NewTabWriter creates a new tab-delimited writer.
func NewTabWriter(w io.Writer) *TabWriter {
	return &TabWriter{w: bufio.NewWriter(w)}
}

// Write writes the header and every row of m.
func (tw *TabWriter) Write(m *Matrix) error {
	header := append([]string{"region"}, m.ColNames()...)
	if _, err := tw.w.WriteString(strings.Join(header, "\t") + "\n"); err != nil {
		return err
	}

	_, cols := m.Dims()
	values := make([]string, cols+1)
	for i, name := range m.RowNames() {
		values[0] = name
		for j := 0; j < cols; j++ {
			values[j+1] = strconv.FormatFloat(m.At(i, j), 'g', -1, 64)
		}
		if _, err := tw.w.WriteString(strings.Join(values, "\t") + "\n"); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes any buffered data to the underlying writer.
func (tw *TabWriter) Flush() error {
	return tw.w.Flush()
}

// ReadTab parses a matrix written by TabWriter.
func ReadTab(r io.Reader) (*Matrix, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1<<16), 1<<26)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read header: %w", err)
		}
		return nil, fmt.Errorf("feature table: empty input")
	}
	header := strings.Split(strings.TrimRight(scanner.Text(), "\r"), "\t")
	cols := header[1:]

	var (
		rows []string
		data [][]float64
	)
	lineNumber := 1
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != len(header) {
			return nil, fmt.Errorf("feature table line %d: expected %d columns, found %d", lineNumber, len(header), len(fields))
		}
		row := make([]float64, len(cols))
		for j, f := range fields[1:] {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("feature table line %d: invalid score %q", lineNumber, f)
			}
			row[j] = v
		}
		rows = append(rows, fields[0])
		data = append(data, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read feature table: %w", err)
	}

	m := NewMatrix(rows, cols)
	for i, row := range data {
		for j, v := range row {
			m.data.Set(i, j, v)
		}
	}
	return m, nil
}
