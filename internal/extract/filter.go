package extract

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
)

// NameMatcher selects the lines of a merged BED file that belong to one
// named subset. Matching is by exact token, never by substring or pattern.
type NameMatcher struct {
	// Field is the 0-based tab-separated column holding the name tokens.
	// A negative value searches every column.
	Field int
	// Key, when set, requires tokens of the form Key=name (e.g. "ID=SRX502813").
	Key string
	// Sep splits a column into tokens. Empty means the whole column is one token.
	Sep string
}

// DefaultMatcher matches the BED name column as a single token.
var DefaultMatcher = NameMatcher{Field: 3}

// ChIPAtlasMatcher matches the ID=<experiment> token of ChIP-Atlas merged files.
var ChIPAtlasMatcher = NameMatcher{Field: 3, Key: "ID", Sep: ";"}

// Match reports whether line belongs to name.
func (m NameMatcher) Match(line []byte, name string) bool {
	want := []byte(name)
	if m.Key != "" {
		want = []byte(m.Key + "=" + name)
	}

	for col := 0; ; col++ {
		field, rest, found := bytes.Cut(line, []byte{'\t'})
		if m.Field < 0 || col == m.Field {
			if m.matchField(field, want) {
				return true
			}
			if m.Field >= 0 {
				return false
			}
		}
		if !found {
			return false
		}
		line = rest
	}
}

func (m NameMatcher) matchField(field, want []byte) bool {
	if m.Sep == "" {
		return bytes.Equal(field, want)
	}
	sep := []byte(m.Sep)
	for {
		tok, rest, found := bytes.Cut(field, sep)
		if bytes.Equal(bytes.TrimSpace(tok), want) {
			return true
		}
		if !found {
			return false
		}
		field = rest
	}
}

// Filter copies the lines of r that match name to w and returns how many
// lines were written.
func (m NameMatcher) Filter(r io.Reader, name string, w io.Writer) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1<<16), 1<<24)
	bw := bufio.NewWriter(w)

	n := 0
	for scanner.Scan() {
		line := bytes.TrimRight(scanner.Bytes(), "\r")
		if !m.Match(line, name) {
			continue
		}
		if _, err := bw.Write(line); err != nil {
			return n, fmt.Errorf("write subset line: %w", err)
		}
		if err := bw.WriteByte('\n'); err != nil {
			return n, fmt.Errorf("write subset line: %w", err)
		}
		n++
	}
	if err := scanner.Err(); err != nil {
		return n, fmt.Errorf("scan merged file: %w", err)
	}
	return n, bw.Flush()
}
