package genome

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// BEDReader reads regions from a BED file.
type BEDReader struct {
	reader     *bufio.Reader
	closer     io.Closer
	path       string
	lineNumber int
}

// OpenBED opens a BED file for reading. Both plain and gzipped files are
// supported.
func OpenBED(path string) (*BEDReader, error) {
	rc, err := Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bed file: %w", err)
	}
	return &BEDReader{reader: bufio.NewReaderSize(rc, 1<<16), closer: rc, path: path}, nil
}

// NewBEDReader creates a reader over uncompressed BED content.
func NewBEDReader(r io.Reader) *BEDReader {
	return &BEDReader{reader: bufio.NewReaderSize(r, 1<<16)}
}

// Next reads the next region. Returns nil, nil when there are no more regions.
// Blank lines and header lines (#, track, browser) are skipped.
func (br *BEDReader) Next() (*Region, error) {
	for {
		line, err := br.reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("read bed line: %w", err)
		}
		if err == io.EOF && line == "" {
			return nil, nil
		}
		br.lineNumber++

		line = strings.TrimRight(line, "\r\n")
		if isBEDHeader(line) {
			if err == io.EOF {
				return nil, nil
			}
			continue
		}
		return br.parseLine(line)
	}
}

func isBEDHeader(line string) bool {
	return strings.TrimSpace(line) == "" ||
		strings.HasPrefix(line, "#") ||
		strings.HasPrefix(line, "track") ||
		strings.HasPrefix(line, "browser")
}

// parseLine parses chrom, start, end and the optional name column.
func (br *BEDReader) parseLine(line string) (*Region, error) {
	var fields []string
	if strings.Contains(line, "\t") {
		fields = strings.SplitN(line, "\t", 5)
	} else {
		fields = strings.Fields(line)
	}
	if len(fields) < 3 {
		return nil, br.errorf("expected at least 3 columns, found %d", len(fields))
	}

	start, err := strconv.ParseInt(strings.TrimSpace(fields[1]), 10, 64)
	if err != nil {
		return nil, br.errorf("invalid start: %s", fields[1])
	}
	end, err := strconv.ParseInt(strings.TrimSpace(fields[2]), 10, 64)
	if err != nil {
		return nil, br.errorf("invalid end: %s", fields[2])
	}
	if start < 0 {
		return nil, br.errorf("negative start: %d", start)
	}
	if end < start {
		return nil, br.errorf("end %d before start %d", end, start)
	}

	r := &Region{Chrom: fields[0], Start: start, End: end}
	if len(fields) > 3 {
		r.Name = fields[3]
	}
	return r, nil
}

func (br *BEDReader) errorf(format string, args ...any) error {
	return &ParseError{Path: br.path, Line: br.lineNumber, Message: fmt.Sprintf(format, args...)}
}

// LineNumber returns the current line number being processed.
func (br *BEDReader) LineNumber() int {
	return br.lineNumber
}

// Close closes the reader and underlying file.
func (br *BEDReader) Close() error {
	if br.closer != nil {
		return br.closer.Close()
	}
	return nil
}

// ReadAll reads every remaining region.
func (br *BEDReader) ReadAll() ([]Region, error) {
	var regions []Region
	for {
		r, err := br.Next()
		if err != nil {
			return nil, err
		}
		if r == nil {
			return regions, nil
		}
		regions = append(regions, *r)
	}
}

// ReadBEDFile reads a BED file into a sorted region set on genome g.
func ReadBEDFile(path string, g *Genome) (*RegionSet, error) {
	br, err := OpenBED(path)
	if err != nil {
		return nil, err
	}
	defer br.Close()

	regions, err := br.ReadAll()
	if err != nil {
		return nil, err
	}
	return NewRegionSet(regions, g)
}

// ParseError represents an error during BED or genome file parsing with line context.
type ParseError struct {
	Path    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("parse error in %s at line %d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("parse error at line %d: %s", e.Line, e.Message)
}
