// Package hits provides parsing of Diamond/BLAST tabular search output.
package hits

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Default 1-based column positions in Diamond/BLAST tabular output extended
// with a subject taxid column (e.g. -outfmt "6 std staxids").
const (
	ColQuery    = 1
	ColSubject  = 2
	ColEvalue   = 11
	ColBitscore = 12
	ColTaxon    = 13
)

// Delimiter selects how hit lines are split into columns.
type Delimiter int

const (
	// DelimWhitespace splits on any run of whitespace.
	DelimWhitespace Delimiter = iota
	// DelimTab splits on single tab characters.
	DelimTab
)

// Columns holds the 1-based positions of the fields the scan needs.
type Columns struct {
	Evalue   int
	Bitscore int
	Taxon    int
}

// DefaultColumns returns the standard Diamond "6 std staxids" layout.
func DefaultColumns() Columns {
	return Columns{Evalue: ColEvalue, Bitscore: ColBitscore, Taxon: ColTaxon}
}

// Hit is one row of similarity-search output. TaxonRaw is kept as the
// unparsed token: taxid validation happens downstream so malformed values
// can be reported per hit rather than aborting the parse.
type Hit struct {
	QueryID   string
	SubjectID string
	Evalue    float64
	Bitscore  float64
	TaxonRaw  string
	Line      int
}

// Parser reads hits from a Diamond/BLAST tabular file.
type Parser struct {
	reader     *bufio.Reader
	file       *os.File
	gzipReader *gzip.Reader
	lineNumber int
	columns    Columns
	delimiter  Delimiter
}

// NewParser creates a parser for the given file. Gzipped input is detected
// by magic bytes. Use "-" for stdin.
func NewParser(path string, cols Columns, delim Delimiter) (*Parser, error) {
	if path == "-" {
		return NewParserFromReader(os.Stdin, cols, delim)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open hits file: %w", err)
	}

	p := &Parser{file: file, columns: cols, delimiter: delim}

	buf := make([]byte, 2)
	n, err := file.Read(buf)
	if err != nil && err != io.EOF {
		file.Close()
		return nil, fmt.Errorf("read hits file: %w", err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		file.Close()
		return nil, fmt.Errorf("seek hits file: %w", err)
	}

	if n == 2 && buf[0] == 0x1f && buf[1] == 0x8b {
		p.gzipReader, err = gzip.NewReader(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		p.reader = bufio.NewReader(p.gzipReader)
	} else {
		p.reader = bufio.NewReader(file)
	}

	return p, nil
}

// NewParserFromReader creates a parser from an io.Reader (e.g. stdin).
func NewParserFromReader(r io.Reader, cols Columns, delim Delimiter) (*Parser, error) {
	return &Parser{reader: bufio.NewReader(r), columns: cols, delimiter: delim}, nil
}

// Next reads the next hit. It returns nil, nil at end of input. A malformed
// row returns a *ParseError; the row is consumed, so callers may log it and
// keep reading.
func (p *Parser) Next() (*Hit, error) {
	for {
		line, err := p.reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				if line == "" {
					return nil, nil
				}
				// Final line without a trailing newline.
			} else {
				return nil, fmt.Errorf("read hit line: %w", err)
			}
		}
		p.lineNumber++

		line = strings.TrimRight(line, "\r\n")
		if line == "" || strings.HasPrefix(line, "#") {
			if err == io.EOF {
				return nil, nil
			}
			continue
		}

		return p.parseLine(line)
	}
}

// parseLine splits one data line into a Hit.
func (p *Parser) parseLine(line string) (*Hit, error) {
	var fields []string
	if p.delimiter == DelimTab {
		fields = strings.Split(line, "\t")
	} else {
		fields = strings.Fields(line)
	}

	need := maxInt(ColQuery, ColSubject, p.columns.Evalue, p.columns.Bitscore, p.columns.Taxon)
	if len(fields) < need {
		return nil, &ParseError{
			Line:    p.lineNumber,
			Message: fmt.Sprintf("expected at least %d columns, found %d", need, len(fields)),
		}
	}

	evalue, err := strconv.ParseFloat(fields[p.columns.Evalue-1], 64)
	if err != nil {
		return nil, &ParseError{
			Line:    p.lineNumber,
			Message: fmt.Sprintf("invalid e-value: %s", fields[p.columns.Evalue-1]),
		}
	}

	bitscore, err := strconv.ParseFloat(fields[p.columns.Bitscore-1], 64)
	if err != nil {
		return nil, &ParseError{
			Line:    p.lineNumber,
			Message: fmt.Sprintf("invalid bitscore: %s", fields[p.columns.Bitscore-1]),
		}
	}

	return &Hit{
		QueryID:   fields[ColQuery-1],
		SubjectID: fields[ColSubject-1],
		Evalue:    evalue,
		Bitscore:  bitscore,
		TaxonRaw:  fields[p.columns.Taxon-1],
		Line:      p.lineNumber,
	}, nil
}

// LineNumber returns the current line number being processed.
func (p *Parser) LineNumber() int {
	return p.lineNumber
}

// Close closes the parser and underlying file.
func (p *Parser) Close() error {
	if p.gzipReader != nil {
		p.gzipReader.Close()
	}
	if p.file != nil {
		return p.file.Close()
	}
	return nil
}

// ParseError represents an error on a single hit line.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("hits parse error at line %d: %s", e.Line, e.Message)
}

func maxInt(values ...int) int {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
