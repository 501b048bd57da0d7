package taxonomy

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// dmpSeparator delimits fields in NCBI taxdump files (nodes.dmp, names.dmp,
// merged.dmp). Rows also carry a trailing "\t|" which is trimmed off.
const dmpSeparator = "\t|\t"

// LoadNodes reads an NCBI nodes.dmp file (taxid | parent taxid | rank | ...)
// into the store.
func LoadNodes(s *Store, path string) error {
	return loadLines(path, func(line string, lineNum int) error {
		fields := splitDmp(line)
		if len(fields) < 3 {
			return fmt.Errorf("nodes line %d: expected at least 3 fields, found %d", lineNum, len(fields))
		}
		id, err := strconv.Atoi(fields[0])
		if err != nil {
			return fmt.Errorf("nodes line %d: invalid taxid %q", lineNum, fields[0])
		}
		parent, err := strconv.Atoi(fields[1])
		if err != nil {
			return fmt.Errorf("nodes line %d: invalid parent taxid %q", lineNum, fields[1])
		}
		s.AddNode(id, parent, fields[2])
		return nil
	})
}

// LoadNames reads an NCBI names.dmp file (taxid | name | unique name | name
// class | ...) into the store. Only "scientific name" rows are kept.
func LoadNames(s *Store, path string) error {
	return loadLines(path, func(line string, lineNum int) error {
		fields := splitDmp(line)
		if len(fields) < 4 {
			return fmt.Errorf("names line %d: expected at least 4 fields, found %d", lineNum, len(fields))
		}
		if fields[3] != "scientific name" {
			return nil
		}
		id, err := strconv.Atoi(fields[0])
		if err != nil {
			return fmt.Errorf("names line %d: invalid taxid %q", lineNum, fields[0])
		}
		s.AddName(id, fields[1])
		return nil
	})
}

// LoadMerged reads an NCBI merged.dmp file (old taxid | new taxid) and
// installs redirects so retired taxids resolve through their replacement.
// Redirect targets must already be present in the store.
func LoadMerged(s *Store, path string) error {
	return loadLines(path, func(line string, lineNum int) error {
		fields := splitDmp(line)
		if len(fields) < 2 {
			return fmt.Errorf("merged line %d: expected 2 fields, found %d", lineNum, len(fields))
		}
		oldID, err := strconv.Atoi(fields[0])
		if err != nil {
			return fmt.Errorf("merged line %d: invalid old taxid %q", lineNum, fields[0])
		}
		newID, err := strconv.Atoi(fields[1])
		if err != nil {
			return fmt.Errorf("merged line %d: invalid new taxid %q", lineNum, fields[1])
		}
		if _, ok := s.Parent(newID); !ok {
			return fmt.Errorf("merged line %d: redirect target %d not present in nodes table", lineNum, newID)
		}
		s.Redirect(oldID, newID)
		return nil
	})
}

// LoadTable reads a combined tab-separated taxonomy table with rows
// "taxid<TAB>rank<TAB>name<TAB>parent taxid", an alternative to the three
// dmp files.
func LoadTable(s *Store, path string) error {
	return loadLines(path, func(line string, lineNum int) error {
		fields := strings.Split(line, "\t")
		if len(fields) < 4 {
			return fmt.Errorf("taxonomy table line %d: expected 4 fields, found %d", lineNum, len(fields))
		}
		id, err := strconv.Atoi(fields[0])
		if err != nil {
			return fmt.Errorf("taxonomy table line %d: invalid taxid %q", lineNum, fields[0])
		}
		parent, err := strconv.Atoi(fields[3])
		if err != nil {
			return fmt.Errorf("taxonomy table line %d: invalid parent taxid %q", lineNum, fields[3])
		}
		s.AddNode(id, parent, fields[1])
		s.AddName(id, fields[2])
		return nil
	})
}

// loadLines opens a possibly gzipped file and feeds each non-empty line to fn.
func loadLines(path string, fn func(line string, lineNum int) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open taxonomy file %s: %w", path, err)
	}
	defer f.Close()

	reader, closer, err := maybeGzip(f)
	if err != nil {
		return fmt.Errorf("open taxonomy file %s: %w", path, err)
	}
	if closer != nil {
		defer closer.Close()
	}

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" {
			continue
		}
		if err := fn(line, lineNum); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}

// maybeGzip wraps r in a gzip reader when the stream starts with the gzip
// magic bytes. The file must support seeking back after the sniff.
func maybeGzip(f *os.File) (io.Reader, io.Closer, error) {
	buf := make([]byte, 2)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return nil, nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, nil, err
	}
	if n == 2 && buf[0] == 0x1f && buf[1] == 0x8b {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, nil, err
		}
		return gz, gz, nil
	}
	return f, nil, nil
}

// splitDmp splits one taxdump row into its fields, dropping the trailing
// "\t|" terminator.
func splitDmp(line string) []string {
	return strings.Split(strings.TrimSuffix(line, "\t|"), dmpSeparator)
}
