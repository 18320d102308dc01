// pkg/source/scanner.go
package source

import (
	"encoding/csv"
	"io"
)

// delimitedScanner wraps the csv reader with the lenient settings the
// legacy extracts require: variable field counts and sloppy quoting
// both occur in files exported by hand over the years.
type delimitedScanner struct {
	reader *csv.Reader
}

func newDelimitedScanner(r io.Reader, delim rune) *delimitedScanner {
	cr := csv.NewReader(r)
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return &delimitedScanner{reader: cr}
}

// Next returns the fields of the next record, or io.EOF.
func (s *delimitedScanner) Next() ([]string, error) {
	return s.reader.Read()
}
