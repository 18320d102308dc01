// pkg/source/reader.go

// Package source reads delimited legacy extracts. Import is verbatim:
// no trimming, no decoding, no type coercion; every later stage works
// from the stored raw snapshot, so the extract file is only ever read
// once.
package source

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/starkjeffrey/naga-migration/pkg/config"
	"github.com/starkjeffrey/naga-migration/pkg/model"
)

// Reader streams rows from one table's extract file. Ordinals are
// assigned in file order starting at 0 and are never reassigned.
type Reader struct {
	file    *os.File
	scanner *delimitedScanner
	cfg     *config.TableConfiguration

	header  []string
	ordinal int64
}

// Open opens the table's extract under dataDir and reads the header
// line. Every source column named in the configuration must appear in
// the header.
func Open(dataDir string, cfg *config.TableConfiguration) (*Reader, error) {
	path := filepath.Join(dataDir, cfg.SourceFile)
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open extract %s: %w", path, err)
	}

	delim := cfg.Delimiter
	if delim == 0 {
		delim = ','
	}

	r := &Reader{
		file:    file,
		scanner: newDelimitedScanner(file, delim),
		cfg:     cfg,
	}

	header, err := r.scanner.Next()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	r.header = header

	for _, col := range cfg.Columns {
		if indexOf(header, col.Source) < 0 {
			file.Close()
			return nil, fmt.Errorf("extract %s is missing source column %q", path, col.Source)
		}
	}

	return r, nil
}

// Next returns the next row, or io.EOF when the extract is exhausted.
// Raw values are stored exactly as they appear in the file.
func (r *Reader) Next() (*model.Row, error) {
	fields, err := r.scanner.Next()
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("failed to read record %d of %s: %w", r.ordinal, r.cfg.SourceFile, err)
	}

	raw := make(map[string]string, len(r.header))
	for i, name := range r.header {
		if i < len(fields) {
			raw[name] = fields[i]
		} else {
			// Short records occur in hand-edited extracts; missing
			// trailing fields import as empty, validation decides later.
			raw[name] = ""
		}
	}

	row := &model.Row{
		Ordinal:   r.ordinal,
		LegacyKey: raw[r.cfg.IdentityColumn().Source],
		Raw:       raw,
	}
	r.ordinal++
	return row, nil
}

// ReadChunk reads up to limit rows. A short (or empty) result means the
// extract is exhausted.
func (r *Reader) ReadChunk(limit int) ([]*model.Row, error) {
	rows := make([]*model.Row, 0, limit)
	for len(rows) < limit {
		row, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Skip discards n rows, used when resuming a partially committed import.
func (r *Reader) Skip(n int64) error {
	for i := int64(0); i < n; i++ {
		if _, err := r.Next(); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
	return nil
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}

func indexOf(fields []string, name string) int {
	for i, f := range fields {
		if f == name {
			return i
		}
	}
	return -1
}
