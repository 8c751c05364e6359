// Package csvio reads transaction rows from CSV and writes balance reports back as CSV.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spbu-ds-practicum-2025/payments-engine/internal/domain"
)

// Reader yields trimmed transaction rows from a CSV stream with a header line.
// It implements domain.RowSource.
type Reader struct {
	csv           *csv.Reader
	closer        io.Closer
	headerSkipped bool
}

// NewReader creates a Reader over r. The first record is treated as the header.
func NewReader(r io.Reader) *Reader {
	cr := csv.NewReader(r)
	// row width is checked by the validator so that bad rows are rejected one by one
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	return &Reader{csv: cr}
}

// OpenFile opens path for reading. The caller must Close the returned Reader.
func OpenFile(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}

	r := NewReader(f)
	r.closer = f
	return r, nil
}

// Next returns the next data row, or io.EOF when the stream is exhausted.
// Malformed CSV (for example an unterminated quote) is returned as an error.
func (r *Reader) Next() (domain.RawRow, error) {
	if !r.headerSkipped {
		r.headerSkipped = true
		if _, err := r.read(); err != nil {
			return domain.RawRow{}, err
		}
	}

	return r.read()
}

func (r *Reader) read() (domain.RawRow, error) {
	record, err := r.csv.Read()
	if errors.Is(err, io.EOF) {
		return domain.RawRow{}, io.EOF
	}
	if err != nil {
		return domain.RawRow{}, fmt.Errorf("failed to parse csv: %w", err)
	}

	line, _ := r.csv.FieldPos(0)

	fields := make([]string, len(record))
	for i, field := range record {
		fields[i] = strings.TrimSpace(field)
	}

	return domain.RawRow{Line: line, Fields: fields}, nil
}

// Close releases the underlying file, if the Reader owns one.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}
