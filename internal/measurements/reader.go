package measurements

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/banshee-data/sensor-fusion/internal/monitoring"
)

// Reader yields Records from a measurement log, skipping blank lines,
// comments and lines tagged with an unknown sensor.
type Reader struct {
	scanner *bufio.Scanner
	line    int
	skipped int
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	return &Reader{scanner: bufio.NewScanner(r)}
}

// Next returns the next record, or io.EOF when the input is exhausted.
// Malformed lines return an error carrying the 1-based line number.
func (r *Reader) Next() (Record, error) {
	for r.scanner.Scan() {
		r.line++
		text := strings.TrimSpace(r.scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		rec, err := ParseLine(text)
		if errors.Is(err, ErrUnknownSensor) {
			r.skipped++
			monitoring.Logf("measurements: line %d: %v, skipping", r.line, err)
			continue
		}
		if err != nil {
			return Record{}, fmt.Errorf("line %d: %w", r.line, err)
		}
		return rec, nil
	}
	if err := r.scanner.Err(); err != nil {
		return Record{}, fmt.Errorf("read measurements: %w", err)
	}
	return Record{}, io.EOF
}

// Skipped returns the number of lines dropped for an unknown sensor tag.
func (r *Reader) Skipped() int { return r.skipped }

// ReadAll parses every record in r.
func ReadAll(r io.Reader) ([]Record, error) {
	rd := NewReader(r)
	var out []Record
	for {
		rec, err := rd.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
}

// WriteAll writes records in the log format, one per line.
func WriteAll(w io.Writer, records []Record) error {
	bw := bufio.NewWriter(w)
	for _, rec := range records {
		if _, err := bw.WriteString(FormatRecord(rec) + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}
