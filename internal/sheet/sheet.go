// Package sheet reads and writes attendance in the tabular layout of the
// event's spreadsheet: one row per check-in with timestamp, matric number
// and session columns.
package sheet

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"checkin/internal/attendance"
)

// Header is the first row of every exported sheet.
var Header = []string{"Timestamp", "Matric No", "Session"}

func row(rec attendance.Record) []string {
	return []string{rec.Timestamp.UTC().Format(time.RFC3339), rec.Identifier, rec.Session}
}

// Encode writes records as CSV with a header row.
func Encode(w io.Writer, records []attendance.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, rec := range records {
		if err := cw.Write(row(rec)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadIdentifiers parses a roster: the first column of each row is an
// identifier. A leading header row naming a matric or identifier column is
// skipped, as are blank rows. Identifiers come back normalized.
func ReadIdentifiers(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var ids []string
	for line := 0; ; line++ {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return ids, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read roster: %w", err)
		}
		if len(fields) == 0 {
			continue
		}
		first := strings.TrimSpace(strings.TrimPrefix(fields[0], "\ufeff"))
		if line == 0 && isHeader(first) {
			continue
		}
		if id := attendance.NormalizeIdentifier(first); id != "" {
			ids = append(ids, id)
		}
	}
}

func isHeader(cell string) bool {
	cell = strings.ToLower(cell)
	return strings.Contains(cell, "matric") || strings.Contains(cell, "identifier")
}

// ReadIdentifiersFile opens path and parses it with ReadIdentifiers.
func ReadIdentifiersFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadIdentifiers(f)
}

// Mirror appends check-ins to a CSV file, writing the header when the file
// is new. It is safe for concurrent use.
type Mirror struct {
	mu   sync.Mutex
	f    *os.File
	cw   *csv.Writer
	rows int
}

// OpenMirror opens or creates the mirror file at path.
func OpenMirror(path string) (*Mirror, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create mirror dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open mirror: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat mirror: %w", err)
	}
	m := &Mirror{f: f, cw: csv.NewWriter(f)}
	if info.Size() == 0 {
		if err := m.write(Header); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return m, nil
}

// Append writes one record and flushes it to disk.
func (m *Mirror) Append(rec attendance.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.write(row(rec)); err != nil {
		return err
	}
	m.rows++
	return nil
}

// Rows reports how many records this mirror appended since it was opened.
func (m *Mirror) Rows() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows
}

func (m *Mirror) write(fields []string) error {
	if err := m.cw.Write(fields); err != nil {
		return fmt.Errorf("write mirror: %w", err)
	}
	m.cw.Flush()
	if err := m.cw.Error(); err != nil {
		return fmt.Errorf("flush mirror: %w", err)
	}
	return nil
}

// Close closes the file.
func (m *Mirror) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.f.Close()
}
