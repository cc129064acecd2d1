package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// maxLineBytes bounds a single JSONL line when reading. Remix records
// embed two full scripts, so the default scanner buffer is far too small.
const maxLineBytes = 64 << 20

// ErrInvalidRecord is wrapped by every CheckJSONL failure.
var ErrInvalidRecord = errors.New("invalid record")

var expectedRoles = [...]Role{RoleSystem, RoleUser, RoleAssistant}

// LineError locates a malformed JSONL line (1-based).
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }
func (e *LineError) Unwrap() error { return e.Err }

// WriteJSONL writes one record per line. Non-ASCII text is written as-is
// and HTML characters are not escaped, so code survives byte-for-byte.
func WriteJSONL(w io.Writer, records []Record) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	for i, r := range records {
		// Encode appends the trailing newline.
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to encode record %d: %w", i, err)
		}
	}
	return bw.Flush()
}

// WriteFile writes records to path, creating parent directories.
func WriteFile(path string, records []Record) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := WriteJSONL(f, records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadJSONL decodes every line of r, validating each with ValidateRecord.
func ReadJSONL(r io.Reader) ([]Record, error) {
	var records []Record
	err := scanLines(r, func(n int, line []byte) error {
		rec, err := decodeLine(line)
		if err != nil {
			return &LineError{Line: n, Err: err}
		}
		records = append(records, rec)
		return nil
	})
	return records, err
}

// CheckJSONL validates r without keeping records and returns how many
// lines were valid.
func CheckJSONL(r io.Reader) (int, error) {
	count := 0
	err := scanLines(r, func(n int, line []byte) error {
		if _, err := decodeLine(line); err != nil {
			return &LineError{Line: n, Err: err}
		}
		count++
		return nil
	})
	return count, err
}

// CheckFile runs CheckJSONL over a file.
func CheckFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return CheckJSONL(f)
}

func scanLines(r io.Reader, fn func(n int, line []byte) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1<<20), maxLineBytes)
	n := 0
	for sc.Scan() {
		n++
		if err := fn(n, sc.Bytes()); err != nil {
			return err
		}
	}
	return sc.Err()
}

func decodeLine(line []byte) (Record, error) {
	if len(bytes.TrimSpace(line)) == 0 {
		return Record{}, fmt.Errorf("%w: empty line", ErrInvalidRecord)
	}
	var rec Record
	if err := json.Unmarshal(line, &rec); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if err := ValidateRecord(rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// ValidateRecord checks for exactly three non-empty messages in
// system/user/assistant order.
func ValidateRecord(rec Record) error {
	if len(rec.Messages) != len(expectedRoles) {
		return fmt.Errorf("%w: expected %d messages, got %d", ErrInvalidRecord, len(expectedRoles), len(rec.Messages))
	}
	for i, m := range rec.Messages {
		if m.Role != expectedRoles[i] {
			return fmt.Errorf("%w: message %d has role %q, expected %q", ErrInvalidRecord, i, m.Role, expectedRoles[i])
		}
		if m.Content == "" {
			return fmt.Errorf("%w: message %d (%s) is empty", ErrInvalidRecord, i, m.Role)
		}
	}
	return nil
}
