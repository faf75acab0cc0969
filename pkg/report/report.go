// Package report writes calibration parameters as a tab-separated text file,
// one "Key<TAB>Value" line per field.
package report

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"intcal/pkg/calibration"
)

// ErrMalformed is returned by Read for a line without a tab separator.
var ErrMalformed = errors.New("malformed report line")

// Write writes every field of p in report order.
func Write(w io.Writer, p *calibration.Parameters) error {
	bw := bufio.NewWriter(w)
	for _, f := range p.Fields() {
		if strings.ContainsAny(f.Value, "\t\n") {
			return fmt.Errorf("field %q: value contains a tab or newline", f.Key)
		}
		if _, err := fmt.Fprintf(bw, "%s\t%s\n", f.Key, f.Value); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFile writes the report to dir/name and returns the file path. The
// report is renamed into place once complete.
func WriteFile(dir, name string, p *calibration.Parameters) (string, error) {
	path := filepath.Join(dir, name)
	file, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create report file: %w", err)
	}
	tmp := file.Name()
	defer os.Remove(tmp)

	if err := Write(file, p); err != nil {
		file.Close()
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	if err := file.Chmod(0644); err != nil {
		file.Close()
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("failed to close report file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("failed to move report into place: %w", err)
	}
	return path, nil
}

// Read parses a report back into its fields. Blank lines are skipped.
func Read(r io.Reader) ([]calibration.Field, error) {
	var fields []calibration.Field
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSuffix(scanner.Text(), "\r")
		if text == "" {
			continue
		}
		key, value, ok := strings.Cut(text, "\t")
		if !ok {
			return nil, fmt.Errorf("%w at line %d: %q", ErrMalformed, line, text)
		}
		fields = append(fields, calibration.Field{Key: key, Value: value})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return fields, nil
}

// Lookup returns the value of the first field named key.
func Lookup(fields []calibration.Field, key string) (string, bool) {
	for _, f := range fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}
