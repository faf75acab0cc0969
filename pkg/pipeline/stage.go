package pipeline

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// stage collects outputs in temporary files next to their destinations and
// moves them into place together. Until commit succeeds no destination holds
// a new output.
type stage struct {
	files []stagedFile
}

type stagedFile struct {
	tmp  string
	dest string
}

// write stages the content produced by fn for dest.
func (s *stage) write(dest string, fn func(w io.Writer) error) error {
	file, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	s.files = append(s.files, stagedFile{tmp: file.Name(), dest: dest})

	if err := fn(file); err != nil {
		file.Close()
		return err
	}
	if err := file.Chmod(0644); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// commit renames every staged file onto its destination. If a rename fails
// the destinations already replaced are removed along with the remaining
// temporary files.
func (s *stage) commit() error {
	for i, f := range s.files {
		if err := os.Rename(f.tmp, f.dest); err != nil {
			for _, done := range s.files[:i] {
				os.Remove(done.dest)
			}
			s.files = s.files[i:]
			return errors.Join(fmt.Errorf("failed to move output into place: %w", err), s.discard())
		}
	}
	s.files = nil
	return nil
}

// discard removes the temporary files that were not committed.
func (s *stage) discard() error {
	var errs []error
	for _, f := range s.files {
		if err := os.Remove(f.tmp); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	s.files = nil
	return errors.Join(errs...)
}
