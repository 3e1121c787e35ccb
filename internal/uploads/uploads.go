// Package uploads stores the images attached to task updates on local disk.
package uploads

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrInvalidName     = errors.New("invalid file name")
)

var allowedExtensions = map[string]bool{
	"png":  true,
	"jpg":  true,
	"jpeg": true,
	"gif":  true,
}

// Store writes files into a single flat directory
type Store struct {
	dir string
}

func New(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) Dir() string { return s.dir }

// Extension returns the lower-cased extension of an allowed image name
func Extension(filename string) (string, error) {
	i := strings.LastIndex(filename, ".")
	if i < 0 || i == len(filename)-1 {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, filename)
	}
	ext := strings.ToLower(filename[i+1:])
	if !allowedExtensions[ext] {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, filename)
	}
	return ext, nil
}

// ImageName is the stored name of the index-th image of a task's update-th update
func ImageName(taskID string, update, index int, ext string) string {
	return fmt.Sprintf("task%s_update%d_img%d.%s", taskID, update, index, ext)
}

// Save copies r under the structured image name and returns that name
func (s *Store) Save(taskID string, update, index int, original string, r io.Reader) (string, error) {
	ext, err := Extension(original)
	if err != nil {
		return "", err
	}
	name := ImageName(taskID, update, index, ext)
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	f, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", name, err)
	}
	return name, nil
}

// Path resolves a stored name to its file path, refusing anything that
// would escape the upload directory.
func (s *Store) Path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(s.dir, name), nil
}

// Remove deletes stored files, ignoring ones already gone
func (s *Store) Remove(names ...string) error {
	var errs []error
	for _, n := range names {
		p, err := s.Path(n)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
