// Package fsutil opens user-supplied paths through an os.Root scoped to the
// file's directory, so a path cannot resolve outside it via symlinks.
package fsutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// OpenScoped opens path for reading. The returned file outlives the root.
func OpenScoped(path string) (*os.File, error) {
	cleaned := filepath.Clean(path)
	base := filepath.Base(cleaned)
	if path == "" || base == "." || base == string(filepath.Separator) {
		return nil, fmt.Errorf("invalid file path: %q", path)
	}

	root, err := os.OpenRoot(filepath.Dir(cleaned))
	if err != nil {
		return nil, err
	}
	defer root.Close()
	return root.Open(base)
}

// ReadFileScoped reads a whole file opened with OpenScoped.
func ReadFileScoped(path string) ([]byte, error) {
	f, err := OpenScoped(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
