package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileLoader reads templates from a directory. The name "mail/footer" maps to
// <Dir>/mail/footer<Suffix>.
type FileLoader struct {
	Dir    string
	Suffix string
}

// NewFileLoader creates a loader for dir; suffix defaults to ".hbs"
func NewFileLoader(dir, suffix string) *FileLoader {
	if suffix == "" {
		suffix = ".hbs"
	}
	return &FileLoader{Dir: dir, Suffix: suffix}
}

// Load implements template.Loader. Names that would escape Dir are rejected.
func (l *FileLoader) Load(ctx context.Context, name string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	if !filepath.IsLocal(filepath.FromSlash(name)) {
		return "", false, fmt.Errorf("invalid template name %q", name)
	}

	data, err := os.ReadFile(filepath.Join(l.Dir, filepath.FromSlash(name)+l.Suffix))
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read template %q: %w", name, err)
	}
	return string(data), true, nil
}
