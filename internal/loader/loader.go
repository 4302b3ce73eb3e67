package loader

import (
	"context"
	"fmt"

	"github.com/aescanero/dago-node-template/internal/eval/template"
)

// MapLoader serves template sources from memory
type MapLoader map[string]string

// Load implements template.Loader
func (m MapLoader) Load(_ context.Context, name string) (string, bool, error) {
	src, ok := m[name]
	return src, ok, nil
}

// Chain asks each loader in turn. The first loader that finds the name wins;
// an error from any loader stops the search.
type Chain []template.Loader

// Load implements template.Loader
func (c Chain) Load(ctx context.Context, name string) (string, bool, error) {
	for i, l := range c {
		if l == nil {
			continue
		}
		src, ok, err := l.Load(ctx, name)
		if err != nil {
			return "", false, fmt.Errorf("loader %d: %w", i, err)
		}
		if ok {
			return src, true, nil
		}
	}
	return "", false, nil
}
