package template

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Loader supplies template source by name. A missing name reports ok=false
// and is only an error once a render actually needs it.
type Loader interface {
	Load(ctx context.Context, name string) (source string, ok bool, err error)
}

// LoaderFunc adapts a function to Loader
type LoaderFunc func(ctx context.Context, name string) (string, bool, error)

// Load calls f
func (f LoaderFunc) Load(ctx context.Context, name string) (string, bool, error) {
	return f(ctx, name)
}

// RegisterPartial makes t available as {{> name}}, replacing any previous
// partial of that name
func (e *Engine) RegisterPartial(name string, t *Template) {
	e.partialsMu.Lock()
	defer e.partialsMu.Unlock()
	e.partials[name] = t
}

// RegisterPartialTemplate compiles source and registers it as name
func (e *Engine) RegisterPartialTemplate(name, source string) error {
	t, err := e.CompileNamed(name, source)
	if err != nil {
		return fmt.Errorf("failed to compile partial %q: %w", name, err)
	}
	e.RegisterPartial(name, t)
	return nil
}

// RegisterPartials compiles and registers every partial in the map
func (e *Engine) RegisterPartials(partials map[string]string) error {
	for name, source := range partials {
		if err := e.RegisterPartialTemplate(name, source); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) registeredPartial(name string) (*Template, bool) {
	e.partialsMu.RLock()
	defer e.partialsMu.RUnlock()
	t, ok := e.partials[name]
	return t, ok
}

// partial resolves name from the registry, then from the loader. Loaded
// partials are compiled once and kept in the registry; concurrent loads of
// the same name share a single load.
func (e *Engine) partial(ctx context.Context, name string) (*Template, error) {
	if t, ok := e.registeredPartial(name); ok {
		return t, nil
	}
	if e.loader == nil {
		return nil, &PartialNotFoundError{Name: name}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	v, err, _ := e.loads.Do(name, func() (interface{}, error) {
		if t, ok := e.registeredPartial(name); ok {
			return t, nil
		}
		source, ok, err := e.loader.Load(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to load partial %q: %w", name, err)
		}
		if !ok {
			return nil, &PartialNotFoundError{Name: name}
		}
		t, err := e.CompileNamed(name, source)
		if err != nil {
			return nil, fmt.Errorf("failed to compile partial %q: %w", name, err)
		}
		e.RegisterPartial(name, t)
		e.logger.Debug("Partial loaded",
			zap.String("partial", name),
			zap.Int("source_length", len(source)))
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Template), nil
}
