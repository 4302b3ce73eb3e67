package template

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultMaxDepth bounds nested sections and partials per render
const DefaultMaxDepth = 256

// settings are the compile and render switches of a template
type settings struct {
	openDelim    string
	closeDelim   string
	stringParams bool
	strict       bool
	maxDepth     int
	escaper      Escaper

	// engine-only
	loader Loader
	logger *zap.Logger
}

// Option configures an Engine, or a single template when passed to Compile
type Option func(*settings)

// WithDelimiters sets the initial delimiter pair
func WithDelimiters(open, close string) Option {
	return func(s *settings) {
		s.openDelim = open
		s.closeDelim = close
	}
}

// WithStringParams hands user helpers the source text of their parameters
// instead of resolved values
func WithStringParams(enabled bool) Option {
	return func(s *settings) { s.stringParams = enabled }
}

// WithStrictMode makes unresolved output and section paths an error
func WithStrictMode(enabled bool) Option {
	return func(s *settings) { s.strict = enabled }
}

// WithMaxDepth bounds nested sections and partials
func WithMaxDepth(depth int) Option {
	return func(s *settings) {
		if depth > 0 {
			s.maxDepth = depth
		}
	}
}

// WithEscaper replaces the HTML escaper
func WithEscaper(esc Escaper) Option {
	return func(s *settings) {
		if esc != nil {
			s.escaper = esc
		}
	}
}

// WithLoader sets the source of partials that are not registered. Ignored
// by Compile.
func WithLoader(l Loader) Option {
	return func(s *settings) { s.loader = l }
}

// WithLogger sets the engine logger. Ignored by Compile.
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Engine compiles and renders Handlebars templates. It owns the helper and
// partial registries shared by every template it compiles.
type Engine struct {
	settings settings
	loader   Loader
	logger   *zap.Logger

	cache map[string]*Template
	mu    sync.RWMutex

	helpers   map[string]helperEntry
	helpersMu sync.RWMutex

	partials   map[string]*Template
	partialsMu sync.RWMutex
	loads      singleflight.Group
}

// NewEngine creates a new template engine with the built-in helpers
// registered
func NewEngine(opts ...Option) *Engine {
	s := settings{
		openDelim:  DefaultOpenDelim,
		closeDelim: DefaultCloseDelim,
		maxDepth:   DefaultMaxDepth,
		escaper:    HTMLEscaper,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&s)
	}

	engine := &Engine{
		settings: s,
		loader:   s.loader,
		logger:   s.logger,
		cache:    make(map[string]*Template),
		helpers:  make(map[string]helperEntry),
		partials: make(map[string]*Template),
	}
	engine.settings.loader = nil
	engine.settings.logger = nil
	engine.registerBuiltins()

	return engine
}

// Render renders a template with the given data
func (e *Engine) Render(templateStr string, data interface{}) (string, error) {
	return e.RenderContext(context.Background(), templateStr, data)
}

// RenderContext renders a template source with the given data. ctx is
// checked at section and partial boundaries and passed to the loader.
func (e *Engine) RenderContext(ctx context.Context, templateStr string, data interface{}) (string, error) {
	// Get or compile template
	tmpl, err := e.getTemplate(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to compile template: %w", err)
	}

	result, err := tmpl.render(ctx, data)
	if err != nil {
		return "", fmt.Errorf("template execution failed: %w", err)
	}

	return result, nil
}

// RenderNamed renders a registered or loadable template by name
func (e *Engine) RenderNamed(ctx context.Context, name string, data interface{}) (string, error) {
	tmpl, err := e.partial(ctx, name)
	if err != nil {
		return "", fmt.Errorf("failed to resolve template %q: %w", name, err)
	}

	result, err := tmpl.render(ctx, data)
	if err != nil {
		return "", fmt.Errorf("template %q execution failed: %w", name, err)
	}

	return result, nil
}

// getTemplate gets a compiled template from cache or compiles it
func (e *Engine) getTemplate(templateStr string) (*Template, error) {
	// Check cache first (read lock)
	e.mu.RLock()
	if tmpl, ok := e.cache[templateStr]; ok {
		e.mu.RUnlock()
		return tmpl, nil
	}
	e.mu.RUnlock()

	// Compile the template (write lock)
	e.mu.Lock()
	defer e.mu.Unlock()

	// Check again in case another goroutine compiled it
	if tmpl, ok := e.cache[templateStr]; ok {
		return tmpl, nil
	}

	tmpl, err := e.Compile(templateStr)
	if err != nil {
		return nil, err
	}

	e.cache[templateStr] = tmpl

	return tmpl, nil
}

// ValidateTemplate validates a template without rendering it
func (e *Engine) ValidateTemplate(templateStr string) error {
	_, err := e.Compile(templateStr)
	return err
}

// ClearCache clears the compiled template cache. Registered and loaded
// partials are kept.
func (e *Engine) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache = make(map[string]*Template)
}

// Logger returns the engine logger
func (e *Engine) Logger() *zap.Logger {
	return e.logger
}
