package template

import (
	"fmt"
)

// Helper is the single contract shared by built-in and user helpers. ctx is
// the value of the current frame; parameters and the section bodies are
// reached through opts. Block helper results are written verbatim, other
// results are escaped unless they are a SafeString.
type Helper func(ctx interface{}, opts *Options) (interface{}, error)

// HelperMissing is the helper name called for tags with parameters that name
// no registered helper
const HelperMissing = "helperMissing"

type helperEntry struct {
	fn      Helper
	builtin bool
}

// RegisterHelper associates name with h, replacing any previous helper
func (e *Engine) RegisterHelper(name string, h Helper) error {
	if name == "else" {
		return fmt.Errorf("failed to register helper %q: %w", name, ErrReservedHelperName)
	}
	if h == nil {
		return fmt.Errorf("failed to register helper %q: nil helper", name)
	}
	e.helpersMu.Lock()
	defer e.helpersMu.Unlock()
	e.helpers[name] = helperEntry{fn: h}
	return nil
}

// RegisterHelpers registers every helper in the map
func (e *Engine) RegisterHelpers(helpers map[string]Helper) error {
	for name, h := range helpers {
		if err := e.RegisterHelper(name, h); err != nil {
			return err
		}
	}
	return nil
}

// RemoveHelper unregisters name; built-ins removed this way fall back to
// plain path lookups
func (e *Engine) RemoveHelper(name string) {
	e.helpersMu.Lock()
	defer e.helpersMu.Unlock()
	delete(e.helpers, name)
}

func (e *Engine) helper(name string) (helperEntry, bool) {
	if name == "" {
		return helperEntry{}, false
	}
	e.helpersMu.RLock()
	defer e.helpersMu.RUnlock()
	h, ok := e.helpers[name]
	return h, ok
}

// helperSnapshot maps registered names to whether they are the built-in
func (e *Engine) helperSnapshot() map[string]bool {
	e.helpersMu.RLock()
	defer e.helpersMu.RUnlock()
	names := make(map[string]bool, len(e.helpers))
	for name, h := range e.helpers {
		names[name] = h.builtin
	}
	return names
}

func (e *Engine) registerBuiltins() {
	for name, fn := range builtinHelpers() {
		e.helpers[name] = helperEntry{fn: fn, builtin: true}
	}
}
