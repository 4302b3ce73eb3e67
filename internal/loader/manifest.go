package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
	"go.uber.org/multierr"
)

// manifestFile is the top-level structure of a manifest for decoding
type manifestFile struct {
	Templates []*manifestTemplate `hcl:"template,block"`
}

type manifestTemplate struct {
	Name     string    `hcl:"name,label"`
	Source   *string   `hcl:"source,optional"`
	File     *string   `hcl:"file,optional"`
	Partial  *bool     `hcl:"partial,optional"`
	Defaults cty.Value `hcl:"defaults,optional"`
}

// Entry is one template declared in a manifest
type Entry struct {
	Name    string
	Source  string
	Partial bool
	// Defaults is merged under the request data when the template renders
	Defaults map[string]interface{}
}

// Manifest is a set of templates declared in an HCL file:
//
//	template "welcome" {
//	  source   = "Hello {{name}}"
//	  defaults = { name = "guest" }
//	}
//
//	template "footer" {
//	  file    = "partials/footer.hbs"
//	  partial = true
//	}
type Manifest struct {
	entries map[string]*Entry
	names   []string
}

// LoadManifest parses and validates a manifest file. Relative file
// attributes resolve against the manifest's directory.
func LoadManifest(path string) (*Manifest, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, diags)
	}
	return decodeManifest(file, path, filepath.Dir(path))
}

// ParseManifest parses a manifest held in memory
func ParseManifest(src []byte, filename, dir string) (*Manifest, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", filename, diags)
	}
	return decodeManifest(file, filename, dir)
}

func decodeManifest(file *hcl.File, filename, dir string) (*Manifest, error) {
	var parsed manifestFile
	if diags := gohcl.DecodeBody(file.Body, nil, &parsed); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode manifest %s: %w", filename, diags)
	}

	m := &Manifest{entries: make(map[string]*Entry, len(parsed.Templates))}
	var errs error
	for _, t := range parsed.Templates {
		entry, err := newEntry(t, dir)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("template %q: %w", t.Name, err))
			continue
		}
		if _, dup := m.entries[t.Name]; dup {
			errs = multierr.Append(errs, fmt.Errorf("template %q declared twice", t.Name))
			continue
		}
		m.entries[t.Name] = entry
		m.names = append(m.names, t.Name)
	}
	if errs != nil {
		return nil, fmt.Errorf("invalid manifest %s: %w", filename, errs)
	}

	sort.Strings(m.names)
	return m, nil
}

func newEntry(t *manifestTemplate, dir string) (*Entry, error) {
	if t.Name == "" {
		return nil, fmt.Errorf("name must not be empty")
	}

	entry := &Entry{Name: t.Name, Partial: t.Partial != nil && *t.Partial}
	switch {
	case t.Source != nil && t.File != nil:
		return nil, fmt.Errorf("source and file are mutually exclusive")
	case t.Source != nil:
		entry.Source = *t.Source
	case t.File != nil:
		path := *t.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", *t.File, err)
		}
		entry.Source = string(data)
	default:
		return nil, fmt.Errorf("one of source or file is required")
	}

	if !t.Defaults.IsNull() {
		ty := t.Defaults.Type()
		if !ty.IsObjectType() && !ty.IsMapType() {
			return nil, fmt.Errorf("defaults must be an object, got %s", ty.FriendlyName())
		}
		native, err := ctyToNative(t.Defaults)
		if err != nil {
			return nil, fmt.Errorf("defaults: %w", err)
		}
		entry.Defaults = native.(map[string]interface{})
	}

	return entry, nil
}

// Load implements template.Loader
func (m *Manifest) Load(_ context.Context, name string) (string, bool, error) {
	e, ok := m.entries[name]
	if !ok {
		return "", false, nil
	}
	return e.Source, true, nil
}

// Entry returns the named template
func (m *Manifest) Entry(name string) (*Entry, bool) {
	e, ok := m.entries[name]
	return e, ok
}

// Names lists the declared templates in sorted order
func (m *Manifest) Names() []string {
	return append([]string(nil), m.names...)
}

// Partials returns the sources of templates marked partial = true
func (m *Manifest) Partials() map[string]string {
	out := make(map[string]string)
	for name, e := range m.entries {
		if e.Partial {
			out[name] = e.Source
		}
	}
	return out
}

// WithDefaults merges the template's defaults under data. Data wins on
// conflicts; non-map data is returned unchanged.
func (m *Manifest) WithDefaults(name string, data interface{}) interface{} {
	e, ok := m.entries[name]
	if !ok || len(e.Defaults) == 0 {
		return data
	}
	if data == nil {
		data = map[string]interface{}{}
	}
	given, ok := data.(map[string]interface{})
	if !ok {
		return data
	}
	merged := make(map[string]interface{}, len(e.Defaults)+len(given))
	for k, v := range e.Defaults {
		merged[k] = v
	}
	for k, v := range given {
		merged[k] = v
	}
	return merged
}

// ctyToNative converts a cty value into plain Go data: strings, float64
// numbers, bools, []interface{} and map[string]interface{}
func ctyToNative(v cty.Value) (interface{}, error) {
	if v.IsNull() || !v.IsKnown() {
		return nil, nil
	}

	ty := v.Type()
	switch {
	case ty == cty.String:
		return v.AsString(), nil

	case ty == cty.Number:
		var f float64
		if err := gocty.FromCtyValue(v, &f); err != nil {
			return nil, fmt.Errorf("could not convert number: %w", err)
		}
		return f, nil

	case ty == cty.Bool:
		return v.True(), nil

	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		out := make([]interface{}, 0, v.LengthInt())
		it := v.ElementIterator()
		for it.Next() {
			_, elem := it.Element()
			native, err := ctyToNative(elem)
			if err != nil {
				return nil, err
			}
			out = append(out, native)
		}
		return out, nil

	case ty.IsObjectType() || ty.IsMapType():
		out := make(map[string]interface{})
		it := v.ElementIterator()
		for it.Next() {
			key, elem := it.Element()
			native, err := ctyToNative(elem)
			if err != nil {
				return nil, fmt.Errorf("in attribute %q: %w", key.AsString(), err)
			}
			out[key.AsString()] = native
		}
		return out, nil
	}

	return nil, fmt.Errorf("unsupported value type %s", ty.FriendlyName())
}
