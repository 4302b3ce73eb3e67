package data

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// Object is a JSON object that keeps its key order. It satisfies the
// template engine's Map interface, so {{#each}} visits keys as written.
type Object struct {
	keys   []string
	values map[string]interface{}
}

// NewObject creates an empty object
func NewObject() *Object {
	return &Object{values: make(map[string]interface{})}
}

// Get returns the value stored under key
func (o *Object) Get(key string) (interface{}, bool) {
	if o == nil {
		return nil, false
	}
	v, ok := o.values[key]
	return v, ok
}

// Keys returns the keys in insertion order
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	return o.keys
}

// Len returns the number of keys
func (o *Object) Len() int {
	return len(o.Keys())
}

// Set stores a value, keeping the key's original position when it exists
func (o *Object) Set(key string, v interface{}) {
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = v
}

// Map returns a plain copy of the object's top level
func (o *Object) Map() map[string]interface{} {
	out := make(map[string]interface{}, len(o.keys))
	for _, k := range o.keys {
		out[k] = o.values[k]
	}
	return out
}

// FromJSON decodes a JSON document into template data. Objects become
// *Object, arrays []interface{}, numbers int64 when integral and float64
// otherwise.
func FromJSON(raw []byte) (interface{}, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("invalid JSON data")
	}
	return convert(gjson.ParseBytes(raw)), nil
}

// FromJSONPath decodes the value at a gjson path, such as "payload.user".
// Missing paths yield nil.
func FromJSONPath(raw []byte, path string) (interface{}, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("invalid JSON data")
	}
	r := gjson.GetBytes(raw, path)
	if !r.Exists() {
		return nil, nil
	}
	return convert(r), nil
}

func convert(r gjson.Result) interface{} {
	switch r.Type {
	case gjson.Null:
		return nil
	case gjson.False:
		return false
	case gjson.True:
		return true
	case gjson.String:
		return r.Str
	case gjson.Number:
		if i := r.Int(); float64(i) == r.Num {
			return i
		}
		return r.Num
	}

	if r.IsArray() {
		items := r.Array()
		out := make([]interface{}, len(items))
		for i, item := range items {
			out[i] = convert(item)
		}
		return out
	}

	obj := NewObject()
	r.ForEach(func(key, value gjson.Result) bool {
		obj.Set(key.Str, convert(value))
		return true
	})
	return obj
}

// Merge overlays src onto dst. Nested objects merge key by key; any other
// value in src replaces the one in dst.
func Merge(dst, src *Object) *Object {
	out := NewObject()
	for _, k := range dst.Keys() {
		v, _ := dst.Get(k)
		out.Set(k, v)
	}
	for _, k := range src.Keys() {
		v, _ := src.Get(k)
		if nested, ok := v.(*Object); ok {
			if existing, ok := out.values[k].(*Object); ok {
				v = Merge(existing, nested)
			}
		}
		out.Set(k, v)
	}
	return out
}
