package template

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"
)

type undefinedValue struct{}

func (undefinedValue) String() string { return "" }

// Undefined is the value of a path that does not resolve
var Undefined interface{} = undefinedValue{}

// IsUndefined reports whether v is the Undefined sentinel
func IsUndefined(v interface{}) bool {
	_, ok := v.(undefinedValue)
	return ok
}

// SafeString is helper output that is written without escaping
type SafeString string

// Map is an aggregate with its own key order, used by each for @key iteration
type Map interface {
	Get(key string) (interface{}, bool)
	Keys() []string
}

// List is a sequence that is not a Go slice
type List interface {
	Len() int
	Index(i int) interface{}
}

// field resolves one path segment against v. Missing fields report false.
func field(v interface{}, key string) (interface{}, bool) {
	switch m := v.(type) {
	case nil, undefinedValue:
		return nil, false
	case map[string]interface{}:
		x, ok := m[key]
		return x, ok
	case Map:
		return m.Get(key)
	case List:
		if key == "length" {
			return m.Len(), true
		}
		if i, ok := index(key, m.Len()); ok {
			return m.Index(i), true
		}
		return nil, false
	case []interface{}:
		if key == "length" {
			return len(m), true
		}
		if i, ok := index(key, len(m)); ok {
			return m[i], true
		}
		return nil, false
	case string:
		if key == "length" {
			return len(m), true
		}
		return nil, false
	}
	return reflectField(reflect.ValueOf(v), key)
}

func index(key string, n int) (int, bool) {
	i, err := strconv.Atoi(key)
	if err != nil || i < 0 || i >= n {
		return 0, false
	}
	return i, true
}

func reflectField(rv reflect.Value, key string) (interface{}, bool) {
	if m, ok := method(rv, key); ok {
		return m, true
	}
	rv = indirect(rv)
	if !rv.IsValid() {
		return nil, false
	}
	switch rv.Kind() {
	case reflect.Map:
		kt := rv.Type().Key()
		if kt.Kind() != reflect.String {
			return nil, false
		}
		x := rv.MapIndex(reflect.ValueOf(key).Convert(kt))
		if !x.IsValid() {
			return nil, false
		}
		return x.Interface(), true
	case reflect.Struct:
		idx, ok := structFields(rv.Type()).byName[key]
		if !ok {
			return nil, false
		}
		f, err := rv.FieldByIndexErr(idx)
		if err != nil {
			return nil, false
		}
		return f.Interface(), true
	case reflect.Slice, reflect.Array:
		if key == "length" {
			return rv.Len(), true
		}
		if i, ok := index(key, rv.Len()); ok {
			return rv.Index(i).Interface(), true
		}
	}
	return nil, false
}

// method calls a zero-argument, single-result exported method named key
func method(rv reflect.Value, key string) (interface{}, bool) {
	if !rv.IsValid() || key == "" || key[0] < 'A' || key[0] > 'Z' {
		return nil, false
	}
	m := rv.MethodByName(key)
	if !m.IsValid() {
		return nil, false
	}
	if t := m.Type(); t.NumIn() != 0 || t.NumOut() != 1 {
		return nil, false
	}
	if rv.Kind() == reflect.Ptr && rv.IsNil() {
		return nil, false
	}
	return m.Call(nil)[0].Interface(), true
}

func indirect(rv reflect.Value) reflect.Value {
	for rv.IsValid() && (rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface) {
		if rv.IsNil() {
			return reflect.Value{}
		}
		rv = rv.Elem()
	}
	return rv
}

type fieldSet struct {
	byName map[string][]int
	// names in declaration order, using the preferred lookup name
	names   []string
	indexes [][]int
}

var fieldCache sync.Map // reflect.Type -> *fieldSet

// structFields indexes exported fields by Go name, handlebars tag and json tag
func structFields(t reflect.Type) *fieldSet {
	if fs, ok := fieldCache.Load(t); ok {
		return fs.(*fieldSet)
	}
	fs := &fieldSet{byName: make(map[string][]int)}
	for _, f := range reflect.VisibleFields(t) {
		if !f.IsExported() || f.Anonymous {
			continue
		}
		jsonTag := tagName(f.Tag.Get("json"))
		if jsonTag == "-" {
			continue
		}
		name := f.Name
		fs.byName[f.Name] = f.Index
		if jsonTag != "" {
			fs.byName[jsonTag] = f.Index
			name = jsonTag
		}
		if tag := tagName(f.Tag.Get("handlebars")); tag != "" {
			fs.byName[tag] = f.Index
			name = tag
		}
		fs.names = append(fs.names, name)
		fs.indexes = append(fs.indexes, f.Index)
	}
	actual, _ := fieldCache.LoadOrStore(t, fs)
	return actual.(*fieldSet)
}

func tagName(tag string) string {
	if i := strings.IndexByte(tag, ','); i >= 0 {
		tag = tag[:i]
	}
	return tag
}

// sequence exposes v as an indexed sequence when it is one
func sequence(v interface{}) (int, func(int) interface{}, bool) {
	switch s := v.(type) {
	case []interface{}:
		return len(s), func(i int) interface{} { return s[i] }, true
	case []string:
		return len(s), func(i int) interface{} { return s[i] }, true
	case List:
		return s.Len(), s.Index, true
	case string, nil, undefinedValue, Map, map[string]interface{}:
		return 0, nil, false
	}
	rv := indirect(reflect.ValueOf(v))
	if !rv.IsValid() {
		return 0, nil, false
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return rv.Len(), func(i int) interface{} { return rv.Index(i).Interface() }, true
	}
	return 0, nil, false
}

// entries exposes v as an ordered set of key/value pairs. Map values keep
// their own order, Go maps are sorted by key and structs follow field order.
func entries(v interface{}) ([]string, func(string) interface{}, bool) {
	switch m := v.(type) {
	case nil, undefinedValue:
		return nil, nil, false
	case Map:
		return m.Keys(), func(k string) interface{} {
			x, _ := m.Get(k)
			return x
		}, true
	case map[string]interface{}:
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return keys, func(k string) interface{} { return m[k] }, true
	}
	rv := indirect(reflect.ValueOf(v))
	if !rv.IsValid() {
		return nil, nil, false
	}
	switch rv.Kind() {
	case reflect.Map:
		keys := make([]string, 0, rv.Len())
		byKey := make(map[string]reflect.Value, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k := fmt.Sprint(iter.Key().Interface())
			keys = append(keys, k)
			byKey[k] = iter.Value()
		}
		sort.Strings(keys)
		return keys, func(k string) interface{} { return byKey[k].Interface() }, true
	case reflect.Struct:
		fs := structFields(rv.Type())
		byKey := make(map[string][]int, len(fs.names))
		for i, n := range fs.names {
			byKey[n] = fs.indexes[i]
		}
		return fs.names, func(k string) interface{} {
			f, err := rv.FieldByIndexErr(byKey[k])
			if err != nil {
				return nil
			}
			return f.Interface()
		}, true
	}
	return nil, nil, false
}

// IsTruthy applies the section rules: undefined, nil, false, empty text,
// numeric zero and empty sequences are falsy. Aggregates are always truthy.
func IsTruthy(v interface{}) bool {
	switch x := v.(type) {
	case nil, undefinedValue:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case SafeString:
		return x != ""
	case int:
		return x != 0
	case int64:
		return x != 0
	case float64:
		return x != 0 && !math.IsNaN(x)
	case []interface{}:
		return len(x) > 0
	case map[string]interface{}, Map:
		return true
	case List:
		return x.Len() > 0
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return false
		}
		return IsTruthy(rv.Elem().Interface())
	case reflect.Slice, reflect.Array, reflect.String:
		return rv.Len() > 0
	case reflect.Bool:
		return rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		return f != 0 && !math.IsNaN(f)
	case reflect.Chan, reflect.Func:
		return !rv.IsNil()
	}
	return true
}

func isZeroNumber(v interface{}) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() == 0
	}
	return false
}

// ToString converts a resolved value to output text
func ToString(v interface{}) string {
	switch x := v.(type) {
	case nil, undefinedValue:
		return ""
	case string:
		return x
	case SafeString:
		return string(x)
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case fmt.Stringer:
		return x.String()
	case error:
		return x.Error()
	}
	if n, at, ok := sequence(v); ok {
		parts := make([]string, n)
		for i := 0; i < n; i++ {
			parts[i] = ToString(at(i))
		}
		return strings.Join(parts, ",")
	}
	rv := indirect(reflect.ValueOf(v))
	if !rv.IsValid() {
		return ""
	}
	return fmt.Sprint(rv.Interface())
}
