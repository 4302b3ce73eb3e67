package helpers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aescanero/dago-node-template/internal/eval/template"
)

// All returns the standard helper set, keyed by name
func All() map[string]template.Helper {
	return map[string]template.Helper{
		"uppercase": uppercase,
		"lowercase": lowercase,
		"trim":      trim,
		"default":   defaultValue,
		"eq":        eq,
		"ne":        ne,
		"gt":        compare(func(a, b float64) bool { return a > b }),
		"lt":        compare(func(a, b float64) bool { return a < b }),
		"contains":  contains,
		"join":      join,
		"len":       length,
	}
}

// Register adds the standard helper set to an engine
func Register(e *template.Engine) error {
	return e.RegisterHelpers(All())
}

// uppercase helper
func uppercase(_ interface{}, opts *template.Options) (interface{}, error) {
	return strings.ToUpper(template.ToString(opts.Param(0))), nil
}

// lowercase helper
func lowercase(_ interface{}, opts *template.Options) (interface{}, error) {
	return strings.ToLower(template.ToString(opts.Param(0))), nil
}

// trim helper
func trim(_ interface{}, opts *template.Options) (interface{}, error) {
	return strings.TrimSpace(template.ToString(opts.Param(0))), nil
}

// default helper - return default value if first arg is empty
func defaultValue(_ interface{}, opts *template.Options) (interface{}, error) {
	v := opts.Param(0)
	if v == nil || template.IsUndefined(v) || v == "" {
		return opts.Param(1), nil
	}
	return v, nil
}

// eq helper - equality comparison. As a block it selects the body or the inverse.
func eq(_ interface{}, opts *template.Options) (interface{}, error) {
	return truth(opts, equal(opts.Param(0), opts.Param(1)))
}

// ne helper - inequality comparison
func ne(_ interface{}, opts *template.Options) (interface{}, error) {
	return truth(opts, !equal(opts.Param(0), opts.Param(1)))
}

// compare builds the numeric gt/lt helpers
func compare(cmp func(a, b float64) bool) template.Helper {
	return func(_ interface{}, opts *template.Options) (interface{}, error) {
		a, err := number(opts.Param(0))
		if err != nil {
			return nil, err
		}
		b, err := number(opts.Param(1))
		if err != nil {
			return nil, err
		}
		return truth(opts, cmp(a, b))
	}
}

// contains helper - check if string contains substring
func contains(_ interface{}, opts *template.Options) (interface{}, error) {
	return truth(opts, strings.Contains(template.ToString(opts.Param(0)), template.ToString(opts.Param(1))))
}

// join helper - join sequence elements with separator
func join(_ interface{}, opts *template.Options) (interface{}, error) {
	sep := ","
	if len(opts.Params) > 1 {
		sep = template.ToString(opts.Param(1))
	}
	var strs []string
	switch v := opts.Param(0).(type) {
	case []interface{}:
		for _, x := range v {
			strs = append(strs, template.ToString(x))
		}
	case []string:
		strs = v
	case template.List:
		for i := 0; i < v.Len(); i++ {
			strs = append(strs, template.ToString(v.Index(i)))
		}
	default:
		return template.ToString(v), nil
	}
	return strings.Join(strs, sep), nil
}

// len helper - get length of sequence, text or aggregate
func length(_ interface{}, opts *template.Options) (interface{}, error) {
	switch v := opts.Param(0).(type) {
	case string:
		return len(v), nil
	case []interface{}:
		return len(v), nil
	case []string:
		return len(v), nil
	case map[string]interface{}:
		return len(v), nil
	case template.List:
		return v.Len(), nil
	case template.Map:
		return len(v.Keys()), nil
	default:
		return 0, nil
	}
}

// truth returns b inline, or renders the matching branch inside a block
func truth(opts *template.Options, b bool) (interface{}, error) {
	if !opts.IsBlock() {
		return b, nil
	}
	if b {
		return opts.Fn()
	}
	return opts.Inverse()
}

// equal compares numbers by value and everything else by its text
func equal(a, b interface{}) bool {
	if x, err := number(a); err == nil {
		if y, err := number(b); err == nil {
			return x == y
		}
	}
	if template.IsUndefined(a) || template.IsUndefined(b) {
		return template.IsUndefined(a) && template.IsUndefined(b)
	}
	return template.ToString(a) == template.ToString(b)
}

func number(v interface{}) (float64, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case float32:
		return float64(n), nil
	case float64:
		return n, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", n)
		}
		return f, nil
	}
	return 0, fmt.Errorf("not a number: %v", v)
}
