package template

import (
	"errors"
	"strings"

	"go.uber.org/zap"
)

func builtinHelpers() map[string]Helper {
	return map[string]Helper{
		"if":     ifHelper,
		"unless": unlessHelper,
		"each":   eachHelper,
		"with":   withHelper,
		"lookup": lookupHelper,
		"log":    logHelper,
	}
}

func conditional(opts *Options) (bool, error) {
	if len(opts.Params) != 1 {
		return false, errors.New("requires exactly one argument")
	}
	v := opts.Params[0]
	if IsTruthy(opts.HashValue("includeZero")) && isZeroNumber(v) {
		return true, nil
	}
	return IsTruthy(v), nil
}

func ifHelper(_ interface{}, opts *Options) (interface{}, error) {
	ok, err := conditional(opts)
	if err != nil {
		return nil, err
	}
	if ok {
		return opts.Fn()
	}
	return opts.Inverse()
}

func unlessHelper(_ interface{}, opts *Options) (interface{}, error) {
	ok, err := conditional(opts)
	if err != nil {
		return nil, err
	}
	if ok {
		return opts.Inverse()
	}
	return opts.Fn()
}

// eachHelper iterates sequences with @index/@first/@last and aggregates with
// @key/@first/@last. Block params receive the item and its index or key.
func eachHelper(_ interface{}, opts *Options) (interface{}, error) {
	if len(opts.Params) != 1 {
		return nil, errors.New("must pass exactly one iterator")
	}
	v := opts.Params[0]
	var b strings.Builder

	if n, at, ok := sequence(v); ok {
		for i := 0; i < n; i++ {
			item := at(i)
			f := opts.NewFrame(item, map[string]interface{}{
				"index": i,
				"key":   i,
				"first": i == 0,
				"last":  i == n-1,
			}, item, i)
			s, err := opts.FnFrame(f)
			if err != nil {
				return nil, err
			}
			b.WriteString(s)
		}
		if n > 0 {
			return b.String(), nil
		}
		return opts.Inverse()
	}

	if keys, get, ok := entries(v); ok && len(keys) > 0 {
		for i, k := range keys {
			item := get(k)
			f := opts.NewFrame(item, map[string]interface{}{
				"key":   k,
				"index": i,
				"first": i == 0,
				"last":  i == len(keys)-1,
			}, item, k)
			s, err := opts.FnFrame(f)
			if err != nil {
				return nil, err
			}
			b.WriteString(s)
		}
		return b.String(), nil
	}
	return opts.Inverse()
}

func withHelper(_ interface{}, opts *Options) (interface{}, error) {
	if len(opts.Params) != 1 {
		return nil, errors.New("requires exactly one argument")
	}
	v := opts.Params[0]
	if v == nil || IsUndefined(v) {
		return opts.Inverse()
	}
	return opts.FnFrame(opts.NewFrame(v, nil, v))
}

func lookupHelper(_ interface{}, opts *Options) (interface{}, error) {
	if len(opts.Params) != 2 {
		return nil, errors.New("requires an object and a key")
	}
	v, ok := field(opts.Params[0], ToString(opts.Params[1]))
	if !ok {
		return Undefined, nil
	}
	return v, nil
}

// logHelper writes its parameters to the engine logger. level= selects
// debug, info, warn or error.
func logHelper(_ interface{}, opts *Options) (interface{}, error) {
	parts := make([]string, len(opts.Params))
	for i, p := range opts.Params {
		parts[i] = ToString(p)
	}
	msg := strings.Join(parts, " ")
	logger := opts.Logger().With(zap.String("template", opts.r.tmpl.name))
	switch ToString(opts.HashValue("level")) {
	case "debug":
		logger.Debug(msg)
	case "warn":
		logger.Warn(msg)
	case "error":
		logger.Error(msg)
	default:
		logger.Info(msg)
	}
	return nil, nil
}
