package cel

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"go.uber.org/zap"

	"github.com/aescanero/dago-node-template/internal/eval/template"
)

// Evaluator evaluates CEL expressions against template data. Expressions
// see three variables: state (the root data), ctx (the current context)
// and hash (named arguments of the helper call).
type Evaluator struct {
	env    *cel.Env
	cache  map[string]cel.Program
	mu     sync.RWMutex
	logger *zap.Logger
}

// NewEvaluator creates a new CEL evaluator
func NewEvaluator(logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}

	env, err := cel.NewEnv(
		cel.Variable("state", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("ctx", cel.DynType),
		cel.Variable("hash", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to create CEL environment: %v", err))
	}

	return &Evaluator{
		env:    env,
		cache:  make(map[string]cel.Program),
		logger: logger,
	}
}

// Evaluate evaluates a CEL expression with the given variables. Missing
// variables are bound to empty values.
func (e *Evaluator) Evaluate(ctx context.Context, expression string, vars map[string]interface{}) (interface{}, error) {
	program, err := e.getProgram(expression)
	if err != nil {
		return nil, fmt.Errorf("failed to compile expression: %w", err)
	}

	activation := map[string]interface{}{
		"state": map[string]interface{}{},
		"ctx":   nil,
		"hash":  map[string]interface{}{},
	}
	for k, v := range vars {
		if v = Native(v); v != nil {
			activation[k] = v
		}
	}

	out, _, err := program.ContextEval(ctx, activation)
	if err != nil {
		return nil, fmt.Errorf("evaluation failed: %w", err)
	}

	return out.Value(), nil
}

// EvaluateBool evaluates a CEL expression that must produce a boolean
func (e *Evaluator) EvaluateBool(ctx context.Context, expression string, vars map[string]interface{}) (bool, error) {
	result, err := e.Evaluate(ctx, expression, vars)
	if err != nil {
		return false, err
	}
	matched, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("expression %q returned %T, expected bool", expression, result)
	}
	return matched, nil
}

// getProgram gets a compiled program from cache or compiles it
func (e *Evaluator) getProgram(expression string) (cel.Program, error) {
	// Check cache first (read lock)
	e.mu.RLock()
	if program, ok := e.cache[expression]; ok {
		e.mu.RUnlock()
		return program, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	// Check again in case another goroutine compiled it
	if program, ok := e.cache[expression]; ok {
		return program, nil
	}

	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("parse error: %w", issues.Err())
	}

	program, err := e.env.Program(ast, cel.InterruptCheckFrequency(100))
	if err != nil {
		return nil, fmt.Errorf("program generation error: %w", err)
	}

	e.cache[expression] = program
	e.logger.Debug("CEL expression compiled", zap.String("expression", expression))

	return program, nil
}

// ValidateExpression checks that a condition compiles and yields a boolean.
// Expressions whose type is only known at runtime (dyn) are accepted.
func (e *Evaluator) ValidateExpression(expression string) error {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return issues.Err()
	}

	out := ast.OutputType()
	if !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return fmt.Errorf("expression %q has type %s, expected bool", expression, out)
	}

	return nil
}

// ClearCache clears the compiled program cache
func (e *Evaluator) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache = make(map[string]cel.Program)
}

// Helper exposes the evaluator as a template helper named "cel".
//
// Inline, {{cel "expr"}} writes the result. As a block,
// {{#cel "expr"}}yes{{else}}no{{/cel}} renders the body when the result is
// truthy and the inverse otherwise.
func (e *Evaluator) Helper() template.Helper {
	return func(ctx interface{}, opts *template.Options) (interface{}, error) {
		expression, ok := opts.Param(0).(string)
		if !ok || len(opts.Params) != 1 {
			return nil, fmt.Errorf("cel requires exactly one expression argument")
		}

		root, _ := opts.Data("root")
		result, err := e.Evaluate(opts.Context(), expression, map[string]interface{}{
			"state": root,
			"ctx":   ctx,
			"hash":  opts.Hash,
		})
		if err != nil {
			return nil, err
		}

		if !opts.IsBlock() {
			return result, nil
		}
		if template.IsTruthy(result) {
			return opts.Fn()
		}
		return opts.Inverse()
	}
}

// Native converts template data into values the CEL type adapter accepts.
// Ordered maps and custom lists become plain maps and slices; undefined
// values become null.
func Native(v interface{}) interface{} {
	switch x := v.(type) {
	case nil:
		return nil
	case template.SafeString:
		return string(x)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, val := range x {
			out[k] = Native(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, val := range x {
			out[i] = Native(val)
		}
		return out
	case template.Map:
		keys := x.Keys()
		out := make(map[string]interface{}, len(keys))
		for _, k := range keys {
			val, _ := x.Get(k)
			out[k] = Native(val)
		}
		return out
	case template.List:
		out := make([]interface{}, x.Len())
		for i := range out {
			out[i] = Native(x.Index(i))
		}
		return out
	}
	if template.IsUndefined(v) {
		return nil
	}
	return v
}
