// Package cel provides a CEL (Common Expression Language) evaluator for
// template conditions.
//
// CEL is a non-Turing complete expression language that provides fast, safe
// evaluation. The evaluator is used in two places: the worker picks a
// template by matching rule conditions against request data, and templates
// can call it through the "cel" helper.
//
// Example usage:
//
//	evaluator := cel.NewEvaluator(logger)
//
//	vars := map[string]interface{}{
//	    "state": map[string]interface{}{
//	        "priority": "high",
//	        "score": 0.95,
//	    },
//	}
//
//	matched, err := evaluator.EvaluateBool(ctx, "state.priority == 'high'", vars)
//
// Inside a template, after engine.RegisterHelper("cel", evaluator.Helper()):
//
//	{{#cel "state.score > 0.9"}}confident{{else}}unsure{{/cel}}
//	{{cel "size(ctx.items)"}}
//
// Variables:
//   - state: the root data of the render
//   - ctx: the current context
//   - hash: named arguments of the helper call
package cel
