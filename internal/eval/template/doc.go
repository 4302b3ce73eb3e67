// Package template provides a Handlebars template engine for rendering LLM prompts.
//
// Templates are compiled once (tokenizer, parser, compiler) into an immutable
// Template that can be rendered concurrently. Helpers and partials live in
// registries owned by the Engine and are resolved by name at render time, so
// they may be registered after a template was compiled.
//
// Example usage:
//
//	engine := template.NewEngine(template.WithLogger(logger))
//
//	data := map[string]interface{}{
//	    "state": map[string]interface{}{
//	        "message": "Hello World",
//	        "tags":    []interface{}{"a", "b"},
//	    },
//	}
//
//	result, err := engine.Render("Message: {{state.message}}\n{{#each state.tags}}{{@index}}={{this}} {{/each}}", data)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	// Output: Message: Hello World
//	//         0=a 1=b
//
// Built-in helpers:
//   - if / unless - Conditional sections, includeZero=true treats 0 as truthy
//   - each - Iterate sequences (@index, @first, @last) and maps (@key)
//   - with - Push a value as the new context
//   - lookup - Dynamic field or index lookup
//   - log - Write parameters to the engine logger
//
// Custom helpers share the same contract:
//
//	engine.RegisterHelper("shout", func(ctx interface{}, opts *template.Options) (interface{}, error) {
//	    return strings.ToUpper(template.ToString(opts.Param(0))) + "!", nil
//	})
//
// Partials are registered up front or fetched through a Loader:
//
//	engine.RegisterPartialTemplate("user", "{{name}} <{{email}}>")
//	engine.Render("{{#each users}}{{> user}}\n{{/each}}", data)
//
// Options:
//   - WithDelimiters - initial delimiter pair ({{=<% %>=}} also works inline)
//   - WithStrictMode - unresolved paths fail with UndefinedVariableError
//   - WithStringParams - user helpers receive parameter source text
//   - WithEscaper - replace HTML escaping, e.g. NoEscape for plain prompts
//   - WithMaxDepth - bound nested sections and partials (RecursionLimitError)
//   - WithLoader - load missing partials on demand
package template
