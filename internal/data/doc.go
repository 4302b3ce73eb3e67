// Package data turns request payloads into template data.
//
// JSON objects decode into *Object, which keeps keys in document order so
// {{#each}} over an object renders keys as the sender wrote them.
//
//	ctx, err := data.FromJSON([]byte(`{"b": 1, "a": 2}`))
//	out, err := engine.Render("{{#each this}}{{@key}}{{/each}}", ctx) // "ba"
package data
