// Package helpers provides the standard helper set registered on the
// worker's template engine.
//
// Text: uppercase, lowercase, trim, join, len.
// Values: default.
// Comparisons: eq, ne, gt, lt, contains. Inline they write true or false;
// as blocks they render the body or the {{else}} branch.
//
//	{{#eq status "open"}}Open{{else}}Closed{{/eq}}
//	{{join tags ", "}}
package helpers
