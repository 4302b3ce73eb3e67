package template

import "strings"

// Escaper transforms variable output before it is written
type Escaper func(string) string

var htmlReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
	"`", "&#x60;",
	"=", "&#x3D;",
)

// HTMLEscaper is the default escaper
func HTMLEscaper(s string) string {
	if !strings.ContainsAny(s, "&<>\"'`=") {
		return s
	}
	return htmlReplacer.Replace(s)
}

// NoEscape writes values verbatim, for non-HTML output such as prompts
func NoEscape(s string) string { return s }
