package template

import "fmt"

// TokenType classifies a lexical token
type TokenType int

const (
	TokenText     TokenType = iota // raw text between tags
	TokenOpenTag                   // any tag that is not a section close
	TokenCloseTag                  // {{/name}}
	TokenComment                   // {{! ... }} and {{!-- ... --}}
)

func (t TokenType) String() string {
	switch t {
	case TokenText:
		return "text"
	case TokenOpenTag:
		return "open"
	case TokenCloseTag:
		return "close"
	case TokenComment:
		return "comment"
	default:
		return fmt.Sprintf("token(%d)", int(t))
	}
}

// TagKind is the stache kind of a tag token
type TagKind int

const (
	KindNone         TagKind = iota // text tokens
	KindEscaped                     // {{x}}
	KindUnescaped                   // {{{x}}} or {{&x}}
	KindSection                     // {{#x}}
	KindInverted                    // {{^x}}
	KindElse                        // {{else}}, {{^}}, {{else if x}}
	KindPartial                     // {{> x}}
	KindPartialBlock                // {{#> x}}
	KindClose                       // {{/x}}
	KindComment                     // {{! x}}
	KindDelimiters                  // {{=<% %>=}}
)

var tagKindNames = map[TagKind]string{
	KindNone:         "none",
	KindEscaped:      "escaped",
	KindUnescaped:    "unescaped",
	KindSection:      "section",
	KindInverted:     "inverted",
	KindElse:         "else",
	KindPartial:      "partial",
	KindPartialBlock: "partial-block",
	KindClose:        "close",
	KindComment:      "comment",
	KindDelimiters:   "delimiters",
}

func (k TagKind) String() string {
	if name, ok := tagKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Pos is a 1-based line/column position in template source
type Pos struct {
	Line int
	Col  int
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// Token is one unit produced by the tokenizer
type Token struct {
	Type TokenType
	Kind TagKind
	// Value is the text of a text token, or the trimmed tag content after the
	// kind marker for tags
	Value string
	// Raw is the source slice covered by the token, delimiters included
	Raw       string
	Pos       Pos
	TrimLeft  bool
	TrimRight bool

	// set by the whitespace pass for standalone tags
	Standalone bool
	Indent     string
}

func (t Token) String() string {
	if t.Type == TokenText {
		return fmt.Sprintf("%s %s %q", t.Pos, t.Type, t.Value)
	}
	return fmt.Sprintf("%s %s(%s) %q", t.Pos, t.Type, t.Kind, t.Value)
}

// standaloneEligible reports whether the tag may swallow its own line
func (t Token) standaloneEligible() bool {
	switch t.Type {
	case TokenCloseTag, TokenComment:
		return true
	case TokenOpenTag:
		switch t.Kind {
		case KindSection, KindInverted, KindElse, KindPartial, KindPartialBlock, KindDelimiters:
			return true
		}
	}
	return false
}
