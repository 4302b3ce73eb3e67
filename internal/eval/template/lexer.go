package template

import (
	"strings"
	"unicode/utf8"
)

const (
	// DefaultOpenDelim opens a tag unless redefined
	DefaultOpenDelim = "{{"
	// DefaultCloseDelim closes a tag unless redefined
	DefaultCloseDelim = "}}"
)

type lexer struct {
	src   string
	pos   int
	line  int
	col   int
	open  string
	close string

	text    strings.Builder
	textPos Pos

	tokens []Token
	err    error
}

type lexerState func(l *lexer) lexerState

// lex scans src into tokens. Delimiter redefinitions only live for this call.
func lex(src, open, close string) ([]Token, error) {
	if open == "" {
		open = DefaultOpenDelim
	}
	if close == "" {
		close = DefaultCloseDelim
	}
	l := &lexer{
		src:   src,
		line:  1,
		col:   1,
		open:  open,
		close: close,
	}
	for state := lexText; state != nil; {
		state = state(l)
	}
	if l.err != nil {
		return nil, l.err
	}
	return l.tokens, nil
}

func (l *lexer) here() Pos {
	return Pos{Line: l.line, Col: l.col}
}

// advance moves pos to offset, keeping line/column current
func (l *lexer) advance(to int) {
	for l.pos < to {
		r, w := utf8.DecodeRuneInString(l.src[l.pos:])
		if r == '\n' {
			l.line++
			l.col = 1
		} else {
			l.col++
		}
		l.pos += w
	}
}

// appendText buffers src[pos:to] as pending text
func (l *lexer) appendText(to int) {
	if to <= l.pos {
		return
	}
	if l.text.Len() == 0 {
		l.textPos = l.here()
	}
	l.text.WriteString(l.src[l.pos:to])
	l.advance(to)
}

func (l *lexer) flushText() {
	if l.text.Len() == 0 {
		return
	}
	s := l.text.String()
	l.tokens = append(l.tokens, Token{
		Type:  TokenText,
		Kind:  KindNone,
		Value: s,
		Raw:   s,
		Pos:   l.textPos,
	})
	l.text.Reset()
}

func (l *lexer) errorf(pos Pos, format string, args ...interface{}) lexerState {
	l.err = newSyntaxError(pos, format, args...)
	return nil
}

func lexText(l *lexer) lexerState {
	for {
		i := strings.Index(l.src[l.pos:], l.open)
		if i < 0 {
			l.appendText(len(l.src))
			l.flushText()
			return nil
		}
		at := l.pos + i
		if at > l.pos && l.src[at-1] == '\\' {
			if at-1 > l.pos && l.src[at-2] == '\\' {
				// "\\{{" is a literal backslash followed by a real tag
				l.appendText(at - 1)
				l.advance(at)
				l.flushText()
				return lexTag
			}
			// "\{{" is a literal open delimiter
			l.appendText(at - 1)
			l.advance(at)
			l.appendText(at + len(l.open))
			continue
		}
		l.appendText(at)
		l.flushText()
		return lexTag
	}
}

func lexTag(l *lexer) lexerState {
	start := l.pos
	pos := l.here()
	i := start + len(l.open)

	tok := Token{Type: TokenOpenTag, Kind: KindEscaped, Pos: pos}
	if strings.HasPrefix(l.src[i:], "~") {
		tok.TrimLeft = true
		i++
	}

	if strings.HasPrefix(l.src[i:], "{{") {
		return l.errorf(pos, "raw blocks are not supported")
	}
	if strings.HasPrefix(l.src[i:], "{") {
		tok.Kind = KindUnescaped
		return l.lexTagBody(tok, start, i+1, true, "}~"+l.close, "}"+l.close)
	}

	if i >= len(l.src) {
		return l.errorf(pos, "unclosed tag %q", l.src[start:])
	}

	switch l.src[i] {
	case '!':
		tok.Type = TokenComment
		tok.Kind = KindComment
		if strings.HasPrefix(l.src[i:], "!--") {
			return l.lexComment(tok, start, i+3, "--~"+l.close, "--"+l.close)
		}
		return l.lexComment(tok, start, i+1, "~"+l.close, l.close)
	case '=':
		return l.lexDelimiters(tok, start, i+1)
	case '#':
		if strings.HasPrefix(l.src[i:], "#>") {
			tok.Kind = KindPartialBlock
			i += 2
		} else if strings.HasPrefix(l.src[i:], "#*") {
			return l.errorf(pos, "decorators are not supported")
		} else {
			tok.Kind = KindSection
			i++
		}
	case '^':
		tok.Kind = KindInverted
		i++
	case '/':
		tok.Type = TokenCloseTag
		tok.Kind = KindClose
		i++
	case '>':
		tok.Kind = KindPartial
		i++
	case '&':
		tok.Kind = KindUnescaped
		i++
	}
	return l.lexTagBody(tok, start, i, false, "~"+l.close, l.close)
}

// lexTagBody finds the end of a tag whose content starts at i. trimClose
// is tried before plainClose so that a "~" marker is recognized.
func (l *lexer) lexTagBody(tok Token, start, i int, triple bool, trimClose, plainClose string) lexerState {
	end, matched := l.findClose(i, trimClose, plainClose)
	if end < 0 {
		if triple {
			return l.errorf(tok.Pos, "unclosed triple-stache starting with %q", excerpt(l.src[start:]))
		}
		return l.errorf(tok.Pos, "unclosed tag starting with %q", excerpt(l.src[start:]))
	}
	tok.TrimRight = matched == trimClose
	tok.Value = strings.TrimSpace(l.src[i:end])
	tok.Raw = l.src[start : end+len(matched)]

	switch tok.Kind {
	case KindEscaped:
		if tok.Value == "else" {
			tok.Kind = KindElse
			tok.Value = ""
		} else if strings.HasPrefix(tok.Value, "else ") || strings.HasPrefix(tok.Value, "else\t") {
			tok.Kind = KindElse
			tok.Value = strings.TrimSpace(tok.Value[len("else"):])
		}
	case KindInverted:
		if tok.Value == "" {
			tok.Kind = KindElse
		}
	}

	l.advance(end + len(matched))
	l.tokens = append(l.tokens, tok)
	return lexText
}

func (l *lexer) lexComment(tok Token, start, i int, trimClose, plainClose string) lexerState {
	end, matched := -1, ""
	for j := i; j < len(l.src); j++ {
		if strings.HasPrefix(l.src[j:], trimClose) {
			end, matched = j, trimClose
			break
		}
		if strings.HasPrefix(l.src[j:], plainClose) {
			end, matched = j, plainClose
			break
		}
	}
	if end < 0 {
		return l.errorf(tok.Pos, "unclosed comment starting with %q", excerpt(l.src[start:]))
	}
	tok.TrimRight = matched == trimClose
	tok.Value = strings.TrimSpace(l.src[i:end])
	tok.Raw = l.src[start : end+len(matched)]
	l.advance(end + len(matched))
	l.tokens = append(l.tokens, tok)
	return lexText
}

// lexDelimiters handles {{=<% %>=}}; the new pair applies to the rest of the input
func (l *lexer) lexDelimiters(tok Token, start, i int) lexerState {
	terminator := "=" + l.close
	j := strings.Index(l.src[i:], terminator)
	if j < 0 {
		return l.errorf(tok.Pos, "unclosed delimiter redefinition")
	}
	end := i + j
	parts := strings.Fields(l.src[i:end])
	if len(parts) != 2 {
		return l.errorf(tok.Pos, "delimiter redefinition needs exactly two delimiters, got %q", l.src[i:end])
	}
	for _, p := range parts {
		if strings.Contains(p, "=") {
			return l.errorf(tok.Pos, "delimiter %q may not contain '='", p)
		}
	}
	tok.Kind = KindDelimiters
	tok.Value = parts[0] + " " + parts[1]
	tok.Raw = l.src[start : end+len(terminator)]
	l.advance(end + len(terminator))
	l.tokens = append(l.tokens, tok)
	l.open, l.close = parts[0], parts[1]
	return lexText
}

// findClose returns the offset of the first closing delimiter at or after i,
// skipping over quoted strings inside the tag.
func (l *lexer) findClose(i int, delims ...string) (int, string) {
	contentStart := i
	for j := i; j < len(l.src); j++ {
		c := l.src[j]
		if (c == '"' || c == '\'') && quoteCanOpen(l.src, contentStart, j) {
			if k := strings.IndexByte(l.src[j+1:], c); k >= 0 {
				j += k + 1
				continue
			}
		}
		for _, d := range delims {
			if strings.HasPrefix(l.src[j:], d) {
				return j, d
			}
		}
	}
	return -1, ""
}

func quoteCanOpen(src string, contentStart, j int) bool {
	if j == contentStart {
		return true
	}
	switch src[j-1] {
	case ' ', '\t', '\n', '\r', '=', '(':
		return true
	}
	return false
}

func excerpt(s string) string {
	const max = 20
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
