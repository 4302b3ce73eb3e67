package template

import (
	"strconv"
	"strings"
)

// exprParser parses the content of a single tag: a head, positional
// parameters, named parameters and optional block params.
type exprParser struct {
	src string
	i   int
	pos Pos
}

func parseExpression(src string, pos Pos) (*Expression, []string, error) {
	p := &exprParser{src: src, pos: pos}
	expr, err := p.expression(0)
	if err != nil {
		return nil, nil, err
	}
	var blockParams []string
	p.skipSpace()
	if p.atBlockParams() {
		if blockParams, err = p.blockParams(); err != nil {
			return nil, nil, err
		}
	}
	p.skipSpace()
	if !p.eof() {
		return nil, nil, p.errorf("unexpected %q", p.src[p.i:])
	}
	return expr, blockParams, nil
}

func (p *exprParser) errorf(format string, args ...interface{}) error {
	return newSyntaxError(p.pos, format, args...)
}

func (p *exprParser) eof() bool {
	return p.i >= len(p.src)
}

func (p *exprParser) peek() byte {
	return p.src[p.i]
}

func (p *exprParser) skipSpace() {
	for !p.eof() && isSpace(p.peek()) {
		p.i++
	}
}

func (p *exprParser) expression(closing byte) (*Expression, error) {
	p.skipSpace()
	start := p.i
	if p.eof() || (closing != 0 && p.peek() == closing) {
		return nil, p.errorf("empty expression")
	}
	head, err := p.param()
	if err != nil {
		return nil, err
	}
	expr := &Expression{Head: head}
	for {
		p.skipSpace()
		if p.eof() || (closing != 0 && p.peek() == closing) {
			break
		}
		if closing == 0 && p.atBlockParams() {
			break
		}
		if key, ok := p.hashKey(); ok {
			v, err := p.param()
			if err != nil {
				return nil, err
			}
			expr.Hash = append(expr.Hash, HashPair{Key: key, Value: v})
			continue
		}
		if len(expr.Hash) > 0 {
			return nil, p.errorf("positional parameter after named parameters in %q", p.src)
		}
		v, err := p.param()
		if err != nil {
			return nil, err
		}
		expr.Params = append(expr.Params, v)
	}
	expr.Original = strings.TrimSpace(p.src[start:p.i])
	return expr, nil
}

func (p *exprParser) param() (Param, error) {
	p.skipSpace()
	if p.eof() {
		return nil, p.errorf("expected a parameter in %q", p.src)
	}
	c := p.peek()
	switch {
	case c == '(':
		start := p.i
		p.i++
		sub, err := p.expression(')')
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.eof() || p.peek() != ')' {
			return nil, p.errorf("unclosed sub-expression in %q", p.src)
		}
		p.i++
		return &SubExpr{Original: p.src[start:p.i], Expr: sub}, nil
	case c == '"' || c == '\'':
		return p.stringLiteral(c)
	case isDigit(c) || (c == '-' && p.i+1 < len(p.src) && isDigit(p.src[p.i+1])):
		return p.number()
	case c == ')' || c == '=' || c == '|':
		return nil, p.errorf("unexpected %q in %q", string(c), p.src)
	default:
		return p.path()
	}
}

func (p *exprParser) stringLiteral(quote byte) (Param, error) {
	start := p.i
	p.i++
	var b strings.Builder
	for !p.eof() {
		c := p.peek()
		if c == '\\' && p.i+1 < len(p.src) && p.src[p.i+1] == quote {
			b.WriteByte(quote)
			p.i += 2
			continue
		}
		if c == quote {
			p.i++
			return &LiteralExpr{Original: p.src[start:p.i], Value: b.String()}, nil
		}
		b.WriteByte(c)
		p.i++
	}
	return nil, p.errorf("unterminated string literal in %q", p.src)
}

func (p *exprParser) number() (Param, error) {
	start := p.i
	for !p.eof() && !isSpace(p.peek()) && !isDelimiter(p.peek()) {
		p.i++
	}
	raw := p.src[start:p.i]
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return &LiteralExpr{Original: raw, Value: n}, nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return &LiteralExpr{Original: raw, Value: f}, nil
	}
	return nil, p.errorf("invalid number literal %q", raw)
}

func (p *exprParser) path() (Param, error) {
	start := p.i
	for !p.eof() {
		c := p.peek()
		if c == '[' {
			j := strings.IndexByte(p.src[p.i:], ']')
			if j < 0 {
				return nil, p.errorf("unclosed '[' in %q", p.src)
			}
			p.i += j + 1
			continue
		}
		if c == '{' || c == '}' {
			return nil, p.errorf("unexpected %q in %q", string(c), p.src)
		}
		if isSpace(c) || isDelimiter(c) {
			break
		}
		p.i++
	}
	raw := p.src[start:p.i]
	if raw == "" {
		return nil, p.errorf("unexpected %q in %q", string(p.peek()), p.src)
	}
	switch raw {
	case "true":
		return &LiteralExpr{Original: raw, Value: true}, nil
	case "false":
		return &LiteralExpr{Original: raw, Value: false}, nil
	case "null":
		return &LiteralExpr{Original: raw, Value: nil}, nil
	case "undefined":
		return &LiteralExpr{Original: raw, Value: Undefined}, nil
	}
	path, err := parsePath(raw)
	if err != nil {
		return nil, p.errorf("%v", err)
	}
	return path, nil
}

// hashKey consumes "key=" when present
func (p *exprParser) hashKey() (string, bool) {
	j := p.i
	for j < len(p.src) && isIDChar(p.src[j]) {
		j++
	}
	if j == p.i {
		return "", false
	}
	k := j
	for k < len(p.src) && isSpace(p.src[k]) {
		k++
	}
	if k >= len(p.src) || p.src[k] != '=' {
		return "", false
	}
	key := p.src[p.i:j]
	p.i = k + 1
	p.skipSpace()
	return key, true
}

func (p *exprParser) atBlockParams() bool {
	rest := p.src[p.i:]
	if !strings.HasPrefix(rest, "as") {
		return false
	}
	rest = rest[2:]
	trimmed := strings.TrimLeft(rest, " \t\r\n")
	return len(trimmed) < len(rest) && strings.HasPrefix(trimmed, "|")
}

// blockParams parses "as |a b|"
func (p *exprParser) blockParams() ([]string, error) {
	p.i += 2
	p.skipSpace()
	p.i++ // opening '|'
	end := strings.IndexByte(p.src[p.i:], '|')
	if end < 0 {
		return nil, p.errorf("unclosed block params in %q", p.src)
	}
	names := strings.Fields(p.src[p.i : p.i+end])
	if len(names) == 0 {
		return nil, p.errorf("empty block params in %q", p.src)
	}
	for _, n := range names {
		for i := 0; i < len(n); i++ {
			if !isIDChar(n[i]) {
				return nil, p.errorf("invalid block param %q", n)
			}
		}
	}
	p.i += end + 1
	return names, nil
}

// parsePath splits a path expression into its parent depth and segments
func parsePath(raw string) (*PathExpr, error) {
	pe := &PathExpr{Original: raw}
	s := raw
	if strings.HasPrefix(s, "@") {
		pe.Data = true
		s = s[1:]
	}
	for {
		if strings.HasPrefix(s, "../") {
			pe.Depth++
			s = s[3:]
			continue
		}
		if s == ".." {
			pe.Depth++
			s = ""
		}
		break
	}
	switch {
	case s == "this" || s == ".":
		pe.This = true
		s = ""
	case strings.HasPrefix(s, "this.") || strings.HasPrefix(s, "this/"):
		pe.This = true
		s = s[len("this."):]
	case strings.HasPrefix(s, "./"):
		pe.This = true
		s = s[2:]
	}
	if s == "" {
		if pe.Data {
			return nil, &pathError{raw}
		}
		return pe, nil
	}
	parts, err := splitSegments(raw, s)
	if err != nil {
		return nil, err
	}
	pe.Parts = parts
	return pe, nil
}

type pathError struct {
	path string
}

func (e *pathError) Error() string {
	return "invalid path " + strconv.Quote(e.path)
}

func splitSegments(raw, s string) ([]string, error) {
	var parts []string
	for len(s) > 0 {
		var seg string
		if s[0] == '[' {
			end := strings.IndexByte(s, ']')
			if end < 0 {
				return nil, &pathError{raw}
			}
			seg = s[1:end]
			s = s[end+1:]
			if seg == "" {
				return nil, &pathError{raw}
			}
		} else {
			end := strings.IndexAny(s, "./")
			if end < 0 {
				end = len(s)
			}
			seg = s[:end]
			s = s[end:]
			if seg == "" || seg == "this" || seg == ".." {
				return nil, &pathError{raw}
			}
		}
		parts = append(parts, seg)
		if len(s) > 0 {
			if s[0] != '.' && s[0] != '/' {
				return nil, &pathError{raw}
			}
			s = s[1:]
			if s == "" {
				return nil, &pathError{raw}
			}
		}
	}
	return parts, nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isDelimiter(c byte) bool {
	return c == '(' || c == ')' || c == '=' || c == '|'
}

func isIDChar(c byte) bool {
	if isSpace(c) || isDelimiter(c) {
		return false
	}
	switch c {
	case '.', '/', '[', ']', '"', '\'', '@', '{', '}':
		return false
	}
	return true
}
