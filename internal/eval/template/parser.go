package template

import (
	"strings"
	"unicode"
)

type openSection struct {
	node Node
	name string
	list *ListNode
	pos  Pos
	// chained frames come from {{else name ...}} and close with their parent
	chained bool
	inElse  bool
}

type parser struct {
	name  string
	root  *ListNode
	stack []*openSection
}

// parse builds the tree for a token stream. Standalone lines and "~"
// markers are resolved on the tokens before the tree is built.
func parse(name string, toks []Token) (*ListNode, error) {
	toks = whitespaceControl(toks)
	p := &parser{
		name: name,
		root: &ListNode{Pos: Pos{Line: 1, Col: 1}},
	}
	for _, tok := range toks {
		if err := p.token(tok); err != nil {
			return nil, withTemplate(err, name)
		}
	}
	for i := len(p.stack) - 1; i >= 0; i-- {
		if open := p.stack[i]; !open.chained {
			return nil, &UnclosedSectionError{Template: name, Name: open.name, Pos: open.pos}
		}
	}
	return p.root, nil
}

func (p *parser) current() *ListNode {
	if len(p.stack) == 0 {
		return p.root
	}
	return p.stack[len(p.stack)-1].list
}

func (p *parser) push(open *openSection) {
	p.stack = append(p.stack, open)
}

func (p *parser) pop() *openSection {
	top := p.stack[len(p.stack)-1]
	p.stack = p.stack[:len(p.stack)-1]
	return top
}

func (p *parser) token(tok Token) error {
	switch tok.Type {
	case TokenText:
		if tok.Value != "" {
			p.current().append(&TextNode{Pos: tok.Pos, Text: tok.Value})
		}
		return nil
	case TokenComment:
		p.current().append(&CommentNode{Pos: tok.Pos, Text: tok.Value})
		return nil
	case TokenCloseTag:
		return p.close(tok)
	}

	switch tok.Kind {
	case KindEscaped, KindUnescaped:
		expr, blockParams, err := parseExpression(tok.Value, tok.Pos)
		if err != nil {
			return err
		}
		if blockParams != nil {
			return newSyntaxError(tok.Pos, "block params are only valid on block helpers")
		}
		p.current().append(&VariableNode{Pos: tok.Pos, Expr: expr, Unescaped: tok.Kind == KindUnescaped})
	case KindSection:
		expr, blockParams, err := p.blockExpression(tok)
		if err != nil {
			return err
		}
		node := &SectionNode{Pos: tok.Pos, Expr: expr, BlockParams: blockParams, Body: &ListNode{Pos: tok.Pos}}
		p.current().append(node)
		p.push(&openSection{node: node, name: expr.sectionName(), list: node.Body, pos: tok.Pos})
	case KindInverted:
		expr, blockParams, err := p.blockExpression(tok)
		if err != nil {
			return err
		}
		if blockParams != nil {
			return newSyntaxError(tok.Pos, "block params are not valid on inverted sections")
		}
		node := &InvertedSectionNode{Pos: tok.Pos, Expr: expr, Body: &ListNode{Pos: tok.Pos}}
		p.current().append(node)
		p.push(&openSection{node: node, name: expr.sectionName(), list: node.Body, pos: tok.Pos})
	case KindPartial, KindPartialBlock:
		node, err := parsePartial(tok)
		if err != nil {
			return err
		}
		p.current().append(node)
		if tok.Kind == KindPartialBlock {
			node.Block = &ListNode{Pos: tok.Pos}
			p.push(&openSection{node: node, name: node.Name.Source(), list: node.Block, pos: tok.Pos})
		}
	case KindElse:
		return p.elseTag(tok)
	case KindDelimiters:
		// applied by the lexer
	}
	return nil
}

func (p *parser) blockExpression(tok Token) (*Expression, []string, error) {
	expr, blockParams, err := parseExpression(tok.Value, tok.Pos)
	if err != nil {
		return nil, nil, err
	}
	if _, ok := expr.Head.(*PathExpr); !ok {
		return nil, nil, newSyntaxError(tok.Pos, "section name must be a path, got %q", expr.Head.Source())
	}
	return expr, blockParams, nil
}

func parsePartial(tok Token) (*PartialNode, error) {
	expr, blockParams, err := parseExpression(tok.Value, tok.Pos)
	if err != nil {
		return nil, err
	}
	if blockParams != nil {
		return nil, newSyntaxError(tok.Pos, "block params are not valid on partials")
	}
	if len(expr.Params) > 1 {
		return nil, newSyntaxError(tok.Pos, "partial %q accepts at most one context parameter", expr.Head.Source())
	}
	node := &PartialNode{Pos: tok.Pos, Name: expr.Head, Hash: expr.Hash, Indent: tok.Indent}
	if len(expr.Params) == 1 {
		node.Context = expr.Params[0]
	}
	return node, nil
}

func (p *parser) elseTag(tok Token) error {
	if len(p.stack) == 0 {
		return newSyntaxError(tok.Pos, "{{else}} outside of a section")
	}
	top := p.stack[len(p.stack)-1]
	if top.inElse {
		return newSyntaxError(tok.Pos, "duplicate {{else}} in section %q", top.name)
	}
	elseList := &ListNode{Pos: tok.Pos}
	switch n := top.node.(type) {
	case *SectionNode:
		n.Else = elseList
	case *InvertedSectionNode:
		n.Else = elseList
	default:
		return newSyntaxError(tok.Pos, "{{else}} is not valid in partial block %q", top.name)
	}
	top.inElse = true
	top.list = elseList
	if tok.Value == "" {
		return nil
	}

	// {{else if x}} opens a section that closes together with its parent
	expr, blockParams, err := parseExpression(tok.Value, tok.Pos)
	if err != nil {
		return err
	}
	chained := &SectionNode{Pos: tok.Pos, Expr: expr, BlockParams: blockParams, Body: &ListNode{Pos: tok.Pos}}
	elseList.append(chained)
	p.push(&openSection{node: chained, name: top.name, list: chained.Body, pos: tok.Pos, chained: true})
	return nil
}

func (p *parser) close(tok Token) error {
	name := tok.Value
	for len(p.stack) > 0 && p.stack[len(p.stack)-1].chained {
		p.pop()
	}
	if len(p.stack) == 0 {
		return &MismatchedSectionError{Close: name, Pos: tok.Pos}
	}
	top := p.pop()
	if top.name != name {
		return &MismatchedSectionError{Open: top.name, OpenPos: top.pos, Close: name, Pos: tok.Pos}
	}
	return nil
}

// whitespaceControl returns a copy of toks with standalone lines removed and
// "~" markers applied. Standalone decisions are made on the original text so
// that neighbouring tags do not affect each other.
func whitespaceControl(toks []Token) []Token {
	out := make([]Token, len(toks))
	copy(out, toks)

	cutHead := make([]int, len(out))
	cutTail := make([]int, len(out))
	for i, tok := range toks {
		if !tok.standaloneEligible() {
			continue
		}
		indent, ok := blankBefore(toks, i)
		if !ok {
			continue
		}
		head, ok := blankAfter(toks, i)
		if !ok {
			continue
		}
		if i > 0 {
			cutTail[i-1] = len(indent)
		}
		if i+1 < len(toks) {
			cutHead[i+1] = head
		}
		out[i].Standalone = true
		if tok.Kind == KindPartial {
			out[i].Indent = indent
		}
	}
	for i := range out {
		if out[i].Type != TokenText {
			continue
		}
		v := toks[i].Value
		out[i].Value = v[cutHead[i] : len(v)-cutTail[i]]
	}

	for i := range out {
		if out[i].TrimLeft && i > 0 && out[i-1].Type == TokenText {
			out[i-1].Value = strings.TrimRightFunc(out[i-1].Value, unicode.IsSpace)
		}
		if out[i].TrimRight && i+1 < len(out) && out[i+1].Type == TokenText {
			out[i+1].Value = strings.TrimLeftFunc(out[i+1].Value, unicode.IsSpace)
		}
	}
	return out
}

// blankBefore reports whether the tag at i starts its line, returning the
// indentation in front of it
func blankBefore(toks []Token, i int) (string, bool) {
	if i == 0 {
		return "", true
	}
	prev := toks[i-1]
	if prev.Type != TokenText {
		return "", false
	}
	nl := strings.LastIndexByte(prev.Value, '\n')
	if nl < 0 && i-1 != 0 {
		return "", false
	}
	tail := prev.Value[nl+1:]
	if !isBlank(tail) {
		return "", false
	}
	return tail, true
}

// blankAfter reports whether the tag at i ends its line, returning how many
// bytes of the following text belong to that line
func blankAfter(toks []Token, i int) (int, bool) {
	if i+1 >= len(toks) {
		return 0, true
	}
	next := toks[i+1]
	if next.Type != TokenText {
		return 0, false
	}
	nl := strings.IndexByte(next.Value, '\n')
	if nl < 0 {
		if i+1 != len(toks)-1 || !isBlank(next.Value) {
			return 0, false
		}
		return len(next.Value), true
	}
	if !isBlank(next.Value[:nl]) {
		return 0, false
	}
	return nl + 1, true
}

func isBlank(s string) bool {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\r':
		default:
			return false
		}
	}
	return true
}
