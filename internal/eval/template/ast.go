package template

import (
	"bytes"
	"fmt"
	"strings"
)

// NodeType identifies AST node variants
type NodeType int

const (
	NodeList NodeType = iota
	NodeText
	NodeVariable
	NodeSection
	NodeInvertedSection
	NodePartial
	NodeComment
)

// Node is an element of the parse tree. The renderer switches over the
// concrete types exhaustively.
type Node interface {
	Type() NodeType
	Position() Pos
	fmt.Stringer
}

// ListNode is an ordered sequence of nodes
type ListNode struct {
	Pos
	Nodes []Node
}

func (l *ListNode) Type() NodeType { return NodeList }
func (l *ListNode) Position() Pos  { return l.Pos }

func (l *ListNode) append(n Node) {
	l.Nodes = append(l.Nodes, n)
}

func (l *ListNode) String() string {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "[list")
	for _, n := range l.Nodes {
		fmt.Fprintf(&buf, "\t%s\n", strings.Replace(n.String(), "\n", "\n\t", -1))
	}
	fmt.Fprint(&buf, "]")
	return buf.String()
}

// TextNode is literal output
type TextNode struct {
	Pos
	Text string
}

func (t *TextNode) Type() NodeType { return NodeText }
func (t *TextNode) Position() Pos  { return t.Pos }
func (t *TextNode) String() string { return fmt.Sprintf("[text %q]", t.Text) }

// VariableNode outputs the value of an expression
type VariableNode struct {
	Pos
	Expr      *Expression
	Unescaped bool
}

func (v *VariableNode) Type() NodeType { return NodeVariable }
func (v *VariableNode) Position() Pos  { return v.Pos }

func (v *VariableNode) String() string {
	if v.Unescaped {
		return fmt.Sprintf("[variable& %s]", v.Expr)
	}
	return fmt.Sprintf("[variable %s]", v.Expr)
}

// SectionNode is a {{#name ...}} block
type SectionNode struct {
	Pos
	Expr        *Expression
	BlockParams []string
	Body        *ListNode
	Else        *ListNode
}

func (s *SectionNode) Type() NodeType { return NodeSection }
func (s *SectionNode) Position() Pos  { return s.Pos }

func (s *SectionNode) String() string {
	if s.Else != nil {
		return fmt.Sprintf("[section %s] %s | %s", s.Expr, s.Body, s.Else)
	}
	return fmt.Sprintf("[section %s] %s", s.Expr, s.Body)
}

// InvertedSectionNode is a {{^name}} block
type InvertedSectionNode struct {
	Pos
	Expr *Expression
	Body *ListNode
	Else *ListNode
}

func (s *InvertedSectionNode) Type() NodeType { return NodeInvertedSection }
func (s *InvertedSectionNode) Position() Pos  { return s.Pos }

func (s *InvertedSectionNode) String() string {
	return fmt.Sprintf("[inverted %s] %s", s.Expr, s.Body)
}

// PartialNode is a {{> name}} reference, or a {{#> name}} partial block when
// Block is set
type PartialNode struct {
	Pos
	Name    Param
	Context Param
	Hash    []HashPair
	// Indent is the whitespace a standalone partial tag was indented with
	Indent string
	Block  *ListNode
}

func (p *PartialNode) Type() NodeType { return NodePartial }
func (p *PartialNode) Position() Pos  { return p.Pos }

func (p *PartialNode) String() string {
	return fmt.Sprintf("[partial %s]", p.Name.Source())
}

// CommentNode is dropped by the compiler
type CommentNode struct {
	Pos
	Text string
}

func (c *CommentNode) Type() NodeType { return NodeComment }
func (c *CommentNode) Position() Pos  { return c.Pos }
func (c *CommentNode) String() string { return fmt.Sprintf("[comment %q]", c.Text) }

// Expression is a head followed by positional and named parameters
type Expression struct {
	Head     Param
	Params   []Param
	Hash     []HashPair
	Original string
}

func (e *Expression) String() string {
	return e.Original
}

// HelperName is the name a helper would be registered under, or "" when the
// head is not a simple identifier
func (e *Expression) HelperName() string {
	if p, ok := e.Head.(*PathExpr); ok && !p.Data && !p.This && p.Depth == 0 && len(p.Parts) == 1 {
		return p.Parts[0]
	}
	return ""
}

func (e *Expression) hasArgs() bool {
	return len(e.Params) > 0 || len(e.Hash) > 0
}

// sectionName is what the matching close tag must repeat
func (e *Expression) sectionName() string {
	return e.Head.Source()
}

// HashPair is a named parameter
type HashPair struct {
	Key   string
	Value Param
}

// Param is a parameter expression: *PathExpr, *LiteralExpr or *SubExpr
type Param interface {
	// Source is the parameter as written in the template
	Source() string
	paramNode()
}

// PathExpr is a context lookup such as "a.b", "../x", "this" or "@index"
type PathExpr struct {
	Original string
	Data     bool
	Depth    int
	This     bool
	Parts    []string
}

func (p *PathExpr) Source() string { return p.Original }
func (p *PathExpr) paramNode()     {}

// LiteralExpr is a string, number, boolean, null or undefined literal
type LiteralExpr struct {
	Original string
	Value    interface{}
}

func (l *LiteralExpr) Source() string { return l.Original }
func (l *LiteralExpr) paramNode()     {}

// SubExpr is a parenthesized helper call
type SubExpr struct {
	Original string
	Expr     *Expression
}

func (s *SubExpr) Source() string { return s.Original }
func (s *SubExpr) paramNode()     {}

// stringParam is the literal text handed to helpers in string-params mode
func stringParam(p Param) string {
	if l, ok := p.(*LiteralExpr); ok {
		if s, ok := l.Value.(string); ok {
			return s
		}
	}
	return p.Source()
}
