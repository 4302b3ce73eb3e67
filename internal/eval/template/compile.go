package template

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
)

// Template is a compiled template. It is immutable and may be rendered
// concurrently; helpers and partials are looked up on the owning engine at
// render time.
type Template struct {
	name     string
	source   string
	root     *ListNode
	engine   *Engine
	settings settings
}

// Name is the name the template was compiled under, "" for inline sources
func (t *Template) Name() string { return t.name }

// Source is the template text
func (t *Template) Source() string { return t.source }

func (t *Template) String() string { return t.root.String() }

// Exec renders the template against data
func (t *Template) Exec(data interface{}) (string, error) {
	return t.render(context.Background(), data)
}

// Execute renders the template against data and writes the result to w.
// Nothing is written when rendering fails.
func (t *Template) Execute(w io.Writer, data interface{}) error {
	return t.ExecuteContext(context.Background(), w, data)
}

// ExecuteContext is Execute with a context that is checked at every section
// and partial boundary and handed to the partial loader
func (t *Template) ExecuteContext(ctx context.Context, w io.Writer, data interface{}) error {
	out, err := t.render(ctx, data)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}

func (t *Template) render(ctx context.Context, data interface{}) (string, error) {
	r := &renderer{
		engine:   t.engine,
		tmpl:     t,
		ctx:      ctx,
		maxDepth: t.settings.maxDepth,
	}
	var b strings.Builder
	if err := r.list(&b, newRootFrame(data), t.root); err != nil {
		return "", err
	}
	return b.String(), nil
}

// compiler folds the parse tree into its executable form: adjacent text is
// merged and comments disappear
type compiler struct {
	name    string
	helpers map[string]bool
	logger  *zap.Logger
}

func (c *compiler) compile(l *ListNode) (*ListNode, error) {
	out := &ListNode{Pos: l.Pos}
	var text *TextNode
	for _, node := range l.Nodes {
		switch n := node.(type) {
		case *CommentNode:
			continue
		case *TextNode:
			if n.Text == "" {
				continue
			}
			if text != nil {
				text.Text += n.Text
				continue
			}
			text = &TextNode{Pos: n.Pos, Text: n.Text}
			out.append(text)
			continue
		case *SectionNode:
			if err := c.section(n.Expr, n.Pos); err != nil {
				return nil, err
			}
			body, err := c.compile(n.Body)
			if err != nil {
				return nil, err
			}
			elseBody, err := c.optional(n.Else)
			if err != nil {
				return nil, err
			}
			out.append(&SectionNode{Pos: n.Pos, Expr: n.Expr, BlockParams: n.BlockParams, Body: body, Else: elseBody})
		case *InvertedSectionNode:
			if err := c.section(n.Expr, n.Pos); err != nil {
				return nil, err
			}
			body, err := c.compile(n.Body)
			if err != nil {
				return nil, err
			}
			elseBody, err := c.optional(n.Else)
			if err != nil {
				return nil, err
			}
			out.append(&InvertedSectionNode{Pos: n.Pos, Expr: n.Expr, Body: body, Else: elseBody})
		case *PartialNode:
			block, err := c.optional(n.Block)
			if err != nil {
				return nil, err
			}
			p := *n
			p.Block = block
			out.append(&p)
		default:
			out.append(node)
		}
		text = nil
	}
	return out, nil
}

func (c *compiler) optional(l *ListNode) (*ListNode, error) {
	if l == nil {
		return nil, nil
	}
	return c.compile(l)
}

func (c *compiler) section(expr *Expression, pos Pos) error {
	name := expr.HelperName()
	if name == "else" {
		return &SyntaxError{Template: c.name, Pos: pos, Msg: `"else" cannot be used as a section name`}
	}
	if builtin, ok := c.helpers[name]; ok && !builtin && isBuiltinName(name) {
		c.logger.Debug("Section uses an overridden built-in helper",
			zap.String("template", c.name),
			zap.String("helper", name),
			zap.String("pos", pos.String()))
	}
	return nil
}

func isBuiltinName(name string) bool {
	_, ok := builtinHelpers()[name]
	return ok
}

// CompileNamed compiles source under name. Options override the engine
// defaults for this template only.
func (e *Engine) CompileNamed(name, source string, opts ...Option) (*Template, error) {
	s := e.settings
	for _, opt := range opts {
		opt(&s)
	}

	toks, err := lex(source, s.openDelim, s.closeDelim)
	if err != nil {
		return nil, withTemplate(err, name)
	}
	tree, err := parse(name, toks)
	if err != nil {
		return nil, err
	}
	c := &compiler{name: name, helpers: e.helperSnapshot(), logger: e.logger}
	root, err := c.compile(tree)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("Template compiled",
		zap.String("template", name),
		zap.Int("tokens", len(toks)),
		zap.Int("nodes", len(root.Nodes)))

	return &Template{
		name:     name,
		source:   source,
		root:     root,
		engine:   e,
		settings: s,
	}, nil
}

// Compile compiles an unnamed template
func (e *Engine) Compile(source string, opts ...Option) (*Template, error) {
	return e.CompileNamed("", source, opts...)
}

// MustCompile is Compile that panics on error, for templates known at build time
func (e *Engine) MustCompile(source string, opts ...Option) *Template {
	t, err := e.Compile(source, opts...)
	if err != nil {
		panic(fmt.Sprintf("template: %v", err))
	}
	return t
}
