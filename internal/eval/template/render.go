package template

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
)

// renderer holds the state of one render call. It is never shared between
// goroutines.
type renderer struct {
	engine *Engine
	// tmpl is the template whose nodes are being evaluated; it changes while
	// a partial is rendered
	tmpl     *Template
	ctx      context.Context
	maxDepth int
	chain    []string
}

func (r *renderer) enter(step string) error {
	r.chain = append(r.chain, step)
	if len(r.chain) > r.maxDepth {
		chain := make([]string, len(r.chain))
		copy(chain, r.chain)
		return &RecursionLimitError{Limit: r.maxDepth, Chain: chain}
	}
	if r.ctx != nil {
		if err := r.ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

func (r *renderer) leave() {
	r.chain = r.chain[:len(r.chain)-1]
}

// capture renders l against f into a fresh buffer
func (r *renderer) capture(f *Frame, l *ListNode) (string, error) {
	if l == nil {
		return "", nil
	}
	var b strings.Builder
	if err := r.list(&b, f, l); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (r *renderer) list(w *strings.Builder, f *Frame, l *ListNode) error {
	for _, node := range l.Nodes {
		var err error
		switch n := node.(type) {
		case *TextNode:
			w.WriteString(n.Text)
		case *VariableNode:
			err = r.variable(w, f, n)
		case *SectionNode:
			err = r.section(w, f, n)
		case *InvertedSectionNode:
			err = r.inverted(w, f, n)
		case *PartialNode:
			err = r.partial(w, f, n)
		case *ListNode:
			err = r.list(w, f, n)
		case *CommentNode:
		default:
			err = fmt.Errorf("unexpected node %T", node)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *renderer) variable(w *strings.Builder, f *Frame, n *VariableNode) error {
	v, err := r.value(w, f, n.Expr, n.Pos)
	if err != nil {
		return err
	}
	r.write(w, v, n.Unescaped)
	return nil
}

// value evaluates the expression of an output tag. With parameters it is a
// helper call; a bare path is resolved first and only falls back to a
// zero-argument helper when nothing is found.
func (r *renderer) value(w *strings.Builder, f *Frame, expr *Expression, pos Pos) (interface{}, error) {
	name := expr.HelperName()
	if expr.hasArgs() {
		h, ok := r.engine.helper(name)
		if !ok {
			return r.missingHelper(w, f, expr, pos)
		}
		return r.invoke(w, f, h, name, expr, pos, nil, nil, nil)
	}

	path, ok := expr.Head.(*PathExpr)
	if !ok {
		return r.param(f, expr.Head, pos)
	}
	v, err := r.path(f, path, pos)
	if err != nil {
		return nil, err
	}
	if !IsUndefined(v) {
		return v, nil
	}
	if h, ok := r.engine.helper(name); ok {
		return r.invoke(w, f, h, name, expr, pos, nil, nil, nil)
	}
	if r.tmpl.settings.strict {
		return nil, &UndefinedVariableError{Template: r.tmpl.name, Path: path.Original, Pos: pos}
	}
	return v, nil
}

func (r *renderer) write(w *strings.Builder, v interface{}, raw bool) {
	if s, ok := v.(SafeString); ok {
		w.WriteString(string(s))
		return
	}
	s := ToString(v)
	if raw {
		w.WriteString(s)
		return
	}
	w.WriteString(r.tmpl.settings.escaper(s))
}

func (r *renderer) section(w *strings.Builder, f *Frame, n *SectionNode) error {
	name := n.Expr.sectionName()
	if err := r.enter("section:" + name); err != nil {
		return err
	}
	defer r.leave()

	helperName := n.Expr.HelperName()
	if h, ok := r.engine.helper(helperName); ok {
		v, err := r.invoke(w, f, h, helperName, n.Expr, n.Pos, n.Body, n.Else, n.BlockParams)
		if err != nil {
			return err
		}
		r.write(w, v, true)
		return nil
	}
	if n.Expr.hasArgs() {
		v, err := r.missingHelper(w, f, n.Expr, n.Pos)
		if err != nil {
			return err
		}
		r.write(w, v, true)
		return nil
	}

	v, err := r.sectionValue(f, n.Expr, n.Pos)
	if err != nil {
		return err
	}
	if !IsTruthy(v) {
		return r.list(w, f, orEmpty(n.Else))
	}
	if count, at, ok := sequence(v); ok {
		for i := 0; i < count; i++ {
			item := at(i)
			frame := f.push(item).withData(map[string]interface{}{
				"index": i,
				"key":   i,
				"first": i == 0,
				"last":  i == count-1,
			}).bind(n.BlockParams, item, i)
			if err := r.list(w, frame, n.Body); err != nil {
				return err
			}
		}
		return nil
	}
	if b, ok := v.(bool); ok && b {
		return r.list(w, f, n.Body)
	}
	return r.list(w, f.push(v).bind(n.BlockParams, v), n.Body)
}

func (r *renderer) inverted(w *strings.Builder, f *Frame, n *InvertedSectionNode) error {
	name := n.Expr.sectionName()
	if err := r.enter("inverted:" + name); err != nil {
		return err
	}
	defer r.leave()

	helperName := n.Expr.HelperName()
	if h, ok := r.engine.helper(helperName); ok {
		v, err := r.invoke(w, f, h, helperName, n.Expr, n.Pos, orEmpty(n.Else), n.Body, nil)
		if err != nil {
			return err
		}
		r.write(w, v, true)
		return nil
	}
	if n.Expr.hasArgs() {
		_, err := r.missingHelper(w, f, n.Expr, n.Pos)
		return err
	}

	v, err := r.sectionValue(f, n.Expr, n.Pos)
	if err != nil {
		return err
	}
	if IsTruthy(v) {
		return r.list(w, f, orEmpty(n.Else))
	}
	return r.list(w, f, n.Body)
}

// sectionValue resolves the head of a section that no helper claimed
func (r *renderer) sectionValue(f *Frame, expr *Expression, pos Pos) (interface{}, error) {
	path := expr.Head.(*PathExpr)
	v, err := r.path(f, path, pos)
	if err != nil {
		return nil, err
	}
	if IsUndefined(v) && r.tmpl.settings.strict {
		return nil, &UndefinedVariableError{Template: r.tmpl.name, Path: path.Original, Pos: pos}
	}
	return v, nil
}

func orEmpty(l *ListNode) *ListNode {
	if l == nil {
		return &ListNode{}
	}
	return l
}

func (r *renderer) path(f *Frame, p *PathExpr, pos Pos) (interface{}, error) {
	v, err := f.resolve(p)
	if err != nil {
		if de, ok := err.(*ContextDepthError); ok {
			de.Template = r.tmpl.name
			de.Pos = pos
		}
		return nil, err
	}
	return v, nil
}

// param evaluates a parameter expression; sub-expressions are calls
func (r *renderer) param(f *Frame, p Param, pos Pos) (interface{}, error) {
	switch p := p.(type) {
	case *LiteralExpr:
		return p.Value, nil
	case *PathExpr:
		return r.path(f, p, pos)
	case *SubExpr:
		name := p.Expr.HelperName()
		h, ok := r.engine.helper(name)
		if !ok {
			if !p.Expr.hasArgs() {
				if path, isPath := p.Expr.Head.(*PathExpr); isPath {
					return r.path(f, path, pos)
				}
			}
			return r.missingHelper(nil, f, p.Expr, pos)
		}
		return r.invoke(nil, f, h, name, p.Expr, pos, nil, nil, nil)
	}
	return nil, fmt.Errorf("unexpected parameter %T", p)
}

func (r *renderer) missingHelper(w *strings.Builder, f *Frame, expr *Expression, pos Pos) (interface{}, error) {
	if h, ok := r.engine.helper(HelperMissing); ok {
		return r.invoke(w, f, h, expr.sectionName(), expr, pos, nil, nil, nil)
	}
	return nil, &HelperDispatchError{
		Template: r.tmpl.name,
		Helper:   expr.sectionName(),
		Pos:      pos,
		Err:      ErrHelperNotFound,
	}
}

// invoke calls a helper. Failures and panics become HelperDispatchError
// unless the helper is passing on one of the engine's own errors.
func (r *renderer) invoke(w *strings.Builder, f *Frame, h helperEntry, name string, expr *Expression,
	pos Pos, fn, inverse *ListNode, blockParams []string) (result interface{}, err error) {
	stringParams := r.tmpl.settings.stringParams && !h.builtin

	opts := &Options{
		Name:        name,
		BlockParams: blockParams,
		r:           r,
		frame:       f,
		fn:          fn,
		inverse:     inverse,
		pos:         pos,
	}
	if w != nil {
		opts.out = w
	} else {
		opts.out = &strings.Builder{}
	}

	opts.Params = make([]interface{}, len(expr.Params))
	for i, p := range expr.Params {
		if stringParams {
			opts.Params[i] = stringParam(p)
			continue
		}
		if opts.Params[i], err = r.param(f, p, pos); err != nil {
			return nil, err
		}
	}
	opts.Hash = make(map[string]interface{}, len(expr.Hash))
	for _, kv := range expr.Hash {
		if stringParams {
			opts.Hash[kv.Key] = stringParam(kv.Value)
			continue
		}
		if opts.Hash[kv.Key], err = r.param(f, kv.Value, pos); err != nil {
			return nil, err
		}
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.engine.logger.Sugar().Debugf("helper %q panicked: %v\n%s", name, rec, debug.Stack())
			result = nil
			err = &HelperDispatchError{
				Template: r.tmpl.name,
				Helper:   name,
				Pos:      pos,
				Err:      fmt.Errorf("panic: %v", rec),
			}
		}
	}()

	result, err = h.fn(f.value, opts)
	if err != nil {
		if isTemplateError(err) {
			return nil, err
		}
		return nil, &HelperDispatchError{Template: r.tmpl.name, Helper: name, Pos: pos, Err: err}
	}
	return result, nil
}

func (r *renderer) partial(w *strings.Builder, f *Frame, n *PartialNode) error {
	name, err := r.partialName(f, n)
	if err != nil {
		return err
	}
	if err := r.enter("partial:" + name); err != nil {
		return err
	}
	defer r.leave()

	var frame *Frame
	if n.Context != nil {
		ctx, err := r.param(f, n.Context, n.Pos)
		if err != nil {
			return err
		}
		frame = f.push(ctx)
	} else {
		// same scope as the call site: "../" keeps meaning the caller's parent
		frame = &Frame{value: f.value, parent: f.parent, data: f.data, params: f.params, locals: f.locals, block: f.block}
	}
	if len(n.Hash) > 0 {
		locals := make(map[string]interface{}, len(frame.locals)+len(n.Hash))
		for k, v := range frame.locals {
			locals[k] = v
		}
		frame.locals = locals
		for _, kv := range n.Hash {
			if frame.locals[kv.Key], err = r.param(f, kv.Value, n.Pos); err != nil {
				return err
			}
		}
	}

	if name == "@partial-block" {
		pb := f.block
		if pb == nil {
			return &PartialNotFoundError{Name: name}
		}
		frame.block = pb.outer
		return r.indented(w, n.Indent, func(b *strings.Builder) error {
			return r.list(b, frame, pb.body)
		})
	}

	t, err := r.engine.partial(r.ctx, name)
	if err != nil {
		if _, missing := err.(*PartialNotFoundError); missing && n.Block != nil {
			return r.list(w, f, n.Block)
		}
		return err
	}
	if n.Block != nil {
		frame.block = &partialBlock{body: n.Block, outer: f.block}
	}
	return r.indented(w, n.Indent, func(b *strings.Builder) error {
		return r.inTemplate(t, func() error { return r.list(b, frame, t.root) })
	})
}

func (r *renderer) partialName(f *Frame, n *PartialNode) (string, error) {
	switch p := n.Name.(type) {
	case *SubExpr:
		v, err := r.param(f, p, n.Pos)
		if err != nil {
			return "", err
		}
		return ToString(v), nil
	case *LiteralExpr:
		return ToString(p.Value), nil
	}
	return n.Name.Source(), nil
}

// namedPartial renders a partial for a helper
func (r *renderer) namedPartial(f *Frame, name string, pos Pos) (string, error) {
	if err := r.enter("partial:" + name); err != nil {
		return "", err
	}
	defer r.leave()
	t, err := r.engine.partial(r.ctx, name)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	err = r.inTemplate(t, func() error { return r.list(&b, f, t.root) })
	return b.String(), err
}

func (r *renderer) inTemplate(t *Template, fn func() error) error {
	prev := r.tmpl
	r.tmpl = t
	defer func() { r.tmpl = prev }()
	return fn()
}

// indented renders through fn and prefixes every output line with indent
func (r *renderer) indented(w *strings.Builder, indent string, fn func(*strings.Builder) error) error {
	if indent == "" {
		return fn(w)
	}
	var b strings.Builder
	if err := fn(&b); err != nil {
		return err
	}
	for _, line := range strings.SplitAfter(b.String(), "\n") {
		if line != "" {
			w.WriteString(indent)
			w.WriteString(line)
		}
	}
	return nil
}
