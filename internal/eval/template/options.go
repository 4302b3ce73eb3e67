package template

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Options is the per-invocation handle passed to a helper
type Options struct {
	// Name is the helper name as written in the tag
	Name string
	// Params are the positional parameters, resolved or, in string-params
	// mode, as written in the template
	Params []interface{}
	// Hash holds the named parameters
	Hash map[string]interface{}
	// BlockParams are the names declared with "as |a b|"
	BlockParams []string

	r       *renderer
	frame   *Frame
	fn      *ListNode
	inverse *ListNode
	out     *strings.Builder
	pos     Pos
}

// Param returns the i-th positional parameter or Undefined
func (o *Options) Param(i int) interface{} {
	if i < 0 || i >= len(o.Params) {
		return Undefined
	}
	return o.Params[i]
}

// HashValue returns a named parameter or Undefined
func (o *Options) HashValue(key string) interface{} {
	if v, ok := o.Hash[key]; ok {
		return v
	}
	return Undefined
}

// Frame is the frame the helper was invoked in
func (o *Options) Frame() *Frame { return o.frame }

// Data looks up an @variable visible at the call site
func (o *Options) Data(key string) (interface{}, bool) {
	return o.frame.Data(key)
}

// IsBlock reports whether the helper was invoked as a section
func (o *Options) IsBlock() bool { return o.fn != nil }

// Fn renders the section body against the current frame
func (o *Options) Fn() (string, error) {
	return o.FnFrame(o.frame)
}

// FnWith renders the section body against a new frame holding ctx
func (o *Options) FnWith(ctx interface{}) (string, error) {
	return o.FnFrame(o.NewFrame(ctx, nil))
}

// FnFrame renders the section body against f
func (o *Options) FnFrame(f *Frame) (string, error) {
	return o.r.capture(f, o.fn)
}

// Inverse renders the else branch against the current frame
func (o *Options) Inverse() (string, error) {
	return o.InverseFrame(o.frame)
}

// InverseWith renders the else branch against a new frame holding ctx
func (o *Options) InverseWith(ctx interface{}) (string, error) {
	return o.InverseFrame(o.NewFrame(ctx, nil))
}

// InverseFrame renders the else branch against f
func (o *Options) InverseFrame(f *Frame) (string, error) {
	return o.r.capture(f, o.inverse)
}

// NewFrame derives a child of the call-site frame. data becomes visible as
// @variables and blockParams are bound, in order, to the declared block
// param names.
func (o *Options) NewFrame(ctx interface{}, data map[string]interface{}, blockParams ...interface{}) *Frame {
	f := o.frame.push(ctx)
	if data != nil {
		f.withData(data)
	}
	return f.bind(o.BlockParams, blockParams...)
}

// Partial renders a partial by name against ctx
func (o *Options) Partial(name string, ctx interface{}) (string, error) {
	return o.r.namedPartial(o.frame.push(ctx), name, o.pos)
}

// Write writes s to the output at the helper's position, unescaped and
// ahead of the helper's result
func (o *Options) Write(s string) {
	o.out.WriteString(s)
}

// Escape applies the template's escaper
func (o *Options) Escape(s string) string {
	return o.r.tmpl.settings.escaper(s)
}

// Logger is the engine logger
func (o *Options) Logger() *zap.Logger {
	return o.r.engine.logger
}

// Context is the context the render was started with
func (o *Options) Context() context.Context {
	return o.r.ctx
}
