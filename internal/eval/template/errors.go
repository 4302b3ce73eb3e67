package template

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrHelperNotFound is wrapped by HelperDispatchError when a tag with
	// parameters names no registered helper
	ErrHelperNotFound = errors.New("helper not found")
	// ErrReservedHelperName is returned when registering "else"
	ErrReservedHelperName = errors.New("helper name is reserved")
)

// templateError marks the engine's own error kinds so that helper failures
// wrapping them are not re-wrapped
type templateError interface {
	error
	templateError()
}

func location(name string, pos Pos) string {
	if name == "" {
		name = "inline"
	}
	return fmt.Sprintf("%s:%d:%d", name, pos.Line, pos.Col)
}

// SyntaxError is a malformed tag, expression or delimiter redefinition
type SyntaxError struct {
	Template string
	Pos      Pos
	Msg      string
}

func newSyntaxError(pos Pos, format string, args ...interface{}) *SyntaxError {
	return &SyntaxError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s: syntax error: %s", location(e.Template, e.Pos), e.Msg)
}

func (e *SyntaxError) templateError() {}

// MismatchedSectionError is a close tag naming a different section than the
// innermost open one
type MismatchedSectionError struct {
	Template string
	Open     string
	OpenPos  Pos
	Close    string
	Pos      Pos
}

func (e *MismatchedSectionError) Error() string {
	if e.Open == "" {
		return fmt.Sprintf("%s: unexpected close tag {{/%s}} with no open section", location(e.Template, e.Pos), e.Close)
	}
	return fmt.Sprintf("%s: {{/%s}} does not match {{#%s}} opened at %s",
		location(e.Template, e.Pos), e.Close, e.Open, e.OpenPos)
}

func (e *MismatchedSectionError) templateError() {}

// UnclosedSectionError is a section still open at end of input
type UnclosedSectionError struct {
	Template string
	Name     string
	Pos      Pos
}

func (e *UnclosedSectionError) Error() string {
	return fmt.Sprintf("%s: section %q is never closed", location(e.Template, e.Pos), e.Name)
}

func (e *UnclosedSectionError) templateError() {}

// PartialNotFoundError is a partial neither registered nor loadable
type PartialNotFoundError struct {
	Name string
}

func (e *PartialNotFoundError) Error() string {
	return fmt.Sprintf("partial %q not found", e.Name)
}

func (e *PartialNotFoundError) templateError() {}

// HelperDispatchError is a failure raised by or while looking up a helper
type HelperDispatchError struct {
	Template string
	Helper   string
	Pos      Pos
	Err      error
}

func (e *HelperDispatchError) Error() string {
	return fmt.Sprintf("%s: helper %q: %v", location(e.Template, e.Pos), e.Helper, e.Err)
}

func (e *HelperDispatchError) Unwrap() error { return e.Err }

func (e *HelperDispatchError) templateError() {}

// UndefinedVariableError is an unresolved path in strict mode
type UndefinedVariableError struct {
	Template string
	Path     string
	Pos      Pos
}

func (e *UndefinedVariableError) Error() string {
	return fmt.Sprintf("%s: %q is not defined", location(e.Template, e.Pos), e.Path)
}

func (e *UndefinedVariableError) templateError() {}

// ContextDepthError is a "../" walk past the root frame
type ContextDepthError struct {
	Template string
	Path     string
	Depth    int
	Pos      Pos
}

func (e *ContextDepthError) Error() string {
	return fmt.Sprintf("%s: %q walks %d levels up, past the root context", location(e.Template, e.Pos), e.Path, e.Depth)
}

func (e *ContextDepthError) templateError() {}

// RecursionLimitError is a partial/section chain deeper than the configured
// maximum
type RecursionLimitError struct {
	Limit int
	Chain []string
}

func (e *RecursionLimitError) Error() string {
	return fmt.Sprintf("recursion limit of %d exceeded: %s", e.Limit, strings.Join(e.Chain, " -> "))
}

func (e *RecursionLimitError) templateError() {}

// withTemplate stamps the template name on compile-time errors
func withTemplate(err error, name string) error {
	switch e := err.(type) {
	case *SyntaxError:
		e.Template = name
	case *MismatchedSectionError:
		e.Template = name
	case *UnclosedSectionError:
		e.Template = name
	}
	return err
}

func isTemplateError(err error) bool {
	var te templateError
	return errors.As(err, &te)
}
