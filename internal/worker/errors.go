package worker

import (
	"errors"
	"time"

	"github.com/aescanero/dago-node-template/internal/eval/template"
)

// ErrorEvent is published on <result stream>.errors
type ErrorEvent struct {
	RequestID   string    `json:"request_id"`
	ExecutionID string    `json:"execution_id,omitempty"`
	NodeID      string    `json:"node_id,omitempty"`
	Error       string    `json:"error"`
	Kind        string    `json:"kind"`
	Template    string    `json:"template,omitempty"`
	Line        int       `json:"line,omitempty"`
	Column      int       `json:"column,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// transientError marks failures of external systems (state store, template
// store, LLM) that may succeed on another attempt
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func retryable(err error) bool {
	var t *transientError
	return errors.As(err, &t)
}

func newErrorEvent(request *RenderRequest, err error) *ErrorEvent {
	event := &ErrorEvent{
		RequestID:   request.RequestID,
		ExecutionID: request.ExecutionID,
		NodeID:      request.NodeID,
		Error:       err.Error(),
		Timestamp:   time.Now().UTC(),
	}
	var pos template.Pos
	event.Kind, event.Template, pos = classify(err)
	event.Line, event.Column = pos.Line, pos.Col
	return event
}

// classify maps engine errors to an event kind, the template involved and
// the source position when there is one
func classify(err error) (string, string, template.Pos) {
	var (
		syntaxErr    *template.SyntaxError
		mismatchErr  *template.MismatchedSectionError
		unclosedErr  *template.UnclosedSectionError
		partialErr   *template.PartialNotFoundError
		helperErr    *template.HelperDispatchError
		undefinedErr *template.UndefinedVariableError
		depthErr     *template.ContextDepthError
		recursionErr *template.RecursionLimitError
	)
	switch {
	case errors.As(err, &syntaxErr):
		return "syntax", syntaxErr.Template, syntaxErr.Pos
	case errors.As(err, &mismatchErr):
		return "mismatched_section", mismatchErr.Template, mismatchErr.Pos
	case errors.As(err, &unclosedErr):
		return "unclosed_section", unclosedErr.Template, unclosedErr.Pos
	case errors.As(err, &partialErr):
		return "partial_not_found", partialErr.Name, template.Pos{}
	case errors.As(err, &helperErr):
		return "helper", helperErr.Template, helperErr.Pos
	case errors.As(err, &undefinedErr):
		return "undefined_variable", undefinedErr.Template, undefinedErr.Pos
	case errors.As(err, &depthErr):
		return "context_depth", depthErr.Template, depthErr.Pos
	case errors.As(err, &recursionErr):
		return "recursion_limit", "", template.Pos{}
	case retryable(err):
		return "unavailable", "", template.Pos{}
	}
	return "invalid_request", "", template.Pos{}
}
