package dap

import (
	"errors"
	"fmt"

	godap "github.com/google/go-dap"
)

// Wire types are the go-dap definitions; the aliases keep callers on a single import.
type (
	Message                    = godap.Message
	Capabilities               = godap.Capabilities
	InitializeRequestArguments = godap.InitializeRequestArguments
	Source                     = godap.Source
	SourceBreakpoint           = godap.SourceBreakpoint
	Breakpoint                 = godap.Breakpoint
	SetBreakpointsArguments    = godap.SetBreakpointsArguments
	EvaluateArguments          = godap.EvaluateArguments
	EvaluateResponseBody       = godap.EvaluateResponseBody
	VariablesArguments         = godap.VariablesArguments
	Variable                   = godap.Variable
	Scope                      = godap.Scope
	StackTraceArguments        = godap.StackTraceArguments
	StackTraceResponseBody     = godap.StackTraceResponseBody
	StackFrame                 = godap.StackFrame
	OutputEventBody            = godap.OutputEventBody
	StoppedEventBody           = godap.StoppedEventBody
	BreakpointEventBody        = godap.BreakpointEventBody
)

// Variable filters accepted by the variables request.
const (
	FilterNamed   = "named"
	FilterIndexed = "indexed"
)

// Output event categories.
const (
	CategoryConsole   = "console"
	CategoryImportant = "important"
	CategoryStdout    = "stdout"
	CategoryStderr    = "stderr"
	CategoryTelemetry = "telemetry"
)

// ContextRepl is the evaluate context for expressions typed into the console.
const ContextRepl = "repl"

// ResponseError is returned when the adapter answered a request with success=false.
type ResponseError struct {
	Command string
	Message string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Command, e.Message)
}

// IsResponseError reports whether err carries an adapter-reported failure.
func IsResponseError(err error) bool {
	var re *ResponseError
	return errors.As(err, &re)
}

// ErrorText returns the human-readable part of err. Adapter-reported failures
// yield only the adapter's message.
func ErrorText(err error) string {
	var re *ResponseError
	if errors.As(err, &re) && re.Message != "" {
		return re.Message
	}
	return err.Error()
}

// newResponseError builds a ResponseError from a failed response, preferring
// the structured error body when the adapter supplied one.
func newResponseError(resp godap.ResponseMessage) *ResponseError {
	r := resp.GetResponse()
	msg := r.Message
	if er, ok := resp.(*godap.ErrorResponse); ok && er.Body.Error != nil && er.Body.Error.Format != "" {
		msg = er.Body.Error.Format
	}
	return &ResponseError{Command: r.Command, Message: msg}
}

// isDecodeError reports whether err came from a message the codec could read
// but not map to a known request, response or event.
func isDecodeError(err error) bool {
	var fe *godap.DecodeProtocolMessageFieldError
	return errors.As(err, &fe)
}
