package debug

import (
	"context"
	"sync"

	"github.com/dshills/dapconsole/internal/integration/debug/dap"
)

const (
	// NotAvailable is the value of an expression that has not been
	// evaluated successfully.
	NotAvailable = "not available"

	// NoSessionMessage is the value of an expression evaluated without a session.
	NoSessionMessage = "Please start a debug session to evaluate"
)

// Expression is a free-form expression evaluated against the active
// session. After a successful evaluation it roots a variable tree.
//
// Evaluate must not be called concurrently on the same Expression; the
// accessors are safe to use while an evaluation is running.
type Expression struct {
	Text string

	nodeOpts []NodeOption

	mu        sync.RWMutex
	value     string
	typ       string
	available bool
	node      *VariableNode
}

// NewExpression creates an unevaluated expression. The options apply to
// the variable tree built from its result.
func NewExpression(text string, opts ...NodeOption) *Expression {
	return &Expression{
		Text:     text,
		nodeOpts: opts,
		value:    NotAvailable,
	}
}

// Value returns the displayed value.
func (e *Expression) Value() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.value
}

// Type returns the result type reported by the adapter, if any.
func (e *Expression) Type() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.typ
}

// Available reports whether the last evaluation succeeded.
func (e *Expression) Available() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.available
}

// Node returns the root of the result tree, or nil if the expression is
// not available.
func (e *Expression) Node() *VariableNode {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.node
}

// Evaluate evaluates the expression in the adapter's current frame and
// replaces any previous result. Failures are recorded as the value.
func (e *Expression) Evaluate(ctx context.Context, adapter Adapter) {
	if adapter == nil {
		e.set(NoSessionMessage, "", false, nil)
		return
	}

	args := dap.EvaluateArguments{
		Expression: e.Text,
		Context:    dap.ContextRepl,
	}
	if frameID := adapter.CurrentFrameID(); frameID != 0 {
		args.FrameId = frameID
	}

	body, err := adapter.Evaluate(ctx, args)
	if err != nil {
		e.set(dap.ErrorText(err), "", false, nil)
		return
	}

	node := NewVariableNode(adapter, dap.Variable{
		Name:               e.Text,
		Value:              body.Result,
		Type:               body.Type,
		EvaluateName:       e.Text,
		VariablesReference: body.VariablesReference,
		NamedVariables:     body.NamedVariables,
		IndexedVariables:   body.IndexedVariables,
	}, e.nodeOpts...)
	e.set(body.Result, body.Type, true, node)
}

func (e *Expression) set(value, typ string, available bool, node *VariableNode) {
	e.mu.Lock()
	e.value = value
	e.typ = typ
	e.available = available
	e.node = node
	e.mu.Unlock()
}
