package debug

import (
	"context"

	"github.com/dshills/dapconsole/internal/integration/debug/dap"
)

//go:generate mockgen -destination=debugmock/adapter_mock.go -package=debugmock github.com/dshills/dapconsole/internal/integration/debug Adapter

// Adapter is the request surface of one debug session used by the
// synchronization and inspection code in this package.
type Adapter interface {
	// ID identifies the session.
	ID() string

	// SetBreakpoints replaces all breakpoints of one source. Results are
	// positionally aligned with args.Breakpoints and may be shorter.
	SetBreakpoints(ctx context.Context, args dap.SetBreakpointsArguments) ([]dap.Breakpoint, error)

	// Evaluate evaluates an expression.
	Evaluate(ctx context.Context, args dap.EvaluateArguments) (*dap.EvaluateResponseBody, error)

	// Variables fetches the children of a variables reference.
	Variables(ctx context.Context, args dap.VariablesArguments) ([]dap.Variable, error)

	// Scopes returns the scopes of a stack frame.
	Scopes(ctx context.Context, frameID int) ([]dap.Scope, error)

	// CurrentFrameID returns the frame used as evaluation context, or 0 for global.
	CurrentFrameID() int
}
