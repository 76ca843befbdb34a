package debug

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dshills/dapconsole/internal/integration/debug/dap"
)

// SessionState represents the current state of a debug session.
type SessionState int

const (
	// StateInitializing is the initial state before initialize completes.
	StateInitializing SessionState = iota
	// StateConfiguring is after initialize but before configurationDone.
	StateConfiguring
	// StateRunning is when the debuggee is running.
	StateRunning
	// StateStopped is when the debuggee is stopped (breakpoint, exception, etc).
	StateStopped
	// StateTerminated is when the debuggee has exited.
	StateTerminated
	// StateDisconnected is when the debug adapter has disconnected.
	StateDisconnected
)

// String returns a string representation of the state.
func (s SessionState) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateConfiguring:
		return "configuring"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateTerminated:
		return "terminated"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// SessionHandlers contains callbacks for session events.
type SessionHandlers struct {
	// OnStateChanged is called when the session state changes.
	OnStateChanged func(old, new SessionState)

	// OnStopped is called when the debuggee stops.
	OnStopped func(reason string, threadID int)

	// OnBreakpointChanged is called when the adapter changes a breakpoint.
	OnBreakpointChanged func(reason string, breakpoint dap.Breakpoint)

	// OnTerminated is called when the debuggee terminates.
	OnTerminated func()
}

// SessionConfig configures the initialize handshake.
type SessionConfig struct {
	// AdapterID is the debug adapter identifier.
	AdapterID string

	// ClientID is this client's identifier.
	ClientID string

	// ClientName is this client's name.
	ClientName string

	// LinesStartAt1 indicates if line numbers start at 1.
	LinesStartAt1 bool

	// ColumnsStartAt1 indicates if column numbers start at 1.
	ColumnsStartAt1 bool

	// PathFormat is the path format ("path" or "uri").
	PathFormat string
}

// DefaultSessionConfig returns a default session configuration.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		AdapterID:       "generic",
		ClientID:        "dapconsole",
		ClientName:      "DAP Console",
		LinesStartAt1:   true,
		ColumnsStartAt1: true,
		PathFormat:      "path",
	}
}

// Session represents a debug session with a debug adapter. It implements
// ManagedSession.
type Session struct {
	id             string
	client         *dap.Client
	logger         *zap.Logger
	requestTimeout time.Duration

	capabilities *dap.Capabilities
	state        SessionState
	stateMu      sync.RWMutex

	// Thread and frame of the last stop; frameID is the evaluation context.
	currentThread int
	frameID       int

	handlers   SessionHandlers
	handlersMu sync.RWMutex

	output listeners[func(dap.OutputEventBody)]
}

var (
	_ ManagedSession = (*Session)(nil)
	_ FrameTracker   = (*Session)(nil)
)

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithSessionID sets the session ID instead of generating one.
func WithSessionID(id string) SessionOption {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// WithRequestTimeout bounds every request the session sends.
func WithRequestTimeout(d time.Duration) SessionOption {
	return func(s *Session) {
		s.requestTimeout = d
	}
}

// WithSessionLogger sets the logger.
func WithSessionLogger(logger *zap.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSession creates a new debug session with the given client.
func NewSession(client *dap.Client, opts ...SessionOption) *Session {
	s := newSession(opts)
	s.attach(client)
	return s
}

// NewSocketSession creates a debug session over a TCP connection to address.
func NewSocketSession(address string, dialTimeout time.Duration, opts ...SessionOption) (*Session, error) {
	transport, err := dap.NewSocketTransport(address, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("create socket transport: %w", err)
	}

	s := newSession(opts)
	s.attach(dap.NewClient(transport, s.logger.Named("dap")))
	return s, nil
}

func newSession(opts []SessionOption) *Session {
	s := &Session{
		id:     uuid.NewString(),
		logger: zap.NewNop(),
		state:  StateInitializing,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) attach(client *dap.Client) {
	s.client = client

	client.OnInitialized(s.onInitialized)
	client.OnStopped(s.onStopped)
	client.OnContinued(s.onContinued)
	client.OnTerminated(s.onTerminated)
	client.OnOutput(s.onOutput)
	client.OnBreakpoint(s.onBreakpoint)
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// SetHandlers sets the session event handlers.
func (s *Session) SetHandlers(handlers SessionHandlers) {
	s.handlersMu.Lock()
	s.handlers = handlers
	s.handlersMu.Unlock()
}

// OnOutput subscribes to output events.
func (s *Session) OnOutput(fn func(dap.OutputEventBody)) (unsubscribe func()) {
	return s.output.add(fn)
}

// State returns the current session state.
func (s *Session) State() SessionState {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

// setState updates the session state.
func (s *Session) setState(state SessionState) {
	s.stateMu.Lock()
	old := s.state
	s.state = state
	s.stateMu.Unlock()

	if old == state {
		return
	}

	s.handlersMu.RLock()
	handler := s.handlers.OnStateChanged
	s.handlersMu.RUnlock()

	if handler != nil {
		handler(old, state)
	}
}

// Capabilities returns the debug adapter capabilities.
func (s *Session) Capabilities() *dap.Capabilities {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.capabilities
}

// CurrentThread returns the thread of the last stop.
func (s *Session) CurrentThread() int {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.currentThread
}

// CurrentFrameID returns the frame expressions are evaluated in, or 0.
func (s *Session) CurrentFrameID() int {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.frameID
}

// SetCurrentFrame sets the frame expressions are evaluated in.
func (s *Session) SetCurrentFrame(frameID int) {
	s.stateMu.Lock()
	s.frameID = frameID
	s.stateMu.Unlock()
}

func (s *Session) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.requestTimeout > 0 {
		return context.WithTimeout(ctx, s.requestTimeout)
	}
	return ctx, func() {}
}

// Initialize performs the initialize handshake.
func (s *Session) Initialize(ctx context.Context, config SessionConfig) error {
	args := dap.InitializeRequestArguments{
		ClientID:               config.ClientID,
		ClientName:             config.ClientName,
		AdapterID:              config.AdapterID,
		LinesStartAt1:          config.LinesStartAt1,
		ColumnsStartAt1:        config.ColumnsStartAt1,
		PathFormat:             config.PathFormat,
		SupportsVariableType:   true,
		SupportsVariablePaging: true,
	}

	ctx, cancel := s.requestContext(ctx)
	defer cancel()

	caps, err := s.client.Initialize(ctx, args)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	s.stateMu.Lock()
	s.capabilities = caps
	s.stateMu.Unlock()
	s.setState(StateConfiguring)

	return nil
}

// ConfigurationDone signals that configuration is complete.
func (s *Session) ConfigurationDone(ctx context.Context) error {
	ctx, cancel := s.requestContext(ctx)
	defer cancel()

	if err := s.client.ConfigurationDone(ctx); err != nil {
		return fmt.Errorf("configurationDone: %w", err)
	}

	s.setState(StateRunning)
	return nil
}

// Disconnect disconnects from the debug adapter.
func (s *Session) Disconnect(ctx context.Context) error {
	ctx, cancel := s.requestContext(ctx)
	defer cancel()

	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}

	s.setState(StateDisconnected)
	return nil
}

// Close closes the session and underlying client.
func (s *Session) Close() error {
	s.setState(StateDisconnected)
	return s.client.Close()
}

// SetBreakpoints replaces the breakpoints of one source.
func (s *Session) SetBreakpoints(ctx context.Context, args dap.SetBreakpointsArguments) ([]dap.Breakpoint, error) {
	ctx, cancel := s.requestContext(ctx)
	defer cancel()
	return s.client.SetBreakpoints(ctx, args)
}

// Evaluate evaluates an expression.
func (s *Session) Evaluate(ctx context.Context, args dap.EvaluateArguments) (*dap.EvaluateResponseBody, error) {
	ctx, cancel := s.requestContext(ctx)
	defer cancel()
	return s.client.Evaluate(ctx, args)
}

// Variables retrieves the children of a variables reference.
func (s *Session) Variables(ctx context.Context, args dap.VariablesArguments) ([]dap.Variable, error) {
	ctx, cancel := s.requestContext(ctx)
	defer cancel()
	return s.client.Variables(ctx, args)
}

// Scopes retrieves the scopes for a stack frame.
func (s *Session) Scopes(ctx context.Context, frameID int) ([]dap.Scope, error) {
	ctx, cancel := s.requestContext(ctx)
	defer cancel()
	return s.client.Scopes(ctx, frameID)
}

// StackTrace retrieves the stack trace for a thread.
func (s *Session) StackTrace(ctx context.Context, threadID, startFrame, levels int) ([]dap.StackFrame, int, error) {
	ctx, cancel := s.requestContext(ctx)
	defer cancel()

	result, err := s.client.StackTrace(ctx, dap.StackTraceArguments{
		ThreadId:   threadID,
		StartFrame: startFrame,
		Levels:     levels,
	})
	if err != nil {
		return nil, 0, err
	}
	return result.StackFrames, result.TotalFrames, nil
}

// Event handlers

func (s *Session) onInitialized() {
	s.setState(StateConfiguring)
}

func (s *Session) onStopped(body dap.StoppedEventBody) {
	s.stateMu.Lock()
	s.currentThread = body.ThreadId
	s.stateMu.Unlock()

	s.setState(StateStopped)

	s.handlersMu.RLock()
	handler := s.handlers.OnStopped
	s.handlersMu.RUnlock()

	if handler != nil {
		handler(body.Reason, body.ThreadId)
	}
}

func (s *Session) onContinued(int) {
	// Frame IDs are invalid once the debuggee runs again.
	s.SetCurrentFrame(0)
	s.setState(StateRunning)
}

func (s *Session) onTerminated() {
	s.setState(StateTerminated)

	s.handlersMu.RLock()
	handler := s.handlers.OnTerminated
	s.handlersMu.RUnlock()

	if handler != nil {
		handler()
	}
}

func (s *Session) onOutput(body dap.OutputEventBody) {
	for _, fn := range s.output.snapshot() {
		fn(body)
	}
}

func (s *Session) onBreakpoint(body dap.BreakpointEventBody) {
	s.logger.Debug("breakpoint changed",
		zap.String("reason", body.Reason),
		zap.Int("id", body.Breakpoint.Id),
		zap.Bool("verified", body.Breakpoint.Verified))

	s.handlersMu.RLock()
	handler := s.handlers.OnBreakpointChanged
	s.handlersMu.RUnlock()

	if handler != nil {
		handler(body.Reason, body.Breakpoint)
	}
}
