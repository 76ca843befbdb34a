package debug

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/uber-go/tally/v4"
	"go.uber.org/zap"

	"github.com/dshills/dapconsole/internal/integration/debug/dap"
)

// SessionProvider supplies the session expressions are evaluated against.
type SessionProvider interface {
	// Active returns the active session, or nil.
	Active() Adapter
}

// ConsoleSession is the ordered log of evaluated expressions and adapter
// output shown by the debug console.
//
// Every Execute, Clear and LogOutput call fires the change listeners
// exactly once, after the log has been updated. Telemetry output is
// dropped without notification.
type ConsoleSession struct {
	sessions SessionProvider
	logger   *zap.Logger
	stats    tally.Scope
	nodeOpts []NodeOption

	mu    sync.RWMutex
	items []Item

	changed listeners[func()]
}

// ConsoleOption configures a ConsoleSession.
type ConsoleOption func(*ConsoleSession)

// WithConsoleLogger sets the logger.
func WithConsoleLogger(logger *zap.Logger) ConsoleOption {
	return func(c *ConsoleSession) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithConsoleStats sets the metrics scope.
func WithConsoleStats(stats tally.Scope) ConsoleOption {
	return func(c *ConsoleSession) {
		if stats != nil {
			c.stats = stats
		}
	}
}

// WithConsoleNodeOptions sets the options of variable trees built by the console.
func WithConsoleNodeOptions(opts ...NodeOption) ConsoleOption {
	return func(c *ConsoleSession) {
		c.nodeOpts = append(c.nodeOpts, opts...)
	}
}

// NewConsoleSession creates an empty console evaluating against sessions.
func NewConsoleSession(sessions SessionProvider, opts ...ConsoleOption) *ConsoleSession {
	c := &ConsoleSession{
		sessions: sessions,
		logger:   zap.NewNop(),
		stats:    tally.NoopScope,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.stats = c.stats.SubScope("console")
	return c
}

// Items returns a snapshot of the log.
func (c *ConsoleSession) Items() []Item {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.items)
}

// Subscribe registers fn to be called after every change to the log.
func (c *ConsoleSession) Subscribe(fn func()) (unsubscribe func()) {
	return c.changed.add(fn)
}

// Execute appends an expression for text, evaluates it against the active
// session and then notifies listeners. The item is in the log, with value
// NotAvailable, while the evaluation runs.
func (c *ConsoleSession) Execute(ctx context.Context, text string) {
	expr := NewExpression(text, c.nodeOpts...)
	c.append(Item{ID: uuid.NewString(), Kind: ItemExpression, Expression: expr})

	var session Adapter
	if c.sessions != nil {
		session = c.sessions.Active()
	}

	c.stats.Counter("evaluate").Inc(1)
	expr.Evaluate(ctx, session)
	if !expr.Available() {
		c.stats.Counter("evaluate_failed").Inc(1)
	}

	c.notify()
}

// Clear empties the log.
func (c *ConsoleSession) Clear() {
	c.mu.Lock()
	c.items = nil
	c.mu.Unlock()

	c.notify()
}

// LogOutput appends an adapter output event. stderr output is logged as an
// error, console and important output as a warning. Output carrying a
// variables reference is logged as one variable item named after the output
// text, with its children fetched before the item is appended. Other output
// is logged one text item per line.
func (c *ConsoleSession) LogOutput(ctx context.Context, adapter Adapter, body dap.OutputEventBody) {
	if body.Category == dap.CategoryTelemetry {
		return
	}

	severity := outputSeverity(body.Category)

	var items []Item
	switch {
	case body.VariablesReference != 0:
		node := NewVariableNode(adapter, dap.Variable{
			Name:               strings.TrimSpace(body.Output),
			VariablesReference: body.VariablesReference,
		}, c.nodeOpts...)
		node.Resolve(ctx)
		item := newNodeItem(node)
		item.Severity = severity
		items = append(items, item)
	case body.Output != "":
		for _, line := range splitLines(body.Output) {
			items = append(items, newTextItem(severity, line))
		}
	}

	c.append(items...)
	c.notify()
}

// Attach routes the output of every session registered with manager into
// the log and clears the log when a session starts while none are live.
// The returned function detaches the console and waits for queued output
// to stop being processed.
func (c *ConsoleSession) Attach(ctx context.Context, manager *SessionManager) (detach func()) {
	pump := newOutputPump()
	go pump.run(func(job outputJob) {
		c.LogOutput(ctx, job.session, job.body)
	})

	unsubCreated := manager.OnSessionCreated(func(s ManagedSession, firstActive bool) {
		if firstActive {
			c.logger.Debug("clearing console for new debug run", zap.String("session", s.ID()))
			c.Clear()
		}
	})
	unsubOutput := manager.OnOutput(func(s ManagedSession, body dap.OutputEventBody) {
		pump.push(outputJob{session: s, body: body})
	})

	var once sync.Once
	return func() {
		once.Do(func() {
			unsubCreated()
			unsubOutput()
			pump.stop()
		})
	}
}

func (c *ConsoleSession) append(items ...Item) {
	if len(items) == 0 {
		return
	}
	c.mu.Lock()
	c.items = append(c.items, items...)
	c.mu.Unlock()
}

func (c *ConsoleSession) notify() {
	for _, fn := range c.changed.snapshot() {
		fn()
	}
}

func outputSeverity(category string) Severity {
	switch category {
	case dap.CategoryStderr:
		return SeverityError
	case dap.CategoryConsole, dap.CategoryImportant:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// splitLines splits text at newlines. A trailing newline does not produce
// an empty line and carriage returns before newlines are dropped.
func splitLines(text string) []string {
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}

type outputJob struct {
	session ManagedSession
	body    dap.OutputEventBody
}

// outputPump processes output events in arrival order on its own goroutine,
// so that adapter callbacks never wait on variable fetches.
type outputPump struct {
	mu    sync.Mutex
	queue []outputJob
	wake  chan struct{}
	quit  chan struct{}
	done  chan struct{}
}

func newOutputPump() *outputPump {
	return &outputPump{
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
}

func (p *outputPump) push(job outputJob) {
	p.mu.Lock()
	p.queue = append(p.queue, job)
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *outputPump) run(handle func(outputJob)) {
	defer close(p.done)

	for {
		select {
		case <-p.quit:
			return
		case <-p.wake:
		}

		for {
			p.mu.Lock()
			if len(p.queue) == 0 {
				p.mu.Unlock()
				break
			}
			job := p.queue[0]
			p.queue = p.queue[1:]
			p.mu.Unlock()

			handle(job)
		}
	}
}

func (p *outputPump) stop() {
	close(p.quit)
	<-p.done
}
