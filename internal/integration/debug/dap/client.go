package dap

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	godap "github.com/google/go-dap"
	"go.uber.org/zap"
)

// ErrClientClosed is returned for requests issued after Close.
var ErrClientClosed = errors.New("dap client closed")

// Client is a DAP client that communicates with a debug adapter.
type Client struct {
	transport Transport
	logger    *zap.Logger
	seq       int64
	pending   map[int]*pendingRequest
	pendingMu sync.Mutex
	handlers  eventHandlers
	handlerMu sync.RWMutex
	done      chan struct{}
	loopDone  chan struct{}
	closeOnce sync.Once
	err       error
	errMu     sync.RWMutex
}

// pendingRequest tracks a pending request awaiting response.
type pendingRequest struct {
	done      chan struct{}
	closeOnce sync.Once
	response  godap.ResponseMessage
	err       error
}

// close safely closes the done channel.
func (p *pendingRequest) close() {
	p.closeOnce.Do(func() {
		close(p.done)
	})
}

// eventHandlers stores event handler functions.
type eventHandlers struct {
	onInitialized func()
	onStopped     func(StoppedEventBody)
	onContinued   func(threadID int)
	onTerminated  func()
	onOutput      func(OutputEventBody)
	onBreakpoint  func(BreakpointEventBody)
	onAny         func(Message)
}

// NewClient creates a new DAP client with the given transport and starts
// its receive loop. A nil logger disables logging.
func NewClient(transport Transport, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		transport: transport,
		logger:    logger,
		pending:   make(map[int]*pendingRequest),
		done:      make(chan struct{}),
		loopDone:  make(chan struct{}),
	}
	go c.receiveLoop()
	return c
}

// Close closes the client and underlying transport and waits for the
// receive loop to exit.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.transport.Close()
		<-c.loopDone
		c.failPending(ErrClientClosed)
	})
	return err
}

// Error returns any error that occurred during receive.
func (c *Client) Error() error {
	c.errMu.RLock()
	defer c.errMu.RUnlock()
	return c.err
}

// receiveLoop continuously receives messages from the transport.
func (c *Client) receiveLoop() {
	defer close(c.loopDone)

	for {
		msg, err := c.transport.Receive()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}

			if isDecodeError(err) {
				c.logger.Debug("skipping undecodable message", zap.Error(err))
				continue
			}

			c.errMu.Lock()
			c.err = err
			c.errMu.Unlock()

			c.failPending(fmt.Errorf("receive: %w", err))
			return
		}

		select {
		case <-c.done:
			return
		default:
		}

		c.handleMessage(msg)
	}
}

// failPending completes every outstanding request with err.
func (c *Client) failPending(err error) {
	c.pendingMu.Lock()
	for seq, req := range c.pending {
		req.err = err
		req.close()
		delete(c.pending, seq)
	}
	c.pendingMu.Unlock()
}

// handleMessage dispatches a received message.
func (c *Client) handleMessage(msg Message) {
	switch m := msg.(type) {
	case godap.ResponseMessage:
		c.handleResponse(m)
	case godap.EventMessage:
		c.handleEvent(m)
	default:
		c.logger.Debug("ignoring reverse request", zap.Int("seq", msg.GetSeq()))
	}
}

// handleResponse processes a response message.
func (c *Client) handleResponse(resp godap.ResponseMessage) {
	seq := resp.GetResponse().RequestSeq

	c.pendingMu.Lock()
	req, ok := c.pending[seq]
	if ok {
		delete(c.pending, seq)
	}
	c.pendingMu.Unlock()

	if !ok {
		c.logger.Debug("response without pending request", zap.Int("request_seq", seq))
		return
	}
	req.response = resp
	req.close()
}

// handleEvent processes an event message.
func (c *Client) handleEvent(evt godap.EventMessage) {
	c.handlerMu.RLock()
	handlers := c.handlers
	c.handlerMu.RUnlock()

	switch e := evt.(type) {
	case *godap.InitializedEvent:
		if handlers.onInitialized != nil {
			handlers.onInitialized()
		}
	case *godap.StoppedEvent:
		if handlers.onStopped != nil {
			handlers.onStopped(e.Body)
		}
	case *godap.ContinuedEvent:
		if handlers.onContinued != nil {
			handlers.onContinued(e.Body.ThreadId)
		}
	case *godap.TerminatedEvent:
		if handlers.onTerminated != nil {
			handlers.onTerminated()
		}
	case *godap.OutputEvent:
		if handlers.onOutput != nil {
			handlers.onOutput(e.Body)
		}
	case *godap.BreakpointEvent:
		if handlers.onBreakpoint != nil {
			handlers.onBreakpoint(e.Body)
		}
	}

	if handlers.onAny != nil {
		handlers.onAny(evt)
	}
}

// sendRequest stamps req with a sequence number, sends it and waits for the
// matching response. A response with success=false yields a *ResponseError.
func (c *Client) sendRequest(ctx context.Context, req godap.RequestMessage) (godap.ResponseMessage, error) {
	select {
	case <-c.done:
		return nil, ErrClientClosed
	default:
	}

	seq := int(atomic.AddInt64(&c.seq, 1))
	r := req.GetRequest()
	r.Seq = seq
	r.Type = "request"

	pending := &pendingRequest{
		done: make(chan struct{}),
	}

	c.pendingMu.Lock()
	c.pending[seq] = pending
	c.pendingMu.Unlock()

	if err := c.transport.Send(req); err != nil {
		c.forget(seq)
		return nil, fmt.Errorf("send %s: %w", r.Command, err)
	}

	select {
	case <-ctx.Done():
		c.forget(seq)
		return nil, ctx.Err()
	case <-pending.done:
		if pending.err != nil {
			return nil, pending.err
		}
		if !pending.response.GetResponse().Success {
			return nil, newResponseError(pending.response)
		}
		return pending.response, nil
	}
}

func (c *Client) forget(seq int) {
	c.pendingMu.Lock()
	delete(c.pending, seq)
	c.pendingMu.Unlock()
}

// roundTrip sends req and asserts the response type.
func roundTrip[T godap.ResponseMessage](ctx context.Context, c *Client, req godap.RequestMessage) (T, error) {
	var zero T
	resp, err := c.sendRequest(ctx, req)
	if err != nil {
		return zero, err
	}
	typed, ok := resp.(T)
	if !ok {
		return zero, fmt.Errorf("%s: unexpected response %T", req.GetRequest().Command, resp)
	}
	return typed, nil
}

func newRequest(command string) godap.Request {
	return godap.Request{
		ProtocolMessage: godap.ProtocolMessage{Type: "request"},
		Command:         command,
	}
}

// Event handler setters

// OnInitialized sets the handler for the initialized event.
func (c *Client) OnInitialized(handler func()) {
	c.handlerMu.Lock()
	c.handlers.onInitialized = handler
	c.handlerMu.Unlock()
}

// OnStopped sets the handler for the stopped event.
func (c *Client) OnStopped(handler func(StoppedEventBody)) {
	c.handlerMu.Lock()
	c.handlers.onStopped = handler
	c.handlerMu.Unlock()
}

// OnContinued sets the handler for the continued event.
func (c *Client) OnContinued(handler func(threadID int)) {
	c.handlerMu.Lock()
	c.handlers.onContinued = handler
	c.handlerMu.Unlock()
}

// OnTerminated sets the handler for the terminated event.
func (c *Client) OnTerminated(handler func()) {
	c.handlerMu.Lock()
	c.handlers.onTerminated = handler
	c.handlerMu.Unlock()
}

// OnOutput sets the handler for the output event.
func (c *Client) OnOutput(handler func(OutputEventBody)) {
	c.handlerMu.Lock()
	c.handlers.onOutput = handler
	c.handlerMu.Unlock()
}

// OnBreakpoint sets the handler for the breakpoint event.
func (c *Client) OnBreakpoint(handler func(BreakpointEventBody)) {
	c.handlerMu.Lock()
	c.handlers.onBreakpoint = handler
	c.handlerMu.Unlock()
}

// OnAnyEvent sets a handler for all events.
func (c *Client) OnAnyEvent(handler func(Message)) {
	c.handlerMu.Lock()
	c.handlers.onAny = handler
	c.handlerMu.Unlock()
}

// DAP Request Methods

// Initialize sends the initialize request.
func (c *Client) Initialize(ctx context.Context, args InitializeRequestArguments) (*Capabilities, error) {
	resp, err := roundTrip[*godap.InitializeResponse](ctx, c, &godap.InitializeRequest{
		Request:   newRequest("initialize"),
		Arguments: args,
	})
	if err != nil {
		return nil, err
	}
	return &resp.Body, nil
}

// ConfigurationDone sends the configurationDone request.
func (c *Client) ConfigurationDone(ctx context.Context) error {
	_, err := roundTrip[*godap.ConfigurationDoneResponse](ctx, c, &godap.ConfigurationDoneRequest{
		Request: newRequest("configurationDone"),
	})
	return err
}

// Disconnect sends the disconnect request.
func (c *Client) Disconnect(ctx context.Context) error {
	_, err := roundTrip[*godap.DisconnectResponse](ctx, c, &godap.DisconnectRequest{
		Request: newRequest("disconnect"),
	})
	return err
}

// SetBreakpoints sends the setBreakpoints request. The returned slice is
// positionally aligned with args.Breakpoints.
func (c *Client) SetBreakpoints(ctx context.Context, args SetBreakpointsArguments) ([]Breakpoint, error) {
	resp, err := roundTrip[*godap.SetBreakpointsResponse](ctx, c, &godap.SetBreakpointsRequest{
		Request:   newRequest("setBreakpoints"),
		Arguments: args,
	})
	if err != nil {
		return nil, err
	}
	return resp.Body.Breakpoints, nil
}

// StackTrace sends the stackTrace request.
func (c *Client) StackTrace(ctx context.Context, args StackTraceArguments) (*StackTraceResponseBody, error) {
	resp, err := roundTrip[*godap.StackTraceResponse](ctx, c, &godap.StackTraceRequest{
		Request:   newRequest("stackTrace"),
		Arguments: args,
	})
	if err != nil {
		return nil, err
	}
	return &resp.Body, nil
}

// Scopes sends the scopes request.
func (c *Client) Scopes(ctx context.Context, frameID int) ([]Scope, error) {
	resp, err := roundTrip[*godap.ScopesResponse](ctx, c, &godap.ScopesRequest{
		Request:   newRequest("scopes"),
		Arguments: godap.ScopesArguments{FrameId: frameID},
	})
	if err != nil {
		return nil, err
	}
	return resp.Body.Scopes, nil
}

// Variables sends the variables request.
func (c *Client) Variables(ctx context.Context, args VariablesArguments) ([]Variable, error) {
	resp, err := roundTrip[*godap.VariablesResponse](ctx, c, &godap.VariablesRequest{
		Request:   newRequest("variables"),
		Arguments: args,
	})
	if err != nil {
		return nil, err
	}
	return resp.Body.Variables, nil
}

// Evaluate sends the evaluate request.
func (c *Client) Evaluate(ctx context.Context, args EvaluateArguments) (*EvaluateResponseBody, error) {
	resp, err := roundTrip[*godap.EvaluateResponse](ctx, c, &godap.EvaluateRequest{
		Request:   newRequest("evaluate"),
		Arguments: args,
	})
	if err != nil {
		return nil, err
	}
	return &resp.Body, nil
}
