package debug

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dshills/dapconsole/internal/integration/debug/dap"
)

// FrameTracker is a session whose call stacks can be navigated. Selecting
// a frame makes it the session's evaluation context.
type FrameTracker interface {
	StackTrace(ctx context.Context, threadID, startFrame, levels int) ([]dap.StackFrame, int, error)
	SetCurrentFrame(frameID int)
}

// StackFrame is one frame of a call stack.
type StackFrame struct {
	// ID is the adapter's frame identifier.
	ID int

	// Name is the function name.
	Name string

	// Source is the source file information.
	Source *dap.Source

	// Line is the current line in the source.
	Line int

	// Column is the current column in the source.
	Column int

	// PresentationHint is "normal", "label" or "subtle".
	PresentationHint string

	// IsCurrentFrame indicates if this is the selected frame.
	IsCurrentFrame bool
}

// FormatLocation returns a formatted location string like "file.go:42".
func (f *StackFrame) FormatLocation() string {
	if f.Source == nil || f.Source.Name == "" {
		return fmt.Sprintf("<unknown>:%d", f.Line)
	}
	return fmt.Sprintf("%s:%d", f.Source.Name, f.Line)
}

// CallStack represents the call stack of the stopped thread.
type CallStack struct {
	// ThreadID is the thread this call stack belongs to.
	ThreadID int

	// Frames are the stack frames in order (top of stack first).
	Frames []*StackFrame

	// TotalFrames is the total number of frames (may be more than Frames length).
	TotalFrames int

	// CurrentFrameIndex is the index of the currently selected frame.
	CurrentFrameIndex int
}

// CurrentFrame returns the currently selected frame.
func (c *CallStack) CurrentFrame() *StackFrame {
	if c.CurrentFrameIndex < 0 || c.CurrentFrameIndex >= len(c.Frames) {
		return nil
	}
	return c.Frames[c.CurrentFrameIndex]
}

// StackNavigator tracks the call stack of the last stop and keeps the
// session's evaluation frame in sync with the selected frame.
type StackNavigator struct {
	session FrameTracker
	mu      sync.RWMutex

	stack *CallStack

	// Maximum frames to fetch per request
	maxFramesPerRequest int
}

// NewStackNavigator creates a new stack navigator.
func NewStackNavigator(session FrameTracker) *StackNavigator {
	return &StackNavigator{
		session:             session,
		maxFramesPerRequest: 20,
	}
}

// SetMaxFramesPerRequest sets the maximum frames to fetch per request.
func (n *StackNavigator) SetMaxFramesPerRequest(max int) {
	n.mu.Lock()
	n.maxFramesPerRequest = max
	n.mu.Unlock()
}

// Refresh fetches the call stack of threadID and selects its top frame.
func (n *StackNavigator) Refresh(ctx context.Context, threadID int) (*CallStack, error) {
	n.mu.RLock()
	levels := n.maxFramesPerRequest
	n.mu.RUnlock()

	frames, totalFrames, err := n.session.StackTrace(ctx, threadID, 0, levels)
	if err != nil {
		return nil, fmt.Errorf("get stack trace: %w", err)
	}

	stack := &CallStack{
		ThreadID:    threadID,
		Frames:      make([]*StackFrame, len(frames)),
		TotalFrames: totalFrames,
	}
	for i, f := range frames {
		stack.Frames[i] = toStackFrame(f)
	}

	frameID := 0
	if len(stack.Frames) > 0 {
		stack.Frames[0].IsCurrentFrame = true
		frameID = stack.Frames[0].ID
	}

	n.mu.Lock()
	n.stack = stack
	n.mu.Unlock()

	n.session.SetCurrentFrame(frameID)
	return stack, nil
}

func toStackFrame(f dap.StackFrame) *StackFrame {
	return &StackFrame{
		ID:               f.Id,
		Name:             f.Name,
		Source:           f.Source,
		Line:             f.Line,
		Column:           f.Column,
		PresentationHint: f.PresentationHint,
	}
}

// FetchMoreFrames loads additional frames for the current call stack.
func (n *StackNavigator) FetchMoreFrames(ctx context.Context) error {
	n.mu.RLock()
	stack := n.stack
	levels := n.maxFramesPerRequest
	var threadID, loaded, total int
	if stack != nil {
		threadID, loaded, total = stack.ThreadID, len(stack.Frames), stack.TotalFrames
	}
	n.mu.RUnlock()

	if stack == nil {
		return ErrNoCallStack
	}
	if loaded >= total {
		return nil
	}

	frames, totalFrames, err := n.session.StackTrace(ctx, threadID, loaded, levels)
	if err != nil {
		return fmt.Errorf("get more frames: %w", err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.stack != stack {
		return nil
	}
	stack.TotalFrames = totalFrames
	for _, f := range frames {
		stack.Frames = append(stack.Frames, toStackFrame(f))
	}
	return nil
}

// SelectFrame selects a frame in the call stack.
func (n *StackNavigator) SelectFrame(frameIndex int) error {
	n.mu.Lock()
	stack := n.stack
	if stack == nil {
		n.mu.Unlock()
		return ErrNoCallStack
	}
	if frameIndex < 0 || frameIndex >= len(stack.Frames) {
		n.mu.Unlock()
		return fmt.Errorf("%w: %d not in [0, %d)", ErrFrameOutOfRange, frameIndex, len(stack.Frames))
	}

	if cur := stack.CurrentFrame(); cur != nil {
		cur.IsCurrentFrame = false
	}
	stack.Frames[frameIndex].IsCurrentFrame = true
	stack.CurrentFrameIndex = frameIndex
	frameID := stack.Frames[frameIndex].ID
	n.mu.Unlock()

	n.session.SetCurrentFrame(frameID)
	return nil
}

// SelectFrameUp moves up (towards caller) in the call stack.
func (n *StackNavigator) SelectFrameUp() error {
	n.mu.RLock()
	if n.stack == nil {
		n.mu.RUnlock()
		return ErrNoCallStack
	}
	index := n.stack.CurrentFrameIndex
	n.mu.RUnlock()

	return n.SelectFrame(index + 1)
}

// SelectFrameDown moves down (towards callee) in the call stack.
func (n *StackNavigator) SelectFrameDown() error {
	n.mu.RLock()
	if n.stack == nil {
		n.mu.RUnlock()
		return ErrNoCallStack
	}
	index := n.stack.CurrentFrameIndex
	n.mu.RUnlock()

	return n.SelectFrame(index - 1)
}

// CurrentFrame returns the selected frame.
func (n *StackNavigator) CurrentFrame() (*StackFrame, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.stack == nil {
		return nil, ErrNoCallStack
	}
	frame := n.stack.CurrentFrame()
	if frame == nil {
		return nil, ErrNoCallStack
	}
	return frame, nil
}

// Clear forgets the call stack and resets the evaluation frame.
func (n *StackNavigator) Clear() {
	n.mu.Lock()
	n.stack = nil
	n.mu.Unlock()

	n.session.SetCurrentFrame(0)
}

// FormatStackTrace returns a formatted string representation of the call stack.
func (n *StackNavigator) FormatStackTrace() string {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.stack == nil {
		return ""
	}

	var b strings.Builder
	for i, frame := range n.stack.Frames {
		marker := "  "
		if i == n.stack.CurrentFrameIndex {
			marker = "> "
		}
		fmt.Fprintf(&b, "%s#%d %s at %s\n", marker, i, frame.Name, frame.FormatLocation())
	}

	if len(n.stack.Frames) < n.stack.TotalFrames {
		fmt.Fprintf(&b, "  ... (%d more frames)\n", n.stack.TotalFrames-len(n.stack.Frames))
	}

	return b.String()
}
