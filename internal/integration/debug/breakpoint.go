package debug

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/dshills/dapconsole/internal/integration/debug/dap"
)

// BreakpointKind represents the kind of breakpoint.
type BreakpointKind int

const (
	// BreakpointKindSource is a breakpoint on a line of a concrete source.
	BreakpointKindSource BreakpointKind = iota
	// BreakpointKindFunction is a function breakpoint.
	BreakpointKindFunction
	// BreakpointKindData is a data/watchpoint breakpoint.
	BreakpointKindData
)

// String returns a string representation of the breakpoint kind.
func (k BreakpointKind) String() string {
	switch k {
	case BreakpointKindSource:
		return "source"
	case BreakpointKindFunction:
		return "function"
	case BreakpointKindData:
		return "data"
	default:
		return "unknown"
	}
}

// BreakpointOrigin holds the attributes the user declared.
type BreakpointOrigin struct {
	// Line is the line number (1-based).
	Line int

	// Column is the column number (1-based, optional).
	Column int

	// Condition is the condition expression.
	Condition string

	// HitCondition is the hit count condition.
	HitCondition string

	// LogMessage turns the breakpoint into a log point.
	LogMessage string
}

// Spec returns the setBreakpoints specification for the origin.
func (o BreakpointOrigin) Spec() dap.SourceBreakpoint {
	return dap.SourceBreakpoint{
		Line:         o.Line,
		Column:       o.Column,
		Condition:    o.Condition,
		HitCondition: o.HitCondition,
		LogMessage:   o.LogMessage,
	}
}

// Breakpoint represents a user-declared breakpoint and, once synchronized,
// the adapter's confirmation of it.
type Breakpoint struct {
	// ID is a unique identifier for this breakpoint.
	ID string

	// SessionID is the owning debug session.
	SessionID string

	// Kind is the breakpoint kind.
	Kind BreakpointKind

	// Source is the source file (source breakpoints only).
	Source *dap.Source

	// Origin is what the user declared.
	Origin BreakpointOrigin

	// FunctionName is the function name (function breakpoints only).
	FunctionName string

	// Enabled indicates if the breakpoint is enabled.
	Enabled bool

	// Created is the adapter-confirmed breakpoint from the last sync, or nil.
	// It is replaced on every sync.
	Created *dap.Breakpoint
}

// Verified reports whether the adapter confirmed the breakpoint.
func (b *Breakpoint) Verified() bool {
	return b.Created != nil && b.Created.Verified
}

// Line returns the confirmed line if the adapter moved the breakpoint,
// otherwise the declared line.
func (b *Breakpoint) Line() int {
	if b.Created != nil && b.Created.Line > 0 {
		return b.Created.Line
	}
	return b.Origin.Line
}

// String returns a short description like "main.go:42".
func (b *Breakpoint) String() string {
	switch b.Kind {
	case BreakpointKindFunction:
		return b.FunctionName + "()"
	case BreakpointKindSource:
		name := "<unknown>"
		if b.Source != nil {
			if b.Source.Name != "" {
				name = b.Source.Name
			} else if b.Source.Path != "" {
				name = b.Source.Path
			}
		}
		return fmt.Sprintf("%s:%d", name, b.Line())
	default:
		return b.Kind.String()
	}
}

// Clone returns a deep copy of the breakpoint.
func (b *Breakpoint) Clone() *Breakpoint {
	c := *b
	if b.Source != nil {
		src := *b.Source
		c.Source = &src
	}
	if b.Created != nil {
		created := *b.Created
		c.Created = &created
	}
	return &c
}

// BreakpointStore holds declared breakpoints.
//
// Query returns copies. BulkUpdate writes back only the adapter
// confirmation (Created) of those copies; the declaration itself is owned
// by the store.
type BreakpointStore interface {
	Query(pred func(*Breakpoint) bool) []*Breakpoint
	BulkUpdate(bps []*Breakpoint)
}

// MemoryBreakpointStore is an in-memory BreakpointStore that keeps
// insertion order.
type MemoryBreakpointStore struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]*Breakpoint
}

// NewMemoryBreakpointStore creates an empty store.
func NewMemoryBreakpointStore() *MemoryBreakpointStore {
	return &MemoryBreakpointStore{
		byID: make(map[string]*Breakpoint),
	}
}

// Add stores a copy of bp and returns its ID. An ID is assigned if bp has none.
func (s *MemoryBreakpointStore) Add(bp *Breakpoint) string {
	c := bp.Clone()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[c.ID]; !exists {
		s.order = append(s.order, c.ID)
	}
	s.byID[c.ID] = c
	return c.ID
}

// Remove deletes a breakpoint.
func (s *MemoryBreakpointStore) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[id]; !ok {
		return fmt.Errorf("%w: %s", ErrBreakpointNotFound, id)
	}
	delete(s.byID, id)
	s.order = removeID(s.order, id)
	return nil
}

// Get returns a copy of a breakpoint.
func (s *MemoryBreakpointStore) Get(id string) (*Breakpoint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bp, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return bp.Clone(), true
}

// SetEnabled enables or disables a breakpoint.
func (s *MemoryBreakpointStore) SetEnabled(id string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bp, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrBreakpointNotFound, id)
	}
	bp.Enabled = enabled
	return nil
}

// Toggle flips the enabled state of a breakpoint and returns the new state.
func (s *MemoryBreakpointStore) Toggle(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bp, ok := s.byID[id]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrBreakpointNotFound, id)
	}
	bp.Enabled = !bp.Enabled
	return bp.Enabled, nil
}

// All returns copies of every breakpoint in insertion order.
func (s *MemoryBreakpointStore) All() []*Breakpoint {
	return s.Query(nil)
}

// Query returns copies of the breakpoints matching pred, in insertion order.
// A nil pred matches everything.
func (s *MemoryBreakpointStore) Query(pred func(*Breakpoint) bool) []*Breakpoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Breakpoint
	for _, id := range s.order {
		bp := s.byID[id]
		if pred == nil || pred(bp) {
			out = append(out, bp.Clone())
		}
	}
	return out
}

// BulkUpdate stores the confirmations (Created) of breakpoints obtained
// from Query. A breakpoint that was removed, enabled or disabled, or
// redeclared with a different origin since it was queried keeps its
// current state: the confirmation describes a declaration that no longer
// exists.
func (s *MemoryBreakpointStore) BulkUpdate(bps []*Breakpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, bp := range bps {
		cur, ok := s.byID[bp.ID]
		if !ok || cur.Enabled != bp.Enabled || cur.Origin != bp.Origin {
			continue
		}
		cur.Created = nil
		if bp.Created != nil {
			created := *bp.Created
			cur.Created = &created
		}
	}
}

// ReplaceDeclared replaces every source breakpoint of sessionID with bps.
// Breakpoints that match an existing one on source and line keep the
// existing ID and confirmation.
func (s *MemoryBreakpointStore) ReplaceDeclared(sessionID string, bps []*Breakpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := make(map[string]*Breakpoint)
	kept := s.order[:0]
	for _, id := range s.order {
		bp := s.byID[id]
		if bp.Kind == BreakpointKindSource && bp.SessionID == sessionID {
			existing[declaredKey(bp)] = bp
			delete(s.byID, id)
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept

	for _, bp := range bps {
		c := bp.Clone()
		c.SessionID = sessionID
		if prev, ok := existing[declaredKey(c)]; ok {
			c.ID = prev.ID
			c.Created = prev.Created
			delete(existing, declaredKey(c))
		}
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		if _, dup := s.byID[c.ID]; !dup {
			s.order = append(s.order, c.ID)
		}
		s.byID[c.ID] = c
	}
}

func declaredKey(bp *Breakpoint) string {
	return fmt.Sprintf("%s#%d", SourceKey(bp.Source), bp.Origin.Line)
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
