package debug

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/uber-go/tally/v4"
	"go.uber.org/zap"

	"github.com/dshills/dapconsole/internal/integration/debug/dap"
)

// DefaultChunkSize is the number of indexed children fetched in one request
// and the fan-out of each paging level.
const DefaultChunkSize = 100

// ScopeType represents the type of a variable scope.
type ScopeType string

const (
	// ScopeLocals represents local variables.
	ScopeLocals ScopeType = "locals"
	// ScopeArguments represents function arguments.
	ScopeArguments ScopeType = "arguments"
	// ScopeGlobals represents global variables.
	ScopeGlobals ScopeType = "globals"
	// ScopeRegisters represents CPU registers.
	ScopeRegisters ScopeType = "registers"
)

// mapScopeType maps a DAP presentation hint to a scope type.
func mapScopeType(hint string) ScopeType {
	switch hint {
	case "locals":
		return ScopeLocals
	case "arguments":
		return ScopeArguments
	case "globals":
		return ScopeGlobals
	case "registers":
		return ScopeRegisters
	default:
		return ScopeLocals
	}
}

// NodeState is the resolution state of a VariableNode.
type NodeState int

const (
	// NodeUnresolved means children have not been requested.
	NodeUnresolved NodeState = iota
	// NodePending means a fetch is in flight.
	NodePending
	// NodeResolved means children (or an error item) are memoized.
	NodeResolved
)

// String returns a string representation of the state.
func (s NodeState) String() string {
	switch s {
	case NodeUnresolved:
		return "unresolved"
	case NodePending:
		return "pending"
	case NodeResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// tree holds what every node of one variable tree shares.
type tree struct {
	adapter   Adapter
	chunkSize int
	logger    *zap.Logger
	stats     tally.Scope
}

// NodeOption configures a variable tree.
type NodeOption func(*tree)

// WithChunkSize sets the paging base. Values below 2 are ignored.
func WithChunkSize(n int) NodeOption {
	return func(t *tree) {
		if n > 1 {
			t.chunkSize = n
		}
	}
}

// WithNodeLogger sets the logger used for fetch failures.
func WithNodeLogger(logger *zap.Logger) NodeOption {
	return func(t *tree) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithNodeStats sets the metrics scope.
func WithNodeStats(stats tally.Scope) NodeOption {
	return func(t *tree) {
		if stats != nil {
			t.stats = stats
		}
	}
}

func newTree(adapter Adapter, opts []NodeOption) *tree {
	t := &tree{
		adapter:   adapter,
		chunkSize: DefaultChunkSize,
		logger:    zap.NewNop(),
		stats:     tally.NoopScope,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.stats = t.stats.SubScope("variables")
	return t
}

// VariableNode is one node of a lazily expanded variable tree. It is either
// an adapter variable or a paging bucket that covers a sub-range of its
// parent's indexed children.
type VariableNode struct {
	Name         string
	Value        string
	Type         string
	EvaluateName string

	reference int
	named     int
	indexed   int
	start     int
	page      bool
	scope     ScopeType
	parent    *VariableNode
	tree      *tree

	mu       sync.Mutex
	state    NodeState
	done     chan struct{}
	children []Item
}

// NewVariableNode creates a root node for v. A nil adapter yields a node
// that never has children.
func NewVariableNode(adapter Adapter, v dap.Variable, opts ...NodeOption) *VariableNode {
	return newNode(newTree(adapter, opts), nil, v)
}

func newNode(t *tree, parent *VariableNode, v dap.Variable) *VariableNode {
	return &VariableNode{
		Name:         v.Name,
		Value:        v.Value,
		Type:         v.Type,
		EvaluateName: v.EvaluateName,
		reference:    v.VariablesReference,
		named:        v.NamedVariables,
		indexed:      v.IndexedVariables,
		parent:       parent,
		tree:         t,
	}
}

// ScopeNodes returns one root node per scope of the given frame.
func ScopeNodes(ctx context.Context, adapter Adapter, frameID int, opts ...NodeOption) ([]*VariableNode, error) {
	if adapter == nil {
		return nil, ErrNoSession
	}

	scopes, err := adapter.Scopes(ctx, frameID)
	if err != nil {
		return nil, fmt.Errorf("get scopes: %w", err)
	}

	t := newTree(adapter, opts)
	nodes := make([]*VariableNode, len(scopes))
	for i, s := range scopes {
		nodes[i] = newNode(t, nil, dap.Variable{
			Name:               s.Name,
			VariablesReference: s.VariablesReference,
			NamedVariables:     s.NamedVariables,
			IndexedVariables:   s.IndexedVariables,
		})
		nodes[i].scope = mapScopeType(s.PresentationHint)
	}
	return nodes, nil
}

// Reference returns the adapter's variables reference, 0 for leaves.
func (n *VariableNode) Reference() int { return n.reference }

// NamedCount returns the advertised number of named children.
func (n *VariableNode) NamedCount() int { return n.named }

// IndexedCount returns the advertised number of indexed children.
func (n *VariableNode) IndexedCount() int { return n.indexed }

// Start returns the first index covered by the node's indexed children.
func (n *VariableNode) Start() int { return n.start }

// IsPage reports whether the node is a paging bucket.
func (n *VariableNode) IsPage() bool { return n.page }

// Scope returns the scope type for scope roots, "" otherwise.
func (n *VariableNode) Scope() ScopeType { return n.scope }

// Parent returns the parent node, nil for roots.
func (n *VariableNode) Parent() *VariableNode { return n.parent }

// HasChildren reports whether the node can be expanded.
func (n *VariableNode) HasChildren() bool {
	return n.reference != 0 && n.tree.adapter != nil
}

// State returns the resolution state.
func (n *VariableNode) State() NodeState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Path returns the names from the root to this node. Paging buckets are
// not part of the path.
func (n *VariableNode) Path() []string {
	var path []string
	for cur := n; cur != nil; cur = cur.parent {
		if cur.page {
			continue
		}
		path = append(path, cur.Name)
	}
	slices.Reverse(path)
	return path
}

// Format returns "name: type = value", omitting missing parts.
func (n *VariableNode) Format() string {
	switch {
	case n.page, n.Type == "" && n.Value == "":
		return n.Name
	case n.Type != "":
		return fmt.Sprintf("%s: %s = %s", n.Name, n.Type, n.Value)
	default:
		return fmt.Sprintf("%s = %s", n.Name, n.Value)
	}
}

// Resolve returns the node's children, fetching them on first use.
//
// The result is memoized: concurrent and later callers share the first
// fetch. A failed fetch resolves to a single error item and is not retried.
// If ctx ends while waiting, Resolve returns an error item for the caller
// and the fetch continues for the others.
func (n *VariableNode) Resolve(ctx context.Context) []Item {
	if !n.HasChildren() {
		return nil
	}

	n.mu.Lock()
	switch n.state {
	case NodeResolved:
		children := n.children
		n.mu.Unlock()
		return slices.Clone(children)
	case NodeUnresolved:
		n.state = NodePending
		n.done = make(chan struct{})
		go n.load(context.WithoutCancel(ctx))
	}
	done := n.done
	n.mu.Unlock()

	select {
	case <-done:
		n.mu.Lock()
		defer n.mu.Unlock()
		return slices.Clone(n.children)
	case <-ctx.Done():
		return []Item{newErrorItem(ctx.Err())}
	}
}

func (n *VariableNode) load(ctx context.Context) {
	children := n.fetchChildren(ctx)

	n.mu.Lock()
	n.children = children
	n.state = NodeResolved
	close(n.done)
	n.mu.Unlock()
}

func (n *VariableNode) fetchChildren(ctx context.Context) []Item {
	// Adapters that do not advertise counts expect a plain request.
	if n.named <= 0 && n.indexed <= 0 {
		vars, err := n.fetch(ctx, dap.VariablesArguments{VariablesReference: n.reference})
		if err != nil {
			return []Item{newErrorItem(err)}
		}
		return n.childItems(vars)
	}

	var items []Item
	if n.named > 0 {
		vars, err := n.fetch(ctx, dap.VariablesArguments{
			VariablesReference: n.reference,
			Filter:             dap.FilterNamed,
		})
		if err != nil {
			return []Item{newErrorItem(err)}
		}
		items = append(items, n.childItems(vars)...)
	}

	if n.indexed > 0 {
		chunk := chunkSize(n.indexed, n.tree.chunkSize)
		if n.indexed > chunk {
			return append(items, n.pages(chunk)...)
		}

		vars, err := n.fetch(ctx, dap.VariablesArguments{
			VariablesReference: n.reference,
			Filter:             dap.FilterIndexed,
			Start:              n.start,
			Count:              n.indexed,
		})
		if err != nil {
			return []Item{newErrorItem(err)}
		}
		items = append(items, n.childItems(vars)...)
	}

	return items
}

func (n *VariableNode) fetch(ctx context.Context, args dap.VariablesArguments) ([]dap.Variable, error) {
	n.tree.stats.Counter("fetch").Inc(1)
	vars, err := n.tree.adapter.Variables(ctx, args)
	if err != nil {
		n.tree.stats.Counter("fetch_failed").Inc(1)
		n.tree.logger.Debug("fetch variables failed",
			zap.Int("reference", args.VariablesReference),
			zap.String("filter", args.Filter),
			zap.Error(err))
		return nil, err
	}
	return vars, nil
}

// childItems turns fetched variables into child nodes, keeping the first
// variable of each name.
func (n *VariableNode) childItems(vars []dap.Variable) []Item {
	seen := make(map[string]struct{}, len(vars))
	items := make([]Item, 0, len(vars))
	for _, v := range vars {
		if _, dup := seen[v.Name]; dup {
			continue
		}
		seen[v.Name] = struct{}{}
		items = append(items, newNodeItem(newNode(n.tree, n, v)))
	}
	return items
}

// pages partitions the node's indexed range into buckets of chunk entries.
func (n *VariableNode) pages(chunk int) []Item {
	count := (n.indexed + chunk - 1) / chunk
	items := make([]Item, 0, count)
	for i := 0; i < count; i++ {
		start := n.start + i*chunk
		size := min(chunk, n.indexed-i*chunk)
		page := &VariableNode{
			Name:      fmt.Sprintf("[%d..%d]", start, start+size-1),
			reference: n.reference,
			indexed:   size,
			start:     start,
			page:      true,
			parent:    n,
			tree:      n.tree,
		}
		items = append(items, newNodeItem(page))
	}
	return items
}

// chunkSize returns the number of indexed entries one paging bucket covers
// for a collection of the given size: base grown by factors of base while
// the collection exceeds chunk*base.
func chunkSize(indexed, base int) int {
	chunk := base
	for indexed > chunk*base && chunk <= math.MaxInt/(base*base) {
		chunk *= base
	}
	return chunk
}
