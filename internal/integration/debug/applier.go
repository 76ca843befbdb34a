package debug

import (
	"context"
	"fmt"
	"sync"

	"github.com/uber-go/tally/v4"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/dapconsole/internal/integration/debug/dap"
)

// DefaultMaxConcurrentSources bounds the number of setBreakpoints requests
// in flight for one apply call.
const DefaultMaxConcurrentSources = 4

// BreakpointApplier pushes declared breakpoints to a debug session, one
// setBreakpoints request per source, and records the adapter's confirmations
// in the store.
type BreakpointApplier struct {
	store  BreakpointStore
	logger *zap.Logger
	stats  tally.Scope
	limit  int
}

// ApplierOption configures a BreakpointApplier.
type ApplierOption func(*BreakpointApplier)

// WithApplierLogger sets the logger.
func WithApplierLogger(logger *zap.Logger) ApplierOption {
	return func(a *BreakpointApplier) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithApplierStats sets the metrics scope.
func WithApplierStats(stats tally.Scope) ApplierOption {
	return func(a *BreakpointApplier) {
		if stats != nil {
			a.stats = stats
		}
	}
}

// WithMaxConcurrentSources limits how many sources are synchronized at once.
func WithMaxConcurrentSources(n int) ApplierOption {
	return func(a *BreakpointApplier) {
		if n > 0 {
			a.limit = n
		}
	}
}

// NewBreakpointApplier creates an applier backed by store.
func NewBreakpointApplier(store BreakpointStore, opts ...ApplierOption) *BreakpointApplier {
	a := &BreakpointApplier{
		store:  store,
		logger: zap.NewNop(),
		stats:  tally.NoopScope,
		limit:  DefaultMaxConcurrentSources,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.stats = a.stats.SubScope("breakpoints")
	return a
}

// binding pairs a declared breakpoint with the spec sent for it and the
// adapter's answer at the same position.
type binding struct {
	bp     *Breakpoint
	spec   dap.SourceBreakpoint
	result *dap.Breakpoint
}

// sourceGroup is the unit of one setBreakpoints request.
type sourceGroup struct {
	key    string
	source dap.Source
	bps    []*Breakpoint
}

// ApplySessionBreakpoints synchronizes the source breakpoints of session.
// If source is non-nil only that source is synchronized.
//
// Sources are synchronized independently: a failing source does not stop
// the others, and its breakpoints keep their previous confirmation. The
// returned error combines the failures of all sources.
func (a *BreakpointApplier) ApplySessionBreakpoints(ctx context.Context, session Adapter, source *dap.Source) error {
	if session == nil {
		return ErrNoSession
	}

	filter := ""
	if source != nil {
		filter = SourceKey(source)
		if filter == "" {
			return nil
		}
	}

	sessionID := session.ID()
	bps := a.store.Query(func(bp *Breakpoint) bool {
		if bp.Kind != BreakpointKindSource || bp.SessionID != sessionID {
			return false
		}
		key := SourceKey(bp.Source)
		return key != "" && (filter == "" || key == filter)
	})

	groups := groupBySource(bps)
	if len(groups) == 0 {
		return nil
	}

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs error
	)
	g.SetLimit(a.limit)

	for _, group := range groups {
		g.Go(func() error {
			if err := a.applyGroup(ctx, session, group); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("set breakpoints for %s: %w", group.key, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return errs
}

// applyGroup sends one setBreakpoints request and writes the confirmations
// back. Disabled breakpoints are not sent and lose their confirmation; a
// source whose breakpoints are all disabled is sent an empty list so the
// adapter drops what it had.
func (a *BreakpointApplier) applyGroup(ctx context.Context, session Adapter, group *sourceGroup) error {
	bindings := make([]binding, 0, len(group.bps))
	for _, bp := range group.bps {
		if bp.Enabled {
			bindings = append(bindings, binding{bp: bp, spec: bp.Origin.Spec()})
		}
	}

	args := dap.SetBreakpointsArguments{
		Source:      group.source,
		Breakpoints: make([]dap.SourceBreakpoint, len(bindings)),
		Lines:       make([]int, len(bindings)),
	}
	for i, b := range bindings {
		args.Breakpoints[i] = b.spec
		args.Lines[i] = b.spec.Line
	}

	a.stats.Counter("sync").Inc(1)
	results, err := session.SetBreakpoints(ctx, args)
	if err != nil {
		a.stats.Counter("sync_failed").Inc(1)
		a.logger.Warn("set breakpoints failed",
			zap.String("session", session.ID()),
			zap.String("source", group.key),
			zap.Error(err))
		return err
	}

	confirmed := pairResults(bindings, results)
	if confirmed < len(bindings) {
		a.stats.Counter("unconfirmed").Inc(int64(len(bindings) - confirmed))
		a.logger.Warn("adapter confirmed fewer breakpoints than requested",
			zap.String("source", group.key),
			zap.Int("requested", len(bindings)),
			zap.Int("confirmed", confirmed))
	}

	for _, b := range bindings {
		if b.result != nil {
			b.bp.Created = b.result
		}
	}
	for _, bp := range group.bps {
		if !bp.Enabled {
			bp.Created = nil
		}
	}

	a.store.BulkUpdate(group.bps)

	a.logger.Debug("breakpoints synchronized",
		zap.String("session", session.ID()),
		zap.String("source", group.key),
		zap.Int("requested", len(bindings)),
		zap.Int("confirmed", confirmed))
	return nil
}

// pairResults assigns results to bindings by position and returns how many
// were assigned. Extra results are ignored.
func pairResults(bindings []binding, results []dap.Breakpoint) int {
	n := min(len(bindings), len(results))
	for i := 0; i < n; i++ {
		r := results[i]
		bindings[i].result = &r
	}
	return n
}

// groupBySource groups breakpoints by SourceKey. Groups appear in the order
// of their first breakpoint and keep the breakpoints' order.
func groupBySource(bps []*Breakpoint) []*sourceGroup {
	var groups []*sourceGroup
	index := make(map[string]*sourceGroup)

	for _, bp := range bps {
		key := SourceKey(bp.Source)
		if key == "" {
			continue
		}
		group, ok := index[key]
		if !ok {
			group = &sourceGroup{key: key, source: *bp.Source}
			index[key] = group
			groups = append(groups, group)
		}
		group.bps = append(group.bps, bp)
	}
	return groups
}
