package breakpoints

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/dshills/dapconsole/internal/integration/debug"
	"github.com/dshills/dapconsole/internal/integration/debug/dap"
)

// Store is a breakpoint store whose declared set can be replaced wholesale.
type Store interface {
	debug.BreakpointStore
	ReplaceDeclared(sessionID string, bps []*debug.Breakpoint)
}

// Reloader makes a session's breakpoints match a breakpoints file. Reloads
// are serialized, so the watcher and explicit reloads may overlap safely.
type Reloader struct {
	mu sync.Mutex

	path    string
	store   Store
	applier *debug.BreakpointApplier
	logger  *zap.Logger
}

// NewReloader creates a reloader for the file at path.
func NewReloader(path string, store Store, applier *debug.BreakpointApplier, logger *zap.Logger) *Reloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reloader{
		path:    path,
		store:   store,
		applier: applier,
		logger:  logger,
	}
}

// Path returns the breakpoints file path.
func (r *Reloader) Path() string {
	return r.path
}

// Reload reads the file, replaces the session's declared source breakpoints
// and synchronizes them. Sources that no longer have any breakpoint are
// sent an empty list so the adapter drops what it had for them.
func (r *Reloader) Reload(ctx context.Context, session debug.Adapter) error {
	if session == nil {
		return debug.ErrNoSession
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	bps, err := Load(r.path)
	if err != nil {
		return err
	}

	sessionID := session.ID()
	before := r.declaredSources(sessionID)
	r.store.ReplaceDeclared(sessionID, bps)
	after := r.declaredSources(sessionID)

	r.logger.Info("breakpoints loaded",
		zap.String("file", r.path),
		zap.String("session", sessionID),
		zap.Int("count", len(bps)))

	err = r.applier.ApplySessionBreakpoints(ctx, session, nil)

	for key, src := range before {
		if _, ok := after[key]; ok {
			continue
		}
		if _, clearErr := session.SetBreakpoints(ctx, dap.SetBreakpointsArguments{
			Source:      src,
			Breakpoints: []dap.SourceBreakpoint{},
			Lines:       []int{},
		}); clearErr != nil {
			err = multierr.Append(err, fmt.Errorf("clear breakpoints for %s: %w", key, clearErr))
		}
	}
	return err
}

func (r *Reloader) declaredSources(sessionID string) map[string]dap.Source {
	sources := make(map[string]dap.Source)
	for _, bp := range r.store.Query(func(bp *debug.Breakpoint) bool {
		return bp.Kind == debug.BreakpointKindSource && bp.SessionID == sessionID
	}) {
		if key := debug.SourceKey(bp.Source); key != "" {
			sources[key] = *bp.Source
		}
	}
	return sources
}
