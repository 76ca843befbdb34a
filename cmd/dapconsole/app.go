package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/uber-go/tally/v4"
	"go.uber.org/zap"

	"github.com/dshills/dapconsole/internal/breakpoints"
	"github.com/dshills/dapconsole/internal/config"
	"github.com/dshills/dapconsole/internal/integration"
	"github.com/dshills/dapconsole/internal/integration/debug"
	"github.com/dshills/dapconsole/internal/integration/debug/dap"
	"github.com/dshills/dapconsole/internal/logging"
)

const (
	shutdownTimeout = 2 * time.Second
	statsInterval   = time.Second
)

// app wires one debug session to the console, the breakpoint file and the
// terminal.
type app struct {
	cfg    *config.Config
	logger   *zap.Logger
	stats    tally.Scope
	reporter *logging.StatsReporter

	store    *debug.MemoryBreakpointStore
	applier  *debug.BreakpointApplier
	manager  *debug.SessionManager
	console  *debug.ConsoleSession
	nodeOpts []debug.NodeOption
	reloader *breakpoints.Reloader
	watcher  *breakpoints.Watcher
	printer  *printer

	session   *debug.Session
	navigator *debug.StackNavigator

	terminated     chan struct{}
	terminatedOnce sync.Once
	wg             sync.WaitGroup
}

func runConsole(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) error {
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	reporter := logging.NewStatsReporter(logger.Named("stats"))
	stats, closer := tally.NewRootScope(tally.ScopeOptions{
		Prefix:                 "dapconsole",
		Reporter:               reporter,
		OmitCardinalityMetrics: true,
	}, statsInterval)
	defer func() { _ = closer.Close() }()

	a := newApp(cfg, logger, stats, out)
	a.reporter = reporter

	detach := a.console.Attach(ctx, a.manager)
	defer detach()

	view := newConsoleView(ctx, a.console, a.printer)
	unsubscribe := a.console.Subscribe(view.refresh)
	defer unsubscribe()

	if err := a.connect(ctx); err != nil {
		return err
	}
	defer a.shutdown()

	if err := a.startWatcher(ctx); err != nil {
		logger.Warn("breakpoints file not watched", zap.Error(err))
	}

	return a.repl(ctx, in)
}

func newApp(cfg *config.Config, logger *zap.Logger, stats tally.Scope, out io.Writer) *app {
	store := debug.NewMemoryBreakpointStore()
	manager := debug.NewSessionManager()
	nodeOpts := []debug.NodeOption{
		debug.WithChunkSize(cfg.Console.ChunkSize),
		debug.WithNodeLogger(logger.Named("variables")),
		debug.WithNodeStats(stats),
	}

	a := &app{
		cfg:    cfg,
		logger: logger,
		stats:  stats,
		store:  store,
		applier: debug.NewBreakpointApplier(store,
			debug.WithApplierLogger(logger.Named("breakpoints")),
			debug.WithApplierStats(stats),
			debug.WithMaxConcurrentSources(cfg.Breakpoints.MaxConcurrentSources)),
		manager:  manager,
		nodeOpts: nodeOpts,
		console: debug.NewConsoleSession(manager,
			debug.WithConsoleLogger(logger.Named("console")),
			debug.WithConsoleStats(stats),
			debug.WithConsoleNodeOptions(nodeOpts...)),
		printer:    newPrinter(out, cfg.Console.ExpandDepth),
		terminated: make(chan struct{}),
	}
	if cfg.Breakpoints.File != "" {
		a.reloader = breakpoints.NewReloader(cfg.Breakpoints.File, store, a.applier, logger.Named("breakpoints"))
	}
	return a
}

// connect dials the adapter, performs the initialize handshake, sends the
// declared breakpoints and finishes configuration.
func (a *app) connect(ctx context.Context) error {
	session, err := dialWithRetry(ctx, a.cfg.Adapter.DialAttempts, dialBackOff(),
		a.logger.With(zap.String("address", a.cfg.Adapter.Address)),
		func() (*debug.Session, error) {
			return debug.NewSocketSession(a.cfg.Adapter.Address, a.cfg.Adapter.DialTimeout.Std(),
				debug.WithSessionLogger(a.logger.Named("session")),
				debug.WithRequestTimeout(a.cfg.Adapter.RequestTimeout.Std()))
		})
	if err != nil {
		return fmt.Errorf("connect to %s: %w", a.cfg.Adapter.Address, err)
	}

	a.session = session
	a.navigator = debug.NewStackNavigator(session)
	session.SetHandlers(debug.SessionHandlers{
		OnStopped:    a.onStopped,
		OnTerminated: a.onTerminated,
		OnBreakpointChanged: func(reason string, bp dap.Breakpoint) {
			a.logger.Debug("adapter changed breakpoint",
				zap.String("reason", reason),
				zap.Int("id", bp.Id),
				zap.Bool("verified", bp.Verified))
		},
	})

	sc := debug.DefaultSessionConfig()
	sc.AdapterID = a.cfg.Adapter.AdapterID
	if err := session.Initialize(ctx, sc); err != nil {
		_ = session.Close()
		return err
	}

	if err := a.manager.Add(session); err != nil {
		_ = session.Close()
		return err
	}

	if err := a.syncBreakpoints(ctx); err != nil {
		a.printer.printLine("error: %v", err)
	}

	if err := session.ConfigurationDone(ctx); err != nil {
		_ = a.manager.Remove(session.ID())
		_ = session.Close()
		return err
	}

	a.printer.printLine("connected to %s (session %s)", a.cfg.Adapter.Address, session.ID())
	return nil
}

func (a *app) syncBreakpoints(ctx context.Context) error {
	adapter := a.manager.Active()
	if adapter == nil {
		return debug.ErrNoSession
	}
	if a.reloader != nil {
		return a.reloader.Reload(ctx, adapter)
	}
	return a.applier.ApplySessionBreakpoints(ctx, adapter, nil)
}

func (a *app) startWatcher(ctx context.Context) error {
	if a.reloader == nil || !a.cfg.Breakpoints.Watch {
		return nil
	}

	w, err := breakpoints.NewWatcher(a.reloader.Path(), func() {
		if err := a.syncBreakpoints(ctx); err != nil {
			a.printer.printLine("error: reloading breakpoints: %v", err)
			return
		}
		a.printer.printLine("breakpoints reloaded")
	},
		breakpoints.WithDebounce(a.cfg.Breakpoints.ReloadDebounce.Std()),
		breakpoints.WithWatcherLogger(a.logger.Named("watcher")))
	if err != nil {
		return err
	}
	a.watcher = w
	return nil
}

func (a *app) onStopped(reason string, threadID int) {
	a.wg.Add(1)
	integration.SafeGo(func() {
		defer a.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Adapter.RequestTimeout.Std()+shutdownTimeout)
		defer cancel()

		a.printer.printLine("stopped: %s (thread %d)", reason, threadID)
		if _, err := a.navigator.Refresh(ctx, threadID); err != nil {
			a.printer.printLine("error: %v", err)
			return
		}
		if frame, err := a.navigator.CurrentFrame(); err == nil {
			a.printer.printLine("  at %s", frame.FormatLocation())
		}
	}, func(recovered any) {
		a.logger.Error("panic handling stopped event", zap.Any("panic", recovered))
	})
}

func (a *app) onTerminated() {
	a.terminatedOnce.Do(func() {
		a.printer.printLine("debuggee terminated")
		if err := a.manager.Remove(a.session.ID()); err != nil {
			a.logger.Debug("removing session", zap.Error(err))
		}
		close(a.terminated)
	})
}

// repl reads commands until the input ends, the debuggee terminates or
// ctx is cancelled.
func (a *app) repl(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-a.terminated:
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := a.handleLine(ctx, line); quit {
				return nil
			}
		}
	}
}

// handleLine runs one REPL line and reports whether the console should exit.
func (a *app) handleLine(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, ":") {
		a.console.Execute(ctx, line)
		return false
	}

	name, arg, _ := strings.Cut(line[1:], " ")
	switch name {
	case "stack", "bt", "more", "up", "down", "frame":
		if a.navigator == nil {
			a.printer.printLine("error: %v", debug.ErrNoSession)
			return false
		}
	}

	switch name {
	case "quit", "q":
		return true
	case "clear":
		a.console.Clear()
	case "scopes":
		a.printScopes(ctx)
	case "stack", "bt":
		a.printStack()
	case "more":
		if err := a.navigator.FetchMoreFrames(ctx); err != nil {
			a.printer.printLine("error: %v", err)
			return false
		}
		a.printStack()
	case "up":
		a.moveFrame(a.navigator.SelectFrameUp)
	case "down":
		a.moveFrame(a.navigator.SelectFrameDown)
	case "frame":
		index, err := strconv.Atoi(strings.TrimSpace(arg))
		if err != nil {
			a.printer.printLine("error: usage :frame <index>")
			return false
		}
		a.moveFrame(func() error { return a.navigator.SelectFrame(index) })
	case "breakpoints", "bp":
		a.printBreakpoints()
	case "reload":
		if err := a.syncBreakpoints(ctx); err != nil {
			a.printer.printLine("error: %v", err)
		}
		a.printBreakpoints()
	case "stats":
		a.printStats()
	case "help":
		a.printer.printLine("%s", helpText)
	default:
		a.printer.printLine("error: unknown command :%s (try :help)", name)
	}
	return false
}

const helpText = `expression     evaluate in the selected frame
:scopes        show the variables of the selected frame
:stack         show the call stack (:more loads more frames)
:up :down      select the caller or callee frame
:frame N       select frame N
:breakpoints   list breakpoints (:reload rereads the breakpoints file)
:stats        show metric counters (updated every second)
:clear         clear the console
:quit          exit`

func (a *app) moveFrame(selectFrame func() error) {
	if err := selectFrame(); err != nil {
		a.printer.printLine("error: %v", err)
		return
	}
	if frame, err := a.navigator.CurrentFrame(); err == nil {
		a.printer.printLine("%s at %s", frame.Name, frame.FormatLocation())
	}
}

func (a *app) printStack() {
	trace := a.navigator.FormatStackTrace()
	if trace == "" {
		a.printer.printLine("error: %v", debug.ErrNoCallStack)
		return
	}
	a.printer.printLine("%s", strings.TrimRight(trace, "\n"))
}

func (a *app) printScopes(ctx context.Context) {
	adapter := a.manager.Active()
	if adapter == nil {
		a.printer.printLine("error: %v", debug.ErrNoSession)
		return
	}

	scopes, err := debug.ScopeNodes(ctx, adapter, adapter.CurrentFrameID(), a.nodeOpts...)
	if err != nil {
		a.printer.printLine("error: %v", err)
		return
	}

	items := make([]debug.Item, 0, len(scopes))
	for _, node := range scopes {
		items = append(items, debug.Item{Kind: debug.ItemVariable, Node: node})
	}
	a.printer.print(ctx, items)
}

func (a *app) printBreakpoints() {
	bps := a.store.All()
	if len(bps) == 0 {
		a.printer.printLine("no breakpoints")
		return
	}
	for _, bp := range bps {
		state := "unverified"
		switch {
		case !bp.Enabled:
			state = "disabled"
		case bp.Verified():
			state = "verified"
		}
		a.printer.printLine("%s [%s]", bp, state)
	}
}

func (a *app) printStats() {
	if a.reporter == nil {
		a.printer.printLine("no metrics")
		return
	}
	counters := a.reporter.Counters()
	if len(counters) == 0 {
		a.printer.printLine("no metrics reported yet")
		return
	}
	for _, name := range slices.Sorted(maps.Keys(counters)) {
		a.printer.printLine("%-40s %d", name, counters[name])
	}
}

func (a *app) shutdown() {
	if a.watcher != nil {
		if err := a.watcher.Close(); err != nil && !errors.Is(err, breakpoints.ErrWatcherClosed) {
			a.logger.Warn("closing watcher", zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	select {
	case <-a.terminated:
	default:
		if err := a.session.Disconnect(ctx); err != nil {
			a.logger.Debug("disconnect", zap.Error(err))
		}
	}
	_ = a.manager.Remove(a.session.ID())
	if err := a.session.Close(); err != nil {
		a.logger.Debug("closing session", zap.Error(err))
	}

	a.wg.Wait()
}
