// Package debug implements the client side of a Debug Adapter Protocol
// session: keeping the adapter's breakpoints in line with the declared ones,
// and inspecting program state through a lazily expanded variable tree and
// a console log.
//
// # Architecture
//
//	┌───────────────────┐    setBreakpoints     ┌──────────────────┐
//	│ BreakpointStore   │──▶ BreakpointApplier ─▶│                  │
//	└───────────────────┘    (one per source)   │                  │
//	                                            │  Adapter         │
//	┌───────────────────┐    evaluate           │  (Session over   │
//	│ ConsoleSession    │──▶ Expression ───────▶│   dap.Client)    │
//	│  ordered []Item   │                       │                  │
//	└───────────────────┘    variables          │                  │
//	          ▲          ◀── VariableNode ◀─────│                  │
//	          └──────────── output events ──────└──────────────────┘
//
// # Breakpoints
//
// BreakpointApplier groups the enabled source breakpoints of a session by
// SourceKey and sends one setBreakpoints request per source. The adapter's
// answer is positionally aligned with the request; answer i is stored as
// the Created field of breakpoint i. Sources are synchronized concurrently
// and independently.
//
// # Variables
//
// A VariableNode fetches its children on the first Resolve and memoizes
// them. Collections with more indexed children than the chunk size are
// split into paging buckets labelled "[start..end]"; buckets are fetched
// only when they are resolved themselves.
//
// # Console
//
// ConsoleSession appends evaluated expressions and adapter output to an
// ordered log of tagged Items and notifies subscribers once per operation.
//
// # Usage
//
//	manager := debug.NewSessionManager()
//	console := debug.NewConsoleSession(manager)
//	detach := console.Attach(ctx, manager)
//	defer detach()
//
//	session, err := debug.NewSocketSession("127.0.0.1:4711", 5*time.Second)
//	if err != nil {
//	    return err
//	}
//	_ = session.Initialize(ctx, debug.DefaultSessionConfig())
//	_ = manager.Add(session)
//
//	applier := debug.NewBreakpointApplier(store)
//	_ = applier.ApplySessionBreakpoints(ctx, session, nil)
//	_ = session.ConfigurationDone(ctx)
//
//	console.Execute(ctx, "len(items)")
//
// # Subpackages
//
//   - dap: Debug Adapter Protocol transport and client
//   - debugmock: gomock mocks of Adapter
package debug
