package debug

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally/v4"
	"go.uber.org/mock/gomock"
	"go.uber.org/multierr"

	"github.com/dshills/dapconsole/internal/integration/debug/dap"
	"github.com/dshills/dapconsole/internal/integration/debug/debugmock"
)

func newMockAdapter(t *testing.T, id string) *debugmock.MockAdapter {
	t.Helper()
	ctrl := gomock.NewController(t)
	m := debugmock.NewMockAdapter(ctrl)
	m.EXPECT().ID().Return(id).AnyTimes()
	return m
}

// confirmAll answers setBreakpoints with one verified breakpoint per request entry.
func confirmAll(_ context.Context, args dap.SetBreakpointsArguments) ([]dap.Breakpoint, error) {
	out := make([]dap.Breakpoint, len(args.Breakpoints))
	for i, sb := range args.Breakpoints {
		out[i] = dap.Breakpoint{Id: i + 1, Verified: true, Line: sb.Line}
	}
	return out, nil
}

func counterValue(scope tally.TestScope, name string) int64 {
	for _, c := range scope.Snapshot().Counters() {
		if c.Name() == name {
			return c.Value()
		}
	}
	return 0
}

func storeBreakpoints(store *MemoryBreakpointStore, session string) map[int]*Breakpoint {
	out := make(map[int]*Breakpoint)
	for _, bp := range store.Query(func(bp *Breakpoint) bool {
		return bp.SessionID == session && bp.Kind == BreakpointKindSource
	}) {
		out[bp.Origin.Line] = bp
	}
	return out
}

func TestApplySessionBreakpointsConfirmsAll(t *testing.T) {
	store := NewMemoryBreakpointStore()
	store.Add(sourceBP("s1", "/src/main.go", 10))
	store.Add(sourceBP("s1", "/src/main.go", 20))
	store.Add(sourceBP("s1", "/src/util.go", 5))
	otherID := store.Add(sourceBP("s2", "/src/main.go", 10))
	fnID := store.Add(&Breakpoint{SessionID: "s1", Kind: BreakpointKindFunction, FunctionName: "main.run", Enabled: true})

	adapter := newMockAdapter(t, "s1")
	var mu sync.Mutex
	requests := make(map[string][]int)
	adapter.EXPECT().SetBreakpoints(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, args dap.SetBreakpointsArguments) ([]dap.Breakpoint, error) {
			mu.Lock()
			requests[args.Source.Path] = args.Lines
			mu.Unlock()
			return confirmAll(ctx, args)
		}).Times(2)

	applier := NewBreakpointApplier(store)
	require.NoError(t, applier.ApplySessionBreakpoints(context.Background(), adapter, nil))

	assert.Equal(t, map[string][]int{
		"/src/main.go": {10, 20},
		"/src/util.go": {5},
	}, requests)

	for line, bp := range storeBreakpoints(store, "s1") {
		require.NotNil(t, bp.Created, "line %d", line)
		assert.True(t, bp.Verified())
		assert.Equal(t, line, bp.Created.Line)
	}

	other, _ := store.Get(otherID)
	assert.Nil(t, other.Created, "other sessions are untouched")
	fn, _ := store.Get(fnID)
	assert.Nil(t, fn.Created, "function breakpoints are untouched")
}

func TestApplySessionBreakpointsSendsSpecs(t *testing.T) {
	store := NewMemoryBreakpointStore()
	bp := sourceBP("s1", "/src/main.go", 10)
	bp.Origin = BreakpointOrigin{Line: 10, Column: 4, Condition: "i == 3", HitCondition: "2", LogMessage: "i={i}"}
	store.Add(bp)

	adapter := newMockAdapter(t, "s1")
	adapter.EXPECT().SetBreakpoints(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, args dap.SetBreakpointsArguments) ([]dap.Breakpoint, error) {
			require.Len(t, args.Breakpoints, 1)
			assert.Equal(t, bp.Origin.Spec(), args.Breakpoints[0])
			assert.Equal(t, "main.go", args.Source.Name)
			return confirmAll(ctx, args)
		})

	require.NoError(t, NewBreakpointApplier(store).ApplySessionBreakpoints(context.Background(), adapter, nil))
}

func TestApplySessionBreakpointsShortResponse(t *testing.T) {
	store := NewMemoryBreakpointStore()
	first := store.Add(sourceBP("s1", "/src/main.go", 10))
	second := store.Add(sourceBP("s1", "/src/main.go", 20))

	bps := store.All()
	bps[1].Created = &dap.Breakpoint{Id: 77, Verified: true, Line: 20}
	store.BulkUpdate(bps)

	stats := tally.NewTestScope("", nil)
	adapter := newMockAdapter(t, "s1")
	adapter.EXPECT().SetBreakpoints(gomock.Any(), gomock.Any()).
		Return([]dap.Breakpoint{{Id: 1, Verified: true, Line: 11}}, nil)

	applier := NewBreakpointApplier(store, WithApplierStats(stats))
	require.NoError(t, applier.ApplySessionBreakpoints(context.Background(), adapter, nil))

	got, _ := store.Get(first)
	require.NotNil(t, got.Created)
	assert.Equal(t, 11, got.Created.Line)
	assert.Equal(t, 11, got.Line())

	got, _ = store.Get(second)
	require.NotNil(t, got.Created)
	assert.Equal(t, 77, got.Created.Id, "unanswered breakpoint keeps its previous confirmation")

	assert.Equal(t, int64(1), counterValue(stats, "breakpoints.unconfirmed"))
}

func TestApplySessionBreakpointsLongResponse(t *testing.T) {
	store := NewMemoryBreakpointStore()
	id := store.Add(sourceBP("s1", "/src/main.go", 10))

	adapter := newMockAdapter(t, "s1")
	adapter.EXPECT().SetBreakpoints(gomock.Any(), gomock.Any()).
		Return([]dap.Breakpoint{{Id: 1, Verified: true, Line: 10}, {Id: 2, Verified: true, Line: 99}}, nil)

	require.NoError(t, NewBreakpointApplier(store).ApplySessionBreakpoints(context.Background(), adapter, nil))

	got, _ := store.Get(id)
	require.NotNil(t, got.Created)
	assert.Equal(t, 1, got.Created.Id)
	assert.Len(t, store.All(), 1)
}

func TestApplySessionBreakpointsNoBreakpoints(t *testing.T) {
	store := NewMemoryBreakpointStore()
	store.Add(sourceBP("s2", "/src/main.go", 10))

	// No SetBreakpoints expectation: any call fails the test.
	adapter := newMockAdapter(t, "s1")

	require.NoError(t, NewBreakpointApplier(store).ApplySessionBreakpoints(context.Background(), adapter, nil))
}

func TestApplySessionBreakpointsSourceFilter(t *testing.T) {
	store := NewMemoryBreakpointStore()
	mainID := store.Add(sourceBP("s1", "/src/main.go", 10))
	utilID := store.Add(sourceBP("s1", "/src/util.go", 5))

	adapter := newMockAdapter(t, "s1")
	adapter.EXPECT().SetBreakpoints(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, args dap.SetBreakpointsArguments) ([]dap.Breakpoint, error) {
			assert.Equal(t, "/src/main.go", args.Source.Path)
			return confirmAll(ctx, args)
		})

	filter := &dap.Source{Path: "/src/pkg/../main.go"}
	require.NoError(t, NewBreakpointApplier(store).ApplySessionBreakpoints(context.Background(), adapter, filter))

	got, _ := store.Get(mainID)
	assert.True(t, got.Verified())
	got, _ = store.Get(utilID)
	assert.Nil(t, got.Created)
}

func TestApplySessionBreakpointsFailureIsolation(t *testing.T) {
	store := NewMemoryBreakpointStore()
	store.Add(sourceBP("s1", "/src/good.go", 1))
	badID := store.Add(sourceBP("s1", "/src/bad.go", 2))

	bps := store.All()
	bps[1].Created = &dap.Breakpoint{Id: 5, Verified: true, Line: 2}
	store.BulkUpdate(bps)

	errAdapter := errors.New("adapter exploded")
	stats := tally.NewTestScope("", nil)
	adapter := newMockAdapter(t, "s1")
	adapter.EXPECT().SetBreakpoints(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, args dap.SetBreakpointsArguments) ([]dap.Breakpoint, error) {
			if args.Source.Path == "/src/bad.go" {
				return nil, errAdapter
			}
			return confirmAll(ctx, args)
		}).Times(2)

	applier := NewBreakpointApplier(store, WithApplierStats(stats))
	err := applier.ApplySessionBreakpoints(context.Background(), adapter, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errAdapter)
	assert.Len(t, multierr.Errors(err), 1)
	assert.Contains(t, err.Error(), "file:///src/bad.go")

	byLine := storeBreakpoints(store, "s1")
	assert.True(t, byLine[1].Verified(), "healthy source is synchronized")
	assert.Equal(t, 5, byLine[2].Created.Id, "failed source keeps its previous confirmation")
	_, ok := store.Get(badID)
	assert.True(t, ok)

	assert.Equal(t, int64(2), counterValue(stats, "breakpoints.sync"))
	assert.Equal(t, int64(1), counterValue(stats, "breakpoints.sync_failed"))
}

func TestApplySessionBreakpointsMultipleFailures(t *testing.T) {
	store := NewMemoryBreakpointStore()
	store.Add(sourceBP("s1", "/src/a.go", 1))
	store.Add(sourceBP("s1", "/src/b.go", 2))

	adapter := newMockAdapter(t, "s1")
	adapter.EXPECT().SetBreakpoints(gomock.Any(), gomock.Any()).
		Return(nil, errors.New("boom")).Times(2)

	err := NewBreakpointApplier(store).ApplySessionBreakpoints(context.Background(), adapter, nil)
	assert.Len(t, multierr.Errors(err), 2)
}

func TestApplySessionBreakpointsNoSession(t *testing.T) {
	store := NewMemoryBreakpointStore()
	store.Add(sourceBP("s1", "/src/main.go", 10))

	err := NewBreakpointApplier(store).ApplySessionBreakpoints(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestApplySessionBreakpointsDisabled(t *testing.T) {
	store := NewMemoryBreakpointStore()
	enabledID := store.Add(sourceBP("s1", "/src/main.go", 10))
	disabled := sourceBP("s1", "/src/main.go", 20)
	disabled.Enabled = false
	disabled.Created = &dap.Breakpoint{Verified: true, Line: 20}
	disabledID := store.Add(disabled)

	adapter := newMockAdapter(t, "s1")
	adapter.EXPECT().SetBreakpoints(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, args dap.SetBreakpointsArguments) ([]dap.Breakpoint, error) {
			assert.Equal(t, []int{10}, args.Lines)
			return confirmAll(ctx, args)
		})

	require.NoError(t, NewBreakpointApplier(store).ApplySessionBreakpoints(context.Background(), adapter, nil))

	got, _ := store.Get(enabledID)
	assert.True(t, got.Verified())
	got, _ = store.Get(disabledID)
	assert.Nil(t, got.Created)
}

func TestApplySessionBreakpointsAllDisabledClearsSource(t *testing.T) {
	store := NewMemoryBreakpointStore()
	bp := sourceBP("s1", "/src/main.go", 10)
	bp.Enabled = false
	store.Add(bp)

	adapter := newMockAdapter(t, "s1")
	adapter.EXPECT().SetBreakpoints(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, args dap.SetBreakpointsArguments) ([]dap.Breakpoint, error) {
			assert.Empty(t, args.Breakpoints)
			assert.Equal(t, "/src/main.go", args.Source.Path)
			return nil, nil
		})

	require.NoError(t, NewBreakpointApplier(store).ApplySessionBreakpoints(context.Background(), adapter, nil))
}

func TestApplySessionBreakpointsConcurrencyLimit(t *testing.T) {
	store := NewMemoryBreakpointStore()
	for _, path := range []string{"/src/a.go", "/src/b.go", "/src/c.go", "/src/d.go"} {
		store.Add(sourceBP("s1", path, 1))
	}

	var inFlight, peak atomic.Int32
	adapter := newMockAdapter(t, "s1")
	adapter.EXPECT().SetBreakpoints(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, args dap.SetBreakpointsArguments) ([]dap.Breakpoint, error) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inFlight.Add(-1)
			return confirmAll(ctx, args)
		}).Times(4)

	applier := NewBreakpointApplier(store, WithMaxConcurrentSources(1))
	require.NoError(t, applier.ApplySessionBreakpoints(context.Background(), adapter, nil))
	assert.Equal(t, int32(1), peak.Load())
}

func TestPairResults(t *testing.T) {
	bindings := make([]binding, 3)

	assert.Equal(t, 2, pairResults(bindings, []dap.Breakpoint{{Line: 1}, {Line: 2}}))
	require.NotNil(t, bindings[0].result)
	assert.Equal(t, 2, bindings[1].result.Line)
	assert.Nil(t, bindings[2].result)

	assert.Equal(t, 0, pairResults(nil, []dap.Breakpoint{{Line: 1}}))
}

func TestGroupBySource(t *testing.T) {
	bps := []*Breakpoint{
		sourceBP("s1", "/src/b.go", 1),
		sourceBP("s1", "/src/a.go", 2),
		sourceBP("s1", "/src/./b.go", 3),
		{Kind: BreakpointKindSource},
	}

	groups := groupBySource(bps)
	require.Len(t, groups, 2)
	assert.Equal(t, "file:///src/b.go", groups[0].key)
	assert.Len(t, groups[0].bps, 2)
	assert.Equal(t, 3, groups[0].bps[1].Origin.Line)
	assert.Equal(t, "file:///src/a.go", groups[1].key)
}

func TestApplySessionBreakpointsKeepsEditsMadeDuringSync(t *testing.T) {
	store := NewMemoryBreakpointStore()
	toggled := store.Add(sourceBP("s1", "/src/main.go", 10))
	store.Add(sourceBP("s1", "/src/main.go", 20))

	adapter := newMockAdapter(t, "s1")
	adapter.EXPECT().SetBreakpoints(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, args dap.SetBreakpointsArguments) ([]dap.Breakpoint, error) {
			assert.NoError(t, store.SetEnabled(toggled, false))
			return confirmAll(ctx, args)
		})

	applier := NewBreakpointApplier(store)
	require.NoError(t, applier.ApplySessionBreakpoints(context.Background(), adapter, nil))

	got, ok := store.Get(toggled)
	require.True(t, ok)
	assert.False(t, got.Enabled, "disabling during the request must survive the write-back")
	assert.Nil(t, got.Created)

	bps := storeBreakpoints(store, "s1")
	assert.True(t, bps[20].Verified())
}

func TestApplySessionBreakpointsKeepsRedeclaredOrigin(t *testing.T) {
	store := NewMemoryBreakpointStore()
	id := store.Add(sourceBP("s1", "/src/main.go", 10))

	redeclared := sourceBP("", "/src/main.go", 10)
	redeclared.Origin.Condition = "i > 3"

	adapter := newMockAdapter(t, "s1")
	adapter.EXPECT().SetBreakpoints(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, args dap.SetBreakpointsArguments) ([]dap.Breakpoint, error) {
			store.ReplaceDeclared("s1", []*Breakpoint{redeclared})
			return confirmAll(ctx, args)
		})

	applier := NewBreakpointApplier(store)
	require.NoError(t, applier.ApplySessionBreakpoints(context.Background(), adapter, nil))

	got, ok := store.Get(id)
	require.True(t, ok)
	assert.Equal(t, "i > 3", got.Origin.Condition)
	assert.Nil(t, got.Created, "confirmation of the old declaration is not stored")
}
