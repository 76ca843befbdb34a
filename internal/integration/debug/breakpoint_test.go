package debug

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/dapconsole/internal/integration/debug/dap"
)

func sourceBP(session, path string, line int) *Breakpoint {
	return &Breakpoint{
		SessionID: session,
		Kind:      BreakpointKindSource,
		Source:    &dap.Source{Path: path, Name: "main.go"},
		Origin:    BreakpointOrigin{Line: line},
		Enabled:   true,
	}
}

func TestBreakpointKindString(t *testing.T) {
	assert.Equal(t, "source", BreakpointKindSource.String())
	assert.Equal(t, "function", BreakpointKindFunction.String())
	assert.Equal(t, "data", BreakpointKindData.String())
	assert.Equal(t, "unknown", BreakpointKind(42).String())
}

func TestBreakpointOriginSpec(t *testing.T) {
	origin := BreakpointOrigin{Line: 12, Column: 3, Condition: "x > 1", HitCondition: "5", LogMessage: "x={x}"}

	spec := origin.Spec()
	assert.Equal(t, 12, spec.Line)
	assert.Equal(t, 3, spec.Column)
	assert.Equal(t, "x > 1", spec.Condition)
	assert.Equal(t, "5", spec.HitCondition)
	assert.Equal(t, "x={x}", spec.LogMessage)
}

func TestBreakpointLineAndVerified(t *testing.T) {
	bp := sourceBP("s1", "/src/main.go", 10)
	assert.False(t, bp.Verified())
	assert.Equal(t, 10, bp.Line())
	assert.Equal(t, "main.go:10", bp.String())

	bp.Created = &dap.Breakpoint{Verified: true, Line: 11}
	assert.True(t, bp.Verified())
	assert.Equal(t, 11, bp.Line())
	assert.Equal(t, "main.go:11", bp.String())

	bp.Created = &dap.Breakpoint{Verified: false}
	assert.False(t, bp.Verified())
	assert.Equal(t, 10, bp.Line())

	fn := &Breakpoint{Kind: BreakpointKindFunction, FunctionName: "main.run"}
	assert.Equal(t, "main.run()", fn.String())
}

func TestBreakpointClone(t *testing.T) {
	bp := sourceBP("s1", "/src/main.go", 10)
	bp.Created = &dap.Breakpoint{Verified: true, Line: 10}

	c := bp.Clone()
	c.Source.Path = "/other.go"
	c.Created.Line = 99

	assert.Equal(t, "/src/main.go", bp.Source.Path)
	assert.Equal(t, 10, bp.Created.Line)
}

func TestMemoryBreakpointStoreAddGetRemove(t *testing.T) {
	store := NewMemoryBreakpointStore()

	id := store.Add(sourceBP("s1", "/src/main.go", 10))
	require.NotEmpty(t, id)

	got, ok := store.Get(id)
	require.True(t, ok)
	assert.Equal(t, 10, got.Origin.Line)

	got.Origin.Line = 20
	again, _ := store.Get(id)
	assert.Equal(t, 10, again.Origin.Line, "Get must return a copy")

	require.NoError(t, store.Remove(id))
	_, ok = store.Get(id)
	assert.False(t, ok)

	assert.ErrorIs(t, store.Remove(id), ErrBreakpointNotFound)
}

func TestMemoryBreakpointStoreKeepsExplicitID(t *testing.T) {
	store := NewMemoryBreakpointStore()
	bp := sourceBP("s1", "/src/main.go", 10)
	bp.ID = "bp-1"

	assert.Equal(t, "bp-1", store.Add(bp))
	bp.Origin.Line = 12
	assert.Equal(t, "bp-1", store.Add(bp))

	all := store.All()
	require.Len(t, all, 1)
	assert.Equal(t, 12, all[0].Origin.Line)
}

func TestMemoryBreakpointStoreEnable(t *testing.T) {
	store := NewMemoryBreakpointStore()
	id := store.Add(sourceBP("s1", "/src/main.go", 10))

	require.NoError(t, store.SetEnabled(id, false))
	got, _ := store.Get(id)
	assert.False(t, got.Enabled)

	enabled, err := store.Toggle(id)
	require.NoError(t, err)
	assert.True(t, enabled)

	_, err = store.Toggle("missing")
	assert.ErrorIs(t, err, ErrBreakpointNotFound)
	assert.ErrorIs(t, store.SetEnabled("missing", true), ErrBreakpointNotFound)
}

func TestMemoryBreakpointStoreQueryOrder(t *testing.T) {
	store := NewMemoryBreakpointStore()
	for _, line := range []int{30, 10, 20} {
		store.Add(sourceBP("s1", "/src/main.go", line))
	}
	store.Add(sourceBP("s2", "/src/main.go", 5))

	var lines []int
	for _, bp := range store.Query(func(bp *Breakpoint) bool { return bp.SessionID == "s1" }) {
		lines = append(lines, bp.Origin.Line)
	}
	assert.Equal(t, []int{30, 10, 20}, lines)
	assert.Len(t, store.Query(nil), 4)
}

func TestMemoryBreakpointStoreBulkUpdate(t *testing.T) {
	store := NewMemoryBreakpointStore()
	keep := store.Add(sourceBP("s1", "/src/main.go", 10))
	gone := store.Add(sourceBP("s1", "/src/main.go", 20))

	bps := store.All()
	for _, bp := range bps {
		bp.Created = &dap.Breakpoint{Verified: true, Line: bp.Origin.Line}
	}
	require.NoError(t, store.Remove(gone))

	store.BulkUpdate(bps)

	got, ok := store.Get(keep)
	require.True(t, ok)
	assert.True(t, got.Verified())
	_, ok = store.Get(gone)
	assert.False(t, ok, "removed breakpoint must not be resurrected")
}

func TestMemoryBreakpointStoreBulkUpdateOnlyConfirms(t *testing.T) {
	store := NewMemoryBreakpointStore()
	id := store.Add(sourceBP("s1", "/src/main.go", 10))

	stale := store.All()
	stale[0].Created = &dap.Breakpoint{Verified: true, Line: 10}
	stale[0].FunctionName = "ignored"
	stale[0].Source.Path = "/elsewhere.go"

	store.BulkUpdate(stale)

	got, ok := store.Get(id)
	require.True(t, ok)
	assert.True(t, got.Verified())
	assert.Empty(t, got.FunctionName)
	assert.Equal(t, "/src/main.go", got.Source.Path)

	stale = store.All()
	require.NoError(t, store.SetEnabled(id, false))
	stale[0].Created = nil
	store.BulkUpdate(stale)

	got, _ = store.Get(id)
	assert.False(t, got.Enabled)
	assert.True(t, got.Verified(), "write-back for a since-disabled breakpoint is skipped")
}

func TestMemoryBreakpointStoreReplaceDeclared(t *testing.T) {
	store := NewMemoryBreakpointStore()
	kept := store.Add(sourceBP("s1", "/src/main.go", 10))
	store.Add(sourceBP("s1", "/src/main.go", 20))
	other := store.Add(sourceBP("s2", "/src/main.go", 10))
	fn := store.Add(&Breakpoint{SessionID: "s1", Kind: BreakpointKindFunction, FunctionName: "main.run", Enabled: true})

	bps := store.All()
	bps[0].Created = &dap.Breakpoint{Verified: true, Line: 10}
	store.BulkUpdate(bps)

	store.ReplaceDeclared("s1", []*Breakpoint{
		sourceBP("", "/src/main.go", 10),
		sourceBP("", "/src/util.go", 3),
	})

	var s1Source []*Breakpoint
	for _, bp := range store.All() {
		if bp.SessionID == "s1" && bp.Kind == BreakpointKindSource {
			s1Source = append(s1Source, bp)
		}
	}
	require.Len(t, s1Source, 2)
	assert.Equal(t, kept, s1Source[0].ID)
	assert.True(t, s1Source[0].Verified(), "matching breakpoint keeps its confirmation")
	assert.Equal(t, "/src/util.go", s1Source[1].Source.Path)
	assert.NotEmpty(t, s1Source[1].ID)

	_, ok := store.Get(other)
	assert.True(t, ok)
	_, ok = store.Get(fn)
	assert.True(t, ok)
	assert.Len(t, store.All(), 4)
}

func TestSourceKey(t *testing.T) {
	tests := []struct {
		name string
		src  *dap.Source
		want string
	}{
		{name: "nil", src: nil, want: ""},
		{name: "empty", src: &dap.Source{}, want: ""},
		{name: "path", src: &dap.Source{Path: "/src/main.go"}, want: "file:///src/main.go"},
		{name: "unclean path", src: &dap.Source{Path: "/src/pkg/../main.go"}, want: "file:///src/main.go"},
		{name: "file uri", src: &dap.Source{Path: "file:///src/main.go"}, want: "file:///src/main.go"},
		{name: "reference", src: &dap.Source{SourceReference: 7, Name: "gen.go"}, want: "ref:7"},
		{name: "name only", src: &dap.Source{Name: "<eval>"}, want: "name:<eval>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SourceKey(tt.src))
		})
	}
}

func TestSameSource(t *testing.T) {
	assert.True(t, SameSource(&dap.Source{Path: "/src/main.go"}, &dap.Source{Path: "/src/./main.go", Name: "main.go"}))
	assert.False(t, SameSource(&dap.Source{Path: "/src/main.go"}, &dap.Source{Path: "/src/util.go"}))
	assert.False(t, SameSource(&dap.Source{}, &dap.Source{}))
	assert.False(t, SameSource(nil, nil))
}
