package debug

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally/v4"
	"go.uber.org/mock/gomock"

	"github.com/dshills/dapconsole/internal/integration/debug/dap"
)

type staticProvider struct {
	adapter Adapter
}

func (p staticProvider) Active() Adapter { return p.adapter }

func labels(items []Item) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Label()
	}
	return out
}

func TestConsoleExecute(t *testing.T) {
	adapter := newMockAdapter(t, "s1")
	adapter.EXPECT().CurrentFrameID().Return(0)
	adapter.EXPECT().Evaluate(gomock.Any(), gomock.Any()).Return(&dap.EvaluateResponseBody{Result: "3"}, nil)

	stats := tally.NewTestScope("", nil)
	console := NewConsoleSession(staticProvider{adapter}, WithConsoleStats(stats))

	var notified atomic.Int32
	console.Subscribe(func() { notified.Add(1) })

	console.Execute(context.Background(), "1 + 2")

	items := console.Items()
	require.Len(t, items, 1)
	assert.Equal(t, ItemExpression, items[0].Kind)
	assert.NotEmpty(t, items[0].ID)
	assert.Equal(t, "1 + 2", items[0].Label())
	assert.Equal(t, "3", items[0].Expression.Value())
	assert.Equal(t, int32(1), notified.Load())

	assert.Equal(t, int64(1), counterValue(stats, "console.evaluate"))
	assert.Equal(t, int64(0), counterValue(stats, "console.evaluate_failed"))
}

func TestConsoleExecuteItemVisibleWhileEvaluating(t *testing.T) {
	var console *ConsoleSession
	adapter := newMockAdapter(t, "s1")
	adapter.EXPECT().CurrentFrameID().Return(0)
	adapter.EXPECT().Evaluate(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, dap.EvaluateArguments) (*dap.EvaluateResponseBody, error) {
			items := console.Items()
			require.Len(t, items, 1)
			assert.Equal(t, NotAvailable, items[0].Expression.Value())
			return &dap.EvaluateResponseBody{Result: "ok"}, nil
		})

	console = NewConsoleSession(staticProvider{adapter})
	console.Execute(context.Background(), "x")
}

func TestConsoleExecuteWithoutSession(t *testing.T) {
	stats := tally.NewTestScope("", nil)
	console := NewConsoleSession(staticProvider{}, WithConsoleStats(stats))

	console.Execute(context.Background(), "x")
	console.Execute(context.Background(), "y")

	items := console.Items()
	require.Len(t, items, 2)
	assert.Equal(t, []string{"x", "y"}, labels(items))
	assert.Equal(t, NoSessionMessage, items[1].Expression.Value())
	assert.Equal(t, int64(2), counterValue(stats, "console.evaluate_failed"))

	nilProvider := NewConsoleSession(nil)
	nilProvider.Execute(context.Background(), "z")
	assert.Equal(t, NoSessionMessage, nilProvider.Items()[0].Expression.Value())
}

func TestConsoleClear(t *testing.T) {
	console := NewConsoleSession(nil)
	console.Execute(context.Background(), "x")

	var notified int
	unsubscribe := console.Subscribe(func() { notified++ })
	console.Clear()
	assert.Empty(t, console.Items())
	assert.Equal(t, 1, notified)

	unsubscribe()
	console.Clear()
	assert.Equal(t, 1, notified)
}

func TestConsoleItemsIsSnapshot(t *testing.T) {
	console := NewConsoleSession(nil)
	console.LogOutput(context.Background(), nil, dap.OutputEventBody{Output: "a\n"})

	items := console.Items()
	items[0].Text = "changed"
	assert.Equal(t, "a", console.Items()[0].Text)
}

func TestConsoleLogOutputLines(t *testing.T) {
	tests := []struct {
		name     string
		body     dap.OutputEventBody
		want     []string
		severity Severity
	}{
		{
			name:     "single line",
			body:     dap.OutputEventBody{Category: dap.CategoryStdout, Output: "hello\n"},
			want:     []string{"hello"},
			severity: SeverityInfo,
		},
		{
			name:     "multiple lines",
			body:     dap.OutputEventBody{Category: dap.CategoryStdout, Output: "a\nb\r\nc"},
			want:     []string{"a", "b", "c"},
			severity: SeverityInfo,
		},
		{
			name:     "blank line kept",
			body:     dap.OutputEventBody{Output: "a\n\nb\n"},
			want:     []string{"a", "", "b"},
			severity: SeverityInfo,
		},
		{
			name:     "stderr",
			body:     dap.OutputEventBody{Category: dap.CategoryStderr, Output: "panic: boom\n"},
			want:     []string{"panic: boom"},
			severity: SeverityError,
		},
		{
			name:     "console",
			body:     dap.OutputEventBody{Category: dap.CategoryConsole, Output: "Type 'help' for help.\n"},
			want:     []string{"Type 'help' for help."},
			severity: SeverityWarning,
		},
		{
			name:     "important",
			body:     dap.OutputEventBody{Category: dap.CategoryImportant, Output: "breakpoint ignored\n"},
			want:     []string{"breakpoint ignored"},
			severity: SeverityWarning,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			console := NewConsoleSession(nil)
			var notified int
			console.Subscribe(func() { notified++ })

			console.LogOutput(context.Background(), nil, tt.body)

			items := console.Items()
			assert.Equal(t, tt.want, labels(items))
			for _, item := range items {
				assert.Equal(t, ItemText, item.Kind)
				assert.Equal(t, tt.severity, item.Severity)
			}
			assert.Equal(t, 1, notified)
		})
	}
}

func TestConsoleLogOutputTelemetry(t *testing.T) {
	console := NewConsoleSession(nil)
	var notified int
	console.Subscribe(func() { notified++ })

	console.LogOutput(context.Background(), nil, dap.OutputEventBody{Category: dap.CategoryTelemetry, Output: "metrics"})

	assert.Empty(t, console.Items())
	assert.Zero(t, notified)
}

func TestConsoleLogOutputEmpty(t *testing.T) {
	console := NewConsoleSession(nil)
	var notified int
	console.Subscribe(func() { notified++ })

	console.LogOutput(context.Background(), nil, dap.OutputEventBody{Category: dap.CategoryStdout})

	assert.Empty(t, console.Items())
	assert.Equal(t, 1, notified)
}

func TestConsoleLogOutputVariables(t *testing.T) {
	adapter := newMockAdapter(t, "s1")
	adapter.EXPECT().Variables(gomock.Any(), dap.VariablesArguments{VariablesReference: 21}).
		Return([]dap.Variable{{Name: "a", Value: "1"}, {Name: "b", Value: "2"}}, nil)

	console := NewConsoleSession(nil)
	console.LogOutput(context.Background(), adapter, dap.OutputEventBody{
		Category:           dap.CategoryConsole,
		Output:             "log value\n",
		VariablesReference: 21,
	})

	items := console.Items()
	require.Len(t, items, 1)
	assert.Equal(t, ItemVariable, items[0].Kind)
	assert.Equal(t, SeverityWarning, items[0].Severity)
	assert.Equal(t, "log value", items[0].Label())
	assert.Equal(t, "log value", items[0].Node.Format())

	children := items[0].Node.Resolve(context.Background())
	assert.Equal(t, []string{"a", "b"}, labels(children))
	assert.Same(t, items[0].Node, children[0].Node.Parent())
}

func TestConsoleLogOutputVariablesWithoutAdapter(t *testing.T) {
	console := NewConsoleSession(nil)
	console.LogOutput(context.Background(), nil, dap.OutputEventBody{
		Category:           dap.CategoryStderr,
		Output:             "state",
		VariablesReference: 4,
	})

	items := console.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "state", items[0].Label())
	assert.Equal(t, SeverityError, items[0].Severity)
}

func TestConsoleAttach(t *testing.T) {
	manager := NewSessionManager()
	console := NewConsoleSession(manager)
	detach := console.Attach(context.Background(), manager)
	defer detach()

	console.LogOutput(context.Background(), nil, dap.OutputEventBody{Output: "stale\n"})

	s1 := newFakeSession(t, "s1")
	require.NoError(t, manager.Add(s1))
	assert.Empty(t, console.Items(), "first session clears the log")

	s1.emit(dap.OutputEventBody{Output: "one\n"})
	s1.emit(dap.OutputEventBody{Output: "two\nthree\n"})
	require.Eventually(t, func() bool { return len(console.Items()) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"one", "two", "three"}, labels(console.Items()))

	require.NoError(t, manager.Add(newFakeSession(t, "s2")))
	assert.Len(t, console.Items(), 3, "a second live session keeps the log")
}

func TestConsoleAttachResolvesOutputVariables(t *testing.T) {
	manager := NewSessionManager()
	console := NewConsoleSession(manager)
	detach := console.Attach(context.Background(), manager)
	defer detach()

	s1 := newFakeSession(t, "s1")
	s1.EXPECT().Variables(gomock.Any(), gomock.Any()).
		Return([]dap.Variable{{Name: "x", Value: "1"}}, nil)
	require.NoError(t, manager.Add(s1))

	s1.emit(dap.OutputEventBody{Output: "vars", VariablesReference: 3})
	s1.emit(dap.OutputEventBody{Output: "after\n"})

	require.Eventually(t, func() bool { return len(console.Items()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"vars", "after"}, labels(console.Items()))
}

func TestConsoleDetach(t *testing.T) {
	manager := NewSessionManager()
	console := NewConsoleSession(manager)
	detach := console.Attach(context.Background(), manager)

	s1 := newFakeSession(t, "s1")
	require.NoError(t, manager.Add(s1))

	detach()
	detach()

	s1.emit(dap.OutputEventBody{Output: "ignored\n"})
	assert.Empty(t, console.Items())
}

func TestConsoleConcurrentExecute(t *testing.T) {
	adapter := newMockAdapter(t, "s1")
	adapter.EXPECT().CurrentFrameID().Return(0).AnyTimes()
	adapter.EXPECT().Evaluate(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, args dap.EvaluateArguments) (*dap.EvaluateResponseBody, error) {
			return &dap.EvaluateResponseBody{Result: args.Expression}, nil
		}).Times(10)

	console := NewConsoleSession(staticProvider{adapter})

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			console.Execute(context.Background(), "x")
		}()
	}
	wg.Wait()

	assert.Len(t, console.Items(), 10)
}
