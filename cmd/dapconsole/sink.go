package main

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/dshills/dapconsole/internal/integration/debug"
)

// printer renders console items as indented text. Variable subtrees are
// expanded depth levels below the item that roots them.
type printer struct {
	mu    sync.Mutex
	w     io.Writer
	depth int
}

func newPrinter(w io.Writer, depth int) *printer {
	return &printer{w: w, depth: depth}
}

func (p *printer) print(ctx context.Context, items []debug.Item) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, item := range items {
		p.printItem(ctx, item, 0)
	}
}

func (p *printer) printLine(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *printer) printItem(ctx context.Context, item debug.Item, level int) {
	indent := strings.Repeat("  ", level)

	switch item.Kind {
	case debug.ItemText:
		fmt.Fprintf(p.w, "%s%s%s\n", indent, severityPrefix(item.Severity), item.Text)

	case debug.ItemExpression:
		expr := item.Expression
		if expr == nil {
			return
		}
		fmt.Fprintf(p.w, "%s> %s\n", indent, expr.Text)
		value := expr.Value()
		if typ := expr.Type(); expr.Available() && typ != "" {
			value = typ + " = " + value
		}
		fmt.Fprintf(p.w, "%s  %s\n", indent, value)
		if node := expr.Node(); node != nil {
			p.expand(ctx, node, level)
		}

	case debug.ItemVariable, debug.ItemPage:
		if item.Node == nil {
			return
		}
		fmt.Fprintf(p.w, "%s%s%s\n", indent, severityPrefix(item.Severity), item.Node.Format())
		p.expand(ctx, item.Node, level)
	}
}

func (p *printer) expand(ctx context.Context, node *debug.VariableNode, level int) {
	if level >= p.depth || !node.HasChildren() {
		return
	}
	for _, child := range node.Resolve(ctx) {
		p.printItem(ctx, child, level+1)
	}
}

func severityPrefix(s debug.Severity) string {
	switch s {
	case debug.SeverityWarning:
		return "warning: "
	case debug.SeverityError:
		return "error: "
	default:
		return ""
	}
}

// consoleView prints the items appended to a console since the last
// refresh. It remembers the last item it printed; once that item is gone
// the console was cleared and printing starts over.
type consoleView struct {
	mu      sync.Mutex
	ctx     context.Context
	console *debug.ConsoleSession
	printer *printer
	lastID  string
}

func newConsoleView(ctx context.Context, console *debug.ConsoleSession, p *printer) *consoleView {
	return &consoleView{ctx: ctx, console: console, printer: p}
}

// refresh is registered as the console's change listener.
func (v *consoleView) refresh() {
	v.mu.Lock()
	defer v.mu.Unlock()

	items := v.console.Items()
	start := 0
	if v.lastID != "" {
		if i := slices.IndexFunc(items, func(item debug.Item) bool { return item.ID == v.lastID }); i >= 0 {
			start = i + 1
		}
	}
	v.printer.print(v.ctx, items[start:])
	if len(items) > 0 {
		v.lastID = items[len(items)-1].ID
	}
}
