package debug

import (
	"github.com/google/uuid"

	"github.com/dshills/dapconsole/internal/integration/debug/dap"
)

// ItemKind identifies the payload of a console Item.
type ItemKind int

const (
	// ItemText is a line of text.
	ItemText ItemKind = iota
	// ItemExpression is an evaluated expression; Expression is set.
	ItemExpression
	// ItemVariable is a variable; Node is set.
	ItemVariable
	// ItemPage is a paging bucket over a large indexed collection; Node is set.
	ItemPage
)

// String returns a string representation of the kind.
func (k ItemKind) String() string {
	switch k {
	case ItemText:
		return "text"
	case ItemExpression:
		return "expression"
	case ItemVariable:
		return "variable"
	case ItemPage:
		return "page"
	default:
		return "unknown"
	}
}

// Severity is the severity of a console item.
type Severity int

const (
	// SeverityInfo is ordinary output and evaluation results.
	SeverityInfo Severity = iota
	// SeverityWarning marks console and important adapter output.
	SeverityWarning
	// SeverityError marks stderr output and failed requests.
	SeverityError
)

// String returns a string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Item is one entry of the console log or of a resolved variable subtree.
// Display code dispatches on Kind.
type Item struct {
	ID       string
	Kind     ItemKind
	Severity Severity

	// Text is the line for ItemText.
	Text string

	// Expression is set for ItemExpression.
	Expression *Expression

	// Node is set for ItemVariable and ItemPage.
	Node *VariableNode
}

// Label returns the primary text of the item.
func (i Item) Label() string {
	switch i.Kind {
	case ItemExpression:
		if i.Expression != nil {
			return i.Expression.Text
		}
	case ItemVariable, ItemPage:
		if i.Node != nil {
			return i.Node.Name
		}
	}
	return i.Text
}

func newTextItem(severity Severity, text string) Item {
	return Item{ID: uuid.NewString(), Kind: ItemText, Severity: severity, Text: text}
}

func newErrorItem(err error) Item {
	return newTextItem(SeverityError, dap.ErrorText(err))
}

func newNodeItem(node *VariableNode) Item {
	kind := ItemVariable
	if node.page {
		kind = ItemPage
	}
	return Item{ID: uuid.NewString(), Kind: kind, Node: node}
}
