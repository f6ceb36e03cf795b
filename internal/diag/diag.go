// Package diag defines the diagnostics surface produced by the lowering
// engine. Errors carry the offending node's span so the driver can render
// source context; lowering keeps going after most of them.
package diag

import (
	"fmt"
	"strings"

	"github.com/qi-lang/qi/internal/ast"
)

// Kind classifies a lowering error.
type Kind int

const (
	// UndefinedSymbol means an identifier was not in scope when required.
	UndefinedSymbol Kind = iota
	// InvalidAssignTarget means the assignment LHS is not an identifier,
	// field access, or index expression.
	InvalidAssignTarget
	// MissingStaticMethod means Type::method was not recognized.
	MissingStaticMethod
	// ModuleNotImported means a qualified call went through an unknown alias.
	ModuleNotImported
	// UnsupportedNode is an internal error: the parser produced a node the
	// lowering engine does not handle.
	UnsupportedNode
	// LoopControlOutsideLoop means break or continue appeared with no
	// enclosing loop.
	LoopControlOutsideLoop
)

var kindNames = map[Kind]string{
	UndefinedSymbol:        "undefined symbol",
	InvalidAssignTarget:    "invalid assignment target",
	MissingStaticMethod:    "missing static method",
	ModuleNotImported:      "module not imported",
	UnsupportedNode:        "unsupported AST node",
	LoopControlOutsideLoop: "break/continue outside loop",
}

func (k Kind) String() string { return kindNames[k] }

// LoweringError is a single diagnostic produced during lowering.
type LoweringError struct {
	Kind Kind
	Msg  string
	Span ast.Span
}

func (e *LoweringError) Error() string {
	return fmt.Sprintf("%s: %s (bytes %d-%d)", e.Kind, e.Msg, e.Span.Start, e.Span.End)
}

// Errorf builds a LoweringError with a formatted message.
func Errorf(kind Kind, span ast.Span, format string, args ...any) *LoweringError {
	return &LoweringError{Kind: kind, Msg: fmt.Sprintf(format, args...), Span: span}
}

// List accumulates diagnostics across a lowering run.
type List struct {
	errs []*LoweringError
}

// Add appends a diagnostic.
func (l *List) Add(e *LoweringError) { l.errs = append(l.errs, e) }

// Addf builds and appends a diagnostic.
func (l *List) Addf(kind Kind, span ast.Span, format string, args ...any) {
	l.Add(Errorf(kind, span, format, args...))
}

// Len returns the number of collected diagnostics.
func (l *List) Len() int { return len(l.errs) }

// All returns the collected diagnostics in emission order.
func (l *List) All() []*LoweringError { return l.errs }

// Err returns nil when the list is empty, otherwise an error summarizing
// every diagnostic.
func (l *List) Err() error {
	if len(l.errs) == 0 {
		return nil
	}
	var sb strings.Builder
	for i, e := range l.errs {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(e.Error())
	}
	return fmt.Errorf("%d lowering error(s):\n%s", len(l.errs), sb.String())
}
