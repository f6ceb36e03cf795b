package diag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qi-lang/qi/internal/ast"
)

func TestLoweringError_MessageCarriesSpan(t *testing.T) {
	e := Errorf(UndefinedSymbol, ast.Span{Start: 12, End: 18}, "计数")
	assert.Contains(t, e.Error(), "undefined symbol")
	assert.Contains(t, e.Error(), "计数")
	assert.Contains(t, e.Error(), "12-18")
}

func TestList_EmptyIsNil(t *testing.T) {
	var l List
	assert.NoError(t, l.Err())
	assert.Zero(t, l.Len())
}

func TestList_AggregatesAllDiagnostics(t *testing.T) {
	var l List
	l.Addf(UndefinedSymbol, ast.Span{}, "x")
	l.Addf(LoopControlOutsideLoop, ast.Span{}, "break")

	require.Equal(t, 2, l.Len())
	err := l.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 lowering error(s)")
	assert.Contains(t, err.Error(), "undefined symbol")
	assert.Contains(t, err.Error(), "break/continue outside loop")
	assert.Len(t, l.All(), 2)
}

func TestKindNames(t *testing.T) {
	for kind, want := range map[Kind]string{
		UndefinedSymbol:     "undefined symbol",
		InvalidAssignTarget: "invalid assignment target",
		MissingStaticMethod: "missing static method",
		ModuleNotImported:   "module not imported",
		UnsupportedNode:     "unsupported AST node",
	} {
		assert.Equal(t, want, kind.String())
	}
}
