package codegen

import (
	"strconv"
	"strings"

	"github.com/qi-lang/qi/internal/ast"
)

// irType maps a source type to its IR spelling. Aggregates and references
// all lower to ptr; user structs lower to a pointer as well, with the struct
// name tracked separately for field resolution.
func irType(t *ast.TypeNode) string {
	if t == nil {
		return "void"
	}
	switch t.Kind {
	case ast.KindInt, ast.KindLong, ast.KindByte:
		return "i64"
	case ast.KindShort:
		return "i16"
	case ast.KindFloat:
		return "double"
	case ast.KindBool:
		return "i1"
	case ast.KindChar:
		return "i8"
	case ast.KindString:
		return "ptr"
	case ast.KindVoid:
		return "void"
	case ast.KindArray, ast.KindDict, ast.KindList, ast.KindSet:
		return "ptr"
	case ast.KindPointer, ast.KindSharedRef, ast.KindMutRef:
		return "ptr"
	case ast.KindChannel, ast.KindFuture, ast.KindFunction:
		return "ptr"
	case ast.KindNamed:
		return "ptr"
	}
	return "i64"
}

// Future inner-type tags. The tag selects which typed constructor/await pair
// the generated IR calls.
const (
	futI64    = "i64"
	futF64    = "double"
	futBool   = "i1"
	futString = "string"
	futPtr    = "ptr"
)

// futureInnerTag classifies the inner type of 未来<T>.
func futureInnerTag(inner *ast.TypeNode) string {
	if inner == nil {
		return futI64
	}
	switch inner.Kind {
	case ast.KindInt, ast.KindLong, ast.KindShort, ast.KindByte, ast.KindChar:
		return futI64
	case ast.KindFloat:
		return futF64
	case ast.KindBool:
		return futBool
	case ast.KindString:
		return futString
	case ast.KindNamed, ast.KindPointer, ast.KindSharedRef, ast.KindMutRef,
		ast.KindArray, ast.KindDict, ast.KindList, ast.KindSet, ast.KindChannel:
		return futPtr
	}
	return futI64
}

// futureAwaitFunc returns the runtime await entry point for the tagged inner
// type.
func futureAwaitFunc(tag string) string {
	switch tag {
	case futF64:
		return "future_await_f64"
	case futBool:
		return "future_await_bool"
	case futString:
		return "future_await_string"
	case futPtr:
		return "future_await_ptr"
	default:
		return "future_await_i64"
	}
}

// awaitResultType is the IR type an await expression yields after any
// boundary conversion (bool futures travel as i32 and are narrowed back).
func awaitResultType(tag string) string {
	switch tag {
	case futF64:
		return "double"
	case futBool:
		return "i1"
	case futString, futPtr:
		return "ptr"
	default:
		return "i64"
	}
}

// typeOfDesignator infers the IR type of a value designator: a register is
// looked up in the variable-types table, a global is a pointer, and literals
// are classified by shape. Used where operand types drive instruction
// selection.
func (fn *funcEmitter) typeOfDesignator(d string) string {
	switch {
	case d == "true" || d == "false":
		return "i1"
	case strings.HasPrefix(d, "%"):
		if t, ok := fn.b.varTypes[strings.TrimPrefix(d, "%")]; ok {
			return t
		}
		return "i64"
	case strings.HasPrefix(d, "@"):
		return "ptr"
	}
	if _, err := strconv.ParseInt(d, 10, 64); err == nil {
		return "i64"
	}
	if _, err := strconv.ParseFloat(d, 64); err == nil {
		return "double"
	}
	return "i64"
}

// formatFloat renders a float the way the IR expects: always with a decimal
// point or exponent so the constant parses as floating point.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
