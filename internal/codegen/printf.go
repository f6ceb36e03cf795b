package codegen

import (
	"strings"

	"github.com/qi-lang/qi/internal/ast"
)

// lowerPrintf lowers a multi-argument print into a synthesized format string
// passed to the C variadic printf. String literals are folded straight into
// the format; every other argument contributes a specifier chosen from its
// tracked type, with a single space between consecutive specifiers. Argument
// types are resolved here, while the variable-types table still reflects the
// call site's scope, and carried inline as "<type>:<designator>" pairs.
func (fn *funcEmitter) lowerPrintf(call *ast.Call, newline bool) string {
	var fmtEscaped strings.Builder
	byteLen := 0
	var typedArgs []string
	prevWasSpecifier := false

	for _, arg := range call.Args {
		if lit, ok := arg.(*ast.Literal); ok && lit.Kind == ast.LitString {
			fmtEscaped.WriteString(escapeString(lit.Str))
			byteLen += len(lit.Str)
			prevWasSpecifier = false
			continue
		}

		d := fn.lowerExpr(arg)
		ty := fn.typeOfDesignator(d)
		switch ty {
		case "i1", "i8", "i16", "i32":
			// %lld expects a full-width integer.
			d = fn.coerce(d, ty, "i64")
			ty = "i64"
		}
		spec := "%lld"
		switch ty {
		case "double":
			spec = "%f"
		case "ptr":
			spec = "%s"
		}
		if prevWasSpecifier {
			fmtEscaped.WriteString(" ")
			byteLen++
		}
		fmtEscaped.WriteString(spec)
		byteLen += len(spec)
		typedArgs = append(typedArgs, ty+":"+d)
		prevWasSpecifier = true
	}

	if newline {
		fmtEscaped.WriteString("\\0A")
		byteLen++
	}

	fmtLabel := fn.b.internFormat(fmtEscaped.String(), byteLen)

	callArgs := []string{"ptr " + fmtLabel}
	for _, ta := range typedArgs {
		ty, d, _ := strings.Cut(ta, ":")
		callArgs = append(callArgs, ty+" "+d)
	}

	t := fn.newTemp()
	fn.emit("%s = call i32 (ptr, ...) @printf(%s)", t, strings.Join(callArgs, ", "))
	fn.setVarType(t, "i32")
	return t
}
