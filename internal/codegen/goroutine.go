package codegen

import (
	"fmt"
	"strings"

	"github.com/qi-lang/qi/internal/ast"
)

// lowerSpawn lowers a goroutine spawn. A zero-argument spawn passes the
// function pointer straight to the runtime; otherwise a wrapper taking a
// packed i64 argument array is synthesized and emitted at the end of the
// module, and the spawn site fills the array before handing both to the
// runtime.
func (fn *funcEmitter) lowerSpawn(sp *ast.Spawn) string {
	callee := fn.resolveCallee(sp.Call)

	if len(sp.Call.Args) == 0 {
		fn.emit("call void @runtime_spawn_goroutine(ptr @%s)", callee)
		return ""
	}

	n := len(sp.Call.Args)
	args := make([]string, n)
	argTypes := make([]string, n)
	params, known := fn.calleeParamTypes(callee)
	for i, a := range sp.Call.Args {
		args[i] = fn.lowerExpr(a)
		if known && i < len(params) {
			argTypes[i] = params[i]
			args[i] = fn.coerce(args[i], fn.typeOfDesignator(args[i]), params[i])
		} else {
			argTypes[i] = fn.typeOfDesignator(args[i])
		}
	}
	if !known {
		fn.recordExternCall(callee, argTypes, "void")
	}

	wrapper := fmt.Sprintf("__goroutine_wrapper_%s_%d", callee, fn.b.wrapperCount)
	fn.b.wrapperCount++
	fn.b.wrappers = append(fn.b.wrappers, fn.b.renderGoroutineWrapper(wrapper, callee, argTypes))

	// Pack the arguments into an i64 slot array; pointers travel through
	// ptrtoint and are restored inside the wrapper.
	arr := fmt.Sprintf("%%go.args.%d", fn.label)
	fn.label++
	fn.allocas = append(fn.allocas, fmt.Sprintf("  %s = alloca [%d x i64], align 8", arr, n))
	for i := range args {
		slot := fn.newTemp()
		fn.emit("%s = getelementptr [%d x i64], ptr %s, i32 0, i32 %d", slot, n, arr, i)
		v := args[i]
		switch argTypes[i] {
		case "i64":
		case "ptr":
			v = fn.coerce(v, "ptr", "i64")
		case "double":
			// Preserve the bit pattern; the wrapper bitcasts it back.
			bits := fn.newTemp()
			fn.emit("%s = bitcast double %s to i64", bits, v)
			fn.setVarType(bits, "i64")
			v = bits
		default:
			v = fn.coerce(v, argTypes[i], "i64")
		}
		fn.emit("store i64 %s, ptr %s", v, slot)
	}

	fn.emit("call void @runtime_spawn_goroutine_with_args(ptr @%s, ptr %s)", wrapper, arr)
	return ""
}

// renderGoroutineWrapper builds the text of a wrapper function that unpacks
// an argument array and calls the target with properly typed values.
func (b *Builder) renderGoroutineWrapper(name, callee string, argTypes []string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("define void @%s(ptr %%args) {\n", name))
	sb.WriteString("entry:\n")

	callArgs := make([]string, len(argTypes))
	for i, ty := range argTypes {
		slot := fmt.Sprintf("%%slot%d", i)
		raw := fmt.Sprintf("%%raw%d", i)
		sb.WriteString(fmt.Sprintf("  %s = getelementptr i64, ptr %%args, i32 %d\n", slot, i))
		sb.WriteString(fmt.Sprintf("  %s = load i64, ptr %s\n", raw, slot))
		switch ty {
		case "ptr":
			cast := fmt.Sprintf("%%cast%d", i)
			sb.WriteString(fmt.Sprintf("  %s = inttoptr i64 %s to ptr\n", cast, raw))
			callArgs[i] = "ptr " + cast
		case "i64":
			callArgs[i] = "i64 " + raw
		case "double":
			cast := fmt.Sprintf("%%cast%d", i)
			sb.WriteString(fmt.Sprintf("  %s = bitcast i64 %s to double\n", cast, raw))
			callArgs[i] = "double " + cast
		default:
			cast := fmt.Sprintf("%%cast%d", i)
			sb.WriteString(fmt.Sprintf("  %s = trunc i64 %s to %s\n", cast, raw, ty))
			callArgs[i] = ty + " " + cast
		}
	}

	ret := "void"
	if r, ok := b.fnRet[callee]; ok {
		ret = r
	}
	if ret == "void" {
		sb.WriteString(fmt.Sprintf("  call void @%s(%s)\n", callee, strings.Join(callArgs, ", ")))
	} else {
		sb.WriteString(fmt.Sprintf("  %%ret = call %s @%s(%s)\n", ret, callee, strings.Join(callArgs, ", ")))
	}
	sb.WriteString("  ret void\n")
	sb.WriteString("}\n")
	return sb.String()
}
