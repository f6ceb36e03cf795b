package codegen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/qi-lang/qi/internal/ast"
	"github.com/qi-lang/qi/internal/diag"
)

// lowerExpr evaluates an expression into a value designator: a register, a
// global, or a literal. Recoverable errors are recorded and a zero
// designator is returned so lowering can continue.
func (fn *funcEmitter) lowerExpr(e ast.Expr) string {
	switch x := e.(type) {
	case *ast.Literal:
		return fn.lowerLiteral(x)
	case *ast.Ident:
		return fn.lowerIdent(x)
	case *ast.Binary:
		return fn.lowerBinary(x)
	case *ast.Call:
		return fn.lowerCall(x)
	case *ast.StaticCall:
		return fn.lowerStaticCall(x)
	case *ast.MethodCall:
		return fn.lowerMethodCall(x)
	case *ast.Await:
		return fn.lowerAwait(x)
	case *ast.Spawn:
		return fn.lowerSpawn(x)
	case *ast.Assign:
		return fn.lowerAssign(x)
	case *ast.Index:
		return fn.lowerIndex(x)
	case *ast.ArrayLit:
		return fn.lowerArrayLit(x)
	case *ast.StructLit:
		return fn.lowerStructLit(x)
	case *ast.FieldAccess:
		return fn.lowerFieldAccess(x)
	case *ast.ChanMake:
		return fn.lowerChanMake(x)
	case *ast.ChanSend:
		return fn.lowerChanSend(x)
	case *ast.ChanRecv:
		return fn.lowerChanRecv(x)
	case *ast.Select:
		fn.lowerSelect(x)
		return ""
	case *ast.AddrOf:
		return fn.lowerAddrOf(x)
	case *ast.Deref:
		return fn.lowerDeref(x)
	default:
		fn.b.diags.Addf(diag.UnsupportedNode, e.Span(), "expression %T", e)
		return "0"
	}
}

func (fn *funcEmitter) lowerLiteral(lit *ast.Literal) string {
	switch lit.Kind {
	case ast.LitInt:
		t := fn.newTemp()
		fn.emit("%s = add i64 0, %d", t, lit.Int)
		fn.setVarType(t, "i64")
		return t
	case ast.LitFloat:
		t := fn.newTemp()
		fn.emit("%s = fadd double 0.0, %s", t, formatFloat(lit.Float))
		fn.setVarType(t, "double")
		return t
	case ast.LitBool:
		if lit.Bool {
			return "true"
		}
		return "false"
	case ast.LitString:
		return fn.b.internString(lit.Str)
	case ast.LitChar:
		t := fn.newTemp()
		fn.emit("%s = add i8 0, %d", t, lit.Char)
		fn.setVarType(t, "i8")
		return t
	}
	return "0"
}

func (fn *funcEmitter) lowerIdent(id *ast.Ident) string {
	mangled := MangleFunctionName(id.Name)
	if fn.params[mangled] {
		return "%" + mangled
	}
	ty, ok := fn.b.varTypes[mangled]
	if !ok {
		ty, ok = fn.b.varTypes[id.Name]
	}
	if !ok {
		fn.b.diags.Addf(diag.UndefinedSymbol, id.Span(), "%s", id.Name)
		return "0"
	}
	t := fn.newTemp()
	fn.emit("%s = load %s, ptr %%%s", t, ty, mangled)
	fn.setVarType(t, ty)
	key := strings.TrimPrefix(t, "%")
	if s, ok := fn.b.varStructTypes[mangled]; ok {
		fn.b.varStructTypes[key] = s
	}
	if tag, ok := fn.b.futureInner[mangled]; ok {
		fn.b.futureInner[key] = tag
	} else if tag, ok := fn.b.futureInner[id.Name]; ok {
		fn.b.futureInner[key] = tag
	}
	if n, ok := fn.b.arrayLens[mangled]; ok {
		fn.b.arrayLens[key] = n
	}
	return t
}

func (fn *funcEmitter) lowerBinary(bin *ast.Binary) string {
	l := fn.lowerExpr(bin.L)
	r := fn.lowerExpr(bin.R)
	lt := fn.typeOfDesignator(l)
	rt := fn.typeOfDesignator(r)

	switch bin.Op {
	case ast.OpAnd, ast.OpOr:
		op := "and"
		if bin.Op == ast.OpOr {
			op = "or"
		}
		t := fn.newTemp()
		fn.emit("%s = %s i1 %s, %s", t, op, l, r)
		fn.setVarType(t, "i1")
		return t

	case ast.OpEq, ast.OpNe, ast.OpLt, ast.OpLe, ast.OpGt, ast.OpGe:
		t := fn.newTemp()
		if lt == "double" || rt == "double" {
			l = fn.coerce(l, lt, "double")
			r = fn.coerce(r, rt, "double")
			fn.emit("%s = fcmp %s double %s, %s", t, fcmpPredicate(bin.Op), l, r)
		} else {
			ty := lt
			r = fn.coerce(r, rt, ty)
			fn.emit("%s = icmp %s %s %s, %s", t, icmpPredicate(bin.Op), ty, l, r)
		}
		fn.setVarType(t, "i1")
		return t
	}

	// Addition over strings is concatenation: when either side is a pointer,
	// numeric operands go through the runtime's to-string conversions first.
	if bin.Op == ast.OpAdd && (lt == "ptr" || rt == "ptr") {
		l = fn.stringify(l, lt)
		r = fn.stringify(r, rt)
		t := fn.newTemp()
		fn.emit("%s = call ptr @runtime_string_concat(ptr %s, ptr %s)", t, l, r)
		fn.setVarType(t, "ptr")
		return t
	}

	ty := lt
	if lt == "double" || rt == "double" {
		ty = "double"
		l = fn.coerce(l, lt, "double")
		r = fn.coerce(r, rt, "double")
	} else {
		r = fn.coerce(r, rt, ty)
	}
	t := fn.newTemp()
	fn.emit("%s = %s %s %s, %s", t, arithmeticOp(bin.Op, ty == "double"), ty, l, r)
	fn.setVarType(t, ty)
	return t
}

// stringify converts a numeric designator into a runtime-owned string;
// pointers pass through.
func (fn *funcEmitter) stringify(d, ty string) string {
	switch ty {
	case "ptr":
		return d
	case "double":
		t := fn.newTemp()
		fn.emit("%s = call ptr @runtime_float_to_string(double %s)", t, d)
		fn.setVarType(t, "ptr")
		return t
	default:
		d = fn.coerce(d, ty, "i64")
		t := fn.newTemp()
		fn.emit("%s = call ptr @runtime_int_to_string(i64 %s)", t, d)
		fn.setVarType(t, "ptr")
		return t
	}
}

func arithmeticOp(op ast.BinaryOp, float bool) string {
	var name string
	switch op {
	case ast.OpAdd:
		name = "add"
	case ast.OpSub:
		name = "sub"
	case ast.OpMul:
		name = "mul"
	case ast.OpDiv:
		if float {
			return "fdiv"
		}
		return "sdiv"
	case ast.OpRem:
		if float {
			return "frem"
		}
		return "srem"
	default:
		name = "add"
	}
	if float {
		return "f" + name
	}
	return name
}

func icmpPredicate(op ast.BinaryOp) string {
	switch op {
	case ast.OpEq:
		return "eq"
	case ast.OpNe:
		return "ne"
	case ast.OpLt:
		return "slt"
	case ast.OpLe:
		return "sle"
	case ast.OpGt:
		return "sgt"
	default:
		return "sge"
	}
}

func fcmpPredicate(op ast.BinaryOp) string {
	switch op {
	case ast.OpEq:
		return "oeq"
	case ast.OpNe:
		return "one"
	case ast.OpLt:
		return "olt"
	case ast.OpLe:
		return "ole"
	case ast.OpGt:
		return "ogt"
	default:
		return "oge"
	}
}

// resolveCallee maps a possibly module-qualified, possibly built-in source
// name to the symbol the call site uses.
func (fn *funcEmitter) resolveCallee(call *ast.Call) string {
	name := call.Name
	if call.Module != "" {
		if _, imported := fn.b.imports[call.Module]; !imported {
			qualified := MangleFunctionName(call.Module + "_" + name)
			if !fn.b.definedFns[qualified] {
				if _, ok := fn.b.externFns[qualified]; !ok {
					fn.b.diags.Addf(diag.ModuleNotImported, call.Span(),
						"%s (call to %s.%s)", call.Module, call.Module, call.Name)
				}
			}
			return qualified
		}
		// The alias names a package, not a symbol: the callee keeps its
		// unqualified name.
	}
	if sym, ok := builtinFunctions[name]; ok {
		return sym
	}
	return MangleFunctionName(name)
}

func (fn *funcEmitter) lowerCall(call *ast.Call) string {
	callee := fn.resolveCallee(call)

	// Print with multiple arguments becomes a synthesized variadic printf.
	if (callee == "runtime_print" || callee == "runtime_println") && len(call.Args) >= 2 {
		return fn.lowerPrintf(call, callee == "runtime_println")
	}
	if (callee == "runtime_print" || callee == "runtime_println") && len(call.Args) == 1 {
		return fn.lowerPrintSingle(call, callee == "runtime_println")
	}

	args := make([]string, len(call.Args))
	argTypes := make([]string, len(call.Args))
	for i, a := range call.Args {
		args[i] = fn.lowerExpr(a)
		argTypes[i] = fn.typeOfDesignator(args[i])
	}

	ret := fn.calleeReturnType(callee, argTypes)
	params, haveParams := fn.calleeParamTypes(callee)
	if !haveParams {
		params = argTypes
		fn.recordExternCall(callee, argTypes, ret)
	}

	typed := make([]string, len(args))
	for i := range args {
		want := argTypes[i]
		if i < len(params) && params[i] != "..." {
			want = params[i]
		}
		v := fn.coerce(args[i], argTypes[i], want)
		typed[i] = want + " " + v
	}

	if ret == "void" {
		fn.emit("call void @%s(%s)", callee, strings.Join(typed, ", "))
		return ""
	}
	t := fn.newTemp()
	fn.emit("%s = call %s @%s(%s)", t, ret, callee, strings.Join(typed, ", "))
	fn.setVarType(t, ret)
	if tag, ok := fn.b.fnFutureInner[callee]; ok {
		fn.b.futureInner[strings.TrimPrefix(t, "%")] = tag
	}
	return t
}

// calleeReturnType resolves a callee's IR result type from pass-1 tables,
// the prelude, or the runtime naming conventions.
func (fn *funcEmitter) calleeReturnType(callee string, argTypes []string) string {
	if ret, ok := fn.b.fnRet[callee]; ok {
		return ret
	}
	if sig, ok := fn.b.externFns[callee]; ok {
		return sig.Ret
	}
	if d, ok := preludeSymbols[callee]; ok {
		return d.ret
	}
	if strings.HasPrefix(callee, "runtime_") || strings.HasPrefix(callee, "crypto_") ||
		strings.HasPrefix(callee, "future_") {
		return runtimeCallResultType(callee)
	}
	return "i64"
}

func (fn *funcEmitter) calleeParamTypes(callee string) ([]string, bool) {
	if p, ok := fn.b.fnParams[callee]; ok {
		return p, true
	}
	if sig, ok := fn.b.externFns[callee]; ok {
		return sig.Params, true
	}
	if d, ok := preludeSymbols[callee]; ok {
		return d.params, true
	}
	return nil, false
}

func (fn *funcEmitter) recordExternCall(callee string, argTypes []string, ret string) {
	params := make([]string, len(argTypes))
	copy(params, argTypes)
	fn.b.recordExtern(callee, Signature{Params: params, Ret: ret})
}

func (fn *funcEmitter) lowerPrintSingle(call *ast.Call, newline bool) string {
	d := fn.lowerExpr(call.Args[0])
	ty := fn.typeOfDesignator(d)
	prefix := "runtime_print"
	if newline {
		prefix = "runtime_println"
	}
	t := fn.newTemp()
	switch ty {
	case "double":
		fn.emit("%s = call i32 @%s_float(double %s)", t, prefix, d)
	case "i1":
		w := fn.coerce(d, "i1", "i32")
		fn.emit("%s = call i32 @%s_bool(i32 %s)", t, prefix, w)
	case "ptr":
		fn.emit("%s = call i32 @%s(ptr %s)", t, prefix, d)
	default:
		v := fn.coerce(d, ty, "i64")
		fn.emit("%s = call i32 @%s_int(i64 %s)", t, prefix, v)
	}
	fn.setVarType(t, "i32")
	return t
}

func (fn *funcEmitter) lowerStaticCall(call *ast.StaticCall) string {
	// Enum variant access lowers to its integer value.
	if variants, ok := fn.b.enums[call.TypeName]; ok {
		if v, ok := variants[call.Method]; ok && len(call.Args) == 0 {
			t := fn.newTemp()
			fn.emit("%s = add i64 0, %d", t, v)
			fn.setVarType(t, "i64")
			return t
		}
	}

	if sym, ok := staticBuiltins[[2]string{call.TypeName, call.Method}]; ok {
		switch sym {
		case "future_ready_i64":
			d := fn.lowerExpr(call.Args[0])
			return fn.wrapFutureReady(d, fn.typeOfDesignator(d))
		case "future_failed":
			msg := fn.lowerExpr(call.Args[0])
			length := fn.stringLength(msg)
			t := fn.newTemp()
			fn.emit("%s = call ptr @future_failed(ptr %s, i64 %s)", t, msg, length)
			fn.setVarType(t, "ptr")
			return t
		}
	}

	fn.b.diags.Addf(diag.MissingStaticMethod, call.Span(), "%s::%s", call.TypeName, call.Method)
	return "0"
}

// wrapFutureReady constructs a completed Future around a value, selecting
// the typed constructor from the value's IR type.
func (fn *funcEmitter) wrapFutureReady(d, ty string) string {
	t := fn.newTemp()
	switch ty {
	case "double":
		fn.emit("%s = call ptr @future_ready_f64(double %s)", t, d)
	case "i1":
		w := fn.coerce(d, "i1", "i32")
		fn.emit("%s = call ptr @future_ready_bool(i32 %s)", t, w)
	case "ptr":
		fn.emit("%s = call ptr @future_ready_ptr(ptr %s)", t, d)
	default:
		v := fn.coerce(d, ty, "i64")
		fn.emit("%s = call ptr @future_ready_i64(i64 %s)", t, v)
	}
	fn.setVarType(t, "ptr")
	return t
}

// stringLength yields a designator holding the byte length of a string
// value: a compile-time constant for interned globals, a strlen call
// otherwise.
func (fn *funcEmitter) stringLength(d string) string {
	if n, ok := fn.b.strLens[d]; ok {
		return strconv.Itoa(n)
	}
	t := fn.newTemp()
	fn.emit("%s = call i64 @strlen(ptr %s)", t, d)
	fn.setVarType(t, "i64")
	return t
}

func (fn *funcEmitter) lowerMethodCall(mc *ast.MethodCall) string {
	// A dotted call whose receiver names nothing in scope is a
	// module-qualified call that slipped past the parser's alias table.
	if id, ok := mc.Recv.(*ast.Ident); ok {
		_, isVar := fn.b.varTypes[MangleFunctionName(id.Name)]
		if !isVar {
			_, isVar = fn.b.varTypes[id.Name]
		}
		if !isVar {
			return fn.lowerCall(&ast.Call{
				Base:   ast.Base{Pos: mc.Span()},
				Module: id.Name, Name: mc.Name, Args: mc.Args,
			})
		}
	}
	recv := fn.lowerExpr(mc.Recv)
	structName := fn.structNameOf(mc.Recv, recv)
	if structName == "" {
		fn.b.diags.Addf(diag.UndefinedSymbol, mc.Span(),
			"receiver of %s has no known struct type", mc.Name)
		return "0"
	}
	callee := MangleFunctionName(structName + "_" + mc.Name)

	args := []string{"ptr " + recv}
	argTypes := []string{"ptr"}
	for _, a := range mc.Args {
		d := fn.lowerExpr(a)
		ty := fn.typeOfDesignator(d)
		args = append(args, ty+" "+d)
		argTypes = append(argTypes, ty)
	}
	ret := fn.calleeReturnType(callee, argTypes)
	if _, known := fn.b.fnParams[callee]; !known {
		fn.recordExternCall(callee, argTypes, ret)
	}
	if ret == "void" {
		fn.emit("call void @%s(%s)", callee, strings.Join(args, ", "))
		return ""
	}
	t := fn.newTemp()
	fn.emit("%s = call %s @%s(%s)", t, ret, callee, strings.Join(args, ", "))
	fn.setVarType(t, ret)
	return t
}

// awaitInnerTag determines which typed await the expression needs. A bare
// call is resolved through the callee's recorded future-inner type.
func (fn *funcEmitter) awaitInnerTag(e ast.Expr, d string) string {
	switch x := e.(type) {
	case *ast.Call:
		if tag, ok := fn.b.fnFutureInner[fn.resolveCallee(x)]; ok {
			return tag
		}
	case *ast.Ident:
		if tag, ok := fn.b.futureInner[MangleFunctionName(x.Name)]; ok {
			return tag
		}
		if tag, ok := fn.b.futureInner[x.Name]; ok {
			return tag
		}
	}
	if tag, ok := fn.b.futureInner[strings.TrimPrefix(d, "%")]; ok {
		return tag
	}
	return futI64
}

func (fn *funcEmitter) lowerAwait(aw *ast.Await) string {
	d := fn.lowerExpr(aw.X)
	tag := fn.awaitInnerTag(aw.X, d)

	if tag == futBool {
		// Boolean futures travel as i32 across the ABI; narrow the result
		// back to i1 at the call site.
		raw := fn.newTemp()
		fn.emit("%s = call i32 @future_await_bool(ptr %s)", raw, d)
		fn.setVarType(raw, "i32")
		t := fn.newTemp()
		fn.emit("%s = icmp ne i32 %s, 0", t, raw)
		fn.setVarType(t, "i1")
		return t
	}

	ret := awaitResultType(tag)
	t := fn.newTemp()
	fn.emit("%s = call %s @%s(ptr %s)", t, ret, futureAwaitFunc(tag), d)
	fn.setVarType(t, ret)
	return t
}

func (fn *funcEmitter) lowerAssign(as *ast.Assign) string {
	v := fn.lowerExpr(as.Value)
	vt := fn.typeOfDesignator(v)

	switch target := as.Target.(type) {
	case *ast.Ident:
		mangled := MangleFunctionName(target.Name)
		if fn.params[mangled] {
			fn.b.diags.Addf(diag.InvalidAssignTarget, as.Span(),
				"parameter %s is immutable", target.Name)
			return v
		}
		ty, ok := fn.b.varTypes[mangled]
		if !ok {
			fn.b.diags.Addf(diag.UndefinedSymbol, target.Span(), "%s", target.Name)
			return v
		}
		v = fn.coerce(v, vt, ty)
		fn.emit("store %s %s, ptr %%%s", ty, v, mangled)
		return v

	case *ast.FieldAccess:
		ptr, fieldTy := fn.fieldPointer(target)
		if ptr == "" {
			return v
		}
		v = fn.coerce(v, vt, fieldTy)
		fn.emit("store %s %s, ptr %s", fieldTy, v, ptr)
		return v

	case *ast.Index:
		base := fn.lowerExpr(target.X)
		idx := fn.lowerExpr(target.Index)
		idx = fn.coerce(idx, fn.typeOfDesignator(idx), "i64")
		p := fn.newTemp()
		fn.emit("%s = getelementptr i64, ptr %s, i64 %s", p, base, idx)
		fn.setVarType(p, "ptr")
		v = fn.coerce(v, vt, "i64")
		fn.emit("store i64 %s, ptr %s", v, p)
		return v

	default:
		fn.b.diags.Addf(diag.InvalidAssignTarget, as.Span(), "%T", as.Target)
		return v
	}
}

func (fn *funcEmitter) lowerIndex(ix *ast.Index) string {
	base := fn.lowerExpr(ix.X)
	idx := fn.lowerExpr(ix.Index)
	idx = fn.coerce(idx, fn.typeOfDesignator(idx), "i64")
	p := fn.newTemp()
	fn.emit("%s = getelementptr i64, ptr %s, i64 %s", p, base, idx)
	t := fn.newTemp()
	fn.emit("%s = load i64, ptr %s", t, p)
	fn.setVarType(t, "i64")
	return t
}

func (fn *funcEmitter) lowerArrayLit(arr *ast.ArrayLit) string {
	n := len(arr.Elems)
	reg := fmt.Sprintf("%%arr.%d", fn.label)
	fn.label++
	fn.allocas = append(fn.allocas, fmt.Sprintf("  %s = alloca [%d x i64], align 8", reg, n))
	for i, el := range arr.Elems {
		d := fn.lowerExpr(el)
		d = fn.coerce(d, fn.typeOfDesignator(d), "i64")
		p := fn.newTemp()
		fn.emit("%s = getelementptr [%d x i64], ptr %s, i32 0, i32 %d", p, n, reg, i)
		fn.emit("store i64 %s, ptr %s", d, p)
	}
	key := strings.TrimPrefix(reg, "%")
	fn.b.varTypes[key] = "ptr"
	fn.b.arrayLens[key] = n
	return reg
}

func (fn *funcEmitter) lowerStructLit(lit *ast.StructLit) string {
	fieldTypes, ok := fn.b.structDefs[lit.Name]
	if !ok {
		fn.b.diags.Addf(diag.UndefinedSymbol, lit.Span(), "struct %s", lit.Name)
		return "0"
	}
	fieldNames := fn.b.structFieldNames[lit.Name]
	structTy := MangleTypeName(lit.Name + ".type")

	// A literal constructed inside a function returning Future<Self> must
	// outlive the frame: heap-allocate it so the pointer stays valid after
	// the future_ready_ptr wrap. Fields are 8-byte slots.
	var reg string
	if fn.retTag == futPtr && fn.futureInnerStructName() == lit.Name {
		reg = fn.newTemp()
		fn.emit("%s = call ptr @malloc(i64 %d)", reg, len(fieldTypes)*8)
	} else {
		reg = fmt.Sprintf("%%sl.%d", fn.label)
		fn.label++
		fn.allocas = append(fn.allocas, fmt.Sprintf("  %s = alloca %s, align 8", reg, structTy))
	}
	key := strings.TrimPrefix(reg, "%")
	fn.b.varTypes[key] = "ptr"
	fn.b.varStructTypes[key] = lit.Name

	for _, init := range lit.Fields {
		idx := fieldIndex(fieldNames, init.Name)
		if idx < 0 {
			fn.b.diags.Addf(diag.UndefinedSymbol, lit.Span(), "field %s.%s", lit.Name, init.Name)
			continue
		}
		d := fn.lowerExpr(init.Value)
		d = fn.coerce(d, fn.typeOfDesignator(d), fieldTypes[idx])
		p := fn.newTemp()
		fn.emit("%s = getelementptr %s, ptr %s, i32 0, i32 %d", p, structTy, reg, idx)
		fn.emit("store %s %s, ptr %s", fieldTypes[idx], d, p)
	}
	return reg
}

// futureInnerStructName returns the struct name inside the enclosing
// function's Future<...> return, or "".
func (fn *funcEmitter) futureInnerStructName() string {
	r := fn.decl.Return
	if r == nil {
		return ""
	}
	if r.Kind == ast.KindFuture {
		r = r.Elem
	}
	if r != nil && r.Kind == ast.KindNamed {
		return r.Name
	}
	return ""
}

func fieldIndex(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

// structNameOf resolves the struct type behind an expression, consulting the
// variable-struct-types table under both the source name and the designator.
func (fn *funcEmitter) structNameOf(e ast.Expr, d string) string {
	if id, ok := e.(*ast.Ident); ok {
		if s, ok := fn.b.varStructTypes[MangleFunctionName(id.Name)]; ok {
			return s
		}
		if s, ok := fn.b.varStructTypes[id.Name]; ok {
			return s
		}
	}
	return fn.b.varStructTypes[strings.TrimPrefix(d, "%")]
}

// fieldPointer emits the getelementptr for a field access and returns the
// element pointer and field IR type.
func (fn *funcEmitter) fieldPointer(fa *ast.FieldAccess) (string, string) {
	base := fn.lowerExpr(fa.X)
	structName := fn.structNameOf(fa.X, base)
	if structName == "" {
		fn.b.diags.Addf(diag.UndefinedSymbol, fa.Span(), "no struct type for field %s", fa.Field)
		return "", ""
	}
	idx := fieldIndex(fn.b.structFieldNames[structName], fa.Field)
	if idx < 0 {
		fn.b.diags.Addf(diag.UndefinedSymbol, fa.Span(), "field %s.%s", structName, fa.Field)
		return "", ""
	}
	structTy := MangleTypeName(structName + ".type")
	p := fn.newTemp()
	fn.emit("%s = getelementptr %s, ptr %s, i32 0, i32 %d", p, structTy, base, idx)
	fn.setVarType(p, "ptr")
	return p, fn.b.structDefs[structName][idx]
}

func (fn *funcEmitter) lowerFieldAccess(fa *ast.FieldAccess) string {
	p, ty := fn.fieldPointer(fa)
	if p == "" {
		return "0"
	}
	t := fn.newTemp()
	fn.emit("%s = load %s, ptr %s", t, ty, p)
	fn.setVarType(t, ty)
	return t
}

func (fn *funcEmitter) lowerChanMake(cm *ast.ChanMake) string {
	capacity := "0"
	if cm.Capacity != nil {
		d := fn.lowerExpr(cm.Capacity)
		capacity = fn.coerce(d, fn.typeOfDesignator(d), "i64")
	}
	t := fn.newTemp()
	fn.emit("%s = call ptr @runtime_create_channel(i64 %s)", t, capacity)
	fn.setVarType(t, "ptr")
	return t
}

func (fn *funcEmitter) lowerChanSend(cs *ast.ChanSend) string {
	ch := fn.lowerExpr(cs.Ch)
	v := fn.lowerExpr(cs.Value)
	v = fn.coerce(v, fn.typeOfDesignator(v), "i64")
	t := fn.newTemp()
	fn.emit("%s = call i32 @runtime_channel_send(ptr %s, i64 %s)", t, ch, v)
	fn.setVarType(t, "i32")
	return t
}

func (fn *funcEmitter) lowerChanRecv(cr *ast.ChanRecv) string {
	ch := fn.lowerExpr(cr.Ch)
	slot := fmt.Sprintf("%%recv.%d", fn.label)
	fn.label++
	fn.alloca(slot, "i64")
	status := fn.newTemp()
	fn.emit("%s = call i32 @runtime_channel_receive(ptr %s, ptr %s)", status, ch, slot)
	fn.setVarType(status, "i32")
	t := fn.newTemp()
	fn.emit("%s = load i64, ptr %s", t, slot)
	fn.setVarType(t, "i64")
	return t
}

func (fn *funcEmitter) lowerAddrOf(ao *ast.AddrOf) string {
	id, ok := ao.X.(*ast.Ident)
	if !ok {
		fn.b.diags.Addf(diag.UnsupportedNode, ao.Span(), "address of %T", ao.X)
		return "0"
	}
	mangled := MangleFunctionName(id.Name)
	if fn.params[mangled] {
		fn.b.diags.Addf(diag.InvalidAssignTarget, ao.Span(),
			"cannot take the address of parameter %s", id.Name)
		return "0"
	}
	if _, ok := fn.b.varTypes[mangled]; !ok {
		fn.b.diags.Addf(diag.UndefinedSymbol, id.Span(), "%s", id.Name)
		return "0"
	}
	// Re-derive the alloca pointer under a fresh register so downstream type
	// lookups see ptr rather than the variable's value type.
	t := fn.newTemp()
	fn.emit("%s = getelementptr i8, ptr %%%s, i64 0", t, mangled)
	fn.setVarType(t, "ptr")
	return t
}

func (fn *funcEmitter) lowerDeref(dr *ast.Deref) string {
	p := fn.lowerExpr(dr.X)
	// Typed pointers are reserved for future work; loads go through as i64.
	t := fn.newTemp()
	fn.emit("%s = load i64, ptr %s", t, p)
	fn.setVarType(t, "i64")
	return t
}
