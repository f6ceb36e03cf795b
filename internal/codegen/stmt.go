package codegen

import (
	"fmt"
	"strings"

	"github.com/qi-lang/qi/internal/ast"
	"github.com/qi-lang/qi/internal/diag"
)

func (fn *funcEmitter) lowerStmt(s ast.Stmt) {
	// Statements after a terminator are dead; emitting them would leave
	// instructions trailing a ret or br in the same block.
	if fn.terminated {
		return
	}
	switch x := s.(type) {
	case *ast.VarDecl:
		fn.lowerVarDecl(x)
	case *ast.IfStmt:
		fn.lowerIf(x)
	case *ast.WhileStmt:
		fn.lowerWhile(x)
	case *ast.LoopStmt:
		fn.lowerLoop(x)
	case *ast.ForInStmt:
		fn.lowerForIn(x)
	case *ast.ReturnStmt:
		fn.lowerReturn(x)
	case *ast.BreakStmt:
		fn.lowerBreak(x)
	case *ast.ContinueStmt:
		fn.lowerContinue(x)
	case *ast.Block:
		for _, inner := range x.Stmts {
			fn.lowerStmt(inner)
		}
	case *ast.ExprStmt:
		if sel, ok := x.X.(*ast.Select); ok {
			fn.lowerSelect(sel)
			return
		}
		fn.lowerExpr(x.X)
	default:
		fn.b.diags.Addf(diag.UnsupportedNode, s.Span(), "statement %T", s)
	}
}

func (fn *funcEmitter) lowerVarDecl(vd *ast.VarDecl) {
	var initDesig, initTy string
	if vd.Init != nil {
		initDesig = fn.lowerExpr(vd.Init)
		initTy = fn.typeOfDesignator(initDesig)
	}

	ty := initTy
	if vd.Type != nil {
		ty = irType(vd.Type)
	}
	if ty == "" || ty == "void" {
		ty = "i64"
	}

	mangled := MangleFunctionName(vd.Name)
	fn.alloca("%"+mangled, ty)
	fn.b.varTypes[vd.Name] = ty
	fn.b.varTypes[mangled] = ty

	if vd.Type != nil {
		switch vd.Type.Kind {
		case ast.KindFuture:
			tag := futureInnerTag(vd.Type.Elem)
			fn.b.futureInner[vd.Name] = tag
			fn.b.futureInner[mangled] = tag
		case ast.KindBool:
			fn.b.boolVars[vd.Name] = true
			fn.b.boolVars[mangled] = true
		case ast.KindNamed:
			fn.b.varStructTypes[vd.Name] = vd.Type.Name
			fn.b.varStructTypes[mangled] = vd.Type.Name
		}
	}

	if vd.Init != nil {
		key := strings.TrimPrefix(initDesig, "%")
		if tag, ok := fn.b.futureInner[key]; ok {
			fn.b.futureInner[vd.Name] = tag
			fn.b.futureInner[mangled] = tag
		}
		if structName, ok := fn.b.varStructTypes[key]; ok {
			fn.b.varStructTypes[vd.Name] = structName
			fn.b.varStructTypes[mangled] = structName
		}
		if n, ok := fn.b.arrayLens[key]; ok {
			fn.b.arrayLens[vd.Name] = n
			fn.b.arrayLens[mangled] = n
		}
		if ty == "i1" {
			fn.b.boolVars[vd.Name] = true
			fn.b.boolVars[mangled] = true
		}
		v := fn.coerce(initDesig, initTy, ty)
		fn.emit("store %s %s, ptr %%%s", ty, v, mangled)
	}
}

// condition lowers an expression to i1, comparing integers against zero when
// the source produced a wider value.
func (fn *funcEmitter) condition(e ast.Expr) string {
	d := fn.lowerExpr(e)
	ty := fn.typeOfDesignator(d)
	if ty == "i1" {
		return d
	}
	return fn.coerce(d, ty, "i1")
}

// hasTopLevelReturn reports whether the statement list returns at its own
// nesting level; the branch-join jump is omitted for such bodies.
func hasTopLevelReturn(stmts []ast.Stmt) bool {
	for _, s := range stmts {
		if _, ok := s.(*ast.ReturnStmt); ok {
			return true
		}
	}
	return false
}

func (fn *funcEmitter) lowerIf(ifs *ast.IfStmt) {
	cond := fn.condition(ifs.Cond)
	thenLabel := fn.newLabel("if.then.")
	endLabel := fn.newLabel("if.end.")
	elseLabel := endLabel
	if ifs.Else != nil {
		elseLabel = fn.newLabel("if.else.")
	}

	thenReturns := hasTopLevelReturn(ifs.Then)
	elseReturns := ifs.Else != nil && hasTopLevelReturn(ifs.Else)
	bothReturn := thenReturns && elseReturns

	fn.emit("br i1 %s, label %%%s, label %%%s", cond, thenLabel, elseLabel)

	fn.startBlock(thenLabel)
	for _, s := range ifs.Then {
		fn.lowerStmt(s)
	}
	if !thenReturns && !fn.terminated {
		fn.emit("br label %%%s", endLabel)
	}
	fn.terminated = true

	if ifs.Else != nil {
		fn.startBlock(elseLabel)
		for _, s := range ifs.Else {
			fn.lowerStmt(s)
		}
		if !elseReturns && !fn.terminated {
			fn.emit("br label %%%s", endLabel)
		}
		fn.terminated = true
	}

	if !bothReturn {
		fn.startBlock(endLabel)
	}
}

func (fn *funcEmitter) lowerWhile(ws *ast.WhileStmt) {
	condLabel := fn.newLabel("while.cond.")
	bodyLabel := fn.newLabel("while.body.")
	endLabel := fn.newLabel("while.end.")

	fn.emit("br label %%%s", condLabel)
	fn.startBlock(condLabel)
	cond := fn.condition(ws.Cond)
	fn.emit("br i1 %s, label %%%s, label %%%s", cond, bodyLabel, endLabel)

	fn.startBlock(bodyLabel)
	fn.loopStack = append(fn.loopStack, [2]string{condLabel, endLabel})
	for _, s := range ws.Body {
		fn.lowerStmt(s)
	}
	fn.loopStack = fn.loopStack[:len(fn.loopStack)-1]
	if !fn.terminated {
		fn.emit("br label %%%s", condLabel)
	}
	fn.startBlock(endLabel)
}

func (fn *funcEmitter) lowerLoop(ls *ast.LoopStmt) {
	startLabel := fn.newLabel("loop.start.")
	endLabel := fn.newLabel("loop.end.")

	fn.emit("br label %%%s", startLabel)
	fn.startBlock(startLabel)
	fn.loopStack = append(fn.loopStack, [2]string{startLabel, endLabel})
	for _, s := range ls.Body {
		fn.lowerStmt(s)
	}
	fn.loopStack = fn.loopStack[:len(fn.loopStack)-1]
	if !fn.terminated {
		fn.emit("br label %%%s", startLabel)
	}
	// The end block is reachable only through break.
	fn.startBlock(endLabel)
}

func (fn *funcEmitter) lowerForIn(fs *ast.ForInStmt) {
	arr, ok := fs.Iterable.(*ast.ArrayLit)
	var base string
	var length int
	if ok {
		base = fn.lowerArrayLit(arr)
		length = len(arr.Elems)
	} else {
		base = fn.lowerExpr(fs.Iterable)
		length = fn.b.arrayLens[strings.TrimPrefix(base, "%")]
		if length == 0 {
			fn.b.diags.Addf(diag.UnsupportedNode, fs.Span(),
				"for-in over a value of unknown length")
			return
		}
	}

	counter := fmt.Sprintf("%%for.i.%d", fn.label)
	fn.label++
	fn.alloca(counter, "i64")
	fn.emit("store i64 0, ptr %s", counter)

	loopVar := MangleFunctionName(fs.Var)
	fn.alloca("%"+loopVar, "i64")
	fn.b.varTypes[fs.Var] = "i64"
	fn.b.varTypes[loopVar] = "i64"

	condLabel := fn.newLabel("for.cond.")
	bodyLabel := fn.newLabel("for.body.")
	endLabel := fn.newLabel("for.end.")

	fn.emit("br label %%%s", condLabel)
	fn.startBlock(condLabel)
	i := fn.newTemp()
	fn.emit("%s = load i64, ptr %s", i, counter)
	fn.setVarType(i, "i64")
	cmp := fn.newTemp()
	fn.emit("%s = icmp slt i64 %s, %d", cmp, i, length)
	fn.setVarType(cmp, "i1")
	fn.emit("br i1 %s, label %%%s, label %%%s", cmp, bodyLabel, endLabel)

	fn.startBlock(bodyLabel)
	elemPtr := fn.newTemp()
	fn.emit("%s = getelementptr [%d x i64], ptr %s, i32 0, i64 %s", elemPtr, length, base, i)
	elem := fn.newTemp()
	fn.emit("%s = load i64, ptr %s", elem, elemPtr)
	fn.setVarType(elem, "i64")
	fn.emit("store i64 %s, ptr %%%s", elem, loopVar)

	fn.loopStack = append(fn.loopStack, [2]string{condLabel, endLabel})
	for _, s := range fs.Body {
		fn.lowerStmt(s)
	}
	fn.loopStack = fn.loopStack[:len(fn.loopStack)-1]

	if !fn.terminated {
		i2 := fn.newTemp()
		fn.emit("%s = load i64, ptr %s", i2, counter)
		next := fn.newTemp()
		fn.emit("%s = add i64 %s, 1", next, i2)
		fn.emit("store i64 %s, ptr %s", next, counter)
		fn.emit("br label %%%s", condLabel)
	}
	fn.startBlock(endLabel)
}

func (fn *funcEmitter) lowerReturn(rs *ast.ReturnStmt) {
	if rs.Value == nil {
		if fn.retTag != "" {
			t := fn.newTemp()
			fn.emit("%s = call ptr @future_ready_i64(i64 0)", t)
			fn.emit("ret ptr %s", t)
		} else if fn.retType == "void" {
			fn.emit("ret void")
		} else {
			fn.emitDefaultReturn()
			return
		}
		fn.terminated = true
		return
	}

	d := fn.lowerExpr(rs.Value)
	ty := fn.typeOfDesignator(d)

	// A return inside a Future-returning function constructs the Future
	// before the ret: this is the contract with the runtime's typed
	// constructors.
	if fn.retTag != "" {
		wrapped := fn.wrapFutureByTag(d, ty)
		fn.emit("ret ptr %s", wrapped)
		fn.terminated = true
		return
	}

	d = fn.coerce(d, ty, fn.retType)
	fn.emit("ret %s %s", fn.retType, d)
	fn.terminated = true
}

// wrapFutureByTag wraps a return value in the constructor selected by the
// enclosing function's declared inner type.
func (fn *funcEmitter) wrapFutureByTag(d, ty string) string {
	t := fn.newTemp()
	switch fn.retTag {
	case futF64:
		d = fn.coerce(d, ty, "double")
		fn.emit("%s = call ptr @future_ready_f64(double %s)", t, d)
	case futBool:
		d = fn.coerce(d, ty, "i32")
		fn.emit("%s = call ptr @future_ready_bool(i32 %s)", t, d)
	case futString:
		length := fn.stringLength(d)
		fn.emit("%s = call ptr @future_ready_string(ptr %s, i64 %s)", t, d, length)
	case futPtr:
		fn.emit("%s = call ptr @future_ready_ptr(ptr %s)", t, d)
	default:
		d = fn.coerce(d, ty, "i64")
		fn.emit("%s = call ptr @future_ready_i64(i64 %s)", t, d)
	}
	fn.setVarType(t, "ptr")
	return t
}

func (fn *funcEmitter) lowerBreak(bs *ast.BreakStmt) {
	if len(fn.loopStack) == 0 {
		fn.b.diags.Addf(diag.LoopControlOutsideLoop, bs.Span(), "break")
		return
	}
	fn.emit("br label %%%s", fn.loopStack[len(fn.loopStack)-1][1])
	fn.terminated = true
}

func (fn *funcEmitter) lowerContinue(cs *ast.ContinueStmt) {
	if len(fn.loopStack) == 0 {
		fn.b.diags.Addf(diag.LoopControlOutsideLoop, cs.Span(), "continue")
		return
	}
	fn.emit("br label %%%s", fn.loopStack[len(fn.loopStack)-1][0])
	fn.terminated = true
}

// Select case descriptors, matching the runtime's layout: triples of
// (kind, channel, payload). Kind 0 is send, 1 is receive, 2 is default.
const (
	selectKindSend    = 0
	selectKindRecv    = 1
	selectKindDefault = 2
)

// lowerSelect lowers a select over channel operations: a descriptor array is
// filled, the runtime picks exactly one ready case, and a switch dispatches
// to the chosen body.
func (fn *funcEmitter) lowerSelect(sel *ast.Select) {
	n := len(sel.Cases)
	total := n
	if sel.Default != nil {
		total++
	}

	arr := fmt.Sprintf("%%sel.cases.%d", fn.label)
	fn.label++
	fn.allocas = append(fn.allocas, fmt.Sprintf("  %s = alloca [%d x i64], align 8", arr, total*3))

	storeSlot := func(slot int, value string) {
		p := fn.newTemp()
		fn.emit("%s = getelementptr [%d x i64], ptr %s, i32 0, i32 %d", p, total*3, arr, slot)
		fn.emit("store i64 %s, ptr %s", value, p)
	}

	recvSlots := make([]string, n)
	for i, c := range sel.Cases {
		switch {
		case c.Send != nil:
			ch := fn.lowerExpr(c.Send.Ch)
			chInt := fn.coerce(ch, "ptr", "i64")
			v := fn.lowerExpr(c.Send.Value)
			v = fn.coerce(v, fn.typeOfDesignator(v), "i64")
			storeSlot(i*3, fmt.Sprintf("%d", selectKindSend))
			storeSlot(i*3+1, chInt)
			storeSlot(i*3+2, v)
		case c.Recv != nil:
			ch := fn.lowerExpr(c.Recv.Ch)
			chInt := fn.coerce(ch, "ptr", "i64")
			slot := fmt.Sprintf("%%sel.recv.%d", fn.label)
			fn.label++
			fn.alloca(slot, "i64")
			recvSlots[i] = slot
			slotInt := fn.newTemp()
			fn.emit("%s = ptrtoint ptr %s to i64", slotInt, slot)
			storeSlot(i*3, fmt.Sprintf("%d", selectKindRecv))
			storeSlot(i*3+1, chInt)
			storeSlot(i*3+2, slotInt)
		}
	}
	if sel.Default != nil {
		storeSlot(n*3, fmt.Sprintf("%d", selectKindDefault))
		storeSlot(n*3+1, "0")
		storeSlot(n*3+2, "0")
	}

	chosen := fn.newTemp()
	fn.emit("%s = call i64 @runtime_select(ptr %s, i64 %d)", chosen, arr, total)
	fn.setVarType(chosen, "i64")

	endLabel := fn.newLabel("sel.end.")
	caseLabels := make([]string, n)
	var arms []string
	for i := range sel.Cases {
		caseLabels[i] = fn.newLabel("sel.case.")
		arms = append(arms, fmt.Sprintf("i64 %d, label %%%s", i, caseLabels[i]))
	}
	defaultLabel := endLabel
	if sel.Default != nil {
		defaultLabel = fn.newLabel("sel.default.")
	}
	fn.emit("switch i64 %s, label %%%s [ %s ]", chosen, defaultLabel, strings.Join(arms, " "))
	fn.terminated = true

	for i, c := range sel.Cases {
		fn.startBlock(caseLabels[i])
		if c.Recv != nil && c.Bind != "" {
			bound := MangleFunctionName(c.Bind)
			fn.alloca("%"+bound, "i64")
			fn.b.varTypes[c.Bind] = "i64"
			fn.b.varTypes[bound] = "i64"
			v := fn.newTemp()
			fn.emit("%s = load i64, ptr %s", v, recvSlots[i])
			fn.emit("store i64 %s, ptr %%%s", v, bound)
		}
		for _, s := range c.Body {
			fn.lowerStmt(s)
		}
		if !fn.terminated {
			fn.emit("br label %%%s", endLabel)
		}
		fn.terminated = true
	}
	if sel.Default != nil {
		fn.startBlock(defaultLabel)
		for _, s := range sel.Default {
			fn.lowerStmt(s)
		}
		if !fn.terminated {
			fn.emit("br label %%%s", endLabel)
		}
		fn.terminated = true
	}
	fn.startBlock(endLabel)
}

// inferReturnType scans a body for the first value-carrying return and
// classifies it. Used for functions declared without a return annotation.
func inferReturnType(body []ast.Stmt) string {
	for _, s := range body {
		if t := inferFromStmt(s); t != "" {
			return t
		}
	}
	return ""
}

func inferFromStmt(s ast.Stmt) string {
	switch x := s.(type) {
	case *ast.ReturnStmt:
		if x.Value == nil {
			return ""
		}
		if lit, ok := x.Value.(*ast.Literal); ok {
			switch lit.Kind {
			case ast.LitFloat:
				return "double"
			case ast.LitBool:
				return "i1"
			case ast.LitString:
				return "ptr"
			case ast.LitChar:
				return "i8"
			}
		}
		return "i64"
	case *ast.IfStmt:
		for _, inner := range x.Then {
			if t := inferFromStmt(inner); t != "" {
				return t
			}
		}
		for _, inner := range x.Else {
			if t := inferFromStmt(inner); t != "" {
				return t
			}
		}
	case *ast.WhileStmt:
		for _, inner := range x.Body {
			if t := inferFromStmt(inner); t != "" {
				return t
			}
		}
	case *ast.LoopStmt:
		for _, inner := range x.Body {
			if t := inferFromStmt(inner); t != "" {
				return t
			}
		}
	case *ast.ForInStmt:
		for _, inner := range x.Body {
			if t := inferFromStmt(inner); t != "" {
				return t
			}
		}
	case *ast.Block:
		for _, inner := range x.Stmts {
			if t := inferFromStmt(inner); t != "" {
				return t
			}
		}
	}
	return ""
}
