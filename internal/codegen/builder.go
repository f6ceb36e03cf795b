// Package codegen lowers a parsed program into textual IR. The walk is
// single-pass per function, preceded by a module-wide signature collection
// pass so forward references and goroutine spawns see accurate types.
package codegen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/qi-lang/qi/internal/ast"
	"github.com/qi-lang/qi/internal/diag"
)

// Signature is the IR-level shape of a callable.
type Signature struct {
	Params []string
	Ret    string
}

// Options configure a lowering run.
type Options struct {
	ModuleName string
	DataLayout string
	Triple     string
	// External maps function names defined outside this compilation unit to
	// their signatures.
	External map[string]Signature
	// Defined lists names known to belong to the current compilation unit
	// even before pass 1 sees them (multi-file builds).
	Defined []string
}

// Builder lowers one program to an IR module. A Builder is single-use.
type Builder struct {
	moduleName string
	dataLayout string
	triple     string

	diags diag.List

	// Symbol tables, keyed by display name and by mangled name.
	varTypes       map[string]string
	varStructTypes map[string]string
	futureInner    map[string]string
	boolVars       map[string]bool
	arrayLens      map[string]int

	fnRet         map[string]string
	fnParams      map[string][]string
	fnFutureInner map[string]string
	definedFns    map[string]bool
	externFns     map[string]Signature
	externOrder   []string

	structDefs       map[string][]string // name -> field IR types
	structFieldNames map[string][]string
	structFieldAST   map[string][]*ast.TypeNode
	structOrder      []string
	enums            map[string]map[string]int64

	imports map[string]string // alias -> module path

	strConsts []string
	strLens   map[string]int // global label -> payload byte length
	strCount  int

	funcs        []string
	wrappers     []string
	wrapperCount int
}

// New returns a Builder for one lowering run.
func New(opts Options) *Builder {
	b := &Builder{
		moduleName:       opts.ModuleName,
		dataLayout:       opts.DataLayout,
		triple:           opts.Triple,
		varTypes:         map[string]string{},
		varStructTypes:   map[string]string{},
		futureInner:      map[string]string{},
		boolVars:         map[string]bool{},
		arrayLens:        map[string]int{},
		fnRet:            map[string]string{},
		fnParams:         map[string][]string{},
		fnFutureInner:    map[string]string{},
		definedFns:       map[string]bool{},
		externFns:        map[string]Signature{},
		structDefs:       map[string][]string{},
		structFieldNames: map[string][]string{},
		structFieldAST:   map[string][]*ast.TypeNode{},
		enums:            map[string]map[string]int64{},
		imports:          map[string]string{},
		strLens:          map[string]int{},
	}
	if b.moduleName == "" {
		b.moduleName = "main"
	}
	if b.dataLayout == "" {
		b.dataLayout = defaultDataLayout
	}
	if b.triple == "" {
		b.triple = defaultTriple
	}
	for name, sig := range opts.External {
		mangled := MangleFunctionName(name)
		b.externFns[mangled] = sig
		b.externOrder = append(b.externOrder, mangled)
	}
	for _, name := range opts.Defined {
		b.definedFns[MangleFunctionName(name)] = true
	}
	return b
}

// Diagnostics returns the diagnostics collected so far.
func (b *Builder) Diagnostics() *diag.List { return &b.diags }

// Lower walks the program twice and returns the serialized module. Lowering
// keeps going after recoverable errors; the returned error summarizes every
// diagnostic while the IR string holds the best-effort output.
func (b *Builder) Lower(prog *ast.Program) (string, error) {
	b.collectSignatures(prog)

	for _, stmt := range prog.Statements {
		switch s := stmt.(type) {
		case *ast.FuncDecl:
			b.emitFunction(s, "", "")
		case *ast.MethodDecl:
			b.emitFunction(s.Func, s.ReceiverType, s.ReceiverName)
		case *ast.StructDecl, *ast.EnumDecl, *ast.ImportStmt:
			// handled in pass 1
		default:
			b.diags.Addf(diag.UnsupportedNode, stmt.Span(),
				"top-level statement %T is not supported", stmt)
		}
	}

	return b.serialize(), b.diags.Err()
}

// collectSignatures is pass 1: record every function's parameter and return
// signature, struct layouts, enum variants, and import aliases.
func (b *Builder) collectSignatures(prog *ast.Program) {
	for _, stmt := range prog.Statements {
		switch s := stmt.(type) {
		case *ast.ImportStmt:
			alias := s.Alias
			if alias == "" {
				parts := strings.Split(s.Path, "/")
				alias = parts[len(parts)-1]
			}
			b.imports[alias] = s.Path
		case *ast.StructDecl:
			types := make([]string, len(s.Fields))
			names := make([]string, len(s.Fields))
			asts := make([]*ast.TypeNode, len(s.Fields))
			for i, f := range s.Fields {
				types[i] = irType(f.Type)
				names[i] = f.Name
				asts[i] = f.Type
			}
			b.structDefs[s.Name] = types
			b.structFieldNames[s.Name] = names
			b.structFieldAST[s.Name] = asts
			b.structOrder = append(b.structOrder, s.Name)
		case *ast.EnumDecl:
			variants := map[string]int64{}
			next := int64(0)
			for _, v := range s.Variants {
				if v.Value != nil {
					next = *v.Value
				}
				variants[v.Name] = next
				next++
			}
			b.enums[s.Name] = variants
		case *ast.FuncDecl:
			b.collectFunction(s, "")
		case *ast.MethodDecl:
			b.collectFunction(s.Func, s.ReceiverType)
		}
	}
}

func (b *Builder) collectFunction(fd *ast.FuncDecl, receiverType string) {
	name := b.loweredName(fd, receiverType)
	params := make([]string, 0, len(fd.Params)+1)
	if receiverType != "" {
		params = append(params, "ptr")
	}
	for _, p := range fd.Params {
		params = append(params, irType(p.Type))
	}
	b.fnParams[name] = params
	b.definedFns[name] = true

	switch {
	case name == "main":
		b.fnRet[name] = "i32"
	case fd.Async || (fd.Return != nil && fd.Return.Kind == ast.KindFuture):
		b.fnRet[name] = "ptr"
		inner := fd.Return
		if inner != nil && inner.Kind == ast.KindFuture {
			inner = inner.Elem
		}
		b.fnFutureInner[name] = futureInnerTag(inner)
	case fd.Return != nil:
		b.fnRet[name] = irType(fd.Return)
	default:
		if inferred := inferReturnType(fd.Body); inferred != "" {
			b.fnRet[name] = inferred
		} else {
			b.fnRet[name] = "void"
		}
	}
}

// loweredName computes the symbol a function lowers to. Methods are lifted
// to free functions named <TypeName>_<methodName>.
func (b *Builder) loweredName(fd *ast.FuncDecl, receiverType string) string {
	if receiverType != "" {
		return MangleFunctionName(receiverType + "_" + fd.Name)
	}
	return MangleFunctionName(fd.Name)
}

// futureReturnInner returns the tagged inner type when the function's AST
// return type is a Future, or "" otherwise.
func futureReturnInner(fd *ast.FuncDecl) string {
	if fd.Return != nil && fd.Return.Kind == ast.KindFuture {
		return futureInnerTag(fd.Return.Elem)
	}
	if fd.Async {
		return futureInnerTag(fd.Return)
	}
	return ""
}

// recordExtern notes a symbol called but not defined in this unit so a
// declare line is emitted after the prelude.
func (b *Builder) recordExtern(name string, sig Signature) {
	if _, fixed := preludeSymbols[name]; fixed {
		return
	}
	if b.definedFns[name] {
		return
	}
	if _, seen := b.externFns[name]; seen {
		return
	}
	b.externFns[name] = sig
	b.externOrder = append(b.externOrder, name)
}

// internString adds a private string-constant global and returns its label.
func (b *Builder) internString(s string) string {
	label := fmt.Sprintf("@.str.%d", b.strCount)
	b.strCount++
	payload := []byte(s)
	b.strConsts = append(b.strConsts, fmt.Sprintf(
		"%s = private unnamed_addr constant [%d x i8] c\"%s\\00\", align 1",
		label, len(payload)+1, escapeString(s)))
	b.strLens[label] = len(payload)
	return label
}

// internFormat interns a printf format string whose escapes are already in
// IR form. byteLen is the decoded payload length.
func (b *Builder) internFormat(escaped string, byteLen int) string {
	label := fmt.Sprintf("@.fmt.%d", b.strCount)
	b.strCount++
	b.strConsts = append(b.strConsts, fmt.Sprintf(
		"%s = private unnamed_addr constant [%d x i8] c\"%s\\00\", align 1",
		label, byteLen+1, escaped))
	b.strLens[label] = byteLen
	return label
}

// serialize assembles the module in the required order: header, struct
// types, runtime prelude, discovered externals, string constants, function
// bodies, goroutine wrappers.
func (b *Builder) serialize() string {
	var sb strings.Builder
	b.writePrelude(&sb)

	if len(b.externOrder) > 0 {
		sb.WriteString("; external functions\n")
		names := append([]string(nil), b.externOrder...)
		sort.Strings(names)
		for _, name := range names {
			sig := b.externFns[name]
			declare{name: name, params: sig.Params, ret: sig.Ret}.render(&sb)
		}
		sb.WriteString("\n")
	}

	if len(b.strConsts) > 0 {
		sb.WriteString("; string constants\n")
		for _, c := range b.strConsts {
			sb.WriteString(c)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	for _, f := range b.funcs {
		sb.WriteString(f)
		sb.WriteString("\n")
	}
	for _, w := range b.wrappers {
		sb.WriteString(w)
		sb.WriteString("\n")
	}
	return sb.String()
}

// funcEmitter carries the per-function emission state. Allocas are collected
// separately so every one of them lands in the entry block.
type funcEmitter struct {
	b       *Builder
	name    string // mangled symbol
	decl    *ast.FuncDecl
	retType string // IR return type
	retTag  string // future inner tag, "" for sync functions
	isMain  bool

	params map[string]bool // mangled parameter names, first-class values

	allocas    []string
	body       []string
	temp       int
	label      int
	loopStack  [][2]string // (continue target, break target)
	terminated bool
}

func (fn *funcEmitter) newTemp() string {
	fn.temp++
	return fmt.Sprintf("%%t%d", fn.temp)
}

func (fn *funcEmitter) newLabel(prefix string) string {
	fn.label++
	return fmt.Sprintf("%s%d", prefix, fn.label)
}

func (fn *funcEmitter) emit(format string, args ...any) {
	fn.body = append(fn.body, "  "+fmt.Sprintf(format, args...))
}

// startBlock emits a label line and re-opens the instruction stream.
func (fn *funcEmitter) startBlock(label string) {
	fn.body = append(fn.body, label+":")
	fn.terminated = false
}

// alloca registers an entry-block alloca and returns its pointer register.
func (fn *funcEmitter) alloca(reg, ty string) string {
	fn.allocas = append(fn.allocas, fmt.Sprintf("  %s = alloca %s, align %d", reg, ty, alignOf(ty)))
	return reg
}

func alignOf(ty string) int {
	switch ty {
	case "i1", "i8":
		return 1
	case "i16":
		return 2
	case "i32":
		return 4
	default:
		return 8
	}
}

// setVarType records a register or variable type under its table key (the
// designator without the leading %).
func (fn *funcEmitter) setVarType(reg, ty string) {
	fn.b.varTypes[strings.TrimPrefix(reg, "%")] = ty
}

// emitFunction lowers one function declaration and appends its text to the
// module.
func (b *Builder) emitFunction(fd *ast.FuncDecl, receiverType, receiverName string) {
	name := b.loweredName(fd, receiverType)
	fn := &funcEmitter{
		b:       b,
		name:    name,
		decl:    fd,
		retType: b.fnRet[name],
		retTag:  futureReturnInner(fd),
		isMain:  name == "main",
		params:  map[string]bool{},
	}
	if fd.Async && fn.retTag == "" {
		fn.retTag = futI64
	}

	// Bind parameters. A parameter is a first-class value: identifiers that
	// resolve to one bypass the load path entirely.
	var paramDefs []string
	if receiverType != "" {
		recv := MangleFunctionName(receiverName)
		if receiverName == "" {
			recv = "self"
		}
		paramDefs = append(paramDefs, "ptr %"+recv)
		fn.params[recv] = true
		b.varTypes[recv] = "ptr"
		b.varTypes[receiverName] = "ptr"
		b.varStructTypes[recv] = receiverType
		b.varStructTypes[receiverName] = receiverType
	}
	for _, p := range fd.Params {
		mangled := MangleFunctionName(p.Name)
		ty := irType(p.Type)
		paramDefs = append(paramDefs, ty+" %"+mangled)
		fn.params[mangled] = true
		b.varTypes[mangled] = ty
		b.varTypes[p.Name] = ty
		if p.Type != nil {
			switch p.Type.Kind {
			case ast.KindBool:
				b.boolVars[p.Name] = true
				b.boolVars[mangled] = true
			case ast.KindFuture:
				tag := futureInnerTag(p.Type.Elem)
				b.futureInner[p.Name] = tag
				b.futureInner[mangled] = tag
			case ast.KindNamed:
				b.varStructTypes[p.Name] = p.Type.Name
				b.varStructTypes[mangled] = p.Type.Name
			}
		}
	}

	fn.startBlock("entry")
	if fn.isMain {
		rc := fn.newTemp()
		fn.emit("%s = call i32 @runtime_initialize()", rc)
		fn.setVarType(rc, "i32")
	}

	for _, stmt := range fd.Body {
		fn.lowerStmt(stmt)
	}

	if !fn.terminated {
		fn.emitDefaultReturn()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("define %s @%s(%s) {\n", fn.retType, name, strings.Join(paramDefs, ", ")))
	// entry label first, then the collected allocas, then the body.
	sb.WriteString(fn.body[0] + "\n")
	for _, a := range fn.allocas {
		sb.WriteString(a + "\n")
	}
	for _, line := range fn.body[1:] {
		sb.WriteString(line + "\n")
	}
	sb.WriteString("}\n")
	b.funcs = append(b.funcs, sb.String())
}

func (fn *funcEmitter) emitDefaultReturn() {
	switch fn.retType {
	case "void":
		fn.emit("ret void")
	case "i32":
		fn.emit("ret i32 0")
	case "i64":
		fn.emit("ret i64 0")
	case "double":
		fn.emit("ret double 0.0")
	case "i1":
		fn.emit("ret i1 false")
	default:
		fn.emit("ret %s null", fn.retType)
	}
	fn.terminated = true
}

// coerce converts a designator between IR types where the source language
// permits implicit conversion; it returns the input unchanged when the types
// already agree.
func (fn *funcEmitter) coerce(d, from, to string) string {
	if from == to || to == "" || from == "" {
		return d
	}
	t := fn.newTemp()
	switch {
	case from == "i1" && to == "i32":
		fn.emit("%s = zext i1 %s to i32", t, d)
	case from == "i1" && to == "i64":
		fn.emit("%s = zext i1 %s to i64", t, d)
	case from == "i32" && to == "i64":
		fn.emit("%s = sext i32 %s to i64", t, d)
	case from == "i64" && to == "i32":
		fn.emit("%s = trunc i64 %s to i32", t, d)
	case from == "i8" && to == "i64":
		fn.emit("%s = sext i8 %s to i64", t, d)
	case from == "i16" && to == "i64":
		fn.emit("%s = sext i16 %s to i64", t, d)
	case from == "i64" && to == "double":
		fn.emit("%s = sitofp i64 %s to double", t, d)
	case from == "i32" && to == "double":
		fn.emit("%s = sitofp i32 %s to double", t, d)
	case from == "double" && to == "i64":
		fn.emit("%s = fptosi double %s to i64", t, d)
	case from == "i64" && to == "ptr":
		fn.emit("%s = inttoptr i64 %s to ptr", t, d)
	case from == "ptr" && to == "i64":
		fn.emit("%s = ptrtoint ptr %s to i64", t, d)
	case from == "i32" && to == "i1":
		fn.emit("%s = icmp ne i32 %s, 0", t, d)
	case from == "i64" && to == "i1":
		fn.emit("%s = icmp ne i64 %s, 0", t, d)
	default:
		return d
	}
	fn.setVarType(t, to)
	return t
}
