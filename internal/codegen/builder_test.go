package codegen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qi-lang/qi/internal/ast"
)

func intLit(v int64) *ast.Literal     { return &ast.Literal{Kind: ast.LitInt, Int: v} }
func floatLit(v float64) *ast.Literal { return &ast.Literal{Kind: ast.LitFloat, Float: v} }
func strLit(s string) *ast.Literal    { return &ast.Literal{Kind: ast.LitString, Str: s} }
func ident(n string) *ast.Ident       { return &ast.Ident{Name: n} }

func lower(t *testing.T, prog *ast.Program) string {
	t.Helper()
	b := New(Options{ModuleName: "test"})
	out, err := b.Lower(prog)
	require.NoError(t, err)
	checkModuleInvariants(t, out)
	return out
}

// checkModuleInvariants asserts the structural properties every emitted
// module must satisfy: blocks end in terminators, allocas stay in entry
// blocks, and string global lengths match their payloads.
func checkModuleInvariants(t *testing.T, ir string) {
	t.Helper()
	lines := strings.Split(ir, "\n")
	inFunc := false
	inEntry := false
	var prev string
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		switch {
		case strings.HasPrefix(line, "define "):
			inFunc = true
			inEntry = false
		case line == "}":
			assert.True(t, isTerminator(prev), "block before } must end in a terminator, got %q", prev)
			inFunc = false
		case inFunc && strings.HasSuffix(line, ":"):
			if line == "entry:" {
				inEntry = true
			} else {
				inEntry = false
				assert.True(t, isTerminator(prev),
					"block before label %q must end in a terminator, got %q", line, prev)
			}
		case inFunc && strings.Contains(line, "= alloca "):
			assert.True(t, inEntry, "alloca outside entry block: %q", line)
		}
		if line != "" {
			prev = line
		}
	}

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if !strings.Contains(line, " x i8] c\"") {
			continue
		}
		open := strings.Index(line, "[")
		closeIdx := strings.Index(line, " x i8]")
		require.True(t, open >= 0 && closeIdx > open)
		n := leadingInt(line[open+1 : closeIdx])
		start := strings.Index(line, "c\"") + 2
		end := strings.LastIndex(line, "\"")
		assert.Equal(t, n, decodedLen(line[start:end]), "global length mismatch in %q", line)
	}
}

func leadingInt(s string) int {
	v := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			break
		}
		v = v*10 + int(c-'0')
	}
	return v
}

// decodedLen counts payload bytes in an IR c"..." body where \XX escapes are
// single bytes.
func decodedLen(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' {
			i += 2
		}
		n++
	}
	return n
}

func isTerminator(line string) bool {
	return strings.HasPrefix(line, "ret ") || line == "ret void" ||
		strings.HasPrefix(line, "br ") || strings.HasPrefix(line, "switch ") ||
		line == "unreachable"
}

func TestLower_EntryReturnsZero(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Stmt{
		&ast.FuncDecl{
			Name: "入口",
			Body: []ast.Stmt{&ast.ReturnStmt{Value: intLit(0)}},
		},
	}}
	ir := lower(t, prog)

	assert.Contains(t, ir, "define i32 @main()")
	assert.Contains(t, ir, "call i32 @runtime_initialize()")
	assert.Contains(t, ir, "ret i32 ")
	assert.Contains(t, ir, "declare i32 @runtime_initialize()")
}

func TestLower_IfComparisonAndTwoReturns(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Stmt{
		&ast.FuncDecl{
			Name: "入口",
			Body: []ast.Stmt{
				&ast.VarDecl{Name: "x", Init: intLit(10)},
				&ast.VarDecl{Name: "y", Init: intLit(10)},
				&ast.IfStmt{
					Cond: &ast.Binary{Op: ast.OpEq, L: ident("x"), R: ident("y")},
					Then: []ast.Stmt{&ast.ReturnStmt{Value: intLit(1)}},
				},
				&ast.ReturnStmt{Value: intLit(0)},
			},
		},
	}}
	ir := lower(t, prog)

	assert.Contains(t, ir, "icmp eq i64")
	assert.Contains(t, ir, "br i1")
	assert.Equal(t, 2, strings.Count(ir, "ret i32 "))
}

func TestLower_AsyncReturnWrapsFutureReady(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Stmt{
		&ast.FuncDecl{
			Name:   "计算",
			Async:  true,
			Return: ast.FutureOf(ast.Basic(ast.KindInt)),
			Body:   []ast.Stmt{&ast.ReturnStmt{Value: intLit(42)}},
		},
	}}
	ir := lower(t, prog)

	assert.Contains(t, ir, "call ptr @future_ready_i64(i64 ")
	assert.Contains(t, ir, "ret ptr ")
	mangled := MangleFunctionName("计算")
	assert.Contains(t, ir, "define ptr @"+mangled+"(")
}

func TestLower_AsyncBoolReturnWidensToI32(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Stmt{
		&ast.FuncDecl{
			Name:   "检查",
			Async:  true,
			Return: ast.FutureOf(ast.Basic(ast.KindBool)),
			Body: []ast.Stmt{&ast.ReturnStmt{
				Value: &ast.Literal{Kind: ast.LitBool, Bool: true},
			}},
		},
	}}
	ir := lower(t, prog)

	assert.Contains(t, ir, "zext i1 true to i32")
	assert.Contains(t, ir, "call ptr @future_ready_bool(i32 ")
}

func TestLower_CrossModuleCallResolvesMangledSymbol(t *testing.T) {
	maxName := "数学_最大值"
	b := New(Options{
		ModuleName: "caller",
		External:   map[string]Signature{maxName: {Params: []string{"i64", "i64"}, Ret: "i64"}},
	})
	prog := &ast.Program{Statements: []ast.Stmt{
		&ast.FuncDecl{
			Name: "入口",
			Body: []ast.Stmt{&ast.ReturnStmt{Value: &ast.Call{
				Module: "数学", Name: "最大值",
				Args: []ast.Expr{intLit(3), intLit(5)},
			}}},
		},
	}}
	ir, err := b.Lower(prog)
	require.NoError(t, err)

	mangled := MangleFunctionName(maxName)
	assert.Contains(t, ir, "call i64 @"+mangled+"(i64 ")
	assert.Contains(t, ir, "declare i64 @"+mangled+"(i64, i64)")
}

func TestLower_ImportedAliasKeepsUnqualifiedName(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Stmt{
		&ast.ImportStmt{Path: "std/math", Alias: "math"},
		&ast.FuncDecl{
			Name: "helper",
			Params: []ast.Param{{Name: "a", Type: ast.Basic(ast.KindInt)}},
			Return: ast.Basic(ast.KindInt),
			Body: []ast.Stmt{&ast.ReturnStmt{Value: ident("a")}},
		},
		&ast.FuncDecl{
			Name: "入口",
			Body: []ast.Stmt{&ast.ReturnStmt{Value: &ast.Call{
				Module: "math", Name: "helper", Args: []ast.Expr{intLit(1)},
			}}},
		},
	}}
	ir := lower(t, prog)
	assert.Contains(t, ir, "call i64 @helper(i64 ")
}

func TestLower_ChannelRoundTrip(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Stmt{
		&ast.FuncDecl{
			Name: "入口",
			Body: []ast.Stmt{
				&ast.VarDecl{Name: "c", Init: &ast.ChanMake{
					Elem: ast.Basic(ast.KindInt), Capacity: intLit(1),
				}},
				&ast.ExprStmt{X: &ast.ChanSend{Ch: ident("c"), Value: intLit(7)}},
				&ast.ReturnStmt{Value: &ast.ChanRecv{Ch: ident("c")}},
			},
		},
	}}
	ir := lower(t, prog)

	assert.Contains(t, ir, "call ptr @runtime_create_channel(i64 ")
	assert.Contains(t, ir, "call i32 @runtime_channel_send(ptr ")
	assert.Contains(t, ir, "call i32 @runtime_channel_receive(ptr ")
}

func TestLower_PrintlnSynthesizesFormat(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Stmt{
		&ast.FuncDecl{
			Name: "入口",
			Body: []ast.Stmt{
				&ast.ExprStmt{X: &ast.Call{Name: "打印行", Args: []ast.Expr{
					strLit("值="), intLit(42), strLit(" 和 "), floatLit(3.14),
				}}},
				&ast.ReturnStmt{Value: intLit(0)},
			},
		},
	}}
	ir := lower(t, prog)

	wantFmt := escapeString("值=") + "%lld" + escapeString(" 和 ") + "%f\\0A"
	assert.Contains(t, ir, "c\""+wantFmt+"\\00\"")
	assert.Contains(t, ir, "call i32 (ptr, ...) @printf(ptr @.fmt.")
	assert.Contains(t, ir, "double ")
}

func TestLower_PrintlnSpecifiersSpaceSeparated(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Stmt{
		&ast.FuncDecl{
			Name: "入口",
			Body: []ast.Stmt{
				&ast.ExprStmt{X: &ast.Call{Name: "打印行", Args: []ast.Expr{
					intLit(1), floatLit(2.5),
				}}},
				&ast.ReturnStmt{Value: intLit(0)},
			},
		},
	}}
	ir := lower(t, prog)
	assert.Contains(t, ir, "c\"%lld %f\\0A\\00\"")
}

func TestLower_AwaitDispatchesByInnerType(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Stmt{
		&ast.FuncDecl{
			Name:   "取数",
			Async:  true,
			Return: ast.FutureOf(ast.Basic(ast.KindFloat)),
			Body:   []ast.Stmt{&ast.ReturnStmt{Value: floatLit(1.5)}},
		},
		&ast.FuncDecl{
			Name: "入口",
			Body: []ast.Stmt{
				&ast.VarDecl{Name: "f", Type: ast.FutureOf(ast.Basic(ast.KindFloat)),
					Init: &ast.Call{Name: "取数"}},
				&ast.VarDecl{Name: "v", Init: &ast.Await{X: ident("f")}},
				&ast.ReturnStmt{Value: intLit(0)},
			},
		},
	}}
	ir := lower(t, prog)
	assert.Contains(t, ir, "call double @future_await_f64(ptr ")
}

func TestLower_AwaitBoolNarrowsToI1(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Stmt{
		&ast.FuncDecl{
			Name:   "检查",
			Async:  true,
			Return: ast.FutureOf(ast.Basic(ast.KindBool)),
			Body: []ast.Stmt{&ast.ReturnStmt{
				Value: &ast.Literal{Kind: ast.LitBool, Bool: true},
			}},
		},
		&ast.FuncDecl{
			Name: "入口",
			Body: []ast.Stmt{
				&ast.VarDecl{Name: "ok", Init: &ast.Await{X: &ast.Call{Name: "检查"}}},
				&ast.IfStmt{
					Cond: ident("ok"),
					Then: []ast.Stmt{&ast.ReturnStmt{Value: intLit(1)}},
				},
				&ast.ReturnStmt{Value: intLit(0)},
			},
		},
	}}
	ir := lower(t, prog)

	assert.Contains(t, ir, "call i32 @future_await_bool(ptr ")
	assert.Contains(t, ir, "icmp ne i32 ")
}

func TestLower_AwaitCallUsesCalleeInnerType(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Stmt{
		&ast.FuncDecl{
			Name:   "fetch",
			Async:  true,
			Return: ast.FutureOf(ast.Basic(ast.KindString)),
			Body:   []ast.Stmt{&ast.ReturnStmt{Value: strLit("hi")}},
		},
		&ast.FuncDecl{
			Name: "入口",
			Body: []ast.Stmt{
				&ast.VarDecl{Name: "s", Init: &ast.Await{X: &ast.Call{Name: "fetch"}}},
				&ast.ReturnStmt{Value: intLit(0)},
			},
		},
	}}
	ir := lower(t, prog)
	assert.Contains(t, ir, "call ptr @future_await_string(ptr ")
	assert.Contains(t, ir, "call ptr @future_ready_string(ptr @.str.")
}

func TestLower_StringConcatenationOverload(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Stmt{
		&ast.FuncDecl{
			Name: "入口",
			Body: []ast.Stmt{
				&ast.VarDecl{Name: "msg", Init: &ast.Binary{
					Op: ast.OpAdd, L: strLit("count: "), R: intLit(3),
				}},
				&ast.ReturnStmt{Value: intLit(0)},
			},
		},
	}}
	ir := lower(t, prog)

	assert.Contains(t, ir, "call ptr @runtime_int_to_string(i64 ")
	assert.Contains(t, ir, "call ptr @runtime_string_concat(ptr ")
}

func TestLower_WhileWithBreakContinue(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Stmt{
		&ast.FuncDecl{
			Name: "入口",
			Body: []ast.Stmt{
				&ast.VarDecl{Name: "i", Init: intLit(0)},
				&ast.WhileStmt{
					Cond: &ast.Binary{Op: ast.OpLt, L: ident("i"), R: intLit(10)},
					Body: []ast.Stmt{
						&ast.ExprStmt{X: &ast.Assign{
							Target: ident("i"),
							Value:  &ast.Binary{Op: ast.OpAdd, L: ident("i"), R: intLit(1)},
						}},
						&ast.IfStmt{
							Cond: &ast.Binary{Op: ast.OpEq, L: ident("i"), R: intLit(5)},
							Then: []ast.Stmt{&ast.BreakStmt{}},
						},
					},
				},
				&ast.ReturnStmt{Value: intLit(0)},
			},
		},
	}}
	ir := lower(t, prog)

	assert.Contains(t, ir, "while.cond.")
	assert.Contains(t, ir, "while.end.")
	assert.Contains(t, ir, "br label %while.end.")
}

func TestLower_BreakOutsideLoopIsDiagnosed(t *testing.T) {
	b := New(Options{ModuleName: "test"})
	prog := &ast.Program{Statements: []ast.Stmt{
		&ast.FuncDecl{
			Name: "入口",
			Body: []ast.Stmt{
				&ast.BreakStmt{},
				&ast.ReturnStmt{Value: intLit(0)},
			},
		},
	}}
	_, err := b.Lower(prog)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "break/continue outside loop")
}

func TestLower_GoroutineWrapperSynthesis(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Stmt{
		&ast.FuncDecl{
			Name:   "工作",
			Params: []ast.Param{{Name: "n", Type: ast.Basic(ast.KindInt)}},
			Body:   []ast.Stmt{},
		},
		&ast.FuncDecl{
			Name: "入口",
			Body: []ast.Stmt{
				&ast.ExprStmt{X: &ast.Spawn{Call: &ast.Call{
					Name: "工作", Args: []ast.Expr{intLit(9)},
				}}},
				&ast.ReturnStmt{Value: intLit(0)},
			},
		},
	}}
	ir := lower(t, prog)

	mangled := MangleFunctionName("工作")
	assert.Contains(t, ir, "define void @__goroutine_wrapper_"+mangled+"_0(ptr %args)")
	assert.Contains(t, ir, "call void @runtime_spawn_goroutine_with_args(ptr @__goroutine_wrapper_"+mangled+"_0, ptr ")
}

func TestLower_ZeroArgSpawnIsDirect(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Stmt{
		&ast.FuncDecl{Name: "tick", Body: []ast.Stmt{}},
		&ast.FuncDecl{
			Name: "入口",
			Body: []ast.Stmt{
				&ast.ExprStmt{X: &ast.Spawn{Call: &ast.Call{Name: "tick"}}},
				&ast.ReturnStmt{Value: intLit(0)},
			},
		},
	}}
	ir := lower(t, prog)
	assert.Contains(t, ir, "call void @runtime_spawn_goroutine(ptr @tick)")
	assert.NotContains(t, ir, "__goroutine_wrapper_tick")
}

func TestLower_StructLiteralStackAndHeap(t *testing.T) {
	point := &ast.StructDecl{Name: "点", Fields: []ast.Field{
		{Name: "x", Type: ast.Basic(ast.KindInt)},
		{Name: "y", Type: ast.Basic(ast.KindInt)},
	}}
	mk := func(async bool) *ast.Program {
		fd := &ast.FuncDecl{
			Name: "построй",
			Body: []ast.Stmt{&ast.ReturnStmt{Value: &ast.StructLit{
				Name: "点",
				Fields: []ast.FieldInit{
					{Name: "x", Value: intLit(1)},
					{Name: "y", Value: intLit(2)},
				},
			}}},
		}
		if async {
			fd.Async = true
			fd.Return = ast.FutureOf(ast.Named("点"))
		} else {
			fd.Return = ast.Named("点")
		}
		return &ast.Program{Statements: []ast.Stmt{point, fd}}
	}

	sync := lower(t, mk(false))
	structTy := MangleTypeName("点.type")
	assert.Contains(t, sync, "alloca "+structTy)
	assert.NotContains(t, sync, "@malloc(i64 16)")
	assert.Contains(t, sync, structTy+" = type { i64, i64 }")

	async := lower(t, mk(true))
	assert.Contains(t, async, "call ptr @malloc(i64 16)")
	assert.Contains(t, async, "call ptr @future_ready_ptr(ptr ")
	assert.NotContains(t, async, "alloca "+structTy)
}

func TestLower_MethodLiftedToFreeFunction(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Stmt{
		&ast.StructDecl{Name: "Counter", Fields: []ast.Field{
			{Name: "n", Type: ast.Basic(ast.KindInt)},
		}},
		&ast.MethodDecl{
			ReceiverName: "self",
			ReceiverType: "Counter",
			Func: &ast.FuncDecl{
				Name:   "get",
				Return: ast.Basic(ast.KindInt),
				Body: []ast.Stmt{&ast.ReturnStmt{Value: &ast.FieldAccess{
					X: ident("self"), Field: "n",
				}}},
			},
		},
	}}
	ir := lower(t, prog)
	assert.Contains(t, ir, "define i64 @Counter_get(ptr %self)")
	assert.Contains(t, ir, "getelementptr %struct.Counter, ptr ")
}

func TestLower_SelectEmitsDescriptorsAndSwitch(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Stmt{
		&ast.FuncDecl{
			Name: "入口",
			Body: []ast.Stmt{
				&ast.VarDecl{Name: "a", Init: &ast.ChanMake{Capacity: intLit(1)}},
				&ast.VarDecl{Name: "b", Init: &ast.ChanMake{Capacity: intLit(1)}},
				&ast.ExprStmt{X: &ast.Select{
					Cases: []ast.SelectCase{
						{Send: &ast.ChanSend{Ch: ident("a"), Value: intLit(1)}},
						{Recv: &ast.ChanRecv{Ch: ident("b")}, Bind: "v"},
					},
					Default: []ast.Stmt{},
				}},
				&ast.ReturnStmt{Value: intLit(0)},
			},
		},
	}}
	ir := lower(t, prog)

	assert.Contains(t, ir, "call i64 @runtime_select(ptr ")
	assert.Contains(t, ir, "switch i64 ")
	assert.Contains(t, ir, "sel.case.")
}

func TestLower_ParameterBypassesLoad(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Stmt{
		&ast.FuncDecl{
			Name: "echo",
			Params: []ast.Param{{Name: "n", Type: ast.Basic(ast.KindInt)}},
			Return: ast.Basic(ast.KindInt),
			Body: []ast.Stmt{&ast.ReturnStmt{Value: ident("n")}},
		},
	}}
	ir := lower(t, prog)
	assert.Contains(t, ir, "ret i64 %n")
	assert.NotContains(t, ir, "load i64, ptr %n")
}

func TestLower_ReturnTypeInferredFromFirstReturn(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Stmt{
		&ast.FuncDecl{
			Name: "ratio",
			Body: []ast.Stmt{&ast.ReturnStmt{Value: floatLit(0.5)}},
		},
	}}
	ir := lower(t, prog)
	assert.Contains(t, ir, "define double @ratio()")
}

func TestLower_BestEffortContinuesAcrossFunctions(t *testing.T) {
	b := New(Options{ModuleName: "test"})
	prog := &ast.Program{Statements: []ast.Stmt{
		&ast.FuncDecl{
			Name: "broken",
			Body: []ast.Stmt{&ast.ReturnStmt{Value: ident("missing")}},
		},
		&ast.FuncDecl{
			Name: "入口",
			Body: []ast.Stmt{&ast.ReturnStmt{Value: intLit(0)}},
		},
	}}
	ir, err := b.Lower(prog)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "undefined symbol")
	// The entry function still lowered.
	assert.Contains(t, ir, "define i32 @main()")
	assert.Equal(t, 1, b.Diagnostics().Len())
}

func TestLower_PreludeOrdering(t *testing.T) {
	prog := &ast.Program{Statements: []ast.Stmt{
		&ast.StructDecl{Name: "P", Fields: []ast.Field{{Name: "x", Type: ast.Basic(ast.KindInt)}}},
		&ast.FuncDecl{
			Name: "入口",
			Body: []ast.Stmt{
				&ast.VarDecl{Name: "s", Init: strLit("hello")},
				&ast.ReturnStmt{Value: intLit(0)},
			},
		},
	}}
	ir := lower(t, prog)

	iHeader := strings.Index(ir, "target datalayout")
	iStruct := strings.Index(ir, "%struct.P = type")
	iDecl := strings.Index(ir, "declare i32 @runtime_initialize()")
	iStr := strings.Index(ir, "@.str.0")
	iDefine := strings.Index(ir, "define i32 @main()")
	require.True(t, iHeader >= 0 && iStruct >= 0 && iDecl >= 0 && iStr >= 0 && iDefine >= 0)
	assert.True(t, iHeader < iStruct && iStruct < iDecl && iDecl < iStr && iStr < iDefine,
		"sections out of order: header=%d struct=%d declare=%d str=%d define=%d",
		iHeader, iStruct, iDecl, iStr, iDefine)
}
