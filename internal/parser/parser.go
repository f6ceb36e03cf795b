// Package parser turns Qi source text into the AST consumed by the lowering
// engine. The grammar is recursive descent with one token of lookahead,
// plus a two-token peek to split struct literals from blocks.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/qi-lang/qi/internal/ast"
)

// Parser holds the token stream and the import aliases seen so far, which
// disambiguate module-qualified calls from method calls.
type Parser struct {
	toks    []token
	pos     int
	aliases map[string]bool
	structs map[string]bool
}

// Parse parses a whole compilation unit.
func Parse(src []byte) (*ast.Program, error) {
	toks, err := lexAll(src)
	if err != nil {
		return nil, err
	}
	p := &Parser{toks: toks, aliases: map[string]bool{}, structs: map[string]bool{}}
	return p.parseProgram()
}

func (p *Parser) cur() token  { return p.toks[p.pos] }
func (p *Parser) peek() token {
	if p.pos+1 < len(p.toks) {
		return p.toks[p.pos+1]
	}
	return p.toks[len(p.toks)-1]
}

func (p *Parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) at(kind tokenKind) bool { return p.cur().kind == kind }

func (p *Parser) atKeyword(kw string) bool {
	return p.cur().kind == tokKeyword && p.cur().text == kw
}

func (p *Parser) accept(kind tokenKind) bool {
	if p.at(kind) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) acceptKeyword(kw string) bool {
	if p.atKeyword(kw) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expect(kind tokenKind, what string) (token, error) {
	if !p.at(kind) {
		return token{}, p.errorf("expected %s, found %q", what, p.cur().text)
	}
	return p.advance(), nil
}

func (p *Parser) expectKeyword(kw string) error {
	if !p.acceptKeyword(kw) {
		return p.errorf("expected %q, found %q", kw, p.cur().text)
	}
	return nil
}

func (p *Parser) errorf(format string, args ...any) error {
	t := p.cur()
	return fmt.Errorf("parse error at byte %d: %s", t.start, fmt.Sprintf(format, args...))
}

func spanBetween(from, to token) ast.Base {
	return ast.Base{Pos: ast.Span{Start: from.start, End: to.end}}
}

func (p *Parser) parseProgram() (*ast.Program, error) {
	first := p.cur()
	prog := &ast.Program{}
	for !p.at(tokEOF) {
		stmt, err := p.parseTopDecl()
		if err != nil {
			return nil, err
		}
		prog.Statements = append(prog.Statements, stmt)
	}
	prog.Base = spanBetween(first, p.cur())
	return prog, nil
}

func (p *Parser) parseTopDecl() (ast.Stmt, error) {
	switch {
	case p.atKeyword(kwImport):
		return p.parseImport()
	case p.atKeyword(kwStruct):
		return p.parseStruct()
	case p.atKeyword(kwEnum):
		return p.parseEnum()
	case p.atKeyword(kwAsync), p.atKeyword(kwFunc):
		return p.parseFunc()
	default:
		return nil, p.errorf("expected a declaration, found %q", p.cur().text)
	}
}

func (p *Parser) parseImport() (ast.Stmt, error) {
	start := p.advance() // 导入
	path, err := p.expect(tokString, "module path")
	if err != nil {
		return nil, err
	}
	alias := ""
	if p.acceptKeyword(kwAs) {
		a, err := p.expect(tokIdent, "import alias")
		if err != nil {
			return nil, err
		}
		alias = a.text
	}
	p.accept(tokSemi)
	name := alias
	if name == "" {
		parts := strings.Split(path.text, "/")
		name = parts[len(parts)-1]
	}
	p.aliases[name] = true
	return &ast.ImportStmt{Base: spanBetween(start, path), Path: path.text, Alias: alias}, nil
}

func (p *Parser) parseStruct() (ast.Stmt, error) {
	start := p.advance() // 结构体
	name, err := p.expect(tokIdent, "struct name")
	if err != nil {
		return nil, err
	}
	p.structs[name.text] = true
	if _, err := p.expect(tokLBrace, "{"); err != nil {
		return nil, err
	}
	var fields []ast.Field
	for !p.at(tokRBrace) {
		fname, err := p.expect(tokIdent, "field name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokColon, ":"); err != nil {
			return nil, err
		}
		ftype, err := p.parseType()
		if err != nil {
			return nil, err
		}
		fields = append(fields, ast.Field{Name: fname.text, Type: ftype,
			Pos: ast.Span{Start: fname.start, End: fname.end}})
		if !p.accept(tokComma) {
			p.accept(tokSemi)
		}
	}
	end := p.advance() // }
	return &ast.StructDecl{Base: spanBetween(start, end), Name: name.text, Fields: fields}, nil
}

func (p *Parser) parseEnum() (ast.Stmt, error) {
	start := p.advance() // 枚举
	name, err := p.expect(tokIdent, "enum name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokLBrace, "{"); err != nil {
		return nil, err
	}
	var variants []ast.Variant
	for !p.at(tokRBrace) {
		vname, err := p.expect(tokIdent, "variant name")
		if err != nil {
			return nil, err
		}
		v := ast.Variant{Name: vname.text, Pos: ast.Span{Start: vname.start, End: vname.end}}
		if p.accept(tokAssign) {
			lit, err := p.expect(tokInt, "variant value")
			if err != nil {
				return nil, err
			}
			n, _ := strconv.ParseInt(lit.text, 10, 64)
			v.Value = &n
		}
		variants = append(variants, v)
		if !p.accept(tokComma) {
			p.accept(tokSemi)
		}
	}
	end := p.advance()
	return &ast.EnumDecl{Base: spanBetween(start, end), Name: name.text, Variants: variants}, nil
}

// parseFunc handles free functions, async functions, and methods with a
// parenthesized receiver: 函数 (自己: 类型) 名字(...).
func (p *Parser) parseFunc() (ast.Stmt, error) {
	start := p.cur()
	async := p.acceptKeyword(kwAsync)
	if err := p.expectKeyword(kwFunc); err != nil {
		return nil, err
	}

	var recvName, recvType string
	if p.at(tokLParen) && p.peek().kind == tokIdent {
		// Distinguish a receiver clause from a parameter list by the token
		// after the closing paren: a method has its name there.
		save := p.pos
		p.advance() // (
		rn, err1 := p.expect(tokIdent, "receiver name")
		colonOK := p.accept(tokColon)
		rt, err2 := p.expect(tokIdent, "receiver type")
		closeOK := p.accept(tokRParen)
		if err1 == nil && colonOK && err2 == nil && closeOK && p.at(tokIdent) {
			recvName, recvType = rn.text, rt.text
		} else {
			p.pos = save
		}
	}

	name, err := p.expect(tokIdent, "function name")
	if err != nil {
		return nil, err
	}
	params, err := p.parseParams()
	if err != nil {
		return nil, err
	}
	var ret *ast.TypeNode
	if p.accept(tokArrow) {
		ret, err = p.parseType()
		if err != nil {
			return nil, err
		}
	}
	body, err := p.parseBlockStmts()
	if err != nil {
		return nil, err
	}
	fd := &ast.FuncDecl{
		Base:   spanBetween(start, p.cur()),
		Name:   name.text,
		Params: params,
		Return: ret,
		Async:  async,
		Body:   body,
	}
	if recvType != "" {
		return &ast.MethodDecl{
			Base:         fd.Base,
			ReceiverName: recvName,
			ReceiverType: recvType,
			Func:         fd,
		}, nil
	}
	return fd, nil
}

func (p *Parser) parseParams() ([]ast.Param, error) {
	if _, err := p.expect(tokLParen, "("); err != nil {
		return nil, err
	}
	var params []ast.Param
	for !p.at(tokRParen) {
		name, err := p.expect(tokIdent, "parameter name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokColon, ":"); err != nil {
			return nil, err
		}
		ty, err := p.parseType()
		if err != nil {
			return nil, err
		}
		params = append(params, ast.Param{Name: name.text, Type: ty,
			Pos: ast.Span{Start: name.start, End: name.end}})
		if !p.accept(tokComma) {
			break
		}
	}
	if _, err := p.expect(tokRParen, ")"); err != nil {
		return nil, err
	}
	return params, nil
}

func (p *Parser) parseType() (*ast.TypeNode, error) {
	t, err := p.expect(tokIdent, "type name")
	if err != nil {
		return nil, err
	}
	switch t.text {
	case "整数":
		return ast.Basic(ast.KindInt), nil
	case "长整数":
		return ast.Basic(ast.KindLong), nil
	case "短整数":
		return ast.Basic(ast.KindShort), nil
	case "字节":
		return ast.Basic(ast.KindByte), nil
	case "浮点数":
		return ast.Basic(ast.KindFloat), nil
	case "布尔":
		return ast.Basic(ast.KindBool), nil
	case "字符":
		return ast.Basic(ast.KindChar), nil
	case "字符串":
		return ast.Basic(ast.KindString), nil
	case "空":
		return ast.Basic(ast.KindVoid), nil
	case "字典":
		return ast.Basic(ast.KindDict), nil
	case "列表":
		return ast.Basic(ast.KindList), nil
	case "集合":
		return ast.Basic(ast.KindSet), nil
	case "数组", "指针", "通道", "未来":
		if _, err := p.expect(tokLt, "<"); err != nil {
			return nil, err
		}
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		length := 0
		if t.text == "数组" && p.accept(tokComma) {
			n, err := p.expect(tokInt, "array length")
			if err != nil {
				return nil, err
			}
			length, _ = strconv.Atoi(n.text)
		}
		if _, err := p.expect(tokGt, ">"); err != nil {
			return nil, err
		}
		switch t.text {
		case "数组":
			return ast.ArrayOf(elem, length), nil
		case "指针":
			return ast.PointerTo(elem), nil
		case "通道":
			return ast.ChannelOf(elem), nil
		default:
			return ast.FutureOf(elem), nil
		}
	default:
		return ast.Named(t.text), nil
	}
}

func (p *Parser) parseBlockStmts() ([]ast.Stmt, error) {
	if _, err := p.expect(tokLBrace, "{"); err != nil {
		return nil, err
	}
	stmts := []ast.Stmt{}
	for !p.at(tokRBrace) && !p.at(tokEOF) {
		s, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	if _, err := p.expect(tokRBrace, "}"); err != nil {
		return nil, err
	}
	return stmts, nil
}

func (p *Parser) parseStmt() (ast.Stmt, error) {
	switch {
	case p.atKeyword(kwVar):
		return p.parseVarDecl()
	case p.atKeyword(kwIf):
		return p.parseIf()
	case p.atKeyword(kwWhile):
		return p.parseWhile()
	case p.atKeyword(kwLoop):
		start := p.advance()
		body, err := p.parseBlockStmts()
		if err != nil {
			return nil, err
		}
		return &ast.LoopStmt{Base: spanBetween(start, p.cur()), Body: body}, nil
	case p.atKeyword(kwFor):
		return p.parseForIn()
	case p.atKeyword(kwReturn):
		start := p.advance()
		if p.accept(tokSemi) || p.at(tokRBrace) {
			return &ast.ReturnStmt{Base: spanBetween(start, start)}, nil
		}
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		p.accept(tokSemi)
		return &ast.ReturnStmt{Base: spanBetween(start, p.cur()), Value: v}, nil
	case p.atKeyword(kwBreak):
		t := p.advance()
		p.accept(tokSemi)
		return &ast.BreakStmt{Base: spanBetween(t, t)}, nil
	case p.atKeyword(kwContinue):
		t := p.advance()
		p.accept(tokSemi)
		return &ast.ContinueStmt{Base: spanBetween(t, t)}, nil
	case p.atKeyword(kwSelect):
		return p.parseSelect()
	case p.at(tokLBrace):
		start := p.cur()
		body, err := p.parseBlockStmts()
		if err != nil {
			return nil, err
		}
		return &ast.Block{Base: spanBetween(start, p.cur()), Stmts: body}, nil
	default:
		start := p.cur()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		p.accept(tokSemi)
		return &ast.ExprStmt{Base: spanBetween(start, p.cur()), X: e}, nil
	}
}

func (p *Parser) parseVarDecl() (ast.Stmt, error) {
	start := p.advance() // 变量
	name, err := p.expect(tokIdent, "variable name")
	if err != nil {
		return nil, err
	}
	vd := &ast.VarDecl{Name: name.text, Mutable: true}
	if p.accept(tokColon) {
		vd.Type, err = p.parseType()
		if err != nil {
			return nil, err
		}
	}
	if p.accept(tokAssign) {
		vd.Init, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	p.accept(tokSemi)
	vd.Base = spanBetween(start, p.cur())
	return vd, nil
}

func (p *Parser) parseIf() (ast.Stmt, error) {
	start := p.advance() // 如果
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	then, err := p.parseBlockStmts()
	if err != nil {
		return nil, err
	}
	node := &ast.IfStmt{Cond: cond, Then: then}
	if p.acceptKeyword(kwElse) {
		if p.atKeyword(kwIf) {
			nested, err := p.parseIf()
			if err != nil {
				return nil, err
			}
			node.Else = []ast.Stmt{nested}
		} else {
			node.Else, err = p.parseBlockStmts()
			if err != nil {
				return nil, err
			}
		}
	}
	node.Base = spanBetween(start, p.cur())
	return node, nil
}

func (p *Parser) parseWhile() (ast.Stmt, error) {
	start := p.advance() // 当
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlockStmts()
	if err != nil {
		return nil, err
	}
	return &ast.WhileStmt{Base: spanBetween(start, p.cur()), Cond: cond, Body: body}, nil
}

func (p *Parser) parseForIn() (ast.Stmt, error) {
	start := p.advance() // 对于
	name, err := p.expect(tokIdent, "loop variable")
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword(kwIn); err != nil {
		return nil, err
	}
	iter, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlockStmts()
	if err != nil {
		return nil, err
	}
	return &ast.ForInStmt{
		Base: spanBetween(start, p.cur()),
		Var:  name.text, Iterable: iter, Body: body,
	}, nil
}

func (p *Parser) parseSelect() (ast.Stmt, error) {
	start := p.advance() // 选择
	if _, err := p.expect(tokLBrace, "{"); err != nil {
		return nil, err
	}
	sel := &ast.Select{}
	for !p.at(tokRBrace) {
		switch {
		case p.acceptKeyword(kwDefault):
			body, err := p.parseBlockStmts()
			if err != nil {
				return nil, err
			}
			sel.Default = body
		case p.atKeyword(kwCase):
			caseTok := p.advance()
			c := ast.SelectCase{Pos: ast.Span{Start: caseTok.start, End: caseTok.end}}
			switch {
			case p.accept(tokLArrow):
				// 情况 <- c { ... }
				ch, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				c.Recv = &ast.ChanRecv{Ch: ch}
			case p.at(tokIdent) && p.peek().kind == tokAssign:
				// 情况 v = <- c { ... }
				bind := p.advance()
				p.advance() // =
				if _, err := p.expect(tokLArrow, "<-"); err != nil {
					return nil, err
				}
				ch, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				c.Recv = &ast.ChanRecv{Ch: ch}
				c.Bind = bind.text
			default:
				// 情况 c <- v { ... }
				ch, err := p.parseUnary()
				if err != nil {
					return nil, err
				}
				if _, err := p.expect(tokLArrow, "<-"); err != nil {
					return nil, err
				}
				v, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				c.Send = &ast.ChanSend{Ch: ch, Value: v}
			}
			body, err := p.parseBlockStmts()
			if err != nil {
				return nil, err
			}
			c.Body = body
			sel.Cases = append(sel.Cases, c)
		default:
			return nil, p.errorf("expected %q or %q in select, found %q", kwCase, kwDefault, p.cur().text)
		}
	}
	end := p.advance()
	sel.Base = spanBetween(start, end)
	return &ast.ExprStmt{Base: sel.Base, X: sel}, nil
}
