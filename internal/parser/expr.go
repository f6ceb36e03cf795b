package parser

import (
	"strconv"

	"github.com/qi-lang/qi/internal/ast"
)

// Expression grammar, lowest precedence first:
//
//	assign   := send ( "=" assign )?
//	send     := or ( "<-" or )?
//	or       := and ( "||" and )*
//	and      := cmp ( "&&" cmp )*
//	cmp      := add ( rel add )?
//	add      := mul ( ("+"|"-") mul )*
//	mul      := unary ( ("*"|"/"|"%") unary )*
//	unary    := ("&"|"*"|"-"|"!"|"<-"|等待|启动) unary | postfix
//	postfix  := primary ( "." name args? | "[" expr "]" )*
//
// A plain call name(args) and a static call Type::method(args) are parsed
// once, directly after the identifier, in parseIdentExpr.
func (p *Parser) parseExpr() (ast.Expr, error) {
	return p.parseAssign()
}

func (p *Parser) parseAssign() (ast.Expr, error) {
	lhs, err := p.parseSend()
	if err != nil {
		return nil, err
	}
	if p.accept(tokAssign) {
		rhs, err := p.parseAssign()
		if err != nil {
			return nil, err
		}
		return &ast.Assign{
			Base:   ast.Base{Pos: ast.Span{Start: lhs.Span().Start, End: rhs.Span().End}},
			Target: lhs, Value: rhs,
		}, nil
	}
	return lhs, nil
}

func (p *Parser) parseSend() (ast.Expr, error) {
	lhs, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.accept(tokLArrow) {
		v, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		return &ast.ChanSend{
			Base: ast.Base{Pos: ast.Span{Start: lhs.Span().Start, End: v.Span().End}},
			Ch:   lhs, Value: v,
		}, nil
	}
	return lhs, nil
}

func (p *Parser) parseOr() (ast.Expr, error) {
	lhs, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.accept(tokOr) {
		rhs, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		lhs = binary(ast.OpOr, lhs, rhs)
	}
	return lhs, nil
}

func (p *Parser) parseAnd() (ast.Expr, error) {
	lhs, err := p.parseCmp()
	if err != nil {
		return nil, err
	}
	for p.accept(tokAnd) {
		rhs, err := p.parseCmp()
		if err != nil {
			return nil, err
		}
		lhs = binary(ast.OpAnd, lhs, rhs)
	}
	return lhs, nil
}

var relOps = map[tokenKind]ast.BinaryOp{
	tokEq: ast.OpEq, tokNe: ast.OpNe,
	tokLt: ast.OpLt, tokLe: ast.OpLe,
	tokGt: ast.OpGt, tokGe: ast.OpGe,
}

func (p *Parser) parseCmp() (ast.Expr, error) {
	lhs, err := p.parseAdd()
	if err != nil {
		return nil, err
	}
	if op, ok := relOps[p.cur().kind]; ok {
		p.advance()
		rhs, err := p.parseAdd()
		if err != nil {
			return nil, err
		}
		return binary(op, lhs, rhs), nil
	}
	return lhs, nil
}

func (p *Parser) parseAdd() (ast.Expr, error) {
	lhs, err := p.parseMul()
	if err != nil {
		return nil, err
	}
	for p.at(tokPlus) || p.at(tokMinus) {
		op := ast.OpAdd
		if p.advance().kind == tokMinus {
			op = ast.OpSub
		}
		rhs, err := p.parseMul()
		if err != nil {
			return nil, err
		}
		lhs = binary(op, lhs, rhs)
	}
	return lhs, nil
}

func (p *Parser) parseMul() (ast.Expr, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.at(tokStar) || p.at(tokSlash) || p.at(tokPct) {
		var op ast.BinaryOp
		switch p.advance().kind {
		case tokStar:
			op = ast.OpMul
		case tokSlash:
			op = ast.OpDiv
		default:
			op = ast.OpRem
		}
		rhs, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		lhs = binary(op, lhs, rhs)
	}
	return lhs, nil
}

func binary(op ast.BinaryOp, l, r ast.Expr) ast.Expr {
	return &ast.Binary{
		Base: ast.Base{Pos: ast.Span{Start: l.Span().Start, End: r.Span().End}},
		Op:   op, L: l, R: r,
	}
}

func (p *Parser) parseUnary() (ast.Expr, error) {
	switch {
	case p.atKeyword(kwAwait):
		start := p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.Await{Base: spanBetween(start, p.cur()), X: x}, nil

	case p.atKeyword(kwSpawn):
		start := p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		call, ok := x.(*ast.Call)
		if !ok {
			return nil, p.errorf("%s must be followed by a function call", kwSpawn)
		}
		return &ast.Spawn{Base: spanBetween(start, p.cur()), Call: call}, nil

	case p.at(tokLArrow):
		start := p.advance()
		ch, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.ChanRecv{Base: spanBetween(start, p.cur()), Ch: ch}, nil

	case p.at(tokAmp):
		start := p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.AddrOf{Base: spanBetween(start, p.cur()), X: x}, nil

	case p.at(tokStar):
		start := p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.Deref{Base: spanBetween(start, p.cur()), X: x}, nil

	case p.at(tokMinus):
		start := p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		// Negation lowers as 0 - x.
		zero := &ast.Literal{Base: spanBetween(start, start), Kind: ast.LitInt, Int: 0}
		return binary(ast.OpSub, zero, x), nil

	case p.at(tokBang):
		start := p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		// Logical not lowers as x == false.
		f := &ast.Literal{Base: spanBetween(start, start), Kind: ast.LitBool, Bool: false}
		return binary(ast.OpEq, x, f), nil
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() (ast.Expr, error) {
	e, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.at(tokDot):
			p.advance()
			name, err := p.expect(tokIdent, "member name")
			if err != nil {
				return nil, err
			}
			if p.at(tokLParen) {
				args, err := p.parseArgs()
				if err != nil {
					return nil, err
				}
				base := ast.Base{Pos: ast.Span{Start: e.Span().Start, End: name.end}}
				// A dotted call through an import alias is module-qualified;
				// anything else parses as a method call and the lowering
				// engine reinterprets unknown-receiver calls as qualified.
				if id, ok := e.(*ast.Ident); ok && p.aliases[id.Name] {
					e = &ast.Call{Base: base, Module: id.Name, Name: name.text, Args: args}
				} else {
					e = &ast.MethodCall{Base: base, Recv: e, Name: name.text, Args: args}
				}
			} else {
				e = &ast.FieldAccess{
					Base: ast.Base{Pos: ast.Span{Start: e.Span().Start, End: name.end}},
					X:    e, Field: name.text,
				}
			}
		case p.at(tokLBracket):
			p.advance()
			idx, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			end, err := p.expect(tokRBracket, "]")
			if err != nil {
				return nil, err
			}
			e = &ast.Index{
				Base: ast.Base{Pos: ast.Span{Start: e.Span().Start, End: end.end}},
				X:    e, Index: idx,
			}
		default:
			return e, nil
		}
	}
}

func (p *Parser) parseArgs() ([]ast.Expr, error) {
	if _, err := p.expect(tokLParen, "("); err != nil {
		return nil, err
	}
	var args []ast.Expr
	for !p.at(tokRParen) {
		a, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
		if !p.accept(tokComma) {
			break
		}
	}
	if _, err := p.expect(tokRParen, ")"); err != nil {
		return nil, err
	}
	return args, nil
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	t := p.cur()
	switch t.kind {
	case tokInt:
		p.advance()
		n, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			return nil, p.errorf("bad integer literal %q", t.text)
		}
		return &ast.Literal{Base: spanBetween(t, t), Kind: ast.LitInt, Int: n}, nil
	case tokFloat:
		p.advance()
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, p.errorf("bad float literal %q", t.text)
		}
		return &ast.Literal{Base: spanBetween(t, t), Kind: ast.LitFloat, Float: f}, nil
	case tokString:
		p.advance()
		return &ast.Literal{Base: spanBetween(t, t), Kind: ast.LitString, Str: t.text}, nil
	case tokChar:
		p.advance()
		return &ast.Literal{Base: spanBetween(t, t), Kind: ast.LitChar, Char: []rune(t.text)[0]}, nil
	case tokKeyword:
		switch t.text {
		case kwTrue:
			p.advance()
			return &ast.Literal{Base: spanBetween(t, t), Kind: ast.LitBool, Bool: true}, nil
		case kwFalse:
			p.advance()
			return &ast.Literal{Base: spanBetween(t, t), Kind: ast.LitBool, Bool: false}, nil
		}
		return nil, p.errorf("unexpected keyword %q in expression", t.text)
	case tokLParen:
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, ")"); err != nil {
			return nil, err
		}
		return e, nil
	case tokLBracket:
		return p.parseArrayLit()
	case tokIdent:
		return p.parseIdentExpr()
	}
	return nil, p.errorf("unexpected token %q in expression", t.text)
}

func (p *Parser) parseArrayLit() (ast.Expr, error) {
	start := p.advance() // [
	var elems []ast.Expr
	for !p.at(tokRBracket) {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
		if !p.accept(tokComma) {
			break
		}
	}
	end, err := p.expect(tokRBracket, "]")
	if err != nil {
		return nil, err
	}
	return &ast.ArrayLit{Base: spanBetween(start, end), Elems: elems}, nil
}

// parseIdentExpr handles the identifier-headed forms: channel creation,
// calls, static calls, struct literals, and plain references.
func (p *Parser) parseIdentExpr() (ast.Expr, error) {
	name := p.advance()

	// 创建通道<T>(cap) builds a channel directly.
	if name.text == kwMakeChan {
		var elem *ast.TypeNode
		if p.accept(tokLt) {
			var err error
			elem, err = p.parseType()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tokGt, ">"); err != nil {
				return nil, err
			}
		}
		args, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		cm := &ast.ChanMake{Base: spanBetween(name, p.cur()), Elem: elem}
		if len(args) > 0 {
			cm.Capacity = args[0]
		}
		return cm, nil
	}

	switch {
	case p.at(tokColons):
		p.advance()
		method, err := p.expect(tokIdent, "static method name")
		if err != nil {
			return nil, err
		}
		var args []ast.Expr
		if p.at(tokLParen) {
			args, err = p.parseArgs()
			if err != nil {
				return nil, err
			}
		}
		return &ast.StaticCall{
			Base:     spanBetween(name, p.cur()),
			TypeName: name.text, Method: method.text, Args: args,
		}, nil

	case p.at(tokLParen):
		args, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		return &ast.Call{Base: spanBetween(name, p.cur()), Name: name.text, Args: args}, nil

	case p.at(tokLBrace) && p.peek().kind == tokIdent && p.structs[name.text]:
		return p.parseStructLit(name)
	}

	return &ast.Ident{Base: spanBetween(name, name), Name: name.text}, nil
}

func (p *Parser) parseStructLit(name token) (ast.Expr, error) {
	p.advance() // {
	var fields []ast.FieldInit
	for !p.at(tokRBrace) {
		fname, err := p.expect(tokIdent, "field name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokColon, ":"); err != nil {
			return nil, err
		}
		v, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		fields = append(fields, ast.FieldInit{Name: fname.text, Value: v})
		if !p.accept(tokComma) {
			break
		}
	}
	end, err := p.expect(tokRBrace, "}")
	if err != nil {
		return nil, err
	}
	return &ast.StructLit{Base: spanBetween(name, end), Name: name.text, Fields: fields}, nil
}
