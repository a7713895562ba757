// Package parser implements Sisp's recursive-descent parser: prototype
// and expression grammar, precedence-climbing for binary operators, and
// scope installation at parse time.
package parser

import (
	"fmt"

	"github.com/sisp-lang/sisp/internal/ast"
	"github.com/sisp-lang/sisp/internal/compilerrors"
	"github.com/sisp-lang/sisp/internal/lexer"
	"github.com/sisp-lang/sisp/internal/scope"
	"github.com/sisp-lang/sisp/internal/token"
	"github.com/sisp-lang/sisp/internal/types"
)

// AnonExprName is the prototype name the driver looks up to invoke a
// top-level expression.
const AnonExprName = "__anon_expr"

const defaultOperatorPrecedence = 30

// Parser drives a Lexer one token at a time, building AST nodes and
// maintaining its own prototype registry and operator precedence table
// across an entire compilation run.
type Parser struct {
	lex    *lexer.Lexer
	cur    token.Token
	source string
	file   string

	errors     []*compilerrors.CompilerError
	precedence map[byte]int
	prototypes map[string]*ast.Prototype
}

// New creates a Parser reading from lex. source and file are carried
// through to diagnostics for source-snippet rendering; file may be empty.
func New(lex *lexer.Lexer, source, file string) *Parser {
	p := &Parser{
		lex:    lex,
		source: source,
		file:   file,
		precedence: map[byte]int{
			'=': 2,
			'<': 10,
			'>': 10,
			'+': 20,
			'-': 20,
			'*': 40,
		},
		prototypes: make(map[string]*ast.Prototype),
	}
	p.cur = lex.Peek()
	return p
}

// Errors returns diagnostics accumulated across every parse call made on
// this Parser so far.
func (p *Parser) Errors() []*compilerrors.CompilerError { return p.errors }

// Prototypes returns the prototype registry accumulated so far, keyed by
// name (or by "unary<ch>"/"binary<ch>" for operators).
func (p *Parser) Prototypes() map[string]*ast.Prototype { return p.prototypes }

// Cur returns the token the parser is currently positioned at, without
// consuming it. Used by the driver to decide which top-level production
// to invoke.
func (p *Parser) Cur() token.Token { return p.cur }

// Advance discards the current token and loads the next one. Used by the
// driver's error-recovery path and for skipping ';' separators.
func (p *Parser) Advance() { p.next() }

func (p *Parser) next() {
	p.cur = p.lex.Advance()
}

func (p *Parser) errorf(kind compilerrors.Kind, pos token.Position, format string, args ...any) {
	p.errors = append(p.errors, compilerrors.New(kind, pos, fmt.Sprintf(format, args...), p.source, p.file))
}

func (p *Parser) expect(kind token.Kind) bool {
	if p.cur.Kind != kind {
		p.errorf(compilerrors.SyntaxError, p.cur.Pos, "expected %s, got %s", kind, p.cur)
		return false
	}
	p.next()
	return true
}

func (p *Parser) curIsChar(ch byte) bool {
	return p.cur.Kind == token.CHAR && p.cur.Ch == ch
}

func (p *Parser) expectChar(ch byte) bool {
	if !p.curIsChar(ch) {
		p.errorf(compilerrors.SyntaxError, p.cur.Pos, "expected %q, got %s", string(ch), p.cur)
		return false
	}
	p.next()
	return true
}

func (p *Parser) expectIdent() (token.Token, bool) {
	if p.cur.Kind != token.IDENT {
		p.errorf(compilerrors.SyntaxError, p.cur.Pos, "expected identifier, got %s", p.cur)
		return token.Token{}, false
	}
	tok := p.cur
	p.next()
	return tok, true
}

func (p *Parser) parseType() (types.Type, bool) {
	switch p.cur.Kind {
	case token.TYPE_INT, token.TYPE_FLOAT, token.TYPE_BOOL, token.TYPE_VOID:
		t, _ := types.FromName(p.cur.Lexeme)
		p.next()
		return t, true
	default:
		p.errorf(compilerrors.SyntaxError, p.cur.Pos, "expected a type name, got %s", p.cur)
		return types.Invalid, false
	}
}

// ParseDefinition parses a `def` prototype and compound body, registers
// the prototype, and returns the resulting Function.
func (p *Parser) ParseDefinition() *ast.Function {
	defTok := p.cur
	p.next() // 'def'

	proto := p.parsePrototype()
	if proto == nil {
		return nil
	}
	p.prototypes[proto.OperatorName()] = proto

	if !p.curIsChar('{') {
		p.errorf(compilerrors.SyntaxError, p.cur.Pos, "expected '{' to begin function body, got %s", p.cur)
		return nil
	}
	fnScope := scope.New()
	body := p.parseCompound(fnScope)
	if body == nil {
		return nil
	}
	fn := &ast.Function{Proto: proto, Body: body}
	fn.Loc = defTok.Pos
	return fn
}

// ParseExtern parses an `extern` prototype and registers it without a
// body.
func (p *Parser) ParseExtern() *ast.Prototype {
	p.next() // 'extern'
	proto := p.parsePrototype()
	if proto == nil {
		return nil
	}
	p.prototypes[proto.OperatorName()] = proto
	return proto
}

// ParseTopLevel parses a single expression and wraps it as a nullary
// function named AnonExprName, the form the driver JITs and invokes
// immediately. The wrapper's declared return type is left Invalid;
// lowering assigns it the type of the expression actually produced.
func (p *Parser) ParseTopLevel() *ast.Function {
	startPos := p.cur.Pos
	fnScope := scope.New()
	bodyScope := scope.NewChild(fnScope)

	e := p.parseExpr(bodyScope)
	if e == nil {
		return nil
	}

	proto := &ast.Prototype{Name: AnonExprName, RetType: types.Invalid}
	proto.Loc = startPos
	p.prototypes[proto.Name] = proto

	body := &ast.Compound{Exprs: []ast.Expr{e}, Scope: bodyScope}
	body.Loc = startPos
	fn := &ast.Function{Proto: proto, Body: body}
	fn.Loc = startPos
	return fn
}

// ParseExpression parses one expression against the given scope. Exposed
// for tests and for any caller that already has a scope to parse into.
func (p *Parser) ParseExpression(sc *scope.Scope) ast.Expr {
	return p.parseExpr(sc)
}

func (p *Parser) parsePrototype() *ast.Prototype {
	switch p.cur.Kind {
	case token.UNARY:
		return p.parseOperatorPrototype(false)
	case token.BINARY:
		return p.parseOperatorPrototype(true)
	case token.IDENT:
		return p.parseNamedPrototype()
	default:
		p.errorf(compilerrors.SyntaxError, p.cur.Pos, "expected a function name, 'unary', or 'binary', got %s", p.cur)
		return nil
	}
}

func (p *Parser) parseNamedPrototype() *ast.Prototype {
	nameTok := p.cur
	p.next()
	if !p.expectChar('(') {
		return nil
	}
	args, ok := p.parseArgList()
	if !ok {
		return nil
	}
	if !p.expectChar(')') {
		return nil
	}
	if !p.expect(token.ARROW) {
		return nil
	}
	ret, ok := p.parseType()
	if !ok {
		return nil
	}
	proto := &ast.Prototype{Name: nameTok.Lexeme, Args: args, RetType: ret}
	proto.Loc = nameTok.Pos
	return proto
}

func (p *Parser) parseOperatorPrototype(isBinary bool) *ast.Prototype {
	kwPos := p.cur.Pos
	p.next() // 'unary' / 'binary'

	if p.cur.Kind != token.CHAR {
		p.errorf(compilerrors.SyntaxError, p.cur.Pos, "expected an operator character, got %s", p.cur)
		return nil
	}
	opCh := p.cur.Ch
	p.next()

	precedence := defaultOperatorPrecedence
	if isBinary && p.cur.Kind == token.NUMBER {
		if p.cur.HasDot {
			p.errorf(compilerrors.InvalidPrecedence, p.cur.Pos, "operator precedence must be an integer, got %s", p.cur.Lexeme)
			return nil
		}
		n := int(p.cur.Number)
		if n < 1 || n > 100 {
			p.errorf(compilerrors.InvalidPrecedence, p.cur.Pos, "operator precedence %d out of range 1..=100", n)
			return nil
		}
		precedence = n
		p.next()
	}

	if !p.expectChar('(') {
		return nil
	}
	args, ok := p.parseArgList()
	if !ok {
		return nil
	}
	if !p.expectChar(')') {
		return nil
	}

	wantArgs := 1
	if isBinary {
		wantArgs = 2
	}
	if len(args) != wantArgs {
		p.errorf(compilerrors.SyntaxError, kwPos, "operator prototype expects %d argument(s), got %d", wantArgs, len(args))
		return nil
	}

	if !p.expect(token.ARROW) {
		return nil
	}
	ret, ok := p.parseType()
	if !ok {
		return nil
	}

	proto := &ast.Prototype{
		Name:       string(opCh),
		Args:       args,
		RetType:    ret,
		IsOperator: true,
		IsBinary:   isBinary,
		Precedence: precedence,
	}
	proto.Loc = kwPos
	if isBinary {
		p.precedence[opCh] = precedence
	}
	return proto
}

func (p *Parser) parseArgList() ([]ast.Arg, bool) {
	var args []ast.Arg
	if p.curIsChar(')') {
		return args, true
	}
	for {
		nameTok, ok := p.expectIdent()
		if !ok {
			return nil, false
		}
		if !p.expectChar(':') {
			return nil, false
		}
		typ, ok := p.parseType()
		if !ok {
			return nil, false
		}
		args = append(args, ast.Arg{Name: nameTok.Lexeme, Type: typ})
		if p.curIsChar(',') {
			p.next()
			continue
		}
		break
	}
	return args, true
}

// parseExpr parses a full expression: a unary operand, possibly followed
// by a chain of binary operators folded by precedence climbing.
func (p *Parser) parseExpr(sc *scope.Scope) ast.Expr {
	lhs := p.parseUnary(sc)
	if lhs == nil {
		return nil
	}
	return p.parseBinOpRHS(sc, 0, lhs)
}

func (p *Parser) curPrecedence() (int, bool) {
	if p.cur.Kind != token.CHAR {
		return 0, false
	}
	prec, ok := p.precedence[p.cur.Ch]
	return prec, ok
}

func (p *Parser) parseBinOpRHS(sc *scope.Scope, minPrec int, lhs ast.Expr) ast.Expr {
	for {
		prec, ok := p.curPrecedence()
		if !ok || prec < minPrec {
			return lhs
		}
		opTok := p.cur
		p.next()

		rhs := p.parseUnary(sc)
		if rhs == nil {
			return nil
		}

		nextPrec, ok := p.curPrecedence()
		if ok && nextPrec > prec {
			rhs = p.parseBinOpRHS(sc, prec+1, rhs)
			if rhs == nil {
				return nil
			}
		}

		bin := &ast.Binary{LHS: lhs, RHS: rhs, Op: opTok.Ch}
		bin.Loc = opTok.Pos
		lhs = bin
	}
}

// isOperatorChar reports whether ch may open a prefix unary expression.
// Structural punctuation is excluded so grouping, calls, and argument
// lists are never mistaken for a unary operator application.
func isOperatorChar(ch byte) bool {
	switch ch {
	case '(', ')', '{', '}', ',', ':', ';':
		return false
	default:
		return true
	}
}

func (p *Parser) parseUnary(sc *scope.Scope) ast.Expr {
	if p.cur.Kind == token.CHAR && isOperatorChar(p.cur.Ch) {
		opTok := p.cur
		p.next()
		operand := p.parseUnary(sc)
		if operand == nil {
			return nil
		}
		u := &ast.Unary{Operand: operand, Op: opTok.Ch}
		u.Loc = opTok.Pos
		return u
	}
	return p.parsePrimary(sc)
}

func (p *Parser) parsePrimary(sc *scope.Scope) ast.Expr {
	switch {
	case p.cur.Kind == token.NUMBER:
		return p.parseNumber()
	case p.cur.Kind == token.IDENT:
		return p.parseIdentOrCall(sc)
	case p.curIsChar('('):
		p.next()
		e := p.parseExpr(sc)
		if e == nil {
			return nil
		}
		if !p.expectChar(')') {
			return nil
		}
		return e
	case p.curIsChar('{'):
		c := p.parseCompound(sc)
		if c == nil {
			return nil
		}
		return c
	case p.cur.Kind == token.IF:
		return p.parseIf(sc)
	case p.cur.Kind == token.FOR:
		return p.parseFor(sc)
	case p.cur.Kind == token.VAR:
		return p.parseVarExpr(sc)
	default:
		p.errorf(compilerrors.SyntaxError, p.cur.Pos, "unexpected token %s", p.cur)
		return nil
	}
}

func (p *Parser) parseNumber() ast.Expr {
	tok := p.cur
	p.next()
	if tok.HasDot {
		f := &ast.FloatLiteral{Value: tok.Number}
		f.Loc = tok.Pos
		return f
	}
	i := &ast.IntegerLiteral{Value: int64(tok.Number)}
	i.Loc = tok.Pos
	return i
}

func (p *Parser) parseIdentOrCall(sc *scope.Scope) ast.Expr {
	nameTok := p.cur
	p.next()
	if p.curIsChar('(') {
		return p.parseCallArgs(sc, nameTok)
	}
	v := &ast.Variable{Name: nameTok.Lexeme, Scope: sc}
	v.Loc = nameTok.Pos
	return v
}

func (p *Parser) parseCallArgs(sc *scope.Scope, nameTok token.Token) ast.Expr {
	p.next() // '('
	var args []ast.Expr
	if !p.curIsChar(')') {
		for {
			arg := p.parseExpr(sc)
			if arg == nil {
				return nil
			}
			args = append(args, arg)
			if p.curIsChar(',') {
				p.next()
				continue
			}
			break
		}
	}
	if !p.expectChar(')') {
		return nil
	}
	call := &ast.Call{Callee: nameTok.Lexeme, Args: args}
	call.Loc = nameTok.Pos
	return call
}

// parseCompound parses `{ expr* }`, installing a fresh child scope that
// outlives this call via the returned node.
func (p *Parser) parseCompound(parent *scope.Scope) *ast.Compound {
	bracePos := p.cur.Pos
	p.next() // '{'

	childScope := scope.NewChild(parent)
	var exprs []ast.Expr
	for !p.curIsChar('}') {
		if p.cur.Kind == token.EOF {
			p.errorf(compilerrors.SyntaxError, p.cur.Pos, "unexpected EOF, expected '}'")
			return nil
		}
		e := p.parseExpr(childScope)
		if e == nil {
			return nil
		}
		exprs = append(exprs, e)
	}
	p.next() // '}'

	c := &ast.Compound{Exprs: exprs, Scope: childScope}
	c.Loc = bracePos
	return c
}

func (p *Parser) parseIf(sc *scope.Scope) ast.Expr {
	ifPos := p.cur.Pos
	p.next() // 'if'

	cond := p.parseExpr(sc)
	if cond == nil {
		return nil
	}
	if !p.expect(token.THEN) {
		return nil
	}
	thenExpr := p.parseExpr(sc)
	if thenExpr == nil {
		return nil
	}
	if !p.expect(token.ELSE) {
		return nil
	}
	elseExpr := p.parseExpr(sc)
	if elseExpr == nil {
		return nil
	}

	n := &ast.If{Cond: cond, Then: thenExpr, Else: elseExpr}
	n.Loc = ifPos
	return n
}

// parseForInduction parses the induction-variable clause of a `for`
// expression: `ident ':' type '=' expr`. Unlike a standalone `var`
// declaration this clause carries no leading `var` keyword — the `for`
// keyword already establishes the declaration context.
func (p *Parser) parseForInduction(sc *scope.Scope) *ast.VarExpr {
	nameTok, ok := p.expectIdent()
	if !ok {
		return nil
	}
	if !p.expectChar(':') {
		return nil
	}
	typ, ok := p.parseType()
	if !ok {
		return nil
	}
	if !p.expectChar('=') {
		return nil
	}
	init := p.parseExpr(sc)
	if init == nil {
		return nil
	}

	v := &ast.VarExpr{Name: nameTok.Lexeme, Type: typ, Init: init, Scope: sc}
	v.Loc = nameTok.Pos
	return v
}

func (p *Parser) parseFor(sc *scope.Scope) ast.Expr {
	forPos := p.cur.Pos
	p.next() // 'for'

	loopScope := scope.NewChild(sc)
	induction := p.parseForInduction(loopScope)
	if induction == nil {
		return nil
	}
	if !p.expectChar(',') {
		return nil
	}
	end := p.parseExpr(loopScope)
	if end == nil {
		return nil
	}

	var step ast.Expr
	if p.curIsChar(',') {
		p.next()
		step = p.parseExpr(loopScope)
		if step == nil {
			return nil
		}
	}

	if !p.expect(token.IN) {
		return nil
	}
	body := p.parseExpr(loopScope)
	if body == nil {
		return nil
	}

	n := &ast.For{Var: induction, End: end, Step: step, Body: body}
	n.Loc = forPos
	return n
}

func (p *Parser) parseVarExpr(sc *scope.Scope) ast.Expr {
	varPos := p.cur.Pos
	p.next() // 'var'

	nameTok, ok := p.expectIdent()
	if !ok {
		return nil
	}
	if !p.expectChar(':') {
		return nil
	}
	typ, ok := p.parseType()
	if !ok {
		return nil
	}

	var init ast.Expr
	if p.curIsChar('=') {
		p.next()
		init = p.parseExpr(sc)
		if init == nil {
			return nil
		}
	}

	v := &ast.VarExpr{Name: nameTok.Lexeme, Type: typ, Init: init, Scope: sc}
	v.Loc = varPos
	return v
}
