package parser

import (
	"testing"

	"github.com/sisp-lang/sisp/internal/ast"
	"github.com/sisp-lang/sisp/internal/lexer"
	"github.com/sisp-lang/sisp/internal/scope"
)

func newParser(src string) *Parser {
	return New(lexer.New(src), src, "")
}

func TestParsePrecedenceCorrectness(t *testing.T) {
	p := newParser("1 + 2 * 3")
	e := p.ParseExpression(scope.New())
	if len(p.Errors()) != 0 {
		t.Fatalf("unexpected errors: %v", p.Errors())
	}
	bin, ok := e.(*ast.Binary)
	if !ok || bin.Op != '+' {
		t.Fatalf("expected top-level '+', got %#v", e)
	}
	rhs, ok := bin.RHS.(*ast.Binary)
	if !ok || rhs.Op != '*' {
		t.Fatalf("expected rhs '*', got %#v", bin.RHS)
	}
}

func TestParseAssignmentIsLowestPrecedence(t *testing.T) {
	p := newParser("x = 1 + 2")
	e := p.ParseExpression(scope.New())
	if len(p.Errors()) != 0 {
		t.Fatalf("unexpected errors: %v", p.Errors())
	}
	bin, ok := e.(*ast.Binary)
	if !ok || bin.Op != '=' {
		t.Fatalf("expected top-level '=', got %#v", e)
	}
	if _, ok := bin.RHS.(*ast.Binary); !ok {
		t.Fatalf("expected rhs to be the '+' expression, got %#v", bin.RHS)
	}
}

func TestParseCallAndGrouping(t *testing.T) {
	p := newParser("sq((1 + 2))")
	e := p.ParseExpression(scope.New())
	if len(p.Errors()) != 0 {
		t.Fatalf("unexpected errors: %v", p.Errors())
	}
	call, ok := e.(*ast.Call)
	if !ok || call.Callee != "sq" || len(call.Args) != 1 {
		t.Fatalf("expected call to sq/1, got %#v", e)
	}
}

func TestParseIf(t *testing.T) {
	p := newParser("if 1 < 2 then 42 else 0")
	e := p.ParseExpression(scope.New())
	if len(p.Errors()) != 0 {
		t.Fatalf("unexpected errors: %v", p.Errors())
	}
	ifExpr, ok := e.(*ast.If)
	if !ok {
		t.Fatalf("expected *ast.If, got %#v", e)
	}
	if _, ok := ifExpr.Cond.(*ast.Binary); !ok {
		t.Errorf("expected cond to be a comparison, got %#v", ifExpr.Cond)
	}
}

func TestParseForInductionWithoutVarKeyword(t *testing.T) {
	p := newParser("for i: int = 0, i < 5, 1 in i")
	e := p.ParseExpression(scope.New())
	if len(p.Errors()) != 0 {
		t.Fatalf("unexpected errors: %v", p.Errors())
	}
	forExpr, ok := e.(*ast.For)
	if !ok {
		t.Fatalf("expected *ast.For, got %#v", e)
	}
	if forExpr.Var.Name != "i" {
		t.Errorf("induction variable name = %q, want i", forExpr.Var.Name)
	}
	if forExpr.Step == nil {
		t.Errorf("expected explicit step to be parsed")
	}
}

func TestParseForDefaultStepAbsent(t *testing.T) {
	p := newParser("for i: int = 0, i < 5 in i")
	e := p.ParseExpression(scope.New())
	if len(p.Errors()) != 0 {
		t.Fatalf("unexpected errors: %v", p.Errors())
	}
	forExpr := e.(*ast.For)
	if forExpr.Step != nil {
		t.Errorf("expected nil Step when absent from source, got %#v", forExpr.Step)
	}
}

func TestParseCompoundScopeNesting(t *testing.T) {
	p := newParser("{ var n: int = 0 n }")
	outer := scope.New()
	e := p.ParseExpression(outer)
	if len(p.Errors()) != 0 {
		t.Fatalf("unexpected errors: %v", p.Errors())
	}
	c, ok := e.(*ast.Compound)
	if !ok {
		t.Fatalf("expected *ast.Compound, got %#v", e)
	}
	if c.Scope.Parent() != outer {
		t.Errorf("compound scope should be a direct child of the enclosing scope")
	}
}

func TestParseDefinitionRegistersPrototype(t *testing.T) {
	p := newParser("def sq(x: float) -> float { x * x }")
	fn := p.ParseDefinition()
	if len(p.Errors()) != 0 {
		t.Fatalf("unexpected errors: %v", p.Errors())
	}
	if fn.Proto.Name != "sq" || len(fn.Proto.Args) != 1 {
		t.Fatalf("unexpected prototype: %#v", fn.Proto)
	}
	if _, ok := p.Prototypes()["sq"]; !ok {
		t.Errorf("expected sq to be registered in the prototype table")
	}
	if fn.Body.Scope.Parent() == nil {
		t.Errorf("function body scope must have the function scope as parent")
	}
}

func TestParseBinaryOperatorDeclarationSetsPrecedence(t *testing.T) {
	p := newParser("def binary ^ 25 (a: int, b: int) -> int { a*a + b*b }")
	fn := p.ParseDefinition()
	if len(p.Errors()) != 0 {
		t.Fatalf("unexpected errors: %v", p.Errors())
	}
	if !fn.Proto.IsOperator || !fn.Proto.IsBinary || fn.Proto.Precedence != 25 {
		t.Fatalf("unexpected operator prototype: %#v", fn.Proto)
	}
	if _, ok := p.Prototypes()["binary^"]; !ok {
		t.Errorf("expected binary^ to be registered")
	}

	// '^' must now bind at precedence 25, between '+' (20) and '*' (40).
	p2 := newParser("1 + 2 ^ 3 * 4")
	p2.precedence['^'] = 25
	e := p2.ParseExpression(scope.New())
	top, ok := e.(*ast.Binary)
	if !ok || top.Op != '+' {
		t.Fatalf("expected '+' at the top, got %#v", e)
	}
}

func TestInvalidPrecedenceRejected(t *testing.T) {
	p := newParser("def binary ^ 200 (a: int, b: int) -> int { a }")
	p.ParseDefinition()
	if len(p.Errors()) == 0 {
		t.Fatalf("expected an InvalidPrecedence error")
	}
}

func TestParseTopLevelWrapsAnonExpr(t *testing.T) {
	p := newParser("1 + 2 * 3")
	fn := p.ParseTopLevel()
	if len(p.Errors()) != 0 {
		t.Fatalf("unexpected errors: %v", p.Errors())
	}
	if fn.Proto.Name != AnonExprName {
		t.Fatalf("expected prototype name %q, got %q", AnonExprName, fn.Proto.Name)
	}
	if len(fn.Body.Exprs) != 1 {
		t.Fatalf("expected exactly one wrapped expression")
	}
}

func TestParseSyntaxErrorRecoveryContinues(t *testing.T) {
	// A syntax error inside one top-level form must not corrupt parsing
	// of the next one once the driver advances past it.
	p := newParser("def f(x: int -> int { x } def g(x: int) -> int { x }")
	p.ParseDefinition() // malformed: missing ')'
	if len(p.Errors()) == 0 {
		t.Fatalf("expected a syntax error on the malformed prototype")
	}
	for !(p.Cur().Kind.String() == "def") {
		if p.Cur().Kind.String() == "EOF" {
			t.Fatalf("did not find second 'def' while recovering")
		}
		p.Advance()
	}
	fn := p.ParseDefinition()
	if fn == nil || fn.Proto.Name != "g" {
		t.Fatalf("expected recovery to reach def g, got %#v", fn)
	}
}
