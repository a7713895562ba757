// Package ast defines Sisp's closed abstract syntax tree. Every node
// carries the source location of its first token, and, where the grammar
// requires name resolution, a non-owning pointer to its enclosing
// lexical scope installed at parse time.
package ast

import (
	"github.com/sisp-lang/sisp/internal/scope"
	"github.com/sisp-lang/sisp/internal/token"
	"github.com/sisp-lang/sisp/internal/types"
)

// Node is implemented by every AST kind.
type Node interface {
	Pos() token.Position
}

// Expr is implemented by every node that can appear where a value is
// expected. The closed set below is Sisp's entire expression grammar;
// type-switching over it is how internal/lower dispatches lowering.
type Expr interface {
	Node
	exprNode()
}

type base struct {
	Loc token.Position
}

func (b base) Pos() token.Position { return b.Loc }

// IntegerLiteral is a decimal integer constant.
type IntegerLiteral struct {
	base
	Value int64
}

func (*IntegerLiteral) exprNode() {}

// FloatLiteral is a decimal floating-point constant.
type FloatLiteral struct {
	base
	Value float64
}

func (*FloatLiteral) exprNode() {}

// Variable is a reference to a previously bound name. Scope is the
// lexically enclosing scope captured at parse time; resolution against it
// happens at lowering time.
type Variable struct {
	base
	Name  string
	Scope *scope.Scope
}

func (*Variable) exprNode() {}

// VarExpr is a `var name: type (= init)?` declaration expression. Its
// value, once lowered, is the allocated slot itself, so assignments to it
// see an lvalue.
type VarExpr struct {
	base
	Name  string
	Type  types.Type
	Init  Expr // nil if absent; lowering uses the type's zero value
	Scope *scope.Scope
}

func (*VarExpr) exprNode() {}

// Binary is a binary operator application. If Op == '=', LHS must be a
// *Variable; this is checked at lowering time, not parse time.
type Binary struct {
	base
	LHS, RHS Expr
	Op       byte
}

func (*Binary) exprNode() {}

// Unary is a prefix unary operator application, dispatched at lowering
// time to a user-declared `unary<op>` prototype.
type Unary struct {
	base
	Operand Expr
	Op      byte
}

func (*Unary) exprNode() {}

// Call is a function (or user-declared operator, internally) invocation.
type Call struct {
	base
	Callee string
	Args   []Expr
}

func (*Call) exprNode() {}

// If is a three-armed conditional; both arms are lowered and merged into
// a single value via a φ-node, and only the arm the condition selects
// runs.
type If struct {
	base
	Cond, Then, Else Expr
}

func (*If) exprNode() {}

// For is a counted loop. Var's Init must be present; Step defaults to 1
// of the induction variable's type if absent.
type For struct {
	base
	Var  *VarExpr
	End  Expr
	Step Expr // nil if absent
	Body Expr
}

func (*For) exprNode() {}

// Compound is a `{ ... }` block. Its value is its last sub-expression's
// value, or Void if empty. Scope is the child scope installed for this
// block at parse time.
type Compound struct {
	base
	Exprs []Expr
	Scope *scope.Scope
}

func (*Compound) exprNode() {}

// Arg is one (name, type) parameter of a Prototype.
type Arg struct {
	Name string
	Type types.Type
}

// Prototype is a function or operator signature. For an operator
// prototype, len(Args) must be 1 (unary) or 2 (binary); Precedence is
// only meaningful when IsOperator && len(Args) == 2.
type Prototype struct {
	base
	Name       string
	Args       []Arg
	RetType    types.Type
	Precedence int
	IsOperator bool
	IsBinary   bool
}

// OperatorName returns the prototype-registry key used for a user
// operator: "unary<ch>" or "binary<ch>".
func (p *Prototype) OperatorName() string {
	if !p.IsOperator {
		return p.Name
	}
	if p.IsBinary {
		return "binary" + p.Name
	}
	return "unary" + p.Name
}

// Function pairs a Prototype with its lowered body. body.Scope's parent
// must be the function's own scope.
type Function struct {
	base
	Proto *Prototype
	Body  *Compound
}
