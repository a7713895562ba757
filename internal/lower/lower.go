// Package lower translates Sisp's AST into IR via an internal/ir.Builder.
// Each AST kind has exactly one emission rule; Lowerer dispatches on the
// node's dynamic type in a single switch because the AST's variant set
// is closed.
package lower

import (
	"fmt"

	"github.com/sisp-lang/sisp/internal/ast"
	"github.com/sisp-lang/sisp/internal/compilerrors"
	"github.com/sisp-lang/sisp/internal/ir"
	"github.com/sisp-lang/sisp/internal/token"
	"github.com/sisp-lang/sisp/internal/types"
)

// binding is what Lowerer stores in a scope.Scope frame. scope.Storage is
// opaque to the scope package itself, so Variable/assignment lowering
// needs both the slot handle and the declared type to know how to
// load/store/typecheck it.
type binding struct {
	slot ir.Value
	typ  types.Type
}

// Lowerer lowers parsed functions and externs into a single ir.Builder,
// threading the prototype registry the parser built and a table of
// function symbols already declared in the builder.
type Lowerer struct {
	b      ir.Builder
	protos map[string]*ast.Prototype
	funcs  map[string]ir.Func
	source string
	file   string
	errors []*compilerrors.CompilerError
}

// New creates a Lowerer targeting b. protos is the parser's live
// prototype registry; Lowerer reads it but never mutates it except to
// fill in the inferred return type of a top-level anonymous expression.
func New(b ir.Builder, protos map[string]*ast.Prototype, source, file string) *Lowerer {
	return &Lowerer{b: b, protos: protos, funcs: make(map[string]ir.Func), source: source, file: file}
}

// Errors returns diagnostics accumulated across every Lower* call made
// on this Lowerer so far.
func (l *Lowerer) Errors() []*compilerrors.CompilerError { return l.errors }

func (l *Lowerer) errorf(kind compilerrors.Kind, pos token.Position, format string, args ...any) {
	l.errors = append(l.errors, compilerrors.New(kind, pos, fmt.Sprintf(format, args...), l.source, l.file))
}

func argLists(args []ast.Arg) ([]string, []types.Type) {
	names := make([]string, len(args))
	typs := make([]types.Type, len(args))
	for i, a := range args {
		names[i] = a.Name
		typs[i] = a.Type
	}
	return names, typs
}

// LowerExtern declares proto's function symbol with no body.
func (l *Lowerer) LowerExtern(proto *ast.Prototype) {
	names, typs := argLists(proto.Args)
	fn := l.b.DeclareFunction(proto.OperatorName(), names, typs, proto.RetType)
	l.funcs[proto.OperatorName()] = fn
}

// LowerFunction lowers fn's prototype and body. On any lowering error
// the partially-built function symbol is erased and ok is false; other
// functions may still be lowered after a failure here.
func (l *Lowerer) LowerFunction(fn *ast.Function) (ir.Func, bool) {
	proto := fn.Proto

	retType := proto.RetType
	if retType == types.Invalid {
		t, err := newTypeInferer(l.protos).typeOf(fn.Body)
		if err != nil {
			l.errorf(compilerrors.TypeError, fn.Pos(), "%s", err)
			return nil, false
		}
		retType = t
		proto.RetType = t
	}

	names, typs := argLists(proto.Args)
	irFn := l.b.DeclareFunction(proto.OperatorName(), names, typs, retType)
	l.funcs[proto.OperatorName()] = irFn

	l.b.BeginFunctionBody(irFn)
	scopeID := l.b.PushLexicalScope(irFn)
	defer l.b.PopLexicalScope()

	for i, arg := range proto.Args {
		slot := l.b.AllocaInEntry(irFn, arg.Name, arg.Type)
		l.b.Store(slot, l.b.ParamValue(irFn, i))
		fn.Body.Scope.Insert(arg.Name, binding{slot: slot, typ: arg.Type})
	}

	val, _, ok := l.emitCompound(fn.Body, irFn, scopeID)
	if !ok {
		l.b.EraseFunction(irFn)
		delete(l.funcs, proto.OperatorName())
		return nil, false
	}
	l.b.Ret(val)

	if err := l.b.VerifyFunction(irFn); err != nil {
		l.errorf(compilerrors.TypeError, fn.Pos(), "function %q failed verification: %s", proto.Name, err)
		l.b.EraseFunction(irFn)
		delete(l.funcs, proto.OperatorName())
		return nil, false
	}
	l.b.OptimizeFunction(irFn)
	return irFn, true
}

func (l *Lowerer) setLoc(pos token.Position, scopeID int) {
	l.b.SetDebugLocation(pos.Line, pos.Col, scopeID)
}

// emitExpr dispatches on e's dynamic type, returning the lowered value
// together with its static Sisp type — every caller needs the type to
// decide how to combine the result with something else.
func (l *Lowerer) emitExpr(e ast.Expr, fn ir.Func, scopeID int) (ir.Value, types.Type, bool) {
	l.setLoc(e.Pos(), scopeID)
	switch n := e.(type) {
	case *ast.IntegerLiteral:
		return l.b.ConstInt(n.Value), types.Int64, true
	case *ast.FloatLiteral:
		return l.b.ConstFloat(n.Value), types.Float64, true
	case *ast.Variable:
		return l.emitVariable(n)
	case *ast.VarExpr:
		return l.emitVarExpr(n, fn, scopeID)
	case *ast.Binary:
		return l.emitBinary(n, fn, scopeID)
	case *ast.Unary:
		return l.emitUnary(n, fn, scopeID)
	case *ast.Call:
		return l.emitCall(n, fn, scopeID)
	case *ast.If:
		return l.emitIf(n, fn, scopeID)
	case *ast.For:
		return l.emitFor(n, fn, scopeID)
	case *ast.Compound:
		return l.emitCompound(n, fn, scopeID)
	default:
		l.errorf(compilerrors.TypeError, e.Pos(), "cannot lower node of type %T", e)
		return nil, types.Invalid, false
	}
}

func (l *Lowerer) emitVariable(n *ast.Variable) (ir.Value, types.Type, bool) {
	raw, ok := n.Scope.Lookup(n.Name)
	if !ok {
		l.errorf(compilerrors.UnknownName, n.Pos(), "unknown name %q", n.Name)
		return nil, types.Invalid, false
	}
	b := raw.(binding)
	return l.b.Load(b.typ, b.slot), b.typ, true
}

// emitVarExpr allocates a stack slot in the function's entry block
// regardless of where this node sits lexically, stores the initializer
// (or the type's zero value), and binds the name. The node's value is
// the slot itself so an enclosing '=' sees an lvalue.
func (l *Lowerer) emitVarExpr(n *ast.VarExpr, fn ir.Func, scopeID int) (ir.Value, types.Type, bool) {
	var initVal ir.Value
	if n.Init != nil {
		v, initType, ok := l.emitExpr(n.Init, fn, scopeID)
		if !ok {
			return nil, types.Invalid, false
		}
		if initType != n.Type {
			l.errorf(compilerrors.TypeError, n.Pos(), "cannot initialize %s variable %q with a %s value", n.Type, n.Name, initType)
			return nil, types.Invalid, false
		}
		initVal = v
	} else {
		initVal = l.b.Zero(n.Type)
	}
	slot := l.b.AllocaInEntry(fn, n.Name, n.Type)
	l.b.Store(slot, initVal)
	n.Scope.Insert(n.Name, binding{slot: slot, typ: n.Type})
	return slot, n.Type, true
}

func (l *Lowerer) emitBinary(n *ast.Binary, fn ir.Func, scopeID int) (ir.Value, types.Type, bool) {
	if n.Op == '=' {
		return l.emitAssign(n, fn, scopeID)
	}

	lhs, lt, ok := l.emitExpr(n.LHS, fn, scopeID)
	if !ok {
		return nil, types.Invalid, false
	}
	rhs, rt, ok := l.emitExpr(n.RHS, fn, scopeID)
	if !ok {
		return nil, types.Invalid, false
	}

	switch n.Op {
	case '+', '-', '*':
		if lt != rt || !types.IsNumeric(lt) {
			l.errorf(compilerrors.TypeError, n.Pos(), "operand types for '%c' must match and be numeric, got %s and %s", n.Op, lt, rt)
			return nil, types.Invalid, false
		}
		switch n.Op {
		case '+':
			return l.b.Add(lt, lhs, rhs), lt, true
		case '-':
			return l.b.Sub(lt, lhs, rhs), lt, true
		default:
			return l.b.Mul(lt, lhs, rhs), lt, true
		}
	case '<', '>':
		if lt != rt || !types.IsNumeric(lt) {
			l.errorf(compilerrors.TypeError, n.Pos(), "operand types for '%c' must match and be numeric, got %s and %s", n.Op, lt, rt)
			return nil, types.Invalid, false
		}
		if n.Op == '<' {
			return l.b.CmpLT(lt, lhs, rhs), types.Bool, true
		}
		return l.b.CmpGT(lt, lhs, rhs), types.Bool, true
	default:
		return l.emitOperatorCall("binary"+string(n.Op), []ir.Value{lhs, rhs}, n.Pos())
	}
}

func (l *Lowerer) emitAssign(n *ast.Binary, fn ir.Func, scopeID int) (ir.Value, types.Type, bool) {
	v, ok := n.LHS.(*ast.Variable)
	if !ok {
		l.errorf(compilerrors.TypeError, n.Pos(), "left-hand side of '=' must be a variable")
		return nil, types.Invalid, false
	}
	raw, ok := v.Scope.Lookup(v.Name)
	if !ok {
		l.errorf(compilerrors.UnknownName, v.Pos(), "unknown name %q", v.Name)
		return nil, types.Invalid, false
	}
	b := raw.(binding)

	rhs, rt, ok := l.emitExpr(n.RHS, fn, scopeID)
	if !ok {
		return nil, types.Invalid, false
	}
	if rt != b.typ {
		l.errorf(compilerrors.TypeError, n.Pos(), "cannot assign a %s value to %s variable %q", rt, b.typ, v.Name)
		return nil, types.Invalid, false
	}
	l.b.Store(b.slot, rhs)
	return rhs, rt, true
}

func (l *Lowerer) emitUnary(n *ast.Unary, fn ir.Func, scopeID int) (ir.Value, types.Type, bool) {
	operand, _, ok := l.emitExpr(n.Operand, fn, scopeID)
	if !ok {
		return nil, types.Invalid, false
	}
	return l.emitOperatorCall("unary"+string(n.Op), []ir.Value{operand}, n.Pos())
}

func (l *Lowerer) emitOperatorCall(name string, args []ir.Value, pos token.Position) (ir.Value, types.Type, bool) {
	proto, ok := l.protos[name]
	if !ok {
		l.errorf(compilerrors.OperatorNotFound, pos, "operator %s not found", name)
		return nil, types.Invalid, false
	}
	v, err := l.b.Call(name, args)
	if err != nil {
		l.errorf(compilerrors.OperatorNotFound, pos, "%s", err)
		return nil, types.Invalid, false
	}
	return v, proto.RetType, true
}

func (l *Lowerer) emitCall(n *ast.Call, fn ir.Func, scopeID int) (ir.Value, types.Type, bool) {
	proto, ok := l.protos[n.Callee]
	if !ok {
		l.errorf(compilerrors.UnknownName, n.Pos(), "unknown function %q", n.Callee)
		return nil, types.Invalid, false
	}
	if len(n.Args) != len(proto.Args) {
		l.errorf(compilerrors.ArityMismatch, n.Pos(), "%s expects %d argument(s), got %d", n.Callee, len(proto.Args), len(n.Args))
		return nil, types.Invalid, false
	}

	args := make([]ir.Value, len(n.Args))
	for i, a := range n.Args {
		v, _, ok := l.emitExpr(a, fn, scopeID)
		if !ok {
			return nil, types.Invalid, false
		}
		args[i] = v
	}

	v, err := l.b.Call(n.Callee, args)
	if err != nil {
		l.errorf(compilerrors.TypeError, n.Pos(), "%s", err)
		return nil, types.Invalid, false
	}
	return v, proto.RetType, true
}

// emitIf evaluates both arms unconditionally at the IR level (each arm
// only actually executes at runtime along its own branch) and merges
// with a φ-node whose incoming blocks are each arm's insertion block as
// it stood right after lowering that arm, not the block that began it —
// an arm may itself contain control flow that leaves the builder
// somewhere else.
func (l *Lowerer) emitIf(n *ast.If, fn ir.Func, scopeID int) (ir.Value, types.Type, bool) {
	cond, condType, ok := l.emitExpr(n.Cond, fn, scopeID)
	if !ok {
		return nil, types.Invalid, false
	}
	if condType != types.Bool {
		l.errorf(compilerrors.TypeError, n.Cond.Pos(), "if condition must be bool, got %s", condType)
		return nil, types.Invalid, false
	}
	condBool := l.b.NotZero(types.Bool, cond)

	thenBB := l.b.NewBlock(fn, "then")
	elseBB := l.b.NewBlock(fn, "else")
	mergeBB := l.b.NewBlock(fn, "ifmerge")
	l.b.CondBr(condBool, thenBB, elseBB)

	l.b.SetInsertPoint(thenBB)
	thenVal, thenType, ok := l.emitExpr(n.Then, fn, scopeID)
	if !ok {
		return nil, types.Invalid, false
	}
	thenEndBB := l.b.CurrentBlock()
	l.b.Br(mergeBB)

	l.b.SetInsertPoint(elseBB)
	elseVal, elseType, ok := l.emitExpr(n.Else, fn, scopeID)
	if !ok {
		return nil, types.Invalid, false
	}
	elseEndBB := l.b.CurrentBlock()
	l.b.Br(mergeBB)

	if thenType != elseType {
		l.errorf(compilerrors.TypeError, n.Pos(), "if branches must agree on type, got %s and %s", thenType, elseType)
		return nil, types.Invalid, false
	}

	l.b.SetInsertPoint(mergeBB)
	phi := l.b.Phi(thenType, []ir.Incoming{
		{Value: thenVal, Block: thenEndBB},
		{Value: elseVal, Block: elseEndBB},
	})
	return phi, thenType, true
}

func oneOf(b ir.Builder, t types.Type) ir.Value {
	if t == types.Float64 {
		return b.ConstFloat(1)
	}
	return b.ConstInt(1)
}

// emitFor lowers the induction variable first, enters the loop body,
// then computes the step, updates the induction variable, re-evaluates
// the end condition, and only then branches back to the loop header or
// falls through to what follows.
func (l *Lowerer) emitFor(n *ast.For, fn ir.Func, scopeID int) (ir.Value, types.Type, bool) {
	if _, _, ok := l.emitVarExpr(n.Var, fn, scopeID); !ok {
		return nil, types.Invalid, false
	}

	loopBB := l.b.NewBlock(fn, "loop")
	afterBB := l.b.NewBlock(fn, "afterloop")
	l.b.Br(loopBB)
	l.b.SetInsertPoint(loopBB)

	if _, _, ok := l.emitExpr(n.Body, fn, scopeID); !ok {
		return nil, types.Invalid, false
	}

	var stepVal ir.Value
	if n.Step != nil {
		v, stepType, ok := l.emitExpr(n.Step, fn, scopeID)
		if !ok {
			return nil, types.Invalid, false
		}
		if stepType != n.Var.Type {
			l.errorf(compilerrors.TypeError, n.Step.Pos(), "for step must be %s, got %s", n.Var.Type, stepType)
			return nil, types.Invalid, false
		}
		stepVal = v
	} else {
		stepVal = oneOf(l.b, n.Var.Type)
	}

	if !types.IsNumeric(n.Var.Type) {
		l.errorf(compilerrors.TypeError, n.Pos(), "for induction variable must be numeric, got %s", n.Var.Type)
		return nil, types.Invalid, false
	}
	raw, _ := n.Var.Scope.Lookup(n.Var.Name)
	b := raw.(binding)
	cur := l.b.Load(b.typ, b.slot)
	next := l.b.Add(n.Var.Type, cur, stepVal)
	l.b.Store(b.slot, next)

	end, endType, ok := l.emitExpr(n.End, fn, scopeID)
	if !ok {
		return nil, types.Invalid, false
	}
	if endType != types.Bool {
		l.errorf(compilerrors.TypeError, n.End.Pos(), "for end condition must be bool, got %s", endType)
		return nil, types.Invalid, false
	}
	l.b.CondBr(l.b.NotZero(types.Bool, end), loopBB, afterBB)

	l.b.SetInsertPoint(afterBB)
	return l.b.Zero(types.Void), types.Void, true
}

func (l *Lowerer) emitCompound(n *ast.Compound, fn ir.Func, scopeID int) (ir.Value, types.Type, bool) {
	if len(n.Exprs) == 0 {
		return l.b.Zero(types.Void), types.Void, true
	}
	var val ir.Value
	var typ types.Type
	for _, e := range n.Exprs {
		v, t, ok := l.emitExpr(e, fn, scopeID)
		if !ok {
			return nil, types.Invalid, false
		}
		val, typ = v, t
	}
	return val, typ, true
}
