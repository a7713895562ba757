package lower

import (
	"fmt"

	"github.com/sisp-lang/sisp/internal/ast"
	"github.com/sisp-lang/sisp/internal/scope"
	"github.com/sisp-lang/sisp/internal/types"
)

// typeEnv mirrors the parser's lexical scope tree purely for static
// types. It exists because internal/ir.Builder needs an anonymous
// top-level expression's return type before DeclareFunction can be
// called — before any code, and therefore before any scope bindings,
// exist. typeInferer walks the body once, ahead of lowering, to answer
// that one question.
type typeEnv struct {
	parent *typeEnv
	vars   map[string]types.Type
}

func newTypeEnv(parent *typeEnv) *typeEnv {
	return &typeEnv{parent: parent, vars: make(map[string]types.Type)}
}

func (e *typeEnv) define(name string, t types.Type) { e.vars[name] = t }

func (e *typeEnv) lookup(name string) (types.Type, bool) {
	for cur := e; cur != nil; cur = cur.parent {
		if t, ok := cur.vars[name]; ok {
			return t, true
		}
	}
	return types.Invalid, false
}

type typeInferer struct {
	protos map[string]*ast.Prototype
	envs   map[*scope.Scope]*typeEnv
}

func newTypeInferer(protos map[string]*ast.Prototype) *typeInferer {
	return &typeInferer{protos: protos, envs: make(map[*scope.Scope]*typeEnv)}
}

func (ti *typeInferer) envFor(sc *scope.Scope) *typeEnv {
	if sc == nil {
		return nil
	}
	if env, ok := ti.envs[sc]; ok {
		return env
	}
	env := newTypeEnv(ti.envFor(sc.Parent()))
	ti.envs[sc] = env
	return env
}

// typeOf infers e's static type without touching an ir.Builder. It
// computes each kind's result type the way internal/lower's emit pass
// does, so for a program that lowering accepts it yields the same type.
// It does not enforce lowering's checks (matching operand types, bool
// conditions, agreeing if-arms, call arity); lowering reports those.
func (ti *typeInferer) typeOf(e ast.Expr) (types.Type, error) {
	switch n := e.(type) {
	case *ast.IntegerLiteral:
		return types.Int64, nil
	case *ast.FloatLiteral:
		return types.Float64, nil
	case *ast.Variable:
		if t, ok := ti.envFor(n.Scope).lookup(n.Name); ok {
			return t, nil
		}
		return types.Invalid, fmt.Errorf("unknown name %q", n.Name)
	case *ast.VarExpr:
		if n.Init != nil {
			if _, err := ti.typeOf(n.Init); err != nil {
				return types.Invalid, err
			}
		}
		ti.envFor(n.Scope).define(n.Name, n.Type)
		return n.Type, nil
	case *ast.Binary:
		if n.Op == '=' {
			return ti.typeOf(n.RHS)
		}
		lt, err := ti.typeOf(n.LHS)
		if err != nil {
			return types.Invalid, err
		}
		if _, err := ti.typeOf(n.RHS); err != nil {
			return types.Invalid, err
		}
		switch n.Op {
		case '+', '-', '*':
			return lt, nil
		case '<', '>':
			return types.Bool, nil
		default:
			if proto, ok := ti.protos["binary"+string(n.Op)]; ok {
				return proto.RetType, nil
			}
			return types.Invalid, fmt.Errorf("operator binary%c not found", n.Op)
		}
	case *ast.Unary:
		if _, err := ti.typeOf(n.Operand); err != nil {
			return types.Invalid, err
		}
		if proto, ok := ti.protos["unary"+string(n.Op)]; ok {
			return proto.RetType, nil
		}
		return types.Invalid, fmt.Errorf("operator unary%c not found", n.Op)
	case *ast.Call:
		proto, ok := ti.protos[n.Callee]
		if !ok {
			return types.Invalid, fmt.Errorf("unknown name %q", n.Callee)
		}
		return proto.RetType, nil
	case *ast.If:
		if _, err := ti.typeOf(n.Cond); err != nil {
			return types.Invalid, err
		}
		thenType, err := ti.typeOf(n.Then)
		if err != nil {
			return types.Invalid, err
		}
		if _, err := ti.typeOf(n.Else); err != nil {
			return types.Invalid, err
		}
		return thenType, nil
	case *ast.For:
		if _, err := ti.typeOf(n.Var); err != nil {
			return types.Invalid, err
		}
		if _, err := ti.typeOf(n.End); err != nil {
			return types.Invalid, err
		}
		if n.Step != nil {
			if _, err := ti.typeOf(n.Step); err != nil {
				return types.Invalid, err
			}
		}
		if _, err := ti.typeOf(n.Body); err != nil {
			return types.Invalid, err
		}
		return types.Void, nil
	case *ast.Compound:
		last := types.Void
		for _, sub := range n.Exprs {
			t, err := ti.typeOf(sub)
			if err != nil {
				return types.Invalid, err
			}
			last = t
		}
		return last, nil
	default:
		return types.Invalid, fmt.Errorf("cannot infer the type of %T", e)
	}
}
