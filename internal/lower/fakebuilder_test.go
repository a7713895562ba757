package lower

import (
	"fmt"

	"github.com/sisp-lang/sisp/internal/ir"
	"github.com/sisp-lang/sisp/internal/types"
)

// fakeFunc and fakeBlock give the tests something concrete to compare by
// identity; fakeBuilder otherwise evaluates everything eagerly against a
// single mutable register file, since lowering-correctness tests only
// care about which value and type came out, not about real basic-block
// structure.
type fakeFunc struct {
	name    string
	params  []string
	ptypes  []types.Type
	retType types.Type
	locals  map[string]types.Type
}

type fakeBlock struct {
	id int
}

type fakeBuilder struct {
	funcs   map[string]*fakeFunc
	cur     *fakeFunc
	blocks  []*fakeBlock
	curBB   *fakeBlock
	slots   map[ir.Value]types.Type
	mem     map[ir.Value]ir.Value
	retVals map[*fakeFunc]ir.Value
	nextID  int
	scopeID int
}

func newFakeBuilder() *fakeBuilder {
	return &fakeBuilder{
		funcs:   make(map[string]*fakeFunc),
		slots:   make(map[ir.Value]types.Type),
		mem:     make(map[ir.Value]ir.Value),
		retVals: make(map[*fakeFunc]ir.Value),
	}
}

func (b *fakeBuilder) fresh() int {
	b.nextID++
	return b.nextID
}

type fakeVal struct {
	id  int
	tag string
	v   any
}

func (b *fakeBuilder) ConstInt(v int64) ir.Value    { return &fakeVal{id: b.fresh(), tag: "int", v: v} }
func (b *fakeBuilder) ConstFloat(v float64) ir.Value { return &fakeVal{id: b.fresh(), tag: "float", v: v} }
func (b *fakeBuilder) ConstBool(v bool) ir.Value     { return &fakeVal{id: b.fresh(), tag: "bool", v: v} }

func (b *fakeBuilder) Zero(t types.Type) ir.Value {
	switch t {
	case types.Int64:
		return b.ConstInt(0)
	case types.Float64:
		return b.ConstFloat(0)
	case types.Bool:
		return b.ConstBool(false)
	default:
		return &fakeVal{id: b.fresh(), tag: "void"}
	}
}

func (b *fakeBuilder) AllocaInEntry(fn ir.Func, name string, t types.Type) ir.Value {
	slot := &fakeVal{id: b.fresh(), tag: "slot"}
	b.slots[slot] = t
	b.mem[slot] = b.Zero(t)
	return slot
}

func (b *fakeBuilder) Load(t types.Type, slot ir.Value) ir.Value { return b.mem[slot] }
func (b *fakeBuilder) Store(slot ir.Value, v ir.Value)           { b.mem[slot] = v }

func numOf(v ir.Value) float64 {
	fv := v.(*fakeVal)
	switch n := fv.v.(type) {
	case int64:
		return float64(n)
	case float64:
		return n
	default:
		return 0
	}
}

func (b *fakeBuilder) arith(t types.Type, lhs, rhs ir.Value, f func(a, bb float64) float64) ir.Value {
	r := f(numOf(lhs), numOf(rhs))
	if t == types.Int64 {
		return b.ConstInt(int64(r))
	}
	return b.ConstFloat(r)
}

func (b *fakeBuilder) Add(t types.Type, lhs, rhs ir.Value) ir.Value {
	return b.arith(t, lhs, rhs, func(a, c float64) float64 { return a + c })
}
func (b *fakeBuilder) Sub(t types.Type, lhs, rhs ir.Value) ir.Value {
	return b.arith(t, lhs, rhs, func(a, c float64) float64 { return a - c })
}
func (b *fakeBuilder) Mul(t types.Type, lhs, rhs ir.Value) ir.Value {
	return b.arith(t, lhs, rhs, func(a, c float64) float64 { return a * c })
}
func (b *fakeBuilder) CmpLT(t types.Type, lhs, rhs ir.Value) ir.Value {
	return b.ConstBool(numOf(lhs) < numOf(rhs))
}
func (b *fakeBuilder) CmpGT(t types.Type, lhs, rhs ir.Value) ir.Value {
	return b.ConstBool(numOf(lhs) > numOf(rhs))
}
func (b *fakeBuilder) NotZero(t types.Type, v ir.Value) ir.Value {
	fv := v.(*fakeVal)
	if bv, ok := fv.v.(bool); ok {
		return b.ConstBool(bv)
	}
	return b.ConstBool(numOf(v) != 0)
}

func (b *fakeBuilder) NewBlock(fn ir.Func, name string) ir.Block {
	bl := &fakeBlock{id: b.fresh()}
	b.blocks = append(b.blocks, bl)
	return bl
}
func (b *fakeBuilder) SetInsertPoint(bl ir.Block) { b.curBB = bl.(*fakeBlock) }
func (b *fakeBuilder) CurrentBlock() ir.Block     { return b.curBB }
func (b *fakeBuilder) Br(target ir.Block)         { b.SetInsertPoint(target) }

// CondBr records nothing; lower.go always calls SetInsertPoint explicitly
// for every block it visits, so this fake never needs to decide which arm
// is "taken" — lowering is static IR construction, not execution.
func (b *fakeBuilder) CondBr(cond ir.Value, thenBlock, elseBlock ir.Block) {}

// Phi picks the last-emitted incoming, mirroring a real φ-node's value
// for the only path these tests ever exercise (entry-to-merge through
// whichever arm was lowered last still has a coherent value to check).
func (b *fakeBuilder) Phi(t types.Type, incomings []ir.Incoming) ir.Value {
	if len(incomings) == 0 {
		return b.Zero(t)
	}
	return incomings[len(incomings)-1].Value
}

func (b *fakeBuilder) DeclareFunction(name string, paramNames []string, paramTypes []types.Type, retType types.Type) ir.Func {
	fn := &fakeFunc{name: name, params: paramNames, ptypes: paramTypes, retType: retType, locals: make(map[string]types.Type)}
	b.funcs[name] = fn
	return fn
}
func (b *fakeBuilder) ParamValue(fn ir.Func, index int) ir.Value {
	f := fn.(*fakeFunc)
	return b.Zero(f.ptypes[index])
}
func (b *fakeBuilder) BeginFunctionBody(fn ir.Func) ir.Block {
	b.cur = fn.(*fakeFunc)
	bl := b.NewBlock(fn, "entry")
	b.SetInsertPoint(bl)
	return bl
}

func (b *fakeBuilder) Ret(v ir.Value) { b.retVals[b.cur] = v }

func (b *fakeBuilder) Call(calleeName string, args []ir.Value) (ir.Value, error) {
	fn, ok := b.funcs[calleeName]
	if !ok {
		return nil, fmt.Errorf("unknown function %q", calleeName)
	}
	if v, ok := b.retVals[fn]; ok {
		return v, nil
	}
	return b.Zero(fn.retType), nil
}

func (b *fakeBuilder) VerifyFunction(fn ir.Func) error   { return nil }
func (b *fakeBuilder) EraseFunction(fn ir.Func)          { delete(b.funcs, fn.(*fakeFunc).name) }
func (b *fakeBuilder) OptimizeFunction(fn ir.Func)       {}
func (b *fakeBuilder) SetDebugLocation(line, col, sid int) {}
func (b *fakeBuilder) PushLexicalScope(fn ir.Func) int   { b.scopeID++; return b.scopeID }
func (b *fakeBuilder) PopLexicalScope()                  {}
func (b *fakeBuilder) FlushModule() error                { return nil }
func (b *fakeBuilder) LookupSymbol(name string) (any, bool) {
	fn, ok := b.funcs[name]
	return fn, ok
}
