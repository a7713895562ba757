// Package irllvm implements internal/ir.Builder on top of
// github.com/llir/llvm, constructing a real LLVM module and printing it
// as textual IR. This is the object-file path of the driver: a
// compiled `def` becomes part of a `*ir.Module` that FlushModule renders
// to `.ll` text instead of handing it to a JIT.
package irllvm

import (
	"fmt"
	"io"

	llvmir "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	llvmtypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	sisp "github.com/sisp-lang/sisp/internal/ir"
	sisptypes "github.com/sisp-lang/sisp/internal/types"
)

func llType(t sisptypes.Type) llvmtypes.Type {
	switch t {
	case sisptypes.Int64:
		return llvmtypes.I64
	case sisptypes.Float64:
		return llvmtypes.Double
	case sisptypes.Bool:
		return llvmtypes.I1
	default:
		return llvmtypes.Void
	}
}

// Builder implements internal/ir.Builder against a single in-progress
// *llvmir.Module. A fresh Builder is created per translation unit;
// FlushModule prints the accumulated module and resets it, mirroring the
// driver's "hand off the module, open a fresh one" contract.
type Builder struct {
	out        io.Writer
	module     *llvmir.Module
	cur        *llvmir.Func
	block      *llvmir.Block
	scopeDepth int
}

// New creates a Builder that writes each flushed module's textual IR to
// out.
func New(out io.Writer) *Builder {
	return &Builder{out: out, module: llvmir.NewModule()}
}

func (b *Builder) ConstInt(v int64) sisp.Value    { return constant.NewInt(llvmtypes.I64, v) }
func (b *Builder) ConstFloat(v float64) sisp.Value { return constant.NewFloat(llvmtypes.Double, v) }
func (b *Builder) ConstBool(v bool) sisp.Value    { return constant.NewBool(v) }

func (b *Builder) Zero(t sisptypes.Type) sisp.Value {
	switch t {
	case sisptypes.Int64:
		return constant.NewInt(llvmtypes.I64, 0)
	case sisptypes.Float64:
		return constant.NewFloat(llvmtypes.Double, 0)
	case sisptypes.Bool:
		return constant.NewBool(false)
	default:
		return constant.None
	}
}

func (b *Builder) entryBlock() *llvmir.Block { return b.cur.Blocks[0] }

func (b *Builder) AllocaInEntry(fn sisp.Func, name string, t sisptypes.Type) sisp.Value {
	alloca := b.entryBlock().NewAlloca(llType(t))
	alloca.LocalName = name
	return alloca
}

func (b *Builder) Load(t sisptypes.Type, slot sisp.Value) sisp.Value {
	return b.block.NewLoad(llType(t), slot.(value.Value))
}

func (b *Builder) Store(slot sisp.Value, v sisp.Value) {
	b.block.NewStore(v.(value.Value), slot.(value.Value))
}

func (b *Builder) Add(t sisptypes.Type, lhs, rhs sisp.Value) sisp.Value {
	if t == sisptypes.Float64 {
		return b.block.NewFAdd(lhs.(value.Value), rhs.(value.Value))
	}
	return b.block.NewAdd(lhs.(value.Value), rhs.(value.Value))
}

func (b *Builder) Sub(t sisptypes.Type, lhs, rhs sisp.Value) sisp.Value {
	if t == sisptypes.Float64 {
		return b.block.NewFSub(lhs.(value.Value), rhs.(value.Value))
	}
	return b.block.NewSub(lhs.(value.Value), rhs.(value.Value))
}

func (b *Builder) Mul(t sisptypes.Type, lhs, rhs sisp.Value) sisp.Value {
	if t == sisptypes.Float64 {
		return b.block.NewFMul(lhs.(value.Value), rhs.(value.Value))
	}
	return b.block.NewMul(lhs.(value.Value), rhs.(value.Value))
}

func (b *Builder) CmpLT(t sisptypes.Type, lhs, rhs sisp.Value) sisp.Value {
	if t == sisptypes.Float64 {
		return b.block.NewFCmp(enum.FPredOLT, lhs.(value.Value), rhs.(value.Value))
	}
	return b.block.NewICmp(enum.IPredSLT, lhs.(value.Value), rhs.(value.Value))
}

func (b *Builder) CmpGT(t sisptypes.Type, lhs, rhs sisp.Value) sisp.Value {
	if t == sisptypes.Float64 {
		return b.block.NewFCmp(enum.FPredOGT, lhs.(value.Value), rhs.(value.Value))
	}
	return b.block.NewICmp(enum.IPredSGT, lhs.(value.Value), rhs.(value.Value))
}

func (b *Builder) NotZero(t sisptypes.Type, v sisp.Value) sisp.Value {
	if t == sisptypes.Bool {
		return v.(value.Value)
	}
	return b.block.NewICmp(enum.IPredNE, v.(value.Value), constant.NewInt(llvmtypes.I64, 0))
}

func (b *Builder) NewBlock(fn sisp.Func, name string) sisp.Block {
	return fn.(*llvmir.Func).NewBlock(name)
}

func (b *Builder) SetInsertPoint(block sisp.Block) { b.block = block.(*llvmir.Block) }
func (b *Builder) CurrentBlock() sisp.Block        { return b.block }
func (b *Builder) Br(target sisp.Block)            { b.block.NewBr(target.(*llvmir.Block)) }

func (b *Builder) CondBr(cond sisp.Value, thenBlock, elseBlock sisp.Block) {
	b.block.NewCondBr(cond.(value.Value), thenBlock.(*llvmir.Block), elseBlock.(*llvmir.Block))
}

func (b *Builder) Phi(t sisptypes.Type, incomings []sisp.Incoming) sisp.Value {
	incs := make([]*llvmir.Incoming, len(incomings))
	for i, in := range incomings {
		incs[i] = llvmir.NewIncoming(in.Value.(value.Value), in.Block.(*llvmir.Block))
	}
	return b.block.NewPhi(incs...)
}

func (b *Builder) DeclareFunction(name string, paramNames []string, paramTypes []sisptypes.Type, retType sisptypes.Type) sisp.Func {
	params := make([]*llvmir.Param, len(paramNames))
	for i, n := range paramNames {
		params[i] = llvmir.NewParam(n, llType(paramTypes[i]))
	}
	return b.module.NewFunc(name, llType(retType), params...)
}

func (b *Builder) ParamValue(fn sisp.Func, index int) sisp.Value {
	return fn.(*llvmir.Func).Params[index]
}

func (b *Builder) BeginFunctionBody(fn sisp.Func) sisp.Block {
	f := fn.(*llvmir.Func)
	b.cur = f
	entry := f.NewBlock("entry")
	b.block = entry
	return entry
}

func (b *Builder) Ret(v sisp.Value) {
	if v == nil || v == constant.None {
		b.block.NewRet(nil)
		return
	}
	b.block.NewRet(v.(value.Value))
}

func (b *Builder) Call(calleeName string, args []sisp.Value) (sisp.Value, error) {
	var callee *llvmir.Func
	for _, f := range b.module.Funcs {
		if f.GlobalName == calleeName {
			callee = f
			break
		}
	}
	if callee == nil {
		return nil, fmt.Errorf("undeclared function %q", calleeName)
	}
	vargs := make([]value.Value, len(args))
	for i, a := range args {
		vargs[i] = a.(value.Value)
	}
	return b.block.NewCall(callee, vargs...), nil
}

func (b *Builder) VerifyFunction(fn sisp.Func) error {
	f := fn.(*llvmir.Func)
	if len(f.Blocks) == 0 {
		return fmt.Errorf("function %q has no basic blocks", f.GlobalName)
	}
	for _, bl := range f.Blocks {
		if bl.Term == nil {
			return fmt.Errorf("a block in function %q has no terminator", f.GlobalName)
		}
	}
	return nil
}

func (b *Builder) EraseFunction(fn sisp.Func) {
	f := fn.(*llvmir.Func)
	funcs := b.module.Funcs[:0]
	for _, existing := range b.module.Funcs {
		if existing != f {
			funcs = append(funcs, existing)
		}
	}
	b.module.Funcs = funcs
}

func (b *Builder) OptimizeFunction(fn sisp.Func) {
	// No pass manager is wired; llir/llvm is a construction library, not an
	// optimizer. Textual IR is emitted as-built.
}

func (b *Builder) SetDebugLocation(line, col, lexicalScopeID int) {
	// Source-level debug metadata (DISubprogram/DILocation) is out of
	// scope; the driver's CLI has no -g flag for it.
}

func (b *Builder) PushLexicalScope(fn sisp.Func) int {
	b.scopeDepth++
	return b.scopeDepth
}

func (b *Builder) PopLexicalScope() {
	if b.scopeDepth > 0 {
		b.scopeDepth--
	}
}

func (b *Builder) FlushModule() error {
	if _, err := fmt.Fprint(b.out, b.module.String()); err != nil {
		return err
	}
	b.module = llvmir.NewModule()
	b.cur = nil
	b.block = nil
	return nil
}

func (b *Builder) LookupSymbol(name string) (any, bool) {
	for _, f := range b.module.Funcs {
		if f.GlobalName == name {
			return f, true
		}
	}
	return nil, false
}
