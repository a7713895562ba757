// Package ireval implements internal/ir.Builder as a small structural
// interpreter: a function's basic blocks are instruction lists recorded
// during lowering, and invoking a function walks that block graph
// directly rather than compiling machine code. This realizes the
// immediate-execution ("JIT and invoke") path of the driver without a
// real JIT engine.
package ireval

import (
	"fmt"
	"io"
	"strconv"

	sisp "github.com/sisp-lang/sisp/internal/ir"
	"github.com/sisp-lang/sisp/internal/types"
)

// Value is a runtime value of one of Sisp's four types.
type Value struct {
	Typ types.Type
	I   int64
	F   float64
	B   bool
}

func (v Value) truthy() bool {
	switch v.Typ {
	case types.Bool:
		return v.B
	case types.Float64:
		return v.F != 0
	default:
		return v.I != 0
	}
}

// Result is the outcome of invoking a nullary top-level function,
// carrying enough type information for the driver to format it the way
// spec's worked examples expect (an int prints as a bare integer, a
// float as a fixed six-decimal number, a bool as true/false).
type Result struct {
	Typ   types.Type
	Int   int64
	Float float64
	Bool  bool
}

func (r Result) String() string {
	switch r.Typ {
	case types.Int64:
		return strconv.FormatInt(r.Int, 10)
	case types.Float64:
		return strconv.FormatFloat(r.Float, 'f', 6, 64)
	case types.Bool:
		return strconv.FormatBool(r.Bool)
	default:
		// Void: a function whose declared return type is void (e.g. an
		// extern like printd) always surfaces as 0 at the top level.
		return "0"
	}
}

// reg is a virtual register index private to the function it was
// allocated in. Builder methods hand these out as ir.Value/ir.Block
// handles; only this package ever type-asserts them back.
type reg int

type termKind int

const (
	termNone termKind = iota
	termBr
	termCondBr
	termRet
)

type terminator struct {
	kind              termKind
	target            *block
	condReg           reg
	thenBlock, elseBlock *block
	hasVal            bool
	retReg            reg
}

type block struct {
	name   string
	instrs []func(fr *frame)
	term   terminator
}

// fn is the interpreted representation of a declared function: either a
// real Sisp function (len(blocks) > 0, lowered by internal/lower) or an
// extern with no body, resolved against the primitives table at call
// time.
type fn struct {
	name       string
	paramCount int
	paramTypes []types.Type
	retType    types.Type
	numRegs    int
	blocks     []*block
}

type frame struct {
	regs      []Value
	prevBlock *block
}

// Builder implements internal/ir.Builder by recording instructions into
// per-function block lists and executing them on demand. Unlike
// internal/irllvm, functions declared here persist across FlushModule
// calls: this backend models a single long-lived JIT session, the same
// way the original REPL's JIT resolves symbols across every module
// handed to it so far.
type Builder struct {
	out        io.Writer
	funcs      map[string]*fn
	externs    map[string]func(out io.Writer, args []Value) Value
	cur        *fn
	curBlock   *block
	scopeDepth int
}

// New creates a Builder whose extern primitives (currently just printd,
// matching the worked example) write to out.
func New(out io.Writer) *Builder {
	b := &Builder{
		out:   out,
		funcs: make(map[string]*fn),
	}
	b.externs = map[string]func(out io.Writer, args []Value) Value{
		// Matches the original's printd(double X): writes the fixed-point
		// value and always returns 0, never its argument.
		"printd": func(out io.Writer, args []Value) Value {
			fmt.Fprintf(out, "%f", args[0].F)
			return Value{Typ: types.Void}
		},
	}
	return b
}

func (b *Builder) freshReg() reg {
	r := reg(b.cur.numRegs)
	b.cur.numRegs++
	return r
}

func (b *Builder) emit(f func(fr *frame)) {
	b.curBlock.instrs = append(b.curBlock.instrs, f)
}

func zeroValue(t types.Type) Value {
	switch t {
	case types.Float64:
		return Value{Typ: types.Float64}
	case types.Bool:
		return Value{Typ: types.Bool}
	case types.Void:
		return Value{Typ: types.Void}
	default:
		return Value{Typ: types.Int64}
	}
}

func (b *Builder) ConstInt(v int64) sisp.Value {
	r := b.freshReg()
	b.emit(func(fr *frame) { fr.regs[r] = Value{Typ: types.Int64, I: v} })
	return r
}

func (b *Builder) ConstFloat(v float64) sisp.Value {
	r := b.freshReg()
	b.emit(func(fr *frame) { fr.regs[r] = Value{Typ: types.Float64, F: v} })
	return r
}

func (b *Builder) ConstBool(v bool) sisp.Value {
	r := b.freshReg()
	b.emit(func(fr *frame) { fr.regs[r] = Value{Typ: types.Bool, B: v} })
	return r
}

func (b *Builder) Zero(t types.Type) sisp.Value {
	r := b.freshReg()
	z := zeroValue(t)
	b.emit(func(fr *frame) { fr.regs[r] = z })
	return r
}

// AllocaInEntry always appends to the function's entry block regardless
// of the current insertion point: since execution never begins until
// every instruction has been recorded, append order only needs to place
// the slot's initialization before its first use, which entry-block
// placement guarantees.
func (b *Builder) AllocaInEntry(f sisp.Func, name string, t types.Type) sisp.Value {
	r := b.freshReg()
	entry := f.(*fn).blocks[0]
	z := zeroValue(t)
	entry.instrs = append(entry.instrs, func(fr *frame) { fr.regs[r] = z })
	return r
}

func (b *Builder) Load(t types.Type, slot sisp.Value) sisp.Value {
	r := b.freshReg()
	s := slot.(reg)
	b.emit(func(fr *frame) { fr.regs[r] = fr.regs[s] })
	return r
}

func (b *Builder) Store(slot sisp.Value, v sisp.Value) {
	s, vr := slot.(reg), v.(reg)
	b.emit(func(fr *frame) { fr.regs[s] = fr.regs[vr] })
}

func (b *Builder) binop(t types.Type, lhs, rhs sisp.Value, intOp func(a, c int64) int64, floatOp func(a, c float64) float64) sisp.Value {
	l, rr := lhs.(reg), rhs.(reg)
	r := b.freshReg()
	b.emit(func(fr *frame) {
		a, c := fr.regs[l], fr.regs[rr]
		if t == types.Float64 {
			fr.regs[r] = Value{Typ: types.Float64, F: floatOp(a.F, c.F)}
		} else {
			fr.regs[r] = Value{Typ: types.Int64, I: intOp(a.I, c.I)}
		}
	})
	return r
}

func (b *Builder) Add(t types.Type, lhs, rhs sisp.Value) sisp.Value {
	return b.binop(t, lhs, rhs, func(a, c int64) int64 { return a + c }, func(a, c float64) float64 { return a + c })
}
func (b *Builder) Sub(t types.Type, lhs, rhs sisp.Value) sisp.Value {
	return b.binop(t, lhs, rhs, func(a, c int64) int64 { return a - c }, func(a, c float64) float64 { return a - c })
}
func (b *Builder) Mul(t types.Type, lhs, rhs sisp.Value) sisp.Value {
	return b.binop(t, lhs, rhs, func(a, c int64) int64 { return a * c }, func(a, c float64) float64 { return a * c })
}

func (b *Builder) cmp(t types.Type, lhs, rhs sisp.Value, intOp func(a, c int64) bool, floatOp func(a, c float64) bool) sisp.Value {
	l, rr := lhs.(reg), rhs.(reg)
	r := b.freshReg()
	b.emit(func(fr *frame) {
		a, c := fr.regs[l], fr.regs[rr]
		if t == types.Float64 {
			fr.regs[r] = Value{Typ: types.Bool, B: floatOp(a.F, c.F)}
		} else {
			fr.regs[r] = Value{Typ: types.Bool, B: intOp(a.I, c.I)}
		}
	})
	return r
}

func (b *Builder) CmpLT(t types.Type, lhs, rhs sisp.Value) sisp.Value {
	return b.cmp(t, lhs, rhs, func(a, c int64) bool { return a < c }, func(a, c float64) bool { return a < c })
}
func (b *Builder) CmpGT(t types.Type, lhs, rhs sisp.Value) sisp.Value {
	return b.cmp(t, lhs, rhs, func(a, c int64) bool { return a > c }, func(a, c float64) bool { return a > c })
}

func (b *Builder) NotZero(t types.Type, v sisp.Value) sisp.Value {
	vr := v.(reg)
	r := b.freshReg()
	b.emit(func(fr *frame) { fr.regs[r] = Value{Typ: types.Bool, B: fr.regs[vr].truthy()} })
	return r
}

func (b *Builder) NewBlock(f sisp.Func, name string) sisp.Block {
	bl := &block{name: name}
	ff := f.(*fn)
	ff.blocks = append(ff.blocks, bl)
	return bl
}

func (b *Builder) SetInsertPoint(bl sisp.Block) { b.curBlock = bl.(*block) }
func (b *Builder) CurrentBlock() sisp.Block     { return b.curBlock }

func (b *Builder) Br(target sisp.Block) {
	b.curBlock.term = terminator{kind: termBr, target: target.(*block)}
}

func (b *Builder) CondBr(cond sisp.Value, thenBlock, elseBlock sisp.Block) {
	b.curBlock.term = terminator{
		kind:      termCondBr,
		condReg:   cond.(reg),
		thenBlock: thenBlock.(*block),
		elseBlock: elseBlock.(*block),
	}
}

func (b *Builder) Phi(t types.Type, incomings []sisp.Incoming) sisp.Value {
	type pair struct {
		val reg
		blk *block
	}
	pairs := make([]pair, len(incomings))
	for i, in := range incomings {
		pairs[i] = pair{val: in.Value.(reg), blk: in.Block.(*block)}
	}
	r := b.freshReg()
	z := zeroValue(t)
	b.emit(func(fr *frame) {
		for _, p := range pairs {
			if p.blk == fr.prevBlock {
				fr.regs[r] = fr.regs[p.val]
				return
			}
		}
		fr.regs[r] = z
	})
	return r
}

func (b *Builder) DeclareFunction(name string, paramNames []string, paramTypes []types.Type, retType types.Type) sisp.Func {
	f := &fn{name: name, paramCount: len(paramNames), paramTypes: paramTypes, retType: retType, numRegs: len(paramNames)}
	b.funcs[name] = f
	return f
}

func (b *Builder) ParamValue(f sisp.Func, index int) sisp.Value { return reg(index) }

func (b *Builder) BeginFunctionBody(f sisp.Func) sisp.Block {
	ff := f.(*fn)
	b.cur = ff
	entry := &block{name: "entry"}
	ff.blocks = append(ff.blocks, entry)
	b.curBlock = entry
	return entry
}

func (b *Builder) Ret(v sisp.Value) {
	if v == nil {
		b.curBlock.term = terminator{kind: termRet, hasVal: false}
		return
	}
	b.curBlock.term = terminator{kind: termRet, hasVal: true, retReg: v.(reg)}
}

func (b *Builder) Call(calleeName string, args []sisp.Value) (sisp.Value, error) {
	callee, ok := b.funcs[calleeName]
	if !ok {
		return nil, fmt.Errorf("undeclared function %q", calleeName)
	}
	argRegs := make([]reg, len(args))
	for i, a := range args {
		argRegs[i] = a.(reg)
	}
	r := b.freshReg()
	b.emit(func(fr *frame) {
		argVals := make([]Value, len(argRegs))
		for i, ar := range argRegs {
			argVals[i] = fr.regs[ar]
		}
		fr.regs[r] = b.run(callee, argVals)
	})
	return r, nil
}

// run executes f's block graph to completion and returns its result. An
// extern with no recorded blocks dispatches to a registered primitive
// instead of walking a (nonexistent) block list.
func (b *Builder) run(f *fn, args []Value) Value {
	if len(f.blocks) == 0 {
		if prim, ok := b.externs[f.name]; ok {
			return prim(b.out, args)
		}
		return zeroValue(f.retType)
	}

	fr := &frame{regs: make([]Value, f.numRegs)}
	copy(fr.regs, args)

	cur := f.blocks[0]
	for {
		for _, instr := range cur.instrs {
			instr(fr)
		}
		switch cur.term.kind {
		case termRet:
			if cur.term.hasVal {
				return fr.regs[cur.term.retReg]
			}
			return zeroValue(f.retType)
		case termBr:
			fr.prevBlock = cur
			cur = cur.term.target
		case termCondBr:
			taken := fr.regs[cur.term.condReg].B
			fr.prevBlock = cur
			if taken {
				cur = cur.term.thenBlock
			} else {
				cur = cur.term.elseBlock
			}
		default:
			return zeroValue(f.retType)
		}
	}
}

func (b *Builder) VerifyFunction(f sisp.Func) error {
	ff := f.(*fn)
	if len(ff.blocks) == 0 {
		return nil // extern
	}
	for _, bl := range ff.blocks {
		if bl.term.kind == termNone {
			return fmt.Errorf("block %q in function %q has no terminator", bl.name, ff.name)
		}
	}
	return nil
}

func (b *Builder) EraseFunction(f sisp.Func) { delete(b.funcs, f.(*fn).name) }

func (b *Builder) OptimizeFunction(f sisp.Func) {
	// This backend interprets the recorded instruction list directly; there
	// is no instruction selection or pass pipeline to run.
}

func (b *Builder) SetDebugLocation(line, col, lexicalScopeID int) {}

func (b *Builder) PushLexicalScope(f sisp.Func) int {
	b.scopeDepth++
	return b.scopeDepth
}

func (b *Builder) PopLexicalScope() {
	if b.scopeDepth > 0 {
		b.scopeDepth--
	}
}

// FlushModule is a no-op: this backend models one long-lived JIT session
// where every previously lowered function stays callable, so there is no
// per-translation-unit module to hand off or reset.
func (b *Builder) FlushModule() error { return nil }

func (b *Builder) LookupSymbol(name string) (any, bool) {
	f, ok := b.funcs[name]
	return f, ok
}

// Invoke runs a previously lowered nullary function (the driver's
// top-level "__anon_expr" wrapper) and returns its result. It is not
// part of internal/ir.Builder: only a backend capable of immediate
// execution exposes it, and the driver reaches it via a type assertion.
func (b *Builder) Invoke(name string) (Result, error) {
	f, ok := b.funcs[name]
	if !ok {
		return Result{}, fmt.Errorf("unknown function %q", name)
	}
	if f.paramCount != 0 {
		return Result{}, fmt.Errorf("cannot invoke %q directly: expects %d argument(s)", name, f.paramCount)
	}
	v := b.run(f, nil)
	return Result{Typ: v.Typ, Int: v.I, Float: v.F, Bool: v.B}, nil
}
