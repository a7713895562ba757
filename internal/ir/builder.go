// Package ir defines the abstract SSA construction contract that
// internal/lower depends on. The lowering stage is written entirely
// against Builder; it never knows whether the concrete implementation is
// internal/irllvm (real LLVM IR text) or internal/ireval (a direct
// structural interpreter used for the immediate-execution driver path).
package ir

import "github.com/sisp-lang/sisp/internal/types"

// Value is an opaque handle to an SSA value (a constant, a loaded value,
// an arithmetic result, a φ-node, or a stack-slot pointer). Only the
// Builder implementation that produced it may inspect its concrete type.
type Value interface{}

// Block is an opaque handle to a basic block.
type Block interface{}

// Func is an opaque handle to a function symbol.
type Func interface{}

// Incoming is one (value, predecessor) pair feeding a φ-node.
type Incoming struct {
	Value Value
	Block Block
}

// Builder is the abstract IR construction interface the front-end's
// lowering stage (internal/lower) is written against. Every method here
// corresponds to a capability a backend must provide; the front-end
// calls these and never reaches into a concrete IR type.
type Builder interface {
	// Constants.
	ConstInt(v int64) Value
	ConstFloat(v float64) Value
	ConstBool(v bool) Value
	Zero(t types.Type) Value

	// Stack slots. AllocaInEntry always allocates in the function's entry
	// block regardless of the builder's current insertion point, so every
	// slot dominates every use.
	AllocaInEntry(fn Func, name string, t types.Type) Value
	Load(t types.Type, slot Value) Value
	Store(slot Value, v Value)

	// Arithmetic and comparisons, dispatched by the caller on Sisp type.
	// Mixed int/float operands never reach this layer; internal/lower
	// rejects them first.
	Add(t types.Type, lhs, rhs Value) Value
	Sub(t types.Type, lhs, rhs Value) Value
	Mul(t types.Type, lhs, rhs Value) Value
	CmpLT(t types.Type, lhs, rhs Value) Value // result is Bool
	CmpGT(t types.Type, lhs, rhs Value) Value // result is Bool
	NotZero(t types.Type, v Value) Value       // used for if/for's "non-zero" test

	// Control flow.
	NewBlock(fn Func, name string) Block
	SetInsertPoint(b Block)
	CurrentBlock() Block
	Br(target Block)
	CondBr(cond Value, thenBlock, elseBlock Block)
	Phi(t types.Type, incomings []Incoming) Value

	// Functions.
	DeclareFunction(name string, paramNames []string, paramTypes []types.Type, retType types.Type) Func
	ParamValue(fn Func, index int) Value
	BeginFunctionBody(fn Func) Block // creates+enters "entry", returns it
	Ret(v Value)
	Call(calleeName string, args []Value) (Value, error)
	VerifyFunction(fn Func) error
	EraseFunction(fn Func)
	OptimizeFunction(fn Func)

	// Debug locations: set before emitting code for any AST node.
	// internal/lower pushes one lexical scope per function and locates
	// every node of that function against its id; compound blocks do not
	// push a scope of their own.
	SetDebugLocation(line, col int, lexicalScopeID int)
	PushLexicalScope(fn Func) int
	PopLexicalScope()

	// Module-level operations: ownership transfer to a JIT, and symbol
	// address lookup.
	FlushModule() error          // hand the current module to its destination, then reset
	LookupSymbol(name string) (any, bool)
}
