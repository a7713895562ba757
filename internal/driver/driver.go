// Package driver implements Sisp's top-level compilation loop: a single
// pass over the token stream that dispatches each top-level form to the
// parser and, on success, to the lowering stage. It owns the one Parser
// (and therefore the one prototype registry and precedence table) for an
// entire run, and the one ir.Builder a caller supplies.
package driver

import (
	"fmt"
	"io"

	"github.com/sisp-lang/sisp/internal/compilerrors"
	"github.com/sisp-lang/sisp/internal/ireval"
	"github.com/sisp-lang/sisp/internal/ir"
	"github.com/sisp-lang/sisp/internal/lexer"
	"github.com/sisp-lang/sisp/internal/lower"
	"github.com/sisp-lang/sisp/internal/parser"
	"github.com/sisp-lang/sisp/internal/token"
)

// invoker is implemented only by backends capable of immediate execution.
// internal/ireval.Builder satisfies it; internal/irllvm.Builder does not,
// since it only ever emits textual IR. It is not part of ir.Builder.
type invoker interface {
	Invoke(name string) (ireval.Result, error)
}

// Pipeline drives one compilation unit: tokenize, parse one top-level
// form at a time, lower it, and — in JIT mode — invoke or flush as each
// form completes. Non-JIT mode accumulates everything into one module,
// flushed once at end of input.
type Pipeline struct {
	b      ir.Builder
	p      *parser.Parser
	jit    bool
	out    io.Writer
	errOut io.Writer

	source string
	file   string
	failed bool
}

// New creates a Pipeline reading source from src. file is carried through
// to diagnostics and may be empty. out receives values printed by
// top-level expressions in JIT mode; errOut receives formatted
// diagnostics.
func New(b ir.Builder, src, file string, jit bool, out, errOut io.Writer) *Pipeline {
	return &Pipeline{
		b:      b,
		p:      parser.New(lexer.New(src), src, file),
		jit:    jit,
		out:    out,
		errOut: errOut,
		source: src,
		file:   file,
	}
}

// Run executes the driver loop to completion and returns a process exit
// code: 0 on success, non-zero if any form failed to parse or lower.
func (pl *Pipeline) Run() int {
	for {
		switch cur := pl.p.Cur(); {
		case cur.Kind == token.EOF || cur.Kind == token.EXIT:
			if !pl.jit {
				if err := pl.b.FlushModule(); err != nil {
					pl.reportf(err)
				}
			}
			if pl.failed {
				return 1
			}
			return 0

		case cur.Kind == token.CHAR && cur.Ch == ';':
			pl.p.Advance()

		case cur.Kind == token.DEF:
			pl.handleDefinition()

		case cur.Kind == token.EXTERN:
			pl.handleExtern()

		default:
			pl.handleTopLevel()
		}
	}
}

// recoverIfErrored reports any parser errors accumulated since before,
// and advances past the offending token so the next form gets a clean
// start. It reports whether a parse error occurred.
func (pl *Pipeline) recoverIfErrored(before int) bool {
	errs := pl.p.Errors()
	if len(errs) == before {
		return false
	}
	pl.reportErrors(errs[before:])
	pl.p.Advance()
	return true
}

func (pl *Pipeline) handleDefinition() {
	before := len(pl.p.Errors())
	fn := pl.p.ParseDefinition()
	if pl.recoverIfErrored(before) || fn == nil {
		return
	}

	l := lower.New(pl.b, pl.p.Prototypes(), pl.source, pl.file)
	if _, ok := l.LowerFunction(fn); !ok {
		pl.reportErrors(l.Errors())
		return
	}
	if pl.jit {
		if err := pl.b.FlushModule(); err != nil {
			pl.reportf(err)
		}
	}
}

func (pl *Pipeline) handleExtern() {
	before := len(pl.p.Errors())
	proto := pl.p.ParseExtern()
	if pl.recoverIfErrored(before) || proto == nil {
		return
	}

	l := lower.New(pl.b, pl.p.Prototypes(), pl.source, pl.file)
	l.LowerExtern(proto)
	if len(l.Errors()) > 0 {
		pl.reportErrors(l.Errors())
	}
}

func (pl *Pipeline) handleTopLevel() {
	before := len(pl.p.Errors())
	fn := pl.p.ParseTopLevel()
	if pl.recoverIfErrored(before) || fn == nil {
		return
	}

	l := lower.New(pl.b, pl.p.Prototypes(), pl.source, pl.file)
	if _, ok := l.LowerFunction(fn); !ok {
		pl.reportErrors(l.Errors())
		return
	}
	if !pl.jit {
		return
	}

	inv, ok := pl.b.(invoker)
	if !ok {
		pl.reportf(fmt.Errorf("jit mode requires an invokable backend"))
		return
	}
	res, err := inv.Invoke(parser.AnonExprName)
	if err != nil {
		pl.reportf(err)
		return
	}
	fmt.Fprintln(pl.out, res.String())
	if err := pl.b.FlushModule(); err != nil {
		pl.reportf(err)
	}
}

func (pl *Pipeline) reportErrors(errs []*compilerrors.CompilerError) {
	pl.failed = true
	fmt.Fprint(pl.errOut, compilerrors.FormatErrors(errs, false))
	fmt.Fprintln(pl.errOut)
}

func (pl *Pipeline) reportf(err error) {
	pl.failed = true
	fmt.Fprintln(pl.errOut, err)
}
