package cmd

import (
	"fmt"

	"github.com/sisp-lang/sisp/internal/ast"
	"github.com/sisp-lang/sisp/internal/compilerrors"
	"github.com/sisp-lang/sisp/internal/lexer"
	"github.com/sisp-lang/sisp/internal/parser"
	"github.com/sisp-lang/sisp/internal/scope"
	"github.com/spf13/cobra"
)

var parseEvalExpr string

var parseCmd = &cobra.Command{
	Use:   "parse [file]",
	Short: "Parse a single Sisp expression and display its AST",
	Long: `Parse a Sisp expression and print its Abstract Syntax Tree.

If no file is provided, reads from stdin. Use -e to parse an expression
given directly on the command line.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().StringVarP(&parseEvalExpr, "eval", "e", "", "parse inline source instead of reading from file")
}

func runParse(_ *cobra.Command, args []string) error {
	input, filename, err := readSource(parseEvalExpr, args)
	if err != nil {
		return err
	}

	p := parser.New(lexer.New(input), input, filename)
	expr := p.ParseExpression(scope.New())
	if len(p.Errors()) > 0 {
		return fmt.Errorf("%s", compilerrors.FormatErrors(p.Errors(), false))
	}

	dumpNode(expr, 0)
	return nil
}

func dumpNode(n ast.Expr, indent int) {
	pad := ""
	for i := 0; i < indent; i++ {
		pad += "  "
	}

	switch e := n.(type) {
	case *ast.IntegerLiteral:
		fmt.Printf("%sIntegerLiteral %d\n", pad, e.Value)
	case *ast.FloatLiteral:
		fmt.Printf("%sFloatLiteral %g\n", pad, e.Value)
	case *ast.Variable:
		fmt.Printf("%sVariable %s\n", pad, e.Name)
	case *ast.VarExpr:
		fmt.Printf("%sVarExpr %s: %s\n", pad, e.Name, e.Type)
		if e.Init != nil {
			dumpNode(e.Init, indent+1)
		}
	case *ast.Binary:
		fmt.Printf("%sBinary %q\n", pad, string(e.Op))
		dumpNode(e.LHS, indent+1)
		dumpNode(e.RHS, indent+1)
	case *ast.Unary:
		fmt.Printf("%sUnary %q\n", pad, string(e.Op))
		dumpNode(e.Operand, indent+1)
	case *ast.Call:
		fmt.Printf("%sCall %s (%d arg(s))\n", pad, e.Callee, len(e.Args))
		for _, a := range e.Args {
			dumpNode(a, indent+1)
		}
	case *ast.If:
		fmt.Printf("%sIf\n", pad)
		fmt.Printf("%s  cond:\n", pad)
		dumpNode(e.Cond, indent+2)
		fmt.Printf("%s  then:\n", pad)
		dumpNode(e.Then, indent+2)
		fmt.Printf("%s  else:\n", pad)
		dumpNode(e.Else, indent+2)
	case *ast.For:
		fmt.Printf("%sFor\n", pad)
		dumpNode(e.Var, indent+1)
		fmt.Printf("%s  end:\n", pad)
		dumpNode(e.End, indent+2)
		if e.Step != nil {
			fmt.Printf("%s  step:\n", pad)
			dumpNode(e.Step, indent+2)
		}
		fmt.Printf("%s  body:\n", pad)
		dumpNode(e.Body, indent+2)
	case *ast.Compound:
		fmt.Printf("%sCompound (%d expr(s))\n", pad, len(e.Exprs))
		for _, sub := range e.Exprs {
			dumpNode(sub, indent+1)
		}
	default:
		fmt.Printf("%s%T\n", pad, n)
	}
}
