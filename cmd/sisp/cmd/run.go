package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/sisp-lang/sisp/internal/driver"
	"github.com/sisp-lang/sisp/internal/ir"
	"github.com/sisp-lang/sisp/internal/ireval"
	"github.com/sisp-lang/sisp/internal/irllvm"
	"github.com/spf13/cobra"
)

var (
	runEvalExpr string
	jit         bool
	outPath     string
)

var runCmd = &cobra.Command{
	Use:   "run [file]",
	Short: "Compile and run a Sisp program",
	Long: `Compile a Sisp program and either JIT-invoke its top-level
expressions (--jit) or emit its textual LLVM IR (the default).

Examples:
  # JIT and print every top-level expression's value
  sisp run --jit script.sisp

  # Emit LLVM IR to stdout
  sisp run script.sisp

  # Emit LLVM IR to a file
  sisp run --out script.ll script.sisp

  # Evaluate an inline expression
  sisp run --jit -e "1 + 2 * 3"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScript,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runEvalExpr, "eval", "e", "", "run inline source instead of reading from file")
	runCmd.Flags().BoolVar(&jit, "jit", false, "JIT and invoke top-level expressions, printing their results")
	runCmd.Flags().StringVar(&outPath, "out", "", "destination for emitted LLVM IR (default: stdout)")
}

func runScript(_ *cobra.Command, args []string) error {
	input, filename, err := readSource(runEvalExpr, args)
	if err != nil {
		return err
	}

	objOut := os.Stdout
	var objFile *os.File
	if !jit && outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("failed to create output file %s: %w", outPath, err)
		}
		defer f.Close()
		objFile = f
	}
	if objFile != nil {
		objOut = objFile
	}

	var b ir.Builder
	if jit {
		b = ireval.New(os.Stdout)
	} else {
		b = irllvm.New(objOut)
	}

	if verbose {
		mode := "emitting LLVM IR"
		if jit {
			mode = "JIT-invoking top-level expressions"
		}
		fmt.Fprintf(os.Stderr, "Running %s (%s)...\n", filename, mode)
	}

	pl := driver.New(b, input, filename, jit, os.Stdout, os.Stderr)
	if code := pl.Run(); code != 0 {
		return fmt.Errorf("compilation failed")
	}
	return nil
}

// readSource resolves the driver's input: a single positional file
// argument, or standard input when none is given. --eval is an additional
// convenience shared with lex/parse.
func readSource(evalExpr string, args []string) (input, filename string, err error) {
	if evalExpr != "" {
		return evalExpr, "<eval>", nil
	}
	if len(args) == 1 {
		content, err := os.ReadFile(args[0])
		if err != nil {
			return "", "", fmt.Errorf("failed to read file %s: %w", args[0], err)
		}
		return string(content), args[0], nil
	}
	content, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return string(content), "<stdin>", nil
}
