package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sisp-lang/sisp/internal/driver"
	"github.com/sisp-lang/sisp/internal/irllvm"
	"github.com/spf13/cobra"
)

var compileOutputFile string

var compileCmd = &cobra.Command{
	Use:   "compile <file>",
	Short: "Compile a Sisp file to textual LLVM IR",
	Long: `Compile a Sisp program to LLVM IR and save it as a .ll file.

This never JITs, regardless of --jit on "sisp run"; it always emits the
accumulated module's IR to disk.

Examples:
  # Compile to script.ll
  sisp compile script.sisp

  # Compile with custom output file
  sisp compile script.sisp -o out.ll`,
	Args: cobra.ExactArgs(1),
	RunE: compileScript,
}

func init() {
	rootCmd.AddCommand(compileCmd)

	compileCmd.Flags().StringVarP(&compileOutputFile, "output", "o", "", "output file (default: <input>.ll)")
}

func compileScript(_ *cobra.Command, args []string) error {
	filename := args[0]
	content, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", filename, err)
	}

	outFile := compileOutputFile
	if outFile == "" {
		ext := filepath.Ext(filename)
		if ext != "" {
			outFile = strings.TrimSuffix(filename, ext) + ".ll"
		} else {
			outFile = filename + ".ll"
		}
	}

	f, err := os.Create(outFile)
	if err != nil {
		return fmt.Errorf("failed to create output file %s: %w", outFile, err)
	}
	defer f.Close()

	if verbose {
		fmt.Fprintf(os.Stderr, "Compiling %s -> %s...\n", filename, outFile)
	}

	b := irllvm.New(f)
	pl := driver.New(b, string(content), filename, false, os.Stdout, os.Stderr)
	if code := pl.Run(); code != 0 {
		return fmt.Errorf("compilation failed with errors")
	}

	fmt.Printf("Compiled %s -> %s\n", filename, outFile)
	return nil
}
