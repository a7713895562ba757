// Command sisp is the CLI front end for the Sisp compiler: lexing,
// parsing, and driving compilation through an LLVM-IR or JIT backend.
package main

import (
	"os"

	"github.com/sisp-lang/sisp/cmd/sisp/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
