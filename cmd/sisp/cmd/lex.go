package cmd

import (
	"fmt"
	"strings"

	"github.com/sisp-lang/sisp/internal/lexer"
	"github.com/sisp-lang/sisp/internal/token"
	"github.com/spf13/cobra"
)

var (
	lexEvalExpr string
	lexShowPos  bool
)

var lexCmd = &cobra.Command{
	Use:   "lex [file]",
	Short: "Tokenize a Sisp file or expression",
	Long: `Tokenize (lex) a Sisp program and print the resulting tokens.

Examples:
  # Tokenize a script file
  sisp lex script.sisp

  # Tokenize an inline expression
  sisp lex -e "1 + 2 * 3"

  # Show token positions (line:column)
  sisp lex --show-pos script.sisp`,
	Args: cobra.MaximumNArgs(1),
	RunE: lexScript,
}

func init() {
	rootCmd.AddCommand(lexCmd)

	lexCmd.Flags().StringVarP(&lexEvalExpr, "eval", "e", "", "tokenize inline source instead of reading from file")
	lexCmd.Flags().BoolVar(&lexShowPos, "show-pos", false, "show token positions (line:column)")
}

func lexScript(_ *cobra.Command, args []string) error {
	input, filename, err := readSource(lexEvalExpr, args)
	if err != nil {
		return err
	}

	if verbose {
		fmt.Printf("Tokenizing: %s\n", filename)
		fmt.Printf("Input length: %d bytes\n", len(input))
		fmt.Println("---")
	}

	l := lexer.New(input)
	count := 0
	for {
		tok := l.Peek()
		printToken(tok)
		count++
		if tok.Kind == token.EOF {
			break
		}
		l.Advance()
	}

	if verbose {
		fmt.Println("---")
		fmt.Printf("Total tokens: %d\n", count)
	}
	return nil
}

func printToken(tok token.Token) {
	rendered := tok.String()
	if !lexShowPos {
		if at := strings.LastIndexByte(rendered, '@'); at >= 0 {
			rendered = rendered[:at]
		}
	}
	fmt.Println(rendered)
}
