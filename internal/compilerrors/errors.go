// Package compilerrors formats compiler diagnostics with source context,
// line/column information, and a caret pointing at the offending column.
package compilerrors

import (
	"fmt"
	"strings"

	"github.com/sisp-lang/sisp/internal/token"
)

// Kind classifies a CompilerError by diagnostic category.
type Kind int

const (
	LexicalError Kind = iota
	SyntaxError
	UnknownName
	ArityMismatch
	OperatorNotFound
	TypeError
	InvalidPrecedence
)

func (k Kind) String() string {
	switch k {
	case LexicalError:
		return "lexical error"
	case SyntaxError:
		return "syntax error"
	case UnknownName:
		return "unknown name"
	case ArityMismatch:
		return "arity mismatch"
	case OperatorNotFound:
		return "operator not found"
	case TypeError:
		return "type error"
	case InvalidPrecedence:
		return "invalid precedence"
	default:
		return "error"
	}
}

// CompilerError is a single diagnostic with enough context to print a
// source snippet and caret.
type CompilerError struct {
	Message string
	Source  string
	File    string
	Pos     token.Position
	Kind    Kind
}

// New creates a CompilerError. source and file may be empty; when source
// is empty, Format skips the snippet and caret.
func New(kind Kind, pos token.Position, message, source, file string) *CompilerError {
	return &CompilerError{Kind: kind, Pos: pos, Message: message, Source: source, File: file}
}

// Error implements the error interface.
func (e *CompilerError) Error() string {
	return e.Format(false)
}

// Format renders "<file>:<line>:<col>: <kind>: <message>", followed by a
// source line and caret when Source is available. If color is true, ANSI
// codes highlight the caret and message.
func (e *CompilerError) Format(color bool) string {
	var sb strings.Builder

	file := e.File
	if file == "" {
		file = "<input>"
	}
	sb.WriteString(fmt.Sprintf("%s:%d:%d: %s: ", file, e.Pos.Line, e.Pos.Col, e.Kind))
	if color {
		sb.WriteString("\033[1m")
	}
	sb.WriteString(e.Message)
	if color {
		sb.WriteString("\033[0m")
	}

	if line := e.sourceLine(e.Pos.Line); line != "" {
		sb.WriteString("\n")
		lineNumStr := fmt.Sprintf("%4d | ", e.Pos.Line)
		sb.WriteString(lineNumStr)
		sb.WriteString(line)
		sb.WriteString("\n")
		sb.WriteString(strings.Repeat(" ", len(lineNumStr)+e.Pos.Col-1))
		if color {
			sb.WriteString("\033[1;31m")
		}
		sb.WriteString("^")
		if color {
			sb.WriteString("\033[0m")
		}
	}

	return sb.String()
}

func (e *CompilerError) sourceLine(lineNum int) string {
	if e.Source == "" {
		return ""
	}
	lines := strings.Split(e.Source, "\n")
	if lineNum < 1 || lineNum > len(lines) {
		return ""
	}
	return lines[lineNum-1]
}

// FormatErrors renders a batch of diagnostics, one per error, numbered
// when there is more than one.
func FormatErrors(errs []*CompilerError, color bool) string {
	if len(errs) == 0 {
		return ""
	}
	if len(errs) == 1 {
		return errs[0].Format(color)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d errors:\n\n", len(errs)))
	for i, err := range errs {
		sb.WriteString(fmt.Sprintf("[%d/%d] ", i+1, len(errs)))
		sb.WriteString(err.Format(color))
		if i < len(errs)-1 {
			sb.WriteString("\n\n")
		}
	}
	return sb.String()
}
