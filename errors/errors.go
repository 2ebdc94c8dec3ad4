// Package errors defines the diagnostic error types shared across the
// parser, checker, compiler, and VM, following the teacher repository's
// frontend/errors package: one struct per phase, each able to pretty-print
// itself pointing at the offending source line.
package errors

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/vela-lang/vela/token"
)

// Diagnostic is implemented by every error type in this package.
type Diagnostic interface {
	error
	Write(w io.Writer)
}

var (
	errorLabel = color.New(color.FgRed, color.Bold)
	locLabel   = color.New(color.FgBlue)
	caretColor = color.New(color.FgRed)
)

// SyntaxError represents a parse-time error. Parse errors are accumulated
// (see parser.Parser) rather than aborting parsing.
type SyntaxError struct {
	Position Position
	Line     string
	Message  string
	Help     string
}

// SemanticError represents a type-checking violation. The checker aborts
// on the first one (§4.2 of the spec).
type SemanticError struct {
	Position Position
	Message  string
}

// CompileError represents a bytecode-compilation failure (local overflow,
// uninitialized-local read, local at global scope, jump too large, or an
// unimplemented construct such as `::`).
type CompileError struct {
	Position Position
	Message  string
}

// RuntimeError represents a VM trap: type mismatch, undefined global, bad
// index, frame/stack overflow, bad callee.
type RuntimeError struct {
	Message string
}

// Position is a plain copy of token.Position plus an optional filename, so
// this package does not need to import the lexer.
type Position struct {
	Line     int
	Column   int
	Filename string
}

func FromToken(p token.Position) Position {
	return Position{Line: p.Line, Column: p.Column}
}

func (e *SyntaxError) Error() string   { return e.Message }
func (e *SemanticError) Error() string { return e.Message }
func (e *CompileError) Error() string  { return e.Message }
func (e *RuntimeError) Error() string  { return e.Message }

func (e *SyntaxError) Write(w io.Writer) {
	writeHeader(w, "syntax error", e.Message, e.Position)
	writeSourceLine(w, e.Position, e.Line, e.Help)
}

func (e *SemanticError) Write(w io.Writer) {
	writeHeader(w, "type error", e.Message, e.Position)
}

func (e *CompileError) Write(w io.Writer) {
	writeHeader(w, "compile error", e.Message, e.Position)
}

func (e *RuntimeError) Write(w io.Writer) {
	errorLabel.Fprint(w, "runtime error: ")
	fmt.Fprintln(w, e.Message)
}

func writeHeader(w io.Writer, kind, message string, pos Position) {
	errorLabel.Fprintf(w, "%s: ", kind)
	fmt.Fprintln(w, message)
	filename := pos.Filename
	if filename == "" {
		filename = "source"
	}
	locLabel.Fprintf(w, "  --> %s:%d:%d\n", filename, pos.Line, pos.Column)
}

func writeSourceLine(w io.Writer, pos Position, line, help string) {
	if line == "" {
		return
	}
	fmt.Fprintf(w, "   | %s\n", line)
	if help == "" {
		return
	}
	fmt.Fprint(w, "   | ")
	for i := 0; i < pos.Column-1; i++ {
		fmt.Fprint(w, " ")
	}
	caretColor.Fprintf(w, "^ %s\n", help)
}
