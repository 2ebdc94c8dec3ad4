// Package repl implements an interactive read-eval-print loop: each line
// is lexed, parsed, checked, and compiled independently, but every line
// runs inside the same VM, so globals set by one line (a top-level `fn`)
// stay in the VM's globals map for later lines. Each line is type-checked
// by a fresh checker that knows nothing of earlier lines, so a call to a
// function declared on an earlier line is rejected as undefined.
//
// Grounded on cedrickchee-hou/repl/repl.go's loop shape (read a line,
// parse, report errors, evaluate, print the result) with the prompt/
// history layer swapped for readline, the way rami3l/golox wires its CLI
// prompt.
package repl

import (
	"errors"
	"fmt"
	"io"

	"github.com/chzyer/readline"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/vela-lang/vela/checker"
	compilerErrors "github.com/vela-lang/vela/errors"
	"github.com/vela-lang/vela/compiler"
	"github.com/vela-lang/vela/lexer"
	"github.com/vela-lang/vela/parser"
	"github.com/vela-lang/vela/vm"
)

const prompt = "vela> "

// REPL owns the readline instance and the single VM threaded across
// lines.
type REPL struct {
	rl  *readline.Instance
	vm  *vm.VM
	out io.Writer
}

// New creates a REPL writing results/diagnostics to out.
func New(out io.Writer) (*REPL, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     "/tmp/.vela_history",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("repl: %w", err)
	}
	return &REPL{rl: rl, out: out}, nil
}

// Run drives the loop until EOF or interrupt.
func (r *REPL) Run() error {
	defer r.rl.Close()
	for {
		line, err := r.rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if line == "" {
			continue
		}
		r.evalLine(line)
	}
}

func (r *REPL) evalLine(line string) {
	file, err := parser.New(lexer.New(line)).ParseFile()
	if err != nil {
		writeDiagnostic(r.out, err)
		return
	}
	chk := checker.New()
	if err := chk.Check(file); err != nil {
		writeDiagnostic(r.out, err)
		return
	}
	if warnings := chk.Warnings(); warnings.ErrorOrNil() != nil {
		for _, w := range warnings.Errors {
			logrus.Warn(w)
		}
	}
	fn, err := compiler.Compile(file)
	if err != nil {
		writeDiagnostic(r.out, err)
		return
	}

	machine := r.vm
	if machine == nil {
		machine = vm.New(fn)
		r.vm = machine
	} else {
		machine.LoadScript(fn)
	}

	if _, err := machine.Run(); err != nil {
		writeDiagnostic(r.out, err)
		return
	}
	fmt.Fprintln(r.out, machine.LastPopped())
}

func writeDiagnostic(out io.Writer, err error) {
	if merr, ok := err.(*multierror.Error); ok {
		for _, wrapped := range merr.WrappedErrors() {
			writeDiagnostic(out, wrapped)
		}
		return
	}
	if diag, ok := err.(compilerErrors.Diagnostic); ok {
		diag.Write(out)
		return
	}
	logrus.WithError(err).Error("unexpected REPL error")
}
