// Command vela is the language's CLI entry point: `run` compiles and
// executes a file, `build` checks and compiles it without running,
// `repl` starts an interactive session.
//
// Grounded on chlang's main.go as a thin entry point delegating to the
// library packages, restructured around cobra subcommands the way
// rami3l/golox, CWBudde/go-dws, and SchoolyB/EZ structure their compiler
// CLIs, rather than chlang's single flat main with no subcommands.
package main

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vela-lang/vela/ast"
	"github.com/vela-lang/vela/checker"
	compilerErrors "github.com/vela-lang/vela/errors"
	"github.com/vela-lang/vela/compiler"
	"github.com/vela-lang/vela/internal/repl"
	"github.com/vela-lang/vela/lexer"
	"github.com/vela-lang/vela/parser"
	"github.com/vela-lang/vela/vm"
)

var (
	dumpAST      bool
	dumpBytecode bool
	debug        bool
)

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	root := &cobra.Command{
		Use:   "vela",
		Short: "vela is the compiler and VM for the vela language",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if debug {
				logrus.SetLevel(logrus.DebugLevel)
			}
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug-level logging")
	root.AddCommand(runCmd(), buildCmd(), replCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "compile and execute a source file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fn, err := compileFile(args[0])
			if err != nil || fn == nil {
				return err
			}
			machine := vm.New(fn)
			if _, err := machine.Run(); err != nil {
				reportDiagnostic(err)
				return err
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dumpBytecode, "dump-bytecode", false, "print the compiled bytecode instead of running it")
	return cmd
}

func buildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build <file>",
		Short: "type-check and compile a source file without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := compileFile(args[0])
			return err
		},
	}
	cmd.Flags().BoolVar(&dumpAST, "dump-ast", false, "print the parsed AST instead of compiling")
	cmd.Flags().BoolVar(&dumpBytecode, "dump-bytecode", false, "print the compiled bytecode instead of just checking it")
	return cmd
}

func replCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "start an interactive session",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := repl.New(os.Stdout)
			if err != nil {
				return err
			}
			return session.Run()
		},
	}
}

func compileFile(path string) (*vm.FunctionObject, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("vela: cannot read %s: %w", path, err)
	}

	file, err := parser.New(lexer.New(string(source))).ParseFile()
	if err != nil {
		reportDiagnostic(err)
		return nil, err
	}

	if dumpAST {
		fmt.Print(ast.Dump(file))
		return nil, nil
	}

	chk := checker.New()
	if err := chk.Check(file); err != nil {
		reportDiagnostic(err)
		return nil, err
	}
	if warnings := chk.Warnings(); warnings.ErrorOrNil() != nil {
		for _, w := range warnings.Errors {
			logrus.Warn(w)
		}
	}

	fn, err := compiler.Compile(file)
	if err != nil {
		reportDiagnostic(err)
		return nil, err
	}

	if dumpBytecode {
		fmt.Print(fn.Chunk.Disassemble(fn.Name))
		return nil, nil
	}
	return fn, nil
}

func reportDiagnostic(err error) {
	if merr, ok := err.(*multierror.Error); ok {
		for _, wrapped := range merr.WrappedErrors() {
			reportDiagnostic(wrapped)
		}
		return
	}
	if diag, ok := err.(compilerErrors.Diagnostic); ok {
		diag.Write(os.Stderr)
		return
	}
	logrus.WithError(err).Error("vela: unexpected error")
}
