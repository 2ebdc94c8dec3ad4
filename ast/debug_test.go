package ast_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vela-lang/vela/ast"
	"github.com/vela-lang/vela/lexer"
	"github.com/vela-lang/vela/parser"
)

func TestDumpRendersNestedStructure(t *testing.T) {
	file, err := parser.New(lexer.New("let x = 1 + 2;")).ParseFile()
	assert.NoError(t, err)
	out := ast.Dump(file)
	assert.Contains(t, out, "Let x")
	assert.Contains(t, out, "Infix +")
	assert.Contains(t, out, "Number 1")
	assert.Contains(t, out, "Number 2")
}

func TestDumpRendersFunctionAndCall(t *testing.T) {
	file, err := parser.New(lexer.New("fn add(a: int, b: int) -> int { return a + b; }; add(1, 2);")).ParseFile()
	assert.NoError(t, err)
	out := ast.Dump(file)
	assert.Contains(t, out, "Function add")
	assert.Contains(t, out, "Call")
	assert.Contains(t, out, "Identifier add")
}
