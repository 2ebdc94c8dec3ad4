package errors_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vela-lang/vela/errors"
	"github.com/vela-lang/vela/token"
)

func TestFromTokenCopiesLineAndColumn(t *testing.T) {
	pos := errors.FromToken(token.Position{Line: 3, Column: 7})
	assert.Equal(t, 3, pos.Line)
	assert.Equal(t, 7, pos.Column)
	assert.Empty(t, pos.Filename)
}

func TestErrorMessagesReturnTheirMessage(t *testing.T) {
	var diags []errors.Diagnostic = []errors.Diagnostic{
		&errors.SyntaxError{Message: "unexpected token"},
		&errors.SemanticError{Message: "type mismatch"},
		&errors.CompileError{Message: "local overflow"},
		&errors.RuntimeError{Message: "division by zero"},
	}
	want := []string{"unexpected token", "type mismatch", "local overflow", "division by zero"}
	for i, d := range diags {
		assert.Equal(t, want[i], d.Error())
	}
}

func TestWriteIncludesPositionAndMessage(t *testing.T) {
	err := &errors.SemanticError{
		Position: errors.Position{Line: 2, Column: 5},
		Message:  "undefined identifier \"x\"",
	}
	var buf bytes.Buffer
	err.Write(&buf)
	out := buf.String()
	assert.Contains(t, out, "undefined identifier")
	assert.Contains(t, out, "2:5")
}

func TestSyntaxErrorWriteIncludesSourceLineAndCaret(t *testing.T) {
	err := &errors.SyntaxError{
		Position: errors.Position{Line: 1, Column: 5},
		Line:     "let @ = 1;",
		Message:  "unexpected token",
		Help:     "expected an identifier",
	}
	var buf bytes.Buffer
	err.Write(&buf)
	out := buf.String()
	assert.Contains(t, out, "let @ = 1;")
	assert.Contains(t, out, "expected an identifier")
	assert.Contains(t, out, "^")
}

func TestRuntimeErrorWriteOmitsPosition(t *testing.T) {
	err := &errors.RuntimeError{Message: "operand stack overflow"}
	var buf bytes.Buffer
	err.Write(&buf)
	assert.Contains(t, buf.String(), "operand stack overflow")
	assert.NotContains(t, buf.String(), "-->")
}
