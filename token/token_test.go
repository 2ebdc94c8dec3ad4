package token_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vela-lang/vela/token"
)

func TestLookupIdentifier(t *testing.T) {
	cases := []struct {
		literal string
		want    token.Kind
	}{
		{"let", token.LET},
		{"fn", token.FUNCTION},
		{"int", token.PRIMITIVE_TYPE},
		{"bool", token.PRIMITIVE_TYPE},
		{"void", token.PRIMITIVE_TYPE},
		{"return", token.RETURN},
		{"while", token.WHILE},
		{"break", token.BREAK},
		{"x", token.IDENTIFIER},
		{"result", token.IDENTIFIER},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, token.LookupIdentifier(c.literal), c.literal)
	}
}

func TestPrecedenceOfLadder(t *testing.T) {
	assert.Less(t, token.PrecedenceOf(token.ASSIGN), token.PrecedenceOf(token.OR))
	assert.Less(t, token.PrecedenceOf(token.OR), token.PrecedenceOf(token.AND))
	assert.Less(t, token.PrecedenceOf(token.AND), token.PrecedenceOf(token.EQUALS))
	assert.Less(t, token.PrecedenceOf(token.EQUALS), token.PrecedenceOf(token.LESS_THAN))
	assert.Less(t, token.PrecedenceOf(token.LESS_THAN), token.PrecedenceOf(token.PLUS))
	assert.Less(t, token.PrecedenceOf(token.PLUS), token.PrecedenceOf(token.ASTERISK))
	assert.Less(t, token.PrecedenceOf(token.ASTERISK), token.PrecedenceOf(token.DOUBLECOLON))
	assert.Less(t, token.PrecedenceOf(token.DOUBLECOLON), token.PrecedenceOf(token.LPAREN))
	assert.Equal(t, token.LOWEST, token.PrecedenceOf(token.SEMICOLON))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "fn", token.FUNCTION.String())
	assert.Equal(t, "+", token.PLUS.String())
	assert.Equal(t, "unknown", token.Kind(9999).String())
}
