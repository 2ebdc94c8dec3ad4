// Package parser implements a Pratt (precedence-climbing) parser that
// turns a token stream into a *ast.File.
//
// The structure mirrors frontend/ast/parser.go from the teacher
// repository: a current/peek token pair, prefix/infix dispatch tables
// keyed by token kind, and best-effort error recovery — a malformed
// statement is recorded as an error and parsing continues with the next
// token, rather than aborting. Accumulated errors use
// hashicorp/go-multierror (grounded in rami3l/golox's Parser.errors field)
// in place of the teacher's plain []error slice.
package parser

import (
	"fmt"
	"strconv"

	"github.com/hashicorp/go-multierror"

	compilerErrors "github.com/vela-lang/vela/errors"
	"github.com/vela-lang/vela/lexer"
	"github.com/vela-lang/vela/token"

	"github.com/vela-lang/vela/ast"
)

type (
	prefixParseFn func() ast.Expression
	infixParseFn  func(left ast.Expression) ast.Expression
)

// Parser consumes a token stream from a *lexer.Lexer and produces an
// ast.File via recursive-descent/Pratt parsing. It never panics on
// well-formed input.
type Parser struct {
	lexer *lexer.Lexer

	current token.Token
	peek    token.Token

	errors *multierror.Error

	prefixParsers map[token.Kind]prefixParseFn
	infixParsers  map[token.Kind]infixParseFn
}

// New creates a Parser and primes current/peek.
func New(l *lexer.Lexer) *Parser {
	p := &Parser{lexer: l}

	p.prefixParsers = map[token.Kind]prefixParseFn{
		token.IDENTIFIER: p.parseIdentifier,
		token.NUMBER:     p.parseNumberLiteral,
		token.STRING:     p.parseStringLiteral,
		token.TRUE:       p.parseBooleanLiteral,
		token.FALSE:      p.parseBooleanLiteral,
		token.FUNCTION:   p.parseFunction,
		token.RETURN:     p.parseReturn,
		token.LPAREN:     p.parseGroupedExpression,
		token.LBRACE:     p.parseBlockExpression,
		token.IF:         p.parseIf,
		token.WHILE:      p.parseWhile,
		token.BREAK:      p.parseBreak,
		token.LBRACKET:   p.parseArrayLiteral,
		token.NOT:        p.parsePrefix,
		token.MINUS:      p.parsePrefix,
	}

	p.infixParsers = map[token.Kind]infixParseFn{
		token.PLUS:         p.parseInfix,
		token.MINUS:        p.parseInfix,
		token.ASTERISK:     p.parseInfix,
		token.SLASH:        p.parseInfix,
		token.EQUALS:       p.parseInfix,
		token.NOT_EQUALS:   p.parseInfix,
		token.LESS_THAN:    p.parseInfix,
		token.GREATER_THAN: p.parseInfix,
		token.AND:          p.parseInfix,
		token.OR:           p.parseInfix,
		token.ASSIGN:       p.parseAssign,
		token.DOUBLECOLON:  p.parseAccess,
		token.LPAREN:       p.parseCall,
		token.LBRACKET:     p.parseIndex,
	}

	p.nextToken()
	p.nextToken()
	return p
}

// Errors returns the accumulated parse errors, or nil if there were none.
func (p *Parser) Errors() error {
	if p.errors == nil {
		return nil
	}
	return p.errors.ErrorOrNil()
}

func (p *Parser) nextToken() {
	p.current = p.peek
	p.peek = p.lexer.Scan()
}

// ParseFile parses the entire token stream into an *ast.File. Errors
// accumulate in the Parser and are also returned (as a combined error) once
// parsing reaches EOF.
func (p *Parser) ParseFile() (*ast.File, error) {
	file := &ast.File{}
	for p.current.Kind != token.EOF {
		if p.current.Kind == token.ILLEGAL {
			p.addError(p.current.Position(), fmt.Sprintf("illegal token %q", p.current.Literal), "")
			p.nextToken()
			continue
		}
		before := p.current
		stmt := p.parseStatement()
		if stmt != nil {
			file.Statements = append(file.Statements, stmt)
		} else if p.current == before {
			// Nothing was consumed: skip the offending token.
			p.nextToken()
		}
	}
	return file, p.Errors()
}

func (p *Parser) parseStatement() ast.Statement {
	switch p.current.Kind {
	case token.LET:
		return p.parseLet()
	default:
		return p.parseExpressionStatement()
	}
}

func (p *Parser) parseLet() ast.Statement {
	start := p.current
	p.nextToken() // consume 'let'

	if p.current.Kind != token.IDENTIFIER {
		p.addError(p.current.Position(), "expected identifier after 'let'", "")
		return nil
	}
	ident := p.parseIdentifier().(*ast.Identifier)

	var annotation *ast.TypeAnnotation
	if p.current.Kind == token.COLON {
		p.nextToken()
		annotation = p.parseTypeAnnotation()
	}

	var value ast.Expression
	if p.current.Kind == token.ASSIGN {
		p.nextToken()
		value = p.parseExpression(token.LOWEST)
	}

	if !p.assertCurrent(token.SEMICOLON) {
		return nil
	}
	end := p.current
	p.nextToken()

	return &ast.Let{
		Node:       ast.Node{Token: start, Span: span(start, end)},
		Identifier: ident,
		Annotation: annotation,
		Expression: value,
	}
}

func (p *Parser) parseExpressionStatement() ast.Statement {
	start := p.current
	expr := p.parseExpression(token.LOWEST)
	if expr != nil && p.current.Kind == token.RBRACE {
		// A block's trailing expression may omit its semicolon (`{ x }`);
		// the closing brace is left for parseBlock to consume.
		return &ast.ExpressionStatement{
			Node:       ast.Node{Token: start, Span: span(start, p.current)},
			Expression: expr,
		}
	}
	if !p.assertCurrent(token.SEMICOLON) {
		return nil
	}
	end := p.current
	p.nextToken()
	return &ast.ExpressionStatement{
		Node:       ast.Node{Token: start, Span: span(start, end)},
		Expression: expr,
	}
}

func (p *Parser) parseTypeAnnotation() *ast.TypeAnnotation {
	start := p.current
	if p.current.Kind == token.LBRACKET {
		p.nextToken()
		element := p.parseTypeAnnotation()
		if !p.assertCurrent(token.RBRACKET) {
			return nil
		}
		p.nextToken()
		return &ast.TypeAnnotation{Node: ast.Node{Token: start}, Element: element}
	}
	if p.current.Kind != token.PRIMITIVE_TYPE {
		p.addError(p.current.Position(), fmt.Sprintf("expected a type, got %q", p.current.Literal), "")
		return nil
	}
	name := p.current.Literal
	p.nextToken()
	return &ast.TypeAnnotation{Node: ast.Node{Token: start}, Name: name}
}

// parseExpression is the Pratt core: parse a prefix expression, then fold
// in infix/postfix operators while the precedence of the current token (the
// one following the operand just parsed) exceeds minPrecedence.
func (p *Parser) parseExpression(minPrecedence int) ast.Expression {
	prefix, ok := p.prefixParsers[p.current.Kind]
	if !ok {
		p.addError(p.current.Position(), fmt.Sprintf("unexpected token %q, expected an expression", p.current.Literal), "no prefix parser registered")
		return nil
	}
	left := prefix()

	for p.current.Kind != token.SEMICOLON && minPrecedence < token.PrecedenceOf(p.current.Kind) {
		infix, ok := p.infixParsers[p.current.Kind]
		if !ok {
			return left
		}
		left = infix(left)
	}
	return left
}

func (p *Parser) parseIdentifier() ast.Expression {
	tok := p.current
	p.nextToken()
	return &ast.Identifier{Node: ast.Node{Token: tok}, Value: tok.Literal}
}

func (p *Parser) parseNumberLiteral() ast.Expression {
	tok := p.current
	value, err := strconv.ParseInt(tok.Literal, 10, 64)
	if err != nil {
		p.addError(tok.Position(), fmt.Sprintf("invalid integer literal %q", tok.Literal), "")
	}
	p.nextToken()
	return &ast.NumberLiteral{Node: ast.Node{Token: tok}, Value: value}
}

func (p *Parser) parseStringLiteral() ast.Expression {
	tok := p.current
	p.nextToken()
	return &ast.StringLiteral{Node: ast.Node{Token: tok}, Value: tok.Literal}
}

func (p *Parser) parseBooleanLiteral() ast.Expression {
	tok := p.current
	p.nextToken()
	return &ast.BooleanLiteral{Node: ast.Node{Token: tok}, Value: tok.Kind == token.TRUE}
}

func (p *Parser) parsePrefix() ast.Expression {
	tok := p.current
	op := p.current.Kind
	p.nextToken()
	right := p.parseExpression(token.PREFIX)
	return &ast.Prefix{Node: ast.Node{Token: tok}, Operator: op, Right: right}
}

func (p *Parser) parseInfix(left ast.Expression) ast.Expression {
	tok := p.current
	op := p.current.Kind
	precedence := token.PrecedenceOf(op)
	p.nextToken()
	right := p.parseExpression(precedence)
	return &ast.Infix{Node: ast.Node{Token: tok}, Operator: op, Left: left, Right: right}
}

// parseAssign requires its left-hand side to be an identifier; anything
// else surfaces a parser error instead of panicking.
func (p *Parser) parseAssign(left ast.Expression) ast.Expression {
	tok := p.current
	ident, ok := left.(*ast.Identifier)
	if !ok {
		p.addError(tok.Position(), "left-hand side of assignment must be an identifier", "")
	}
	p.nextToken()
	value := p.parseExpression(token.ASSIGNMENT - 1)
	return &ast.Assign{Node: ast.Node{Token: tok}, Name: ident, Value: value}
}

func (p *Parser) parseAccess(left ast.Expression) ast.Expression {
	tok := p.current
	p.nextToken()
	if p.current.Kind != token.IDENTIFIER {
		p.addError(p.current.Position(), "expected identifier after '::'", "")
		return left
	}
	right := p.parseIdentifier().(*ast.Identifier)
	return &ast.Access{Node: ast.Node{Token: tok}, Left: left, Right: right}
}

func (p *Parser) parseGroupedExpression() ast.Expression {
	p.nextToken() // consume '('
	expr := p.parseExpression(token.LOWEST)
	if !p.assertCurrent(token.RPAREN) {
		return expr
	}
	p.nextToken()
	return expr
}

func (p *Parser) parseBlockExpression() ast.Expression {
	return p.parseBlock()
}

func (p *Parser) parseBlock() *ast.Block {
	start := p.current
	if !p.assertCurrent(token.LBRACE) {
		return &ast.Block{Node: ast.Node{Token: start}}
	}
	p.nextToken()

	block := &ast.Block{Node: ast.Node{Token: start}}
	for p.current.Kind != token.RBRACE && p.current.Kind != token.EOF {
		before := p.current
		stmt := p.parseStatement()
		if stmt != nil {
			block.Statements = append(block.Statements, stmt)
		} else if p.current == before {
			// Nothing was consumed: skip the offending token.
			p.nextToken()
		}
	}
	if !p.assertCurrent(token.RBRACE) {
		return block
	}
	p.nextToken()
	return block
}

func (p *Parser) parseIf() ast.Expression {
	tok := p.current
	p.nextToken() // consume 'if'
	condition := p.parseExpression(token.LOWEST)
	consequence := p.parseBlock()

	ifExpr := &ast.If{Node: ast.Node{Token: tok}, Condition: condition, Consequence: consequence}
	if p.current.Kind == token.ELSE {
		p.nextToken()
		if p.current.Kind == token.IF {
			nested := p.parseIf().(*ast.If)
			ifExpr.Alternative = &ast.Block{
				Node:       nested.Node,
				Statements: []ast.Statement{&ast.ExpressionStatement{Node: nested.Node, Expression: nested}},
			}
		} else {
			ifExpr.Alternative = p.parseBlock()
		}
	}
	return ifExpr
}

func (p *Parser) parseWhile() ast.Expression {
	tok := p.current
	p.nextToken() // consume 'while'
	condition := p.parseExpression(token.LOWEST)
	body := p.parseBlock()
	return &ast.While{Node: ast.Node{Token: tok}, Condition: condition, Body: body}
}

func (p *Parser) parseBreak() ast.Expression {
	tok := p.current
	p.nextToken()
	return &ast.Break{Node: ast.Node{Token: tok}}
}

func (p *Parser) parseReturn() ast.Expression {
	tok := p.current
	p.nextToken() // consume 'return'
	if p.current.Kind == token.SEMICOLON || p.current.Kind == token.RBRACE {
		return &ast.Return{Node: ast.Node{Token: tok}}
	}
	value := p.parseExpression(token.LOWEST)
	return &ast.Return{Node: ast.Node{Token: tok}, Value: value}
}

func (p *Parser) parseArrayLiteral() ast.Expression {
	tok := p.current
	p.nextToken() // consume '['
	elements := p.parseExpressionList(token.RBRACKET)
	return &ast.Array{Node: ast.Node{Token: tok}, Elements: elements}
}

func (p *Parser) parseFunction() ast.Expression {
	tok := p.current
	p.nextToken() // consume 'fn'

	var ident *ast.Identifier
	if p.current.Kind == token.IDENTIFIER {
		ident = p.parseIdentifier().(*ast.Identifier)
	}

	if !p.assertCurrent(token.LPAREN) {
		return nil
	}
	p.nextToken()
	params := p.parseFunctionParameters()

	if !p.assertCurrent(token.RPAREN) {
		return nil
	}
	p.nextToken()

	var annotation *ast.TypeAnnotation
	if p.current.Kind == token.MINUS && p.peek.Kind == token.GREATER_THAN {
		p.nextToken()
		p.nextToken()
		annotation = p.parseTypeAnnotation()
	}

	body := p.parseBlock()
	return &ast.Function{
		Node:       ast.Node{Token: tok},
		Identifier: ident,
		Parameters: params,
		Annotation: annotation,
		Body:       body,
	}
}

func (p *Parser) parseFunctionParameters() []*ast.FunctionParameter {
	var params []*ast.FunctionParameter
	for p.current.Kind != token.RPAREN && p.current.Kind != token.EOF {
		if p.current.Kind != token.IDENTIFIER {
			p.addError(p.current.Position(), "expected parameter name", "")
			break
		}
		ident := p.parseIdentifier().(*ast.Identifier)
		if !p.assertCurrent(token.COLON) {
			break
		}
		p.nextToken()
		annotation := p.parseTypeAnnotation()
		params = append(params, &ast.FunctionParameter{Identifier: ident, Annotation: annotation})
		if p.current.Kind == token.COMMA {
			p.nextToken()
		}
	}
	return params
}

func (p *Parser) parseCall(left ast.Expression) ast.Expression {
	tok := p.current
	p.nextToken() // consume '('
	args := p.parseExpressionList(token.RPAREN)
	return &ast.Call{Node: ast.Node{Token: tok}, Function: left, Arguments: args}
}

func (p *Parser) parseIndex(left ast.Expression) ast.Expression {
	tok := p.current
	p.nextToken() // consume '['
	index := p.parseExpression(token.LOWEST)
	if !p.assertCurrent(token.RBRACKET) {
		return left
	}
	p.nextToken()
	return &ast.Index{Node: ast.Node{Token: tok}, Left: left, Index: index}
}

func (p *Parser) parseExpressionList(end token.Kind) []ast.Expression {
	var list []ast.Expression
	for p.current.Kind != end && p.current.Kind != token.EOF {
		list = append(list, p.parseExpression(token.LOWEST))
		if p.current.Kind == token.COMMA {
			p.nextToken()
		}
	}
	if !p.assertCurrent(end) {
		return list
	}
	p.nextToken()
	return list
}

// assertCurrent reports an error (without aborting) when the current token
// does not match kind; it never consumes the token.
func (p *Parser) assertCurrent(kind token.Kind) bool {
	if p.current.Kind == kind {
		return true
	}
	p.addError(p.current.Position(), fmt.Sprintf("expected %q, got %q", kind, p.current.Literal), "")
	return false
}

func (p *Parser) addError(pos token.Position, message, help string) {
	p.errors = multierror.Append(p.errors, &compilerErrors.SyntaxError{
		Position: compilerErrors.FromToken(pos),
		Line:     p.lexer.GetLine(pos.Line),
		Message:  message,
		Help:     help,
	})
}

func span(start, end token.Token) token.Span {
	return token.Span{Start: start.Position(), End: end.Position()}
}
