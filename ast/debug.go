package ast

import (
	"fmt"
	"strings"
)

// Dump renders a File as an indented tree, in the spirit of the teacher
// repository's frontend/ast/debug.go PrintTree, but trimmed to this
// grammar's node set.
func Dump(file *File) string {
	var b strings.Builder
	for _, stmt := range file.Statements {
		dumpStatement(&b, stmt, 0)
	}
	return b.String()
}

func indent(b *strings.Builder, level int) {
	b.WriteString(strings.Repeat("  ", level))
}

func dumpStatement(b *strings.Builder, stmt Statement, level int) {
	switch s := stmt.(type) {
	case *Let:
		indent(b, level)
		fmt.Fprintf(b, "Let %s\n", s.Identifier.Value)
		if s.Expression != nil {
			dumpExpression(b, s.Expression, level+1)
		}
	case *ExpressionStatement:
		dumpExpression(b, s.Expression, level)
	default:
		indent(b, level)
		fmt.Fprintf(b, "<unknown statement %T>\n", s)
	}
}

func dumpExpression(b *strings.Builder, expr Expression, level int) {
	indent(b, level)
	switch e := expr.(type) {
	case nil:
		b.WriteString("<nil>\n")
	case *Identifier:
		fmt.Fprintf(b, "Identifier %s\n", e.Value)
	case *NumberLiteral:
		fmt.Fprintf(b, "Number %d\n", e.Value)
	case *StringLiteral:
		fmt.Fprintf(b, "String %q\n", e.Value)
	case *BooleanLiteral:
		fmt.Fprintf(b, "Boolean %v\n", e.Value)
	case *Prefix:
		fmt.Fprintf(b, "Prefix %s\n", e.Operator)
		dumpExpression(b, e.Right, level+1)
	case *Infix:
		fmt.Fprintf(b, "Infix %s\n", e.Operator)
		dumpExpression(b, e.Left, level+1)
		dumpExpression(b, e.Right, level+1)
	case *Assign:
		fmt.Fprintf(b, "Assign %s\n", e.Name.Value)
		dumpExpression(b, e.Value, level+1)
	case *Array:
		fmt.Fprintf(b, "Array (%d elements)\n", len(e.Elements))
		for _, el := range e.Elements {
			dumpExpression(b, el, level+1)
		}
	case *Block:
		b.WriteString("Block\n")
		for _, stmt := range e.Statements {
			dumpStatement(b, stmt, level+1)
		}
	case *If:
		b.WriteString("If\n")
		dumpExpression(b, e.Condition, level+1)
		dumpExpression(b, e.Consequence, level+1)
		if e.Alternative != nil {
			dumpExpression(b, e.Alternative, level+1)
		}
	case *While:
		b.WriteString("While\n")
		dumpExpression(b, e.Condition, level+1)
		dumpExpression(b, e.Body, level+1)
	case *Break:
		b.WriteString("Break\n")
	case *Call:
		b.WriteString("Call\n")
		dumpExpression(b, e.Function, level+1)
		for _, arg := range e.Arguments {
			dumpExpression(b, arg, level+1)
		}
	case *Return:
		b.WriteString("Return\n")
		if e.Value != nil {
			dumpExpression(b, e.Value, level+1)
		}
	case *Index:
		b.WriteString("Index\n")
		dumpExpression(b, e.Left, level+1)
		dumpExpression(b, e.Index, level+1)
	case *Access:
		fmt.Fprintf(b, "Access ::%s\n", e.Right.Value)
		dumpExpression(b, e.Left, level+1)
	case *Function:
		name := "<anonymous>"
		if e.Identifier != nil {
			name = e.Identifier.Value
		}
		fmt.Fprintf(b, "Function %s\n", name)
		dumpExpression(b, e.Body, level+1)
	default:
		fmt.Fprintf(b, "<unknown expression %T>\n", e)
	}
}
