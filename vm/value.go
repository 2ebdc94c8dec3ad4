package vm

import "fmt"

// ValueKind tags a Value's active variant.
type ValueKind uint8

const (
	ValueF64 ValueKind = iota
	ValueBoolean
	ValueObject
)

// Value is the VM's tagged-union runtime value, per §3: F64(f64) |
// Boolean(bool) | Object(Object). All numbers are widened to f64 at the
// VM level; the compiler is responsible for producing F64 constants from
// integer literals (§4.4 "Numeric model").
//
// Grounded on targets/vm/objects.go's OperandValue{Kind, Value any}, split
// here into a concrete struct with one field per variant instead of an
// `any` payload, since this VM's value set is closed and small.
type Value struct {
	Kind    ValueKind
	Number  float64
	Boolean bool
	Object  Object
}

func F64(n float64) Value  { return Value{Kind: ValueF64, Number: n} }
func Bool(b bool) Value    { return Value{Kind: ValueBoolean, Boolean: b} }
func Obj(obj Object) Value { return Value{Kind: ValueObject, Object: obj} }

func (v Value) String() string {
	switch v.Kind {
	case ValueF64:
		return fmt.Sprintf("%g", v.Number)
	case ValueBoolean:
		return fmt.Sprintf("%v", v.Boolean)
	case ValueObject:
		return v.Object.String()
	default:
		return "<invalid value>"
	}
}

// TypeName names a Value's kind for runtime-trap diagnostics.
func (v Value) TypeName() string {
	switch v.Kind {
	case ValueF64:
		return "number"
	case ValueBoolean:
		return "bool"
	case ValueObject:
		return v.Object.TypeName()
	default:
		return "invalid"
	}
}

// sameTag reports whether a and b carry the same runtime tag, used by
// EQUALS/NOT_EQUALS to trap on tag mismatch (§4.4).
func sameTag(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind == ValueObject {
		_, aIsString := a.Object.(*StringObject)
		_, bIsString := b.Object.(*StringObject)
		_, aIsArray := a.Object.(*ArrayObject)
		_, bIsArray := b.Object.(*ArrayObject)
		_, aIsFunction := a.Object.(*FunctionObject)
		_, bIsFunction := b.Object.(*FunctionObject)
		return (aIsString && bIsString) || (aIsArray && bIsArray) || (aIsFunction && bIsFunction)
	}
	return true
}

func valuesEqual(a, b Value) bool {
	switch a.Kind {
	case ValueF64:
		return a.Number == b.Number
	case ValueBoolean:
		return a.Boolean == b.Boolean
	case ValueObject:
		switch ao := a.Object.(type) {
		case *StringObject:
			bo := b.Object.(*StringObject)
			return ao.Value == bo.Value
		case *ArrayObject:
			bo := b.Object.(*ArrayObject)
			if len(ao.Elements) != len(bo.Elements) {
				return false
			}
			for i := range ao.Elements {
				if !valuesEqual(ao.Elements[i], bo.Elements[i]) {
					return false
				}
			}
			return true
		case *FunctionObject:
			return ao == b.Object.(*FunctionObject)
		}
	}
	return false
}

// Object is implemented by every heap-ish VM object variant: String,
// Array, Function (§3).
type Object interface {
	TypeName() string
	String() string
}

// StringObject is Object's String{length, value} variant.
type StringObject struct {
	Value string
}

func (s *StringObject) TypeName() string { return "string" }
func (s *StringObject) String() string   { return s.Value }

// ArrayObject is Object's Array{elements} variant.
type ArrayObject struct {
	Elements []Value
}

func (a *ArrayObject) TypeName() string { return "array" }
func (a *ArrayObject) String() string {
	s := "["
	for i, el := range a.Elements {
		if i > 0 {
			s += ", "
		}
		s += el.String()
	}
	return s + "]"
}

// FunctionObject is Object's Function{arity, chunk, name} variant — a
// compiled, callable unit of bytecode.
//
// Grounded on targets/vm/function.go's FunctionObject, trimmed to the
// fields a stack-machine callee actually needs (no locals/constants
// duplicated here — those live in Chunk, built once by the compiler and
// never mutated at run time).
type FunctionObject struct {
	Name   string
	Arity  int
	Chunk  *Chunk
}

func (f *FunctionObject) TypeName() string { return "function" }
func (f *FunctionObject) String() string {
	if f.Name == "" {
		return "<anonymous fn>"
	}
	return fmt.Sprintf("<fn %s>", f.Name)
}
