package vm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vela-lang/vela/vm"
)

// script builds a top-level FunctionObject by hand-assembling opcodes,
// used to exercise the dispatch loop directly without going through the
// compiler.
func script(build func(c *vm.Chunk)) *vm.FunctionObject {
	chunk := &vm.Chunk{}
	build(chunk)
	return &vm.FunctionObject{Name: "<script>", Chunk: chunk}
}

func TestConstantArithmeticAndPop(t *testing.T) {
	fn := script(func(c *vm.Chunk) {
		a := c.AddConstant(vm.F64(3))
		b := c.AddConstant(vm.F64(22))
		c.WriteOpcode(vm.OpConstant, 1)
		c.Write(byte(a), 1)
		c.WriteOpcode(vm.OpConstant, 1)
		c.Write(byte(b), 1)
		c.WriteOpcode(vm.OpAdd, 1)
		c.WriteOpcode(vm.OpPop, 1)
	})
	machine := vm.New(fn)
	_, err := machine.Run()
	require.NoError(t, err)
	assert.Equal(t, vm.F64(25), machine.LastPopped())
}

func TestGlobalRoundTrip(t *testing.T) {
	fn := script(func(c *vm.Chunk) {
		name := c.AddConstant(vm.Obj(&vm.StringObject{Value: "x"}))
		val := c.AddConstant(vm.F64(7))
		c.WriteOpcode(vm.OpConstant, 1)
		c.Write(byte(val), 1)
		c.WriteOpcode(vm.OpSetGlobal, 1)
		c.Write(byte(name), 1)
		c.WriteOpcode(vm.OpPop, 1)
		c.WriteOpcode(vm.OpGetGlobal, 1)
		c.Write(byte(name), 1)
		c.WriteOpcode(vm.OpPop, 1)
	})
	machine := vm.New(fn)
	_, err := machine.Run()
	require.NoError(t, err)
	assert.Equal(t, vm.F64(7), machine.LastPopped())
}

func TestUndefinedGlobalTraps(t *testing.T) {
	fn := script(func(c *vm.Chunk) {
		name := c.AddConstant(vm.Obj(&vm.StringObject{Value: "missing"}))
		c.WriteOpcode(vm.OpGetGlobal, 1)
		c.Write(byte(name), 1)
	})
	machine := vm.New(fn)
	_, err := machine.Run()
	assert.Error(t, err)
}

func TestJumpIfFalseRequiresBoolean(t *testing.T) {
	fn := script(func(c *vm.Chunk) {
		idx := c.AddConstant(vm.F64(1))
		c.WriteOpcode(vm.OpConstant, 1)
		c.Write(byte(idx), 1)
		off := c.WriteJumpPlaceholder(vm.OpJumpIfFalse, 1)
		c.PatchJump(off)
	})
	machine := vm.New(fn)
	_, err := machine.Run()
	assert.Error(t, err)
}

func TestDivisionByZeroTraps(t *testing.T) {
	fn := script(func(c *vm.Chunk) {
		a := c.AddConstant(vm.F64(1))
		b := c.AddConstant(vm.F64(0))
		c.WriteOpcode(vm.OpConstant, 1)
		c.Write(byte(a), 1)
		c.WriteOpcode(vm.OpConstant, 1)
		c.Write(byte(b), 1)
		c.WriteOpcode(vm.OpDivide, 1)
	})
	machine := vm.New(fn)
	_, err := machine.Run()
	assert.Error(t, err)
}

func TestEqualityAcrossMismatchedTagsTraps(t *testing.T) {
	fn := script(func(c *vm.Chunk) {
		n := c.AddConstant(vm.F64(1))
		c.WriteOpcode(vm.OpConstant, 1)
		c.Write(byte(n), 1)
		c.WriteOpcode(vm.OpTrue, 1)
		c.WriteOpcode(vm.OpEquals, 1)
	})
	machine := vm.New(fn)
	_, err := machine.Run()
	assert.Error(t, err)
}

func TestArrayIndexOutOfRangeTraps(t *testing.T) {
	fn := script(func(c *vm.Chunk) {
		e0 := c.AddConstant(vm.F64(10))
		idx := c.AddConstant(vm.F64(5))
		c.WriteOpcode(vm.OpConstant, 1)
		c.Write(byte(e0), 1)
		c.WriteOpcode(vm.OpBuildArray, 1)
		c.Write(1, 1)
		c.WriteOpcode(vm.OpConstant, 1)
		c.Write(byte(idx), 1)
		c.WriteOpcode(vm.OpIndexArray, 1)
	})
	machine := vm.New(fn)
	_, err := machine.Run()
	assert.Error(t, err)
}

func TestCallingNonFunctionTraps(t *testing.T) {
	fn := script(func(c *vm.Chunk) {
		n := c.AddConstant(vm.F64(1))
		c.WriteOpcode(vm.OpConstant, 1)
		c.Write(byte(n), 1)
		c.WriteOpcode(vm.OpCall, 1)
		c.Write(0, 1)
	})
	machine := vm.New(fn)
	_, err := machine.Run()
	assert.Error(t, err)
}

func TestCallArityMismatchTraps(t *testing.T) {
	callee := &vm.FunctionObject{Name: "f", Arity: 1, Chunk: &vm.Chunk{}}
	callee.Chunk.WriteOpcode(vm.OpFalse, 1)
	callee.Chunk.WriteOpcode(vm.OpReturn, 1)

	fn := script(func(c *vm.Chunk) {
		idx := c.AddConstant(vm.Obj(callee))
		c.WriteOpcode(vm.OpConstant, 1)
		c.Write(byte(idx), 1)
		c.WriteOpcode(vm.OpCall, 1)
		c.Write(0, 1)
	})
	machine := vm.New(fn)
	_, err := machine.Run()
	assert.Error(t, err)
}

func TestCallPushesAndPopsAFrame(t *testing.T) {
	callee := &vm.FunctionObject{Name: "double", Arity: 1, Chunk: &vm.Chunk{}}
	two := callee.Chunk.AddConstant(vm.F64(2))
	callee.Chunk.WriteOpcode(vm.OpGetLocal, 1)
	callee.Chunk.Write(0, 1)
	callee.Chunk.WriteOpcode(vm.OpConstant, 1)
	callee.Chunk.Write(byte(two), 1)
	callee.Chunk.WriteOpcode(vm.OpMultiply, 1)
	callee.Chunk.WriteOpcode(vm.OpReturn, 1)

	fn := script(func(c *vm.Chunk) {
		fnIdx := c.AddConstant(vm.Obj(callee))
		argIdx := c.AddConstant(vm.F64(21))
		c.WriteOpcode(vm.OpConstant, 1)
		c.Write(byte(fnIdx), 1)
		c.WriteOpcode(vm.OpConstant, 1)
		c.Write(byte(argIdx), 1)
		c.WriteOpcode(vm.OpCall, 1)
		c.Write(1, 1)
		c.WriteOpcode(vm.OpPop, 1)
	})
	machine := vm.New(fn)
	_, err := machine.Run()
	require.NoError(t, err)
	assert.Equal(t, vm.F64(42), machine.LastPopped())
}

func TestLoadScriptResetsStacksButKeepsGlobals(t *testing.T) {
	first := script(func(c *vm.Chunk) {
		name := c.AddConstant(vm.Obj(&vm.StringObject{Value: "x"}))
		val := c.AddConstant(vm.F64(5))
		c.WriteOpcode(vm.OpConstant, 1)
		c.Write(byte(val), 1)
		c.WriteOpcode(vm.OpSetGlobal, 1)
		c.Write(byte(name), 1)
		c.WriteOpcode(vm.OpPop, 1)
	})
	machine := vm.New(first)
	_, err := machine.Run()
	require.NoError(t, err)

	second := script(func(c *vm.Chunk) {
		name := c.AddConstant(vm.Obj(&vm.StringObject{Value: "x"}))
		c.WriteOpcode(vm.OpGetGlobal, 1)
		c.Write(byte(name), 1)
		c.WriteOpcode(vm.OpPop, 1)
	})
	machine.LoadScript(second)
	_, err = machine.Run()
	require.NoError(t, err)
	assert.Equal(t, vm.F64(5), machine.LastPopped())
}

func TestDisassembleAnnotatesConstantsAndJumps(t *testing.T) {
	fn := script(func(c *vm.Chunk) {
		idx := c.AddConstant(vm.F64(1))
		c.WriteOpcode(vm.OpConstant, 1)
		c.Write(byte(idx), 1)
		off := c.WriteJumpPlaceholder(vm.OpJumpIfFalse, 1)
		c.WriteOpcode(vm.OpPop, 2)
		c.PatchJump(off)
		c.WriteOpcode(vm.OpReturn, 3)
	})
	out := fn.Chunk.Disassemble("<script>")
	assert.Contains(t, out, "== <script> ==")
	assert.Contains(t, out, "CONSTANT")
	assert.Contains(t, out, "(1)")
	assert.Contains(t, out, "JUMP_IF_FALSE")
	assert.Contains(t, out, "RETURN")
}

func TestValueStringAndTypeName(t *testing.T) {
	assert.Equal(t, "25", vm.F64(25).String())
	assert.Equal(t, "true", vm.Bool(true).String())
	assert.Equal(t, "number", vm.F64(1).TypeName())
	assert.Equal(t, "bool", vm.Bool(true).TypeName())

	arr := vm.Obj(&vm.ArrayObject{Elements: []vm.Value{vm.F64(1), vm.F64(2)}})
	assert.Equal(t, "[1, 2]", arr.String())
	assert.Equal(t, "array", arr.TypeName())

	str := vm.Obj(&vm.StringObject{Value: "hi"})
	assert.Equal(t, "hi", str.String())
	assert.Equal(t, "string", str.TypeName())
}
