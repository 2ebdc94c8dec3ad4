package vm

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// maxConstants is the constant pool's single-byte index bound (§3).
const maxConstants = 256

// Chunk is a flat bytecode program: a byte-code stream, its constant
// pool, and a parallel line-number table for diagnostics (§3).
//
// Grounded on the instruction/constant pairing in targets/vm/function.go,
// collapsed from chlang's separate VMInstruction struct slice into a flat
// byte stream plus constants, per §4.3's "single-byte opcodes, byte-sized
// operands" encoding.
type Chunk struct {
	Code      []byte
	Constants []Value
	Lines     []int
}

// Write appends a single instruction byte tagged with the source line it
// was compiled from, and returns its offset (used by backpatching).
func (c *Chunk) Write(b byte, line int) int {
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, line)
	return len(c.Code) - 1
}

// WriteOpcode appends an opcode byte.
func (c *Chunk) WriteOpcode(op Opcode, line int) int {
	return c.Write(byte(op), line)
}

// AddConstant appends value to the constant pool (without deduplication)
// and returns its byte index, or -1 if the pool is already full (§5 "exceeding any [bound]
// is a fatal panic" — the compiler turns -1 into a CompileError).
func (c *Chunk) AddConstant(value Value) int {
	if len(c.Constants) >= maxConstants {
		return -1
	}
	c.Constants = append(c.Constants, value)
	return len(c.Constants) - 1
}

// PatchJump overwrites the two-byte placeholder at offset with the
// distance from just after the placeholder to the chunk's current end,
// big-endian, per §4.3's backpatching contract.
func (c *Chunk) PatchJump(offset int) bool {
	jump := len(c.Code) - offset - 2
	if jump > 0xFFFF {
		return false
	}
	binary.BigEndian.PutUint16(c.Code[offset:offset+2], uint16(jump))
	return true
}

// WriteLoop emits a LOOP instruction jumping back to loopStart.
func (c *Chunk) WriteLoop(loopStart int, line int) bool {
	c.WriteOpcode(OpLoop, line)
	offset := len(c.Code) - loopStart + 2
	if offset > 0xFFFF {
		return false
	}
	c.Write(byte(offset>>8), line)
	c.Write(byte(offset), line)
	return true
}

// WriteJumpPlaceholder emits opcode followed by a 0xFFFF placeholder and
// returns the offset of the first placeholder byte, to be patched later
// with PatchJump.
func (c *Chunk) WriteJumpPlaceholder(op Opcode, line int) int {
	c.WriteOpcode(op, line)
	c.Write(0xFF, line)
	c.Write(0xFF, line)
	return len(c.Code) - 2
}

// byteOperandOps are the opcodes whose single operand byte is a constant
// pool or local-slot index, printed inline by Disassemble.
var byteOperandOps = map[Opcode]bool{
	OpConstant:   true,
	OpSetGlobal:  true,
	OpGetGlobal:  true,
	OpSetLocal:   true,
	OpGetLocal:   true,
	OpCall:       true,
	OpBuildArray: true,
}

// jumpOperandOps are the opcodes whose two-byte operand is a relative
// offset into Code, written big-endian by WriteJumpPlaceholder/WriteLoop.
var jumpOperandOps = map[Opcode]bool{
	OpJump:        true,
	OpJumpIfFalse: true,
	OpLoop:        true,
}

// Disassemble renders a chunk's instructions for `--dump-bytecode`,
// one line per instruction, annotated with source line and operand.
// Grounded on rami3l/golox's Chunk.Disassemble, called from its compiler
// under logrus.Debugln the same way cmd/vela gates it behind a flag.
func (c *Chunk) Disassemble(name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "== %s ==\n", name)
	for offset := 0; offset < len(c.Code); {
		offset = c.disassembleInstruction(&b, offset)
	}
	return b.String()
}

func (c *Chunk) disassembleInstruction(b *strings.Builder, offset int) int {
	op := Opcode(c.Code[offset])
	fmt.Fprintf(b, "%04d %4d %s", offset, c.Lines[offset], op)
	switch {
	case byteOperandOps[op]:
		operand := c.Code[offset+1]
		if op == OpConstant || op == OpSetGlobal || op == OpGetGlobal {
			fmt.Fprintf(b, " %d (%s)\n", operand, c.Constants[operand])
		} else {
			fmt.Fprintf(b, " %d\n", operand)
		}
		return offset + 2
	case jumpOperandOps[op]:
		jump := binary.BigEndian.Uint16(c.Code[offset+1 : offset+3])
		fmt.Fprintf(b, " -> %d\n", offset+3+int(jump)*sign(op))
		return offset + 3
	default:
		fmt.Fprintln(b)
		return offset + 1
	}
}

// sign reports the direction OpLoop's offset is applied in, so the
// disassembler prints the actual jump target rather than a raw delta.
func sign(op Opcode) int {
	if op == OpLoop {
		return -1
	}
	return 1
}
