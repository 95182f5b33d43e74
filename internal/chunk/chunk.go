// Package chunk is the bytecode container the compiler writes and the
// VM reads: an instruction stream, a parallel line map, and a constant
// pool.
package chunk

import "loxvm/internal/value"

// OpCode is a single bytecode instruction.
type OpCode byte

const (
	OpConstant OpCode = iota
	OpNil
	OpTrue
	OpFalse
	OpPop
	OpGetLocal
	OpSetLocal
	OpGetGlobal
	OpDefineGlobal
	OpSetGlobal
	OpEqual
	OpGreater
	OpLess
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpNot
	OpNegate
	OpPrint
	OpJump
	OpJumpIfFalse
	OpLoop
	OpReturn
)

var opNames = map[OpCode]string{
	OpConstant: "OP_CONSTANT", OpNil: "OP_NIL", OpTrue: "OP_TRUE", OpFalse: "OP_FALSE",
	OpPop: "OP_POP", OpGetLocal: "OP_GET_LOCAL", OpSetLocal: "OP_SET_LOCAL",
	OpGetGlobal: "OP_GET_GLOBAL", OpDefineGlobal: "OP_DEFINE_GLOBAL", OpSetGlobal: "OP_SET_GLOBAL",
	OpEqual: "OP_EQUAL", OpGreater: "OP_GREATER", OpLess: "OP_LESS",
	OpAdd: "OP_ADD", OpSubtract: "OP_SUBTRACT", OpMultiply: "OP_MULTIPLY", OpDivide: "OP_DIVIDE",
	OpNot: "OP_NOT", OpNegate: "OP_NEGATE", OpPrint: "OP_PRINT",
	OpJump: "OP_JUMP", OpJumpIfFalse: "OP_JUMP_IF_FALSE", OpLoop: "OP_LOOP",
	OpReturn: "OP_RETURN",
}

func (op OpCode) String() string {
	if n, ok := opNames[op]; ok {
		return n
	}
	return "OP_UNKNOWN"
}

// MaxConstants is the largest constant-pool size a one-byte index can
// address.
const MaxConstants = 256

// Chunk is an append-only bytecode unit: Code and Lines are always the
// same length, and every jump/constant/local operand is valid by
// construction (the compiler guarantees this; the VM treats a Chunk as
// read-only).
type Chunk struct {
	Code      []byte
	Lines     []int
	Constants []value.Value
}

// New returns an empty chunk.
func New() *Chunk {
	return &Chunk{}
}

// WriteByte appends one byte of code, attributing it to source line.
func (c *Chunk) WriteByte(b byte, line int) {
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, line)
}

// WriteByteAt overwrites the byte at offset, used to patch a jump
// placeholder after the jump target is known.
func (c *Chunk) WriteByteAt(offset int, b byte) {
	c.Code[offset] = b
}

// AddConstant appends v to the constant pool and returns its index.
// Constants are never deduplicated.
func (c *Chunk) AddConstant(v value.Value) int {
	c.Constants = append(c.Constants, v)
	return len(c.Constants) - 1
}

// Size returns the number of bytes of code written so far.
func (c *Chunk) Size() int {
	return len(c.Code)
}
