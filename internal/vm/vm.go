// Package vm implements the fetch-decode-execute loop that runs a
// compiled chunk.Chunk.
package vm

import (
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"

	"loxvm/internal/chunk"
	"loxvm/internal/table"
	"loxvm/internal/value"
)

// StackMax bounds the operand stack. The compiler bounds local count
// at 256, but a deeply nested expression could in principle push past
// that; VM.push checks this bound rather than silently corrupting
// memory.
const StackMax = 256

// VM is a stack-based bytecode interpreter. A VM owns its globals and
// string-intern tables for its whole lifetime, so a REPL session that
// reuses one VM across many compiles keeps its state (interned
// strings, global variables) from line to line.
type VM struct {
	chunk *chunk.Chunk
	ip    int

	stack    [StackMax]value.Value
	stackTop int

	globals *table.Table
	strings *table.Table

	out io.Writer

	// SessionID tags this VM instance for diagnostics (e.g. the REPL's
	// startup banner); it never participates in execution semantics.
	SessionID uuid.UUID
}

// New returns a VM that writes OP_PRINT output to os.Stdout.
func New() *VM {
	return NewWithWriter(os.Stdout)
}

// NewWithWriter returns a VM whose OP_PRINT output goes to out — tests
// pass a buffer here instead of redirecting the process's real stdout.
func NewWithWriter(out io.Writer) *VM {
	return &VM{
		globals:   table.New(),
		strings:   table.New(),
		out:       out,
		SessionID: uuid.New(),
	}
}

// Strings returns the VM's intern table, so a compiler can intern
// string and identifier constants consistently with the VM that will
// run them.
func (vm *VM) Strings() *table.Table {
	return vm.strings
}

// Interpret runs c to completion (OP_RETURN) or until a runtime error.
// The operand stack is reset before running; globals and the intern
// table persist across calls on the same VM.
func (vm *VM) Interpret(c *chunk.Chunk) error {
	vm.chunk = c
	vm.ip = 0
	vm.stackTop = 0
	return vm.run()
}

func (vm *VM) push(v value.Value) error {
	if vm.stackTop >= StackMax {
		return vm.runtimeError("Stack overflow.")
	}
	vm.stack[vm.stackTop] = v
	vm.stackTop++
	return nil
}

func (vm *VM) pop() value.Value {
	vm.stackTop--
	return vm.stack[vm.stackTop]
}

func (vm *VM) peek(distance int) value.Value {
	return vm.stack[vm.stackTop-1-distance]
}

func (vm *VM) readByte() byte {
	b := vm.chunk.Code[vm.ip]
	vm.ip++
	return b
}

func (vm *VM) readShort() uint16 {
	hi := vm.chunk.Code[vm.ip]
	lo := vm.chunk.Code[vm.ip+1]
	vm.ip += 2
	return uint16(hi)<<8 | uint16(lo)
}

func (vm *VM) readConstant() value.Value {
	return vm.chunk.Constants[vm.readByte()]
}

// runtimeError formats message with the current instruction's source
// line, matching the VM diagnostic shape of spec §4.6/§6.
func (vm *VM) runtimeError(format string, args ...interface{}) error {
	message := fmt.Sprintf(format, args...)
	line := 0
	if vm.ip > 0 && vm.ip <= len(vm.chunk.Lines) {
		line = vm.chunk.Lines[vm.ip-1]
	}
	return fmt.Errorf("%s\n[line %d] in script", message, line)
}

func (vm *VM) run() error {
	for {
		instruction := chunk.OpCode(vm.readByte())
		switch instruction {
		case chunk.OpConstant:
			if err := vm.push(vm.readConstant()); err != nil {
				return err
			}

		case chunk.OpNil:
			if err := vm.push(value.Nil); err != nil {
				return err
			}
		case chunk.OpTrue:
			if err := vm.push(value.NewBool(true)); err != nil {
				return err
			}
		case chunk.OpFalse:
			if err := vm.push(value.NewBool(false)); err != nil {
				return err
			}

		case chunk.OpPop:
			vm.pop()

		case chunk.OpGetLocal:
			slot := vm.readByte()
			if err := vm.push(vm.stack[slot]); err != nil {
				return err
			}
		case chunk.OpSetLocal:
			slot := vm.readByte()
			vm.stack[slot] = vm.peek(0)

		case chunk.OpGetGlobal:
			name := vm.readConstant()
			v, ok := vm.globals.Get(name.Str)
			if !ok {
				return vm.runtimeError("Undefined variable '%s'.", name.Str.Text)
			}
			if err := vm.push(v); err != nil {
				return err
			}
		case chunk.OpDefineGlobal:
			name := vm.readConstant()
			vm.globals.Set(name.Str, vm.peek(0))
			vm.pop()
		case chunk.OpSetGlobal:
			name := vm.readConstant()
			if vm.globals.Set(name.Str, vm.peek(0)) {
				// Assignment must not create a global: the Set above
				// inserted a fresh entry because the key was absent,
				// so undo it before reporting the error.
				vm.globals.Delete(name.Str)
				return vm.runtimeError("Undefined variable '%s'.", name.Str.Text)
			}

		case chunk.OpEqual:
			b := vm.pop()
			a := vm.pop()
			if err := vm.push(value.NewBool(value.Equal(a, b))); err != nil {
				return err
			}
		case chunk.OpGreater:
			if err := vm.binaryNumberOp(func(a, b float64) value.Value { return value.NewBool(a > b) }); err != nil {
				return err
			}
		case chunk.OpLess:
			if err := vm.binaryNumberOp(func(a, b float64) value.Value { return value.NewBool(a < b) }); err != nil {
				return err
			}

		case chunk.OpAdd:
			if err := vm.add(); err != nil {
				return err
			}
		case chunk.OpSubtract:
			if err := vm.binaryNumberOp(func(a, b float64) value.Value { return value.NewNumber(a - b) }); err != nil {
				return err
			}
		case chunk.OpMultiply:
			if err := vm.binaryNumberOp(func(a, b float64) value.Value { return value.NewNumber(a * b) }); err != nil {
				return err
			}
		case chunk.OpDivide:
			if err := vm.binaryNumberOp(func(a, b float64) value.Value { return value.NewNumber(a / b) }); err != nil {
				return err
			}

		case chunk.OpNot:
			if err := vm.push(value.NewBool(value.IsFalsey(vm.pop()))); err != nil {
				return err
			}
		case chunk.OpNegate:
			if vm.peek(0).Type != value.TypeNumber {
				return vm.runtimeError("Operand must be a number.")
			}
			vm.stack[vm.stackTop-1] = value.NewNumber(-vm.peek(0).Number)

		case chunk.OpPrint:
			fmt.Fprintln(vm.out, vm.pop().String())

		case chunk.OpJump:
			offset := vm.readShort()
			vm.ip += int(offset)
		case chunk.OpJumpIfFalse:
			offset := vm.readShort()
			if value.IsFalsey(vm.peek(0)) {
				vm.ip += int(offset)
			}
		case chunk.OpLoop:
			offset := vm.readShort()
			vm.ip -= int(offset)

		case chunk.OpReturn:
			return nil

		default:
			return vm.runtimeError("Unknown opcode %d.", instruction)
		}
	}
}

func (vm *VM) binaryNumberOp(op func(a, b float64) value.Value) error {
	if vm.peek(0).Type != value.TypeNumber || vm.peek(1).Type != value.TypeNumber {
		return vm.runtimeError("Operands must be numbers.")
	}
	b := vm.pop()
	a := vm.pop()
	return vm.push(op(a.Number, b.Number))
}

func (vm *VM) add() error {
	b := vm.peek(0)
	a := vm.peek(1)

	switch {
	case a.Type == value.TypeString && b.Type == value.TypeString:
		vm.pop()
		vm.pop()
		concatenated := a.Str.Text + b.Str.Text
		hash := table.HashString(concatenated)
		str := vm.strings.FindString(concatenated, hash)
		if str == nil {
			str = &value.Str{Text: concatenated, Hash: hash}
			vm.strings.Set(str, value.Nil)
		}
		return vm.push(value.NewString(str))
	case a.Type == value.TypeNumber && b.Type == value.TypeNumber:
		vm.pop()
		vm.pop()
		return vm.push(value.NewNumber(a.Number + b.Number))
	default:
		return vm.runtimeError("Operands must be two numbers or two strings.")
	}
}
