// Package compiler is a single-pass Pratt parser that emits bytecode
// directly into a chunk.Chunk as it consumes tokens from a scanner —
// there is no AST intermediate. Opcode emission, jump patching, and
// local-slot numbering are decided here and consumed by internal/vm.
package compiler

import (
	"fmt"
	"io"
	"strconv"

	"loxvm/internal/chunk"
	"loxvm/internal/scanner"
	"loxvm/internal/table"
	"loxvm/internal/token"
	"loxvm/internal/value"
)

// maxLocals bounds the compile-time locals array; it is also the
// number of slots (0..255) a one-byte OP_GET_LOCAL/OP_SET_LOCAL operand
// can address.
const maxLocals = 256

// local is a compile-time record for a lexical local variable. Depth
// is -1 between declaration and definition ("uninitialized"); slot
// index equals position in the locals slice and is the runtime stack
// slot the compiler's emitted code keeps in lock-step with.
type local struct {
	name  string
	depth int
}

type compiler struct {
	scanner *scanner.Scanner
	strings *table.Table
	out     io.Writer

	current  token.Token
	previous token.Token

	hadError  bool
	panicMode bool

	chunk      *chunk.Chunk
	locals     []local
	scopeDepth int
}

// Compile compiles source into a fresh chunk. strings is the VM's
// intern table, shared across every compile so that string constants
// and global names are interned consistently for the VM's lifetime.
// The returned bool is true iff compilation succeeded (no errors were
// reported); on failure the chunk is not meant to be executed.
func Compile(source string, strings *table.Table, out io.Writer) (*chunk.Chunk, bool) {
	c := &compiler{
		scanner: scanner.New(source),
		strings: strings,
		out:     out,
		chunk:   chunk.New(),
	}

	c.advance()
	for !c.match(token.EOF) {
		c.declaration()
	}
	c.endCompiler()
	return c.chunk, !c.hadError
}

// ---- token stream -------------------------------------------------

func (c *compiler) advance() {
	c.previous = c.current
	for {
		c.current = c.scanner.ScanToken()
		if c.current.Kind != token.Error {
			break
		}
		c.errorAtCurrent(c.current.Lexeme)
	}
}

func (c *compiler) check(kind token.Kind) bool {
	return c.current.Kind == kind
}

func (c *compiler) match(kind token.Kind) bool {
	if !c.check(kind) {
		return false
	}
	c.advance()
	return true
}

func (c *compiler) consume(kind token.Kind, message string) {
	if c.current.Kind == kind {
		c.advance()
		return
	}
	c.errorAtCurrent(message)
}

// ---- error reporting / panic mode ----------------------------------

func (c *compiler) errorAtCurrent(message string) {
	c.errorAt(c.current, message)
}

func (c *compiler) error(message string) {
	c.errorAt(c.previous, message)
}

func (c *compiler) errorAt(tok token.Token, message string) {
	if c.panicMode {
		return
	}
	c.panicMode = true
	c.hadError = true

	fmt.Fprintf(c.out, "[line %d] Error", tok.Line)
	switch tok.Kind {
	case token.EOF:
		fmt.Fprint(c.out, " at end")
	case token.Error:
		// lexeme already is the diagnostic; nothing to quote.
	default:
		fmt.Fprintf(c.out, " at '%s'", tok.Lexeme)
	}
	fmt.Fprintf(c.out, ": %s\n", message)
}

// synchronize consumes tokens until a statement boundary, so a single
// syntax error doesn't cascade into a wall of spurious ones.
func (c *compiler) synchronize() {
	c.panicMode = false

	for c.current.Kind != token.EOF {
		if c.previous.Kind == token.Semicolon {
			return
		}
		switch c.current.Kind {
		case token.Class, token.Fun, token.Var, token.For,
			token.If, token.While, token.Print, token.Return:
			return
		}
		c.advance()
	}
}

// ---- emission -------------------------------------------------------

func (c *compiler) emitByte(b byte) {
	c.chunk.WriteByte(b, c.previous.Line)
}

func (c *compiler) emitOp(op chunk.OpCode) {
	c.emitByte(byte(op))
}

func (c *compiler) emitBytes(b1, b2 byte) {
	c.emitByte(b1)
	c.emitByte(b2)
}

func (c *compiler) emitOpByte(op chunk.OpCode, operand byte) {
	c.emitBytes(byte(op), operand)
}

func (c *compiler) emitReturn() {
	c.emitOp(chunk.OpReturn)
}

func (c *compiler) endCompiler() {
	c.emitReturn()
}

// makeConstant appends v to the constant pool and returns its index,
// failing compilation if the pool has grown past what a one-byte
// index can address.
func (c *compiler) makeConstant(v value.Value) byte {
	index := c.chunk.AddConstant(v)
	if index > 255 {
		c.error("Too many constants in one chunk.")
		return 0
	}
	return byte(index)
}

func (c *compiler) emitConstant(v value.Value) {
	c.emitOpByte(chunk.OpConstant, c.makeConstant(v))
}

// emitJump emits a jump opcode followed by a two-byte placeholder and
// returns the offset of the first placeholder byte, for patchJump to
// fill in once the target is known.
func (c *compiler) emitJump(op chunk.OpCode) int {
	c.emitOp(op)
	c.emitByte(0xff)
	c.emitByte(0xff)
	return c.chunk.Size() - 2
}

func (c *compiler) patchJump(offset int) {
	jump := c.chunk.Size() - offset - 2
	if jump > 65535 {
		c.error("Too much code to jump over.")
		return
	}
	c.chunk.WriteByteAt(offset, byte(jump>>8))
	c.chunk.WriteByteAt(offset+1, byte(jump&0xff))
}

// emitLoop writes OP_LOOP followed by the backward distance to
// loopStart.
func (c *compiler) emitLoop(loopStart int) {
	c.emitOp(chunk.OpLoop)

	offset := c.chunk.Size() - loopStart + 2
	if offset > 65535 {
		c.error("Loop body too large.")
		return
	}
	c.emitByte(byte(offset >> 8))
	c.emitByte(byte(offset & 0xff))
}

// ---- interning --------------------------------------------------------

func (c *compiler) internString(text string) *value.Str {
	hash := table.HashString(text)
	if existing := c.strings.FindString(text, hash); existing != nil {
		return existing
	}
	str := &value.Str{Text: text, Hash: hash}
	c.strings.Set(str, value.Nil)
	return str
}

// ---- scopes and locals ------------------------------------------------

func (c *compiler) beginScope() {
	c.scopeDepth++
}

func (c *compiler) endScope() {
	c.scopeDepth--
	for len(c.locals) > 0 && c.locals[len(c.locals)-1].depth > c.scopeDepth {
		c.emitOp(chunk.OpPop)
		c.locals = c.locals[:len(c.locals)-1]
	}
}

func (c *compiler) addLocal(name string) {
	if len(c.locals) >= maxLocals {
		c.error("Too many local variables in function.")
		return
	}
	c.locals = append(c.locals, local{name: name, depth: -1})
}

func (c *compiler) markInitialized() {
	c.locals[len(c.locals)-1].depth = c.scopeDepth
}

// resolveLocal scans the locals slice top-down for name, returning its
// slot or -1 if it isn't a local (in which case it must be global).
func (c *compiler) resolveLocal(name string) int {
	for i := len(c.locals) - 1; i >= 0; i-- {
		if c.locals[i].name == name {
			if c.locals[i].depth == -1 {
				c.error("Can't read local variable in its own initializer.")
			}
			return i
		}
	}
	return -1
}

// declareVariable registers previous (an identifier token) as a new
// local in the current scope; it is a no-op at global scope, where
// variables live in the globals table instead.
func (c *compiler) declareVariable() {
	if c.scopeDepth == 0 {
		return
	}
	name := c.previous.Lexeme
	for i := len(c.locals) - 1; i >= 0; i-- {
		if c.locals[i].depth != -1 && c.locals[i].depth < c.scopeDepth {
			break
		}
		if c.locals[i].name == name {
			c.error("Already a variable with this name in this scope.")
		}
	}
	c.addLocal(name)
}

// parseVariable consumes an identifier, declares it, and — for a
// global — interns its name into the constant pool, returning the
// constant index defineVariable needs for OP_DEFINE_GLOBAL.
func (c *compiler) parseVariable(message string) byte {
	c.consume(token.Identifier, message)
	c.declareVariable()
	if c.scopeDepth > 0 {
		return 0
	}
	return c.identifierConstant(c.previous.Lexeme)
}

func (c *compiler) identifierConstant(name string) byte {
	return c.makeConstant(value.NewString(c.internString(name)))
}

func (c *compiler) defineVariable(global byte) {
	if c.scopeDepth > 0 {
		c.markInitialized()
		return
	}
	c.emitOpByte(chunk.OpDefineGlobal, global)
}

// ---- declarations and statements --------------------------------------

func (c *compiler) declaration() {
	switch {
	case c.match(token.Var):
		c.varDeclaration()
	default:
		c.statement()
	}
	if c.panicMode {
		c.synchronize()
	}
}

func (c *compiler) varDeclaration() {
	global := c.parseVariable("Expect variable name.")

	if c.match(token.Equal) {
		c.expression()
	} else {
		c.emitOp(chunk.OpNil)
	}
	c.consume(token.Semicolon, "Expect ';' after variable declaration.")

	c.defineVariable(global)
}

func (c *compiler) statement() {
	switch {
	case c.match(token.Print):
		c.printStatement()
	case c.match(token.If):
		c.ifStatement()
	case c.match(token.While):
		c.whileStatement()
	case c.match(token.For):
		c.forStatement()
	case c.match(token.LeftBrace):
		c.beginScope()
		c.block()
		c.endScope()
	default:
		c.expressionStatement()
	}
}

func (c *compiler) printStatement() {
	c.expression()
	c.consume(token.Semicolon, "Expect ';' after value.")
	c.emitOp(chunk.OpPrint)
}

func (c *compiler) expressionStatement() {
	c.expression()
	c.consume(token.Semicolon, "Expect ';' after expression.")
	c.emitOp(chunk.OpPop)
}

func (c *compiler) block() {
	for !c.check(token.RightBrace) && !c.check(token.EOF) {
		c.declaration()
	}
	c.consume(token.RightBrace, "Expect '}' after block.")
}

func (c *compiler) ifStatement() {
	c.consume(token.LeftParen, "Expect '(' after 'if'.")
	c.expression()
	c.consume(token.RightParen, "Expect ')' after condition.")

	thenJump := c.emitJump(chunk.OpJumpIfFalse)
	c.emitOp(chunk.OpPop)
	c.statement()

	elseJump := c.emitJump(chunk.OpJump)
	c.patchJump(thenJump)
	c.emitOp(chunk.OpPop)

	if c.match(token.Else) {
		c.statement()
	}
	c.patchJump(elseJump)
}

func (c *compiler) whileStatement() {
	loopStart := c.chunk.Size()
	c.consume(token.LeftParen, "Expect '(' after 'while'.")
	c.expression()
	c.consume(token.RightParen, "Expect ')' after condition.")

	exitJump := c.emitJump(chunk.OpJumpIfFalse)
	c.emitOp(chunk.OpPop)
	c.statement()
	c.emitLoop(loopStart)

	c.patchJump(exitJump)
	c.emitOp(chunk.OpPop)
}

func (c *compiler) forStatement() {
	c.beginScope()
	c.consume(token.LeftParen, "Expect '(' after 'for'.")

	switch {
	case c.match(token.Semicolon):
		// no initializer
	case c.match(token.Var):
		c.varDeclaration()
	default:
		c.expressionStatement()
	}

	loopStart := c.chunk.Size()
	exitJump := -1
	if !c.match(token.Semicolon) {
		c.expression()
		c.consume(token.Semicolon, "Expect ';' after loop condition.")

		exitJump = c.emitJump(chunk.OpJumpIfFalse)
		c.emitOp(chunk.OpPop)
	}

	if !c.match(token.RightParen) {
		bodyJump := c.emitJump(chunk.OpJump)

		incrementStart := c.chunk.Size()
		c.expression()
		c.emitOp(chunk.OpPop)
		c.consume(token.RightParen, "Expect ')' after for clauses.")

		c.emitLoop(loopStart)
		loopStart = incrementStart
		c.patchJump(bodyJump)
	}

	c.statement()
	c.emitLoop(loopStart)

	if exitJump != -1 {
		c.patchJump(exitJump)
		c.emitOp(chunk.OpPop)
	}

	c.endScope()
}

// ---- expressions --------------------------------------------------------

func (c *compiler) expression() {
	c.parsePrecedence(PrecAssignment)
}

// parsePrecedence is the Pratt driver: consume a prefix expression at
// or above the requested precedence, then keep folding in infix
// operators whose precedence is at least as high.
func (c *compiler) parsePrecedence(prec Precedence) {
	c.advance()
	rule, ok := rules[c.previous.Kind]
	if !ok || rule.prefix == nil {
		c.error("Expect expression.")
		return
	}

	canAssign := prec <= PrecAssignment
	rule.prefix(c, canAssign)

	for {
		nextRule, ok := rules[c.current.Kind]
		if !ok || nextRule.precedence < prec {
			break
		}
		c.advance()
		infixRule := rules[c.previous.Kind]
		infixRule.infix(c, canAssign)
	}

	if canAssign && c.match(token.Equal) {
		c.error("Invalid assignment target.")
	}
}

func grouping(c *compiler, canAssign bool) {
	c.expression()
	c.consume(token.RightParen, "Expect ')' after expression.")
}

func number(c *compiler, canAssign bool) {
	n, err := strconv.ParseFloat(c.previous.Lexeme, 64)
	if err != nil {
		c.error("Invalid number literal.")
		return
	}
	c.emitConstant(value.NewNumber(n))
}

func stringLiteral(c *compiler, canAssign bool) {
	// Strip the surrounding quotes.
	text := c.previous.Lexeme[1 : len(c.previous.Lexeme)-1]
	c.emitConstant(value.NewString(c.internString(text)))
}

func literal(c *compiler, canAssign bool) {
	switch c.previous.Kind {
	case token.False:
		c.emitOp(chunk.OpFalse)
	case token.True:
		c.emitOp(chunk.OpTrue)
	case token.Nil:
		c.emitOp(chunk.OpNil)
	}
}

func unary(c *compiler, canAssign bool) {
	operator := c.previous.Kind
	c.parsePrecedence(PrecUnary)
	switch operator {
	case token.Minus:
		c.emitOp(chunk.OpNegate)
	case token.Bang:
		c.emitOp(chunk.OpNot)
	}
}

func binary(c *compiler, canAssign bool) {
	operator := c.previous.Kind
	rule := rules[operator]
	c.parsePrecedence(rule.precedence + 1)

	switch operator {
	case token.Plus:
		c.emitOp(chunk.OpAdd)
	case token.Minus:
		c.emitOp(chunk.OpSubtract)
	case token.Star:
		c.emitOp(chunk.OpMultiply)
	case token.Slash:
		c.emitOp(chunk.OpDivide)
	case token.EqualEqual:
		c.emitOp(chunk.OpEqual)
	case token.BangEqual:
		c.emitBytes(byte(chunk.OpEqual), byte(chunk.OpNot))
	case token.Less:
		c.emitOp(chunk.OpLess)
	case token.Greater:
		c.emitOp(chunk.OpGreater)
	case token.LessEqual:
		c.emitBytes(byte(chunk.OpGreater), byte(chunk.OpNot))
	case token.GreaterEqual:
		c.emitBytes(byte(chunk.OpLess), byte(chunk.OpNot))
	}
}

// and_ implements short-circuit `and`: the left operand is already on
// the stack; if it's falsey, skip the right operand entirely.
func and_(c *compiler, canAssign bool) {
	endJump := c.emitJump(chunk.OpJumpIfFalse)
	c.emitOp(chunk.OpPop)
	c.parsePrecedence(PrecAnd)
	c.patchJump(endJump)
}

// or_ implements short-circuit `or`: if the left operand is truthy,
// skip straight past the right operand.
func or_(c *compiler, canAssign bool) {
	elseJump := c.emitJump(chunk.OpJumpIfFalse)
	endJump := c.emitJump(chunk.OpJump)

	c.patchJump(elseJump)
	c.emitOp(chunk.OpPop)

	c.parsePrecedence(PrecOr)
	c.patchJump(endJump)
}

func variable(c *compiler, canAssign bool) {
	c.namedVariable(c.previous.Lexeme, canAssign)
}

func (c *compiler) namedVariable(name string, canAssign bool) {
	var getOp, setOp chunk.OpCode
	arg := c.resolveLocal(name)
	if arg != -1 {
		getOp, setOp = chunk.OpGetLocal, chunk.OpSetLocal
	} else {
		arg = int(c.identifierConstant(name))
		getOp, setOp = chunk.OpGetGlobal, chunk.OpSetGlobal
	}

	if canAssign && c.match(token.Equal) {
		c.expression()
		c.emitOpByte(setOp, byte(arg))
	} else {
		c.emitOpByte(getOp, byte(arg))
	}
}
