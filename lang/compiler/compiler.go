// Package compiler implements a single-pass Pratt parser that compiles
// source text directly to machine.Chunk bytecode, with no intervening AST
// (spec.md §4.2).
package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/mna/bryony/lang/machine"
	"github.com/mna/bryony/lang/scanner"
	"github.com/mna/bryony/lang/token"
)

// compileErrorFormat renders accumulated compile errors one per line, with
// no count header or bullets, matching spec.md §6's Stderr contract: each
// error stands alone as "[line L] Error[ at end| at 'lex']: message"
// (original_source's errorAt fprintf's each message the same way, with no
// wrapping).
func compileErrorFormat(errs []error) string {
	lines := make([]string, len(errs))
	for i, e := range errs {
		lines[i] = e.Error()
	}
	return strings.Join(lines, "\n")
}

// maxLocals and maxUpvalues bound a function's local/upvalue slots to what
// fits in a single-byte operand (spec.md §4.2 invariant).
const (
	maxLocals   = 256
	maxUpvalues = 256
	maxArity    = 255
)

// FunctionType distinguishes the kinds of callable bodies the compiler can
// be compiling, since each has slightly different rules around the
// implicit receiver slot and bare `return` (spec.md §4.2 "return rules").
type FunctionType int

const (
	TypeFunction FunctionType = iota
	TypeInitializer
	TypeMethod
	TypeScript
)

type local struct {
	name       token.Token
	depth      int // -1 while the declaring `var x = x;` initializer is itself being compiled
	isCaptured bool
}

type upvalueRef struct {
	index   byte
	isLocal bool
}

// classCompiler tracks nesting of `class` bodies so `this`/`super` resolve
// correctly, and records whether the class has a superclass (spec.md §4.2).
type classCompiler struct {
	enclosing     *classCompiler
	hasSuperclass bool
}

// compiler holds the state for one function body being compiled: its
// emerging machine.ObjFunction, its locals/upvalues, and a link to the
// enclosing function compiler (spec.md §4.2, mirrors the call-frame nesting
// the VM uses at runtime).
type compiler struct {
	p *parserState

	enclosing *compiler
	fn        *machine.ObjFunction
	fnType    FunctionType

	locals     []local
	upvalues   []upvalueRef
	scopeDepth int

	class *classCompiler
}

// parserState is the single-token-lookahead parser shared by every nested
// compiler for one Compile call (spec.md §4.1/§4.2).
type parserState struct {
	scan *scanner.Scanner
	gc   *machine.GC

	current  token.Token
	previous token.Token

	panicMode bool
	errs      *multierror.Error

	// activeCompiler is the innermost compiler currently emitting code; the
	// GC root walker marks its fn and every fn up its enclosing chain, since
	// none of them are reachable from anywhere else yet.
	activeCompiler *compiler
}

func newCompiler(p *parserState, enclosing *compiler, fnType FunctionType, name string) *compiler {
	c := &compiler{p: p, enclosing: enclosing, fnType: fnType, scopeDepth: 0}
	if enclosing != nil {
		// methods and functions nested in a class body still see that class
		c.class = enclosing.class
	}
	c.fn = p.gc.NewFunction()
	if fnType != TypeScript {
		c.fn.Name = p.gc.NewString(name)
	}

	// Slot 0 is reserved: for methods and initializers it holds the receiver
	// ("this"), otherwise it is unnamed and unreachable from user code.
	receiver := ""
	if fnType == TypeMethod || fnType == TypeInitializer {
		receiver = "this"
	}
	c.locals = append(c.locals, local{name: token.Token{Lexeme: receiver}, depth: 0})
	return c
}

// Compile compiles source into a top-level script function, or returns an
// error describing every syntax error found (spec.md §4.2 "panic-mode
// recovery": the compiler does not stop at the first error).
func Compile(gc *machine.GC, source string) (*machine.ObjFunction, error) {
	p := &parserState{scan: scanner.New(source), gc: gc}
	c := newCompiler(p, nil, TypeScript, "")
	p.activeCompiler = c

	remove := gc.AddRoot(func(mark func(machine.Value)) {
		for cc := p.activeCompiler; cc != nil; cc = cc.enclosing {
			mark(cc.fn)
		}
	})
	defer remove()

	p.advance()
	for !c.match(token.EOF) {
		c.declaration()
	}
	fn := c.endCompiler()

	if p.errs != nil {
		p.errs.ErrorFormat = compileErrorFormat
	}
	if err := p.errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return fn, nil
}

// --- token stream plumbing -------------------------------------------------

func (p *parserState) advance() {
	p.previous = p.current
	for {
		p.current = p.scan.Scan()
		if p.current.Kind != token.ILLEGAL {
			break
		}
		p.errorAtCurrent(p.current.Lexeme)
	}
}

func (c *compiler) check(k token.Kind) bool { return c.p.current.Kind == k }

func (c *compiler) match(k token.Kind) bool {
	if !c.check(k) {
		return false
	}
	c.p.advance()
	return true
}

func (c *compiler) consume(k token.Kind, msg string) {
	if c.p.current.Kind == k {
		c.p.advance()
		return
	}
	c.errorAtCurrent(msg)
}

func (p *parserState) errorAt(tok token.Token, msg string) {
	if p.panicMode {
		return
	}
	p.panicMode = true

	where := ""
	switch tok.Kind {
	case token.EOF:
		where = " at end"
	case token.ILLEGAL:
	default:
		where = " at '" + tok.Lexeme + "'"
	}
	p.errs = multierror.Append(p.errs, fmt.Errorf("[line %d] Error%s: %s", tok.Line, where, msg))
}

func (c *compiler) error(msg string)          { c.p.errorAt(c.p.previous, msg) }
func (c *compiler) errorAtCurrent(msg string) { c.p.errorAt(c.p.current, msg) }

// synchronize discards tokens until it reaches a plausible statement
// boundary, so one syntax error doesn't cascade into a wall of spurious
// follow-on errors (spec.md §4.2).
func (c *compiler) synchronize() {
	c.p.panicMode = false
	for c.p.current.Kind != token.EOF {
		if c.p.previous.Kind == token.SEMICOLON {
			return
		}
		switch c.p.current.Kind {
		case token.CLASS, token.FUN, token.VAR, token.FOR, token.IF, token.WHILE, token.PRINT, token.RETURN:
			return
		}
		c.p.advance()
	}
}

// --- emitting bytecode ------------------------------------------------------

func (c *compiler) chunk() *machine.Chunk { return &c.fn.Chunk }

func (c *compiler) emitByte(b byte) {
	c.chunk().Write(b, c.p.previous.Line)
}

func (c *compiler) emitOp(op machine.OpCode) { c.emitByte(byte(op)) }

func (c *compiler) emitOpByte(op machine.OpCode, b byte) {
	c.emitOp(op)
	c.emitByte(b)
}

func (c *compiler) emitLoop(loopStart int) {
	c.emitOp(machine.OpLoop)
	offset := len(c.chunk().Code) - loopStart + 2
	if offset > 0xffff {
		c.error("Loop body too large.")
	}
	c.emitByte(byte(offset >> 8))
	c.emitByte(byte(offset & 0xff))
}

func (c *compiler) emitJump(op machine.OpCode) int {
	c.emitOp(op)
	c.emitByte(0xff)
	c.emitByte(0xff)
	return len(c.chunk().Code) - 2
}

func (c *compiler) patchJump(offset int) {
	jump := len(c.chunk().Code) - offset - 2
	if jump > 0xffff {
		c.error("Too much code to jump over.")
	}
	c.chunk().Code[offset] = byte(jump >> 8)
	c.chunk().Code[offset+1] = byte(jump & 0xff)
}

func (c *compiler) emitReturn() {
	if c.fnType == TypeInitializer {
		c.emitOpByte(machine.OpGetLocal, 0)
	} else {
		c.emitOp(machine.OpNil)
	}
	c.emitOp(machine.OpReturn)
}

func (c *compiler) makeConstant(v machine.Value) byte {
	idx := c.chunk().AddConstant(v)
	if idx > 255 {
		c.error("Too many constants in one chunk.")
		return 0
	}
	return byte(idx)
}

func (c *compiler) emitConstant(v machine.Value) {
	c.emitOpByte(machine.OpConstant, c.makeConstant(v))
}

func (c *compiler) endCompiler() *machine.ObjFunction {
	c.emitReturn()
	fn := c.fn
	c.p.activeCompiler = c.enclosing
	return fn
}

// --- scopes ------------------------------------------------------------

func (c *compiler) beginScope() { c.scopeDepth++ }

func (c *compiler) endScope() {
	c.scopeDepth--
	for len(c.locals) > 0 && c.locals[len(c.locals)-1].depth > c.scopeDepth {
		if c.locals[len(c.locals)-1].isCaptured {
			c.emitOp(machine.OpCloseUpvalue)
		} else {
			c.emitOp(machine.OpPop)
		}
		c.locals = c.locals[:len(c.locals)-1]
	}
}

// --- variables: declare, resolve, define -----------------------------------

func identifiersEqual(a, b token.Token) bool { return a.Lexeme == b.Lexeme }

func (c *compiler) identifierConstant(tok token.Token) byte {
	return c.makeConstant(c.p.gc.NewString(tok.Lexeme))
}

func (c *compiler) addLocal(name token.Token) {
	if len(c.locals) >= maxLocals {
		c.error("Too many local variables in function.")
		return
	}
	c.locals = append(c.locals, local{name: name, depth: -1})
}

func (c *compiler) declareVariable() {
	if c.scopeDepth == 0 {
		return
	}
	name := c.p.previous
	for i := len(c.locals) - 1; i >= 0; i-- {
		l := c.locals[i]
		if l.depth != -1 && l.depth < c.scopeDepth {
			break
		}
		if identifiersEqual(name, l.name) {
			c.error("Already a variable with this name in this scope.")
		}
	}
	c.addLocal(name)
}

func (c *compiler) parseVariable(errMsg string) byte {
	c.consume(token.IDENT, errMsg)
	c.declareVariable()
	if c.scopeDepth > 0 {
		return 0
	}
	return c.identifierConstant(c.p.previous)
}

func (c *compiler) markInitialized() {
	if c.scopeDepth == 0 {
		return
	}
	c.locals[len(c.locals)-1].depth = c.scopeDepth
}

func (c *compiler) defineVariable(global byte) {
	if c.scopeDepth > 0 {
		c.markInitialized()
		return
	}
	c.emitOpByte(machine.OpDefineGlobal, global)
}

func (c *compiler) resolveLocal(name token.Token) int {
	for i := len(c.locals) - 1; i >= 0; i-- {
		l := c.locals[i]
		if identifiersEqual(name, l.name) {
			if l.depth == -1 {
				c.error("Can't read local variable in its own initializer.")
			}
			return i
		}
	}
	return -1
}

func (c *compiler) addUpvalue(index byte, isLocal bool) int {
	for i, uv := range c.upvalues {
		if uv.index == index && uv.isLocal == isLocal {
			return i
		}
	}
	if len(c.upvalues) >= maxUpvalues {
		c.error("Too many closure variables in function.")
		return 0
	}
	c.upvalues = append(c.upvalues, upvalueRef{index: index, isLocal: isLocal})
	c.fn.UpvalueCount = len(c.upvalues)
	return len(c.upvalues) - 1
}

func (c *compiler) resolveUpvalue(name token.Token) int {
	if c.enclosing == nil {
		return -1
	}
	if local := c.enclosing.resolveLocal(name); local != -1 {
		c.enclosing.locals[local].isCaptured = true
		return c.addUpvalue(byte(local), true)
	}
	if up := c.enclosing.resolveUpvalue(name); up != -1 {
		return c.addUpvalue(byte(up), false)
	}
	return -1
}

// --- declarations and statements -------------------------------------------

func (c *compiler) declaration() {
	switch {
	case c.match(token.CLASS):
		c.classDeclaration()
	case c.match(token.FUN):
		c.funDeclaration()
	case c.match(token.VAR):
		c.varDeclaration()
	default:
		c.statement()
	}
	if c.p.panicMode {
		c.synchronize()
	}
}

func (c *compiler) statement() {
	switch {
	case c.match(token.PRINT):
		c.printStatement()
	case c.match(token.FOR):
		c.forStatement()
	case c.match(token.IF):
		c.ifStatement()
	case c.match(token.RETURN):
		c.returnStatement()
	case c.match(token.WHILE):
		c.whileStatement()
	case c.match(token.LBRACE):
		c.beginScope()
		c.block()
		c.endScope()
	default:
		c.expressionStatement()
	}
}

func (c *compiler) block() {
	for !c.check(token.RBRACE) && !c.check(token.EOF) {
		c.declaration()
	}
	c.consume(token.RBRACE, "Expect '}' after block.")
}

func (c *compiler) varDeclaration() {
	global := c.parseVariable("Expect variable name.")
	if c.match(token.EQ) {
		c.expression()
	} else {
		c.emitOp(machine.OpNil)
	}
	c.consume(token.SEMICOLON, "Expect ';' after variable declaration.")
	c.defineVariable(global)
}

func (c *compiler) funDeclaration() {
	global := c.parseVariable("Expect function name.")
	c.markInitialized()
	c.function(TypeFunction)
	c.defineVariable(global)
}

func (c *compiler) function(fnType FunctionType) {
	child := newCompiler(c.p, c, fnType, c.p.previous.Lexeme)
	c.p.activeCompiler = child
	child.beginScope()

	child.consume(token.LPAREN, "Expect '(' after function name.")
	if !child.check(token.RPAREN) {
		for {
			child.fn.Arity++
			if child.fn.Arity > maxArity {
				child.errorAtCurrent("Can't have more than 255 parameters.")
			}
			constant := child.parseVariable("Expect parameter name.")
			child.defineVariable(constant)
			if !child.match(token.COMMA) {
				break
			}
		}
	}
	child.consume(token.RPAREN, "Expect ')' after parameters.")
	child.consume(token.LBRACE, "Expect '{' before function body.")
	child.block()

	fn := child.endCompiler()

	c.emitOpByte(machine.OpClosure, c.makeConstant(fn))
	for _, uv := range child.upvalues {
		if uv.isLocal {
			c.emitByte(1)
		} else {
			c.emitByte(0)
		}
		c.emitByte(uv.index)
	}
}

func (c *compiler) classDeclaration() {
	c.consume(token.IDENT, "Expect class name.")
	className := c.p.previous
	nameConstant := c.identifierConstant(className)
	c.declareVariable()

	c.emitOpByte(machine.OpClass, nameConstant)
	c.defineVariable(nameConstant)

	cc := &classCompiler{enclosing: c.class}
	c.class = cc

	if c.match(token.LT) {
		c.consume(token.IDENT, "Expect superclass name.")
		c.variable(false)
		if identifiersEqual(className, c.p.previous) {
			c.error("A class can't inherit from itself.")
		}

		c.beginScope()
		c.addLocal(token.Token{Lexeme: "super"})
		c.defineVariable(0)

		c.namedVariable(className, false)
		c.emitOp(machine.OpInherit)
		cc.hasSuperclass = true
	}

	c.namedVariable(className, false)
	c.consume(token.LBRACE, "Expect '{' before class body.")
	for !c.check(token.RBRACE) && !c.check(token.EOF) {
		c.method()
	}
	c.consume(token.RBRACE, "Expect '}' after class body.")
	c.emitOp(machine.OpPop) // the class itself, pushed above for method binding

	if cc.hasSuperclass {
		c.endScope()
	}
	c.class = cc.enclosing
}

func (c *compiler) method() {
	c.consume(token.IDENT, "Expect method name.")
	name := c.p.previous
	constant := c.identifierConstant(name)

	fnType := TypeMethod
	if name.Lexeme == "init" {
		fnType = TypeInitializer
	}
	c.function(fnType)
	c.emitOpByte(machine.OpMethod, constant)
}

func (c *compiler) printStatement() {
	c.expression()
	c.consume(token.SEMICOLON, "Expect ';' after value.")
	c.emitOp(machine.OpPrint)
}

func (c *compiler) expressionStatement() {
	c.expression()
	c.consume(token.SEMICOLON, "Expect ';' after expression.")
	c.emitOp(machine.OpPop)
}

func (c *compiler) ifStatement() {
	c.consume(token.LPAREN, "Expect '(' after 'if'.")
	c.expression()
	c.consume(token.RPAREN, "Expect ')' after condition.")

	thenJump := c.emitJump(machine.OpJumpIfFalse)
	c.emitOp(machine.OpPop)
	c.statement()

	elseJump := c.emitJump(machine.OpJump)
	c.patchJump(thenJump)
	c.emitOp(machine.OpPop)

	if c.match(token.ELSE) {
		c.statement()
	}
	c.patchJump(elseJump)
}

func (c *compiler) whileStatement() {
	loopStart := len(c.chunk().Code)
	c.consume(token.LPAREN, "Expect '(' after 'while'.")
	c.expression()
	c.consume(token.RPAREN, "Expect ')' after condition.")

	exitJump := c.emitJump(machine.OpJumpIfFalse)
	c.emitOp(machine.OpPop)
	c.statement()
	c.emitLoop(loopStart)

	c.patchJump(exitJump)
	c.emitOp(machine.OpPop)
}

func (c *compiler) forStatement() {
	c.beginScope()
	c.consume(token.LPAREN, "Expect '(' after 'for'.")
	switch {
	case c.match(token.SEMICOLON):
		// no initializer
	case c.match(token.VAR):
		c.varDeclaration()
	default:
		c.expressionStatement()
	}

	loopStart := len(c.chunk().Code)
	exitJump := -1
	if !c.match(token.SEMICOLON) {
		c.expression()
		c.consume(token.SEMICOLON, "Expect ';' after loop condition.")
		exitJump = c.emitJump(machine.OpJumpIfFalse)
		c.emitOp(machine.OpPop)
	}

	if !c.match(token.RPAREN) {
		bodyJump := c.emitJump(machine.OpJump)
		incrStart := len(c.chunk().Code)
		c.expression()
		c.emitOp(machine.OpPop)
		c.consume(token.RPAREN, "Expect ')' after for clauses.")

		c.emitLoop(loopStart)
		loopStart = incrStart
		c.patchJump(bodyJump)
	}

	c.statement()
	c.emitLoop(loopStart)

	if exitJump != -1 {
		c.patchJump(exitJump)
		c.emitOp(machine.OpPop)
	}
	c.endScope()
}

func (c *compiler) returnStatement() {
	if c.fnType == TypeScript {
		c.error("Can't return from top-level code.")
	}
	if c.match(token.SEMICOLON) {
		c.emitReturn()
		return
	}
	if c.fnType == TypeInitializer {
		c.error("Can't return a value from an initializer.")
	}
	c.expression()
	c.consume(token.SEMICOLON, "Expect ';' after return value.")
	c.emitOp(machine.OpReturn)
}

func (c *compiler) expression() { c.parsePrecedence(PrecAssignment) }

// --- variable access (used by the Pratt table in rules.go) ----------------

func (c *compiler) namedVariable(name token.Token, canAssign bool) {
	var getOp, setOp machine.OpCode
	var arg int

	if local := c.resolveLocal(name); local != -1 {
		arg, getOp, setOp = local, machine.OpGetLocal, machine.OpSetLocal
	} else if up := c.resolveUpvalue(name); up != -1 {
		arg, getOp, setOp = up, machine.OpGetUpvalue, machine.OpSetUpvalue
	} else {
		arg, getOp, setOp = int(c.identifierConstant(name)), machine.OpGetGlobal, machine.OpSetGlobal
	}

	if canAssign && c.match(token.EQ) {
		c.expression()
		c.emitOpByte(setOp, byte(arg))
	} else {
		c.emitOpByte(getOp, byte(arg))
	}
}

func (c *compiler) variable(canAssign bool) { c.namedVariable(c.p.previous, canAssign) }

func (c *compiler) argumentList() byte {
	argCount := 0
	if !c.check(token.RPAREN) {
		for {
			c.expression()
			if argCount == maxArity {
				c.error("Can't have more than 255 arguments.")
			}
			argCount++
			if !c.match(token.COMMA) {
				break
			}
		}
	}
	c.consume(token.RPAREN, "Expect ')' after arguments.")
	return byte(argCount)
}

func numberLiteral(tok token.Token) machine.Number {
	f, err := strconv.ParseFloat(tok.Lexeme, 64)
	if err != nil {
		return 0
	}
	return machine.Number(f)
}
