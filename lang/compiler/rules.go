package compiler

import (
	"github.com/mna/bryony/lang/machine"
	"github.com/mna/bryony/lang/token"
)

// Precedence orders binary operators from loosest- to tightest-binding
// (spec.md §4.2 "Pratt parsing").
type Precedence uint8

const (
	PrecNone       Precedence = iota
	PrecAssignment            // =
	PrecOr                    // or
	PrecAnd                   // and
	PrecEquality              // == !=
	PrecComparison            // < > <= >=
	PrecTerm                  // + -
	PrecFactor                // * /
	PrecUnary                 // ! -
	PrecCall                  // . ()
	PrecPrimary
)

type parseFn func(c *compiler, canAssign bool)

type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence Precedence
}

// rules is indexed by token.Kind; kinds with no grammar role default to the
// zero value (no prefix, no infix, PrecNone), matching the convention used
// throughout this module for enum-indexed arrays (see machine.opCodeNames).
var rules = [...]parseRule{
	token.LPAREN:   {prefix: (*compiler).grouping, infix: (*compiler).call, precedence: PrecCall},
	token.DOT:      {infix: (*compiler).dot, precedence: PrecCall},
	token.MINUS:    {prefix: (*compiler).unary, infix: (*compiler).binary, precedence: PrecTerm},
	token.PLUS:     {infix: (*compiler).binary, precedence: PrecTerm},
	token.SLASH:    {infix: (*compiler).binary, precedence: PrecFactor},
	token.STAR:     {infix: (*compiler).binary, precedence: PrecFactor},
	token.BANG:     {prefix: (*compiler).unary},
	token.BANG_EQ:  {infix: (*compiler).binary, precedence: PrecEquality},
	token.EQ_EQ:    {infix: (*compiler).binary, precedence: PrecEquality},
	token.GT:       {infix: (*compiler).binary, precedence: PrecComparison},
	token.GT_EQ:    {infix: (*compiler).binary, precedence: PrecComparison},
	token.LT:       {infix: (*compiler).binary, precedence: PrecComparison},
	token.LT_EQ:    {infix: (*compiler).binary, precedence: PrecComparison},
	token.IDENT:    {prefix: (*compiler).variable},
	token.STRING:   {prefix: (*compiler).strLiteral},
	token.NUMBER:   {prefix: (*compiler).number},
	token.AND:      {infix: (*compiler).and_, precedence: PrecAnd},
	token.FALSE:    {prefix: (*compiler).literal},
	token.NIL:      {prefix: (*compiler).literal},
	token.OR:       {infix: (*compiler).or_, precedence: PrecOr},
	token.SUPER:    {prefix: (*compiler).super_},
	token.THIS:     {prefix: (*compiler).this_},
	token.TRUE:     {prefix: (*compiler).literal},
}

func ruleFor(k token.Kind) parseRule {
	if int(k) < len(rules) {
		return rules[k]
	}
	return parseRule{}
}

// parsePrecedence parses one expression of at least the given precedence,
// consuming tokens by repeatedly applying infix rules while the lookahead's
// precedence is not lower (spec.md §4.2 "Pratt parsing").
func (c *compiler) parsePrecedence(prec Precedence) {
	c.p.advance()
	prefix := ruleFor(c.p.previous.Kind).prefix
	if prefix == nil {
		c.error("Expect expression.")
		return
	}

	canAssign := prec <= PrecAssignment
	prefix(c, canAssign)

	for prec <= ruleFor(c.p.current.Kind).precedence {
		c.p.advance()
		infix := ruleFor(c.p.previous.Kind).infix
		infix(c, canAssign)
	}

	if canAssign && c.match(token.EQ) {
		c.error("Invalid assignment target.")
	}
}

func (c *compiler) number(_ bool) {
	c.emitConstant(numberLiteral(c.p.previous))
}

func (c *compiler) strLiteral(_ bool) {
	c.emitConstant(c.p.gc.NewString(c.p.previous.Lexeme))
}

func (c *compiler) literal(_ bool) {
	switch c.p.previous.Kind {
	case token.FALSE:
		c.emitOp(machine.OpFalse)
	case token.NIL:
		c.emitOp(machine.OpNil)
	case token.TRUE:
		c.emitOp(machine.OpTrue)
	}
}

func (c *compiler) grouping(_ bool) {
	c.expression()
	c.consume(token.RPAREN, "Expect ')' after expression.")
}

func (c *compiler) unary(_ bool) {
	opKind := c.p.previous.Kind
	c.parsePrecedence(PrecUnary)
	switch opKind {
	case token.BANG:
		c.emitOp(machine.OpNot)
	case token.MINUS:
		c.emitOp(machine.OpNegate)
	}
}

func (c *compiler) binary(_ bool) {
	opKind := c.p.previous.Kind
	rule := ruleFor(opKind)
	c.parsePrecedence(rule.precedence + 1)

	switch opKind {
	case token.BANG_EQ:
		c.emitOp(machine.OpEqual)
		c.emitOp(machine.OpNot)
	case token.EQ_EQ:
		c.emitOp(machine.OpEqual)
	case token.GT:
		c.emitOp(machine.OpGreater)
	case token.GT_EQ:
		c.emitOp(machine.OpLess)
		c.emitOp(machine.OpNot)
	case token.LT:
		c.emitOp(machine.OpLess)
	case token.LT_EQ:
		c.emitOp(machine.OpGreater)
		c.emitOp(machine.OpNot)
	case token.PLUS:
		c.emitOp(machine.OpAdd)
	case token.MINUS:
		c.emitOp(machine.OpSubtract)
	case token.STAR:
		c.emitOp(machine.OpMultiply)
	case token.SLASH:
		c.emitOp(machine.OpDivide)
	}
}

func (c *compiler) call(_ bool) {
	argCount := c.argumentList()
	c.emitOpByte(machine.OpCall, argCount)
}

func (c *compiler) dot(canAssign bool) {
	c.consume(token.IDENT, "Expect property name after '.'.")
	name := c.identifierConstant(c.p.previous)

	switch {
	case canAssign && c.match(token.EQ):
		c.expression()
		c.emitOpByte(machine.OpSetProperty, name)
	case c.match(token.LPAREN):
		argCount := c.argumentList()
		c.emitOpByte(machine.OpInvoke, name)
		c.emitByte(argCount)
	default:
		c.emitOpByte(machine.OpGetProperty, name)
	}
}

func (c *compiler) and_(_ bool) {
	endJump := c.emitJump(machine.OpJumpIfFalse)
	c.emitOp(machine.OpPop)
	c.parsePrecedence(PrecAnd)
	c.patchJump(endJump)
}

func (c *compiler) or_(_ bool) {
	elseJump := c.emitJump(machine.OpJumpIfFalse)
	endJump := c.emitJump(machine.OpJump)

	c.patchJump(elseJump)
	c.emitOp(machine.OpPop)

	c.parsePrecedence(PrecOr)
	c.patchJump(endJump)
}

func (c *compiler) this_(_ bool) {
	if c.class == nil {
		c.error("Can't use 'this' outside of a class.")
		return
	}
	c.variable(false)
}

func (c *compiler) super_(_ bool) {
	switch {
	case c.class == nil:
		c.error("Can't use 'super' outside of a class.")
	case !c.class.hasSuperclass:
		c.error("Can't use 'super' in a class with no superclass.")
	}

	c.consume(token.DOT, "Expect '.' after 'super'.")
	c.consume(token.IDENT, "Expect superclass method name.")
	name := c.identifierConstant(c.p.previous)

	c.namedVariable(token.Token{Kind: token.IDENT, Lexeme: "this"}, false)
	if c.match(token.LPAREN) {
		argCount := c.argumentList()
		c.namedVariable(token.Token{Kind: token.IDENT, Lexeme: "super"}, false)
		c.emitOpByte(machine.OpSuperInvoke, name)
		c.emitByte(argCount)
	} else {
		c.namedVariable(token.Token{Kind: token.IDENT, Lexeme: "super"}, false)
		c.emitOpByte(machine.OpGetSuper, name)
	}
}
