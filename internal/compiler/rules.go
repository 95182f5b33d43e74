package compiler

import "loxvm/internal/token"

// parseFn is a prefix or infix handler: given canAssign, it consumes
// however much of the token stream its grammar production needs and
// emits the corresponding bytecode. The receiver is the compiler
// itself rather than a bound closure, so the table below is a plain
// static map from token kind to rule instead of per-instance
// heap-allocated function objects.
type parseFn func(c *compiler, canAssign bool)

type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence Precedence
}

// rules is the Pratt table: for every token kind that participates in
// expression grammar, the prefix handler (if the token can start an
// expression), the infix handler (if it can continue one), and the
// precedence of its infix use. Tokens absent from this map have no
// prefix or infix rule. It is filled in init because its handlers reach
// back into rules through parsePrecedence, which a package-level
// initializer expression cannot do without an initialization cycle.
var rules map[token.Kind]parseRule

func init() {
	rules = map[token.Kind]parseRule{
	token.LeftParen: {prefix: grouping, precedence: PrecNone},
	token.Minus:     {prefix: unary, infix: binary, precedence: PrecTerm},
	token.Plus:      {infix: binary, precedence: PrecTerm},
	token.Slash:     {infix: binary, precedence: PrecFactor},
	token.Star:      {infix: binary, precedence: PrecFactor},
	token.Bang:      {prefix: unary, precedence: PrecNone},
	token.BangEqual:   {infix: binary, precedence: PrecEquality},
	token.EqualEqual:  {infix: binary, precedence: PrecEquality},
	token.Greater:      {infix: binary, precedence: PrecComparison},
	token.GreaterEqual: {infix: binary, precedence: PrecComparison},
	token.Less:         {infix: binary, precedence: PrecComparison},
	token.LessEqual:    {infix: binary, precedence: PrecComparison},
	token.Identifier: {prefix: variable, precedence: PrecNone},
	token.String:     {prefix: stringLiteral, precedence: PrecNone},
	token.Number:     {prefix: number, precedence: PrecNone},
	token.And:        {infix: and_, precedence: PrecAnd},
	token.Or:         {infix: or_, precedence: PrecOr},
	token.False:      {prefix: literal, precedence: PrecNone},
	token.True:       {prefix: literal, precedence: PrecNone},
	token.Nil:        {prefix: literal, precedence: PrecNone},
	}
}
