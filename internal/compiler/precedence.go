package compiler

// Precedence orders expression parsing, low to high. Precedence
// applies to the infix use of a token; parsePrecedence consumes a
// prefix expression then keeps folding in infix operators whose
// precedence is at least as high as the precedence it was asked for.
type Precedence int

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
