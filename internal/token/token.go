// Package token defines the lexical categories produced by the scanner.
package token

import "fmt"

// Kind identifies a lexical category.
type Kind int

const (
	// Single-character punctuators.
	LeftParen Kind = iota
	RightParen
	LeftBrace
	RightBrace
	Comma
	Dot
	Minus
	Plus
	Semicolon
	Slash
	Star

	// One or two character punctuators.
	Bang
	BangEqual
	Equal
	EqualEqual
	Greater
	GreaterEqual
	Less
	LessEqual

	// Literals.
	Identifier
	String
	Number

	// Keywords.
	And
	Class
	Else
	False
	For
	Fun
	If
	Nil
	Or
	Print
	Return
	Super
	This
	True
	Var
	While

	Error
	EOF
)

var names = map[Kind]string{
	LeftParen: "LEFT_PAREN", RightParen: "RIGHT_PAREN",
	LeftBrace: "LEFT_BRACE", RightBrace: "RIGHT_BRACE",
	Comma: "COMMA", Dot: "DOT", Minus: "MINUS", Plus: "PLUS",
	Semicolon: "SEMICOLON", Slash: "SLASH", Star: "STAR",
	Bang: "BANG", BangEqual: "BANG_EQUAL",
	Equal: "EQUAL", EqualEqual: "EQUAL_EQUAL",
	Greater: "GREATER", GreaterEqual: "GREATER_EQUAL",
	Less: "LESS", LessEqual: "LESS_EQUAL",
	Identifier: "IDENTIFIER", String: "STRING", Number: "NUMBER",
	And: "AND", Class: "CLASS", Else: "ELSE", False: "FALSE",
	For: "FOR", Fun: "FUN", If: "IF", Nil: "NIL", Or: "OR",
	Print: "PRINT", Return: "RETURN", Super: "SUPER", This: "THIS",
	True: "TRUE", Var: "VAR", While: "WHILE",
	Error: "ERROR", EOF: "EOF",
}

func (k Kind) String() string {
	if n, ok := names[k]; ok {
		return n
	}
	return fmt.Sprintf("KIND(%d)", int(k))
}

// Keywords maps the fixed reserved-word set to its token kind.
var Keywords = map[string]Kind{
	"and": And, "class": Class, "else": Else, "false": False,
	"for": For, "fun": Fun, "if": If, "nil": Nil, "or": Or,
	"print": Print, "return": Return, "super": Super, "this": This,
	"true": True, "var": Var, "while": While,
}

// LookupIdentifier classifies lexeme as a keyword kind, or Identifier
// if it isn't one of the fixed reserved words.
func LookupIdentifier(lexeme string) Kind {
	if kind, ok := Keywords[lexeme]; ok {
		return kind
	}
	return Identifier
}

// Token is an immutable lexical unit. Lexeme is a borrowed slice of
// the scanner's source string; for Error tokens it carries the
// diagnostic message instead.
type Token struct {
	Kind   Kind
	Lexeme string
	Line   int
}

func (t Token) String() string {
	return fmt.Sprintf("%s %q (line %d)", t.Kind, t.Lexeme, t.Line)
}
