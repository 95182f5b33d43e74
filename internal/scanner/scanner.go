// Package scanner turns Lox source text into a lazy stream of tokens.
package scanner

import "loxvm/internal/token"

// Scanner produces tokens from source on demand. It is single-threaded
// and not restartable once it reaches EOF: it keeps returning the same
// EOF token forever after.
type Scanner struct {
	source  string
	start   int // start of the token currently being scanned
	current int // index of the next unread byte
	line    int
}

// New creates a scanner over source. The scanner borrows source for
// the lifetime of every token it returns.
func New(source string) *Scanner {
	return &Scanner{source: source, line: 1}
}

// ScanToken returns the next token in the stream. Once the source is
// exhausted it returns an EOF token on every subsequent call.
func (s *Scanner) ScanToken() token.Token {
	s.skipWhitespace()
	s.start = s.current

	if s.atEnd() {
		return s.make(token.EOF)
	}

	c := s.advance()

	if isAlpha(c) {
		return s.identifier()
	}
	if isDigit(c) {
		return s.number()
	}

	switch c {
	case '(':
		return s.make(token.LeftParen)
	case ')':
		return s.make(token.RightParen)
	case '{':
		return s.make(token.LeftBrace)
	case '}':
		return s.make(token.RightBrace)
	case ';':
		return s.make(token.Semicolon)
	case ',':
		return s.make(token.Comma)
	case '.':
		return s.make(token.Dot)
	case '-':
		return s.make(token.Minus)
	case '+':
		return s.make(token.Plus)
	case '/':
		return s.make(token.Slash)
	case '*':
		return s.make(token.Star)
	case '!':
		return s.make(s.ifMatch('=', token.BangEqual, token.Bang))
	case '=':
		return s.make(s.ifMatch('=', token.EqualEqual, token.Equal))
	case '<':
		return s.make(s.ifMatch('=', token.LessEqual, token.Less))
	case '>':
		return s.make(s.ifMatch('=', token.GreaterEqual, token.Greater))
	case '"':
		return s.string()
	}

	return s.errorToken("Unexpected character.")
}

func (s *Scanner) atEnd() bool {
	return s.current >= len(s.source)
}

func (s *Scanner) advance() byte {
	c := s.source[s.current]
	s.current++
	return c
}

func (s *Scanner) peek() byte {
	if s.atEnd() {
		return 0
	}
	return s.source[s.current]
}

func (s *Scanner) peekNext() byte {
	if s.current+1 >= len(s.source) {
		return 0
	}
	return s.source[s.current+1]
}

func (s *Scanner) match(expected byte) bool {
	if s.atEnd() || s.source[s.current] != expected {
		return false
	}
	s.current++
	return true
}

func (s *Scanner) ifMatch(expected byte, ifTrue, ifFalse token.Kind) token.Kind {
	if s.match(expected) {
		return ifTrue
	}
	return ifFalse
}

func (s *Scanner) skipWhitespace() {
	for {
		switch s.peek() {
		case ' ', '\r', '\t':
			s.advance()
		case '\n':
			s.line++
			s.advance()
		case '/':
			if s.peekNext() == '/' {
				for s.peek() != '\n' && !s.atEnd() {
					s.advance()
				}
			} else {
				return
			}
		default:
			return
		}
	}
}

func (s *Scanner) string() token.Token {
	for s.peek() != '"' && !s.atEnd() {
		if s.peek() == '\n' {
			s.line++
		}
		s.advance()
	}
	if s.atEnd() {
		return s.errorToken("Unterminated string.")
	}
	s.advance() // closing quote
	return s.make(token.String)
}

func (s *Scanner) number() token.Token {
	for isDigit(s.peek()) {
		s.advance()
	}
	// A trailing dot with no fractional digits is not part of the
	// number: "1." scans as NUMBER("1") followed by DOT.
	if s.peek() == '.' && isDigit(s.peekNext()) {
		s.advance()
		for isDigit(s.peek()) {
			s.advance()
		}
	}
	return s.make(token.Number)
}

func (s *Scanner) identifier() token.Token {
	for isAlpha(s.peek()) || isDigit(s.peek()) {
		s.advance()
	}
	lexeme := s.source[s.start:s.current]
	return s.makeWithKind(token.LookupIdentifier(lexeme))
}

func (s *Scanner) make(kind token.Kind) token.Token {
	return s.makeWithKind(kind)
}

func (s *Scanner) makeWithKind(kind token.Kind) token.Token {
	return token.Token{Kind: kind, Lexeme: s.source[s.start:s.current], Line: s.line}
}

func (s *Scanner) errorToken(message string) token.Token {
	return token.Token{Kind: token.Error, Lexeme: message, Line: s.line}
}

func isAlpha(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
