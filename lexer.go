package planilha

import (
	"strings"
	"unicode"
)

// TokenType represents different types of tokens in formulas
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenEquals
	TokenNumber
	TokenString
	TokenBoolean
	TokenCell
	TokenRange
	TokenFunction
	TokenUnaryPrefixOp
	TokenUnaryPostfixOp
	TokenBinaryOp
	TokenSemicolon
	TokenColon
	TokenLeftParen
	TokenRightParen
	TokenWhitespace
	TokenError
)

// BinaryOp represents binary operators in AST nodes
type BinaryOp int

const (
	BinOpAdd BinaryOp = iota
	BinOpSubtract
	BinOpMultiply
	BinOpDivide
	BinOpPower
	BinOpConcat
	BinOpEqual
	BinOpNotEqual
	BinOpLess
	BinOpLessEqual
	BinOpGreater
	BinOpGreaterEqual
)

// UnaryOp represents unary operators in AST nodes
type UnaryOp int

const (
	UnaryOpPlus UnaryOp = iota
	UnaryOpMinus
	UnaryOpPercent
)

// character classification constants. slightly easier to read.
const (
	charNull      = 0
	charTab       = '\t'
	charNewline   = '\n'
	charReturn    = '\r'
	charSpace     = ' '
	charQuote     = '"'
	charPercent   = '%'
	charAmpersand = '&'
	charLParen    = '('
	charRParen    = ')'
	charAsterisk  = '*'
	charPlus      = '+'
	charSemicolon = ';'
	charMinus     = '-'
	charPeriod    = '.'
	charSlash     = '/'
	charColon     = ':'
	charLess      = '<'
	charEqual     = '='
	charGreater   = '>'
	charCaret     = '^'
	charUnder     = '_'
)

// TokenState represents the lexer state for validation
type TokenState int

const (
	StateStart TokenState = iota
	StateAfterEquals
	StateAfterValue
	StateAfterOperator
	StateAfterLeftParen
	StateAfterRightParen
	StateAfterSemicolon
	StateAfterFunction
)

// tokenTransitions maps the current state to valid next token types
var tokenTransitions = map[TokenState]map[TokenType]bool{
	StateStart: {
		TokenEquals: true, // formula prefix
	},
	StateAfterEquals: {
		TokenNumber:        true,
		TokenString:        true,
		TokenBoolean:       true,
		TokenCell:          true,
		TokenRange:         true,
		TokenFunction:      true,
		TokenLeftParen:     true,
		TokenUnaryPrefixOp: true, // unary +/-
	},
	StateAfterValue: { // after number, string, boolean, cell, range
		TokenBinaryOp:       true,
		TokenUnaryPostfixOp: true, // for %
		TokenRightParen:     true,
		TokenSemicolon:      true, // only if in function
		TokenEOF:            true,
		// whitespace is significant - no consecutive values
	},
	StateAfterOperator: {
		TokenNumber:        true,
		TokenString:        true,
		TokenBoolean:       true,
		TokenCell:          true,
		TokenFunction:      true,
		TokenLeftParen:     true,
		TokenUnaryPrefixOp: true, // only unary after binary
	},
	StateAfterLeftParen: {
		TokenNumber:        true,
		TokenString:        true,
		TokenBoolean:       true,
		TokenCell:          true,
		TokenRange:         true, // ranges as function arguments
		TokenFunction:      true,
		TokenLeftParen:     true, // nested
		TokenUnaryPrefixOp: true,
		TokenRightParen:    true, // empty parens for arg-less functions like HOJE()
	},
	StateAfterRightParen: {
		TokenBinaryOp:       true,
		TokenUnaryPostfixOp: true, // for %
		TokenRightParen:     true, // if nested
		TokenSemicolon:      true, // if in function
		TokenEOF:            true,
	},
	StateAfterSemicolon: { // only valid in function context
		TokenNumber:        true,
		TokenString:        true,
		TokenBoolean:       true,
		TokenCell:          true,
		TokenRange:         true,
		TokenFunction:      true,
		TokenLeftParen:     true,
		TokenUnaryPrefixOp: true,
	},
	StateAfterFunction: {
		TokenLeftParen: true, // function name must be called
	},
}

// Token represents a lexical token with position information
type Token struct {
	Type  TokenType
	Value string
	Pos   int // rune position in input
}

// Lexer tokenizes formula expressions. Grammar quirks of the locale: the
// argument separator is ';', function names may carry accented letters and
// '.' (CONT.NÚM), booleans spell VERDADEIRO/FALSO.
type Lexer struct {
	input      string
	runes      []rune // UTF-8 aware representation
	pos        int
	state      TokenState
	parenDepth int
	tokens     []Token
}

// NewLexer creates a new lexer for the given formula input
func NewLexer(input string) *Lexer {
	return &Lexer{
		input: input,
		runes: []rune(input), // runes for UTF-8 support. could do without but a real pain
		state: StateStart,
	}
}

// Tokenize tokenizes the entire input, returning the token stream or a
// ParseError positioned at the offending rune.
func (l *Lexer) Tokenize() ([]Token, *ParseError) {
	if len(l.runes) == 0 || l.runes[0] != charEqual {
		return nil, l.errAt(0, "formula must start with '='")
	}

	for l.pos < len(l.runes) {
		tok := l.nextToken()
		if tok.Type == TokenError {
			return nil, l.errAt(tok.Pos, tok.Value)
		}
		if tok.Type != TokenWhitespace {
			// validate state transition
			if !l.validateTransition(tok.Type) {
				return nil, l.errAt(tok.Pos, "unexpected token: "+tok.Value)
			}
			l.tokens = append(l.tokens, tok)
			l.updateState(tok.Type)
		}
	}

	if l.parenDepth > 0 {
		return nil, l.errAt(l.pos, "unbalanced parentheses: missing closing parenthesis")
	}

	l.tokens = append(l.tokens, Token{Type: TokenEOF, Pos: l.pos})
	return l.tokens, nil
}

func (l *Lexer) errAt(pos int, message string) *ParseError {
	return &ParseError{Input: l.input, Pos: pos, Message: message}
}

// validateTransition checks if the token type is valid in current state
func (l *Lexer) validateTransition(tokenType TokenType) bool {
	validTokens, exists := tokenTransitions[l.state]
	if !exists {
		return false
	}
	return validTokens[tokenType]
}

// updateState updates the lexer state based on the token type
func (l *Lexer) updateState(tokenType TokenType) {
	switch tokenType {
	case TokenEquals:
		l.state = StateAfterEquals
	case TokenNumber, TokenString, TokenBoolean, TokenCell, TokenRange:
		l.state = StateAfterValue
	case TokenUnaryPrefixOp, TokenBinaryOp:
		l.state = StateAfterOperator
	case TokenUnaryPostfixOp:
		// postfix operators don't change state
	case TokenLeftParen:
		l.state = StateAfterLeftParen
	case TokenRightParen:
		l.state = StateAfterRightParen
	case TokenSemicolon:
		l.state = StateAfterSemicolon
	case TokenFunction:
		l.state = StateAfterFunction
	}
}

// nextToken returns the next token from the input
func (l *Lexer) nextToken() Token {
	l.skipWhitespace()

	if l.pos >= len(l.runes) {
		return Token{Type: TokenEOF, Pos: l.pos}
	}

	startPos := l.pos
	ch := l.current()

	// string literals
	if ch == charQuote {
		return l.scanString()
	}

	// numbers
	if l.isDigit(ch) || (ch == charPeriod && l.isDigit(l.peek(1))) {
		return l.scanNumber()
	}

	// operators and special characters
	switch ch {
	case charLParen:
		l.pos++
		l.parenDepth++
		return Token{Type: TokenLeftParen, Value: "(", Pos: startPos}
	case charRParen:
		l.pos++
		l.parenDepth--
		if l.parenDepth < 0 {
			return Token{Type: TokenError, Value: "unexpected closing parenthesis", Pos: startPos}
		}
		return Token{Type: TokenRightParen, Value: ")", Pos: startPos}
	case charSemicolon:
		l.pos++
		return Token{Type: TokenSemicolon, Value: ";", Pos: startPos}
	case charPlus, charMinus:
		return l.scanUnaryPrefixOrBinaryOp()
	case charAsterisk, charSlash, charCaret, charAmpersand:
		return l.scanBinaryOp()
	case charPercent:
		l.pos++
		return Token{Type: TokenUnaryPostfixOp, Value: "%", Pos: startPos}
	case charEqual:
		// distinguish between formula prefix = and comparison operator =
		l.pos++
		if startPos == 0 {
			return Token{Type: TokenEquals, Value: "=", Pos: startPos}
		}
		return Token{Type: TokenBinaryOp, Value: "=", Pos: startPos}
	case charLess, charGreater:
		return l.scanBinaryOp()
	}

	// identifiers, functions, cells, booleans
	if l.isIdentStart(ch) {
		return l.scanIdentifierOrCell()
	}

	// unknown character
	l.pos++
	return Token{Type: TokenError, Value: "unexpected character: " + string(ch), Pos: startPos}
}

// substring returns a substring of the original input based on rune positions
func (l *Lexer) substring(start, end int) string {
	if start < 0 || end > len(l.runes) || start > end {
		return ""
	}
	return string(l.runes[start:end])
}

func (l *Lexer) current() rune {
	if l.pos >= len(l.runes) {
		return charNull
	}
	return l.runes[l.pos]
}

func (l *Lexer) peek(offset int) rune {
	pos := l.pos + offset
	if pos >= len(l.runes) || pos < 0 {
		return charNull
	}
	return l.runes[pos]
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.runes) {
		ch := l.current()
		if ch == charSpace || ch == charTab || ch == charNewline || ch == charReturn {
			l.pos++
		} else {
			break
		}
	}
}

func (l *Lexer) isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

// isASCIIAlpha matches the letters allowed in cell references
func (l *Lexer) isASCIIAlpha(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

// isIdentStart matches the first rune of an identifier. Function names may
// begin with any letter, accented ones included.
func (l *Lexer) isIdentStart(ch rune) bool {
	return unicode.IsLetter(ch) || ch == charUnder
}

// isIdentRune matches the remaining runes of an identifier. '.' is legal
// inside function names (CONT.NÚM, CONT.VALORES).
func (l *Lexer) isIdentRune(ch rune) bool {
	return unicode.IsLetter(ch) || l.isDigit(ch) || ch == charUnder || ch == charPeriod
}

// scanNumber scans a number token including decimals and scientific notation
func (l *Lexer) scanNumber() Token {
	startPos := l.pos

	for l.pos < len(l.runes) && l.isDigit(l.current()) {
		l.pos++
	}

	// decimal part
	if l.current() == charPeriod && l.isDigit(l.peek(1)) {
		l.pos++ // consume '.'
		for l.pos < len(l.runes) && l.isDigit(l.current()) {
			l.pos++
		}
	}

	// scientific notation (e or E)
	if l.current() == 'e' || l.current() == 'E' {
		savedPos := l.pos
		l.pos++ // consume 'e' or 'E'

		if l.current() == charPlus || l.current() == charMinus {
			l.pos++
		}

		// must have at least one digit after e/E
		if !l.isDigit(l.current()) {
			l.pos = savedPos
		} else {
			for l.pos < len(l.runes) && l.isDigit(l.current()) {
				l.pos++
			}
		}
	}

	value := l.substring(startPos, l.pos)
	return Token{Type: TokenNumber, Value: value, Pos: startPos}
}

// scanString scans a string literal with support for double-quote escapes
func (l *Lexer) scanString() Token {
	startPos := l.pos
	l.pos++ // consume opening quote

	var result []rune

	for l.pos < len(l.runes) {
		ch := l.current()

		if ch == charQuote {
			// check if it's an escape sequence (double quote)
			if l.peek(1) == charQuote {
				result = append(result, charQuote)
				l.pos += 2 // consume both quotes
			} else {
				l.pos++ // consume closing quote
				return Token{Type: TokenString, Value: string(result), Pos: startPos}
			}
		} else {
			result = append(result, ch)
			l.pos++
		}
	}

	return Token{Type: TokenError, Value: "unclosed string literal", Pos: startPos}
}

// scanIdentifierOrCell scans identifiers, functions, cells, ranges, and booleans
func (l *Lexer) scanIdentifierOrCell() Token {
	startPos := l.pos

	for l.pos < len(l.runes) && l.isIdentRune(l.current()) {
		l.pos++
	}

	value := l.substring(startPos, l.pos)

	// boolean literals
	switch strings.ToUpper(value) {
	case "VERDADEIRO", "TRUE":
		return Token{Type: TokenBoolean, Value: "VERDADEIRO", Pos: startPos}
	case "FALSO", "FALSE":
		return Token{Type: TokenBoolean, Value: "FALSO", Pos: startPos}
	}

	// cell reference, possibly the start of a range
	if l.isCell(value) {
		if l.current() == charColon {
			savedPos := l.pos
			l.pos++ // consume ':'

			cellStart := l.pos
			for l.pos < len(l.runes) && (l.isASCIIAlpha(l.current()) || l.isDigit(l.current())) {
				l.pos++
			}

			secondCell := l.substring(cellStart, l.pos)
			if l.isCell(secondCell) {
				rangeValue := l.substring(startPos, l.pos)
				return Token{Type: TokenRange, Value: rangeValue, Pos: startPos}
			}
			// not a valid range, restore position and return just the cell
			l.pos = savedPos
		}
		return Token{Type: TokenCell, Value: value, Pos: startPos}
	}

	// function name (must be followed by open paren; resolution happens at
	// parse time, unknown names survive and evaluate to #NAME?)
	if l.current() == charLParen {
		return Token{Type: TokenFunction, Value: value, Pos: startPos}
	}

	return Token{Type: TokenError, Value: "unknown identifier: " + value, Pos: startPos}
}

// isCell checks if a string is a valid cell reference (e.g., A1, B12)
func (l *Lexer) isCell(s string) bool {
	if len(s) < 2 {
		return false
	}

	// find where letters end and numbers begin
	letterEnd := 0
	for i, ch := range s {
		if ch >= 'A' && ch <= 'Z' || ch >= 'a' && ch <= 'z' {
			letterEnd = i + 1
		} else {
			break
		}
	}

	// must have at least one letter and one digit
	if letterEnd == 0 || letterEnd == len(s) {
		return false
	}

	// check remaining characters are all digits
	for i := letterEnd; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}

	return true
}

// scanUnaryPrefixOrBinaryOp scans + and - which can be either unary
// prefix or binary
func (l *Lexer) scanUnaryPrefixOrBinaryOp() Token {
	startPos := l.pos
	ch := l.current()
	l.pos++

	if l.isUnaryContext() {
		return Token{Type: TokenUnaryPrefixOp, Value: string(ch), Pos: startPos}
	}
	return Token{Type: TokenBinaryOp, Value: string(ch), Pos: startPos}
}

// scanBinaryOp scans binary operators
func (l *Lexer) scanBinaryOp() Token {
	startPos := l.pos
	ch := l.current()

	// two-character operators first
	if ch == charLess {
		l.pos++
		if l.current() == charEqual {
			l.pos++
			return Token{Type: TokenBinaryOp, Value: "<=", Pos: startPos}
		} else if l.current() == charGreater {
			l.pos++
			return Token{Type: TokenBinaryOp, Value: "<>", Pos: startPos}
		}
		return Token{Type: TokenBinaryOp, Value: "<", Pos: startPos}
	}

	if ch == charGreater {
		l.pos++
		if l.current() == charEqual {
			l.pos++
			return Token{Type: TokenBinaryOp, Value: ">=", Pos: startPos}
		}
		return Token{Type: TokenBinaryOp, Value: ">", Pos: startPos}
	}

	switch ch {
	case charAsterisk:
		l.pos++
		return Token{Type: TokenBinaryOp, Value: "*", Pos: startPos}
	case charSlash:
		l.pos++
		return Token{Type: TokenBinaryOp, Value: "/", Pos: startPos}
	case charCaret:
		l.pos++
		return Token{Type: TokenBinaryOp, Value: "^", Pos: startPos}
	case charAmpersand:
		l.pos++
		return Token{Type: TokenBinaryOp, Value: "&", Pos: startPos}
	}

	return Token{Type: TokenError, Value: "unknown operator", Pos: startPos}
}

// isUnaryContext checks if the current context allows for unary operators
func (l *Lexer) isUnaryContext() bool {
	// unary operators are allowed after:
	// - the formula prefix (=)
	// - another operator
	// - left paren
	// - argument separator
	switch l.state {
	case StateAfterEquals, StateAfterOperator, StateAfterLeftParen, StateAfterSemicolon:
		return true
	default:
		return false
	}
}
