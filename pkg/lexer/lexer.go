package lexer

import (
	"decipher/pkg/diag"
	"decipher/pkg/token"
	"strings"
)

type Lexer struct {
	input        string
	position     int  // current position in input (points to current char)
	readPosition int  // current reading position in input (after current char)
	ch           byte // current char under examination
	line         int
	column       int
}

func New(input string) *Lexer {
	l := &Lexer{
		input:  input,
		line:   1,
		column: 0,
	}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.column = 0
	}
	if l.readPosition >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition += 1
	l.column += 1
}

func (l *Lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

// NextToken returns the next token of the stream, or an EOF token once the
// input is exhausted. The stream cannot be rewound.
func (l *Lexer) NextToken() (token.Token, error) {
	l.skipWhitespace()

	if l.ch == '{' {
		if err := l.skipComment(); err != nil {
			return token.Token{}, err
		}
		return l.NextToken()
	}

	var tok token.Token
	line, col := l.line, l.column

	switch l.ch {
	case ':':
		if l.peekChar() == '=' {
			l.readChar()
			tok = token.Token{Type: token.ASSIGN, Literal: ":=", Line: line, Column: col}
		} else {
			tok = newToken(token.COLON, l.ch, line, col)
		}
	case '<':
		if l.peekChar() != '<' {
			return token.Token{}, diag.At(diag.KindLexical, line, col, "<",
				"unexpected character '<' (did you mean '<<'?)")
		}
		l.readChar()
		tok = token.Token{Type: token.SEP, Literal: "<<", Line: line, Column: col}
	case '+':
		tok = newToken(token.PLUS, l.ch, line, col)
	case '-':
		tok = newToken(token.MINUS, l.ch, line, col)
	case '*':
		tok = newToken(token.MUL, l.ch, line, col)
	case '/':
		tok = newToken(token.FLOAT_DIV, l.ch, line, col)
	case '^':
		tok = newToken(token.POW, l.ch, line, col)
	case ';':
		tok = newToken(token.SEMI, l.ch, line, col)
	case '.':
		tok = newToken(token.DOT, l.ch, line, col)
	case ',':
		tok = newToken(token.COMMA, l.ch, line, col)
	case '(':
		tok = newToken(token.LPAREN, l.ch, line, col)
	case ')':
		tok = newToken(token.RPAREN, l.ch, line, col)
	case '"':
		lit, err := l.readString()
		if err != nil {
			return token.Token{}, err
		}
		return token.Token{Type: token.STRING, Literal: lit, Line: line, Column: col}, nil
	case 0:
		return token.Token{Type: token.EOF, Literal: "", Line: line, Column: col}, nil
	default:
		if isLetter(l.ch) {
			tok.Literal = l.readIdentifier()
			tok.Type = token.LookupIdent(tok.Literal)
			tok.Line = line
			tok.Column = col
			return tok, nil
		} else if isDigit(l.ch) {
			tok.Literal, tok.Type = l.readNumber()
			tok.Line = line
			tok.Column = col
			return tok, nil
		}
		return token.Token{}, diag.At(diag.KindLexical, line, col, string(l.ch),
			"unexpected character %q", rune(l.ch))
	}

	l.readChar()
	return tok, nil
}

func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' || l.ch == '\n' {
		l.readChar()
	}
}

// skipComment consumes a brace comment up to and including the closing brace.
func (l *Lexer) skipComment() error {
	line, col := l.line, l.column
	for l.ch != '}' {
		if l.ch == 0 {
			return diag.At(diag.KindLexical, line, col, "{", "unterminated comment")
		}
		l.readChar()
	}
	l.readChar()
	return nil
}

func newToken(tokenType token.TokenType, ch byte, line, col int) token.Token {
	return token.Token{Type: tokenType, Literal: string(ch), Line: line, Column: col}
}

func (l *Lexer) readIdentifier() string {
	position := l.position
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[position:l.position]
}

func isLetter(ch byte) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || ch == '_'
}

// readNumber reads an integer, or a real when a dot is followed by a digit.
// "3." stays an integer so that a trailing DOT is still its own token.
func (l *Lexer) readNumber() (string, token.TokenType) {
	position := l.position
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
		return l.input[position:l.position], token.REAL_CONST
	}
	return l.input[position:l.position], token.INTEGER_CONST
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

func (l *Lexer) readString() (string, error) {
	var result strings.Builder
	line, col := l.line, l.column
	l.readChar() // Skip opening quote

	for l.ch != '"' {
		if l.ch == 0 {
			return "", diag.At(diag.KindLexical, line, col, `"`, "unterminated string literal")
		}
		if l.ch == '\\' {
			l.readChar()
			switch l.ch {
			case 'n':
				result.WriteByte('\n')
			case 't':
				result.WriteByte('\t')
			case '\\':
				result.WriteByte('\\')
			case '"':
				result.WriteByte('"')
			case 0:
				return "", diag.At(diag.KindLexical, line, col, `"`, "unterminated string literal")
			default:
				// Unknown escape, keep it verbatim
				result.WriteByte('\\')
				result.WriteByte(l.ch)
			}
		} else {
			result.WriteByte(l.ch)
		}
		l.readChar()
	}
	l.readChar() // Skip closing quote

	return result.String(), nil
}

// Tokenize drains the lexer, returning every token up to and including EOF.
func Tokenize(input string) ([]token.Token, error) {
	l := New(input)
	var toks []token.Token
	for {
		tok, err := l.NextToken()
		if err != nil {
			return toks, err
		}
		toks = append(toks, tok)
		if tok.Type == token.EOF {
			return toks, nil
		}
	}
}
