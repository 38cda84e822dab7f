package token

import "fmt"

type TokenType string

const (
	// Special
	EOF = "EOF"

	// Identifiers & Literals
	ID            = "ID"
	INTEGER_CONST = "INTEGER_CONST"
	REAL_CONST    = "REAL_CONST"
	STRING        = "STRING"

	// Operators
	ASSIGN      = ":="
	PLUS        = "+"
	MINUS       = "-"
	MUL         = "*"
	FLOAT_DIV   = "/"
	INTEGER_DIV = "DIV"
	POW         = "^"
	SEP         = "<<" // separates PRINT items

	// Delimiters
	SEMI   = ";"
	DOT    = "."
	COMMA  = ","
	COLON  = ":"
	LPAREN = "("
	RPAREN = ")"

	// Keywords
	PROGRAM   = "PROGRAM"
	VAR       = "VAR"
	BEGIN     = "BEGIN"
	END       = "END"
	PROCEDURE = "PROCEDURE"
	IF        = "IF"
	ELSE      = "ELSE"
	ENDIF     = "ENDIF"
	WHILE     = "WHILE"
	ENDWHILE  = "ENDWHILE"
	PRINT     = "PRINT"
	READ      = "READ"
	INTEGER   = "INTEGER"
	REAL      = "REAL"
)

type Token struct {
	Type    TokenType
	Literal string
	Line    int
	Column  int
}

func (t Token) String() string {
	return fmt.Sprintf("Token(%s, %q, %d:%d)", t.Type, t.Literal, t.Line, t.Column)
}

// keywords is never written after init; every lexer shares it read-only.
var keywords = map[string]TokenType{
	"PROGRAM":   PROGRAM,
	"VAR":       VAR,
	"DIV":       INTEGER_DIV,
	"INTEGER":   INTEGER,
	"REAL":      REAL,
	"BEGIN":     BEGIN,
	"END":       END,
	"PROCEDURE": PROCEDURE,
	"PRINT":     PRINT,
	"READ":      READ,
	"IF":        IF,
	"ELSE":      ELSE,
	"ENDIF":     ENDIF,
	"WHILE":     WHILE,
	"ENDWHILE":  ENDWHILE,
}

func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return ID
}

// IsKeyword reports whether ident is a reserved word.
func IsKeyword(ident string) bool {
	_, ok := keywords[ident]
	return ok
}
