package render

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"decipher/pkg/diag"
	"decipher/pkg/eval"
	"decipher/pkg/lexer"
	"decipher/pkg/runner"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiagnosticPlain(t *testing.T) {
	src := "PROGRAM P;\nBEGIN\n  x := 1\nEND."
	err := diag.At(diag.KindUndeclaredIdentifier, 3, 3, "x", "identifier not found: x")

	var buf bytes.Buffer
	Diagnostic(&buf, err, src, false)

	want := "SemanticError[UndeclaredIdentifier] 3:3: identifier not found: x\n" +
		"3 |   x := 1\n" +
		"      ^\n"
	assert.Equal(t, want, buf.String())
}

func TestDiagnosticWithoutPosition(t *testing.T) {
	var buf bytes.Buffer
	Diagnostic(&buf, diag.New(diag.KindStackOverflow, "maximum call depth 3 exceeded"), "BEGIN END.", false)
	assert.Equal(t, "RuntimeError[StackOverflow]: maximum call depth 3 exceeded\n", buf.String())

	buf.Reset()
	Diagnostic(&buf, errors.New("open x.dcp: no such file"), "", false)
	assert.Equal(t, "error: open x.dcp: no such file\n", buf.String())
}

func TestDiagnosticColor(t *testing.T) {
	var buf bytes.Buffer
	Diagnostic(&buf, diag.At(diag.KindSyntax, 1, 1, "END", "unexpected END"), "", true)
	assert.Contains(t, buf.String(), "\x1b[")
	assert.Contains(t, buf.String(), "unexpected END")
}

func TestTokens(t *testing.T) {
	toks, err := lexer.Tokenize("BEGIN a := 3.5 END.")
	require.NoError(t, err)

	var buf bytes.Buffer
	Tokens(&buf, toks)
	out := buf.String()

	for _, want := range []string{"TYPE", ":=", `"3.5"`, "REAL_CONST", "EOF"} {
		assert.Contains(t, out, want)
	}
	assert.Equal(t, len(toks)+4, strings.Count(out, "\n"), "three borders, a header and one row per token")
}

func TestSymbolsAndMembers(t *testing.T) {
	src := `PROGRAM Main;
VAR a : INTEGER; b : REAL;
PROCEDURE Set(n : INTEGER);
BEGIN
  a := n
END;
BEGIN
  Set(7);
  b := 1.5
END.`
	res, err := runner.New(nil).Run(context.Background(), src, eval.WithOutput(&bytes.Buffer{}))
	require.NoError(t, err)

	var buf bytes.Buffer
	Symbols(&buf, res.Scopes)
	out := buf.String()
	for _, want := range []string{"BUILTINS", "GLOBAL", "Set", "(n : INTEGER)", "REAL"} {
		assert.Contains(t, out, want)
	}

	buf.Reset()
	Members(&buf, res.Global)
	out = buf.String()
	assert.Contains(t, out, "INTEGER")
	assert.Contains(t, out, "1.5")
	assert.Contains(t, out, "7")
}
