package eval

import (
	"bytes"
	"context"
	"decipher/pkg/diag"
	"decipher/pkg/lexer"
	"decipher/pkg/parser"
	"decipher/pkg/semantic"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type result struct {
	out    string
	err    error
	interp *Interpreter
}

func run(t *testing.T, src, input string, opts ...Option) result {
	t.Helper()
	return runContext(context.Background(), t, src, input, opts...)
}

func runContext(ctx context.Context, t *testing.T, src, input string, opts ...Option) result {
	t.Helper()
	program, err := parser.New(lexer.New(src)).ParseProgram()
	require.NoError(t, err)
	require.NoError(t, semantic.New().Analyze(program))

	var out bytes.Buffer
	opts = append([]Option{WithOutput(&out), WithInput(strings.NewReader(input)), WithPrompt("")}, opts...)
	in := New(opts...)
	_, err = in.Interpret(ctx, program)
	return result{out: out.String(), err: err, interp: in}
}

func printProgram(expr string) string {
	return "PROGRAM P;\nBEGIN\n    PRINT " + expr + "\nEND."
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		expr     string
		expected string
	}{
		{"1 + 2 * 3", "7 \n"},
		{"2 * 3 - 10", "-4 \n"},
		{"7 DIV 2", "3 \n"},
		{"-7 DIV 2", "-3 \n"},
		{"7.5 DIV 2", "3 \n"},
		{"7 / 2", "3.5 \n"},
		{"4 / 2", "2 \n"},
		{"1 / 3", "0.333333 \n"},
		{"1 + 2.5", "3.5 \n"},
		{"2 ^ 10", "1024 \n"},
		{"2 ^ 0", "1 \n"},
		{"2 ^ 3 ^ 2", "512 \n"},
		{"2.0 ^ 0.5", "1 \n"},
		{"-2 ^ 3", "-8 \n"},
		{"2 ^ -1", "1 \n"},
		{"-(3.5)", "-3.5 \n"},
		{"+4", "4 \n"},
		{"1000000.0 * 10", "1e+07 \n"},
	}

	for _, tt := range tests {
		r := run(t, printProgram(tt.expr), "")
		require.NoError(t, r.err, tt.expr)
		assert.Equal(t, tt.expected, r.out, tt.expr)
	}
}

func TestAssignmentStoresTypedValues(t *testing.T) {
	src := `PROGRAM P;
VAR a, b : INTEGER;
    r, s : REAL;
BEGIN
    a := 7 DIV 2;
    r := 7 / 2;
    s := 4;
    b := 2 ^ 10
END.`
	r := run(t, src, "")
	require.NoError(t, r.err)

	global := r.interp.Global()
	require.NotNil(t, global)

	a, ok := global.Get("a")
	require.True(t, ok)
	assert.Equal(t, &Integer{Value: 3}, a)

	rv, _ := global.Get("r")
	assert.Equal(t, &Real{Value: 3.5}, rv)

	s, _ := global.Get("s")
	assert.Equal(t, KindInteger, s.Kind(), "an integer stored in a REAL variable keeps its kind")

	b, _ := global.Get("b")
	assert.Equal(t, int64(1024), b.(*Integer).Value)

	assert.Equal(t, []string{"a", "b", "r", "s"}, global.Names())
}

func TestPrintFormatting(t *testing.T) {
	r := run(t, printProgram(`"a=" << 1 << "b=" << 2.5 << "!"`), "")
	require.NoError(t, r.err)
	assert.Equal(t, "a=1 b=2.5 !\n", r.out)
}

func TestTypeErrorStopsExecution(t *testing.T) {
	src := `PROGRAM P;
VAR a : INTEGER;
BEGIN
    PRINT 1;
    a := 2.5;
    PRINT 2
END.`
	r := run(t, src, "")
	require.Error(t, r.err)
	assert.True(t, diag.Is(r.err, diag.KindTypeError), r.err.Error())
	assert.Equal(t, "1 \n", r.out)

	d, _ := diag.As(r.err)
	assert.Equal(t, 5, d.Line)
	assert.Equal(t, "a", d.Token)
}

const factorial = `PROGRAM Fact;
VAR n : INTEGER;

PROCEDURE Factorial(k, acc : INTEGER);
BEGIN
    IF (k) :
        Factorial(k - 1, acc * k)
    ELSE :
        PRINT acc
    ENDIF
END;

BEGIN
    READ n;
    Factorial(n, 1)
END.`

func TestFactorialRecursion(t *testing.T) {
	want := int64(1)
	for n := int64(0); n <= 10; n++ {
		if n > 0 {
			want *= n
		}
		r := run(t, factorial, fmt.Sprintf("%d\n", n))
		require.NoError(t, r.err, "n=%d", n)
		assert.Equal(t, fmt.Sprintf("%d \n", want), r.out, "n=%d", n)
	}
}

func TestRecursiveActivationsAreIndependent(t *testing.T) {
	src := `PROGRAM P;
PROCEDURE Down(k : INTEGER);
BEGIN
    IF (k) :
        Down(k - 1);
        PRINT k
    ENDIF
END;
BEGIN
    Down(3)
END.`
	for _, scoping := range []Scoping{ScopingCopy, ScopingLexical} {
		r := run(t, src, "", WithScoping(scoping))
		require.NoError(t, r.err, scoping.String())
		assert.Equal(t, "1 \n2 \n3 \n", r.out, scoping.String())
	}
}

const inheritance = `PROGRAM P;
VAR x : INTEGER;
PROCEDURE Change();
BEGIN
    x := 99;
    PRINT x
END;
BEGIN
    x := 1;
    Change();
    PRINT x
END.`

func TestValueCopyInheritance(t *testing.T) {
	r := run(t, inheritance, "")
	require.NoError(t, r.err)
	assert.Equal(t, "99 \n1 \n", r.out)
}

func TestLexicalScopingWritesThrough(t *testing.T) {
	r := run(t, inheritance, "", WithScoping(ScopingLexical))
	require.NoError(t, r.err)
	assert.Equal(t, "99 \n99 \n", r.out)
}

func TestNestedProcedures(t *testing.T) {
	src := `PROGRAM P;
VAR x : INTEGER;
PROCEDURE Outer(a : INTEGER);
VAR y : INTEGER;
    PROCEDURE Inner;
    BEGIN
        y := a * 10;
        x := x + 1
    END;
BEGIN
    y := 0;
    Inner();
    PRINT y
END;
BEGIN
    x := 5;
    Outer(3);
    PRINT x
END.`

	tests := []struct {
		scoping  Scoping
		expected string
	}{
		{ScopingCopy, "0 \n5 \n"},
		{ScopingLexical, "30 \n6 \n"},
	}
	for _, tt := range tests {
		r := run(t, src, "", WithScoping(tt.scoping))
		require.NoError(t, r.err, tt.scoping.String())
		assert.Equal(t, tt.expected, r.out, tt.scoping.String())
	}
}

func TestInheritedIntegerType(t *testing.T) {
	src := `PROGRAM P;
VAR x : INTEGER;
PROCEDURE Q();
BEGIN
    x := 2.5;
    PRINT x
END;
BEGIN
    x := 1;
    Q();
    PRINT x
END.`

	// A copied name carries no declared type, so the local copy takes the REAL.
	r := run(t, src, "", WithScoping(ScopingCopy))
	require.NoError(t, r.err)
	assert.Equal(t, "2.5 \n1 \n", r.out)
	x, _ := r.interp.Global().Get("x")
	assert.Equal(t, KindInteger, x.Kind())

	// Lexical lookups reach the declaring record and its INTEGER type.
	r = run(t, src, "", WithScoping(ScopingLexical))
	assert.True(t, diag.Is(r.err, diag.KindTypeError), "%v", r.err)
	assert.Empty(t, r.out)
}

func TestControlFlow(t *testing.T) {
	tests := []struct {
		body     string
		expected string
	}{
		{`IF (0) : PRINT 1 ELSE : PRINT 2 ENDIF`, "2 \n"},
		{`IF (3) : PRINT 1 ELSE : PRINT 2 ENDIF`, "1 \n"},
		{`IF (0.0) : PRINT 1 ENDIF`, ""},
		{`IF (0.5) : PRINT 1 ENDIF`, "1 \n"},
		{`WHILE (0) : PRINT 1 ENDWHILE`, ""},
		{`n := 3; WHILE (n) : PRINT n; n := n - 1 ENDWHILE`, "3 \n2 \n1 \n"},
	}

	for _, tt := range tests {
		src := "PROGRAM P;\nVAR n : INTEGER;\nBEGIN\n" + tt.body + "\nEND."
		r := run(t, src, "")
		require.NoError(t, r.err, tt.body)
		assert.Equal(t, tt.expected, r.out, tt.body)
	}
}

func TestArityMismatch(t *testing.T) {
	tests := []struct {
		call    string
		message string
	}{
		{"Two(1)", "too few"},
		{"Two(1, 2, 3)", "too many"},
	}

	for _, tt := range tests {
		src := `PROGRAM P;
PROCEDURE Two(a, b : INTEGER);
BEGIN
    PRINT a + b
END;
BEGIN
    ` + tt.call + `
END.`
		r := run(t, src, "")
		require.Error(t, r.err, tt.call)
		assert.True(t, diag.Is(r.err, diag.KindArity), r.err.Error())
		assert.Contains(t, r.err.Error(), tt.message)
		assert.Empty(t, r.out)
	}
}

func TestRealArgumentForIntegerParameter(t *testing.T) {
	src := `PROGRAM P;
PROCEDURE Q(a : INTEGER; b : REAL);
BEGIN
END;
BEGIN
    Q(1, 2);
    Q(1.5, 2)
END.`
	r := run(t, src, "")
	require.Error(t, r.err)
	assert.True(t, diag.Is(r.err, diag.KindTypeError), r.err.Error())
	d, _ := diag.As(r.err)
	assert.Equal(t, 7, d.Line)
}

func TestRuntimeErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		kind diag.Kind
	}{
		{"unset variable", "PRINT n", diag.KindUndefinedVariable},
		{"float division by zero", "PRINT 1 / 0", diag.KindDivisionByZero},
		{"integer division by zero", "PRINT 1 DIV 0", diag.KindDivisionByZero},
		{"real integer division by zero", "PRINT 1.5 DIV 0.0", diag.KindDivisionByZero},
		{"power too large", "PRINT 10 ^ 19", diag.KindOverflow},
		{"power of negative base", "PRINT (0 - 2) ^ 0.5", diag.KindOverflow},
		{"infinite power", "PRINT 10.0 ^ 400", diag.KindOverflow},
		{"integer division too large", "PRINT 100000000000000000000000.5 DIV 1", diag.KindOverflow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := "PROGRAM P;\nVAR n : INTEGER;\nBEGIN\n" + tt.body + "\nEND."
			r := run(t, src, "")
			require.Error(t, r.err)
			assert.True(t, diag.Is(r.err, tt.kind), r.err.Error())
			assert.Empty(t, r.out)
		})
	}
}

func TestRead(t *testing.T) {
	src := `PROGRAM P;
VAR a : INTEGER;
    b : REAL;
BEGIN
    READ a;
    READ b;
    PRINT a << b
END.`

	r := run(t, src, "42 ignored\n  3.5\n", WithPrompt("? "))
	require.NoError(t, r.err)
	assert.Equal(t, "? ? 42 3.5 \n", r.out)

	b, _ := r.interp.Global().Get("b")
	assert.Equal(t, KindReal, b.Kind())

	// the last line does not need a newline
	r = run(t, src, "1\n2")
	require.NoError(t, r.err)
	assert.Equal(t, "1 2 \n", r.out)
}

func TestReadErrors(t *testing.T) {
	src := `PROGRAM P;
VAR a : INTEGER;
BEGIN
    READ a
END.`

	tests := []struct {
		input string
		kind  diag.Kind
	}{
		{"", diag.KindInputError},
		{"\n", diag.KindInputError},
		{"abc\n", diag.KindInputError},
		{"1.2.3\n", diag.KindInputError},
		{"2.5\n", diag.KindTypeError},
	}

	for _, tt := range tests {
		r := run(t, src, tt.input)
		require.Error(t, r.err, "input %q", tt.input)
		assert.True(t, diag.Is(r.err, tt.kind), "input %q: %v", tt.input, r.err)
	}
}

func TestCallDepthLimit(t *testing.T) {
	src := `PROGRAM P;
PROCEDURE Forever(k : INTEGER);
BEGIN
    Forever(k + 1)
END;
BEGIN
    Forever(0)
END.`
	r := run(t, src, "", WithMaxDepth(50))
	require.Error(t, r.err)
	assert.True(t, diag.Is(r.err, diag.KindStackOverflow), r.err.Error())

	d, _ := diag.As(r.err)
	assert.Equal(t, 4, d.Line)
}

func TestCallDepthLimitIsNeverUnbounded(t *testing.T) {
	src := `PROGRAM P;
PROCEDURE Forever(k : INTEGER);
BEGIN
    Forever(k + 1)
END;
BEGIN
    Forever(0)
END.`
	for _, depth := range []int{0, -1} {
		r := run(t, src, "", WithMaxDepth(depth))
		assert.True(t, diag.Is(r.err, diag.KindStackOverflow), "depth %d: %v", depth, r.err)
		assert.Equal(t, DefaultMaxDepth, r.interp.stack.maxDepth)
	}
}

func TestCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := runContext(ctx, t, "PROGRAM P;\nBEGIN\nWHILE (1) : ENDWHILE\nEND.", "")
	require.Error(t, r.err)
	assert.True(t, diag.Is(r.err, diag.KindCancelled), r.err.Error())
}

func TestFrameTracing(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	r := run(t, inheritance, "", WithLogger(logger))
	require.NoError(t, r.err)

	out := buf.String()
	assert.Contains(t, out, `msg="enter frame" name=P kind=PROGRAM level=1 depth=1`)
	assert.Contains(t, out, `msg="enter frame" name=Change kind=PROCEDURE level=2 depth=2`)
	assert.Contains(t, out, `msg="leave frame" name=Change`)
}

func TestParseScoping(t *testing.T) {
	s, err := ParseScoping("Lexical")
	require.NoError(t, err)
	assert.Equal(t, ScopingLexical, s)

	s, err = ParseScoping("")
	require.NoError(t, err)
	assert.Equal(t, ScopingCopy, s)

	_, err = ParseScoping("dynamic")
	assert.Error(t, err)
}

func TestIntegerCache(t *testing.T) {
	assert.Same(t, NewInteger(5), NewInteger(5))
	assert.Same(t, ZERO, NewInteger(0))
	assert.NotSame(t, NewInteger(1000), NewInteger(1000))
	assert.Equal(t, "INTEGER", KindInteger.String())
	assert.Equal(t, "REAL", NewReal(1).Kind().String())
}
