package benchmarks

import (
	"context"
	"io"
	"testing"

	"decipher/pkg/ast"
	"decipher/pkg/eval"
	"decipher/pkg/lexer"
	"decipher/pkg/parser"
	"decipher/pkg/runner"
	"decipher/pkg/semantic"
)

var result eval.Object

const addition = `PROGRAM Add;
VAR r : INTEGER;
BEGIN
  r := 5 + 5 + 5 + 5 + 5 + 5 + 5 + 5 + 5 + 5 + 5 + 5 + 5 + 5 + 5 + 5 + 5 + 5 + 5 + 5 + 5 + 5 + 5 + 5 + 5
END.`

const factorial = `PROGRAM Fact;
VAR result : INTEGER;
PROCEDURE Factorial(n : INTEGER; acc : INTEGER);
BEGIN
  IF (n) :
    Factorial(n - 1, acc * n)
  ELSE :
    result := acc
  ENDIF
END;
BEGIN
  Factorial(20, 1)
END.`

const loop = `PROGRAM Loop;
VAR i, sum : INTEGER;
BEGIN
  i := 1000;
  sum := 0;
  WHILE (i) :
    sum := sum + i DIV 3;
    i := i - 1
  ENDWHILE
END.`

func analyzed(b *testing.B, src string) *ast.Program {
	b.Helper()
	program, err := parser.New(lexer.New(src)).ParseProgram()
	if err != nil {
		b.Fatal(err)
	}
	if err := semantic.New().Analyze(program); err != nil {
		b.Fatal(err)
	}
	return program
}

func benchmarkInterpret(b *testing.B, src string, opts ...eval.Option) {
	program := analyzed(b, src)
	opts = append(opts, eval.WithOutput(io.Discard))
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		interp := eval.New(opts...)
		obj, err := interp.Interpret(ctx, program)
		if err != nil {
			b.Fatal(err)
		}
		result = obj
	}
}

func BenchmarkTreeWalkAddition(b *testing.B) { benchmarkInterpret(b, addition) }
func BenchmarkFactorialCopy(b *testing.B)    { benchmarkInterpret(b, factorial) }

func BenchmarkFactorialLexical(b *testing.B) {
	benchmarkInterpret(b, factorial, eval.WithScoping(eval.ScopingLexical))
}

func BenchmarkWhileLoop(b *testing.B) { benchmarkInterpret(b, loop) }

// Go native benchmark for comparison
func BenchmarkGoAddition(b *testing.B) {
	var result int64
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		result = 5 + 5 + 5 + 5 + 5 + 5 + 5 + 5 + 5 + 5 + 5 + 5 + 5 + 5 + 5 + 5 + 5 + 5 + 5 + 5 + 5 + 5 + 5 + 5 + 5
	}
	_ = result
}

func BenchmarkLexer(b *testing.B) {
	for i := 0; i < b.N; i++ {
		if _, err := lexer.Tokenize(factorial); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkParseAndAnalyze(b *testing.B) {
	for i := 0; i < b.N; i++ {
		analyzed(b, factorial)
	}
}

// Whole pipeline, as the CLI and playground run it.
func BenchmarkRunner(b *testing.B) {
	r := runner.New(nil, eval.WithOutput(io.Discard))
	ctx := context.Background()
	for i := 0; i < b.N; i++ {
		if _, err := r.Run(ctx, loop); err != nil {
			b.Fatal(err)
		}
	}
}
