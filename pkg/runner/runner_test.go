package runner

import (
	"bytes"
	"context"
	"decipher/pkg/diag"
	"decipher/pkg/eval"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunProducesOutput(t *testing.T) {
	var out bytes.Buffer
	r := New(nil, eval.WithOutput(&out), eval.WithPrompt(""))

	res, err := r.Run(context.Background(), `PROGRAM Hello;
VAR a : INTEGER;
BEGIN
    a := 7 DIV 2;
    PRINT "a is " << a
END.`, eval.WithInput(strings.NewReader("")))
	require.NoError(t, err)
	assert.Equal(t, "a is 3 \n", out.String())

	require.NotNil(t, res.Global)
	a, ok := res.Global.Get("a")
	require.True(t, ok)
	assert.Equal(t, "3", a.Inspect())
	assert.Len(t, res.Scopes, 2)
}

func TestSemanticErrorsPrecedeAnyOutput(t *testing.T) {
	var out bytes.Buffer
	r := New(nil, eval.WithOutput(&out))

	res, err := r.Run(context.Background(), `PROGRAM P;
VAR a : INTEGER;
BEGIN
    PRINT 1;
    a := 2;
    PRINT undeclared
END.`)
	require.Error(t, err)
	assert.True(t, diag.Is(err, diag.KindUndeclaredIdentifier), err.Error())
	assert.Empty(t, out.String())
	assert.Nil(t, res.Global)
}

func TestErrorsStopAtTheirStage(t *testing.T) {
	tests := []struct {
		src   string
		class string
	}{
		{"PROGRAM P; BEGIN a := 1 $ END.", "LexicalError"},
		{"PROGRAM P; BEGIN a := END.", "SyntaxError"},
		{"PROGRAM P; BEGIN a := 1 END.", "SemanticError"},
		{"PROGRAM P; VAR a : INTEGER; BEGIN a := 1 / 0 END.", "RuntimeError"},
	}

	for _, tt := range tests {
		_, err := New(nil, eval.WithOutput(&bytes.Buffer{})).Run(context.Background(), tt.src)
		require.Error(t, err, tt.src)
		d, ok := diag.As(err)
		require.True(t, ok, tt.src)
		assert.Equal(t, tt.class, d.Kind.Class(), tt.src)
	}
}

func TestCheckDoesNotRun(t *testing.T) {
	var out bytes.Buffer
	r := New(nil, eval.WithOutput(&out))

	res, err := r.Check(`PROGRAM P; BEGIN PRINT 1 END.`)
	require.NoError(t, err)
	assert.NotNil(t, res.Program)
	assert.Empty(t, out.String())
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("PROGRAM P; BEGIN END.")
	assert.Len(t, a, 16)
	assert.Equal(t, a, Fingerprint("PROGRAM P; BEGIN END."))
	assert.NotEqual(t, a, Fingerprint("PROGRAM Q; BEGIN END."))
}

func TestStageLogging(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	_, err := New(logger, eval.WithOutput(&bytes.Buffer{})).Run(context.Background(), "PROGRAM P; BEGIN END.")
	require.NoError(t, err)

	out := logs.String()
	for _, stage := range []string{"parse", "analyze", "interpret"} {
		assert.Contains(t, out, `"stage":"`+stage+`"`)
	}
	assert.Contains(t, out, `"fingerprint":"`+Fingerprint("PROGRAM P; BEGIN END.")+`"`)
}

func TestCacheReusesAnalyzedPrograms(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var out bytes.Buffer
	r := New(logger, eval.WithOutput(&out))
	require.NoError(t, r.UseCache(4))

	src := "PROGRAM P; VAR a : INTEGER; BEGIN a := 2; PRINT a * a END."
	first, err := r.Run(context.Background(), src)
	require.NoError(t, err)
	second, err := r.Run(context.Background(), src)
	require.NoError(t, err)

	assert.Same(t, first.Program, second.Program)
	assert.Equal(t, "4 \n4 \n", out.String())
	assert.Equal(t, 1, strings.Count(logs.String(), "cache hit"))
	assert.NotSame(t, first.Global, second.Global, "each run gets fresh activation records")

	// Programs that fail analysis are never cached.
	bad := "PROGRAM P; BEGIN b := 1 END."
	_, err = r.Check(bad)
	require.Error(t, err)
	_, err = r.Check(bad)
	require.Error(t, err)
	assert.Equal(t, 1, strings.Count(logs.String(), "cache hit"))
}

func TestUseCacheRejectsBadSize(t *testing.T) {
	assert.Error(t, New(nil).UseCache(0))
}
