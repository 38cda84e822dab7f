// Package runner drives source text through the whole pipeline: lexing,
// parsing, analysis and evaluation. Each stage only runs when the previous
// one succeeded.
package runner

import (
	"context"
	"decipher/pkg/ast"
	"decipher/pkg/eval"
	"decipher/pkg/lexer"
	"decipher/pkg/parser"
	"decipher/pkg/semantic"
	"decipher/pkg/symbols"
	"encoding/hex"
	"io"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/crypto/blake2b"
)

// Result describes a program that made it through at least analysis.
type Result struct {
	Program     *ast.Program
	Scopes      []*symbols.ScopedSymbolTable
	Global      *eval.ActivationRecord // nil unless the program ran
	Fingerprint string
}

type Runner struct {
	log   *slog.Logger
	opts  []eval.Option
	cache *lru.Cache // [32]byte digest -> *checked
}

// checked is what the cache keeps for a program that passed analysis. The
// interpreter only reads the tree, so one analyzed program can back any
// number of runs.
type checked struct {
	program *ast.Program
	scopes  []*symbols.ScopedSymbolTable
}

// New returns a runner whose interpreters are built with opts. A nil logger
// discards everything.
func New(logger *slog.Logger, opts ...eval.Option) *Runner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{log: logger, opts: opts}
}

// UseCache keeps up to size analyzed programs, keyed by their source
// digest, so running the same source again skips straight to evaluation.
func (r *Runner) UseCache(size int) error {
	c, err := lru.New(size)
	if err != nil {
		return err
	}
	r.cache = c
	return nil
}

// Fingerprint identifies a source text in logs: the first 8 bytes of its
// BLAKE2b-256 digest, hex encoded.
func Fingerprint(src string) string {
	sum := blake2b.Sum256([]byte(src))
	return hex.EncodeToString(sum[:8])
}

func (r *Runner) Parse(src string) (*ast.Program, error) {
	start := time.Now()
	program, err := parser.New(lexer.New(src)).ParseProgram()
	r.stage("parse", start, err)
	return program, err
}

// Check parses and analyzes src without running it.
func (r *Runner) Check(src string) (*Result, error) {
	sum := blake2b.Sum256([]byte(src))
	res := &Result{Fingerprint: hex.EncodeToString(sum[:8])}
	if r.cache != nil {
		if v, ok := r.cache.Get(sum); ok {
			c := v.(*checked)
			res.Program, res.Scopes = c.program, c.scopes
			r.log.Debug("cache hit", "fingerprint", res.Fingerprint)
			return res, nil
		}
	}
	r.log.Debug("checking program", "fingerprint", res.Fingerprint, "bytes", len(src))

	program, err := r.Parse(src)
	if err != nil {
		return res, err
	}
	res.Program = program

	start := time.Now()
	analyzer := semantic.New(semantic.WithLogger(r.log))
	err = analyzer.Analyze(program)
	res.Scopes = analyzer.Scopes()
	r.stage("analyze", start, err)
	if err == nil && r.cache != nil {
		r.cache.Add(sum, &checked{program: program, scopes: res.Scopes})
	}
	return res, err
}

// Run checks src and then interprets it. extra options are applied after
// the runner's own, so callers can swap I/O per run.
func (r *Runner) Run(ctx context.Context, src string, extra ...eval.Option) (*Result, error) {
	res, err := r.Check(src)
	if err != nil {
		return res, err
	}

	opts := append([]eval.Option{eval.WithLogger(r.log)}, r.opts...)
	opts = append(opts, extra...)
	interp := eval.New(opts...)

	start := time.Now()
	_, err = interp.Interpret(ctx, res.Program)
	res.Global = interp.Global()
	r.stage("interpret", start, err)
	return res, err
}

func (r *Runner) stage(name string, start time.Time, err error) {
	if err != nil {
		r.log.Debug("stage failed", "stage", name, "elapsed", time.Since(start), "error", err)
		return
	}
	r.log.Debug("stage done", "stage", name, "elapsed", time.Since(start))
}
