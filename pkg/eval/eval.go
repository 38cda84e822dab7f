package eval

import (
	"bufio"
	"context"
	"decipher/pkg/ast"
	"decipher/pkg/diag"
	"decipher/pkg/token"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
)

// Scoping selects how a procedure sees the names of enclosing scopes.
type Scoping uint8

const (
	// ScopingCopy seeds each new activation record with a value copy of the
	// caller's record. Writes to inherited names never propagate back.
	ScopingCopy Scoping = iota
	// ScopingLexical links each record to the record of the scope the
	// procedure was declared in, so inherited names are shared.
	ScopingLexical
)

func (s Scoping) String() string {
	if s == ScopingLexical {
		return "lexical"
	}
	return "copy"
}

func ParseScoping(s string) (Scoping, error) {
	switch strings.ToLower(s) {
	case "", "copy":
		return ScopingCopy, nil
	case "lexical":
		return ScopingLexical, nil
	default:
		return ScopingCopy, fmt.Errorf("unknown scoping mode %q (want copy or lexical)", s)
	}
}

const (
	DefaultMaxDepth = 1000
	DefaultPrompt   = "? "
)

type Option func(*Interpreter)

func WithInput(r io.Reader) Option {
	return func(in *Interpreter) { in.input = bufio.NewReader(r) }
}

func WithOutput(w io.Writer) Option {
	return func(in *Interpreter) { in.out = w }
}

func WithLogger(logger *slog.Logger) Option {
	return func(in *Interpreter) { in.log = logger }
}

func WithScoping(s Scoping) Option {
	return func(in *Interpreter) { in.scoping = s }
}

// WithMaxDepth bounds the call stack, counting the program's own record.
// n <= 0 keeps DefaultMaxDepth.
func WithMaxDepth(n int) Option {
	return func(in *Interpreter) { in.maxDepth = n }
}

// WithPrompt sets the text written before READ blocks for input.
func WithPrompt(p string) Option {
	return func(in *Interpreter) { in.prompt = p }
}

// Interpreter walks an analyzed program. It is not safe for concurrent use;
// create one per run.
type Interpreter struct {
	input    *bufio.Reader
	out      io.Writer
	log      *slog.Logger
	scoping  Scoping
	maxDepth int
	prompt   string

	stack  *CallStack
	global *ActivationRecord
}

func New(opts ...Option) *Interpreter {
	in := &Interpreter{
		out:      os.Stdout,
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxDepth: DefaultMaxDepth,
		prompt:   DefaultPrompt,
	}
	for _, opt := range opts {
		opt(in)
	}
	if in.input == nil {
		in.input = bufio.NewReader(os.Stdin)
	}
	if in.maxDepth <= 0 {
		in.maxDepth = DefaultMaxDepth
	}
	in.stack = NewCallStack(in.maxDepth)
	return in
}

// Interpret runs program to completion or to its first runtime error. ctx is
// checked on every loop iteration and procedure call.
func (in *Interpreter) Interpret(ctx context.Context, program *ast.Program) (Object, error) {
	return in.Eval(ctx, program)
}

// Global returns the program's activation record from the last run, or nil.
func (in *Interpreter) Global() *ActivationRecord {
	return in.global
}

func (in *Interpreter) Eval(ctx context.Context, node ast.Node) (Object, error) {
	switch node := node.(type) {
	// Expressions
	case *ast.Var:
		val, ok := in.current().Get(node.Name)
		if !ok {
			return nil, diag.At(diag.KindUndefinedVariable, node.Token.Line, node.Token.Column, node.Name,
				"variable %q has no value", node.Name)
		}
		return val, nil

	case *ast.Num:
		if node.IsReal {
			return NewReal(node.Real), nil
		}
		return NewInteger(node.Int), nil

	case *ast.Message:
		return &Text{Value: node.Value}, nil

	case *ast.BinOp:
		left, err := in.Eval(ctx, node.Left)
		if err != nil {
			return nil, err
		}
		right, err := in.Eval(ctx, node.Right)
		if err != nil {
			return nil, err
		}
		return evalBinOp(node, left, right)

	case *ast.UnaryOp:
		operand, err := in.Eval(ctx, node.Operand)
		if err != nil {
			return nil, err
		}
		return evalUnaryOp(node, operand)

	// Statements
	case *ast.Program:
		return in.evalProgram(ctx, node)

	case *ast.Block:
		for _, d := range node.Declarations {
			if _, err := in.Eval(ctx, d); err != nil {
				return nil, err
			}
		}
		return in.Eval(ctx, node.Compound)

	case *ast.VarDecl:
		in.current().Declare(node.Var.Name, node.Type.Name)
		return NULL, nil

	case *ast.ProcedureDecl:
		return NULL, nil

	case *ast.Compound:
		return in.evalStatements(ctx, node.Children)

	case *ast.NoOp:
		return NULL, nil

	case *ast.Assign:
		val, err := in.Eval(ctx, node.Value)
		if err != nil {
			return nil, err
		}
		return NULL, in.assign(node.Target, val)

	case *ast.Read:
		val, err := in.read(node)
		if err != nil {
			return nil, err
		}
		return NULL, in.assign(node.Target, val)

	case *ast.Print:
		return in.evalPrint(ctx, node)

	case *ast.Condition:
		cond, err := in.Eval(ctx, node.Cond)
		if err != nil {
			return nil, err
		}
		if err := checkCondition(node.Token, cond); err != nil {
			return nil, err
		}
		if isTruthy(cond) {
			return in.evalStatements(ctx, node.Then)
		}
		return in.evalStatements(ctx, node.Else)

	case *ast.Loop:
		return in.evalLoop(ctx, node)

	case *ast.ProcedureCall:
		return in.evalProcedureCall(ctx, node)
	}

	return nil, fmt.Errorf("eval: unsupported node %T", node)
}

func (in *Interpreter) evalProgram(ctx context.Context, program *ast.Program) (Object, error) {
	ar := NewActivationRecord(program.Name, FrameProgram, 1)
	if err := in.push(ar); err != nil {
		return nil, err
	}
	defer in.pop()

	in.global = ar
	if _, err := in.Eval(ctx, program.Block); err != nil {
		return nil, err
	}
	return NULL, nil
}

func (in *Interpreter) evalStatements(ctx context.Context, stmts []ast.Statement) (Object, error) {
	for _, s := range stmts {
		if _, err := in.Eval(ctx, s); err != nil {
			return nil, err
		}
	}
	return NULL, nil
}

func (in *Interpreter) evalLoop(ctx context.Context, node *ast.Loop) (Object, error) {
	for {
		if err := cancelled(ctx, node.Token); err != nil {
			return nil, err
		}
		cond, err := in.Eval(ctx, node.Cond)
		if err != nil {
			return nil, err
		}
		if err := checkCondition(node.Token, cond); err != nil {
			return nil, err
		}
		if !isTruthy(cond) {
			return NULL, nil
		}
		if _, err := in.evalStatements(ctx, node.Body); err != nil {
			return nil, err
		}
	}
}

// evalPrint renders every item before writing, so a failing item produces
// no partial line.
func (in *Interpreter) evalPrint(ctx context.Context, node *ast.Print) (Object, error) {
	var out strings.Builder
	for _, item := range node.Items {
		val, err := in.Eval(ctx, item)
		if err != nil {
			return nil, err
		}
		out.WriteString(val.Inspect())
		if val.Kind().Numeric() {
			out.WriteByte(' ')
		}
	}
	out.WriteByte('\n')

	if _, err := io.WriteString(in.out, out.String()); err != nil {
		return nil, fmt.Errorf("writing output: %w", err)
	}
	return NULL, nil
}

func (in *Interpreter) evalProcedureCall(ctx context.Context, node *ast.ProcedureCall) (Object, error) {
	if err := cancelled(ctx, node.Token); err != nil {
		return nil, err
	}

	callee := node.Symbol
	if callee == nil {
		return nil, diag.At(diag.KindProcedureNotFound, node.Token.Line, node.Token.Column, node.Name,
			"procedure %q was never resolved", node.Name)
	}

	formals := callee.Formals()
	switch {
	case len(node.Arguments) < len(formals):
		return nil, diag.At(diag.KindArity, node.Token.Line, node.Token.Column, node.Name,
			"too few arguments in call to %s: got %d, want %d", node.Name, len(node.Arguments), len(formals))
	case len(node.Arguments) > len(formals):
		return nil, diag.At(diag.KindArity, node.Token.Line, node.Token.Column, node.Name,
			"too many arguments in call to %s: got %d, want %d", node.Name, len(node.Arguments), len(formals))
	}

	ar := NewActivationRecord(callee.ProcName(), FrameProcedure, callee.Level()+1)
	for i, arg := range node.Arguments {
		val, err := in.Eval(ctx, arg)
		if err != nil {
			return nil, err
		}
		param := formals[i]
		if param.Type.Name == token.INTEGER && val.Kind() == KindReal {
			return nil, diag.At(diag.KindTypeError, node.Token.Line, node.Token.Column, param.Var.Name,
				"cannot pass REAL value %s as INTEGER parameter %q of %s", val.Inspect(), param.Var.Name, node.Name)
		}
		ar.Declare(param.Var.Name, param.Type.Name)
		ar.members[param.Var.Name] = val
	}

	switch in.scoping {
	case ScopingLexical:
		ar.link = in.stack.nearest(callee.Level())
	default:
		ar.inherit(in.current())
	}

	if err := in.push(ar); err != nil {
		if d, ok := diag.As(err); ok {
			d.Line, d.Column, d.Token = node.Token.Line, node.Token.Column, node.Name
		}
		return nil, err
	}
	defer in.pop()

	return in.Eval(ctx, callee.Body())
}

// current returns the active record. Outside a program run that is a
// throwaway record, so bare expressions can still be evaluated.
func (in *Interpreter) current() *ActivationRecord {
	if ar := in.stack.Peek(); ar != nil {
		return ar
	}
	return NewActivationRecord("", FrameProgram, 0)
}

func (in *Interpreter) push(ar *ActivationRecord) error {
	if err := in.stack.Push(ar); err != nil {
		return err
	}
	in.log.Debug("enter frame", "name", ar.Name, "kind", ar.Kind, "level", ar.NestingLevel, "depth", in.stack.Depth())
	return nil
}

func (in *Interpreter) pop() {
	ar := in.stack.Pop()
	in.log.Debug("leave frame", "name", ar.Name, "kind", ar.Kind, "level", ar.NestingLevel, "members", len(ar.members))
}

// assign stores val into target, rejecting a real value for a name declared
// INTEGER.
func (in *Interpreter) assign(target *ast.Var, val Object) error {
	ar := in.current()
	if typ, ok := ar.DeclaredType(target.Name); ok && typ == token.INTEGER && val.Kind() == KindReal {
		return diag.At(diag.KindTypeError, target.Token.Line, target.Token.Column, target.Name,
			"cannot assign REAL value %s to INTEGER variable %q", val.Inspect(), target.Name)
	}
	ar.Set(target.Name, val)
	return nil
}

// read writes the prompt and takes the first whitespace separated field of
// the next input line as a number.
func (in *Interpreter) read(node *ast.Read) (Object, error) {
	if in.prompt != "" {
		if _, err := io.WriteString(in.out, in.prompt); err != nil {
			return nil, fmt.Errorf("writing prompt: %w", err)
		}
	}

	line, err := in.input.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		if err == io.EOF {
			return nil, diag.At(diag.KindInputError, node.Token.Line, node.Token.Column, node.Target.Name,
				"unexpected end of input reading %s", node.Target.Name)
		}
		return nil, fmt.Errorf("reading input: %w", err)
	}

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, diag.At(diag.KindInputError, node.Token.Line, node.Token.Column, node.Target.Name,
			"expected a number for %s, got an empty line", node.Target.Name)
	}
	return parseNumber(node, fields[0])
}

func parseNumber(node *ast.Read, s string) (Object, error) {
	if strings.Contains(s, ".") {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, diag.At(diag.KindInputError, node.Token.Line, node.Token.Column, node.Target.Name,
				"invalid number %q for %s", s, node.Target.Name)
		}
		return NewReal(v), nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, diag.At(diag.KindInputError, node.Token.Line, node.Token.Column, node.Target.Name,
			"invalid number %q for %s", s, node.Target.Name)
	}
	return NewInteger(v), nil
}

func evalBinOp(node *ast.BinOp, left, right Object) (Object, error) {
	lf, lok := toFloat(left)
	rf, rok := toFloat(right)
	if !lok || !rok {
		return nil, diag.At(diag.KindTypeMismatch, node.Token.Line, node.Token.Column, node.Token.Literal,
			"type mismatch: %s %s %s", left.Kind(), node.Token.Literal, right.Kind())
	}
	bothInt := left.Kind() == KindInteger && right.Kind() == KindInteger

	switch node.Operator {
	case token.PLUS, token.MINUS, token.MUL:
		if bothInt {
			return evalIntegerBinOp(node.Operator, left.(*Integer).Value, right.(*Integer).Value), nil
		}
		return evalRealBinOp(node.Operator, lf, rf), nil

	case token.INTEGER_DIV:
		if rf == 0 {
			return nil, divisionByZero(node)
		}
		if bothInt {
			return NewInteger(left.(*Integer).Value / right.(*Integer).Value), nil
		}
		return toInteger(node, math.Trunc(lf/rf))

	case token.FLOAT_DIV:
		if rf == 0 {
			return nil, divisionByZero(node)
		}
		return NewReal(lf / rf), nil

	case token.POW:
		return toInteger(node, math.Floor(math.Pow(lf, rf)+0.5))
	}

	return nil, fmt.Errorf("eval: unknown operator %s", node.Operator)
}

func evalIntegerBinOp(op token.TokenType, l, r int64) Object {
	switch op {
	case token.PLUS:
		return NewInteger(l + r)
	case token.MINUS:
		return NewInteger(l - r)
	default:
		return NewInteger(l * r)
	}
}

func evalRealBinOp(op token.TokenType, l, r float64) Object {
	switch op {
	case token.PLUS:
		return NewReal(l + r)
	case token.MINUS:
		return NewReal(l - r)
	default:
		return NewReal(l * r)
	}
}

func evalUnaryOp(node *ast.UnaryOp, operand Object) (Object, error) {
	switch operand := operand.(type) {
	case *Integer:
		if node.Operator == token.MINUS {
			return NewInteger(-operand.Value), nil
		}
		return operand, nil
	case *Real:
		if node.Operator == token.MINUS {
			return NewReal(-operand.Value), nil
		}
		return operand, nil
	}
	return nil, diag.At(diag.KindTypeMismatch, node.Token.Line, node.Token.Column, node.Token.Literal,
		"type mismatch: %s%s", node.Token.Literal, operand.Kind())
}

// toInteger converts an integral float result, rejecting NaN and values
// outside the int64 range.
func toInteger(node *ast.BinOp, f float64) (Object, error) {
	if math.IsNaN(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return nil, diag.At(diag.KindOverflow, node.Token.Line, node.Token.Column, node.Token.Literal,
			"%s result %g is not a representable INTEGER", node.Token.Literal, f)
	}
	return NewInteger(int64(f)), nil
}

func divisionByZero(node *ast.BinOp) error {
	return diag.At(diag.KindDivisionByZero, node.Token.Line, node.Token.Column, node.Token.Literal,
		"division by zero")
}

func checkCondition(tok token.Token, cond Object) error {
	if !cond.Kind().Numeric() {
		return diag.At(diag.KindTypeMismatch, tok.Line, tok.Column, tok.Literal,
			"%s condition must be numeric, got %s", tok.Literal, cond.Kind())
	}
	return nil
}

func cancelled(ctx context.Context, tok token.Token) error {
	if err := ctx.Err(); err != nil {
		return diag.At(diag.KindCancelled, tok.Line, tok.Column, tok.Literal, "execution stopped: %v", err)
	}
	return nil
}
