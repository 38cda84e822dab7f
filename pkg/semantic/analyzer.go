// Package semantic resolves every name in a parsed program against nested
// scopes and attaches procedure symbols to their call sites.
package semantic

import (
	"decipher/pkg/ast"
	"decipher/pkg/diag"
	"decipher/pkg/symbols"
	"io"
	"log/slog"
)

type Option func(*Analyzer)

// WithLogger traces scope entry and exit at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) { a.log = logger }
}

type Analyzer struct {
	log     *slog.Logger
	current *symbols.ScopedSymbolTable
	scopes  []*symbols.ScopedSymbolTable
}

func New(opts ...Option) *Analyzer {
	a := &Analyzer{log: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze walks program once, depth first, and returns the first semantic
// violation. On success every ProcedureCall in the tree has its Symbol set.
func (a *Analyzer) Analyze(program *ast.Program) error {
	a.current = symbols.NewBuiltins()
	a.scopes = []*symbols.ScopedSymbolTable{a.current}
	return a.visit(program)
}

// Scopes returns every table built by the last Analyze call in the order
// they were entered, starting with the builtins.
func (a *Analyzer) Scopes() []*symbols.ScopedSymbolTable {
	return a.scopes
}

func (a *Analyzer) enterScope(name string) {
	a.current = symbols.NewScopedSymbolTable(name, a.current.Level+1, a.current)
	a.scopes = append(a.scopes, a.current)
	a.log.Debug("enter scope", "scope", name, "level", a.current.Level)
}

func (a *Analyzer) leaveScope() {
	a.log.Debug("leave scope", "scope", a.current.Name, "level", a.current.Level, "symbols", a.current.Len())
	a.current = a.current.Outer
}

func (a *Analyzer) visit(node ast.Node) error {
	switch node := node.(type) {
	case *ast.Program:
		a.enterScope("GLOBAL")
		if err := a.visit(node.Block); err != nil {
			return err
		}
		a.leaveScope()

	case *ast.Block:
		for _, d := range node.Declarations {
			if err := a.visit(d); err != nil {
				return err
			}
		}
		return a.visit(node.Compound)

	case *ast.VarDecl:
		typ, err := a.resolveType(node.Type)
		if err != nil {
			return err
		}
		return a.declare(symbols.NewVar(node.Var.Name, typ, a.current.Level), node.Var.Token.Line, node.Var.Token.Column)

	case *ast.ProcedureDecl:
		return a.visitProcedureDecl(node)

	case *ast.Compound:
		return a.visitStatements(node.Children)

	case *ast.NoOp:

	case *ast.Assign:
		if err := a.visit(node.Value); err != nil {
			return err
		}
		return a.resolveVar(node.Target)

	case *ast.Read:
		return a.resolveVar(node.Target)

	case *ast.Print:
		for _, item := range node.Items {
			if err := a.visit(item); err != nil {
				return err
			}
		}

	case *ast.Condition:
		if err := a.visit(node.Cond); err != nil {
			return err
		}
		if err := a.visitStatements(node.Then); err != nil {
			return err
		}
		return a.visitStatements(node.Else)

	case *ast.Loop:
		if err := a.visit(node.Cond); err != nil {
			return err
		}
		return a.visitStatements(node.Body)

	case *ast.ProcedureCall:
		return a.visitProcedureCall(node)

	case *ast.Var:
		return a.resolveVar(node)

	case *ast.BinOp:
		if err := a.visit(node.Left); err != nil {
			return err
		}
		return a.visit(node.Right)

	case *ast.UnaryOp:
		return a.visit(node.Operand)

	case *ast.Num, *ast.Message:
	}

	return nil
}

func (a *Analyzer) visitStatements(stmts []ast.Statement) error {
	for _, s := range stmts {
		if err := a.visit(s); err != nil {
			return err
		}
	}
	return nil
}

// visitProcedureDecl declares the procedure in the enclosing scope before
// opening its own, so the body can call itself.
func (a *Analyzer) visitProcedureDecl(node *ast.ProcedureDecl) error {
	proc := symbols.NewProcedure(node, a.current.Level)
	if err := a.declare(proc, node.Token.Line, node.Token.Column); err != nil {
		return err
	}

	a.enterScope(node.Name)
	for _, param := range node.Params {
		typ, err := a.resolveType(param.Type)
		if err != nil {
			return err
		}
		v := symbols.NewVar(param.Var.Name, typ, a.current.Level)
		if err := a.declare(v, param.Var.Token.Line, param.Var.Token.Column); err != nil {
			return err
		}
		proc.Params = append(proc.Params, v)
	}

	if err := a.visit(node.Block); err != nil {
		return err
	}
	a.leaveScope()
	return nil
}

func (a *Analyzer) visitProcedureCall(node *ast.ProcedureCall) error {
	sym, ok := a.current.Lookup(node.Name, false)
	if !ok {
		return diag.At(diag.KindProcedureNotFound, node.Token.Line, node.Token.Column, node.Name,
			"procedure %q not found", node.Name)
	}
	proc, ok := sym.(*symbols.ProcedureSymbol)
	if !ok {
		return diag.At(diag.KindProcedureNotFound, node.Token.Line, node.Token.Column, node.Name,
			"%q is a %s, not a procedure", node.Name, sym.Kind())
	}
	node.Symbol = proc

	for _, arg := range node.Arguments {
		if err := a.visit(arg); err != nil {
			return err
		}
	}
	return nil
}

func (a *Analyzer) declare(sym symbols.Symbol, line, column int) error {
	if !a.current.Insert(sym) {
		return diag.At(diag.KindDuplicateDeclaration, line, column, sym.Name(),
			"duplicate identifier %q found in scope %s", sym.Name(), a.current.Name)
	}
	return nil
}

func (a *Analyzer) resolveType(t *ast.Type) (*symbols.BuiltinTypeSymbol, error) {
	sym, ok := a.current.Lookup(t.Name, false)
	if ok {
		if typ, ok := sym.(*symbols.BuiltinTypeSymbol); ok {
			return typ, nil
		}
	}
	return nil, diag.At(diag.KindUnknownType, t.Token.Line, t.Token.Column, t.Name,
		"unknown type %q", t.Name)
}

func (a *Analyzer) resolveVar(v *ast.Var) error {
	sym, ok := a.current.Lookup(v.Name, false)
	if !ok {
		return diag.At(diag.KindUndeclaredIdentifier, v.Token.Line, v.Token.Column, v.Name,
			"identifier not found: %s", v.Name)
	}
	if sym.Kind() != symbols.KindVar {
		return diag.At(diag.KindNotAVariable, v.Token.Line, v.Token.Column, v.Name,
			"%q is a %s, not a variable", v.Name, sym.Kind())
	}
	return nil
}
