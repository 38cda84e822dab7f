// Package symbols holds the compile-time view of declared names: builtin
// types, variables and procedures, organised in nested scoped tables.
package symbols

import (
	"decipher/pkg/ast"
	"fmt"
)

type Kind uint8

const (
	KindBuiltinType Kind = iota
	KindVar
	KindProcedure
)

func (k Kind) String() string {
	switch k {
	case KindBuiltinType:
		return "BuiltinType"
	case KindVar:
		return "Var"
	case KindProcedure:
		return "Procedure"
	default:
		return "Unknown"
	}
}

type Symbol interface {
	Name() string
	ScopeLevel() int
	Kind() Kind
	String() string
}

type BuiltinTypeSymbol struct {
	name  string
	level int
}

func NewBuiltinType(name string, level int) *BuiltinTypeSymbol {
	return &BuiltinTypeSymbol{name: name, level: level}
}

func (s *BuiltinTypeSymbol) Name() string    { return s.name }
func (s *BuiltinTypeSymbol) ScopeLevel() int { return s.level }
func (s *BuiltinTypeSymbol) Kind() Kind      { return KindBuiltinType }
func (s *BuiltinTypeSymbol) String() string  { return s.name }

type VarSymbol struct {
	name  string
	level int
	Type  *BuiltinTypeSymbol
}

func NewVar(name string, typ *BuiltinTypeSymbol, level int) *VarSymbol {
	return &VarSymbol{name: name, level: level, Type: typ}
}

func (s *VarSymbol) Name() string    { return s.name }
func (s *VarSymbol) ScopeLevel() int { return s.level }
func (s *VarSymbol) Kind() Kind      { return KindVar }
func (s *VarSymbol) String() string  { return fmt.Sprintf("<%s:%s>", s.name, s.Type) }

// ProcedureSymbol is what call sites resolve to. It satisfies ast.Callee so
// the interpreter can invoke a procedure without looking it up by name.
type ProcedureSymbol struct {
	name   string
	level  int
	Params []*VarSymbol
	Decl   *ast.ProcedureDecl
}

func NewProcedure(decl *ast.ProcedureDecl, level int) *ProcedureSymbol {
	return &ProcedureSymbol{name: decl.Name, level: level, Decl: decl}
}

func (s *ProcedureSymbol) Name() string    { return s.name }
func (s *ProcedureSymbol) ScopeLevel() int { return s.level }
func (s *ProcedureSymbol) Kind() Kind      { return KindProcedure }
func (s *ProcedureSymbol) String() string {
	return fmt.Sprintf("<procedure %s/%d>", s.name, len(s.Decl.Params))
}

func (s *ProcedureSymbol) ProcName() string      { return s.name }
func (s *ProcedureSymbol) Level() int            { return s.level }
func (s *ProcedureSymbol) Formals() []*ast.Param { return s.Decl.Params }
func (s *ProcedureSymbol) Body() *ast.Block      { return s.Decl.Block }

var _ ast.Callee = (*ProcedureSymbol)(nil)

// ScopedSymbolTable maps names to symbols for one scope. Outer links to the
// enclosing scope; Level is 0 for builtins, 1 for the program.
type ScopedSymbolTable struct {
	Name  string
	Level int
	Outer *ScopedSymbolTable
	store map[string]Symbol
	order []string
}

func NewScopedSymbolTable(name string, level int, outer *ScopedSymbolTable) *ScopedSymbolTable {
	return &ScopedSymbolTable{
		Name:  name,
		Level: level,
		Outer: outer,
		store: make(map[string]Symbol),
	}
}

// NewBuiltins returns the level-0 table holding the predefined types.
func NewBuiltins() *ScopedSymbolTable {
	s := NewScopedSymbolTable("BUILTINS", 0, nil)
	s.Insert(NewBuiltinType("INTEGER", 0))
	s.Insert(NewBuiltinType("REAL", 0))
	return s
}

// Insert adds sym to this table. It returns false, leaving the table
// unchanged, when the name is already declared here.
func (s *ScopedSymbolTable) Insert(sym Symbol) bool {
	if _, ok := s.store[sym.Name()]; ok {
		return false
	}
	s.store[sym.Name()] = sym
	s.order = append(s.order, sym.Name())
	return true
}

// Lookup resolves name in this table and, unless currentScopeOnly is set,
// in each enclosing table in turn.
func (s *ScopedSymbolTable) Lookup(name string, currentScopeOnly bool) (Symbol, bool) {
	sym, ok := s.store[name]
	if !ok && !currentScopeOnly && s.Outer != nil {
		return s.Outer.Lookup(name, false)
	}
	return sym, ok
}

// Symbols returns the table's symbols in declaration order.
func (s *ScopedSymbolTable) Symbols() []Symbol {
	out := make([]Symbol, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.store[name])
	}
	return out
}

func (s *ScopedSymbolTable) Len() int { return len(s.order) }
