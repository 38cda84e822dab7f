package ast

import (
	"bytes"
	"decipher/pkg/token"
	"strconv"
	"strings"
)

type Node interface {
	TokenLiteral() string
	String() string
}

type Statement interface {
	Node
	statementNode()
}

type Expression interface {
	Node
	expressionNode()
}

// Declaration is anything allowed in the declaration part of a block.
type Declaration interface {
	Node
	declarationNode()
}

// Callee is what a ProcedureCall resolves to. The analyzer sets it once and
// the interpreter reads it on every invocation.
type Callee interface {
	ProcName() string
	Level() int
	Formals() []*Param
	Body() *Block
}

type Program struct {
	Token token.Token // the 'PROGRAM' token
	Name  string
	Block *Block
}

func (p *Program) TokenLiteral() string { return p.Token.Literal }
func (p *Program) String() string {
	var out bytes.Buffer
	out.WriteString("PROGRAM " + p.Name + ";\n")
	if p.Block != nil {
		out.WriteString(p.Block.String())
	}
	out.WriteString(".")
	return out.String()
}

type Block struct {
	Token        token.Token // first token of the block
	Declarations []Declaration
	Compound     *Compound
}

func (b *Block) TokenLiteral() string { return b.Token.Literal }
func (b *Block) String() string {
	var out bytes.Buffer
	inVar := false
	for _, d := range b.Declarations {
		switch d := d.(type) {
		case *VarDecl:
			if !inVar {
				out.WriteString("VAR\n")
				inVar = true
			}
			out.WriteString("\t" + d.String() + ";\n")
		default:
			inVar = false
			out.WriteString(d.String() + ";\n")
		}
	}
	if b.Compound != nil {
		out.WriteString(b.Compound.String())
	}
	return out.String()
}

// Declarations

type VarDecl struct {
	Token token.Token // the variable's identifier token
	Var   *Var
	Type  *Type
}

func (vd *VarDecl) declarationNode()     {}
func (vd *VarDecl) TokenLiteral() string { return vd.Token.Literal }
func (vd *VarDecl) String() string       { return vd.Var.String() + " : " + vd.Type.String() }

type Type struct {
	Token token.Token
	Name  string
}

func (t *Type) TokenLiteral() string { return t.Token.Literal }
func (t *Type) String() string       { return t.Name }

type ProcedureDecl struct {
	Token  token.Token // the 'PROCEDURE' token
	Name   string
	Params []*Param
	Block  *Block
}

func (pd *ProcedureDecl) declarationNode()     {}
func (pd *ProcedureDecl) TokenLiteral() string { return pd.Token.Literal }
func (pd *ProcedureDecl) String() string {
	var out bytes.Buffer
	out.WriteString("PROCEDURE " + pd.Name)
	if len(pd.Params) > 0 {
		params := []string{}
		for _, p := range pd.Params {
			params = append(params, p.String())
		}
		out.WriteString("(" + strings.Join(params, "; ") + ")")
	}
	out.WriteString(";\n")
	if pd.Block != nil {
		out.WriteString(pd.Block.String())
	}
	return out.String()
}

type Param struct {
	Token token.Token
	Var   *Var
	Type  *Type
}

func (p *Param) TokenLiteral() string { return p.Token.Literal }
func (p *Param) String() string       { return p.Var.String() + " : " + p.Type.String() }

// Statements

type Compound struct {
	Token    token.Token // the 'BEGIN' token
	Children []Statement
}

func (c *Compound) statementNode()       {}
func (c *Compound) TokenLiteral() string { return c.Token.Literal }
func (c *Compound) String() string {
	var out bytes.Buffer
	out.WriteString("BEGIN\n")
	out.WriteString(indent(joinStatements(c.Children)))
	out.WriteString("\nEND")
	return out.String()
}

type Assign struct {
	Token  token.Token // the ':=' token
	Target *Var
	Value  Expression
}

func (a *Assign) statementNode()       {}
func (a *Assign) TokenLiteral() string { return a.Token.Literal }
func (a *Assign) String() string       { return a.Target.String() + " := " + a.Value.String() }

type NoOp struct {
	Token token.Token
}

func (n *NoOp) statementNode()       {}
func (n *NoOp) TokenLiteral() string { return n.Token.Literal }
func (n *NoOp) String() string       { return "" }

type ProcedureCall struct {
	Token     token.Token // the procedure name
	Name      string
	Arguments []Expression
	Symbol    Callee // nil until the program is analyzed
}

func (pc *ProcedureCall) statementNode()       {}
func (pc *ProcedureCall) TokenLiteral() string { return pc.Token.Literal }
func (pc *ProcedureCall) String() string {
	args := []string{}
	for _, a := range pc.Arguments {
		args = append(args, a.String())
	}
	return pc.Name + "(" + strings.Join(args, ", ") + ")"
}

type Read struct {
	Token  token.Token // the 'READ' token
	Target *Var
}

func (r *Read) statementNode()       {}
func (r *Read) TokenLiteral() string { return r.Token.Literal }
func (r *Read) String() string       { return "READ " + r.Target.String() }

type Print struct {
	Token token.Token // the 'PRINT' token
	Items []Expression
}

func (p *Print) statementNode()       {}
func (p *Print) TokenLiteral() string { return p.Token.Literal }
func (p *Print) String() string {
	items := []string{}
	for _, it := range p.Items {
		items = append(items, it.String())
	}
	return "PRINT " + strings.Join(items, " << ")
}

type Condition struct {
	Token token.Token // the 'IF' token
	Cond  Expression
	Then  []Statement
	Else  []Statement // nil when there is no ELSE branch
}

func (c *Condition) statementNode()       {}
func (c *Condition) TokenLiteral() string { return c.Token.Literal }
func (c *Condition) String() string {
	var out bytes.Buffer
	out.WriteString("IF (" + c.Cond.String() + ") :\n")
	out.WriteString(indent(joinStatements(c.Then)))
	if c.Else != nil {
		out.WriteString("\nELSE :\n")
		out.WriteString(indent(joinStatements(c.Else)))
	}
	out.WriteString("\nENDIF")
	return out.String()
}

type Loop struct {
	Token token.Token // the 'WHILE' token
	Cond  Expression
	Body  []Statement
}

func (l *Loop) statementNode()       {}
func (l *Loop) TokenLiteral() string { return l.Token.Literal }
func (l *Loop) String() string {
	var out bytes.Buffer
	out.WriteString("WHILE (" + l.Cond.String() + ") :\n")
	out.WriteString(indent(joinStatements(l.Body)))
	out.WriteString("\nENDWHILE")
	return out.String()
}

// Expressions

type Var struct {
	Token token.Token // the token.ID token
	Name  string
}

func (v *Var) expressionNode()      {}
func (v *Var) TokenLiteral() string { return v.Token.Literal }
func (v *Var) String() string       { return v.Name }

type Num struct {
	Token   token.Token
	Literal string
	IsReal  bool
	Int     int64
	Real    float64
}

func (n *Num) expressionNode()      {}
func (n *Num) TokenLiteral() string { return n.Token.Literal }
func (n *Num) String() string       { return n.Literal }

type Message struct {
	Token token.Token // the token.STRING token
	Value string
}

func (m *Message) expressionNode()      {}
func (m *Message) TokenLiteral() string { return m.Token.Literal }
func (m *Message) String() string       { return strconv.Quote(m.Value) }

type BinOp struct {
	Token    token.Token // the operator token
	Operator token.TokenType
	Left     Expression
	Right    Expression
}

func (b *BinOp) expressionNode()      {}
func (b *BinOp) TokenLiteral() string { return b.Token.Literal }
func (b *BinOp) String() string {
	var out bytes.Buffer
	out.WriteString("(")
	out.WriteString(b.Left.String())
	out.WriteString(" " + b.Token.Literal + " ")
	out.WriteString(b.Right.String())
	out.WriteString(")")
	return out.String()
}

type UnaryOp struct {
	Token    token.Token // the prefix token, e.g. -
	Operator token.TokenType
	Operand  Expression
}

func (u *UnaryOp) expressionNode()      {}
func (u *UnaryOp) TokenLiteral() string { return u.Token.Literal }
func (u *UnaryOp) String() string       { return "(" + u.Token.Literal + u.Operand.String() + ")" }

func joinStatements(stmts []Statement) string {
	parts := make([]string, 0, len(stmts))
	for _, s := range stmts {
		parts = append(parts, s.String())
	}
	return strings.Join(parts, ";\n")
}

func indent(s string) string {
	if s == "" {
		return s
	}
	return "\t" + strings.ReplaceAll(s, "\n", "\n\t")
}
