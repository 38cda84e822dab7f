package parser

import (
	"decipher/pkg/ast"
	"decipher/pkg/diag"
	"decipher/pkg/lexer"
	"decipher/pkg/token"
	"strconv"
)

const (
	_ int = iota
	LOWEST
	SUM     // + -
	PRODUCT // * / DIV
	POWER   // ^, right associative
	PREFIX  // -X or +X
)

var precedences = map[token.TokenType]int{
	token.PLUS:        SUM,
	token.MINUS:       SUM,
	token.MUL:         PRODUCT,
	token.FLOAT_DIV:   PRODUCT,
	token.INTEGER_DIV: PRODUCT,
	token.POW:         POWER,
}

type (
	prefixParseFn func() (ast.Expression, error)
	infixParseFn  func(ast.Expression) (ast.Expression, error)
)

// Parser is a recursive-descent parser over a token stream. curToken is the
// next token to consume; peekToken is one further and is only used to tell a
// procedure call from an assignment. Parsing stops at the first error.
type Parser struct {
	l   *lexer.Lexer
	err error

	curToken  token.Token
	peekToken token.Token
	peekErr   error

	prefixParseFns map[token.TokenType]prefixParseFn
	infixParseFns  map[token.TokenType]infixParseFn
}

func New(l *lexer.Lexer) *Parser {
	p := &Parser{l: l}

	p.prefixParseFns = make(map[token.TokenType]prefixParseFn)
	p.registerPrefix(token.ID, p.parseVar)
	p.registerPrefix(token.INTEGER_CONST, p.parseNum)
	p.registerPrefix(token.REAL_CONST, p.parseNum)
	p.registerPrefix(token.PLUS, p.parseUnaryOp)
	p.registerPrefix(token.MINUS, p.parseUnaryOp)
	p.registerPrefix(token.LPAREN, p.parseGroupedExpression)

	p.infixParseFns = make(map[token.TokenType]infixParseFn)
	for tt := range precedences {
		p.registerInfix(tt, p.parseBinOp)
	}

	// Read two tokens, so curToken and peekToken are both set
	if err := p.nextToken(); err != nil {
		p.err = err
	} else if err := p.nextToken(); err != nil {
		p.err = err
	}

	return p
}

// nextToken advances the window. A lexical error is held back until the
// parser actually steps onto the bad token, so errors surface in source order.
func (p *Parser) nextToken() error {
	if p.peekErr != nil {
		return p.peekErr
	}
	p.curToken = p.peekToken
	p.peekToken, p.peekErr = p.l.NextToken()
	return nil
}

// ParseProgram parses a whole program and requires the input to end after
// its final DOT.
func (p *Parser) ParseProgram() (*ast.Program, error) {
	if p.err != nil {
		return nil, p.err
	}

	program := &ast.Program{Token: p.curToken}
	if err := p.eat(token.PROGRAM); err != nil {
		return nil, err
	}
	program.Name = p.curToken.Literal
	if err := p.eat(token.ID); err != nil {
		return nil, err
	}
	if err := p.eat(token.SEMI); err != nil {
		return nil, err
	}

	block, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	program.Block = block

	if err := p.eat(token.DOT); err != nil {
		return nil, err
	}
	if !p.curTokenIs(token.EOF) {
		return nil, p.errorf("unexpected %s %q after end of program", p.curToken.Type, p.curToken.Literal)
	}

	return program, nil
}

func (p *Parser) parseBlock() (*ast.Block, error) {
	block := &ast.Block{Token: p.curToken}

	decls, err := p.parseDeclarations()
	if err != nil {
		return nil, err
	}
	block.Declarations = decls

	block.Compound, err = p.parseCompound()
	if err != nil {
		return nil, err
	}
	return block, nil
}

func (p *Parser) parseDeclarations() ([]ast.Declaration, error) {
	decls := []ast.Declaration{}

	if p.curTokenIs(token.VAR) {
		if err := p.nextToken(); err != nil {
			return nil, err
		}
		if !p.curTokenIs(token.ID) {
			return nil, p.expectError(token.ID)
		}
		for p.curTokenIs(token.ID) {
			vars, err := p.parseVarDecl()
			if err != nil {
				return nil, err
			}
			for _, v := range vars {
				decls = append(decls, v)
			}
			if err := p.eat(token.SEMI); err != nil {
				return nil, err
			}
		}
	}

	for p.curTokenIs(token.PROCEDURE) {
		proc, err := p.parseProcedureDecl()
		if err != nil {
			return nil, err
		}
		decls = append(decls, proc)
	}

	return decls, nil
}

// parseNameList reads ID (COMMA ID)*.
func (p *Parser) parseNameList() ([]*ast.Var, error) {
	vars := []*ast.Var{}
	for {
		v := &ast.Var{Token: p.curToken, Name: p.curToken.Literal}
		if err := p.eat(token.ID); err != nil {
			return nil, err
		}
		vars = append(vars, v)
		if !p.curTokenIs(token.COMMA) {
			return vars, nil
		}
		if err := p.nextToken(); err != nil {
			return nil, err
		}
	}
}

func (p *Parser) parseVarDecl() ([]*ast.VarDecl, error) {
	vars, err := p.parseNameList()
	if err != nil {
		return nil, err
	}
	if err := p.eat(token.COLON); err != nil {
		return nil, err
	}
	typ, err := p.parseTypeSpec()
	if err != nil {
		return nil, err
	}

	decls := make([]*ast.VarDecl, 0, len(vars))
	for _, v := range vars {
		decls = append(decls, &ast.VarDecl{Token: v.Token, Var: v, Type: typ})
	}
	return decls, nil
}

// parseTypeSpec accepts the builtin type keywords and, so that the analyzer
// can report it as an unknown type, any other identifier.
func (p *Parser) parseTypeSpec() (*ast.Type, error) {
	switch p.curToken.Type {
	case token.INTEGER, token.REAL, token.ID:
		typ := &ast.Type{Token: p.curToken, Name: p.curToken.Literal}
		return typ, p.nextToken()
	default:
		return nil, p.errorf("expected a type name, got %s %q", p.curToken.Type, p.curToken.Literal)
	}
}

func (p *Parser) parseProcedureDecl() (*ast.ProcedureDecl, error) {
	decl := &ast.ProcedureDecl{Token: p.curToken, Params: []*ast.Param{}}
	if err := p.eat(token.PROCEDURE); err != nil {
		return nil, err
	}
	decl.Name = p.curToken.Literal
	if err := p.eat(token.ID); err != nil {
		return nil, err
	}

	if p.curTokenIs(token.LPAREN) {
		if err := p.nextToken(); err != nil {
			return nil, err
		}
		if !p.curTokenIs(token.RPAREN) {
			params, err := p.parseFormalParameterList()
			if err != nil {
				return nil, err
			}
			decl.Params = params
		}
		if err := p.eat(token.RPAREN); err != nil {
			return nil, err
		}
	}

	if err := p.eat(token.SEMI); err != nil {
		return nil, err
	}
	block, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	decl.Block = block
	if err := p.eat(token.SEMI); err != nil {
		return nil, err
	}
	return decl, nil
}

// parseFormalParameterList reads groups like "a, b : INTEGER; c : REAL".
func (p *Parser) parseFormalParameterList() ([]*ast.Param, error) {
	params := []*ast.Param{}
	for {
		vars, err := p.parseNameList()
		if err != nil {
			return nil, err
		}
		if err := p.eat(token.COLON); err != nil {
			return nil, err
		}
		typ, err := p.parseTypeSpec()
		if err != nil {
			return nil, err
		}
		for _, v := range vars {
			params = append(params, &ast.Param{Token: v.Token, Var: v, Type: typ})
		}
		if !p.curTokenIs(token.SEMI) {
			return params, nil
		}
		if err := p.nextToken(); err != nil {
			return nil, err
		}
	}
}

func (p *Parser) parseCompound() (*ast.Compound, error) {
	compound := &ast.Compound{Token: p.curToken}
	if err := p.eat(token.BEGIN); err != nil {
		return nil, err
	}
	children, err := p.parseStatementList()
	if err != nil {
		return nil, err
	}
	compound.Children = children
	if err := p.eat(token.END); err != nil {
		return nil, err
	}
	return compound, nil
}

func (p *Parser) parseStatementList() ([]ast.Statement, error) {
	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	stmts := []ast.Statement{stmt}

	for p.curTokenIs(token.SEMI) {
		if err := p.nextToken(); err != nil {
			return nil, err
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}

	if p.curTokenIs(token.ID) {
		return nil, p.errorf("missing ';' before %q", p.curToken.Literal)
	}
	return stmts, nil
}

func (p *Parser) parseStatement() (ast.Statement, error) {
	switch p.curToken.Type {
	case token.BEGIN:
		return p.parseCompound()
	case token.READ:
		return p.parseRead()
	case token.PRINT:
		return p.parsePrint()
	case token.IF:
		return p.parseCondition()
	case token.WHILE:
		return p.parseLoop()
	case token.ID:
		if p.peekTokenIs(token.LPAREN) {
			return p.parseProcedureCall()
		}
		return p.parseAssign()
	default:
		return &ast.NoOp{Token: p.curToken}, nil
	}
}

func (p *Parser) parseAssign() (*ast.Assign, error) {
	target := &ast.Var{Token: p.curToken, Name: p.curToken.Literal}
	if err := p.eat(token.ID); err != nil {
		return nil, err
	}
	stmt := &ast.Assign{Token: p.curToken, Target: target}
	if err := p.eat(token.ASSIGN); err != nil {
		return nil, err
	}
	value, err := p.parseExpression(LOWEST)
	if err != nil {
		return nil, err
	}
	stmt.Value = value
	return stmt, nil
}

func (p *Parser) parseProcedureCall() (*ast.ProcedureCall, error) {
	call := &ast.ProcedureCall{Token: p.curToken, Name: p.curToken.Literal, Arguments: []ast.Expression{}}
	if err := p.eat(token.ID); err != nil {
		return nil, err
	}
	if err := p.eat(token.LPAREN); err != nil {
		return nil, err
	}

	if !p.curTokenIs(token.RPAREN) {
		for {
			arg, err := p.parseExpression(LOWEST)
			if err != nil {
				return nil, err
			}
			call.Arguments = append(call.Arguments, arg)
			if !p.curTokenIs(token.COMMA) {
				break
			}
			if err := p.nextToken(); err != nil {
				return nil, err
			}
		}
	}

	if err := p.eat(token.RPAREN); err != nil {
		return nil, err
	}
	return call, nil
}

func (p *Parser) parseRead() (*ast.Read, error) {
	stmt := &ast.Read{Token: p.curToken}
	if err := p.eat(token.READ); err != nil {
		return nil, err
	}
	stmt.Target = &ast.Var{Token: p.curToken, Name: p.curToken.Literal}
	if err := p.eat(token.ID); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) parsePrint() (*ast.Print, error) {
	stmt := &ast.Print{Token: p.curToken}
	if err := p.eat(token.PRINT); err != nil {
		return nil, err
	}

	for {
		item, err := p.parsePrintItem()
		if err != nil {
			return nil, err
		}
		stmt.Items = append(stmt.Items, item)
		if !p.curTokenIs(token.SEP) {
			return stmt, nil
		}
		if err := p.nextToken(); err != nil {
			return nil, err
		}
	}
}

func (p *Parser) parsePrintItem() (ast.Expression, error) {
	if p.curTokenIs(token.STRING) {
		msg := &ast.Message{Token: p.curToken, Value: p.curToken.Literal}
		return msg, p.nextToken()
	}
	return p.parseExpression(LOWEST)
}

// parseGuard reads "( expr ) :" shared by IF and WHILE.
func (p *Parser) parseGuard() (ast.Expression, error) {
	if err := p.eat(token.LPAREN); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression(LOWEST)
	if err != nil {
		return nil, err
	}
	if err := p.eat(token.RPAREN); err != nil {
		return nil, err
	}
	if err := p.eat(token.COLON); err != nil {
		return nil, err
	}
	return cond, nil
}

func (p *Parser) parseCondition() (*ast.Condition, error) {
	stmt := &ast.Condition{Token: p.curToken}
	if err := p.eat(token.IF); err != nil {
		return nil, err
	}
	cond, err := p.parseGuard()
	if err != nil {
		return nil, err
	}
	stmt.Cond = cond

	if stmt.Then, err = p.parseStatementList(); err != nil {
		return nil, err
	}

	if p.curTokenIs(token.ELSE) {
		if err := p.nextToken(); err != nil {
			return nil, err
		}
		if err := p.eat(token.COLON); err != nil {
			return nil, err
		}
		if stmt.Else, err = p.parseStatementList(); err != nil {
			return nil, err
		}
	}

	if err := p.eat(token.ENDIF); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) parseLoop() (*ast.Loop, error) {
	stmt := &ast.Loop{Token: p.curToken}
	if err := p.eat(token.WHILE); err != nil {
		return nil, err
	}
	cond, err := p.parseGuard()
	if err != nil {
		return nil, err
	}
	stmt.Cond = cond

	if stmt.Body, err = p.parseStatementList(); err != nil {
		return nil, err
	}
	if err := p.eat(token.ENDWHILE); err != nil {
		return nil, err
	}
	return stmt, nil
}

// Expressions

func (p *Parser) parseExpression(precedence int) (ast.Expression, error) {
	prefix := p.prefixParseFns[p.curToken.Type]
	if prefix == nil {
		return nil, p.noPrefixParseFnError()
	}
	left, err := prefix()
	if err != nil {
		return nil, err
	}

	for precedence < p.curPrecedence() {
		infix := p.infixParseFns[p.curToken.Type]
		if infix == nil {
			return left, nil
		}
		if left, err = infix(left); err != nil {
			return nil, err
		}
	}

	return left, nil
}

func (p *Parser) parseVar() (ast.Expression, error) {
	v := &ast.Var{Token: p.curToken, Name: p.curToken.Literal}
	return v, p.nextToken()
}

func (p *Parser) parseNum() (ast.Expression, error) {
	num := &ast.Num{Token: p.curToken, Literal: p.curToken.Literal}

	if p.curTokenIs(token.REAL_CONST) {
		value, err := strconv.ParseFloat(p.curToken.Literal, 64)
		if err != nil {
			return nil, p.errorf("could not parse %q as real", p.curToken.Literal)
		}
		num.IsReal = true
		num.Real = value
	} else {
		value, err := strconv.ParseInt(p.curToken.Literal, 10, 64)
		if err != nil {
			return nil, p.errorf("could not parse %q as integer", p.curToken.Literal)
		}
		num.Int = value
	}

	return num, p.nextToken()
}

func (p *Parser) parseUnaryOp() (ast.Expression, error) {
	expr := &ast.UnaryOp{Token: p.curToken, Operator: p.curToken.Type}
	if err := p.nextToken(); err != nil {
		return nil, err
	}
	operand, err := p.parseExpression(PREFIX)
	if err != nil {
		return nil, err
	}
	expr.Operand = operand
	return expr, nil
}

func (p *Parser) parseGroupedExpression() (ast.Expression, error) {
	if err := p.eat(token.LPAREN); err != nil {
		return nil, err
	}
	exp, err := p.parseExpression(LOWEST)
	if err != nil {
		return nil, err
	}
	if err := p.eat(token.RPAREN); err != nil {
		return nil, err
	}
	return exp, nil
}

func (p *Parser) parseBinOp(left ast.Expression) (ast.Expression, error) {
	expr := &ast.BinOp{Token: p.curToken, Operator: p.curToken.Type, Left: left}

	precedence := p.curPrecedence()
	if expr.Operator == token.POW {
		precedence-- // right associative
	}
	if err := p.nextToken(); err != nil {
		return nil, err
	}
	right, err := p.parseExpression(precedence)
	if err != nil {
		return nil, err
	}
	expr.Right = right
	return expr, nil
}

// Helpers

func (p *Parser) curTokenIs(t token.TokenType) bool {
	return p.curToken.Type == t
}

func (p *Parser) peekTokenIs(t token.TokenType) bool {
	return p.peekToken.Type == t
}

// eat consumes the current token if it has type t.
func (p *Parser) eat(t token.TokenType) error {
	if !p.curTokenIs(t) {
		return p.expectError(t)
	}
	return p.nextToken()
}

func (p *Parser) expectError(t token.TokenType) error {
	return p.errorf("expected %s, got %s %q", t, p.curToken.Type, p.curToken.Literal)
}

func (p *Parser) noPrefixParseFnError() error {
	return p.errorf("expected an expression, got %s %q", p.curToken.Type, p.curToken.Literal)
}

func (p *Parser) errorf(format string, a ...interface{}) error {
	return diag.At(diag.KindSyntax, p.curToken.Line, p.curToken.Column, p.curToken.Literal, format, a...)
}

func (p *Parser) curPrecedence() int {
	if p, ok := precedences[p.curToken.Type]; ok {
		return p
	}
	return LOWEST
}

func (p *Parser) registerPrefix(tokenType token.TokenType, fn prefixParseFn) {
	p.prefixParseFns[tokenType] = fn
}

func (p *Parser) registerInfix(tokenType token.TokenType, fn infixParseFn) {
	p.infixParseFns[tokenType] = fn
}
