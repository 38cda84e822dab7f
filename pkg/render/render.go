// Package render formats diagnostics and debugging dumps for a terminal.
package render

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"decipher/pkg/diag"
	"decipher/pkg/eval"
	"decipher/pkg/symbols"
	"decipher/pkg/token"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"
)

// UseColor reports whether output to f should be colored.
func UseColor(f *os.File, noColor bool) bool {
	if noColor || os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func paint(useColor bool, attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if useColor {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c
}

// Diagnostic writes err on one line as "<Class>[<Kind>] line:col: message".
// When src is given and the error has a position, the offending source
// line follows with a caret under the column.
func Diagnostic(w io.Writer, err error, src string, useColor bool) {
	d, ok := diag.As(err)
	if !ok {
		paint(useColor, color.FgRed, color.Bold).Fprint(w, "error")
		fmt.Fprintf(w, ": %v\n", err)
		return
	}

	paint(useColor, color.FgRed, color.Bold).Fprintf(w, "%s[%s]", d.Kind.Class(), d.Kind)
	if d.HasPosition() {
		paint(useColor, color.Bold).Fprintf(w, " %d:%d", d.Line, d.Column)
	}
	fmt.Fprintf(w, ": %s\n", d.Msg)

	if src == "" || !d.HasPosition() {
		return
	}
	lines := strings.Split(src, "\n")
	if d.Line > len(lines) {
		return
	}
	line := strings.TrimRight(lines[d.Line-1], "\r")
	gutter := strconv.Itoa(d.Line) + " | "
	paint(useColor, color.FgBlue).Fprint(w, gutter)
	fmt.Fprintln(w, strings.ReplaceAll(line, "\t", " "))

	pad := len(gutter) + d.Column - 1
	width := len(d.Token)
	if width == 0 {
		width = 1
	}
	fmt.Fprint(w, strings.Repeat(" ", pad))
	paint(useColor, color.FgGreen, color.Bold).Fprintln(w, strings.Repeat("^", width))
}

// Tokens renders a token stream as a table.
func Tokens(w io.Writer, toks []token.Token) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Type", "Literal", "Line", "Column"})
	table.SetAutoWrapText(false)
	for i, tok := range toks {
		table.Append([]string{
			strconv.Itoa(i),
			string(tok.Type),
			strconv.Quote(tok.Literal),
			strconv.Itoa(tok.Line),
			strconv.Itoa(tok.Column),
		})
	}
	table.Render()
}

// Symbols renders every scope with its symbols, one row per symbol.
func Symbols(w io.Writer, scopes []*symbols.ScopedSymbolTable) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Scope", "Level", "Name", "Kind", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAutoMergeCells(true)
	for _, scope := range scopes {
		for _, sym := range scope.Symbols() {
			table.Append([]string{scope.Name, strconv.Itoa(scope.Level), sym.Name(), sym.Kind().String(), detail(sym)})
		}
	}
	table.Render()
}

func detail(sym symbols.Symbol) string {
	switch sym := sym.(type) {
	case *symbols.VarSymbol:
		return sym.Type.Name()
	case *symbols.ProcedureSymbol:
		params := make([]string, 0, len(sym.Params))
		for _, p := range sym.Params {
			params = append(params, p.Name()+" : "+p.Type.Name())
		}
		return "(" + strings.Join(params, "; ") + ")"
	default:
		return ""
	}
}

// Members renders the values held by an activation record.
func Members(w io.Writer, ar *eval.ActivationRecord) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Name", "Type", "Value"})
	for _, name := range ar.Names() {
		val, _ := ar.Get(name)
		typ, ok := ar.DeclaredType(name)
		if !ok {
			typ = val.Kind().String()
		}
		table.Append([]string{name, typ, val.Inspect()})
	}
	table.Render()
}
