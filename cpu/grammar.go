// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package cpu

import (
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// asmLine is one line of assembly source.
//
//	[label:]... [MNEMONIC|.DIRECTIVE] [operand [, operand]...] [; comment]
type asmLine struct {
	Labels   []string      `@Label*`
	Op       string        `( @Ident | @Directive )?`
	Operands []*asmOperand `( @@ ( "," @@ )* )?`
}

// asmOperand is a single operand. Exactly one field is set.
type asmOperand struct {
	Register *string `  @Register`
	Number   *string `| @Number`
	Char     *string `| @Char`
	String   *string `| @String`
	Expr     *string `| @Expr`
	Symbol   *string `| @Ident`
}

// labels returns the line labels, without their colons.
func (line *asmLine) labels() (labels []string) {
	for _, label := range line.Labels {
		labels = append(labels, strings.TrimSuffix(label, ":"))
	}
	return
}

// empty returns true if the line has no labels, and no statement.
func (line *asmLine) empty() bool {
	return len(line.Labels) == 0 && len(line.Op) == 0 && len(line.Operands) == 0
}

// MMXI assembly lexer definition
var asmLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `[ \t\r]+`},
	{Name: "Comment", Pattern: `;[^\n]*`},

	// Compile time expressions, one level of nested parentheses.
	{Name: "Expr", Pattern: `\$\((?:[^()]|\([^()]*\))*\)`},

	{Name: "String", Pattern: `"(?:\\.|[^"\\])*"`},
	{Name: "Char", Pattern: `'(?:\\.|[^'\\])'`},
	{Name: "Label", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*:`},
	{Name: "Register", Pattern: `[rR][0-7]\b`},
	{Name: "Number", Pattern: `#-?[0-9]+\b|#[xX][0-9a-fA-F]+\b|0[xX][0-9a-fA-F]+\b|[xX][0-9a-fA-F]+\b|-?[0-9]+\b`},
	{Name: "Directive", Pattern: `\.[a-zA-Z]+`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Punct", Pattern: `,`},
})

// asmParser parses a single line of assembly source.
var asmParser = participle.MustBuild[asmLine](
	participle.Lexer(asmLexer),
	participle.Elide("Whitespace", "Comment"),
	participle.UseLookahead(2),
)
