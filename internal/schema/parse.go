// Package schema merges schema documents into one typed schema. Besides the
// gqlparser schema it keeps, for every named type, the locations of every
// reference to it, and it can locate any definition name in its file.
package schema

import (
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/skaji/gql/internal/diag"
	"github.com/skaji/gql/internal/source"
	"github.com/skaji/gql/internal/trace"
)

// ParsedDocument is one parsed schema file. Exactly one of AST and Err is
// set.
type ParsedDocument struct {
	Source source.Source
	AST    *ast.SchemaDocument
	Err    *diag.Diagnostic

	src    *ast.Source
	tokens *tokenIndex
}

// Parse parses one schema file.
func Parse(src source.Source, tr *trace.Tracer) ParsedDocument {
	span := tr.Start("parse", "path", src.Path, "side", "schema")
	defer span.End()

	in := &ast.Source{Name: src.Path, Input: src.Text}
	doc, err := parser.ParseSchema(in)
	if err != nil {
		d := diag.Syntax(err, src.Path)
		if d == nil {
			d = &diag.Diagnostic{Message: "Syntax Error: " + err.Error(), Severity: diag.SeverityError}
		}
		return ParsedDocument{Source: src, Err: d}
	}
	return ParsedDocument{Source: src, AST: doc, src: in, tokens: indexTokens(in)}
}

// Failed records a file that could not be read.
func Failed(src source.Source, err error) ParsedDocument {
	d := diag.Errorf([]source.Location{diag.At(src.Path, source.Position{Line: 1, Column: 1})}, "%v", err)
	return ParsedDocument{Source: src, Err: &d}
}

// astSource returns the gqlparser source every position in AST points to.
func (d ParsedDocument) astSource() *ast.Source {
	if d.src != nil {
		return d.src
	}
	if d.AST != nil && d.AST.Position != nil {
		return d.AST.Position.Src
	}
	return nil
}
