package schema

import (
	"slices"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/skaji/gql/internal/source"
)

// Schema is an immutable, built schema. Readers may share one value across
// goroutines; every rebuild produces a new Schema.
type Schema struct {
	*ast.Schema

	dependents map[string][]source.Location
	tokens     map[*ast.Source]*tokenIndex
}

// Dependents returns the location of every reference to the named type,
// sorted by file and position.
func (s *Schema) Dependents(name string) []source.Location {
	if s == nil {
		return nil
	}
	locs := slices.Clone(s.dependents[name])
	source.SortLocations(locs)
	return locs
}

// Type returns the named type, or nil.
func (s *Schema) Type(name string) *ast.Definition {
	if s == nil || s.Schema == nil {
		return nil
	}
	return s.Types[name]
}

// Directive returns the named directive definition, or nil.
func (s *Schema) Directive(name string) *ast.DirectiveDefinition {
	if s == nil || s.Schema == nil {
		return nil
	}
	return s.Directives[name]
}

// Root returns the root type for an operation, or nil.
func (s *Schema) Root(op ast.Operation) *ast.Definition {
	if s == nil || s.Schema == nil {
		return nil
	}
	switch op {
	case ast.Mutation:
		return s.Mutation
	case ast.Subscription:
		return s.Subscription
	default:
		return s.Query
	}
}

// NameLocation returns the location of the first name at or after pos.
// Built-in nodes and synthesized nodes have no location.
func (s *Schema) NameLocation(pos *ast.Position) *source.Location {
	if s == nil || pos == nil || pos.Src == nil || pos.Src.BuiltIn {
		return nil
	}
	ix := s.tokens[pos.Src]
	if ix == nil {
		return positionLocation(pos)
	}
	tok, ok := ix.token(ix.nameAt(pos))
	if !ok {
		return nil
	}
	loc := tokenLocation(pos.Src.Name, tok)
	return &loc
}

// TypeLocation returns the location of the type's name in its definition.
func (s *Schema) TypeLocation(name string) *source.Location {
	def := s.Type(name)
	if def == nil {
		return nil
	}
	return s.NameLocation(def.Position)
}

// FieldLocation returns the location of a field name. It serves input
// fields too.
func (s *Schema) FieldLocation(typeName, field string) *source.Location {
	def := s.Type(typeName)
	if def == nil {
		return nil
	}
	f := def.Fields.ForName(field)
	if f == nil {
		return nil
	}
	return s.NameLocation(f.Position)
}

// InputFieldLocation returns the location of an input field name.
func (s *Schema) InputFieldLocation(typeName, field string) *source.Location {
	return s.FieldLocation(typeName, field)
}

// ArgumentLocation returns the location of a field argument name.
func (s *Schema) ArgumentLocation(typeName, field, arg string) *source.Location {
	def := s.Type(typeName)
	if def == nil {
		return nil
	}
	f := def.Fields.ForName(field)
	if f == nil {
		return nil
	}
	a := f.Arguments.ForName(arg)
	if a == nil {
		return nil
	}
	return s.NameLocation(a.Position)
}

// DirectiveLocation returns the location of a directive definition's name.
func (s *Schema) DirectiveLocation(name string) *source.Location {
	d := s.Directive(name)
	if d == nil {
		return nil
	}
	return s.NameLocation(d.Position)
}

// DirectiveArgumentLocation returns the location of a directive argument
// name.
func (s *Schema) DirectiveArgumentLocation(directive, arg string) *source.Location {
	d := s.Directive(directive)
	if d == nil {
		return nil
	}
	a := d.Arguments.ForName(arg)
	if a == nil {
		return nil
	}
	return s.NameLocation(a.Position)
}

// EnumValueLocation returns the location of an enum value name.
func (s *Schema) EnumValueLocation(typeName, value string) *source.Location {
	def := s.Type(typeName)
	if def == nil {
		return nil
	}
	v := def.EnumValues.ForName(value)
	if v == nil {
		return nil
	}
	return s.NameLocation(v.Position)
}

// Possible returns the object types an abstract type can resolve to. For an
// object type it is the type itself.
func (s *Schema) Possible(def *ast.Definition) []*ast.Definition {
	if s == nil || def == nil {
		return nil
	}
	if def.Kind == ast.Object {
		return []*ast.Definition{def}
	}
	var out []*ast.Definition
	for _, t := range s.Schema.PossibleTypes[def.Name] {
		if t.Kind == ast.Object {
			out = append(out, t)
		}
	}
	return out
}

// WithDirectives returns a copy of s that also knows the directives defined
// in src. Types are shared with s.
func (s *Schema) WithDirectives(src *ast.Source) (*Schema, error) {
	doc, err := parseExtra(src)
	if err != nil {
		return nil, err
	}
	inner := *s.Schema
	inner.Directives = make(map[string]*ast.DirectiveDefinition, len(s.Directives)+len(doc.Directives))
	for name, d := range s.Directives {
		inner.Directives[name] = d
	}
	for _, d := range doc.Directives {
		if _, ok := inner.Directives[d.Name]; !ok {
			inner.Directives[d.Name] = d
		}
	}
	out := *s
	out.Schema = &inner
	return &out, nil
}
