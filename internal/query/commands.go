package query

import (
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/skaji/gql/internal/grammar"
	"github.com/skaji/gql/internal/schema"
	"github.com/skaji/gql/internal/source"
)

// Definition returns where the name under the cursor is defined. Built-in
// names and names the schema does not know have no definition.
func Definition(s *schema.Schema, text string, pos source.Position, def grammar.Definition) *source.Location {
	c := ResolveAt(s, text, pos, def)
	if c == nil || s == nil || s.Schema == nil {
		return nil
	}
	switch c.Slot {
	case SlotNamedType:
		return s.TypeLocation(c.Name)
	case SlotDefinitionName:
		if c.Kind == grammar.KindDirectiveDef {
			return s.DirectiveLocation(c.Name)
		}
		return s.TypeLocation(c.Name)
	case SlotOperation:
		if root := s.Root(operationOf(c.Kind)); root != nil {
			return s.TypeLocation(root.Name)
		}
	case SlotField:
		if c.Field != nil && c.FieldParent != nil {
			return s.FieldLocation(c.FieldParent.Name, c.Field.Name)
		}
	case SlotArgument:
		if c.Arg != nil && c.Field != nil && c.FieldParent != nil {
			return s.ArgumentLocation(c.FieldParent.Name, c.Field.Name, c.Arg.Name)
		}
	case SlotDirectiveArgument:
		if c.Arg != nil && c.Directive != nil {
			return s.DirectiveArgumentLocation(c.Directive.Name, c.Arg.Name)
		}
	case SlotObjectField:
		if c.ObjectField != nil && c.ObjectType != nil {
			return s.InputFieldLocation(c.ObjectType.Name, c.ObjectField.Name)
		}
	case SlotDirective:
		return s.DirectiveLocation(c.Name)
	}
	return nil
}

// Hover returns SDL signatures for the name under the cursor, most specific
// first.
func Hover(s *schema.Schema, text string, pos source.Position, def grammar.Definition) []string {
	c := ResolveAt(s, text, pos, def)
	if c == nil || s == nil || s.Schema == nil {
		return nil
	}
	switch c.Slot {
	case SlotNamedType, SlotDefinitionName:
		if c.Kind == grammar.KindDirectiveDef {
			return signatures(schema.DirectiveSignature(c.Directive))
		}
		return signatures(schema.TypeSignature(s.Type(c.Name)))
	case SlotField:
		if c.Field == nil {
			return nil
		}
		out := []string{schema.FieldSignature(c.Field)}
		if c.FieldParent != nil && c.FieldParent == s.Mutation {
			for _, arg := range c.Field.Arguments {
				if d := s.Type(arg.Type.Name()); d != nil && d.Kind == ast.InputObject {
					out = append(out, schema.TypeSignature(d))
				}
			}
		}
		return signatures(append(out, schema.TypeSignature(s.Type(c.Field.Type.Name())))...)
	case SlotArgument, SlotDirectiveArgument:
		if c.Arg == nil {
			return nil
		}
		return signatures(schema.ArgumentSignature(c.Arg), schema.TypeSignature(s.Type(c.Arg.Type.Name())))
	case SlotObjectField:
		if c.ObjectField == nil {
			return nil
		}
		return signatures(schema.FieldSignature(c.ObjectField), schema.TypeSignature(s.Type(c.ObjectField.Type.Name())))
	case SlotDirective:
		return signatures(schema.DirectiveSignature(c.Directive))
	}
	return nil
}

func signatures(sigs ...string) []string {
	var out []string
	for _, sig := range sigs {
		if sig != "" {
			out = append(out, sig)
		}
	}
	return out
}

// References returns the definition of the type under the cursor followed
// by every reference to it.
func References(s *schema.Schema, text string, pos source.Position, def grammar.Definition) []source.Location {
	c := ResolveAt(s, text, pos, def)
	if c == nil || s == nil || s.Schema == nil {
		return nil
	}
	var name string
	switch c.Slot {
	case SlotNamedType:
		name = c.Name
	case SlotDefinitionName:
		if c.Kind != grammar.KindDirectiveDef {
			name = c.Name
		}
	}
	if name == "" || s.Type(name) == nil {
		return nil
	}
	var out []source.Location
	if loc := s.TypeLocation(name); loc != nil {
		out = append(out, *loc)
	}
	return append(out, s.Dependents(name)...)
}
