// Package query answers editor questions about a cursor position in a
// GraphQL document: what may be typed there, where the name under the cursor
// is defined, what it looks like, and what refers to it.
//
// Every function here is pure. It reads one schema snapshot and the text it
// is given, and it returns an empty value instead of failing.
package query

import (
	"unicode"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/skaji/gql/internal/grammar"
	"github.com/skaji/gql/internal/schema"
	"github.com/skaji/gql/internal/source"
)

// Slot classifies the token under the cursor for the navigation commands.
type Slot int

const (
	SlotNone Slot = iota
	SlotNamedType
	SlotTypeCondition
	SlotOperation
	SlotField
	SlotArgument
	SlotObjectField
	SlotDirective
	SlotDirectiveArgument
	SlotDefinitionName
)

var slotNames = [...]string{
	SlotNone:              "none",
	SlotNamedType:         "named-type",
	SlotTypeCondition:     "type-condition",
	SlotOperation:         "operation",
	SlotField:             "field",
	SlotArgument:          "argument",
	SlotObjectField:       "object-field",
	SlotDirective:         "directive",
	SlotDirectiveArgument: "directive-argument",
	SlotDefinitionName:    "definition-name",
}

func (s Slot) String() string {
	if int(s) < len(slotNames) {
		return slotNames[s]
	}
	return "unknown"
}

// TypeContext is what the schema says about one cursor position. Any
// component the schema cannot resolve is nil.
type TypeContext struct {
	Kind   string
	Step   int
	Name   string
	Token  grammar.Token
	State  *grammar.State
	Offset int
	Slot   Slot

	// ParentType owns the innermost selection set.
	ParentType *ast.Definition
	// Type is the named type of the innermost field, fragment or type
	// reference.
	Type        *ast.Definition
	Field       *ast.FieldDefinition
	FieldParent *ast.Definition

	ArgDefs   ast.ArgumentDefinitionList
	Arg       *ast.ArgumentDefinition
	Directive *ast.DirectiveDefinition

	// InputType is the expected type of the value under the cursor.
	InputType    *ast.Type
	ObjectType   *ast.Definition
	ObjectFields ast.FieldList
	ObjectField  *ast.FieldDefinition
	EnumValue    *ast.EnumValueDefinition
}

var typenameField = &ast.FieldDefinition{
	Name:        "__typename",
	Description: "The name of the current Object type at runtime.",
	Type:        ast.NonNullNamedType("String", nil),
}

// ResolveAt tokenizes text with def up to pos and resolves the parser state
// there against s. It returns nil when pos is outside every document.
func ResolveAt(s *schema.Schema, text string, pos source.Position, def grammar.Definition) *TypeContext {
	if def == nil {
		return nil
	}
	offset := source.IndexLines(text).Offset(pos)
	tok := tokenAt(def, text, offset)
	if tok == nil || tok.State == nil {
		return nil
	}
	state := tok.State
	if state.Kind == grammar.KindInvalid {
		state = state.Parent()
	}
	if state == nil || state.Kind == "" {
		return nil
	}
	c := &TypeContext{
		Kind:   state.Kind,
		Step:   state.Step,
		Name:   state.Name,
		Token:  *tok,
		State:  state,
		Offset: offset,
	}
	c.resolve(s)
	c.Slot = c.classify()
	return c
}

// tokenAt prefers a name that starts at offset over the whitespace or
// punctuation that ends there, so a cursor placed before a name lands on it.
func tokenAt(def grammar.Definition, text string, offset int) *grammar.Token {
	tok := grammar.TokenAt(def, text, offset)
	if tok == nil || tok.End != offset || isName(tok.Text) {
		return tok
	}
	if next := grammar.TokenAt(def, text, offset+1); next != nil && next.Start == offset && isName(next.Text) {
		return next
	}
	return tok
}

func isName(text string) bool {
	if text == "" {
		return false
	}
	for i, r := range text {
		if r == '_' || r < unicode.MaxASCII && unicode.IsLetter(r) {
			continue
		}
		if i > 0 && r >= '0' && r <= '9' {
			continue
		}
		return false
	}
	return true
}

func (c *TypeContext) resolve(s *schema.Schema) {
	var (
		typ   *ast.Definition
		input *ast.Type
	)
	chain := c.State.Chain()
	for i, st := range chain {
		leaf := i == len(chain)-1
		switch st.Kind {
		case grammar.KindQuery, grammar.KindShortQuery:
			typ = s.Root(ast.Query)
		case grammar.KindMutation:
			typ = s.Root(ast.Mutation)
		case grammar.KindSubscription:
			typ = s.Root(ast.Subscription)
		case grammar.KindFragmentDefinition, grammar.KindInlineFragment:
			if st.Type != "" {
				typ = s.Type(st.Type)
			}
		case grammar.KindField, grammar.KindAliasedField:
			// An alias token carries the alias, not the field name.
			name := st.Name
			if leaf && st.Kind == grammar.KindAliasedField && st.Step < 2 {
				name = ""
			}
			c.FieldParent = c.ParentType
			c.Field = fieldDef(c.ParentType, name)
			typ = nil
			if c.Field != nil {
				typ = s.Type(c.Field.Type.Name())
			}
		case grammar.KindSelectionSet:
			c.ParentType = typ
		case grammar.KindDirective:
			c.Directive = s.Directive(st.Name)
		case grammar.KindArguments:
			c.ArgDefs = nil
			if i > 0 {
				switch chain[i-1].Kind {
				case grammar.KindField, grammar.KindAliasedField:
					if c.Field != nil {
						c.ArgDefs = c.Field.Arguments
					}
				case grammar.KindDirective:
					if c.Directive != nil {
						c.ArgDefs = c.Directive.Arguments
					}
				}
			}
		case grammar.KindArgument:
			c.Arg = c.ArgDefs.ForName(st.Name)
			input = nil
			if c.Arg != nil {
				input = c.Arg.Type
			}
		case grammar.KindListValue:
			if input != nil {
				input = input.Elem
			}
		case grammar.KindObjectValue:
			c.ObjectType, c.ObjectFields = nil, nil
			if input != nil {
				if d := s.Type(input.Name()); d != nil && d.Kind == ast.InputObject {
					c.ObjectType, c.ObjectFields = d, d.Fields
				}
			}
		case grammar.KindObjectField:
			c.ObjectField = c.ObjectFields.ForName(st.Name)
			input = nil
			if c.ObjectField != nil {
				input = c.ObjectField.Type
			}
		case grammar.KindEnumValue:
			if input != nil {
				if d := s.Type(input.Name()); d != nil && d.Kind == ast.Enum {
					c.EnumValue = d.EnumValues.ForName(st.Name)
				}
			}
		case grammar.KindNamedType:
			typ = s.Type(st.Name)
		case grammar.KindObjectTypeDef, grammar.KindInterfaceDef, grammar.KindInputDef,
			grammar.KindEnumDef, grammar.KindUnionDef, grammar.KindScalarDef:
			typ = s.Type(st.Name)
			c.ParentType = typ
		case grammar.KindFieldDef:
			c.FieldParent = c.ParentType
			c.Field = fieldDef(c.ParentType, st.Name)
		case grammar.KindDirectiveDef:
			c.Directive = s.Directive(st.Name)
		}
	}
	c.Type = typ
	c.InputType = input
}

func fieldDef(parent *ast.Definition, name string) *ast.FieldDefinition {
	if parent == nil || name == "" {
		return nil
	}
	if name == typenameField.Name {
		return typenameField
	}
	return parent.Fields.ForName(name)
}

func (c *TypeContext) classify() Slot {
	st := c.State
	switch st.Kind {
	case grammar.KindNamedType:
		if st.Step == 0 {
			return SlotNamedType
		}
	case grammar.KindTypeCondition:
		if st.Step == 1 {
			return SlotTypeCondition
		}
	case grammar.KindQuery, grammar.KindMutation, grammar.KindSubscription:
		if st.Step == 0 {
			return SlotOperation
		}
	case grammar.KindField:
		if st.Step == 0 {
			return SlotField
		}
	case grammar.KindAliasedField:
		if st.Step == 2 {
			return SlotField
		}
	case grammar.KindArgument:
		if st.Step != 0 {
			break
		}
		if args := st.Parent(); args != nil && args.Parent() != nil && args.Parent().Kind == grammar.KindDirective {
			return SlotDirectiveArgument
		}
		return SlotArgument
	case grammar.KindObjectField:
		if st.Step == 0 {
			return SlotObjectField
		}
	case grammar.KindDirective:
		if st.Step == 1 && st.Name != "" {
			return SlotDirective
		}
	case grammar.KindObjectTypeDef, grammar.KindInterfaceDef, grammar.KindUnionDef,
		grammar.KindEnumDef, grammar.KindInputDef, grammar.KindScalarDef:
		if st.Step == 1 && st.Name != "" {
			return SlotDefinitionName
		}
	case grammar.KindDirectiveDef:
		if st.Step == 2 && st.Name != "" {
			return SlotDefinitionName
		}
	}
	return SlotNone
}

// operationOf maps an operation rule kind to its operation.
func operationOf(kind string) ast.Operation {
	switch kind {
	case grammar.KindMutation:
		return ast.Mutation
	case grammar.KindSubscription:
		return ast.Subscription
	default:
		return ast.Query
	}
}
