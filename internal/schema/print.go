package schema

import (
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
)

// TypeSignature prints def as SDL. Introspection fields are left out of
// user types.
func TypeSignature(def *ast.Definition) string {
	if def == nil {
		return ""
	}
	keyword := typeKeyword(def.Kind)
	if keyword == "" {
		return def.Name
	}
	switch def.Kind {
	case ast.Object, ast.Interface:
		head := keyword + " " + def.Name
		if len(def.Interfaces) > 0 {
			head += " implements " + strings.Join(def.Interfaces, " & ")
		}
		return fieldBlock(head, def.Fields, def.BuiltIn)
	case ast.InputObject:
		return fieldBlock(keyword+" "+def.Name, def.Fields, def.BuiltIn)
	case ast.Enum:
		return enumBlock(def.Name, def.EnumValues)
	case ast.Union:
		if len(def.Types) == 0 {
			return "union " + def.Name
		}
		return "union " + def.Name + " = " + strings.Join(def.Types, " | ")
	default:
		return keyword + " " + def.Name
	}
}

func fieldBlock(head string, fields ast.FieldList, builtIn bool) string {
	var b strings.Builder
	b.WriteString(head)
	b.WriteString(" {\n")
	for _, field := range fields {
		if field == nil || (!builtIn && strings.HasPrefix(field.Name, "__")) {
			continue
		}
		b.WriteString("  ")
		b.WriteString(FieldSignature(field))
		b.WriteByte('\n')
	}
	b.WriteByte('}')
	return b.String()
}

func enumBlock(name string, values ast.EnumValueList) string {
	var b strings.Builder
	b.WriteString("enum ")
	b.WriteString(name)
	b.WriteString(" {\n")
	for _, value := range values {
		if value == nil {
			continue
		}
		b.WriteString("  ")
		b.WriteString(value.Name)
		b.WriteByte('\n')
	}
	b.WriteByte('}')
	return b.String()
}

func typeKeyword(kind ast.DefinitionKind) string {
	switch kind {
	case ast.Object:
		return "type"
	case ast.InputObject:
		return "input"
	case ast.Interface:
		return "interface"
	case ast.Enum:
		return "enum"
	case ast.Union:
		return "union"
	case ast.Scalar:
		return "scalar"
	default:
		return ""
	}
}

// FieldSignature prints "name(arg: T): T". Input fields print as arguments.
func FieldSignature(field *ast.FieldDefinition) string {
	if field == nil || field.Type == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(field.Name)
	writeArguments(&b, field.Arguments)
	b.WriteString(": ")
	b.WriteString(field.Type.String())
	if field.DefaultValue != nil {
		b.WriteString(" = ")
		b.WriteString(field.DefaultValue.String())
	}
	return b.String()
}

// ArgumentSignature prints "name: T = default".
func ArgumentSignature(arg *ast.ArgumentDefinition) string {
	if arg == nil || arg.Type == nil {
		return ""
	}
	s := arg.Name + ": " + arg.Type.String()
	if arg.DefaultValue != nil {
		s += " = " + arg.DefaultValue.String()
	}
	return s
}

// DirectiveSignature prints a directive definition.
func DirectiveSignature(d *ast.DirectiveDefinition) string {
	if d == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("directive @")
	b.WriteString(d.Name)
	writeArguments(&b, d.Arguments)
	if d.IsRepeatable {
		b.WriteString(" repeatable")
	}
	if len(d.Locations) > 0 {
		b.WriteString(" on ")
		for i, loc := range d.Locations {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString(string(loc))
		}
	}
	return b.String()
}

func writeArguments(b *strings.Builder, args ast.ArgumentDefinitionList) {
	if len(args) == 0 {
		return
	}
	b.WriteByte('(')
	for i, arg := range args {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(ArgumentSignature(arg))
	}
	b.WriteByte(')')
}
