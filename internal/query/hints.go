package query

import (
	"cmp"
	"slices"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/skaji/gql/internal/grammar"
	"github.com/skaji/gql/internal/schema"
	"github.com/skaji/gql/internal/source"
)

// HintKind says what a hint names.
type HintKind int

const (
	HintKeyword HintKind = iota
	HintType
	HintField
	HintArgument
	HintInputField
	HintEnumValue
	HintValue
	HintDirective
)

// Hint is one completion candidate. Type is the GraphQL type of fields,
// arguments and values, and the kind of type hints.
type Hint struct {
	Text        string
	Kind        HintKind
	Type        string
	Description string
	Deprecated  bool
}

var definitionKeywords = []string{
	"query", "mutation", "subscription", "fragment", "{",
	"schema", "scalar", "type", "interface", "union", "enum", "input", "extend", "directive",
}

// Hints returns the candidates for the cursor position, filtered and ranked
// by the name typed so far.
func Hints(s *schema.Schema, text string, pos source.Position, def grammar.Definition) []Hint {
	c := ResolveAt(s, text, pos, def)
	if c == nil {
		return nil
	}
	return rank(candidates(s, c), c.prefix())
}

// prefix is the part of the name under the cursor that precedes it.
func (c *TypeContext) prefix() string {
	if !isName(c.Token.Text) {
		return ""
	}
	runes := []rune(c.Token.Text)
	n := min(max(c.Offset-c.Token.Start, 0), len(runes))
	return string(runes[:n])
}

func candidates(s *schema.Schema, c *TypeContext) []Hint {
	st := c.State
	if st.Kind == grammar.KindDocument {
		return keywordHints(definitionKeywords)
	}
	if s == nil || s.Schema == nil {
		return nil
	}
	switch st.Kind {
	case grammar.KindSelectionSet, grammar.KindField, grammar.KindAliasedField:
		return fieldHints(c.ParentType)
	case grammar.KindArguments:
		return argumentHints(c.ArgDefs, st.Used, "")
	case grammar.KindArgument:
		switch st.Step {
		case 0:
			return argumentHints(c.ArgDefs, used(st), st.Name)
		case 2:
			return valueHints(s, c.InputType)
		}
	case grammar.KindObjectValue:
		return inputFieldHints(c.ObjectFields, st.Used, "")
	case grammar.KindObjectField:
		switch st.Step {
		case 0:
			return inputFieldHints(c.ObjectFields, used(st), st.Name)
		case 2:
			return valueHints(s, c.InputType)
		}
	case grammar.KindEnumValue:
		return valueHints(s, c.InputType)
	case grammar.KindListValue:
		if st.Step == 1 {
			return valueHints(s, c.InputType)
		}
	case grammar.KindTypeCondition:
		if st.Step == 1 {
			return typeConditionHints(s, c, st.Parent())
		}
	case grammar.KindNamedType:
		return namedTypeHints(s, c, st)
	case grammar.KindVariableDefinition:
		if st.Step == 2 {
			return typeHints(s, (*ast.Definition).IsInputType)
		}
	case grammar.KindDirective:
		if st.Step == 1 {
			return directiveHints(s, directiveLocation(st.Parent()))
		}
	case grammar.KindFieldDef:
		if st.Step == 4 {
			return typeHints(s, isOutputType)
		}
	case grammar.KindInputValueDef:
		if st.Step == 3 {
			return typeHints(s, (*ast.Definition).IsInputType)
		}
	case grammar.KindImplements:
		if st.Step == 1 {
			return typeHints(s, ofKind(ast.Interface))
		}
	case grammar.KindUnionDef:
		if st.Step >= 4 {
			return typeHints(s, ofKind(ast.Object))
		}
	case grammar.KindUnionMember:
		return typeHints(s, ofKind(ast.Object))
	case grammar.KindOperationTypeDef:
		if st.Step == 2 {
			return typeHints(s, ofKind(ast.Object))
		}
	}
	return nil
}

// namedTypeHints offers the types that fit where the reference sits.
func namedTypeHints(s *schema.Schema, c *TypeContext, st *grammar.State) []Hint {
	owner := typeOwner(st)
	if owner == nil {
		return nil
	}
	switch owner.Kind {
	case grammar.KindTypeCondition:
		return typeConditionHints(s, c, owner.Parent())
	case grammar.KindVariableDefinition, grammar.KindInputValueDef:
		return typeHints(s, (*ast.Definition).IsInputType)
	case grammar.KindFieldDef:
		return typeHints(s, isOutputType)
	case grammar.KindImplements:
		return typeHints(s, ofKind(ast.Interface))
	case grammar.KindUnionMember, grammar.KindOperationTypeDef:
		return typeHints(s, ofKind(ast.Object))
	}
	return nil
}

// typeOwner skips the list and non-null wrappers around a type reference.
func typeOwner(st *grammar.State) *grammar.State {
	for cur := st.Parent(); cur != nil; cur = cur.Parent() {
		switch cur.Kind {
		case grammar.KindType, grammar.KindListType, grammar.KindNonNullType:
			continue
		}
		return cur
	}
	return nil
}

// typeConditionHints offers composite types. Inside an inline fragment only
// the parent, the types it may resolve to, and their interfaces and unions
// are offered.
func typeConditionHints(s *schema.Schema, c *TypeContext, fragment *grammar.State) []Hint {
	if fragment == nil || fragment.Kind != grammar.KindInlineFragment || c.ParentType == nil {
		return typeHints(s, (*ast.Definition).IsCompositeType)
	}
	seen := map[string]*ast.Definition{}
	add := func(d *ast.Definition) {
		if d != nil && d.IsCompositeType() {
			seen[d.Name] = d
		}
	}
	add(c.ParentType)
	for _, p := range s.Possible(c.ParentType) {
		add(p)
		for _, d := range s.Implements[p.Name] {
			add(d)
		}
	}
	defs := make([]*ast.Definition, 0, len(seen))
	for _, d := range seen {
		defs = append(defs, d)
	}
	slices.SortFunc(defs, func(a, b *ast.Definition) int { return strings.Compare(a.Name, b.Name) })
	return definitionHints(defs)
}

func typeHints(s *schema.Schema, keep func(*ast.Definition) bool) []Hint {
	var defs []*ast.Definition
	for _, d := range s.Types {
		if strings.HasPrefix(d.Name, "__") || !keep(d) {
			continue
		}
		defs = append(defs, d)
	}
	slices.SortFunc(defs, func(a, b *ast.Definition) int { return strings.Compare(a.Name, b.Name) })
	return definitionHints(defs)
}

func definitionHints(defs []*ast.Definition) []Hint {
	hints := make([]Hint, 0, len(defs))
	for _, d := range defs {
		hints = append(hints, Hint{Text: d.Name, Kind: HintType, Type: string(d.Kind), Description: d.Description})
	}
	return hints
}

func isOutputType(d *ast.Definition) bool {
	return d.Kind != ast.InputObject
}

func ofKind(kind ast.DefinitionKind) func(*ast.Definition) bool {
	return func(d *ast.Definition) bool { return d.Kind == kind }
}

// fieldHints lists the fields of parent. Only abstract types offer
// __typename; the introspection fields of the query root are not offered.
func fieldHints(parent *ast.Definition) []Hint {
	if parent == nil {
		return nil
	}
	var hints []Hint
	for _, f := range parent.Fields {
		if strings.HasPrefix(f.Name, "__") {
			continue
		}
		hints = append(hints, Hint{
			Text:        f.Name,
			Kind:        HintField,
			Type:        f.Type.String(),
			Description: f.Description,
			Deprecated:  f.Directives.ForName("deprecated") != nil,
		})
	}
	if parent.IsAbstractType() {
		hints = append(hints, Hint{
			Text:        typenameField.Name,
			Kind:        HintField,
			Type:        typenameField.Type.String(),
			Description: typenameField.Description,
		})
	}
	return hints
}

// used returns the names already written in the list frame around st.
func used(st *grammar.State) []string {
	if p := st.Parent(); p != nil {
		return p.Used
	}
	return nil
}

// argumentHints skips arguments already written, except the one being
// typed.
func argumentHints(args ast.ArgumentDefinitionList, written []string, current string) []Hint {
	var hints []Hint
	for _, a := range args {
		if a.Name != current && slices.Contains(written, a.Name) {
			continue
		}
		hints = append(hints, Hint{Text: a.Name, Kind: HintArgument, Type: a.Type.String(), Description: a.Description})
	}
	return hints
}

func inputFieldHints(fields ast.FieldList, written []string, current string) []Hint {
	var hints []Hint
	for _, f := range fields {
		if f.Name != current && slices.Contains(written, f.Name) {
			continue
		}
		hints = append(hints, Hint{Text: f.Name, Kind: HintInputField, Type: f.Type.String(), Description: f.Description})
	}
	return hints
}

func valueHints(s *schema.Schema, t *ast.Type) []Hint {
	if t == nil {
		return nil
	}
	d := s.Type(t.Name())
	if d == nil {
		return nil
	}
	switch {
	case d.Kind == ast.Enum:
		hints := make([]Hint, 0, len(d.EnumValues))
		for _, v := range d.EnumValues {
			hints = append(hints, Hint{
				Text:        v.Name,
				Kind:        HintEnumValue,
				Type:        d.Name,
				Description: v.Description,
				Deprecated:  v.Directives.ForName("deprecated") != nil,
			})
		}
		return hints
	case d.Name == "Boolean":
		return []Hint{
			{Text: "true", Kind: HintValue, Type: "Boolean"},
			{Text: "false", Kind: HintValue, Type: "Boolean"},
		}
	}
	return nil
}

func directiveHints(s *schema.Schema, loc ast.DirectiveLocation) []Hint {
	if loc == "" {
		return nil
	}
	var defs []*ast.DirectiveDefinition
	for _, d := range s.Directives {
		if slices.Contains(d.Locations, loc) {
			defs = append(defs, d)
		}
	}
	slices.SortFunc(defs, func(a, b *ast.DirectiveDefinition) int { return strings.Compare(a.Name, b.Name) })
	hints := make([]Hint, 0, len(defs))
	for _, d := range defs {
		hints = append(hints, Hint{Text: d.Name, Kind: HintDirective, Description: d.Description})
	}
	return hints
}

// directiveLocation maps the frame a directive is attached to onto its
// location.
func directiveLocation(owner *grammar.State) ast.DirectiveLocation {
	if owner == nil {
		return ""
	}
	switch owner.Kind {
	case grammar.KindQuery:
		return ast.LocationQuery
	case grammar.KindMutation:
		return ast.LocationMutation
	case grammar.KindSubscription:
		return ast.LocationSubscription
	case grammar.KindField, grammar.KindAliasedField:
		return ast.LocationField
	case grammar.KindFragmentDefinition:
		return ast.LocationFragmentDefinition
	case grammar.KindFragmentSpread:
		return ast.LocationFragmentSpread
	case grammar.KindInlineFragment:
		return ast.LocationInlineFragment
	case grammar.KindVariableDefinition:
		return ast.LocationVariableDefinition
	case grammar.KindSchemaDef:
		return ast.LocationSchema
	case grammar.KindScalarDef:
		return ast.LocationScalar
	case grammar.KindObjectTypeDef:
		return ast.LocationObject
	case grammar.KindFieldDef:
		return ast.LocationFieldDefinition
	case grammar.KindInterfaceDef:
		return ast.LocationInterface
	case grammar.KindUnionDef:
		return ast.LocationUnion
	case grammar.KindEnumDef:
		return ast.LocationEnum
	case grammar.KindEnumValueDef:
		return ast.LocationEnumValue
	case grammar.KindInputDef:
		return ast.LocationInputObject
	case grammar.KindInputValueDef:
		if p := owner.Parent(); p != nil && p.Kind == grammar.KindInputBlock {
			return ast.LocationInputFieldDefinition
		}
		return ast.LocationArgumentDefinition
	}
	return ""
}

func keywordHints(words []string) []Hint {
	hints := make([]Hint, 0, len(words))
	for _, w := range words {
		hints = append(hints, Hint{Text: w, Kind: HintKeyword})
	}
	return hints
}

type scored struct {
	hint      Hint
	prefixed  bool
	proximity float64
}

// rank keeps the hints close to prefix. Prefix matches come first, then
// closer and shorter labels. Without a prefix deprecated hints are dropped
// and the order is kept.
func rank(hints []Hint, prefix string) []Hint {
	if prefix == "" {
		return slices.DeleteFunc(hints, func(h Hint) bool { return h.Deprecated })
	}
	text := normalize(prefix)
	var kept []scored
	for _, h := range hints {
		label := normalize(h.Text)
		if label == "" {
			continue
		}
		p := proximity(label, text)
		if p > 2 {
			continue
		}
		kept = append(kept, scored{hint: h, prefixed: strings.HasPrefix(label, text), proximity: p})
	}
	slices.SortStableFunc(kept, func(a, b scored) int {
		if a.prefixed != b.prefixed {
			if a.prefixed {
				return -1
			}
			return 1
		}
		return cmp.Or(
			cmp.Compare(a.proximity, b.proximity),
			cmp.Compare(len(a.hint.Text), len(b.hint.Text)),
		)
	})
	out := make([]Hint, 0, len(kept))
	for _, k := range kept {
		out = append(out, k.hint)
	}
	return out
}

// proximity is the edit distance from text to label, discounted for the
// letters a longer label still has to add.
func proximity(label, text string) float64 {
	d := float64(levenshtein.ComputeDistance(text, label))
	if len(label) > len(text) {
		d -= float64(len(label) - len(text) - 1)
		if !strings.HasPrefix(label, text) {
			d += 0.5
		}
	}
	return d
}

func normalize(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, s)
}
