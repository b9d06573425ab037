package schema

import (
	"fmt"
	"slices"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/lexer"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/skaji/gql/internal/diag"
	"github.com/skaji/gql/internal/source"
	"github.com/skaji/gql/internal/trace"
)

// Build merges docs, in order, into one schema and runs rules over it.
// Documents that failed to parse contribute only their diagnostic. Build
// always returns a schema; references it cannot resolve stay unresolved and
// are reported.
func Build(docs []ParsedDocument, rules []Rule, tr *trace.Tracer) (*Schema, []diag.Diagnostic) {
	span := tr.Start("build", "documents", len(docs))
	defer span.End()

	b := newBuilder()
	b.add(prelude())
	for _, doc := range docs {
		if doc.Err != nil {
			b.diags = append(b.diags, *doc.Err)
			continue
		}
		if doc.AST == nil {
			continue
		}
		if src := doc.astSource(); src != nil {
			ix := doc.tokens
			if ix == nil {
				ix = indexTokens(src)
			}
			b.s.tokens[src] = ix
		}
		b.add(doc.AST)
	}
	b.extend()
	b.uniqueMembers()
	b.resolve()
	b.roots()
	b.possibleTypes()
	b.introspection()

	vspan := tr.Start("validate", "side", "schema", "rules", len(rules))
	b.diags = append(b.diags, Validate(b.s, rules)...)
	vspan.End()

	diag.Sort(b.diags)
	return b.s, b.diags
}

type builder struct {
	s     *Schema
	diags []diag.Diagnostic

	// defs are the merged definitions, decls every definition and
	// extension as written.
	defs       []*ast.Definition
	decls      []*ast.Definition
	exts       []*ast.Definition
	directives []*ast.DirectiveDefinition
	schemaDefs []*ast.SchemaDefinition
	schemaExts []*ast.SchemaDefinition
}

func newBuilder() *builder {
	return &builder{
		s: &Schema{
			Schema: &ast.Schema{
				Types:         map[string]*ast.Definition{},
				Directives:    map[string]*ast.DirectiveDefinition{},
				PossibleTypes: map[string][]*ast.Definition{},
				Implements:    map[string][]*ast.Definition{},
			},
			dependents: map[string][]source.Location{},
			tokens:     map[*ast.Source]*tokenIndex{},
		},
	}
}

func (b *builder) add(doc *ast.SchemaDocument) {
	for _, def := range doc.Definitions {
		b.decls = append(b.decls, def)
		if prev := b.s.Types[def.Name]; prev != nil {
			b.errorAt(fmt.Sprintf("There can be only one type named %q.", def.Name), prev.Position, def.Position)
			continue
		}
		c := clone(def)
		b.s.Types[def.Name] = c
		b.defs = append(b.defs, c)
	}
	b.exts = append(b.exts, doc.Extensions...)

	for _, dir := range doc.Directives {
		b.directives = append(b.directives, dir)
		if prev := b.s.Directives[dir.Name]; prev != nil {
			if !IsBuiltInDirective(dir.Name) {
				b.errorAt(fmt.Sprintf("There can be only one directive named \"@%s\".", dir.Name), prev.Position, dir.Position)
			}
			continue
		}
		b.s.Directives[dir.Name] = dir
	}

	b.schemaDefs = append(b.schemaDefs, doc.Schema...)
	b.schemaExts = append(b.schemaExts, doc.SchemaExtension...)
}

// clone copies def deep enough that merging extensions never writes to a
// cached document.
func clone(def *ast.Definition) *ast.Definition {
	c := *def
	c.Directives = slices.Clone(def.Directives)
	c.Interfaces = slices.Clone(def.Interfaces)
	c.Fields = slices.Clone(def.Fields)
	c.Types = slices.Clone(def.Types)
	c.EnumValues = slices.Clone(def.EnumValues)
	return &c
}

func (b *builder) extend() {
	for _, ext := range b.exts {
		b.decls = append(b.decls, ext)
		def := b.s.Types[ext.Name]
		if def == nil {
			b.errorAt(fmt.Sprintf("Cannot extend type %q because it is not defined.", ext.Name), ext.Position)
			continue
		}
		if def.Kind != ext.Kind {
			b.errorAt(fmt.Sprintf("Cannot extend type %q because the base type is %s, not %s.", ext.Name, kindName(def.Kind), kindName(ext.Kind)),
				def.Position, ext.Position)
			continue
		}
		def.Directives = append(def.Directives, ext.Directives...)
		def.Interfaces = append(def.Interfaces, ext.Interfaces...)
		def.Fields = append(def.Fields, ext.Fields...)
		def.Types = append(def.Types, ext.Types...)
		def.EnumValues = append(def.EnumValues, ext.EnumValues...)
	}
}

func (b *builder) uniqueMembers() {
	for _, def := range b.defs {
		if def.BuiltIn {
			continue
		}
		fields := map[string]*ast.FieldDefinition{}
		for _, f := range def.Fields {
			if prev, ok := fields[f.Name]; ok {
				b.errorAt(fmt.Sprintf("Field \"%s.%s\" can only be defined once.", def.Name, f.Name), prev.Position, f.Position)
				continue
			}
			fields[f.Name] = f
		}
		values := map[string]*ast.EnumValueDefinition{}
		for _, v := range def.EnumValues {
			if prev, ok := values[v.Name]; ok {
				b.errorAt(fmt.Sprintf("Enum value \"%s.%s\" can only be defined once.", def.Name, v.Name), prev.Position, v.Position)
				continue
			}
			values[v.Name] = v
		}
	}
}

// resolve checks every type reference written in a user document and
// records it as a dependent of the referenced type.
func (b *builder) resolve() {
	for _, d := range b.decls {
		if d.BuiltIn {
			continue
		}
		input := d.Kind == ast.InputObject
		for _, f := range d.Fields {
			b.typeRef(f.Type, d.Name+"."+f.Name, input)
			for _, a := range f.Arguments {
				b.typeRef(a.Type, fmt.Sprintf("%s.%s(%s:)", d.Name, f.Name, a.Name), true)
				b.directiveRefs(a.Directives)
			}
			b.directiveRefs(f.Directives)
		}
		for _, v := range d.EnumValues {
			b.directiveRefs(v.Directives)
		}
		b.directiveRefs(d.Directives)
		b.interfaces(d)
		b.unionMembers(d)
	}
	for _, dir := range b.directives {
		if builtInPosition(dir.Position) {
			continue
		}
		for _, a := range dir.Arguments {
			b.typeRef(a.Type, fmt.Sprintf("@%s(%s:)", dir.Name, a.Name), true)
		}
	}
}

func (b *builder) typeRef(t *ast.Type, coordinate string, input bool) {
	for t != nil && t.NamedType == "" {
		t = t.Elem
	}
	if t == nil {
		return
	}
	loc := b.s.NameLocation(t.Position)
	def := b.s.Types[t.NamedType]
	if def == nil {
		b.errorLoc(fmt.Sprintf("Unknown type %q.", t.NamedType), loc)
		return
	}
	b.depend(t.NamedType, loc)
	switch {
	case input && !def.IsInputType():
		b.errorLoc(fmt.Sprintf("The type of %s must be Input Type but got: %s.", coordinate, t.NamedType), loc)
	case !input && !isOutputType(def):
		b.errorLoc(fmt.Sprintf("The type of %s must be Output Type but got: %s.", coordinate, t.NamedType), loc)
	}
}

func (b *builder) directiveRefs(dirs ast.DirectiveList) {
	for _, d := range dirs {
		if b.s.Directives[d.Name] == nil {
			b.errorAt(fmt.Sprintf("Unknown directive \"@%s\".", d.Name), d.Position)
		}
	}
}

func (b *builder) interfaces(d *ast.Definition) {
	if len(d.Interfaces) == 0 {
		return
	}
	ix := b.tokensFor(d.Position)
	toks := ix.implements(ix.nameAt(d.Position))
	for i, name := range d.Interfaces {
		loc := b.nameLoc(d.Position, toks, i, name)
		def := b.s.Types[name]
		switch {
		case def == nil:
			b.errorLoc(fmt.Sprintf("Unknown type %q.", name), loc)
		case def.Kind != ast.Interface:
			b.depend(name, loc)
			b.errorLoc(fmt.Sprintf("Type %q must only implement Interface types, it cannot implement %q.", d.Name, name), loc)
		default:
			b.depend(name, loc)
		}
	}
}

func (b *builder) unionMembers(d *ast.Definition) {
	if len(d.Types) == 0 {
		return
	}
	ix := b.tokensFor(d.Position)
	toks := ix.unionMembers(ix.nameAt(d.Position))
	for i, name := range d.Types {
		loc := b.nameLoc(d.Position, toks, i, name)
		def := b.s.Types[name]
		switch {
		case def == nil:
			b.errorLoc(fmt.Sprintf("Unknown type %q.", name), loc)
		case def.Kind != ast.Object:
			b.depend(name, loc)
			b.errorLoc(fmt.Sprintf("Union type %q can only include Object types, it cannot include %q.", d.Name, name), loc)
		default:
			b.depend(name, loc)
		}
	}
}

// nameLoc picks the i-th scanned name token, falling back to the owning
// definition's name.
func (b *builder) nameLoc(owner *ast.Position, toks []lexer.Token, i int, name string) *source.Location {
	if i < len(toks) && toks[i].Value == name && owner != nil && owner.Src != nil {
		loc := tokenLocation(owner.Src.Name, toks[i])
		return &loc
	}
	return b.s.NameLocation(owner)
}

func (b *builder) roots() {
	for _, extra := range b.schemaDefs[min(1, len(b.schemaDefs)):] {
		b.errorAt("Must provide only one schema definition.", extra.Position)
	}

	var ops ast.OperationTypeDefinitionList
	if len(b.schemaDefs) > 0 {
		ops = append(ops, b.schemaDefs[0].OperationTypes...)
		b.directiveRefs(b.schemaDefs[0].Directives)
		b.s.Description = b.schemaDefs[0].Description
		b.s.SchemaDirectives = append(b.s.SchemaDirectives, b.schemaDefs[0].Directives...)
	}
	for _, ext := range b.schemaExts {
		ops = append(ops, ext.OperationTypes...)
		b.directiveRefs(ext.Directives)
		b.s.SchemaDirectives = append(b.s.SchemaDirectives, ext.Directives...)
	}
	for _, op := range ops {
		loc := b.operationTypeLocation(op)
		def := b.s.Types[op.Type]
		if def == nil {
			b.errorLoc(fmt.Sprintf("Unknown type %q.", op.Type), loc)
			continue
		}
		b.depend(op.Type, loc)
		if def.Kind != ast.Object {
			b.errorLoc(fmt.Sprintf("%s root type must be Object type, it cannot be %s.", rootName(op.Operation), op.Type), loc)
			continue
		}
		b.setRoot(op.Operation, def)
	}

	if len(b.schemaDefs) == 0 && len(b.schemaExts) == 0 {
		for _, op := range []ast.Operation{ast.Query, ast.Mutation, ast.Subscription} {
			def := b.s.Types[rootName(op)]
			if def == nil {
				continue
			}
			if def.Kind != ast.Object {
				b.errorAt(fmt.Sprintf("%s root type must be Object type, it cannot be %s.", rootName(op), def.Name), def.Position)
				continue
			}
			b.setRoot(op, def)
		}
	}

	if b.s.Query == nil {
		b.diags = append(b.diags, diag.Diagnostic{
			Message:  "Query root type must be provided.",
			Severity: diag.SeverityError,
		})
	}
}

// operationTypeLocation finds the type name of "query: Name".
func (b *builder) operationTypeLocation(op *ast.OperationTypeDefinition) *source.Location {
	if op.Position == nil || op.Position.Src == nil {
		return nil
	}
	ix := b.tokensFor(op.Position)
	if ix != nil {
		i := ix.at(op.Position.Start)
		if tok, ok := ix.token(i + 2); ok && tok.Kind == lexer.Name && tok.Value == op.Type {
			loc := tokenLocation(op.Position.Src.Name, tok)
			return &loc
		}
	}
	return positionLocation(op.Position)
}

func (b *builder) setRoot(op ast.Operation, def *ast.Definition) {
	switch op {
	case ast.Query:
		b.s.Query = def
	case ast.Mutation:
		b.s.Mutation = def
	case ast.Subscription:
		b.s.Subscription = def
	}
}

func (b *builder) possibleTypes() {
	s := b.s
	for _, def := range b.defs {
		switch def.Kind {
		case ast.Union:
			for _, name := range def.Types {
				if member := s.Types[name]; member != nil && member.Kind == ast.Object {
					s.AddPossibleType(def.Name, member)
					s.AddImplements(name, def)
				}
			}
		case ast.Object, ast.Interface:
			for _, name := range def.Interfaces {
				if iface := s.Types[name]; iface != nil && iface.Kind == ast.Interface {
					s.AddPossibleType(name, def)
					s.AddImplements(def.Name, iface)
				}
			}
			if def.Kind == ast.Object {
				s.AddPossibleType(def.Name, def)
			}
		}
	}
}

func (b *builder) introspection() {
	if b.s.Query == nil {
		return
	}
	b.s.Query.Fields = append(b.s.Query.Fields,
		&ast.FieldDefinition{
			Name: "__schema",
			Type: ast.NonNullNamedType("__Schema", nil),
		},
		&ast.FieldDefinition{
			Name: "__type",
			Type: ast.NamedType("__Type", nil),
			Arguments: ast.ArgumentDefinitionList{
				{Name: "name", Type: ast.NonNullNamedType("String", nil)},
			},
		},
	)
}

func (b *builder) tokensFor(pos *ast.Position) *tokenIndex {
	if pos == nil || pos.Src == nil {
		return nil
	}
	return b.s.tokens[pos.Src]
}

func (b *builder) depend(name string, loc *source.Location) {
	if loc == nil {
		return
	}
	b.s.dependents[name] = append(b.s.dependents[name], *loc)
}

func (b *builder) errorLoc(msg string, loc *source.Location) {
	var locs []source.Location
	if loc != nil {
		locs = []source.Location{*loc}
	}
	b.diags = append(b.diags, diag.Diagnostic{Message: msg, Severity: diag.SeverityError, Locations: locs})
}

// errorAt reports msg at the names found at each position. Built-in
// positions are skipped.
func (b *builder) errorAt(msg string, positions ...*ast.Position) {
	var locs []source.Location
	for _, pos := range positions {
		if loc := b.s.NameLocation(pos); loc != nil {
			locs = append(locs, *loc)
		}
	}
	b.diags = append(b.diags, diag.Diagnostic{Message: msg, Severity: diag.SeverityError, Locations: locs})
}

func builtInPosition(pos *ast.Position) bool {
	return pos != nil && pos.Src != nil && pos.Src.BuiltIn
}

func isOutputType(def *ast.Definition) bool {
	return def.Kind != ast.InputObject
}

func rootName(op ast.Operation) string {
	switch op {
	case ast.Mutation:
		return "Mutation"
	case ast.Subscription:
		return "Subscription"
	default:
		return "Query"
	}
}

func kindName(kind ast.DefinitionKind) string {
	switch kind {
	case ast.Object:
		return "an object type"
	case ast.Interface:
		return "an interface"
	case ast.Union:
		return "a union"
	case ast.Enum:
		return "an enum"
	case ast.InputObject:
		return "an input object"
	default:
		return "a scalar"
	}
}

func parseExtra(src *ast.Source) (*ast.SchemaDocument, error) {
	doc, err := parser.ParseSchema(src)
	if err != nil {
		return nil, fmt.Errorf("schema: parse %s: %w", src.Name, err)
	}
	return doc, nil
}
