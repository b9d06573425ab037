package schema

import (
	"maps"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/skaji/gql/internal/diag"
	"github.com/skaji/gql/internal/source"
)

const sampleSchema = `type Query {
  viewer(filter: Filter): Viewer
}

type Viewer {
  name: String
}

input Filter {
  and: Filter
}

directive @scope(filter: Filter) on FIELD
`

func build(t *testing.T, files map[string]string, rules ...Rule) (*Schema, []diag.Diagnostic) {
	t.Helper()
	var docs []ParsedDocument
	for _, path := range slices.Sorted(maps.Keys(files)) {
		docs = append(docs, Parse(source.New(path, files[path]), nil))
	}
	return Build(docs, rules, nil)
}

func loc(path string, line, col, width int) source.Location {
	return source.Location{
		Path:  path,
		Start: source.Position{Line: line, Column: col},
		End:   source.Position{Line: line, Column: col + width},
	}
}

func TestBuildSample(t *testing.T) {
	s, diags := build(t, map[string]string{"/s/schema.graphql": sampleSchema})
	require.Empty(t, diags)
	require.NotNil(t, s.Query)
	assert.Equal(t, "Query", s.Query.Name)
	assert.Nil(t, s.Mutation)
	assert.NotNil(t, s.Query.Fields.ForName("__schema"))
	assert.NotNil(t, s.Query.Fields.ForName("__type"))
	assert.NotNil(t, s.Type("String"))
	assert.NotNil(t, s.Directive("skip"))
}

func TestUnknownFieldType(t *testing.T) {
	path := "/s/schema.graphql"
	_, diags := build(t, map[string]string{path: "type Query { viewer: xViewer }\n"})
	require.Len(t, diags, 1)
	assert.Equal(t, `Unknown type "xViewer".`, diags[0].Message)
	assert.Equal(t, diag.SeverityError, diags[0].Severity)
	assert.Equal(t, []source.Location{loc(path, 1, 22, 7)}, diags[0].Locations)
}

func TestDependents(t *testing.T) {
	path := "/s/schema.graphql"
	s, diags := build(t, map[string]string{path: sampleSchema})
	require.Empty(t, diags)
	assert.Equal(t, []source.Location{
		loc(path, 2, 18, 6),
		loc(path, 10, 8, 6),
		loc(path, 13, 26, 6),
	}, s.Dependents("Filter"))
	assert.Equal(t, []source.Location{loc(path, 2, 27, 6)}, s.Dependents("Viewer"))
	assert.Empty(t, s.Dependents("Query"))
	assert.Empty(t, s.Dependents("Missing"))
}

func TestImplementsOnlyDependent(t *testing.T) {
	path := "/s/schema.graphql"
	s, diags := build(t, map[string]string{path: `interface Node { id: ID }
type User implements Node { id: ID }
type Query { user: User }
`})
	require.Empty(t, diags)
	assert.Equal(t, []source.Location{loc(path, 2, 22, 4)}, s.Dependents("Node"))
	assert.Equal(t, []*ast.Definition{s.Type("User")}, s.Possible(s.Type("Node")))
}

func TestUnionMembers(t *testing.T) {
	path := "/s/schema.graphql"
	s, diags := build(t, map[string]string{path: `type A { a: Int }
type B { b: Int }
union U = | A | B
type Query { u: U, i: Int }
union Bad = Query | Int
`})
	require.Len(t, diags, 1)
	assert.Equal(t, `Union type "Bad" can only include Object types, it cannot include "Int".`, diags[0].Message)
	assert.Equal(t, []source.Location{loc(path, 5, 21, 3)}, diags[0].Locations)
	assert.Equal(t, []source.Location{loc(path, 3, 13, 1)}, s.Dependents("A"))
	assert.Equal(t, []source.Location{loc(path, 3, 17, 1)}, s.Dependents("B"))
	assert.Len(t, s.Possible(s.Type("U")), 2)
}

func TestDuplicateTypeAcrossFiles(t *testing.T) {
	_, diags := build(t, map[string]string{
		"/s/a.graphql": "type Query { a: Int }\ntype Foo { a: Int }\n",
		"/s/b.graphql": "type Foo { b: Int }\n",
	})
	require.Len(t, diags, 1)
	assert.Equal(t, `There can be only one type named "Foo".`, diags[0].Message)
	assert.Equal(t, []source.Location{
		loc("/s/a.graphql", 2, 6, 3),
		loc("/s/b.graphql", 1, 6, 3),
	}, diags[0].Locations)
}

func TestDuplicateMembers(t *testing.T) {
	_, diags := build(t, map[string]string{
		"/s/a.graphql": "type Query { a: Int\n a: String }\nenum E { X X }\n",
	})
	var messages []string
	for _, d := range diags {
		messages = append(messages, d.Message)
	}
	assert.ElementsMatch(t, []string{
		`Field "Query.a" can only be defined once.`,
		`Enum value "E.X" can only be defined once.`,
	}, messages)
}

func TestExtensions(t *testing.T) {
	path := "/s/schema.graphql"
	s, diags := build(t, map[string]string{path: `type Query { a: Int }
extend type Query { b: Int }
extend type Missing { c: Int }
extend input Query { d: Int }
`})
	require.Len(t, diags, 2)
	assert.Equal(t, `Cannot extend type "Query" because the base type is an object type, not an input object.`, diags[0].Message)
	assert.Equal(t, []source.Location{loc(path, 1, 6, 5), loc(path, 4, 14, 5)}, diags[0].Locations)
	assert.Equal(t, `Cannot extend type "Missing" because it is not defined.`, diags[1].Message)
	assert.Equal(t, []source.Location{loc(path, 3, 13, 7)}, diags[1].Locations)
	assert.NotNil(t, s.Query.Fields.ForName("b"))
	assert.Nil(t, s.Query.Fields.ForName("d"))
}

func TestMissingQuery(t *testing.T) {
	_, diags := build(t, map[string]string{"/s/a.graphql": "type Foo { a: Int }\n"})
	require.Len(t, diags, 1)
	assert.Equal(t, "Query root type must be provided.", diags[0].Message)
	assert.Nil(t, diags[0].Locations)
}

func TestSchemaDefinition(t *testing.T) {
	path := "/s/a.graphql"
	s, diags := build(t, map[string]string{path: `schema { query: Root }
type Root { a: Int }
`})
	require.Empty(t, diags)
	assert.Equal(t, "Root", s.Query.Name)
	assert.Equal(t, []source.Location{loc(path, 1, 17, 4)}, s.Dependents("Root"))
}

func TestSyntaxErrorIsKept(t *testing.T) {
	_, diags := build(t, map[string]string{
		"/s/a.graphql": "type Query { a: Int }\n",
		"/s/b.graphql": "type Foo {\n",
	})
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0].Message, "Syntax Error: ")
	require.Len(t, diags[0].Locations, 1)
	assert.Equal(t, "/s/b.graphql", diags[0].Locations[0].Path)
}

func TestBuildDoesNotMutateDocuments(t *testing.T) {
	docs := []ParsedDocument{
		Parse(source.New("/s/a.graphql", "type Query { a: Int }\n"), nil),
		Parse(source.New("/s/b.graphql", "extend type Query { b: Int }\ntype X { q: Query }\n"), nil),
	}
	s1, d1 := Build(docs, nil, nil)
	s2, d2 := Build(docs, nil, nil)

	assert.Empty(t, cmp.Diff(d1, d2))
	assert.Empty(t, cmp.Diff(s1.Dependents("Query"), s2.Dependents("Query")))
	assert.Len(t, docs[0].AST.Definitions[0].Fields, 1)
	assert.Len(t, s2.Query.Fields, 4)
}

func TestValidate(t *testing.T) {
	path := "/s/schema.graphql"
	var visited []string
	rule := Rule{
		Name:     "NoViewer",
		Severity: diag.SeverityWarn,
		Check: func(w *Walker, r *Reporter) {
			w.OnDefinition(func(def *ast.Definition) {
				if def.Name == "Viewer" {
					r.Reportf(def.Position, "%s is not allowed.", def.Name)
				}
			})
			w.OnField(func(parent *ast.Definition, field *ast.FieldDefinition, typeDef *ast.Definition) {
				if typeDef != nil {
					visited = append(visited, parent.Name+"."+field.Name+":"+typeDef.Name)
				}
			})
		},
	}
	off := Rule{
		Name:     "Off",
		Severity: diag.SeverityOff,
		Check: func(_ *Walker, r *Reporter) {
			r.ReportAt("never")
		},
	}
	_, diags := build(t, map[string]string{path: sampleSchema}, rule, off)
	require.Len(t, diags, 1)
	assert.Equal(t, diag.Diagnostic{
		Message:   "Viewer is not allowed. (NoViewer)",
		Severity:  diag.SeverityWarn,
		Locations: []source.Location{loc(path, 5, 6, 6)},
		Rule:      "NoViewer",
	}, diags[0])
	assert.Equal(t, []string{
		"Query.viewer:Viewer",
		"Viewer.name:String",
		"Filter.and:Filter",
	}, visited)
}

func TestWithDirectives(t *testing.T) {
	s, _ := build(t, map[string]string{"/s/schema.graphql": sampleSchema})
	extra, err := s.WithDirectives(&ast.Source{
		Name:    "relay",
		Input:   "directive @relay(plural: Boolean, mask: Boolean) on FRAGMENT_DEFINITION\n",
		BuiltIn: true,
	})
	require.NoError(t, err)
	assert.NotNil(t, extra.Directive("relay"))
	assert.NotNil(t, extra.Directive("scope"))
	assert.Nil(t, s.Directive("relay"))
	assert.Same(t, s.Type("Viewer"), extra.Type("Viewer"))

	_, err = s.WithDirectives(&ast.Source{Name: "bad", Input: "directive"})
	assert.Error(t, err)
}

func TestSignatures(t *testing.T) {
	s, _ := build(t, map[string]string{"/s/schema.graphql": sampleSchema + `
interface Node { id: ID! }
type User implements Node { id: ID!, age(unit: String = "y"): Int }
union Any = User | Viewer
enum Color { RED GREEN }
`})
	assert.Equal(t, "type Query {\n  viewer(filter: Filter): Viewer\n}", TypeSignature(s.Type("Query")))
	assert.Equal(t, "input Filter {\n  and: Filter\n}", TypeSignature(s.Type("Filter")))
	assert.Equal(t, "type User implements Node {\n  id: ID!\n  age(unit: String = \"y\"): Int\n}", TypeSignature(s.Type("User")))
	assert.Equal(t, "union Any = User | Viewer", TypeSignature(s.Type("Any")))
	assert.Equal(t, "enum Color {\n  RED\n  GREEN\n}", TypeSignature(s.Type("Color")))
	assert.Equal(t, "scalar String", TypeSignature(s.Type("String")))
	assert.Equal(t, "directive @scope(filter: Filter) on FIELD", DirectiveSignature(s.Directive("scope")))
	assert.Equal(t, `unit: String = "y"`, ArgumentSignature(s.Type("User").Fields.ForName("age").Arguments.ForName("unit")))
	assert.Empty(t, TypeSignature(nil))
}

func TestLocations(t *testing.T) {
	path := "/s/schema.graphql"
	s, _ := build(t, map[string]string{path: sampleSchema})
	assert.Equal(t, &source.Location{Path: path, Start: source.Position{Line: 5, Column: 6}, End: source.Position{Line: 5, Column: 12}}, s.TypeLocation("Viewer"))
	l := loc(path, 2, 3, 6)
	assert.Equal(t, &l, s.FieldLocation("Query", "viewer"))
	l = loc(path, 2, 10, 6)
	assert.Equal(t, &l, s.ArgumentLocation("Query", "viewer", "filter"))
	l = loc(path, 13, 12, 5)
	assert.Equal(t, &l, s.DirectiveLocation("scope"))
	assert.Nil(t, s.TypeLocation("String"))
	assert.Nil(t, s.FieldLocation("Query", "__schema"))
	assert.Nil(t, s.FieldLocation("Query", "missing"))
}
