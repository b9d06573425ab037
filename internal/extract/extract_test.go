package extract

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/skaji/gql/internal/errs"
	"github.com/skaji/gql/internal/grammar"
	"github.com/skaji/gql/internal/source"
)

var (
	apollo = grammar.MustEmbedded("embedded-queries", "gql`", "`", grammar.Options{AllowDocumentInterpolation: true})
	relay  = grammar.MustEmbedded("embedded-queries", `Relay\.QL`+"`", "`", grammar.Options{
		AllowFragmentWithoutName:   true,
		AllowFragmentInterpolation: true,
	})
)

func parse(t *testing.T, doc Document) *ast.QueryDocument {
	t.Helper()
	q, err := parser.ParseQuery(&ast.Source{Name: doc.Path, Input: doc.Text})
	require.NoError(t, err, doc.Text)
	return q
}

// requireAligned checks that a document mirrors the source prefix it covers.
func requireAligned(t *testing.T, src string, doc Document) {
	t.Helper()
	width := utf8.RuneCountInString(doc.Text)
	require.Equal(t, doc.End+2*len(doc.shifts), width)
	assert.Equal(t, strings.Count(string([]rune(src)[:doc.End]), "\n"), strings.Count(doc.Text, "\n"))
	for i, r := range []rune(doc.Text)[:doc.Start] {
		require.Contains(t, " \t\r\n", string(r), "rune %d of the blanked prefix", i)
	}
}

func TestWholeFile(t *testing.T) {
	src := source.New("/p/q.graphql", "query { a }\n")
	docs, err := Extract(src, grammar.NewGraphQL(grammar.Options{}), nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, src.Text, docs[0].Text)
	assert.Equal(t, 0, docs[0].Start)
	assert.Equal(t, 12, docs[0].End)

	docs, err = Extract(source.New("/p/empty.graphql", ""), grammar.NewGraphQL(grammar.Options{}), nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)
}

func TestEmbeddedDocumentsKeepPositions(t *testing.T) {
	src := "const a = gql`query A { a }`;\n" +
		"const b = gql`\n" +
		"  query B { b }\n" +
		"`;\n"
	docs, err := Extract(source.New("/p/a.js", src), apollo, nil)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, 14, docs[0].Start)
	assert.Equal(t, 28, docs[0].End)
	assert.Equal(t, strings.Repeat(" ", 14)+"query A { a } ", docs[0].Text)

	for _, doc := range docs {
		requireAligned(t, src, doc)
	}

	q := parse(t, docs[1])
	require.Len(t, q.Operations, 1)
	assert.Equal(t, "B", q.Operations[0].Name)
	assert.Equal(t, 3, q.Operations[0].Position.Line)
	assert.Equal(t, 3, q.Operations[0].Position.Column)
}

func TestNoDocuments(t *testing.T) {
	docs, err := Extract(source.New("/p/a.js", "const x = 1;\n"), apollo, nil)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestUnterminatedDocument(t *testing.T) {
	src := "x = gql`{ a }"
	docs, err := Extract(source.New("/p/a.js", src), apollo, nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, utf8.RuneCountInString(src), docs[0].End)
	requireAligned(t, src, docs[0])
}

func TestDocumentInterpolation(t *testing.T) {
	src := "gql`\n  query A { ...F }\n  ${fragment}\n`"
	docs, err := Extract(source.New("/p/a.js", src), apollo, nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	requireAligned(t, src, docs[0])
	assert.NotContains(t, docs[0].Text, "${")
	parse(t, docs[0])
}

func TestDocumentInterpolationDisabledIsCopied(t *testing.T) {
	def := grammar.MustEmbedded("embedded-queries", "gql`", "`", grammar.Options{})
	src := "gql`\n  ${fragment}\n  query A { a }\n`"
	docs, err := Extract(source.New("/p/a.js", src), def, nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Contains(t, docs[0].Text, "${fragment}")

	_, perr := parser.ParseQuery(&ast.Source{Input: docs[0].Text})
	require.Error(t, perr)
}

func TestRelayAnonymousFragmentAndSpread(t *testing.T) {
	src := "Relay.QL`fragment on User { id ${Foo.getFragment('u')} }`"
	docs, err := Extract(source.New("/p/r.js", src), relay, nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	doc := docs[0]

	assert.True(t, doc.Shifted())
	requireAligned(t, src, doc)
	assert.Contains(t, doc.Text, "fragment _ on User { id ...F,")

	q := parse(t, doc)
	require.Len(t, q.Fragments, 1)
	assert.Equal(t, "_", q.Fragments[0].Name)
	assert.Equal(t, "User", q.Fragments[0].TypeCondition)
	require.Len(t, q.Fragments[0].SelectionSet, 2)
	spread, ok := q.Fragments[0].SelectionSet[1].(*ast.FragmentSpread)
	require.True(t, ok)
	assert.Equal(t, "F", spread.Name)

	// "User" sits at column 24 of the document and column 22 of the file.
	assert.Equal(t, source.Position{Line: 1, Column: 22}, doc.ToSource(source.Position{Line: 1, Column: 24}))
	assert.Equal(t, source.Position{Line: 1, Column: 10}, doc.ToSource(source.Position{Line: 1, Column: 10}))
	assert.Equal(t, source.Position{Line: 1, Column: 19}, doc.ToSource(source.Position{Line: 1, Column: 20}))
}

func TestRelayAnonymousFragmentInPlace(t *testing.T) {
	src := "Relay.QL`fragment   on User { id }`"
	docs, err := Extract(source.New("/p/r.js", src), relay, nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	assert.False(t, docs[0].Shifted())
	requireAligned(t, src, docs[0])
	assert.Contains(t, docs[0].Text, "fragment _ on User")
	parse(t, docs[0])
}

func TestNamedFragmentIsUntouched(t *testing.T) {
	src := "Relay.QL`fragment Foo on User { id }`"
	docs, err := Extract(source.New("/p/r.js", src), relay, nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.False(t, docs[0].Shifted())
	assert.Contains(t, docs[0].Text, "fragment Foo on User")
}

func TestSpread(t *testing.T) {
	tests := []struct {
		name string
		hole string
		next rune
		want string
	}{
		{name: "wide", hole: "${foo}", next: ' ', want: "...F,,"},
		{name: "exact", hole: "${a}", next: ' ', want: "...F"},
		{name: "exact before name", hole: "${a}", next: 'x', want: ",,,,"},
		{name: "narrow", hole: "${}", next: ' ', want: ",,,"},
		{name: "second line", hole: "${\n  foo\n}", next: ' ', want: ",,\n...F,\n,"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(spread(nil, []rune(tt.hole), tt.next)))
		})
	}
}

func TestBlank(t *testing.T) {
	assert.Equal(t, "  \t \n  \r\n ", string(blank(nil, []rune("ab\tc\nd \r\n\uFEFF"))))
}

func TestOffsetsArePreserved(t *testing.T) {
	inputs := []string{
		"",
		"gql``",
		"a gql`{ a }` b gql`{ b }` c",
		"x = gql`\r\n  query Q($a: Int) { f(a: $a) }\r\n`\n  y = gql`{ ünïcödé }`",
		"gql`{ a } ${x} { b }` gql`# comment ` gql`\"str`",
		"gql`query { a(x: \"${y}\") }`",
		"Relay.QL`\tfragment\non User { id }`",
	}
	defs := []*grammar.Embedded{apollo, relay}
	for _, def := range defs {
		for _, in := range inputs {
			docs, err := Extract(source.New("/p/a.js", in), def, nil)
			require.NoError(t, err, in)
			for _, doc := range docs {
				requireAligned(t, in, doc)
			}
		}
	}
}

type fakeDefinition struct {
	style  grammar.Style
	inside bool
}

func (f fakeDefinition) Name() string                   { return "fake" }
func (f fakeDefinition) Mode() grammar.Mode             { return grammar.ModeEmbedded }
func (f fakeDefinition) Options() grammar.Options       { return grammar.Options{} }
func (f fakeDefinition) NewTokenizer() grammar.Tokenizer { return &fakeTokenizer{f} }

type fakeTokenizer struct{ def fakeDefinition }

func (f *fakeTokenizer) Next(s *source.Stream) grammar.Style {
	s.Next()
	return f.def.style
}
func (f *fakeTokenizer) State() *grammar.State { return nil }
func (f *fakeTokenizer) InDocument() bool      { return f.def.inside }

func TestInvariantViolations(t *testing.T) {
	tests := []struct {
		name string
		def  fakeDefinition
	}{
		{name: "token without buffer", def: fakeDefinition{style: grammar.StyleKeyword, inside: true}},
		{name: "outside with buffer", def: fakeDefinition{style: grammar.StyleDocStart, inside: false}},
		{name: "inside without buffer", def: fakeDefinition{style: grammar.StyleOutside, inside: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := Extract(source.New("/p/a.js", "abc"), tt.def, nil)
			require.Error(t, err)
			assert.True(t, errs.IsInvariant(err))
			assert.Nil(t, docs)
		})
	}
}
