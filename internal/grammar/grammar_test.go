package grammar

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokens(def Definition, text string) []Token {
	var out []Token
	Tokenize(def, text, func(tok Token) bool {
		out = append(out, tok)
		return true
	})
	return out
}

func kinds(s *State) []string {
	var out []string
	for _, st := range s.Chain() {
		out = append(out, st.Kind)
	}
	return out
}

func TestTokenAtFieldInsideFragment(t *testing.T) {
	text := "fragment test on Viewer { na }"
	tok := TokenAt(NewGraphQL(Options{}), text, strings.Index(text, "na")+2)
	require.NotNil(t, tok)
	assert.Equal(t, "na", tok.Text)
	assert.Equal(t, StyleProperty, tok.Style)
	assert.Equal(t, KindField, tok.State.Kind)
	assert.Equal(t, "na", tok.State.Name)
	assert.Equal(t, []string{KindDocument, KindDefinition, KindFragmentDefinition, KindSelectionSet, KindSelection, KindField}, kinds(tok.State))

	frag := tok.State.Prev.Prev.Prev
	assert.Equal(t, KindFragmentDefinition, frag.Kind)
	assert.Equal(t, "test", frag.Name)
	assert.Equal(t, "Viewer", frag.Type)
}

func TestWhitespaceAfterTypeConditionKeyword(t *testing.T) {
	text := "fragment test on "
	tok := TokenAt(NewGraphQL(Options{}), text, len(text))
	require.NotNil(t, tok)
	assert.Equal(t, StyleWhitespace, tok.Style)
	assert.Equal(t, KindTypeCondition, tok.State.Kind)
	assert.Equal(t, 1, tok.State.Step)
}

func TestPublishedStatesAreNotRewritten(t *testing.T) {
	toks := tokens(NewGraphQL(Options{}), "fragment test on Viewer { name }")
	var onState, nameState *State
	for _, tok := range toks {
		switch tok.Text {
		case "on":
			onState = tok.State
		case "name":
			nameState = tok.State
		}
	}
	require.NotNil(t, onState)
	require.NotNil(t, nameState)

	// The fragment frame seen by "on" predates the type condition.
	assert.Equal(t, KindFragmentDefinition, onState.Prev.Kind)
	assert.Empty(t, onState.Prev.Type)
	assert.Equal(t, "Viewer", nameState.Prev.Prev.Prev.Type)
}

func TestUsedArgumentNames(t *testing.T) {
	text := "{ image(size: 1, wi"
	tok := TokenAt(NewGraphQL(Options{}), text, len([]rune(text)))
	require.NotNil(t, tok)
	assert.Equal(t, KindArgument, tok.State.Kind)
	assert.Equal(t, 0, tok.State.Step)
	require.Equal(t, KindArguments, tok.State.Prev.Kind)
	assert.Equal(t, []string{"size", "wi"}, tok.State.Prev.Used)
}

func TestAliasedFieldAndInlineFragment(t *testing.T) {
	def := NewGraphQL(Options{})
	text := "query Q { me: viewer { ... on User { id } } }"

	tok := TokenAt(def, text, strings.Index(text, "viewer")+1)
	require.NotNil(t, tok)
	assert.Equal(t, KindAliasedField, tok.State.Kind)
	assert.Equal(t, "viewer", tok.State.Name)

	tok = TokenAt(def, text, strings.Index(text, "User")+1)
	require.NotNil(t, tok)
	assert.Equal(t, KindNamedType, tok.State.Kind)
	assert.Equal(t, KindTypeCondition, tok.State.Prev.Kind)
	assert.Equal(t, KindInlineFragment, tok.State.Prev.Prev.Kind)

	tok = TokenAt(def, text, strings.Index(text, "id")+1)
	require.NotNil(t, tok)
	assert.Equal(t, KindField, tok.State.Kind)
	assert.True(t, tok.State.Within(KindInlineFragment))
}

func TestSchemaDefinitionStates(t *testing.T) {
	def := NewGraphQL(Options{})
	text := `"""doc"""
type Foo implements Bar & Baz @key {
  "field doc"
  a(first: Int = 1): [Foo!]!
}
union U = | A | B
directive @tag(name: String) repeatable on FIELD | OBJECT`

	cases := []struct {
		word   string
		kind   string
		parent string
	}{
		{"Foo", KindObjectTypeDef, KindDefinition},
		{"Baz", KindNamedType, KindImplements},
		{"a(", KindFieldDef, KindFieldsBlock},
		{"first", KindInputValueDef, KindArgumentsDef},
		{"Foo!", KindNamedType, KindNonNullType},
		{"B\n", KindNamedType, KindUnionMember},
		{"OBJECT", KindDirectiveLocation, KindDirectiveDef},
	}
	for _, c := range cases {
		t.Run(c.word, func(t *testing.T) {
			tok := TokenAt(def, text, strings.Index(text, c.word)+1)
			require.NotNil(t, tok)
			assert.Equal(t, c.kind, tok.State.Kind)
			assert.Equal(t, c.parent, tok.State.Prev.Kind)
		})
	}
}

func TestInvalidCharacters(t *testing.T) {
	toks := tokens(NewGraphQL(Options{}), "{ a % }")
	var styles []Style
	for _, tok := range toks {
		styles = append(styles, tok.Style)
	}
	assert.Contains(t, styles, StyleInvalid)

	last := toks[len(toks)-1]
	assert.Equal(t, "}", last.Text)
	assert.Equal(t, StylePunctuation, last.Style)
}

func TestTokenAtOutOfRange(t *testing.T) {
	def := NewGraphQL(Options{})
	assert.Nil(t, TokenAt(def, "", 0))
	assert.Nil(t, TokenAt(def, "{ a }", 10))
	assert.Nil(t, TokenAt(def, "{ a }", -1))
}

func TestEmbeddedTokenizer(t *testing.T) {
	def := MustEmbedded("embedded-queries", "gql`", "`", Options{})
	text := "const a = gql`query A { a }`;\nconst b = gql`{ b }`;\n"

	var styles []Style
	for _, tok := range tokens(def, text) {
		if tok.Style == StyleWhitespace {
			continue
		}
		styles = append(styles, tok.Style)
		switch tok.Style {
		case StyleOutside, StyleDocStart, StyleDocEnd:
			assert.Nil(t, tok.State, tok.Text)
		default:
			assert.NotNil(t, tok.State, tok.Text)
		}
	}
	assert.Equal(t, []Style{
		StyleDocStart, StyleKeyword, StyleDef, StylePunctuation, StyleProperty, StylePunctuation, StyleDocEnd,
		StyleDocStart, StylePunctuation, StyleProperty, StylePunctuation, StyleDocEnd,
		StyleOutside,
	}, styles)
}

func TestEmbeddedCommentStopsAtEndMarker(t *testing.T) {
	def := MustEmbedded("embedded-queries", "gql`", "`", Options{})
	text := "gql`{ a } # note`; x = 1"
	var ends int
	for _, tok := range tokens(def, text) {
		if tok.Style == StyleDocEnd {
			ends++
			assert.Equal(t, "`", tok.Text)
		}
		if tok.Style == StyleComment {
			assert.Equal(t, "# note", tok.Text)
		}
	}
	assert.Equal(t, 1, ends)
}

func TestEmbeddedInterpolationStyles(t *testing.T) {
	cases := []struct {
		name string
		opts Options
		text string
		want Style
	}{
		{"document level allowed", Options{AllowDocumentInterpolation: true}, "gql`query A { a } ${frag}`", StyleBlank},
		{"document level rejected", Options{}, "gql`query A { a } ${frag}`", StyleInvalid},
		{"fragment allowed", Options{AllowFragmentInterpolation: true}, "gql`query A { a ${frag} }`", StyleSpread},
		{"fragment rejected", Options{AllowDocumentInterpolation: true}, "gql`query A { a ${frag} }`", StyleInvalid},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			def := MustEmbedded("embedded-queries", "gql`", "`", c.opts)
			var got []Style
			for _, tok := range tokens(def, c.text) {
				if tok.Text == "${frag}" {
					got = append(got, tok.Style)
				}
			}
			assert.Equal(t, []Style{c.want}, got)
		})
	}
}

func TestNewEmbeddedRejectsBadMarkers(t *testing.T) {
	_, err := NewEmbedded("x", "(", "`", Options{})
	assert.Error(t, err)
	_, err = NewEmbedded("x", "a*", "`", Options{})
	assert.Error(t, err)
}
