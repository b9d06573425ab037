// Package grammar is an error-tolerant, online GraphQL tokenizer. It keeps
// enough parser state per token to tell where the cursor sits in documents
// that do not parse yet, and it can pull GraphQL out of host-language text
// delimited by start and end markers.
package grammar

import (
	"fmt"
	"io"
	"regexp"
	"unicode/utf8"

	"github.com/skaji/gql/internal/source"
)

// Style classifies a token.
type Style string

const (
	StyleWhitespace  Style = "ws"
	StyleComment     Style = "comment"
	StylePunctuation Style = "punctuation"
	StyleKeyword     Style = "keyword"
	StyleDef         Style = "def"
	StyleAtom        Style = "atom"
	StyleProperty    Style = "property"
	StyleQualifier   Style = "qualifier"
	StyleAttribute   Style = "attribute"
	StyleVariable    Style = "variable"
	StyleNumber      Style = "number"
	StyleString      Style = "string"
	StyleBuiltin     Style = "builtin"
	StyleEnum        Style = "string-2"
	StyleMeta        Style = "meta"
	StyleInvalid     Style = "invalidchar"

	// Host text outside of any embedded document.
	StyleOutside Style = "ws-outside"
	// Host text up to and including a start marker.
	StyleDocStart Style = "ws-start"
	// An end marker.
	StyleDocEnd Style = "ws-end"
	// An interpolation that stands in for whole definitions.
	StyleBlank Style = "ws-blank"
	// An interpolation that stands in for a fragment spread.
	StyleSpread Style = "ws-spread"
)

// Mode tells the extractor how a definition splits a file into documents.
type Mode int

const (
	ModeWholeFile Mode = iota
	ModeEmbedded
)

// Options tune what the extractor accepts inside documents.
type Options struct {
	AllowDocumentInterpolation bool `yaml:"allowDocumentInterpolation" json:"allowDocumentInterpolation"`
	AllowFragmentInterpolation bool `yaml:"allowFragmentInterpolation" json:"allowFragmentInterpolation"`
	AllowFragmentWithoutName   bool `yaml:"allowFragmentWithoutName" json:"allowFragmentWithoutName"`
}

// Definition is a pluggable parser definition.
type Definition interface {
	Name() string
	Mode() Mode
	Options() Options
	NewTokenizer() Tokenizer
}

// Tokenizer consumes one token per call to Next. The caller marks the token
// start on the stream before each call.
type Tokenizer interface {
	Next(s *source.Stream) Style
	// State returns the parser state after the last token, or nil when the
	// last token was not part of a document.
	State() *State
	// InDocument reports whether the tokenizer is inside a document.
	InDocument() bool
}

// GraphQL treats a whole file as one document.
type GraphQL struct {
	opts Options
}

// NewGraphQL returns the whole-file definition.
func NewGraphQL(opts Options) *GraphQL {
	return &GraphQL{opts: opts}
}

func (g *GraphQL) Name() string     { return "default" }
func (g *GraphQL) Mode() Mode       { return ModeWholeFile }
func (g *GraphQL) Options() Options { return g.opts }

func (g *GraphQL) NewTokenizer() Tokenizer {
	return &graphqlTokenizer{m: newMachine()}
}

type graphqlTokenizer struct {
	m *machine
}

func (t *graphqlTokenizer) State() *State    { return t.m.snapshot() }
func (t *graphqlTokenizer) InDocument() bool { return true }

func (t *graphqlTokenizer) atDocumentLevel() bool {
	return t.m.top.Kind == KindDocument
}

func (t *graphqlTokenizer) Next(s *source.Stream) Style {
	m := t.m
	if r := m.top.rule; r != nil && r.fork == nil && len(r.steps) == 0 {
		m.pop()
	} else if m.needsAdvance {
		m.needsAdvance = false
		m.advance(true)
	}

	if s.EatWhile(isIgnored) {
		return StyleWhitespace
	}

	lx, ok := lex(s)
	if !ok {
		s.Next()
		m.push(KindInvalid)
		return StyleInvalid
	}
	if lx.Kind == LexComment {
		m.push(KindComment)
		return StyleComment
	}

	backup := m.top
	for m.top.rule != nil {
		var expected *step
		if r := m.top.rule; r.fork != nil {
			if m.top.Step == 0 {
				if kind := r.fork(lx, s); kind != "" {
					expected = &step{rule: kind}
				}
			}
		} else {
			expected = m.currentStep()
		}
		if m.top.needsSeparator && expected != nil {
			expected = expected.separator
		}
		if expected != nil {
			if expected.rule != "" {
				m.push(expected.rule)
				continue
			}
			if expected.term.match(lx) {
				if expected.term.update != nil {
					expected.term.update(m, lx)
				}
				if lx.Kind == LexPunctuation {
					m.advance(true)
				} else {
					m.needsAdvance = true
				}
				return expected.term.style
			}
		}
		m.unsuccessful()
	}

	m.top = backup
	m.push(KindInvalid)
	return StyleInvalid
}

// Embedded finds documents between a start and an end marker inside host
// text, such as tagged template literals.
type Embedded struct {
	name  string
	start *regexp.Regexp
	end   *regexp.Regexp
	endAt *regexp.Regexp
	opts  Options
}

// NewEmbedded compiles the marker patterns. Neither pattern may match the
// empty string.
func NewEmbedded(name, start, end string, opts Options) (*Embedded, error) {
	startRe, err := regexp.Compile(start)
	if err != nil {
		return nil, fmt.Errorf("grammar: start marker %q: %w", start, err)
	}
	endRe, err := regexp.Compile(end)
	if err != nil {
		return nil, fmt.Errorf("grammar: end marker %q: %w", end, err)
	}
	if startRe.MatchString("") || endRe.MatchString("") {
		return nil, fmt.Errorf("grammar: markers %q and %q must not match empty text", start, end)
	}
	return &Embedded{
		name:  name,
		start: startRe,
		end:   endRe,
		endAt: regexp.MustCompile(`^(?:` + end + `)`),
		opts:  opts,
	}, nil
}

// MustEmbedded is NewEmbedded for patterns known to be valid.
func MustEmbedded(name, start, end string, opts Options) *Embedded {
	e, err := NewEmbedded(name, start, end, opts)
	if err != nil {
		panic(err)
	}
	return e
}

func (e *Embedded) Name() string     { return e.name }
func (e *Embedded) Mode() Mode       { return ModeEmbedded }
func (e *Embedded) Options() Options { return e.opts }

// Markers returns the start and end patterns.
func (e *Embedded) Markers() (string, string) { return e.start.String(), e.end.String() }

func (e *Embedded) NewTokenizer() Tokenizer {
	return &embeddedTokenizer{def: e, boundary: -1}
}

type embeddedTokenizer struct {
	def    *Embedded
	inner  *graphqlTokenizer
	inside bool
	last   Style
	// boundary caches the offset of the next end marker or interpolation.
	boundary int
}

func (t *embeddedTokenizer) InDocument() bool { return t.inside }

func (t *embeddedTokenizer) State() *State {
	switch t.last {
	case StyleOutside, StyleDocStart, StyleDocEnd, StyleBlank, StyleSpread:
		return nil
	}
	if t.inner == nil {
		return nil
	}
	return t.inner.State()
}

func (t *embeddedTokenizer) Next(s *source.Stream) Style {
	t.last = t.next(s)
	return t.last
}

func (t *embeddedTokenizer) next(s *source.Stream) Style {
	s.ClearLimit()
	if !t.inside {
		loc := t.def.start.FindReaderIndex(&runeReader{runes: s.Rest()})
		if loc == nil {
			s.SkipToEnd()
			return StyleOutside
		}
		s.Seek(s.Pos() + runeCount(s.Rest(), loc[1]))
		t.inside = true
		t.inner = &graphqlTokenizer{m: newMachine()}
		t.boundary = -1
		return StyleDocStart
	}

	if n := t.endMarkerAt(s, s.Pos()); n > 0 {
		s.Seek(s.Pos() + n)
		t.inside = false
		t.boundary = -1
		return StyleDocEnd
	}

	if s.HasPrefix("${") {
		skipInterpolation(s)
		t.boundary = -1
		opts := t.def.opts
		if t.inner.atDocumentLevel() {
			if opts.AllowDocumentInterpolation {
				return StyleBlank
			}
			return StyleInvalid
		}
		if opts.AllowFragmentInterpolation {
			return StyleSpread
		}
		return StyleInvalid
	}

	if t.boundary < s.Pos() {
		t.boundary = t.nextBoundary(s)
	}
	s.SetLimit(t.boundary)
	defer s.ClearLimit()
	return t.inner.Next(s)
}

// endMarkerAt returns the width of an end marker starting at offset, or 0.
// A marker escaped with a backslash does not count.
func (t *embeddedTokenizer) endMarkerAt(s *source.Stream, offset int) int {
	if escaped(s, offset) {
		return 0
	}
	rest := s.RunesFrom(offset)
	loc := t.def.endAt.FindReaderIndex(&runeReader{runes: rest})
	if loc == nil {
		return 0
	}
	return runeCount(rest, loc[1])
}

func (t *embeddedTokenizer) nextBoundary(s *source.Stream) int {
	from := s.Pos()
	end := s.Len()
	for off := from; off < s.Len(); {
		rest := s.RunesFrom(off)
		loc := t.def.end.FindReaderIndex(&runeReader{runes: rest})
		if loc == nil {
			break
		}
		at := off + runeCount(rest, loc[0])
		if !escaped(s, at) {
			end = at
			break
		}
		off = at + 1
	}
	rest := s.RunesFrom(from)
	for i := 0; i+1 < len(rest) && from+i < end; i++ {
		if rest[i] == '$' && rest[i+1] == '{' {
			return from + i
		}
	}
	return end
}

func escaped(s *source.Stream, offset int) bool {
	return offset > 0 && s.Slice(offset-1, offset) == `\`
}

// skipInterpolation consumes "${", then everything up to the matching "}".
// Braces inside quoted strings do not count.
func skipInterpolation(s *source.Stream) {
	s.MatchString("${")
	depth := 1
	for depth > 0 {
		r, ok := s.Next()
		if !ok {
			return
		}
		switch r {
		case '{':
			depth++
		case '}':
			depth--
		case '\'', '"', '`':
			for {
				c, ok := s.Next()
				if !ok || c == r {
					break
				}
				if c == '\\' {
					s.Next()
				}
			}
		}
	}
}

// runeReader feeds a rune slice to the regexp engine.
type runeReader struct {
	runes []rune
	i     int
}

func (r *runeReader) ReadRune() (rune, int, error) {
	if r.i >= len(r.runes) {
		return 0, 0, io.EOF
	}
	c := r.runes[r.i]
	r.i++
	return c, utf8.RuneLen(c), nil
}

// runeCount converts a byte offset reported by the regexp engine back into a
// rune count.
func runeCount(runes []rune, byteOffset int) int {
	n, bytes := 0, 0
	for n < len(runes) && bytes < byteOffset {
		bytes += utf8.RuneLen(runes[n])
		n++
	}
	return n
}
