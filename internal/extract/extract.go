// Package extract pulls GraphQL documents out of source files. Every
// document is as long as the source prefix it covers and keeps the same
// line layout, so positions found in a document are positions in the file.
package extract

import (
	"unicode/utf8"

	"github.com/skaji/gql/internal/errs"
	"github.com/skaji/gql/internal/grammar"
	"github.com/skaji/gql/internal/source"
	"github.com/skaji/gql/internal/trace"
)

// Placeholder names written into documents.
const (
	FragmentName      = "_"
	SpreadPlaceholder = "...F"
)

// Document is one extracted document. Text mirrors the source span
// [0, End); everything before Start is blanked host text or blanked earlier
// documents.
type Document struct {
	Path  string
	Text  string
	Start int
	End   int

	shifts []shift
}

// shift records text inserted into a document that has no counterpart in
// the source.
type shift struct {
	at    source.Position
	width int
}

// ToSource maps a position in d.Text to the matching source position.
func (d Document) ToSource(pos source.Position) source.Position {
	for i := len(d.shifts) - 1; i >= 0; i-- {
		sh := d.shifts[i]
		if pos.Line != sh.at.Line || pos.Column <= sh.at.Column {
			continue
		}
		if pos.Column < sh.at.Column+sh.width {
			pos.Column = sh.at.Column
		} else {
			pos.Column -= sh.width
		}
	}
	return pos
}

// Shifted reports whether any text had to be inserted.
func (d Document) Shifted() bool { return len(d.shifts) > 0 }

// Extract splits src into documents according to def. A whole-file
// definition always yields exactly one document.
func Extract(src source.Source, def grammar.Definition, tr *trace.Tracer) ([]Document, error) {
	span := tr.Start("extract", "path", src.Path, "parser", def.Name())
	defer span.End()

	if def.Mode() == grammar.ModeWholeFile {
		n := utf8.RuneCountInString(src.Text)
		return []Document{{Path: src.Path, Text: src.Text, End: n}}, nil
	}

	x := &extractor{
		path:  src.Path,
		runes: []rune(src.Text),
		opts:  def.Options(),
	}
	s := source.NewStream(src.Text)
	tz := def.NewTokenizer()
	for !s.EOF() {
		s.StartToken()
		style := tz.Next(s)
		if s.Pos() == s.Start() {
			s.Next()
		}
		if err := x.token(style, s.Start(), s.Pos(), tz.State()); err != nil {
			return nil, err
		}
		if tz.InDocument() != (x.buf != nil) {
			return nil, errs.Invariant("extract", "Extract",
				"%s: tokenizer in document is %t after %q token at offset %d, buffer open is %t",
				src.Path, tz.InDocument(), style, s.Start(), x.buf != nil)
		}
	}
	if x.buf != nil {
		x.push(len(x.runes))
	}
	return x.docs, nil
}

type extractor struct {
	path  string
	runes []rune
	opts  grammar.Options

	docs   []Document
	buf    []rune
	start  int
	shifts []shift
}

func (x *extractor) token(style grammar.Style, from, to int, st *grammar.State) error {
	text := x.runes[from:to]
	switch style {
	case grammar.StyleOutside:
		if x.buf != nil {
			return x.invariant(style, from, "host text inside an open document")
		}
		return nil
	case grammar.StyleDocStart:
		if x.buf != nil {
			return x.invariant(style, from, "start marker inside an open document")
		}
		x.buf = blank(make([]rune, 0, len(x.runes)), x.runes[:to])
		x.start = to
		x.shifts = nil
		return nil
	}

	if x.buf == nil {
		return x.invariant(style, from, "document token without an open document")
	}
	switch style {
	case grammar.StyleDocEnd:
		x.buf = blank(x.buf, text)
		x.push(to)
	case grammar.StyleBlank:
		x.buf = blank(x.buf, text)
	case grammar.StyleSpread:
		var next rune
		if to < len(x.runes) {
			next = x.runes[to]
		}
		x.buf = spread(x.buf, text, next)
	default:
		if x.opts.AllowFragmentWithoutName && anonymousFragment(style, string(text), st) {
			x.nameFragment()
		}
		x.buf = append(x.buf, text...)
	}
	return nil
}

func (x *extractor) push(end int) {
	x.docs = append(x.docs, Document{
		Path:   x.path,
		Text:   string(x.buf),
		Start:  x.start,
		End:    end,
		shifts: x.shifts,
	})
	x.buf = nil
	x.shifts = nil
}

func (x *extractor) invariant(style grammar.Style, offset int, what string) error {
	return errs.Invariant("extract", "Extract", "%s: %s (%q token at offset %d)", x.path, what, style, offset)
}

// anonymousFragment reports whether tok is the "on" of a fragment
// definition that has no name.
func anonymousFragment(style grammar.Style, text string, st *grammar.State) bool {
	if style != grammar.StyleKeyword || text != "on" || st == nil {
		return false
	}
	if st.Kind != grammar.KindTypeCondition {
		return false
	}
	frag := st.Parent()
	return frag != nil && frag.Kind == grammar.KindFragmentDefinition && frag.Name == ""
}

// nameFragment writes the placeholder name into the whitespace before the
// type condition keyword that is about to be appended. When no rune there
// has whitespace on both sides, the name is inserted and a shift recorded.
func (x *extractor) nameFragment() {
	n := len(x.buf)
	runStart := n
	for runStart > 0 && isSpace(x.buf[runStart-1]) {
		runStart--
	}
	for j := runStart + 1; j <= n-2; j++ {
		if r := x.buf[j]; r != '\n' && r != '\r' {
			x.buf[j] = '_'
			return
		}
	}
	lines := source.IndexLines(string(x.buf))
	x.shifts = append(x.shifts, shift{at: lines.Position(n), width: 2})
	x.buf = append(x.buf, '_', ' ')
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', ',', '\n', '\r':
		return true
	}
	return false
}

// blank appends text with every rune except line breaks and tabs turned
// into a space.
func blank(dst, text []rune) []rune {
	for _, r := range text {
		switch r {
		case '\n', '\r', '\t':
			dst = append(dst, r)
		default:
			dst = append(dst, ' ')
		}
	}
	return dst
}

// spread appends a placeholder fragment spread as wide as text. GraphQL
// ignores commas, so they pad the rest of the hole. The spread goes into the
// first line segment wide enough to hold it.
func spread(dst, text []rune, next rune) []rune {
	at := -1
	for i := 0; i < len(text); {
		j := i
		for j < len(text) && text[j] != '\n' && text[j] != '\r' {
			j++
		}
		width := j - i
		glued := j == len(text) && isNameRune(next)
		if width > len(SpreadPlaceholder) || (width == len(SpreadPlaceholder) && !glued) {
			at = i
			break
		}
		i = j + 1
	}
	for i, r := range text {
		switch {
		case r == '\n' || r == '\r':
			dst = append(dst, r)
		case at >= 0 && i >= at && i < at+len(SpreadPlaceholder):
			dst = append(dst, rune(SpreadPlaceholder[i-at]))
		default:
			dst = append(dst, ',')
		}
	}
	return dst
}

func isNameRune(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
