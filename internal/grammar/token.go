package grammar

import "github.com/skaji/gql/internal/source"

// Token is one token of a tokenizer run. State is the parser state right
// after the token and is shared, read-only, by every holder.
type Token struct {
	Start int
	End   int
	Text  string
	Style Style
	State *State
}

// Tokenize runs def over text and calls fn for every token until fn returns
// false or the text is exhausted.
func Tokenize(def Definition, text string, fn func(Token) bool) {
	s := source.NewStream(text)
	tz := def.NewTokenizer()
	for !s.EOF() {
		s.StartToken()
		style := tz.Next(s)
		if s.Pos() == s.Start() {
			// A tokenizer that consumes nothing would never finish.
			s.Next()
		}
		tok := Token{
			Start: s.Start(),
			End:   s.Pos(),
			Text:  s.Current(),
			Style: style,
			State: tz.State(),
		}
		if !fn(tok) {
			return
		}
	}
}

// TokenAt returns the first token ending at or after offset. It returns
// nil for an empty text or an offset past the end of the text.
func TokenAt(def Definition, text string, offset int) *Token {
	if offset < 0 || offset > len([]rune(text)) {
		return nil
	}
	var found *Token
	Tokenize(def, text, func(tok Token) bool {
		found = &tok
		return tok.End < offset
	})
	return found
}
