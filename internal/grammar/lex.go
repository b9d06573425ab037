package grammar

import "github.com/skaji/gql/internal/source"

// LexKind is the lexical class of a lexeme.
type LexKind int

const (
	LexName LexKind = iota + 1
	LexPunctuation
	LexNumber
	LexString
	LexComment
)

// Lexeme is one lexical unit matched by the online lexer.
type Lexeme struct {
	Kind  LexKind
	Value string
}

func isNameStart(r rune) bool {
	return r == '_' || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')
}

func isNameContinue(r rune) bool {
	return isNameStart(r) || isDigit(r)
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

// isIgnored matches the insignificant runes of a GraphQL document. Commas
// are insignificant too.
func isIgnored(r rune) bool {
	switch r {
	case ' ', '\t', ',', '\n', '\r', '\uFEFF', '\u00A0':
		return true
	}
	return false
}

// lex tries name, punctuation, number, string and comment, in that order.
func lex(s *source.Stream) (Lexeme, bool) {
	from := s.Pos()
	for _, try := range []func(*source.Stream) LexKind{lexName, lexPunctuation, lexNumber, lexString, lexComment} {
		if kind := try(s); kind != 0 {
			return Lexeme{Kind: kind, Value: s.Slice(from, s.Pos())}, true
		}
		s.Seek(from)
	}
	return Lexeme{}, false
}

func lexName(s *source.Stream) LexKind {
	if !s.Eat(isNameStart) {
		return 0
	}
	s.EatWhile(isNameContinue)
	return LexName
}

func lexPunctuation(s *source.Stream) LexKind {
	if s.MatchString("...") {
		return LexPunctuation
	}
	r, ok := s.Peek()
	if !ok {
		return 0
	}
	switch r {
	case '!', '$', '(', ')', ':', '=', '&', '@', '[', ']', '{', '|', '}':
		s.Next()
		return LexPunctuation
	}
	return 0
}

func lexNumber(s *source.Stream) LexKind {
	s.Eat(func(r rune) bool { return r == '-' })
	switch {
	case s.Eat(func(r rune) bool { return r == '0' }):
	case s.Eat(func(r rune) bool { return r >= '1' && r <= '9' }):
		s.EatWhile(isDigit)
	default:
		return 0
	}
	if s.Eat(func(r rune) bool { return r == '.' }) {
		s.EatWhile(isDigit)
	}
	if r, ok := s.Peek(); ok && (r == 'e' || r == 'E') {
		mark := s.Pos()
		s.Next()
		s.Eat(func(r rune) bool { return r == '+' || r == '-' })
		if !s.EatWhile(isDigit) {
			s.Seek(mark)
		}
	}
	return LexNumber
}

func lexString(s *source.Stream) LexKind {
	if s.MatchString(`"""`) {
		for !s.EOF() {
			if s.MatchString(`\"""`) {
				continue
			}
			if s.MatchString(`"""`) {
				return LexString
			}
			s.Next()
		}
		return LexString
	}
	if !s.Eat(func(r rune) bool { return r == '"' }) {
		return 0
	}
	for {
		r, ok := s.Peek()
		if !ok || r == '\n' || r == '\r' {
			return LexString
		}
		s.Next()
		switch r {
		case '"':
			return LexString
		case '\\':
			s.Eat(func(r rune) bool { return r != '\n' && r != '\r' })
		}
	}
}

func lexComment(s *source.Stream) LexKind {
	if !s.Eat(func(r rune) bool { return r == '#' }) {
		return 0
	}
	s.SkipToEOL()
	return LexComment
}
