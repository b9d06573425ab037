package schema

import (
	"sort"
	"unicode/utf8"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/lexer"

	"github.com/skaji/gql/internal/source"
)

// tokenIndex holds the significant tokens of one parsed file. gqlparser
// positions some nodes at a description or a keyword; the index finds the
// name token that follows.
type tokenIndex struct {
	tokens []lexer.Token
}

func indexTokens(src *ast.Source) *tokenIndex {
	lx := lexer.New(src)
	ix := &tokenIndex{}
	for {
		tok, err := lx.ReadToken()
		if err != nil || tok.Kind == lexer.EOF {
			break
		}
		if tok.Kind == lexer.Comment {
			continue
		}
		ix.tokens = append(ix.tokens, tok)
	}
	return ix
}

// at returns the index of the first token starting at or after start.
func (ix *tokenIndex) at(start int) int {
	return sort.Search(len(ix.tokens), func(i int) bool { return ix.tokens[i].Pos.Start >= start })
}

// nameAt returns the index of the first name token at or after pos.
func (ix *tokenIndex) nameAt(pos *ast.Position) int {
	if ix == nil || pos == nil {
		return -1
	}
	for i := ix.at(pos.Start); i < len(ix.tokens); i++ {
		if ix.tokens[i].Kind == lexer.Name {
			return i
		}
	}
	return -1
}

func (ix *tokenIndex) token(i int) (lexer.Token, bool) {
	if ix == nil || i < 0 || i >= len(ix.tokens) {
		return lexer.Token{}, false
	}
	return ix.tokens[i], true
}

// implements returns the interface name tokens of the type whose name token
// is at index i.
func (ix *tokenIndex) implements(i int) []lexer.Token {
	tok, ok := ix.token(i + 1)
	if !ok || tok.Kind != lexer.Name || tok.Value != "implements" {
		return nil
	}
	return ix.nameList(i+2, lexer.Amp)
}

// unionMembers returns the member name tokens of the union whose name token
// is at index i.
func (ix *tokenIndex) unionMembers(i int) []lexer.Token {
	depth := 0
	for j := i + 1; j < len(ix.tokens); j++ {
		switch ix.tokens[j].Kind {
		case lexer.ParenL:
			depth++
		case lexer.ParenR:
			depth--
		case lexer.Equals:
			if depth == 0 {
				return ix.nameList(j+1, lexer.Pipe)
			}
		case lexer.Name:
			if depth == 0 && j > i+1 && ix.tokens[j-1].Kind != lexer.At {
				// Start of the next definition: a union extension without
				// members.
				return nil
			}
		}
	}
	return nil
}

// nameList reads names separated by sep, allowing one leading separator.
func (ix *tokenIndex) nameList(j int, sep lexer.Type) []lexer.Token {
	if tok, ok := ix.token(j); ok && tok.Kind == sep {
		j++
	}
	var names []lexer.Token
	for {
		tok, ok := ix.token(j)
		if !ok || tok.Kind != lexer.Name {
			return names
		}
		names = append(names, tok)
		next, ok := ix.token(j + 1)
		if !ok || next.Kind != sep {
			return names
		}
		j += 2
	}
}

func tokenLocation(path string, tok lexer.Token) source.Location {
	width := tok.Pos.End - tok.Pos.Start
	if width < 1 {
		width = utf8.RuneCountInString(tok.Value)
	}
	return source.Location{
		Path:  path,
		Start: source.Position{Line: tok.Pos.Line, Column: tok.Pos.Column},
		End:   source.Position{Line: tok.Pos.Line, Column: tok.Pos.Column + width},
	}
}

// positionLocation is the fallback for nodes without an indexed file.
func positionLocation(pos *ast.Position) *source.Location {
	if pos == nil || pos.Src == nil || pos.Src.BuiltIn {
		return nil
	}
	width := pos.End - pos.Start
	if width < 1 {
		width = 1
	}
	return &source.Location{
		Path:  pos.Src.Name,
		Start: source.Position{Line: pos.Line, Column: pos.Column},
		End:   source.Position{Line: pos.Line, Column: pos.Column + width},
	}
}
