package ls

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/skaji/gql/internal/source"
)

var graphQLName = regexp.MustCompile(`^[_A-Za-z][_0-9A-Za-z]*$`)

func (s *Server) prepareRename(_ *glsp.Context, params *protocol.PrepareRenameParams) (any, error) {
	uri := params.TextDocument.URI
	_, name, loc, ok := s.renameTarget(uri, params.Position)
	if !ok {
		return nil, nil
	}
	return protocol.RangeWithPlaceholder{
		Range:       protocolRange(s.pathText(loc.Path), loc),
		Placeholder: name,
	}, nil
}

func (s *Server) rename(_ *glsp.Context, params *protocol.RenameParams) (*protocol.WorkspaceEdit, error) {
	if params == nil {
		return nil, nil
	}
	uri := params.TextDocument.URI
	refs, name, _, ok := s.renameTarget(uri, params.Position)
	if !ok {
		return nil, nil
	}
	if !graphQLName.MatchString(params.NewName) || strings.HasPrefix(params.NewName, "__") {
		return nil, fmt.Errorf("%q is not a valid type name", params.NewName)
	}
	if params.NewName == name {
		return nil, nil
	}
	slog.Debug("rename", "uri", uri, "from", name, "to", params.NewName, "locations", len(refs))
	return workspaceEditFromLocations(s.toLocations(refs), params.NewName), nil
}

// renameTarget returns the locations to rewrite for the type name under
// pos and the name itself. Built-in types have no definition to rewrite
// and are refused.
func (s *Server) renameTarget(uri protocol.DocumentUri, position protocol.Position) ([]source.Location, string, source.Location, bool) {
	svc, path, text, ok := s.request(uri)
	if !ok {
		return nil, "", source.Location{}, false
	}
	pos := sourcePosition(text, position)
	name, loc, ok := nameAt(text, path, pos)
	if !ok {
		return nil, "", source.Location{}, false
	}
	if svc.Definition(path, text, pos) == nil {
		slog.Debug("rename: no definition", "uri", uri, "name", name)
		return nil, "", source.Location{}, false
	}
	refs := svc.References(path, text, pos)
	if len(refs) == 0 {
		slog.Debug("rename: not a type", "uri", uri, "name", name)
		return nil, "", source.Location{}, false
	}
	return refs, name, loc, true
}

// nameAt returns the GraphQL name touching pos, including a cursor placed
// right after it.
func nameAt(text, path string, pos source.Position) (string, source.Location, bool) {
	line := []rune(lineText(text, pos.Line))
	col := pos.Column - 1
	if col > len(line) || col < 0 {
		return "", source.Location{}, false
	}
	start := col
	for start > 0 && isNameRune(line[start-1]) {
		start--
	}
	end := col
	for end < len(line) && isNameRune(line[end]) {
		end++
	}
	if start == end {
		return "", source.Location{}, false
	}
	name := string(line[start:end])
	if !graphQLName.MatchString(name) {
		return "", source.Location{}, false
	}
	return name, source.Location{
		Path:  path,
		Start: source.Position{Line: pos.Line, Column: start + 1},
		End:   source.Position{Line: pos.Line, Column: end + 1},
	}, true
}

func isNameRune(r rune) bool {
	return r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9'
}

func workspaceEditFromLocations(locations []protocol.Location, newName string) *protocol.WorkspaceEdit {
	changes := make(map[protocol.DocumentUri][]protocol.TextEdit)
	for _, loc := range locations {
		edit := protocol.TextEdit{
			Range:   loc.Range,
			NewText: newName,
		}
		changes[loc.URI] = append(changes[loc.URI], edit)
	}
	return &protocol.WorkspaceEdit{Changes: changes}
}
