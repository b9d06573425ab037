package ls

import (
	"log/slog"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/skaji/gql/internal/source"
)

func (s *Server) definition(_ *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	uri := params.TextDocument.URI
	svc, path, text, ok := s.request(uri)
	if !ok {
		return nil, nil
	}
	pos := sourcePosition(text, params.Position)

	loc := svc.Definition(path, text, pos)
	if loc == nil {
		slog.Debug("definition: not found", "uri", uri, "line", pos.Line, "column", pos.Column)
		return nil, nil
	}
	return []protocol.Location{s.toLocation(*loc)}, nil
}

func (s *Server) toLocation(loc source.Location) protocol.Location {
	return protocol.Location{
		URI:   pathToURI(loc.Path),
		Range: protocolRange(s.pathText(loc.Path), loc),
	}
}

func (s *Server) toLocations(locs []source.Location) []protocol.Location {
	out := make([]protocol.Location, 0, len(locs))
	for _, loc := range locs {
		out = append(out, s.toLocation(loc))
	}
	return out
}
