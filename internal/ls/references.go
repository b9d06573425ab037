package ls

import (
	"log/slog"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/skaji/gql/internal/source"
)

func (s *Server) references(_ *glsp.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	uri := params.TextDocument.URI
	svc, path, text, ok := s.request(uri)
	if !ok {
		return nil, nil
	}
	pos := sourcePosition(text, params.Position)

	locs := svc.References(path, text, pos)
	if !params.Context.IncludeDeclaration {
		if def := svc.Definition(path, text, pos); def != nil {
			locs = withoutLocation(locs, *def)
		}
	}
	if len(locs) == 0 {
		slog.Debug("references: no matches", "uri", uri, "line", pos.Line, "column", pos.Column)
		return nil, nil
	}
	return s.toLocations(locs), nil
}

func withoutLocation(locs []source.Location, drop source.Location) []source.Location {
	out := locs[:0:0]
	for _, loc := range locs {
		if loc.Path == drop.Path && loc.Start == drop.Start {
			continue
		}
		out = append(out, loc)
	}
	return out
}
