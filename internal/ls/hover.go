package ls

import (
	"log/slog"
	"strings"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

func (s *Server) hover(_ *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	uri := params.TextDocument.URI
	svc, path, text, ok := s.request(uri)
	if !ok {
		return nil, nil
	}
	pos := sourcePosition(text, params.Position)
	slog.Debug("hover request", "uri", uri, "line", pos.Line, "column", pos.Column)

	sigs := svc.Hover(path, text, pos)
	if len(sigs) == 0 {
		slog.Debug("hover: nothing under cursor", "uri", uri, "line", pos.Line, "column", pos.Column)
		return nil, nil
	}
	return hoverFromSignatures(sigs), nil
}

// hoverFromSignatures renders each signature as its own graphql block, most
// specific first.
func hoverFromSignatures(sigs []string) *protocol.Hover {
	blocks := make([]string, 0, len(sigs))
	for _, sig := range sigs {
		blocks = append(blocks, "```graphql\n"+strings.TrimRight(sig, "\n")+"\n```")
	}
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: strings.Join(blocks, "\n\n"),
		},
	}
}
