package ls

import (
	"fmt"
	"log/slog"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/skaji/gql/internal/query"
)

func (s *Server) completion(_ *glsp.Context, params *protocol.CompletionParams) (any, error) {
	uri := params.TextDocument.URI
	svc, path, text, ok := s.request(uri)
	if !ok {
		slog.Debug("completion: document missing", "uri", uri)
		return nil, nil
	}
	pos := sourcePosition(text, params.Position)

	hints := svc.Hints(path, text, pos)
	items := completionItems(hints)
	slog.Debug("completion", "uri", uri, "line", pos.Line, "column", pos.Column, "count", len(items))
	return items, nil
}

// completionItems keeps the ranking of hints through SortText.
func completionItems(hints []query.Hint) []protocol.CompletionItem {
	items := make([]protocol.CompletionItem, 0, len(hints))
	for i, h := range hints {
		kind := completionKindForHint(h)
		sortText := fmt.Sprintf("%04d", i)
		item := protocol.CompletionItem{
			Label:    h.Text,
			Kind:     &kind,
			SortText: &sortText,
		}
		if h.Type != "" && h.Kind != query.HintType {
			detail := h.Type
			item.Detail = &detail
		}
		if h.Description != "" {
			item.Documentation = protocol.MarkupContent{
				Kind:  protocol.MarkupKindMarkdown,
				Value: h.Description,
			}
		}
		if h.Deprecated {
			item.Tags = []protocol.CompletionItemTag{protocol.CompletionItemTagDeprecated}
		}
		items = append(items, item)
	}
	return items
}

func completionKindForHint(h query.Hint) protocol.CompletionItemKind {
	switch h.Kind {
	case query.HintType:
		return completionKindForDefinition(ast.DefinitionKind(h.Type))
	case query.HintField:
		return protocol.CompletionItemKindField
	case query.HintArgument:
		return protocol.CompletionItemKindVariable
	case query.HintInputField:
		return protocol.CompletionItemKindProperty
	case query.HintEnumValue:
		return protocol.CompletionItemKindEnumMember
	case query.HintValue:
		return protocol.CompletionItemKindConstant
	case query.HintDirective:
		return protocol.CompletionItemKindFunction
	default:
		return protocol.CompletionItemKindKeyword
	}
}

func completionKindForDefinition(kind ast.DefinitionKind) protocol.CompletionItemKind {
	switch kind {
	case ast.Object:
		return protocol.CompletionItemKindClass
	case ast.Interface:
		return protocol.CompletionItemKindInterface
	case ast.Union:
		return protocol.CompletionItemKindEnum
	case ast.Enum:
		return protocol.CompletionItemKindEnum
	case ast.Scalar:
		return protocol.CompletionItemKindValue
	default:
		return protocol.CompletionItemKindStruct
	}
}
