package ls

import (
	"fmt"
	"strings"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

const maxChangePreview = 40

// contentChange is one edit of a didChange notification. A nil Range
// replaces the whole text.
type contentChange struct {
	Range *protocol.Range
	Text  string
}

// contentChanges decodes the change events of a didChange notification.
// ok is false when an event has an unknown shape.
func contentChanges(events []any) ([]contentChange, bool) {
	out := make([]contentChange, 0, len(events))
	for _, event := range events {
		switch value := event.(type) {
		case protocol.TextDocumentContentChangeEventWhole:
			out = append(out, contentChange{Text: value.Text})
		case protocol.TextDocumentContentChangeEvent:
			out = append(out, contentChange{Range: value.Range, Text: value.Text})
		default:
			return nil, false
		}
	}
	return out, true
}

// applyChanges applies changes to text in order. Ranges count UTF-16 code
// units and are clamped to the text.
func applyChanges(text string, changes []contentChange) string {
	for _, c := range changes {
		if c.Range == nil {
			text = c.Text
			continue
		}
		start := min(max(c.Range.Start.IndexIn(text), 0), len(text))
		end := min(max(c.Range.End.IndexIn(text), start), len(text))
		text = text[:start] + c.Text + text[end:]
	}
	return text
}

// describeChanges summarizes changes for the debug log.
func describeChanges(changes []contentChange) string {
	summary := make([]string, 0, len(changes))
	for _, c := range changes {
		if c.Range == nil {
			summary = append(summary, fmt.Sprintf("full(len=%d)", len(c.Text)))
			continue
		}
		preview := c.Text
		if len(preview) > maxChangePreview {
			preview = preview[:maxChangePreview] + "..."
		}
		summary = append(summary, fmt.Sprintf("range(%d:%d-%d:%d,%q)",
			c.Range.Start.Line+1, c.Range.Start.Character+1,
			c.Range.End.Line+1, c.Range.End.Character+1, preview))
	}
	return strings.Join(summary, "; ")
}
