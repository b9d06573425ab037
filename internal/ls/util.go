package ls

import (
	"encoding/json"
	"net/url"
	"path/filepath"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/skaji/gql/internal/source"
)

type initOptions struct {
	ConfigDir string `json:"configDir"`
}

func readInitializationOptions(options any) string {
	if options == nil {
		return ""
	}

	data, err := json.Marshal(options)
	if err != nil {
		return ""
	}

	var decoded initOptions
	if err := json.Unmarshal(data, &decoded); err != nil {
		return ""
	}

	return decoded.ConfigDir
}

func uriToPath(uri protocol.DocumentUri) string {
	parsed, err := url.Parse(string(uri))
	if err != nil {
		return ""
	}
	if parsed.Scheme != "file" {
		return ""
	}
	path, err := url.PathUnescape(parsed.Path)
	if err != nil {
		return ""
	}
	return filepath.FromSlash(path)
}

func pathToURI(path string) protocol.DocumentUri {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return protocol.DocumentUri(path)
	}
	absPath = filepath.ToSlash(absPath)
	u := url.URL{
		Scheme: "file",
		Path:   absPath,
	}
	return protocol.DocumentUri(u.String())
}

func lineStartIndex(text string, line int) int {
	if line <= 1 {
		return 0
	}
	start := 0
	for i := 1; i < line; i++ {
		next := strings.Index(text[start:], "\n")
		if next == -1 {
			return len(text)
		}
		start += next + 1
	}
	return start
}

// lineText returns line (1-based) of text without its line break.
func lineText(text string, line int) string {
	start := lineStartIndex(text, line)
	rest := text[start:]
	if end := strings.IndexByte(rest, '\n'); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSuffix(rest, "\r")
}

// PositionToRuneOffset converts an LSP position, counted in UTF-16 code
// units, into a rune offset and a 1-based line and rune column.
func PositionToRuneOffset(text string, pos protocol.Position) (int, int, int) {
	byteOffset := pos.IndexIn(text)
	byteOffset = max(0, byteOffset)

	line := int(pos.Line) + 1
	lineStart := lineStartIndex(text, line)
	byteOffset = max(lineStart, byteOffset)

	offset := utf8.RuneCountInString(text[:byteOffset])
	column := utf8.RuneCountInString(text[lineStart:byteOffset]) + 1
	column = max(1, column)
	return offset, line, column
}

func sourcePosition(text string, pos protocol.Position) source.Position {
	_, line, column := PositionToRuneOffset(text, pos)
	return source.Position{Line: line, Column: column}
}

// protocolPosition converts a rune position in text into an LSP position.
// Without text, columns are taken as UTF-16 units.
func protocolPosition(text string, pos source.Position) protocol.Position {
	line := max(pos.Line-1, 0)
	column := max(pos.Column-1, 0)
	if text == "" {
		return protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(column)}
	}
	runes := []rune(lineText(text, pos.Line))
	column = min(column, len(runes))
	units := len(utf16.Encode(runes[:column]))
	return protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(units)}
}

func protocolRange(text string, loc source.Location) protocol.Range {
	start := protocolPosition(text, loc.Start)
	end := protocolPosition(text, loc.End)
	if end.Line < start.Line || (end.Line == start.Line && end.Character <= start.Character) {
		end = protocol.Position{Line: start.Line, Character: start.Character + 1}
	}
	return protocol.Range{Start: start, End: end}
}
