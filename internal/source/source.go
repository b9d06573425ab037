// Package source holds the text model shared by the tokenizer, the
// extractor and the commands. Offsets and columns count runes, the same unit
// gqlparser uses for ast.Position.
package source

import (
	"fmt"
	"sort"
)

// Source is the text of one file together with its absolute path.
type Source struct {
	Path string
	Text string
}

// New returns a Source for text read from path.
func New(path, text string) Source {
	return Source{Path: path, Text: text}
}

// Position is a 1-based line and column.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Before reports whether p sorts before o.
func (p Position) Before(o Position) bool {
	if p.Line != o.Line {
		return p.Line < o.Line
	}
	return p.Column < o.Column
}

// Location is a span inside a file. End is exclusive.
type Location struct {
	Path  string   `json:"path"`
	Start Position `json:"start"`
	End   Position `json:"end"`
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%s", l.Path, l.Start)
}

// Less orders locations by path, then start position.
func (l Location) Less(o Location) bool {
	if l.Path != o.Path {
		return l.Path < o.Path
	}
	if l.Start != o.Start {
		return l.Start.Before(o.Start)
	}
	return l.End.Before(o.End)
}

// SortLocations sorts locs in place by path and position.
func SortLocations(locs []Location) {
	sort.SliceStable(locs, func(i, j int) bool { return locs[i].Less(locs[j]) })
}

// Lines indexes the rune offsets at which each line of a text starts.
type Lines struct {
	starts []int
	size   int
}

// IndexLines scans text once. Lines end at "\n", "\r\n" or a lone "\r", the
// same terminators the GraphQL lexer recognizes.
func IndexLines(text string) Lines {
	runes := []rune(text)
	starts := []int{0}
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '\r':
			if i+1 < len(runes) && runes[i+1] == '\n' {
				i++
			}
			starts = append(starts, i+1)
		case '\n':
			starts = append(starts, i+1)
		}
	}
	return Lines{starts: starts, size: len(runes)}
}

// Position converts a rune offset into a line and column. Offsets past the
// end clamp to the end of the text.
func (l Lines) Position(offset int) Position {
	if offset < 0 {
		offset = 0
	}
	if offset > l.size {
		offset = l.size
	}
	line := sort.Search(len(l.starts), func(i int) bool { return l.starts[i] > offset }) - 1
	return Position{Line: line + 1, Column: offset - l.starts[line] + 1}
}

// Offset converts a position into a rune offset. Columns past the end of a
// line clamp to the end of that line.
func (l Lines) Offset(pos Position) int {
	if pos.Line < 1 {
		return 0
	}
	if pos.Line > len(l.starts) {
		return l.size
	}
	start := l.starts[pos.Line-1]
	end := l.size
	if pos.Line < len(l.starts) {
		end = l.starts[pos.Line]
	}
	offset := start + pos.Column - 1
	if offset < start {
		return start
	}
	if offset > end {
		return end
	}
	return offset
}
