package source

// Stream is a cursor over the runes of a text. A token is the span between
// the mark set by StartToken and the current position. Reads never move past
// the limit, which defaults to the end of the text.
type Stream struct {
	runes []rune
	start int
	pos   int
	limit int
}

// NewStream returns a stream positioned at the first rune of text.
func NewStream(text string) *Stream {
	runes := []rune(text)
	return &Stream{runes: runes, limit: len(runes)}
}

// Len is the number of runes in the underlying text.
func (s *Stream) Len() int { return len(s.runes) }

// Pos is the rune offset of the cursor.
func (s *Stream) Pos() int { return s.pos }

// Start is the rune offset at which the current token began.
func (s *Stream) Start() int { return s.start }

// StartToken marks the cursor as the beginning of a new token.
func (s *Stream) StartToken() { s.start = s.pos }

// Current returns the text of the current token.
func (s *Stream) Current() string { return string(s.runes[s.start:s.pos]) }

// Slice returns the text between two offsets, clamped to the text.
func (s *Stream) Slice(from, to int) string {
	from = max(0, min(from, len(s.runes)))
	to = max(from, min(to, len(s.runes)))
	return string(s.runes[from:to])
}

// Rest returns the unread text up to the limit.
func (s *Stream) Rest() []rune { return s.runes[s.pos:s.limit] }

// RunesFrom returns the runes from offset to the end of the text, ignoring
// the limit. The slice must not be modified.
func (s *Stream) RunesFrom(offset int) []rune {
	return s.runes[max(0, min(offset, len(s.runes))):]
}

// Limit reports the current read limit.
func (s *Stream) Limit() int { return s.limit }

// SetLimit restricts reads to offsets below limit. Values outside the text
// reset the limit to the end of the text.
func (s *Stream) SetLimit(limit int) {
	if limit < s.pos || limit > len(s.runes) {
		limit = len(s.runes)
	}
	s.limit = limit
}

// ClearLimit removes any read limit.
func (s *Stream) ClearLimit() { s.limit = len(s.runes) }

// EOF reports whether the cursor reached the limit.
func (s *Stream) EOF() bool { return s.pos >= s.limit }

// Peek returns the rune under the cursor without consuming it.
func (s *Stream) Peek() (rune, bool) {
	if s.EOF() {
		return 0, false
	}
	return s.runes[s.pos], true
}

// PeekAt returns the rune n positions after the cursor.
func (s *Stream) PeekAt(n int) (rune, bool) {
	if s.pos+n >= s.limit || s.pos+n < 0 {
		return 0, false
	}
	return s.runes[s.pos+n], true
}

// Next consumes one rune.
func (s *Stream) Next() (rune, bool) {
	r, ok := s.Peek()
	if ok {
		s.pos++
	}
	return r, ok
}

// Eat consumes one rune if it satisfies match.
func (s *Stream) Eat(match func(rune) bool) bool {
	if r, ok := s.Peek(); ok && match(r) {
		s.pos++
		return true
	}
	return false
}

// EatWhile consumes runes while they satisfy match and reports whether any
// rune was consumed.
func (s *Stream) EatWhile(match func(rune) bool) bool {
	from := s.pos
	for s.Eat(match) {
	}
	return s.pos > from
}

// MatchString consumes prefix if the unread text starts with it.
func (s *Stream) MatchString(prefix string) bool {
	n := 0
	for _, r := range prefix {
		if s.pos+n >= s.limit || s.runes[s.pos+n] != r {
			return false
		}
		n++
	}
	s.pos += n
	return true
}

// HasPrefix reports whether the unread text starts with prefix.
func (s *Stream) HasPrefix(prefix string) bool {
	n := 0
	for _, r := range prefix {
		if s.pos+n >= s.limit || s.runes[s.pos+n] != r {
			return false
		}
		n++
	}
	return true
}

// SkipTo moves the cursor to offset, which must not be behind it.
func (s *Stream) SkipTo(offset int) {
	if offset > s.limit {
		offset = s.limit
	}
	if offset > s.pos {
		s.pos = offset
	}
}

// Seek moves the cursor to offset, clamped to the text and the limit.
func (s *Stream) Seek(offset int) {
	s.pos = max(0, min(offset, s.limit))
}

// SkipToEnd consumes everything up to the limit.
func (s *Stream) SkipToEnd() { s.pos = s.limit }

// SkipToEOL consumes runes up to, not including, the next line terminator.
func (s *Stream) SkipToEOL() {
	for s.pos < s.limit && s.runes[s.pos] != '\n' && s.runes[s.pos] != '\r' {
		s.pos++
	}
}

// Backup moves the cursor back n runes, never before the token start.
func (s *Stream) Backup(n int) {
	s.pos = max(s.start, s.pos-n)
}
