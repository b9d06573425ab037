package grammar

import "fmt"

// State is one frame of the parser's rule stack. Frames reachable from a
// Token are never modified: the tokenizer works on a private copy of the
// innermost frame and allocates new nodes when it pushes or rewrites
// ancestors.
type State struct {
	Kind string
	Step int
	Name string
	// Type is the type condition recorded on a fragment frame.
	Type string
	// Used lists argument or input field names already written inside an
	// Arguments or ObjectValue frame.
	Used []string
	Prev *State

	rule           *rule
	needsSeparator bool
}

// Parent returns the enclosing frame, or nil at the root.
func (s *State) Parent() *State {
	if s == nil {
		return nil
	}
	return s.Prev
}

// Chain returns the frames from the outermost to s, skipping the root.
func (s *State) Chain() []*State {
	var chain []*State
	for cur := s; cur != nil && cur.Kind != ""; cur = cur.Prev {
		chain = append(chain, cur)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// Within reports whether s or one of its ancestors has the given kind.
func (s *State) Within(kind string) bool {
	for cur := s; cur != nil; cur = cur.Prev {
		if cur.Kind == kind {
			return true
		}
	}
	return false
}

func (s *State) String() string {
	if s == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s[%d] %q", s.Kind, s.Step, s.Name)
}

// machine is the mutable cursor of one tokenizer run.
type machine struct {
	top          State
	needsAdvance bool
}

func newMachine() *machine {
	m := &machine{}
	m.push(KindDocument)
	return m
}

func (m *machine) snapshot() *State {
	s := m.top
	return &s
}

func (m *machine) push(kind string) {
	r, ok := parseRules[kind]
	if !ok {
		r, ok = specialRules[kind]
	}
	if !ok {
		panic(fmt.Sprintf("grammar: unknown rule %q", kind))
	}
	prev := m.top
	m.top = State{Kind: kind, rule: r, Prev: &prev}
}

func (m *machine) pop() {
	if m.top.Prev == nil {
		m.top.rule = nil
		return
	}
	m.top = *m.top.Prev
}

// updateAncestor rewrites the frame depth levels above the top, copying
// every frame on the path so published states keep their values.
func (m *machine) updateAncestor(depth int, fn func(*State)) {
	path := make([]*State, 0, depth)
	cur := m.top.Prev
	for range depth {
		if cur == nil {
			return
		}
		path = append(path, cur)
		cur = cur.Prev
	}
	changed := *path[depth-1]
	fn(&changed)
	next := &changed
	for i := depth - 2; i >= 0; i-- {
		c := *path[i]
		c.Prev = next
		next = &c
	}
	m.top.Prev = next
}

func (m *machine) currentStep() *step {
	r := m.top.rule
	if r == nil || r.fork != nil || m.top.Step >= len(r.steps) {
		return nil
	}
	return &r.steps[m.top.Step]
}

func (m *machine) isList() bool {
	st := m.currentStep()
	return st != nil && st.list
}

func (m *machine) inSequence() bool {
	r := m.top.rule
	return r != nil && r.fork == nil && m.top.Step < len(r.steps)
}

func (m *machine) advance(successful bool) {
	if m.isList() {
		if sep := m.currentStep().separator; sep != nil {
			m.top.needsSeparator = !m.top.needsSeparator
			if !m.top.needsSeparator && sep.optional {
				return
			}
		}
		if successful {
			return
		}
	}
	m.top.needsSeparator = false
	m.top.Step++
	for m.top.rule != nil && !m.inSequence() {
		m.pop()
		if m.top.rule == nil {
			break
		}
		if m.isList() {
			if m.currentStep().separator != nil {
				m.top.needsSeparator = !m.top.needsSeparator
			}
		} else {
			m.top.needsSeparator = false
			m.top.Step++
		}
	}
}

func (m *machine) unsuccessful() {
	for m.top.rule != nil {
		if st := m.currentStep(); st != nil && st.optional {
			break
		}
		m.pop()
	}
	if m.top.rule != nil {
		m.advance(false)
	}
}
