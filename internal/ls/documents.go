package ls

import (
	"os"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/skaji/gql/internal/service"
)

func readDocument(state *State, uri protocol.DocumentUri, path string) (string, bool) {
	state.mu.Lock()
	if text, ok := state.docs[uri]; ok {
		state.mu.Unlock()
		return text, true
	}
	state.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return string(data), true
}

func (s *Server) documentText(uri protocol.DocumentUri) (string, bool) {
	path := uriToPath(uri)
	if path == "" {
		s.state.mu.Lock()
		text, ok := s.state.docs[uri]
		s.state.mu.Unlock()
		return text, ok
	}
	return readDocument(s.state, uri, path)
}

// pathText returns the open or on-disk text of path, or "".
func (s *Server) pathText(path string) string {
	text, _ := readDocument(s.state, pathToURI(path), path)
	return text
}

// request returns the service, the path and the text of the document a
// request is about. ok is false when there is nothing to answer with.
func (s *Server) request(uri protocol.DocumentUri) (svc *service.Service, path, text string, ok bool) {
	svc = s.state.service()
	if svc == nil {
		return nil, "", "", false
	}
	path = uriToPath(uri)
	if path == "" {
		return nil, "", "", false
	}
	text, ok = s.documentText(uri)
	return svc, path, text, ok
}
