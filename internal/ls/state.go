package ls

import (
	"context"
	"sync"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/skaji/gql/internal/service"
)

type State struct {
	// publishing serializes diagnostic publication.
	publishing sync.Mutex

	mu        sync.Mutex
	docs      map[protocol.DocumentUri]string
	published map[protocol.DocumentUri]struct{}
	rootPath  string
	configDir string
	svc       *service.Service
	cancel    context.CancelFunc
	notify    glsp.NotifyFunc
}

func newState() *State {
	return &State{
		docs:      make(map[protocol.DocumentUri]string),
		published: make(map[protocol.DocumentUri]struct{}),
	}
}

func (st *State) service() *service.Service {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.svc
}
