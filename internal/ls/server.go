package ls

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	"github.com/skaji/gql/internal/service"
)

var (
	ServerName = "gql"
	Version    = "0.1.0"
)

type Server struct {
	handler protocol.Handler
	state   *State
	options []service.Option
}

// New returns a server. opts are passed to the service opened at
// initialization.
func New(opts ...service.Option) *Server {
	s := &Server{
		state:   newState(),
		options: opts,
	}
	s.handler = protocol.Handler{
		Initialize:                s.initialize,
		Initialized:               s.initialized,
		Shutdown:                  s.shutdown,
		SetTrace:                  s.setTrace,
		TextDocumentDidOpen:       s.didOpen,
		TextDocumentDidChange:     s.didChange,
		TextDocumentDidSave:       s.didSave,
		TextDocumentDidClose:      s.didClose,
		TextDocumentHover:         s.hover,
		TextDocumentDefinition:    s.definition,
		TextDocumentCompletion:    s.completion,
		TextDocumentReferences:    s.references,
		TextDocumentPrepareRename: s.prepareRename,
		TextDocumentRename:        s.rename,
	}
	return s
}

func (s *Server) RunStdio() error {
	slog.Debug("starting LSP server", "name", ServerName, "version", Version)
	srv := server.NewServer(&s.handler, ServerName, false)
	defer s.stopService()
	return srv.RunStdio()
}

func (s *Server) initialize(context *glsp.Context, params *protocol.InitializeParams) (any, error) {
	slog.Debug("initialize request received")
	capabilities := s.handler.CreateServerCapabilities()
	syncKind := protocol.TextDocumentSyncKindIncremental
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: &protocol.True,
		Change:    &syncKind,
		Save:      &protocol.SaveOptions{},
	}
	capabilities.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{"@", "$", ".", ":", "("},
	}
	capabilities.RenameProvider = &protocol.RenameOptions{PrepareProvider: &protocol.True}

	rootPath := ""
	if params.RootURI != nil {
		rootPath = uriToPath(*params.RootURI)
	} else if params.RootPath != nil {
		rootPath = *params.RootPath
	}
	configDir := readInitializationOptions(params.InitializationOptions)
	if configDir == "" {
		configDir = rootPath
	} else if !filepath.IsAbs(configDir) && rootPath != "" {
		configDir = filepath.Join(rootPath, configDir)
	}

	s.state.mu.Lock()
	s.state.rootPath = rootPath
	s.state.configDir = configDir
	if context != nil {
		s.state.notify = context.Notify
	}
	s.state.mu.Unlock()
	slog.Debug("initialize configuration", "rootPath", rootPath, "configDir", configDir)

	if err := s.openService(configDir); err != nil {
		slog.Warn("language service disabled", "dir", configDir, "error", err)
	}

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    ServerName,
			Version: &Version,
		},
	}, nil
}

func (s *Server) initialized(context *glsp.Context, _ *protocol.InitializedParams) error {
	slog.Debug("initialized notification received")
	if context != nil {
		s.state.mu.Lock()
		s.state.notify = context.Notify
		s.state.mu.Unlock()
	}
	go func() {
		if err := s.startService(); err != nil {
			slog.Error("language service failed to start", "error", err)
		}
	}()
	return nil
}

func (s *Server) shutdown(_ *glsp.Context) error {
	slog.Debug("shutdown request received")
	protocol.SetTraceValue(protocol.TraceValueOff)
	s.stopService()
	return nil
}

func (s *Server) setTrace(_ *glsp.Context, params *protocol.SetTraceParams) error {
	slog.Debug("setTrace request received", "value", params.Value)
	protocol.SetTraceValue(params.Value)
	return nil
}

// openService loads the config found from dir. Without one the server
// keeps running and answers every request with nothing.
func (s *Server) openService(dir string) error {
	if dir == "" {
		return nil
	}
	opts := append([]service.Option{service.WithChangeHandler(s.onChange)}, s.options...)
	svc, err := service.Open(dir, opts...)
	if err != nil {
		return err
	}
	s.state.mu.Lock()
	s.state.svc = svc
	s.state.mu.Unlock()
	return nil
}

// startService runs the initial listing, forwards service errors to the
// client log and publishes the first diagnostics.
func (s *Server) startService() error {
	svc := s.state.service()
	if svc == nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.state.mu.Lock()
	s.state.cancel = cancel
	s.state.mu.Unlock()

	go s.forwardErrors(ctx, svc)
	if err := svc.Start(ctx); err != nil {
		return err
	}
	s.publishAllDiagnostics()
	return nil
}

func (s *Server) stopService() {
	s.state.mu.Lock()
	svc := s.state.svc
	cancel := s.state.cancel
	s.state.cancel = nil
	s.state.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if svc != nil {
		if err := svc.Close(); err != nil {
			slog.Debug("service close", "error", err)
		}
	}
}

func (s *Server) forwardErrors(ctx context.Context, svc *service.Service) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-svc.Errors():
			slog.Error("language service error", "error", err)
			s.notify(protocol.ServerWindowLogMessage, protocol.LogMessageParams{
				Type:    protocol.MessageTypeError,
				Message: err.Error(),
			})
		}
	}
}

func (s *Server) onChange() {
	select {
	case <-s.state.service().Ready():
	default:
		return
	}
	s.publishAllDiagnostics()
}

func (s *Server) notify(method string, params any) {
	s.state.mu.Lock()
	notify := s.state.notify
	s.state.mu.Unlock()
	if notify != nil {
		notify(method, params)
	}
}

func (s *Server) didOpen(_ *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	slog.Debug("didOpen", "uri", params.TextDocument.URI, "version", params.TextDocument.Version)
	s.state.mu.Lock()
	s.state.docs[params.TextDocument.URI] = params.TextDocument.Text
	s.state.mu.Unlock()

	s.publishAllDiagnostics()
	return nil
}

func (s *Server) didChange(_ *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	if len(params.ContentChanges) == 0 {
		return nil
	}
	uri := params.TextDocument.URI

	s.state.mu.Lock()
	current, ok := s.state.docs[uri]
	s.state.mu.Unlock()
	if !ok {
		current, _ = s.documentText(uri)
	}
	changes, ok := contentChanges(params.ContentChanges)
	if !ok {
		slog.Debug("didChange: unsupported change", "uri", uri)
		return nil
	}
	text := applyChanges(current, changes)
	slog.Debug("didChange", "uri", uri, "version", params.TextDocument.Version, "length", len(text), "changes", describeChanges(changes))

	s.state.mu.Lock()
	s.state.docs[uri] = text
	s.state.mu.Unlock()

	s.publishAllDiagnostics()
	return nil
}

// didSave needs no work: the watcher picks the file up.
func (s *Server) didSave(_ *glsp.Context, params *protocol.DidSaveTextDocumentParams) error {
	slog.Debug("didSave", "uri", params.TextDocument.URI)
	return nil
}

func (s *Server) didClose(_ *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	slog.Debug("didClose", "uri", params.TextDocument.URI)
	s.state.mu.Lock()
	delete(s.state.docs, params.TextDocument.URI)
	s.state.mu.Unlock()

	s.publishAllDiagnostics()
	return nil
}
