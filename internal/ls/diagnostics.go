package ls

import (
	"path/filepath"
	"sort"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/skaji/gql/internal/config"
	"github.com/skaji/gql/internal/diag"
	"github.com/skaji/gql/internal/service"
)

// publishAllDiagnostics sends the diagnostics of every file in the project.
// Open documents are checked with their editor text. Files that had
// diagnostics before and have none now are sent an empty list.
func (s *Server) publishAllDiagnostics() {
	svc := s.state.service()
	if svc == nil {
		return
	}
	status := svc.Status()
	if status == nil {
		return
	}

	s.state.publishing.Lock()
	defer s.state.publishing.Unlock()

	byPath := make(map[string][]diag.Diagnostic)
	for _, d := range status {
		path := diagnosticPath(svc, d)
		byPath[path] = append(byPath[path], d)
	}

	s.state.mu.Lock()
	docs := make(map[protocol.DocumentUri]string, len(s.state.docs))
	for uri, text := range s.state.docs {
		docs[uri] = text
	}
	s.state.mu.Unlock()

	for uri, text := range docs {
		path := uriToPath(uri)
		if path == "" {
			continue
		}
		checked, ok := svc.Check(path, text)
		if !ok {
			continue
		}
		var own []diag.Diagnostic
		for _, d := range checked {
			if diagnosticPath(svc, d) == path {
				own = append(own, d)
			}
		}
		byPath[path] = own
	}

	paths := make([]string, 0, len(byPath))
	for path := range byPath {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	published := make(map[protocol.DocumentUri]struct{}, len(paths))
	for _, path := range paths {
		diags := byPath[path]
		if len(diags) == 0 {
			continue
		}
		uri := pathToURI(path)
		s.publishDiagnostics(uri, toProtocolDiagnostics(s.pathText(path), diags, s.pathText))
		published[uri] = struct{}{}
	}

	s.state.mu.Lock()
	previous := s.state.published
	s.state.published = published
	s.state.mu.Unlock()

	for uri := range previous {
		if _, ok := published[uri]; !ok {
			s.publishDiagnostics(uri, []protocol.Diagnostic{})
		}
	}
}

func (s *Server) publishDiagnostics(uri protocol.DocumentUri, diagnostics []protocol.Diagnostic) {
	s.notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// diagnosticPath is the file a diagnostic is shown on. Diagnostics without a
// location go to the config file.
func diagnosticPath(svc *service.Service, d diag.Diagnostic) string {
	if len(d.Locations) == 0 || d.Locations[0].Path == "" {
		return filepath.Join(svc.Config().Dir, config.FileName)
	}
	return d.Locations[0].Path
}

// toProtocolDiagnostics converts diags shown on a file holding text.
// Locations past the first become related information; textOf reads the
// files they point into.
func toProtocolDiagnostics(text string, diags []diag.Diagnostic, textOf func(string) string) []protocol.Diagnostic {
	out := make([]protocol.Diagnostic, 0, len(diags))
	for _, d := range diags {
		severity := protocol.DiagnosticSeverityError
		if d.Severity == diag.SeverityWarn {
			severity = protocol.DiagnosticSeverityWarning
		}
		pd := protocol.Diagnostic{
			Severity: &severity,
			Source:   &ServerName,
			Message:  d.Message,
		}
		if d.Rule != "" {
			pd.Code = &protocol.IntegerOrString{Value: d.Rule}
		}
		if len(d.Locations) > 0 {
			pd.Range = protocolRange(text, d.Locations[0])
		}
		for _, loc := range d.Locations[min(1, len(d.Locations)):] {
			pd.RelatedInformation = append(pd.RelatedInformation, protocol.DiagnosticRelatedInformation{
				Location: protocol.Location{
					URI:   pathToURI(loc.Path),
					Range: protocolRange(textOf(loc.Path), loc),
				},
				Message: d.Message,
			})
		}
		out = append(out, pd)
	}
	return out
}
