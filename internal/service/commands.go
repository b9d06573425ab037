package service

import (
	"github.com/skaji/gql/internal/cache"
	"github.com/skaji/gql/internal/config"
	"github.com/skaji/gql/internal/diag"
	"github.com/skaji/gql/internal/errs"
	"github.com/skaji/gql/internal/grammar"
	"github.com/skaji/gql/internal/query"
	"github.com/skaji/gql/internal/schema"
	"github.com/skaji/gql/internal/source"
)

// recoverCommand turns a panic in a command into an invariant error on the
// error channel. The command returns its zero value.
func (s *Service) recoverCommand(op string) {
	if r := recover(); r != nil {
		err := errs.Invariant("service", op, "%v", r)
		s.logger.Error("command failed", "op", op, "error", err)
		s.report(err)
	}
}

func (s *Service) queryCache(t *config.Target) *cache.QueryCache {
	for _, q := range s.queries {
		if q.Target() == t {
			return q
		}
	}
	return nil
}

// context returns the schema and parser that apply to path. Query files see
// the schema extended with their preset directives.
func (s *Service) context(path string) (*schema.Schema, grammar.Definition) {
	t := s.cfg.ForFile(path)
	if t == nil {
		return nil, nil
	}
	base := s.schema.Schema()
	if t == s.cfg.Schema {
		return base, t.Parser
	}
	if q := s.queryCache(t); q != nil {
		if sch := q.Schema(); sch != nil {
			return sch, t.Parser
		}
	}
	sch, err := t.Extend(base)
	if err != nil {
		s.report(err)
		sch = base
	}
	return sch, t.Parser
}

// Hints returns completion candidates at pos in text, which is the content
// of path.
func (s *Service) Hints(path, text string, pos source.Position) (hints []query.Hint) {
	defer s.recoverCommand("Hints")
	sch, def := s.context(path)
	if def == nil {
		return nil
	}
	span := s.tracer.Start("resolve", "command", "hints", "path", path)
	defer span.End()
	return query.Hints(sch, text, pos, def)
}

// Definition returns where the name at pos is defined.
func (s *Service) Definition(path, text string, pos source.Position) (loc *source.Location) {
	defer s.recoverCommand("Definition")
	sch, def := s.context(path)
	if def == nil {
		return nil
	}
	span := s.tracer.Start("resolve", "command", "definition", "path", path)
	defer span.End()
	return query.Definition(sch, text, pos, def)
}

// Hover returns the signatures describing the name at pos.
func (s *Service) Hover(path, text string, pos source.Position) (sigs []string) {
	defer s.recoverCommand("Hover")
	sch, def := s.context(path)
	if def == nil {
		return nil
	}
	span := s.tracer.Start("resolve", "command", "hover", "path", path)
	defer span.End()
	return query.Hover(sch, text, pos, def)
}

// References returns the definition of the type at pos and every place it
// is referenced.
func (s *Service) References(path, text string, pos source.Position) (locs []source.Location) {
	defer s.recoverCommand("References")
	sch, def := s.context(path)
	if def == nil {
		return nil
	}
	span := s.tracer.Start("resolve", "command", "references", "path", path)
	defer span.End()
	return query.References(sch, text, pos, def)
}

// Diagnostics returns the diagnostics of every last completed snapshot,
// sorted.
func (s *Service) Diagnostics() (out []diag.Diagnostic) {
	defer s.recoverCommand("Diagnostics")
	out = s.schema.Diagnostics()
	for _, q := range s.queries {
		out = append(out, q.Diagnostics()...)
	}
	diag.Sort(out)
	return out
}

// Status returns nil until the service is ready. After that it returns the
// schema diagnostics followed by the query diagnostics, each sorted.
func (s *Service) Status() (out []diag.Diagnostic) {
	defer s.recoverCommand("Status")
	if !s.isReady() {
		return nil
	}
	out = s.schema.Diagnostics()
	var queries []diag.Diagnostic
	for _, q := range s.queries {
		queries = append(queries, q.Diagnostics()...)
	}
	diag.Sort(queries)
	out = append(out, queries...)
	if out == nil {
		out = []diag.Diagnostic{}
	}
	return out
}

// Check returns the diagnostics the project would have if path held text.
// For a schema file that is every schema diagnostic; for a query file only
// the file's own. Nothing is cached. ok is false when no target owns path.
func (s *Service) Check(path, text string) (out []diag.Diagnostic, ok bool) {
	defer s.recoverCommand("Check")
	t := s.cfg.ForFile(path)
	if t == nil {
		return nil, false
	}
	if t == s.cfg.Schema {
		return s.schema.Check(path, text), true
	}
	q := s.queryCache(t)
	if q == nil {
		return nil, false
	}
	out, err := q.Check(path, text)
	if err != nil {
		s.report(err)
		return nil, true
	}
	return out, true
}

// IsSchema reports whether path belongs to the schema target.
func (s *Service) IsSchema(path string) bool {
	return s.cfg.Schema != nil && s.cfg.ForFile(path) == s.cfg.Schema
}
