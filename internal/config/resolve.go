package config

import (
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/skaji/gql/internal/diag"
	"github.com/skaji/gql/internal/errs"
	"github.com/skaji/gql/internal/grammar"
	"github.com/skaji/gql/internal/rules"
	"github.com/skaji/gql/internal/schema"
	"github.com/skaji/gql/internal/watch"
)

// DefaultInterval is the polling interval when none is configured.
const DefaultInterval = time.Second

// Resolved is a config with every preset, parser and rule loaded.
type Resolved struct {
	// Dir is the directory holding the config file. Globs are relative to
	// it.
	Dir    string
	Schema *Target
	Query  []*Target
	Watch  WatchConfig
	Trace  bool
}

// Target is one set of files and how to process them.
type Target struct {
	Side   rules.Side
	Match  watch.Match
	Parser grammar.Definition
	Rules  rules.Set

	directives *ast.Source
}

// Extend adds the target's preset directives to s. Without any it returns
// s.
func (t *Target) Extend(s *schema.Schema) (*schema.Schema, error) {
	if t.directives == nil || s == nil {
		return s, nil
	}
	return s.WithDirectives(t.directives)
}

// ForFile returns the target that owns path, or nil. The schema wins over
// query targets, and earlier query targets over later ones.
func (r *Resolved) ForFile(path string) *Target {
	if r.Schema != nil && r.Schema.Match.Matches(r.Dir, path) {
		return r.Schema
	}
	for _, t := range r.Query {
		if t.Match.Matches(r.Dir, path) {
			return t
		}
	}
	return nil
}

// Resolve loads the presets of f and builds every target. dir is the
// directory of the config file.
func Resolve(f *File, dir string) (*Resolved, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errs.Config(err, "config", "Resolve", "resolve %s", dir)
	}
	r := &Resolved{Dir: abs, Watch: f.Watch, Trace: f.Trace}
	if r.Watch.Backend == "" {
		r.Watch.Backend = "native"
	}
	if r.Watch.Interval == 0 {
		r.Watch.Interval = DefaultInterval
	}

	r.Schema, err = resolveTarget(rules.SideSchema, f.Schema.Files, f.Schema.Presets, f.Schema.Parser, f.Schema.Validate, abs)
	if err != nil {
		return nil, err
	}
	if r.Schema.Parser.Mode() != grammar.ModeWholeFile {
		return nil, errs.Config(errs.ErrUnknownParser, "config", "Resolve", "schema parser %q: schema files are parsed whole", r.Schema.Parser.Name())
	}
	if f.Query != nil {
		for i, q := range f.Query.Files {
			t, err := resolveTarget(rules.SideQuery, q.Match, q.Presets, q.Parser, q.Validate, abs)
			if err != nil {
				return nil, fmt.Errorf("query.files[%d]: %w", i, err)
			}
			r.Query = append(r.Query, t)
		}
	}
	return r, nil
}

func resolveTarget(side rules.Side, match FileMatch, presets []Package, parserPkg *Package, validate *Validate, dir string) (*Target, error) {
	if len(presets) == 0 {
		presets = []Package{{Name: "default"}}
	}
	var loaded []Preset
	for _, pkg := range presets {
		p, err := loadPreset(side, pkg, dir)
		if err != nil {
			return nil, err
		}
		loaded = append(loaded, p)
	}
	merged := merge(append(loaded, Preset{Parser: parserPkg, Validate: validate})...)

	def, err := newParser(merged.Parser, merged.ParserOptions)
	if err != nil {
		return nil, err
	}
	cfg, err := severities(merged.Validate.Config)
	if err != nil {
		return nil, err
	}
	set, err := rules.Resolve(side, cfg)
	if err != nil {
		return nil, err
	}

	t := &Target{
		Side:   side,
		Match:  watch.Match{Include: match.Include, Ignore: match.Ignore},
		Parser: def,
		Rules:  set,
	}
	if merged.Directives != "" {
		src := &ast.Source{Name: "preset directives", Input: merged.Directives, BuiltIn: true}
		if _, err := parser.ParseSchema(src); err != nil {
			return nil, errs.Config(fmt.Errorf("%w: %w", errs.ErrInvalidConfig, err), "config", "Resolve", "PRESET_CONFIG_INVALID: preset directives")
		}
		t.directives = src
	}
	return t, nil
}

func severities(in map[string]string) (rules.Config, error) {
	out := make(rules.Config, len(in))
	for _, name := range slices.Sorted(maps.Keys(in)) {
		sev, err := diag.ParseSeverity(in[name])
		if err != nil {
			return nil, errs.Config(fmt.Errorf("%w: %w", errs.ErrInvalidConfig, err), "config", "Resolve", "rule %s", name)
		}
		out[name] = sev
	}
	return out, nil
}

// newParser builds the parser definition named by pkg. Boolean options come
// from the presets and from pkg, pkg last.
func newParser(pkg *Package, presetOptions map[string]any) (grammar.Definition, error) {
	options := maps.Clone(presetOptions)
	if options == nil {
		options = map[string]any{}
	}
	maps.Copy(options, pkg.Options)

	var opts grammar.Options
	var start, end string
	for key, v := range options {
		var err error
		switch key {
		case "allowDocumentInterpolation":
			opts.AllowDocumentInterpolation, err = boolOption(key, v)
		case "allowFragmentInterpolation":
			opts.AllowFragmentInterpolation, err = boolOption(key, v)
		case "allowFragmentWithoutName":
			opts.AllowFragmentWithoutName, err = boolOption(key, v)
		case "start":
			start, err = stringOption(key, v)
		case "end":
			end, err = stringOption(key, v)
		default:
			err = fmt.Errorf("unknown option %q", key)
		}
		if err != nil {
			return nil, errs.Config(fmt.Errorf("%w: %w", errs.ErrInvalidConfig, err), "config", "newParser", "parser %q", pkg.Name)
		}
	}

	name := strings.TrimPrefix(strings.TrimPrefix(pkg.Name, "gql-query-parser-"), "gql-schema-parser-")
	switch name {
	case "default":
		return grammar.NewGraphQL(opts), nil
	case "embedded-queries":
		if start == "" || end == "" {
			return nil, errs.Config(errs.ErrInvalidConfig, "config", "newParser", "parser %q needs start and end", pkg.Name)
		}
		def, err := grammar.NewEmbedded(name, start, end, opts)
		if err != nil {
			return nil, errs.Config(fmt.Errorf("%w: %w", errs.ErrInvalidConfig, err), "config", "newParser", "parser %q", pkg.Name)
		}
		return def, nil
	default:
		return nil, errs.Config(errs.ErrUnknownParser, "config", "newParser", "parser %q", pkg.Name)
	}
}

func boolOption(key string, v any) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("option %s: expected a boolean, got %T", key, v)
	}
	return b, nil
}

func stringOption(key string, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("option %s: expected a string, got %T", key, v)
	}
	return s, nil
}
