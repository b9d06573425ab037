// Package config finds, reads and resolves .gqlconfig. Resolution loads the
// presets of every target, merges them with the explicit settings, and
// builds the parser definition and rule set each target runs with.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/skaji/gql/internal/errs"
)

// FileName is the name of the config file.
const FileName = ".gqlconfig"

// File is .gqlconfig as written.
type File struct {
	Schema SchemaConfig `yaml:"schema"`
	Query  *QueryFiles  `yaml:"query"`
	Watch  WatchConfig  `yaml:"watch"`
	Trace  bool         `yaml:"trace"`
}

type SchemaConfig struct {
	Files    FileMatch `yaml:"files"`
	Presets  []Package `yaml:"presets"`
	Parser   *Package  `yaml:"parser"`
	Validate *Validate `yaml:"validate"`
}

type QueryFiles struct {
	Files []QueryConfig `yaml:"files"`
}

type QueryConfig struct {
	Match    FileMatch `yaml:"match"`
	Presets  []Package `yaml:"presets"`
	Parser   *Package  `yaml:"parser"`
	Validate *Validate `yaml:"validate"`
}

// Validate holds rule severities by rule name.
type Validate struct {
	Config map[string]string `yaml:"config"`
}

// WatchConfig selects the watch backend. Backend is native, poll or none.
type WatchConfig struct {
	Backend  string        `yaml:"backend"`
	Interval time.Duration `yaml:"interval"`
}

// Globs is a glob or a list of globs.
type Globs []string

func (g *Globs) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		var s string
		if err := n.Decode(&s); err != nil {
			return err
		}
		*g = Globs{s}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := n.Decode(&list); err != nil {
			return err
		}
		*g = list
		return nil
	default:
		return fmt.Errorf("line %d: expected a glob or a list of globs", n.Line)
	}
}

// FileMatch is written as globs or as {include, ignore}.
type FileMatch struct {
	Include Globs `yaml:"include"`
	Ignore  Globs `yaml:"ignore"`
}

func (m *FileMatch) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.MappingNode {
		type plain FileMatch
		var p plain
		if err := n.Decode(&p); err != nil {
			return err
		}
		*m = FileMatch(p)
		return nil
	}
	var g Globs
	if err := n.Decode(&g); err != nil {
		return err
	}
	*m = FileMatch{Include: g}
	return nil
}

// Package names a preset or parser, written as name or [name, options].
type Package struct {
	Name    string
	Options map[string]any
}

func (p *Package) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		return n.Decode(&p.Name)
	case yaml.SequenceNode:
		if len(n.Content) == 0 || len(n.Content) > 2 {
			return fmt.Errorf("line %d: expected [name, options]", n.Line)
		}
		if err := n.Content[0].Decode(&p.Name); err != nil {
			return err
		}
		if len(n.Content) == 2 {
			return n.Content[1].Decode(&p.Options)
		}
		return nil
	default:
		return fmt.Errorf("line %d: expected a name or [name, options]", n.Line)
	}
}

// Find walks up from dir to the nearest directory holding FileName and
// returns the path of the file.
func Find(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", errs.Config(err, "config", "Find", "resolve %s", dir)
	}
	for d := abs; ; {
		path := filepath.Join(d, FileName)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
		parent := filepath.Dir(d)
		if parent == d {
			return "", errs.Config(errs.ErrConfigNotFound, "config", "Find", "no %s in %s or any parent directory", FileName, abs)
		}
		d = parent
	}
}

// Read decodes a config file. JSON configs are read as YAML.
func Read(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Config(err, "config", "Read", "read %s", path)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errs.Config(fmt.Errorf("%w: %w", errs.ErrInvalidConfig, err), "config", "Read", "parse %s", path)
	}
	if err := f.validate(); err != nil {
		return nil, errs.Config(fmt.Errorf("%w: %w", errs.ErrInvalidConfig, err), "config", "Read", "check %s", path)
	}
	return &f, nil
}

func (f *File) validate() error {
	if len(f.Schema.Files.Include) == 0 {
		return fmt.Errorf("schema.files is required")
	}
	if f.Query != nil {
		for i, q := range f.Query.Files {
			if len(q.Match.Include) == 0 {
				return fmt.Errorf("query.files[%d].match is required", i)
			}
		}
	}
	switch f.Watch.Backend {
	case "", "native", "poll", "none":
	default:
		return fmt.Errorf("watch.backend: unknown backend %q", f.Watch.Backend)
	}
	if f.Watch.Interval < 0 {
		return fmt.Errorf("watch.interval must not be negative")
	}
	return nil
}

// Load finds the config for dir, reads it, and resolves it.
func Load(dir string) (*Resolved, error) {
	path, err := Find(dir)
	if err != nil {
		return nil, err
	}
	f, err := Read(path)
	if err != nil {
		return nil, err
	}
	return Resolve(f, filepath.Dir(path))
}
