package config

import (
	"bytes"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/skaji/gql/internal/errs"
	"github.com/skaji/gql/internal/rules"
)

// Preset is a named bundle of parser and rule settings.
type Preset struct {
	Parser        *Package       `yaml:"parser"`
	ParserOptions map[string]any `yaml:"parserOptions"`
	// Directives is SDL whose directive definitions are added to the
	// schema the target validates against.
	Directives string    `yaml:"directives"`
	Validate   *Validate `yaml:"validate"`
}

const relayDirectives = `directive @relay(plural: Boolean, mask: Boolean) on FRAGMENT_DEFINITION
directive @connection(key: String!, filters: [String]) on FIELD
`

func schemaPresets() map[string]Preset {
	return map[string]Preset{
		"default": {
			Parser:   &Package{Name: "default"},
			Validate: &Validate{Config: map[string]string{"NoUnusedTypeDefinition": "warn"}},
		},
	}
}

func queryPresets() map[string]Preset {
	def := map[string]string{"RequiredOperationName": "warn"}
	for _, name := range rules.CoreQueryRules() {
		def[name] = "error"
	}
	turnOff := func(off ...string) map[string]string {
		m := maps.Clone(def)
		for _, name := range off {
			m[name] = "off"
		}
		return m
	}

	return map[string]Preset{
		"default": {
			Parser:   &Package{Name: "default"},
			Validate: &Validate{Config: def},
		},
		"apollo": {
			Parser: &Package{Name: "embedded-queries", Options: map[string]any{
				"start": "gql`",
				"end":   "`",
			}},
			ParserOptions: map[string]any{"allowDocumentInterpolation": true},
			Validate: &Validate{Config: turnOff(
				"KnownFragmentNames",
				"NoUnusedFragments",
				"LoneAnonymousOperation",
			)},
		},
		"relay": {
			Parser: &Package{Name: "embedded-queries", Options: map[string]any{
				"start": "Relay\\.QL`",
				"end":   "`",
			}},
			ParserOptions: map[string]any{
				"allowFragmentWithoutName":   true,
				"allowFragmentInterpolation": true,
			},
			Directives: relayDirectives,
			Validate: &Validate{Config: turnOff(
				"KnownFragmentNames",
				"LoneAnonymousOperation",
				"NoFragmentCycles",
				"NoUndefinedVariables",
				"NoUnusedFragments",
				"NoUnusedVariables",
				"UniqueFragmentNames",
				"UniqueOperationNames",
				"UniqueVariableNames",
				"VariablesAreInputTypes",
				"VariablesInAllowedPosition",
			)},
		},
		"relay-modern": {
			Parser: &Package{Name: "embedded-queries", Options: map[string]any{
				"start": "graphql(?:\\.experimental)?`",
				"end":   "`",
			}},
			ParserOptions: map[string]any{
				"allowFragmentWithoutName":   true,
				"allowFragmentInterpolation": true,
			},
			Directives: relayDirectives,
			Validate: &Validate{Config: map[string]string{
				"KnownArgumentNames":         "error",
				"NoFragmentCycles":           "error",
				"NoUnusedVariables":          "error",
				"ProvidedRequiredArguments":  "error",
				"UniqueArgumentNames":        "error",
				"UniqueFragmentNames":        "error",
				"UniqueInputFieldNames":      "error",
				"UniqueOperationNames":       "error",
				"UniqueVariableNames":        "error",
				"ValuesOfCorrectType":        "error",
				"FragmentsOnCompositeTypes":  "error",
				"KnownTypeNames":             "error",
				"LoneAnonymousOperation":     "error",
				"PossibleFragmentSpreads":    "error",
				"ScalarLeafs":                "error",
				"VariablesAreInputTypes":     "error",
				"VariablesInAllowedPosition": "error",
				"ExactlyOneOperationPerTag":  "error",
			}},
		},
	}
}

// LoadExternal loads a preset that is not built in. dir is the directory of
// the config file. The default loads YAML preset files named by a relative
// or absolute path; anything else is not found.
var LoadExternal = loadPresetFile

func loadPresetFile(side rules.Side, name string, dir string) (Preset, error) {
	if !isPathName(name) {
		return Preset{}, errs.Config(errs.ErrUnknownPreset, "config", "LoadExternal",
			"PRESET_PKG_NOT_FOUND: %s preset %q not found relative to %q", side, name, dir)
	}
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Preset{}, errs.Config(fmt.Errorf("%w: %w", errs.ErrUnknownPreset, err), "config", "LoadExternal",
			"PRESET_PKG_NOT_FOUND: %s preset %q not found relative to %q", side, name, dir)
	}
	var p Preset
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return Preset{}, invalidPreset(name, err)
	}
	return p, nil
}

func isPathName(name string) bool {
	return strings.HasPrefix(name, "./") || strings.HasPrefix(name, "../") || filepath.IsAbs(name) ||
		strings.HasSuffix(name, ".yml") || strings.HasSuffix(name, ".yaml")
}

func invalidPreset(name string, err error) error {
	return errs.Config(fmt.Errorf("%w: %w", errs.ErrInvalidConfig, err), "config", "LoadExternal",
		"PRESET_CONFIG_INVALID: there are errors in preset %q", name)
}

func loadPreset(side rules.Side, pkg Package, dir string) (Preset, error) {
	name := strings.TrimPrefix(pkg.Name, "gql-"+side.String()+"-preset-")
	builtin := queryPresets()
	if side == rules.SideSchema {
		builtin = schemaPresets()
	}
	if p, ok := builtin[name]; ok {
		return p, nil
	}
	p, err := LoadExternal(side, pkg.Name, dir)
	if err != nil {
		return Preset{}, err
	}
	if err := p.check(side); err != nil {
		return Preset{}, invalidPreset(pkg.Name, err)
	}
	return p, nil
}

// check validates the shape of a loaded preset.
func (p Preset) check(side rules.Side) error {
	if p.Parser != nil && p.Parser.Name == "" {
		return fmt.Errorf("parser: empty name")
	}
	for key, v := range p.ParserOptions {
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("parserOptions.%s: expected a boolean", key)
		}
	}
	if p.Validate != nil {
		known := rules.Names(side)
		for name := range p.Validate.Config {
			if !slices.Contains(known, name) {
				return fmt.Errorf("validate.config: unknown %s rule %q", side, name)
			}
		}
	}
	return nil
}

// merge folds presets left to right. Later parsers win, parser options and
// rule severities merge key by key, and directives accumulate.
func merge(presets ...Preset) Preset {
	out := Preset{
		Parser:        &Package{Name: "default"},
		ParserOptions: map[string]any{},
		Validate:      &Validate{Config: map[string]string{}},
	}
	for _, p := range presets {
		if p.Parser != nil {
			out.Parser = p.Parser
		}
		maps.Copy(out.ParserOptions, p.ParserOptions)
		if p.Directives != "" && !strings.Contains(out.Directives, p.Directives) {
			out.Directives += p.Directives
		}
		if p.Validate != nil {
			maps.Copy(out.Validate.Config, p.Validate.Config)
		}
	}
	return out
}
