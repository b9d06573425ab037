// Package rules is the registry of named validation rules. Schema rules run
// on the schema walker; query rules are gqlparser validator rules plus a few
// of our own, all run through one core.Walk per document.
package rules

import (
	"maps"
	"slices"

	"github.com/vektah/gqlparser/v2/validator/core"
	gqlrules "github.com/vektah/gqlparser/v2/validator/rules"

	"github.com/skaji/gql/internal/diag"
	"github.com/skaji/gql/internal/errs"
	"github.com/skaji/gql/internal/schema"
)

// Side selects the schema or query rule registry.
type Side int

const (
	SideSchema Side = iota
	SideQuery
)

func (s Side) String() string {
	if s == SideSchema {
		return "schema"
	}
	return "query"
}

// Config maps rule names to severities.
type Config map[string]diag.Severity

// Set is a resolved list of rules, sorted by name. Rules that are off are
// not included.
type Set struct {
	Schema []schema.Rule
	Query  []Rule
}

var schemaRegistry = map[string]func(w *schema.Walker, r *schema.Reporter){
	"NoUnusedTypeDefinition": noUnusedTypeDefinition,
}

var queryRegistry = func() map[string]core.RuleFunc {
	m := gqlrules.NewDefaultRules().GetInner()
	m[requiredOperationName.Name] = requiredOperationName.RuleFunc
	m[exactlyOneOperationPerTag.Name] = exactlyOneOperationPerTag.RuleFunc
	return m
}()

// CoreQueryRules returns the names of the gqlparser validator rules.
func CoreQueryRules() []string {
	return slices.Sorted(maps.Keys(gqlrules.NewDefaultRules().GetInner()))
}

// Names returns every rule name known on side.
func Names(side Side) []string {
	if side == SideSchema {
		return slices.Sorted(maps.Keys(schemaRegistry))
	}
	return slices.Sorted(maps.Keys(queryRegistry))
}

// Resolve turns cfg into runnable rules. Every name must be known on side.
func Resolve(side Side, cfg Config) (Set, error) {
	var set Set
	for _, name := range slices.Sorted(maps.Keys(cfg)) {
		sev := cfg[name]
		switch sev {
		case diag.SeverityError, diag.SeverityWarn, diag.SeverityOff:
		default:
			return Set{}, errs.Config(errs.ErrInvalidConfig, "rules", "Resolve", "rule %s: invalid severity %q", name, sev)
		}
		if side == SideSchema {
			check, ok := schemaRegistry[name]
			if !ok {
				return Set{}, errs.Config(errs.ErrUnknownRule, "rules", "Resolve", "%s rule %q", side, name)
			}
			if sev != diag.SeverityOff {
				set.Schema = append(set.Schema, schema.Rule{Name: name, Severity: sev, Check: check})
			}
			continue
		}
		fn, ok := queryRegistry[name]
		if !ok {
			return Set{}, errs.Config(errs.ErrUnknownRule, "rules", "Resolve", "%s rule %q", side, name)
		}
		if sev != diag.SeverityOff {
			set.Query = append(set.Query, Rule{Name: name, Severity: sev, fn: fn})
		}
	}
	return set, nil
}
