package schema

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/skaji/gql/internal/diag"
	"github.com/skaji/gql/internal/source"
)

// Rule is a named schema validation rule. Check registers callbacks on the
// walker; it runs once per Validate.
type Rule struct {
	Name     string
	Severity diag.Severity
	Check    func(w *Walker, r *Reporter)
}

// Walker visits every user-defined type of a schema.
type Walker struct {
	schema *Schema

	definition []func(def *ast.Definition)
	field      []func(parent *ast.Definition, field *ast.FieldDefinition, typeDef *ast.Definition)
}

// Schema returns the schema being walked.
func (w *Walker) Schema() *Schema { return w.schema }

// OnDefinition registers f to run for every type definition.
func (w *Walker) OnDefinition(f func(def *ast.Definition)) {
	w.definition = append(w.definition, f)
}

// OnField registers f to run for every field and input field. typeDef is the
// resolved named type of the field, nil when it is unknown.
func (w *Walker) OnField(f func(parent *ast.Definition, field *ast.FieldDefinition, typeDef *ast.Definition)) {
	w.field = append(w.field, f)
}

func (w *Walker) walk(defs []*ast.Definition) {
	for _, def := range defs {
		for _, f := range w.definition {
			f(def)
		}
		if len(w.field) == 0 {
			continue
		}
		for _, field := range def.Fields {
			if field.Position == nil {
				continue
			}
			typeDef := w.schema.Type(field.Type.Name())
			for _, f := range w.field {
				f(def, field, typeDef)
			}
		}
	}
}

// Reporter collects the diagnostics of one rule.
type Reporter struct {
	rule     string
	severity diag.Severity
	schema   *Schema
	out      *[]diag.Diagnostic
}

// Report adds a diagnostic located at the names found at positions.
func (r *Reporter) Report(msg string, positions ...*ast.Position) {
	var locs []source.Location
	for _, pos := range positions {
		if loc := r.schema.NameLocation(pos); loc != nil {
			locs = append(locs, *loc)
		}
	}
	r.ReportAt(msg, locs...)
}

// Reportf is Report with a format string, located at pos.
func (r *Reporter) Reportf(pos *ast.Position, format string, args ...any) {
	r.Report(fmt.Sprintf(format, args...), pos)
}

// ReportAt adds a diagnostic at explicit locations.
func (r *Reporter) ReportAt(msg string, locs ...source.Location) {
	*r.out = append(*r.out, diag.Diagnostic{
		Message:   msg + " (" + r.rule + ")",
		Severity:  r.severity,
		Locations: locs,
		Rule:      r.rule,
	})
}

// Validate runs rules over every user-defined type of s. Rules that are off
// are skipped.
func Validate(s *Schema, rules []Rule) []diag.Diagnostic {
	if s == nil || s.Schema == nil {
		return nil
	}
	var defs []*ast.Definition
	for _, def := range s.Types {
		if !def.BuiltIn {
			defs = append(defs, def)
		}
	}
	sortDefinitions(defs)

	var out []diag.Diagnostic
	for _, rule := range rules {
		if rule.Check == nil || rule.Severity == "" || rule.Severity == diag.SeverityOff {
			continue
		}
		w := &Walker{schema: s}
		rule.Check(w, &Reporter{rule: rule.Name, severity: rule.Severity, schema: s, out: &out})
		w.walk(defs)
	}
	return out
}

// sortDefinitions orders defs by file and position so rules report in a
// stable order.
func sortDefinitions(defs []*ast.Definition) {
	key := func(d *ast.Definition) (string, int) {
		if d.Position == nil || d.Position.Src == nil {
			return "", 0
		}
		return d.Position.Src.Name, d.Position.Start
	}
	slices.SortFunc(defs, func(a, b *ast.Definition) int {
		pa, sa := key(a)
		pb, sb := key(b)
		if c := strings.Compare(pa, pb); c != 0 {
			return c
		}
		if c := cmp.Compare(sa, sb); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
}
