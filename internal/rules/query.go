package rules

import (
	"cmp"
	"slices"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/validator/core"

	"github.com/skaji/gql/internal/diag"
	"github.com/skaji/gql/internal/schema"
)

// Rule is a query validation rule with its severity.
type Rule struct {
	Name     string
	Severity diag.Severity

	fn core.RuleFunc
}

// ValidateQuery runs rules over doc. The walk fills in the Definition fields
// of doc, so callers must not validate one document concurrently. path
// attributes errors whose position has no file.
func ValidateQuery(s *schema.Schema, doc *ast.QueryDocument, path string, rules []Rule) []diag.Diagnostic {
	if s == nil || s.Schema == nil || doc == nil || len(rules) == 0 {
		return nil
	}

	var out []diag.Diagnostic
	observers := &core.Events{}
	for _, rule := range rules {
		if rule.fn == nil || rule.Severity == diag.SeverityOff {
			continue
		}
		rule.fn(observers, func(options ...core.ErrorOption) {
			err := &gqlerror.Error{Rule: rule.Name}
			for _, o := range options {
				o(err)
			}
			for _, d := range diag.FromError(err, path) {
				d.Message += " (" + rule.Name + ")"
				d.Severity = rule.Severity
				d.Rule = rule.Name
				out = append(out, d)
			}
		})
	}
	core.Walk(s.Schema, doc, observers)
	return out
}

var requiredOperationName = core.Rule{
	Name: "RequiredOperationName",
	RuleFunc: func(observers *core.Events, addError core.AddErrFunc) {
		observers.OnOperation(func(_ *core.Walker, operation *ast.OperationDefinition) {
			if operation.Name == "" {
				addError(
					core.Message("Operation must have a name."),
					core.At(operation.Position),
				)
			}
		})
	},
}

// exactlyOneOperationPerTag reports a document that starts with an
// operation and defines anything else.
var exactlyOneOperationPerTag = core.Rule{
	Name: "ExactlyOneOperationPerTag",
	RuleFunc: func(observers *core.Events, addError core.AddErrFunc) {
		observers.OnOperation(func(walker *core.Walker, operation *ast.OperationDefinition) {
			doc := walker.Document
			if len(doc.Operations)+len(doc.Fragments) < 2 || firstDefinition(doc) != operation.Position {
				return
			}
			addError(
				core.Message("Expected exactly one operation (query, mutation or subscription)"),
				core.At(operation.Position),
			)
		})
	},
}

func firstDefinition(doc *ast.QueryDocument) *ast.Position {
	var positions []*ast.Position
	for _, op := range doc.Operations {
		positions = append(positions, op.Position)
	}
	for _, f := range doc.Fragments {
		positions = append(positions, f.Position)
	}
	positions = slices.DeleteFunc(positions, func(p *ast.Position) bool { return p == nil })
	if len(positions) == 0 {
		return nil
	}
	return slices.MinFunc(positions, func(a, b *ast.Position) int { return cmp.Compare(a.Start, b.Start) })
}
