package rules

import (
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/skaji/gql/internal/schema"
)

// noUnusedTypeDefinition reports user types that nothing references. Root
// types are used by definition.
func noUnusedTypeDefinition(w *schema.Walker, r *schema.Reporter) {
	s := w.Schema()
	w.OnDefinition(func(def *ast.Definition) {
		if def == s.Query || def == s.Mutation || def == s.Subscription {
			return
		}
		if len(s.Dependents(def.Name)) > 0 {
			return
		}
		r.Reportf(def.Position, "Type %q is defined but never used.", def.Name)
	})
}
