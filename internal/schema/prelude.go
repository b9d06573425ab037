package schema

import (
	"sync"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
	"github.com/vektah/gqlparser/v2/validator"
)

type preludeCache struct {
	once       sync.Once
	doc        *ast.SchemaDocument
	scalars    map[string]struct{}
	directives map[string]struct{}
}

var builtins preludeCache

func ensurePreludeLoaded() {
	builtins.once.Do(func() {
		builtins.scalars = make(map[string]struct{})
		builtins.directives = make(map[string]struct{})
		doc, err := parser.ParseSchema(validator.Prelude)
		if err != nil || doc == nil {
			builtins.doc = &ast.SchemaDocument{}
			return
		}
		builtins.doc = doc
		for _, def := range doc.Definitions {
			if def == nil {
				continue
			}
			if def.Kind == ast.Scalar {
				builtins.scalars[def.Name] = struct{}{}
			}
		}
		for _, dir := range doc.Directives {
			builtins.directives[dir.Name] = struct{}{}
		}
	})
}

// prelude returns the built-in scalars, introspection types and directives.
// The document is shared; callers clone before changing anything.
func prelude() *ast.SchemaDocument {
	ensurePreludeLoaded()
	return builtins.doc
}

// IsBuiltInScalar reports whether name is one of the specified scalars.
func IsBuiltInScalar(name string) bool {
	if name == "" {
		return false
	}
	ensurePreludeLoaded()
	_, ok := builtins.scalars[name]
	return ok
}

// IsBuiltInDirective reports whether name is a directive every schema has.
func IsBuiltInDirective(name string) bool {
	ensurePreludeLoaded()
	_, ok := builtins.directives[name]
	return ok
}
