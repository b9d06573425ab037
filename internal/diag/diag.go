// Package diag is the diagnostic model shared by the schema builder, the
// query validator and every front end.
package diag

import (
	"errors"
	"fmt"
	"sort"

	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/skaji/gql/internal/source"
)

// Severity of a diagnostic. Rule configuration also knows "off", which never
// reaches a diagnostic.
type Severity string

const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warn"
	SeverityOff   Severity = "off"
)

// ParseSeverity accepts the values used in rule configuration.
func ParseSeverity(s string) (Severity, error) {
	switch Severity(s) {
	case SeverityError, SeverityWarn, SeverityOff:
		return Severity(s), nil
	case "warning":
		return SeverityWarn, nil
	}
	return "", fmt.Errorf("unknown severity %q", s)
}

// Diagnostic is one reported problem. Locations is nil for structural errors
// that have no single anchor.
type Diagnostic struct {
	Message   string            `json:"message"`
	Severity  Severity          `json:"severity"`
	Locations []source.Location `json:"locations"`
	Rule      string            `json:"rule,omitempty"`
}

func (d Diagnostic) String() string {
	if len(d.Locations) == 0 {
		return fmt.Sprintf("%s: %s", d.Severity, d.Message)
	}
	return fmt.Sprintf("%s: %s: %s", d.Locations[0], d.Severity, d.Message)
}

// Errorf returns an error diagnostic.
func Errorf(locs []source.Location, format string, args ...any) Diagnostic {
	return Diagnostic{Message: fmt.Sprintf(format, args...), Severity: SeverityError, Locations: locs}
}

// At is the one-rune location at pos in path.
func At(path string, pos source.Position) source.Location {
	return source.Location{Path: path, Start: pos, End: source.Position{Line: pos.Line, Column: pos.Column + 1}}
}

// Less orders diagnostics by the first location, then message. Diagnostics
// without a location come first.
func Less(a, b Diagnostic) bool {
	switch {
	case len(a.Locations) == 0 && len(b.Locations) > 0:
		return true
	case len(a.Locations) > 0 && len(b.Locations) == 0:
		return false
	case len(a.Locations) > 0:
		if a.Locations[0] != b.Locations[0] {
			return a.Locations[0].Less(b.Locations[0])
		}
	}
	return a.Message < b.Message
}

// Sort orders ds by path, line and column.
func Sort(ds []Diagnostic) {
	sort.SliceStable(ds, func(i, j int) bool { return Less(ds[i], ds[j]) })
}

// HasErrors reports whether any diagnostic has error severity.
func HasErrors(ds []Diagnostic) bool {
	for _, d := range ds {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// FromError converts an error returned by gqlparser into diagnostics. Errors
// that carry a "file" extension keep it; the rest are attributed to path.
func FromError(err error, path string) []Diagnostic {
	if err == nil {
		return nil
	}

	var list gqlerror.List
	if errors.As(err, &list) {
		return fromList(list, path)
	}

	var gqlErr *gqlerror.Error
	if errors.As(err, &gqlErr) {
		return fromList(gqlerror.List{gqlErr}, path)
	}

	return fromList(gqlerror.List{gqlerror.Wrap(err)}, path)
}

// Syntax converts a gqlparser parse failure. Only the first error matters:
// the parser stops there.
func Syntax(err error, path string) *Diagnostic {
	ds := FromError(err, path)
	if len(ds) == 0 {
		return nil
	}
	d := ds[0]
	d.Message = "Syntax Error: " + d.Message
	d.Rule = ""
	return &d
}

func fromList(list gqlerror.List, path string) []Diagnostic {
	ds := make([]Diagnostic, 0, len(list))
	for _, gqlErr := range list {
		if gqlErr == nil {
			continue
		}
		ds = append(ds, fromGQL(gqlErr, path))
	}
	return ds
}

func fromGQL(err *gqlerror.Error, path string) Diagnostic {
	file := path
	if f, ok := err.Extensions["file"].(string); ok && f != "" {
		file = f
	}

	var locs []source.Location
	for _, l := range err.Locations {
		line, col := l.Line, l.Column
		if line < 1 {
			line = 1
		}
		if col < 1 {
			col = 1
		}
		locs = append(locs, At(file, source.Position{Line: line, Column: col}))
	}

	return Diagnostic{
		Message:   err.Message,
		Severity:  SeverityError,
		Locations: locs,
		Rule:      err.Rule,
	}
}
