package errs

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassString(t *testing.T) {
	tests := []struct {
		class    Class
		expected string
	}{
		{ClassConfig, "config"},
		{ClassInvariant, "invariant"},
		{Class(99), "unknown"},
	}
	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			assert.Equal(t, test.expected, test.class.String())
		})
	}
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		config    bool
		invariant bool
	}{
		{"nil", nil, false, false},
		{"plain", errors.New("boom"), false, false},
		{"unknown rule sentinel", ErrUnknownRule, true, false},
		{"wrapped sentinel", fmt.Errorf("load: %w", ErrUnknownPreset), true, false},
		{"config", Config(fs.ErrNotExist, "config", "Load", "read %s", ".gqlconfig"), true, false},
		{"invariant", Invariant("extract", "Extract", "buffer missing"), false, true},
		{"wrapped invariant", fmt.Errorf("cache: %w", Invariant("extract", "Extract", "x")), false, true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.config, IsConfig(test.err))
			assert.Equal(t, test.invariant, IsInvariant(test.err))
		})
	}
}

func TestErrorMessage(t *testing.T) {
	err := Config(ErrUnknownRule, "rules", "Resolve", "rule %q", "NoSuchRule")
	assert.Equal(t, `rules.Resolve: rule "NoSuchRule": unknown rule`, err.Error())
	assert.ErrorIs(t, err, ErrUnknownRule)

	err = Config(nil, "config", "", "schema.files is required")
	assert.Equal(t, "config: schema.files is required: invalid configuration", err.Error())
}
