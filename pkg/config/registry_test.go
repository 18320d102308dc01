// pkg/config/registry_test.go
package config

import (
	"errors"
	"strings"
	"testing"
)

type fakeRuleSet map[string]bool

func (s fakeRuleSet) Has(name string) bool { return s[name] }

func newTestRegistry() *Registry {
	return NewRegistry(
		fakeRuleSet{"trim_whitespace": true, "normalize_date": true},
		fakeRuleSet{"limon_to_unicode": true},
	)
}

func validTable() *TableConfiguration {
	return &TableConfiguration{
		TableID:    "people",
		SourceFile: "people.csv",
		Columns: []ColumnMapping{
			{Source: "ID", Target: "person_id", Type: TypeText, IdentityKey: true,
				CleaningRules: []string{"trim_whitespace"}},
			{Source: "Name", Target: "name", Type: TypeText, Nullable: true},
		},
		Transformations: []TransformationRule{
			{SourceColumn: "Name", TargetColumn: "name", Transformer: "limon_to_unicode"},
		},
	}
}

func TestRegistry_RegisterValid(t *testing.T) {
	r := newTestRegistry()
	if err := r.Register(validTable()); err != nil {
		t.Fatalf("Register: %v", err)
	}

	cfg, err := r.Resolve("people")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if cfg.IdentityColumn() == nil || cfg.IdentityColumn().Source != "ID" {
		t.Error("identity column not resolved")
	}
}

// Every violation must be reported in one error, not just the first, so
// operators fix the whole configuration in a single pass.
func TestRegistry_CollectsAllViolations(t *testing.T) {
	r := newTestRegistry()

	cfg := &TableConfiguration{
		TableID:    "broken",
		SourceFile: "broken.csv",
		Columns: []ColumnMapping{
			// Nullable identity key: one violation.
			{Source: "ID", Target: "id", IdentityKey: true, Nullable: true},
			// Unknown cleaning rule: another.
			{Source: "Name", Target: "name", CleaningRules: []string{"no_such_rule"}},
		},
		Transformations: []TransformationRule{
			// Unknown transformer and unknown source column: two more.
			{SourceColumn: "Missing", TargetColumn: "missing", Transformer: "no_such_transformer"},
		},
	}

	err := r.Register(cfg)
	if err == nil {
		t.Fatal("expected a configuration error")
	}

	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigurationError, got %T", err)
	}
	if len(cfgErr.Violations) != 4 {
		t.Errorf("expected 4 violations, got %d: %v", len(cfgErr.Violations), cfgErr.Violations)
	}

	for _, fragment := range []string{"must not be nullable", "no_such_rule", "no_such_transformer", "unknown source column"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Errorf("error message missing %q: %s", fragment, err)
		}
	}
}

func TestRegistry_IdentityKeyCount(t *testing.T) {
	r := newTestRegistry()

	cfg := validTable()
	cfg.Columns[0].IdentityKey = false
	if err := r.Register(cfg); err == nil {
		t.Error("expected rejection of configuration with no identity key")
	}

	cfg = validTable()
	cfg.Columns[1].IdentityKey = true
	cfg.Columns[1].Nullable = false
	if err := r.Register(cfg); err == nil {
		t.Error("expected rejection of configuration with two identity keys")
	}
}

func TestRegistry_DuplicateTableID(t *testing.T) {
	r := newTestRegistry()
	if err := r.Register(validTable()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(validTable()); err == nil {
		t.Error("expected rejection of duplicate table id")
	}
}

// The shipped table configurations must always resolve against the
// shipped rule and transformer sets.
func TestBuiltinTables_ResolveAgainstDefaults(t *testing.T) {
	names := fakeRuleSet{
		"trim_whitespace": true, "collapse_spaces": true, "uppercase": true,
		"encoding_fix": true, "normalize_phone": true, "normalize_gender": true,
		"normalize_date": true, "to_integer": true, "to_decimal": true, "to_boolean": true,
	}
	transformers := fakeRuleSet{
		"limon_to_unicode": true, "education_code": true, "term_code": true, "category_code": true,
	}

	r := NewRegistry(names, transformers)
	for _, cfg := range BuiltinTables() {
		if err := r.Register(cfg); err != nil {
			t.Errorf("builtin table %s failed validation: %v", cfg.TableID, err)
		}
	}

	if got := len(r.TableIDs()); got != 5 {
		t.Errorf("expected 5 builtin tables, got %d", got)
	}
}
