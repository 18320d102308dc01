// pkg/config/registry.go
package config

import (
	"fmt"
	"sort"
	"strings"
)

// RuleSet is the view of a rule or transformer registry the
// configuration registry needs for fail-fast name resolution.
type RuleSet interface {
	Has(name string) bool
}

// ConfigurationError is fatal and pre-run: it enumerates every violation
// found in a table configuration so operators can fix all issues in one
// pass. A table with a configuration error cannot start any stage.
type ConfigurationError struct {
	TableID    string
	Violations []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration for table %q: %s",
		e.TableID, strings.Join(e.Violations, "; "))
}

// Registry holds validated table configurations. It is built once per
// run, validated eagerly, and treated as immutable afterwards; it is
// passed explicitly to every component rather than living as ambient
// state, so concurrent multi-table runs stay isolated.
type Registry struct {
	tables       map[string]*TableConfiguration
	cleaning     RuleSet
	transformers RuleSet
}

// NewRegistry creates a registry that resolves cleaning-rule names and
// transformer names against the given sets.
func NewRegistry(cleaning, transformers RuleSet) *Registry {
	return &Registry{
		tables:       make(map[string]*TableConfiguration),
		cleaning:     cleaning,
		transformers: transformers,
	}
}

// Register validates and stores a table configuration. All violations
// are collected into a single ConfigurationError, not just the first.
func (r *Registry) Register(cfg *TableConfiguration) error {
	var violations []string

	if cfg.TableID == "" {
		violations = append(violations, "table id is required")
	}
	if cfg.SourceFile == "" {
		violations = append(violations, "source file is required")
	}
	if _, exists := r.tables[cfg.TableID]; exists {
		violations = append(violations, fmt.Sprintf("table %q is already registered", cfg.TableID))
	}

	identityKeys := 0
	for _, col := range cfg.Columns {
		if col.Source == "" || col.Target == "" {
			violations = append(violations,
				fmt.Sprintf("column %q/%q: source and target names are required", col.Source, col.Target))
		}
		if col.IdentityKey {
			identityKeys++
			if col.Nullable {
				violations = append(violations,
					fmt.Sprintf("identity key column %q must not be nullable", col.Source))
			}
		}
		for _, rule := range col.CleaningRules {
			if !r.cleaning.Has(rule) {
				violations = append(violations,
					fmt.Sprintf("column %q: unknown cleaning rule %q", col.Source, rule))
			}
		}
	}
	if identityKeys != 1 {
		violations = append(violations,
			fmt.Sprintf("exactly one identity key column is required, found %d", identityKeys))
	}

	for _, tr := range cfg.Transformations {
		if !r.transformers.Has(tr.Transformer) {
			violations = append(violations,
				fmt.Sprintf("transformation %q -> %q: unknown transformer %q",
					tr.SourceColumn, tr.TargetColumn, tr.Transformer))
		}
		if cfg.ColumnBySource(tr.SourceColumn) == nil {
			violations = append(violations,
				fmt.Sprintf("transformation references unknown source column %q", tr.SourceColumn))
		}
	}

	if len(violations) > 0 {
		return &ConfigurationError{TableID: cfg.TableID, Violations: violations}
	}

	r.tables[cfg.TableID] = cfg
	return nil
}

// Resolve returns the configuration for a table id.
func (r *Registry) Resolve(tableID string) (*TableConfiguration, error) {
	cfg, ok := r.tables[tableID]
	if !ok {
		return nil, fmt.Errorf("no configuration registered for table %q", tableID)
	}
	return cfg, nil
}

// TableIDs returns the registered table ids, sorted for stable output.
func (r *Registry) TableIDs() []string {
	ids := make([]string, 0, len(r.tables))
	for id := range r.tables {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
