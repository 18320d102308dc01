// pkg/validator/validator.go
package validator

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/starkjeffrey/naga-migration/pkg/config"
	"github.com/starkjeffrey/naga-migration/pkg/model"
)

// Rule is a named predicate over a cleaned row, paired with the
// rejection category recorded when the predicate fails.
type Rule struct {
	Name     string
	Category model.RejectionCategory
	// Check returns a non-empty reason when the row fails the rule.
	Check func(row *model.Row) string
	// record, when non-nil, is called once per accepted row so the rule
	// can accumulate cross-row state (uniqueness tracking).
	record func(row *model.Row)
}

// Engine validates cleaned rows against a table's rule schema. Rules
// are evaluated in configured order and the first failing rule's
// category is recorded (short-circuit), so re-running validation on
// unchanged input produces identical per-row categories.
//
// An Engine carries per-run state for uniqueness checks and must not be
// shared across tables or runs.
type Engine struct {
	rules []Rule
}

// NewEngine creates an engine with the given ordered rule schema.
func NewEngine(rules []Rule) *Engine {
	return &Engine{rules: rules}
}

// ForTable builds the standard rule schema for a table configuration:
// the identity key is required and unique, non-nullable columns are
// required, and typed columns must hold well-formed values.
func ForTable(cfg *config.TableConfiguration) *Engine {
	var rules []Rule

	ipk := cfg.IdentityColumn()
	rules = append(rules,
		Required(ipk.Target),
		UniqueKey(ipk.Target),
	)

	for _, col := range cfg.Columns {
		if col.IdentityKey {
			continue
		}
		if !col.Nullable {
			rules = append(rules, Required(col.Target))
		}
		if col.Type != config.TypeText {
			rules = append(rules, MatchesType(col.Target, col.Type))
		}
	}

	return NewEngine(rules)
}

// Validate evaluates the row against the schema. The first failing
// rule determines the verdict; accepted rows update cross-row state.
func (e *Engine) Validate(row *model.Row) model.Verdict {
	for _, rule := range e.rules {
		if reason := rule.Check(row); reason != "" {
			return model.Reject(rule.Category, rule.Name, reason)
		}
	}
	e.Seed(row)
	return model.Accept()
}

// Seed registers an already-accepted row with every stateful rule
// without re-validating it. The stage runner uses this when resuming a
// failed run, replaying previously committed accepted rows so
// uniqueness checks see the full history.
func (e *Engine) Seed(row *model.Row) {
	for _, rule := range e.rules {
		if rule.record != nil {
			rule.record(row)
		}
	}
}

// Required fails when the column is missing or blank.
func Required(column string) Rule {
	return Rule{
		Name:     "required_" + column,
		Category: model.RejectionMissingData,
		Check: func(row *model.Row) string {
			if strings.TrimSpace(row.Values[column]) == "" {
				return fmt.Sprintf("required column %q is empty", column)
			}
			return ""
		},
	}
}

// UniqueKey fails when the column value was already seen on an earlier
// accepted row. Only accepted rows register: a row rejected for another
// reason must not shadow a later valid one.
func UniqueKey(column string) Rule {
	seen := make(map[string]int64)
	return Rule{
		Name:     "unique_" + column,
		Category: model.RejectionDuplicateConstraint,
		Check: func(row *model.Row) string {
			v := row.Values[column]
			if v == "" {
				return ""
			}
			if first, dup := seen[v]; dup {
				return fmt.Sprintf("duplicate value %q for column %q (first seen at row %d)", v, column, first)
			}
			return ""
		},
		record: func(row *model.Row) {
			if v := row.Values[column]; v != "" {
				if _, dup := seen[v]; !dup {
					seen[v] = row.Ordinal
				}
			}
		},
	}
}

// MaxLength fails when the column value exceeds n characters.
func MaxLength(column string, n int) Rule {
	return Rule{
		Name:     fmt.Sprintf("max_length_%s_%d", column, n),
		Category: model.RejectionValidationError,
		Check: func(row *model.Row) string {
			if len([]rune(row.Values[column])) > n {
				return fmt.Sprintf("column %q exceeds %d characters", column, n)
			}
			return ""
		},
	}
}

// OneOf fails when the column value is not in the allowed set. Blank
// values pass; combine with Required to forbid them.
func OneOf(column string, allowed ...string) Rule {
	set := make(map[string]struct{}, len(allowed))
	for _, v := range allowed {
		set[v] = struct{}{}
	}
	return Rule{
		Name:     "one_of_" + column,
		Category: model.RejectionValidationError,
		Check: func(row *model.Row) string {
			v := row.Values[column]
			if v == "" {
				return ""
			}
			if _, ok := set[v]; !ok {
				return fmt.Sprintf("column %q has value %q outside the allowed set", column, v)
			}
			return ""
		},
	}
}

// MatchesType fails when a non-blank value is not well-formed for the
// column's semantic type. The Clean stage normalizes values to their
// canonical spellings, so this is a strict parse.
func MatchesType(column string, dataType config.DataType) Rule {
	return Rule{
		Name:     fmt.Sprintf("type_%s_%s", column, dataType),
		Category: model.RejectionValidationError,
		Check: func(row *model.Row) string {
			v := row.Values[column]
			if v == "" {
				return ""
			}
			switch dataType {
			case config.TypeInteger:
				if _, err := strconv.ParseInt(v, 10, 64); err != nil {
					return fmt.Sprintf("column %q: %q is not an integer", column, v)
				}
			case config.TypeDecimal:
				if _, err := strconv.ParseFloat(v, 64); err != nil {
					return fmt.Sprintf("column %q: %q is not a decimal", column, v)
				}
			case config.TypeBoolean:
				if v != "true" && v != "false" {
					return fmt.Sprintf("column %q: %q is not a boolean", column, v)
				}
			case config.TypeDate:
				if _, err := time.Parse("2006-01-02", v); err != nil {
					return fmt.Sprintf("column %q: %q is not an ISO date", column, v)
				}
			}
			return ""
		},
	}
}
