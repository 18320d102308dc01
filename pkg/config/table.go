// pkg/config/table.go
package config

import (
	"github.com/starkjeffrey/naga-migration/pkg/model"
)

// DataType is the semantic type of a target column.
type DataType string

const (
	TypeText    DataType = "text"
	TypeInteger DataType = "integer"
	TypeDecimal DataType = "decimal"
	TypeBoolean DataType = "boolean"
	TypeDate    DataType = "date"
)

// ColumnMapping describes how one source column maps to one target
// column, including the ordered cleaning rules applied in the Clean
// stage. Immutable during a run.
type ColumnMapping struct {
	Source      string
	Target      string
	Type        DataType
	Nullable    bool
	IdentityKey bool // the legacy identity key (IPK); exactly one per table
	// CleaningRules are applied in order. Names must resolve against the
	// cleaning rule registry at configuration load time.
	CleaningRules []string
	Description   string
}

// TransformationRule drives the Transformation stage for one column.
type TransformationRule struct {
	SourceColumn string
	TargetColumn string
	Transformer  string
	// PreserveOriginal retains the pre-transformation value alongside the
	// transformed one for spot-checking.
	PreserveOriginal bool
	// Condition, when non-nil, gates whether the rule applies to a row.
	Condition func(*model.Row) bool
}

// TableConfiguration identifies one source table and owns its column
// mappings and transformation rules.
type TableConfiguration struct {
	TableID         string
	SourceFile      string // delimited extract file name, relative to DataDir
	Delimiter       rune   // field delimiter; 0 means comma
	Columns         []ColumnMapping
	Transformations []TransformationRule
}

// IdentityColumn returns the column mapping flagged as the legacy
// identity key. The registry guarantees exactly one exists.
func (tc *TableConfiguration) IdentityColumn() *ColumnMapping {
	for i := range tc.Columns {
		if tc.Columns[i].IdentityKey {
			return &tc.Columns[i]
		}
	}
	return nil
}

// ColumnBySource returns the mapping for a source column name, or nil.
func (tc *TableConfiguration) ColumnBySource(source string) *ColumnMapping {
	for i := range tc.Columns {
		if tc.Columns[i].Source == source {
			return &tc.Columns[i]
		}
	}
	return nil
}
