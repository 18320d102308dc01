// pkg/model/scorecard.go
package model

// QualityScorecard aggregates per-table, per-stage quality measures.
// It is derived from StageRun records and the rejection log by the audit
// reporter; the pipeline never writes it.
type QualityScorecard struct {
	TableID   string                      `json:"table_id"`
	Stage     StageKind                   `json:"stage"`
	TotalRows int64                       `json:"total_rows"`
	DirtyRows int64                       `json:"dirty_rows"`
	// Completeness is the share of non-blank values across required columns.
	Completeness float64 `json:"completeness"`
	// Consistency is the share of rows passing all validation rules.
	Consistency float64                     `json:"consistency"`
	Rejections  map[RejectionCategory]int64 `json:"rejections"`
}

// RejectedRow is the exportable audit record for one rejected row.
type RejectedRow struct {
	TableID   string            `json:"table_id"`
	Stage     StageKind         `json:"stage"`
	Ordinal   int64             `json:"ordinal"`
	LegacyKey string            `json:"legacy_key"`
	Category  RejectionCategory `json:"category"`
	Rule      string            `json:"rule"`
	Reason    string            `json:"reason"`
	// Snapshot is the full cleaned row at the moment of rejection.
	Snapshot map[string]string `json:"snapshot"`
}
