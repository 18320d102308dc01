// pkg/model/stagerun.go
package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StageKind identifies one of the five pipeline stages.
type StageKind string

const (
	StageImport    StageKind = "import"
	StageProfile   StageKind = "profile"
	StageClean     StageKind = "clean"
	StageValidate  StageKind = "validate"
	StageTransform StageKind = "transform"
)

// StageOrder lists the stages in strict pipeline order. A stage cannot
// start until its predecessor's StageRun is completed.
var StageOrder = []StageKind{
	StageImport,
	StageProfile,
	StageClean,
	StageValidate,
	StageTransform,
}

// Predecessor returns the stage that must complete before s may run.
// Import has no predecessor and returns ok == false.
func (s StageKind) Predecessor() (StageKind, bool) {
	for i, stage := range StageOrder {
		if stage == s && i > 0 {
			return StageOrder[i-1], true
		}
	}
	return "", false
}

// Valid reports whether s names a known stage.
func (s StageKind) Valid() bool {
	for _, stage := range StageOrder {
		if stage == s {
			return true
		}
	}
	return false
}

// RunState is the lifecycle state of a StageRun.
type RunState string

const (
	RunPending   RunState = "pending"
	RunRunning   RunState = "running"
	RunCompleted RunState = "completed"
	RunFailed    RunState = "failed"
)

// StageRun records one execution of one stage for one table. A run is
// retriable from pending or failed, and never mutated once completed.
type StageRun struct {
	ID        string
	TableID   string
	Stage     StageKind
	State     RunState
	ChunkSize int

	// CommittedChunks counts chunks whose results have been durably
	// committed. A failed run resumes from this boundary.
	CommittedChunks int

	RowsIn          int64
	RowsOut         int64
	RowsAccepted    int64
	RowsRejected    int64
	RejectionCounts map[RejectionCategory]int64

	// Profiles carries per-column quality analysis for the Profile stage.
	Profiles []ColumnProfile

	StartedAt  time.Time
	FinishedAt time.Time
	Err        string
}

// NewStageRun creates a pending run for the given table and stage.
func NewStageRun(tableID string, stage StageKind, chunkSize int) *StageRun {
	return &StageRun{
		ID:              uuid.New().String(),
		TableID:         tableID,
		Stage:           stage,
		State:           RunPending,
		ChunkSize:       chunkSize,
		RejectionCounts: make(map[RejectionCategory]int64),
	}
}

// Start transitions the run to running when the first chunk begins.
func (sr *StageRun) Start() {
	sr.State = RunRunning
	sr.StartedAt = time.Now()
}

// Complete marks the run completed. All chunks must have been committed.
func (sr *StageRun) Complete() {
	sr.State = RunCompleted
	sr.FinishedAt = time.Now()
}

// Fail marks the run failed at the last committed chunk boundary.
func (sr *StageRun) Fail(err error) {
	sr.State = RunFailed
	sr.FinishedAt = time.Now()
	if err != nil {
		sr.Err = err.Error()
	}
}

// Retriable reports whether the run may be (re)started.
func (sr *StageRun) Retriable() bool {
	return sr.State == RunPending || sr.State == RunFailed
}

// RecordRejection tallies one rejection under its category.
func (sr *StageRun) RecordRejection(category RejectionCategory) {
	if sr.RejectionCounts == nil {
		sr.RejectionCounts = make(map[RejectionCategory]int64)
	}
	sr.RejectionCounts[category]++
	sr.RowsRejected++
}

// Duration returns the elapsed run time.
func (sr *StageRun) Duration() time.Duration {
	if sr.FinishedAt.IsZero() {
		return time.Since(sr.StartedAt)
	}
	return sr.FinishedAt.Sub(sr.StartedAt)
}

// String returns a short description for logging.
func (sr *StageRun) String() string {
	return fmt.Sprintf("%s/%s [%s]", sr.TableID, sr.Stage, sr.State)
}

// ColumnProfile is the Profile stage's read-only quality analysis for
// one source column.
type ColumnProfile struct {
	Column      string  `json:"column"`
	TotalRows   int64   `json:"total_rows"`
	NullOrBlank int64   `json:"null_or_blank"`
	MaxLength   int     `json:"max_length"`
	LegacyRatio float64 `json:"legacy_ratio"` // share of values detected as legacy-encoded script
}
