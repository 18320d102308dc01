// pkg/store/store.go

// Package store persists stage runs and per-stage row snapshots. One
// snapshot of every row is kept per stage, keyed by (table, stage,
// ordinal), so any stage's output can be re-read exactly and a failed
// run can resume from its last committed chunk.
package store

import (
	"context"
	"errors"

	"github.com/starkjeffrey/naga-migration/pkg/model"
)

// ErrNotFound is returned when a requested run or snapshot does not exist.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence boundary of the pipeline.
//
// CommitChunk is the only write path for row data and must be atomic:
// the chunk's row snapshots and the updated run record (counters and
// CommittedChunks) land together or not at all. That atomicity is what
// makes CommittedChunks a trustworthy resume point.
type Store interface {
	// SaveStageRun inserts or updates a run record.
	SaveStageRun(ctx context.Context, run *model.StageRun) error

	// LatestStageRun returns the most recently started run for the
	// table and stage, or ErrNotFound.
	LatestStageRun(ctx context.Context, tableID string, stage model.StageKind) (*model.StageRun, error)

	// CommitChunk atomically persists one chunk of stage output together
	// with the run's updated counters. Rows carry their stage-output
	// snapshot; rejected rows are stored with their rejection attached.
	CommitChunk(ctx context.Context, run *model.StageRun, rows []*model.Row) error

	// LoadChunk reads stage output rows ordered by ordinal, starting at
	// offset, at most limit rows. An empty slice means end of data.
	LoadChunk(ctx context.Context, tableID string, stage model.StageKind, offset, limit int64) ([]*model.Row, error)

	// CountRows returns the number of row snapshots held for the stage.
	CountRows(ctx context.Context, tableID string, stage model.StageKind) (int64, error)

	// Rejections returns the audit records of every row rejected at the
	// Validation stage for the table, ordered by ordinal.
	Rejections(ctx context.Context, tableID string) ([]model.RejectedRow, error)

	// TransformedRows streams the accepted rows of the Transformation
	// stage in ordinal order, the read surface for the downstream
	// production-schema loader. fn returning an error stops the stream.
	TransformedRows(ctx context.Context, tableID string, fn func(*model.Row) error) error

	// Close releases the underlying resources.
	Close() error
}
