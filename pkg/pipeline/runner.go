// pkg/pipeline/runner.go

// Package pipeline executes the five migration stages (import, profile,
// clean, validate, transform) over chunked, resumable stage runs.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/starkjeffrey/naga-migration/pkg/cleaner"
	"github.com/starkjeffrey/naga-migration/pkg/config"
	"github.com/starkjeffrey/naga-migration/pkg/model"
	"github.com/starkjeffrey/naga-migration/pkg/store"
	"github.com/starkjeffrey/naga-migration/pkg/transform"
)

// ErrStageInProgress is returned when a run for the stage is still
// marked running. A crashed run must be failed (or resumed by the
// operator) before a new one starts.
var ErrStageInProgress = errors.New("pipeline: stage run already in progress")

// ChunkFailure wraps the error that stopped a stage run, together with
// the index of the failed chunk. CommittedChunks is the resume point:
// everything before it is durably stored.
type ChunkFailure struct {
	Stage           model.StageKind
	Chunk           int
	CommittedChunks int
	Err             error
}

func (e *ChunkFailure) Error() string {
	return fmt.Sprintf("chunk %d of %s stage failed (%d chunks committed): %v",
		e.Chunk, e.Stage, e.CommittedChunks, e.Err)
}

func (e *ChunkFailure) Unwrap() error { return e.Err }

// Runner executes stages for configured tables against a Store.
type Runner struct {
	store      store.Store
	tables     *config.Registry
	cleaning   *cleaner.Registry
	transforms *transform.Registry
	dataDir    string
	chunkSize  int
	logger     *zap.Logger
}

// NewRunner wires a runner. chunkSize applies to new runs; resumed runs
// keep the chunk size they started with so committed chunk boundaries
// stay meaningful.
func NewRunner(
	st store.Store,
	tables *config.Registry,
	cleaning *cleaner.Registry,
	transforms *transform.Registry,
	dataDir string,
	chunkSize int,
	logger *zap.Logger,
) *Runner {
	return &Runner{
		store:      st,
		tables:     tables,
		cleaning:   cleaning,
		transforms: transforms,
		dataDir:    dataDir,
		chunkSize:  chunkSize,
		logger:     logger.Named("pipeline"),
	}
}

// RunAll executes every stage for a table in pipeline order, stopping
// at the first stage failure.
func (r *Runner) RunAll(ctx context.Context, tableID string) ([]*model.StageRun, error) {
	runs := make([]*model.StageRun, 0, len(model.StageOrder))
	for _, stage := range model.StageOrder {
		run, err := r.RunStage(ctx, tableID, stage)
		if run != nil {
			runs = append(runs, run)
		}
		if err != nil {
			return runs, err
		}
	}
	return runs, nil
}

// RunStage executes (or resumes) one stage for one table. The stage's
// predecessor must have a completed run. A failed run for the same
// stage is resumed from its last committed chunk; a completed run is
// left untouched and a fresh run is started.
func (r *Runner) RunStage(ctx context.Context, tableID string, stage model.StageKind) (*model.StageRun, error) {
	if !stage.Valid() {
		return nil, fmt.Errorf("unknown stage %q", stage)
	}

	cfg, err := r.tables.Resolve(tableID)
	if err != nil {
		return nil, err
	}

	if err := r.checkPredecessor(ctx, tableID, stage); err != nil {
		return nil, err
	}

	run, resumed, err := r.findOrCreateRun(ctx, tableID, stage)
	if err != nil {
		return nil, err
	}

	logger := r.logger.With(
		zap.String("table", tableID),
		zap.String("stage", string(stage)),
		zap.String("run_id", run.ID))
	if resumed {
		logger.Info("Resuming failed stage run",
			zap.Int("committed_chunks", run.CommittedChunks))
	} else {
		logger.Info("Starting stage run", zap.Int("chunk_size", run.ChunkSize))
	}

	run.Start()
	if err := r.store.SaveStageRun(ctx, run); err != nil {
		return run, err
	}

	if err := r.executeStage(ctx, cfg, run, resumed, logger); err != nil {
		run.Fail(err)
		if saveErr := r.store.SaveStageRun(ctx, run); saveErr != nil {
			logger.Error("Failed to persist run failure", zap.Error(saveErr))
		}
		logger.Error("Stage run failed",
			zap.Int("committed_chunks", run.CommittedChunks),
			zap.Error(err))
		return run, fmt.Errorf("stage %s for table %s: %w", stage, tableID, err)
	}

	run.Complete()
	if err := r.store.SaveStageRun(ctx, run); err != nil {
		return run, err
	}

	logger.Info("Stage run completed",
		zap.Int64("rows_in", run.RowsIn),
		zap.Int64("rows_out", run.RowsOut),
		zap.Int64("rows_accepted", run.RowsAccepted),
		zap.Int64("rows_rejected", run.RowsRejected),
		zap.Duration("duration", run.Duration()))
	return run, nil
}

func (r *Runner) executeStage(ctx context.Context, cfg *config.TableConfiguration, run *model.StageRun, resumed bool, logger *zap.Logger) error {
	switch run.Stage {
	case model.StageImport:
		return r.runImport(ctx, cfg, run, logger)
	case model.StageProfile:
		return r.runProfile(ctx, cfg, run, resumed, logger)
	case model.StageClean:
		return r.runClean(ctx, cfg, run, logger)
	case model.StageValidate:
		return r.runValidate(ctx, cfg, run, resumed, logger)
	case model.StageTransform:
		return r.runTransform(ctx, cfg, run, logger)
	default:
		return fmt.Errorf("unknown stage %q", run.Stage)
	}
}

// checkPredecessor enforces strict stage ordering: a stage may only
// start once its predecessor has a completed run for the table.
func (r *Runner) checkPredecessor(ctx context.Context, tableID string, stage model.StageKind) error {
	pred, ok := stage.Predecessor()
	if !ok {
		return nil
	}
	prev, err := r.store.LatestStageRun(ctx, tableID, pred)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("stage %s for table %s requires a completed %s run, found none", stage, tableID, pred)
		}
		return err
	}
	if prev.State != model.RunCompleted {
		return fmt.Errorf("stage %s for table %s requires a completed %s run, latest is %s",
			stage, tableID, pred, prev.State)
	}
	return nil
}

func (r *Runner) findOrCreateRun(ctx context.Context, tableID string, stage model.StageKind) (*model.StageRun, bool, error) {
	latest, err := r.store.LatestStageRun(ctx, tableID, stage)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.NewStageRun(tableID, stage, r.chunkSize), false, nil
		}
		return nil, false, err
	}

	switch latest.State {
	case model.RunRunning:
		return nil, false, fmt.Errorf("%w: run %s", ErrStageInProgress, latest.ID)
	case model.RunFailed, model.RunPending:
		latest.Err = ""
		return latest, latest.CommittedChunks > 0, nil
	default:
		// Completed runs are immutable; re-running the stage starts a
		// fresh run whose snapshots supersede the old ones.
		return model.NewStageRun(tableID, stage, r.chunkSize), false, nil
	}
}

// runChunked is the shared chunk loop for stages that read the
// predecessor stage's snapshots and write their own. process maps one
// input chunk to the same-length output chunk; counters for accepted
// and rejected rows are the stage's own responsibility.
func (r *Runner) runChunked(
	ctx context.Context,
	run *model.StageRun,
	fromStage model.StageKind,
	process func(rows []*model.Row) ([]*model.Row, error),
) error {
	limit := int64(run.ChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		offset := int64(run.CommittedChunks) * limit
		in, err := r.store.LoadChunk(ctx, run.TableID, fromStage, offset, limit)
		if err != nil {
			return err
		}
		if len(in) == 0 {
			return nil
		}

		// The chunk's counter contributions are provisional until the
		// commit lands; a failed commit rolls them back so the persisted
		// failed run reflects only committed work.
		checkpoint := snapshotCounters(run)

		out, err := process(in)
		if err != nil {
			restoreCounters(run, checkpoint)
			return r.chunkFailure(run, err)
		}

		run.RowsIn += int64(len(in))
		run.RowsOut += int64(len(out))
		run.CommittedChunks++
		if err := r.store.CommitChunk(ctx, run, out); err != nil {
			restoreCounters(run, checkpoint)
			return r.chunkFailure(run, err)
		}

		if int64(len(in)) < limit {
			return nil
		}
	}
}

func (r *Runner) chunkFailure(run *model.StageRun, err error) error {
	return &ChunkFailure{
		Stage:           run.Stage,
		Chunk:           run.CommittedChunks,
		CommittedChunks: run.CommittedChunks,
		Err:             err,
	}
}

type counterCheckpoint struct {
	committedChunks int
	rowsIn          int64
	rowsOut         int64
	rowsAccepted    int64
	rowsRejected    int64
	rejectionCounts map[model.RejectionCategory]int64
}

func snapshotCounters(run *model.StageRun) counterCheckpoint {
	counts := make(map[model.RejectionCategory]int64, len(run.RejectionCounts))
	for k, v := range run.RejectionCounts {
		counts[k] = v
	}
	return counterCheckpoint{
		committedChunks: run.CommittedChunks,
		rowsIn:          run.RowsIn,
		rowsOut:         run.RowsOut,
		rowsAccepted:    run.RowsAccepted,
		rowsRejected:    run.RowsRejected,
		rejectionCounts: counts,
	}
}

func restoreCounters(run *model.StageRun, cp counterCheckpoint) {
	run.CommittedChunks = cp.committedChunks
	run.RowsIn = cp.rowsIn
	run.RowsOut = cp.rowsOut
	run.RowsAccepted = cp.rowsAccepted
	run.RowsRejected = cp.rowsRejected
	run.RejectionCounts = cp.rejectionCounts
}
