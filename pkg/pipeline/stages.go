// pkg/pipeline/stages.go
package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/starkjeffrey/naga-migration/pkg/cleaner"
	"github.com/starkjeffrey/naga-migration/pkg/config"
	"github.com/starkjeffrey/naga-migration/pkg/model"
	"github.com/starkjeffrey/naga-migration/pkg/source"
	"github.com/starkjeffrey/naga-migration/pkg/transform"
	"github.com/starkjeffrey/naga-migration/pkg/validator"
)

// runImport streams the extract file into raw row snapshots. Values are
// stored verbatim; the file is never read again after this stage.
func (r *Runner) runImport(ctx context.Context, cfg *config.TableConfiguration, run *model.StageRun, logger *zap.Logger) error {
	reader, err := source.Open(r.dataDir, cfg)
	if err != nil {
		return err
	}
	defer reader.Close()

	// Resume by re-reading the file up to the committed boundary;
	// ordinals are deterministic in file order so the skipped prefix is
	// identical to what was already committed.
	if skip := int64(run.CommittedChunks) * int64(run.ChunkSize); skip > 0 {
		if err := reader.Skip(skip); err != nil {
			return err
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		rows, err := reader.ReadChunk(run.ChunkSize)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}

		checkpoint := snapshotCounters(run)
		run.RowsIn += int64(len(rows))
		run.RowsOut += int64(len(rows))
		run.CommittedChunks++
		if err := r.store.CommitChunk(ctx, run, rows); err != nil {
			restoreCounters(run, checkpoint)
			return r.chunkFailure(run, err)
		}
		logger.Debug("Imported chunk",
			zap.Int("chunk", run.CommittedChunks),
			zap.Int("rows", len(rows)))

		if len(rows) < run.ChunkSize {
			return nil
		}
	}
}

// runClean applies each column's ordered cleaning rules to the raw
// snapshots. Every row in is a row out: unresolvable values are
// retained and the row flagged dirty, never dropped.
func (r *Runner) runClean(ctx context.Context, cfg *config.TableConfiguration, run *model.StageRun, logger *zap.Logger) error {
	return r.runChunked(ctx, run, model.StageImport, func(in []*model.Row) ([]*model.Row, error) {
		out := make([]*model.Row, 0, len(in))
		for _, raw := range in {
			row := raw.Clone()
			row.Values = make(map[string]string, len(cfg.Columns))

			for _, col := range cfg.Columns {
				rowCtx := cleaner.RowContext{
					Column: col.Source,
					Raw:    row.Raw,
					Locale: "km",
				}
				value, resolved, err := r.cleaning.ApplySequence(col.CleaningRules, row.Raw[col.Source], rowCtx)
				if err != nil {
					return nil, err
				}
				row.Values[col.Target] = value
				if !resolved {
					row.Dirty = true
					logger.Debug("Cleaning rule left value unresolved",
						zap.Int64("ordinal", row.Ordinal),
						zap.String("column", col.Source))
				}
			}
			out = append(out, row)
		}
		return out, nil
	})
}

// runValidate evaluates each cleaned row against the table's rule
// schema. Rejected rows are stored with their rejection attached; they
// remain in the audit trail and are excluded from transformation.
func (r *Runner) runValidate(ctx context.Context, cfg *config.TableConfiguration, run *model.StageRun, resumed bool, logger *zap.Logger) error {
	engine := validator.ForTable(cfg)

	// Uniqueness state lives in the engine, so a resumed run replays the
	// already committed accepted rows before validating new ones.
	if resumed {
		if err := r.seedValidator(ctx, run, engine); err != nil {
			return err
		}
	}

	return r.runChunked(ctx, run, model.StageClean, func(in []*model.Row) ([]*model.Row, error) {
		out := make([]*model.Row, 0, len(in))
		for _, cleaned := range in {
			row := cleaned.Clone()
			verdict := engine.Validate(row)
			if verdict.Accepted {
				run.RowsAccepted++
			} else {
				row.Rejection = verdict.Rejection
				run.RecordRejection(verdict.Rejection.Category)
				logger.Debug("Row rejected",
					zap.Int64("ordinal", row.Ordinal),
					zap.String("rule", verdict.Rejection.Rule),
					zap.String("category", string(verdict.Rejection.Category)))
			}
			out = append(out, row)
		}
		return out, nil
	})
}

func (r *Runner) seedValidator(ctx context.Context, run *model.StageRun, engine *validator.Engine) error {
	limit := int64(run.ChunkSize)
	committed := int64(run.CommittedChunks) * limit
	for offset := int64(0); offset < committed; offset += limit {
		rows, err := r.store.LoadChunk(ctx, run.TableID, model.StageValidate, offset, limit)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		for _, row := range rows {
			if row.Accepted() {
				engine.Seed(row)
			}
		}
	}
	return nil
}

// runTransform applies the table's transformation rules to accepted
// rows. Rejected rows pass through untouched so the stage conserves its
// row count and the audit trail stays complete.
func (r *Runner) runTransform(ctx context.Context, cfg *config.TableConfiguration, run *model.StageRun, logger *zap.Logger) error {
	return r.runChunked(ctx, run, model.StageValidate, func(in []*model.Row) ([]*model.Row, error) {
		out := make([]*model.Row, 0, len(in))
		for _, validated := range in {
			row := validated.Clone()
			if row.Accepted() {
				r.transformRow(cfg, run, row, logger)
				run.RowsAccepted++
			}
			out = append(out, row)
		}
		return out, nil
	})
}

func (r *Runner) transformRow(cfg *config.TableConfiguration, run *model.StageRun, row *model.Row, logger *zap.Logger) {
	for _, rule := range cfg.Transformations {
		if rule.Condition != nil && !rule.Condition(row) {
			continue
		}

		// The transformer reads the cleaned value, which lives under the
		// source column's mapped target name.
		mapped := cfg.ColumnBySource(rule.SourceColumn)
		value := row.Values[mapped.Target]
		if value == "" {
			continue
		}

		result := r.transforms.ApplyWithFallback(rule.Transformer, value, transform.Context{
			Table:        cfg.TableID,
			SourceColumn: rule.SourceColumn,
			TargetColumn: rule.TargetColumn,
			Ordinal:      row.Ordinal,
			RunID:        run.ID,
		}, logger)

		if !result.Resolved {
			row.Dirty = true
		}
		if !result.Applied {
			continue
		}
		if rule.PreserveOriginal {
			if row.Originals == nil {
				row.Originals = make(map[string]string)
			}
			row.Originals[rule.TargetColumn] = value
		}
		row.Values[rule.TargetColumn] = result.Value
	}
}
