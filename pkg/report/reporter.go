// pkg/report/reporter.go

// Package report derives audit artifacts from stored runs and row
// snapshots: per-table quality scorecards and the rejected-row export.
// The reporter only reads; it never alters pipeline state.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/starkjeffrey/naga-migration/pkg/config"
	"github.com/starkjeffrey/naga-migration/pkg/model"
	"github.com/starkjeffrey/naga-migration/pkg/store"
)

// Reporter builds audit output for completed stage runs.
type Reporter struct {
	store  store.Store
	tables *config.Registry
	logger *zap.Logger
}

// NewReporter wires a reporter over the store and table registry.
func NewReporter(st store.Store, tables *config.Registry, logger *zap.Logger) *Reporter {
	return &Reporter{store: st, tables: tables, logger: logger.Named("report")}
}

// Scorecard computes the quality scorecard for one table at one stage.
// Completeness is measured over required (non-nullable) columns only;
// consistency comes from the latest validation run.
func (r *Reporter) Scorecard(ctx context.Context, tableID string, stage model.StageKind) (*model.QualityScorecard, error) {
	cfg, err := r.tables.Resolve(tableID)
	if err != nil {
		return nil, err
	}

	run, err := r.store.LatestStageRun(ctx, tableID, stage)
	if err != nil {
		return nil, fmt.Errorf("no %s run recorded for table %s: %w", stage, tableID, err)
	}
	if run.State != model.RunCompleted {
		return nil, fmt.Errorf("latest %s run for table %s is %s, scorecards require a completed run",
			stage, tableID, run.State)
	}

	card := &model.QualityScorecard{
		TableID:    tableID,
		Stage:      stage,
		Rejections: make(map[model.RejectionCategory]int64),
	}

	required := requiredColumns(cfg, stage)
	var requiredCells, filledCells int64

	const scanChunk = int64(1000)
	for offset := int64(0); ; offset += scanChunk {
		rows, err := r.store.LoadChunk(ctx, tableID, stage, offset, scanChunk)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			break
		}
		for _, row := range rows {
			card.TotalRows++
			if row.Dirty {
				card.DirtyRows++
			}
			for _, column := range required {
				requiredCells++
				if strings.TrimSpace(valueFor(row, stage, column)) != "" {
					filledCells++
				}
			}
		}
		if int64(len(rows)) < scanChunk {
			break
		}
	}

	if requiredCells > 0 {
		card.Completeness = float64(filledCells) / float64(requiredCells)
	}

	// Consistency and rejection tallies come from validation, whichever
	// stage the scorecard is cut at.
	if vRun, err := r.store.LatestStageRun(ctx, tableID, model.StageValidate); err == nil && vRun.State == model.RunCompleted {
		if vRun.RowsIn > 0 {
			card.Consistency = float64(vRun.RowsAccepted) / float64(vRun.RowsIn)
		}
		for category, n := range vRun.RejectionCounts {
			card.Rejections[category] = n
		}
	}

	return card, nil
}

// requiredColumns returns the column names completeness is measured
// over, in the namespace the stage's snapshots use: source names before
// cleaning, target names after.
func requiredColumns(cfg *config.TableConfiguration, stage model.StageKind) []string {
	var out []string
	for _, col := range cfg.Columns {
		if col.Nullable {
			continue
		}
		if stage == model.StageImport || stage == model.StageProfile {
			out = append(out, col.Source)
		} else {
			out = append(out, col.Target)
		}
	}
	return out
}

func valueFor(row *model.Row, stage model.StageKind, column string) string {
	if stage == model.StageImport || stage == model.StageProfile {
		return row.Raw[column]
	}
	return row.Values[column]
}

// ExportRejections writes the table's rejected rows as a JSON array,
// full cleaned snapshot included, for operator review.
func (r *Reporter) ExportRejections(ctx context.Context, tableID string, w io.Writer) (int, error) {
	if _, err := r.tables.Resolve(tableID); err != nil {
		return 0, err
	}

	rejected, err := r.store.Rejections(ctx, tableID)
	if err != nil {
		return 0, err
	}
	if rejected == nil {
		rejected = []model.RejectedRow{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rejected); err != nil {
		return 0, fmt.Errorf("failed to encode rejections for %s: %w", tableID, err)
	}

	r.logger.Info("Exported rejected rows",
		zap.String("table", tableID),
		zap.Int("count", len(rejected)))
	return len(rejected), nil
}

// Profiles returns the column profiles from the latest completed
// profiling run.
func (r *Reporter) Profiles(ctx context.Context, tableID string) ([]model.ColumnProfile, error) {
	run, err := r.store.LatestStageRun(ctx, tableID, model.StageProfile)
	if err != nil {
		return nil, fmt.Errorf("no profile run recorded for table %s: %w", tableID, err)
	}
	if run.State != model.RunCompleted {
		return nil, fmt.Errorf("latest profile run for table %s is %s", tableID, run.State)
	}
	return run.Profiles, nil
}
