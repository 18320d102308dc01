// pkg/pipeline/profile.go
package pipeline

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/starkjeffrey/naga-migration/pkg/config"
	"github.com/starkjeffrey/naga-migration/pkg/model"
	"github.com/starkjeffrey/naga-migration/pkg/transform"
)

// columnStats accumulates one column's profile across chunks.
type columnStats struct {
	total  int64
	blank  int64
	maxLen int
	legacy int64
}

// runProfile analyzes the raw snapshots column by column: blank share,
// maximum length, and how much of the column looks legacy-encoded. The
// stage is read-only and emits no row snapshots.
//
// The accumulated counts cannot be reconstructed from a partially
// committed profile, so a resumed run restarts from the beginning; the
// stage is a single pass over data already in the store, which keeps
// the restart cheap.
func (r *Runner) runProfile(ctx context.Context, cfg *config.TableConfiguration, run *model.StageRun, resumed bool, logger *zap.Logger) error {
	if resumed {
		run.CommittedChunks = 0
		run.RowsIn = 0
		run.RowsOut = 0
		run.Profiles = nil
	}

	stats := make(map[string]*columnStats, len(cfg.Columns))
	for _, col := range cfg.Columns {
		stats[col.Source] = &columnStats{}
	}

	limit := int64(run.ChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		offset := int64(run.CommittedChunks) * limit
		rows, err := r.store.LoadChunk(ctx, run.TableID, model.StageImport, offset, limit)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			break
		}

		for _, row := range rows {
			for column, cs := range stats {
				value := row.Raw[column]
				cs.total++
				if strings.TrimSpace(value) == "" {
					cs.blank++
					continue
				}
				if n := len([]rune(value)); n > cs.maxLen {
					cs.maxLen = n
				}
				if transform.ContainsLegacyScript(value) {
					cs.legacy++
				}
			}
		}

		checkpoint := snapshotCounters(run)
		run.RowsIn += int64(len(rows))
		run.Profiles = buildProfiles(stats)
		run.CommittedChunks++
		if err := r.store.CommitChunk(ctx, run, nil); err != nil {
			restoreCounters(run, checkpoint)
			return r.chunkFailure(run, err)
		}

		if int64(len(rows)) < limit {
			break
		}
	}

	for _, p := range run.Profiles {
		if p.LegacyRatio > 0 {
			logger.Info("Column contains legacy-encoded script",
				zap.String("column", p.Column),
				zap.Float64("legacy_ratio", p.LegacyRatio))
		}
	}
	return nil
}

func buildProfiles(stats map[string]*columnStats) []model.ColumnProfile {
	profiles := make([]model.ColumnProfile, 0, len(stats))
	for column, cs := range stats {
		p := model.ColumnProfile{
			Column:      column,
			TotalRows:   cs.total,
			NullOrBlank: cs.blank,
			MaxLength:   cs.maxLen,
		}
		if cs.total > 0 {
			p.LegacyRatio = float64(cs.legacy) / float64(cs.total)
		}
		profiles = append(profiles, p)
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Column < profiles[j].Column })
	return profiles
}
