// pkg/pipeline/verifier.go
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/starkjeffrey/naga-migration/pkg/model"
	"github.com/starkjeffrey/naga-migration/pkg/store"
)

// IntegrityIssue describes one violated invariant found during
// post-run verification.
type IntegrityIssue struct {
	Stage       model.StageKind
	Description string
}

// VerificationReport is the result of verifying one table's stored
// stage output against the pipeline's conservation invariants.
type VerificationReport struct {
	TableID          string
	VerificationTime time.Time
	Duration         time.Duration
	StageRowCounts   map[model.StageKind]int64
	Issues           []IntegrityIssue
}

// Passed reports whether every invariant held.
func (r *VerificationReport) Passed() bool {
	return len(r.Issues) == 0
}

// Verifier checks completed pipeline output for row conservation: no
// stage may lose or invent rows, and validation must partition its
// input exactly into accepted and rejected.
type Verifier struct {
	store  store.Store
	logger *zap.Logger
}

// NewVerifier creates a verifier over the store.
func NewVerifier(st store.Store, logger *zap.Logger) *Verifier {
	return &Verifier{store: st, logger: logger.Named("verifier")}
}

// Verify checks one table. It only examines stages with a completed
// run; a table mid-migration verifies the stages it has finished.
func (v *Verifier) Verify(ctx context.Context, tableID string) (*VerificationReport, error) {
	start := time.Now()
	report := &VerificationReport{
		TableID:          tableID,
		VerificationTime: start,
		StageRowCounts:   make(map[model.StageKind]int64),
	}

	runs := make(map[model.StageKind]*model.StageRun)
	for _, stage := range model.StageOrder {
		run, err := v.store.LatestStageRun(ctx, tableID, stage)
		if err != nil {
			continue
		}
		if run.State != model.RunCompleted {
			continue
		}
		runs[stage] = run

		n, err := v.store.CountRows(ctx, tableID, stage)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s rows for %s: %w", stage, tableID, err)
		}
		report.StageRowCounts[stage] = n
	}

	// Stored snapshots must match what the run says it wrote. Profile
	// is read-only and excluded.
	for stage, run := range runs {
		if stage == model.StageProfile {
			continue
		}
		if n := report.StageRowCounts[stage]; n != run.RowsOut {
			report.Issues = append(report.Issues, IntegrityIssue{
				Stage: stage,
				Description: fmt.Sprintf("run recorded %d rows out but %d snapshots are stored",
					run.RowsOut, n),
			})
		}
	}

	// Row-conserving stages: every row in is a row out.
	for _, stage := range []model.StageKind{model.StageClean, model.StageTransform} {
		run, ok := runs[stage]
		if !ok {
			continue
		}
		if run.RowsIn != run.RowsOut {
			report.Issues = append(report.Issues, IntegrityIssue{
				Stage:       stage,
				Description: fmt.Sprintf("rows in (%d) != rows out (%d)", run.RowsIn, run.RowsOut),
			})
		}
	}

	// Validation partitions without loss.
	if run, ok := runs[model.StageValidate]; ok {
		if run.RowsIn != run.RowsAccepted+run.RowsRejected {
			report.Issues = append(report.Issues, IntegrityIssue{
				Stage: model.StageValidate,
				Description: fmt.Sprintf("rows in (%d) != accepted (%d) + rejected (%d)",
					run.RowsIn, run.RowsAccepted, run.RowsRejected),
			})
		}

		rejected, err := v.store.Rejections(ctx, tableID)
		if err != nil {
			return nil, fmt.Errorf("failed to load rejections for %s: %w", tableID, err)
		}
		if int64(len(rejected)) != run.RowsRejected {
			report.Issues = append(report.Issues, IntegrityIssue{
				Stage: model.StageValidate,
				Description: fmt.Sprintf("run recorded %d rejections but %d are stored",
					run.RowsRejected, len(rejected)),
			})
		}
	}

	// Consecutive stages must hand over the full row set.
	checkHandover := func(from, to model.StageKind) {
		if _, ok := runs[from]; !ok {
			return
		}
		if _, ok := runs[to]; !ok {
			return
		}
		if report.StageRowCounts[from] != report.StageRowCounts[to] {
			report.Issues = append(report.Issues, IntegrityIssue{
				Stage: to,
				Description: fmt.Sprintf("%s holds %d rows but %s holds %d",
					from, report.StageRowCounts[from], to, report.StageRowCounts[to]),
			})
		}
	}
	checkHandover(model.StageImport, model.StageClean)
	checkHandover(model.StageClean, model.StageValidate)
	checkHandover(model.StageValidate, model.StageTransform)

	report.Duration = time.Since(start)

	if report.Passed() {
		v.logger.Info("Verification passed",
			zap.String("table", tableID),
			zap.Duration("duration", report.Duration))
	} else {
		for _, issue := range report.Issues {
			v.logger.Error("Integrity issue",
				zap.String("table", tableID),
				zap.String("stage", string(issue.Stage)),
				zap.String("issue", issue.Description))
		}
	}
	return report, nil
}
