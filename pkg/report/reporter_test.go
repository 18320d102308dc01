// pkg/report/reporter_test.go
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"go.uber.org/zap"

	"github.com/starkjeffrey/naga-migration/pkg/config"
	"github.com/starkjeffrey/naga-migration/pkg/model"
	"github.com/starkjeffrey/naga-migration/pkg/store"
)

type allowAll map[string]bool

func (allowAll) Has(string) bool { return true }

func reportTable() *config.TableConfiguration {
	return &config.TableConfiguration{
		TableID:    "people",
		SourceFile: "people.csv",
		Columns: []config.ColumnMapping{
			{Source: "ID", Target: "person_id", IdentityKey: true},
			{Source: "Name", Target: "name"},
			{Source: "Phone", Target: "phone", Nullable: true},
		},
	}
}

// seedStore populates a store with a completed validation run and its
// row snapshots: three rows, one rejected, one dirty.
func seedStore(t *testing.T, st store.Store) {
	t.Helper()
	ctx := context.Background()

	run := model.NewStageRun("people", model.StageValidate, 100)
	run.Start()
	run.RowsIn = 3
	run.RowsOut = 3
	run.RowsAccepted = 2
	run.RecordRejection(model.RejectionMissingData)

	rows := []*model.Row{
		{Ordinal: 0, LegacyKey: "S-1",
			Values: map[string]string{"person_id": "S-1", "name": "Dara", "phone": "+85512345678"}},
		{Ordinal: 1, LegacyKey: "S-2", Dirty: true,
			Values: map[string]string{"person_id": "S-2", "name": "Sok", "phone": ""}},
		{Ordinal: 2, LegacyKey: "S-3",
			Values: map[string]string{"person_id": "S-3", "name": "", "phone": ""},
			Rejection: &model.Rejection{
				Category: model.RejectionMissingData,
				Rule:     "required_name",
				Reason:   `required column "name" is empty`,
			}},
	}

	run.CommittedChunks = 1
	if err := st.CommitChunk(ctx, run, rows); err != nil {
		t.Fatalf("CommitChunk: %v", err)
	}
	run.Complete()
	if err := st.SaveStageRun(ctx, run); err != nil {
		t.Fatalf("SaveStageRun: %v", err)
	}
}

func newTestReporter(t *testing.T, st store.Store) *Reporter {
	t.Helper()
	tables := config.NewRegistry(allowAll{}, allowAll{})
	if err := tables.Register(reportTable()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return NewReporter(st, tables, zap.NewNop())
}

func TestReporter_Scorecard(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	seedStore(t, st)
	reporter := newTestReporter(t, st)

	card, err := reporter.Scorecard(ctx, "people", model.StageValidate)
	if err != nil {
		t.Fatalf("Scorecard: %v", err)
	}

	if card.TotalRows != 3 {
		t.Errorf("total rows = %d, want 3", card.TotalRows)
	}
	if card.DirtyRows != 1 {
		t.Errorf("dirty rows = %d, want 1", card.DirtyRows)
	}
	// Required columns are person_id and name: 6 cells, 5 filled.
	if want := 5.0 / 6.0; card.Completeness != want {
		t.Errorf("completeness = %v, want %v", card.Completeness, want)
	}
	if want := 2.0 / 3.0; card.Consistency != want {
		t.Errorf("consistency = %v, want %v", card.Consistency, want)
	}
	if card.Rejections[model.RejectionMissingData] != 1 {
		t.Errorf("missing-data rejections = %d, want 1", card.Rejections[model.RejectionMissingData])
	}
}

func TestReporter_ScorecardRequiresCompletedRun(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	reporter := newTestReporter(t, st)

	if _, err := reporter.Scorecard(ctx, "people", model.StageValidate); err == nil {
		t.Fatal("expected error with no recorded run")
	}

	run := model.NewStageRun("people", model.StageValidate, 100)
	run.Start()
	run.Fail(nil)
	if err := st.SaveStageRun(ctx, run); err != nil {
		t.Fatalf("SaveStageRun: %v", err)
	}
	if _, err := reporter.Scorecard(ctx, "people", model.StageValidate); err == nil {
		t.Fatal("expected error for a failed run")
	}
}

func TestReporter_ExportRejections(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	seedStore(t, st)
	reporter := newTestReporter(t, st)

	var buf bytes.Buffer
	n, err := reporter.ExportRejections(ctx, "people", &buf)
	if err != nil {
		t.Fatalf("ExportRejections: %v", err)
	}
	if n != 1 {
		t.Fatalf("exported %d rejections, want 1", n)
	}

	var exported []model.RejectedRow
	if err := json.Unmarshal(buf.Bytes(), &exported); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}
	rej := exported[0]
	if rej.LegacyKey != "S-3" || rej.Rule != "required_name" {
		t.Errorf("unexpected rejection record: %+v", rej)
	}
	if rej.Snapshot["person_id"] != "S-3" {
		t.Error("export must include the full row snapshot")
	}
}

func TestReporter_ExportEmptyIsValidJSON(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	reporter := newTestReporter(t, st)

	var buf bytes.Buffer
	n, err := reporter.ExportRejections(ctx, "people", &buf)
	if err != nil {
		t.Fatalf("ExportRejections: %v", err)
	}
	if n != 0 {
		t.Errorf("exported %d rejections, want 0", n)
	}

	var exported []model.RejectedRow
	if err := json.Unmarshal(buf.Bytes(), &exported); err != nil {
		t.Fatalf("empty export is not valid JSON: %v", err)
	}
}
