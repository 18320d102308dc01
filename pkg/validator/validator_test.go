// pkg/validator/validator_test.go
package validator

import (
	"testing"

	"github.com/starkjeffrey/naga-migration/pkg/config"
	"github.com/starkjeffrey/naga-migration/pkg/model"
)

func testTable() *config.TableConfiguration {
	return &config.TableConfiguration{
		TableID:    "people",
		SourceFile: "people.csv",
		Columns: []config.ColumnMapping{
			{Source: "ID", Target: "person_id", Type: config.TypeText, IdentityKey: true},
			{Source: "Name", Target: "name", Type: config.TypeText},
			{Source: "Age", Target: "age", Type: config.TypeInteger, Nullable: true},
		},
	}
}

func row(ordinal int64, values map[string]string) *model.Row {
	return &model.Row{Ordinal: ordinal, LegacyKey: values["person_id"], Values: values}
}

func TestEngine_AcceptsValidRow(t *testing.T) {
	e := ForTable(testTable())

	v := e.Validate(row(0, map[string]string{"person_id": "S-1", "name": "Dara", "age": "21"}))
	if !v.Accepted {
		t.Fatalf("expected acceptance, got %+v", v.Rejection)
	}
}

func TestEngine_MissingRequiredColumn(t *testing.T) {
	e := ForTable(testTable())

	v := e.Validate(row(0, map[string]string{"person_id": "S-1", "name": "  "}))
	if v.Accepted {
		t.Fatal("expected rejection for blank required column")
	}
	if v.Rejection.Category != model.RejectionMissingData {
		t.Errorf("category = %s, want %s", v.Rejection.Category, model.RejectionMissingData)
	}
}

func TestEngine_DuplicateIdentityKey(t *testing.T) {
	e := ForTable(testTable())

	first := e.Validate(row(0, map[string]string{"person_id": "S-1", "name": "Dara"}))
	if !first.Accepted {
		t.Fatalf("first row rejected: %+v", first.Rejection)
	}

	dup := e.Validate(row(1, map[string]string{"person_id": "S-1", "name": "Sok"}))
	if dup.Accepted {
		t.Fatal("expected rejection for duplicate identity key")
	}
	if dup.Rejection.Category != model.RejectionDuplicateConstraint {
		t.Errorf("category = %s, want %s", dup.Rejection.Category, model.RejectionDuplicateConstraint)
	}
}

// A row rejected for another reason must not register its key: a later
// valid row with the same key is the one that survives.
func TestEngine_RejectedRowDoesNotShadowKey(t *testing.T) {
	e := ForTable(testTable())

	bad := e.Validate(row(0, map[string]string{"person_id": "S-1", "name": ""}))
	if bad.Accepted {
		t.Fatal("expected rejection for blank name")
	}

	good := e.Validate(row(1, map[string]string{"person_id": "S-1", "name": "Dara"}))
	if !good.Accepted {
		t.Fatalf("valid row shadowed by an earlier rejected one: %+v", good.Rejection)
	}
}

func TestEngine_TypeRule(t *testing.T) {
	e := ForTable(testTable())

	v := e.Validate(row(0, map[string]string{"person_id": "S-1", "name": "Dara", "age": "twenty"}))
	if v.Accepted {
		t.Fatal("expected rejection for malformed integer")
	}
	if v.Rejection.Category != model.RejectionValidationError {
		t.Errorf("category = %s, want %s", v.Rejection.Category, model.RejectionValidationError)
	}

	// Blank nullable values pass the type rule.
	v = e.Validate(row(1, map[string]string{"person_id": "S-2", "name": "Sok", "age": ""}))
	if !v.Accepted {
		t.Fatalf("blank nullable value rejected: %+v", v.Rejection)
	}
}

// Rules run in configured order and the first failure wins, so the
// recorded category is deterministic across re-runs.
func TestEngine_FirstFailingRuleWins(t *testing.T) {
	e := ForTable(testTable())

	if v := e.Validate(row(0, map[string]string{"person_id": "S-1", "name": "Dara"})); !v.Accepted {
		t.Fatalf("setup row rejected: %+v", v.Rejection)
	}

	// Duplicate key AND blank name: the identity rules precede the
	// per-column rules, so the duplicate is what gets recorded.
	v := e.Validate(row(1, map[string]string{"person_id": "S-1", "name": ""}))
	if v.Accepted {
		t.Fatal("expected rejection")
	}
	if v.Rejection.Category != model.RejectionDuplicateConstraint {
		t.Errorf("category = %s, want %s (first failing rule)", v.Rejection.Category, model.RejectionDuplicateConstraint)
	}
}

// Seed replays committed accepted rows into uniqueness state, the
// resume path after a failed run.
func TestEngine_SeedRestoresUniquenessState(t *testing.T) {
	e := ForTable(testTable())

	e.Seed(row(0, map[string]string{"person_id": "S-1", "name": "Dara"}))

	v := e.Validate(row(1, map[string]string{"person_id": "S-1", "name": "Sok"}))
	if v.Accepted {
		t.Fatal("expected duplicate rejection after seeding")
	}
	if v.Rejection.Category != model.RejectionDuplicateConstraint {
		t.Errorf("category = %s, want %s", v.Rejection.Category, model.RejectionDuplicateConstraint)
	}
}

func TestOneOf_BlankPasses(t *testing.T) {
	rule := OneOf("grade", "A", "B", "C", "D", "F")

	if reason := rule.Check(row(0, map[string]string{"grade": "B"})); reason != "" {
		t.Errorf("allowed value rejected: %s", reason)
	}
	if reason := rule.Check(row(1, map[string]string{"grade": ""})); reason != "" {
		t.Errorf("blank value rejected: %s", reason)
	}
	if reason := rule.Check(row(2, map[string]string{"grade": "E"})); reason == "" {
		t.Error("expected rejection for value outside the set")
	}
}

func TestMaxLength_CountsRunes(t *testing.T) {
	rule := MaxLength("name", 3)

	if reason := rule.Check(row(0, map[string]string{"name": "កខគ"})); reason != "" {
		t.Errorf("three-rune value rejected: %s", reason)
	}
	if reason := rule.Check(row(1, map[string]string{"name": "កខគឃ"})); reason == "" {
		t.Error("expected rejection for four-rune value")
	}
}
