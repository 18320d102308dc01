// pkg/model/row.go
package model

// RejectionCategory names the reason a row failed validation.
type RejectionCategory string

const (
	RejectionMissingData         RejectionCategory = "missing_data"
	RejectionDuplicateConstraint RejectionCategory = "duplicate_constraint"
	RejectionValidationError     RejectionCategory = "validation_error"
)

// Rejection records why a row was excluded from the accepted set.
// Rejected rows are kept with their full cleaned snapshot; they are
// never removed from the audit trail.
type Rejection struct {
	Category RejectionCategory `json:"category"`
	Rule     string            `json:"rule"`
	Reason   string            `json:"reason"`
}

// Row is one logical record as it moves through the pipeline. The store
// keeps one immutable snapshot of a row per stage; Ordinal is assigned
// once at Import and never reassigned, so any stage's output for a given
// row can be reconstructed exactly.
type Row struct {
	// Ordinal is the stable row number assigned at Import, starting at 0.
	Ordinal int64

	// LegacyKey is the original system's per-row identifier (IPK),
	// carried through every stage unchanged.
	LegacyKey string

	// Raw holds the verbatim source text keyed by source column name.
	// Populated at Import and never modified afterwards.
	Raw map[string]string

	// Values holds the evolving cleaned/transformed values keyed by
	// target column name. Nil until the Clean stage.
	Values map[string]string

	// Originals preserves pre-transformation values for columns whose
	// TransformationRule sets PreserveOriginal.
	Originals map[string]string

	// Dirty is set whenever a cleaning rule or transformer could not
	// fully resolve a value and fell back to the original.
	Dirty bool

	// Rejection is non-nil once the Validation stage rejects the row.
	Rejection *Rejection
}

// Clone returns a deep copy so a later stage can build its own snapshot
// without mutating the previous stage's output.
func (r *Row) Clone() *Row {
	cp := &Row{
		Ordinal:   r.Ordinal,
		LegacyKey: r.LegacyKey,
		Dirty:     r.Dirty,
	}
	if r.Raw != nil {
		cp.Raw = make(map[string]string, len(r.Raw))
		for k, v := range r.Raw {
			cp.Raw[k] = v
		}
	}
	if r.Values != nil {
		cp.Values = make(map[string]string, len(r.Values))
		for k, v := range r.Values {
			cp.Values[k] = v
		}
	}
	if r.Originals != nil {
		cp.Originals = make(map[string]string, len(r.Originals))
		for k, v := range r.Originals {
			cp.Originals[k] = v
		}
	}
	if r.Rejection != nil {
		rej := *r.Rejection
		cp.Rejection = &rej
	}
	return cp
}

// Accepted reports whether the row passed validation (or has not been
// validated yet).
func (r *Row) Accepted() bool {
	return r.Rejection == nil
}

// Verdict is the outcome of validating one row.
type Verdict struct {
	Accepted  bool
	Rejection *Rejection
}

// Accept returns an accepting verdict.
func Accept() Verdict {
	return Verdict{Accepted: true}
}

// Reject returns a rejecting verdict with the given category and reason.
func Reject(category RejectionCategory, rule, reason string) Verdict {
	return Verdict{
		Accepted:  false,
		Rejection: &Rejection{Category: category, Rule: rule, Reason: reason},
	}
}
