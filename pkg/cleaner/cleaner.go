// pkg/cleaner/cleaner.go
package cleaner

import (
	"fmt"
	"sort"
)

// Outcome is the result of applying one cleaning rule to one value.
type Outcome struct {
	Value    string
	Resolved bool
}

// Cleaned returns a resolved outcome carrying the cleaned value.
func Cleaned(value string) Outcome {
	return Outcome{Value: value, Resolved: true}
}

// Unresolved returns an outcome indicating the rule could not clean the
// value. The original value is retained, never blanked; the caller marks
// the row dirty.
func Unresolved(original string) Outcome {
	return Outcome{Value: original, Resolved: false}
}

// RowContext gives a rule read-only access to the surrounding row, for
// rules that need more than the scalar (e.g. gender normalization using
// a locale hint).
type RowContext struct {
	Column string
	// Raw holds the row's verbatim source values keyed by source column.
	Raw map[string]string
	// Locale is a hint for locale-aware rules ("km" for Khmer sources).
	Locale string
}

// Rule is a named, pure, idempotent function over one scalar value.
// Applying a rule to its own output must return the same output.
type Rule func(value string, ctx RowContext) Outcome

// Registry holds the closed set of cleaning rules known to this build.
// Table configurations reference rules by name and are validated against
// the registry before any run starts.
type Registry struct {
	rules map[string]Rule
}

// NewRegistry creates an empty rule registry.
func NewRegistry() *Registry {
	return &Registry{rules: make(map[string]Rule)}
}

// Register adds a rule under a name. Registering a duplicate name is a
// programming error.
func (r *Registry) Register(name string, rule Rule) {
	if _, exists := r.rules[name]; exists {
		panic(fmt.Sprintf("cleaning rule already registered: %s", name))
	}
	r.rules[name] = rule
}

// Has reports whether a rule name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.rules[name]
	return ok
}

// Names returns all registered rule names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.rules))
	for name := range r.rules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Apply runs a single rule by name. Unknown names are a programming
// error here because configurations are validated at load time.
func (r *Registry) Apply(name, value string, ctx RowContext) (Outcome, error) {
	rule, ok := r.rules[name]
	if !ok {
		return Outcome{}, fmt.Errorf("unknown cleaning rule %q", name)
	}
	return rule(value, ctx), nil
}

// ApplySequence runs an ordered rule sequence over a value. If any rule
// returns an unresolved outcome, the sequence stops and the value as of
// the last resolved rule is retained with resolved == false.
func (r *Registry) ApplySequence(names []string, value string, ctx RowContext) (string, bool, error) {
	current := value
	for _, name := range names {
		outcome, err := r.Apply(name, current, ctx)
		if err != nil {
			return value, false, err
		}
		if !outcome.Resolved {
			return outcome.Value, false, nil
		}
		current = outcome.Value
	}
	return current, true, nil
}
