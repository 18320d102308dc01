// pkg/transform/transform.go
package transform

import (
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Context is the immutable metadata passed to a transformer invocation.
type Context struct {
	Table        string
	SourceColumn string
	TargetColumn string
	Ordinal      int64
	RunID        string
	// Meta carries transformer-specific hints, e.g. "skip_reorder" for
	// script data already stored in logical order.
	Meta map[string]string
}

// Transformer rewrites one value into its canonical domain form.
type Transformer interface {
	Name() string

	// CanTransform is the applicability guard: it must return false for
	// values already in canonical form or outside the transformer's
	// domain, so double application is a no-op rather than a corruption.
	CanTransform(value string) bool

	// Transform returns the rewritten value and whether every part of
	// the input was fully resolved. Unresolvable fragments are passed
	// through unchanged with resolved == false; transformers never
	// guess. An error indicates an unexpected internal failure only.
	Transform(value string, ctx Context) (string, bool, error)
}

// Registry is the closed set of transformers known to this build.
type Registry struct {
	transformers map[string]Transformer
}

// NewRegistry creates an empty transformer registry.
func NewRegistry() *Registry {
	return &Registry{transformers: make(map[string]Transformer)}
}

// NewDefaultRegistry returns the registry with every built-in transformer.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewLimonTransformer())
	r.Register(NewEducationCodeTransformer(DefaultCourseCodeMap()))
	r.Register(NewTermCodeTransformer())
	r.Register(NewCategoryCodeTransformer(DefaultCategoryMap()))
	return r
}

// Register adds a transformer. Duplicate names are a programming error.
func (r *Registry) Register(t Transformer) {
	if _, exists := r.transformers[t.Name()]; exists {
		panic(fmt.Sprintf("transformer already registered: %s", t.Name()))
	}
	r.transformers[t.Name()] = t
}

// Has reports whether a transformer name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.transformers[name]
	return ok
}

// Names returns all registered transformer names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.transformers))
	for name := range r.transformers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Result is the outcome of one guarded transformer application.
type Result struct {
	Value string
	// Applied is false when the guard declined the value (already
	// canonical or out of domain); the value passed through unchanged.
	Applied bool
	// Resolved is false when part of the input could not be converted
	// and the original fragment (or whole value) was retained. The
	// owning row must be flagged dirty.
	Resolved bool
}

// ApplyWithFallback runs a transformer by name, degrading to the
// original value on any unexpected failure instead of propagating it.
// The fallback occurrence is logged for audit.
func (r *Registry) ApplyWithFallback(name, value string, ctx Context, logger *zap.Logger) Result {
	t, ok := r.transformers[name]
	if !ok {
		// Configurations are validated at load time; reaching this is a
		// defect, but the row still keeps its original value.
		logger.Error("Unknown transformer",
			zap.String("transformer", name),
			zap.String("table", ctx.Table),
			zap.Int64("ordinal", ctx.Ordinal))
		return Result{Value: value, Resolved: false}
	}

	if !t.CanTransform(value) {
		return Result{Value: value, Applied: false, Resolved: true}
	}

	transformed, resolved, err := t.Transform(value, ctx)
	if err != nil {
		logger.Warn("Transformer failed, falling back to original value",
			zap.String("transformer", name),
			zap.String("table", ctx.Table),
			zap.String("column", ctx.SourceColumn),
			zap.Int64("ordinal", ctx.Ordinal),
			zap.Error(err))
		return Result{Value: value, Applied: true, Resolved: false}
	}

	return Result{Value: transformed, Applied: true, Resolved: resolved}
}
