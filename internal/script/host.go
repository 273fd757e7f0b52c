// Package script implements the scripted-callback host boundary: a narrow
// Evaluate(kind, inputs) interface that keeps the transform pipeline free
// of any dependency on the embedded interpreter's type system or error
// semantics. This implementation embeds github.com/yuin/gopher-lua.
package script

import "fmt"

// Kind is the pipeline kind invoking the callback.
type Kind string

const (
	KindTransform Kind = "transform"
	KindGrep      Kind = "grep"
	KindAggregate Kind = "aggregate"
)

// AggregateResult is the structured return value for KindAggregate:
// the bucket primary key plus a map of secondary-key integer deltas.
type AggregateResult struct {
	PrimaryKey string
	Deltas     map[string]int64
}

// Host is the narrow collaborator interface the pipeline depends on.
// Nothing outside this package references a Lua type.
type Host interface {
	// EvaluateLine runs a transform or grep callback: transform receives
	// the raw line as fields[0], grep receives the pre-split fields.
	// outputs is nil for a drop (transform) or an empty/absent return
	// (grep).
	EvaluateLine(kind Kind, fields []string) (outputs []string, err error)

	// EvaluateAggregate runs an aggregate callback against pre-split
	// fields and returns the bucket key plus deltas.
	EvaluateAggregate(fields []string) (AggregateResult, error)

	// Close releases the underlying interpreter state.
	Close()
}

// ErrDropped means "drop this line", distinct from a real evaluation
// error. Callers typically treat both the same way at the call site (log
// and continue), but keeping them distinguishable aids diagnostics.
var ErrDropped = fmt.Errorf("script: callback returned nil")
