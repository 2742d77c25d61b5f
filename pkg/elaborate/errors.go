package elaborate

import "fmt"

// UnresolvedSubcircuitError is returned when an instance references a
// master circuit name that was never parsed.
type UnresolvedSubcircuitError struct {
	Instance, Master string
}

func (e *UnresolvedSubcircuitError) Error() string {
	return fmt.Sprintf("could not find subcircuit: %s(%s)", e.Instance, e.Master)
}

// PortCountMismatchError is returned when an instance's actual-parameter
// net list length differs from its master's declared port count.
type PortCountMismatchError struct {
	Instance       string
	Got, Want      int
}

func (e *PortCountMismatchError) Error() string {
	return fmt.Sprintf("port mismatch in %s %d:%d", e.Instance, e.Got, e.Want)
}

// ErrParallelInstanceMutation is returned by GlobalNet when the caller
// tries to resolve a net through a parallel instance's own mapping. Per
// spec.md §9's Open Question resolution, only the canonical twin's mapping
// is the source of truth during propagation; mutating through a parallel
// instance is illegal.
var ErrParallelInstanceMutation = fmt.Errorf("cannot mutate a net through a parallel instance; use the canonical twin")
