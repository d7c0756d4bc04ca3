package engine

import "fmt"

// ForbiddenError indicates a role/ownership mismatch for the attempted operation.
type ForbiddenError struct {
	Reason string
}

func (e ForbiddenError) Error() string {
	if e.Reason == "" {
		return "forbidden"
	}
	return e.Reason
}

// InvalidTransitionError indicates the target status is not reachable from
// the project's current status.
type InvalidTransitionError struct {
	Current   string
	Attempted string
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.Current, e.Attempted)
}

// ValidationError indicates a missing or malformed input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// RevisionLimitError indicates the plan's revision allowance is exhausted.
type RevisionLimitError struct {
	Used    int
	Allowed int
}

func (e RevisionLimitError) Error() string {
	return fmt.Sprintf("revision limit exceeded: %d of %d used", e.Used, e.Allowed)
}
