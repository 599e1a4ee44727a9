package console

// ExecutionState is the lifecycle of one query submission.
type ExecutionState int

const (
	Idle ExecutionState = iota
	Executing
	Succeeded
	Failed
)

// String returns the state name.
func (s ExecutionState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Executing:
		return "executing"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}
