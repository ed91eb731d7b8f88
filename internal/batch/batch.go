// Package batch implements the transactional batch executor (spec.md
// §4.8): an ordered list of operations, each a command + args, optionally
// marked optional. Atomic mode rolls back every prior succeeded operation
// on a non-optional failure; non-atomic mode reports per-op status and
// may stop on the first error. The executor is dispatch-agnostic: it
// knows nothing about CLI subcommands, only the Exec/Rollback closures
// the caller supplies (spec.md §4.10).
package batch

import "context"

// Status is the outcome of a single Op after Run.
type Status string

const (
	StatusPending    Status = "pending"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
	StatusSkipped    Status = "skipped"
	StatusRolledBack Status = "rolled_back"
)

// Op is one batch operation. Exec performs the operation; Rollback, if
// non-nil, undoes it and is invoked (in reverse order) when a later
// non-optional operation fails in atomic mode. Optional marks the
// operation as non-fatal: its failure is reported but never triggers a
// rollback or halts the batch.
type Op struct {
	Command     string
	Args        []string
	Optional    bool
	StopOnError bool // non-atomic mode only: halt remaining ops on this op's failure
	Exec        func(ctx context.Context) error
	Rollback    func(ctx context.Context) error
}

// OpResult is one operation's reported outcome.
type OpResult struct {
	Command string
	Status  Status
	Err     error
}

// Result is the full batch report.
type Result struct {
	Results []OpResult
	Aborted bool // true if atomic mode rolled back, or non-atomic mode stopped early
}

// Run executes ops in order. In atomic mode, a non-optional failure rolls
// back every prior succeeded op (marking them RolledBack) and halts the
// remaining ops (marked Skipped). In non-atomic mode every op runs
// regardless of prior failures, except that an op marked StopOnError
// halts the remaining ops on its own failure.
func Run(ctx context.Context, ops []Op, atomic bool) Result {
	var result Result
	succeeded := make([]int, 0, len(ops))

	for i, op := range ops {
		if ctx.Err() != nil {
			result.Aborted = true
			result.Results = append(result.Results, OpResult{Command: op.Command, Status: StatusSkipped, Err: ctx.Err()})
			continue
		}

		err := op.Exec(ctx)
		if err == nil {
			result.Results = append(result.Results, OpResult{Command: op.Command, Status: StatusSucceeded})
			succeeded = append(succeeded, i)
			continue
		}

		result.Results = append(result.Results, OpResult{Command: op.Command, Status: StatusFailed, Err: err})
		if op.Optional {
			continue
		}

		if atomic {
			rollback(ctx, ops, succeeded, &result)
			result.Aborted = true
			for _, remaining := range ops[i+1:] {
				result.Results = append(result.Results, OpResult{Command: remaining.Command, Status: StatusSkipped})
			}
			return result
		}

		if op.StopOnError {
			result.Aborted = true
			for _, remaining := range ops[i+1:] {
				result.Results = append(result.Results, OpResult{Command: remaining.Command, Status: StatusSkipped})
			}
			return result
		}
	}
	return result
}

// rollback undoes every successfully executed op, most recent first, and
// overwrites their OpResult entries to RolledBack.
func rollback(ctx context.Context, ops []Op, succeeded []int, result *Result) {
	for i := len(succeeded) - 1; i >= 0; i-- {
		idx := succeeded[i]
		op := ops[idx]
		if op.Rollback != nil {
			_ = op.Rollback(ctx) // best-effort: a rollback failure doesn't block further rollbacks
		}
		result.Results[idx].Status = StatusRolledBack
	}
}
