package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/railyard/railyard/internal/batch"
	"github.com/railyard/railyard/internal/checkpoint"
	"github.com/railyard/railyard/internal/lock"
	"github.com/railyard/railyard/internal/queue"
	"github.com/railyard/railyard/internal/railyarderr"
	"github.com/railyard/railyard/internal/session"
	"github.com/railyard/railyard/internal/store"
	"github.com/railyard/railyard/internal/types"
)

// batchOpSpec is one operation as written in a batch YAML file (spec.md
// §4.10). Args are positional and interpreted per-command below.
type batchOpSpec struct {
	Command     string   `yaml:"command"`
	Args        []string `yaml:"args"`
	Optional    bool     `yaml:"optional"`
	StopOnError bool     `yaml:"stop_on_error"`
}

// batchFile is the top-level shape of a batch YAML file.
type batchFile struct {
	Atomic bool          `yaml:"atomic"`
	Ops    []batchOpSpec `yaml:"ops"`
}

var batchCmd = &cobra.Command{
	Use:   "batch <file.yaml>",
	Short: "Run an ordered list of operations from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return emitErr(err)
		}
		var bf batchFile
		if err := yaml.Unmarshal(raw, &bf); err != nil {
			return emitErr(railyarderr.Wrap(railyarderr.ClassValidation, "INVALID_BATCH_FILE", "parse batch file", err))
		}

		s, err := openStore(rootCtx)
		if err != nil {
			return emitErr(err)
		}
		defer s.Close()

		// batch is risky (spec.md §4.6a): checkpoint before running, commit
		// only once the whole file (atomic or not) has actually run.
		preRev, _ := openVCS().HeadCommit(rootCtx, repoRoot)
		guard, err := checkpoint.NewGuard(rootCtx, s, "batch", "", preRev)
		if err != nil {
			return emitErr(err)
		}
		defer guard.Release(rootCtx)

		var result batch.Result
		run := func() error {
			r, runErr := runBatchFile(s, bf)
			result = r
			return runErr
		}
		if bf.Atomic {
			err = withBuildLock(defaultBuildLockTimeout, run)
		} else {
			err = run()
		}
		if err != nil {
			return emitErr(err)
		}
		if err := guard.Commit(rootCtx); err != nil {
			return emitErr(err)
		}
		return emitErr2(result, nil)
	},
}

// runBatchFile opens the registry/queue/workspace-lock handles the batch's
// ops dispatch against and runs them (spec.md §4.10), sharing s with the
// caller's checkpoint guard and (when atomic) build lock.
func runBatchFile(s *store.Store, bf batchFile) (batch.Result, error) {
	reg := session.New(s, openVCS(), nil)
	q := queue.New(s)
	locks := lock.NewWorkspaceLocks(s)

	ops := make([]batch.Op, 0, len(bf.Ops))
	for _, spec := range bf.Ops {
		op, buildErr := buildBatchOp(spec, reg, q, locks)
		if buildErr != nil {
			return batch.Result{}, buildErr
		}
		ops = append(ops, op)
	}

	return batch.Run(rootCtx, ops, bf.Atomic), nil
}

// buildBatchOp translates one declarative op into Exec/Rollback closures
// over the already-open registry, queue, and lock handles (spec.md §4.10
// "the batch executor is dispatch-agnostic"; dispatch itself is this
// CLI layer's job).
func buildBatchOp(spec batchOpSpec, reg *session.Registry, q *queue.Queue, locks *lock.WorkspaceLocks) (batch.Op, error) {
	op := batch.Op{Command: spec.Command, Args: spec.Args, Optional: spec.Optional, StopOnError: spec.StopOnError}

	switch spec.Command {
	case "add":
		if len(spec.Args) != 1 {
			return op, railyarderr.Validation("INVALID_BATCH_OP", "add requires exactly one argument: <name>")
		}
		name := spec.Args[0]
		path := filepath.Join(repoRoot, ".railyard", "workspaces", name)
		op.Exec = func(ctx context.Context) error {
			_, err := reg.Create(ctx, name, path)
			return err
		}
		op.Rollback = func(ctx context.Context) error {
			status := types.SessionRemoved
			_, err := reg.Update(ctx, name, session.Patch{Status: &status})
			return err
		}

	case "remove":
		if len(spec.Args) < 1 || len(spec.Args) > 3 {
			return op, railyarderr.Validation("INVALID_BATCH_OP", "remove requires <name> [force] [keep_branch]")
		}
		name := spec.Args[0]
		force := len(spec.Args) > 1 && spec.Args[1] == "true"
		keepBranch := len(spec.Args) > 2 && spec.Args[2] == "true"
		op.Exec = func(ctx context.Context) error {
			return reg.Remove(ctx, name, session.RemoveOptions{Force: force, KeepBranch: keepBranch, ForgetVCS: true})
		}

	case "focus":
		if len(spec.Args) != 1 {
			return op, railyarderr.Validation("INVALID_BATCH_OP", "focus requires exactly one argument: <name>")
		}
		name := spec.Args[0]
		op.Exec = func(ctx context.Context) error {
			status := types.SessionActive
			_, err := reg.Update(ctx, name, session.Patch{Status: &status})
			return err
		}

	case "submit":
		if len(spec.Args) != 3 && len(spec.Args) != 4 {
			return op, railyarderr.Validation("INVALID_BATCH_OP", "submit requires three or four arguments: <workspace> <dedupe-key> <head-sha> [priority]")
		}
		workspace, dedupe, headSHA := spec.Args[0], spec.Args[1], spec.Args[2]
		var priority *int
		if len(spec.Args) == 4 {
			p, convErr := strconv.Atoi(spec.Args[3])
			if convErr != nil {
				return op, railyarderr.Validation("INVALID_BATCH_OP", "submit priority must be an integer")
			}
			priority = &p
		}
		op.Exec = func(ctx context.Context) error {
			_, err := q.Submit(ctx, queue.SubmitRequest{Workspace: workspace, DedupeKey: dedupe, HeadSHA: headSHA, Priority: priority})
			return err
		}

	case "lock":
		if len(spec.Args) != 2 {
			return op, railyarderr.Validation("INVALID_BATCH_OP", "lock requires exactly two arguments: <session> <agent-id>")
		}
		sessionName, agentID := spec.Args[0], spec.Args[1]
		op.Exec = func(ctx context.Context) error {
			return locks.Acquire(ctx, sessionName, agentID, "batch")
		}
		op.Rollback = func(ctx context.Context) error {
			return locks.Release(ctx, sessionName, agentID)
		}

	case "unlock":
		if len(spec.Args) != 2 {
			return op, railyarderr.Validation("INVALID_BATCH_OP", "unlock requires exactly two arguments: <session> <agent-id>")
		}
		sessionName, agentID := spec.Args[0], spec.Args[1]
		op.Exec = func(ctx context.Context) error {
			return locks.Release(ctx, sessionName, agentID)
		}

	default:
		return op, railyarderr.Validation("UNKNOWN_BATCH_COMMAND", fmt.Sprintf("unknown batch command %q", spec.Command))
	}

	return op, nil
}
