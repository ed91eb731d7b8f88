package main

import (
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/railyard/railyard/internal/checkpoint"
	"github.com/railyard/railyard/internal/hookrunner"
)

var mergeCmd = &cobra.Command{
	Use:   "merge <id> <agent-id>",
	Short: "Run the merge step for a ready-to-merge queue entry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, convErr := strconv.ParseInt(args[0], 10, 64)
		if convErr != nil {
			return emitErr(convErr)
		}
		agentID := args[1]

		q, closeFn, err := openQueue()
		if err != nil {
			return emitErr(err)
		}
		defer closeFn()

		entry, err := q.Get(rootCtx, id)
		if err != nil {
			return emitErr(err)
		}

		vcs := openVCS()
		undo := checkpoint.NewUndoLog(filepath.Join(repoRoot, ".railyard", "undo.log"))
		hooks := openHooks()

		// The merge step is the sole gate on merge-to-trunk (spec.md §2, §5):
		// hold the global build lock for its whole duration so two concurrent
		// "queue merge" invocations never run the VCS merge simultaneously.
		mergeErr := withBuildLock(defaultBuildLockTimeout, func() error {
			return q.MergeStep(rootCtx, id, vcs, undo, agentID)
		})

		hooks.Run(hookrunner.EventMerge, hookrunner.Payload{
			Event:     hookrunner.EventMerge,
			Session:   entry.Workspace,
			Workspace: entry.Workspace,
			Extra:     map[string]any{"queue_entry_id": id, "agent_id": agentID, "failed": mergeErr != nil},
		})
		if mergeErr != nil {
			hooks.Run(hookrunner.EventQueueEntryFail, hookrunner.Payload{
				Event:     hookrunner.EventQueueEntryFail,
				Session:   entry.Workspace,
				Workspace: entry.Workspace,
				Extra:     map[string]any{"queue_entry_id": id, "agent_id": agentID},
			})
		}

		return emitErr(mergeErr)
	},
}

var retryCmd = &cobra.Command{
	Use:   "retry <id> <agent-id>",
	Short: "Retry a failed queue entry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, convErr := strconv.ParseInt(args[0], 10, 64)
		if convErr != nil {
			return emitErr(convErr)
		}
		q, closeFn, err := openQueue()
		if err != nil {
			return emitErr(err)
		}
		defer closeFn()

		return emitErr(q.Retry(rootCtx, id, args[1]))
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit <id>",
	Short: "Show a queue entry's transition history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, convErr := strconv.ParseInt(args[0], 10, 64)
		if convErr != nil {
			return emitErr(convErr)
		}
		q, closeFn, err := openQueue()
		if err != nil {
			return emitErr(err)
		}
		defer closeFn()

		trail, err := q.AuditTrail(rootCtx, id)
		return emitErr2(trail, err)
	},
}
