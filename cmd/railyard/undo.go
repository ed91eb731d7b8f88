package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/railyard/railyard/internal/checkpoint"
	"github.com/railyard/railyard/internal/hookrunner"
	"github.com/railyard/railyard/internal/types"
)

func openUndoLog() *checkpoint.UndoLog {
	return checkpoint.NewUndoLog(filepath.Join(repoRoot, ".railyard", "undo.log"))
}

// applyUndo rolls a session's workspace back to the undo entry's
// pre-merge revision via the VCS adapter, marks the undo log entry
// consumed, and fires the undo hook (spec.md §4.6b: reversing a merge is
// the caller's job once the log reports what to roll back to, mirroring
// how checkpoint Restore hands a revision back rather than touching the
// filesystem itself).
func applyUndo(log *checkpoint.UndoLog, entry *types.UndoEntry) error {
	reg, closeReg, err := openRegistry(rootCtx)
	if err != nil {
		return err
	}
	defer closeReg()

	sess, err := reg.Get(rootCtx, entry.SessionName)
	if err != nil {
		return err
	}

	if err := openVCS().Rebase(rootCtx, sess.WorkspacePath, entry.PreMergeCommitID); err != nil {
		return err
	}
	if err := log.MarkUndone(rootCtx, entry.SessionName); err != nil {
		return err
	}

	openHooks().Run(hookrunner.EventUndo, hookrunner.Payload{
		Event: hookrunner.EventUndo, Session: entry.SessionName, CommitID: entry.CommitID,
	})
	return nil
}

var undoCmd = &cobra.Command{
	Use:   "undo",
	Short: "Reverse the most recent reversible merge",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := openUndoLog()
		entry, err := log.Undo(rootCtx)
		if err != nil {
			return emitErr(err)
		}
		if err := applyUndo(log, entry); err != nil {
			return emitErr(err)
		}
		return emitErr2(entry, nil)
	},
}

var revertCmd = &cobra.Command{
	Use:   "revert <session>",
	Short: "Reverse the most recent reversible merge for a specific session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log := openUndoLog()
		entry, err := log.RevertSession(rootCtx, args[0])
		if err != nil {
			return emitErr(err)
		}
		if err := applyUndo(log, entry); err != nil {
			return emitErr(err)
		}
		return emitErr2(entry, nil)
	},
}
