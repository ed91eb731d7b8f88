package main

import (
	"github.com/spf13/cobra"

	"github.com/railyard/railyard/internal/lock"
)

func openWorkspaceLocks() (*lock.WorkspaceLocks, func(), error) {
	s, err := openStore(rootCtx)
	if err != nil {
		return nil, nil, err
	}
	return lock.NewWorkspaceLocks(s), func() { s.Close() }, nil
}

var lockCmd = &cobra.Command{
	Use:   "lock <session> <agent-id>",
	Short: "Acquire the workspace lock for a session",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		locks, closeFn, err := openWorkspaceLocks()
		if err != nil {
			return emitErr(err)
		}
		defer closeFn()

		reason, _ := cmd.Flags().GetString("reason")
		return emitErr(locks.Acquire(rootCtx, args[0], args[1], reason))
	},
}

func init() {
	lockCmd.Flags().String("reason", "", "why this agent is taking the lock")
}

var unlockCmd = &cobra.Command{
	Use:   "unlock <session> <agent-id>",
	Short: "Release the workspace lock for a session",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		locks, closeFn, err := openWorkspaceLocks()
		if err != nil {
			return emitErr(err)
		}
		defer closeFn()

		return emitErr(locks.Release(rootCtx, args[0], args[1]))
	},
}
