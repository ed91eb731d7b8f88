package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/railyard/railyard/internal/checkpoint"
	"github.com/railyard/railyard/internal/hookrunner"
	"github.com/railyard/railyard/internal/session"
	"github.com/railyard/railyard/internal/types"
)

func openRegistry(ctx context.Context) (*session.Registry, func(), error) {
	s, err := openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	vcs := openVCS()
	return session.New(s, vcs, nil), func() { s.Close() }, nil
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize railyard's state store in the current repository",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(rootCtx)
		if err != nil {
			return emitErr(err)
		}
		defer s.Close()
		return emitErr(nil)
	},
}

var addCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a new workspace session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, closeFn, err := openRegistry(rootCtx)
		if err != nil {
			return emitErr(err)
		}
		defer closeFn()

		name := args[0]
		path := filepath.Join(repoRoot, ".railyard", "workspaces", name)
		sess, err := reg.Create(rootCtx, name, path)
		if err == nil {
			openHooks().Run(hookrunner.EventSessionCreate, hookrunner.Payload{
				Event: hookrunner.EventSessionCreate, Session: name, Workspace: path,
			})
		}
		return emitErr2(sess, err)
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a workspace session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		s, err := openStore(rootCtx)
		if err != nil {
			return emitErr(err)
		}
		defer s.Close()

		vcs := openVCS()
		reg := session.New(s, vcs, nil)
		sess, err := reg.Get(rootCtx, name)
		if err != nil {
			return emitErr(err)
		}

		force, _ := cmd.Flags().GetBool("force")
		keepBranch, _ := cmd.Flags().GetBool("keep-branch")

		// remove is risky (spec.md §4.6a): checkpoint before the four-phase
		// atomic cleanup, commit it only once cleanup actually succeeds.
		preRev, _ := vcs.HeadCommit(rootCtx, sess.WorkspacePath)
		guard, err := checkpoint.NewGuard(rootCtx, s, "remove", name, preRev)
		if err != nil {
			return emitErr(err)
		}
		defer guard.Release(rootCtx)

		removeErr := reg.Remove(rootCtx, name, session.RemoveOptions{
			Force:      force,
			KeepBranch: keepBranch,
			ForgetVCS:  true,
		})
		if removeErr != nil {
			return emitErr(removeErr)
		}
		if err := guard.Commit(rootCtx); err != nil {
			return emitErr(err)
		}

		openHooks().Run(hookrunner.EventSessionRemove, hookrunner.Payload{
			Event: hookrunner.EventSessionRemove, Session: name,
		})
		return emitErr2(sess, nil)
	},
}

func init() {
	removeCmd.Flags().Bool("force", false, "attempt cleanup even if the workspace directory is already gone")
	removeCmd.Flags().Bool("keep-branch", false, "has no effect: the VCS forget step has no branch option")
}

var focusCmd = &cobra.Command{
	Use:   "focus <name>",
	Short: "Mark a session active",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, closeFn, err := openRegistry(rootCtx)
		if err != nil {
			return emitErr(err)
		}
		defer closeFn()

		sess, err := reg.Update(rootCtx, args[0], session.Patch{Status: statusPtr(types.SessionActive)})
		return emitErr2(sess, err)
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, closeFn, err := openRegistry(rootCtx)
		if err != nil {
			return emitErr(err)
		}
		defer closeFn()

		sessions, err := reg.List(rootCtx)
		return emitErr2(sessions, err)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <name>",
	Short: "Show a single session's status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, closeFn, err := openRegistry(rootCtx)
		if err != nil {
			return emitErr(err)
		}
		defer closeFn()

		sess, err := reg.Get(rootCtx, args[0])
		return emitErr2(sess, err)
	},
}

func statusPtr(s types.SessionStatus) *types.SessionStatus { return &s }

func emitErr(err error) error {
	code := emit(nil, err, dryRun)
	if code != 0 {
		os.Exit(code)
	}
	return nil
}

func emitErr2(result any, err error) error {
	code := emit(result, err, dryRun)
	if code != 0 {
		os.Exit(code)
	}
	return nil
}
