package main

import (
	"github.com/spf13/cobra"

	"github.com/railyard/railyard/internal/checkpoint"
	"github.com/railyard/railyard/internal/hookrunner"
)

var checkpointCmd = &cobra.Command{
	Use:   "checkpoints",
	Short: "List checkpoints left pending or needing restore by a crash",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(rootCtx)
		if err != nil {
			return emitErr(err)
		}
		defer s.Close()

		crashed, err := checkpoint.FindCrashed(rootCtx, s)
		return emitErr2(crashed, err)
	},
}

var recoverCmd = &cobra.Command{
	Use:   "recover <checkpoint-id>",
	Short: "Restore the state store to a checkpoint's pre-operation revision",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(rootCtx)
		if err != nil {
			return emitErr(err)
		}
		defer s.Close()

		result, err := checkpoint.Restore(rootCtx, s, args[0])
		if err == nil {
			openHooks().Run(hookrunner.EventCheckpoint, hookrunner.Payload{
				Event: hookrunner.EventCheckpoint, Session: result.SessionName,
				Extra: map[string]any{"checkpoint_id": args[0]},
			})
		}
		return emitErr2(result, err)
	},
}
