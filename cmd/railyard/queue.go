package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/railyard/railyard/internal/hookrunner"
	"github.com/railyard/railyard/internal/queue"
)

func openQueue() (*queue.Queue, func(), error) {
	s, err := openStore(rootCtx)
	if err != nil {
		return nil, nil, err
	}
	return queue.New(s), func() { s.Close() }, nil
}

var submitCmd = &cobra.Command{
	Use:   "submit <workspace> <dedupe-key> <head-sha>",
	Short: "Admit a workspace's current head into the merge queue",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, closeFn, err := openQueue()
		if err != nil {
			return emitErr(err)
		}
		defer closeFn()

		var priority *int
		if cmd.Flags().Changed("priority") {
			p, _ := cmd.Flags().GetInt("priority")
			priority = &p
		}

		entry, err := q.Submit(rootCtx, queue.SubmitRequest{
			Workspace: args[0],
			DedupeKey: args[1],
			HeadSHA:   args[2],
			Priority:  priority,
		})
		if err == nil {
			openHooks().Run(hookrunner.EventSubmit, hookrunner.Payload{
				Event: hookrunner.EventSubmit, Workspace: args[0], CommitID: args[2],
			})
		}
		return emitErr2(entry, err)
	},
}

func init() {
	submitCmd.Flags().Int("priority", 5, "queue priority, lower is more urgent")
}

var claimCmd = &cobra.Command{
	Use:   "claim <agent-id>",
	Short: "Claim the next eligible queue entry for processing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, closeFn, err := openQueue()
		if err != nil {
			return emitErr(err)
		}
		defer closeFn()

		entry, err := q.NextWithLock(rootCtx, args[0], defaultProcessingLockTimeout)
		return emitErr2(entry, err)
	},
}

var yieldCmd = &cobra.Command{
	Use:   "yield <agent-id>",
	Short: "Release this agent's processing-lock claim",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, closeFn, err := openQueue()
		if err != nil {
			return emitErr(err)
		}
		defer closeFn()

		return emitErr(q.ReleaseLock(rootCtx, args[0]))
	},
}

var queueCmd = &cobra.Command{
	Use:   "queue [id]",
	Short: "List queue entries, or show one by id",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, closeFn, err := openQueue()
		if err != nil {
			return emitErr(err)
		}
		defer closeFn()

		if len(args) == 1 {
			id, convErr := strconv.ParseInt(args[0], 10, 64)
			if convErr != nil {
				return emitErr(convErr)
			}
			entry, getErr := q.Get(rootCtx, id)
			return emitErr2(entry, getErr)
		}
		entries, listErr := q.List(rootCtx)
		return emitErr2(entries, listErr)
	},
}
