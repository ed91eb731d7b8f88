package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/railyard/railyard/internal/snapshot"
)

var exportCmd = &cobra.Command{
	Use:   "export <path>",
	Short: "Export every session to a JSON document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, closeFn, err := openRegistry(rootCtx)
		if err != nil {
			return emitErr(err)
		}
		defer closeFn()

		f, err := os.Create(args[0])
		if err != nil {
			return emitErr(err)
		}
		defer f.Close()

		return emitErr(snapshot.Export(rootCtx, reg, f, sysClock.Now()))
	},
}

var importCmd = &cobra.Command{
	Use:   "import <path>",
	Short: "Import sessions from a JSON document exported by 'export'",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, closeFn, err := openRegistry(rootCtx)
		if err != nil {
			return emitErr(err)
		}
		defer closeFn()

		f, err := os.Open(args[0])
		if err != nil {
			return emitErr(err)
		}
		defer f.Close()

		policy := snapshot.DuplicateReject
		if skip, _ := cmd.Flags().GetBool("skip-duplicates"); skip {
			policy = snapshot.DuplicateSkip
		}
		result, err := snapshot.Import(rootCtx, reg, f, policy, dryRun)
		return emitErr2(result, err)
	},
}

func init() {
	importCmd.Flags().Bool("skip-duplicates", false, "leave existing sessions untouched instead of failing on a name collision")
}
