package main

import (
	"github.com/spf13/cobra"

	"github.com/railyard/railyard/internal/backup"
	"github.com/railyard/railyard/internal/config"
)

const defaultBackupRetention = 10

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Create a timestamped backup of the state store",
	RunE: func(cmd *cobra.Command, args []string) error {
		keep, _ := cmd.Flags().GetInt("keep")
		if !cmd.Flags().Changed("keep") {
			if n := config.GetInt("backup.retention"); n > 0 {
				keep = n
			}
		}
		mgr, err := backup.NewManager(repoRoot, "state.db", keep)
		if err != nil {
			return emitErr(err)
		}
		path, err := mgr.Create(rootCtx, sysClock.Now())
		return emitErr2(path, err)
	},
}

func init() {
	backupCmd.Flags().Int("keep", defaultBackupRetention, "number of backups to retain")
}
