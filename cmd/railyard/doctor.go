package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/railyard/railyard/internal/beadsapi"
	"github.com/railyard/railyard/internal/checkpoint"
	"github.com/railyard/railyard/internal/hints"
	"github.com/railyard/railyard/internal/types"
)

// doctorReport bundles the diagnostic signals doctorCmd surfaces: crash
// evidence from the checkpoint store alongside the usual hints response
// (spec.md §3 "Checkpoint" crash-recovery surfacing, §4.7 hints).
type doctorReport struct {
	Crashed []types.Checkpoint  `json:"crashed_checkpoints"`
	Hints   hints.HintsResponse `json:"hints"`
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Report crash evidence and actionable hints about repository state",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore(rootCtx)
		if err != nil {
			return emitErr(err)
		}
		defer s.Close()

		reg, closeReg, err := openRegistry(rootCtx)
		if err != nil {
			return emitErr(err)
		}
		defer closeReg()

		crashed, err := checkpoint.FindCrashed(rootCtx, s)
		if err != nil {
			return emitErr(err)
		}

		sessions, err := reg.List(rootCtx)
		if err != nil {
			return emitErr(err)
		}
		views := make([]hints.SessionView, 0, len(sessions))
		for _, sess := range sessions {
			views = append(views, hints.SessionView{
				Name:      sess.Name,
				Status:    string(sess.Status),
				UpdatedAt: sess.UpdatedAt,
			})
		}

		response := hints.GenerateResponse(hints.SystemState{
			Sessions:    views,
			Initialized: true,
			RepoPresent: true,
		})

		beads, err := beadsapi.NewStore(filepath.Join(repoRoot, ".beads", "issues.jsonl")).Load()
		if err != nil {
			return emitErr(err)
		}
		var summary hints.BeadsSummary
		for _, b := range beads {
			switch b.Status {
			case types.BeadOpen:
				summary.Open++
			case types.BeadInProgress:
				summary.InProgress++
			case types.BeadClosed:
				summary.Closed++
			}
			if b.IsBlocked() {
				summary.Blocked++
			}
		}
		response.Hints = append(response.Hints, hints.HintsForBeads(repoRoot, summary)...)

		report := doctorReport{Crashed: crashed, Hints: response}
		return emitErr2(report, nil)
	},
}
