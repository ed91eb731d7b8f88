package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/railyard/railyard/internal/lock"
)

const defaultAgentLiveness = 2 * time.Minute

func openAgents() (*lock.Agents, func(), error) {
	s, err := openStore(rootCtx)
	if err != nil {
		return nil, nil, err
	}
	return lock.NewAgents(s), func() { s.Close() }, nil
}

var agentRegisterCmd = &cobra.Command{
	Use:   "register <agent-id> [capability...]",
	Short: "Register an agent, or refresh its last-seen time if already registered",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		agents, closeFn, err := openAgents()
		if err != nil {
			return emitErr(err)
		}
		defer closeFn()

		return emitErr(agents.Register(rootCtx, args[0], args[1:]))
	},
}

var agentHeartbeatCmd = &cobra.Command{
	Use:   "heartbeat <agent-id>",
	Short: "Refresh an agent's liveness and record its current activity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		agents, closeFn, err := openAgents()
		if err != nil {
			return emitErr(err)
		}
		defer closeFn()

		session, _ := cmd.Flags().GetString("session")
		command, _ := cmd.Flags().GetString("command")
		return emitErr(agents.Heartbeat(rootCtx, args[0], session, command))
	},
}

func init() {
	agentHeartbeatCmd.Flags().String("session", "", "session the agent is currently working in")
	agentHeartbeatCmd.Flags().String("command", "", "command the agent is currently running")
}

var agentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List agents considered alive within the liveness window",
	RunE: func(cmd *cobra.Command, args []string) error {
		agents, closeFn, err := openAgents()
		if err != nil {
			return emitErr(err)
		}
		defer closeFn()

		liveness, _ := cmd.Flags().GetDuration("within")
		if liveness <= 0 {
			liveness = defaultAgentLiveness
		}
		active, err := agents.GetActive(rootCtx, liveness)
		return emitErr2(active, err)
	},
}

func init() {
	agentListCmd.Flags().Duration("within", defaultAgentLiveness, "liveness window")
}

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Manage the active-agent registry",
}

func init() {
	agentCmd.AddCommand(agentRegisterCmd, agentHeartbeatCmd, agentListCmd)
}
