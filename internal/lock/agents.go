package lock

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/railyard/railyard/internal/railyarderr"
	"github.com/railyard/railyard/internal/store"
	"github.com/railyard/railyard/internal/types"
)

// Agents is the active-worker registry (spec.md §3 "Agent"): idempotent
// register, heartbeat, and liveness-windowed GetActive.
type Agents struct {
	store *store.Store
}

// NewAgents constructs an Agents registry backed by s.
func NewAgents(s *store.Store) *Agents {
	return &Agents{store: s}
}

// Register idempotently registers agentID, updating last_seen on repeat
// calls (spec.md §3: "register is idempotent (re-register updates
// last_seen)").
func (a *Agents) Register(ctx context.Context, agentID string, capabilities []string) error {
	now := time.Now().UTC()
	_, err := a.store.UnderlyingDB().ExecContext(ctx, `
		INSERT INTO agents(agent_id, registered_at, last_seen, capabilities) VALUES (?, ?, ?, ?)
		ON CONFLICT(agent_id) DO UPDATE SET last_seen = excluded.last_seen`,
		agentID, now, now, strings.Join(capabilities, ","))
	return store.Classify(err)
}

// Heartbeat updates agentID's last_seen to now, optionally recording its
// current session/command.
func (a *Agents) Heartbeat(ctx context.Context, agentID, currentSession, currentCommand string) error {
	res, err := a.store.UnderlyingDB().ExecContext(ctx, `
		UPDATE agents SET last_seen = ?, current_session = ?, current_command = ?, actions_count = actions_count + 1
		WHERE agent_id = ?`, time.Now().UTC(), currentSession, currentCommand, agentID)
	if err != nil {
		return store.Classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return railyarderr.NotFound(railyarderr.CodeAgentNotFound, "agent not registered").
			WithDetails(map[string]any{"agent_id": agentID})
	}
	return nil
}

// GetActive returns every agent whose last_seen is within timeout of now
// (spec.md §3: "an agent is considered alive iff now − last_seen < timeout").
func (a *Agents) GetActive(ctx context.Context, timeout time.Duration) ([]types.Agent, error) {
	cutoff := time.Now().UTC().Add(-timeout)
	rows, err := a.store.UnderlyingDB().QueryContext(ctx, `
		SELECT agent_id, registered_at, last_seen, current_session, current_command, actions_count, capabilities
		FROM agents WHERE last_seen > ? ORDER BY agent_id ASC`, cutoff)
	if err != nil {
		return nil, store.Classify(err)
	}
	defer rows.Close()

	var out []types.Agent
	for rows.Next() {
		var (
			ag           types.Agent
			capabilities string
		)
		if err := rows.Scan(&ag.AgentID, &ag.RegisteredAt, &ag.LastSeen, &ag.CurrentSession, &ag.CurrentCommand,
			&ag.ActionsCount, &capabilities); err != nil {
			return nil, store.Classify(err)
		}
		if capabilities != "" {
			ag.Capabilities = strings.Split(capabilities, ",")
		}
		out = append(out, ag)
	}
	return out, rows.Err()
}

// Get returns a single agent record.
func (a *Agents) Get(ctx context.Context, agentID string) (*types.Agent, error) {
	var (
		ag           types.Agent
		capabilities string
	)
	row := a.store.UnderlyingDB().QueryRowContext(ctx, `
		SELECT agent_id, registered_at, last_seen, current_session, current_command, actions_count, capabilities
		FROM agents WHERE agent_id = ?`, agentID)
	err := row.Scan(&ag.AgentID, &ag.RegisteredAt, &ag.LastSeen, &ag.CurrentSession, &ag.CurrentCommand,
		&ag.ActionsCount, &capabilities)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, railyarderr.NotFound(railyarderr.CodeAgentNotFound, "agent not registered").
			WithDetails(map[string]any{"agent_id": agentID})
	}
	if err != nil {
		return nil, store.Classify(err)
	}
	if capabilities != "" {
		ag.Capabilities = strings.Split(capabilities, ",")
	}
	return &ag, nil
}
