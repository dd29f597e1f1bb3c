package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"

	"quorum/internal/agents"
	"quorum/pkg/errors"
)

// AgentStore persists agent snapshots and task results. It implements
// agents.Store; failures here are tolerated by the registry, which treats the
// local index as authoritative.
type AgentStore struct {
	db *sqlx.DB
}

// NewAgentStore creates a store over the given database.
func NewAgentStore(db *sqlx.DB) *AgentStore {
	return &AgentStore{db: db}
}

type agentRow struct {
	AgentID       string    `db:"agent_id"`
	AgentType     string    `db:"agent_type"`
	Status        string    `db:"status"`
	CurrentTasks  int       `db:"current_tasks"`
	SuccessRate   float64   `db:"success_rate"`
	Capabilities  []byte    `db:"capabilities"`
	CreatedAt     time.Time `db:"created_at"`
	LastHeartbeat time.Time `db:"last_heartbeat"`
}

// SaveAgent upserts the full record projection.
func (s *AgentStore) SaveAgent(ctx context.Context, snap agents.Snapshot) error {
	capabilities, err := json.Marshal(snap.Capabilities)
	if err != nil {
		return errors.Wrap(err, "marshal capabilities")
	}

	row := agentRow{
		AgentID:       snap.AgentID,
		AgentType:     string(snap.AgentType),
		Status:        string(snap.Status),
		CurrentTasks:  snap.CurrentTasks,
		SuccessRate:   snap.Metrics.SuccessRate(),
		Capabilities:  capabilities,
		CreatedAt:     snap.CreatedAt,
		LastHeartbeat: snap.LastHeartbeat,
	}

	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO agent_records (
			agent_id, agent_type, status, current_tasks, success_rate,
			capabilities, created_at, last_heartbeat
		) VALUES (
			:agent_id, :agent_type, :status, :current_tasks, :success_rate,
			:capabilities, :created_at, :last_heartbeat
		)
		ON CONFLICT (agent_id) DO UPDATE SET
			status = EXCLUDED.status,
			current_tasks = EXCLUDED.current_tasks,
			success_rate = EXCLUDED.success_rate,
			capabilities = EXCLUDED.capabilities,
			last_heartbeat = EXCLUDED.last_heartbeat
	`, row)
	return errors.Wrap(err, "save agent record")
}

// DeleteAgent removes the durable record.
func (s *AgentStore) DeleteAgent(ctx context.Context, agentID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM agent_records WHERE agent_id = $1`, agentID)
	return errors.Wrap(err, "delete agent record")
}

// SaveTaskResult appends one dispatch outcome to the audit log.
func (s *AgentStore) SaveTaskResult(ctx context.Context, result *agents.TaskResult) error {
	payload, err := json.Marshal(result.Result)
	if err != nil {
		return errors.Wrap(err, "marshal task result")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO task_results (
			task_id, agent_id, agent_type, status, result, error, duration_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		result.TaskID,
		result.AgentID,
		string(result.AgentType),
		string(result.Status),
		payload,
		result.Error,
		result.Duration.Milliseconds(),
		result.Timestamp,
	)
	return errors.Wrap(err, "save task result")
}
