package agents

import (
	"context"
	"sync"
	"time"

	"quorum/pkg/logger"
)

// DirectoryEntry is the compact projection mirrored into the distributed
// directory for cross-process discovery.
type DirectoryEntry struct {
	AgentType     AgentType   `json:"agent_type"`
	Status        AgentStatus `json:"status"`
	CreatedAt     time.Time   `json:"created_at"`
	LastHeartbeat time.Time   `json:"last_heartbeat"`
}

// Directory is the external ephemeral keyed store used for agent discovery.
// Entries expire on their own; the registry never reads them back.
type Directory interface {
	Put(ctx context.Context, agentID string, entry DirectoryEntry) error
	Delete(ctx context.Context, agentID string) error
}

// Store is the durable persistence for agent records and task results.
type Store interface {
	SaveAgent(ctx context.Context, snap Snapshot) error
	DeleteAgent(ctx context.Context, agentID string) error
	SaveTaskResult(ctx context.Context, result *TaskResult) error
}

// SystemStatus summarizes the registered agent pool.
type SystemStatus struct {
	TotalAgents  int                      `json:"total_agents"`
	ActiveAgents int                      `json:"active_agents"`
	BusyAgents   int                      `json:"busy_agents"`
	ErrorAgents  int                      `json:"error_agents"`
	IdleAgents   int                      `json:"idle_agents"`
	ByType       map[AgentType]TypeStatus `json:"type_statistics"`
	Timestamp    time.Time                `json:"timestamp"`
}

// TypeStatus summarizes one agent type within the pool.
type TypeStatus struct {
	Total  int `json:"total"`
	Active int `json:"active"`
	Busy   int `json:"busy"`
}

// Registry owns the local agent index and mirrors a projection of it into the
// distributed directory and the durable store. The local index is
// authoritative; mirroring is best-effort and never rolled back.
type Registry struct {
	mu     sync.RWMutex
	byID   map[string]*AgentRecord
	byType map[AgentType][]*AgentRecord

	directory Directory
	store     Store
	log       *logger.Logger
}

// NewRegistry constructs an empty registry. Directory and store may be nil,
// in which case mirroring is skipped.
func NewRegistry(directory Directory, store Store) *Registry {
	return &Registry{
		byID:      make(map[string]*AgentRecord),
		byType:    make(map[AgentType][]*AgentRecord),
		directory: directory,
		store:     store,
		log:       logger.Get().With("component", "agent_registry"),
	}
}

// Register adds a record to the local index and mirrors it out.
// Returns false if the agent id is already present; the registry is left
// unchanged in that case. Directory or store failures are logged, not fatal.
func (r *Registry) Register(ctx context.Context, record *AgentRecord) bool {
	r.mu.Lock()
	if _, exists := r.byID[record.ID()]; exists {
		r.mu.Unlock()
		r.log.Warnf("Agent already registered: %s", record.ID())
		return false
	}
	r.byID[record.ID()] = record
	r.byType[record.Type()] = append(r.byType[record.Type()], record)
	r.mu.Unlock()

	r.mirror(ctx, record)

	r.log.Infof("Agent registered: %s (id: %s)", record.Type(), record.ID())
	return true
}

// Unregister removes an agent from the local index, the directory and the
// store. Returns false if the id is unknown.
func (r *Registry) Unregister(ctx context.Context, agentID string) bool {
	r.mu.Lock()
	record, exists := r.byID[agentID]
	if !exists {
		r.mu.Unlock()
		r.log.Warnf("Unknown agent: %s", agentID)
		return false
	}
	delete(r.byID, agentID)
	r.byType[record.Type()] = removeRecord(r.byType[record.Type()], agentID)
	r.mu.Unlock()

	record.SetStatus(StatusOffline)

	if r.directory != nil {
		if err := r.directory.Delete(ctx, agentID); err != nil {
			r.log.Warnf("Directory delete failed for %s: %v", agentID, err)
		}
	}
	if r.store != nil {
		if err := r.store.DeleteAgent(ctx, agentID); err != nil {
			r.log.Warnf("Store delete failed for %s: %v", agentID, err)
		}
	}

	r.log.Infof("Agent unregistered: %s (id: %s)", record.Type(), agentID)
	return true
}

// Get returns the record for an agent id, if present.
func (r *Registry) Get(agentID string) (*AgentRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.byID[agentID]
	return record, ok
}

// ListByType returns all local records of the given type. An empty result is
// not an error.
func (r *Registry) ListByType(agentType AgentType) []*AgentRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	records := r.byType[agentType]
	out := make([]*AgentRecord, len(records))
	copy(out, records)
	return out
}

// List returns every registered record.
func (r *Registry) List() []*AgentRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*AgentRecord, 0, len(r.byID))
	for _, t := range AllAgentTypes() {
		out = append(out, r.byType[t]...)
	}
	return out
}

// Count returns the number of registered agents.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// FindAvailable filters ListByType to idle agents whose capability set covers
// the task type and market.
func (r *Registry) FindAvailable(agentType AgentType, task TaskType, market string) []*AgentRecord {
	records := r.ListByType(agentType)
	available := make([]*AgentRecord, 0, len(records))
	for _, record := range records {
		if record.Status() == StatusIdle && record.CanHandle(task, market) {
			available = append(available, record)
		}
	}
	return available
}

// RefreshMirror re-publishes the directory entry and durable snapshot for an
// agent, keeping TTL-bound entries alive.
func (r *Registry) RefreshMirror(ctx context.Context, agentID string) {
	record, ok := r.Get(agentID)
	if !ok {
		return
	}
	r.mirror(ctx, record)
}

// SystemStatus computes pool-level counts.
func (r *Registry) SystemStatus() SystemStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status := SystemStatus{
		ByType:    make(map[AgentType]TypeStatus),
		Timestamp: time.Now(),
	}
	status.TotalAgents = len(r.byID)

	for _, record := range r.byID {
		s := record.Status()
		if s != StatusOffline {
			status.ActiveAgents++
		}
		switch s {
		case StatusBusy:
			status.BusyAgents++
		case StatusError:
			status.ErrorAgents++
		}
	}
	status.IdleAgents = status.ActiveAgents - status.BusyAgents

	for agentType, records := range r.byType {
		ts := TypeStatus{Total: len(records)}
		for _, record := range records {
			s := record.Status()
			if s != StatusOffline {
				ts.Active++
			}
			if s == StatusBusy {
				ts.Busy++
			}
		}
		status.ByType[agentType] = ts
	}

	return status
}

// mirror writes the directory entry and durable snapshot, logging failures.
// The local registration stands regardless of mirror outcome.
func (r *Registry) mirror(ctx context.Context, record *AgentRecord) {
	snap := record.Snapshot()

	if r.directory != nil {
		entry := DirectoryEntry{
			AgentType:     snap.AgentType,
			Status:        snap.Status,
			CreatedAt:     snap.CreatedAt,
			LastHeartbeat: snap.LastHeartbeat,
		}
		if err := r.directory.Put(ctx, snap.AgentID, entry); err != nil {
			r.log.Warnf("Directory mirror failed for %s: %v", snap.AgentID, err)
		}
	}

	if r.store != nil {
		if err := r.store.SaveAgent(ctx, snap); err != nil {
			r.log.Warnf("Store persist failed for %s: %v", snap.AgentID, err)
		}
	}
}

func removeRecord(records []*AgentRecord, agentID string) []*AgentRecord {
	for i, record := range records {
		if record.ID() == agentID {
			return append(records[:i], records[i+1:]...)
		}
	}
	return records
}
