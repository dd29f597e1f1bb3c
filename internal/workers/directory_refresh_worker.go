package workers

import (
	"context"
	"time"

	"quorum/internal/agents"
)

// DirectoryRefreshWorker keeps the distributed directory entries alive by
// re-mirroring live records before their TTL lapses, and flips agents whose
// heartbeat expired to offline. Local records are never evicted here: the
// local index stays authoritative even when the directory entry has expired.
type DirectoryRefreshWorker struct {
	*BaseWorker
	registry     *agents.Registry
	heartbeatTTL time.Duration
}

// NewDirectoryRefreshWorker creates the refresher. heartbeatTTL should match
// the directory entry expiry.
func NewDirectoryRefreshWorker(registry *agents.Registry, interval, heartbeatTTL time.Duration) *DirectoryRefreshWorker {
	return &DirectoryRefreshWorker{
		BaseWorker:   NewBaseWorker("directory_refresh", interval, true),
		registry:     registry,
		heartbeatTTL: heartbeatTTL,
	}
}

// Run executes one refresh cycle.
func (w *DirectoryRefreshWorker) Run(ctx context.Context) error {
	start := time.Now()

	for _, record := range w.registry.List() {
		if record.Status() == agents.StatusOffline {
			continue
		}

		if time.Since(record.LastHeartbeat()) > w.heartbeatTTL {
			w.Log().Warnf("Agent heartbeat expired, marking offline: %s (id: %s)", record.Type(), record.ID())
			record.SetStatus(agents.StatusOffline)
			continue
		}

		w.registry.RefreshMirror(ctx, record.ID())
	}

	w.RecordRun(time.Since(start))
	return nil
}
