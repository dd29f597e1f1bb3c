package redis

import (
	"context"
	"time"

	"quorum/internal/agents"
)

// Key layout and expiries for the discovery and analysis stores.
const (
	agentKeyPrefix    = "agent:"
	progressKeyPrefix = "analysis_progress:"
	resultKeyPrefix   = "analysis_result:"

	directoryTTL = time.Hour
	progressTTL  = time.Hour
	resultTTL    = 24 * time.Hour
)

// Directory mirrors agent projections for cross-process discovery.
// Entries expire after an hour unless refreshed.
type Directory struct {
	client *Client
}

// NewDirectory creates a Redis-backed agent directory.
func NewDirectory(client *Client) *Directory {
	return &Directory{client: client}
}

// Put writes the directory entry under agent:{agent_id} with a 1h expiry.
func (d *Directory) Put(ctx context.Context, agentID string, entry agents.DirectoryEntry) error {
	return d.client.Set(ctx, agentKeyPrefix+agentID, entry, directoryTTL)
}

// Delete removes the directory entry.
func (d *Directory) Delete(ctx context.Context, agentID string) error {
	return d.client.Delete(ctx, agentKeyPrefix+agentID)
}

// Get reads a directory entry back; ok is false when the entry expired or
// never existed.
func (d *Directory) Get(ctx context.Context, agentID string) (agents.DirectoryEntry, bool, error) {
	var entry agents.DirectoryEntry
	err := d.client.Get(ctx, agentKeyPrefix+agentID, &entry)
	if err != nil {
		if IsNotFound(err) {
			return entry, false, nil
		}
		return entry, false, err
	}
	return entry, true, nil
}

// ProgressRecord is the externally visible progress of one analysis run.
type ProgressRecord struct {
	AnalysisID string    `json:"analysis_id"`
	Stage      string    `json:"stage"`
	Percent    int       `json:"percent"`
	Message    string    `json:"message"`
	Status     string    `json:"status"` // running|completed|failed|cancelled
	UpdatedAt  time.Time `json:"updated_at"`
}

// AnalysisStore keeps progress and final results under TTL-bound keys.
type AnalysisStore struct {
	client *Client
}

// NewAnalysisStore creates a Redis-backed analysis store.
func NewAnalysisStore(client *Client) *AnalysisStore {
	return &AnalysisStore{client: client}
}

// SaveProgress writes analysis_progress:{id} with a 1h expiry.
func (s *AnalysisStore) SaveProgress(ctx context.Context, record ProgressRecord) error {
	return s.client.Set(ctx, progressKeyPrefix+record.AnalysisID, record, progressTTL)
}

// GetProgress reads the progress record; ok is false when it expired or never
// existed.
func (s *AnalysisStore) GetProgress(ctx context.Context, analysisID string) (ProgressRecord, bool, error) {
	var record ProgressRecord
	err := s.client.Get(ctx, progressKeyPrefix+analysisID, &record)
	if err != nil {
		if IsNotFound(err) {
			return record, false, nil
		}
		return record, false, err
	}
	return record, true, nil
}

// SaveResult writes analysis_result:{id} with a 24h expiry.
func (s *AnalysisStore) SaveResult(ctx context.Context, analysisID string, result interface{}) error {
	return s.client.Set(ctx, resultKeyPrefix+analysisID, result, resultTTL)
}

// GetResult reads the final result into dest; ok is false when it expired or
// never existed.
func (s *AnalysisStore) GetResult(ctx context.Context, analysisID string, dest interface{}) (bool, error) {
	err := s.client.Get(ctx, resultKeyPrefix+analysisID, dest)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
