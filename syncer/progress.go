package syncer

import (
	"context"
	"sync"
	"time"
)

// Sync phases in execution order. Error is terminal and reachable from any
// phase; Unknown is what pollers get for job ids that were never started.
const (
	PhaseStarting = "starting"
	PhaseUsers    = "users"
	PhaseChannels = "channels"
	PhaseMessages = "messages"
	PhaseDone     = "done"
	PhaseError    = "error"
	PhaseUnknown  = "unknown"
)

// Progress is the live status record of one sync run. The owning worker is
// the only writer; any number of pollers read snapshots of it. UpdatedAt
// lets pollers notice a run that stopped advancing.
type Progress struct {
	Phase     string         `json:"phase"`
	Users     int            `json:"users"`
	Messages  map[string]int `json:"messages"`
	Error     string         `json:"error,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (p Progress) clone() Progress {
	out := p
	out.Messages = make(map[string]int, len(p.Messages))
	for k, v := range p.Messages {
		out.Messages[k] = v
	}
	return out
}

// ProgressStore keeps progress records by job id. Implementations must be
// safe for one writer per key with concurrent readers.
type ProgressStore interface {
	Set(ctx context.Context, jobID string, p Progress) error
	// Get returns a snapshot of the record. An unknown id is (false, nil);
	// a non-nil error means the registry itself could not be read, which
	// callers must not conflate with the id being unknown.
	Get(ctx context.Context, jobID string) (Progress, bool, error)
}

// MemoryStore is the in-process ProgressStore. Records live for the life
// of the process.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]Progress
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]Progress)}
}

func (s *MemoryStore) Set(_ context.Context, jobID string, p Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[jobID] = p.clone()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, jobID string) (Progress, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.jobs[jobID]
	if !ok {
		return Progress{}, false, nil
	}
	return p.clone(), true, nil
}
