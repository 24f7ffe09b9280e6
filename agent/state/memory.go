package state

import (
	"context"
	"strings"
	"sync"
)

// MemoryStore keeps run history in memory. It is the default store when no
// database is configured and the fixture store in tests.
type MemoryStore struct {
	mu           sync.Mutex
	historyLimit int
	records      map[string][]RunRecord
}

type MemoryOption func(*MemoryStore)

func WithMemoryHistoryLimit(n int) MemoryOption {
	return func(s *MemoryStore) {
		if n > 0 {
			s.historyLimit = n
		}
	}
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		historyLimit: defaultHistoryLimit,
		records:      make(map[string][]RunRecord, 8),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func historyKey(agentID, sessionID string) string {
	return agentID + "\x00" + sessionID
}

func (s *MemoryStore) Append(ctx context.Context, rec RunRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := historyKey(rec.AgentID, rec.SessionID)
	s.records[key] = Trim(append(s.records[key], rec), s.historyLimit)
	return nil
}

func (s *MemoryStore) History(ctx context.Context, agentID, sessionID string) ([]RunRecord, error) {
	if strings.TrimSpace(agentID) == "" {
		return nil, ErrInvalidAgent
	}
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrInvalidSession
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := s.records[historyKey(agentID, sessionID)]
	return append([]RunRecord(nil), recs...), nil
}

func (s *MemoryStore) Clear(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return ErrInvalidSession
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.records {
		if strings.HasSuffix(key, "\x00"+sessionID) {
			delete(s.records, key)
		}
	}
	return nil
}

var _ Store = (*MemoryStore)(nil)
