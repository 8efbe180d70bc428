package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const createRetryLimit = 5

type MemoryConfig struct {
	TTL         time.Duration
	MaxSessions int
}

type memorySession struct {
	meta    Session
	records []QueryRecord
}

// MemoryStore keeps sessions for the lifetime of the process. A zero TTL
// disables eviction; MaxSessions <= 0 disables the cap.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*memorySession
	ttl      time.Duration
	max      int
	now      func() time.Time
	newID    func() string
}

func NewMemoryStore(cfg MemoryConfig) *MemoryStore {
	return &MemoryStore{
		sessions: map[string]*memorySession{},
		ttl:      cfg.TTL,
		max:      cfg.MaxSessions,
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}
}

func (s *MemoryStore) CreateSession(_ context.Context) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	s.sweepLocked(now)

	var id string
	for attempt := 0; ; attempt++ {
		if attempt >= createRetryLimit {
			return Session{}, fmt.Errorf("allocate session id: exhausted %d attempts", createRetryLimit)
		}
		id = s.newID()
		if _, exists := s.sessions[id]; !exists {
			break
		}
	}

	if s.max > 0 && len(s.sessions) >= s.max {
		s.evictOldestLocked()
	}

	meta := Session{ID: id, CreatedAt: now, LastSeenAt: now}
	s.sessions[id] = &memorySession{meta: meta}
	return meta, nil
}

func (s *MemoryStore) GetSession(_ context.Context, sessionID string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.lookupLocked(sessionID)
	if err != nil {
		return Session{}, err
	}
	return entry.meta, nil
}

func (s *MemoryStore) Append(_ context.Context, sessionID string, record QueryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.lookupLocked(sessionID)
	if err != nil {
		return err
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.now().UTC()
	}
	entry.records = append(entry.records, record)
	entry.meta.LastSeenAt = s.now().UTC()
	return nil
}

// History returns a point-in-time copy. Appends after the snapshot do not
// mutate the returned slice.
func (s *MemoryStore) History(_ context.Context, sessionID string) ([]QueryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.lookupLocked(sessionID)
	if err != nil {
		return nil, err
	}
	snapshot := make([]QueryRecord, len(entry.records))
	copy(snapshot, entry.records)
	return snapshot, nil
}

// Len reports the number of live sessions.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *MemoryStore) lookupLocked(sessionID string) (*memorySession, error) {
	entry, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if s.expiredLocked(entry, s.now().UTC()) {
		delete(s.sessions, sessionID)
		return nil, ErrSessionNotFound
	}
	return entry, nil
}

func (s *MemoryStore) expiredLocked(entry *memorySession, now time.Time) bool {
	return s.ttl > 0 && now.Sub(entry.meta.LastSeenAt) > s.ttl
}

func (s *MemoryStore) sweepLocked(now time.Time) {
	if s.ttl <= 0 {
		return
	}
	for id, entry := range s.sessions {
		if s.expiredLocked(entry, now) {
			delete(s.sessions, id)
		}
	}
}

func (s *MemoryStore) evictOldestLocked() {
	var oldestID string
	var oldestSeen time.Time
	for id, entry := range s.sessions {
		if oldestID == "" || entry.meta.LastSeenAt.Before(oldestSeen) {
			oldestID = id
			oldestSeen = entry.meta.LastSeenAt
		}
	}
	if oldestID != "" {
		delete(s.sessions, oldestID)
	}
}
