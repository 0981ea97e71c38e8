package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/pefman/ai-fight-club/internal/models"
)

// ErrNotFound is returned when a session id is unknown.
var ErrNotFound = errors.New("session not found")

// Store persists sessions. Implementations return copies, so callers may
// mutate what they get and Put it back.
type Store interface {
	Get(ctx context.Context, id string) (*models.Session, error)
	Put(ctx context.Context, s *models.Session) error
	Delete(ctx context.Context, id string) error
	// ListCompleted returns sessions with results, oldest first.
	ListCompleted(ctx context.Context) ([]*models.Session, error)
	Close() error
}

// ========================= Memory =========================

const defaultCapacity = 10000

// MemoryStore keeps sessions in a bounded LRU; the least recently used
// session is dropped when capacity is reached.
type MemoryStore struct {
	mu    sync.Mutex
	cache *lru.Cache[string, []byte]
}

func NewMemoryStore(capacity int) (*MemoryStore, error) {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	c, err := lru.New[string, []byte](capacity)
	if err != nil {
		return nil, fmt.Errorf("create session cache: %w", err)
	}
	return &MemoryStore{cache: c}, nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*models.Session, error) {
	m.mu.Lock()
	data, ok := m.cache.Get(id)
	m.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	var s models.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &s, nil
}

func (m *MemoryStore) Put(_ context.Context, s *models.Session) error {
	if s == nil || s.ID == "" {
		return errors.New("session without id")
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", s.ID, err)
	}
	m.mu.Lock()
	m.cache.Add(s.ID, data)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	m.cache.Remove(id)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) ListCompleted(_ context.Context) ([]*models.Session, error) {
	m.mu.Lock()
	keys := m.cache.Keys()
	m.mu.Unlock()
	out := make([]*models.Session, 0)
	for _, k := range keys {
		m.mu.Lock()
		data, ok := m.cache.Peek(k)
		m.mu.Unlock()
		if !ok {
			continue
		}
		var s models.Session
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("decode session %s: %w", k, err)
		}
		if s.Completed() {
			out = append(out, &s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Results.CompletedAt.Before(out[j].Results.CompletedAt) })
	return out, nil
}

func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cache.Len()
}

func (m *MemoryStore) Close() error { return nil }
