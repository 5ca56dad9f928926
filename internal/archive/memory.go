package archive

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/park285/tafl-htp-bot/internal/domain"
)

// Memory keeps the most recent matches in process: at most capacity of them,
// the oldest saved is dropped first.
type Memory struct {
	mu sync.RWMutex

	capacity  int
	nextID    int64
	order     []int64 // save order, oldest first
	byID      map[int64]*domain.Match
	bySession map[string]*domain.Match
}

// NewMemory keeps the same number of matches as the redis recent list.
func NewMemory() *Memory { return NewMemoryWithCapacity(recentCap) }

func NewMemoryWithCapacity(capacity int) *Memory {
	if capacity <= 0 {
		capacity = recentCap
	}
	return &Memory{
		capacity:  capacity,
		byID:      make(map[int64]*domain.Match),
		bySession: make(map[string]*domain.Match),
	}
}

func (m *Memory) Save(_ context.Context, match *domain.Match) error {
	if match == nil {
		return nil
	}
	key := strings.TrimSpace(match.SessionUUID)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.bySession[key]; exists {
		return ErrDuplicateMatch
	}
	m.nextID++
	stored := cloneMatch(match)
	stored.ID = m.nextID
	m.byID[stored.ID] = stored
	m.bySession[key] = stored
	m.order = append(m.order, stored.ID)

	for len(m.order) > m.capacity {
		old := m.byID[m.order[0]]
		delete(m.byID, old.ID)
		delete(m.bySession, strings.TrimSpace(old.SessionUUID))
		m.order = m.order[1:]
	}
	return nil
}

func (m *Memory) Recent(_ context.Context, limit int) ([]*domain.Match, error) {
	m.mu.RLock()
	items := make([]*domain.Match, 0, len(m.byID))
	for _, match := range m.byID {
		items = append(items, cloneMatch(match))
	}
	m.mu.RUnlock()

	// EndedAt desc, then ID desc
	sort.Slice(items, func(i, j int) bool {
		if !items[i].EndedAt.Equal(items[j].EndedAt) {
			return items[i].EndedAt.After(items[j].EndedAt)
		}
		return items[i].ID > items[j].ID
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (m *Memory) Get(_ context.Context, sessionUUID string) (*domain.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if match, ok := m.bySession[strings.TrimSpace(sessionUUID)]; ok {
		return cloneMatch(match), nil
	}
	return nil, nil
}

func cloneMatch(m *domain.Match) *domain.Match {
	c := *m
	c.Moves = append([]string(nil), m.Moves...)
	return &c
}
