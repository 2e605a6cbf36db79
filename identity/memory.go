package identity

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Memory is a process-local Repository.
type Memory struct {
	mu     sync.RWMutex
	people map[string]Person
	order  []string
}

func NewMemory(seed ...Person) *Memory {
	m := &Memory{people: map[string]Person{}}
	for _, p := range seed {
		_, _ = m.Insert(context.Background(), p)
	}
	return m
}

func (m *Memory) Lookup(_ context.Context, id string) (Person, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.people[id]
	if !ok {
		return Person{}, ErrNotFound
	}
	return p, nil
}

// Search ranks people by how many query tokens their name or position contains.
func (m *Memory) Search(_ context.Context, query string, limit int) ([]Person, error) {
	tokens := strings.Fields(strings.ToLower(query))
	if len(tokens) == 0 {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	type hit struct {
		p     Person
		score int
		pos   int
	}
	var hits []hit
	for i, id := range m.order {
		p := m.people[id]
		hay := strings.ToLower(p.Name + " " + p.Position)
		score := 0
		for _, t := range tokens {
			if strings.Contains(hay, t) {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, hit{p: p, score: score, pos: i})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]Person, len(hits))
	for i, h := range hits {
		out[i] = h.p
	}
	return out, nil
}

func (m *Memory) Insert(_ context.Context, p Person) (Person, error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.people[p.ID]; !ok {
		m.order = append(m.order, p.ID)
	}
	m.people[p.ID] = p
	return p, nil
}
