// Package roster provides the student roster collaborator. The tracker
// only reads it; student lifecycle is managed elsewhere.
package roster

import (
	"context"
	"sync"

	"schoolbus/internal/domain"
)

// Memory is an in-memory roster, used when no database is configured and
// in tests. Safe for concurrent use.
type Memory struct {
	mu       sync.RWMutex
	students map[string]domain.Student
	order    []string
}

func NewMemory(students ...domain.Student) *Memory {
	m := &Memory{students: make(map[string]domain.Student)}
	for _, s := range students {
		m.Add(s)
	}
	return m
}

func (m *Memory) Add(s domain.Student) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.students[s.ID]; !exists {
		m.order = append(m.order, s.ID)
	}
	m.students[s.ID] = s
}

func (m *Memory) Student(_ context.Context, id string) (domain.Student, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.students[id]
	return s, ok, nil
}

func (m *Memory) ActiveStudents(_ context.Context) ([]domain.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Student, 0, len(m.order))
	for _, id := range m.order {
		if s := m.students[id]; s.Active {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.students)
}
