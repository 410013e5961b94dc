package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"monthplan/internal/model"
)

// MemoryPersister keeps the saved list in process memory. It backs
// ephemeral sessions (storage driver "memory") and tests.
type MemoryPersister struct {
	mu    sync.Mutex
	saved []model.Task
	saves int
}

func NewMemoryPersister(initial ...model.Task) *MemoryPersister {
	return &MemoryPersister{saved: slices.Clone(initial)}
}

func (m *MemoryPersister) Load(_ context.Context) ([]model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.saved), nil
}

func (m *MemoryPersister) Save(_ context.Context, tasks []model.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = slices.Clone(tasks)
	m.saves++
	return nil
}

// Saves returns how many times Save was called.
func (m *MemoryPersister) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// NewPersister builds the persister named by a config storage driver:
// "file" (default), "sqlite" or "memory". Callers should close the result
// if it implements io.Closer.
func NewPersister(driver, path, key string) (Persister, error) {
	switch driver {
	case "", "file":
		return NewFilePersister(path, key), nil
	case "sqlite":
		p, err := NewSQLitePersister(path, key)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "memory":
		return NewMemoryPersister(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}
