// Package store holds the planner's tasks: an ordered in-memory list that
// is the single source of truth for the session, mirrored to a key-value
// Persister after every change.
//
// Persistence failures never break the planner. A failed load starts with
// an empty list and a failed save keeps the change in memory; both are
// logged.
package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	appLog "monthplan/internal/log"
	"monthplan/internal/model"
)

// DefaultKey is the key the task list is stored under.
const DefaultKey = "month_tasks_v1"

var (
	ErrNotFound         = errors.New("task not found")
	ErrDuplicateID      = errors.New("task id already exists")
	ErrPersistenceRead  = errors.New("load saved tasks")
	ErrPersistenceWrite = errors.New("save tasks")

	// errUnchanged ends a mutation that decided not to write.
	errUnchanged = errors.New("unchanged")
)

// Persister loads and saves the whole task list as one value.
type Persister interface {
	Load(ctx context.Context) ([]model.Task, error)
	Save(ctx context.Context, tasks []model.Task) error
}

// Store is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	tasks   []model.Task
	persist Persister
}

// Open loads the saved tasks. Read failures and invalid records are
// logged and dropped; Open itself never fails.
func Open(ctx context.Context, p Persister) *Store {
	s := &Store{persist: p}

	tasks, err := p.Load(ctx)
	if err != nil {
		appLog.Error("load tasks failed; starting empty", fmt.Errorf("%w: %w", ErrPersistenceRead, err))
		return s
	}

	seen := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		err := t.Validate()
		if err == nil && seen[t.ID] {
			err = fmt.Errorf("%w: %s", ErrDuplicateID, t.ID)
		}
		if err != nil {
			appLog.Warn("skipping invalid saved task", err, "id", t.ID)
			continue
		}
		seen[t.ID] = true
		s.tasks = append(s.tasks, t)
	}
	appLog.Info("tasks loaded", "count", len(s.tasks))
	return s
}

// List returns a copy of all tasks in insertion order.
func (s *Store) List() []model.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.tasks)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

func (s *Store) Get(id string) (model.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.tasks[i], true
	}
	return model.Task{}, false
}

// Add appends t.
func (s *Store) Add(ctx context.Context, t model.Task) error {
	if err := t.Validate(); err != nil {
		return err
	}
	return s.mutate(ctx, func() error {
		if s.indexOf(t.ID) >= 0 {
			return fmt.Errorf("%w: %s", ErrDuplicateID, t.ID)
		}
		s.tasks = append(s.tasks, t)
		return nil
	})
}

// Replace swaps the task with the same id for t, keeping its position.
func (s *Store) Replace(ctx context.Context, t model.Task) error {
	if err := t.Validate(); err != nil {
		return err
	}
	return s.mutate(ctx, func() error {
		i := s.indexOf(t.ID)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, t.ID)
		}
		s.tasks[i] = t
		return nil
	})
}

// UpdateSpan replaces only the start/end of task id. It is how finished
// move and resize gestures are committed.
func (s *Store) UpdateSpan(ctx context.Context, id string, start, end model.Date) error {
	t, ok := s.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.Replace(ctx, t.WithSpan(start, end))
}

// Upsert replaces t if its id exists and appends it otherwise.
func (s *Store) Upsert(ctx context.Context, t model.Task) (added bool, err error) {
	if err := t.Validate(); err != nil {
		return false, err
	}
	err = s.mutate(ctx, func() error {
		if i := s.indexOf(t.ID); i >= 0 {
			s.tasks[i] = t
			return nil
		}
		s.tasks = append(s.tasks, t)
		added = true
		return nil
	})
	return added, err
}

// UpsertUnless is Upsert that leaves an existing task untouched when keep
// returns true for it. The check and the write happen under one lock.
func (s *Store) UpsertUnless(ctx context.Context, t model.Task, keep func(existing model.Task) bool) (added, written bool, err error) {
	if err := t.Validate(); err != nil {
		return false, false, err
	}
	err = s.mutate(ctx, func() error {
		i := s.indexOf(t.ID)
		switch {
		case i < 0:
			s.tasks = append(s.tasks, t)
			added = true
		case keep(s.tasks[i]):
			return errUnchanged
		default:
			s.tasks[i] = t
		}
		written = true
		return nil
	})
	return added, written, err
}

func (s *Store) Remove(ctx context.Context, id string) error {
	return s.mutate(ctx, func() error {
		i := s.indexOf(id)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		s.tasks = slices.Delete(s.tasks, i, i+1)
		return nil
	})
}

// mutate applies fn under the write lock and, if it succeeded, saves a
// snapshot. The lock is held across the save so snapshots reach the
// persister in mutation order. Save errors are logged and swallowed.
func (s *Store) mutate(ctx context.Context, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := fn(); err != nil {
		if errors.Is(err, errUnchanged) {
			return nil
		}
		return err
	}
	if err := s.persist.Save(ctx, slices.Clone(s.tasks)); err != nil {
		appLog.Warn("save tasks failed; keeping change in memory", fmt.Errorf("%w: %w", ErrPersistenceWrite, err), "count", len(s.tasks))
	}
	return nil
}

func (s *Store) indexOf(id string) int {
	return slices.IndexFunc(s.tasks, func(t model.Task) bool { return t.ID == id })
}
