package task

import (
	"sync"

	"github.com/google/uuid"

	"github.com/klchiu/waops/errors"
)

// Collection is the mutex-guarded in-memory task list. It is the
// source of truth between snapshots: every accessor copies, so a
// snapshot taken during concurrent mutation always reflects one valid
// state.
type Collection struct {
	mu    sync.RWMutex
	items []Task
}

// NewCollection builds a collection from a loaded snapshot.
func NewCollection(items []Task) *Collection {
	copied := make([]Task, 0, len(items))
	for _, t := range items {
		copied = append(copied, t.Clone())
	}
	return &Collection{items: copied}
}

// List returns a copy of all tasks.
func (c *Collection) List() []Task {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Task, 0, len(c.items))
	for _, t := range c.items {
		out = append(out, t.Clone())
	}
	return out
}

// Get returns the task with the given id.
func (c *Collection) Get(id string) (Task, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, t := range c.items {
		if t.ID == id {
			return t.Clone(), true
		}
	}
	return Task{}, false
}

// Add inserts a task, assigning identity when missing, and returns the
// stored value.
func (c *Collection) Add(t Task) Task {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, t.Clone())
	return t
}

// Update replaces the task with the given id, preserving its identity.
func (c *Collection) Update(id string, t Task) (Task, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if c.items[i].ID == id {
			t.ID = id
			c.items[i] = t.Clone()
			return t, nil
		}
	}
	return Task{}, errors.NewNotFoundError("task %s", id)
}

// SetEnabled toggles a task and returns the updated value.
func (c *Collection) SetEnabled(id string, enabled bool) (Task, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if c.items[i].ID == id {
			c.items[i].Enabled = enabled
			return c.items[i].Clone(), nil
		}
	}
	return Task{}, errors.NewNotFoundError("task %s", id)
}

// Delete removes the task with the given id; reports whether it existed.
func (c *Collection) Delete(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if c.items[i].ID == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return true
		}
	}
	return false
}

// Snapshot returns a consistent copy of the whole collection for
// persistence.
func (c *Collection) Snapshot() []Task {
	return c.List()
}
