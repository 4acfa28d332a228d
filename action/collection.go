package action

import (
	"sync"

	"github.com/google/uuid"

	"github.com/klchiu/waops/errors"
)

// Collection is the mutex-guarded in-memory rule list, the source of
// truth between snapshots.
type Collection struct {
	mu    sync.RWMutex
	items []Rule
}

// NewCollection builds a collection from a loaded snapshot.
func NewCollection(items []Rule) *Collection {
	copied := make([]Rule, 0, len(items))
	for _, r := range items {
		copied = append(copied, r.Clone())
	}
	return &Collection{items: copied}
}

// List returns a copy of all rules.
func (c *Collection) List() []Rule {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Rule, 0, len(c.items))
	for _, r := range c.items {
		out = append(out, r.Clone())
	}
	return out
}

// Get returns the rule with the given id.
func (c *Collection) Get(id string) (Rule, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, r := range c.items {
		if r.ID == id {
			return r.Clone(), true
		}
	}
	return Rule{}, false
}

// Add inserts a rule, assigning identity when missing.
func (c *Collection) Add(r Rule) Rule {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, r.Clone())
	return r
}

// Update replaces the rule with the given id, preserving its identity.
func (c *Collection) Update(id string, r Rule) (Rule, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if c.items[i].ID == id {
			r.ID = id
			c.items[i] = r.Clone()
			return r, nil
		}
	}
	return Rule{}, errors.NewNotFoundError("rule %s", id)
}

// SetEnabled toggles a rule and returns the updated value.
func (c *Collection) SetEnabled(id string, enabled bool) (Rule, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if c.items[i].ID == id {
			c.items[i].Enabled = enabled
			return c.items[i].Clone(), nil
		}
	}
	return Rule{}, errors.NewNotFoundError("rule %s", id)
}

// Delete removes the rule with the given id; reports whether it existed.
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
func (c *Collection) Snapshot() []Rule {
	return c.List()
}
