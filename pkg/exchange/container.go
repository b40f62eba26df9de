package exchange

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"swapline/pkg/core"
)

// Container is a thread-safe registry of venue bindings keyed by name.
// Trading code resolves bindings from it and depends only on Exchange.
type Container struct {
	mu        sync.RWMutex
	exchanges map[string]Exchange
}

// NewContainer creates and returns a new empty exchange container.
func NewContainer() *Container {
	return &Container{
		exchanges: make(map[string]Exchange),
	}
}

// Register adds ex under its own name, replacing any binding already there.
func (c *Container) Register(ex Exchange) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exchanges[ex.Name()] = ex
}

// Get retrieves a binding by name. A missing name is a not-found error.
func (c *Container) Get(name string) (Exchange, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ex, exists := c.exchanges[name]
	if !exists {
		return nil, core.NewNotFoundError(name, fmt.Sprintf("exchange %q not registered", name))
	}
	return ex, nil
}

// Names returns the registered names in sorted order.
func (c *Container) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Sorted(maps.Keys(c.exchanges))
}

// Exists checks whether an exchange with the given name is registered.
func (c *Container) Exists(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, exists := c.exchanges[name]
	return exists
}

// Unregister removes and closes the named binding.
func (c *Container) Unregister(name string) error {
	c.mu.Lock()
	ex, exists := c.exchanges[name]
	delete(c.exchanges, name)
	c.mu.Unlock()

	if !exists {
		return nil
	}
	return ex.Close()
}

// Close closes every binding and empties the container.
func (c *Container) Close() error {
	c.mu.Lock()
	exchanges := c.exchanges
	c.exchanges = make(map[string]Exchange)
	c.mu.Unlock()

	var errs []error
	for name, ex := range exchanges {
		if err := ex.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
