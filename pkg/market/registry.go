package market

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrNotFound is returned for lookups of unregistered markets
var ErrNotFound = errors.New("market not found")

// Registry holds market metadata loaded once per session
// Lookups are safe for concurrent use by signing goroutines
type Registry struct {
	mu      sync.RWMutex
	markets map[string]*Market // name -> market
}

// NewRegistry creates an empty market registry
func NewRegistry() *Registry {
	return &Registry{
		markets: make(map[string]*Market),
	}
}

// Register validates and adds a market
// Returns error if a market with the same name already exists
func (r *Registry) Register(m *Market) error {
	if m == nil {
		return fmt.Errorf("cannot register nil market")
	}
	if err := m.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.markets[m.Name]; exists {
		return fmt.Errorf("market %s already registered", m.Name)
	}

	r.markets[m.Name] = m
	return nil
}

// Get retrieves a market by name
func (r *Registry) Get(name string) (*Market, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, exists := r.markets[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	return m, nil
}

// Tradable retrieves a market and checks that orders may be signed against it
func (r *Registry) Tradable(name string) (*Market, error) {
	m, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	if !m.Status.Tradable() {
		return nil, fmt.Errorf("market %s is %s", name, m.Status)
	}
	return m, nil
}

// List returns all registered markets sorted by name
func (r *Registry) List() []*Market {
	r.mu.RLock()
	defer r.mu.RUnlock()

	markets := make([]*Market, 0, len(r.markets))
	for _, m := range r.markets {
		markets = append(markets, m)
	}
	sort.Slice(markets, func(i, j int) bool { return markets[i].Name < markets[j].Name })

	return markets
}

// UpdateStatus changes the trading status of a market
// Delisted is terminal
func (r *Registry) UpdateStatus(name string, status Status) error {
	if !status.valid() {
		return fmt.Errorf("unknown status %q", status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	m, exists := r.markets[name]
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if m.Status == Delisted && status != Delisted {
		return fmt.Errorf("cannot change status of delisted market %s", name)
	}

	updated := *m
	updated.Status = status
	r.markets[name] = &updated
	return nil
}

// Remove drops a market from the registry
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.markets[name]; !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	delete(r.markets, name)
	return nil
}

// Count returns the number of registered markets
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.markets)
}

// Exists checks if a market is registered
func (r *Registry) Exists(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.markets[name]
	return exists
}
