package cluster

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// Registry holds the named clusters of a process.
type Registry struct {
	mu       sync.RWMutex
	clusters map[string]*Cluster
}

func NewRegistry() *Registry {
	return &Registry{clusters: make(map[string]*Cluster)}
}

// Register adds c under its name. Names must be unique.
func (r *Registry) Register(c *Cluster) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clusters[c.Name()]; ok {
		return fmt.Errorf("cluster %q already registered", c.Name())
	}
	r.clusters[c.Name()] = c
	return nil
}

func (r *Registry) Get(name string) (*Cluster, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clusters[name]
	return c, ok
}

// Names returns the registered cluster names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.clusters))
	for name := range r.clusters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close closes every cluster and empties the registry.
func (r *Registry) Close() error {
	r.mu.Lock()
	clusters := r.clusters
	r.clusters = make(map[string]*Cluster)
	r.mu.Unlock()

	var result error
	for name, c := range clusters {
		if err := c.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close cluster %s: %w", name, err))
		}
	}
	return result
}
