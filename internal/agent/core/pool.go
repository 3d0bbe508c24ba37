package core

import (
	"strings"
	"sync"

	"github.com/mohammad-safakhou/researcher/internal/helpers"
)

// ResourcePool is the deduplicated set of URLs discovered during a run.
// Entries are keyed by canonical URL, kept in insertion order and never removed.
type ResourcePool struct {
	mu        sync.RWMutex
	order     []string
	resources map[string]*Resource
}

// NewResourcePool returns an empty pool.
func NewResourcePool() *ResourcePool {
	return &ResourcePool{resources: make(map[string]*Resource)}
}

// NormalizeURL returns the pool key for raw. Input that cannot be
// canonicalised is keyed by its trimmed form.
func NormalizeURL(raw string) string {
	canonical, err := helpers.CanonicalURL(raw)
	if err != nil {
		return strings.TrimSpace(raw)
	}
	return canonical
}

// Find returns the resource stored under the normalised form of url.
func (p *ResourcePool) Find(url string) (Resource, bool) {
	key := NormalizeURL(url)
	p.mu.RLock()
	defer p.mu.RUnlock()
	r, ok := p.resources[key]
	if !ok {
		return Resource{}, false
	}
	return *r, true
}

// Add inserts an unvisited resource. It reports false, changing nothing, when
// the normalised URL is empty or already present.
func (p *ResourcePool) Add(url, description, content string) bool {
	key := NormalizeURL(url)
	if key == "" {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.resources[key]; ok {
		return false
	}
	p.resources[key] = &Resource{URL: key, Description: description, Content: content}
	p.order = append(p.order, key)
	return true
}

// Visit marks the resource visited and attaches content. Unknown URLs are ignored.
func (p *ResourcePool) Visit(url, content string) bool {
	key := NormalizeURL(url)
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.resources[key]
	if !ok {
		return false
	}
	r.Visited = true
	r.Content = content
	return true
}

// All returns a copy of every resource in insertion order.
func (p *ResourcePool) All() []Resource {
	return p.filter(func(Resource) bool { return true })
}

// Unvisited returns the resources not visited yet, in insertion order.
func (p *ResourcePool) Unvisited() []Resource {
	return p.filter(func(r Resource) bool { return !r.Visited })
}

// Len is the number of distinct resources.
func (p *ResourcePool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.order)
}

func (p *ResourcePool) filter(keep func(Resource) bool) []Resource {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Resource, 0, len(p.order))
	for _, key := range p.order {
		if r := *p.resources[key]; keep(r) {
			out = append(out, r)
		}
	}
	return out
}
