// Package provider defines the capability contract for third-party audio
// sources and the registry that makes them available to the matcher.
package provider

import (
	"context"
	"sort"

	"github.com/tunelift/tunelift/types"
)

// DefaultOrder is the fixed priority list used when no match order is
// configured. Only names with a registered provider are ever queried.
var DefaultOrder = []string{"kuwo", "kugou", "migu", "bilibili", "pyncmd"}

// Provider is one independent audio source able to answer with a substitute
// stream for a track identity. Check must honor ctx cancellation and fail
// with an error when no match exists.
type Provider interface {
	Name() string
	Check(ctx context.Context, track types.Track) (types.Candidate, error)
}

// Result is the tagged outcome of one provider query, letting the fan-out
// step distinguish "no answer" from a crash without exception plumbing.
type Result struct {
	Source    string
	Candidate types.Candidate
	Err       error
}

// OK reports whether the query produced a candidate.
func (r Result) OK() bool {
	return r.Err == nil
}

// Registry holds registered providers. It is constructed once at startup and
// passed by reference; it is not safe for concurrent mutation afterwards.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider under its own name, replacing any previous one.
func (r *Registry) Register(p Provider) {
	r.providers[p.Name()] = p
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// Names returns the registered provider names, sorted for stable output.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	return len(r.providers)
}
