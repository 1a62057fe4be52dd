// pkg/registry/registry.go
package registry

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"placement-predictor/internal/common/errors"
)

// Kind tags how a backend's scores are interpreted.
type Kind string

const (
	// Discrete backends return hard 0/1 labels.
	Discrete Kind = "discrete"
	// Probabilistic backends return a score in [0,1] that is thresholded.
	Probabilistic Kind = "probabilistic"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == Discrete || k == Probabilistic
}

// Backend is an already-trained classifier. Predict scores the whole batch
// in one call and returns one score per input vector, in order.
type Backend interface {
	Predict(ctx context.Context, batch [][]float64) ([]float64, error)
}

// Entry is a registered backend.
type Entry struct {
	Name    string
	Kind    Kind
	Backend Backend
}

var (
	ErrSealed         = stderrors.New("registry is sealed")
	ErrDuplicateName  = stderrors.New("backend name already registered")
	ErrInvalidBackend = stderrors.New("backend must not be nil")
	ErrInvalidKind    = stderrors.New("backend kind must be discrete or probabilistic")
	ErrEmptyName      = stderrors.New("backend name must not be empty")
)

// Registry maps names to backends. Writers copy the map and swap it in, so
// Resolve and Names never take a lock.
type Registry struct {
	mu      sync.Mutex
	entries atomic.Pointer[map[string]Entry]
	sealed  atomic.Bool
}

// New returns an empty registry.
func New() *Registry {
	r := &Registry{}
	empty := map[string]Entry{}
	r.entries.Store(&empty)
	return r
}

// Register adds a backend. It fails after Seal.
func (r *Registry) Register(name string, backend Backend, kind Kind) error {
	if name == "" {
		return ErrEmptyName
	}
	if backend == nil {
		return ErrInvalidBackend
	}
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed.Load() {
		return ErrSealed
	}
	current := *r.entries.Load()
	if _, exists := current[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateName, name)
	}

	next := make(map[string]Entry, len(current)+1)
	for k, v := range current {
		next[k] = v
	}
	next[name] = Entry{Name: name, Kind: kind, Backend: backend}
	r.entries.Store(&next)
	return nil
}

// Seal freezes the registry. Call once startup loading is complete.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed.Store(true)
	r.mu.Unlock()
}

// Sealed reports whether Seal has been called.
func (r *Registry) Sealed() bool { return r.sealed.Load() }

// Resolve returns the entry registered under name, or an UNKNOWN_MODEL
// error listing every registered name.
func (r *Registry) Resolve(name string) (Entry, error) {
	entries := *r.entries.Load()
	entry, ok := entries[name]
	if !ok {
		return Entry{}, errors.NewUnknownModelError(name, r.Names())
	}
	return entry, nil
}

// Names returns registered names in sorted order.
func (r *Registry) Names() []string {
	entries := *r.entries.Load()
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Entries returns every entry sorted by name.
func (r *Registry) Entries() []Entry {
	entries := *r.entries.Load()
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len is the number of registered backends.
func (r *Registry) Len() int { return len(*r.entries.Load()) }
