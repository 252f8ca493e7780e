package session

import (
	"sync"
)

// Registry is the process-wide map from opaque token to session handle.
// It lets a session started by one controller interaction be found and
// reattached by a later, independent interaction holding only the token.
//
// A successful Lookup says nothing about the liveness of the referenced
// runner; callers re-check Handle.Runner.Alive before acting on it.
type Registry struct {
	mu      sync.RWMutex
	handles map[string]*Handle
}

func NewRegistry() *Registry {
	return &Registry{
		handles: make(map[string]*Handle),
	}
}

// Register adds the handle under its token. Tokens are generated fresh per
// start so collisions are not expected; if one does occur the newest handle
// wins (last-write-wins, same as an overwrite).
func (r *Registry) Register(h *Handle) {
	r.mu.Lock()
	r.handles[h.Token] = h
	r.mu.Unlock()
}

// Lookup returns the handle registered under token, if any.
func (r *Registry) Lookup(token string) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[token]
	return h, ok
}

// Remove deletes the mapping for token. Removing an absent token is a no-op.
func (r *Registry) Remove(token string) {
	r.mu.Lock()
	delete(r.handles, token)
	r.mu.Unlock()
}

// Tokens returns the tokens of all registered handles, in no particular order.
func (r *Registry) Tokens() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tokens := make([]string, 0, len(r.handles))
	for t := range r.handles {
		tokens = append(tokens, t)
	}
	return tokens
}

// Handles returns all registered handles, in no particular order.
func (r *Registry) Handles() []*Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Handle, 0, len(r.handles))
	for _, h := range r.handles {
		result = append(result, h)
	}
	return result
}

// ActiveCount reports how many registered handles reference a live runner.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, h := range r.handles {
		if h.Runner != nil && h.Runner.Alive() {
			count++
		}
	}
	return count
}
