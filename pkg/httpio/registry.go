package httpio

import (
	"net/http"
	"strings"
	"sync"
)

// registry maps path patterns to handlers. Lookups run on every request
// from many workers; writes are rare.
type registry struct {
	mu        sync.RWMutex
	exact     map[string]http.Handler
	wildcards map[string]http.Handler
}

func newRegistry() *registry {
	return &registry{
		exact:     make(map[string]http.Handler),
		wildcards: make(map[string]http.Handler),
	}
}

func isWildcard(pattern string) bool {
	return strings.HasPrefix(pattern, "*") || strings.HasSuffix(pattern, "*")
}

func (r *registry) register(pattern string, h http.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if isWildcard(pattern) {
		r.wildcards[pattern] = h
		return
	}
	r.exact[pattern] = h
	if !strings.HasSuffix(pattern, "/") {
		r.exact[pattern+"/"] = h
	}
}

func (r *registry) unregister(pattern string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if isWildcard(pattern) {
		delete(r.wildcards, pattern)
		return
	}
	delete(r.exact, pattern)
	if !strings.HasSuffix(pattern, "/") {
		delete(r.exact, pattern+"/")
	}
}

// lookup returns the handler for path, or nil.
func (r *registry) lookup(path string) http.Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if h, ok := r.exact[path]; ok {
		return h
	}

	var best http.Handler
	bestLen := -1
	for pattern, h := range r.wildcards {
		if !wildcardMatch(pattern, path) {
			continue
		}
		// Longer patterns win; on equal length a prefix pattern wins so the
		// result does not depend on map order.
		n := len(pattern)
		if n > bestLen || (n == bestLen && strings.HasSuffix(pattern, "*")) {
			best, bestLen = h, n
		}
	}
	return best
}

func wildcardMatch(pattern, path string) bool {
	switch {
	case pattern == "*":
		return true
	case strings.HasSuffix(pattern, "*"):
		return strings.HasPrefix(path, pattern[:len(pattern)-1])
	default:
		return strings.HasSuffix(path, pattern[1:])
	}
}
