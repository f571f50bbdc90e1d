package ofstats

import "sync"

// Auth flag contract shared with the background coordinator: the engine only
// installs its hooks when the page-scoped flag store holds "authenticated"
// under AuthStatusKey. The coordinator writes the key after verifying the
// session against the backend.
const (
	AuthStatusKey           = "ofStatsAuthStatus"
	AuthStatusAuthenticated = "authenticated"
	AuthStatusAnonymous     = "anonymous"
)

// FlagStore is a page-scoped string key-value store. The browser-backed
// implementation reads and writes localStorage on the watched page; the
// in-memory one serves headless-free runs and tests.
type FlagStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
}

type memFlags struct {
	mu sync.RWMutex
	m  map[string]string
}

// NewMemFlags returns an in-memory FlagStore.
func NewMemFlags() FlagStore {
	return &memFlags{m: make(map[string]string)}
}

func (f *memFlags) Get(key string) (string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.m[key], nil
}

func (f *memFlags) Set(key, value string) error {
	f.mu.Lock()
	f.m[key] = value
	f.mu.Unlock()
	return nil
}
