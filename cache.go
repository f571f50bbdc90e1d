package ofstats

import (
	"net/url"
	"strings"
	"sync"
)

// profileCache holds normalized records keyed by lowercased username. Its
// lifetime is the Engine's: created lazily on construction, discarded with
// the process. Last write wins; there is no merge or versioning.
type profileCache struct {
	mu      sync.RWMutex
	records map[string]*ProfileRecord
}

func newProfileCache() *profileCache {
	return &profileCache{records: make(map[string]*ProfileRecord)}
}

func (c *profileCache) store(key string, rec *ProfileRecord) {
	c.mu.Lock()
	c.records[key] = rec
	c.mu.Unlock()
}

func (c *profileCache) lookup(username string) (*ProfileRecord, bool) {
	c.mu.RLock()
	rec, ok := c.records[strings.ToLower(username)]
	c.mu.RUnlock()
	return rec, ok
}

// pageSubject extracts the first path segment of the current page location,
// lowercased. An empty result means "no page subject": settings pages and the
// site root land here and observations always propagate in that case.
func pageSubject(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	seg := strings.Trim(u.Path, "/")
	if i := strings.IndexByte(seg, '/'); i >= 0 {
		seg = seg[:i]
	}
	return strings.ToLower(seg)
}
