package ofstats

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
)

// GetCookies returns the current session cookies for the target site.
func (e *Engine) GetCookies() []*http.Cookie {
	return e.client.Jar.Cookies(siteURL)
}

// SetCookies sets session cookies on the shared jar.
func (e *Engine) SetCookies(cookies []*http.Cookie) {
	e.client.Jar.SetCookies(siteURL, cookies)
}

// SaveCookies writes session cookies to a JSON file.
func (e *Engine) SaveCookies(path string) error {
	data, err := json.Marshal(e.GetCookies())
	if err != nil {
		return fmt.Errorf("marshal cookies: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// LoadCookies reads cookies from a JSON file and sets them on the client.
func (e *Engine) LoadCookies(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read cookies file: %w", err)
	}
	var cookies []*http.Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return fmt.Errorf("unmarshal cookies: %w", err)
	}
	e.SetCookies(cookies)
	return nil
}

// TokenStore persists the backend session credential as a single value on
// disk. It is deliberately minimal: one key, file-backed, 0600.
type TokenStore struct {
	mu   sync.Mutex
	path string
}

// NewTokenStore returns a store backed by the given file path.
func NewTokenStore(path string) *TokenStore {
	return &TokenStore{path: path}
}

// Load returns the stored token, or "" when none has been saved.
func (t *TokenStore) Load() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	data, err := os.ReadFile(t.path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Save writes the token, replacing any previous value.
func (t *TokenStore) Save(token string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := os.WriteFile(t.path, []byte(token), 0600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return nil
}

// Clear removes the stored token.
func (t *TokenStore) Clear() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := os.Remove(t.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}
