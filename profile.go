package ofstats

import (
	"context"
	"fmt"
	"io"
	"net/url"
)

// Profile returns the record for username, preferring the pull-based cache.
// On a miss it fetches the profile endpoint directly through the engine's
// client, so with hooks installed the response also flows through the
// interception pipeline like any page-initiated call.
func (e *Engine) Profile(ctx context.Context, username string) (*ProfileRecord, error) {
	if username == "" {
		return nil, fmt.Errorf("profile: username is required")
	}

	if rec, ok := e.Cached(username); ok {
		return rec, nil
	}

	profileURL := e.baseURL + usersCollectionPath + url.PathEscape(username)
	resp, err := e.doRequest(ctx, e.client, "GET", profileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("profile %q: %w", username, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read profile %q: %w", username, err)
	}

	rec := normalizeProfile(profileURL, body)
	if rec == nil {
		return nil, fmt.Errorf("profile %q: %w", username, ErrInvalidResponse)
	}
	return rec, nil
}
