package ofstats

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const maxProbeBody = 1 << 20

// probeSubscribers fills in a subscriber count the primary payload omitted.
// It walks a short fixed list of secondary endpoints, keyed by id first and
// then by username, and short-circuits on the first success that carries
// the wanted field. Every attempt is independently fault-tolerant; an
// exhausted list means "stats unavailable" (ok=false), never an error.
//
// Probes go through probeClient, which bypasses the observing transport, so
// a probe response can never re-enter the pipeline.
func (e *Engine) probeSubscribers(ctx context.Context, id, username string) (int, bool) {
	var candidates []string
	if id != "" {
		candidates = append(candidates,
			fmt.Sprintf("%s/api2/v2/users/list?user_ids=%s", e.baseURL, url.QueryEscape(id)))
	}
	if username != "" {
		candidates = append(candidates,
			fmt.Sprintf("%s/api2/v2/users/%s?fields=subscribersCount", e.baseURL, url.PathEscape(username)))
	}

	for _, probeURL := range candidates {
		e.waitForProbe()
		if n, ok := e.fetchSubscribers(ctx, probeURL); ok {
			return n, true
		}
	}
	return 0, false
}

// fetchSubscribers tries one candidate endpoint. Failures are logged for
// diagnostics and reported as a miss so the caller moves on.
func (e *Engine) fetchSubscribers(ctx context.Context, probeURL string) (int, bool) {
	resp, err := e.doRequest(ctx, e.probeClient, "GET", probeURL, nil)
	if err != nil {
		e.log.Debug("stats probe failed", zap.String("url", probeURL), zap.Error(err))
		return 0, false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		e.log.Debug("stats probe rejected", zap.String("url", probeURL), zap.Int("status", resp.StatusCode))
		return 0, false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProbeBody))
	if err != nil {
		e.log.Debug("stats probe read failed", zap.String("url", probeURL), zap.Error(err))
		return 0, false
	}

	// Single-profile responses carry the field at the top level; the batch
	// endpoint nests each profile under its id key.
	res := gjson.GetBytes(body, "subscribersCount")
	if !res.Exists() {
		res = gjson.GetBytes(body, "*.subscribersCount")
	}
	if !res.Exists() {
		e.log.Debug("stats probe missing field", zap.String("url", probeURL))
		return 0, false
	}
	return int(res.Int()), true
}
