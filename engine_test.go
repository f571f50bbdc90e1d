package ofstats

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// newTestEngine creates an authenticated Engine pointed at the given test
// server with zero probe delay.
func newTestEngine(serverURL string) *Engine {
	e := New().WithProbeDelay(0).WithBaseURL(serverURL)
	_ = e.flags.Set(AuthStatusKey, AuthStatusAuthenticated)
	return e
}

// waitFor polls until cond holds, failing the test after a deadline. The
// pipeline runs as a continuation off the caller's request, so tests
// synchronize on its observable effects.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for pipeline continuation")
}

// countingTransport counts delegations to the wrapped transport.
type countingTransport struct {
	base  http.RoundTripper
	calls atomic.Int64
}

func (t *countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.calls.Add(1)
	return t.base.RoundTrip(req)
}

const alicePayload = `{"id":101,"username":"alice","subscribersCount":120}`

func profileServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api2/v2/users/alice" {
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, alicePayload)
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNew(t *testing.T) {
	t.Parallel()
	e := New()

	if e.client == nil || e.client.Jar == nil {
		t.Fatal("expected http client with cookie jar")
	}
	if e.probeClient == nil {
		t.Fatal("expected probe client")
	}
	if e.userAgent != defaultUserAgent {
		t.Errorf("expected default user agent, got %q", e.userAgent)
	}
	if e.baseURL != "https://onlyfans.com" {
		t.Errorf("expected default baseURL, got %q", e.baseURL)
	}
	if e.Installed() {
		t.Error("expected hooks not installed on construction")
	}
	if e.pageSubjectFn == nil {
		t.Fatal("expected pageSubjectFn to be initialized")
	}
}

func TestInstallAttachesExactlyOnce(t *testing.T) {
	t.Parallel()
	srv := profileServer(t)
	e := newTestEngine(srv.URL)

	ct := &countingTransport{base: http.DefaultTransport}
	e.client.Transport = ct

	e.Install()
	e.Install()
	e.Install()

	if !e.Installed() {
		t.Fatal("expected hooks installed")
	}

	resp, err := e.client.Get(srv.URL + "/api2/v2/users/alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()

	// Double-wrapping would delegate twice per external call.
	if got := ct.calls.Load(); got != 1 {
		t.Errorf("base transport delegated %d times for one call", got)
	}
}

func TestInstallSkippedWhenUnauthenticated(t *testing.T) {
	t.Parallel()
	e := New() // flag store left empty

	ct := &countingTransport{base: http.DefaultTransport}
	e.client.Transport = ct

	e.Install()

	if e.Installed() {
		t.Fatal("expected install to be skipped")
	}
	if _, wrapped := e.client.Transport.(*observingTransport); wrapped {
		t.Error("no hook may attach in an unauthenticated context")
	}
}

func TestInterceptedBodyDeliveredUntouched(t *testing.T) {
	t.Parallel()
	srv := profileServer(t)
	e := newTestEngine(srv.URL)
	e.Install()

	resp, err := e.client.Get(srv.URL + "/api2/v2/users/alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(body) != alicePayload {
		t.Errorf("caller body altered by interception: %q", body)
	}
}

func TestEndToEndLiveMatch(t *testing.T) {
	t.Parallel()
	srv := profileServer(t)
	e := newTestEngine(srv.URL)
	e.pageSubjectFn = func() string { return "alice" }

	events := e.Subscribe()
	e.Install()

	resp, err := e.client.Get(srv.URL + "/api2/v2/users/alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()

	var ev ProfileEvent
	select {
	case ev = <-events:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a propagated event for the live match")
	}
	if len(events) != 0 {
		t.Fatalf("expected exactly one propagated event, got %d extra", len(events))
	}
	if ev.Name != EventProfileIntercepted {
		t.Errorf("event name: got %q", ev.Name)
	}
	if ev.Record.Username != "alice" {
		t.Errorf("username: got %q", ev.Record.Username)
	}
	if ev.Record.SubscribersCount == nil || *ev.Record.SubscribersCount != 120 {
		t.Errorf("subscribersCount: got %v", ev.Record.SubscribersCount)
	}
	if string(ev.Record.Raw) != alicePayload {
		t.Error("raw payload missing from propagated record")
	}
}

func TestEndToEndCacheOnly(t *testing.T) {
	t.Parallel()
	srv := profileServer(t)
	e := newTestEngine(srv.URL)
	e.pageSubjectFn = func() string { return "bob" }

	events := e.Subscribe()
	e.Install()

	resp, err := e.client.Get(srv.URL + "/api2/v2/users/alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()

	waitFor(t, func() bool {
		_, ok := e.Cached("alice")
		return ok
	})

	if len(events) != 0 {
		t.Fatalf("expected zero propagated events, got %d", len(events))
	}

	rec, _ := e.Cached("alice")
	if *rec.SubscribersCount != 120 {
		t.Errorf("cached count: got %d", *rec.SubscribersCount)
	}
}

func TestInterceptionIgnoresNoise(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"username":"alice"}]`)
	}))
	t.Cleanup(srv.Close)

	e := newTestEngine(srv.URL)
	events := e.Subscribe()
	e.Install()

	for _, path := range []string{
		"/api2/v2/users/alice/posts", // excluded sub-resource
		"/api2/v2/posts/7",           // different collection
		"/api2/v2/users/alice",       // matches, but list payload
	} {
		resp, err := e.client.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		resp.Body.Close()
	}

	// Let any stray continuation land before asserting silence.
	time.Sleep(100 * time.Millisecond)

	if len(events) != 0 {
		t.Fatalf("expected no events for noise traffic, got %d", len(events))
	}
	if _, ok := e.Cached("alice"); ok {
		t.Error("noise traffic must not populate the cache")
	}
}

func TestProfilePrefersCache(t *testing.T) {
	t.Parallel()
	srv := profileServer(t)
	e := newTestEngine(srv.URL)

	cached := record("alice", 777)
	e.cache.store("alice", cached)

	rec, err := e.Profile(t.Context(), "alice")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if rec != cached {
		t.Error("expected the cached record")
	}
}

func TestProfileFetchesOnMiss(t *testing.T) {
	t.Parallel()
	srv := profileServer(t)
	e := newTestEngine(srv.URL)

	rec, err := e.Profile(t.Context(), "alice")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if rec.Username != "alice" || *rec.SubscribersCount != 120 {
		t.Errorf("unexpected record: %+v", rec)
	}
}

func TestProfileRequiresUsername(t *testing.T) {
	t.Parallel()
	e := New()
	if _, err := e.Profile(t.Context(), ""); err == nil {
		t.Fatal("expected error for empty username")
	}
}

func TestSetProxyRejectedAfterInstall(t *testing.T) {
	t.Parallel()
	srv := profileServer(t)
	e := newTestEngine(srv.URL)
	e.Install()

	if err := e.SetProxy("http://127.0.0.1:9"); err == nil {
		t.Fatal("expected proxy change to be rejected after install")
	}
}

func TestSetProxyUnsupportedScheme(t *testing.T) {
	t.Parallel()
	e := New()
	if err := e.SetProxy("ftp://proxy:21"); err == nil {
		t.Fatal("expected unsupported scheme error")
	}
}
