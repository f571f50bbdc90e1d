package ofstats

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"go.uber.org/zap"
	"golang.org/x/net/proxy"
)

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

var siteURL, _ = url.Parse("https://onlyfans.com")

// Engine is the interception and correlation engine. It observes profile
// responses on two seams (a decorated HTTP transport and, when a browser is
// attached, a page hijack hook) and routes matches through the classify,
// normalize, correlate, emit pipeline without disturbing the real
// request/response path.
type Engine struct {
	client      *http.Client
	probeClient *http.Client // shares the jar but bypasses the decorator
	proxy       string
	userAgent   string
	baseURL     string // defaults to "https://onlyfans.com"
	log         *zap.Logger

	// Browser used for watch mode.
	browser   *rod.Browser
	page      *rod.Page
	browserMu sync.Mutex

	flags   FlagStore
	cache   *profileCache
	emitter *recordEmitter

	// Install guard: hooks attach at most once per Engine lifetime.
	installMu sync.Mutex
	installed bool

	// pageSubjectFn reports the current page subject. Replaceable for
	// testing; the browser build wires it to the live page location.
	pageSubjectFn func() string

	// Probe rate limiting: ~60/min → 1s min delay.
	probeDelay time.Duration
	lastProbe  time.Time
	probeMu    sync.Mutex
}

// defaultTransport returns an http.Transport tuned for API polling:
// connection pooling, keep-alive, and TLS handshake caching.
func defaultTransport() *http.Transport {
	return &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}
}

// New creates an Engine with sensible defaults. No hooks are attached until
// Install is called, and Install only acts when the flag store reports an
// authenticated session. Diagnostics are off unless WithLogger is used.
func New() *Engine {
	jar, _ := cookiejar.New(nil)
	base := defaultTransport()
	e := &Engine{
		client: &http.Client{
			Jar:       jar,
			Timeout:   15 * time.Second,
			Transport: base,
		},
		probeClient: &http.Client{
			Jar:       jar,
			Timeout:   15 * time.Second,
			Transport: base,
		},
		baseURL:    "https://onlyfans.com",
		userAgent:  defaultUserAgent,
		log:        zap.NewNop(),
		flags:      NewMemFlags(),
		cache:      newProfileCache(),
		emitter:    &recordEmitter{},
		probeDelay: time.Second,
	}
	e.pageSubjectFn = func() string { return "" }
	return e
}

// WithLogger enables diagnostic logging.
func (e *Engine) WithLogger(log *zap.Logger) *Engine {
	if log != nil {
		e.log = log
	}
	return e
}

// WithBaseURL points the engine at a different site origin.
func (e *Engine) WithBaseURL(u string) *Engine {
	if u != "" {
		e.baseURL = u
	}
	return e
}

// WithProbeDelay sets the minimum delay between hidden-stats probe requests.
func (e *Engine) WithProbeDelay(d time.Duration) *Engine {
	e.probeDelay = d
	return e
}

// WithFlagStore replaces the page-scoped flag store consulted at install time.
func (e *Engine) WithFlagStore(fs FlagStore) *Engine {
	if fs != nil {
		e.flags = fs
	}
	return e
}

// Flags exposes the engine's flag store so a coordinator can register it as
// a broadcast target.
func (e *Engine) Flags() FlagStore { return e.flags }

// Installed reports whether the interception hooks are attached.
func (e *Engine) Installed() bool {
	e.installMu.Lock()
	defer e.installMu.Unlock()
	return e.installed
}

// Install attaches the interception hooks exactly once. A second call is a
// no-op. Installation is skipped entirely, no hook attaches, unless the
// flag store holds AuthStatusAuthenticated; that is not an error. Hooks are
// never uninstalled.
func (e *Engine) Install() {
	e.installMu.Lock()
	defer e.installMu.Unlock()
	if e.installed {
		return
	}

	status, err := e.flags.Get(AuthStatusKey)
	if err != nil || status != AuthStatusAuthenticated {
		e.log.Debug("install skipped: session not authenticated")
		return
	}

	base := e.client.Transport
	if base == nil {
		base = defaultTransport()
	}
	e.client.Transport = &observingTransport{base: base, engine: e}
	e.installHijack()
	e.installed = true
	e.log.Debug("interception installed")
}

// handleResponse runs one observation to completion: normalize, fill hidden
// stats if the payload omitted the subscriber count, then correlate. Each
// call is a self-contained continuation; a panic anywhere inside is caught
// at the interception boundary.
func (e *Engine) handleResponse(rawURL string, body []byte) {
	rec := normalizeProfile(rawURL, body)
	if rec == nil {
		return
	}
	if rec.SubscribersCount == nil {
		if n, ok := e.probeSubscribers(context.Background(), rec.idToken(), rec.Username); ok {
			rec.SubscribersCount = &n
		}
	}
	e.observe(rec)
}

// observe writes the record into the cache and applies the correlation rule:
// no page subject, or a subject equal to the record's username, means the
// record is live and is propagated; anything else is cache-only. The
// viewer's own profile ("me") carries no stable public identity and is
// neither cached nor propagated.
func (e *Engine) observe(rec *ProfileRecord) {
	key := strings.ToLower(rec.Username)
	if key == "me" {
		return
	}
	if key != "" {
		e.cache.store(key, rec)
	}

	subject := e.pageSubjectFn()
	if subject == "" || subject == key {
		e.emitter.emit(rec)
	}
}

// Subscribe registers a same-process listener for live profile events.
// Delivery is fire-and-forget; listeners that fall behind miss events and
// should pull from Cached instead.
func (e *Engine) Subscribe() <-chan ProfileEvent {
	return e.emitter.subscribe()
}

// Cached returns the last record observed for username, if any.
func (e *Engine) Cached(username string) (*ProfileRecord, bool) {
	return e.cache.lookup(username)
}

// SetProxy configures an HTTP/HTTPS or SOCKS5 proxy for both clients.
// Connection pooling and keep-alive settings are preserved. Calling this
// after Install would drop the interception hook, so it is rejected then.
func (e *Engine) SetProxy(proxyAddr string) error {
	e.installMu.Lock()
	installed := e.installed
	e.installMu.Unlock()
	if installed {
		return fmt.Errorf("set proxy: hooks already installed")
	}

	if proxyAddr == "" {
		base := defaultTransport()
		e.client.Transport = base
		e.probeClient.Transport = base
		e.proxy = ""
		return nil
	}

	u, err := url.Parse(proxyAddr)
	if err != nil {
		return fmt.Errorf("parse proxy url: %w", err)
	}

	base := defaultTransport()

	switch u.Scheme {
	case "http", "https":
		base.Proxy = http.ProxyURL(u)
	case "socks5":
		var auth *proxy.Auth
		if u.User != nil {
			pass, _ := u.User.Password()
			auth = &proxy.Auth{User: u.User.Username(), Password: pass}
		}
		dialer, err := proxy.SOCKS5("tcp", u.Host, auth, proxy.Direct)
		if err != nil {
			return fmt.Errorf("socks5 proxy: %w", err)
		}
		dc, ok := dialer.(proxy.ContextDialer)
		if !ok {
			return fmt.Errorf("socks5: context dialer not supported")
		}
		base.DialContext = dc.DialContext
	default:
		return fmt.Errorf("unsupported proxy scheme: %s", u.Scheme)
	}

	e.client.Transport = base
	e.probeClient.Transport = base
	e.proxy = proxyAddr
	return nil
}

// doRequest builds and executes a request with the site's standard headers.
func (e *Engine) doRequest(ctx context.Context, c *http.Client, method, urlStr string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, urlStr, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", e.baseURL+"/")

	resp, err := c.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		resp.Body.Close()
		return nil, ErrRateLimited
	case http.StatusNotFound:
		resp.Body.Close()
		return nil, ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		resp.Body.Close()
		return nil, ErrAuthRequired
	}

	return resp, nil
}

// waitForProbe enforces rate limiting for hidden-stats probe requests.
func (e *Engine) waitForProbe() {
	e.probeMu.Lock()
	defer e.probeMu.Unlock()
	e.throttle(&e.lastProbe, e.probeDelay)
}

// throttle sleeps if needed to enforce min delay + jitter between requests.
func (e *Engine) throttle(lastReq *time.Time, delay time.Duration) {
	if delay == 0 {
		return
	}
	elapsed := time.Since(*lastReq)
	jitter := time.Duration(rand.Int64N(int64(500 * time.Millisecond)))
	wait := delay + jitter - elapsed
	if wait > 0 {
		time.Sleep(wait)
	}
	*lastReq = time.Now()
}

// Close releases all resources including the headless browser if running.
func (e *Engine) Close() error {
	return e.closeBrowser()
}
