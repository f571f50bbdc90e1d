package ofstats

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// Action tags a coordinator request for the remote backend.
type Action string

const (
	ActionRegister       Action = "register"
	ActionLogin          Action = "login"
	ActionLogout         Action = "logout"
	ActionVerify         Action = "verify"
	ActionForgotPassword Action = "forgot_password"
	ActionResetPassword  Action = "reset_password"
	ActionVerifyEmail    Action = "verify_email"
	ActionSubscription   Action = "subscription"
	ActionPlans          Action = "plans"
	ActionPayments       Action = "payments"
	ActionAddModel       Action = "add_model"
	ActionRemoveModel    Action = "remove_model"
	ActionListModels     Action = "list_models"
	ActionReportFans     Action = "report_fans"
	ActionFansBatch      Action = "fans_batch"
	ActionSyncPresets    Action = "sync_presets"
)

// Request is the typed envelope relayed to the backend. Action is always
// set; the remaining fields are the fixed parameter set for that action and
// are omitted when empty.
type Request struct {
	Action    Action          `json:"action"`
	Email     string          `json:"email,omitempty"`
	Password  string          `json:"password,omitempty"`
	Code      string          `json:"code,omitempty"`
	Model     string          `json:"model,omitempty"`
	Models    []string        `json:"models,omitempty"`
	FanCounts map[string]int  `json:"fanCounts,omitempty"`
	Presets   json.RawMessage `json:"presets,omitempty"`
}

// Response is the backend's uniform answer shape.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Token   string          `json:"token,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Coordinator is the long-lived relay between UI surfaces and the remote
// backend. It holds the session credential, attaches it to every relayed
// request, and rebroadcasts authentication-state changes into every
// registered page flag store so engines know whether to install.
type Coordinator struct {
	client  *retryablehttp.Client
	baseURL string
	tokens  *TokenStore
	log     *zap.Logger

	mu   sync.Mutex
	tabs []FlagStore
}

// NewCoordinator creates a relay against the backend at baseURL. Auth
// endpoints are rate limited server-side, so retries stay bounded.
func NewCoordinator(baseURL string, tokens *TokenStore) *Coordinator {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.HTTPClient.Timeout = 15 * time.Second
	rc.Logger = nil
	return &Coordinator{
		client:  rc,
		baseURL: baseURL,
		tokens:  tokens,
		log:     zap.NewNop(),
	}
}

// WithLogger enables diagnostic logging.
func (c *Coordinator) WithLogger(log *zap.Logger) *Coordinator {
	if log != nil {
		c.log = log
	}
	return c
}

// RegisterTab adds a page flag store to the auth-state broadcast set.
func (c *Coordinator) RegisterTab(fs FlagStore) {
	if fs == nil {
		return
	}
	c.mu.Lock()
	c.tabs = append(c.tabs, fs)
	c.mu.Unlock()
}

// BroadcastAuthStatus writes the auth flag into every registered tab.
// Individual write failures are logged and do not stop the broadcast.
func (c *Coordinator) BroadcastAuthStatus(status string) {
	c.mu.Lock()
	tabs := append([]FlagStore(nil), c.tabs...)
	c.mu.Unlock()

	for _, fs := range tabs {
		if err := fs.Set(AuthStatusKey, status); err != nil {
			c.log.Debug("auth broadcast failed", zap.Error(err))
		}
	}
}

// Do relays one typed request to the backend and decodes the uniform
// response. The stored session token, when present, rides along as a bearer
// header. A transport-level failure is an error; a business-level failure is
// a Response with Success=false.
func (c *Coordinator) Do(ctx context.Context, req Request) (Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("marshal %s request: %w", req.Action, err)
	}

	hr, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/extension", bytes.NewReader(payload))
	if err != nil {
		return Response{}, fmt.Errorf("create %s request: %w", req.Action, err)
	}
	hr.Header.Set("Content-Type", "application/json")
	if token, err := c.tokens.Load(); err == nil && token != "" {
		hr.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(hr)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %s: %v", ErrBackend, req.Action, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProbeBody))
	if err != nil {
		return Response{}, fmt.Errorf("read %s response: %w", req.Action, err)
	}

	var out Response
	if err := json.Unmarshal(body, &out); err != nil {
		return Response{}, fmt.Errorf("%w: decode %s response: %v", ErrInvalidResponse, req.Action, err)
	}
	return out, nil
}

// Login authenticates against the backend, persists the returned token, and
// broadcasts the authenticated state to every registered tab.
func (c *Coordinator) Login(ctx context.Context, email, password string) error {
	resp, err := c.Do(ctx, Request{Action: ActionLogin, Email: email, Password: password})
	if err != nil {
		return err
	}
	if !resp.Success || resp.Token == "" {
		c.BroadcastAuthStatus(AuthStatusAnonymous)
		return fmt.Errorf("%w: %s", ErrAuthRequired, resp.Error)
	}
	if err := c.tokens.Save(resp.Token); err != nil {
		return err
	}
	c.BroadcastAuthStatus(AuthStatusAuthenticated)
	return nil
}

// Logout invalidates the session server-side (best effort), clears the
// stored token, and broadcasts the anonymous state.
func (c *Coordinator) Logout(ctx context.Context) error {
	if _, err := c.Do(ctx, Request{Action: ActionLogout}); err != nil {
		c.log.Debug("logout relay failed", zap.Error(err))
	}
	if err := c.tokens.Clear(); err != nil {
		return err
	}
	c.BroadcastAuthStatus(AuthStatusAnonymous)
	return nil
}

// VerifySession checks the stored credential against the backend and
// broadcasts the resulting auth state. It reports whether the session is
// valid; relay failures count as not valid.
func (c *Coordinator) VerifySession(ctx context.Context) bool {
	token, err := c.tokens.Load()
	if err != nil || token == "" {
		c.BroadcastAuthStatus(AuthStatusAnonymous)
		return false
	}

	resp, err := c.Do(ctx, Request{Action: ActionVerify})
	if err != nil || !resp.Success {
		if err != nil {
			c.log.Debug("verify relay failed", zap.Error(err))
		}
		c.BroadcastAuthStatus(AuthStatusAnonymous)
		return false
	}
	c.BroadcastAuthStatus(AuthStatusAuthenticated)
	return true
}

// ReportFans uploads observed fan counts keyed by model username.
func (c *Coordinator) ReportFans(ctx context.Context, counts map[string]int) error {
	resp, err := c.Do(ctx, Request{Action: ActionReportFans, FanCounts: counts})
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("%w: report fans: %s", ErrBackend, resp.Error)
	}
	return nil
}

// FansBatch fetches the stored fan counts for a list of model usernames.
func (c *Coordinator) FansBatch(ctx context.Context, models []string) (map[string]int, error) {
	resp, err := c.Do(ctx, Request{Action: ActionFansBatch, Models: models})
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: fans batch: %s", ErrBackend, resp.Error)
	}
	counts := make(map[string]int)
	if len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, &counts); err != nil {
			return nil, fmt.Errorf("%w: decode fans batch: %v", ErrInvalidResponse, err)
		}
	}
	return counts, nil
}
