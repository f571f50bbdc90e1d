//go:build !unittest

package ofstats

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"
)

// InitBrowser launches a headless Chrome instance with stealth mode and
// attaches the engine to a fresh page on the target site. After this the
// flag store is page-scoped (localStorage) and the page subject tracks the
// live location.
func (e *Engine) InitBrowser() error {
	l := launcher.New().Headless(true)
	if e.proxy != "" {
		l = l.Proxy(e.proxy)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect browser: %w", err)
	}

	page, err := stealth.Page(browser)
	if err != nil {
		return fmt.Errorf("create stealth page: %w", err)
	}

	e.browser = browser
	e.page = page
	e.flags = &pageFlags{page: page}
	e.pageSubjectFn = func() string {
		res, err := e.page.Timeout(3 * time.Second).Eval(`() => location.pathname`)
		if err != nil {
			return ""
		}
		return pageSubject(res.Value.Str())
	}

	if err := e.page.Navigate(e.baseURL); err != nil {
		return fmt.Errorf("navigate to site: %w", err)
	}
	if err := e.page.WaitStable(2 * time.Second); err != nil {
		return fmt.Errorf("wait for page stable: %w", err)
	}

	return e.syncCookiesFromBrowser()
}

// installHijack attaches the hijack hook for the users API on the watched
// page. The hook records the request URL at pause time, performs the real
// fetch, always delivers the untouched response to the page, and inspects
// the body on a recovered goroutine. Called under the install guard.
func (e *Engine) installHijack() {
	if e.page == nil {
		return
	}

	router := e.page.HijackRequests()
	router.MustAdd("*api2/v2/users*", func(hctx *rod.Hijack) {
		reqURL := hctx.Request.URL().String()

		// probeClient shares the session jar but bypasses the transport
		// decorator, so the body is not inspected twice.
		if err := hctx.LoadResponse(e.probeClient, true); err != nil {
			hctx.Response.Fail(proto.NetworkErrorReasonConnectionFailed)
			return
		}

		code := hctx.Response.Payload().ResponseCode
		if code < 200 || code >= 300 {
			return
		}

		body := []byte(hctx.Response.Body())
		go func() {
			defer func() {
				if r := recover(); r != nil {
					e.log.Debug("hijack inspection fault", zap.Any("panic", r), zap.String("url", reqURL))
				}
			}()
			e.handleResponse(reqURL, body)
		}()
	})
	go router.Run()
}

// Watch navigates the attached page to a profile and leaves the hooks to
// observe whatever the page loads. Callers consume records via Subscribe.
func (e *Engine) Watch(ctx context.Context, username string) error {
	if e.page == nil {
		return ErrBrowserNotReady
	}
	if username == "" {
		return fmt.Errorf("watch: username is required")
	}

	page := e.page.Context(ctx)
	if err := page.Navigate(e.baseURL + "/" + username); err != nil {
		return fmt.Errorf("navigate to profile %q: %w", username, err)
	}
	if err := page.WaitStable(2 * time.Second); err != nil {
		return fmt.Errorf("wait for profile page: %w", err)
	}
	return nil
}

// pageFlags is the browser-backed FlagStore: localStorage on the watched
// page. The engine and the page's own scripts never share memory; values
// cross the boundary as strings through Eval.
type pageFlags struct {
	page *rod.Page
}

func (f *pageFlags) Get(key string) (string, error) {
	res, err := f.page.Timeout(3*time.Second).Eval(`(k) => window.localStorage.getItem(k) || ""`, key)
	if err != nil {
		return "", fmt.Errorf("read page flag %q: %w", key, err)
	}
	return res.Value.Str(), nil
}

func (f *pageFlags) Set(key, value string) error {
	_, err := f.page.Timeout(3*time.Second).Eval(`(k, v) => window.localStorage.setItem(k, v)`, key, value)
	if err != nil {
		return fmt.Errorf("write page flag %q: %w", key, err)
	}
	return nil
}

// syncCookiesFromBrowser copies browser cookies to the HTTP client's jar so
// direct API calls ride the page's session.
func (e *Engine) syncCookiesFromBrowser() error {
	cookies, err := e.page.Cookies([]string{e.baseURL})
	if err != nil {
		return fmt.Errorf("get browser cookies: %w", err)
	}

	httpCookies := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		httpCookies = append(httpCookies, &http.Cookie{
			Name:    c.Name,
			Value:   c.Value,
			Domain:  c.Domain,
			Path:    c.Path,
			Expires: time.Unix(int64(c.Expires), 0),
		})
	}

	e.SetCookies(httpCookies)
	return nil
}

// AttachCookies loads saved cookies and pushes them onto the browser page so
// the watched session is authenticated with the target site.
func (e *Engine) AttachCookies(path string) error {
	if err := e.LoadCookies(path); err != nil {
		return fmt.Errorf("attach cookies: %w", err)
	}
	if e.page == nil {
		return nil
	}

	for _, c := range e.GetCookies() {
		if err := e.page.SetCookies([]*proto.NetworkCookieParam{{
			Name:   c.Name,
			Value:  c.Value,
			Domain: "." + siteURL.Hostname(),
			Path:   "/",
		}}); err != nil {
			return fmt.Errorf("set browser cookie %q: %w", c.Name, err)
		}
	}
	return nil
}

func (e *Engine) closeBrowser() error {
	if e.page != nil {
		if err := e.page.Close(); err != nil {
			return fmt.Errorf("close page: %w", err)
		}
		e.page = nil
	}
	if e.browser != nil {
		if err := e.browser.Close(); err != nil {
			return fmt.Errorf("close browser: %w", err)
		}
		e.browser = nil
	}
	return nil
}
