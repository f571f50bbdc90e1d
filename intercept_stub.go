//go:build unittest

package ofstats

import (
	"context"
	"fmt"
)

func (e *Engine) InitBrowser() error {
	return fmt.Errorf("browser: %w (build tag: unittest)", ErrBrowserNotReady)
}

func (e *Engine) installHijack() {}

func (e *Engine) Watch(ctx context.Context, username string) error {
	return fmt.Errorf("watch: %w (build tag: unittest)", ErrBrowserNotReady)
}

func (e *Engine) AttachCookies(path string) error {
	return e.LoadCookies(path)
}

func (e *Engine) closeBrowser() error {
	e.page = nil
	e.browser = nil
	return nil
}
