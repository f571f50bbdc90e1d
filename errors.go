package ofstats

import "errors"

var (
	ErrRateLimited     = errors.New("ofstats: rate limited")
	ErrNotFound        = errors.New("ofstats: not found")
	ErrAuthRequired    = errors.New("ofstats: authentication required")
	ErrBrowserNotReady = errors.New("ofstats: browser not initialized")
	ErrInvalidResponse = errors.New("ofstats: invalid response")
	ErrBackend         = errors.New("ofstats: backend request failed")
)
