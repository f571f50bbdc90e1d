package ofstats

import (
	"bytes"
	"io"
	"net/http"

	"go.uber.org/zap"
)

// observingTransport decorates an http.RoundTripper. It holds an explicit
// reference to the original and delegates every call to it unchanged; only
// after the real round trip completes does it inspect a copy of the response.
// The caller always receives the original response whatever the inspection
// does; that is the hard requirement of the interception layer.
type observingTransport struct {
	base   http.RoundTripper
	engine *Engine
}

func (t *observingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil || resp == nil {
		return resp, err
	}
	t.engine.inspectResponse(req.URL.String(), resp)
	return resp, err
}

// inspectResponse classifies the URL and, on a match, feeds a copy of the
// body through the pipeline. The body is read out and restored so the
// caller's own consumption of the stream is unaffected, and the pipeline
// itself runs as a continuation on a recovered goroutine: probe round trips
// must never block the caller's request. Any failure here, panics included,
// is swallowed.
func (e *Engine) inspectResponse(rawURL string, resp *http.Response) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Debug("interception fault", zap.Any("panic", r), zap.String("url", rawURL))
		}
	}()

	if !IsProfileURL(rawURL) {
		return
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil {
		e.log.Debug("read intercepted body", zap.Error(err), zap.String("url", rawURL))
		return
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				e.log.Debug("interception fault", zap.Any("panic", r), zap.String("url", rawURL))
			}
		}()
		e.handleResponse(rawURL, body)
	}()
}
