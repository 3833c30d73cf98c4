// Package httpclient performs authenticated WebDAV/CalDAV/CardDAV requests
// and normalizes failures: unexpected statuses become *HTTPError, transport
// failures become *NetworkError. It holds no state beyond its configuration.
package httpclient

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
)

// RewriteFunc lets the active provider adjust an outgoing request (extra
// headers, path tweaks) just before it is sent.
type RewriteFunc func(req *http.Request) error

// Wrapper wraps http.Client with the protocol verbs the services need.
type Wrapper interface {
	DoPROPFIND(ctx context.Context, url string, depth int, body []byte) ([]byte, error)
	DoREPORT(ctx context.Context, url string, depth int, body []byte) ([]byte, error)
	DoPUT(ctx context.Context, url, contentType, etag string, ifNoneMatch bool, data []byte) (newEtag string, err error)
	DoDELETE(ctx context.Context, url, etag string) error
	DoMKCALENDAR(ctx context.Context, url string, body []byte) error
	DoMKCOL(ctx context.Context, url string, body []byte) error
	DoPROPPATCH(ctx context.Context, url string, body []byte) error
	DoOPTIONS(ctx context.Context, url string) (davHeader string, err error)
}

type wrapper struct {
	client  *http.Client
	baseURL url.URL
	rewrite RewriteFunc
	logger  *slog.Logger
}

// NewWrapper creates a new client wrapper. The rewrite hook may be nil.
func NewWrapper(client *http.Client, baseURL url.URL, rewrite RewriteFunc, logger *slog.Logger) (Wrapper, error) {
	if client == nil {
		return nil, fmt.Errorf("http client is required")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &wrapper{client: client, baseURL: baseURL, rewrite: rewrite, logger: logger}, nil
}

// resolveURL resolves a URL string against the base URL.
func (w *wrapper) resolveURL(urlStr string) (*url.URL, error) {
	ref, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL %q: %w", urlStr, err)
	}
	return w.baseURL.ResolveReference(ref), nil
}

// do applies the provider rewrite hook and executes the request, folding
// transport failures into *NetworkError.
func (w *wrapper) do(req *http.Request) (*http.Response, error) {
	if w.rewrite != nil {
		if err := w.rewrite(req); err != nil {
			return nil, fmt.Errorf("provider rewrite failed: %w", err)
		}
	}
	resp, err := w.client.Do(req)
	if err != nil {
		w.logger.Debug("request failed", "method", req.Method, "url", req.URL.String(), "error", err)
		return nil, &NetworkError{Err: err}
	}
	return resp, nil
}

// checkStatus drains and closes the body when the status is not accepted.
func checkStatus(resp *http.Response, accepted ...int) error {
	for _, code := range accepted {
		if resp.StatusCode == code {
			return nil
		}
	}
	return &HTTPError{Code: resp.StatusCode, Status: resp.Status}
}
