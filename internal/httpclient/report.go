package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// DoREPORT executes a CalDAV/CardDAV REPORT request and returns the raw
// multistatus body.
func (w *wrapper) DoREPORT(ctx context.Context, urlStr string, depth int, body []byte) ([]byte, error) {
	w.logger.Debug("starting REPORT request",
		"url", urlStr,
		"depth", depth)

	resolvedURL, err := w.resolveURL(urlStr)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "REPORT", resolvedURL.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/xml; charset=utf-8")
	req.Header.Set("Depth", fmt.Sprintf("%d", depth))

	resp, err := w.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, http.StatusMultiStatus, http.StatusOK); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}

	w.logger.Debug("REPORT request complete", "status", resp.Status, "body_length", len(data))
	return data, nil
}
