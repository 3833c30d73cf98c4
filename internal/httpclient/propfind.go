package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// DoPROPFIND performs a PROPFIND request and returns the raw multistatus
// body. The caller parses it; this layer only validates the envelope.
func (w *wrapper) DoPROPFIND(ctx context.Context, urlStr string, depth int, body []byte) ([]byte, error) {
	w.logger.Debug("starting PROPFIND request",
		"url", urlStr,
		"depth", depth)

	resolvedURL, err := w.resolveURL(urlStr)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "PROPFIND", resolvedURL.String(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Depth", fmt.Sprintf("%d", depth))
	req.Header.Set("Content-Type", "application/xml; charset=utf-8")

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

	w.logger.Debug("PROPFIND request complete", "status", resp.Status, "body_length", len(data))
	return data, nil
}
