package httpclient

import (
	"bytes"
	"context"
	"net/http"
)

// DoMKCALENDAR creates a calendar collection (RFC 4791 section 5.3.1).
func (w *wrapper) DoMKCALENDAR(ctx context.Context, urlStr string, body []byte) error {
	return w.doMake(ctx, "MKCALENDAR", urlStr, body)
}

// DoMKCOL creates a generic collection; with an extended MKCOL body it
// creates an address book (RFC 5689).
func (w *wrapper) DoMKCOL(ctx context.Context, urlStr string, body []byte) error {
	return w.doMake(ctx, "MKCOL", urlStr, body)
}

func (w *wrapper) doMake(ctx context.Context, method, urlStr string, body []byte) error {
	w.logger.Debug("starting collection create",
		"method", method,
		"url", urlStr)

	resolvedURL, err := w.resolveURL(urlStr)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, resolvedURL.String(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/xml; charset=utf-8")
	}

	resp, err := w.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, http.StatusCreated, http.StatusOK, http.StatusNoContent); err != nil {
		return err
	}

	w.logger.Debug("collection create complete", "method", method, "status", resp.Status)
	return nil
}
