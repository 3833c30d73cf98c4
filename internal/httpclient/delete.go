package httpclient

import (
	"context"
	"net/http"
)

// DoDELETE sends a DELETE request with an optional If-Match header. 404 is
// treated as success: deleting an already-gone resource is idempotent.
func (w *wrapper) DoDELETE(ctx context.Context, urlStr, etag string) error {
	w.logger.Debug("starting DELETE request",
		"url", urlStr,
		"etag", etag)

	resolvedURL, err := w.resolveURL(urlStr)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, resolvedURL.String(), nil)
	if err != nil {
		return err
	}
	if etag != "" {
		req.Header.Set("If-Match", etag)
	}

	resp, err := w.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, http.StatusOK, http.StatusNoContent, http.StatusNotFound); err != nil {
		return err
	}

	w.logger.Debug("DELETE request complete", "status", resp.Status)
	return nil
}
