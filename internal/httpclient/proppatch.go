package httpclient

import (
	"bytes"
	"context"
	"net/http"
)

// DoPROPPATCH updates properties on a collection.
func (w *wrapper) DoPROPPATCH(ctx context.Context, urlStr string, body []byte) error {
	w.logger.Debug("starting PROPPATCH request", "url", urlStr)

	resolvedURL, err := w.resolveURL(urlStr)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, "PROPPATCH", resolvedURL.String(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/xml; charset=utf-8")

	resp, err := w.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, http.StatusMultiStatus, http.StatusOK, http.StatusNoContent); err != nil {
		return err
	}

	w.logger.Debug("PROPPATCH request complete", "status", resp.Status)
	return nil
}
