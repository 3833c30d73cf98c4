package httpclient

import (
	"context"
	"net/http"
)

// DoOPTIONS probes the server and returns the DAV capability header,
// e.g. "1, 3, calendar-access, addressbook".
func (w *wrapper) DoOPTIONS(ctx context.Context, urlStr string) (string, error) {
	w.logger.Debug("starting OPTIONS request", "url", urlStr)

	resolvedURL, err := w.resolveURL(urlStr)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodOptions, resolvedURL.String(), nil)
	if err != nil {
		return "", err
	}

	resp, err := w.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, http.StatusOK, http.StatusNoContent); err != nil {
		return "", err
	}

	dav := resp.Header.Get("DAV")
	w.logger.Debug("OPTIONS request complete", "status", resp.Status, "dav", dav)
	return dav, nil
}
