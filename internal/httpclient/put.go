package httpclient

import (
	"bytes"
	"context"
	"net/http"
)

// DoPUT creates or updates a resource. A non-empty etag is sent as If-Match
// for optimistic locking; ifNoneMatch sends If-None-Match: * instead, so a
// create cannot overwrite an existing resource.
func (w *wrapper) DoPUT(ctx context.Context, urlStr, contentType, etag string, ifNoneMatch bool, data []byte) (newEtag string, err error) {
	w.logger.Debug("starting PUT request",
		"url", urlStr,
		"etag", etag,
		"data_length", len(data))

	resolvedURL, err := w.resolveURL(urlStr)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, resolvedURL.String(), bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", contentType)
	if etag != "" {
		req.Header.Set("If-Match", etag)
	} else if ifNoneMatch {
		req.Header.Set("If-None-Match", "*")
	}

	resp, err := w.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, http.StatusOK, http.StatusCreated, http.StatusNoContent); err != nil {
		return "", err
	}

	newEtag = resp.Header.Get("ETag")
	w.logger.Debug("PUT request complete",
		"status", resp.Status,
		"new_etag", newEtag)
	return newEtag, nil
}
