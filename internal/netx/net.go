// Package netx contains small HTTP helpers used by the asset store.
package netx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// HTTPDoer is satisfied by *http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// UploadToPresignedURL PUTs data to a presigned object-storage URL.
// Any non-2xx response is returned as an error carrying the response body.
func UploadToPresignedURL(ctx context.Context, client HTTPDoer, url, contentType string, data []byte) error {
	if client == nil {
		client = http.DefaultClient
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(resp.Body)
		return &UploadError{Status: resp.StatusCode, Body: string(b)}
	}
	return nil
}

// UploadError is returned for non-2xx upload responses.
type UploadError struct {
	Status int
	Body   string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload failed: HTTP %d; body: %s", e.Status, e.Body)
}
