// Package backendclient contains the HTTP clients for the remote
// collaborators of the checkout core: the order backend, the payment
// backend, and the cart store.
package backendclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// RequestTimeout bounds every collaborator call so a hung backend cannot
// block the customer indefinitely.
const RequestTimeout = 8 * time.Second

// maxErrorBody caps how much of an error response body is kept for messages.
const maxErrorBody = 512

// StatusError reports a non-2xx collaborator response.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Body)
}

// newHTTPClient builds the shared client: bounded timeout, traced transport.
func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout:   RequestTimeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// do issues the request and returns the response body. Non-2xx responses
// become a StatusError carrying a body snippet.
func do(ctx context.Context, client *http.Client, method, url string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "do request")
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := string(data)
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return nil, &StatusError{Status: resp.StatusCode, Body: snippet}
	}
	return data, nil
}
