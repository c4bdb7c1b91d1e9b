package xmlrpc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// Transport exchanges an encoded XML-RPC request for a response.
type Transport interface {
	// Send transmits the request body to addr. It returns the response body
	// and its length (-1 if unknown). The body must be closed by the caller.
	Send(ctx context.Context, addr string, body []byte) (io.ReadCloser, int64, error)
}

// HTTPError is returned for HTTP responses with a status other than 2xx.
type HTTPError struct {
	StatusCode int
	Status     string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return "HTTP request failed with code: " + e.Status
}

// ClientError reports a 4xx status.
func (e *HTTPError) ClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// HTTPTransport posts requests with an HTTP client. Compressed responses are
// decoded by the HTTP client.
type HTTPTransport struct {
	// Client is used for the requests. If nil, http.DefaultClient is used.
	Client *http.Client
	// UserAgent is sent, if not empty.
	UserAgent string
	// Header contains additional request headers.
	Header http.Header
}

// Send implements Transport.
func (t *HTTPTransport) Send(ctx context.Context, addr string, body []byte) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, addr, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("Invalid HTTP request for %s: %w", addr, err)
	}
	for k, vs := range t.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "text/xml")
	if t.UserAgent != "" {
		req.Header.Set("User-Agent", t.UserAgent)
	}
	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("HTTP request failed on %s: %w", addr, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, 0, &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status}
	}
	return resp.Body, resp.ContentLength, nil
}
