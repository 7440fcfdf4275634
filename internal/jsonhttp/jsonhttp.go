// Package jsonhttp contains the small HTTP helpers shared by the remote
// services: JSON requests, status errors and request logging.
package jsonhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// StatusError is returned for a response whose status is not 2xx.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Status string
	Body   string // first bytes of the body, for the message
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("cannot http %s %s: %s", e.Method, e.URL, e.Status)
	}
	return fmt.Sprintf("cannot http %s %s: %s: %s", e.Method, e.URL, e.Status, e.Body)
}

// Temporary reports whether retrying the same request may succeed.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= http.StatusInternalServerError
}

// loggingTransport logs every round trip at debug level.
type loggingTransport struct {
	base   http.RoundTripper
	logger *slog.Logger
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		t.logger.Debug("http request failed", "method", req.Method, "host", req.URL.Host, "path", req.URL.Path, "error", err)
		return nil, err
	}
	t.logger.Debug("http request", "method", req.Method, "host", req.URL.Host, "path", req.URL.Path, "status", resp.StatusCode, "elapsed", time.Since(start))
	return resp, nil
}

// NewClient returns a client logging its requests to logger (nil means
// slog.Default()) and giving up after timeout.
func NewClient(logger *slog.Logger, timeout time.Duration) *http.Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: &loggingTransport{base: http.DefaultTransport, logger: logger},
	}
}

// Do sends a request with an optional JSON body and decodes a JSON response
// into out, unless out is nil. Non-2xx statuses are returned as *StatusError.
func Do(ctx context.Context, client *http.Client, method, addr string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("cannot encode %s %s request: %w", method, addr, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, addr, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{
			Method: method,
			URL:    addr,
			Code:   resp.StatusCode,
			Status: resp.Status,
			Body:   string(bytes.TrimSpace(snippet)),
		}
	}
	if out == nil {
		return nil
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return fmt.Errorf("cannot read %s %s response: %w", method, addr, err)
	}
	if err := json.Unmarshal(buf.Bytes(), out); err != nil {
		return fmt.Errorf("cannot decode %s %s response: %w", method, addr, err)
	}
	return nil
}

// Get is Do for a GET without body.
func Get(ctx context.Context, client *http.Client, addr string, out any) error {
	return Do(ctx, client, http.MethodGet, addr, nil, out)
}
