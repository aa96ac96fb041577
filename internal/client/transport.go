package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TransportError is the single failure type every backend call is normalized
// into: connection failures, non-2xx statuses and malformed response bodies
// all surface as one of these. Status is 0 when no HTTP response was received.
type TransportError struct {
	Backend string
	Status  int
	Detail  string
	Err     error
}

func (e *TransportError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Backend, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Backend, e.Detail)
}

func (e *TransportError) Unwrap() error { return e.Err }

// FileUpload is one streamed multipart file part. The reader is consumed, not
// buffered, so large audio inputs never sit whole in memory.
type FileUpload struct {
	Field    string
	Filename string
	Reader   io.Reader
}

// Transport performs requests against one backend's base URL. Every call is
// bounded by the per-request timeout; the per-job deadline is layered on top
// by the poller. The underlying connection pool is safe for concurrent use.
//
// No retries happen at this layer. Retry policy belongs to the poller for
// status queries; submissions are never silently retried, to avoid duplicate
// job creation.
type Transport struct {
	backend    string
	baseURL    string
	httpClient *http.Client
}

// NewTransport creates a transport for one backend.
func NewTransport(backend, baseURL string, timeout time.Duration) *Transport {
	return &Transport{
		backend:    backend,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Backend returns the backend name used in error and log messages.
func (t *Transport) Backend() string { return t.backend }

// BaseURL returns the configured base URL.
func (t *Transport) BaseURL() string { return t.baseURL }

// GetJSON performs a GET and decodes the JSON response into result.
func (t *Transport) GetJSON(ctx context.Context, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+path, nil)
	if err != nil {
		return t.wrap(0, "failed to create request", err)
	}
	return t.doJSON(req, result)
}

// PostJSON performs a POST with a JSON body and decodes the JSON response into
// result. result may be nil when the response body does not matter.
func (t *Transport) PostJSON(ctx context.Context, path string, body, result interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return t.wrap(0, "failed to marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return t.wrap(0, "failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return t.doJSON(req, result)
}

// PostMultipart performs a POST with form fields and streamed file parts, and
// decodes the JSON response into result. The multipart body is produced
// through a pipe so file content is streamed to the wire.
func (t *Transport) PostMultipart(ctx context.Context, path string, fields map[string]string, files []FileUpload, result interface{}) error {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		var err error
		defer func() { pw.CloseWithError(err) }()

		for key, val := range fields {
			if err = mw.WriteField(key, val); err != nil {
				return
			}
		}
		for _, f := range files {
			var part io.Writer
			part, err = mw.CreateFormFile(f.Field, f.Filename)
			if err != nil {
				return
			}
			if _, err = io.Copy(part, f.Reader); err != nil {
				return
			}
		}
		err = mw.Close()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, pr)
	if err != nil {
		return t.wrap(0, "failed to create request", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return t.doJSON(req, result)
}

// PostBinary performs a POST with a JSON body and streams the binary response
// to w. Used for backends that answer with the artifact itself. Returns the
// response content type.
func (t *Transport) PostBinary(ctx context.Context, path string, body interface{}, w io.Writer) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", t.wrap(0, "failed to marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return "", t.wrap(0, "failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return t.doBinary(req, w)
}

// Download performs a GET with optional query parameters and streams the
// binary response to w. Returns the response content type.
func (t *Transport) Download(ctx context.Context, path string, query url.Values, w io.Writer) (string, error) {
	u := t.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", t.wrap(0, "failed to create request", err)
	}
	return t.doBinary(req, w)
}

// Healthy performs a GET against the backend's health path. Any 2xx counts as
// reachable; the payload is ignored.
func (t *Transport) Healthy(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+path, nil)
	if err != nil {
		return t.wrap(0, "failed to create request", err)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return t.wrap(0, fmt.Sprintf("health check failed: %v", err), err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return t.wrap(resp.StatusCode, "unhealthy", nil)
	}
	return nil
}

// doJSON executes a request expecting a JSON response.
func (t *Transport) doJSON(req *http.Request, result interface{}) error {
	log.Printf("[%s] → %s %s", t.backend, req.Method, req.URL.String())

	resp, err := t.httpClient.Do(req)
	if err != nil {
		log.Printf("[%s] ✗ %s %s - request failed: %v", t.backend, req.Method, req.URL.String(), err)
		return t.wrap(0, fmt.Sprintf("request failed: %v", err), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return t.wrap(0, fmt.Sprintf("failed to read response: %v", err), err)
	}

	log.Printf("[%s] ← %d %s %s", t.backend, resp.StatusCode, req.Method, req.URL.String())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return t.wrap(resp.StatusCode, truncate(string(respBody), 512), nil)
	}

	if result == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		return t.wrap(resp.StatusCode, fmt.Sprintf("malformed response body: %v", err), err)
	}
	return nil
}

// doBinary executes a request and streams the response body to w.
func (t *Transport) doBinary(req *http.Request, w io.Writer) (string, error) {
	log.Printf("[%s] → %s %s", t.backend, req.Method, req.URL.String())

	resp, err := t.httpClient.Do(req)
	if err != nil {
		log.Printf("[%s] ✗ %s %s - request failed: %v", t.backend, req.Method, req.URL.String(), err)
		return "", t.wrap(0, fmt.Sprintf("request failed: %v", err), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", t.wrap(resp.StatusCode, truncate(string(respBody), 512), nil)
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return "", t.wrap(0, fmt.Sprintf("failed to stream response: %v", err), err)
	}
	return resp.Header.Get("Content-Type"), nil
}

func (t *Transport) wrap(status int, detail string, err error) *TransportError {
	return &TransportError{
		Backend: t.backend,
		Status:  status,
		Detail:  detail,
		Err:     err,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
