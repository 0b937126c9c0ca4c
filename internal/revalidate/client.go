package revalidate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Request lists the paths whose cached pages must be regenerated.
type Request struct {
	Paths  []string
	Reason string // logged, not sent
}

// DownstreamError is a failed call to the revalidation endpoint.
type DownstreamError struct {
	Status int
	Body   string
	Err    error
}

func (e *DownstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("revalidate: %v", e.Err)
	}
	return fmt.Sprintf("revalidate: status %d: %s", e.Status, e.Body)
}

func (e *DownstreamError) Unwrap() error { return e.Err }

type payload struct {
	Secret string   `json:"secret"`
	Paths  []string `json:"paths"`
	Type   string   `json:"type"`
}

// Client posts invalidation requests to the site's revalidation endpoint.
// It never retries; a failed call is returned to the caller once.
type Client struct {
	url        string
	secret     string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient returns a client for endpoint url. A nil httpClient gets one with timeout.
func NewClient(url, secret string, timeout time.Duration, httpClient *http.Client, log zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		url:        strings.TrimSpace(url),
		secret:     secret,
		httpClient: httpClient,
		log:        log.With().Str("component", "revalidate").Logger(),
	}
}

// Invalidate posts the path set. Any non-2xx status is a failure; the body is not interpreted.
func (c *Client) Invalidate(ctx context.Context, req Request) error {
	if len(req.Paths) == 0 {
		return nil
	}
	body, err := json.Marshal(payload{Secret: c.secret, Paths: req.Paths, Type: "path"})
	if err != nil {
		return &DownstreamError{Err: fmt.Errorf("marshal payload: %w", err)}
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return &DownstreamError{Err: fmt.Errorf("build request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &DownstreamError{Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &DownstreamError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	c.log.Debug().Strs("paths", req.Paths).Str("reason", req.Reason).Msg("paths revalidated")
	return nil
}
