// Package hub implements the client for the remote template hub.
//
// Two endpoints are involved: an authenticated publish endpoint that accepts
// the public download URL of a staged template, and a per-submission status
// endpoint that reports validation progress. Publish requests fail fast on
// any non-200 response; status checks are idempotent GETs and ride through
// transient network failures on a retrying transport.
package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/pithecene-io/stencil/iox"
	"github.com/pithecene-io/stencil/types"
)

const (
	publishPath      = "/activator/template/publish"
	statusPathPrefix = "/activator/template/status/"

	// statusLinkRel is the link relation carrying the status URL in the
	// publish response. Older hub deployments omit it.
	statusLinkRel = "activator/templates/status"
)

// DefaultTimeout is the default per-request timeout.
const DefaultTimeout = 30 * time.Second

// Config configures the hub client.
type Config struct {
	// Host is the hub base URL, e.g. "https://templates.example.com" (required).
	Host string
	// User and Password are the basic-auth credentials (both required).
	User     string
	Password string
	// Timeout is the per-request timeout (default 30s).
	Timeout time.Duration
	// StatusRetries is the number of transport-level retries for status
	// checks. Publish requests are never retried.
	StatusRetries int
}

// Client talks to the remote template hub.
// Safe for concurrent use; one instance is shared across a whole batch.
type Client struct {
	config Config

	// publishClient fails fast: a rejected publish is a hard error for
	// that artifact, never retried.
	publishClient *http.Client
	// statusClient retries transient network failures. Status checks are
	// idempotent, so this is safe during an hour-long poll.
	statusClient *http.Client
}

// New creates a hub client from the given config.
// Missing host or credentials are rejected here, before any network activity.
func New(cfg Config) (*Client, error) {
	if cfg.Host == "" {
		return nil, errors.New("hub client requires a host")
	}
	if cfg.User == "" || cfg.Password == "" {
		return nil, errors.New("hub client requires basic-auth credentials")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.StatusRetries < 0 {
		return nil, fmt.Errorf("status retries must be >= 0, got %d", cfg.StatusRetries)
	}
	cfg.Host = strings.TrimSuffix(cfg.Host, "/")

	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.StatusRetries
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.Logger = nil

	return &Client{
		config:        cfg,
		publishClient: &http.Client{Timeout: cfg.Timeout},
		statusClient:  rc.StandardClient(),
	}, nil
}

// StatusError is returned for non-200 hub responses. Carrying the code and
// body lets callers log the rejection verbatim and distinguish protocol
// failures from validation failures.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// publishResponse mirrors the hub publish response body.
type publishResponse struct {
	UUID  string          `json:"uuid"`
	Links map[string]link `json:"_links"`
}

type link struct {
	Href string `json:"href"`
}

// Publish submits the staged template at downloadURL for validation and
// returns the handle to poll. Any non-200 response is a hard error carrying
// the status code and response body; there is no retry.
func (c *Client) Publish(ctx context.Context, downloadURL string) (types.TrackingHandle, error) {
	form := url.Values{}
	form.Set("url", downloadURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Host+publishPath, strings.NewReader(form.Encode()))
	if err != nil {
		return types.TrackingHandle{}, fmt.Errorf("create publish request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.config.User, c.config.Password)

	resp, err := c.publishClient.Do(req)
	if err != nil {
		return types.TrackingHandle{}, fmt.Errorf("publish request failed: %w", err)
	}
	defer iox.DiscardClose(resp.Body)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.TrackingHandle{}, fmt.Errorf("read publish response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return types.TrackingHandle{}, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	var pr publishResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return types.TrackingHandle{}, fmt.Errorf("decode publish response: %w", err)
	}
	if pr.UUID == "" {
		return types.TrackingHandle{}, errors.New("publish response missing uuid")
	}

	return types.TrackingHandle{ID: pr.UUID, StatusURL: c.statusURL(pr)}, nil
}

// statusURL prefers the hub-provided status link and falls back to the
// known path template when the link is absent.
func (c *Client) statusURL(pr publishResponse) string {
	if l, ok := pr.Links[statusLinkRel]; ok && l.Href != "" {
		return l.Href
	}
	return c.StatusURLFor(pr.UUID)
}

// StatusURLFor synthesizes the status URL for a tracking identifier.
func (c *Client) StatusURLFor(id string) string {
	return c.config.Host + statusPathPrefix + id
}

// Status performs a single status check for handle.
// The Accept header prefers JSON; legacy hub deployments reply with an HTML
// status page instead, which falls back to marker parsing.
func (c *Client) Status(ctx context.Context, handle types.TrackingHandle) (types.TemplateStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, handle.StatusURL, nil)
	if err != nil {
		return types.TemplateStatus{}, fmt.Errorf("create status request: %w", err)
	}
	req.Header.Set("Accept", "application/json, text/html;q=0.5")
	req.SetBasicAuth(c.config.User, c.config.Password)

	resp, err := c.statusClient.Do(req)
	if err != nil {
		return types.TemplateStatus{}, fmt.Errorf("status request failed: %w", err)
	}
	defer iox.DiscardClose(resp.Body)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.TemplateStatus{}, fmt.Errorf("read status response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return types.TemplateStatus{}, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	return parseStatus(handle.ID, resp.Header.Get("Content-Type"), body)
}

// parseStatus dispatches between the structured and legacy response shapes.
// Some hub deployments ignore the Accept header and reply with JSON under a
// generic content type, so the body shape is probed as well.
func parseStatus(id, contentType string, body []byte) (types.TemplateStatus, error) {
	if strings.Contains(contentType, "application/json") {
		return parseJSONStatus(id, body)
	}
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '{' {
		return parseJSONStatus(id, body)
	}
	return parseLegacyStatus(id, string(body))
}

// statusResponse mirrors the structured status response body.
type statusResponse struct {
	Status string   `json:"status"`
	Errors []string `json:"errors"`
}

func parseJSONStatus(id string, body []byte) (types.TemplateStatus, error) {
	var sr statusResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return types.TemplateStatus{}, fmt.Errorf("decode status response: %w", err)
	}

	switch state := types.TemplateState(sr.Status); state {
	case types.StatePending, types.StateValidated:
		return types.TemplateStatus{ID: id, State: state}, nil
	case types.StateFailed:
		return types.TemplateStatus{ID: id, State: state, Errors: sr.Errors}, nil
	default:
		return types.TemplateStatus{}, fmt.Errorf("unknown template status %q", sr.Status)
	}
}

// Close releases client resources.
// Invoke when the batch concludes, success or failure.
func (c *Client) Close() error {
	c.publishClient.CloseIdleConnections()
	c.statusClient.CloseIdleConnections()
	return nil
}
