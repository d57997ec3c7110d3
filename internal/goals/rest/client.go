// Package rest talks to the remote goals REST API.
//
// Endpoints:
//
//	GET    {base}/goals       list
//	POST   {base}/goals       create from a draft
//	PATCH  {base}/goals/{id}  full update or {savedAmount} deposit
//	DELETE {base}/goals/{id}  delete
//
// Any non-2xx status is a *StatusError; error bodies are never parsed.
package rest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"goalplanner/internal/core"
	"goalplanner/internal/goals"
)

// DefaultTimeout bounds a whole request including reading the body.
const DefaultTimeout = 15 * time.Second

const maxResponseBytes = 4 << 20

// Operation names, used to pick the failure message.
const (
	OpFetch   = "fetch goals"
	OpAdd     = "add goal"
	OpUpdate  = "update goal"
	OpDelete  = "delete goal"
	OpDeposit = "make deposit"
)

// StatusError reports a non-2xx response.
type StatusError struct {
	Op         string
	StatusCode int
}

func (e *StatusError) Error() string {
	return "Failed to " + e.Op
}

// Client implements goals.Backend over HTTP.
type Client struct {
	baseURL *url.URL
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the pooled default client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the overall per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// New creates a client for the API rooted at baseURL, e.g. "http://localhost:3000".
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, fmt.Errorf("goals api url is empty")
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse goals api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("goals api url %q: scheme must be http or https", baseURL)
	}
	c := &Client{baseURL: u, http: newHTTPClientWithPooling()}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// newHTTPClientWithPooling keeps connections to the single API host alive between calls.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: DefaultTimeout}
}

func (c *Client) ListGoals(ctx context.Context) ([]core.Goal, error) {
	var payload []goalJSON
	if err := c.do(ctx, OpFetch, http.MethodGet, "goals", nil, &payload); err != nil {
		return nil, err
	}
	out := make([]core.Goal, 0, len(payload))
	// A record with a malformed date is kept with that date left empty.
	for _, gj := range payload {
		g, err := gj.decode()
		if err != nil {
			slog.WarnContext(ctx, "Goal with malformed date",
				"component", "goals_rest", "goal_id", g.ID, "error", err)
		}
		out = append(out, g)
	}
	return out, nil
}

func (c *Client) CreateGoal(ctx context.Context, d core.Draft) (core.Goal, error) {
	return c.goalCall(ctx, OpAdd, http.MethodPost, "goals", toDraftJSON(d))
}

func (c *Client) PatchGoal(ctx context.Context, id string, p core.GoalPatch) (core.Goal, error) {
	op := OpUpdate
	if p.IsDeposit() {
		op = OpDeposit
	}
	return c.goalCall(ctx, op, http.MethodPatch, "goals/"+url.PathEscape(id), toPatchJSON(p))
}

func (c *Client) DeleteGoal(ctx context.Context, id string) error {
	return c.do(ctx, OpDelete, http.MethodDelete, "goals/"+url.PathEscape(id), nil, nil)
}

func (c *Client) goalCall(ctx context.Context, op, method, path string, body any) (core.Goal, error) {
	var gj goalJSON
	if err := c.do(ctx, op, method, path, body, &gj); err != nil {
		return core.Goal{}, err
	}
	g, err := gj.toCore()
	if err != nil {
		return core.Goal{}, fmt.Errorf("decode goal: %w", err)
	}
	return g, nil
}

// do sends one request. body is JSON-encoded when non-nil; out is decoded from a
// 2xx response when non-nil.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", op, err)
		}
		reader = bytes.NewReader(b)
	}

	endpoint := c.baseURL.JoinPath(path).String()
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		slog.WarnContext(ctx, "Goals API request failed",
			"component", "goals_rest", "method", method, "path", path, "error", err)
		return fmt.Errorf("Failed to %s: %w", op, err)
	}
	defer resp.Body.Close()

	slog.DebugContext(ctx, "Goals API request",
		"component", "goals_rest",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return &StatusError{Op: op, StatusCode: resp.StatusCode}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

// Interface conformance.
var _ goals.Backend = (*Client)(nil)
