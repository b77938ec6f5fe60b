// Package workflow talks to the external workflow engine: it starts runs,
// relays human decisions to paused runs and triggers publishing.
package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultTimeout    = 10 * time.Second
	healthTimeout     = 3 * time.Second
	maxErrorBodyBytes = 4 << 10
	maxBodyBytes      = 1 << 20
)

// Outcome classifies a single outbound call.
type Outcome string

const (
	OutcomeSuccess       Outcome = "success"
	OutcomeTimeout       Outcome = "timeout"
	OutcomeUpstreamError Outcome = "upstream_error"
)

// Result is the value every outbound call returns. Calls are single-attempt;
// a failed Result never implies anything about ledger state.
type Result struct {
	Outcome    Outcome         `json:"outcome"`
	StatusCode int             `json:"statusCode,omitempty"`
	Body       json.RawMessage `json:"-"`
	Err        error           `json:"-"`
}

// OK reports whether the engine accepted the call.
func (r Result) OK() bool { return r.Outcome == OutcomeSuccess }

// Message is a short description of a failed call.
func (r Result) Message() string {
	if r.Err == nil {
		return string(r.Outcome)
	}
	return r.Err.Error()
}

// StartRequest carries the parameters of a new pipeline run.
type StartRequest struct {
	SessionID          int64           `json:"sessionId"`
	ChatID             int64           `json:"chatId"`
	UserLogin          string          `json:"userLogin"`
	ProductName        string          `json:"productName"`
	ProductArticles    json.RawMessage `json:"productArticles"`
	Marketplace        string          `json:"marketplace"`
	ProductDescription string          `json:"productDescription"`
}

// Decision is a human decision relayed to a paused run.
type Decision struct {
	Action    string `json:"action"`
	IdeaIndex *int   `json:"ideaIndex,omitempty"`
}

// PublishRequest asks the engine to publish a finished session.
type PublishRequest struct {
	SessionID       int64    `json:"session_id"`
	Channels        []string `json:"channels"`
	Caption         string   `json:"caption"`
	GenerateCaption bool     `json:"generate_caption"`
}

// Config locates the engine endpoints.
type Config struct {
	BaseURL        string
	StartPath      string
	PublishPath    string
	Timeout        time.Duration
	PublishTimeout time.Duration
}

// Client is the outbound engine client.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        zerolog.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the transport. Per-call timeouts still apply.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient builds a client; zero timeouts fall back to ten seconds.
func NewClient(cfg Config, log zerolog.Logger, opts ...Option) *Client {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = cfg.Timeout
	}
	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{},
		log:        log.With().Str("component", "workflow").Logger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Start triggers a new pipeline run for a session.
func (c *Client) Start(ctx context.Context, req StartRequest) Result {
	if len(req.ProductArticles) == 0 {
		req.ProductArticles = json.RawMessage(`[]`)
	}
	res := c.post(ctx, c.cfg.BaseURL+c.cfg.StartPath, req, c.cfg.Timeout)
	c.report("start", req.SessionID, res)
	return res
}

// Resume delivers a decision to the wait point a paused run registered.
func (c *Client) Resume(ctx context.Context, sessionID int64, resumeURL string, decision Decision) Result {
	res := c.post(ctx, strings.TrimSpace(resumeURL), decision, c.cfg.Timeout)
	c.report("resume", sessionID, res)
	return res
}

// Publish asks the engine to publish a session through its channels.
func (c *Client) Publish(ctx context.Context, req PublishRequest) Result {
	res := c.post(ctx, c.cfg.BaseURL+c.cfg.PublishPath, req, c.cfg.PublishTimeout)
	c.report("publish", req.SessionID, res)
	return res
}

// Healthy probes the engine health endpoint.
func (c *Client) Healthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/healthz", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodyBytes))
	return resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices
}

func (c *Client) post(ctx context.Context, url string, payload any, timeout time.Duration) Result {
	if url == "" {
		return Result{Outcome: OutcomeUpstreamError, Err: errors.New("workflow url is empty")}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Result{Outcome: OutcomeUpstreamError, Err: fmt.Errorf("marshal payload: %w", err)}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Result{Outcome: OutcomeUpstreamError, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Result{Outcome: OutcomeTimeout, Err: fmt.Errorf("post %s: timed out after %s", url, timeout)}
		}
		return Result{Outcome: OutcomeUpstreamError, Err: fmt.Errorf("post %s: %w", url, err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		res := Result{Outcome: OutcomeSuccess, StatusCode: resp.StatusCode}
		if json.Valid(raw) {
			res.Body = raw
		}
		return res
	}

	errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	return Result{
		Outcome:    OutcomeUpstreamError,
		StatusCode: resp.StatusCode,
		Err:        fmt.Errorf("post %s: status=%d body=%q", url, resp.StatusCode, strings.TrimSpace(string(errorBody))),
	}
}

func (c *Client) report(call string, sessionID int64, res Result) {
	if res.OK() {
		c.log.Debug().Str("call", call).Int64("session_id", sessionID).Int("status", res.StatusCode).Msg("workflow call ok")
		return
	}
	c.log.Warn().
		Str("call", call).
		Int64("session_id", sessionID).
		Str("outcome", string(res.Outcome)).
		Int("status", res.StatusCode).
		Err(res.Err).
		Msg("workflow call failed")
}
