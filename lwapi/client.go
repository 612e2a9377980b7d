// Package lwapi is a typed client for the lw chat HTTP service. Every call
// POSTs JSON and gets back the common `{code, message, data}` envelope;
// failures are classified into network, protocol, and business errors so the
// session lifecycle layers can decide what is retryable.
package lwapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	defaultTimeout = 10 * time.Second
	wxidHeader     = "X-Wxid"
	successCode    = 200
)

type Config struct {
	// BaseURL is the service root, e.g. "http://localhost:8081". API paths
	// are joined under "/api/".
	BaseURL string
	// Timeout bounds a single request including the long-poll hold time.
	Timeout time.Duration
}

func (c Config) apiURL(path string) string {
	return strings.TrimRight(c.BaseURL, "/") + "/api/" + strings.TrimLeft(path, "/")
}

type Client struct {
	cfg     Config
	http    *http.Client
	session *Session
}

// NewClient builds a client with a fresh, logged-out session. Supervision
// loops create one per login cycle so a failed cycle never leaks state into
// the next.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{},
		session: &Session{},
	}
}

func (c *Client) Session() *Session { return c.session }

func (c *Client) BaseURL() string { return c.cfg.BaseURL }

// post issues one API call. out, when non-nil, receives the envelope's data
// payload; each call site declares the shape it expects.
func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	op := strings.TrimLeft(path, "/")
	if body == nil {
		body = struct{}{}
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("lwapi: %s: encode request: %w", op, err)
	}

	reqCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.cfg.apiURL(path), bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("lwapi: %s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if wxid := c.session.Wxid(); wxid != "" {
		req.Header.Set(wxidHeader, wxid)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return &NetworkError{Op: op, Err: readErr}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &ProtocolError{Op: op, StatusCode: resp.StatusCode, Body: truncateBody(raw)}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &ProtocolError{Op: op, Body: truncateBody(raw)}
	}
	if env.Code != successCode {
		return &BusinessError{Op: op, Code: env.Code, Message: env.Message}
	}
	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return &ProtocolError{Op: op, Body: truncateBody(env.Data)}
		}
	}
	return nil
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func truncateBody(raw []byte) string {
	const max = 512
	s := strings.TrimSpace(string(raw))
	if len(s) > max {
		return s[:max] + "...(truncated)"
	}
	return s
}

// IsTimeout reports whether err is a network error caused by an elapsed
// request deadline. The message poller treats these as the long poll's normal
// idle outcome.
func IsTimeout(err error) bool {
	var ne *NetworkError
	if !errors.As(err, &ne) {
		return false
	}
	if errors.Is(ne.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(ne.Err, &netErr) && netErr.Timeout()
}
