// Package api is the HTTP client for the comparison and chat backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"cetcompare/internal/compare"
)

const (
	// DefaultAPIURL is where the backend serves its general endpoints.
	DefaultAPIURL = "http://localhost:5000/api"
	// DefaultTimeout bounds every request.
	DefaultTimeout = 30 * time.Second

	maxBodyBytes   = 10 << 20
	timeoutMessage = "The request timed out. Please try again."
)

// Config locates the backend. The comparison endpoints and the general
// endpoints have separate bases; CompareURL defaults to APIURL + "/compare".
type Config struct {
	APIURL     string
	CompareURL string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client talks to the backend. It implements compare.Backend.
type Client struct {
	apiURL     *url.URL
	compareURL *url.URL
	http       *http.Client
	logger     *zap.Logger
}

var _ compare.Backend = (*Client)(nil)

// NewClient validates cfg and returns a client.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.CompareURL == "" {
		cfg.CompareURL = strings.TrimRight(cfg.APIURL, "/") + "/compare"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	apiURL, err := parseBase(cfg.APIURL)
	if err != nil {
		return nil, fmt.Errorf("invalid api url: %w", err)
	}
	compareURL, err := parseBase(cfg.CompareURL)
	if err != nil {
		return nil, fmt.Errorf("invalid compare url: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		apiURL:     apiURL,
		compareURL: compareURL,
		http:       httpClient,
		logger:     logger,
	}, nil
}

func parseBase(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.New("missing host")
	}
	return u, nil
}

// SearchColleges lists colleges whose name or city contains query.
func (c *Client) SearchColleges(ctx context.Context, query string) ([]compare.College, error) {
	params := url.Values{}
	if query != "" {
		params.Set("query", query)
	}
	body, err := c.do(ctx, "search colleges", http.MethodGet, c.buildURL(c.compareURL, "/colleges", params), nil)
	if err != nil {
		return nil, err
	}

	var colleges []compare.College
	if err := decodeList(body, "colleges", &colleges); err != nil {
		return nil, fmt.Errorf("search colleges: %w", err)
	}
	return colleges, nil
}

// Branches returns the branches offered across collegeCodes.
func (c *Client) Branches(ctx context.Context, collegeCodes []string) ([]compare.Branch, error) {
	body, err := c.do(ctx, "load branches", http.MethodPost, c.buildURL(c.compareURL, "/branches", nil),
		BranchesRequest{CollegeCodes: collegeCodes})
	if err != nil {
		return nil, err
	}

	var branches []compare.Branch
	if err := decodeList(body, "branches", &branches); err != nil {
		return nil, fmt.Errorf("load branches: %w", err)
	}
	return branches, nil
}

// Compare requests trend data for the colleges in req. A 2xx body
// without "success": true is reported as a ServerError.
func (c *Client) Compare(ctx context.Context, req compare.Request) (*compare.ComparisonResult, error) {
	const op = "compare colleges"
	body, err := c.do(ctx, op, http.MethodPost, c.buildURL(c.compareURL, "/compare", nil), req)
	if err != nil {
		return nil, err
	}
	if err := requireSuccess(op, body); err != nil {
		return nil, err
	}

	var resp CompareResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%s: failed to parse response: %w", op, err)
	}
	if resp.Data == nil {
		return nil, &ServerError{Op: op, Status: http.StatusOK, Message: "Comparison returned no data"}
	}
	return resp.Data, nil
}

// CompareHealth reports whether comparison data is loaded.
func (c *Client) CompareHealth(ctx context.Context) (*CompareHealth, error) {
	body, err := c.do(ctx, "comparison health", http.MethodGet, c.buildURL(c.compareURL, "/health", nil), nil)
	if err != nil {
		return nil, err
	}
	var h CompareHealth
	if err := json.Unmarshal(body, &h); err != nil {
		return nil, fmt.Errorf("comparison health: failed to parse response: %w", err)
	}
	return &h, nil
}

// Health probes the backend root health endpoint.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	body, err := c.do(ctx, "health", http.MethodGet, c.buildURL(c.apiURL, "/health", nil), nil)
	if err != nil {
		return nil, err
	}
	var h Health
	if err := json.Unmarshal(body, &h); err != nil {
		return nil, fmt.Errorf("health: failed to parse response: %w", err)
	}
	return &h, nil
}

// ChatStatus reports whether the assistant is configured.
func (c *Client) ChatStatus(ctx context.Context) (*ChatStatus, error) {
	body, err := c.do(ctx, "chat status", http.MethodGet, c.buildURL(c.apiURL, "/chat/status", nil), nil)
	if err != nil {
		return nil, err
	}
	var s ChatStatus
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, fmt.Errorf("chat status: failed to parse response: %w", err)
	}
	return &s, nil
}

// Chat sends a message with prior exchanges and returns the reply.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	const op = "chat"
	body, err := c.do(ctx, op, http.MethodPost, c.buildURL(c.apiURL, "/chat", nil), req)
	if err != nil {
		return nil, err
	}
	if err := requireSuccess(op, body); err != nil {
		return nil, err
	}
	var resp ChatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%s: failed to parse response: %w", op, err)
	}
	return &resp, nil
}

// ClearChat drops the server-side history of a conversation.
func (c *Client) ClearChat(ctx context.Context, conversationID string) error {
	_, err := c.do(ctx, "clear chat", http.MethodPost, c.buildURL(c.apiURL, "/chat/clear", nil),
		ClearChatRequest{ConversationID: conversationID})
	return err
}

func (c *Client) buildURL(base *url.URL, path string, params url.Values) string {
	u := *base
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}
	return u.String()
}

// do sends one request and returns the body of a 2xx response. Every
// failure comes back as a *NetworkError or a *ServerError.
func (c *Client) do(ctx context.Context, op, method, target string, payload any) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to encode request: %w", op, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("request failed",
			zap.String("op", op), zap.String("url", target), zap.String("request_id", requestID), zap.Error(err))
		if isTimeout(err) {
			return nil, &ServerError{Op: op, Message: timeoutMessage, Timeout: true}
		}
		return nil, &NetworkError{Op: op, URL: target, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if isTimeout(err) {
			return nil, &ServerError{Op: op, Status: resp.StatusCode, Message: timeoutMessage, Timeout: true}
		}
		return nil, &NetworkError{Op: op, URL: target, Err: err}
	}

	c.logger.Debug("request complete",
		zap.String("op", op),
		zap.String("method", method),
		zap.String("url", target),
		zap.Int("status", resp.StatusCode),
		zap.String("request_id", requestID),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ServerError{Op: op, Status: resp.StatusCode, Message: errorMessage(body)}
	}
	return body, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func requireSuccess(op string, body []byte) error {
	if gjson.GetBytes(body, "success").Bool() {
		return nil
	}
	return &ServerError{Op: op, Status: http.StatusOK, Message: errorMessage(body)}
}

// decodeList accepts either a bare JSON array or an object holding the
// array under field. An explicit "success": false is a server error.
func decodeList(body []byte, field string, out any) error {
	if !gjson.ValidBytes(body) {
		return errors.New("response is not valid JSON")
	}
	parsed := gjson.ParseBytes(body)
	if parsed.IsArray() {
		return json.Unmarshal(body, out)
	}

	if ok := parsed.Get("success"); ok.Exists() && !ok.Bool() {
		return &ServerError{Status: http.StatusOK, Message: errorMessage(body)}
	}
	list := parsed.Get(field)
	if !list.Exists() || list.Type == gjson.Null {
		return nil
	}
	if !list.IsArray() {
		return fmt.Errorf("field %q is not a list", field)
	}
	return json.Unmarshal([]byte(list.Raw), out)
}
