package upstream

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"mercator-hq/difyrelay/pkg/telemetry/tracing"
)

const (
	chatMessagesPath = "/chat-messages"

	// maxErrorBody caps how much of a failed response is kept in errors.
	maxErrorBody = 4096

	// unhealthyAfter is the number of consecutive failures that marks the
	// upstream unhealthy.
	unhealthyAfter = 3
)

// Config configures a Client.
type Config struct {
	// BaseURL is the API root, e.g. "https://dify.example.com/v1".
	BaseURL string

	// APIKey is sent as a bearer token.
	APIKey string

	// User is forwarded as the upstream end-user identifier when non-empty.
	User string

	// Timeout bounds the wait for response headers. The body of a stream is
	// not subject to it. Zero means no limit.
	Timeout time.Duration

	// MaxRetries is how many times opening a stream is retried after a
	// connection error or 5xx response.
	MaxRetries int

	// StopTimeout bounds each stop notification.
	StopTimeout time.Duration

	// InsecureSkipVerify disables upstream certificate verification.
	InsecureSkipVerify bool

	// MaxIdleConns and IdleConnTimeout tune the connection pool.
	MaxIdleConns    int
	IdleConnTimeout time.Duration

	// Tracer records upstream spans. Nil disables tracing.
	Tracer *tracing.Tracer
}

// Health is the observed health of the upstream.
type Health struct {
	IsHealthy             bool
	ConsecutiveFailures   int
	LastError             error
	LastCheck             time.Time
	LastSuccessfulRequest time.Time
	TotalRequests         int64
	FailedRequests        int64
}

// Client talks to the upstream chat-messages API.
type Client struct {
	config Config
	client *http.Client
	logger *slog.Logger

	healthMu sync.RWMutex
	health   Health

	// stops tracks in-flight stop notifications so Close can wait for them.
	stops sync.WaitGroup
}

// NewClient creates a Client with its own connection pool.
func NewClient(cfg Config) *Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConns,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		ResponseHeaderTimeout: cfg.Timeout,
		ForceAttemptHTTP2:     true,
	}
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // explicit opt-in
	}

	return &Client{
		config: cfg,
		client: &http.Client{Transport: transport},
		logger: slog.Default().With("component", "upstream"),
		health: Health{
			IsHealthy:             true,
			LastCheck:             time.Now(),
			LastSuccessfulRequest: time.Now(),
		},
	}
}

// OpenStream posts req to the chat-messages endpoint and returns the event
// stream of the response. The configured user is sent when req names none.
// The stream is bound to ctx: cancelling ctx aborts any pending read.
func (c *Client) OpenStream(ctx context.Context, req *ChatRequest) (EventStream, error) {
	ctx, span := c.config.Tracer.Start(ctx, tracing.SpanUpstreamOpenStream)
	defer span.End()
	tracing.SetConversationAttributes(span, req.ConversationID, req.ParentMessageID)

	if req.User == "" && c.config.User != "" {
		withUser := *req
		withUser.User = c.config.User
		req = &withUser
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	resp, err := c.doRequest(ctx, c.endpoint(chatMessagesPath), body, "text/event-stream")
	tracing.RecordResult(span, err)
	if err != nil {
		return nil, err
	}

	return newEventReader(resp.Body), nil
}

// NotifyStop asks the upstream to stop generating messageID. It returns
// immediately; the request runs in the background and failures are only
// logged.
func (c *Client) NotifyStop(messageID string) {
	if messageID == "" {
		return
	}

	c.stops.Add(1)
	go func() {
		defer c.stops.Done()

		ctx := context.Background()
		if c.config.StopTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.config.StopTimeout)
			defer cancel()
		}

		if err := c.StopMessage(ctx, messageID); err != nil {
			c.logger.Warn("failed to send stop request",
				"message_id", messageID,
				"error", err,
			)
			return
		}
		c.logger.Info("stop request sent", "message_id", messageID)
	}()
}

// StopMessage sends a stop request for messageID and waits for the answer.
func (c *Client) StopMessage(ctx context.Context, messageID string) error {
	ctx, span := c.config.Tracer.Start(ctx, tracing.SpanUpstreamStop)
	defer span.End()
	tracing.SetConversationAttributes(span, "", messageID)

	payload := map[string]string{}
	if c.config.User != "" {
		payload["user"] = c.config.User
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal stop request: %w", err)
	}

	path := chatMessagesPath + "/" + url.PathEscape(messageID) + "/stop"
	resp, err := c.send(ctx, c.endpoint(path), body, "application/json")
	tracing.RecordResult(span, err)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// IsHealthy reports whether recent requests succeeded.
func (c *Client) IsHealthy() bool {
	c.healthMu.RLock()
	defer c.healthMu.RUnlock()
	return c.health.IsHealthy
}

// Health returns detailed health information.
func (c *Client) Health() Health {
	c.healthMu.RLock()
	defer c.healthMu.RUnlock()
	return c.health
}

// Close waits briefly for pending stop notifications and releases idle
// connections.
func (c *Client) Close() error {
	done := make(chan struct{})
	go func() {
		c.stops.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		c.logger.Warn("pending stop requests did not finish in time")
	}

	c.client.CloseIdleConnections()
	return nil
}

func (c *Client) endpoint(path string) string {
	return strings.TrimRight(c.config.BaseURL, "/") + path
}

// doRequest performs a POST with retry on connection errors and 5xx
// responses, using exponential backoff.
func (c *Client) doRequest(ctx context.Context, url string, body []byte, accept string) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			c.logger.Debug("retrying request",
				"attempt", attempt,
				"max_retries", c.config.MaxRetries,
				"backoff", backoff,
			)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		resp, err := c.send(ctx, url, body, accept)
		if err == nil {
			c.recordResult(nil)
			return resp, nil
		}

		lastErr = err
		if !retryable(err) || ctx.Err() != nil {
			break
		}

		c.logger.Warn("request failed, will retry",
			"attempt", attempt+1,
			"error", err,
		)
	}

	if ctx.Err() == nil || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		c.recordResult(lastErr)
	}
	return nil, lastErr
}

// send performs a single POST and maps failures to typed errors.
func (c *Client) send(ctx context.Context, url string, body []byte, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}
	tracing.Inject(ctx, req.Header)

	c.logger.Debug("sending request to upstream", "url", url)

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, ctx.Err()
		}
		if isTimeout(ctx, err) {
			return nil, &TimeoutError{Timeout: c.config.Timeout, Cause: err}
		}
		return nil, &TransportError{URL: url, Cause: err}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
	message := strings.TrimSpace(string(errorBody))

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, &AuthError{StatusCode: resp.StatusCode, Message: message}
	default:
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: message}
	}
}

func (c *Client) recordResult(err error) {
	c.healthMu.Lock()
	defer c.healthMu.Unlock()

	c.health.LastCheck = time.Now()
	c.health.TotalRequests++

	if err == nil {
		c.health.IsHealthy = true
		c.health.ConsecutiveFailures = 0
		c.health.LastError = nil
		c.health.LastSuccessfulRequest = time.Now()
		return
	}

	c.health.FailedRequests++
	c.health.ConsecutiveFailures++
	c.health.LastError = err

	if c.health.ConsecutiveFailures >= unhealthyAfter && c.health.IsHealthy {
		c.health.IsHealthy = false
		c.logger.Warn("upstream marked unhealthy",
			"consecutive_failures", c.health.ConsecutiveFailures,
			"error", err,
		)
	}
}

func retryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500
	}
	var transportErr *TransportError
	return errors.As(err, &transportErr)
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
