package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"dexAdapter/internal/metrics"
	"dexAdapter/internal/scan"
)

const maxErrorBody = 512

// Request is a GraphQL POST body.
type Request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// GraphQLError is one entry of a response errors list.
type GraphQLError struct {
	Message string `json:"message"`
}

// Response is the raw GraphQL envelope.
type Response struct {
	Data   json.RawMessage `json:"data"`
	Errors []GraphQLError  `json:"errors"`
}

// Endpoint is a GraphQL endpoint bound to a network.
type Endpoint struct {
	Network string
	URL     string
	Limiter *Limiter
}

// ClientConfig configures a GraphQL client.
type ClientConfig struct {
	Retry scan.RetryPolicy
}

// Client posts GraphQL queries through a shared session.
type Client struct {
	session *Session
	cfg     ClientConfig
	logger  *zap.Logger
}

func NewClient(session *Session, cfg ClientConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{session: session, cfg: cfg, logger: logger}
}

// Do sends one request and returns the decoded envelope. Transport failures
// and non-2xx statuses come back as *Error. The errors list is not inspected.
func (c *Client) Do(ctx context.Context, ep Endpoint, req Request) (*Response, error) {
	if err := ep.Limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode graphql request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Network: ep.Network, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.session.HTTPClient().Do(httpReq)
	metrics.UpstreamLatency.WithLabelValues(ep.Network, "subgraph").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues(ep.Network, "subgraph", "error").Inc()
		return nil, &Error{Network: ep.Network, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.UpstreamRequests.WithLabelValues(ep.Network, "subgraph", "status").Inc()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &Error{
			Network:  ep.Network,
			Status:   resp.StatusCode,
			Messages: nonEmpty(string(bytes.TrimSpace(snippet))),
		}
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		metrics.UpstreamRequests.WithLabelValues(ep.Network, "subgraph", "error").Inc()
		return nil, &Error{Network: ep.Network, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	metrics.UpstreamRequests.WithLabelValues(ep.Network, "subgraph", "ok").Inc()
	return &out, nil
}

// Query sends req with retries and decodes data into out. A non-empty errors
// list is returned as a non-retryable *Error.
func (c *Client) Query(ctx context.Context, ep Endpoint, req Request, out any) error {
	var resp *Response
	err := scan.Retry(ctx, c.cfg.Retry, func(ctx context.Context) error {
		var err error
		resp, err = c.Do(ctx, ep, req)
		if err == nil {
			return nil
		}
		if ue, ok := err.(*Error); ok && !ue.Transient() {
			return scan.Permanent(err)
		}
		c.logger.Warn("graphql request failed",
			zap.String("network", ep.Network),
			zap.Error(err),
		)
		return err
	})
	if err != nil {
		return err
	}

	if len(resp.Errors) > 0 {
		msgs := make([]string, 0, len(resp.Errors))
		for _, e := range resp.Errors {
			msgs = append(msgs, e.Message)
		}
		return &Error{Network: ep.Network, Status: http.StatusOK, Messages: msgs}
	}
	if out == nil || len(resp.Data) == 0 || string(resp.Data) == "null" {
		if out != nil {
			return &Error{Network: ep.Network, Status: http.StatusOK, Messages: []string{"response has no data"}}
		}
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("decode graphql data: %w", err)
	}
	return nil
}

func nonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return []string{s}
}
