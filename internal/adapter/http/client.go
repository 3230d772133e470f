package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gojiplus/get-weather-data/internal/domain"
)

// DefaultClientTimeout bounds each request a worker makes to the queue server.
const DefaultClientTimeout = 30 * time.Second

// Client is the worker side of the HTTP queue transport.
type Client struct {
	baseURL    string
	secret     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient connects to a QueueServer at addr and verifies it is reachable.
func NewClient(ctx context.Context, addr, secret string, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	base := addr
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	c := &Client{
		baseURL:    strings.TrimRight(base, "/"),
		secret:     secret,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrQueueUnavailable, err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: health check status %d", domain.ErrQueueUnavailable, resp.StatusCode)
	}
	return c, nil
}

func (c *Client) TryClaim(ctx context.Context) (domain.JobBatch, bool, error) {
	resp, err := c.post(ctx, ClaimPath, nil)
	if err != nil {
		return domain.JobBatch{}, false, fmt.Errorf("claim request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent:
		return domain.JobBatch{}, false, nil
	case http.StatusOK:
	default:
		return domain.JobBatch{}, false, statusError(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.JobBatch{}, false, fmt.Errorf("read claim response: %w", err)
	}
	b, err := domain.DecodeJobBatch(data)
	if err != nil {
		return domain.JobBatch{}, false, err
	}
	return b, true, nil
}

func (c *Client) PushResult(ctx context.Context, r domain.ResultBatch) error {
	data, err := domain.EncodeResultBatch(r)
	if err != nil {
		return err
	}
	resp, err := c.post(ctx, ResultPath, data)
	if err != nil {
		return fmt.Errorf("result request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return statusError(resp)
	}
	return nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.httpClient.Do(req)
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("queue server status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
}
