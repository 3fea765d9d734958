package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"streamclean/internal/api"
	"streamclean/internal/logging"
)

const maxErrorBody = 4 << 10

// Client is a thin REST client for the processing service.
type Client struct {
	base   *url.URL
	http   *http.Client
	logger *slog.Logger
}

// New builds a client for baseURL (for example "http://localhost:8000/api").
// A non-positive timeout leaves requests bounded only by their context.
func New(baseURL string, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("client: base url is required")
	}
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("client: parse base url: %w", err)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("client: base url %q has no host", baseURL)
	}
	base.Path = strings.TrimRight(base.Path, "/")
	base.RawQuery = ""
	base.Fragment = ""

	httpClient := &http.Client{}
	if timeout > 0 {
		httpClient.Timeout = timeout
	}
	return &Client{
		base:   base,
		http:   httpClient,
		logger: logging.NewComponentLogger(logger, "client"),
	}, nil
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// FetchTree returns the server's directory tree.
func (c *Client) FetchTree(ctx context.Context) (*api.DirectoryNode, error) {
	var node api.DirectoryNode
	if err := c.do(ctx, OpFetchTree, http.MethodGet, c.endpoint("/tree", nil), nil, &node); err != nil {
		return nil, err
	}
	if err := node.Validate(); err != nil {
		return nil, c.shapeError(ctx, OpFetchTree, err)
	}
	return &node, nil
}

// FetchList returns the media files and languages of dir.
func (c *Client) FetchList(ctx context.Context, dir string) (api.DirectoryContent, error) {
	var content api.DirectoryContent
	query := url.Values{"dir": []string{dir}}
	if err := c.do(ctx, OpFetchList, http.MethodGet, c.endpoint("/list", query), nil, &content); err != nil {
		return api.DirectoryContent{}, err
	}
	if err := content.Validate(); err != nil {
		return api.DirectoryContent{}, c.shapeError(ctx, OpFetchList, err)
	}
	return content, nil
}

// StartProcess submits a clean job.
func (c *Client) StartProcess(ctx context.Context, req api.ProcessRequest) (api.ProcessResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return api.ProcessResponse{}, newFetchError(OpStartProcess, 0, fmt.Errorf("encode request: %w", err))
	}
	var resp api.ProcessResponse
	if err := c.do(ctx, OpStartProcess, http.MethodPost, c.endpoint("/process", nil), body, &resp); err != nil {
		return api.ProcessResponse{}, err
	}
	if err := resp.Validate(); err != nil {
		return api.ProcessResponse{}, c.shapeError(ctx, OpStartProcess, err)
	}
	return resp, nil
}

// FetchJob returns a snapshot of one job.
func (c *Client) FetchJob(ctx context.Context, jobID string) (api.JobStatus, error) {
	var status api.JobStatus
	if err := c.do(ctx, OpFetchJob, http.MethodGet, c.endpoint(jobPath(jobID), nil), nil, &status); err != nil {
		return api.JobStatus{}, err
	}
	if err := status.Validate(); err != nil {
		return api.JobStatus{}, c.shapeError(ctx, OpFetchJob, err)
	}
	if status.JobID == "" {
		status.JobID = jobID
	}
	return status, nil
}

// CancelJob asks the server to cancel a job.
func (c *Client) CancelJob(ctx context.Context, jobID string) (api.CancelResponse, error) {
	var resp api.CancelResponse
	if err := c.do(ctx, OpCancelJob, http.MethodDelete, c.endpoint(jobPath(jobID), nil), nil, &resp); err != nil {
		return api.CancelResponse{}, err
	}
	return resp, nil
}

// JobEventsURL returns the per-job push channel address.
func (c *Client) JobEventsURL(jobID string) string {
	return c.endpoint(jobPath(jobID)+"/events", nil)
}

// JobsListEventsURL returns the roster push channel address.
func (c *Client) JobsListEventsURL() string {
	return c.endpoint("/jobs/events", nil)
}

func jobPath(jobID string) string {
	return "/jobs/" + jobID
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = c.base.Path + path
	u.RawPath = ""
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) do(ctx context.Context, op Op, method, endpoint string, body []byte, out any) error {
	requestID, ok := logging.RequestIDFromContext(ctx)
	if !ok {
		requestID = uuid.NewString()
	}
	logger := c.logger.With(
		slog.String("op", string(op)),
		slog.String(logging.FieldRequestID, requestID),
	)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return newFetchError(op, 0, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		logger.Warn("request failed",
			slog.String(logging.FieldEventType, "request_failed"),
			slog.String(logging.FieldURL, endpoint),
			logging.Error(err),
		)
		return newFetchError(op, 0, err)
	}
	defer resp.Body.Close()

	logger.Debug("request complete",
		slog.String("method", method),
		slog.String(logging.FieldURL, endpoint),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		cause := fmt.Errorf("unexpected status %d", resp.StatusCode)
		if text := strings.TrimSpace(string(detail)); text != "" {
			cause = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, text)
		}
		logger.Warn("request rejected",
			slog.String(logging.FieldEventType, "request_rejected"),
			slog.String(logging.FieldURL, endpoint),
			slog.Int("status", resp.StatusCode),
		)
		return newFetchError(op, resp.StatusCode, cause)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return c.shapeError(ctx, op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (c *Client) shapeError(ctx context.Context, op Op, err error) *FetchError {
	logging.WithContext(ctx, c.logger).Warn("unexpected response shape",
		slog.String("op", string(op)),
		slog.String(logging.FieldEventType, "shape_mismatch"),
		logging.Error(err),
	)
	return newFetchError(op, 0, err)
}
