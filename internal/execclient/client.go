// Package execclient talks to the remote code execution service. codepad
// never compiles or runs code itself.
package execclient

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

	"go.uber.org/zap"

	"github.com/agentic-research/codepad/api"
	"github.com/agentic-research/codepad/internal/metrics"
)

// maxBody caps how much of a response is read; program output beyond it
// is cut off by the decoder with an error.
const maxBody = 8 << 20

// Executor runs code remotely. *Client implements it; the workspace
// accepts any implementation.
type Executor interface {
	Execute(ctx context.Context, req api.ExecuteRequest) (*api.ExecuteResponse, error)
}

// Config holds client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *zap.Logger
}

// Client posts code to {BaseURL}/execute.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

var _ Executor = (*Client)(nil)

// New creates a new client.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   5 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:    4,
				IdleConnTimeout: 90 * time.Second,
			},
		},
		logger: cfg.Logger,
	}
}

// Execute sends one request. A transport failure or an undecodable body
// is returned as an error. A rejection by the service (unsupported
// extension, internal error) is returned as an unsuccessful response
// carrying the service's detail message.
func (c *Client) Execute(ctx context.Context, req api.ExecuteRequest) (resp *api.ExecuteResponse, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordExecute(time.Since(start), resp != nil && resp.Success, err)
	}()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/execute", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() { _ = httpResp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug("execute",
		zap.String("filename", req.Filename),
		zap.Int("status", httpResp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return &api.ExecuteResponse{Detail: detail(raw, httpResp.Status)}, nil
	}

	var out api.ExecuteResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

// detail extracts {"detail": ...} from an error body. FastAPI-style
// validation errors carry a list there, which is flattened.
func detail(raw []byte, status string) string {
	var body struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || body.Detail == nil {
		if s := strings.TrimSpace(string(raw)); s != "" && len(s) < 512 {
			return s
		}
		return status
	}
	switch d := body.Detail.(type) {
	case string:
		return d
	case []any:
		var parts []string
		for _, item := range d {
			if m, ok := item.(map[string]any); ok {
				if msg, ok := m["msg"].(string); ok {
					parts = append(parts, msg)
					continue
				}
			}
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, "; ")
	default:
		return fmt.Sprint(d)
	}
}

// ErrUnsupported marks a filename whose extension the service does not run.
var ErrUnsupported = errors.New("unsupported file extension")

// Language reports the language the service will use for filename.
func Language(filename string) (string, error) {
	ext := ""
	if i := strings.LastIndexByte(filename, '.'); i >= 0 {
		ext = strings.ToLower(filename[i+1:])
	}
	lang, ok := api.SupportedExtensions[ext]
	if !ok {
		return "", fmt.Errorf("%w: .%s", ErrUnsupported, ext)
	}
	return lang, nil
}
