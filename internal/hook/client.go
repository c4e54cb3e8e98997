package hook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/EternisAI/claude-watch/internal/permission"
)

// DefaultTimeout outlives the daemon's own approval timeout so the daemon,
// not the client, decides when a request has waited too long.
const DefaultTimeout = 300 * time.Second

const preToolUsePath = "/hooks/pre-tool-use"

// StatusError is returned when the daemon answers with a non-2xx status.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("daemon returned HTTP %d", e.Code)
}

type response struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason,omitempty"`
}

// Client posts intercepted tool calls to the daemon.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Consult(ctx context.Context, in Input) (Verdict, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return Verdict{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+preToolUsePath, bytes.NewReader(body))
	if err != nil {
		return Verdict{}, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Verdict{}, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Verdict{}, &StatusError{Code: resp.StatusCode}
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Verdict{}, fmt.Errorf("%w: decode response: %v", ErrUnreachable, err)
	}
	return Verdict{Decision: permission.Decision(out.Decision), Reason: out.Reason}, nil
}
