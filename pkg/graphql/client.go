package graphql

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/multierr"
)

// ErrNoEndpoint is returned when the client has no endpoint configured
var ErrNoEndpoint = errors.New("graphql endpoint not configured")

// Error is one entry of a GraphQL "errors" array
type Error struct {
	Message string        `json:"message"`
	Path    []interface{} `json:"path,omitempty"`
}

func (e *Error) Error() string {
	if len(e.Path) == 0 {
		return "graphql: " + e.Message
	}
	parts := make([]string, 0, len(e.Path))
	for _, p := range e.Path {
		parts = append(parts, fmt.Sprint(p))
	}
	return fmt.Sprintf("graphql: %s (at %s)", e.Message, strings.Join(parts, "."))
}

type request struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type response struct {
	Data   json.RawMessage `json:"data"`
	Errors []*Error        `json:"errors"`
}

// Client issues queries and mutations over HTTP POST
type Client struct {
	endpoint string
	token    string
	http     *http.Client
}

// NewClient creates a client. token, when set, is sent as a bearer token.
func NewClient(endpoint, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		endpoint: endpoint,
		token:    token,
		http:     &http.Client{Timeout: timeout},
	}
}

// Do runs query with vars and decodes "data" into out. Every GraphQL
// error in the response is combined into the returned error.
func (c *Client) Do(ctx context.Context, query string, vars map[string]interface{}, out interface{}) error {
	if c.endpoint == "" {
		return ErrNoEndpoint
	}

	body, err := json.Marshal(request{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("encode graphql request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create graphql request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("graphql request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read graphql response: %w", err)
	}

	var r response
	if err := json.Unmarshal(data, &r); err != nil {
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("graphql returned status %d", resp.StatusCode)
		}
		return fmt.Errorf("decode graphql response: %w", err)
	}

	var errs error
	for _, e := range r.Errors {
		errs = multierr.Append(errs, e)
	}
	if errs != nil {
		return errs
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("graphql returned status %d", resp.StatusCode)
	}

	if out != nil && len(r.Data) > 0 && string(r.Data) != "null" {
		if err := json.Unmarshal(r.Data, out); err != nil {
			return fmt.Errorf("decode graphql data: %w", err)
		}
	}
	return nil
}
