// Package swapi implements the Star Wars API lookup tools: getPeople and
// getStarships. Each tool validates its single argument, searches the
// upstream API, normalizes the response and returns it serialized for the
// transcript.
package swapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/germanamz/swchat/pkg/logging"
	"github.com/germanamz/swchat/pkg/tools/toolbox"
)

const (
	// DefaultBaseURL is the public SWAPI endpoint.
	DefaultBaseURL = "https://swapi.dev/api/"
	// DefaultTimeout bounds every upstream call.
	DefaultTimeout = 10 * time.Second
	// DefaultResultLimit caps the serialized size of a tool outcome in bytes.
	DefaultResultLimit = 3000
)

// Tool names as declared to the model.
const (
	PeopleTool    = "getPeople"
	StarshipsTool = "getStarships"
)

// Options configures a Client.
type Options struct {
	BaseURL     string        // Defaults to DefaultBaseURL.
	Timeout     time.Duration // Defaults to DefaultTimeout.
	ResultLimit int           // Defaults to DefaultResultLimit.
	Cache       Cache         // Optional outcome cache.
	CacheTTL    time.Duration // Expiry for cached outcomes.
	HTTPClient  *http.Client  // Defaults to a client with Timeout applied.
}

// Client calls the SWAPI search endpoints. It is safe for concurrent use.
type Client struct {
	baseURL  string
	timeout  time.Duration
	limit    int
	cache    Cache
	cacheTTL time.Duration
	http     *http.Client
}

// New creates a Client from opts, filling in defaults.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.ResultLimit <= 0 {
		opts.ResultLimit = DefaultResultLimit
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}

	return &Client{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		timeout:  opts.Timeout,
		limit:    opts.ResultLimit,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		http:     opts.HTTPClient,
	}
}

// Outcome is the normalized success object returned to the model.
type Outcome struct {
	Count    int     `json:"count"`
	Results  []any   `json:"results"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Query    string  `json:"query"`
	Resource string  `json:"resource"`
}

type searchResponse struct {
	Count    int     `json:"count"`
	Results  []any   `json:"results"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
}

// MissingInputError reports an absent or blank required argument.
type MissingInputError struct {
	Arg string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("Missing required input: '%s'", e.Arg)
}

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.URL)
}

// ErrInvalidJSON is wrapped when the upstream body cannot be decoded.
var ErrInvalidJSON = errors.New("invalid JSON")

// Tools returns the tool declarations with handlers bound to c.
func (c *Client) Tools() []toolbox.Tool {
	return []toolbox.Tool{
		{
			Name:        PeopleTool,
			Description: "Gets information about People in the Star Wars world",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"people":{"type":"string","description":"The people name"}},"required":["people"]}`),
			Handler:     c.handler("people", "people"),
		},
		{
			Name:        StarshipsTool,
			Description: "Gets information about Starships in the Star Wars world",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"starships":{"type":"string","description":"The starship name"}},"required":["starships"]}`),
			Handler:     c.handler("starships", "starships"),
		},
	}
}

// ToolBox returns a ToolBox holding c's tools.
func (c *Client) ToolBox() *toolbox.ToolBox {
	tb := toolbox.New()
	tb.Register(c.Tools()...)
	return tb
}

func (c *Client) handler(arg, resource string) toolbox.Handler {
	return func(ctx context.Context, input json.RawMessage) (string, error) {
		q := stringArg(input, arg)
		if q == "" {
			return "", &MissingInputError{Arg: arg}
		}

		key := cacheKey(resource, q)
		if c.cache != nil {
			cached, ok, err := c.cache.Get(ctx, key)
			if err != nil {
				logging.FromContext(ctx).WarnContext(ctx, "swapi cache read failed", "key", key, "error", err)
			} else if ok {
				return cached, nil
			}
		}

		out, err := c.Search(ctx, resource, q)
		if err != nil {
			return "", err
		}

		encoded, err := Encode(out, c.limit)
		if err != nil {
			return "", err
		}

		if c.cache != nil {
			if err := c.cache.Set(ctx, key, encoded, c.cacheTTL); err != nil {
				logging.FromContext(ctx).WarnContext(ctx, "swapi cache write failed", "key", key, "error", err)
			}
		}

		return encoded, nil
	}
}

// Search queries {base}/{resource}/?search={query} and normalizes the result.
func (c *Client) Search(ctx context.Context, resource, query string) (Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := c.baseURL + "/" + resource + "/?" + url.Values{"search": {query}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Outcome{}, fmt.Errorf("Network error calling %s: %w", u, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req) //nolint:gosec // URL is built from trusted base URL config.
	if err != nil {
		return Outcome{}, fmt.Errorf("Network error calling %s: %w", u, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Outcome{}, &StatusError{StatusCode: resp.StatusCode, URL: u}
	}

	var data searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return Outcome{}, fmt.Errorf("Invalid JSON from %s: %w: %v", u, ErrInvalidJSON, err)
	}

	if data.Results == nil {
		data.Results = []any{}
	}

	return Outcome{
		Count:    data.Count,
		Results:  data.Results,
		Next:     data.Next,
		Previous: data.Previous,
		Query:    query,
		Resource: resource,
	}, nil
}

// stringArg extracts a trimmed string argument. Non-object input, a missing
// key and non-string values all yield "".
func stringArg(input json.RawMessage, name string) string {
	var args map[string]any
	if err := json.Unmarshal(input, &args); err != nil {
		return ""
	}
	s, _ := args[name].(string)
	return strings.TrimSpace(s)
}

// cacheKey keys on the exact query: the cached outcome echoes it back.
func cacheKey(resource, query string) string {
	return resource + ":" + query
}
