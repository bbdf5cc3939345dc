package ltd2

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

const (
	// DefaultBaseURL is the public v2 API.
	DefaultBaseURL = "https://apiv2.legiontd2.com"

	gamesEndpoint = "/games"

	// MaxLimit is the API's page-size cap.
	MaxLimit = 50

	// MaxOffset is the deepest offset the API will serve for one query.
	// Past this the date window has to move instead.
	MaxOffset = 50000

	// apiTimeLayout is the format the games endpoint accepts for date bounds.
	apiTimeLayout = "2006-01-02 15:04:05"

	defaultRequestTimeout = 30 * time.Second

	// maxErrorExcerpt bounds how much of an unexpected payload gets carried
	// in a malformed-response error.
	maxErrorExcerpt = 512
)

// Client is an authenticated client for the Legion TD 2 games API.
// It issues single bounded requests and keeps no cursor state, so a failed
// call can always be retried as-is by the caller.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL (useful for testing)
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(u, "/")
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a new API client for the given key
func NewClient(apiKey string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key cannot be empty")
	}

	c := &Client{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: defaultRequestTimeout,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// PageRequest describes one bounded request against the games endpoint.
type PageRequest struct {
	Limit  int
	Offset int

	// Date bounds; zero values fall back to FirstMatchDate / now.
	DateAfter  time.Time
	DateBefore time.Time

	IncludeDetails bool
	CountResults   bool
	QueueType      string
	Version        string

	// SortBy/SortDirection default to date ascending.
	SortBy        string
	SortDirection int
}

// normalize fills defaults and clamps the limit to the API cap.
func (r PageRequest) normalize() PageRequest {
	if r.Limit <= 0 {
		r.Limit = MaxLimit
	}
	if r.Limit > MaxLimit {
		log.Printf("[LTD2] limit %d exceeds API maximum, clamping to %d", r.Limit, MaxLimit)
		r.Limit = MaxLimit
	}
	if r.DateAfter.IsZero() {
		r.DateAfter = FirstMatchDate
	}
	if r.DateBefore.IsZero() {
		r.DateBefore = time.Now().UTC()
	}
	if r.SortBy == "" {
		r.SortBy = SortByDate
	}
	if r.SortDirection == 0 {
		r.SortDirection = SortAscending
	}
	if r.QueueType == "" {
		r.QueueType = QueueNormal
	}
	return r
}

func (r PageRequest) values() url.Values {
	v := url.Values{}
	v.Set("limit", strconv.Itoa(r.Limit))
	v.Set("offset", strconv.Itoa(r.Offset))
	v.Set("sortBy", r.SortBy)
	v.Set("sortDirection", strconv.Itoa(r.SortDirection))
	v.Set("dateAfter", r.DateAfter.UTC().Format(apiTimeLayout))
	v.Set("dateBefore", r.DateBefore.UTC().Format(apiTimeLayout))
	v.Set("includeDetails", strconv.FormatBool(r.IncludeDetails))
	v.Set("countResults", strconv.FormatBool(r.CountResults))
	v.Set("queueType", r.QueueType)
	if r.Version != "" {
		v.Set("version", r.Version)
	}
	return v
}

// errorPayload is the shape the API uses for error bodies.
type errorPayload struct {
	Message string          `json:"message"`
	Err     json.RawMessage `json:"err"`
}

type errorDetail struct {
	Keyword      string `json:"keyword"`
	Message      string `json:"message"`
	InstancePath string `json:"instancePath"`
}

// FetchPage issues one authenticated request for a page of matches in
// ascending date order. It returns the decoded matches with zero-length
// games filtered out. No internal state is mutated, so callers may retry
// the identical request after any error.
func (c *Client) FetchPage(ctx context.Context, req PageRequest) ([]Game, error) {
	req = req.normalize()

	u := c.baseURL + gamesEndpoint + "?" + req.values().Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		// fall through to decode
	case http.StatusTooManyRequests:
		return nil, &RateLimitError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, fmt.Errorf("games request: %w", ErrForbidden)
	default:
		// The API sometimes delivers structured errors with a 200-adjacent
		// status; try to classify before giving up.
		if kindErr := classifyErrorBody(body); kindErr != nil {
			return nil, kindErr
		}
		return nil, &StatusError{Code: resp.StatusCode}
	}

	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '{' {
		// An object where a match array was expected is always an error
		// payload of some kind.
		if kindErr := classifyErrorBody(body); kindErr != nil {
			return nil, kindErr
		}
		return nil, fmt.Errorf("%w: %s", ErrMalformedResponse, excerpt(body))
	}

	var games []Game
	if err := json.Unmarshal(body, &games); err != nil {
		return nil, fmt.Errorf("%w: %v: %s", ErrMalformedResponse, err, excerpt(body))
	}

	kept := games[:0]
	for _, g := range games {
		// Aborted lobbies come back with a zero game length; skip them.
		if g.GameLength != nil && *g.GameLength <= 0 {
			continue
		}
		if g.ID == "" || g.Date == "" {
			return nil, fmt.Errorf("%w: match missing _id or date: %s", ErrMalformedResponse, excerpt(body))
		}
		kept = append(kept, g)
	}
	return kept, nil
}

// classifyErrorBody maps the API's error payloads onto error kinds.
// Returns nil if the body is not a recognizable error object.
func classifyErrorBody(body []byte) error {
	var payload errorPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil
	}

	if payload.Message == "Forbidden" {
		return fmt.Errorf("games request: %w", ErrForbidden)
	}
	if len(payload.Err) == 0 {
		return nil
	}

	var errStr string
	if json.Unmarshal(payload.Err, &errStr) == nil {
		if errStr == "Entry not found." {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %s", ErrMalformedResponse, errStr)
	}

	var details []errorDetail
	if json.Unmarshal(payload.Err, &details) == nil && len(details) > 0 {
		d := details[0]
		if strings.Contains(strings.ToLower(d.Message), "exceeded") {
			return fmt.Errorf("games request: %w", ErrQuotaExhausted)
		}
		if d.Keyword == "type" {
			parts := strings.Split(d.InstancePath, "/")
			return fmt.Errorf("invalid value for parameter %q: %w", parts[len(parts)-1], ErrMalformedResponse)
		}
		return fmt.Errorf("%w: %s", ErrMalformedResponse, d.Message)
	}

	return nil
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	secs, err := strconv.Atoi(header)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func excerpt(body []byte) string {
	s := string(body)
	if len(s) > maxErrorExcerpt {
		s = s[:maxErrorExcerpt] + "..."
	}
	return s
}
