// Package github talks to the GitHub REST API: it builds commits from raw
// git objects, forks repositories and opens pull requests, and publishes
// translations as gists and issues.
package github

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/imroc/req/v3"
)

// DefaultAPI is the public GitHub API endpoint.
const DefaultAPI = "https://api.github.com/"

var (
	// ErrMissingField is returned when a response lacks a field the next
	// request depends on.
	ErrMissingField = errors.New("github: response is missing a field")
	// ErrForkTimeout is returned when a new fork did not become usable in time.
	ErrForkTimeout = errors.New("github: fork is not ready")
	// ErrNotGitHub is returned for URLs that do not name a GitHub repository.
	ErrNotGitHub = errors.New("github: not a GitHub repository")
)

// APIError is the error body GitHub sends with 4xx and 5xx responses.
type APIError struct {
	Status           int    `json:"-"`
	Message          string `json:"message"`
	DocumentationURL string `json:"documentation_url"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: %d %s", e.Status, e.Message)
}

// Options configure a Client.
type Options struct {
	BaseURL   string
	Token     string
	UserAgent string
	Timeout   time.Duration
	Retries   int
	// ForkWait bounds how long Fork waits for a new fork to become usable.
	ForkWait time.Duration
}

// Client is a GitHub API client. The zero value is not usable; call New.
type Client struct {
	http     *req.Client
	forkWait time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
}

// New returns a client for opts. Requests carry opts.Token as a bearer token
// when one is set.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultAPI
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "stringlate"
	}
	if opts.ForkWait <= 0 {
		opts.ForkWait = 2 * time.Minute
	}

	c := req.C().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetUserAgent(opts.UserAgent).
		SetCommonHeader("Accept", "application/vnd.github+json").
		SetCommonHeader("X-GitHub-Api-Version", "2022-11-28").
		SetCommonRetryCount(opts.Retries).
		SetCommonRetryFixedInterval(1*time.Second).
		SetCommonRetryCondition(func(resp *req.Response, err error) bool {
			return err != nil || resp.StatusCode == 502 || resp.StatusCode == 503 || resp.StatusCode == 504
		}).
		SetCommonErrorResult(&APIError{}).
		SetJsonMarshal(json.Marshal).
		SetJsonUnmarshal(json.Unmarshal)
	if opts.Timeout > 0 {
		c.SetTimeout(opts.Timeout)
	}
	if opts.Token != "" {
		c.SetCommonBearerAuthToken(opts.Token)
	}

	return &Client{http: c, forkWait: opts.ForkWait, sleep: sleepContext}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// handleAPIError turns a failed request or an error response into an error.
func handleAPIError(resp *req.Response, requestErr error, operation string) error {
	if requestErr != nil {
		return fmt.Errorf("%s: %w", operation, requestErr)
	}
	if resp.IsSuccessState() {
		return nil
	}
	if apiErr, ok := resp.ErrorResult().(*APIError); ok && apiErr != nil {
		apiErr.Status = resp.StatusCode
		return fmt.Errorf("%s: %w", operation, apiErr)
	}
	return fmt.Errorf("%s: %w", operation, &APIError{Status: resp.StatusCode, Message: resp.Status})
}

// IsStatus reports whether err is an API error with the given HTTP status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

func (c *Client) get(ctx context.Context, op, path string, out any) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetSuccessResult(out).
		Get(path)
	return handleAPIError(resp, err, op)
}

func (c *Client) send(ctx context.Context, op, method, path string, body, out any) error {
	r := c.http.R().SetContext(ctx)
	if body != nil {
		r.SetBody(body)
	}
	if out != nil {
		r.SetSuccessResult(out)
	}
	resp, err := r.Send(method, path)
	return handleAPIError(resp, err, op)
}

func missing(op, field string) error {
	return fmt.Errorf("%s: %w: %s", op, ErrMissingField, field)
}
