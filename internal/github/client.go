package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"
)

const (
	userAgent = "codex-replier/1.0"

	// threadPageSize is the per_page value for the single thread listing request.
	threadPageSize = 100
)

// Comment is an issue or pull request conversation comment.
type Comment struct {
	ID        int64
	Author    string
	Body      string
	HTMLURL   string
	CreatedAt time.Time
}

// Client wraps the go-github REST client for issue comment operations.
type Client struct {
	rest *gh.Client
}

// NewClient creates a client authenticated through ts against baseURL
// (empty for api.github.com).
func NewClient(ctx context.Context, ts oauth2.TokenSource, baseURL string, timeout time.Duration) (*Client, error) {
	hc := oauth2.NewClient(ctx, ts)
	hc.Timeout = timeout

	rest, err := newREST(hc, baseURL)
	if err != nil {
		return nil, err
	}
	return &Client{rest: rest}, nil
}

func newREST(hc *http.Client, baseURL string) (*gh.Client, error) {
	client := gh.NewClient(hc)
	client.UserAgent = userAgent

	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return client, nil
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse GitHub API URL %q: %w", baseURL, err)
	}
	client.BaseURL = base
	return client, nil
}

// ListIssueComments returns the first page (up to 100) of comments on an issue or PR.
func (c *Client) ListIssueComments(ctx context.Context, owner, repo string, number int) ([]Comment, error) {
	comments, _, err := c.rest.Issues.ListComments(ctx, owner, repo, number, &gh.IssueListCommentsOptions{
		ListOptions: gh.ListOptions{PerPage: threadPageSize},
	})
	if err != nil {
		return nil, fmt.Errorf("list comments on %s/%s#%d: %w", owner, repo, number, err)
	}

	out := make([]Comment, 0, len(comments))
	for _, ic := range comments {
		out = append(out, toComment(ic))
	}
	return out, nil
}

// CreateComment posts a new comment on an issue or PR.
func (c *Client) CreateComment(ctx context.Context, owner, repo string, number int, body string) (*Comment, error) {
	created, _, err := c.rest.Issues.CreateComment(ctx, owner, repo, number, &gh.IssueComment{
		Body: gh.String(body),
	})
	if err != nil {
		return nil, fmt.Errorf("create comment on %s/%s#%d: %w", owner, repo, number, err)
	}
	comment := toComment(created)
	return &comment, nil
}

func toComment(c *gh.IssueComment) Comment {
	return Comment{
		ID:        c.GetID(),
		Author:    c.GetUser().GetLogin(),
		Body:      c.GetBody(),
		HTMLURL:   c.GetHTMLURL(),
		CreatedAt: c.GetCreatedAt().Time,
	}
}

// ErrorDetail summarizes a GitHub API error with its status and message,
// truncated to limit characters.
func ErrorDetail(err error, limit int) string {
	var errResp *gh.ErrorResponse
	if !errors.As(err, &errResp) || errResp.Response == nil {
		return truncate(err.Error(), limit)
	}

	detail := fmt.Sprintf("HTTP %d: %s", errResp.Response.StatusCode, errResp.Message)
	for _, e := range errResp.Errors {
		if e.Message != "" {
			detail += "; " + e.Message
		}
	}
	return truncate(detail, limit)
}

// IsForbidden reports whether err is a GitHub 403 response.
func IsForbidden(err error) bool {
	var errResp *gh.ErrorResponse
	return errors.As(err, &errResp) && errResp.Response != nil && errResp.Response.StatusCode == http.StatusForbidden
}

func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	return s[:limit]
}
