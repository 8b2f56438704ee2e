// Package event loads and models the issue_comment payload that triggers a run.
package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNoEvent indicates there is no event payload to process.
var ErrNoEvent = errors.New("no event payload found")

// Event is the subset of a GitHub issue_comment payload used by the replier.
type Event struct {
	Action      string       `json:"action"`
	Comment     Comment      `json:"comment"`
	Issue       Issue        `json:"issue"`
	PullRequest *PullRequest `json:"pull_request,omitempty"`
	Repository  Repository   `json:"repository"`
	Sender      User         `json:"sender"`
}

type Comment struct {
	ID   int64  `json:"id"`
	Body string `json:"body"`
	User User   `json:"user"`
}

type Issue struct {
	Number      int    `json:"number"`
	Title       string `json:"title"`
	HTMLURL     string `json:"html_url"`
	PullRequest *struct {
		URL string `json:"url"`
	} `json:"pull_request,omitempty"`
}

// IsPR reports whether the issue record carries a pull request marker.
func (i Issue) IsPR() bool {
	return i.PullRequest != nil
}

type PullRequest struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
}

type Repository struct {
	FullName string `json:"full_name"`
	Name     string `json:"name"`
	Owner    User   `json:"owner"`
}

type User struct {
	Login string `json:"login"`
	Type  string `json:"type"`
}

// Address identifies the issue or pull request a reply is posted to.
// Any field may be empty when the event lacks it.
type Address struct {
	Owner  string
	Repo   string
	Number int
}

// Complete reports whether every addressing field is known.
func (a Address) Complete() bool {
	return a.Owner != "" && a.Repo != "" && a.Number > 0
}

// FullName returns "owner/repo", or "" when either part is missing.
func (a Address) FullName() string {
	if a.Owner == "" || a.Repo == "" {
		return ""
	}
	return a.Owner + "/" + a.Repo
}

func (a Address) String() string {
	return fmt.Sprintf("%s/%s#%d", a.Owner, a.Repo, a.Number)
}

// Address resolves owner, repository and number from the event.
func (e *Event) Address() Address {
	var addr Address
	if owner, name, ok := strings.Cut(e.Repository.FullName, "/"); ok {
		addr.Owner, addr.Repo = owner, name
	} else {
		addr.Owner = e.Repository.Owner.Login
		addr.Repo = e.Repository.Name
	}

	addr.Number = e.Issue.Number
	if addr.Number == 0 && e.PullRequest != nil {
		addr.Number = e.PullRequest.Number
	}
	return addr
}

// Load reads the event payload at path. A missing path or file yields ErrNoEvent.
func Load(path string) (*Event, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrNoEvent
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoEvent
		}
		return nil, fmt.Errorf("read event payload: %w", err)
	}
	return Parse(data)
}

// Parse decodes a raw event payload.
func Parse(data []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("decode event payload: %w", err)
	}
	return &ev, nil
}
