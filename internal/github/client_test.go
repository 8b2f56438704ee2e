package github

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/oauth2"
)

func setupCommentsServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	client, err := NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok"}), srv.URL, 0)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return srv, client
}

func TestClient_ListIssueComments(t *testing.T) {
	srv, client := setupCommentsServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/repos/o/r/issues/7/comments" {
			http.NotFound(w, r)
			return
		}
		if got := r.URL.Query().Get("per_page"); got != "100" {
			t.Errorf("per_page = %s, want 100", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("User-Agent"); got != userAgent {
			t.Errorf("User-Agent = %q", got)
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"id": 1, "body": "first", "user": map[string]any{"login": "alice"}, "created_at": "2024-01-01T10:00:00Z"},
			{"id": 2, "body": "second", "user": map[string]any{"login": "bob"}, "created_at": "2024-01-01T11:00:00Z"},
		})
	})
	defer srv.Close()

	comments, err := client.ListIssueComments(context.Background(), "o", "r", 7)
	if err != nil {
		t.Fatalf("ListIssueComments() error = %v", err)
	}
	if len(comments) != 2 {
		t.Fatalf("got %d comments, want 2", len(comments))
	}
	if comments[0].ID != 1 || comments[0].Author != "alice" || comments[0].Body != "first" {
		t.Errorf("comments[0] = %+v", comments[0])
	}
	if !comments[0].CreatedAt.Before(comments[1].CreatedAt) {
		t.Errorf("CreatedAt not decoded: %v / %v", comments[0].CreatedAt, comments[1].CreatedAt)
	}
}

func TestClient_CreateComment(t *testing.T) {
	srv, client := setupCommentsServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/repos/o/r/issues/7/comments" {
			http.NotFound(w, r)
			return
		}
		var payload struct {
			Body string `json:"body"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if payload.Body != "@octo hello" {
			t.Errorf("body = %q", payload.Body)
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":       55,
			"body":     payload.Body,
			"html_url": "https://github.com/o/r/issues/7#issuecomment-55",
		})
	})
	defer srv.Close()

	comment, err := client.CreateComment(context.Background(), "o", "r", 7, "@octo hello")
	if err != nil {
		t.Fatalf("CreateComment() error = %v", err)
	}
	if comment.ID != 55 || !strings.HasSuffix(comment.HTMLURL, "issuecomment-55") {
		t.Errorf("comment = %+v", comment)
	}
}

func TestClient_CreateComment_Forbidden(t *testing.T) {
	srv, client := setupCommentsServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"Resource not accessible by integration"}`))
	})
	defer srv.Close()

	_, err := client.CreateComment(context.Background(), "o", "r", 7, "hi")
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsForbidden(err) {
		t.Errorf("IsForbidden() = false for %v", err)
	}
	detail := ErrorDetail(err, 400)
	if !strings.Contains(detail, "HTTP 403") || !strings.Contains(detail, "Resource not accessible") {
		t.Errorf("ErrorDetail() = %q", detail)
	}
}

func TestErrorDetail_Truncates(t *testing.T) {
	err := errors.New(strings.Repeat("x", 50))
	if got := ErrorDetail(err, 10); got != strings.Repeat("x", 10) {
		t.Errorf("ErrorDetail() = %q", got)
	}
	if IsForbidden(err) {
		t.Error("plain error reported as forbidden")
	}
}
