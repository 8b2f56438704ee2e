package webhook

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"github.com/cexll/codex-replier/internal/event"
	"github.com/cexll/codex-replier/internal/executor"
	"github.com/cexll/codex-replier/internal/logging"
)

const testSecret = "test-secret"

type fakeRunner struct {
	result executor.Result
	err    error
	calls  int
	got    *event.Event
	ctxErr error
}

func (f *fakeRunner) Execute(ctx context.Context, ev *event.Event) (executor.Result, error) {
	f.calls++
	f.got = ev
	f.ctxErr = ctx.Err()
	return f.result, f.err
}

const commentPayload = `{
  "action": "created",
  "comment": {"id": 1, "body": "/codex hi", "user": {"login": "octocat", "type": "User"}},
  "issue": {"number": 7, "title": "Bug"},
  "repository": {"full_name": "o/r"}
}`

func newRequest(t *testing.T, eventType, body string, sign bool) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBufferString(body))
	req.Header.Set(eventHeader, eventType)
	req.Header.Set(deliveryHeader, "abc-123")
	if sign {
		req.Header.Set(signatureHeader, Sign([]byte(body), testSecret))
	}
	return req
}

func serve(h *Handler, req *http.Request) *httptest.ResponseRecorder {
	r := mux.NewRouter()
	h.RegisterRoutes(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandle(t *testing.T) {
	botPayload := strings.Replace(commentPayload, `"type": "User"`, `"type": "Bot"`, 1)

	tests := []struct {
		name      string
		eventType string
		body      string
		sign      bool
		runner    *fakeRunner
		wantCode  int
		wantBody  string
		wantCalls int
	}{
		{
			name:      "posted",
			eventType: "issue_comment",
			body:      commentPayload,
			sign:      true,
			runner:    &fakeRunner{result: executor.Result{Posted: true}},
			wantCode:  http.StatusOK,
			wantBody:  "Reply posted",
			wantCalls: 1,
		},
		{
			name:      "skipped",
			eventType: "issue_comment",
			body:      commentPayload,
			sign:      true,
			runner:    &fakeRunner{result: executor.Result{Skipped: true, Reason: "Comment does not start with prefix '/codex'; skipping"}},
			wantCode:  http.StatusOK,
			wantBody:  "Comment does not start with prefix",
			wantCalls: 1,
		},
		{
			name:      "dry run",
			eventType: "issue_comment",
			body:      commentPayload,
			sign:      true,
			runner:    &fakeRunner{result: executor.Result{Body: "x"}},
			wantCode:  http.StatusOK,
			wantBody:  "Reply generated",
			wantCalls: 1,
		},
		{
			name:      "pipeline failure",
			eventType: "issue_comment",
			body:      commentPayload,
			sign:      true,
			runner:    &fakeRunner{err: errors.New("boom")},
			wantCode:  http.StatusInternalServerError,
			wantBody:  "Reply failed",
			wantCalls: 1,
		},
		{
			name:      "missing signature",
			eventType: "issue_comment",
			body:      commentPayload,
			runner:    &fakeRunner{},
			wantCode:  http.StatusUnauthorized,
			wantBody:  "Invalid signature",
		},
		{
			name:      "malformed payload",
			eventType: "issue_comment",
			body:      `{"action":`,
			sign:      true,
			runner:    &fakeRunner{},
			wantCode:  http.StatusBadRequest,
			wantBody:  "Error parsing event",
		},
		{
			name:      "bot comment",
			eventType: "issue_comment",
			body:      botPayload,
			sign:      true,
			runner:    &fakeRunner{},
			wantCode:  http.StatusOK,
			wantBody:  "Bot comment ignored",
		},
		{
			name:      "other event",
			eventType: "push",
			body:      `{}`,
			sign:      true,
			runner:    &fakeRunner{},
			wantCode:  http.StatusOK,
			wantBody:  "Event ignored",
		},
		{
			name:      "ping",
			eventType: "ping",
			body:      `{"zen":"Keep it logically awesome."}`,
			sign:      true,
			runner:    &fakeRunner{},
			wantCode:  http.StatusOK,
			wantBody:  "pong",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(testSecret, tt.runner, logging.Discard())
			rec := serve(h, newRequest(t, tt.eventType, tt.body, tt.sign))

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
			if tt.runner.calls != tt.wantCalls {
				t.Errorf("runner calls = %d, want %d", tt.runner.calls, tt.wantCalls)
			}
		})
	}
}

func TestHandle_PassesParsedEvent(t *testing.T) {
	runner := &fakeRunner{result: executor.Result{Posted: true}}
	h := NewHandler(testSecret, runner, logging.Discard())

	serve(h, newRequest(t, "issue_comment", commentPayload, true))

	if runner.got == nil {
		t.Fatal("runner not called")
	}
	if runner.got.Comment.Body != "/codex hi" || runner.got.Address().String() != "o/r#7" {
		t.Errorf("event = %+v", runner.got)
	}
}

func TestHandle_IgnoresClientCancellation(t *testing.T) {
	runner := &fakeRunner{result: executor.Result{Posted: true}}
	h := NewHandler(testSecret, runner, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := newRequest(t, "issue_comment", commentPayload, true).WithContext(ctx)
	serve(h, req)

	if runner.ctxErr != nil {
		t.Errorf("pipeline context error = %v, want nil", runner.ctxErr)
	}
}

func TestRegisterRoutes_Health(t *testing.T) {
	h := NewHandler(testSecret, &fakeRunner{}, logging.Discard())
	rec := serve(h, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Errorf("/health = %d %q", rec.Code, rec.Body.String())
	}

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/webhook", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /webhook status = %d, want 405", rec.Code)
	}
}
