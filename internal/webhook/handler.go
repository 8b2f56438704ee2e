package webhook

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/cexll/codex-replier/internal/event"
	"github.com/cexll/codex-replier/internal/executor"
)

const (
	eventHeader    = "X-GitHub-Event"
	deliveryHeader = "X-GitHub-Delivery"

	// GitHub caps webhook payloads at 25 MB.
	maxPayloadBytes = 25 << 20
)

// Runner executes the reply pipeline for a parsed event.
type Runner interface {
	Execute(ctx context.Context, ev *event.Event) (executor.Result, error)
}

// Handler receives GitHub webhook deliveries and runs the reply pipeline
// synchronously for issue_comment events.
type Handler struct {
	secret string
	runner Runner
	logger *slog.Logger
}

// NewHandler creates a webhook handler.
func NewHandler(secret string, runner Runner, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{secret: secret, runner: runner, logger: logger}
}

// RegisterRoutes mounts the webhook and health endpoints on r.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/webhook", h.Handle).Methods(http.MethodPost)
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}).Methods(http.MethodGet)
}

// Handle verifies and processes a single delivery.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With("delivery", r.Header.Get(deliveryHeader))

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		logger.Warn("Error reading payload", "error", err)
		http.Error(w, "Error reading payload", http.StatusBadRequest)
		return
	}

	if err := Verify(payload, r.Header.Get(signatureHeader), h.secret); err != nil {
		logger.Warn("Rejected webhook", "error", err)
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	switch eventType := r.Header.Get(eventHeader); eventType {
	case "issue_comment":
	case "ping":
		respond(w, http.StatusOK, "pong")
		return
	default:
		logger.Debug("Ignoring unsupported event type", "event", eventType)
		respond(w, http.StatusOK, "Event ignored")
		return
	}

	ev, err := event.Parse(payload)
	if err != nil {
		logger.Warn("Error parsing event", "error", err)
		http.Error(w, "Error parsing event", http.StatusBadRequest)
		return
	}

	if ev.Comment.User.Type == "Bot" {
		logger.Info("Ignoring comment from bot", "login", ev.Comment.User.Login)
		respond(w, http.StatusOK, "Bot comment ignored")
		return
	}

	// Replies routinely outlast GitHub's 10s delivery timeout.
	ctx := context.WithoutCancel(r.Context())
	res, err := h.runner.Execute(ctx, ev)
	switch {
	case err != nil:
		logger.Error("Reply failed", "error", err, "config_error", executor.IsConfigError(err))
		http.Error(w, "Reply failed", http.StatusInternalServerError)
	case res.Skipped:
		respond(w, http.StatusOK, res.Reason)
	case res.Posted:
		respond(w, http.StatusOK, "Reply posted")
	default:
		respond(w, http.StatusOK, "Reply generated")
	}
}

func respond(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg))
}
