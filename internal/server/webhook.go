package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"linkshare/internal/webhook"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/go-github/v57/github"
)

// MaxPayloadBytes caps the webhook body
const MaxPayloadBytes = 1_000_000 // 1 MB

// HandleWebhook verifies a signed notification and, when valid, triggers a
// deploy without waiting for it.
func (s *Server) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	delivery := github.DeliveryID(r)
	logger := s.Logger.With(
		"delivery", delivery,
		"event", github.WebHookType(r),
		"request_id", middleware.GetReqID(r.Context()))

	// Checked before the body is read so a misconfigured server always answers 500
	if s.webhookSecret == "" {
		logger.Error("Webhook secret not configured, rejecting request")
		s.Metrics.webhook(webhook.Outcome(webhook.ErrSecretNotConfigured))
		http.Error(w, "Internal Server Error: Secret not configured", http.StatusInternalServerError)
		return
	}

	// Header shape is checked before the body is read
	header := r.Header.Get(webhook.SignatureHeader)
	if _, err := webhook.ParseHeader(header); err != nil {
		s.rejectWebhook(w, logger, err)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxPayloadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.Metrics.webhook("payload_too_large")
			http.Error(w, "Payload too large", http.StatusRequestEntityTooLarge)
			return
		}
		logger.Error("Failed to read request body", "error", err)
		s.Metrics.webhook("read_error")
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := webhook.Verify(s.webhookSecret, body, header); err != nil {
		s.rejectWebhook(w, logger, err)
		return
	}

	s.Metrics.webhook(webhook.Outcome(nil))

	reason := "webhook"
	if delivery != "" {
		reason = "webhook " + delivery
	}
	runID, accepted := s.Deployer.Trigger(reason)
	if accepted {
		logger.Info("Webhook verified, deploy triggered", "run_id", runID)
	} else {
		logger.Error("Webhook verified but deploy trigger was dropped", "run_id", runID)
		s.Metrics.deployDropped()
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "OK")
}

// rejectWebhook answers a failed verification with its mapped status
func (s *Server) rejectWebhook(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := webhook.StatusCode(err)
	logger.Warn("Webhook rejected", "error", err, "status", status)
	s.Metrics.webhook(webhook.Outcome(err))
	http.Error(w, http.StatusText(status), status)
}
