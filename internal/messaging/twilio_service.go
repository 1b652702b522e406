package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/mosesmc52/journal-bot/internal/models"
	"github.com/mosesmc52/journal-bot/internal/twiliosms"
)

// TwilioService implements the Service interface over Twilio SMS. Inbound
// messages arrive through the webhook handler; outbound replies go through
// the Twilio REST API.
type TwilioService struct {
	client    twiliosms.Sender
	responses chan models.InboundMessage
	done      chan struct{}
	mu        sync.RWMutex
	stopped   bool
}

// NewTwilioService creates a TwilioService over the given sender.
func NewTwilioService(client twiliosms.Sender) *TwilioService {
	return &TwilioService{
		client:    client,
		responses: make(chan models.InboundMessage, DefaultChannelBufferSize),
		done:      make(chan struct{}),
	}
}

// ValidateAndCanonicalizeRecipient validates and canonicalizes a phone number.
// It removes all non-numeric characters and validates the result has at least
// 6 digits.
func (s *TwilioService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	if recipient == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}

	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", fmt.Errorf("invalid phone number: no digits found in recipient %q", recipient)
	}
	if len(canonical) < 6 {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum 6 digits required)", canonical)
	}

	if recipient != canonical {
		slog.Debug("TwilioService canonicalized recipient", "original", recipient, "canonical", canonical)
	}
	return "+" + canonical, nil
}

// Start is a no-op; inbound traffic is webhook-driven.
func (s *TwilioService) Start(ctx context.Context) error {
	return nil
}

// Stop closes the response channel and stops the service.
func (s *TwilioService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	close(s.done)

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(s.responses)
	}()
	return nil
}

// SendMessage sends an SMS via Twilio.
func (s *TwilioService) SendMessage(ctx context.Context, to string, body string) error {
	s.mu.RLock()
	if s.stopped {
		s.mu.RUnlock()
		return ErrServiceStopped
	}
	s.mu.RUnlock()

	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("TwilioService SendMessage validation error", "error", err, "to", to)
		return err
	}
	return s.client.SendMessage(ctx, canonicalTo, body)
}

// SendMedia sends an MMS via Twilio.
func (s *TwilioService) SendMedia(ctx context.Context, to string, body string, mediaURL string) error {
	s.mu.RLock()
	if s.stopped {
		s.mu.RUnlock()
		return ErrServiceStopped
	}
	s.mu.RUnlock()

	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("TwilioService SendMedia validation error", "error", err, "to", to)
		return err
	}
	return s.client.SendMedia(ctx, canonicalTo, body, mediaURL)
}

// Responses returns the channel of inbound messages.
func (s *TwilioService) Responses() <-chan models.InboundMessage {
	return s.responses
}

// WebhookHandler handles inbound Twilio webhook requests. It parses the form
// payload and emits it as a models.InboundMessage on the Responses channel.
func (s *TwilioService) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		slog.Error("Failed to parse Twilio webhook form", "error", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	from := r.FormValue("From")
	if from == "" {
		slog.Warn("Twilio webhook missing From field")
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}

	// Body may legitimately be empty for media-only messages; the engine
	// treats blank input as a closing signal.
	msg := models.InboundMessage{
		SessionID: from,
		Body:      r.FormValue("Body"),
		MediaURL:  r.FormValue("MediaUrl0"),
		MediaType: r.FormValue("MediaContentType0"),
		Time:      time.Now().Unix(),
	}
	slog.Info("Twilio webhook received", "from", from, "body_length", len(msg.Body), "has_media", msg.MediaURL != "")

	s.safeEmitResponse(msg)

	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// safeEmitResponse pushes an inbound message without blocking the webhook.
func (s *TwilioService) safeEmitResponse(msg models.InboundMessage) {
	s.mu.RLock()
	stopped := s.stopped
	s.mu.RUnlock()
	if stopped {
		slog.Warn("TwilioService dropping inbound message (service stopped)", "from", msg.SessionID)
		return
	}

	select {
	case s.responses <- msg:
		slog.Debug("TwilioService emitted inbound message", "from", msg.SessionID)
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("TwilioService responses channel blocked, dropping message", "from", msg.SessionID)
	}
}
