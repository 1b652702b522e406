package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mosesmc52/journal-bot/internal/models"
	"github.com/mosesmc52/journal-bot/internal/whatsapp"
	"go.mau.fi/whatsmeow/types/events"
)

// WhatsAppService implements Service using the Whatsmeow-based whatsapp client.
type WhatsAppService struct {
	client    whatsapp.WhatsAppSender
	waClient  *whatsapp.Client // access to the underlying client for event handling
	responses chan models.InboundMessage
	done      chan struct{}
	mu        sync.RWMutex
	stopped   bool
}

// NewWhatsAppService creates a WhatsAppService wrapping the given sender.
func NewWhatsAppService(client whatsapp.WhatsAppSender) *WhatsAppService {
	service := &WhatsAppService{
		client:    client,
		responses: make(chan models.InboundMessage, DefaultChannelBufferSize),
		done:      make(chan struct{}),
	}

	if waClient, ok := client.(*whatsapp.Client); ok {
		service.waClient = waClient
		slog.Debug("WhatsAppService created with full client for event handling")
	} else {
		slog.Debug("WhatsAppService created with interface client (likely mock)")
	}
	return service
}

// ValidateAndCanonicalizeRecipient validates and canonicalizes a WhatsApp
// phone number to bare digits, as the JID format requires.
func (s *WhatsAppService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	if recipient == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}
	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if len(canonical) < 6 {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum 6 digits required)", canonical)
	}
	return canonical, nil
}

// Start begins background event processing.
func (s *WhatsAppService) Start(ctx context.Context) error {
	slog.Debug("WhatsAppService Start invoked")
	if s.waClient != nil {
		go s.handleEvents(ctx)
		slog.Debug("WhatsAppService event handler started")
	} else {
		slog.Debug("WhatsAppService no full client available, skipping event handling")
	}
	return nil
}

// Stop stops background processing.
func (s *WhatsAppService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	close(s.done)
	close(s.responses)
	slog.Info("WhatsAppService stopped and channels closed")
	return nil
}

// SendMessage sends a WhatsApp message.
func (s *WhatsAppService) SendMessage(ctx context.Context, to string, body string) error {
	s.mu.RLock()
	if s.stopped {
		s.mu.RUnlock()
		return ErrServiceStopped
	}
	s.mu.RUnlock()

	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("WhatsAppService SendMessage validation error", "error", err, "to", to)
		return err
	}
	if err := s.client.SendMessage(ctx, canonicalTo, body); err != nil {
		slog.Error("WhatsAppService SendMessage error", "error", err, "to", to)
		return err
	}
	slog.Debug("WhatsAppService message sent", "to", canonicalTo)
	return nil
}

// SendMedia sends the media URL as a plain message; the whatsmeow wrapper
// only carries text.
func (s *WhatsAppService) SendMedia(ctx context.Context, to string, body string, mediaURL string) error {
	text := mediaURL
	if body != "" {
		text = body + "\n" + mediaURL
	}
	return s.SendMessage(ctx, to, text)
}

// Responses returns a channel of inbound message events.
func (s *WhatsAppService) Responses() <-chan models.InboundMessage {
	return s.responses
}

// handleEvents feeds WhatsApp events into the responses channel.
func (s *WhatsAppService) handleEvents(ctx context.Context) {
	if s.waClient == nil || s.waClient.GetClient() == nil {
		slog.Error("WhatsAppService handleEvents: no client available")
		return
	}

	s.waClient.GetClient().AddEventHandler(func(evt interface{}) {
		if v, ok := evt.(*events.Message); ok {
			s.handleIncomingMessage(v)
		}
	})
	slog.Debug("WhatsAppService event handler registered")

	<-ctx.Done()
	slog.Debug("WhatsAppService handleEvents stopping due to context cancellation")
}

// handleIncomingMessage converts an incoming text message to an InboundMessage.
func (s *WhatsAppService) handleIncomingMessage(evt *events.Message) {
	if evt.Message == nil {
		return
	}

	var messageText string
	if evt.Message.Conversation != nil {
		messageText = *evt.Message.Conversation
	} else if evt.Message.ExtendedTextMessage != nil && evt.Message.ExtendedTextMessage.Text != nil {
		messageText = *evt.Message.ExtendedTextMessage.Text
	} else {
		slog.Debug("WhatsAppService ignoring non-text message", "from", evt.Info.Sender.String())
		return
	}

	fromNumber := evt.Info.Sender.User
	if !strings.HasPrefix(fromNumber, "+") {
		fromNumber = "+" + fromNumber
	}

	msg := models.InboundMessage{
		SessionID: fromNumber,
		Body:      messageText,
		Time:      evt.Info.Timestamp.Unix(),
	}

	s.mu.RLock()
	stopped := s.stopped
	s.mu.RUnlock()
	if stopped {
		return
	}

	select {
	case s.responses <- msg:
		slog.Info("WhatsAppService incoming message forwarded", "from", msg.SessionID)
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("WhatsAppService responses channel blocked, dropping message", "from", msg.SessionID)
	}
}
