// Package messaging abstracts the chat transports the bot can run on. A
// Service delivers outbound replies and surfaces inbound user messages on a
// channel; the Dispatcher connects that channel to the conversation engine.
package messaging

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/mosesmc52/journal-bot/internal/models"
)

// Constants for service channel configuration.
const (
	// DefaultChannelBufferSize defines the default buffer size for response channels.
	DefaultChannelBufferSize = 100
	// DefaultChannelTimeout defines the default timeout for non-blocking channel operations.
	DefaultChannelTimeout = 1 * time.Second
)

// ErrServiceStopped is returned when a send is attempted after Stop.
var ErrServiceStopped = errors.New("messaging service stopped")

// phoneNumberRegex strips everything but digits during canonicalization.
var phoneNumberRegex = regexp.MustCompile(`[^0-9]`)

// Service defines a pluggable message delivery abstraction.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a recipient
	// identifier according to the transport's rules.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendMessage sends a text message to a recipient.
	SendMessage(ctx context.Context, to string, body string) error

	// SendMedia sends a media attachment to a recipient, with optional text.
	SendMedia(ctx context.Context, to string, body string, mediaURL string) error

	// Start begins any background processing (e.g. event polling).
	Start(ctx context.Context) error

	// Stop stops background processing and cleans up resources.
	Stop() error

	// Responses returns a channel of incoming user messages.
	Responses() <-chan models.InboundMessage
}
