// Package twiliosms wraps the Twilio API for sending SMS and MMS replies.
package twiliosms

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Sender sends outbound messages to a phone number.
type Sender interface {
	SendMessage(ctx context.Context, to string, body string) error
	SendMedia(ctx context.Context, to string, body string, mediaURL string) error
}

// Opts holds configuration options for the Twilio SMS client.
type Opts struct {
	AccountSID string
	AuthToken  string
	From       string
}

// Option defines a configuration option for the Twilio SMS client.
type Option func(*Opts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFrom sets the sending phone number in E.164 format.
func WithFrom(from string) Option {
	return func(o *Opts) { o.From = from }
}

// Client wraps the Twilio REST API for SMS.
type Client struct {
	client *twilio.RestClient
	from   string
}

// NewClient creates a Twilio SMS client. Credentials fall back to the
// TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_FROM_NUMBER environment
// variables.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.From == "" {
		cfg.From = os.Getenv("TWILIO_FROM_NUMBER")
	}

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("from number must be provided")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})

	slog.Debug("Twilio SMS client initialized", "from", cfg.From)
	return &Client{client: client, from: cfg.From}, nil
}

// SendMessage sends an SMS.
func (c *Client) SendMessage(ctx context.Context, to string, body string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(c.from)
	params.SetBody(body)

	_, err := c.client.Api.CreateMessage(params)
	if err != nil {
		slog.Error("Twilio SendMessage failed", "to", to, "error", err)
		return fmt.Errorf("failed to send message to %s: %w", to, err)
	}
	slog.Debug("Twilio message sent", "to", to)
	return nil
}

// SendMedia sends an MMS with an attached media URL.
func (c *Client) SendMedia(ctx context.Context, to string, body string, mediaURL string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(c.from)
	if body != "" {
		params.SetBody(body)
	}
	params.SetMediaUrl([]string{mediaURL})

	_, err := c.client.Api.CreateMessage(params)
	if err != nil {
		slog.Error("Twilio SendMedia failed", "to", to, "error", err)
		return fmt.Errorf("failed to send media to %s: %w", to, err)
	}
	slog.Debug("Twilio media sent", "to", to, "mediaURL", mediaURL)
	return nil
}

// SentMessage records one outbound message captured by the mock client.
type SentMessage struct {
	To       string
	Body     string
	MediaURL string
}

// MockClient implements Sender for tests, recording outbound messages.
type MockClient struct {
	SentMessages []SentMessage
	Err          error
}

// NewMockClient creates a mock sender.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// SendMessage records an outbound SMS.
func (m *MockClient) SendMessage(ctx context.Context, to string, body string) error {
	if m.Err != nil {
		return m.Err
	}
	m.SentMessages = append(m.SentMessages, SentMessage{To: to, Body: body})
	return nil
}

// SendMedia records an outbound MMS.
func (m *MockClient) SendMedia(ctx context.Context, to string, body string, mediaURL string) error {
	if m.Err != nil {
		return m.Err
	}
	m.SentMessages = append(m.SentMessages, SentMessage{To: to, Body: body, MediaURL: mediaURL})
	return nil
}
