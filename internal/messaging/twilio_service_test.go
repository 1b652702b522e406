package messaging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/mosesmc52/journal-bot/internal/twiliosms"
)

// Ensure TwilioService implements Service interface
func TestTwilioService_ImplementsService(t *testing.T) {
	var _ Service = (*TwilioService)(nil)
}

func postWebhook(t *testing.T, svc *TwilioService, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/twilio", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	svc.WebhookHandler(rec, req)
	return rec
}

func TestTwilioWebhookEmitsInboundMessage(t *testing.T) {
	svc := NewTwilioService(twiliosms.NewMockClient())

	form := url.Values{}
	form.Set("From", "+15550001111")
	form.Set("Body", "today was good")
	rec := postWebhook(t, svc, form)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	select {
	case msg := <-svc.Responses():
		if msg.SessionID != "+15550001111" {
			t.Errorf("expected session from From field, got %q", msg.SessionID)
		}
		if msg.Body != "today was good" {
			t.Errorf("expected body preserved, got %q", msg.Body)
		}
	default:
		t.Fatal("expected inbound message, got none")
	}
}

func TestTwilioWebhookCarriesMedia(t *testing.T) {
	svc := NewTwilioService(twiliosms.NewMockClient())

	form := url.Values{}
	form.Set("From", "+15550001111")
	form.Set("MediaUrl0", "https://api.twilio.example/media/1")
	form.Set("MediaContentType0", "image/jpeg")
	rec := postWebhook(t, svc, form)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for media-only message, got %d", rec.Code)
	}

	select {
	case msg := <-svc.Responses():
		if msg.MediaURL != "https://api.twilio.example/media/1" {
			t.Errorf("expected media URL, got %q", msg.MediaURL)
		}
		if msg.MediaType != "image/jpeg" {
			t.Errorf("expected media type, got %q", msg.MediaType)
		}
		if msg.Body != "" {
			t.Errorf("expected empty body, got %q", msg.Body)
		}
	default:
		t.Fatal("expected inbound message, got none")
	}
}

func TestTwilioWebhookRejectsMissingFrom(t *testing.T) {
	svc := NewTwilioService(twiliosms.NewMockClient())

	form := url.Values{}
	form.Set("Body", "anonymous")
	rec := postWebhook(t, svc, form)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without From, got %d", rec.Code)
	}
}

func TestTwilioService_SendMessageCanonicalizes(t *testing.T) {
	mock := twiliosms.NewMockClient()
	svc := NewTwilioService(mock)

	if err := svc.SendMessage(context.Background(), "+1 (555) 000-1111", "hi"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if len(mock.SentMessages) != 1 {
		t.Fatalf("expected 1 sent message, got %d", len(mock.SentMessages))
	}
	if mock.SentMessages[0].To != "+15550001111" {
		t.Errorf("expected E.164 recipient, got %q", mock.SentMessages[0].To)
	}
}

func TestTwilioService_StopRejectsSends(t *testing.T) {
	svc := NewTwilioService(twiliosms.NewMockClient())
	if err := svc.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := svc.SendMessage(context.Background(), "+15550001111", "late"); err != ErrServiceStopped {
		t.Errorf("expected ErrServiceStopped, got %v", err)
	}
}
