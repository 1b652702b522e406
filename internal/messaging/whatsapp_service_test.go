package messaging

import (
	"context"
	"testing"

	"github.com/mosesmc52/journal-bot/internal/whatsapp"
)

// Ensure WhatsAppService implements Service interface
func TestWhatsAppService_ImplementsService(t *testing.T) {
	var _ Service = (*WhatsAppService)(nil)
}

func TestWhatsAppService_SendMessage(t *testing.T) {
	mockClient := whatsapp.NewMockClient()
	svc := NewWhatsAppService(mockClient)
	if err := svc.SendMessage(context.Background(), "+15550001111", "hello"); err != nil {
		t.Fatalf("SendMessage returned error: %v", err)
	}
}

func TestWhatsAppService_CanonicalizeRecipient(t *testing.T) {
	svc := NewWhatsAppService(whatsapp.NewMockClient())

	got, err := svc.ValidateAndCanonicalizeRecipient("+1 (555) 000-1111")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "15550001111" {
		t.Errorf("expected bare digits, got %q", got)
	}

	if _, err := svc.ValidateAndCanonicalizeRecipient(""); err == nil {
		t.Error("expected error for empty recipient")
	}
	if _, err := svc.ValidateAndCanonicalizeRecipient("123"); err == nil {
		t.Error("expected error for short number")
	}
}

// Test Start and Stop do not error and close channels
func TestWhatsAppService_StartStop(t *testing.T) {
	mockClient := whatsapp.NewMockClient()
	svc := NewWhatsAppService(mockClient)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if err := svc.Stop(); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}
	// After Stop the responses channel is closed
	response, ok := <-svc.Responses()
	if ok {
		t.Errorf("expected responses channel closed, got value %v", response)
	}
	// Sends after Stop are rejected
	if err := svc.SendMessage(context.Background(), "+15550001111", "late"); err != ErrServiceStopped {
		t.Errorf("expected ErrServiceStopped, got %v", err)
	}
}
