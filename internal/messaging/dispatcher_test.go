package messaging

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mosesmc52/journal-bot/internal/models"
)

// mockService implements Service for dispatcher tests.
type mockService struct {
	mu        sync.Mutex
	sent      []string
	media     []string
	responses chan models.InboundMessage
	sendErr   error
}

func newMockService() *mockService {
	return &mockService{responses: make(chan models.InboundMessage, 10)}
}

func (m *mockService) ValidateAndCanonicalizeRecipient(r string) (string, error) { return r, nil }

func (m *mockService) SendMessage(ctx context.Context, to, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, body)
	return nil
}

func (m *mockService) SendMedia(ctx context.Context, to, body, mediaURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.media = append(m.media, mediaURL)
	return nil
}

func (m *mockService) Start(ctx context.Context) error { return nil }
func (m *mockService) Stop() error                     { return nil }

func (m *mockService) Responses() <-chan models.InboundMessage { return m.responses }

func (m *mockService) sentMessages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sent...)
}

func (m *mockService) sentMedia() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.media...)
}

// mockHandler returns canned actions or an error.
type mockHandler struct {
	actions []models.Action
	err     error
}

func (h *mockHandler) HandleInbound(ctx context.Context, msg models.InboundMessage) ([]models.Action, error) {
	return h.actions, h.err
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestDispatcherDeliversActions(t *testing.T) {
	svc := newMockService()
	handler := &mockHandler{actions: []models.Action{
		models.Say("hello"),
		models.ShowMedia("https://media.example/a.gif"),
	}}
	d := NewDispatcher(svc, handler)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	svc.responses <- models.InboundMessage{SessionID: "+15550001111", Body: "hi"}

	waitFor(t, func() bool { return len(svc.sentMessages()) == 1 && len(svc.sentMedia()) == 1 })
	if svc.sentMessages()[0] != "hello" {
		t.Errorf("expected text delivered, got %v", svc.sentMessages())
	}
	if svc.sentMedia()[0] != "https://media.example/a.gif" {
		t.Errorf("expected media delivered, got %v", svc.sentMedia())
	}
}

func TestDispatcherSendsApologyOnHandlerError(t *testing.T) {
	svc := newMockService()
	handler := &mockHandler{err: errors.New("engine exploded")}
	d := NewDispatcher(svc, handler)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	svc.responses <- models.InboundMessage{SessionID: "+15550001111", Body: "hi"}

	waitFor(t, func() bool { return len(svc.sentMessages()) == 1 })
	if svc.sentMessages()[0] != apologyMessage {
		t.Errorf("expected apology, got %q", svc.sentMessages()[0])
	}
}

func TestDispatcherKeepsConsumingAfterError(t *testing.T) {
	svc := newMockService()
	handler := &mockHandler{err: errors.New("boom")}
	d := NewDispatcher(svc, handler)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	svc.responses <- models.InboundMessage{SessionID: "+1555", Body: "one"}
	svc.responses <- models.InboundMessage{SessionID: "+1555", Body: "two"}

	waitFor(t, func() bool { return len(svc.sentMessages()) == 2 })
}

func TestDispatcherStopsWhenChannelCloses(t *testing.T) {
	svc := newMockService()
	d := NewDispatcher(svc, &mockHandler{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	close(svc.responses)

	done := make(chan struct{})
	go func() {
		d.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop after channel close")
	}
}
