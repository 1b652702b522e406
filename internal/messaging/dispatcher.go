package messaging

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mosesmc52/journal-bot/internal/models"
)

// apologyMessage is sent when handling an inbound message fails.
const apologyMessage = "Sorry, something went wrong on my end. Could you say that again?"

// Handler turns one inbound message into reply instructions.
type Handler interface {
	HandleInbound(ctx context.Context, msg models.InboundMessage) ([]models.Action, error)
}

// Dispatcher consumes the transport's inbound channel, routes each message
// through the conversation handler and delivers the resulting actions. A
// handler failure produces an apology instead of killing the loop.
type Dispatcher struct {
	service Service
	handler Handler
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher connecting the transport to the handler.
func NewDispatcher(service Service, handler Handler) *Dispatcher {
	return &Dispatcher{service: service, handler: handler}
}

// Start begins consuming inbound messages until the context is cancelled or
// the transport's channel closes.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.run(ctx)
	}()
	slog.Debug("Dispatcher started")
}

// Wait blocks until the dispatch loop has exited.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			slog.Debug("Dispatcher stopping due to context cancellation")
			return
		case msg, ok := <-d.service.Responses():
			if !ok {
				slog.Debug("Dispatcher stopping, responses channel closed")
				return
			}
			d.dispatch(ctx, msg)
		}
	}
}

// dispatch handles one inbound message end to end.
func (d *Dispatcher) dispatch(ctx context.Context, msg models.InboundMessage) {
	actions, err := d.handler.HandleInbound(ctx, msg)
	if err != nil {
		slog.Error("Dispatcher handler failed", "error", err, "from", msg.SessionID)
		if sendErr := d.service.SendMessage(ctx, msg.SessionID, apologyMessage); sendErr != nil {
			slog.Error("Dispatcher failed to send apology", "error", sendErr, "to", msg.SessionID)
		}
		return
	}

	d.Deliver(ctx, msg.SessionID, actions)
}

// Deliver sends a sequence of reply actions to a recipient. Send failures are
// logged and do not abort the remaining actions.
func (d *Dispatcher) Deliver(ctx context.Context, to string, actions []models.Action) {
	for _, action := range actions {
		var err error
		switch action.Type {
		case models.ActionSay:
			err = d.service.SendMessage(ctx, to, action.Body)
		case models.ActionShowMedia:
			err = d.service.SendMedia(ctx, to, action.Body, action.URL)
		default:
			slog.Warn("Dispatcher skipping unknown action type", "type", action.Type)
			continue
		}
		if err != nil {
			slog.Error("Dispatcher delivery failed", "error", err, "to", to, "type", action.Type)
		}
	}
}
