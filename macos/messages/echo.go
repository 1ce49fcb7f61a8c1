package messages

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/spachava753/imessage/internal/logx"
)

// Sender sends a text message to a handle. [*Automator] implements it.
type Sender interface {
	Send(ctx context.Context, handle string, text string) error
}

// Echo replies to every inbound text message with the same text.
type Echo struct {
	Sender Sender
	// Limiter throttles replies; nil means unlimited.
	Limiter *rate.Limiter
	Log     logx.Logger
}

// Run consumes events until the channel closes or ctx is done. Send failures
// are logged and do not stop the loop.
func (e *Echo) Run(ctx context.Context, events <-chan Event) error {
	log := e.Log.With(logx.String("comp", "echo"))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.Kind == EventError {
				log.Warn("session halted", logx.Err(ev.Err))
				continue
			}
			msg := ev.Message
			if msg.FromMe || msg.Text == nil || *msg.Text == "" || msg.Handle == "" {
				continue
			}
			if e.Limiter != nil {
				if err := e.Limiter.Wait(ctx); err != nil {
					return err
				}
			}
			if err := e.Sender.Send(ctx, msg.Handle, *msg.Text); err != nil {
				log.Warn("echo failed", logx.String("handle", msg.Handle), logx.String("guid", msg.GUID), logx.Err(err))
				continue
			}
			log.Debug("echoed", logx.String("handle", msg.Handle), logx.String("guid", msg.GUID))
		}
	}
}
