package delivery

import (
	"context"
	"fmt"
)

// Replier sends messages back to the chat a payload belongs to.
type Replier interface {
	SendText(ctx context.Context, text string, mode Mode) error
	SendFile(ctx context.Context, name string, data []byte) error
}

// Deliver sends p through r: text first, then the attachment.
func Deliver(ctx context.Context, p Payload, r Replier) error {
	if p.Text != "" {
		if err := r.SendText(ctx, p.Text, p.Mode); err != nil {
			return fmt.Errorf("delivery: send text: %w", err)
		}
	}
	if p.File != nil {
		if err := r.SendFile(ctx, p.File.Name, p.File.Data); err != nil {
			return fmt.Errorf("delivery: send file %s: %w", p.File.Name, err)
		}
	}
	return nil
}
