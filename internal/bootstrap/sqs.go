package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wolfeidau/awsui/internal/awsclient"
	"github.com/wolfeidau/awsui/internal/queues"
)

// CreateQueues creates a standard and a FIFO queue and sends the sample
// messages. Existing queues are reused without sending more messages.
func CreateQueues(ctx context.Context, cfg Config) (map[string]string, error) {
	names := cfg.queueNames()

	for role, name := range names {
		_, err := cfg.Queues.Attributes(ctx, name)
		if err == nil {
			continue
		}
		if !errors.Is(err, awsclient.ErrNotFound) {
			return nil, fmt.Errorf("failed to check queue %s: %w", name, err)
		}

		fifo := role == "orders"
		if _, err := cfg.Queues.Create(ctx, queues.CreateInput{Name: name, FIFO: fifo}); err != nil {
			return nil, fmt.Errorf("failed to create queue %s: %w", name, err)
		}

		for _, msg := range sampleMessages[role] {
			if _, err := cfg.Queues.Send(ctx, name, msg); err != nil {
				return nil, fmt.Errorf("failed to send sample message to %s: %w", name, err)
			}
		}
	}

	return names, nil
}

// DeleteQueues removes the named queues if they exist.
func DeleteQueues(ctx context.Context, cfg Config, names map[string]string) error {
	deleted := false
	for role, name := range names {
		err := cfg.Queues.Delete(ctx, name)
		switch {
		case err == nil:
			deleted = true
		case errors.Is(err, awsclient.ErrNotFound):
		default:
			return fmt.Errorf("failed to delete %s queue: %w", role, err)
		}
	}

	if deleted && cfg.SettleDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cfg.SettleDelay):
		}
	}
	return nil
}
