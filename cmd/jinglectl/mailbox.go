package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"jingle-gift/internal/app"
	"jingle-gift/internal/mailbox"
)

type mailboxSession struct {
	store mailbox.Store
}

// withMailbox opens the Redis mailbox for one command. An in-memory store
// would lose every change on exit, so REDIS_URL is mandatory here.
func withMailbox(cmd *cobra.Command, g *globals, fn func(mailboxSession) error) error {
	cfg, logger, err := g.load(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if cfg.RedisURL == "" {
		return errors.New("REDIS_URL is required")
	}

	store, closeStore, err := app.OpenMailbox(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	return fn(mailboxSession{store: store})
}

func contextWithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, d)
}
