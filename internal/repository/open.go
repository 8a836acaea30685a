package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Options selects and reaches an inventory backend.
type Options struct {
	// Driver is one of sqlite3, postgres, mysql or mongodb.
	Driver string
	DSN    string
	// Database names the MongoDB database; SQL drivers take it from DSN.
	Database       string
	ConnectTimeout time.Duration
}

// Open connects to the configured inventory backend, retrying the initial
// connection with exponential backoff until ConnectTimeout elapses, and
// creates the schema if needed.
func Open(ctx context.Context, opts Options) (InventoryStore, error) {
	switch opts.Driver {
	case "sqlite3", "postgres":
		return OpenSQL(ctx, opts)
	case "mysql":
		return OpenGorm(ctx, opts)
	case "mongodb":
		return OpenMongo(ctx, opts)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, opts.Driver)
}

// waitFor retries ping until it succeeds, ctx ends or timeout elapses.
func waitFor(ctx context.Context, driver string, timeout time.Duration, ping func(context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxElapsedTime = timeout
	if b.MaxElapsedTime <= 0 {
		b.MaxElapsedTime = 30 * time.Second
	}

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := ping(ctx)
		if err != nil {
			slog.Warn("Database not reachable yet",
				"driver", driver,
				"attempt", attempt,
				"error", err)
		}
		return err
	}, backoff.WithContext(b, ctx))
}
