package watcher

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/rdalcega/docdex/internal/ingest"
)

// retry runs fn up to attempts times with exponential backoff starting at
// baseDelay. fn always runs at least once, whatever the attempt budget says.
// It gives up immediately on context cancellation and on rollback failures,
// which retrying cannot repair.
func retry(ctx context.Context, attempts int, baseDelay time.Duration, what string, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	delay := baseDelay
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}

		var rbErr *ingest.RollbackError
		if errors.As(err, &rbErr) {
			return err
		}
		if attempt == attempts {
			break
		}

		log.Printf("Warning: %s failed (attempt %d/%d), retrying in %v: %v",
			what, attempt, attempts, delay, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
