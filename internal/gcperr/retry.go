package gcperr

import (
	"context"
	"time"

	"github.com/googleapis/gax-go/v2"
)

const (
	retryAttempts = 3
	retryBase     = 500 * time.Millisecond
)

// Retry runs fn up to three times, sleeping base*attempt between tries
// (linear backoff). Only transient and rate-limit errors are retried; the
// last error is classified under op.
func Retry(ctx context.Context, op string, fn func(context.Context) error) error {
	return retry(ctx, op, retryAttempts, retryBase, fn)
}

func retry(ctx context.Context, op string, attempts int, base time.Duration, fn func(context.Context) error) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !Retryable(err) || attempt == attempts {
			break
		}
		if serr := gax.Sleep(ctx, base*time.Duration(attempt)); serr != nil {
			return Classify(op, serr)
		}
	}
	return Classify(op, err)
}
