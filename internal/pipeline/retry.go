package pipeline

import (
	"errors"
	"math/rand"
	"time"

	"github.com/omisdami/docrag/internal/embed"
	"github.com/omisdami/docrag/internal/generate"
)

// IsRetryable checks if an error is worth retrying. Both downstream clients
// mark 429/5xx/timeout failures with their own retryable type.
func IsRetryable(err error) bool {
	var embedErr *embed.RetryableError
	if errors.As(err, &embedErr) {
		return true
	}
	var genErr *generate.RetryableError
	return errors.As(err, &genErr)
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int63n(int64(base) / 2))
	return base + jitter
}

const MaxRetries = 3
