package testutils

import (
	"context"
	"testing"
	"time"
)

var (
	ConnectTimeout = 5 * time.Second
	pollInterval   = 10 * time.Millisecond
)

// WithTimeout polls f until it returns an empty string, failing the test with
// the last returned message once ConnectTimeout has passed.
func WithTimeout(t *testing.T, f func() string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), ConnectTimeout)
	defer cancel()

	lastErr := f()
	for lastErr != "" {
		select {
		case <-ctx.Done():
			t.Fatalf("did not reach expected state after %v: %s", ConnectTimeout, lastErr)
			return
		case <-time.After(pollInterval):
			lastErr = f()
		}
	}
}
